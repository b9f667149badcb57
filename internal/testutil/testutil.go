// Package testutil builds throwaway databases and catalog fixtures for tests.
package testutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/grade"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/migrations"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
	"github.com/BRRODORTEGA/SOFA-sub000/pkg/db"
)

// NewDB returns a migrated in-memory sqlite database private to t.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := db.OpenSQLite(context.Background(), "file::memory:")
	require.NoError(t, err)
	require.NoError(t, migrations.Auto(gdb))

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

type Catalog struct {
	Category models.Category
	Family   models.Family
}

func NewCatalog(t *testing.T, gdb *gorm.DB) *Catalog {
	t.Helper()

	c := &Catalog{
		Category: models.Category{Name: "Sofas"},
		Family:   models.Family{Name: "Lounge"},
	}
	require.NoError(t, gdb.Create(&c.Category).Error)
	require.NoError(t, gdb.Create(&c.Family).Error)
	return c
}

// Product creates a product offering the given fabrics.
func (c *Catalog) Product(t *testing.T, gdb *gorm.DB, name string, sideRequired bool, fabrics ...models.Fabric) models.Product {
	t.Helper()

	p := models.Product{
		Name:         name,
		FamilyID:     c.Family.ID,
		CategoryID:   c.Category.ID,
		SideRequired: sideRequired,
	}
	require.NoError(t, gdb.Create(&p).Error)
	if len(fabrics) > 0 {
		require.NoError(t, gdb.Model(&p).Association("Fabrics").Append(fabricPtrs(fabrics)...))
	}
	return p
}

func fabricPtrs(fabrics []models.Fabric) []any {
	out := make([]any, 0, len(fabrics))
	for i := range fabrics {
		out = append(out, &fabrics[i])
	}
	return out
}

func Fabric(t *testing.T, gdb *gorm.DB, name string, g grade.Grade) models.Fabric {
	t.Helper()

	f := models.Fabric{Name: name, Grade: g}
	require.NoError(t, gdb.Create(&f).Error)
	return f
}

func Variant(t *testing.T, gdb *gorm.DB, productID uuid.UUID, measure int, dims models.Dimensions) models.SizeVariant {
	t.Helper()

	v := models.SizeVariant{ProductID: productID, MeasureCM: measure, Dimensions: dims}
	require.NoError(t, gdb.Create(&v).Error)
	return v
}

func Table(t *testing.T, gdb *gorm.DB, name string) models.PriceTable {
	t.Helper()

	pt := models.PriceTable{Name: name, Version: 1}
	require.NoError(t, gdb.Create(&pt).Error)
	return pt
}

// Ladder returns strictly increasing prices starting at base, step apart.
func Ladder(base, step int64) models.Prices {
	var p models.Prices
	for i, c := range grade.Columns {
		p.Set(c, decimal.NewFromInt(base+int64(i)*step))
	}
	return p
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

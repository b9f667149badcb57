package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/grade"
)

type PriceTable struct {
	ID        uuid.UUID `gorm:"primaryKey"            json:"id"`
	Name      string    `gorm:"not null"              json:"name"`
	Version   int       `gorm:"not null;default:1"    json:"version"`
	Active    bool      `gorm:"not null;default:false" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (t *PriceTable) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// Prices holds one amount per grade column.
type Prices struct {
	G1000   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"g1000"`
	G2000   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"g2000"`
	G3000   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"g3000"`
	G4000   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"g4000"`
	G5000   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"g5000"`
	G6000   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"g6000"`
	G7000   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"g7000"`
	Leather decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"leather"`
}

// Get returns zero for ColumnUnknown.
func (p Prices) Get(c grade.Column) decimal.Decimal {
	switch c {
	case grade.ColumnG1000:
		return p.G1000
	case grade.ColumnG2000:
		return p.G2000
	case grade.ColumnG3000:
		return p.G3000
	case grade.ColumnG4000:
		return p.G4000
	case grade.ColumnG5000:
		return p.G5000
	case grade.ColumnG6000:
		return p.G6000
	case grade.ColumnG7000:
		return p.G7000
	case grade.ColumnLeather:
		return p.Leather
	}
	return decimal.Zero
}

func (p *Prices) Set(c grade.Column, v decimal.Decimal) {
	switch c {
	case grade.ColumnG1000:
		p.G1000 = v
	case grade.ColumnG2000:
		p.G2000 = v
	case grade.ColumnG3000:
		p.G3000 = v
	case grade.ColumnG4000:
		p.G4000 = v
	case grade.ColumnG5000:
		p.G5000 = v
	case grade.ColumnG6000:
		p.G6000 = v
	case grade.ColumnG7000:
		p.G7000 = v
	case grade.ColumnLeather:
		p.Leather = v
	}
}

type PriceRow struct {
	ID           uuid.UUID `gorm:"primaryKey"                             json:"id"`
	PriceTableID uuid.UUID `gorm:"uniqueIndex:idx_price_row_key;not null" json:"price_table_id"`
	ProductID    uuid.UUID `gorm:"uniqueIndex:idx_price_row_key;not null" json:"product_id"`
	MeasureCM    int       `gorm:"uniqueIndex:idx_price_row_key;not null" json:"measure_cm"`
	Dimensions
	Prices          `gorm:"embedded;embeddedPrefix:price_" json:"prices"`
	DiscountPercent decimal.NullDecimal `gorm:"type:decimal(5,2)" json:"discount_percent"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func (r *PriceRow) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

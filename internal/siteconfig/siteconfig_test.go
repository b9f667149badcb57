package siteconfig

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/testutil"
)

func TestGormRepo_ActiveTable(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := &GormRepo{DB: gdb}

	_, err := repo.ActiveTableID(ctx)
	require.ErrorIs(t, err, ErrNoActiveTable)

	a := testutil.Table(t, gdb, "a")
	b := testutil.Table(t, gdb, "b")

	require.NoError(t, repo.SetActiveTable(ctx, a.ID))
	require.NoError(t, repo.SetActiveTable(ctx, b.ID))

	id, err := repo.ActiveTableID(ctx)
	require.NoError(t, err)
	assert.Equal(t, b.ID, id)

	var active []models.PriceTable
	require.NoError(t, gdb.Where("active = ?", true).Find(&active).Error)
	require.Len(t, active, 1)
	assert.Equal(t, b.ID, active[0].ID)

	require.ErrorIs(t, repo.SetActiveTable(ctx, uuid.New()), ErrNotFound)
}

func TestGormRepo_FeaturedDiscounts(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &GormRepo{DB: testutil.NewDB(t)}
	productID := uuid.New()

	_, ok, err := repo.FeaturedDiscount(ctx, productID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetFeaturedDiscount(ctx, productID, decimal.NewFromInt(15)))
	require.NoError(t, repo.SetFeaturedDiscount(ctx, productID, decimal.NewFromInt(20)))

	pct, ok, err := repo.FeaturedDiscount(ctx, productID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, pct.Equal(decimal.NewFromInt(20)))

	all, err := repo.ListFeaturedDiscounts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.ErrorIs(t, repo.SetFeaturedDiscount(ctx, productID, decimal.Zero), ErrValidation)

	require.NoError(t, repo.ClearFeaturedDiscount(ctx, productID))
	require.ErrorIs(t, repo.ClearFeaturedDiscount(ctx, productID), ErrNotFound)
}

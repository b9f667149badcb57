package pricetable

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/grade"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/testutil"
)

func TestGormRepo_UpsertRows_InsertThenUpdateInPlace(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := &GormRepo{DB: gdb}
	pt := testutil.Table(t, gdb, "2026")
	productID := uuid.New()

	n, err := repo.UpsertRows(ctx, pt.ID, []RowInput{
		{ProductID: productID, MeasureCM: 180, Prices: testutil.Ladder(1000, 100)},
		{ProductID: productID, MeasureCM: 220, Prices: testutil.Ladder(1200, 100)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	first, err := repo.GetRow(ctx, pt.ID, productID, 180)
	require.NoError(t, err)

	prices := testutil.Ladder(1500, 100)
	n, err = repo.UpsertRows(ctx, pt.ID, []RowInput{
		{ProductID: productID, MeasureCM: 180, Prices: prices, DiscountPercent: decimal.NewNullDecimal(decimal.NewFromInt(10))},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.GetRow(ctx, pt.ID, productID, 180)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.True(t, got.Prices.Get(grade.ColumnG1000).Equal(decimal.NewFromInt(1500)))
	require.True(t, got.DiscountPercent.Valid)
	assert.True(t, got.DiscountPercent.Decimal.Equal(decimal.NewFromInt(10)))

	rows, err := repo.ListRows(ctx, pt.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2, "rows outside the batch are kept")
}

func TestGormRepo_UpsertRows_BumpsUpdatedAt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := &GormRepo{DB: gdb}
	pt := testutil.Table(t, gdb, "2026")
	before := pt.UpdatedAt

	time.Sleep(5 * time.Millisecond)
	_, err := repo.UpsertRows(ctx, pt.ID, []RowInput{{ProductID: uuid.New(), MeasureCM: 200}})
	require.NoError(t, err)

	got, err := repo.GetTable(ctx, pt.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(before))
}

func TestGormRepo_UpsertRows_Errors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := &GormRepo{DB: gdb}
	pt := testutil.Table(t, gdb, "2026")
	productID := uuid.New()

	cases := []struct {
		name string
		in   RowInput
	}{
		{"missing product", RowInput{MeasureCM: 200}},
		{"zero measure", RowInput{ProductID: productID}},
		{"negative price", RowInput{ProductID: productID, MeasureCM: 200, Prices: models.Prices{G1000: decimal.NewFromInt(-1)}}},
		{"discount over 100", RowInput{ProductID: productID, MeasureCM: 200, DiscountPercent: decimal.NewNullDecimal(decimal.NewFromInt(101))}},
		{"negative width", RowInput{ProductID: productID, MeasureCM: 200, Dimensions: models.Dimensions{Width: -1}}},
	}
	for _, tc := range cases {
		_, err := repo.UpsertRows(ctx, pt.ID, []RowInput{tc.in})
		assert.ErrorIs(t, err, ErrValidation, tc.name)
	}

	_, err := repo.UpsertRows(ctx, uuid.New(), []RowInput{{ProductID: productID, MeasureCM: 200}})
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := repo.UpsertRows(ctx, pt.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGormRepo_DeleteRow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gdb := testutil.NewDB(t)
	repo := &GormRepo{DB: gdb}
	pt := testutil.Table(t, gdb, "2026")
	productID := uuid.New()

	_, err := repo.UpsertRows(ctx, pt.ID, []RowInput{{ProductID: productID, MeasureCM: 200}})
	require.NoError(t, err)

	require.NoError(t, repo.DeleteRow(ctx, pt.ID, productID, 200))
	_, err = repo.GetRow(ctx, pt.ID, productID, 200)
	require.ErrorIs(t, err, ErrNotFound)

	require.ErrorIs(t, repo.DeleteRow(ctx, pt.ID, productID, 200), ErrNotFound)
}

func TestGormRepo_LockShared(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	gdb := testutil.NewDB(t)
	pt := testutil.Table(t, gdb, "2026")

	err := gdb.Transaction(func(tx *gorm.DB) error {
		repo := (&GormRepo{DB: gdb}).WithTx(tx)
		got, err := repo.LockShared(ctx, pt.ID)
		require.NoError(t, err)
		assert.Equal(t, pt.ID, got.ID)
		assert.Equal(t, "2026", got.Name)

		_, err = repo.LockShared(ctx, uuid.New())
		require.ErrorIs(t, err, ErrNotFound)
		return nil
	})
	require.NoError(t, err)
}

func TestGormRepo_CreateTable_VersionsByName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := &GormRepo{DB: testutil.NewDB(t)}

	a, err := repo.CreateTable(ctx, "retail")
	require.NoError(t, err)
	b, err := repo.CreateTable(ctx, "retail")
	require.NoError(t, err)
	c, err := repo.CreateTable(ctx, "outlet")
	require.NoError(t, err)

	assert.Equal(t, 1, a.Version)
	assert.Equal(t, 2, b.Version)
	assert.Equal(t, 1, c.Version)

	_, err = repo.CreateTable(ctx, "")
	require.ErrorIs(t, err, ErrValidation)

	tables, err := repo.ListTables(ctx)
	require.NoError(t, err)
	assert.Len(t, tables, 3)
}

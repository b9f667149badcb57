package pricing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/catalog"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/grade"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/pricetable"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/siteconfig"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/testutil"
)

type fixture struct {
	svc     *Service
	tables  *pricetable.GormRepo
	site    *siteconfig.GormRepo
	table   models.PriceTable
	product uuid.UUID
	velvet  models.Fabric
	leather models.Fabric
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb := testutil.NewDB(t)
	f := &fixture{
		tables: &pricetable.GormRepo{DB: gdb},
		site:   &siteconfig.GormRepo{DB: gdb},
	}
	f.svc = &Service{Tables: f.tables, Catalog: &catalog.GormRepo{DB: gdb}, Site: f.site}
	f.table = testutil.Table(t, gdb, "2026")
	f.velvet = testutil.Fabric(t, gdb, "Velvet", grade.G2000)
	f.leather = testutil.Fabric(t, gdb, "Nappa", grade.Leather)
	f.product = uuid.New()
	return f
}

func (f *fixture) upsert(t *testing.T, prices models.Prices, discount decimal.NullDecimal) {
	t.Helper()
	_, err := f.tables.UpsertRows(context.Background(), f.table.ID, []pricetable.RowInput{
		{ProductID: f.product, MeasureCM: 200, Prices: prices, DiscountPercent: discount},
	})
	require.NoError(t, err)
}

func TestResolve_AppliesRowDiscount(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	prices := testutil.Ladder(1000, 100)
	prices.G2000 = decimal.NewFromInt(1500)
	f.upsert(t, prices, decimal.NewNullDecimal(decimal.NewFromInt(10)))

	q, err := f.svc.Resolve(context.Background(), f.table.ID, f.product, f.velvet.ID, 200)
	require.NoError(t, err)
	assert.True(t, q.Available)
	assert.Equal(t, grade.ColumnG2000, q.Column)
	assert.Equal(t, "1500.00", q.UnitPriceOriginal.StringFixed(2))
	assert.Equal(t, "1350.00", q.UnitPrice.StringFixed(2))
	assert.Equal(t, "10.00", q.DiscountPercent.StringFixed(2))
}

func TestResolve_ZeroColumnIsUnavailable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	prices := testutil.Ladder(1000, 100)
	prices.Leather = decimal.Zero
	f.upsert(t, prices, decimal.NullDecimal{})

	q, err := f.svc.Resolve(context.Background(), f.table.ID, f.product, f.leather.ID, 200)
	require.NoError(t, err)
	assert.False(t, q.Available)
	assert.True(t, q.UnitPrice.IsZero())
}

func TestResolve_MissingRowIsUnavailable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	q, err := f.svc.Resolve(context.Background(), f.table.ID, f.product, f.velvet.ID, 240)
	require.NoError(t, err)
	assert.False(t, q.Available)
}

func TestResolve_UnknownFabric(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.svc.Resolve(context.Background(), f.table.ID, f.product, uuid.New(), 200)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_FeaturedDiscountWhenRowHasNone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	prices := testutil.Ladder(1000, 100)
	f.upsert(t, prices, decimal.NullDecimal{})
	require.NoError(t, f.site.SetFeaturedDiscount(ctx, f.product, decimal.NewFromInt(20)))

	q, err := f.svc.Resolve(ctx, f.table.ID, f.product, f.velvet.ID, 200)
	require.NoError(t, err)
	assert.Equal(t, "20.00", q.DiscountPercent.StringFixed(2))
	assert.Equal(t, "880.00", q.UnitPrice.StringFixed(2))

	f.upsert(t, prices, decimal.NewNullDecimal(decimal.NewFromInt(5)))
	q, err = f.svc.Resolve(ctx, f.table.ID, f.product, f.velvet.ID, 200)
	require.NoError(t, err)
	assert.Equal(t, "5.00", q.DiscountPercent.StringFixed(2), "row discount wins")
	assert.Equal(t, "1045.00", q.UnitPrice.StringFixed(2))
}

func TestResolve_IsDeterministic(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.upsert(t, testutil.Ladder(999, 111), decimal.NewNullDecimal(decimal.RequireFromString("12.5")))

	first, err := f.svc.Resolve(context.Background(), f.table.ID, f.product, f.velvet.ID, 200)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := f.svc.Resolve(context.Background(), f.table.ID, f.product, f.velvet.ID, 200)
		require.NoError(t, err)
		assert.True(t, again.SamePrice(first.UnitPrice, first.UnitPriceOriginal, first.DiscountPercent))
	}
}

func TestResolveActive(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	f.upsert(t, testutil.Ladder(1000, 100), decimal.NullDecimal{})

	_, err := f.svc.ResolveActive(ctx, f.product, f.velvet.ID, 200)
	require.ErrorIs(t, err, siteconfig.ErrNoActiveTable)

	require.NoError(t, f.site.SetActiveTable(ctx, f.table.ID))
	q, err := f.svc.ResolveActive(ctx, f.product, f.velvet.ID, 200)
	require.NoError(t, err)
	assert.True(t, q.Available)
	assert.Equal(t, f.table.ID, q.TableID)
}

func TestService_WithTx(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.upsert(t, testutil.Ladder(1000, 100), decimal.NullDecimal{})

	err := f.tables.DB.Transaction(func(tx *gorm.DB) error {
		q, err := f.svc.WithTx(tx).Resolve(context.Background(), f.table.ID, f.product, f.velvet.ID, 200)
		require.NoError(t, err)
		assert.True(t, q.Available)
		return nil
	})
	require.NoError(t, err)
}

func TestApply_RoundsHalfUp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "1350.00", Apply(decimal.NewFromInt(1500), decimal.NewFromInt(10)).StringFixed(2))
	assert.Equal(t, "0.01", Apply(decimal.RequireFromString("0.01"), decimal.NewFromInt(50)).StringFixed(2))
	assert.Equal(t, "99.99", Apply(decimal.RequireFromString("99.99"), decimal.Zero).StringFixed(2))
}

func TestEffectiveDiscount(t *testing.T) {
	t.Parallel()

	ten := decimal.NewFromInt(10)
	five := decimal.NewFromInt(5)

	assert.True(t, EffectiveDiscount(decimal.NewNullDecimal(ten), five, true).Equal(ten))
	assert.True(t, EffectiveDiscount(decimal.NewNullDecimal(decimal.Zero), five, true).Equal(five))
	assert.True(t, EffectiveDiscount(decimal.NullDecimal{}, five, true).Equal(five))
	assert.True(t, EffectiveDiscount(decimal.NullDecimal{}, five, false).IsZero())
}

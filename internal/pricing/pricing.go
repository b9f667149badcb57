// Package pricing resolves the unit price of a (product, fabric, measure)
// selection against one price table.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/catalog"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/grade"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/pricetable"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/siteconfig"
	"github.com/BRRODORTEGA/SOFA-sub000/pkg/logging"
)

var ErrNotFound = errors.New("not found")

var hundred = decimal.NewFromInt(100)

// Quote is the outcome of a resolution. An unavailable quote is a normal
// result: the selection simply cannot be sold from this table.
type Quote struct {
	TableID           uuid.UUID       `json:"price_table_id"`
	Column            grade.Column    `json:"-"`
	Grade             grade.Grade     `json:"grade"`
	Available         bool            `json:"available"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	UnitPriceOriginal decimal.Decimal `json:"unit_price_original"`
	DiscountPercent   decimal.Decimal `json:"discount_percent"`
}

// SamePrice reports whether two quotes would produce the same cart snapshot.
func (q Quote) SamePrice(unit, original, discount decimal.Decimal) bool {
	return q.UnitPrice.Equal(unit) && q.UnitPriceOriginal.Equal(original) && q.DiscountPercent.Equal(discount)
}

type Service struct {
	Tables  *pricetable.GormRepo
	Catalog *catalog.GormRepo
	Site    *siteconfig.GormRepo
}

// WithTx binds every repository to tx.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	return &Service{
		Tables:  s.Tables.WithTx(tx),
		Catalog: s.Catalog.WithTx(tx),
		Site:    s.Site.WithTx(tx),
	}
}

func (s *Service) Resolve(ctx context.Context, tableID, productID, fabricID uuid.UUID, measureCM int) (Quote, error) {
	l := logging.FromContext(ctx).With("svc", "pricing.resolve")

	fabric, err := s.Catalog.GetFabric(ctx, fabricID)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Quote{}, fmt.Errorf("fabric %s: %w", fabricID, ErrNotFound)
		}
		return Quote{}, err
	}

	col := fabric.Column()
	q := Quote{
		TableID:           tableID,
		Column:            col,
		Grade:             fabric.Grade,
		UnitPrice:         decimal.Zero,
		UnitPriceOriginal: decimal.Zero,
		DiscountPercent:   decimal.Zero,
	}

	row, err := s.Tables.GetRow(ctx, tableID, productID, measureCM)
	if errors.Is(err, pricetable.ErrNotFound) {
		l.Debug("no price row", "product_id", productID, "measure_cm", measureCM)
		return q, nil
	}
	if err != nil {
		return Quote{}, err
	}

	original := row.Prices.Get(col)
	if !original.IsPositive() {
		return q, nil
	}

	discount, err := s.discount(ctx, row.DiscountPercent, productID)
	if err != nil {
		return Quote{}, err
	}

	q.Available = true
	q.UnitPriceOriginal = original
	q.DiscountPercent = discount
	q.UnitPrice = Apply(original, discount)
	return q, nil
}

// ResolveActive resolves against the table currently published on the site.
func (s *Service) ResolveActive(ctx context.Context, productID, fabricID uuid.UUID, measureCM int) (Quote, error) {
	tableID, err := s.Site.ActiveTableID(ctx)
	if err != nil {
		return Quote{}, err
	}
	return s.Resolve(ctx, tableID, productID, fabricID, measureCM)
}

func (s *Service) discount(ctx context.Context, rowDiscount decimal.NullDecimal, productID uuid.UUID) (decimal.Decimal, error) {
	if rowDiscount.Valid && rowDiscount.Decimal.IsPositive() {
		return rowDiscount.Decimal, nil
	}
	pct, ok, err := s.Site.FeaturedDiscount(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return EffectiveDiscount(rowDiscount, pct, ok), nil
}

// EffectiveDiscount picks the row discount when it is set and positive, then
// the featured override, then zero. The row is the more specific of the two.
func EffectiveDiscount(row decimal.NullDecimal, featured decimal.Decimal, hasFeatured bool) decimal.Decimal {
	if row.Valid && row.Decimal.IsPositive() {
		return row.Decimal
	}
	if hasFeatured && featured.IsPositive() {
		return featured
	}
	return decimal.Zero
}

// Apply returns original reduced by percent, rounded half-up to cents.
func Apply(original, percent decimal.Decimal) decimal.Decimal {
	return original.Mul(hundred.Sub(percent)).Div(hundred).Round(2)
}

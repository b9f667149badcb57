// Package siteconfig persists the storefront settings the pricing engine
// consumes: the active price table and per-product featured discounts.
package siteconfig

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
)

var (
	ErrNoActiveTable = errors.New("no active price table")
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation")
)

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) WithTx(tx *gorm.DB) *GormRepo {
	return &GormRepo{DB: tx}
}

func (r *GormRepo) ActiveTableID(ctx context.Context) (uuid.UUID, error) {
	var cfg models.SiteConfig
	err := r.DB.WithContext(ctx).First(&cfg, "id = ?", models.SiteConfigID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && cfg.ActivePriceTableID == nil) {
		return uuid.Nil, ErrNoActiveTable
	}
	if err != nil {
		return uuid.Nil, err
	}
	return *cfg.ActivePriceTableID, nil
}

// SetActiveTable records tableID as the active table and moves the Active flag
// onto it.
func (r *GormRepo) SetActiveTable(ctx context.Context, tableID uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.PriceTable{}).Where("id = ?", tableID).UpdateColumn("active", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("price table %s: %w", tableID, ErrNotFound)
		}
		if err := tx.Model(&models.PriceTable{}).
			Where("id <> ? AND active = ?", tableID, true).
			UpdateColumn("active", false).Error; err != nil {
			return err
		}

		cfg := models.SiteConfig{ID: models.SiteConfigID, ActivePriceTableID: &tableID, UpdatedAt: time.Now().UTC()}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"active_price_table_id", "updated_at"}),
		}).Create(&cfg).Error
	})
}

// FeaturedDiscount returns the override percent for a product, or false when
// there is none.
func (r *GormRepo) FeaturedDiscount(ctx context.Context, productID uuid.UUID) (decimal.Decimal, bool, error) {
	var fd models.FeaturedDiscount
	err := r.DB.WithContext(ctx).Take(&fd, "product_id = ?", productID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return fd.Percent, true, nil
}

func (r *GormRepo) ListFeaturedDiscounts(ctx context.Context) ([]models.FeaturedDiscount, error) {
	var out []models.FeaturedDiscount
	if err := r.DB.WithContext(ctx).Order("product_id").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) SetFeaturedDiscount(ctx context.Context, productID uuid.UUID, percent decimal.Decimal) error {
	if percent.Sign() <= 0 || percent.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("percent must be within (0, 100]: %w", ErrValidation)
	}
	fd := models.FeaturedDiscount{ProductID: productID, Percent: percent}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "product_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"percent", "updated_at"}),
	}).Create(&fd).Error
}

func (r *GormRepo) ClearFeaturedDiscount(ctx context.Context, productID uuid.UUID) error {
	res := r.DB.WithContext(ctx).Where("product_id = ?", productID).Delete(&models.FeaturedDiscount{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("featured discount for %s: %w", productID, ErrNotFound)
	}
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const SiteConfigID = 1

// SiteConfig is a single-row table.
type SiteConfig struct {
	ID                 uint       `gorm:"primaryKey" json:"id"`
	ActivePriceTableID *uuid.UUID `json:"active_price_table_id"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// FeaturedDiscount overrides the discount of a product when its price row has
// none.
type FeaturedDiscount struct {
	ProductID uuid.UUID       `gorm:"primaryKey"                 json:"product_id"`
	Percent   decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"percent"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&Category{}, &Family{}, &Fabric{}, &Product{}, &SizeVariant{},
		&PriceTable{}, &PriceRow{},
		&Cart{}, &CartLine{}, &Coupon{},
		&Order{}, &OrderItem{},
		&SiteConfig{}, &FeaturedDiscount{},
	}
}

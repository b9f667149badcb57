package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CouponKind string

const (
	CouponPercent CouponKind = "percent"
	CouponFixed   CouponKind = "fixed"
)

// Coupon is either a percentage or a fixed amount, never both. Value is read
// according to Kind.
type Coupon struct {
	ID              uuid.UUID           `gorm:"primaryKey"                   json:"id"`
	Code            string              `gorm:"uniqueIndex;size:64;not null" json:"code"`
	Kind            CouponKind          `gorm:"size:16;not null"             json:"kind"`
	Value           decimal.Decimal     `gorm:"type:decimal(12,2);not null"  json:"value"`
	MinimumSubtotal decimal.NullDecimal `gorm:"type:decimal(12,2)"           json:"minimum_subtotal"`
	Active          bool                `gorm:"not null"                     json:"active"`
	CreatedAt       time.Time           `json:"created_at"`
}

func (c *Coupon) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

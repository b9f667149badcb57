package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Side string

const (
	SideNone  Side = ""
	SideLeft  Side = "LEFT"
	SideRight Side = "RIGHT"
)

func (s Side) Valid() bool {
	return s == SideLeft || s == SideRight
}

type Cart struct {
	ID             uuid.UUID       `gorm:"primaryKey"                              json:"id"`
	CustomerID     uuid.UUID       `gorm:"uniqueIndex;not null"                    json:"customer_id"`
	CouponCode     *string         `gorm:"size:64"                                 json:"coupon_code,omitempty"`
	CouponDiscount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"   json:"coupon_discount"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	Lines []CartLine `gorm:"foreignKey:CartID" json:"lines"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// CartLine carries the price snapshot taken when the line was added or last
// revalidated.
type CartLine struct {
	ID                uuid.UUID       `gorm:"primaryKey"                                json:"id"`
	CartID            uuid.UUID       `gorm:"uniqueIndex:idx_cart_line_key;not null"    json:"cart_id"`
	ProductID         uuid.UUID       `gorm:"uniqueIndex:idx_cart_line_key;not null"    json:"product_id"`
	FabricID          uuid.UUID       `gorm:"uniqueIndex:idx_cart_line_key;not null"    json:"fabric_id"`
	MeasureCM         int             `gorm:"uniqueIndex:idx_cart_line_key;not null"    json:"measure_cm"`
	Side              Side            `gorm:"uniqueIndex:idx_cart_line_key;size:8;not null" json:"side,omitempty"`
	Quantity          int             `gorm:"not null;check:quantity>0"                 json:"quantity"`
	Position          int             `gorm:"not null"                                  json:"position"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(12,2);not null"               json:"unit_price"`
	UnitPriceOriginal decimal.Decimal `gorm:"type:decimal(12,2);not null"               json:"unit_price_original"`
	DiscountPercent   decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"      json:"discount_percent"`
	Updated           bool            `gorm:"not null;default:false"                    json:"updated"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (l *CartLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

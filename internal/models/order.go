package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const OrderAwaitingApproval = "awaiting_approval"

type Order struct {
	ID             uuid.UUID       `gorm:"primaryKey"                            json:"id"`
	CustomerID     uuid.UUID       `gorm:"index;not null"                        json:"customer_id"`
	PriceTableID   uuid.UUID       `gorm:"not null"                              json:"price_table_id"`
	Status         string          `gorm:"size:32;not null"                      json:"status"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"           json:"subtotal"`
	ItemDiscount   decimal.Decimal `gorm:"type:decimal(12,2);not null"           json:"item_discount"`
	CouponCode     *string         `gorm:"size:64"                               json:"coupon_code,omitempty"`
	CouponDiscount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"coupon_discount"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null"           json:"total"`
	CreatedAt      time.Time       `json:"created_at"`

	Items []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

type OrderItem struct {
	ID                uuid.UUID       `gorm:"primaryKey"                   json:"id"`
	OrderID           uuid.UUID       `gorm:"index;not null"               json:"order_id"`
	ProductID         uuid.UUID       `gorm:"not null"                     json:"product_id"`
	FabricID          uuid.UUID       `gorm:"not null"                     json:"fabric_id"`
	MeasureCM         int             `gorm:"not null"                     json:"measure_cm"`
	Side              Side            `gorm:"size:8;not null"              json:"side,omitempty"`
	Quantity          int             `gorm:"not null;check:quantity>0"    json:"quantity"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(12,2);not null"  json:"unit_price"`
	UnitPriceOriginal decimal.Decimal `gorm:"type:decimal(12,2);not null"  json:"unit_price_original"`
	DiscountPercent   decimal.Decimal `gorm:"type:decimal(5,2);not null"   json:"discount_percent"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

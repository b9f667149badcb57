package events

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	CartLineAdded      = "cart_line_added"
	CartLineUpdated    = "cart_line_updated"
	CartLineRemoved    = "cart_line_removed"
	CartRevalidated    = "cart_revalidated"
	CartCouponAttached = "cart_coupon_attached"
	CartCouponDetached = "cart_coupon_detached"

	PriceRowsUpserted  = "price_rows_upserted"
	PriceRowDeleted    = "price_row_deleted"
	PriceSkeleton      = "price_skeleton_created"
	PriceTableActive   = "price_table_activated"
	PriceTableImported = "price_table_imported"

	OrderPlaced = "order_placed"
)

type CartEvent struct {
	Type       string          `json:"type"`
	CustomerID uuid.UUID       `json:"customerID"`
	LineID     uuid.UUID       `json:"lineID,omitempty"`
	ProductID  uuid.UUID       `json:"productID,omitempty"`
	Quantity   int             `json:"quantity,omitempty"`
	UnitPrice  decimal.Decimal `json:"unitPrice,omitempty"`
	CouponCode string          `json:"couponCode,omitempty"`
	Updated    int             `json:"updated,omitempty"`
	Removed    int             `json:"removed,omitempty"`
}

type PriceTableEvent struct {
	Type      string    `json:"type"`
	TableID   uuid.UUID `json:"tableID"`
	ProductID uuid.UUID `json:"productID,omitempty"`
	MeasureCM int       `json:"measureCM,omitempty"`
	Rows      int       `json:"rows,omitempty"`
}

type OrderEvent struct {
	Type       string          `json:"type"`
	OrderID    uuid.UUID       `json:"orderID"`
	CustomerID uuid.UUID       `json:"customerID"`
	Items      int             `json:"items"`
	Total      decimal.Decimal `json:"total"`
	Status     string          `json:"status"`
}

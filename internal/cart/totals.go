package cart

import (
	"github.com/shopspring/decimal"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/coupon"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
)

type Totals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	ItemDiscount   decimal.Decimal `json:"item_discount"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	CouponDiscount decimal.Decimal `json:"coupon_discount"`
	CouponApplied  bool            `json:"coupon_applied"`
	CouponReason   coupon.Reason   `json:"coupon_reason,omitempty"`
	GrandTotal     decimal.Decimal `json:"grand_total"`
}

// ComputeTotals prices lines from their snapshots. code is the coupon code on
// the cart and c its definition, nil when the code no longer exists.
func ComputeTotals(lines []models.CartLine, code string, c *models.Coupon) Totals {
	t := Totals{
		Subtotal:       decimal.Zero,
		ItemDiscount:   decimal.Zero,
		CouponDiscount: decimal.Zero,
		CouponCode:     code,
	}
	for _, ln := range lines {
		qty := decimal.NewFromInt(int64(ln.Quantity))
		t.Subtotal = t.Subtotal.Add(ln.UnitPriceOriginal.Mul(qty))
		t.ItemDiscount = t.ItemDiscount.Add(ln.UnitPriceOriginal.Sub(ln.UnitPrice).Mul(qty))
	}

	discounted := t.Subtotal.Sub(t.ItemDiscount)
	switch {
	case code == "":
	case c == nil:
		t.CouponReason = coupon.ReasonUnknown
	default:
		res := coupon.Evaluate(discounted, *c)
		t.CouponDiscount = res.Discount
		t.CouponApplied = res.Applied
		t.CouponReason = res.Reason
	}

	t.GrandTotal = discounted.Sub(t.CouponDiscount)
	if t.GrandTotal.IsNegative() {
		t.GrandTotal = decimal.Zero
	}
	return t
}

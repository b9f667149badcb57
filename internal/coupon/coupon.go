// Package coupon evaluates cart-level coupons and stores their definitions.
package coupon

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
)

type Reason string

const (
	ReasonNone         Reason = ""
	ReasonBelowMinimum Reason = "below_minimum"
	ReasonInactive     Reason = "inactive"
	ReasonUnknown      Reason = "unknown_coupon"
)

type Result struct {
	Discount decimal.Decimal `json:"discount"`
	Applied  bool            `json:"applied"`
	Reason   Reason          `json:"reason,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// Evaluate computes the coupon discount on a subtotal that already carries the
// item discounts. The result is never negative and never exceeds subtotal.
func Evaluate(subtotal decimal.Decimal, c models.Coupon) Result {
	none := Result{Discount: decimal.Zero}
	if !c.Active {
		none.Reason = ReasonInactive
		return none
	}
	if c.MinimumSubtotal.Valid && subtotal.LessThan(c.MinimumSubtotal.Decimal) {
		none.Reason = ReasonBelowMinimum
		return none
	}
	if !subtotal.IsPositive() {
		return none
	}

	var d decimal.Decimal
	switch c.Kind {
	case models.CouponPercent:
		d = subtotal.Mul(c.Value).Div(hundred).Round(2)
	case models.CouponFixed:
		d = c.Value
	default:
		none.Reason = ReasonUnknown
		return none
	}
	if d.IsNegative() {
		d = decimal.Zero
	}
	if d.GreaterThan(subtotal) {
		d = subtotal
	}
	return Result{Discount: d, Applied: d.IsPositive()}
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate enforces the percent/fixed variant rules.
func Validate(c models.Coupon) error {
	if NormalizeCode(c.Code) == "" {
		return fmt.Errorf("code required: %w", ErrValidation)
	}
	switch c.Kind {
	case models.CouponPercent:
		if !c.Value.IsPositive() || c.Value.GreaterThan(hundred) {
			return fmt.Errorf("percent coupon value must be within (0, 100]: %w", ErrValidation)
		}
	case models.CouponFixed:
		if !c.Value.IsPositive() {
			return fmt.Errorf("fixed coupon value must be positive: %w", ErrValidation)
		}
	default:
		return fmt.Errorf("kind must be %q or %q: %w", models.CouponPercent, models.CouponFixed, ErrValidation)
	}
	if c.MinimumSubtotal.Valid && c.MinimumSubtotal.Decimal.IsNegative() {
		return fmt.Errorf("minimum_subtotal must not be negative: %w", ErrValidation)
	}
	return nil
}

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) WithTx(tx *gorm.DB) *GormRepo {
	return &GormRepo{DB: tx}
}

func (r *GormRepo) GetByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := r.DB.WithContext(ctx).Take(&c, "code = ?", NormalizeCode(code)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("coupon %q: %w", code, ErrNotFound)
		}
		return nil, err
	}
	return &c, nil
}

func (r *GormRepo) Create(ctx context.Context, c *models.Coupon) error {
	if err := Validate(*c); err != nil {
		return err
	}
	c.Code = NormalizeCode(c.Code)

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Coupon{}).Where("code = ?", c.Code).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("coupon %q exists: %w", c.Code, ErrConflict)
		}
		return tx.Create(c).Error
	})
}

func (r *GormRepo) SetActive(ctx context.Context, code string, active bool) error {
	res := r.DB.WithContext(ctx).Model(&models.Coupon{}).
		Where("code = ?", NormalizeCode(code)).
		UpdateColumn("active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("coupon %q: %w", code, ErrNotFound)
	}
	return nil
}

package cart

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) WithTx(tx *gorm.DB) *GormRepo {
	return &GormRepo{DB: tx}
}

// LockCart returns the customer's cart, creating it on first use, and holds a
// row lock on it until the surrounding transaction ends.
func (r *GormRepo) LockCart(ctx context.Context, customerID uuid.UUID) (*models.Cart, error) {
	fresh := models.Cart{CustomerID: customerID}
	if err := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "customer_id"}}, DoNothing: true}).
		Create(&fresh).Error; err != nil {
		return nil, err
	}
	return r.FindCart(ctx, customerID, true)
}

// FindCart returns nil when the customer has no cart yet.
func (r *GormRepo) FindCart(ctx context.Context, customerID uuid.UUID, lock bool) (*models.Cart, error) {
	q := r.DB.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var c models.Cart
	if err := q.Take(&c, "customer_id = ?", customerID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

func (r *GormRepo) Lines(ctx context.Context, cartID uuid.UUID) ([]models.CartLine, error) {
	var out []models.CartLine
	if err := r.DB.WithContext(ctx).Where("cart_id = ?", cartID).Order("position").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindLine looks a line up by its merge key and returns nil when absent.
func (r *GormRepo) FindLine(ctx context.Context, cartID uuid.UUID, k Key) (*models.CartLine, error) {
	var ln models.CartLine
	err := r.DB.WithContext(ctx).
		Where("cart_id = ? AND product_id = ? AND fabric_id = ? AND measure_cm = ? AND side = ?",
			cartID, k.ProductID, k.FabricID, k.MeasureCM, k.Side).
		Take(&ln).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ln, nil
}

func (r *GormRepo) GetLine(ctx context.Context, cartID, lineID uuid.UUID) (*models.CartLine, error) {
	var ln models.CartLine
	err := r.DB.WithContext(ctx).Where("id = ? AND cart_id = ?", lineID, cartID).Take(&ln).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ln, nil
}

func (r *GormRepo) NextPosition(ctx context.Context, cartID uuid.UUID) (int, error) {
	var last int
	err := r.DB.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("cart_id = ?", cartID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&last).Error
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

func (r *GormRepo) CreateLine(ctx context.Context, ln *models.CartLine) error {
	return r.DB.WithContext(ctx).Create(ln).Error
}

// SaveSnapshot writes quantity, price snapshot and the updated flag.
func (r *GormRepo) SaveSnapshot(ctx context.Context, ln *models.CartLine) error {
	return r.DB.WithContext(ctx).
		Model(ln).
		Select("quantity", "unit_price", "unit_price_original", "discount_percent", "updated", "updated_at").
		Updates(ln).Error
}

func (r *GormRepo) SetQuantity(ctx context.Context, cartID, lineID uuid.UUID, qty int) (bool, error) {
	res := r.DB.WithContext(ctx).
		Model(&models.CartLine{}).
		Where("id = ? AND cart_id = ?", lineID, cartID).
		Update("quantity", qty)
	return res.RowsAffected > 0, res.Error
}

func (r *GormRepo) DeleteLine(ctx context.Context, cartID, lineID uuid.UUID) (bool, error) {
	res := r.DB.WithContext(ctx).Where("id = ? AND cart_id = ?", lineID, cartID).Delete(&models.CartLine{})
	return res.RowsAffected > 0, res.Error
}

func (r *GormRepo) ClearLines(ctx context.Context, cartID uuid.UUID) error {
	return r.DB.WithContext(ctx).Where("cart_id = ?", cartID).Delete(&models.CartLine{}).Error
}

// SetCoupon stores code (nil clears it) and resets the cached discount.
func (r *GormRepo) SetCoupon(ctx context.Context, cartID uuid.UUID, code *string) error {
	var v any
	if code != nil {
		v = *code
	}
	return r.DB.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(map[string]any{"coupon_code": v, "coupon_discount": decimal.Zero}).Error
}

func (r *GormRepo) SetCouponDiscount(ctx context.Context, cartID uuid.UUID, d decimal.Decimal) error {
	return r.DB.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Update("coupon_discount", d).Error
}

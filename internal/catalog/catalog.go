// Package catalog reads the products, fabrics and size variants maintained by
// the back office.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
)

var ErrNotFound = errors.New("not found")

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) WithTx(tx *gorm.DB) *GormRepo {
	return &GormRepo{DB: tx}
}

func (r *GormRepo) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.DB.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func (r *GormRepo) ListProducts(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	if err := r.DB.WithContext(ctx).Order("name").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) GetFabric(ctx context.Context, id uuid.UUID) (*models.Fabric, error) {
	var f models.Fabric
	if err := r.DB.WithContext(ctx).First(&f, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("fabric %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &f, nil
}

// FabricOffered reports whether the fabric is linked to the product.
func (r *GormRepo) FabricOffered(ctx context.Context, productID, fabricID uuid.UUID) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Table("product_fabrics").
		Where("product_id = ? AND fabric_id = ?", productID, fabricID).
		Count(&n).Error
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListProductFabrics returns the fabrics offered for a product.
func (r *GormRepo) ListProductFabrics(ctx context.Context, productID uuid.UUID) ([]models.Fabric, error) {
	var out []models.Fabric
	err := r.DB.WithContext(ctx).
		Joins("JOIN product_fabrics pf ON pf.fabric_id = fabrics.id").
		Where("pf.product_id = ?", productID).
		Order("fabrics.name").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) ListVariants(ctx context.Context, productID uuid.UUID) ([]models.SizeVariant, error) {
	var out []models.SizeVariant
	err := r.DB.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("measure_cm").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ProductRef is a product identified by the names an admin sees.
type ProductRef struct {
	Category string
	Family   string
	Product  string
}

// ResolveProduct finds a product by name and checks it sits in the named
// category and family.
func (r *GormRepo) ResolveProduct(ctx context.Context, ref ProductRef) (uuid.UUID, error) {
	var row struct {
		ID uuid.UUID
	}
	err := r.DB.WithContext(ctx).
		Model(&models.Product{}).
		Select("products.id").
		Joins("JOIN categories c ON c.id = products.category_id").
		Joins("JOIN families f ON f.id = products.family_id").
		Where("products.name = ? AND c.name = ? AND f.name = ?", ref.Product, ref.Category, ref.Family).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, fmt.Errorf("product %q in %s/%s: %w", ref.Product, ref.Category, ref.Family, ErrNotFound)
		}
		return uuid.Nil, err
	}
	return row.ID, nil
}

// ProductRefs maps product ids back to names.
func (r *GormRepo) ProductRefs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]ProductRef, error) {
	out := make(map[uuid.UUID]ProductRef, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var rows []struct {
		ID       uuid.UUID
		Product  string
		Category string
		Family   string
	}
	err := r.DB.WithContext(ctx).
		Model(&models.Product{}).
		Select("products.id AS id, products.name AS product, c.name AS category, f.name AS family").
		Joins("JOIN categories c ON c.id = products.category_id").
		Joins("JOIN families f ON f.id = products.family_id").
		Where("products.id IN ?", ids).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = ProductRef{Category: row.Category, Family: row.Family, Product: row.Product}
	}
	return out, nil
}

package pricetable

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/catalog"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
)

// Synchronizer materializes zero-priced rows for size variants that a table
// does not price yet.
type Synchronizer struct {
	Repo    *GormRepo
	Catalog *catalog.GormRepo
}

// FindMissing lists the product's variants with no row in the table, by
// measure.
func (s *Synchronizer) FindMissing(ctx context.Context, tableID, productID uuid.UUID) ([]models.SizeVariant, error) {
	if _, err := s.Repo.GetTable(ctx, tableID); err != nil {
		return nil, err
	}
	variants, err := s.variants(ctx, productID)
	if err != nil {
		return nil, err
	}
	rows, err := s.Repo.ListProductRows(ctx, tableID, productID)
	if err != nil {
		return nil, err
	}

	have := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		have[r.MeasureCM] = struct{}{}
	}
	missing := []models.SizeVariant{}
	for _, v := range variants {
		if _, ok := have[v.MeasureCM]; !ok {
			missing = append(missing, v)
		}
	}
	return missing, nil
}

// CreateSkeleton creates zero-priced rows for the given measures, copying the
// variant dimensions. Measures already in the table are skipped, so a repeated
// call returns 0.
func (s *Synchronizer) CreateSkeleton(ctx context.Context, tableID, productID uuid.UUID, measures []int) (int, error) {
	variants, err := s.variants(ctx, productID)
	if err != nil {
		return 0, err
	}
	byMeasure := make(map[int]models.SizeVariant, len(variants))
	for _, v := range variants {
		byMeasure[v.MeasureCM] = v
	}

	seen := make(map[int]struct{}, len(measures))
	rows := make([]models.PriceRow, 0, len(measures))
	for _, m := range measures {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}

		v, ok := byMeasure[m]
		if !ok {
			return 0, fmt.Errorf("no size variant %dcm for product %s: %w", m, productID, ErrValidation)
		}
		rows = append(rows, models.PriceRow{
			ProductID:  productID,
			MeasureCM:  m,
			Dimensions: v.Dimensions,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return s.Repo.InsertMissing(ctx, tableID, rows)
}

func (s *Synchronizer) variants(ctx context.Context, productID uuid.UUID) ([]models.SizeVariant, error) {
	if _, err := s.Catalog.GetProduct(ctx, productID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, fmt.Errorf("product %s: %w", productID, ErrNotFound)
		}
		return nil, err
	}
	return s.Catalog.ListVariants(ctx, productID)
}

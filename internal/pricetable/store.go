// Package pricetable stores versioned price tables, checks their cross-row
// invariants and keeps them in step with the catalog's size variants.
package pricetable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/grade"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
)

var (
	ErrValidation = errors.New("validation")
	ErrNotFound   = errors.New("not found")
)

var hundred = decimal.NewFromInt(100)

// RowInput is one row of a partial batch. Fields left out are written as zero.
type RowInput struct {
	ProductID uuid.UUID `json:"product_id"`
	MeasureCM int       `json:"measure_cm"`
	models.Dimensions
	Prices          models.Prices       `json:"prices"`
	DiscountPercent decimal.NullDecimal `json:"discount_percent"`
}

func (in RowInput) Validate() error {
	if in.ProductID == uuid.Nil {
		return fmt.Errorf("product_id required: %w", ErrValidation)
	}
	if in.MeasureCM <= 0 {
		return fmt.Errorf("measure_cm must be positive: %w", ErrValidation)
	}
	d := in.Dimensions
	for _, v := range []float64{d.Width, d.Depth, d.Height, d.SeatWidth, d.SeatHeight, d.ArmWidth, d.FabricConsumption, d.LeatherConsumption} {
		if v < 0 {
			return fmt.Errorf("dimensions must not be negative: %w", ErrValidation)
		}
	}
	for _, c := range grade.Columns {
		if in.Prices.Get(c).IsNegative() {
			return fmt.Errorf("%s must not be negative: %w", c.Field(), ErrValidation)
		}
	}
	if in.DiscountPercent.Valid {
		p := in.DiscountPercent.Decimal
		if p.IsNegative() || p.GreaterThan(hundred) {
			return fmt.Errorf("discount_percent must be within 0..100: %w", ErrValidation)
		}
	}
	return nil
}

func (in RowInput) row(tableID uuid.UUID) models.PriceRow {
	return models.PriceRow{
		PriceTableID:    tableID,
		ProductID:       in.ProductID,
		MeasureCM:       in.MeasureCM,
		Dimensions:      in.Dimensions,
		Prices:          in.Prices,
		DiscountPercent: in.DiscountPercent,
	}
}

var rowKey = []clause.Column{{Name: "price_table_id"}, {Name: "product_id"}, {Name: "measure_cm"}}

var rowValueColumns = []string{
	"width", "depth", "height", "seat_width", "seat_height", "arm_width",
	"fabric_consumption", "leather_consumption",
	"price_g1000", "price_g2000", "price_g3000", "price_g4000",
	"price_g5000", "price_g6000", "price_g7000", "price_leather",
	"discount_percent", "updated_at",
}

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) WithTx(tx *gorm.DB) *GormRepo {
	return &GormRepo{DB: tx}
}

func (r *GormRepo) CreateTable(ctx context.Context, name string) (*models.PriceTable, error) {
	if name == "" {
		return nil, fmt.Errorf("name required: %w", ErrValidation)
	}

	t := models.PriceTable{Name: name}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var latest int
		if err := tx.Model(&models.PriceTable{}).
			Where("name = ?", name).
			Select("COALESCE(MAX(version), 0)").
			Scan(&latest).Error; err != nil {
			return err
		}
		t.Version = latest + 1
		return tx.Create(&t).Error
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormRepo) GetTable(ctx context.Context, id uuid.UUID) (*models.PriceTable, error) {
	var t models.PriceTable
	if err := r.DB.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("price table %s: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return &t, nil
}

func (r *GormRepo) ListTables(ctx context.Context) ([]models.PriceTable, error) {
	var out []models.PriceTable
	if err := r.DB.WithContext(ctx).Order("name, version DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) GetRow(ctx context.Context, tableID, productID uuid.UUID, measureCM int) (*models.PriceRow, error) {
	var row models.PriceRow
	err := r.DB.WithContext(ctx).
		Where("price_table_id = ? AND product_id = ? AND measure_cm = ?", tableID, productID, measureCM).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("price row %s/%d: %w", productID, measureCM, ErrNotFound)
		}
		return nil, err
	}
	return &row, nil
}

func (r *GormRepo) ListRows(ctx context.Context, tableID uuid.UUID) ([]models.PriceRow, error) {
	var out []models.PriceRow
	err := r.DB.WithContext(ctx).
		Where("price_table_id = ?", tableID).
		Order("product_id, measure_cm").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) ListProductRows(ctx context.Context, tableID, productID uuid.UUID) ([]models.PriceRow, error) {
	var out []models.PriceRow
	err := r.DB.WithContext(ctx).
		Where("price_table_id = ? AND product_id = ?", tableID, productID).
		Order("measure_cm").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpsertRows writes a partial batch keyed by (table, product, measure). Rows
// not named in the batch are left alone. Each row is a single atomic
// INSERT ... ON CONFLICT DO UPDATE and the whole batch commits together.
func (r *GormRepo) UpsertRows(ctx context.Context, tableID uuid.UUID, rows []RowInput) (int, error) {
	for i, in := range rows {
		if err := in.Validate(); err != nil {
			return 0, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockTable(tx, tableID); err != nil {
			return err
		}
		for _, in := range rows {
			row := in.row(tableID)
			if err := tx.Clauses(clause.OnConflict{
				Columns:   rowKey,
				DoUpdates: clause.AssignmentColumns(rowValueColumns),
			}).Create(&row).Error; err != nil {
				return fmt.Errorf("upsert %s/%d: %w", in.ProductID, in.MeasureCM, err)
			}
		}
		return touch(tx, tableID)
	})
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (r *GormRepo) DeleteRow(ctx context.Context, tableID, productID uuid.UUID, measureCM int) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockTable(tx, tableID); err != nil {
			return err
		}
		res := tx.Where("price_table_id = ? AND product_id = ? AND measure_cm = ?", tableID, productID, measureCM).
			Delete(&models.PriceRow{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("price row %s/%d: %w", productID, measureCM, ErrNotFound)
		}
		return touch(tx, tableID)
	})
}

// InsertMissing inserts rows whose key is not taken yet and returns how many
// were created.
func (r *GormRepo) InsertMissing(ctx context.Context, tableID uuid.UUID, rows []models.PriceRow) (int, error) {
	created := 0
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockTable(tx, tableID); err != nil {
			return err
		}
		for i := range rows {
			rows[i].PriceTableID = tableID
			res := tx.Clauses(clause.OnConflict{Columns: rowKey, DoNothing: true}).Create(&rows[i])
			if res.Error != nil {
				return res.Error
			}
			created += int(res.RowsAffected)
		}
		if created == 0 {
			return nil
		}
		return touch(tx, tableID)
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// LockShared reads the table and holds a share lock on its row until the
// surrounding transaction ends. Row writes lock the same row for update, so
// they wait for the holder.
func (r *GormRepo) LockShared(ctx context.Context, tableID uuid.UUID) (*models.PriceTable, error) {
	var t models.PriceTable
	err := r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "SHARE"}).First(&t, "id = ?", tableID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("price table %s: %w", tableID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func lockTable(tx *gorm.DB, tableID uuid.UUID) error {
	var t models.PriceTable
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&t, "id = ?", tableID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("price table %s: %w", tableID, ErrNotFound)
	}
	return err
}

func touch(tx *gorm.DB, tableID uuid.UUID) error {
	return tx.Model(&models.PriceTable{}).
		Where("id = ?", tableID).
		UpdateColumn("updated_at", time.Now().UTC()).Error
}

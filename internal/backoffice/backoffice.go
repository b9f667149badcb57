// Package backoffice wraps the price table maintenance an admin performs:
// editing rows, filling skeletons, importing sheets, publishing a table and
// managing coupons and featured discounts.
package backoffice

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/catalog"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/coupon"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/events"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/importer"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/pricetable"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/siteconfig"
	"github.com/BRRODORTEGA/SOFA-sub000/pkg/logging"
)

var ErrTableNotClean = errors.New("price table has violations")

// NotCleanError carries the violations that stopped a publish.
type NotCleanError struct {
	Violations []pricetable.Violation
}

func (e *NotCleanError) Error() string {
	return fmt.Sprintf("%d violation(s): %v", len(e.Violations), ErrTableNotClean)
}

func (e *NotCleanError) Unwrap() error { return ErrTableNotClean }

type Reindexer interface {
	Reindex(ctx context.Context, tableID uuid.UUID) (int, error)
}

type Service struct {
	Tables    *pricetable.GormRepo
	Catalog   *catalog.GormRepo
	Validator *pricetable.Validator
	Sync      *pricetable.Synchronizer
	Site      *siteconfig.GormRepo
	Coupons   *coupon.GormRepo
	Importer  *importer.Service
	Search    Reindexer
	Events    events.Publisher
}

func (s *Service) publish(ctx context.Context, ev events.PriceTableEvent) {
	if s.Events == nil {
		return
	}
	if err := s.Events.PublishEvent(ctx, events.TopicPriceTable, ev.TableID.String(), ev); err != nil {
		logging.FromContext(ctx).Warn("publish_event_error", "topic", events.TopicPriceTable, "error", err)
	}
}

// refreshSearch rebuilds the search index when tableID is the published table.
func (s *Service) refreshSearch(ctx context.Context, tableID uuid.UUID) {
	if s.Search == nil {
		return
	}
	l := logging.FromContext(ctx).With("svc", "backoffice.search")
	active, err := s.Site.ActiveTableID(ctx)
	if err != nil {
		if !errors.Is(err, siteconfig.ErrNoActiveTable) {
			l.Warn("active_table_error", "error", err)
		}
		return
	}
	if tableID != uuid.Nil && active != tableID {
		return
	}
	if _, err := s.Search.Reindex(ctx, active); err != nil {
		l.Warn("reindex_error", "price_table_id", active, "error", err)
	}
}

// Activate publishes the table. With requireClean the table must pass every
// validator rule first.
func (s *Service) Activate(ctx context.Context, tableID uuid.UUID, requireClean bool) error {
	l := logging.FromContext(ctx).With("svc", "backoffice.activate")

	if requireClean {
		violations, err := s.Validator.Validate(ctx, tableID)
		if err != nil {
			return err
		}
		if len(violations) > 0 {
			return &NotCleanError{Violations: violations}
		}
	}

	if err := s.Site.SetActiveTable(ctx, tableID); err != nil {
		if errors.Is(err, siteconfig.ErrNotFound) {
			return fmt.Errorf("price table %s: %w", tableID, pricetable.ErrNotFound)
		}
		return err
	}

	l.Info("price table activated", "price_table_id", tableID)
	s.publish(ctx, events.PriceTableEvent{Type: events.PriceTableActive, TableID: tableID})
	s.refreshSearch(ctx, tableID)
	return nil
}

func (s *Service) UpsertRows(ctx context.Context, tableID uuid.UUID, rows []pricetable.RowInput) (int, error) {
	n, err := s.Tables.UpsertRows(ctx, tableID, rows)
	if err != nil || n == 0 {
		return n, err
	}
	s.publish(ctx, events.PriceTableEvent{Type: events.PriceRowsUpserted, TableID: tableID, Rows: n})
	s.refreshSearch(ctx, tableID)
	return n, nil
}

func (s *Service) DeleteRow(ctx context.Context, tableID, productID uuid.UUID, measureCM int) error {
	if err := s.Tables.DeleteRow(ctx, tableID, productID, measureCM); err != nil {
		return err
	}
	s.publish(ctx, events.PriceTableEvent{Type: events.PriceRowDeleted, TableID: tableID, ProductID: productID, MeasureCM: measureCM})
	s.refreshSearch(ctx, tableID)
	return nil
}

// CreateSkeleton fills the given measures, or every missing one when measures
// is empty.
func (s *Service) CreateSkeleton(ctx context.Context, tableID, productID uuid.UUID, measures []int) (int, error) {
	if len(measures) == 0 {
		missing, err := s.Sync.FindMissing(ctx, tableID, productID)
		if err != nil {
			return 0, err
		}
		for _, v := range missing {
			measures = append(measures, v.MeasureCM)
		}
	}

	n, err := s.Sync.CreateSkeleton(ctx, tableID, productID, measures)
	if err != nil || n == 0 {
		return n, err
	}
	s.publish(ctx, events.PriceTableEvent{Type: events.PriceSkeleton, TableID: tableID, ProductID: productID, Rows: n})
	return n, nil
}

func (s *Service) Import(ctx context.Context, tableID uuid.UUID, r io.Reader) (int, error) {
	n, err := s.Importer.Import(ctx, tableID, r)
	if err != nil {
		return 0, err
	}
	logging.FromContext(ctx).With("svc", "backoffice.import").Info("sheet imported", "price_table_id", tableID, "rows", n)
	s.publish(ctx, events.PriceTableEvent{Type: events.PriceTableImported, TableID: tableID, Rows: n})
	s.refreshSearch(ctx, tableID)
	return n, nil
}

func (s *Service) Export(ctx context.Context, tableID uuid.UUID, w io.Writer) error {
	return s.Importer.Export(ctx, tableID, w)
}

func (s *Service) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	return s.Coupons.Create(ctx, c)
}

func (s *Service) SetFeaturedDiscount(ctx context.Context, productID uuid.UUID, percent decimal.Decimal) error {
	if _, err := s.Catalog.GetProduct(ctx, productID); err != nil {
		return err
	}
	if err := s.Site.SetFeaturedDiscount(ctx, productID, percent); err != nil {
		return err
	}
	s.refreshSearch(ctx, uuid.Nil)
	return nil
}

func (s *Service) ClearFeaturedDiscount(ctx context.Context, productID uuid.UUID) error {
	if err := s.Site.ClearFeaturedDiscount(ctx, productID); err != nil {
		return err
	}
	s.refreshSearch(ctx, uuid.Nil)
	return nil
}

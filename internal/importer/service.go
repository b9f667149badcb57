package importer

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/catalog"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/pricetable"
)

type Service struct {
	Catalog *catalog.GormRepo
	Tables  *pricetable.GormRepo
}

// Import parses the sheet and upserts its rows as one batch.
func (s *Service) Import(ctx context.Context, tableID uuid.UUID, r io.Reader) (int, error) {
	if _, err := s.Tables.GetTable(ctx, tableID); err != nil {
		return 0, err
	}
	rows, err := Parse(ctx, r, s.Catalog)
	if err != nil {
		return 0, err
	}
	return s.Tables.UpsertRows(ctx, tableID, rows)
}

func (s *Service) Export(ctx context.Context, tableID uuid.UUID, w io.Writer) error {
	if _, err := s.Tables.GetTable(ctx, tableID); err != nil {
		return err
	}
	rows, err := s.Tables.ListRows(ctx, tableID)
	if err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(rows))
	seen := make(map[uuid.UUID]struct{}, len(rows))
	for _, r := range rows {
		if _, ok := seen[r.ProductID]; !ok {
			seen[r.ProductID] = struct{}{}
			ids = append(ids, r.ProductID)
		}
	}
	refs, err := s.Catalog.ProductRefs(ctx, ids)
	if err != nil {
		return err
	}
	return Write(w, rows, refs)
}

package search

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/catalog"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/pricetable"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/siteconfig"
	"github.com/BRRODORTEGA/SOFA-sub000/pkg/logging"
)

const (
	defaultSize = 20
	maxSize     = 100
)

type Results struct {
	Total int64      `json:"total"`
	Items []Document `json:"items"`
}

type Indexer struct {
	Index   Index
	Catalog *catalog.GormRepo
	Tables  *pricetable.GormRepo
	Site    *siteconfig.GormRepo
}

// Reindex rebuilds the index from tableID and returns the number of documents.
func (x *Indexer) Reindex(ctx context.Context, tableID uuid.UUID) (int, error) {
	l := logging.FromContext(ctx).With("svc", "search.reindex")

	rows, err := x.Tables.ListRows(ctx, tableID)
	if err != nil {
		return 0, err
	}

	ids := make([]uuid.UUID, 0)
	seen := make(map[uuid.UUID]struct{})
	for _, r := range rows {
		if _, ok := seen[r.ProductID]; !ok {
			seen[r.ProductID] = struct{}{}
			ids = append(ids, r.ProductID)
		}
	}

	refs, err := x.Catalog.ProductRefs(ctx, ids)
	if err != nil {
		return 0, err
	}
	cat := Catalogue{Refs: refs, Fabrics: make(map[uuid.UUID][]models.Fabric, len(ids)), Featured: map[uuid.UUID]decimal.Decimal{}}
	for _, id := range ids {
		fabrics, err := x.Catalog.ListProductFabrics(ctx, id)
		if err != nil {
			return 0, err
		}
		cat.Fabrics[id] = fabrics
	}
	featured, err := x.Site.ListFeaturedDiscounts(ctx)
	if err != nil {
		return 0, err
	}
	for _, fd := range featured {
		cat.Featured[fd.ProductID] = fd.Percent
	}

	docs := BuildDocuments(tableID, rows, cat)
	if err := x.Index.Replace(ctx, docs); err != nil {
		return 0, err
	}
	l.Info("search index rebuilt", "price_table_id", tableID, "documents", len(docs))
	return len(docs), nil
}

// ReindexActive rebuilds the index from the published table.
func (x *Indexer) ReindexActive(ctx context.Context) (int, error) {
	tableID, err := x.Site.ActiveTableID(ctx)
	if err != nil {
		return 0, err
	}
	return x.Reindex(ctx, tableID)
}

func (x *Indexer) Search(ctx context.Context, query string, page, size int) (Results, error) {
	if size <= 0 {
		size = defaultSize
	}
	if size > maxSize {
		size = maxSize
	}
	if page < 1 {
		page = 1
	}
	total, docs, err := x.Index.Search(ctx, query, (page-1)*size, size)
	if err != nil {
		return Results{}, err
	}
	return Results{Total: total, Items: docs}, nil
}

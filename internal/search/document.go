// Package search keeps an Elasticsearch index of sellable products with the
// lowest price they can be bought for in the active table.
package search

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/catalog"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/pricing"
)

type Document struct {
	ProductID         uuid.UUID       `json:"product_id"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	Family            string          `json:"family"`
	TableID           uuid.UUID       `json:"price_table_id"`
	FromPrice         decimal.Decimal `json:"from_price"`
	FromPriceOriginal decimal.Decimal `json:"from_price_original"`
	MeasuresCM        []int           `json:"measures_cm"`
}

// Catalogue is the catalog data BuildDocuments needs.
type Catalogue struct {
	Refs     map[uuid.UUID]catalog.ProductRef
	Fabrics  map[uuid.UUID][]models.Fabric
	Featured map[uuid.UUID]decimal.Decimal
}

// BuildDocuments derives one document per product that has at least one
// sellable (row, offered fabric) pair. Products are ordered by name.
func BuildDocuments(tableID uuid.UUID, rows []models.PriceRow, cat Catalogue) []Document {
	byProduct := make(map[uuid.UUID]*Document)
	for _, row := range rows {
		ref, ok := cat.Refs[row.ProductID]
		if !ok {
			continue
		}
		featured, hasFeatured := cat.Featured[row.ProductID]
		discount := pricing.EffectiveDiscount(row.DiscountPercent, featured, hasFeatured)

		sellable := false
		for _, f := range cat.Fabrics[row.ProductID] {
			original := row.Prices.Get(f.Column())
			if !original.IsPositive() {
				continue
			}
			sellable = true
			unit := pricing.Apply(original, discount)

			doc := byProduct[row.ProductID]
			if doc == nil {
				doc = &Document{
					ProductID: row.ProductID, Name: ref.Product, Category: ref.Category, Family: ref.Family,
					TableID: tableID, FromPrice: unit, FromPriceOriginal: original,
				}
				byProduct[row.ProductID] = doc
			}
			if unit.LessThan(doc.FromPrice) {
				doc.FromPrice = unit
				doc.FromPriceOriginal = original
			}
		}
		if sellable {
			d := byProduct[row.ProductID]
			d.MeasuresCM = appendUnique(d.MeasuresCM, row.MeasureCM)
		}
	}

	out := make([]Document, 0, len(byProduct))
	for _, d := range byProduct {
		sort.Ints(d.MeasuresCM)
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func appendUnique(xs []int, v int) []int {
	for _, x := range xs {
		if x == v {
			return xs
		}
	}
	return append(xs, v)
}

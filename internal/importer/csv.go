// Package importer moves price tables in and out of the CSV sheets the back
// office edits. Sheets name products by category, family and product name;
// names are resolved to ids here and nowhere else.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/catalog"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/grade"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/pricetable"
)

var ErrValidation = errors.New("validation")

var Header = []string{
	"category", "family", "product", "measure_cm",
	"width", "depth", "height", "seat_width", "seat_height", "arm_width",
	"fabric_consumption", "leather_consumption",
	"g1000", "g2000", "g3000", "g4000", "g5000", "g6000", "g7000", "leather",
	"discount_percent",
}

// LineError points at the sheet line that made the import fail.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *LineError) Unwrap() error { return e.Err }

type Resolver interface {
	ResolveProduct(ctx context.Context, ref catalog.ProductRef) (uuid.UUID, error)
}

// Parse reads a whole sheet. Any bad line fails the whole sheet.
func Parse(ctx context.Context, r io.Reader, res Resolver) ([]pricetable.RowInput, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &LineError{Line: 1, Err: fmt.Errorf("empty sheet: %w", ErrValidation)}
	}
	if err != nil {
		return nil, &LineError{Line: 1, Err: fmt.Errorf("%v: %w", err, ErrValidation)}
	}
	cols, err := columnIndex(head)
	if err != nil {
		return nil, &LineError{Line: 1, Err: err}
	}
	cr.FieldsPerRecord = len(head)

	ids := make(map[catalog.ProductRef]uuid.UUID)
	type key struct {
		product uuid.UUID
		measure int
	}
	seen := make(map[key]int)

	var out []pricetable.RowInput
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.StartLine
			}
			return nil, &LineError{Line: line, Err: fmt.Errorf("%v: %w", err, ErrValidation)}
		}
		line, _ := cr.FieldPos(0)
		get := func(name string) string { return strings.TrimSpace(rec[cols[name]]) }

		ref := catalog.ProductRef{Category: get("category"), Family: get("family"), Product: get("product")}
		id, ok := ids[ref]
		if !ok {
			id, err = res.ResolveProduct(ctx, ref)
			if err != nil {
				return nil, &LineError{Line: line, Err: err}
			}
			ids[ref] = id
		}

		in, err := parseRow(get)
		if err != nil {
			return nil, &LineError{Line: line, Err: err}
		}
		in.ProductID = id
		if err := in.Validate(); err != nil {
			return nil, &LineError{Line: line, Err: fmt.Errorf("%v: %w", err, ErrValidation)}
		}

		k := key{id, in.MeasureCM}
		if prev, dup := seen[k]; dup {
			return nil, &LineError{Line: line, Err: fmt.Errorf("%s %dcm already on line %d: %w", ref.Product, in.MeasureCM, prev, ErrValidation)}
		}
		seen[k] = line
		out = append(out, in)
	}
	return out, nil
}

func columnIndex(head []string) (map[string]int, error) {
	idx := make(map[string]int, len(head))
	for i, h := range head {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	for _, h := range Header {
		if _, ok := idx[h]; !ok {
			return nil, fmt.Errorf("missing column %q: %w", h, ErrValidation)
		}
	}
	return idx, nil
}

func parseRow(get func(string) string) (pricetable.RowInput, error) {
	var in pricetable.RowInput

	m, err := strconv.Atoi(get("measure_cm"))
	if err != nil {
		return in, fmt.Errorf("measure_cm %q: %w", get("measure_cm"), ErrValidation)
	}
	in.MeasureCM = m

	floats := []struct {
		name string
		dst  *float64
	}{
		{"width", &in.Width},
		{"depth", &in.Depth},
		{"height", &in.Height},
		{"seat_width", &in.SeatWidth},
		{"seat_height", &in.SeatHeight},
		{"arm_width", &in.ArmWidth},
		{"fabric_consumption", &in.FabricConsumption},
		{"leather_consumption", &in.LeatherConsumption},
	}
	for _, f := range floats {
		v, err := parseFloat(get(f.name))
		if err != nil {
			return in, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}

	for _, c := range grade.Columns {
		name := strings.ToLower(string(c.Grade()))
		v, err := parseMoney(get(name))
		if err != nil {
			return in, fmt.Errorf("%s: %w", name, err)
		}
		in.Prices.Set(c, v)
	}

	if s := get("discount_percent"); s != "" {
		d, err := parseMoney(s)
		if err != nil {
			return in, fmt.Errorf("discount_percent: %w", err)
		}
		in.DiscountPercent = decimal.NewNullDecimal(d)
	}
	return in, nil
}

// Sheets come from spreadsheets in either decimal convention.
func normalizeNumber(s string) string {
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	return s
}

func parseFloat(s string) (float64, error) {
	s = normalizeNumber(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%q is not a number: %w", s, ErrValidation)
	}
	return v, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	s = normalizeNumber(s)
	if s == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%q is not an amount: %w", s, ErrValidation)
	}
	return v, nil
}

// Write emits rows in the import layout, sorted by category, family, product
// and measure. Rows of products missing from refs are skipped.
func Write(w io.Writer, rows []models.PriceRow, refs map[uuid.UUID]catalog.ProductRef) error {
	type named struct {
		ref catalog.ProductRef
		row models.PriceRow
	}
	list := make([]named, 0, len(rows))
	for _, r := range rows {
		if ref, ok := refs[r.ProductID]; ok {
			list = append(list, named{ref, r})
		}
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.ref != b.ref {
			if a.ref.Category != b.ref.Category {
				return a.ref.Category < b.ref.Category
			}
			if a.ref.Family != b.ref.Family {
				return a.ref.Family < b.ref.Family
			}
			return a.ref.Product < b.ref.Product
		}
		return a.row.MeasureCM < b.row.MeasureCM
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, n := range list {
		r := n.row
		rec := []string{
			n.ref.Category, n.ref.Family, n.ref.Product, strconv.Itoa(r.MeasureCM),
			formatFloat(r.Width), formatFloat(r.Depth), formatFloat(r.Height),
			formatFloat(r.SeatWidth), formatFloat(r.SeatHeight), formatFloat(r.ArmWidth),
			formatFloat(r.FabricConsumption), formatFloat(r.LeatherConsumption),
		}
		for _, c := range grade.Columns {
			rec = append(rec, r.Prices.Get(c).StringFixed(2))
		}
		if r.DiscountPercent.Valid {
			rec = append(rec, r.DiscountPercent.Decimal.StringFixed(2))
		} else {
			rec = append(rec, "")
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

package pricetable

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/grade"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
)

type Rule string

const (
	RuleGradeOrder        Rule = "grade_order"
	RuleConsumptionOrder  Rule = "consumption_order"
	RuleDimensionMismatch Rule = "dimension_mismatch"
)

type Violation struct {
	ProductID uuid.UUID `json:"product_id"`
	MeasureCM int       `json:"measure_cm"`
	Field     string    `json:"field"`
	Rule      Rule      `json:"rule"`
	Message   string    `json:"message"`
}

// Validator reports invariant violations of a table. It never writes.
type Validator struct {
	Repo *GormRepo
}

func (v *Validator) Validate(ctx context.Context, tableID uuid.UUID) ([]Violation, error) {
	if _, err := v.Repo.GetTable(ctx, tableID); err != nil {
		return nil, err
	}
	rows, err := v.Repo.ListRows(ctx, tableID)
	if err != nil {
		return nil, err
	}
	return Check(rows), nil
}

const dimensionTolerance = 1e-9

// Check runs every rule over rows of a single table. The result is ordered by
// product id, then measure, and is empty for a clean table.
func Check(rows []models.PriceRow) []Violation {
	out := []Violation{}

	byProduct := make(map[uuid.UUID][]models.PriceRow)
	for _, r := range rows {
		byProduct[r.ProductID] = append(byProduct[r.ProductID], r)
	}

	for _, group := range byProduct {
		sort.Slice(group, func(i, j int) bool { return group[i].MeasureCM < group[j].MeasureCM })

		for _, r := range group {
			out = append(out, checkGradeOrder(r)...)
		}

		first := group[0]
		for i := 1; i < len(group); i++ {
			prev, cur := group[i-1], group[i]
			if cur.FabricConsumption <= prev.FabricConsumption {
				out = append(out, Violation{
					ProductID: cur.ProductID, MeasureCM: cur.MeasureCM, Field: "fabric_consumption", Rule: RuleConsumptionOrder,
					Message: fmt.Sprintf("fabric consumption %.2f at %dcm must exceed %.2f at %dcm", cur.FabricConsumption, cur.MeasureCM, prev.FabricConsumption, prev.MeasureCM),
				})
			}
			if cur.LeatherConsumption <= prev.LeatherConsumption {
				out = append(out, Violation{
					ProductID: cur.ProductID, MeasureCM: cur.MeasureCM, Field: "leather_consumption", Rule: RuleConsumptionOrder,
					Message: fmt.Sprintf("leather consumption %.2f at %dcm must exceed %.2f at %dcm", cur.LeatherConsumption, cur.MeasureCM, prev.LeatherConsumption, prev.MeasureCM),
				})
			}
			out = append(out, checkDimensions(first, cur)...)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID.String() < out[j].ProductID.String()
		}
		return out[i].MeasureCM < out[j].MeasureCM
	})
	return out
}

func checkGradeOrder(r models.PriceRow) []Violation {
	var out []Violation
	for i := 1; i < len(grade.Columns); i++ {
		lo, hi := grade.Columns[i-1], grade.Columns[i]
		a, b := r.Prices.Get(lo), r.Prices.Get(hi)
		if b.GreaterThan(a) {
			continue
		}
		out = append(out, Violation{
			ProductID: r.ProductID, MeasureCM: r.MeasureCM, Field: hi.Field(), Rule: RuleGradeOrder,
			Message: fmt.Sprintf("%s (%s) must be greater than %s (%s)", hi, b.StringFixed(2), lo, a.StringFixed(2)),
		})
	}
	return out
}

func checkDimensions(first, cur models.PriceRow) []Violation {
	var out []Violation
	fields := []struct {
		name   string
		ref, v float64
	}{
		{"depth", first.Depth, cur.Depth},
		{"height", first.Height, cur.Height},
		{"seat_height", first.SeatHeight, cur.SeatHeight},
	}
	for _, f := range fields {
		if math.Abs(f.ref-f.v) <= dimensionTolerance {
			continue
		}
		out = append(out, Violation{
			ProductID: cur.ProductID, MeasureCM: cur.MeasureCM, Field: f.name, Rule: RuleDimensionMismatch,
			Message: fmt.Sprintf("%s %.2f at %dcm differs from %.2f at %dcm", f.name, f.v, cur.MeasureCM, f.ref, first.MeasureCM),
		})
	}
	return out
}

package table

import (
	"math"

	"github.com/faciam-dev/docform/internal/registry/widgets"
	"github.com/faciam-dev/docform/pkg/schema"
)

// Rule derives row values after a change. changed is the updated fieldname,
// or empty when the row was just seeded.
type Rule func(row map[string]any, changed string)

var quantityFields = []string{"qty", "quantity"}

// AmountRule keeps amount equal to quantity times rate rounded to two
// decimals. It returns nil when the child schema lacks any of the three
// fields.
func AmountRule(fields []schema.FieldDescriptor) Rule {
	has := map[string]bool{}
	for _, f := range fields {
		if f.HasValue() {
			has[f.FieldName] = true
		}
	}
	qty := ""
	for _, q := range quantityFields {
		if has[q] {
			qty = q
			break
		}
	}
	if qty == "" || !has["rate"] || !has["amount"] {
		return nil
	}
	return func(row map[string]any, changed string) {
		if changed != "" && changed != qty && changed != "rate" {
			return
		}
		row["amount"] = Round2(widgets.Float(row[qty]) * widgets.Float(row["rate"]))
	}
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

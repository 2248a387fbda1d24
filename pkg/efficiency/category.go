package efficiency

import "github.com/opscart/k8s-resource-audit/pkg/models"

// Category buckets a measured row by how much of its request it uses.
type Category string

const (
	CategoryIdle         Category = "Idle"
	CategoryEfficient    Category = "Efficient"
	CategoryModerate     Category = "Moderate"
	CategoryWasteful     Category = "Wasteful"
	CategoryVeryWasteful Category = "Very Wasteful"
)

// Categories lists the categories from best to worst, Idle last.
var Categories = []Category{CategoryEfficient, CategoryModerate, CategoryWasteful, CategoryVeryWasteful, CategoryIdle}

// Categorize buckets a measured row. Unmeasured rows have no category.
func Categorize(row models.EfficiencyRow) (Category, bool) {
	observed, ok := row.Observed()
	if !ok {
		return "", false
	}
	if observed == 0 {
		return CategoryIdle, true
	}

	var pct float64
	if row.Requested() > 0 {
		pct = float64(observed) / float64(row.Requested()) * 100
	}
	switch {
	case pct > 80:
		return CategoryEfficient, true
	case pct > 50:
		return CategoryModerate, true
	case pct > 20:
		return CategoryWasteful, true
	}
	return CategoryVeryWasteful, true
}

// Package efficiency compares requested resources with observed usage and
// ranks entities by waste.
package efficiency

import (
	"sort"

	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
)

// Sample is one (requested, observed) pair. Observed is absent when the
// metrics source returned nothing for the entity.
type Sample struct {
	entity    string
	kind      models.ResourceKind
	requested quantity.Quantity
	observed  quantity.Quantity
	measured  bool
}

// Measured builds a sample with observed usage.
func Measured(entity string, kind models.ResourceKind, requested, observed quantity.Quantity) Sample {
	return Sample{entity: entity, kind: kind, requested: requested, observed: observed, measured: true}
}

// Unmeasured builds a sample for an entity without usage data.
func Unmeasured(entity string, kind models.ResourceKind, requested quantity.Quantity) Sample {
	return Sample{entity: entity, kind: kind, requested: requested}
}

// Aggregate computes one row per sample, preserving input order.
func Aggregate(samples []Sample) []models.EfficiencyRow {
	rows := make([]models.EfficiencyRow, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, aggregateOne(s))
	}
	return rows
}

func aggregateOne(s Sample) models.EfficiencyRow {
	row := models.NewEfficiencyRow(s.entity, s.kind, s.requested)
	if !s.measured {
		return row
	}

	var waste quantity.Quantity
	if s.requested > 0 {
		waste = s.requested - s.observed
		if waste < 0 {
			waste = 0
		}
		if waste > s.requested {
			waste = s.requested
		}
	}
	row = row.WithObserved(s.observed, waste)
	if s.requested > 0 {
		row = row.WithRatio(float64(waste) / float64(s.requested))
	}
	return row
}

// Rank returns the measured rows ordered by descending waste, then
// descending waste ratio (absent last), then entity and kind.
func Rank(rows []models.EfficiencyRow) []models.EfficiencyRow {
	ranked := make([]models.EfficiencyRow, 0, len(rows))
	for _, r := range rows {
		if r.Measured() {
			ranked = append(ranked, r)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Waste() != b.Waste() {
			return a.Waste() > b.Waste()
		}
		ra, okA := a.Ratio()
		rb, okB := b.Ratio()
		if okA != okB {
			return okA
		}
		if ra != rb {
			return ra > rb
		}
		if a.Entity() != b.Entity() {
			return a.Entity() < b.Entity()
		}
		return a.Kind() < b.Kind()
	})
	return ranked
}

// UnmeasuredRows returns the rows without usage data ordered by entity and kind.
func UnmeasuredRows(rows []models.EfficiencyRow) []models.EfficiencyRow {
	var out []models.EfficiencyRow
	for _, r := range rows {
		if !r.Measured() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Entity() != out[j].Entity() {
			return out[i].Entity() < out[j].Entity()
		}
		return out[i].Kind() < out[j].Kind()
	})
	return out
}

// KindSummary totals the rows of one resource kind.
type KindSummary struct {
	Requested  quantity.Quantity
	Observed   quantity.Quantity
	Waste      quantity.Quantity
	Measured   int
	Unmeasured int
	// MeanEfficiency is the average observed/requested percentage over
	// measured rows with a non-zero request.
	MeanEfficiency float64
}

// Summary holds per-kind totals and the missing-metrics accounting.
type Summary struct {
	CPU                KindSummary
	Memory             KindSummary
	UnmeasuredEntities []string
}

// Kind returns the summary of one resource kind.
func (s Summary) Kind(kind models.ResourceKind) KindSummary {
	if kind == models.ResourceCPU {
		return s.CPU
	}
	return s.Memory
}

// Summarize totals rows per kind. Requested totals include unmeasured rows;
// observed and waste totals cover measured rows only.
func Summarize(rows []models.EfficiencyRow) Summary {
	var (
		summary    Summary
		effSum     = map[models.ResourceKind]float64{}
		effCount   = map[models.ResourceKind]int{}
		unmeasured = map[string]struct{}{}
	)

	for _, r := range rows {
		ks := &summary.Memory
		if r.Kind() == models.ResourceCPU {
			ks = &summary.CPU
		}

		ks.Requested += r.Requested()
		observed, ok := r.Observed()
		if !ok {
			ks.Unmeasured++
			unmeasured[r.Entity()] = struct{}{}
			continue
		}
		ks.Measured++
		ks.Observed += observed
		ks.Waste += r.Waste()
		if r.Requested() > 0 {
			effSum[r.Kind()] += float64(observed) / float64(r.Requested()) * 100
			effCount[r.Kind()]++
		}
	}

	if n := effCount[models.ResourceCPU]; n > 0 {
		summary.CPU.MeanEfficiency = effSum[models.ResourceCPU] / float64(n)
	}
	if n := effCount[models.ResourceMemory]; n > 0 {
		summary.Memory.MeanEfficiency = effSum[models.ResourceMemory] / float64(n)
	}

	for entity := range unmeasured {
		summary.UnmeasuredEntities = append(summary.UnmeasuredEntities, entity)
	}
	sort.Strings(summary.UnmeasuredEntities)
	return summary
}

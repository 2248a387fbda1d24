package models

import "github.com/opscart/k8s-resource-audit/pkg/quantity"

// EfficiencyRow compares requested resources with observed usage for one entity.
// Observed and ratio are optional: an unmeasured row carries neither, and a
// row with a zero request carries no ratio.
type EfficiencyRow struct {
	entity    string
	kind      ResourceKind
	requested quantity.Quantity
	observed  quantity.Quantity
	waste     quantity.Quantity
	ratio     float64
	measured  bool
	hasRatio  bool
}

// NewEfficiencyRow builds an unmeasured row.
func NewEfficiencyRow(entity string, kind ResourceKind, requested quantity.Quantity) EfficiencyRow {
	return EfficiencyRow{entity: entity, kind: kind, requested: requested}
}

// WithObserved returns a measured copy carrying observed usage and waste.
func (r EfficiencyRow) WithObserved(observed, waste quantity.Quantity) EfficiencyRow {
	r.observed = observed
	r.waste = waste
	r.measured = true
	return r
}

// WithRatio returns a copy carrying a waste ratio.
func (r EfficiencyRow) WithRatio(ratio float64) EfficiencyRow {
	r.ratio = ratio
	r.hasRatio = true
	return r
}

func (r EfficiencyRow) Entity() string               { return r.entity }
func (r EfficiencyRow) Kind() ResourceKind           { return r.kind }
func (r EfficiencyRow) Requested() quantity.Quantity { return r.requested }
func (r EfficiencyRow) Waste() quantity.Quantity     { return r.waste }
func (r EfficiencyRow) Measured() bool               { return r.measured }

// Observed returns the observed usage, if any was reported.
func (r EfficiencyRow) Observed() (quantity.Quantity, bool) {
	return r.observed, r.measured
}

// Ratio returns waste/requested, absent when unmeasured or requested is zero.
func (r EfficiencyRow) Ratio() (float64, bool) {
	return r.ratio, r.hasRatio
}

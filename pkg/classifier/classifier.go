// Package classifier flags misconfigured container resources and derives
// severities from the resulting issue sets.
package classifier

import (
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
)

// Thresholds configures the classification rules.
type Thresholds struct {
	// CPURatio and MemoryRatio bound limit/request. A ratio strictly above
	// the threshold is over-provisioned.
	CPURatio    float64
	MemoryRatio float64
	// WasteRatioCutoff flags OVER_REQUESTED when measured waste/request reaches it.
	WasteRatioCutoff float64
	// ThrottleRatio flags CPU_THROTTLE_RISK when measured CPU reaches ThrottleRatio*limit.
	ThrottleRatio float64
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPURatio:         4,
		MemoryRatio:      4,
		WasteRatioCutoff: 0.8,
		ThrottleRatio:    0.9,
	}
}

// ThresholdError reports a threshold outside its valid range.
type ThresholdError struct {
	Name  string
	Value float64
	Want  string
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("threshold %s=%v out of range: want %s", e.Name, e.Value, e.Want)
}

// Validate checks every threshold. Ratios must be at least 1; cutoffs must
// lie in (0, 1].
func (t Thresholds) Validate() error {
	ratios := []struct {
		name  string
		value float64
	}{
		{"cpu-ratio", t.CPURatio},
		{"memory-ratio", t.MemoryRatio},
	}
	for _, r := range ratios {
		if math.IsNaN(r.value) || math.IsInf(r.value, 0) || r.value < 1 {
			return &ThresholdError{Name: r.name, Value: r.value, Want: ">= 1"}
		}
	}

	cutoffs := []struct {
		name  string
		value float64
	}{
		{"waste-ratio-cutoff", t.WasteRatioCutoff},
		{"throttle-ratio", t.ThrottleRatio},
	}
	for _, c := range cutoffs {
		if math.IsNaN(c.value) || c.value <= 0 || c.value > 1 {
			return &ThresholdError{Name: c.name, Value: c.value, Want: "in (0, 1]"}
		}
	}
	return nil
}

// Classifier applies the rules for one set of thresholds.
type Classifier struct {
	thresholds Thresholds
	cpuRatio   *big.Rat
	memRatio   *big.Rat
	cutoff     *big.Rat
	throttle   *big.Rat
}

// New validates thresholds and returns a classifier.
func New(t Thresholds) (*Classifier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{
		thresholds: t,
		cpuRatio:   decimalRat(t.CPURatio),
		memRatio:   decimalRat(t.MemoryRatio),
		cutoff:     decimalRat(t.WasteRatioCutoff),
		throttle:   decimalRat(t.ThrottleRatio),
	}, nil
}

// Thresholds returns the configured thresholds.
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// Classify returns a copy of cr carrying every configuration issue that applies.
// A zero quantity, absent or explicit, means no request or limit is enforced.
func (c *Classifier) Classify(cr models.ContainerResources) models.ContainerResources {
	var issues []models.IssueCode

	if cr.CPURequest() == 0 {
		issues = append(issues, models.IssueNoCPURequest)
	}
	if cr.MemoryRequest() == 0 {
		issues = append(issues, models.IssueNoMemoryRequest)
	}
	if cr.CPULimit() == 0 {
		issues = append(issues, models.IssueNoCPULimit)
	}
	if cr.MemoryLimit() == 0 {
		issues = append(issues, models.IssueNoMemoryLimit)
	}
	if exceedsRatio(cr.CPULimit(), cr.CPURequest(), c.cpuRatio) {
		issues = append(issues, models.IssueOverProvisionedCPU)
	}
	if exceedsRatio(cr.MemoryLimit(), cr.MemoryRequest(), c.memRatio) {
		issues = append(issues, models.IssueOverProvisionedMemory)
	}

	return cr.WithIssues(issues...)
}

// ApplyUsage returns a copy of cr with usage-derived issues added.
// OVER_REQUESTED fires when the waste ratio of a set request reaches the
// cutoff for either kind. CPU_THROTTLE_RISK fires when CPU usage reaches the
// throttle fraction of a set limit.
func (c *Classifier) ApplyUsage(cr models.ContainerResources, usage models.Resources) models.ContainerResources {
	var issues []models.IssueCode

	if wasteAtLeast(cr.CPURequest(), usage.CPU, c.cutoff) || wasteAtLeast(cr.MemoryRequest(), usage.Memory, c.cutoff) {
		issues = append(issues, models.IssueOverRequested)
	}
	if cr.CPULimit() > 0 && usage.CPU > 0 && atLeastFraction(usage.CPU, cr.CPULimit(), c.throttle) {
		issues = append(issues, models.IssueCPUThrottleRisk)
	}

	if len(issues) == 0 {
		return cr
	}
	return cr.WithIssues(issues...)
}

// SeverityOf derives the severity of an issue set. Missing requests or limits
// are critical in user workload namespaces; every other issue, including a
// missing value in an audited system namespace, is a warning.
func SeverityOf(issues []models.IssueCode, scope models.Scope) models.Severity {
	severity := models.SeverityOK
	for _, issue := range issues {
		if issue.IsMissingResource() && scope == models.ScopeUser {
			return models.SeverityCritical
		}
		severity = models.SeverityWarning
	}
	return severity
}

// decimalRat converts v through its shortest decimal form so that 0.8 is
// exactly 4/5 rather than the nearest binary float.
func decimalRat(v float64) *big.Rat {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(v, 'g', -1, 64))
	if !ok {
		return new(big.Rat).SetFloat64(v)
	}
	return r
}

// exceedsRatio reports limit/request > ratio, compared exactly.
func exceedsRatio(limit, request quantity.Quantity, ratio *big.Rat) bool {
	if limit <= 0 || request <= 0 {
		return false
	}
	return big.NewRat(int64(limit), int64(request)).Cmp(ratio) > 0
}

// wasteAtLeast reports max(0, request-observed)/request >= cutoff.
func wasteAtLeast(request, observed quantity.Quantity, cutoff *big.Rat) bool {
	if request <= 0 {
		return false
	}
	waste := request - observed
	if waste < 0 {
		waste = 0
	}
	return big.NewRat(int64(waste), int64(request)).Cmp(cutoff) >= 0
}

// atLeastFraction reports value >= fraction*of.
func atLeastFraction(value, of quantity.Quantity, fraction *big.Rat) bool {
	return big.NewRat(int64(value), int64(of)).Cmp(fraction) >= 0
}

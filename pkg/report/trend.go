package report

import (
	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
)

// Trend compares the current summary with the one from the previous run.
type Trend struct {
	ContainersWithIssues int                      `json:"containers_with_issues"`
	IssueRate            float64                  `json:"issue_rate"`
	Critical             int                      `json:"critical"`
	Warning              int                      `json:"warning"`
	Issues               map[models.IssueCode]int `json:"issues"`
	CPUWaste             quantity.Quantity        `json:"cpu_waste_m"`
	MemoryWaste          quantity.Quantity        `json:"memory_waste_bytes"`
	PendingPods          int                      `json:"pending_pods"`
	FailedPods           int                      `json:"failed_pods"`
	MonthlyWasteCost     float64                  `json:"monthly_waste_cost"`
}

// Improved reports whether the number of critical and flagged containers
// went down without either going up.
func (t Trend) Improved() bool {
	return t.Critical <= 0 && t.ContainersWithIssues <= 0 && (t.Critical < 0 || t.ContainersWithIssues < 0)
}

// Diff returns cur minus prev. Issue codes present in either summary get an
// entry; unchanged codes are omitted.
func Diff(prev, cur Summary) Trend {
	t := Trend{
		ContainersWithIssues: cur.ContainersWithIssues - prev.ContainersWithIssues,
		IssueRate:            cur.IssueRate - prev.IssueRate,
		Critical:             cur.Severity[models.SeverityCritical] - prev.Severity[models.SeverityCritical],
		Warning:              cur.Severity[models.SeverityWarning] - prev.Severity[models.SeverityWarning],
		Issues:               map[models.IssueCode]int{},
		CPUWaste:             cur.CPU.Waste - prev.CPU.Waste,
		MemoryWaste:          cur.Memory.Waste - prev.Memory.Waste,
		PendingPods:          cur.PendingPods - prev.PendingPods,
		FailedPods:           cur.FailedPods - prev.FailedPods,
		MonthlyWasteCost:     cur.MonthlyWasteCost - prev.MonthlyWasteCost,
	}
	for _, code := range models.AllIssueCodes() {
		if d := cur.Issues[code] - prev.Issues[code]; d != 0 {
			t.Issues[code] = d
		}
	}
	return t
}

// Package report shapes an audit result into a serialization-ready model.
// Assembly is pure: identical results always produce identical models.
package report

import (
	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/pricing"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
	"github.com/opscart/k8s-resource-audit/pkg/recommender"
)

type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// Model is the complete output of one audit. It carries no timestamps.
type Model struct {
	Parameters      Parameters                   `json:"parameters"`
	Summary         Summary                      `json:"summary"`
	Containers      []ContainerRow               `json:"containers"`
	Efficiency      []EfficiencyRow              `json:"efficiency"`
	Namespaces      []NamespaceRow               `json:"namespaces"`
	Nodes           []NodeRow                    `json:"nodes"`
	Scheduling      []SchedulingRow              `json:"scheduling"`
	Gaps            []GapRow                     `json:"gaps"`
	Defaults        recommender.Defaults         `json:"recommended_defaults"`
	Recommendations []recommender.Recommendation `json:"recommendations,omitempty"`
	Cost            *CostEstimate                `json:"cost,omitempty"`
}

// Parameters records the configuration the model was produced with.
type Parameters struct {
	CPURatioThreshold       float64  `json:"cpu_ratio_threshold"`
	MemoryRatioThreshold    float64  `json:"memory_ratio_threshold"`
	WasteRatioCutoff        float64  `json:"waste_ratio_cutoff"`
	ThrottleRatio           float64  `json:"throttle_ratio"`
	IncludeSystemNamespaces bool     `json:"include_system_namespaces"`
	SystemNamespaces        []string `json:"system_namespaces"`
	MetricsAvailable        bool     `json:"metrics_available"`
}

// ContainerRow is one classified container.
type ContainerRow struct {
	Namespace     string             `json:"namespace"`
	Pod           string             `json:"pod"`
	Container     string             `json:"container"`
	Node          string             `json:"node"`
	NodeType      string             `json:"node_type"`
	WorkloadKind  string             `json:"workload_kind"`
	Workload      string             `json:"workload"`
	Scope         models.Scope       `json:"scope"`
	CPURequest    quantity.Quantity  `json:"cpu_request_m"`
	CPULimit      quantity.Quantity  `json:"cpu_limit_m"`
	MemoryRequest quantity.Quantity  `json:"memory_request_bytes"`
	MemoryLimit   quantity.Quantity  `json:"memory_limit_bytes"`
	CPURatio      float64            `json:"cpu_ratio"`
	MemoryRatio   float64            `json:"memory_ratio"`
	Issues        []models.IssueCode `json:"issues"`
	Severity      models.Severity    `json:"severity"`
}

// EfficiencyRow is one (pod, resource kind) efficiency record. Observed,
// WasteRatio and Category are absent for unmeasured rows.
type EfficiencyRow struct {
	Rank             int                 `json:"rank,omitempty"`
	Entity           string              `json:"entity"`
	Kind             models.ResourceKind `json:"kind"`
	Requested        quantity.Quantity   `json:"requested"`
	Observed         *quantity.Quantity  `json:"observed,omitempty"`
	Waste            quantity.Quantity   `json:"waste"`
	WasteRatio       *float64            `json:"waste_ratio,omitempty"`
	Category         string              `json:"category,omitempty"`
	Measured         bool                `json:"measured"`
	MonthlyWasteCost float64             `json:"monthly_waste_cost,omitempty"`
}

// NamespaceRow aggregates the running pods of one namespace.
type NamespaceRow struct {
	Namespace            string            `json:"namespace"`
	Environment          string            `json:"environment"`
	Scope                models.Scope      `json:"scope"`
	Pods                 int               `json:"pods"`
	Containers           int               `json:"containers"`
	ContainersWithIssues int               `json:"containers_with_issues"`
	Critical             int               `json:"critical"`
	Warning              int               `json:"warning"`
	HealthScore          float64           `json:"health_score"`
	Priority             Priority          `json:"priority"`
	CPURequests          quantity.Quantity `json:"cpu_requests_m"`
	CPULimits            quantity.Quantity `json:"cpu_limits_m"`
	MemoryRequests       quantity.Quantity `json:"memory_requests_bytes"`
	MemoryLimits         quantity.Quantity `json:"memory_limits_bytes"`
	CPUWaste             quantity.Quantity `json:"cpu_waste_m"`
	MemoryWaste          quantity.Quantity `json:"memory_waste_bytes"`
}

// NodeRow compares what is scheduled on a node with what it can hold.
type NodeRow struct {
	Node                 string            `json:"node"`
	InstanceType         string            `json:"instance_type"`
	RunningPods          int               `json:"running_pods"`
	PendingPods          int               `json:"pending_pods"`
	FailedPods           int               `json:"failed_pods"`
	TotalPods            int               `json:"total_pods"`
	PodCapacity          int64             `json:"pod_capacity"`
	CPURequests          quantity.Quantity `json:"cpu_requests_m"`
	CPULimits            quantity.Quantity `json:"cpu_limits_m"`
	CPUAllocatable       quantity.Quantity `json:"cpu_allocatable_m"`
	MemoryRequests       quantity.Quantity `json:"memory_requests_bytes"`
	MemoryLimits         quantity.Quantity `json:"memory_limits_bytes"`
	MemoryAllocatable    quantity.Quantity `json:"memory_allocatable_bytes"`
	CPURequestPct        float64           `json:"cpu_request_pct"`
	CPULimitPct          float64           `json:"cpu_limit_pct"`
	MemoryRequestPct     float64           `json:"memory_request_pct"`
	MemoryLimitPct       float64           `json:"memory_limit_pct"`
	PodUtilizationPct    float64           `json:"pod_utilization_pct"`
	ApproachingPodLimit  bool              `json:"approaching_pod_limit"`
	ContainersWithIssues int               `json:"containers_with_issues"`
}

// SchedulingRow is a pending or failed pod, or an over-capacity node.
type SchedulingRow struct {
	Type          models.SchedulingIssueType `json:"type"`
	Namespace     string                     `json:"namespace"`
	Name          string                     `json:"name"`
	Node          string                     `json:"node,omitempty"`
	Reason        string                     `json:"reason"`
	CPURequest    quantity.Quantity          `json:"cpu_request_m"`
	MemoryRequest quantity.Quantity          `json:"memory_request_bytes"`
}

// GapRow is an entity that could not be classified.
type GapRow struct {
	Kind   string `json:"kind"`
	Entity string `json:"entity"`
	Error  string `json:"error"`
}

// KindTotals summarizes efficiency for one resource kind.
type KindTotals struct {
	Requested      quantity.Quantity `json:"requested"`
	Observed       quantity.Quantity `json:"observed"`
	Waste          quantity.Quantity `json:"waste"`
	Measured       int               `json:"measured"`
	Unmeasured     int               `json:"unmeasured"`
	MeanEfficiency float64           `json:"mean_efficiency_pct"`
}

// Utilization relates cluster-wide requests and limits to allocatable capacity.
type Utilization struct {
	CPURequestsPct    float64 `json:"cpu_requests_pct"`
	CPULimitsPct      float64 `json:"cpu_limits_pct"`
	MemoryRequestsPct float64 `json:"memory_requests_pct"`
	MemoryLimitsPct   float64 `json:"memory_limits_pct"`
}

// Summary holds the headline counts of a run. It is also what later runs
// diff against.
type Summary struct {
	Namespaces           int                      `json:"namespaces"`
	Nodes                int                      `json:"nodes"`
	Pods                 int                      `json:"pods"`
	PendingPods          int                      `json:"pending_pods"`
	FailedPods           int                      `json:"failed_pods"`
	Containers           int                      `json:"containers"`
	ContainersWithIssues int                      `json:"containers_with_issues"`
	IssueRate            float64                  `json:"issue_rate"`
	Severity             map[models.Severity]int  `json:"severity"`
	Issues               map[models.IssueCode]int `json:"issues"`
	CPU                  KindTotals               `json:"cpu"`
	Memory               KindTotals               `json:"memory"`
	MissingMetrics       []string                 `json:"missing_metrics"`
	Categories           map[string]int           `json:"categories"`
	Utilization          Utilization              `json:"utilization"`
	Gaps                 int                      `json:"gaps"`
	MonthlyWasteCost     float64                  `json:"monthly_waste_cost,omitempty"`
}

// CostEstimate prices the measured waste.
type CostEstimate struct {
	pricing.Rates
	CPUWasteMonthly    float64 `json:"cpu_waste_monthly"`
	MemoryWasteMonthly float64 `json:"memory_waste_monthly"`
	TotalWasteMonthly  float64 `json:"total_waste_monthly"`
}

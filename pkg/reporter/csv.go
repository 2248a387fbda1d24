package reporter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/opscart/k8s-resource-audit/pkg/converter"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
	"github.com/opscart/k8s-resource-audit/pkg/report"
)

type csvTable struct {
	name   string
	header []string
	rows   [][]string
}

func writeCSV(writer io.Writer, header []string, rows [][]string) error {
	w := csv.NewWriter(writer)

	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

// csvTables lays out every tabular section of the model. Quantities are
// written in base units so the files sort and sum without parsing.
func csvTables(m report.Model) []csvTable {
	return []csvTable{
		containersTable(m),
		efficiencyTable(m),
		namespacesTable(m),
		nodesTable(m),
		schedulingTable(m),
		recommendationsTable(m),
		gapsTable(m),
	}
}

func containersTable(m report.Model) csvTable {
	t := csvTable{name: "containers.csv", header: []string{
		"namespace", "pod", "container", "node", "node_type", "workload_kind", "workload", "scope",
		"cpu_request_m", "cpu_limit_m", "memory_request_bytes", "memory_limit_bytes",
		"cpu_ratio", "memory_ratio", "severity", "issues",
	}}
	for _, c := range m.Containers {
		issues := make([]string, 0, len(c.Issues))
		for _, i := range c.Issues {
			issues = append(issues, i.String())
		}
		t.rows = append(t.rows, []string{
			c.Namespace, c.Pod, c.Container, c.Node, c.NodeType, c.WorkloadKind, c.Workload, c.Scope.String(),
			itoa(c.CPURequest), itoa(c.CPULimit), itoa(c.MemoryRequest), itoa(c.MemoryLimit),
			ftoa(c.CPURatio), ftoa(c.MemoryRatio), c.Severity.String(), strings.Join(issues, ";"),
		})
	}
	return t
}

func efficiencyTable(m report.Model) csvTable {
	t := csvTable{name: "efficiency.csv", header: []string{
		"rank", "entity", "kind", "requested", "observed", "waste", "waste_ratio", "category", "measured", "monthly_waste_cost",
	}}
	for _, r := range m.Efficiency {
		observed, ratio := "", ""
		if r.Observed != nil {
			observed = itoa(*r.Observed)
		}
		if r.WasteRatio != nil {
			ratio = ftoa(*r.WasteRatio)
		}
		rank := ""
		if r.Rank > 0 {
			rank = strconv.Itoa(r.Rank)
		}
		t.rows = append(t.rows, []string{
			rank, r.Entity, r.Kind.String(), itoa(r.Requested), observed, itoa(r.Waste), ratio, r.Category,
			strconv.FormatBool(r.Measured), fmt.Sprintf("%.2f", r.MonthlyWasteCost),
		})
	}
	return t
}

func namespacesTable(m report.Model) csvTable {
	t := csvTable{name: "namespaces.csv", header: []string{
		"namespace", "environment", "scope", "pods", "containers", "containers_with_issues", "critical", "warning",
		"health_score", "priority", "cpu_requests_m", "cpu_limits_m", "memory_requests_bytes", "memory_limits_bytes",
		"cpu_waste_m", "memory_waste_bytes",
	}}
	for _, n := range m.Namespaces {
		t.rows = append(t.rows, []string{
			n.Namespace, n.Environment, n.Scope.String(), strconv.Itoa(n.Pods), strconv.Itoa(n.Containers),
			strconv.Itoa(n.ContainersWithIssues), strconv.Itoa(n.Critical), strconv.Itoa(n.Warning),
			fmt.Sprintf("%.1f", n.HealthScore), string(n.Priority), itoa(n.CPURequests), itoa(n.CPULimits),
			itoa(n.MemoryRequests), itoa(n.MemoryLimits), itoa(n.CPUWaste), itoa(n.MemoryWaste),
		})
	}
	return t
}

func nodesTable(m report.Model) csvTable {
	t := csvTable{name: "nodes.csv", header: []string{
		"node", "instance_type", "running_pods", "pending_pods", "failed_pods", "total_pods", "pod_capacity",
		"pod_utilization_pct", "approaching_pod_limit", "cpu_requests_m", "cpu_limits_m", "cpu_allocatable_m",
		"cpu_request_pct", "cpu_limit_pct", "memory_requests_bytes", "memory_limits_bytes", "memory_allocatable_bytes",
		"memory_request_pct", "memory_limit_pct", "containers_with_issues",
	}}
	for _, n := range m.Nodes {
		t.rows = append(t.rows, []string{
			n.Node, n.InstanceType, strconv.Itoa(n.RunningPods), strconv.Itoa(n.PendingPods), strconv.Itoa(n.FailedPods),
			strconv.Itoa(n.TotalPods), strconv.FormatInt(n.PodCapacity, 10), pct(n.PodUtilizationPct),
			strconv.FormatBool(n.ApproachingPodLimit), itoa(n.CPURequests), itoa(n.CPULimits), itoa(n.CPUAllocatable),
			pct(n.CPURequestPct), pct(n.CPULimitPct), itoa(n.MemoryRequests), itoa(n.MemoryLimits),
			itoa(n.MemoryAllocatable), pct(n.MemoryRequestPct), pct(n.MemoryLimitPct), strconv.Itoa(n.ContainersWithIssues),
		})
	}
	return t
}

func schedulingTable(m report.Model) csvTable {
	t := csvTable{name: "scheduling.csv", header: []string{
		"type", "namespace", "name", "node", "reason", "cpu_request_m", "memory_request_bytes",
	}}
	for _, s := range m.Scheduling {
		t.rows = append(t.rows, []string{
			string(s.Type), s.Namespace, s.Name, s.Node, s.Reason, itoa(s.CPURequest), itoa(s.MemoryRequest),
		})
	}
	return t
}

func recommendationsTable(m report.Model) csvTable {
	t := csvTable{name: "recommendations.csv", header: []string{
		"namespace", "workload_kind", "workload", "type", "pods",
		"current_cpu_m", "current_memory_bytes", "recommended_cpu_m", "recommended_memory_bytes",
		"monthly_savings", "impact", "risk", "reason", "command",
	}}
	for _, r := range m.Recommendations {
		t.rows = append(t.rows, []string{
			r.Namespace, r.WorkloadKind, r.WorkloadName, string(r.Type), strconv.Itoa(r.Pods),
			itoa(r.CurrentCPU), itoa(r.CurrentMemory), itoa(r.RecommendedCPU), itoa(r.RecommendedMemory),
			fmt.Sprintf("%.2f", r.Savings), r.Impact, r.Risk, r.Reason, converter.Command(r),
		})
	}
	return t
}

func gapsTable(m report.Model) csvTable {
	t := csvTable{name: "gaps.csv", header: []string{"kind", "entity", "error"}}
	for _, g := range m.Gaps {
		t.rows = append(t.rows, []string{g.Kind, g.Entity, g.Error})
	}
	return t
}

func itoa(q quantity.Quantity) string { return strconv.FormatInt(int64(q), 10) }

func ftoa(f float64) string { return strconv.FormatFloat(f, 'f', 4, 64) }

func pct(f float64) string { return strconv.FormatFloat(f, 'f', 1, 64) }

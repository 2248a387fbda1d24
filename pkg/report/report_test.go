package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opscart/k8s-resource-audit/pkg/audit"
	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/pricing"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
	"github.com/opscart/k8s-resource-audit/pkg/recommender"
	"github.com/opscart/k8s-resource-audit/pkg/snapshot"
)

func runFixture(t *testing.T) audit.Result {
	t.Helper()
	raw, err := snapshot.LoadFiles(snapshot.Files{
		Pods:       "../snapshot/testdata/pods.json",
		Nodes:      "../snapshot/testdata/nodes.json",
		Namespaces: "../snapshot/testdata/namespaces.yaml",
		Metrics:    "../snapshot/testdata/metrics.json",
	})
	require.NoError(t, err)
	p, err := audit.NewPipeline(audit.DefaultConfig())
	require.NoError(t, err)
	return p.Run(raw)
}

func testRates() *pricing.Rates {
	return &pricing.Rates{Provider: "default", Region: "unknown", CPUPerCoreMonth: 20, MemoryPerGiBMonth: 2, Currency: "USD"}
}

func TestAssembleContainers(t *testing.T) {
	m := Assemble(runFixture(t), Options{})

	require.Len(t, m.Containers, 3)
	api, app, sidecar := m.Containers[0], m.Containers[1], m.Containers[2]

	assert.Equal(t, "api", api.Container)
	assert.Equal(t, "StatefulSet", api.WorkloadKind)
	assert.Equal(t, "m5.xlarge", api.NodeType)
	assert.Equal(t, models.SeverityOK, api.Severity)
	assert.Equal(t, []models.IssueCode{}, api.Issues)
	assert.InDelta(t, 2.0, api.CPURatio, 1e-9)

	assert.Equal(t, "app", app.Container)
	assert.Equal(t, "Deployment", app.WorkloadKind)
	assert.Equal(t, "web", app.Workload)
	assert.Equal(t, models.SeverityWarning, app.Severity)
	assert.InDelta(t, 10.0, app.CPURatio, 1e-9)

	assert.Equal(t, models.SeverityCritical, sidecar.Severity)
	assert.Zero(t, sidecar.CPURatio)
}

func TestAssembleEfficiency(t *testing.T) {
	m := Assemble(runFixture(t), Options{})

	require.Len(t, m.Efficiency, 4)
	want := []struct {
		rank     int
		entity   string
		kind     models.ResourceKind
		waste    quantity.Quantity
		category string
	}{
		{1, "shop/web-7d9f8-abcde", models.ResourceCPU, 94, "Very Wasteful"},
		{2, "shop/api-0", models.ResourceCPU, 50, "Efficient"},
		{1, "shop/api-0", models.ResourceMemory, 212 << 20, ""},
		{2, "shop/web-7d9f8-abcde", models.ResourceMemory, 18 << 20, ""},
	}
	for i, w := range want {
		row := m.Efficiency[i]
		assert.Equal(t, w.rank, row.Rank, "row %d", i)
		assert.Equal(t, w.entity, row.Entity, "row %d", i)
		assert.Equal(t, w.kind, row.Kind, "row %d", i)
		assert.Equal(t, w.waste, row.Waste, "row %d", i)
		assert.Equal(t, w.category, row.Category, "row %d", i)
		assert.True(t, row.Measured)
		require.NotNil(t, row.Observed)
		require.NotNil(t, row.WasteRatio)
		assert.Zero(t, row.MonthlyWasteCost)
	}

	assert.Equal(t, 1, m.Summary.Categories["Very Wasteful"])
	assert.Equal(t, 1, m.Summary.Categories["Efficient"])
	assert.Equal(t, quantity.Quantity(144), m.Summary.CPU.Waste)
	assert.Equal(t, quantity.Quantity(230<<20), m.Summary.Memory.Waste)
}

func TestAssembleWithoutMetrics(t *testing.T) {
	raw, err := snapshot.LoadFiles(snapshot.Files{
		Pods:  "../snapshot/testdata/pods.json",
		Nodes: "../snapshot/testdata/nodes.json",
	})
	require.NoError(t, err)
	p, err := audit.NewPipeline(audit.DefaultConfig())
	require.NoError(t, err)

	m := Assemble(p.Run(raw), Options{Rates: testRates()})

	assert.False(t, m.Parameters.MetricsAvailable)
	require.Len(t, m.Efficiency, 4)
	for _, row := range m.Efficiency {
		assert.False(t, row.Measured)
		assert.Zero(t, row.Rank)
		assert.Nil(t, row.Observed)
		assert.Nil(t, row.WasteRatio)
		assert.Empty(t, row.Category)
	}
	assert.Equal(t, []string{"shop/api-0", "shop/web-7d9f8-abcde"}, m.Summary.MissingMetrics)
	assert.Empty(t, m.Recommendations)
	require.NotNil(t, m.Cost)
	assert.Zero(t, m.Cost.TotalWasteMonthly)
}

func TestAssembleNamespaces(t *testing.T) {
	m := Assemble(runFixture(t), Options{})

	require.Len(t, m.Namespaces, 2)
	shop, dev := m.Namespaces[0], m.Namespaces[1]

	assert.Equal(t, "shop", shop.Namespace)
	assert.Equal(t, "production", shop.Environment)
	assert.Equal(t, 2, shop.Pods)
	assert.Equal(t, 3, shop.Containers)
	assert.Equal(t, 2, shop.ContainersWithIssues)
	assert.Equal(t, 1, shop.Critical)
	assert.Equal(t, 1, shop.Warning)
	assert.InDelta(t, 100.0/3, shop.HealthScore, 1e-9)
	assert.Equal(t, PriorityHigh, shop.Priority)
	assert.Equal(t, quantity.Quantity(600), shop.CPURequests)
	assert.Equal(t, quantity.Quantity(144), shop.CPUWaste)

	assert.Equal(t, "batch-dev", dev.Namespace)
	assert.InDelta(t, 100.0, dev.HealthScore, 1e-9)
	assert.Equal(t, PriorityLow, dev.Priority)
}

func TestPriorityOf(t *testing.T) {
	tests := []struct {
		health float64
		limits quantity.Quantity
		want   Priority
	}{
		{100, 0, PriorityLow},
		{49.9, 0, PriorityHigh},
		{100, 10001, PriorityHigh},
		{79, 0, PriorityMedium},
		{90, 5001, PriorityMedium},
		{80, 5000, PriorityLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, priorityOf(tt.health, tt.limits), "health=%v limits=%v", tt.health, tt.limits)
	}
}

func TestAssembleNodesAndScheduling(t *testing.T) {
	m := Assemble(runFixture(t), Options{})

	require.Len(t, m.Nodes, 1)
	node := m.Nodes[0]
	assert.Equal(t, "node-a", node.Node)
	assert.Equal(t, 2, node.RunningPods)
	assert.Equal(t, 1, node.FailedPods)
	assert.Equal(t, 3, node.TotalPods)
	assert.Equal(t, int64(110), node.PodCapacity)
	assert.False(t, node.ApproachingPodLimit)
	assert.Equal(t, 2, node.ContainersWithIssues)
	assert.InDelta(t, 600.0/3800*100, node.CPURequestPct, 1e-9)

	require.Len(t, m.Scheduling, 2)
	assert.Equal(t, models.SchedulingPending, m.Scheduling[0].Type)
	assert.Equal(t, "job-x", m.Scheduling[0].Name)
	assert.Equal(t, quantity.Quantity(8000), m.Scheduling[0].CPURequest)
	assert.Equal(t, models.SchedulingFailed, m.Scheduling[1].Type)
	assert.Equal(t, "failed-1", m.Scheduling[1].Name)

	assert.Equal(t, 1, m.Summary.PendingPods)
	assert.Equal(t, 1, m.Summary.FailedPods)
}

func TestAssembleOverCapacityNode(t *testing.T) {
	result := runFixture(t)
	require.Len(t, result.Nodes, 1)
	n := result.Nodes[0]
	result.Nodes = []models.NodeInfo{
		models.NewNodeInfo(n.Name(), n.Capacity(), n.Allocatable(), 1).WithLabels(n.Labels()),
	}

	m := Assemble(result, Options{})

	require.Len(t, m.Nodes, 1)
	assert.Equal(t, 2, m.Nodes[0].RunningPods)
	assert.True(t, m.Nodes[0].ApproachingPodLimit)

	require.Len(t, m.Scheduling, 3)
	row := m.Scheduling[0]
	assert.Equal(t, models.SchedulingOverCapacity, row.Type)
	assert.Equal(t, "node-node-a", row.Name)
	assert.Equal(t, "node-a", row.Node)
	assert.Equal(t, "cluster", row.Namespace)
	assert.Contains(t, row.Reason, "2 running pods exceed pod capacity 1")
	assert.Contains(t, row.Reason, "CPU requests 15.8%")
	assert.Equal(t, quantity.Quantity(600), row.CPURequest)
	assert.Equal(t, models.SchedulingPending, m.Scheduling[1].Type)
}

func TestAssembleSummary(t *testing.T) {
	m := Assemble(runFixture(t), Options{})
	s := m.Summary

	assert.Equal(t, 2, s.Namespaces)
	assert.Equal(t, 1, s.Nodes)
	assert.Equal(t, 2, s.Pods)
	assert.Equal(t, 3, s.Containers)
	assert.Equal(t, 2, s.ContainersWithIssues)
	assert.InDelta(t, 2.0/3, s.IssueRate, 1e-9)
	assert.Equal(t, map[models.Severity]int{
		models.SeverityOK:       1,
		models.SeverityWarning:  1,
		models.SeverityCritical: 1,
	}, s.Severity)
	assert.Equal(t, 1, s.Issues[models.IssueNoCPURequest])
	assert.Equal(t, 1, s.Issues[models.IssueOverRequested])
	assert.Equal(t, 3, s.Gaps)
	assert.Empty(t, s.MissingMetrics)

	require.Len(t, m.Gaps, 3)
	assert.Equal(t, "metrics", m.Gaps[0].Kind)
	assert.Equal(t, "shop/ghost", m.Gaps[0].Entity)
	assert.Contains(t, m.Gaps[2].Error, "12Mb")

	assert.Contains(t, m.Parameters.SystemNamespaces, "kube-system")
	assert.Contains(t, m.Parameters.SystemNamespaces, "kube-*")
	assert.InDelta(t, 4.0, m.Parameters.CPURatioThreshold, 1e-9)
}

func TestAssembleCost(t *testing.T) {
	m := Assemble(runFixture(t), Options{Rates: testRates()})

	require.NotNil(t, m.Cost)
	assert.Equal(t, "default", m.Cost.Provider)
	assert.InDelta(t, 0.144*20, m.Cost.CPUWasteMonthly, 1e-9)
	assert.InDelta(t, 230.0/1024*2, m.Cost.MemoryWasteMonthly, 1e-9)
	assert.InDelta(t, m.Cost.TotalWasteMonthly, m.Summary.MonthlyWasteCost, 1e-9)

	for i, r := range m.Recommendations {
		assert.NotEqual(t, recommender.NoAction, r.Type)
		if i > 0 {
			assert.GreaterOrEqual(t, m.Recommendations[i-1].Savings, r.Savings)
		}
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	first, err := json.Marshal(Assemble(runFixture(t), Options{Rates: testRates()}))
	require.NoError(t, err)
	second, err := json.Marshal(Assemble(runFixture(t), Options{Rates: testRates()}))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestDiff(t *testing.T) {
	prev := Summary{
		ContainersWithIssues: 5,
		Severity:             map[models.Severity]int{models.SeverityCritical: 3, models.SeverityWarning: 2},
		Issues:               map[models.IssueCode]int{models.IssueNoCPULimit: 3, models.IssueOverRequested: 2},
		CPU:                  KindTotals{Waste: 500},
	}
	cur := Summary{
		ContainersWithIssues: 3,
		Severity:             map[models.Severity]int{models.SeverityCritical: 1, models.SeverityWarning: 2},
		Issues:               map[models.IssueCode]int{models.IssueNoCPULimit: 1, models.IssueOverRequested: 2},
		CPU:                  KindTotals{Waste: 200},
	}

	d := Diff(prev, cur)

	assert.Equal(t, -2, d.ContainersWithIssues)
	assert.Equal(t, -2, d.Critical)
	assert.Zero(t, d.Warning)
	assert.Equal(t, map[models.IssueCode]int{models.IssueNoCPULimit: -2}, d.Issues)
	assert.Equal(t, quantity.Quantity(-300), d.CPUWaste)
	assert.True(t, d.Improved())
	assert.False(t, Diff(cur, prev).Improved())
}

package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/opscart/k8s-resource-audit/pkg/audit"
	"github.com/opscart/k8s-resource-audit/pkg/classifier"
	"github.com/opscart/k8s-resource-audit/pkg/efficiency"
	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/pricing"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
	"github.com/opscart/k8s-resource-audit/pkg/recommender"
)

// Options tune assembly. A nil Rates leaves cost and recommendations out.
type Options struct {
	Rates *pricing.Rates
}

// Assemble builds the report model for one audit result.
func Assemble(result audit.Result, opts Options) Model {
	a := assembler{result: result, opts: opts, nodeTypes: map[string]string{}}
	for _, n := range result.Nodes {
		a.nodeTypes[n.Name()] = n.InstanceType()
	}

	m := Model{
		Parameters: a.parameters(),
		Containers: a.containers(),
		Efficiency: a.efficiency(),
		Namespaces: a.namespaces(),
		Nodes:      a.nodes(),
		Gaps:       a.gaps(),
		Defaults:   recommender.RecommendDefaults(a.podUsage()),
	}
	m.Scheduling = a.scheduling(m.Nodes)
	if opts.Rates != nil {
		m.Cost = a.cost(m.Efficiency)
		m.Recommendations = a.recommendations()
	}
	m.Summary = a.summary(m)
	return m
}

type assembler struct {
	result    audit.Result
	opts      Options
	nodeTypes map[string]string
}

func (a *assembler) parameters() Parameters {
	t := a.result.Config.Thresholds
	system := []string{}
	if policy, err := a.result.Config.Policy(); err == nil {
		for _, r := range policy.Rules() {
			system = append(system, r.String())
		}
	}
	return Parameters{
		CPURatioThreshold:       t.CPURatio,
		MemoryRatioThreshold:    t.MemoryRatio,
		WasteRatioCutoff:        t.WasteRatioCutoff,
		ThrottleRatio:           t.ThrottleRatio,
		IncludeSystemNamespaces: a.result.Config.IncludeSystem,
		SystemNamespaces:        system,
		MetricsAvailable:        a.result.MetricsAvailable,
	}
}

func (a *assembler) containers() []ContainerRow {
	rows := []ContainerRow{}
	for _, pod := range a.result.Pods {
		w := pod.Workload()
		for _, c := range pod.Containers() {
			nodeType := a.nodeTypes[pod.Node()]
			if nodeType == "" {
				nodeType = "unknown"
			}
			rows = append(rows, ContainerRow{
				Namespace:     pod.Namespace(),
				Pod:           pod.Name(),
				Container:     c.Name(),
				Node:          pod.Node(),
				NodeType:      nodeType,
				WorkloadKind:  w.Kind,
				Workload:      w.Name,
				Scope:         pod.Scope(),
				CPURequest:    c.CPURequest(),
				CPULimit:      c.CPULimit(),
				MemoryRequest: c.MemoryRequest(),
				MemoryLimit:   c.MemoryLimit(),
				CPURatio:      limitRatio(c.CPULimit(), c.CPURequest()),
				MemoryRatio:   limitRatio(c.MemoryLimit(), c.MemoryRequest()),
				Issues:        nonNilIssues(c.Issues()),
				Severity:      classifier.SeverityOf(c.Issues(), pod.Scope()),
			})
		}
	}
	return rows
}

func (a *assembler) efficiency() []EfficiencyRow {
	rows := []EfficiencyRow{}
	for _, kind := range models.ResourceKinds {
		var ofKind []models.EfficiencyRow
		for _, r := range a.result.Efficiency {
			if r.Kind() == kind {
				ofKind = append(ofKind, r)
			}
		}
		for i, r := range efficiency.Rank(ofKind) {
			row := a.efficiencyRow(r)
			row.Rank = i + 1
			rows = append(rows, row)
		}
	}
	for _, r := range efficiency.UnmeasuredRows(a.result.Efficiency) {
		rows = append(rows, a.efficiencyRow(r))
	}
	return rows
}

func (a *assembler) efficiencyRow(r models.EfficiencyRow) EfficiencyRow {
	row := EfficiencyRow{
		Entity:    r.Entity(),
		Kind:      r.Kind(),
		Requested: r.Requested(),
		Waste:     r.Waste(),
		Measured:  r.Measured(),
	}
	if observed, ok := r.Observed(); ok {
		row.Observed = &observed
	}
	if ratio, ok := r.Ratio(); ok {
		row.WasteRatio = &ratio
	}
	if category, ok := efficiency.Categorize(r); ok && r.Kind() == models.ResourceCPU {
		row.Category = string(category)
	}
	if a.opts.Rates != nil && r.Measured() {
		row.MonthlyWasteCost = wasteCost(*a.opts.Rates, r.Kind(), r.Waste())
	}
	return row
}

func (a *assembler) namespaces() []NamespaceRow {
	byName := map[string]*NamespaceRow{}
	var rows []*NamespaceRow
	for _, ns := range a.result.Namespaces {
		row := &NamespaceRow{
			Namespace:   ns.Name,
			Environment: string(ns.Environment),
			Scope:       ns.Scope,
		}
		byName[ns.Name] = row
		rows = append(rows, row)
	}

	for _, pod := range a.result.Pods {
		row, ok := byName[pod.Namespace()]
		if !ok {
			continue
		}
		row.Pods++
		requests, limits := pod.TotalRequests(), pod.TotalLimits()
		row.CPURequests += requests.CPU
		row.MemoryRequests += requests.Memory
		row.CPULimits += limits.CPU
		row.MemoryLimits += limits.Memory
		for _, c := range pod.Containers() {
			row.Containers++
			if len(c.Issues()) == 0 {
				continue
			}
			row.ContainersWithIssues++
			switch classifier.SeverityOf(c.Issues(), pod.Scope()) {
			case models.SeverityCritical:
				row.Critical++
			case models.SeverityWarning:
				row.Warning++
			}
		}
	}

	for _, r := range a.result.Efficiency {
		ns, _, _ := strings.Cut(r.Entity(), "/")
		row, ok := byName[ns]
		if !ok || !r.Measured() {
			continue
		}
		if r.Kind() == models.ResourceCPU {
			row.CPUWaste += r.Waste()
		} else {
			row.MemoryWaste += r.Waste()
		}
	}

	out := make([]NamespaceRow, 0, len(rows))
	for _, row := range rows {
		row.HealthScore = 100
		if row.Containers > 0 {
			row.HealthScore = max(0, 100-float64(row.ContainersWithIssues)/float64(row.Containers)*100)
		}
		row.Priority = priorityOf(row.HealthScore, row.CPULimits)
		out = append(out, *row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if pi, pj := priorityRank(out[i].Priority), priorityRank(out[j].Priority); pi != pj {
			return pi < pj
		}
		if out[i].CPULimits != out[j].CPULimits {
			return out[i].CPULimits > out[j].CPULimits
		}
		return out[i].Namespace < out[j].Namespace
	})
	return out
}

// priorityOf ranks a namespace by health score and total CPU limits.
func priorityOf(health float64, cpuLimits quantity.Quantity) Priority {
	switch {
	case health < 50 || cpuLimits > 10000:
		return PriorityHigh
	case health < 80 || cpuLimits > 5000:
		return PriorityMedium
	}
	return PriorityLow
}

func priorityRank(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	}
	return 2
}

func (a *assembler) nodes() []NodeRow {
	byName := map[string]*NodeRow{}
	rows := make([]*NodeRow, 0, len(a.result.Nodes))
	for _, n := range a.result.Nodes {
		row := &NodeRow{
			Node:              n.Name(),
			InstanceType:      n.InstanceType(),
			PodCapacity:       n.PodCapacity(),
			CPUAllocatable:    n.Allocatable().CPU,
			MemoryAllocatable: n.Allocatable().Memory,
		}
		byName[n.Name()] = row
		rows = append(rows, row)
	}

	for _, pod := range a.result.Pods {
		row, ok := byName[pod.Node()]
		if !ok {
			continue
		}
		row.RunningPods++
		row.TotalPods++
		requests, limits := pod.TotalRequests(), pod.TotalLimits()
		row.CPURequests += requests.CPU
		row.MemoryRequests += requests.Memory
		row.CPULimits += limits.CPU
		row.MemoryLimits += limits.Memory
		for _, c := range pod.Containers() {
			if len(c.Issues()) > 0 {
				row.ContainersWithIssues++
			}
		}
	}
	for _, pod := range a.result.Inactive {
		row, ok := byName[pod.Node()]
		if !ok {
			continue
		}
		row.TotalPods++
		switch pod.Phase() {
		case models.PhasePending:
			row.PendingPods++
		case models.PhaseFailed:
			row.FailedPods++
		}
	}

	out := make([]NodeRow, 0, len(rows))
	for _, row := range rows {
		row.CPURequestPct = percent(int64(row.CPURequests), int64(row.CPUAllocatable))
		row.CPULimitPct = percent(int64(row.CPULimits), int64(row.CPUAllocatable))
		row.MemoryRequestPct = percent(int64(row.MemoryRequests), int64(row.MemoryAllocatable))
		row.MemoryLimitPct = percent(int64(row.MemoryLimits), int64(row.MemoryAllocatable))
		row.PodUtilizationPct = percent(int64(row.TotalPods), row.PodCapacity)
		row.ApproachingPodLimit = row.PodUtilizationPct > 90
		out = append(out, *row)
	}
	return out
}

func (a *assembler) scheduling(nodes []NodeRow) []SchedulingRow {
	rows := []SchedulingRow{}

	for _, n := range nodes {
		if n.PodCapacity <= 0 || int64(n.RunningPods) <= n.PodCapacity {
			continue
		}
		rows = append(rows, SchedulingRow{
			Type:          models.SchedulingOverCapacity,
			Namespace:     "cluster",
			Name:          "node-" + n.Node,
			Node:          n.Node,
			Reason:        overCapacityReason(n),
			CPURequest:    n.CPURequests,
			MemoryRequest: n.MemoryRequests,
		})
	}

	for _, pod := range a.result.Inactive {
		var kind models.SchedulingIssueType
		switch pod.Phase() {
		case models.PhasePending:
			kind = models.SchedulingPending
		case models.PhaseFailed:
			kind = models.SchedulingFailed
		default:
			continue
		}
		requests := pod.TotalRequests()
		rows = append(rows, SchedulingRow{
			Type:          kind,
			Namespace:     pod.Namespace(),
			Name:          pod.Name(),
			Node:          pod.Node(),
			Reason:        pod.Reason(),
			CPURequest:    requests.CPU,
			MemoryRequest: requests.Memory,
		})
	}
	return rows
}

func (a *assembler) gaps() []GapRow {
	rows := []GapRow{}
	for _, g := range a.result.Gaps {
		rows = append(rows, GapRow{Kind: string(g.Kind), Entity: g.Name, Error: g.Err.Error()})
	}
	return rows
}

// podUsage returns observed usage of running pods that have metrics.
func (a *assembler) podUsage() []models.Resources {
	var out []models.Resources
	for _, pod := range a.result.Pods {
		if u, ok := a.result.Usage[pod.Key()]; ok {
			out = append(out, u.Total())
		}
	}
	return out
}

func (a *assembler) recommendations() []recommender.Recommendation {
	type group struct {
		namespace string
		workload  models.WorkloadRef
		samples   []recommender.PodSample
	}
	groups := map[string]*group{}
	var order []string

	for _, pod := range a.result.Pods {
		usage, ok := a.result.Usage[pod.Key()]
		if !ok {
			continue
		}
		w := pod.Workload()
		key := pod.Namespace() + "/" + w.Kind + "/" + w.Name
		g, ok := groups[key]
		if !ok {
			g = &group{namespace: pod.Namespace(), workload: w}
			groups[key] = g
			order = append(order, key)
		}
		g.samples = append(g.samples, recommender.PodSample{Requested: pod.TotalRequests(), Used: usage.Total()})
	}

	r := recommender.New(*a.opts.Rates)
	var out []recommender.Recommendation
	for _, key := range order {
		g := groups[key]
		rec := r.Analyze(g.namespace, g.workload, g.samples)
		if rec == nil || rec.Type == recommender.NoAction {
			continue
		}
		out = append(out, *rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Savings != out[j].Savings {
			return out[i].Savings > out[j].Savings
		}
		if out[i].Namespace != out[j].Namespace {
			return out[i].Namespace < out[j].Namespace
		}
		return out[i].WorkloadKind+"/"+out[i].WorkloadName < out[j].WorkloadKind+"/"+out[j].WorkloadName
	})
	return out
}

func (a *assembler) cost(rows []EfficiencyRow) *CostEstimate {
	est := &CostEstimate{Rates: *a.opts.Rates}
	for _, r := range rows {
		if r.Kind == models.ResourceCPU {
			est.CPUWasteMonthly += r.MonthlyWasteCost
		} else {
			est.MemoryWasteMonthly += r.MonthlyWasteCost
		}
	}
	est.TotalWasteMonthly = est.CPUWasteMonthly + est.MemoryWasteMonthly
	return est
}

func (a *assembler) summary(m Model) Summary {
	s := Summary{
		Namespaces:     len(m.Namespaces),
		Nodes:          len(m.Nodes),
		Pods:           len(a.result.Pods),
		Containers:     len(m.Containers),
		Severity:       map[models.Severity]int{},
		Issues:         map[models.IssueCode]int{},
		Categories:     map[string]int{},
		MissingMetrics: []string{},
		Gaps:           len(m.Gaps),
	}
	for _, sev := range models.Severities {
		s.Severity[sev] = 0
	}

	for _, pod := range a.result.Inactive {
		switch pod.Phase() {
		case models.PhasePending:
			s.PendingPods++
		case models.PhaseFailed:
			s.FailedPods++
		}
	}

	for _, c := range m.Containers {
		s.Severity[c.Severity]++
		if len(c.Issues) > 0 {
			s.ContainersWithIssues++
		}
		for _, issue := range c.Issues {
			s.Issues[issue]++
		}
	}
	if s.Containers > 0 {
		s.IssueRate = float64(s.ContainersWithIssues) / float64(s.Containers)
	}

	eff := efficiency.Summarize(a.result.Efficiency)
	s.CPU = kindTotals(eff.CPU)
	s.Memory = kindTotals(eff.Memory)
	s.MissingMetrics = append(s.MissingMetrics, eff.UnmeasuredEntities...)

	for _, r := range m.Efficiency {
		if r.Category != "" {
			s.Categories[r.Category]++
		}
	}

	var requests, limits, allocatable models.Resources
	for _, pod := range a.result.Pods {
		requests = requests.Add(pod.TotalRequests())
		limits = limits.Add(pod.TotalLimits())
	}
	for _, n := range a.result.Nodes {
		allocatable = allocatable.Add(n.Allocatable())
	}
	s.Utilization = Utilization{
		CPURequestsPct:    percent(int64(requests.CPU), int64(allocatable.CPU)),
		CPULimitsPct:      percent(int64(limits.CPU), int64(allocatable.CPU)),
		MemoryRequestsPct: percent(int64(requests.Memory), int64(allocatable.Memory)),
		MemoryLimitsPct:   percent(int64(limits.Memory), int64(allocatable.Memory)),
	}

	if m.Cost != nil {
		s.MonthlyWasteCost = m.Cost.TotalWasteMonthly
	}
	return s
}

func kindTotals(k efficiency.KindSummary) KindTotals {
	return KindTotals{
		Requested:      k.Requested,
		Observed:       k.Observed,
		Waste:          k.Waste,
		Measured:       k.Measured,
		Unmeasured:     k.Unmeasured,
		MeanEfficiency: k.MeanEfficiency,
	}
}

func wasteCost(rates pricing.Rates, kind models.ResourceKind, waste quantity.Quantity) float64 {
	if kind == models.ResourceCPU {
		return rates.MonthlyCost(waste, 0)
	}
	return rates.MonthlyCost(0, waste)
}

func limitRatio(limit, request quantity.Quantity) float64 {
	if request <= 0 {
		return 0
	}
	return float64(limit) / float64(request)
}

func overCapacityReason(n NodeRow) string {
	return fmt.Sprintf("%d running pods exceed pod capacity %d (CPU requests %.1f%%, memory requests %.1f%% of allocatable)",
		n.RunningPods, n.PodCapacity, n.CPURequestPct, n.MemoryRequestPct)
}

func percent(part, whole int64) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func nonNilIssues(issues []models.IssueCode) []models.IssueCode {
	if issues == nil {
		return []models.IssueCode{}
	}
	return issues
}

package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/opscart/k8s-resource-audit/pkg/converter"
	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
	"github.com/opscart/k8s-resource-audit/pkg/report"
)

// TableHandler prints aligned sections for humans. Only flagged containers
// are listed; TopN bounds the efficiency and recommendation sections.
type TableHandler struct {
	TopN int
}

func (*TableHandler) Format() string { return "table" }

func (h *TableHandler) Render(w io.Writer, m report.Model, trend *report.Trend) error {
	p := &printer{w: w}

	h.summary(p, m, trend)
	h.containers(p, m)
	h.efficiency(p, m)
	h.namespaces(p, m)
	h.nodes(p, m)
	h.scheduling(p, m)
	h.recommendations(p, m)
	h.gaps(p, m)

	return p.err
}

func (h *TableHandler) summary(p *printer, m report.Model, trend *report.Trend) {
	s := m.Summary
	p.section("Audit Summary")
	p.printf("Namespaces: %d  Nodes: %d  Pods: %d (pending %d, failed %d)\n",
		s.Namespaces, s.Nodes, s.Pods, s.PendingPods, s.FailedPods)
	p.printf("Containers: %d  With issues: %d (%.1f%%)  Critical: %d  Warning: %d\n",
		s.Containers, s.ContainersWithIssues, s.IssueRate*100,
		s.Severity[models.SeverityCritical], s.Severity[models.SeverityWarning])
	if !m.Parameters.MetricsAvailable {
		p.printf("[WARN] Metrics unavailable: efficiency not measured\n")
	} else {
		p.printf("CPU waste: %s  Memory waste: %s\n",
			quantity.FormatCPU(s.CPU.Waste), quantity.FormatMemory(s.Memory.Waste))
	}
	if m.Cost != nil {
		p.printf("Estimated waste: %.2f %s/month (%s)\n", m.Cost.TotalWasteMonthly, m.Cost.Currency, m.Cost.Provider)
	}
	if trend != nil {
		verdict := "no improvement"
		if trend.Improved() {
			verdict = "improved"
		}
		p.printf("Since previous run: %+d flagged, %+d critical (%s)\n",
			trend.ContainersWithIssues, trend.Critical, verdict)
	}
}

func (h *TableHandler) containers(p *printer, m report.Model) {
	var flagged []report.ContainerRow
	for _, row := range m.Containers {
		if row.Severity != models.SeverityOK {
			flagged = append(flagged, row)
		}
	}
	p.section("Flagged Containers")
	if len(flagged) == 0 {
		p.printf("[INFO] No misconfigured containers found\n")
		return
	}
	tw := p.table("SEVERITY", "NAMESPACE", "POD", "CONTAINER", "CPU REQ/LIM", "MEM REQ/LIM", "ISSUES")
	for _, row := range flagged {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s/%s\t%s/%s\t%s\n",
			row.Severity, row.Namespace, row.Pod, row.Container,
			quantity.FormatCPU(row.CPURequest), quantity.FormatCPU(row.CPULimit),
			quantity.FormatMemory(row.MemoryRequest), quantity.FormatMemory(row.MemoryLimit),
			joinIssues(row.Issues))
	}
	p.flush(tw)
}

func (h *TableHandler) efficiency(p *printer, m report.Model) {
	if !m.Parameters.MetricsAvailable {
		return
	}
	p.section("Least Efficient Pods")
	tw := p.table("RANK", "POD", "KIND", "REQUESTED", "OBSERVED", "WASTE", "CATEGORY")
	for _, row := range m.Efficiency {
		if !row.Measured || row.Rank > h.limit() {
			continue
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			row.Rank, row.Entity, row.Kind,
			format(row.Kind, row.Requested), format(row.Kind, *row.Observed), format(row.Kind, row.Waste),
			dash(row.Category))
	}
	p.flush(tw)
}

func (h *TableHandler) namespaces(p *printer, m report.Model) {
	if len(m.Namespaces) == 0 {
		return
	}
	p.section("Namespaces")
	tw := p.table("PRIORITY", "NAMESPACE", "ENV", "PODS", "FLAGGED", "HEALTH", "CPU REQ", "CPU LIM", "MEM REQ")
	for _, row := range m.Namespaces {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d/%d\t%.1f\t%s\t%s\t%s\n",
			row.Priority, row.Namespace, row.Environment, row.Pods,
			row.ContainersWithIssues, row.Containers, row.HealthScore,
			quantity.FormatCPU(row.CPURequests), quantity.FormatCPU(row.CPULimits),
			quantity.FormatMemory(row.MemoryRequests))
	}
	p.flush(tw)
}

func (h *TableHandler) nodes(p *printer, m report.Model) {
	if len(m.Nodes) == 0 {
		return
	}
	p.section("Nodes")
	tw := p.table("NODE", "TYPE", "PODS", "CPU REQ%", "CPU LIM%", "MEM REQ%", "MEM LIM%")
	for _, row := range m.Nodes {
		pods := fmt.Sprintf("%d/%d", row.RunningPods, row.PodCapacity)
		if row.ApproachingPodLimit {
			pods += " !"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%.0f\t%.0f\t%.0f\n",
			row.Node, row.InstanceType, pods,
			row.CPURequestPct, row.CPULimitPct, row.MemoryRequestPct, row.MemoryLimitPct)
	}
	p.flush(tw)
}

func (h *TableHandler) scheduling(p *printer, m report.Model) {
	if len(m.Scheduling) == 0 {
		return
	}
	p.section("Scheduling Issues")
	tw := p.table("TYPE", "NAMESPACE", "NAME", "NODE", "REASON")
	for _, row := range m.Scheduling {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row.Type, row.Namespace, row.Name, dash(row.Node), row.Reason)
	}
	p.flush(tw)
}

func (h *TableHandler) recommendations(p *printer, m report.Model) {
	if len(m.Recommendations) == 0 {
		return
	}
	p.section("Optimization Recommendations")
	for i, rec := range m.Recommendations {
		if i == h.limit() {
			p.printf("... %d more in the run directory\n", len(m.Recommendations)-i)
			break
		}
		p.printf("%d. %s/%s (%s)\n", i+1, rec.Namespace, rec.WorkloadName, rec.WorkloadKind)
		p.printf("   Type: %s\n", rec.Type)
		p.printf("   Current:     CPU=%s Memory=%s\n",
			quantity.FormatCPU(rec.CurrentCPU), quantity.FormatMemory(rec.CurrentMemory))
		p.printf("   Recommended: CPU=%s Memory=%s\n",
			quantity.FormatCPU(rec.RecommendedCPU), quantity.FormatMemory(rec.RecommendedMemory))
		p.printf("   Savings: %.2f/month  Risk: %s\n", rec.Savings, rec.Risk)
		if cmd := converter.Command(rec); cmd != "" {
			p.printf("   Command: %s\n", cmd)
		}
	}
}

func (h *TableHandler) gaps(p *printer, m report.Model) {
	if len(m.Gaps) == 0 {
		return
	}
	p.section("Skipped Entities")
	tw := p.table("KIND", "ENTITY", "ERROR")
	for _, row := range m.Gaps {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", row.Kind, row.Entity, row.Error)
	}
	p.flush(tw)
}

func (h *TableHandler) limit() int {
	if h.TopN <= 0 {
		return 10
	}
	return h.TopN
}

// printer remembers the first write error so sections stay linear.
type printer struct {
	w       io.Writer
	err     error
	started bool
}

func (p *printer) printf(format string, args ...interface{}) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *printer) section(title string) {
	if p.started {
		p.printf("\n")
	}
	p.started = true
	p.printf("=== %s ===\n", title)
}

func (p *printer) table(headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	return tw
}

func (p *printer) flush(tw *tabwriter.Writer) {
	if p.err != nil {
		return
	}
	p.err = tw.Flush()
}

func joinIssues(codes []models.IssueCode) string {
	if len(codes) == 0 {
		return "-"
	}
	names := make([]string, len(codes))
	for i, c := range codes {
		names[i] = c.String()
	}
	return strings.Join(names, ",")
}

func format(kind models.ResourceKind, q quantity.Quantity) string {
	if kind == models.ResourceCPU {
		return quantity.FormatCPU(q)
	}
	return quantity.FormatMemory(q)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

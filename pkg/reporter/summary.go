package reporter

import (
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/opscart/k8s-resource-audit/pkg/converter"
	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
	"github.com/opscart/k8s-resource-audit/pkg/recommender"
	"github.com/opscart/k8s-resource-audit/pkg/report"
)

const summaryTemplate = `# {{.Title}}

## Inputs
{{- range .Inputs}}
- ` + "`{{.Key}}`: `{{.Value}}`" + `
{{- else}}
- (none)
{{- end}}

## Outputs
- ` + "`capability`: `{{.Capability}}`" + `
- ` + "`artifacts_count`: `{{len .Artifacts}}`" + `
{{- if .Artifacts}}
- ` + "`artifacts`:" + `
{{- range .Artifacts}}
  - ` + "`{{.}}`" + `
{{- end}}
{{- else}}
- ` + "`artifacts`: (none)" + `
{{- end}}

## Key Findings
{{- range .Findings}}
{{.}}
{{- else}}
- No additional findings were recorded.
{{- end}}
{{- if .Trend}}

## Trend
{{- range .Trend}}
{{.}}
{{- end}}
{{- end}}

## Warnings
{{- range .Warnings}}
{{.}}
{{- else}}
- None.
{{- end}}
`

var summaryTmpl = template.Must(template.New("summary").Parse(summaryTemplate))

type keyValue struct{ Key, Value string }

type summaryData struct {
	Title      string
	Capability string
	Inputs     []keyValue
	Artifacts  []string
	Findings   []string
	Trend      []string
	Warnings   []string
}

func newSummaryData(run *Run, title string, artifacts []string) summaryData {
	data := summaryData{Title: title, Capability: run.Capability, Artifacts: artifacts}
	for _, k := range sortedKeys(run.Inputs) {
		data.Inputs = append(data.Inputs, keyValue{Key: k, Value: run.Inputs[k]})
	}
	return data
}

func renderSummary(data summaryData) string {
	var b strings.Builder
	if err := summaryTmpl.Execute(&b, data); err != nil {
		return fmt.Sprintf("# %s\n\nfailed to render summary: %v\n", data.Title, err)
	}
	return b.String()
}

func summaryLines(run *Run, m report.Model, opts Options, artifacts []string) string {
	data := newSummaryData(run, "Kubernetes Resource Audit", append(append([]string{}, artifacts...), summaryFile))
	s := m.Summary

	data.Findings = append(data.Findings,
		bullet("%d containers in %d pods across %d namespaces and %d nodes", s.Containers, s.Pods, s.Namespaces, s.Nodes),
		bullet("%d containers with issues (%.1f%%): %d critical, %d warning",
			s.ContainersWithIssues, s.IssueRate*100, s.Severity[models.SeverityCritical], s.Severity[models.SeverityWarning]),
	)
	for _, code := range models.AllIssueCodes() {
		if n := s.Issues[code]; n > 0 {
			data.Findings = append(data.Findings, bullet("`%s`: %d", code, n))
		}
	}
	if s.CPU.Measured > 0 || s.Memory.Measured > 0 {
		data.Findings = append(data.Findings,
			bullet("requested but unused: %s CPU, %s memory",
				quantity.FormatCPU(s.CPU.Waste), quantity.FormatMemory(s.Memory.Waste)))
	}
	if m.Cost != nil {
		data.Findings = append(data.Findings,
			bullet("estimated waste: %s %.2f/month (%s, %s)", m.Cost.Currency, m.Cost.TotalWasteMonthly, m.Cost.Provider, m.Cost.Region))
	}
	if s.PendingPods > 0 || s.FailedPods > 0 {
		data.Findings = append(data.Findings, bullet("%d pending and %d failed pods", s.PendingPods, s.FailedPods))
	}
	for _, rec := range topRecommendations(m, 5) {
		line := bullet("%s", rec.String())
		if cmd := converter.Command(rec); cmd != "" {
			line += "\n  `" + cmd + "`"
		}
		data.Findings = append(data.Findings, line)
	}

	if opts.Trend != nil {
		t := opts.Trend
		data.Trend = append(data.Trend,
			bullet("compared with run `%s`", opts.PreviousRunID),
			bullet("containers with issues: %+d", t.ContainersWithIssues),
			bullet("critical: %+d, warning: %+d", t.Critical, t.Warning),
			bullet("CPU waste: %+dm, memory waste: %+d bytes", t.CPUWaste, t.MemoryWaste),
		)
		codes := make([]models.IssueCode, 0, len(t.Issues))
		for code := range t.Issues {
			codes = append(codes, code)
		}
		sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
		for _, code := range codes {
			data.Trend = append(data.Trend, bullet("`%s`: %+d", code, t.Issues[code]))
		}
	}

	if !m.Parameters.MetricsAvailable {
		data.Warnings = append(data.Warnings, bullet("usage metrics unavailable; efficiency and usage-based issues were skipped"))
	} else if len(s.MissingMetrics) > 0 {
		data.Warnings = append(data.Warnings, bullet("%d running pods have no usage metrics", len(s.MissingMetrics)))
	}
	for _, g := range m.Gaps {
		data.Warnings = append(data.Warnings, bullet("%s `%s` skipped: %s", g.Kind, g.Entity, g.Error))
	}
	for _, n := range m.Nodes {
		if n.ApproachingPodLimit {
			data.Warnings = append(data.Warnings, bullet("node `%s` is at %.0f%% of its pod capacity", n.Node, n.PodUtilizationPct))
		}
	}
	return renderSummary(data)
}

func failureLines(run *Run, runErr error) string {
	data := newSummaryData(run, "Kubernetes Resource Audit (failed)", nil)
	data.Warnings = []string{bullet("run failed: %v", runErr)}
	return renderSummary(data)
}

func topRecommendations(m report.Model, n int) []recommender.Recommendation {
	if len(m.Recommendations) < n {
		n = len(m.Recommendations)
	}
	return m.Recommendations[:n]
}

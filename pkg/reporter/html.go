package reporter

import (
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/opscart/k8s-resource-audit/pkg/converter"
	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
	"github.com/opscart/k8s-resource-audit/pkg/report"
)

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Kubernetes Resource Audit</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Arial, sans-serif; background: #f5f7fa; color: #333; padding: 20px; line-height: 1.6; }
        .container { max-width: 1400px; margin: 0 auto; background: white; border-radius: 8px; box-shadow: 0 2px 8px rgba(0, 0, 0, 0.1); overflow: hidden; }
        .header { background: linear-gradient(135deg, #326ce5 0%, #1a4d8f 100%); color: white; padding: 40px; }
        .header h1 { font-size: 2.4em; margin-bottom: 10px; }
        .summary { display: grid; grid-template-columns: repeat(auto-fit, minmax(220px, 1fr)); gap: 20px; padding: 30px 40px; background: #f8f9fa; }
        .summary-card { background: white; padding: 24px; border-radius: 12px; box-shadow: 0 2px 6px rgba(0, 0, 0, 0.08); border-top: 4px solid #326ce5; }
        .summary-card h3 { font-size: 0.85em; text-transform: uppercase; letter-spacing: 1px; color: #666; margin-bottom: 8px; }
        .summary-card .value { font-size: 2.2em; font-weight: 700; }
        .summary-card.critical { border-top-color: #ea4335; }
        .summary-card.warning { border-top-color: #fbbc04; }
        .summary-card.savings { border-top-color: #34a853; }
        .section { padding: 30px 40px; border-top: 1px solid #eee; }
        .section h2 { font-size: 1.5em; margin-bottom: 16px; color: #1a4d8f; }
        table { width: 100%; border-collapse: collapse; font-size: 0.9em; }
        th { background: #f1f3f4; text-align: left; padding: 10px; font-weight: 600; }
        td { padding: 10px; border-bottom: 1px solid #eee; vertical-align: top; }
        tbody tr:hover { background: #f8f9fa; }
        code { font-size: 0.85em; background: #f1f3f4; padding: 2px 4px; border-radius: 3px; }
        .badge { display: inline-block; padding: 2px 10px; border-radius: 12px; font-size: 0.8em; font-weight: 600; margin: 1px; }
        .sev-critical, .prio-high { background: #fce8e6; color: #c5221f; }
        .sev-warning, .prio-medium { background: #fef7e0; color: #b06000; }
        .sev-ok, .prio-low { background: #e6f4ea; color: #137333; }
        .issue { background: #e8f0fe; color: #1967d2; }
        .footer { padding: 20px 40px; text-align: center; color: #888; font-size: 0.85em; background: #f8f9fa; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <h1>⎈ Kubernetes Resource Audit</h1>
        <p>CPU ratio &gt; {{.Model.Parameters.CPURatioThreshold}}x · memory ratio &gt; {{.Model.Parameters.MemoryRatioThreshold}}x · waste cutoff {{percent .Model.Parameters.WasteRatioCutoff}} · system namespaces {{if .Model.Parameters.IncludeSystemNamespaces}}included{{else}}excluded{{end}}</p>
    </div>

    <div class="summary">
        <div class="summary-card"><h3>Containers</h3><div class="value">{{.Model.Summary.Containers}}</div></div>
        <div class="summary-card critical"><h3>Critical</h3><div class="value">{{.Critical}}</div></div>
        <div class="summary-card warning"><h3>Warning</h3><div class="value">{{.Warning}}</div></div>
        <div class="summary-card"><h3>Issue rate</h3><div class="value">{{percent .Model.Summary.IssueRate}}</div></div>
        {{with .Model.Cost}}<div class="summary-card savings"><h3>Monthly waste</h3><div class="value">{{printf "%.2f" .TotalWasteMonthly}} {{.Currency}}</div></div>{{end}}
    </div>

    {{with .Trend}}
    <div class="section">
        <h2>Since previous run</h2>
        <p>Containers with issues {{printf "%+d" .ContainersWithIssues}} · critical {{printf "%+d" .Critical}} · warning {{printf "%+d" .Warning}}</p>
    </div>
    {{end}}

    <div class="section">
        <h2>Namespaces</h2>
        <table>
            <thead><tr><th>Namespace</th><th>Environment</th><th>Pods</th><th>Containers</th><th>Critical</th><th>Warning</th><th>Health</th><th>Priority</th><th>CPU limits</th><th>CPU waste</th><th>Memory waste</th></tr></thead>
            <tbody>
            {{range .Model.Namespaces}}
            <tr>
                <td><strong>{{.Namespace}}</strong></td><td>{{.Environment}}</td><td>{{.Pods}}</td><td>{{.Containers}}</td>
                <td>{{.Critical}}</td><td>{{.Warning}}</td><td>{{printf "%.0f" .HealthScore}}</td>
                <td><span class="badge prio-{{lower .Priority}}">{{.Priority}}</span></td>
                <td>{{cpu .CPULimits}}</td><td>{{cpu .CPUWaste}}</td><td>{{memory .MemoryWaste}}</td>
            </tr>
            {{end}}
            </tbody>
        </table>
    </div>

    <div class="section">
        <h2>Containers with issues</h2>
        <table>
            <thead><tr><th>Container</th><th>Severity</th><th>Requests</th><th>Limits</th><th>Issues</th></tr></thead>
            <tbody>
            {{range .Flagged}}
            <tr>
                <td><strong>{{.Namespace}}/{{.Pod}}</strong><br>{{.Container}}</td>
                <td><span class="badge sev-{{lower .Severity}}">{{.Severity}}</span></td>
                <td>{{cpu .CPURequest}} CPU<br>{{memory .MemoryRequest}}</td>
                <td>{{cpu .CPULimit}} CPU<br>{{memory .MemoryLimit}}</td>
                <td>{{range .Issues}}<span class="badge issue">{{.}}</span>{{end}}</td>
            </tr>
            {{end}}
            </tbody>
        </table>
    </div>

    {{if .Model.Parameters.MetricsAvailable}}
    <div class="section">
        <h2>Top waste</h2>
        <table>
            <thead><tr><th>#</th><th>Pod</th><th>Kind</th><th>Requested</th><th>Observed</th><th>Waste</th><th>Category</th></tr></thead>
            <tbody>
            {{range .TopWaste}}{{$row := .}}
            <tr>
                <td>{{.Rank}}</td><td>{{.Entity}}</td><td>{{.Kind}}</td>
                <td>{{amount .Kind .Requested}}</td><td>{{with .Observed}}{{amount $row.Kind .}}{{end}}</td>
                <td>{{amount .Kind .Waste}}</td><td>{{.Category}}</td>
            </tr>
            {{end}}
            </tbody>
        </table>
    </div>
    {{end}}

    {{if .Model.Recommendations}}
    <div class="section">
        <h2>Recommendations</h2>
        <table>
            <thead><tr><th>Workload</th><th>Type</th><th>Current</th><th>Recommended</th><th>Savings/Month</th><th>Command</th></tr></thead>
            <tbody>
            {{range .Model.Recommendations}}
            <tr>
                <td><strong>{{.Namespace}}/{{.WorkloadName}}</strong><br>{{.WorkloadKind}}</td>
                <td>{{.Type}}</td>
                <td>{{cpu .CurrentCPU}} CPU<br>{{memory .CurrentMemory}}</td>
                <td>{{cpu .RecommendedCPU}} CPU<br>{{memory .RecommendedMemory}}</td>
                <td><strong style="color: #34a853;">{{printf "%.2f" .Savings}}</strong></td>
                <td>{{with command .}}<code>{{.}}</code>{{end}}</td>
            </tr>
            {{end}}
            </tbody>
        </table>
    </div>
    {{end}}

    {{if .Model.Scheduling}}
    <div class="section">
        <h2>Scheduling</h2>
        <table>
            <thead><tr><th>Type</th><th>Name</th><th>Node</th><th>Reason</th></tr></thead>
            <tbody>
            {{range .Model.Scheduling}}
            <tr><td>{{.Type}}</td><td>{{.Namespace}}/{{.Name}}</td><td>{{.Node}}</td><td>{{.Reason}}</td></tr>
            {{end}}
            </tbody>
        </table>
    </div>
    {{end}}

    {{if .Model.Gaps}}
    <div class="section">
        <h2>Skipped entities</h2>
        <table>
            <thead><tr><th>Kind</th><th>Entity</th><th>Error</th></tr></thead>
            <tbody>
            {{range .Model.Gaps}}<tr><td>{{.Kind}}</td><td>{{.Entity}}</td><td>{{.Error}}</td></tr>{{end}}
            </tbody>
        </table>
    </div>
    {{end}}

    <div class="footer">
        <p>Generated by <strong>k8s-resource-audit</strong></p>
    </div>
</div>
</body>
</html>
`

const topWasteRows = 20

var htmlTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"lower": func(s any) string {
		return strings.ToLower(fmt.Sprintf("%v", s))
	},
	"percent": func(f float64) string { return fmt.Sprintf("%.1f%%", f*100) },
	"cpu":     quantity.FormatCPU,
	"memory":  quantity.FormatMemory,
	"amount": func(kind models.ResourceKind, q quantity.Quantity) string {
		if kind == models.ResourceCPU {
			return quantity.FormatCPU(q)
		}
		return quantity.FormatMemory(q)
	},
	"command": converter.Command,
}).Parse(htmlTemplate))

type htmlData struct {
	Model    report.Model
	Trend    *report.Trend
	Critical int
	Warning  int
	Flagged  []report.ContainerRow
	TopWaste []report.EfficiencyRow
}

// GenerateHTML renders a self-contained HTML report.
func GenerateHTML(m report.Model, trend *report.Trend, writer io.Writer) error {
	data := htmlData{
		Model:    m,
		Trend:    trend,
		Critical: m.Summary.Severity[models.SeverityCritical],
		Warning:  m.Summary.Severity[models.SeverityWarning],
	}
	for _, c := range m.Containers {
		if len(c.Issues) > 0 {
			data.Flagged = append(data.Flagged, c)
		}
	}
	for _, r := range m.Efficiency {
		if r.Measured && r.Rank > 0 && r.Rank <= topWasteRows {
			data.TopWaste = append(data.TopWaste, r)
		}
	}

	if err := htmlTmpl.Execute(writer, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

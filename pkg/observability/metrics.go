// Package observability publishes audit results as Prometheus metrics for
// the node-exporter textfile collector.
package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/report"
)

// Recorder holds the audit gauges on its own registry.
type Recorder struct {
	registry *prometheus.Registry

	containers     *prometheus.GaugeVec
	issues         *prometheus.GaugeVec
	namespaceScore *prometheus.GaugeVec
	waste          *prometheus.GaugeVec
	wasteCost      prometheus.Gauge
	schedulingPods *prometheus.GaugeVec
	gaps           prometheus.Gauge
	runDuration    prometheus.Gauge
	lastRun        prometheus.Gauge
	runsTotal      *prometheus.CounterVec
}

// NewRecorder constructs a recorder and registers its collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		containers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "resource_audit_containers",
			Help: "Classified containers by severity",
		}, []string{"severity"}),
		issues: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "resource_audit_issues",
			Help: "Containers carrying each issue code",
		}, []string{"code"}),
		namespaceScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "resource_audit_namespace_health_score",
			Help: "Share of healthy containers per namespace, 0 to 100",
		}, []string{"namespace", "priority"}),
		waste: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "resource_audit_waste",
			Help: "Requested but unused resources in base units (millicores, bytes)",
		}, []string{"resource"}),
		wasteCost: factory.NewGauge(prometheus.GaugeOpts{
			Name: "resource_audit_monthly_waste_cost",
			Help: "Estimated monthly cost of measured waste",
		}),
		schedulingPods: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "resource_audit_scheduling_issues",
			Help: "Pending pods, failed pods and over-capacity nodes",
		}, []string{"type"}),
		gaps: factory.NewGauge(prometheus.GaugeOpts{
			Name: "resource_audit_skipped_entities",
			Help: "Entities that could not be classified",
		}),
		runDuration: factory.NewGauge(prometheus.GaugeOpts{
			Name: "resource_audit_run_duration_seconds",
			Help: "Wall time of the last audit run",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "resource_audit_last_run_timestamp_seconds",
			Help: "Unix time the last audit run finished",
		}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "resource_audit_runs_total",
			Help: "Audit runs by final status",
		}, []string{"status"}),
	}
}

// Registry exposes the collectors, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// ObserveModel publishes the headline numbers of one audit.
func (r *Recorder) ObserveModel(m report.Model) {
	for _, sev := range models.Severities {
		r.containers.WithLabelValues(sev.String()).Set(float64(m.Summary.Severity[sev]))
	}
	for _, code := range models.AllIssueCodes() {
		r.issues.WithLabelValues(code.String()).Set(float64(m.Summary.Issues[code]))
	}

	r.namespaceScore.Reset()
	for _, ns := range m.Namespaces {
		r.namespaceScore.WithLabelValues(ns.Namespace, string(ns.Priority)).Set(ns.HealthScore)
	}

	r.waste.WithLabelValues("cpu").Set(float64(m.Summary.CPU.Waste))
	r.waste.WithLabelValues("memory").Set(float64(m.Summary.Memory.Waste))
	r.wasteCost.Set(m.Summary.MonthlyWasteCost)

	counts := map[models.SchedulingIssueType]int{
		models.SchedulingPending:      0,
		models.SchedulingFailed:       0,
		models.SchedulingOverCapacity: 0,
	}
	for _, row := range m.Scheduling {
		counts[row.Type]++
	}
	for typ, n := range counts {
		r.schedulingPods.WithLabelValues(string(typ)).Set(float64(n))
	}

	r.gaps.Set(float64(len(m.Gaps)))
}

// ObserveRun records the duration and outcome of a run.
func (r *Recorder) ObserveRun(status string, started, finished time.Time) {
	r.runDuration.Set(finished.Sub(started).Seconds())
	r.lastRun.Set(float64(finished.Unix()))
	r.runsTotal.WithLabelValues(status).Inc()
}

// WriteTextfile writes every collector to path in the text exposition
// format. The file is replaced atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

// Package storage keeps the history of audit runs.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
	"github.com/opscart/k8s-resource-audit/pkg/report"
)

// ErrNoRuns is returned when no run matches a lookup.
var ErrNoRuns = errors.New("no audit runs recorded")

// Store defines the interface for persistent storage
type Store interface {
	SaveRun(ctx context.Context, run *RunRecord) error
	ListRuns(ctx context.Context, capability string, limit int) ([]*RunRecord, error)
	LatestSummary(ctx context.Context, capability, excludeID string) (*report.Summary, string, error)
	NamespaceHistory(ctx context.Context, namespace string, limit int) ([]*NamespacePoint, error)

	Ping(ctx context.Context) error
	Close() error
}

// RunRecord is one stored audit run with its headline numbers.
type RunRecord struct {
	ID                   string
	Capability           string
	Cluster              string
	Status               string
	StartedAt            time.Time
	FinishedAt           time.Time
	Containers           int
	ContainersWithIssues int
	Critical             int
	Warning              int
	CPUWaste             quantity.Quantity
	MemoryWaste          quantity.Quantity
	MonthlyWasteCost     float64
	Error                string
	Summary              *report.Summary
	Namespaces           []report.NamespaceRow
}

// NamespacePoint is one namespace in one past run.
type NamespacePoint struct {
	RunID                string
	StartedAt            time.Time
	Namespace            string
	Environment          string
	Containers           int
	ContainersWithIssues int
	Critical             int
	HealthScore          float64
	Priority             string
	CPUWaste             quantity.Quantity
	MemoryWaste          quantity.Quantity
}

// NewRunRecord flattens a report model into a run record.
func NewRunRecord(id, capability, cluster string, started, finished time.Time, m report.Model) *RunRecord {
	s := m.Summary
	return &RunRecord{
		ID:                   id,
		Capability:           capability,
		Cluster:              cluster,
		Status:               "success",
		StartedAt:            started,
		FinishedAt:           finished,
		Containers:           s.Containers,
		ContainersWithIssues: s.ContainersWithIssues,
		Critical:             s.Severity[models.SeverityCritical],
		Warning:              s.Severity[models.SeverityWarning],
		CPUWaste:             s.CPU.Waste,
		MemoryWaste:          s.Memory.Waste,
		MonthlyWasteCost:     s.MonthlyWasteCost,
		Summary:              &s,
		Namespaces:           m.Namespaces,
	}
}

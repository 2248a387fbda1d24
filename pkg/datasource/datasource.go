// Package datasource fetches observed container usage for the audit.
package datasource

import (
	"context"
	"errors"
	"time"

	"github.com/opscart/k8s-resource-audit/pkg/snapshot"
)

// ErrUsageUnavailable means the source cannot serve usage at all. The audit
// continues without usage-derived findings.
var ErrUsageUnavailable = errors.New("usage data unavailable")

// UsageSource returns per-container usage for running pods.
type UsageSource interface {
	// Usage returns pod metrics for the namespace, or all namespaces when
	// namespace is empty.
	Usage(ctx context.Context, namespace string) (*snapshot.PodMetricsList, error)
	IsAvailable(ctx context.Context) bool
	Name() string
}

type Config struct {
	PrometheusURL string
	UsePrometheus bool
	// Window is the rate window for Prometheus CPU usage.
	Window  time.Duration
	Timeout time.Duration
}

package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/opscart/k8s-resource-audit/pkg/converter"
	"github.com/opscart/k8s-resource-audit/pkg/snapshot"
)

// MetricsServerSource reads point-in-time usage from metrics.k8s.io.
type MetricsServerSource struct {
	client metricsv.Interface
	logger *zap.Logger
}

func NewMetricsServerSource(client metricsv.Interface, logger *zap.Logger) *MetricsServerSource {
	return &MetricsServerSource{client: client, logger: logger}
}

func (m *MetricsServerSource) Usage(ctx context.Context, namespace string) (*snapshot.PodMetricsList, error) {
	list, err := m.client.MetricsV1beta1().PodMetricses(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		if isMetricsAPIUnavailable(err) {
			m.logger.Warn("metrics API not available", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrUsageUnavailable, err)
		}
		return nil, fmt.Errorf("failed to get pod metrics: %w", err)
	}
	m.logger.Debug("fetched pod metrics", zap.Int("pods", len(list.Items)))
	return converter.PodMetricsList(list), nil
}

func (m *MetricsServerSource) IsAvailable(ctx context.Context) bool {
	_, err := m.client.MetricsV1beta1().PodMetricses("").List(ctx, metav1.ListOptions{Limit: 1})
	return err == nil
}

func (m *MetricsServerSource) Name() string {
	return "metrics-server"
}

// isMetricsAPIUnavailable matches the errors returned when metrics-server is
// not installed or its APIService is not ready.
func isMetricsAPIUnavailable(err error) bool {
	return apierrors.IsNotFound(err) ||
		apierrors.IsServiceUnavailable(err) ||
		apierrors.IsForbidden(err) ||
		apierrors.IsTimeout(err)
}

package datasource

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	k8stesting "k8s.io/client-go/testing"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"
	metricsfake "k8s.io/metrics/pkg/client/clientset/versioned/fake"
)

func TestMetricsServerSourceUsage(t *testing.T) {
	client := metricsfake.NewSimpleClientset()
	client.PrependReactor("list", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, &metricsv1beta1.PodMetricsList{Items: []metricsv1beta1.PodMetrics{{
			ObjectMeta: metav1.ObjectMeta{Name: "api-0", Namespace: "shop"},
			Containers: []metricsv1beta1.ContainerMetrics{{
				Name: "api",
				Usage: corev1.ResourceList{
					corev1.ResourceCPU:    resource.MustParse("450m"),
					corev1.ResourceMemory: resource.MustParse("300Mi"),
				},
			}},
		}}}, nil
	})
	source := NewMetricsServerSource(client, zaptest.NewLogger(t))

	usage, err := source.Usage(context.Background(), "")

	require.NoError(t, err)
	require.Len(t, usage.Items, 1)
	assert.Equal(t, "450m", usage.Items[0].Containers[0].Usage["cpu"])
	assert.Equal(t, "300Mi", usage.Items[0].Containers[0].Usage["memory"])
	assert.True(t, source.IsAvailable(context.Background()))
	assert.Equal(t, "metrics-server", source.Name())
}

func TestMetricsServerSourceUnavailable(t *testing.T) {
	client := metricsfake.NewSimpleClientset()
	client.PrependReactor("list", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewNotFound(schema.GroupResource{Group: "metrics.k8s.io", Resource: "pods"}, "")
	})
	source := NewMetricsServerSource(client, zaptest.NewLogger(t))

	_, err := source.Usage(context.Background(), "shop")

	assert.True(t, errors.Is(err, ErrUsageUnavailable))
	assert.False(t, source.IsAvailable(context.Background()))
}

func TestMetricsServerSourceOtherErrors(t *testing.T) {
	client := metricsfake.NewSimpleClientset()
	client.PrependReactor("list", "pods", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewInternalError(fmt.Errorf("boom"))
	})
	source := NewMetricsServerSource(client, zaptest.NewLogger(t))

	_, err := source.Usage(context.Background(), "")

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUsageUnavailable))
}

func newPrometheus(t *testing.T, handler http.HandlerFunc) *PrometheusSource {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	source, err := NewPrometheusSource(server.URL, 5*time.Minute, zaptest.NewLogger(t))
	require.NoError(t, err)
	source.now = func() time.Time { return time.Unix(1700000000, 0) }
	return source
}

const cpuResponse = `{"status":"success","data":{"resultType":"vector","result":[
 {"metric":{"namespace":"shop","pod":"web-1","container":"app"},"value":[1700000000,"0.0123"]},
 {"metric":{"namespace":"shop","pod":"api-0","container":"api"},"value":[1700000000,"0.45"]},
 {"metric":{"namespace":"shop","pod":"web-1"},"value":[1700000000,"9"]}
]}}`

const memoryResponse = `{"status":"success","data":{"resultType":"vector","result":[
 {"metric":{"namespace":"shop","pod":"web-1","container":"app"},"value":[1700000000,"104857600"]},
 {"metric":{"namespace":"shop","pod":"api-0","container":"api"},"value":[1700000000,"314572800"]}
]}}`

func TestPrometheusSourceUsage(t *testing.T) {
	var (
		mu      sync.Mutex
		queries []string
	)
	source := newPrometheus(t, func(w http.ResponseWriter, r *http.Request) {
		query := r.FormValue("query")
		mu.Lock()
		queries = append(queries, query)
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(query, "container_cpu_usage_seconds_total") {
			fmt.Fprint(w, cpuResponse)
			return
		}
		fmt.Fprint(w, memoryResponse)
	})

	usage, err := source.Usage(context.Background(), "shop")

	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], `namespace="shop"`)
	assert.Contains(t, queries[0], "[5m]")

	require.Len(t, usage.Items, 2)
	assert.Equal(t, "api-0", usage.Items[0].Metadata.Name)
	assert.Equal(t, "450000000n", usage.Items[0].Containers[0].Usage["cpu"])
	assert.Equal(t, "314572800", usage.Items[0].Containers[0].Usage["memory"])

	web := usage.Items[1]
	assert.Equal(t, "web-1", web.Metadata.Name)
	require.Len(t, web.Containers, 1)
	assert.Equal(t, "12300000n", web.Containers[0].Usage["cpu"])
}

func TestPrometheusSourceError(t *testing.T) {
	source := newPrometheus(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"status":"error","errorType":"bad_data","error":"parse error"}`)
	})

	_, err := source.Usage(context.Background(), "")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "CPU query failed")
	assert.False(t, source.IsAvailable(context.Background()))
	assert.Equal(t, "Prometheus", source.Name())
}

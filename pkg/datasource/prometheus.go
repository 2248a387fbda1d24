package datasource

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"go.uber.org/zap"

	"github.com/opscart/k8s-resource-audit/pkg/snapshot"
)

// PrometheusSource derives usage from cAdvisor series: CPU as a rate over
// the window, memory as the current working set.
type PrometheusSource struct {
	client v1.API
	url    string
	window time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewPrometheusSource(url string, window time.Duration, logger *zap.Logger) (*PrometheusSource, error) {
	client, err := api.NewClient(api.Config{
		Address: url,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &PrometheusSource{
		client: v1.NewAPI(client),
		url:    url,
		window: window,
		logger: logger,
		now:    time.Now,
	}, nil
}

type containerKey struct {
	namespace, pod, container string
}

func (p *PrometheusSource) Usage(ctx context.Context, namespace string) (*snapshot.PodMetricsList, error) {
	selector := `container!="",container!="POD"`
	if namespace != "" {
		selector += fmt.Sprintf(`,namespace=%q`, namespace)
	}

	cpuQuery := fmt.Sprintf(`sum by (namespace, pod, container) (rate(container_cpu_usage_seconds_total{%s}[%s]))`,
		selector, model.Duration(p.window))
	cpu, err := p.queryVector(ctx, cpuQuery)
	if err != nil {
		return nil, fmt.Errorf("CPU query failed: %w", err)
	}

	memQuery := fmt.Sprintf(`sum by (namespace, pod, container) (container_memory_working_set_bytes{%s})`, selector)
	mem, err := p.queryVector(ctx, memQuery)
	if err != nil {
		return nil, fmt.Errorf("memory query failed: %w", err)
	}

	usage := map[containerKey]snapshot.ResourceList{}
	for key, cores := range cpu {
		list := usage[key]
		if list == nil {
			list = snapshot.ResourceList{}
			usage[key] = list
		}
		// nanocores keep sub-millicore rates exact through the parser
		list["cpu"] = strconv.FormatInt(int64(math.Round(cores*1e9)), 10) + "n"
	}
	for key, bytes := range mem {
		list := usage[key]
		if list == nil {
			list = snapshot.ResourceList{}
			usage[key] = list
		}
		list["memory"] = strconv.FormatInt(int64(math.Round(bytes)), 10)
	}

	p.logger.Debug("fetched Prometheus usage",
		zap.Int("cpu_series", len(cpu)),
		zap.Int("memory_series", len(mem)))
	return toPodMetrics(usage), nil
}

func (p *PrometheusSource) queryVector(ctx context.Context, query string) (map[containerKey]float64, error) {
	result, warnings, err := p.client.Query(ctx, query, p.now())
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	if len(warnings) > 0 {
		p.logger.Warn("Prometheus query warnings", zap.Strings("warnings", warnings))
	}

	vector, ok := result.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %s for query: %s", result.Type(), query)
	}

	out := make(map[containerKey]float64, len(vector))
	for _, sample := range vector {
		key := containerKey{
			namespace: string(sample.Metric["namespace"]),
			pod:       string(sample.Metric["pod"]),
			container: string(sample.Metric["container"]),
		}
		if key.namespace == "" || key.pod == "" || key.container == "" {
			continue
		}
		out[key] += float64(sample.Value)
	}
	return out, nil
}

func toPodMetrics(usage map[containerKey]snapshot.ResourceList) *snapshot.PodMetricsList {
	keys := make([]containerKey, 0, len(usage))
	for k := range usage {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].namespace != keys[j].namespace {
			return keys[i].namespace < keys[j].namespace
		}
		if keys[i].pod != keys[j].pod {
			return keys[i].pod < keys[j].pod
		}
		return keys[i].container < keys[j].container
	})

	out := &snapshot.PodMetricsList{}
	for _, k := range keys {
		n := len(out.Items)
		if n == 0 || out.Items[n-1].Metadata.Namespace != k.namespace || out.Items[n-1].Metadata.Name != k.pod {
			out.Items = append(out.Items, snapshot.PodMetrics{
				Metadata: snapshot.ObjectMeta{Name: k.pod, Namespace: k.namespace},
			})
			n++
		}
		out.Items[n-1].Containers = append(out.Items[n-1].Containers, snapshot.ContainerMetrics{
			Name:  k.container,
			Usage: usage[k],
		})
	}
	return out
}

func (p *PrometheusSource) IsAvailable(ctx context.Context) bool {
	_, _, err := p.client.Query(ctx, "up", p.now())
	return err == nil
}

func (p *PrometheusSource) Name() string {
	return "Prometheus"
}

// Package audit wires the pipeline: snapshot validation, classification and
// efficiency aggregation over one cluster snapshot.
package audit

import (
	"github.com/opscart/k8s-resource-audit/pkg/classifier"
	"github.com/opscart/k8s-resource-audit/pkg/efficiency"
	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/namespace"
	"github.com/opscart/k8s-resource-audit/pkg/snapshot"
)

// Pipeline runs audits for one validated configuration. It holds no state
// between runs and is safe for concurrent use.
type Pipeline struct {
	config     Config
	classifier *classifier.Classifier
	policy     *namespace.Policy
}

// Result is the outcome of one audit run.
type Result struct {
	// Pods are the running pods with classified containers, ordered by key.
	Pods []models.PodInfo
	// Inactive holds pods in any other phase, unclassified.
	Inactive   []models.PodInfo
	Nodes      []models.NodeInfo
	Namespaces []snapshot.NamespaceInfo
	// Efficiency has one row per running pod and resource kind.
	Efficiency       []models.EfficiencyRow
	Usage            map[string]snapshot.PodUsage
	MetricsAvailable bool
	// Gaps lists the entities that could not be classified.
	Gaps   []snapshot.EntityError
	Config Config
}

// NewPipeline validates cfg. Configuration errors are returned before any
// work starts.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c, err := classifier.New(cfg.Thresholds)
	if err != nil {
		return nil, &ConfigurationError{Field: "thresholds", Err: err}
	}
	policy, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	return &Pipeline{config: cfg, classifier: c, policy: policy}, nil
}

// Policy returns the namespace policy in effect.
func (p *Pipeline) Policy() *namespace.Policy {
	return p.policy
}

// Run classifies everything that can be classified and reports the rest as
// gaps. It never fails as a whole.
func (p *Pipeline) Run(raw snapshot.Raw) Result {
	snap, gaps := snapshot.Build(raw, p.policy)

	result := Result{
		Nodes:            snap.Nodes,
		Namespaces:       snap.Namespaces,
		Usage:            snap.Usage,
		MetricsAvailable: snap.MetricsAvailable,
		Gaps:             gaps,
		Config:           p.config,
	}

	var samples []efficiency.Sample
	for _, pod := range snap.Pods {
		if pod.Phase() != models.PhaseRunning {
			result.Inactive = append(result.Inactive, pod)
			continue
		}

		usage, measured := snap.Usage[pod.Key()]
		pod = p.classifyPod(pod, usage)
		result.Pods = append(result.Pods, pod)

		requests := pod.TotalRequests()
		for _, kind := range models.ResourceKinds {
			if measured {
				samples = append(samples, efficiency.Measured(pod.Key(), kind, requests.Get(kind), usage.Total().Get(kind)))
			} else {
				samples = append(samples, efficiency.Unmeasured(pod.Key(), kind, requests.Get(kind)))
			}
		}
	}
	result.Efficiency = efficiency.Aggregate(samples)

	return result
}

func (p *Pipeline) classifyPod(pod models.PodInfo, usage snapshot.PodUsage) models.PodInfo {
	containers := pod.Containers()
	for i, c := range containers {
		c = p.classifier.Classify(c)
		if u, ok := usage[c.Name()]; ok {
			c = p.classifier.ApplyUsage(c, u)
		}
		containers[i] = c
	}
	return pod.WithContainers(containers)
}

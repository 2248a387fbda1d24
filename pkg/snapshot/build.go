package snapshot

import (
	"errors"
	"fmt"
	"sort"

	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/namespace"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
)

// ErrIncompleteSnapshot marks an entity that lacks a required field or a
// resource kind entry altogether, as opposed to an explicit zero.
var ErrIncompleteSnapshot = errors.New("incomplete snapshot")

// EntityKind names the kind of entity an EntityError refers to.
type EntityKind string

const (
	EntityPod       EntityKind = "pod"
	EntityNode      EntityKind = "node"
	EntityNamespace EntityKind = "namespace"
	EntityMetrics   EntityKind = "metrics"
)

// EntityError is a per-entity validation failure. It never aborts a run;
// the entity is left out and reported as a gap.
type EntityError struct {
	Kind EntityKind
	Name string
	Err  error
}

func (e EntityError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Kind, e.Name, e.Err)
}

func (e EntityError) Unwrap() error {
	return e.Err
}

// NamespaceInfo is an audited namespace.
type NamespaceInfo struct {
	Name        string
	Labels      map[string]string
	Scope       models.Scope
	Environment namespace.Environment
}

// PodUsage maps container names to observed usage.
type PodUsage map[string]models.Resources

// Total sums usage over containers.
func (u PodUsage) Total() models.Resources {
	var total models.Resources
	for _, r := range u {
		total = total.Add(r)
	}
	return total
}

// Snapshot is the validated, typed view of a Raw snapshot. Every slice is
// ordered by name.
type Snapshot struct {
	Pods       []models.PodInfo
	Nodes      []models.NodeInfo
	Namespaces []NamespaceInfo
	// Usage is keyed by namespace/pod.
	Usage            map[string]PodUsage
	MetricsAvailable bool
}

// Build validates raw into a Snapshot. Namespaces excluded by policy are
// dropped. Entities that fail validation are left out and returned as errors.
func Build(raw Raw, policy *namespace.Policy) (Snapshot, []EntityError) {
	b := &builder{policy: policy}

	snap := Snapshot{
		Nodes: b.nodes(raw.Nodes.Items),
		Pods:  b.pods(raw.Pods.Items),
	}
	snap.Namespaces = b.namespaces(raw.Namespaces.Items, snap.Pods)
	if raw.Metrics != nil {
		snap.MetricsAvailable = true
		snap.Usage = b.usage(raw.Metrics.Items)
	}

	sort.SliceStable(b.errs, func(i, j int) bool {
		if b.errs[i].Kind != b.errs[j].Kind {
			return b.errs[i].Kind < b.errs[j].Kind
		}
		return b.errs[i].Name < b.errs[j].Name
	})
	return snap, b.errs
}

type builder struct {
	policy *namespace.Policy
	errs   []EntityError
}

func (b *builder) fail(kind EntityKind, name string, err error) {
	b.errs = append(b.errs, EntityError{Kind: kind, Name: name, Err: err})
}

func (b *builder) nodes(items []Node) []models.NodeInfo {
	seen := map[string]struct{}{}
	var out []models.NodeInfo

	for _, n := range items {
		name := n.Metadata.Name
		if name == "" {
			b.fail(EntityNode, "", fmt.Errorf("%w: node has no name", ErrIncompleteSnapshot))
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		capacity, err := requiredResources(n.Status.Capacity, "capacity")
		if err != nil {
			b.fail(EntityNode, name, err)
			continue
		}
		allocatable, err := requiredResources(n.Status.Allocatable, "allocatable")
		if err != nil {
			b.fail(EntityNode, name, err)
			continue
		}
		pods, err := podCount(n.Status.Allocatable, n.Status.Capacity)
		if err != nil {
			b.fail(EntityNode, name, err)
			continue
		}

		out = append(out, models.NewNodeInfo(name, capacity, allocatable, pods).WithLabels(n.Metadata.Labels))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (b *builder) pods(items []Pod) []models.PodInfo {
	seen := map[string]struct{}{}
	var out []models.PodInfo

	for _, p := range items {
		meta := p.Metadata
		if meta.Name == "" || meta.Namespace == "" {
			b.fail(EntityPod, meta.Namespace+"/"+meta.Name, fmt.Errorf("%w: pod has no name or namespace", ErrIncompleteSnapshot))
			continue
		}
		if !b.policy.Includes(meta.Namespace) {
			continue
		}
		key := meta.Namespace + "/" + meta.Name
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		pod, err := buildPod(p, b.policy)
		if err != nil {
			b.fail(EntityPod, key, err)
			continue
		}
		out = append(out, pod)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func buildPod(p Pod, policy *namespace.Policy) (models.PodInfo, error) {
	if p.Spec.NodeName != "" && len(p.Spec.Containers) == 0 {
		return models.PodInfo{}, fmt.Errorf("%w: scheduled pod has no containers", ErrIncompleteSnapshot)
	}

	containers := make([]models.ContainerResources, 0, len(p.Spec.Containers))
	for i, c := range p.Spec.Containers {
		if c.Name == "" {
			return models.PodInfo{}, fmt.Errorf("%w: container %d has no name", ErrIncompleteSnapshot, i)
		}
		requests, err := parseResources(c.Resources.Requests)
		if err != nil {
			return models.PodInfo{}, fmt.Errorf("container %q requests: %w", c.Name, err)
		}
		limits, err := parseResources(c.Resources.Limits)
		if err != nil {
			return models.PodInfo{}, fmt.Errorf("container %q limits: %w", c.Name, err)
		}
		containers = append(containers, models.NewContainerResources(c.Name, requests, limits))
	}

	scope := models.ScopeUser
	if policy.IsSystem(p.Metadata.Namespace) {
		scope = models.ScopeSystem
	}

	return models.NewPodInfo(p.Metadata.Name, p.Metadata.Namespace, phaseOf(p.Status.Phase), p.Spec.NodeName, containers).
		WithScope(scope).
		WithWorkload(topLevelOwner(p.Metadata)).
		WithReason(statusReason(p.Status)), nil
}

func (b *builder) namespaces(items []Namespace, pods []models.PodInfo) []NamespaceInfo {
	labels := map[string]map[string]string{}
	for _, ns := range items {
		if ns.Metadata.Name == "" {
			b.fail(EntityNamespace, "", fmt.Errorf("%w: namespace has no name", ErrIncompleteSnapshot))
			continue
		}
		labels[ns.Metadata.Name] = ns.Metadata.Labels
	}
	for _, p := range pods {
		if _, ok := labels[p.Namespace()]; !ok {
			labels[p.Namespace()] = nil
		}
	}

	var out []NamespaceInfo
	for name, l := range labels {
		if !b.policy.Includes(name) {
			continue
		}
		scope := models.ScopeUser
		if b.policy.IsSystem(name) {
			scope = models.ScopeSystem
		}
		out = append(out, NamespaceInfo{
			Name:        name,
			Labels:      l,
			Scope:       scope,
			Environment: namespace.ClassifyEnvironment(name, l),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (b *builder) usage(items []PodMetrics) map[string]PodUsage {
	out := make(map[string]PodUsage, len(items))

	for _, m := range items {
		meta := m.Metadata
		key := meta.Namespace + "/" + meta.Name
		if meta.Name == "" || meta.Namespace == "" {
			b.fail(EntityMetrics, key, fmt.Errorf("%w: metrics entry has no pod name or namespace", ErrIncompleteSnapshot))
			continue
		}
		if !b.policy.Includes(meta.Namespace) {
			continue
		}
		if _, dup := out[key]; dup {
			continue
		}

		usage, err := podUsage(m.Containers)
		if err != nil {
			b.fail(EntityMetrics, key, err)
			continue
		}
		out[key] = usage
	}
	return out
}

func podUsage(containers []ContainerMetrics) (PodUsage, error) {
	usage := make(PodUsage, len(containers))
	for _, c := range containers {
		r, err := requiredResources(c.Usage, fmt.Sprintf("container %q usage", c.Name))
		if err != nil {
			return nil, err
		}
		usage[c.Name] = r
	}
	return usage, nil
}

// parseResources parses an optional cpu/memory list. Missing keys are zero.
func parseResources(list ResourceList) (models.Resources, error) {
	cpu, err := quantity.ParseCPU(list["cpu"])
	if err != nil {
		return models.Resources{}, err
	}
	if cpu < 0 {
		return models.Resources{}, &quantity.InvalidQuantityError{Kind: "cpu", Raw: list["cpu"], Err: errNegative}
	}
	memory, err := quantity.ParseMemory(list["memory"])
	if err != nil {
		return models.Resources{}, err
	}
	if memory < 0 {
		return models.Resources{}, &quantity.InvalidQuantityError{Kind: "memory", Raw: list["memory"], Err: errNegative}
	}
	return models.Resources{CPU: cpu, Memory: memory}, nil
}

var errNegative = errors.New("negative amount")

// requiredResources parses a list that must carry both cpu and memory.
func requiredResources(list ResourceList, what string) (models.Resources, error) {
	for _, kind := range models.ResourceKinds {
		if _, ok := list[kind.String()]; !ok {
			return models.Resources{}, fmt.Errorf("%w: %s has no %s entry", ErrIncompleteSnapshot, what, kind)
		}
	}
	r, err := parseResources(list)
	if err != nil {
		return models.Resources{}, fmt.Errorf("%s: %w", what, err)
	}
	return r, nil
}

func podCount(lists ...ResourceList) (int64, error) {
	for _, list := range lists {
		raw, ok := list["pods"]
		if !ok {
			continue
		}
		q, err := resource.ParseQuantity(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: pods %q", quantity.ErrInvalidQuantity, raw)
		}
		return q.Value(), nil
	}
	return 0, nil
}

func phaseOf(raw string) models.Phase {
	switch p := models.Phase(raw); p {
	case models.PhasePending, models.PhaseRunning, models.PhaseSucceeded, models.PhaseFailed:
		return p
	}
	return models.PhaseUnknown
}

// statusReason extracts why a pod is not running: the PodScheduled=False
// condition for pending pods, the status reason otherwise.
func statusReason(status PodStatus) string {
	for _, c := range status.Conditions {
		if c.Type == "PodScheduled" && c.Status == "False" {
			return joinReason(c.Reason, c.Message)
		}
	}
	return joinReason(status.Reason, status.Message)
}

func joinReason(reason, message string) string {
	switch {
	case reason == "":
		return message
	case message == "":
		return reason
	}
	return reason + ": " + message
}

// Package snapshot is the input boundary of the audit. It holds the raw,
// kubectl-shaped cluster state and validates it into typed records.
package snapshot

// Quantities are kept as strings so that one malformed value surfaces as a
// gap for its entity instead of failing the decode of the whole list.

type ObjectMeta struct {
	Name            string            `json:"name"`
	Namespace       string            `json:"namespace,omitempty"`
	Labels          map[string]string `json:"labels,omitempty"`
	OwnerReferences []OwnerReference  `json:"ownerReferences,omitempty"`
}

type OwnerReference struct {
	Kind string `json:"kind"`
	Name string `json:"name"`
}

type ResourceList map[string]string

type ResourceRequirements struct {
	Requests ResourceList `json:"requests,omitempty"`
	Limits   ResourceList `json:"limits,omitempty"`
}

type Container struct {
	Name      string               `json:"name"`
	Resources ResourceRequirements `json:"resources"`
}

type PodSpec struct {
	NodeName   string      `json:"nodeName,omitempty"`
	Containers []Container `json:"containers"`
}

type PodCondition struct {
	Type    string `json:"type"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
	Message string `json:"message,omitempty"`
}

type PodStatus struct {
	Phase      string         `json:"phase,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Message    string         `json:"message,omitempty"`
	Conditions []PodCondition `json:"conditions,omitempty"`
}

type Pod struct {
	Metadata ObjectMeta `json:"metadata"`
	Spec     PodSpec    `json:"spec"`
	Status   PodStatus  `json:"status"`
}

type PodList struct {
	Items []Pod `json:"items"`
}

type NodeStatus struct {
	Capacity    ResourceList `json:"capacity,omitempty"`
	Allocatable ResourceList `json:"allocatable,omitempty"`
}

type Node struct {
	Metadata ObjectMeta `json:"metadata"`
	Status   NodeStatus `json:"status"`
}

type NodeList struct {
	Items []Node `json:"items"`
}

type Namespace struct {
	Metadata ObjectMeta `json:"metadata"`
}

type NamespaceList struct {
	Items []Namespace `json:"items"`
}

type ContainerMetrics struct {
	Name  string       `json:"name"`
	Usage ResourceList `json:"usage"`
}

type PodMetrics struct {
	Metadata   ObjectMeta         `json:"metadata"`
	Containers []ContainerMetrics `json:"containers"`
}

type PodMetricsList struct {
	Items []PodMetrics `json:"items"`
}

// Raw is one fetched cluster snapshot. Metrics is nil when no usage source
// was reachable.
type Raw struct {
	Pods       PodList
	Nodes      NodeList
	Namespaces NamespaceList
	Metrics    *PodMetricsList
}

// Merge concatenates independently fetched parts. Build orders everything
// by name, so the order of parts does not affect the result.
func Merge(parts ...Raw) Raw {
	var merged Raw
	for _, p := range parts {
		merged.Pods.Items = append(merged.Pods.Items, p.Pods.Items...)
		merged.Nodes.Items = append(merged.Nodes.Items, p.Nodes.Items...)
		merged.Namespaces.Items = append(merged.Namespaces.Items, p.Namespaces.Items...)
		if p.Metrics != nil {
			if merged.Metrics == nil {
				merged.Metrics = &PodMetricsList{}
			}
			merged.Metrics.Items = append(merged.Metrics.Items, p.Metrics.Items...)
		}
	}
	return merged
}

// InNamespace keeps the pods, namespaces and metrics of one namespace. Nodes
// are cluster-scoped and kept as is. An empty namespace returns r unchanged.
func (r Raw) InNamespace(namespace string) Raw {
	if namespace == "" {
		return r
	}
	out := Raw{Nodes: r.Nodes}
	for _, p := range r.Pods.Items {
		if p.Metadata.Namespace == namespace {
			out.Pods.Items = append(out.Pods.Items, p)
		}
	}
	for _, ns := range r.Namespaces.Items {
		if ns.Metadata.Name == namespace {
			out.Namespaces.Items = append(out.Namespaces.Items, ns)
		}
	}
	if r.Metrics != nil {
		out.Metrics = &PodMetricsList{}
		for _, m := range r.Metrics.Items {
			if m.Metadata.Namespace == namespace {
				out.Metrics.Items = append(out.Metrics.Items, m)
			}
		}
	}
	return out
}

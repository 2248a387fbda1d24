package models

// Phase mirrors the Kubernetes pod phase.
type Phase string

const (
	PhasePending   Phase = "Pending"
	PhaseRunning   Phase = "Running"
	PhaseSucceeded Phase = "Succeeded"
	PhaseFailed    Phase = "Failed"
	PhaseUnknown   Phase = "Unknown"
)

// WorkloadRef is the top-level owner of a pod (Deployment, StatefulSet, ...).
type WorkloadRef struct {
	Kind string
	Name string
}

// PodInfo is an immutable pod record. Containers keep cluster-reported order.
type PodInfo struct {
	name       string
	namespace  string
	node       string
	phase      Phase
	reason     string
	scope      Scope
	workload   WorkloadRef
	containers []ContainerResources
}

// NewPodInfo builds a pod record. The containers slice is copied.
func NewPodInfo(name, namespace string, phase Phase, node string, containers []ContainerResources) PodInfo {
	return PodInfo{
		name:       name,
		namespace:  namespace,
		phase:      phase,
		node:       node,
		containers: cloneContainers(containers),
	}
}

func (p PodInfo) Name() string          { return p.name }
func (p PodInfo) Namespace() string     { return p.namespace }
func (p PodInfo) Node() string          { return p.node }
func (p PodInfo) Phase() Phase          { return p.phase }
func (p PodInfo) Reason() string        { return p.reason }
func (p PodInfo) Scope() Scope          { return p.scope }
func (p PodInfo) Workload() WorkloadRef { return p.workload }

// Key identifies the pod as namespace/name.
func (p PodInfo) Key() string { return p.namespace + "/" + p.name }

// Scheduled reports whether the pod has a node assignment.
func (p PodInfo) Scheduled() bool { return p.node != "" }

// Containers returns a copy of the container records.
func (p PodInfo) Containers() []ContainerResources { return cloneContainers(p.containers) }

// WithContainers returns a copy carrying containers.
func (p PodInfo) WithContainers(containers []ContainerResources) PodInfo {
	p.containers = cloneContainers(containers)
	return p
}

// WithScope returns a copy with the namespace scope set.
func (p PodInfo) WithScope(scope Scope) PodInfo {
	p.scope = scope
	return p
}

// WithWorkload returns a copy with the owning workload set.
func (p PodInfo) WithWorkload(w WorkloadRef) PodInfo {
	p.workload = w
	return p
}

// WithReason returns a copy with the status reason (pending/failed detail) set.
func (p PodInfo) WithReason(reason string) PodInfo {
	p.reason = reason
	return p
}

// TotalRequests sums container requests.
func (p PodInfo) TotalRequests() Resources {
	var total Resources
	for _, c := range p.containers {
		total = total.Add(c.requests)
	}
	return total
}

// TotalLimits sums container limits.
func (p PodInfo) TotalLimits() Resources {
	var total Resources
	for _, c := range p.containers {
		total = total.Add(c.limits)
	}
	return total
}

// HasIssues reports whether any container has at least one issue.
func (p PodInfo) HasIssues() bool {
	for _, c := range p.containers {
		if len(c.issues) > 0 {
			return true
		}
	}
	return false
}

func cloneContainers(in []ContainerResources) []ContainerResources {
	if in == nil {
		return nil
	}
	out := make([]ContainerResources, len(in))
	copy(out, in)
	return out
}

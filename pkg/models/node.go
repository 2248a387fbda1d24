package models

// NodeInfo is an immutable node record.
type NodeInfo struct {
	name         string
	instanceType string
	capacity     Resources
	allocatable  Resources
	podCapacity  int64
	labels       map[string]string
}

// NewNodeInfo builds a node record.
func NewNodeInfo(name string, capacity, allocatable Resources, podCapacity int64) NodeInfo {
	return NodeInfo{
		name:        name,
		capacity:    capacity,
		allocatable: allocatable,
		podCapacity: podCapacity,
	}
}

func (n NodeInfo) Name() string           { return n.name }
func (n NodeInfo) InstanceType() string   { return n.instanceType }
func (n NodeInfo) Capacity() Resources    { return n.capacity }
func (n NodeInfo) Allocatable() Resources { return n.allocatable }
func (n NodeInfo) PodCapacity() int64     { return n.podCapacity }

// Labels returns a copy of the node labels.
func (n NodeInfo) Labels() map[string]string {
	out := make(map[string]string, len(n.labels))
	for k, v := range n.labels {
		out[k] = v
	}
	return out
}

// WithLabels returns a copy carrying labels. The instance type is read from
// the well-known labels.
func (n NodeInfo) WithLabels(labels map[string]string) NodeInfo {
	n.labels = make(map[string]string, len(labels))
	for k, v := range labels {
		n.labels[k] = v
	}
	n.instanceType = labels["node.kubernetes.io/instance-type"]
	if n.instanceType == "" {
		n.instanceType = labels["beta.kubernetes.io/instance-type"]
	}
	if n.instanceType == "" {
		n.instanceType = "unknown"
	}
	return n
}

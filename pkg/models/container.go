package models

import "github.com/opscart/k8s-resource-audit/pkg/quantity"

// Resources holds one quantity per resource kind.
type Resources struct {
	CPU    quantity.Quantity
	Memory quantity.Quantity
}

// Get returns the quantity for kind.
func (r Resources) Get(kind ResourceKind) quantity.Quantity {
	if kind == ResourceCPU {
		return r.CPU
	}
	return r.Memory
}

// Add sums two resource sets.
func (r Resources) Add(o Resources) Resources {
	return Resources{CPU: r.CPU + o.CPU, Memory: r.Memory + o.Memory}
}

// ContainerResources is the immutable resource spec of one container.
type ContainerResources struct {
	name     string
	requests Resources
	limits   Resources
	issues   []IssueCode
}

// NewContainerResources builds an unclassified container record.
func NewContainerResources(name string, requests, limits Resources) ContainerResources {
	return ContainerResources{name: name, requests: requests, limits: limits}
}

func (c ContainerResources) Name() string                     { return c.name }
func (c ContainerResources) Requests() Resources              { return c.requests }
func (c ContainerResources) Limits() Resources                { return c.limits }
func (c ContainerResources) CPURequest() quantity.Quantity    { return c.requests.CPU }
func (c ContainerResources) CPULimit() quantity.Quantity      { return c.limits.CPU }
func (c ContainerResources) MemoryRequest() quantity.Quantity { return c.requests.Memory }
func (c ContainerResources) MemoryLimit() quantity.Quantity   { return c.limits.Memory }

// Issues returns a copy of the ordered issue set.
func (c ContainerResources) Issues() []IssueCode {
	if len(c.issues) == 0 {
		return nil
	}
	out := make([]IssueCode, len(c.issues))
	copy(out, c.issues)
	return out
}

// HasIssue reports whether code is in the issue set.
func (c ContainerResources) HasIssue(code IssueCode) bool {
	for _, i := range c.issues {
		if i == code {
			return true
		}
	}
	return false
}

// WithIssues returns a copy whose issue set is the union of the current set and codes.
func (c ContainerResources) WithIssues(codes ...IssueCode) ContainerResources {
	merged := make([]IssueCode, 0, len(c.issues)+len(codes))
	merged = append(merged, c.issues...)
	merged = append(merged, codes...)
	c.issues = normalizeIssues(merged)
	return c
}

package models

import (
	"fmt"
	"sort"
)

// ResourceKind identifies the resource a quantity measures.
type ResourceKind int

const (
	ResourceCPU ResourceKind = iota
	ResourceMemory
)

// ResourceKinds lists every kind in reporting order.
var ResourceKinds = []ResourceKind{ResourceCPU, ResourceMemory}

func (k ResourceKind) String() string {
	switch k {
	case ResourceCPU:
		return "cpu"
	case ResourceMemory:
		return "memory"
	}
	return fmt.Sprintf("ResourceKind(%d)", int(k))
}

// Unit is the normalized base unit of the kind.
func (k ResourceKind) Unit() string {
	if k == ResourceCPU {
		return "m"
	}
	return "bytes"
}

func (k ResourceKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ResourceKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "cpu":
		*k = ResourceCPU
	case "memory":
		*k = ResourceMemory
	default:
		return fmt.Errorf("unknown resource kind %q", text)
	}
	return nil
}

// IssueCode is a closed set of misconfiguration findings.
type IssueCode int

const (
	IssueNoCPURequest IssueCode = iota + 1
	IssueNoMemoryRequest
	IssueNoCPULimit
	IssueNoMemoryLimit
	IssueOverProvisionedCPU
	IssueOverProvisionedMemory
	IssueOverRequested
	IssueCPUThrottleRisk
)

var issueNames = map[IssueCode]string{
	IssueNoCPURequest:          "NO_CPU_REQUEST",
	IssueNoMemoryRequest:       "NO_MEMORY_REQUEST",
	IssueNoCPULimit:            "NO_CPU_LIMIT",
	IssueNoMemoryLimit:         "NO_MEMORY_LIMIT",
	IssueOverProvisionedCPU:    "OVER_PROVISIONED_CPU",
	IssueOverProvisionedMemory: "OVER_PROVISIONED_MEMORY",
	IssueOverRequested:         "OVER_REQUESTED",
	IssueCPUThrottleRisk:       "CPU_THROTTLE_RISK",
}

// AllIssueCodes returns every issue code in declaration order.
func AllIssueCodes() []IssueCode {
	return []IssueCode{
		IssueNoCPURequest,
		IssueNoMemoryRequest,
		IssueNoCPULimit,
		IssueNoMemoryLimit,
		IssueOverProvisionedCPU,
		IssueOverProvisionedMemory,
		IssueOverRequested,
		IssueCPUThrottleRisk,
	}
}

func (c IssueCode) String() string {
	if name, ok := issueNames[c]; ok {
		return name
	}
	return fmt.Sprintf("IssueCode(%d)", int(c))
}

// IsMissingResource reports whether the issue is one of the NO_* codes.
func (c IssueCode) IsMissingResource() bool {
	switch c {
	case IssueNoCPURequest, IssueNoMemoryRequest, IssueNoCPULimit, IssueNoMemoryLimit:
		return true
	}
	return false
}

func (c IssueCode) MarshalText() ([]byte, error) {
	if _, ok := issueNames[c]; !ok {
		return nil, fmt.Errorf("unknown issue code %d", int(c))
	}
	return []byte(c.String()), nil
}

func (c *IssueCode) UnmarshalText(text []byte) error {
	parsed, err := ParseIssueCode(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseIssueCode maps the wire name back to its code.
func ParseIssueCode(name string) (IssueCode, error) {
	for code, n := range issueNames {
		if n == name {
			return code, nil
		}
	}
	return 0, fmt.Errorf("unknown issue code %q", name)
}

// normalizeIssues deduplicates and orders codes by declaration order.
func normalizeIssues(codes []IssueCode) []IssueCode {
	if len(codes) == 0 {
		return nil
	}
	seen := make(map[IssueCode]struct{}, len(codes))
	out := make([]IssueCode, 0, len(codes))
	for _, c := range codes {
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Severity is totally ordered: OK < WARNING < CRITICAL.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
)

// Severities lists every severity from lowest to highest.
var Severities = []Severity{SeverityOK, SeverityWarning, SeverityCritical}

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "OK"
	case SeverityWarning:
		return "WARNING"
	case SeverityCritical:
		return "CRITICAL"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	for _, candidate := range Severities {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown severity %q", text)
}

// Scope tells whether a namespace hosts user workloads or cluster infrastructure.
type Scope int

const (
	ScopeUser Scope = iota
	ScopeSystem
)

func (s Scope) String() string {
	if s == ScopeSystem {
		return "system"
	}
	return "user"
}

func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

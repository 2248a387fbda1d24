// Package namespace decides which namespaces host cluster infrastructure and
// which host user workloads.
package namespace

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRule is returned for empty or malformed match rules.
var ErrInvalidRule = errors.New("invalid namespace rule")

// Rule matches a namespace name exactly or by prefix. Matching is case-sensitive.
type Rule struct {
	Pattern string
	Prefix  bool
}

// Matches reports whether name satisfies the rule.
func (r Rule) Matches(name string) bool {
	if r.Prefix {
		return strings.HasPrefix(name, r.Pattern)
	}
	return name == r.Pattern
}

func (r Rule) String() string {
	if r.Prefix {
		return r.Pattern + "*"
	}
	return r.Pattern
}

// DefaultRules returns the built-in system namespace list.
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "kube-system"},
		{Pattern: "kube-public"},
		{Pattern: "kube-node-lease"},
		{Pattern: "default"},
		{Pattern: "ingress-controller"},
		{Pattern: "kube-", Prefix: true},
		{Pattern: "cattle-", Prefix: true},
		{Pattern: "rancher-", Prefix: true},
	}
}

// ParseRules converts "name" and "prefix-*" entries into rules, keeping order.
func ParseRules(entries []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" || entry == "*" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRule, entry)
		}
		pattern, prefix := strings.CutSuffix(entry, "*")
		if strings.Contains(pattern, "*") {
			return nil, fmt.Errorf("%w: wildcard only allowed at the end: %q", ErrInvalidRule, entry)
		}
		rules = append(rules, Rule{Pattern: pattern, Prefix: prefix})
	}
	return rules, nil
}

// Policy classifies namespaces. A name that matches no rule is a user
// workload namespace: an unknown namespace is always shown, never hidden.
type Policy struct {
	rules         []Rule
	includeSystem bool
}

// NewPolicy builds a policy over rules. When includeSystem is false, system
// namespaces are filtered out of the audit.
func NewPolicy(rules []Rule, includeSystem bool) *Policy {
	copied := make([]Rule, len(rules))
	copy(copied, rules)
	return &Policy{rules: copied, includeSystem: includeSystem}
}

// DefaultPolicy uses DefaultRules and excludes system namespaces.
func DefaultPolicy() *Policy {
	return NewPolicy(DefaultRules(), false)
}

// IsSystem reports whether name matches any system rule.
func (p *Policy) IsSystem(name string) bool {
	for _, r := range p.rules {
		if r.Matches(name) {
			return true
		}
	}
	return false
}

// Includes reports whether the namespace takes part in the audit.
func (p *Policy) Includes(name string) bool {
	return p.includeSystem || !p.IsSystem(name)
}

// IncludeSystem reports whether system namespaces are audited.
func (p *Policy) IncludeSystem() bool {
	return p.includeSystem
}

// Rules returns a copy of the match list.
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

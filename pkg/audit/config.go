package audit

import (
	"errors"
	"fmt"

	"github.com/opscart/k8s-resource-audit/pkg/classifier"
	"github.com/opscart/k8s-resource-audit/pkg/namespace"
)

// Config holds every value the pipeline consumes. It is plain data: the
// pipeline reads no environment or files.
type Config struct {
	Thresholds classifier.Thresholds
	// IncludeSystem audits system namespaces too.
	IncludeSystem bool
	// SystemNamespaces replaces the built-in match list when non-empty.
	// Entries ending in "*" are prefixes.
	SystemNamespaces []string
	// ExtraSystemNamespaces is appended to the match list.
	ExtraSystemNamespaces []string
}

// DefaultConfig returns the stock thresholds and the built-in namespace list.
func DefaultConfig() Config {
	return Config{Thresholds: classifier.DefaultThresholds()}
}

// ConfigurationError rejects a configuration before any entity is processed.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Validate checks thresholds and namespace rules.
func (c Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		field := "thresholds"
		var terr *classifier.ThresholdError
		if errors.As(err, &terr) {
			field = terr.Name
		}
		return &ConfigurationError{Field: field, Err: err}
	}
	_, err := c.rules()
	return err
}

// Policy builds the namespace policy described by the config.
func (c Config) Policy() (*namespace.Policy, error) {
	rules, err := c.rules()
	if err != nil {
		return nil, err
	}
	return namespace.NewPolicy(rules, c.IncludeSystem), nil
}

func (c Config) rules() ([]namespace.Rule, error) {
	rules := namespace.DefaultRules()
	if len(c.SystemNamespaces) > 0 {
		parsed, err := namespace.ParseRules(c.SystemNamespaces)
		if err != nil {
			return nil, &ConfigurationError{Field: "system-namespaces", Err: err}
		}
		rules = parsed
	}
	extra, err := namespace.ParseRules(c.ExtraSystemNamespaces)
	if err != nil {
		return nil, &ConfigurationError{Field: "extra-system-namespaces", Err: err}
	}
	return append(rules, extra...), nil
}

package config

import (
	"errors"
	"testing"
	"time"

	"github.com/opscart/k8s-resource-audit/pkg/audit"
)

func TestNewConfigDefaults(t *testing.T) {
	for _, key := range []string{"PROMETHEUS_URL", "CPU_RATIO_THRESHOLD", "WASTE_RATIO_CUTOFF", "SYSTEM_NAMESPACES", "OUTPUT_FORMAT", "STORAGE_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg := NewConfig()

	if cfg.PrometheusURL != "http://localhost:9090" {
		t.Errorf("Expected default Prometheus URL, got %s", cfg.PrometheusURL)
	}
	if cfg.Audit.Thresholds.CPURatio != 4 {
		t.Errorf("Expected default cpu ratio 4, got %v", cfg.Audit.Thresholds.CPURatio)
	}
	if cfg.Audit.Thresholds.WasteRatioCutoff != 0.8 {
		t.Errorf("Expected default waste cutoff 0.8, got %v", cfg.Audit.Thresholds.WasteRatioCutoff)
	}
	if cfg.Audit.SystemNamespaces != nil {
		t.Errorf("Expected no namespace override, got %v", cfg.Audit.SystemNamespaces)
	}
	if cfg.OutputFormat != "table" {
		t.Errorf("Expected table output, got %s", cfg.OutputFormat)
	}
	if cfg.StorageEnabled {
		t.Error("Storage should be disabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

func TestConfigFromEnvironment(t *testing.T) {
	t.Setenv("PROMETHEUS_URL", "http://prometheus:9090")
	t.Setenv("USE_PROMETHEUS", "true")
	t.Setenv("CPU_RATIO_THRESHOLD", "6")
	t.Setenv("THROTTLE_RATIO", "0.75")
	t.Setenv("INCLUDE_SYSTEM_NAMESPACES", "1")
	t.Setenv("EXTRA_SYSTEM_NAMESPACES", "monitoring, istio-*")
	t.Setenv("METRICS_WINDOW", "15m")

	cfg := NewConfig()

	if !cfg.UsePrometheus || cfg.PrometheusURL != "http://prometheus:9090" {
		t.Errorf("Expected Prometheus enabled at custom URL, got %v %s", cfg.UsePrometheus, cfg.PrometheusURL)
	}
	if cfg.Audit.Thresholds.CPURatio != 6 {
		t.Errorf("Expected cpu ratio 6 from env, got %v", cfg.Audit.Thresholds.CPURatio)
	}
	if cfg.Audit.Thresholds.ThrottleRatio != 0.75 {
		t.Errorf("Expected throttle ratio 0.75 from env, got %v", cfg.Audit.Thresholds.ThrottleRatio)
	}
	if !cfg.Audit.IncludeSystem {
		t.Error("Expected system namespaces to be included")
	}
	extra := cfg.Audit.ExtraSystemNamespaces
	if len(extra) != 2 || extra[0] != "monitoring" || extra[1] != "istio-*" {
		t.Errorf("Expected trimmed extra namespaces, got %q", extra)
	}
	if cfg.MetricsWindow != 15*time.Minute {
		t.Errorf("Expected 15m window, got %v", cfg.MetricsWindow)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Config should be valid: %v", err)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
		field string
	}{
		{"unparsable ratio", "CPU_RATIO_THRESHOLD", "four", "cpu-ratio"},
		{"ratio below one", "MEMORY_RATIO_THRESHOLD", "0.5", "memory-ratio"},
		{"cutoff above one", "WASTE_RATIO_CUTOFF", "1.5", "waste-ratio-cutoff"},
		{"blank namespace entry", "SYSTEM_NAMESPACES", "kube-system,,default", "system-namespaces"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			err := NewConfig().Validate()

			var cerr *audit.ConfigurationError
			if !errors.As(err, &cerr) {
				t.Fatalf("Expected ConfigurationError, got %v", err)
			}
			if cerr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, cerr.Field)
			}
		})
	}
}

func TestValidateInfrastructure(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"storage without url", func(c *Config) { c.StorageEnabled = true; c.DatabaseURL = "" }},
		{"prometheus without url", func(c *Config) { c.UsePrometheus = true; c.PrometheusURL = "" }},
		{"short window", func(c *Config) { c.MetricsWindow = time.Second }},
		{"negative cost", func(c *Config) { c.CPUCostPerCore = -1 }},
		{"unknown format", func(c *Config) { c.OutputFormat = "xml" }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

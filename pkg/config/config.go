package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/opscart/k8s-resource-audit/pkg/audit"
	"github.com/opscart/k8s-resource-audit/pkg/classifier"
)

// Config holds application configuration
type Config struct {
	// Cluster
	Kubeconfig string
	Timeout    time.Duration

	// Usage
	UsePrometheus  bool
	PrometheusURL  string
	MetricsWindow  time.Duration
	MetricsEnabled bool

	// Storage
	StorageEnabled bool
	DatabaseURL    string

	// Reports
	ReportsDir      string
	TextfileMetrics string

	// Pricing, per month. Zero means the provider default.
	CPUCostPerCore   float64
	MemoryCostPerGiB float64

	// Audit thresholds and namespace policy
	Audit audit.Config

	// Output
	OutputFormat string // table, json, yaml, commands
	Verbose      bool
}

// NewConfig creates a new configuration from the environment with defaults
func NewConfig() *Config {
	defaults := classifier.DefaultThresholds()
	return &Config{
		Kubeconfig:       getEnv("KUBECONFIG", ""),
		Timeout:          getEnvDuration("AUDIT_TIMEOUT", 2*time.Minute),
		UsePrometheus:    getEnvBool("USE_PROMETHEUS", false),
		PrometheusURL:    getEnv("PROMETHEUS_URL", "http://localhost:9090"),
		MetricsWindow:    getEnvDuration("METRICS_WINDOW", 5*time.Minute),
		MetricsEnabled:   getEnvBool("METRICS_ENABLED", true),
		StorageEnabled:   getEnvBool("STORAGE_ENABLED", false),
		DatabaseURL:      getEnv("DATABASE_URL", "host=localhost port=5432 user=audit password=devpassword dbname=resourceaudit sslmode=disable"),
		ReportsDir:       getEnv("REPORTS_DIR", "reports"),
		TextfileMetrics:  getEnv("TEXTFILE_METRICS", ""),
		CPUCostPerCore:   getEnvFloat("CPU_COST_PER_CORE_MONTH", 0),
		MemoryCostPerGiB: getEnvFloat("MEMORY_COST_PER_GIB_MONTH", 0),
		Audit: audit.Config{
			Thresholds: classifier.Thresholds{
				CPURatio:         getEnvFloat("CPU_RATIO_THRESHOLD", defaults.CPURatio),
				MemoryRatio:      getEnvFloat("MEMORY_RATIO_THRESHOLD", defaults.MemoryRatio),
				WasteRatioCutoff: getEnvFloat("WASTE_RATIO_CUTOFF", defaults.WasteRatioCutoff),
				ThrottleRatio:    getEnvFloat("THROTTLE_RATIO", defaults.ThrottleRatio),
			},
			IncludeSystem:         getEnvBool("INCLUDE_SYSTEM_NAMESPACES", false),
			SystemNamespaces:      getEnvList("SYSTEM_NAMESPACES"),
			ExtraSystemNamespaces: getEnvList("EXTRA_SYSTEM_NAMESPACES"),
		},
		OutputFormat: getEnv("OUTPUT_FORMAT", "table"),
		Verbose:      getEnvBool("VERBOSE", false),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

// getEnvFloat keeps an unparsable value as NaN so Validate rejects it
// instead of silently using the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated list. Blank entries are kept so the
// namespace rule parser can reject them.
func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.StorageEnabled && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set when storage is enabled")
	}
	if c.UsePrometheus && c.PrometheusURL == "" {
		return fmt.Errorf("PROMETHEUS_URL must be set when Prometheus is enabled")
	}
	if c.MetricsWindow < time.Minute {
		return fmt.Errorf("metrics window must be at least 1 minute")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.CPUCostPerCore < 0 || c.MemoryCostPerGiB < 0 {
		return fmt.Errorf("cost overrides must not be negative")
	}
	switch c.OutputFormat {
	case "table", "json", "yaml", "commands":
	default:
		return fmt.Errorf("unknown output format %q", c.OutputFormat)
	}
	return c.Audit.Validate()
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/opscart/k8s-resource-audit/pkg/audit"
	"github.com/opscart/k8s-resource-audit/pkg/config"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
	"github.com/opscart/k8s-resource-audit/pkg/snapshot"
	"github.com/opscart/k8s-resource-audit/pkg/storage"
)

const testdata = "../../pkg/snapshot/testdata/"

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c := config.NewConfig()
	c.ReportsDir = t.TempDir()
	c.StorageEnabled = false
	c.TextfileMetrics = ""
	c.OutputFormat = "table"
	c.Audit = audit.DefaultConfig()
	return c
}

func offlineOptions() auditOptions {
	return auditOptions{
		Files: snapshot.Files{
			Pods:       testdata + "pods.json",
			Nodes:      testdata + "nodes.json",
			Namespaces: testdata + "namespaces.yaml",
			Metrics:    testdata + "metrics.json",
		},
		Provider:  "default",
		ClusterID: "test",
	}
}

func runDirs(t *testing.T, c *config.Config) []string {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(c.ReportsDir, capability))
	require.NoError(t, err)
	var dirs []string
	for _, e := range entries {
		dirs = append(dirs, filepath.Join(c.ReportsDir, capability, e.Name()))
	}
	return dirs
}

func readManifest(t *testing.T, dir string) map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	require.NoError(t, err)
	var manifest map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &manifest))
	return manifest
}

func TestRunAuditOffline(t *testing.T) {
	c := testConfig(t)
	var stdout, stderr bytes.Buffer

	err := runAudit(context.Background(), c, offlineOptions(), zaptest.NewLogger(t), &stdout, &stderr)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "=== Audit Summary ===")
	assert.Contains(t, stdout.String(), "NAMESPACE")
	assert.Contains(t, stderr.String(), "[INFO] Run directory:")

	dirs := runDirs(t, c)
	require.Len(t, dirs, 1)
	manifest := readManifest(t, dirs[0])
	assert.Equal(t, "success", manifest["status"])
	inputs := manifest["inputs"].(map[string]interface{})
	assert.Equal(t, "files", inputs["source"])
	assert.Equal(t, "(all)", inputs["namespace"])

	for _, name := range []string{"report.json", "report.html", "limitrange.yaml", "summary.md"} {
		assert.FileExists(t, filepath.Join(dirs[0], name))
	}
}

func TestRunAuditTrendAgainstPreviousRun(t *testing.T) {
	c := testConfig(t)
	logger := zaptest.NewLogger(t)
	var first bytes.Buffer
	require.NoError(t, runAudit(context.Background(), c, offlineOptions(), logger, &first, &bytes.Buffer{}))

	c.OutputFormat = "json"
	var second bytes.Buffer
	require.NoError(t, runAudit(context.Background(), c, offlineOptions(), logger, &second, &bytes.Buffer{}))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(second.Bytes(), &decoded))
	trend, ok := decoded["trend"].(map[string]interface{})
	require.True(t, ok, "second run should carry a trend")
	assert.Equal(t, 0.0, trend["containers_with_issues"])
	assert.Len(t, runDirs(t, c), 2)
}

func TestRunAuditSingleNamespace(t *testing.T) {
	c := testConfig(t)
	c.OutputFormat = "json"
	opts := offlineOptions()
	opts.Namespace = "shop"
	var stdout bytes.Buffer

	require.NoError(t, runAudit(context.Background(), c, opts, zaptest.NewLogger(t), &stdout, &bytes.Buffer{}))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &decoded))
	containers := decoded["containers"].([]interface{})
	require.NotEmpty(t, containers)
	for _, row := range containers {
		assert.Equal(t, "shop", row.(map[string]interface{})["namespace"])
	}

	limitRange, err := os.ReadFile(filepath.Join(runDirs(t, c)[0], "limitrange.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(limitRange), "namespace: shop")
}

func TestRunAuditRecordsFailure(t *testing.T) {
	c := testConfig(t)
	opts := offlineOptions()
	opts.Files.Nodes = testdata + "missing.json"

	err := runAudit(context.Background(), c, opts, zaptest.NewLogger(t), &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)

	dirs := runDirs(t, c)
	require.Len(t, dirs, 1)
	manifest := readManifest(t, dirs[0])
	assert.Equal(t, "failed", manifest["status"])
	assert.NotNil(t, manifest["error"])
}

func TestRunAuditRejectsBadThresholds(t *testing.T) {
	c := testConfig(t)
	c.Audit.Thresholds.CPURatio = 0.5

	err := runAudit(context.Background(), c, offlineOptions(), zaptest.NewLogger(t), &bytes.Buffer{}, &bytes.Buffer{})
	var cfgErr *audit.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "cpu-ratio", cfgErr.Field)

	_, statErr := os.Stat(filepath.Join(c.ReportsDir, capability))
	assert.True(t, os.IsNotExist(statErr), "no run directory before configuration is valid")
}

func TestRunAuditWritesTextfile(t *testing.T) {
	c := testConfig(t)
	c.TextfileMetrics = filepath.Join(t.TempDir(), "resource_audit.prom")

	require.NoError(t, runAudit(context.Background(), c, offlineOptions(), zaptest.NewLogger(t), &bytes.Buffer{}, &bytes.Buffer{}))

	data, err := os.ReadFile(c.TextfileMetrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), `resource_audit_runs_total{status="success"} 1`)
}

func TestResolveRatesOverrides(t *testing.T) {
	c := testConfig(t)
	c.CPUCostPerCore = 40
	opts := auditOptions{Provider: "aws", Region: "us-east-1"}

	rates := resolveRates(context.Background(), c, opts, nil, zaptest.NewLogger(t))
	assert.Equal(t, "aws", rates.Provider)
	assert.Equal(t, 40.0, rates.CPUPerCoreMonth)
	assert.Greater(t, rates.MemoryPerGiBMonth, 0.0)

	opts.Provider = "on-prem"
	rates = resolveRates(context.Background(), c, opts, nil, zaptest.NewLogger(t))
	assert.Equal(t, "default", rates.Provider)
}

func TestRunParse(t *testing.T) {
	tests := []struct {
		raw, kind, want string
		wantErr         bool
	}{
		{raw: "250m", kind: "cpu", want: "250m (250m)\n"},
		{raw: "1.5", kind: "cpu", want: "1500m (1500m)\n"},
		{raw: "128Mi", kind: "memory", want: "134217728 bytes (128Mi)\n"},
		{raw: "12Mb", kind: "memory", wantErr: true},
		{raw: "1", kind: "disk", wantErr: true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		err := runParse(tt.raw, tt.kind, &out)
		if tt.wantErr {
			assert.Error(t, err, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, out.String())
	}
}

func TestPrintRuns(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	runs := []*storage.RunRecord{
		{ID: "20260301_100000-abcd1234", Cluster: "prod", Status: "success", StartedAt: started,
			Containers: 12, ContainersWithIssues: 4, Critical: 1, Warning: 3,
			CPUWaste: quantity.Quantity(1500), MemoryWaste: quantity.Quantity(256 << 20), MonthlyWasteCost: 41.5},
		{ID: "20260301_090000-ffff0000", Cluster: "prod", Status: "failed", StartedAt: started.Add(-time.Hour), Error: "cluster unreachable"},
	}

	var out bytes.Buffer
	printRuns(&out, runs)
	text := out.String()
	assert.Contains(t, text, "1. 20260301_100000-abcd1234 (cluster: prod)")
	assert.Contains(t, text, "Containers: 12 (flagged 4, critical 1, warning 3)")
	assert.Contains(t, text, "Waste: CPU=1500m Memory=256Mi")
	assert.Contains(t, text, "$41.50/month")
	assert.Contains(t, text, "Error: cluster unreachable")

	out.Reset()
	printRuns(&out, nil)
	assert.Equal(t, "No audit runs recorded\n", out.String())
}

func TestPrintNamespaceHistory(t *testing.T) {
	points := []*storage.NamespacePoint{
		{RunID: "r2", StartedAt: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), Namespace: "shop",
			Containers: 3, ContainersWithIssues: 2, Critical: 1, HealthScore: 33.3, Priority: "HIGH"},
	}
	var out bytes.Buffer
	printNamespaceHistory(&out, "shop", points)
	assert.Contains(t, out.String(), "Audit history for namespace 'shop'")
	assert.Contains(t, out.String(), "Health: 33.3  Priority: HIGH")

	assert.NotContains(t, out.String(), "trend:")

	out.Reset()
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	var growing []*storage.NamespacePoint
	for i, waste := range []int64{300, 200, 100} {
		growing = append(growing, &storage.NamespacePoint{
			RunID:                "r" + string(rune('3'-i)),
			StartedAt:            start.Add(-time.Duration(i) * 240 * time.Hour),
			Namespace:            "shop",
			ContainersWithIssues: 2,
			CPUWaste:             quantity.Quantity(waste),
		})
	}
	printNamespaceHistory(&out, "shop", growing)
	assert.Contains(t, out.String(), "CPU waste trend: +150.0%/month, growing (confidence 1.00 over 3 runs)")
	assert.Contains(t, out.String(), "Flagged containers trend: +0.0%/month, stable")

	out.Reset()
	printNamespaceHistory(&out, "ghost", nil)
	assert.Contains(t, out.String(), "No audit history found for namespace: ghost")
}

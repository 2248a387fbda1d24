package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opscart/k8s-resource-audit/pkg/classifier"
	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
	"github.com/opscart/k8s-resource-audit/pkg/snapshot"
)

func fixture(t *testing.T) snapshot.Raw {
	t.Helper()
	raw, err := snapshot.LoadFiles(snapshot.Files{
		Pods:       "../snapshot/testdata/pods.json",
		Nodes:      "../snapshot/testdata/nodes.json",
		Namespaces: "../snapshot/testdata/namespaces.yaml",
		Metrics:    "../snapshot/testdata/metrics.json",
	})
	require.NoError(t, err)
	return raw
}

func TestRun(t *testing.T) {
	p, err := NewPipeline(DefaultConfig())
	require.NoError(t, err)

	result := p.Run(fixture(t))

	require.Len(t, result.Pods, 2)
	api, web := result.Pods[0], result.Pods[1]
	assert.Equal(t, "shop/api-0", api.Key())
	assert.Empty(t, api.Containers()[0].Issues())

	webContainers := web.Containers()
	assert.Equal(t, []models.IssueCode{models.IssueOverProvisionedCPU, models.IssueOverRequested}, webContainers[0].Issues())
	assert.Equal(t, []models.IssueCode{
		models.IssueNoCPURequest,
		models.IssueNoMemoryRequest,
		models.IssueNoCPULimit,
		models.IssueNoMemoryLimit,
	}, webContainers[1].Issues())

	require.Len(t, result.Inactive, 2)
	assert.Equal(t, models.PhasePending, result.Inactive[0].Phase())
	assert.Equal(t, models.PhaseFailed, result.Inactive[1].Phase())

	assert.Len(t, result.Gaps, 3)
	assert.True(t, result.MetricsAvailable)
}

func TestRunEfficiency(t *testing.T) {
	p, err := NewPipeline(DefaultConfig())
	require.NoError(t, err)

	rows := p.Run(fixture(t)).Efficiency

	require.Len(t, rows, 4)
	assert.Equal(t, "shop/api-0", rows[0].Entity())
	assert.Equal(t, models.ResourceCPU, rows[0].Kind())
	assert.Equal(t, quantity.Quantity(50), rows[0].Waste())

	web := rows[2]
	assert.Equal(t, "shop/web-7d9f8-abcde", web.Entity())
	assert.Equal(t, quantity.Quantity(100), web.Requested())
	observed, ok := web.Observed()
	require.True(t, ok)
	assert.Equal(t, quantity.Quantity(6), observed)
	ratio, ok := web.Ratio()
	require.True(t, ok)
	assert.InDelta(t, 0.94, ratio, 1e-9)

	assert.Equal(t, quantity.Quantity(18<<20), rows[3].Waste())
}

func TestRunWithoutMetrics(t *testing.T) {
	p, err := NewPipeline(DefaultConfig())
	require.NoError(t, err)
	raw := fixture(t)
	raw.Metrics = nil

	result := p.Run(raw)

	assert.False(t, result.MetricsAvailable)
	require.Len(t, result.Efficiency, 4)
	for _, row := range result.Efficiency {
		_, measured := row.Observed()
		assert.False(t, measured)
	}
	assert.False(t, result.Pods[1].Containers()[0].HasIssue(models.IssueOverRequested))
	assert.True(t, result.Pods[1].Containers()[0].HasIssue(models.IssueOverProvisionedCPU))
}

func TestRunIsDeterministic(t *testing.T) {
	p, err := NewPipeline(DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, p.Run(fixture(t)), p.Run(fixture(t)))
}

func TestNewPipelineRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"ratio below one", Config{Thresholds: classifier.Thresholds{CPURatio: 0.9, MemoryRatio: 4, WasteRatioCutoff: 0.8, ThrottleRatio: 0.9}}, "cpu-ratio"},
		{"zero cutoff", Config{Thresholds: classifier.Thresholds{CPURatio: 4, MemoryRatio: 4, WasteRatioCutoff: 0, ThrottleRatio: 0.9}}, "waste-ratio-cutoff"},
		{"empty override entry", Config{Thresholds: classifier.DefaultThresholds(), SystemNamespaces: []string{"ok", ""}}, "system-namespaces"},
		{"bad extra entry", Config{Thresholds: classifier.DefaultThresholds(), ExtraSystemNamespaces: []string{"a*b"}}, "extra-system-namespaces"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPipeline(tt.cfg)
			assert.Nil(t, p)
			var cerr *ConfigurationError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

func TestConfigPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SystemNamespaces = []string{"platform-*"}
	cfg.ExtraSystemNamespaces = []string{"monitoring"}

	policy, err := cfg.Policy()
	require.NoError(t, err)

	assert.True(t, policy.IsSystem("platform-ingress"))
	assert.True(t, policy.IsSystem("monitoring"))
	assert.False(t, policy.IsSystem("kube-system"), "override replaces the built-in list")
}

package recommender

import (
	"strings"
	"testing"

	"sigs.k8s.io/yaml"

	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/pricing"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
)

var defaultRates = pricing.Rates{Provider: "default", CPUPerCoreMonth: 23.0, MemoryPerGiBMonth: 3.0, Currency: "USD"}

var web = models.WorkloadRef{Kind: "Deployment", Name: "web"}

func sample(reqCPU, reqMem, usedCPU, usedMem quantity.Quantity) PodSample {
	return PodSample{
		Requested: models.Resources{CPU: reqCPU, Memory: reqMem},
		Used:      models.Resources{CPU: usedCPU, Memory: usedMem},
	}
}

func TestRightSizeRecommendation(t *testing.T) {
	rec := New(defaultRates).Analyze("shop", web, []PodSample{
		sample(1000, 1<<30, 200, 256<<20),
	})

	if rec == nil {
		t.Fatal("Expected recommendation, got nil")
	}
	if rec.Type != RightSize {
		t.Errorf("Expected RIGHT_SIZE, got %s", rec.Type)
	}
	if rec.RecommendedCPU != 400 || rec.RecommendedMemory != 512<<20 {
		t.Errorf("Expected 400m/512Mi, got %d/%d", rec.RecommendedCPU, rec.RecommendedMemory)
	}
	if rec.Savings < 15.2 || rec.Savings > 15.4 {
		t.Errorf("Expected savings ~15.3, got %.2f", rec.Savings)
	}
	if rec.Impact != "LOW" {
		t.Errorf("Expected LOW impact, got %s", rec.Impact)
	}
	if !strings.Contains(rec.String(), "Deployment/web") {
		t.Errorf("String() should name the workload: %s", rec.String())
	}
}

func TestScaleDownIdleWorkload(t *testing.T) {
	rec := New(defaultRates).Analyze("shop", web, []PodSample{
		sample(1000, 1<<30, 0, 1<<20),
		sample(1000, 1<<30, 0, 1<<20),
	})

	if rec.Type != ScaleDown {
		t.Fatalf("Expected SCALE_DOWN, got %s", rec.Type)
	}
	if rec.Pods != 2 {
		t.Errorf("Expected 2 pods, got %d", rec.Pods)
	}
	if rec.Savings != 52.0 {
		t.Errorf("Expected savings 52.00, got %.2f", rec.Savings)
	}
}

func TestNoActionWhenWellSized(t *testing.T) {
	rec := New(defaultRates).Analyze("shop", web, []PodSample{sample(100, 100<<20, 60, 60<<20)})

	if rec.Type != NoAction {
		t.Errorf("Expected NO_ACTION, got %s", rec.Type)
	}
	if rec.RecommendedCPU != rec.CurrentCPU {
		t.Errorf("Expected recommendation to keep current CPU")
	}
}

func TestNoActionWhenSavingsNegligible(t *testing.T) {
	rec := New(defaultRates).Analyze("shop", web, []PodSample{sample(50, 64<<20, 5, 10<<20)})

	if rec.Type != NoAction {
		t.Errorf("Expected NO_ACTION, got %s (savings %.2f)", rec.Type, rec.Savings)
	}
	if rec.Reason != "Savings too small to justify change" {
		t.Errorf("Unexpected reason %q", rec.Reason)
	}
}

func TestAnalyzeWithoutRequests(t *testing.T) {
	rec := New(defaultRates).Analyze("shop", web, []PodSample{sample(0, 0, 300, 300<<20)})

	if rec.Type != NoAction {
		t.Errorf("Expected NO_ACTION for unset requests, got %s", rec.Type)
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	if rec := New(defaultRates).Analyze("shop", web, nil); rec != nil {
		t.Errorf("Expected nil, got %+v", rec)
	}
}

func TestRecommendDefaults(t *testing.T) {
	usage := []models.Resources{
		{CPU: 100, Memory: 100 << 20},
		{CPU: 400, Memory: 400 << 20},
		{CPU: 0, Memory: 900 << 20},
		{CPU: 300, Memory: 300 << 20},
		{CPU: 200, Memory: 200 << 20},
	}

	d := RecommendDefaults(usage)

	want := Defaults{
		CPURequest:    325,
		CPULimit:      740,
		MemoryRequest: 325 << 20,
		MemoryLimit:   555 << 20,
		ActivePods:    4,
	}
	if d != want {
		t.Errorf("RecommendDefaults() = %+v, want %+v", d, want)
	}
}

func TestRecommendDefaultsFloors(t *testing.T) {
	tests := []struct {
		name  string
		usage []models.Resources
	}{
		{"no active pods", []models.Resources{{CPU: 0, Memory: 1 << 30}}},
		{"tiny usage", []models.Resources{{CPU: 1, Memory: 1 << 20}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := RecommendDefaults(tt.usage)
			if d.CPURequest != 50 || d.CPULimit != 100 || d.MemoryRequest != 64<<20 || d.MemoryLimit != 128<<20 {
				t.Errorf("Expected floors, got %+v", d)
			}
		})
	}
}

func TestLimitRangeYAML(t *testing.T) {
	lr := LimitRange(Defaults{CPURequest: 50, CPULimit: 1500, MemoryRequest: 64 << 20, MemoryLimit: 1 << 30}, "shop")

	out, err := yaml.Marshal(lr)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	text := string(out)
	for _, want := range []string{"kind: LimitRange", "namespace: shop", "cpu: 1500m", "memory: 1Gi", "cpu: 50m", "memory: 64Mi", "type: Container"} {
		if !strings.Contains(text, want) {
			t.Errorf("LimitRange YAML missing %q:\n%s", want, text)
		}
	}
}

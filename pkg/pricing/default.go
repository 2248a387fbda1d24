package pricing

import "context"

// DefaultProvider provides fallback pricing for on-prem or unknown clouds
type DefaultProvider struct {
	cpuCost    float64
	memoryCost float64
}

func NewDefaultProvider(cpuCost, memoryCost float64) *DefaultProvider {
	if cpuCost == 0 {
		cpuCost = 23.0 // Conservative default
	}
	if memoryCost == 0 {
		memoryCost = 3.0
	}
	return &DefaultProvider{
		cpuCost:    cpuCost,
		memoryCost: memoryCost,
	}
}

func (d *DefaultProvider) Name() string {
	return "default"
}

func (d *DefaultProvider) Rates(ctx context.Context, region, instanceType string) (Rates, error) {
	return Rates{
		Provider:          "default",
		Region:            "unknown",
		CPUPerCoreMonth:   d.cpuCost,
		MemoryPerGiBMonth: d.memoryCost,
		Currency:          "USD",
	}, nil
}

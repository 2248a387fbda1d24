package pricing

import (
	"context"

	"github.com/opscart/k8s-resource-audit/pkg/quantity"
)

const bytesPerGiB = 1024.0 * 1024.0 * 1024.0

// Rates is the monthly price of one core and one GiB of memory.
type Rates struct {
	Provider          string  `json:"provider"`
	Region            string  `json:"region"`
	CPUPerCoreMonth   float64 `json:"cpu_per_core_month"`
	MemoryPerGiBMonth float64 `json:"memory_per_gib_month"`
	Currency          string  `json:"currency"`
}

// MonthlyCost prices cpu millicores and memory bytes.
func (r Rates) MonthlyCost(cpu, memory quantity.Quantity) float64 {
	return cpu.Cores()*r.CPUPerCoreMonth + float64(memory)/bytesPerGiB*r.MemoryPerGiBMonth
}

// Provider defines the interface for cloud pricing data
type Provider interface {
	Rates(ctx context.Context, region, instanceType string) (Rates, error)
	Name() string
}

type Config struct {
	Provider      string
	Region        string
	DefaultCPU    float64
	DefaultMemory float64
}

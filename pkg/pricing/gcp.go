package pricing

import "context"

// GCPProvider prices GKE nodes from e2-medium averages.
type GCPProvider struct {
	region string
}

func NewGCPProvider(region string) *GCPProvider {
	return &GCPProvider{region: region}
}

func (g *GCPProvider) Name() string {
	return "gcp"
}

func (g *GCPProvider) Rates(ctx context.Context, region, instanceType string) (Rates, error) {
	if region == "" {
		region = g.region
	}
	return Rates{
		Provider:          "gcp",
		Region:            region,
		CPUPerCoreMonth:   31.0,
		MemoryPerGiBMonth: 4.2,
		Currency:          "USD",
	}, nil
}

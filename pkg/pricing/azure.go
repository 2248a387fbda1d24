package pricing

import "context"

// AzureProvider prices AKS nodes.
type AzureProvider struct {
	region string
}

func NewAzureProvider(region string) *AzureProvider {
	return &AzureProvider{region: region}
}

func (a *AzureProvider) Name() string {
	return "azure"
}

// Rates averages common VM sizes: D2s_v3 (2 vCPU, 8 GiB) at ~$0.096/hour
// gives ~$35/core/month and ~$4.3/GiB/month.
func (a *AzureProvider) Rates(ctx context.Context, region, instanceType string) (Rates, error) {
	if region == "" {
		region = a.region
	}
	return Rates{
		Provider:          "azure",
		Region:            region,
		CPUPerCoreMonth:   35.0,
		MemoryPerGiBMonth: 4.3,
		Currency:          "USD",
	}, nil
}

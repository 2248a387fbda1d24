package pricing

import "context"

// AWSProvider prices EKS nodes from typical on-demand rates.
type AWSProvider struct {
	region string
}

func NewAWSProvider(region string) *AWSProvider {
	return &AWSProvider{region: region}
}

func (a *AWSProvider) Name() string {
	return "aws"
}

func (a *AWSProvider) Rates(ctx context.Context, region, instanceType string) (Rates, error) {
	if region == "" {
		region = a.region
	}
	return Rates{
		Provider:          "aws",
		Region:            region,
		CPUPerCoreMonth:   33.0, // $/core/month (t3.medium average)
		MemoryPerGiBMonth: 4.5,
		Currency:          "USD",
	}, nil
}

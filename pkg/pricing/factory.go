package pricing

import (
	"fmt"

	"github.com/opscart/k8s-resource-audit/pkg/models"
)

// NewProvider creates a pricing provider based on cloud detection or config
func NewProvider(nodes []models.NodeInfo, config *Config) (Provider, string, error) {
	provider, region := config.Provider, config.Region
	if provider == "" {
		provider, region = DetectProvider(nodes)
	}

	switch provider {
	case "azure":
		return NewAzureProvider(region), region, nil
	case "aws":
		return NewAWSProvider(region), region, nil
	case "gcp":
		return NewGCPProvider(region), region, nil
	case "default":
		return NewDefaultProvider(config.DefaultCPU, config.DefaultMemory), region, nil
	default:
		return nil, "", fmt.Errorf("unknown provider: %s", provider)
	}
}

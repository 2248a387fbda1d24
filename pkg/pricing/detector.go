package pricing

import (
	"github.com/opscart/k8s-resource-audit/pkg/models"
)

// DetectProvider attempts to detect the cloud provider from Kubernetes node labels
func DetectProvider(nodes []models.NodeInfo) (string, string) {
	if len(nodes) == 0 {
		return "default", "unknown"
	}

	labels := nodes[0].Labels()

	if _, exists := labels["kubernetes.azure.com/cluster"]; exists {
		return "azure", regionFrom(labels, "eastus")
	}

	if _, exists := labels["eks.amazonaws.com/nodegroup"]; exists {
		return "aws", regionFrom(labels, "us-east-1")
	}

	if _, exists := labels["cloud.google.com/gke-nodepool"]; exists {
		return "gcp", regionFrom(labels, "us-central1")
	}

	return "default", "unknown"
}

func regionFrom(labels map[string]string, fallback string) string {
	if region, exists := labels["topology.kubernetes.io/region"]; exists {
		return region
	}
	if region, exists := labels["failure-domain.beta.kubernetes.io/region"]; exists {
		return region
	}
	return fallback
}

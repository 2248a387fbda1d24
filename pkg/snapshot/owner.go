package snapshot

import (
	"strings"

	"github.com/opscart/k8s-resource-audit/pkg/models"
)

// topLevelOwner resolves the workload that owns a pod. A ReplicaSet owner is
// reported as its Deployment by dropping the pod-template hash.
func topLevelOwner(meta ObjectMeta) models.WorkloadRef {
	if len(meta.OwnerReferences) == 0 {
		return models.WorkloadRef{Kind: "Pod", Name: meta.Name}
	}

	owner := meta.OwnerReferences[0]
	if owner.Kind == "ReplicaSet" {
		if lastDash := strings.LastIndex(owner.Name, "-"); lastDash > 0 {
			return models.WorkloadRef{Kind: "Deployment", Name: owner.Name[:lastDash]}
		}
	}
	return models.WorkloadRef{Kind: owner.Kind, Name: owner.Name}
}

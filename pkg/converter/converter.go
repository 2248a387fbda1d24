// Package converter maps Kubernetes API objects onto the kubectl-shaped
// snapshot records, and recommendations back onto kubectl commands.
package converter

import (
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	metricsv1beta1 "k8s.io/metrics/pkg/apis/metrics/v1beta1"

	"github.com/opscart/k8s-resource-audit/pkg/quantity"
	"github.com/opscart/k8s-resource-audit/pkg/recommender"
	"github.com/opscart/k8s-resource-audit/pkg/snapshot"
)

// PodList converts a typed pod list.
func PodList(list *corev1.PodList) snapshot.PodList {
	out := snapshot.PodList{Items: make([]snapshot.Pod, 0, len(list.Items))}
	for i := range list.Items {
		out.Items = append(out.Items, Pod(&list.Items[i]))
	}
	return out
}

// Pod keeps the fields the audit reads. Init and ephemeral containers are
// not part of the steady-state footprint and are dropped.
func Pod(p *corev1.Pod) snapshot.Pod {
	containers := make([]snapshot.Container, 0, len(p.Spec.Containers))
	for _, c := range p.Spec.Containers {
		containers = append(containers, snapshot.Container{
			Name: c.Name,
			Resources: snapshot.ResourceRequirements{
				Requests: resourceList(c.Resources.Requests),
				Limits:   resourceList(c.Resources.Limits),
			},
		})
	}

	conditions := make([]snapshot.PodCondition, 0, len(p.Status.Conditions))
	for _, c := range p.Status.Conditions {
		conditions = append(conditions, snapshot.PodCondition{
			Type:    string(c.Type),
			Status:  string(c.Status),
			Reason:  c.Reason,
			Message: c.Message,
		})
	}

	return snapshot.Pod{
		Metadata: objectMeta(p.ObjectMeta),
		Spec:     snapshot.PodSpec{NodeName: p.Spec.NodeName, Containers: containers},
		Status: snapshot.PodStatus{
			Phase:      string(p.Status.Phase),
			Reason:     p.Status.Reason,
			Message:    p.Status.Message,
			Conditions: conditions,
		},
	}
}

// NodeList converts a typed node list.
func NodeList(list *corev1.NodeList) snapshot.NodeList {
	out := snapshot.NodeList{Items: make([]snapshot.Node, 0, len(list.Items))}
	for _, n := range list.Items {
		out.Items = append(out.Items, snapshot.Node{
			Metadata: objectMeta(n.ObjectMeta),
			Status: snapshot.NodeStatus{
				Capacity:    resourceList(n.Status.Capacity),
				Allocatable: resourceList(n.Status.Allocatable),
			},
		})
	}
	return out
}

// NamespaceList converts a typed namespace list.
func NamespaceList(list *corev1.NamespaceList) snapshot.NamespaceList {
	out := snapshot.NamespaceList{Items: make([]snapshot.Namespace, 0, len(list.Items))}
	for _, ns := range list.Items {
		out.Items = append(out.Items, snapshot.Namespace{Metadata: objectMeta(ns.ObjectMeta)})
	}
	return out
}

// PodMetricsList converts metrics-server pod metrics.
func PodMetricsList(list *metricsv1beta1.PodMetricsList) *snapshot.PodMetricsList {
	out := &snapshot.PodMetricsList{Items: make([]snapshot.PodMetrics, 0, len(list.Items))}
	for _, pm := range list.Items {
		containers := make([]snapshot.ContainerMetrics, 0, len(pm.Containers))
		for _, c := range pm.Containers {
			containers = append(containers, snapshot.ContainerMetrics{
				Name:  c.Name,
				Usage: resourceList(c.Usage),
			})
		}
		out.Items = append(out.Items, snapshot.PodMetrics{
			Metadata:   objectMeta(pm.ObjectMeta),
			Containers: containers,
		})
	}
	return out
}

func objectMeta(m metav1.ObjectMeta) snapshot.ObjectMeta {
	out := snapshot.ObjectMeta{
		Name:      m.Name,
		Namespace: m.Namespace,
		Labels:    m.Labels,
	}
	for _, ref := range m.OwnerReferences {
		out.OwnerReferences = append(out.OwnerReferences, snapshot.OwnerReference{Kind: ref.Kind, Name: ref.Name})
	}
	return out
}

// resourceList keeps quantities in their canonical string form so the
// snapshot parser sees exactly what the API server returned.
func resourceList(list corev1.ResourceList) snapshot.ResourceList {
	if len(list) == 0 {
		return nil
	}
	out := make(snapshot.ResourceList, len(list))
	for name, q := range list {
		out[string(name)] = q.String()
	}
	return out
}

// Command renders the kubectl invocation that applies a recommendation.
// NO_ACTION and bare pods have no command.
func Command(rec recommender.Recommendation) string {
	if rec.Type == recommender.NoAction {
		return ""
	}
	kind := strings.ToLower(rec.WorkloadKind)
	switch kind {
	case "deployment", "statefulset", "daemonset", "replicaset", "job":
	default:
		return ""
	}

	return fmt.Sprintf(
		"kubectl set resources %s %s -n %s --requests=cpu=%s,memory=%s",
		kind,
		rec.WorkloadName,
		rec.Namespace,
		quantity.FormatCPU(rec.RecommendedCPU),
		quantity.FormatMemory(rec.RecommendedMemory),
	)
}

package recommender

import (
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/opscart/k8s-resource-audit/pkg/efficiency"
	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
)

const mib = 1 << 20

// Floors applied to recommended defaults, also used when no pod is active.
const (
	floorCPURequest    = quantity.Quantity(50)
	floorCPULimit      = quantity.Quantity(100)
	floorMemoryRequest = quantity.Quantity(64 * mib)
	floorMemoryLimit   = quantity.Quantity(128 * mib)
)

// Defaults are suggested LimitRange defaults for containers.
type Defaults struct {
	CPURequest    quantity.Quantity `json:"cpu_request_m"`
	CPULimit      quantity.Quantity `json:"cpu_limit_m"`
	MemoryRequest quantity.Quantity `json:"memory_request_bytes"`
	MemoryLimit   quantity.Quantity `json:"memory_limit_bytes"`
	// ActivePods is the number of pods with non-zero CPU usage the
	// percentiles were taken over.
	ActivePods int `json:"active_pods"`
}

// RecommendDefaults derives defaults from per-pod usage: P75 for requests,
// 2x P90 for the CPU limit and 1.5x P90 for the memory limit. Memory is
// taken in whole MiB.
func RecommendDefaults(usage []models.Resources) Defaults {
	var cpu, memory []float64
	for _, u := range usage {
		if u.CPU <= 0 {
			continue
		}
		cpu = append(cpu, float64(u.CPU))
		memory = append(memory, float64(u.Memory)/mib)
	}

	d := Defaults{
		CPURequest:    floorCPURequest,
		CPULimit:      floorCPULimit,
		MemoryRequest: floorMemoryRequest,
		MemoryLimit:   floorMemoryLimit,
		ActivePods:    len(cpu),
	}
	if len(cpu) == 0 {
		return d
	}

	d.CPURequest = maxQuantity(floorCPURequest, quantity.Quantity(efficiency.Percentile(cpu, 75)))
	d.CPULimit = maxQuantity(floorCPULimit, quantity.Quantity(efficiency.Percentile(cpu, 90)*2))
	d.MemoryRequest = maxQuantity(floorMemoryRequest, quantity.Quantity(int64(efficiency.Percentile(memory, 75)))*mib)
	d.MemoryLimit = maxQuantity(floorMemoryLimit, quantity.Quantity(int64(efficiency.Percentile(memory, 90)*1.5))*mib)
	return d
}

// LimitRange renders d as a container LimitRange for namespace.
func LimitRange(d Defaults, namespace string) *corev1.LimitRange {
	return &corev1.LimitRange{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "LimitRange"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      "default-limits",
			Namespace: namespace,
		},
		Spec: corev1.LimitRangeSpec{
			Limits: []corev1.LimitRangeItem{{
				Type: corev1.LimitTypeContainer,
				Default: corev1.ResourceList{
					corev1.ResourceCPU:    *resource.NewMilliQuantity(int64(d.CPULimit), resource.DecimalSI),
					corev1.ResourceMemory: *resource.NewQuantity(int64(d.MemoryLimit), resource.BinarySI),
				},
				DefaultRequest: corev1.ResourceList{
					corev1.ResourceCPU:    *resource.NewMilliQuantity(int64(d.CPURequest), resource.DecimalSI),
					corev1.ResourceMemory: *resource.NewQuantity(int64(d.MemoryRequest), resource.BinarySI),
				},
			}},
		},
	}
}

func maxQuantity(a, b quantity.Quantity) quantity.Quantity {
	if a > b {
		return a
	}
	return b
}

// Package recommender turns observed usage into right-sizing advice and
// namespace LimitRange defaults.
package recommender

import (
	"fmt"

	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/pricing"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
)

type RecommendationType string

const (
	RightSize RecommendationType = "RIGHT_SIZE"
	ScaleDown RecommendationType = "SCALE_DOWN"
	NoAction  RecommendationType = "NO_ACTION"
)

const (
	minCPU    = quantity.Quantity(25)       // 25m minimum
	minMemory = quantity.Quantity(50 << 20) // 50Mi minimum
)

// Recommendation is right-sizing advice for one workload. Quantities are
// per-pod averages.
type Recommendation struct {
	Type              RecommendationType `json:"type"`
	Namespace         string             `json:"namespace"`
	WorkloadKind      string             `json:"workload_kind"`
	WorkloadName      string             `json:"workload_name"`
	Pods              int                `json:"pods"`
	CurrentCPU        quantity.Quantity  `json:"current_cpu_m"`
	CurrentMemory     quantity.Quantity  `json:"current_memory_bytes"`
	RecommendedCPU    quantity.Quantity  `json:"recommended_cpu_m"`
	RecommendedMemory quantity.Quantity  `json:"recommended_memory_bytes"`
	Reason            string             `json:"reason"`
	Savings           float64            `json:"monthly_savings"`
	Impact            string             `json:"impact"`
	Risk              string             `json:"risk"`
}

// PodSample pairs the summed requests of one pod with its observed usage.
type PodSample struct {
	Requested models.Resources
	Used      models.Resources
}

type Recommender struct {
	rates        pricing.Rates
	safetyBuffer float64
}

func New(rates pricing.Rates) *Recommender {
	return &Recommender{
		rates:        rates,
		safetyBuffer: 2.0,
	}
}

// Analyze compares average requests with average usage over the pods of one
// workload. It returns nil when there are no samples.
func (r *Recommender) Analyze(namespace string, workload models.WorkloadRef, samples []PodSample) *Recommendation {
	if len(samples) == 0 {
		return nil
	}

	var requested, used models.Resources
	for _, s := range samples {
		requested = requested.Add(s.Requested)
		used = used.Add(s.Used)
	}
	n := quantity.Quantity(len(samples))
	avgRequested := models.Resources{CPU: requested.CPU / n, Memory: requested.Memory / n}
	avgUsed := models.Resources{CPU: used.CPU / n, Memory: used.Memory / n}

	rec := &Recommendation{
		Namespace:     namespace,
		WorkloadKind:  workload.Kind,
		WorkloadName:  workload.Name,
		Pods:          len(samples),
		CurrentCPU:    avgRequested.CPU,
		CurrentMemory: avgRequested.Memory,
	}

	// Only suggest scale down when usage is near zero, not merely low.
	if avgUsed.CPU < 1 && avgUsed.Memory < 5<<20 {
		rec.Type = ScaleDown
		rec.Reason = "Extremely low resource usage - workload appears idle"
		rec.Impact = "HIGH"
		rec.Risk = "MEDIUM"
		rec.Savings = r.monthlyCost(avgRequested) * float64(len(samples))
		return rec
	}

	recommended := models.Resources{
		CPU:    quantity.Quantity(float64(avgUsed.CPU) * r.safetyBuffer),
		Memory: quantity.Quantity(float64(avgUsed.Memory) * r.safetyBuffer),
	}
	if recommended.CPU < minCPU {
		recommended.CPU = minCPU
	}
	if recommended.Memory < minMemory {
		recommended.Memory = minMemory
	}

	cpuReduction := reduction(avgRequested.CPU, recommended.CPU)
	memReduction := reduction(avgRequested.Memory, recommended.Memory)

	// Only recommend if reduction is >20% AND savings are meaningful
	if cpuReduction > 20 || memReduction > 20 {
		rec.Type = RightSize
		rec.RecommendedCPU = recommended.CPU
		rec.RecommendedMemory = recommended.Memory
		rec.Reason = fmt.Sprintf("Over-provisioned: %.0f%% CPU, %.0f%% memory reduction possible",
			cpuReduction, memReduction)

		currentCost := r.monthlyCost(avgRequested) * float64(len(samples))
		newCost := r.monthlyCost(recommended) * float64(len(samples))
		rec.Savings = currentCost - newCost

		if rec.Savings < 1.0 {
			rec.Type = NoAction
			rec.Reason = "Savings too small to justify change"
			rec.Impact = "NONE"
			rec.Risk = "NONE"
			return rec
		}

		switch {
		case rec.Savings > 50:
			rec.Impact = "HIGH"
		case rec.Savings > 20:
			rec.Impact = "MEDIUM"
		default:
			rec.Impact = "LOW"
		}
		rec.Risk = "LOW"
		return rec
	}

	rec.Type = NoAction
	rec.Reason = "Resource allocation is appropriate"
	rec.RecommendedCPU = avgRequested.CPU
	rec.RecommendedMemory = avgRequested.Memory
	rec.Impact = "NONE"
	rec.Risk = "NONE"
	return rec
}

func (r *Recommender) monthlyCost(res models.Resources) float64 {
	return r.rates.MonthlyCost(res.CPU, res.Memory)
}

// reduction is the percentage saved by going from current to recommended.
// Nothing can be saved on an unset request.
func reduction(current, recommended quantity.Quantity) float64 {
	if current <= 0 {
		return 0
	}
	return float64(current-recommended) / float64(current) * 100
}

func (r *Recommendation) String() string {
	name := r.WorkloadKind + "/" + r.WorkloadName
	switch r.Type {
	case NoAction:
		return fmt.Sprintf("[%s] %s: %s", r.Impact, name, r.Reason)
	case ScaleDown:
		return fmt.Sprintf("[%s] %s: %s (current %s CPU, %s memory, saves $%.2f/month)",
			r.Impact, name, r.Reason,
			quantity.FormatCPU(r.CurrentCPU), quantity.FormatMemory(r.CurrentMemory), r.Savings)
	}
	return fmt.Sprintf("[%s] %s: %s (%s -> %s CPU, %s -> %s memory, saves $%.2f/month)",
		r.Impact, name, r.Reason,
		quantity.FormatCPU(r.CurrentCPU), quantity.FormatCPU(r.RecommendedCPU),
		quantity.FormatMemory(r.CurrentMemory), quantity.FormatMemory(r.RecommendedMemory),
		r.Savings)
}

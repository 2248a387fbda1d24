package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/opscart/k8s-resource-audit/pkg/config"
	"github.com/opscart/k8s-resource-audit/pkg/quantity"
	"github.com/opscart/k8s-resource-audit/pkg/report"
	"github.com/opscart/k8s-resource-audit/pkg/storage"
)

const (
	timeLayout       = "2006-01-02 15:04:05"
	growingThreshold = 3.0
)

func runHistory(ctx context.Context, c *config.Config, namespace string, limit int, logger *zap.Logger, out io.Writer) error {
	store, err := storage.NewPostgresStore(ctx, c.DatabaseURL, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	if namespace != "" {
		points, err := store.NamespaceHistory(ctx, namespace, limit)
		if err != nil {
			return err
		}
		printNamespaceHistory(out, namespace, points)
		return nil
	}

	runs, err := store.ListRuns(ctx, capability, limit)
	if err != nil {
		return err
	}
	printRuns(out, runs)
	return nil
}

func printRuns(out io.Writer, runs []*storage.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No audit runs recorded")
		return
	}

	fmt.Fprintf(out, "Recent audit runs:\n\n")
	for i, run := range runs {
		fmt.Fprintf(out, "%d. %s (cluster: %s)\n", i+1, run.ID, run.Cluster)
		fmt.Fprintf(out, "   Status: %s\n", run.Status)
		fmt.Fprintf(out, "   Started: %s\n", run.StartedAt.Format(timeLayout))
		if run.Error != "" {
			fmt.Fprintf(out, "   Error: %s\n", run.Error)
			fmt.Fprintln(out)
			continue
		}
		fmt.Fprintf(out, "   Containers: %d (flagged %d, critical %d, warning %d)\n",
			run.Containers, run.ContainersWithIssues, run.Critical, run.Warning)
		fmt.Fprintf(out, "   Waste: CPU=%s Memory=%s\n",
			quantity.FormatCPU(run.CPUWaste), quantity.FormatMemory(run.MemoryWaste))
		if run.MonthlyWasteCost > 0 {
			fmt.Fprintf(out, "   Estimated waste: $%.2f/month\n", run.MonthlyWasteCost)
		}
		fmt.Fprintln(out)
	}
}

func printNamespaceHistory(out io.Writer, namespace string, points []*storage.NamespacePoint) {
	if len(points) == 0 {
		fmt.Fprintf(out, "No audit history found for namespace: %s\n", namespace)
		return
	}

	fmt.Fprintf(out, "Audit history for namespace '%s':\n\n", namespace)
	for i, p := range points {
		fmt.Fprintf(out, "%d. %s (%s)\n", i+1, p.StartedAt.Format(timeLayout), p.RunID)
		fmt.Fprintf(out, "   Health: %.1f  Priority: %s\n", p.HealthScore, p.Priority)
		fmt.Fprintf(out, "   Containers: %d (flagged %d, critical %d)\n", p.Containers, p.ContainersWithIssues, p.Critical)
		fmt.Fprintf(out, "   Waste: CPU=%s Memory=%s\n", quantity.FormatCPU(p.CPUWaste), quantity.FormatMemory(p.MemoryWaste))
		fmt.Fprintln(out)
	}

	cpu := make([]report.Point, len(points))
	flagged := make([]report.Point, len(points))
	for i, p := range points {
		cpu[i] = report.Point{At: p.StartedAt, Value: float64(p.CPUWaste)}
		flagged[i] = report.Point{At: p.StartedAt, Value: float64(p.ContainersWithIssues)}
	}
	printGrowth(out, "CPU waste", cpu)
	printGrowth(out, "Flagged containers", flagged)
}

func printGrowth(out io.Writer, label string, points []report.Point) {
	g, err := report.GrowthOf(points)
	if err != nil {
		return
	}
	direction := "stable"
	switch {
	case g.Growing:
		direction = "growing"
	case g.RatePerMonth < -growingThreshold:
		direction = "shrinking"
	}
	fmt.Fprintf(out, "%s trend: %+.1f%%/month, %s (confidence %.2f over %d runs)\n",
		label, g.RatePerMonth, direction, g.Confidence, g.Samples)
}

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"k8s.io/client-go/kubernetes"

	"github.com/opscart/k8s-resource-audit/pkg/audit"
	"github.com/opscart/k8s-resource-audit/pkg/config"
	"github.com/opscart/k8s-resource-audit/pkg/datasource"
	"github.com/opscart/k8s-resource-audit/pkg/models"
	"github.com/opscart/k8s-resource-audit/pkg/observability"
	"github.com/opscart/k8s-resource-audit/pkg/output"
	"github.com/opscart/k8s-resource-audit/pkg/pricing"
	"github.com/opscart/k8s-resource-audit/pkg/report"
	"github.com/opscart/k8s-resource-audit/pkg/reporter"
	"github.com/opscart/k8s-resource-audit/pkg/scanner"
	"github.com/opscart/k8s-resource-audit/pkg/snapshot"
	"github.com/opscart/k8s-resource-audit/pkg/storage"
)

type auditOptions struct {
	Namespace string
	// Files switch to offline mode when Files.Pods is set.
	Files     snapshot.Files
	Provider  string
	Region    string
	ClusterID string
}

func (o auditOptions) offline() bool {
	return o.Files.Pods != ""
}

func (o auditOptions) inputs(c *config.Config) map[string]string {
	in := map[string]string{
		"namespace":      o.Namespace,
		"include_system": fmt.Sprint(c.Audit.IncludeSystem),
	}
	if in["namespace"] == "" {
		in["namespace"] = "(all)"
	}
	if o.offline() {
		in["source"] = "files"
		in["pods"] = o.Files.Pods
	} else {
		in["source"] = "cluster"
		in["usage"] = "metrics-server"
		if c.UsePrometheus {
			in["usage"] = "prometheus"
		}
		if !c.MetricsEnabled {
			in["usage"] = "none"
		}
	}
	return in
}

// runAudit executes one audit end to end. Any error after the run directory
// exists is also recorded in its manifest.
func runAudit(ctx context.Context, c *config.Config, opts auditOptions, logger *zap.Logger, stdout, stderr io.Writer) error {
	pipeline, err := audit.NewPipeline(c.Audit)
	if err != nil {
		return err
	}
	handler, err := output.NewHandler(c.OutputFormat)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	var store storage.Store
	if c.StorageEnabled {
		pg, err := storage.NewPostgresStore(ctx, c.DatabaseURL, logger)
		if err != nil {
			logger.Warn("storage unavailable, run will not be saved", zap.Error(err))
		} else {
			store = pg
			defer store.Close()
		}
	}

	writer := reporter.NewRunWriter(c.ReportsDir, capability, logger)
	run, err := writer.Start(opts.inputs(c))
	if err != nil {
		return err
	}

	raw, err := collect(ctx, c, opts, logger)
	if err != nil {
		_, err = writer.Fail(run, err)
		return err
	}

	result := pipeline.Run(raw)
	rates := resolveRates(ctx, c, opts, result.Nodes, logger)
	m := report.Assemble(result, report.Options{Rates: &rates})

	trend, previousID := previousTrend(ctx, writer, store, run.ID, m.Summary, logger)
	res, err := writer.Finish(run, m, reporter.Options{
		Trend:               trend,
		PreviousRunID:       previousID,
		LimitRangeNamespace: opts.Namespace,
	})
	if err != nil {
		return err
	}
	finished := time.Now().UTC()

	if err := handler.Render(stdout, m, trend); err != nil {
		return fmt.Errorf("failed to render output: %w", err)
	}
	fmt.Fprintf(stderr, "[INFO] Run directory: %s\n", res.Dir)

	if store != nil {
		record := storage.NewRunRecord(run.ID, capability, opts.ClusterID, run.StartedAt, finished, m)
		if err := store.SaveRun(ctx, record); err != nil {
			logger.Warn("failed to save run", zap.String("run_id", run.ID), zap.Error(err))
		} else {
			logger.Info("saved run", zap.String("run_id", run.ID))
		}
	}

	if c.TextfileMetrics != "" {
		recorder := observability.NewRecorder()
		recorder.ObserveModel(m)
		recorder.ObserveRun(string(res.Status), run.StartedAt, finished)
		if err := recorder.WriteTextfile(c.TextfileMetrics); err != nil {
			logger.Warn("failed to write metrics textfile", zap.Error(err))
		}
	}
	return nil
}

// collect reads the snapshot from files or from the live cluster.
func collect(ctx context.Context, c *config.Config, opts auditOptions, logger *zap.Logger) (snapshot.Raw, error) {
	if opts.offline() {
		logger.Info("auditing from files", zap.String("pods", opts.Files.Pods))
		raw, err := snapshot.LoadFiles(opts.Files)
		if err != nil {
			return snapshot.Raw{}, err
		}
		return raw.InNamespace(opts.Namespace), nil
	}

	restConfig, err := scanner.RestConfig(c.Kubeconfig)
	if err != nil {
		return snapshot.Raw{}, err
	}

	var scan *scanner.Scanner
	switch {
	case !c.MetricsEnabled:
		clientset, err := kubernetes.NewForConfig(restConfig)
		if err != nil {
			return snapshot.Raw{}, fmt.Errorf("failed to create clientset: %w", err)
		}
		scan = scanner.NewWithClients(clientset, nil, logger)
	default:
		usage := usageSource(ctx, c, logger)
		scan, err = scanner.New(restConfig, usage, logger)
		if err != nil {
			return snapshot.Raw{}, err
		}
	}
	return scan.Collect(ctx, opts.Namespace)
}

// usageSource returns Prometheus when requested and reachable. A nil result
// lets the scanner fall back to metrics-server.
func usageSource(ctx context.Context, c *config.Config, logger *zap.Logger) datasource.UsageSource {
	if !c.UsePrometheus {
		return nil
	}
	prom, err := datasource.NewPrometheusSource(c.PrometheusURL, c.MetricsWindow, logger)
	if err != nil {
		logger.Warn("failed to create Prometheus client, falling back to metrics-server", zap.Error(err))
		return nil
	}
	if !prom.IsAvailable(ctx) {
		logger.Warn("Prometheus not reachable, falling back to metrics-server", zap.String("url", c.PrometheusURL))
		return nil
	}
	logger.Info("using Prometheus for usage", zap.String("url", c.PrometheusURL), zap.Duration("window", c.MetricsWindow))
	return prom
}

// resolveRates picks the pricing provider from flags or node labels and
// applies any configured overrides.
func resolveRates(ctx context.Context, c *config.Config, opts auditOptions, nodes []models.NodeInfo, logger *zap.Logger) pricing.Rates {
	provider, region, err := pricing.NewProvider(nodes, &pricing.Config{
		Provider:      opts.Provider,
		Region:        opts.Region,
		DefaultCPU:    c.CPUCostPerCore,
		DefaultMemory: c.MemoryCostPerGiB,
	})
	if err != nil {
		logger.Warn("pricing provider failed, using defaults", zap.Error(err))
		provider = pricing.NewDefaultProvider(c.CPUCostPerCore, c.MemoryCostPerGiB)
	}

	var instanceType string
	if len(nodes) > 0 {
		instanceType = nodes[0].InstanceType()
	}
	rates, err := provider.Rates(ctx, region, instanceType)
	if err != nil {
		logger.Warn("failed to get rates, using defaults", zap.String("provider", provider.Name()), zap.Error(err))
		rates, _ = pricing.NewDefaultProvider(c.CPUCostPerCore, c.MemoryCostPerGiB).Rates(ctx, region, instanceType)
	}

	if c.CPUCostPerCore > 0 {
		rates.CPUPerCoreMonth = c.CPUCostPerCore
	}
	if c.MemoryCostPerGiB > 0 {
		rates.MemoryPerGiBMonth = c.MemoryCostPerGiB
	}
	logger.Debug("resolved pricing",
		zap.String("provider", rates.Provider),
		zap.String("region", rates.Region),
		zap.Float64("cpu_per_core_month", rates.CPUPerCoreMonth),
		zap.Float64("memory_per_gib_month", rates.MemoryPerGiBMonth))
	return rates
}

// previousTrend diffs against the latest successful run in the reports
// directory, then in storage.
func previousTrend(ctx context.Context, w *reporter.RunWriter, store storage.Store, runID string, cur report.Summary, logger *zap.Logger) (*report.Trend, string) {
	prev, id, err := w.LoadPreviousSummary(runID)
	if err != nil {
		logger.Warn("failed to load previous run", zap.Error(err))
	}
	if prev == nil && store != nil {
		prev, id, err = store.LatestSummary(ctx, capability, runID)
		if err != nil {
			logger.Debug("no previous run in storage", zap.Error(err))
			prev = nil
		}
	}
	if prev == nil {
		return nil, ""
	}
	trend := report.Diff(*prev, cur)
	return &trend, id
}

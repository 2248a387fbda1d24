package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opscart/k8s-resource-audit/pkg/config"
	"github.com/opscart/k8s-resource-audit/pkg/snapshot"
)

const capability = "resource-audit"

var (
	cfg    *config.Config
	logger *zap.Logger

	namespace    string
	outputFormat string
	reportsDir   string
	kubeconfig   string
	verbose      bool

	usePrometheus bool
	prometheusURL string
	noMetrics     bool

	includeSystem bool
	extraSystem   []string
	cpuRatio      float64
	memoryRatio   float64
	wasteCutoff   float64
	throttleRatio float64

	podsFile       string
	nodesFile      string
	namespacesFile string
	metricsFile    string

	saveResults  bool
	clusterID    string
	provider     string
	region       string
	textfilePath string

	historyLimit     int
	historyNamespace string

	parseKind string

	snapshotDir string
)

var rootCmd = &cobra.Command{
	Use:   "resource-audit",
	Short: "Audit Kubernetes resource requests and limits",
	Long: `Audits the resource requests and limits of every running container,
measures how much of the requested CPU and memory is actually used,
and writes a run directory with CSV tables, an HTML report and a LimitRange suggestion.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if verbose || cfg.Verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run an audit against the cluster or kubectl output files",
	Example: `  resource-audit audit -n shop
  resource-audit audit --use-prometheus --prometheus-url http://prometheus:9090
  resource-audit audit --pods pods.json --nodes nodes.json --metrics top.json -o json`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		applyFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
			os.Exit(1)
		}

		opts := auditOptions{
			Namespace: namespace,
			Files: snapshot.Files{
				Pods:       podsFile,
				Nodes:      nodesFile,
				Namespaces: namespacesFile,
				Metrics:    metricsFile,
			},
			Provider:  provider,
			Region:    region,
			ClusterID: clusterID,
		}
		if err := runAudit(context.Background(), cfg, opts, logger, os.Stdout, os.Stderr); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent audit runs from storage",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("database-url") {
			cfg.DatabaseURL = cmd.Flag("database-url").Value.String()
		}
		if err := runHistory(context.Background(), cfg, historyNamespace, historyLimit, logger, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse <quantity>",
	Short: "Normalize a Kubernetes quantity to millicores or bytes",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runParse(args[0], parseKind, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Record pods, nodes, namespaces and usage to files for offline audits",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		applyFlags(cmd, cfg)
		if err := runSnapshot(context.Background(), cfg, namespace, snapshotDir, logger, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	cfg = config.NewConfig()

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	f := auditCmd.Flags()
	f.StringVarP(&namespace, "namespace", "n", "", "Namespace to audit (default: all namespaces)")
	f.StringVarP(&outputFormat, "output", "o", cfg.OutputFormat, "Output format: table, json, yaml, commands")
	f.StringVar(&reportsDir, "reports-dir", cfg.ReportsDir, "Root directory for run directories")
	f.StringVar(&kubeconfig, "kubeconfig", cfg.Kubeconfig, "Path to kubeconfig (default: ~/.kube/config, then in-cluster)")

	f.BoolVar(&usePrometheus, "use-prometheus", cfg.UsePrometheus, "Read usage from Prometheus instead of metrics-server")
	f.StringVar(&prometheusURL, "prometheus-url", cfg.PrometheusURL, "Prometheus server URL")
	f.BoolVar(&noMetrics, "no-metrics", false, "Skip usage collection")

	f.BoolVar(&includeSystem, "include-system", cfg.Audit.IncludeSystem, "Include system namespaces")
	f.StringSliceVar(&extraSystem, "system-namespace", nil, "Additional system namespace pattern (repeatable)")
	f.Float64Var(&cpuRatio, "cpu-ratio", cfg.Audit.Thresholds.CPURatio, "Flag CPU limit/request ratios above this")
	f.Float64Var(&memoryRatio, "memory-ratio", cfg.Audit.Thresholds.MemoryRatio, "Flag memory limit/request ratios above this")
	f.Float64Var(&wasteCutoff, "waste-cutoff", cfg.Audit.Thresholds.WasteRatioCutoff, "Waste ratio at which a request counts as over-requested")
	f.Float64Var(&throttleRatio, "throttle-ratio", cfg.Audit.Thresholds.ThrottleRatio, "Usage/limit ratio at which CPU throttling is likely")

	f.StringVar(&podsFile, "pods", "", "Audit offline from kubectl get pods -A -o json output")
	f.StringVar(&nodesFile, "nodes", "", "kubectl get nodes -o json output (offline mode)")
	f.StringVar(&namespacesFile, "namespaces-file", "", "kubectl get namespaces -o json output (offline mode)")
	f.StringVar(&metricsFile, "metrics", "", "PodMetricsList JSON from the metrics API (offline mode)")

	f.BoolVar(&saveResults, "save", false, "Save the run to PostgreSQL")
	f.StringVar(&clusterID, "cluster-id", "default", "Cluster identifier stored with the run")
	f.StringVar(&provider, "provider", "", "Cloud provider for cost estimates (azure, aws, gcp, default). Auto-detected if not set")
	f.StringVar(&region, "region", "", "Cloud region for pricing")
	f.StringVar(&textfilePath, "textfile", cfg.TextfileMetrics, "Write Prometheus metrics to this textfile collector path")

	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of runs to show")
	historyCmd.Flags().StringVarP(&historyNamespace, "namespace", "n", "", "Show the history of one namespace")
	historyCmd.Flags().String("database-url", cfg.DatabaseURL, "PostgreSQL connection string")

	parseCmd.Flags().StringVar(&parseKind, "kind", "cpu", "Resource kind: cpu or memory")

	sf := snapshotCmd.Flags()
	sf.StringVarP(&snapshotDir, "out", "d", "snapshot", "Directory to write the snapshot files to")
	sf.StringVarP(&namespace, "namespace", "n", "", "Namespace to record (default: all namespaces)")
	sf.StringVar(&kubeconfig, "kubeconfig", cfg.Kubeconfig, "Path to kubeconfig")
	sf.BoolVar(&usePrometheus, "use-prometheus", cfg.UsePrometheus, "Read usage from Prometheus instead of metrics-server")
	sf.StringVar(&prometheusURL, "prometheus-url", cfg.PrometheusURL, "Prometheus server URL")
	sf.BoolVar(&noMetrics, "no-metrics", false, "Skip usage collection")

	rootCmd.AddCommand(auditCmd, historyCmd, parseCmd, snapshotCmd)
}

// applyFlags overrides environment configuration with explicitly set flags.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	changed := cmd.Flags().Changed

	c.OutputFormat = outputFormat
	c.ReportsDir = reportsDir
	c.Kubeconfig = kubeconfig
	c.UsePrometheus = usePrometheus
	c.PrometheusURL = prometheusURL
	c.TextfileMetrics = textfilePath
	if noMetrics {
		c.MetricsEnabled = false
	}
	if saveResults {
		c.StorageEnabled = true
	}
	if verbose {
		c.Verbose = true
	}

	c.Audit.IncludeSystem = includeSystem
	if changed("system-namespace") {
		c.Audit.ExtraSystemNamespaces = append(c.Audit.ExtraSystemNamespaces, extraSystem...)
	}
	if changed("cpu-ratio") {
		c.Audit.Thresholds.CPURatio = cpuRatio
	}
	if changed("memory-ratio") {
		c.Audit.Thresholds.MemoryRatio = memoryRatio
	}
	if changed("waste-cutoff") {
		c.Audit.Thresholds.WasteRatioCutoff = wasteCutoff
	}
	if changed("throttle-ratio") {
		c.Audit.Thresholds.ThrottleRatio = throttleRatio
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

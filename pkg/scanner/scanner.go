// Package scanner collects a cluster snapshot through the Kubernetes API.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
	metricsv "k8s.io/metrics/pkg/client/clientset/versioned"

	"github.com/opscart/k8s-resource-audit/pkg/converter"
	"github.com/opscart/k8s-resource-audit/pkg/datasource"
	"github.com/opscart/k8s-resource-audit/pkg/snapshot"
)

const pageSize = 500

type Scanner struct {
	clientset kubernetes.Interface
	usage     datasource.UsageSource
	logger    *zap.Logger
}

// RestConfig resolves kubeconfig the way kubectl does: an explicit path,
// then ~/.kube/config, then the in-cluster service account.
func RestConfig(kubeconfig string) (*rest.Config, error) {
	if kubeconfig == "" {
		if home := homedir.HomeDir(); home != "" {
			kubeconfig = filepath.Join(home, ".kube", "config")
		}
	}

	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err == nil {
		return config, nil
	}
	if inCluster, inErr := rest.InClusterConfig(); inErr == nil {
		return inCluster, nil
	}
	return nil, fmt.Errorf("failed to build config: %w", err)
}

// New connects to the cluster. With a nil usage source, metrics-server is
// used.
func New(config *rest.Config, usage datasource.UsageSource, logger *zap.Logger) (*Scanner, error) {
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	if usage == nil {
		metricsClient, err := metricsv.NewForConfig(config)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics client: %w", err)
		}
		usage = datasource.NewMetricsServerSource(metricsClient, logger)
	}

	return NewWithClients(clientset, usage, logger), nil
}

// NewWithClients builds a scanner around existing clients.
func NewWithClients(clientset kubernetes.Interface, usage datasource.UsageSource, logger *zap.Logger) *Scanner {
	return &Scanner{clientset: clientset, usage: usage, logger: logger}
}

// Collect fetches pods, nodes, namespaces and usage concurrently. An empty
// namespace means the whole cluster. Usage failures degrade to a snapshot
// without metrics; any other failure aborts the collection.
func (s *Scanner) Collect(ctx context.Context, namespace string) (snapshot.Raw, error) {
	version, err := s.clientset.Discovery().ServerVersion()
	if err != nil {
		return snapshot.Raw{}, fmt.Errorf("failed to connect to cluster: %w", err)
	}
	s.logger.Info("connected to cluster", zap.String("version", version.GitVersion), zap.String("namespace", namespace))

	var (
		pods       snapshot.PodList
		nodes      snapshot.NodeList
		namespaces snapshot.NamespaceList
		metrics    *snapshot.PodMetricsList
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		pods, err = s.listPods(gctx, namespace)
		return err
	})
	g.Go(func() error {
		list, err := s.clientset.CoreV1().Nodes().List(gctx, metav1.ListOptions{})
		if err != nil {
			return fmt.Errorf("failed to list nodes: %w", err)
		}
		nodes = converter.NodeList(list)
		return nil
	})
	g.Go(func() error {
		var err error
		namespaces, err = s.listNamespaces(gctx, namespace)
		return err
	})
	g.Go(func() error {
		if s.usage == nil {
			return nil
		}
		m, err := s.usage.Usage(gctx, namespace)
		if err != nil {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			fields := []zap.Field{zap.String("source", s.usage.Name()), zap.Error(err)}
			if errors.Is(err, datasource.ErrUsageUnavailable) {
				s.logger.Warn("usage source unavailable, continuing without usage", fields...)
			} else {
				s.logger.Warn("failed to fetch usage, continuing without usage", fields...)
			}
			return nil
		}
		metrics = m
		return nil
	})

	if err := g.Wait(); err != nil {
		return snapshot.Raw{}, err
	}

	s.logger.Info("collected snapshot",
		zap.Int("pods", len(pods.Items)),
		zap.Int("nodes", len(nodes.Items)),
		zap.Int("namespaces", len(namespaces.Items)),
		zap.Bool("metrics", metrics != nil))

	return snapshot.Raw{Pods: pods, Nodes: nodes, Namespaces: namespaces, Metrics: metrics}, nil
}

func (s *Scanner) listPods(ctx context.Context, namespace string) (snapshot.PodList, error) {
	var all corev1.PodList
	opts := metav1.ListOptions{Limit: pageSize}
	for {
		page, err := s.clientset.CoreV1().Pods(namespace).List(ctx, opts)
		if err != nil {
			return snapshot.PodList{}, fmt.Errorf("failed to list pods: %w", err)
		}
		all.Items = append(all.Items, page.Items...)
		if page.Continue == "" {
			break
		}
		opts.Continue = page.Continue
	}
	return converter.PodList(&all), nil
}

func (s *Scanner) listNamespaces(ctx context.Context, namespace string) (snapshot.NamespaceList, error) {
	if namespace != "" {
		ns, err := s.clientset.CoreV1().Namespaces().Get(ctx, namespace, metav1.GetOptions{})
		if err != nil {
			return snapshot.NamespaceList{}, fmt.Errorf("failed to get namespace %s: %w", namespace, err)
		}
		return converter.NamespaceList(&corev1.NamespaceList{Items: []corev1.Namespace{*ns}}), nil
	}

	list, err := s.clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return snapshot.NamespaceList{}, fmt.Errorf("failed to list namespaces: %w", err)
	}
	return converter.NamespaceList(list), nil
}

package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/opscart/k8s-resource-audit/pkg/config"
	"github.com/opscart/k8s-resource-audit/pkg/snapshot"
)

// runSnapshot records the live cluster state for later offline audits.
func runSnapshot(ctx context.Context, c *config.Config, namespace, dir string, logger *zap.Logger, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	raw, err := collect(ctx, c, auditOptions{Namespace: namespace}, logger)
	if err != nil {
		return err
	}
	files, err := snapshot.WriteFiles(raw, dir)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Recorded %d pods, %d nodes, %d namespaces to %s\n",
		len(raw.Pods.Items), len(raw.Nodes.Items), len(raw.Namespaces.Items), dir)
	args := fmt.Sprintf("--pods %s --nodes %s --namespaces-file %s", files.Pods, files.Nodes, files.Namespaces)
	if files.Metrics != "" {
		args += " --metrics " + files.Metrics
	}
	fmt.Fprintf(out, "Audit offline with: resource-audit audit %s\n", args)
	return nil
}

package main

import (
	"fmt"
	"io"

	"github.com/opscart/k8s-resource-audit/pkg/quantity"
)

// runParse prints the normalized value and its canonical form.
func runParse(raw, kind string, out io.Writer) error {
	switch kind {
	case "cpu":
		q, err := quantity.ParseCPU(raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%dm (%s)\n", q.Int64(), quantity.FormatCPU(q))
	case "memory":
		q, err := quantity.ParseMemory(raw)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d bytes (%s)\n", q.Int64(), quantity.FormatMemory(q))
	default:
		return fmt.Errorf("unknown resource kind %q: use cpu or memory", kind)
	}
	return nil
}

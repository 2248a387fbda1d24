// Package output renders an audit model to the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"

	"sigs.k8s.io/yaml"

	"github.com/opscart/k8s-resource-audit/pkg/converter"
	"github.com/opscart/k8s-resource-audit/pkg/report"
)

// Handler writes a model in one output format.
type Handler interface {
	Render(w io.Writer, m report.Model, trend *report.Trend) error
	Format() string
}

// NewHandler returns the handler registered for format.
func NewHandler(format string) (Handler, error) {
	switch format {
	case "", "table":
		return &TableHandler{TopN: 10}, nil
	case "json":
		return JSONHandler{}, nil
	case "yaml":
		return YAMLHandler{}, nil
	case "commands":
		return CommandsHandler{}, nil
	}
	return nil, fmt.Errorf("unsupported output format: %s", format)
}

// envelope is the machine-readable document. The trend is optional.
type envelope struct {
	report.Model
	Trend *report.Trend `json:"trend,omitempty"`
}

type JSONHandler struct{}

func (JSONHandler) Format() string { return "json" }

func (JSONHandler) Render(w io.Writer, m report.Model, trend *report.Trend) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(envelope{Model: m, Trend: trend}); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

type YAMLHandler struct{}

func (YAMLHandler) Format() string { return "yaml" }

func (YAMLHandler) Render(w io.Writer, m report.Model, trend *report.Trend) error {
	data, err := yaml.Marshal(envelope{Model: m, Trend: trend})
	if err != nil {
		return fmt.Errorf("failed to encode YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// CommandsHandler prints one kubectl command per actionable recommendation.
type CommandsHandler struct{}

func (CommandsHandler) Format() string { return "commands" }

func (CommandsHandler) Render(w io.Writer, m report.Model, _ *report.Trend) error {
	for _, rec := range m.Recommendations {
		if cmd := converter.Command(rec); cmd != "" {
			if _, err := fmt.Fprintln(w, cmd); err != nil {
				return err
			}
		}
	}
	return nil
}

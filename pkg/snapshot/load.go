package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"sigs.k8s.io/yaml"
)

// Files names the kubectl output files of an offline audit. Only Pods is
// required.
type Files struct {
	Pods       string
	Nodes      string
	Namespaces string
	Metrics    string
}

// LoadFiles reads the output of `kubectl get ... -o json` (or -o yaml).
func LoadFiles(files Files) (Raw, error) {
	var raw Raw

	if files.Pods == "" {
		return raw, fmt.Errorf("pods file is required")
	}
	if err := decodeFile(files.Pods, &raw.Pods); err != nil {
		return raw, err
	}
	if files.Nodes != "" {
		if err := decodeFile(files.Nodes, &raw.Nodes); err != nil {
			return raw, err
		}
	}
	if files.Namespaces != "" {
		if err := decodeFile(files.Namespaces, &raw.Namespaces); err != nil {
			return raw, err
		}
	}
	if files.Metrics != "" {
		var metrics PodMetricsList
		if err := decodeFile(files.Metrics, &metrics); err != nil {
			return raw, err
		}
		raw.Metrics = &metrics
	}
	return raw, nil
}

// Decode parses JSON or YAML into one of the list types.
func Decode(data []byte, into any) error {
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return nil
}

func decodeFile(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := Decode(data, into); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// WriteFiles records raw under dir in the layout LoadFiles reads back. The
// metrics file is written only when metrics are present.
func WriteFiles(raw Raw, dir string) (Files, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Files{}, fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	files := Files{
		Pods:       filepath.Join(dir, "pods.json"),
		Nodes:      filepath.Join(dir, "nodes.json"),
		Namespaces: filepath.Join(dir, "namespaces.json"),
	}
	docs := []struct {
		path string
		v    any
	}{
		{files.Pods, raw.Pods},
		{files.Nodes, raw.Nodes},
		{files.Namespaces, raw.Namespaces},
	}
	if raw.Metrics != nil {
		files.Metrics = filepath.Join(dir, "metrics.json")
		docs = append(docs, struct {
			path string
			v    any
		}{files.Metrics, raw.Metrics})
	}

	for _, doc := range docs {
		data, err := json.MarshalIndent(doc.v, "", "  ")
		if err != nil {
			return Files{}, fmt.Errorf("failed to encode %s: %w", doc.path, err)
		}
		if err := os.WriteFile(doc.path, data, 0o644); err != nil {
			return Files{}, fmt.Errorf("failed to write %s: %w", doc.path, err)
		}
	}
	return files, nil
}

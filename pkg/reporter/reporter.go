// Package reporter writes the artifacts of one audit run into a run
// directory: reports/<capability>/<run-id>/.
package reporter

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"sigs.k8s.io/yaml"

	"github.com/opscart/k8s-resource-audit/pkg/recommender"
	"github.com/opscart/k8s-resource-audit/pkg/report"
)

// Status of a finished run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

const (
	manifestFile   = "manifest.json"
	summaryFile    = "summary.md"
	summaryJSON    = "summary.json"
	reportJSON     = "report.json"
	reportHTML     = "report.html"
	limitRangeFile = "limitrange.yaml"
)

// Manifest describes a run directory.
type Manifest struct {
	RunID      string            `json:"run_id"`
	Capability string            `json:"capability"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Status     Status            `json:"status"`
	Inputs     map[string]string `json:"inputs"`
	Outputs    []string          `json:"outputs"`
	Error      *string           `json:"error"`
}

// Run is an in-progress run.
type Run struct {
	ID         string
	Capability string
	Dir        string
	StartedAt  time.Time
	Inputs     map[string]string
}

// Result is a finished run.
type Result struct {
	Run
	Status       Status
	ManifestPath string
	SummaryPath  string
	Files        []string
}

// RunWriter creates run directories under a reports root.
type RunWriter struct {
	root       string
	capability string
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

func NewRunWriter(root, capability string, logger *zap.Logger) *RunWriter {
	return &RunWriter{
		root:       root,
		capability: capability,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      func() string { return uuid.NewString()[:8] },
	}
}

// Start creates the run directory. Run IDs sort by start time.
func (w *RunWriter) Start(inputs map[string]string) (*Run, error) {
	started := w.now()
	id := started.Format("20060102_150405") + "-" + w.newID()
	dir := filepath.Join(w.root, w.capability, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}

	copied := make(map[string]string, len(inputs))
	for k, v := range inputs {
		copied[k] = v
	}
	w.logger.Info("started run", zap.String("run_id", id), zap.String("dir", dir))
	return &Run{ID: id, Capability: w.capability, Dir: dir, StartedAt: started, Inputs: copied}, nil
}

// Options select the optional artifacts of a successful run.
type Options struct {
	// Trend is the diff against the previous successful run, if any.
	Trend *report.Trend
	// PreviousRunID names the run the trend was computed against.
	PreviousRunID string
	// LimitRangeNamespace is written into limitrange.yaml.
	LimitRangeNamespace string
}

// Finish writes every artifact of a successful run, then the summary and
// manifest.
func (w *RunWriter) Finish(run *Run, m report.Model, opts Options) (*Result, error) {
	var files []string
	write := func(name string, fn func(path string) error) error {
		path := filepath.Join(run.Dir, name)
		if err := fn(path); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		files = append(files, name)
		return nil
	}

	steps := []struct {
		name string
		fn   func(string) error
	}{
		{reportJSON, func(p string) error { return writeJSON(p, m) }},
		{summaryJSON, func(p string) error { return writeJSON(p, m.Summary) }},
		{reportHTML, func(p string) error { return writeFile(p, func(f *os.File) error { return GenerateHTML(m, opts.Trend, f) }) }},
		{limitRangeFile, func(p string) error { return writeLimitRange(p, m.Defaults, opts.LimitRangeNamespace) }},
	}
	for _, step := range steps {
		if err := write(step.name, step.fn); err != nil {
			return w.fail(run, files, err)
		}
	}
	for _, table := range csvTables(m) {
		table := table
		if err := write(table.name, func(p string) error {
			return writeFile(p, func(f *os.File) error { return writeCSV(f, table.header, table.rows) })
		}); err != nil {
			return w.fail(run, files, err)
		}
	}

	return w.finalize(run, StatusSuccess, files, summaryLines(run, m, opts, files), nil)
}

// Fail records a run that could not produce a report.
func (w *RunWriter) Fail(run *Run, runErr error) (*Result, error) {
	return w.fail(run, nil, runErr)
}

func (w *RunWriter) fail(run *Run, files []string, runErr error) (*Result, error) {
	res, err := w.finalize(run, StatusFailed, files, failureLines(run, runErr), runErr)
	if err != nil {
		return nil, errors.Join(runErr, err)
	}
	return res, runErr
}

func (w *RunWriter) finalize(run *Run, status Status, files []string, summary string, runErr error) (*Result, error) {
	summaryPath := filepath.Join(run.Dir, summaryFile)
	if err := os.WriteFile(summaryPath, []byte(summary), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write summary: %w", err)
	}
	files = append(files, summaryFile)

	manifest := Manifest{
		RunID:      run.ID,
		Capability: run.Capability,
		StartedAt:  run.StartedAt,
		FinishedAt: w.now(),
		Status:     status,
		Inputs:     run.Inputs,
		Outputs:    append(append([]string{}, files...), manifestFile),
	}
	if runErr != nil {
		msg := runErr.Error()
		manifest.Error = &msg
	}
	manifestPath := filepath.Join(run.Dir, manifestFile)
	if err := writeJSON(manifestPath, manifest); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	w.logger.Info("finished run",
		zap.String("run_id", run.ID),
		zap.String("status", string(status)),
		zap.Int("artifacts", len(manifest.Outputs)))

	return &Result{
		Run:          *run,
		Status:       status,
		ManifestPath: manifestPath,
		SummaryPath:  summaryPath,
		Files:        manifest.Outputs,
	}, nil
}

// LoadPreviousSummary returns the summary of the latest successful run
// other than exclude. It returns nil without error when there is none.
func (w *RunWriter) LoadPreviousSummary(exclude string) (*report.Summary, string, error) {
	dir := filepath.Join(w.root, w.capability)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("failed to list runs: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() && e.Name() != exclude {
			ids = append(ids, e.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	for _, id := range ids {
		var manifest Manifest
		if err := readJSON(filepath.Join(dir, id, manifestFile), &manifest); err != nil {
			w.logger.Debug("skipping run without readable manifest", zap.String("run_id", id), zap.Error(err))
			continue
		}
		if manifest.Status != StatusSuccess {
			continue
		}
		var summary report.Summary
		if err := readJSON(filepath.Join(dir, id, summaryJSON), &summary); err != nil {
			w.logger.Warn("skipping run with unreadable summary", zap.String("run_id", id), zap.Error(err))
			continue
		}
		return &summary, id, nil
	}
	return nil, "", nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func writeFile(path string, fn func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeLimitRange(path string, d recommender.Defaults, namespace string) error {
	if namespace == "" {
		namespace = "default"
	}
	data, err := yaml.Marshal(recommender.LimitRange(d, namespace))
	if err != nil {
		return err
	}
	header := fmt.Sprintf("# Suggested container defaults from %d active pods.\n", d.ActivePods)
	return os.WriteFile(path, append([]byte(header), data...), 0o644)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func bullet(format string, args ...any) string {
	return "- " + strings.TrimSpace(fmt.Sprintf(format, args...))
}

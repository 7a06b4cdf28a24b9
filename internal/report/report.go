// Package report renders test runs and validation outcomes into the
// on-disk report set: the fixed-schema test_results.csv, a detailed
// per-run CSV, a full-fidelity JSON report, a human-readable Markdown
// summary, and the append-only summary and history CSVs.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"codeforge/internal/testparse"
)

// AgentOutput records how much each pipeline stage produced; it gives
// test reports their workflow context.
type AgentOutput struct {
	Name   string `json:"name"`
	Output string `json:"-"`
}

// Generator writes reports into a single report directory.
type Generator struct {
	dir string
	now func() time.Time
}

// NewGenerator creates the report directory if needed.
func NewGenerator(dir string) (*Generator, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create report dir: %w", err)
	}
	return &Generator{dir: dir, now: time.Now}, nil
}

// Dir returns the report directory.
func (g *Generator) Dir() string { return g.dir }

// Generate writes the full report set for one test run and returns a
// map from report kind to file path. Kinds: csv, json, markdown,
// test_results_csv.
func (g *Generator) Generate(run testparse.RunResult, workflow []AgentOutput, sessionID string) (map[string]string, error) {
	if sessionID == "" {
		sessionID = run.SessionID
	}
	if sessionID == "" {
		sessionID = "unknown"
	}
	baseName := fmt.Sprintf("test_run_%s_%s", sessionID, g.now().Format("20060102_150405"))

	reports := make(map[string]string, 4)

	csvPath, err := g.writeDetailedCSV(run, baseName, sessionID)
	if err != nil {
		return nil, err
	}
	reports["csv"] = csvPath

	jsonPath, err := g.writeJSONReport(run, workflow, baseName, sessionID)
	if err != nil {
		return nil, err
	}
	reports["json"] = jsonPath

	mdPath, err := g.writeMarkdownReport(run, workflow, baseName, sessionID)
	if err != nil {
		return nil, err
	}
	reports["markdown"] = mdPath

	mainPath, err := g.writeMainCSV(run, sessionID)
	if err != nil {
		return nil, err
	}
	reports["test_results_csv"] = mainPath

	return reports, nil
}

func (g *Generator) path(name string) string {
	return filepath.Join(g.dir, name)
}

func successRate(passed, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(passed) / float64(total) * 100
}

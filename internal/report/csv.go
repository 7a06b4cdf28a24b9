package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"codeforge/internal/testparse"
)

// MainCSVHeaders is the fixed column order of test_results.csv.
// Downstream tooling depends on it; never reorder.
var MainCSVHeaders = []string{
	"timestamp",
	"session_id",
	"test_file",
	"test_name",
	"status",
	"duration_ms",
	"error_message",
	"test_framework",
	"test_suite",
}

// writeMainCSV writes test_results.csv, the primary machine-readable
// output. The file is rewritten whole each run.
func (g *Generator) writeMainCSV(run testparse.RunResult, sessionID string) (string, error) {
	path := g.path("test_results.csv")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(MainCSVHeaders); err != nil {
		return "", err
	}

	timestamp := g.now().Format(time.RFC3339)
	for _, test := range run.Results {
		row := []string{
			timestamp,
			sessionID,
			test.TestFile,
			test.TestName,
			string(test.Status),
			strconv.FormatFloat(test.DurationMs, 'f', 2, 64),
			test.ErrorMessage,
			test.Framework,
			test.Suite,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return path, w.Error()
}

// writeDetailedCSV writes the per-run CSV with a summary section
// followed by individual test rows.
func (g *Generator) writeDetailedCSV(run testparse.RunResult, baseName, sessionID string) (string, error) {
	path := g.path(baseName + "_detailed.csv")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	summary := [][]string{
		{"Test Run Summary"},
		{"Field", "Value"},
		{"Session ID", sessionID},
		{"Timestamp", g.now().Format(time.RFC3339)},
		{"Success", strconv.FormatBool(run.Success)},
		{"Total Tests", strconv.Itoa(run.TotalTests)},
		{"Passed", strconv.Itoa(run.Passed)},
		{"Failed", strconv.Itoa(run.Failed)},
		{"Skipped", strconv.Itoa(run.Skipped)},
		{"Execution Time (s)", strconv.FormatFloat(run.ExecutionTime, 'f', 2, 64)},
		{"Test Framework", run.Framework},
		{"Test Command", run.TestCommand},
		{"Project Path", run.ProjectPath},
		{},
		{"Individual Test Results"},
		{"Test File", "Test Name", "Status", "Duration (ms)", "Error Message", "Test Suite"},
	}
	for _, row := range summary {
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	for _, test := range run.Results {
		row := []string{
			test.TestFile,
			test.TestName,
			string(test.Status),
			strconv.FormatFloat(test.DurationMs, 'f', 2, 64),
			test.ErrorMessage,
			test.Suite,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return path, w.Error()
}

// summaryHeaders is the column order of test_runs_summary.csv.
var summaryHeaders = []string{
	"Session ID", "Timestamp", "Success", "Total Tests", "Passed",
	"Failed", "Skipped", "Success Rate (%)", "Execution Time (s)",
	"Test Framework", "Test Command",
}

// GenerateSummaryCSV rebuilds test_runs_summary.csv from every
// test_run_*.json report in the directory. Unreadable reports are
// skipped.
func (g *Generator) GenerateSummaryCSV() (string, error) {
	path := g.path("test_runs_summary.csv")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(summaryHeaders); err != nil {
		return "", err
	}

	matches, _ := filepath.Glob(g.path("test_run_*.json"))
	sort.Strings(matches)
	for _, jsonPath := range matches {
		data, err := os.ReadFile(jsonPath)
		if err != nil {
			continue
		}
		var doc jsonReport
		if err := json.Unmarshal(data, &doc); err != nil {
			continue
		}
		run := doc.TestRunResult
		row := []string{
			doc.SessionID,
			doc.Timestamp,
			strconv.FormatBool(run.Success),
			strconv.Itoa(run.TotalTests),
			strconv.Itoa(run.Passed),
			strconv.Itoa(run.Failed),
			strconv.Itoa(run.Skipped),
			strconv.FormatFloat(successRate(run.Passed, run.TotalTests), 'f', 1, 64),
			strconv.FormatFloat(run.ExecutionTime, 'f', 2, 64),
			run.Framework,
			run.TestCommand,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return path, w.Error()
}

// historyHeaders is the column order of test_history.csv.
var historyHeaders = []string{
	"Timestamp", "Session ID", "Project Path", "Test Framework",
	"Total Tests", "Passed", "Failed", "Skipped", "Success Rate (%)",
	"Execution Time (s)", "Test Command",
}

// AppendHistory appends one row to test_history.csv, writing the
// header only when the file is new.
func (g *Generator) AppendHistory(run testparse.RunResult) (string, error) {
	path := g.path("test_history.csv")

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if isNew {
		if err := w.Write(historyHeaders); err != nil {
			return "", err
		}
	}

	sessionID := run.SessionID
	if sessionID == "" {
		sessionID = "unknown"
	}
	row := []string{
		g.now().Format(time.RFC3339),
		sessionID,
		run.ProjectPath,
		run.Framework,
		strconv.Itoa(run.TotalTests),
		strconv.Itoa(run.Passed),
		strconv.Itoa(run.Failed),
		strconv.Itoa(run.Skipped),
		strconv.FormatFloat(successRate(run.Passed, run.TotalTests), 'f', 1, 64),
		strconv.FormatFloat(run.ExecutionTime, 'f', 2, 64),
		run.TestCommand,
	}
	if err := w.Write(row); err != nil {
		return "", err
	}
	w.Flush()
	return path, w.Error()
}

package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"codeforge/internal/runner"
	"codeforge/internal/testparse"
)

func sampleRun(sessionID string) testparse.RunResult {
	results := []testparse.TestResult{
		{TestFile: "tests/test_app.py", TestName: "test_create", Status: testparse.StatusPassed, DurationMs: 15.5, Framework: "pytest", Suite: "tests.test_app"},
		{TestFile: "tests/test_app.py", TestName: "test_delete", Status: testparse.StatusFailed, DurationMs: 120, ErrorMessage: "assert 404 == 200", Framework: "pytest", Suite: "tests.test_app"},
		{TestFile: "tests/test_app.py", TestName: "test_slow", Status: testparse.StatusSkipped, Framework: "pytest"},
	}
	run := testparse.Summarize(results)
	run.ExecutionTime = 1.25
	run.TestCommand = "pytest -v"
	run.OutputLog = "3 tests collected"
	run.Framework = "pytest"
	run.ProjectPath = "/tmp/project"
	run.SessionID = sessionID
	return run
}

func newTestGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestGenerate_ProducesAllReports(t *testing.T) {
	g := newTestGenerator(t)

	reports, err := g.Generate(sampleRun("sess-1"), []AgentOutput{{Name: "coder", Output: "code"}}, "")
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	for _, kind := range []string{"csv", "json", "markdown", "test_results_csv"} {
		path, ok := reports[kind]
		if !ok {
			t.Errorf("missing report kind %q", kind)
			continue
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("report %q not written: %v", kind, err)
		}
	}
}

func TestMainCSV_Schema(t *testing.T) {
	g := newTestGenerator(t)
	reports, err := g.Generate(sampleRun("sess-2"), nil, "sess-2")
	if err != nil {
		t.Fatal(err)
	}

	file, err := os.Open(reports["test_results_csv"])
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}

	if strings.Join(rows[0], ",") != strings.Join(MainCSVHeaders, ",") {
		t.Errorf("unexpected header row: %v", rows[0])
	}
	if len(rows) != 4 { // header + 3 tests
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	failedRow := rows[2]
	if failedRow[1] != "sess-2" || failedRow[4] != "failed" || failedRow[5] != "120.00" {
		t.Errorf("unexpected failed-test row: %v", failedRow)
	}
	if failedRow[6] != "assert 404 == 200" {
		t.Errorf("expected error message in column 6, got %q", failedRow[6])
	}
}

func TestJSONReport_FullFidelityWithCappedLog(t *testing.T) {
	g := newTestGenerator(t)
	run := sampleRun("sess-json")
	run.OutputLog = strings.Repeat("x", outputLogCap+500)

	reports, err := g.Generate(run, nil, "sess-json")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(reports["json"])
	if err != nil {
		t.Fatal(err)
	}
	var doc jsonReport
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if len(doc.TestResults) != 3 {
		t.Errorf("expected all 3 results, got %d", len(doc.TestResults))
	}
	if len(doc.OutputLog) != outputLogCap {
		t.Errorf("expected capped log of %d bytes, got %d", outputLogCap, len(doc.OutputLog))
	}
	if doc.TestRunResult.Passed != 1 || doc.TestRunResult.Failed != 1 {
		t.Errorf("unexpected counters: %+v", doc.TestRunResult)
	}
}

func TestMarkdownReport_CapsRows(t *testing.T) {
	g := newTestGenerator(t)

	var results []testparse.TestResult
	for i := 0; i < 30; i++ {
		status := testparse.StatusPassed
		if i < 15 {
			status = testparse.StatusFailed
		}
		results = append(results, testparse.TestResult{
			TestFile:  "tests/test_big.py",
			TestName:  "test_case",
			Status:    status,
			Framework: "pytest",
		})
	}
	run := testparse.Summarize(results)

	reports, err := g.Generate(run, nil, "sess-md")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(reports["markdown"])
	if err != nil {
		t.Fatal(err)
	}
	md := string(data)

	if !strings.Contains(md, "... and 5 more failed tests") {
		t.Error("expected failed-test overflow marker")
	}
	if !strings.Contains(md, "*... and 10 more tests*") {
		t.Error("expected table overflow marker")
	}
	if got := strings.Count(md, "| test_big.py |"); got != maxTableRows {
		t.Errorf("expected %d table rows, got %d", maxTableRows, got)
	}
}

func TestSummaryCSV_AggregatesJSONReports(t *testing.T) {
	g := newTestGenerator(t)

	// Two runs a second apart so the base names differ.
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	g.now = func() time.Time { return base }
	if _, err := g.Generate(sampleRun("sess-a"), nil, "sess-a"); err != nil {
		t.Fatal(err)
	}
	g.now = func() time.Time { return base.Add(time.Second) }
	if _, err := g.Generate(sampleRun("sess-b"), nil, "sess-b"); err != nil {
		t.Fatal(err)
	}

	path, err := g.GenerateSummaryCSV()
	if err != nil {
		t.Fatal(err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 { // header + 2 runs
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[1][0] != "sess-a" || rows[2][0] != "sess-b" {
		t.Errorf("unexpected order: %v / %v", rows[1], rows[2])
	}
	if rows[1][7] != "33.3" {
		t.Errorf("expected success rate 33.3, got %s", rows[1][7])
	}
}

func TestAppendHistory_HeaderOnce(t *testing.T) {
	g := newTestGenerator(t)

	if _, err := g.AppendHistory(sampleRun("sess-h1")); err != nil {
		t.Fatal(err)
	}
	path, err := g.AppendHistory(sampleRun("sess-h2"))
	if err != nil {
		t.Fatal(err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 { // one header + two data rows
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "Timestamp" {
		t.Errorf("expected header first, got %v", rows[0])
	}
	if rows[1][1] != "sess-h1" || rows[2][1] != "sess-h2" {
		t.Errorf("unexpected data rows: %v / %v", rows[1], rows[2])
	}
}

func TestWriteValidationReport(t *testing.T) {
	g := newTestGenerator(t)

	path, err := g.WriteValidationReport(runner.ValidationResult{
		Success:         false,
		ProjectType:     "node",
		ErrorLog:        "Cannot find module 'express'",
		Recommendations: []string{"Check that all required dependencies are listed"},
		DurationSeconds: 3.5,
	}, "sess-v")
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	md := string(data)
	for _, want := range []string{"❌ FAILED", "node", "Cannot find module", "dependencies are listed"} {
		if !strings.Contains(md, want) {
			t.Errorf("validation report missing %q", want)
		}
	}
}

func TestGenerateValidationReports_AllKinds(t *testing.T) {
	g := newTestGenerator(t)

	result := runner.ValidationResult{
		Success:           true,
		ProjectType:       "python",
		InstallationLog:   "installed 3 packages",
		ExecutionLog:      "listening on :8000",
		PortListening:     8000,
		HealthCheckPassed: true,
		DurationSeconds:   4.25,
	}
	reports, err := g.GenerateValidationReports(result, "sess-v2")
	if err != nil {
		t.Fatalf("GenerateValidationReports failed: %v", err)
	}
	for _, kind := range []string{"markdown", "json", "csv"} {
		if reports[kind] == "" {
			t.Errorf("missing %s report", kind)
		}
	}

	data, err := os.ReadFile(reports["json"])
	if err != nil {
		t.Fatal(err)
	}
	var doc jsonValidationReport
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("json report not parseable: %v", err)
	}
	if doc.SessionID != "sess-v2" || !doc.Validation.Success || doc.Validation.PortListening != 8000 {
		t.Errorf("unexpected json report: %+v", doc)
	}
	if doc.Logs.Installation != "installed 3 packages" || doc.Logs.Execution != "listening on :8000" {
		t.Errorf("logs not carried in full: %+v", doc.Logs)
	}
}

func TestAppendValidationSummary_HeaderOnce(t *testing.T) {
	g := newTestGenerator(t)

	result := runner.ValidationResult{Success: true, ProjectType: "node", DurationSeconds: 1.5}
	path, err := g.AppendValidationSummary(result, "sess-a")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.AppendValidationSummary(result, "sess-b"); err != nil {
		t.Fatal(err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer file.Close()
	rows, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Session ID" {
		t.Errorf("header missing, first row = %v", rows[0])
	}
	if rows[1][0] != "sess-a" || rows[2][0] != "sess-b" {
		t.Errorf("rows out of order: %v / %v", rows[1], rows[2])
	}
	for _, row := range rows[1:] {
		if row[0] == "Session ID" {
			t.Error("header written more than once")
		}
	}
}

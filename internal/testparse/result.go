// Package testparse turns raw test-runner output into structured
// results. Each framework has a parser that prefers a structured
// artifact (JUnit XML, Jest JSON) when one exists and falls back to
// scanning console output. All parsers normalize to the canonical
// status set {passed, failed, skipped, unknown}.
package testparse

// Status is the canonical outcome of a single test case.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusUnknown Status = "unknown"
)

// TestResult describes one executed test case.
type TestResult struct {
	TestFile     string  `json:"test_file"`
	TestName     string  `json:"test_name"`
	Status       Status  `json:"status"`
	DurationMs   float64 `json:"duration_ms"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Framework    string  `json:"test_framework"`
	Suite        string  `json:"test_suite,omitempty"`
}

// RunResult is the outcome of a whole test run.
type RunResult struct {
	Success       bool         `json:"success"`
	TotalTests    int          `json:"total_tests"`
	Passed        int          `json:"passed"`
	Failed        int          `json:"failed"`
	Skipped       int          `json:"skipped"`
	Results       []TestResult `json:"test_results"`
	ExecutionTime float64      `json:"execution_time"`
	TestCommand   string       `json:"test_command"`
	OutputLog     string       `json:"output_log"`
	Framework     string       `json:"test_framework"`
	ProjectPath   string       `json:"project_path"`
	SessionID     string       `json:"session_id,omitempty"`
}

// Summarize fills the aggregate counters from the per-test results.
// Success requires at least one test and zero failures.
func Summarize(results []TestResult) RunResult {
	run := RunResult{Results: results, TotalTests: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			run.Passed++
		case StatusFailed:
			run.Failed++
		case StatusSkipped:
			run.Skipped++
		}
	}
	run.Success = run.Failed == 0 && run.TotalTests > 0
	return run
}

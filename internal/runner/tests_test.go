package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeforge/internal/detect"
)

func TestRunTests_CommandOverrideAndGenericParse(t *testing.T) {
	dir := t.TempDir()
	r := New()

	run, err := r.RunTests(context.Background(), dir, TestConfig{
		Command:   []string{"sh", "-c", "echo 'alpha passed'; echo 'beta failed'"},
		SessionID: "sess-t",
	})
	if err != nil {
		t.Fatalf("RunTests failed: %v", err)
	}
	if run.TotalTests != 2 || run.Passed != 1 || run.Failed != 1 {
		t.Errorf("totals = %d/%d/%d, want 2 total, 1 passed, 1 failed",
			run.TotalTests, run.Passed, run.Failed)
	}
	if run.Success {
		t.Error("run with a failing test should not be a success")
	}
	if run.SessionID != "sess-t" {
		t.Errorf("SessionID = %q", run.SessionID)
	}
	if run.TestCommand == "" || run.OutputLog == "" {
		t.Error("command and output log should be recorded")
	}
}

func TestRunTests_DetectsPytestProject(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pytest.ini"), []byte("[pytest]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	r := New()

	// Override the command so no real pytest is needed; the framework
	// still comes from detection and drives the parser.
	run, err := r.RunTests(context.Background(), dir, TestConfig{
		Command: []string{"sh", "-c", "echo 'tests/test_app.py::test_ok PASSED'"},
	})
	if err != nil {
		t.Fatalf("RunTests failed: %v", err)
	}
	if run.Framework != detect.FrameworkPytest {
		t.Errorf("Framework = %q, want pytest", run.Framework)
	}
	if run.TotalTests != 1 || run.Passed != 1 {
		t.Errorf("totals = %d passed %d", run.TotalTests, run.Passed)
	}
	if !run.Success {
		t.Error("all-passing run should be a success")
	}
}

func TestRunTests_UnknownFrameworkWithoutCommand(t *testing.T) {
	dir := t.TempDir()
	r := New()

	run, err := r.RunTests(context.Background(), dir, TestConfig{})
	if err != nil {
		t.Fatalf("RunTests failed: %v", err)
	}
	if run.Success || run.TotalTests != 0 {
		t.Errorf("empty project should yield no tests: %+v", run)
	}
}

func TestRunTests_Timeout(t *testing.T) {
	dir := t.TempDir()
	r := New()

	run, err := r.RunTests(context.Background(), dir, TestConfig{
		Command: []string{"sleep", "30"},
		Timeout: 100 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("RunTests failed: %v", err)
	}
	if run.Success {
		t.Error("timed-out run should not be a success")
	}
	if run.OutputLog == "" {
		t.Error("timeout should be reported in the output log")
	}
}

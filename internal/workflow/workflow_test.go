package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"codeforge/internal/config"
	"codeforge/internal/llm"
	"codeforge/internal/logging"
)

const coderOutput = "FILENAME: main.py\n```python\nprint('hello')\n```"

func boolPtr(b bool) *bool { return &b }

// approvingReviewer approves everything.
func approvingReviewer() Stage {
	return StageFunc(func(_ context.Context, _ string) (string, error) {
		return "APPROVED", nil
	})
}

func echoStage(prefix string) Stage {
	return StageFunc(func(_ context.Context, input string) (string, error) {
		return prefix + " output", nil
	})
}

func baseRegistry() *Registry {
	r := NewRegistry()
	r.Register(RolePlanner, echoStage("plan"))
	r.Register(RoleDesigner, echoStage("design"))
	r.Register(RoleCoder, StageFunc(func(_ context.Context, _ string) (string, error) {
		return coderOutput, nil
	}))
	r.Register(RoleReviewer, approvingReviewer())
	return r
}

func testConfig() config.WorkflowConfig {
	return config.WorkflowConfig{MaxReviewRetries: 3}
}

func TestExecute_HappyPath(t *testing.T) {
	o := NewOrchestrator(baseRegistry(), testConfig(), WithLogDir(t.TempDir()))

	run := o.Execute(context.Background(), "build a greeter")
	if run.Err != nil {
		t.Fatalf("Execute failed: %v", run.Err)
	}
	if !run.Success {
		t.Error("expected successful run")
	}
	if run.Plan == "" || run.Design == "" || run.Code == "" {
		t.Errorf("missing phase outputs: plan=%q design=%q code=%q", run.Plan, run.Design, run.Code)
	}
	if got := run.Files["main.py"]; got != "print('hello')" {
		t.Errorf("Files[main.py] = %q", got)
	}
	for _, step := range run.Steps {
		if step.Status != StepCompleted {
			t.Errorf("step %s status = %s, want %s", step.Name, step.Status, StepCompleted)
		}
	}
}

func TestExecute_StageFailureAborts(t *testing.T) {
	r := baseRegistry()
	r.Register(RoleDesigner, StageFunc(func(_ context.Context, _ string) (string, error) {
		return "", errors.New("model unavailable")
	}))
	o := NewOrchestrator(r, testConfig(), WithLogDir(t.TempDir()))

	run := o.Execute(context.Background(), "build a greeter")
	if run.Err == nil {
		t.Fatal("expected run error")
	}
	if run.Success {
		t.Error("run should not be marked successful")
	}
	if run.Plan == "" {
		t.Error("plan from before the failure should be retained")
	}
	if !hasEntry(run.Logger, logging.EntryWorkflowEnd, "failed") {
		t.Error("execution log missing failed workflow_end entry")
	}
}

func TestIncrementalFallback_InvokedExactlyOnce(t *testing.T) {
	coderCalls := 0
	r := baseRegistry()
	r.Register(RoleCoder, StageFunc(func(_ context.Context, input string) (string, error) {
		coderCalls++
		if strings.Contains(input, "Implement FEATURE[") {
			return "", errors.New("feature generation failed")
		}
		return coderOutput, nil
	}))

	cfg := testConfig()
	cfg.Incremental = true
	o := NewOrchestrator(r, cfg, WithLogDir(t.TempDir()))

	run := o.Execute(context.Background(), "build a greeter")
	if run.Err != nil {
		t.Fatalf("Execute failed: %v", run.Err)
	}
	// One incremental attempt, then the direct fallback once.
	if coderCalls != 2 {
		t.Errorf("coder invoked %d times, want 2", coderCalls)
	}
	if run.Files["main.py"] == "" {
		t.Error("fallback output not extracted")
	}

	// Both attempts appear in the execution log.
	var errored, succeeded int
	for _, e := range run.Logger.Entries() {
		if e.Type != logging.EntryAgentResponse || e.AgentName != string(RoleCoder) {
			continue
		}
		switch e.Status {
		case "error":
			errored++
		case "success":
			succeeded++
		}
	}
	if errored != 1 || succeeded != 1 {
		t.Errorf("coder responses in log: %d errored, %d succeeded; want 1 and 1", errored, succeeded)
	}
}

func TestIncrementalFallback_BothFailingAborts(t *testing.T) {
	r := baseRegistry()
	r.Register(RoleCoder, StageFunc(func(_ context.Context, _ string) (string, error) {
		return "", errors.New("generation failed")
	}))

	cfg := testConfig()
	cfg.Incremental = true
	o := NewOrchestrator(r, cfg, WithLogDir(t.TempDir()))

	run := o.Execute(context.Background(), "build a greeter")
	if run.Err == nil {
		t.Fatal("expected run error when both strategies fail")
	}
}

func TestReviewRevisionLoop(t *testing.T) {
	reviews := []string{"REVISION NEEDED: add error handling", "APPROVED"}
	planCalls := 0
	r := baseRegistry()
	r.Register(RolePlanner, StageFunc(func(_ context.Context, input string) (string, error) {
		planCalls++
		if planCalls > 1 && !strings.Contains(input, "add error handling") {
			t.Errorf("revision input missing reviewer feedback: %q", input)
		}
		return fmt.Sprintf("plan v%d", planCalls), nil
	}))
	reviewCalls := 0
	r.Register(RoleReviewer, StageFunc(func(_ context.Context, _ string) (string, error) {
		if reviewCalls < len(reviews) {
			reviewCalls++
			return reviews[reviewCalls-1], nil
		}
		return "APPROVED", nil
	}))
	o := NewOrchestrator(r, testConfig(), WithLogDir(t.TempDir()))

	run := o.Execute(context.Background(), "build a greeter")
	if run.Err != nil {
		t.Fatalf("Execute failed: %v", run.Err)
	}
	if planCalls != 2 {
		t.Errorf("planner invoked %d times, want 2 (initial + one revision)", planCalls)
	}
	if run.Plan != "plan v2" {
		t.Errorf("Plan = %q, want revised output", run.Plan)
	}
}

func TestReviewerFailure_FailOpenAutoApproves(t *testing.T) {
	r := baseRegistry()
	r.Register(RoleReviewer, StageFunc(func(_ context.Context, _ string) (string, error) {
		return "", errors.New("reviewer down")
	}))
	o := NewOrchestrator(r, testConfig(), WithLogDir(t.TempDir()))

	run := o.Execute(context.Background(), "build a greeter")
	if run.Err != nil {
		t.Fatalf("fail-open run should succeed, got: %v", run.Err)
	}
	if !hasEntry(run.Logger, logging.EntryError, "") {
		t.Error("auto-approval should be recorded in the execution log")
	}
}

func TestReviewerFailure_FailClosedAborts(t *testing.T) {
	r := baseRegistry()
	r.Register(RoleReviewer, StageFunc(func(_ context.Context, _ string) (string, error) {
		return "", errors.New("reviewer down")
	}))
	cfg := testConfig()
	cfg.ReviewFailOpen = boolPtr(false)
	o := NewOrchestrator(r, cfg, WithLogDir(t.TempDir()))

	run := o.Execute(context.Background(), "build a greeter")
	if run.Err == nil {
		t.Fatal("fail-closed run should abort on reviewer failure")
	}
	if !strings.Contains(run.Err.Error(), "reviewer failed") {
		t.Errorf("error = %v, want reviewer failure", run.Err)
	}
}

func TestUnclearReview_TreatedAsRevision(t *testing.T) {
	planCalls := 0
	r := baseRegistry()
	r.Register(RolePlanner, StageFunc(func(_ context.Context, _ string) (string, error) {
		planCalls++
		return "plan", nil
	}))
	reviewCalls := 0
	r.Register(RoleReviewer, StageFunc(func(_ context.Context, _ string) (string, error) {
		reviewCalls++
		if reviewCalls == 1 {
			return "I am not sure what to make of this.", nil
		}
		return "APPROVED", nil
	}))
	o := NewOrchestrator(r, testConfig(), WithLogDir(t.TempDir()))

	run := o.Execute(context.Background(), "build a greeter")
	if run.Err != nil {
		t.Fatalf("Execute failed: %v", run.Err)
	}
	if planCalls != 2 {
		t.Errorf("planner invoked %d times, want 2 after unclear review", planCalls)
	}
}

func TestExecute_WithTestWriterAndExecutor(t *testing.T) {
	r := baseRegistry()
	r.Register(RoleTestWriter, echoStage("tests"))
	execCalls := 0
	r.Register(RoleExecutor, StageFunc(func(_ context.Context, input string) (string, error) {
		execCalls++
		if !strings.Contains(input, "SESSION_ID: ") {
			t.Errorf("executor input missing session id: %q", input)
		}
		return "all checks passed", nil
	}))
	cfg := testConfig()
	cfg.RunTests = true
	o := NewOrchestrator(r, cfg, WithLogDir(t.TempDir()))

	run := o.Execute(context.Background(), "build a greeter")
	if run.Err != nil {
		t.Fatalf("Execute failed: %v", run.Err)
	}
	if run.Tests == "" {
		t.Error("test-writing output missing")
	}
	if execCalls != 1 {
		t.Errorf("executor invoked %d times, want 1", execCalls)
	}
}

func TestTestWritingOutputIsReviewed(t *testing.T) {
	r := baseRegistry()
	r.Register(RoleTestWriter, StageFunc(func(_ context.Context, _ string) (string, error) {
		return "def test_greeting(): assert greet() == 'hello'", nil
	}))
	var reviewInputs []string
	r.Register(RoleReviewer, StageFunc(func(_ context.Context, input string) (string, error) {
		reviewInputs = append(reviewInputs, input)
		return "APPROVED", nil
	}))
	cfg := testConfig()
	cfg.RunTests = true
	o := NewOrchestrator(r, cfg, WithLogDir(t.TempDir()))

	run := o.Execute(context.Background(), "build a greeter")
	if run.Err != nil {
		t.Fatalf("Execute failed: %v", run.Err)
	}
	reviewed := false
	for _, input := range reviewInputs {
		if strings.Contains(input, "def test_greeting()") {
			reviewed = true
		}
	}
	if !reviewed {
		t.Errorf("no reviewer input contained the test writer's output; inputs: %d", len(reviewInputs))
	}
}

func TestImplementationInputIncludesTests(t *testing.T) {
	const tests = "def test_greeting(): assert greet() == 'hello'"
	r := baseRegistry()
	r.Register(RoleTestWriter, StageFunc(func(_ context.Context, _ string) (string, error) {
		return tests, nil
	}))
	var coderInputs []string
	r.Register(RoleCoder, StageFunc(func(_ context.Context, input string) (string, error) {
		coderInputs = append(coderInputs, input)
		return coderOutput, nil
	}))
	cfg := testConfig()
	cfg.RunTests = true
	o := NewOrchestrator(r, cfg, WithLogDir(t.TempDir()))

	run := o.Execute(context.Background(), "build a greeter")
	if run.Err != nil {
		t.Fatalf("Execute failed: %v", run.Err)
	}
	if len(coderInputs) == 0 {
		t.Fatal("coder never invoked")
	}
	if !strings.Contains(coderInputs[0], "Tests:\n"+tests) {
		t.Errorf("coder input missing the written tests: %q", coderInputs[0])
	}
}

func TestImplementationInputIncludesTests_Incremental(t *testing.T) {
	const tests = "def test_greeting(): assert greet() == 'hello'"
	r := baseRegistry()
	r.Register(RoleTestWriter, StageFunc(func(_ context.Context, _ string) (string, error) {
		return tests, nil
	}))
	var coderInputs []string
	r.Register(RoleCoder, StageFunc(func(_ context.Context, input string) (string, error) {
		coderInputs = append(coderInputs, input)
		return coderOutput, nil
	}))
	cfg := testConfig()
	cfg.RunTests = true
	cfg.Incremental = true
	o := NewOrchestrator(r, cfg, WithLogDir(t.TempDir()))

	run := o.Execute(context.Background(), "build a greeter")
	if run.Err != nil {
		t.Fatalf("Execute failed: %v", run.Err)
	}
	if len(coderInputs) == 0 {
		t.Fatal("coder never invoked")
	}
	if !strings.Contains(coderInputs[0], "Tests:\n"+tests) {
		t.Errorf("per-feature coder input missing the written tests: %q", coderInputs[0])
	}
}

func TestValidatorPhase(t *testing.T) {
	validatorCalls := 0
	r := baseRegistry()
	r.Register(RoleValidator, StageFunc(func(_ context.Context, input string) (string, error) {
		validatorCalls++
		if !strings.Contains(input, "SESSION_ID: ") {
			t.Errorf("validator input missing session id: %q", input)
		}
		return "application runs", nil
	}))

	cfg := testConfig()
	o := NewOrchestrator(r, cfg, WithLogDir(t.TempDir()))
	if run := o.Execute(context.Background(), "build a greeter"); run.Err != nil {
		t.Fatalf("Execute failed: %v", run.Err)
	}
	if validatorCalls != 0 {
		t.Errorf("validator invoked %d times with validation disabled", validatorCalls)
	}

	cfg.RunValidation = true
	o = NewOrchestrator(r, cfg, WithLogDir(t.TempDir()))
	if run := o.Execute(context.Background(), "build a greeter"); run.Err != nil {
		t.Fatalf("Execute failed: %v", run.Err)
	}
	if validatorCalls != 1 {
		t.Errorf("validator invoked %d times, want 1", validatorCalls)
	}
}

func TestLLMStagesThroughScriptedClient(t *testing.T) {
	client := llm.NewScriptedClient(
		"plan output", "APPROVED",
		"design output", "APPROVED",
		coderOutput,
		"APPROVED",
	)
	registry := NewRegistry()
	RegisterLLMStages(registry, client)
	o := NewOrchestrator(registry, testConfig(), WithLogDir(t.TempDir()))

	run := o.Execute(context.Background(), "build a greeter")
	if run.Err != nil {
		t.Fatalf("Execute failed: %v", run.Err)
	}
	if run.Files["main.py"] != "print('hello')" {
		t.Errorf("Files = %v", run.Files)
	}
	prompts := client.Prompts()
	if len(prompts) != 6 {
		t.Fatalf("model called %d times, want 6", len(prompts))
	}
	if !strings.Contains(prompts[0], "build a greeter") {
		t.Errorf("planner prompt missing requirements: %q", prompts[0])
	}
}

func hasEntry(l *logging.ExecutionLogger, typ logging.EntryType, status string) bool {
	for _, e := range l.Entries() {
		if e.Type == typ && (status == "" || e.Status == status) {
			return true
		}
	}
	return false
}

package workflow

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codeforge/internal/config"
	"codeforge/internal/logging"
)

// StageResult records one completed stage invocation.
type StageResult struct {
	Role   Role   `json:"role"`
	Name   string `json:"name"`
	Output string `json:"output"`
}

// Run is the per-invocation workflow state: the session identity, the
// execution log, and everything the stages have produced so far.
type Run struct {
	SessionID string
	Logger    *logging.ExecutionLogger
	Steps     []*Step
	Results   []StageResult

	Requirements string
	Plan         string
	Design       string
	Tests        string
	Code         string
	Files        map[string]string
	Success      bool
	Err          error
}

// Orchestrator drives the pipeline: planning, design, optional test
// writing, implementation, optional execution, and final review.
type Orchestrator struct {
	registry *Registry
	cfg      config.WorkflowConfig
	logDir   string
	trunc    *logging.TruncationPolicy
	log      *zap.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithWorkflowLogger sets the component logger.
func WithWorkflowLogger(log *zap.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.log = log }
}

// WithLogDir sets the directory for per-session execution logs.
func WithLogDir(dir string) OrchestratorOption {
	return func(o *Orchestrator) { o.logDir = dir }
}

// WithTruncation sets the payload truncation policy for the
// per-session execution log.
func WithTruncation(p logging.TruncationPolicy) OrchestratorOption {
	return func(o *Orchestrator) { o.trunc = &p }
}

// NewOrchestrator creates an orchestrator over the given stage
// registry and workflow policy.
func NewOrchestrator(registry *Registry, cfg config.WorkflowConfig, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		cfg:      cfg,
		logDir:   "logs",
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Execute runs the full pipeline for the given requirements. The
// returned Run always carries whatever was produced before any
// failure; Run.Err is non-nil when the pipeline aborted.
func (o *Orchestrator) Execute(ctx context.Context, requirements string) *Run {
	run := &Run{
		SessionID:    uuid.New().String()[:8],
		Requirements: requirements,
	}
	var logOpts []logging.Option
	if o.trunc != nil {
		logOpts = append(logOpts, logging.WithTruncation(*o.trunc))
	}
	run.Logger = logging.NewExecutionLogger(run.SessionID, o.logDir, logOpts...)
	run.Logger.LogWorkflowStart(map[string]any{
		"requirements": requirements,
		"incremental":  o.cfg.Incremental,
		"run_tests":    o.cfg.RunTests,
	})

	if err := o.execute(ctx, run); err != nil {
		run.Err = err
		run.Logger.LogError(err.Error(), map[string]any{"session_id": run.SessionID})
		run.Logger.LogWorkflowEnd("failed", err.Error())
		o.log.Error("workflow failed", zap.String("session_id", run.SessionID), zap.Error(err))
		return run
	}

	run.Success = true
	run.Logger.LogWorkflowEnd("completed", "")
	o.log.Info("workflow completed",
		zap.String("session_id", run.SessionID),
		zap.Int("files", len(run.Files)))
	return run
}

func (o *Orchestrator) execute(ctx context.Context, run *Run) error {
	// Planning.
	plan, err := o.reviewedStage(ctx, run, RolePlanner, "Planning", run.Requirements)
	if err != nil {
		return err
	}
	run.Plan = plan

	// Design.
	designInput := fmt.Sprintf("Plan:\n%s\n\nRequirements: %s", run.Plan, run.Requirements)
	design, err := o.reviewedStage(ctx, run, RoleDesigner, "Design", designInput)
	if err != nil {
		return err
	}
	run.Design = design

	// Test writing.
	if o.cfg.RunTests && o.registry.Has(RoleTestWriter) {
		testsInput := fmt.Sprintf("Design:\n%s\n\nRequirements: %s", run.Design, run.Requirements)
		tests, err := o.reviewedStage(ctx, run, RoleTestWriter, "Test Writing", testsInput)
		if err != nil {
			return err
		}
		run.Tests = tests
	}

	// Implementation.
	code, err := o.implement(ctx, run)
	if err != nil {
		return err
	}
	run.Code = code
	run.Files = ExtractFiles(code)

	// Execution.
	if o.cfg.RunTests && o.registry.Has(RoleExecutor) {
		execInput := fmt.Sprintf("SESSION_ID: %s\n\nExecute the following code:\n\n%s",
			run.SessionID, run.Code)
		if _, err := o.invokeStage(ctx, run, RoleExecutor, "Execution", execInput); err != nil {
			return err
		}
	}

	// Validation.
	if o.cfg.RunValidation && o.registry.Has(RoleValidator) {
		valInput := fmt.Sprintf("SESSION_ID: %s\n\nValidate the following application:\n\n%s",
			run.SessionID, run.Code)
		if _, err := o.invokeStage(ctx, run, RoleValidator, "Validation", valInput); err != nil {
			return err
		}
	}

	// Final review.
	reviewInput := fmt.Sprintf("Requirements: %s\n\nPlan:\n%s\n\nDesign:\n%s\n\nImplementation:\n%s",
		run.Requirements, run.Plan, run.Design, run.Code)
	if _, _, err := o.review(ctx, run, "Final Review", reviewInput); err != nil {
		return err
	}
	return nil
}

// implement produces the code for the run. With the incremental
// strategy enabled it implements feature by feature; when that
// strategy errors, the direct strategy is tried exactly once, and
// both attempts appear in the execution log.
func (o *Orchestrator) implement(ctx context.Context, run *Run) (string, error) {
	step := o.beginStep(run, "Implementation", RoleCoder)

	if o.cfg.Incremental {
		code, err := o.implementIncremental(ctx, run)
		if err == nil {
			step.complete()
			run.Results = append(run.Results, StageResult{Role: RoleCoder, Name: "Implementation", Output: code})
			return code, nil
		}
		step.retry(fmt.Sprintf("incremental implementation failed: %v", err))
		o.log.Warn("incremental implementation failed, falling back to direct",
			zap.String("session_id", run.SessionID), zap.Error(err))
	}

	code, err := o.implementDirect(ctx, run)
	if err != nil {
		step.fail(err.Error())
		return "", err
	}
	step.complete()
	run.Results = append(run.Results, StageResult{Role: RoleCoder, Name: "Implementation", Output: code})
	return code, nil
}

func (o *Orchestrator) implementIncremental(ctx context.Context, run *Run) (string, error) {
	coder, ok := o.registry.Get(RoleCoder)
	if !ok {
		return "", fmt.Errorf("no stage registered for role %q", RoleCoder)
	}

	features := ParseFeatures(run.Design)
	var parts []string
	files := make(map[string]string)
	for _, feature := range features {
		var b strings.Builder
		fmt.Fprintf(&b, "SESSION_ID: %s\n\nImplement %s: %s\n\nDescription: %s\n\nDesign:\n%s\n\n",
			run.SessionID, feature.ID, feature.Title, feature.Description, run.Design)
		if run.Tests != "" {
			fmt.Fprintf(&b, "Tests:\n%s\n\n", run.Tests)
		}
		fmt.Fprintf(&b, "Existing files: %s", strings.Join(sortedFileNames(files), ", "))
		input := b.String()

		requestID := run.Logger.LogAgentRequest(string(RoleCoder), input)
		output, err := coder.Invoke(ctx, input)
		if err != nil {
			run.Logger.LogAgentResponse(string(RoleCoder), requestID, "", "error", err.Error())
			return "", fmt.Errorf("feature %s: %w", feature.ID, err)
		}
		run.Logger.LogAgentResponse(string(RoleCoder), requestID, output, "success", "")

		for path, content := range ExtractFiles(output) {
			files[path] = content
		}
		parts = append(parts, output)
	}
	if len(files) == 0 {
		return "", fmt.Errorf("incremental implementation produced no files")
	}
	return strings.Join(parts, "\n\n"), nil
}

func (o *Orchestrator) implementDirect(ctx context.Context, run *Run) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "SESSION_ID: %s\n\nPlan:\n%s\n\nDesign:\n%s\n\n", run.SessionID, run.Plan, run.Design)
	if run.Tests != "" {
		fmt.Fprintf(&b, "Tests:\n%s\n\n", run.Tests)
	}
	fmt.Fprintf(&b, "Requirements: %s", run.Requirements)
	input := b.String()
	coder, ok := o.registry.Get(RoleCoder)
	if !ok {
		return "", fmt.Errorf("no stage registered for role %q", RoleCoder)
	}

	requestID := run.Logger.LogAgentRequest(string(RoleCoder), input)
	output, err := coder.Invoke(ctx, input)
	if err != nil {
		run.Logger.LogAgentResponse(string(RoleCoder), requestID, "", "error", err.Error())
		return "", err
	}
	run.Logger.LogAgentResponse(string(RoleCoder), requestID, output, "success", "")
	return output, nil
}

// reviewedStage invokes a producing stage, then loops it through
// review until the reviewer approves or the retry budget runs out.
// The last produced output is returned even when the final review
// still wants revisions.
func (o *Orchestrator) reviewedStage(ctx context.Context, run *Run, role Role, name, input string) (string, error) {
	output, err := o.invokeStage(ctx, run, role, name, input)
	if err != nil {
		return "", err
	}

	for attempt := 0; attempt < o.cfg.MaxReviewRetries; attempt++ {
		reviewInput := fmt.Sprintf("Requirements: %s\n\n%s output:\n%s", run.Requirements, name, output)
		verdict, feedback, err := o.review(ctx, run, name+" Review", reviewInput)
		if err != nil {
			return "", err
		}
		if verdict == VerdictApproved {
			return output, nil
		}

		revisionInput := fmt.Sprintf("%s\n\nReviewer feedback on your previous output:\n%s\n\nPrevious output:\n%s",
			input, feedback, output)
		output, err = o.invokeStage(ctx, run, role, name+" Revision", revisionInput)
		if err != nil {
			return "", err
		}
	}
	o.log.Warn("review retries exhausted, proceeding with last output",
		zap.String("session_id", run.SessionID), zap.String("stage", name))
	return output, nil
}

// review runs the reviewer and classifies its response. An unclear
// response counts as revision-needed. A reviewer failure auto-approves
// under the fail-open policy and aborts the workflow otherwise.
func (o *Orchestrator) review(ctx context.Context, run *Run, name, input string) (Verdict, string, error) {
	reviewer, ok := o.registry.Get(RoleReviewer)
	if !ok {
		return VerdictApproved, "No reviewer registered", nil
	}

	requestID := run.Logger.LogAgentRequest(string(RoleReviewer), input)
	response, err := reviewer.Invoke(ctx, input)
	if err != nil {
		run.Logger.LogAgentResponse(string(RoleReviewer), requestID, "", "error", err.Error())
		if o.cfg.FailOpen() {
			o.log.Warn("reviewer failed, auto-approving",
				zap.String("session_id", run.SessionID),
				zap.String("stage", name), zap.Error(err))
			run.Logger.LogError("reviewer failed, auto-approving: "+err.Error(),
				map[string]any{"stage": name})
			return VerdictApproved, "Auto-approved: reviewer unavailable", nil
		}
		return "", "", fmt.Errorf("%s: reviewer failed: %w", name, err)
	}
	run.Logger.LogAgentResponse(string(RoleReviewer), requestID, response, "success", "")

	verdict, feedback := classifyReview(response)
	if verdict == VerdictUnclear {
		verdict = VerdictRevision
	}
	run.Results = append(run.Results, StageResult{Role: RoleReviewer, Name: name, Output: response})
	return verdict, feedback, nil
}

// invokeStage runs a stage with step tracking and request/response
// logging.
func (o *Orchestrator) invokeStage(ctx context.Context, run *Run, role Role, name, input string) (string, error) {
	stage, ok := o.registry.Get(role)
	if !ok {
		return "", fmt.Errorf("no stage registered for role %q", role)
	}

	step := o.beginStep(run, name, role)
	requestID := run.Logger.LogAgentRequest(string(role), input)
	output, err := stage.Invoke(ctx, input)
	if err != nil {
		run.Logger.LogAgentResponse(string(role), requestID, "", "error", err.Error())
		step.fail(err.Error())
		return "", fmt.Errorf("%s: %w", name, err)
	}
	run.Logger.LogAgentResponse(string(role), requestID, output, "success", "")
	step.complete()
	run.Results = append(run.Results, StageResult{Role: role, Name: name, Output: output})
	return output, nil
}

func (o *Orchestrator) beginStep(run *Run, name string, role Role) *Step {
	step := newStep(name, role)
	step.start()
	run.Steps = append(run.Steps, step)
	return step
}

func sortedFileNames(files map[string]string) []string {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

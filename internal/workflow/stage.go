// Package workflow sequences the code-generation pipeline: planning,
// design, optional test writing, implementation (incremental with a
// single direct fallback), optional execution, and review. Stages are
// text-in/text-out collaborators behind the Stage interface; the
// orchestrator holds a registry keyed by role.
package workflow

import (
	"context"
	"fmt"
	"sync"

	"codeforge/internal/llm"
)

// Role names a pipeline stage variant.
type Role string

const (
	RolePlanner    Role = "planner"
	RoleDesigner   Role = "designer"
	RoleTestWriter Role = "test_writer"
	RoleCoder      Role = "coder"
	RoleReviewer   Role = "reviewer"
	RoleExecutor   Role = "executor"
	RoleValidator  Role = "validator"
)

// Stage is one pipeline unit producing text output from text input.
type Stage interface {
	Invoke(ctx context.Context, input string) (string, error)
}

// StageFunc adapts a function to the Stage interface.
type StageFunc func(ctx context.Context, input string) (string, error)

func (f StageFunc) Invoke(ctx context.Context, input string) (string, error) {
	return f(ctx, input)
}

// Registry maps roles to their stage implementations.
type Registry struct {
	mu     sync.RWMutex
	stages map[Role]Stage
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{stages: make(map[Role]Stage)}
}

// Register binds a stage to a role, replacing any previous binding.
func (r *Registry) Register(role Role, stage Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stages[role] = stage
}

// Get returns the stage bound to role.
func (r *Registry) Get(role Role) (Stage, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stage, ok := r.stages[role]
	return stage, ok
}

// Has reports whether a stage is bound to role.
func (r *Registry) Has(role Role) bool {
	_, ok := r.Get(role)
	return ok
}

// stagePrompts are the per-role instruction preambles for LLM-backed
// stages.
var stagePrompts = map[Role]string{
	RolePlanner: "You are a software planner. Produce a concise implementation plan " +
		"for the requirements below: goals, major components, and milestones.",
	RoleDesigner: "You are a software architect. Turn the plan below into a technical " +
		"design: modules, interfaces, and data flow. When breaking work into features, " +
		"emit an IMPLEMENTATION PLAN section with FEATURE[n] entries carrying " +
		"Description, Files, Validation, Dependencies, and Complexity fields.",
	RoleTestWriter: "You are a test engineer. Write tests for the design below. " +
		"Emit each file as 'FILENAME: <path>' followed by a fenced code block.",
	RoleCoder: "You are a software developer. Implement the design below. " +
		"Emit each file as 'FILENAME: <path>' followed by a fenced code block.",
	RoleReviewer: "You are a code reviewer. Review the content below and respond with " +
		"either \"APPROVED\" if it meets requirements, or \"REVISION NEEDED: <specific feedback>\".",
	RoleExecutor: "You are an execution agent. Execute the code below and report " +
		"the outcome, including any errors encountered.",
	RoleValidator: "You are a validation agent. Assess whether the application below " +
		"runs correctly and report findings.",
}

// LLMStage invokes a model client with a role-specific preamble.
type LLMStage struct {
	client llm.Client
	role   Role
}

// NewLLMStage creates an LLM-backed stage for role.
func NewLLMStage(client llm.Client, role Role) *LLMStage {
	return &LLMStage{client: client, role: role}
}

// Invoke sends the role preamble plus input to the model.
func (s *LLMStage) Invoke(ctx context.Context, input string) (string, error) {
	prompt := input
	if preamble, ok := stagePrompts[s.role]; ok {
		prompt = preamble + "\n\n" + input
	}
	out, err := s.client.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("%s stage failed: %w", s.role, err)
	}
	return out, nil
}

// RegisterLLMStages binds every role to an LLM stage on the client.
func RegisterLLMStages(registry *Registry, client llm.Client) {
	for role := range stagePrompts {
		registry.Register(role, NewLLMStage(client, role))
	}
}

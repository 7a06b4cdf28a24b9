package workflow

import "time"

// StepStatus tracks a pipeline step through its lifecycle.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepRetrying   StepStatus = "retrying"
)

// Step records the progress of one pipeline phase.
type Step struct {
	Name       string     `json:"name"`
	Role       Role       `json:"role"`
	Status     StepStatus `json:"status"`
	StartedAt  time.Time  `json:"started_at,omitempty"`
	EndedAt    time.Time  `json:"ended_at,omitempty"`
	Challenges []string   `json:"challenges,omitempty"`
}

func newStep(name string, role Role) *Step {
	return &Step{Name: name, Role: role, Status: StepPending}
}

func (s *Step) start() {
	s.Status = StepInProgress
	s.StartedAt = time.Now()
}

func (s *Step) complete() {
	s.Status = StepCompleted
	s.EndedAt = time.Now()
}

func (s *Step) fail(reason string) {
	s.Status = StepFailed
	s.EndedAt = time.Now()
	if reason != "" {
		s.Challenges = append(s.Challenges, reason)
	}
}

func (s *Step) retry(reason string) {
	s.Status = StepRetrying
	if reason != "" {
		s.Challenges = append(s.Challenges, reason)
	}
}

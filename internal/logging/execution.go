package logging

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// EXECUTION LOGGER
// =============================================================================

// ExecutionLogger tracks all activity for one pipeline session. It is safe
// for concurrent use: a single mutex serializes entry appends, timer
// mutation, and aggregate updates, so statistics reads always observe a
// consistent snapshot.
type ExecutionLogger struct {
	mu        sync.Mutex
	sessionID string
	logDir    string
	trunc     TruncationPolicy

	entries []Entry
	timers  map[string]time.Time

	startTime     time.Time
	endTime       time.Time
	agentCalls    int
	commandCount  int
	errorCount    int
	agentDuration map[string][]float64
	commandByType map[string]int
}

// Option configures an ExecutionLogger.
type Option func(*ExecutionLogger)

// WithTruncation overrides the default truncation policy.
func WithTruncation(p TruncationPolicy) Option {
	return func(l *ExecutionLogger) { l.trunc = p }
}

// NewExecutionLogger starts a session with the given id. Log files are
// written under logDir on export.
func NewExecutionLogger(sessionID string, logDir string, opts ...Option) *ExecutionLogger {
	l := &ExecutionLogger{
		sessionID:     sessionID,
		logDir:        logDir,
		trunc:         DefaultTruncation(),
		timers:        make(map[string]time.Time),
		startTime:     time.Now(),
		agentDuration: make(map[string][]float64),
		commandByType: make(map[string]int),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SessionID returns the session this logger belongs to.
func (l *ExecutionLogger) SessionID() string { return l.sessionID }

// LogWorkflowStart records the beginning of a workflow execution.
func (l *ExecutionLogger) LogWorkflowStart(metadata map[string]any) {
	l.append(Entry{
		Type:     EntryWorkflowStart,
		Action:   "workflow_initiated",
		Status:   "started",
		Metadata: metadata,
	})
}

// LogWorkflowEnd records the end of a workflow execution with its final
// status and total duration.
func (l *ExecutionLogger) LogWorkflowEnd(status string, errMsg string) {
	l.mu.Lock()
	l.endTime = time.Now()
	duration := float64(l.endTime.Sub(l.startTime)) / float64(time.Millisecond)
	l.mu.Unlock()

	l.append(Entry{
		Type:         EntryWorkflowEnd,
		Action:       "workflow_completed",
		Status:       status,
		DurationMs:   &duration,
		ErrorMessage: errMsg,
	})
}

// LogAgentRequest records an outgoing agent call and returns a request id.
// An internal timer keyed by the request id starts immediately; the matching
// LogAgentResponse stops it and records the elapsed duration.
func (l *ExecutionLogger) LogAgentRequest(agentName, inputData string) string {
	requestID := fmt.Sprintf("%s_%s", agentName, uuid.NewString())

	l.mu.Lock()
	l.timers[requestID] = time.Now()
	l.agentCalls++
	l.mu.Unlock()

	l.append(Entry{
		Type:      EntryAgentRequest,
		AgentName: agentName,
		Action:    "agent_call",
		InputData: l.trunc.truncateInput(inputData),
		Status:    "pending",
		Metadata:  map[string]any{"request_id": requestID},
	})
	return requestID
}

// LogAgentResponse records the response to a prior request. A request id is
// closed by at most one response: the first response consumes the timer and
// records a duration, any later response for the same id records none. An
// id that is never closed leaves no duration but does not disturb the
// aggregate statistics.
func (l *ExecutionLogger) LogAgentResponse(agentName, requestID, outputData, status string, errMsg string) {
	var duration *float64

	l.mu.Lock()
	if start, ok := l.timers[requestID]; ok {
		elapsed := float64(time.Since(start)) / float64(time.Millisecond)
		duration = &elapsed
		delete(l.timers, requestID)
		l.agentDuration[agentName] = append(l.agentDuration[agentName], elapsed)
	}
	if status != "success" {
		l.errorCount++
	}
	l.mu.Unlock()

	l.append(Entry{
		Type:         EntryAgentResponse,
		AgentName:    agentName,
		Action:       "agent_response",
		OutputData:   l.trunc.truncateOutput(outputData),
		DurationMs:   duration,
		Status:       status,
		ErrorMessage: errMsg,
		Metadata:     map[string]any{"request_id": requestID},
	})
}

// LogCommandExecution records one external command run.
func (l *ExecutionLogger) LogCommandExecution(command, output string, durationMs float64, status string, errMsg string) {
	l.mu.Lock()
	l.commandCount++
	cmdType := "unknown"
	if fields := strings.Fields(command); len(fields) > 0 {
		cmdType = fields[0]
	}
	l.commandByType[cmdType]++
	l.mu.Unlock()

	l.append(Entry{
		Type:         EntryCommandExecution,
		Action:       "command_execution",
		InputData:    command,
		OutputData:   l.trunc.truncateOutput(output),
		DurationMs:   &durationMs,
		Status:       status,
		ErrorMessage: errMsg,
	})
}

// LogError records an error occurrence with optional context.
func (l *ExecutionLogger) LogError(errMsg string, context map[string]any) {
	l.mu.Lock()
	l.errorCount++
	l.mu.Unlock()

	l.append(Entry{
		Type:         EntryError,
		Action:       "error_occurred",
		Status:       "error",
		ErrorMessage: errMsg,
		Metadata:     context,
	})
}

// LogMetric records a named metric value.
func (l *ExecutionLogger) LogMetric(name string, value any, metadata map[string]any) {
	l.append(Entry{
		Type:       EntryMetric,
		Action:     name,
		OutputData: fmt.Sprint(value),
		Metadata:   metadata,
	})
}

// LogValidation records the outcome of a validation run.
func (l *ExecutionLogger) LogValidation(projectType string, success bool, details map[string]any) {
	status := "success"
	if !success {
		status = "failed"
	}
	l.append(Entry{
		Type:     EntryValidation,
		Action:   "validation",
		Status:   status,
		Metadata: mergeMetadata(details, map[string]any{"project_type": projectType}),
	})
}

// append stamps and stores an entry under the lock.
func (l *ExecutionLogger) append(e Entry) {
	e.Timestamp = time.Now()
	e.SessionID = l.sessionID

	l.mu.Lock()
	l.entries = append(l.entries, e)
	l.mu.Unlock()
}

// Entries returns a snapshot copy of all entries in insertion order.
func (l *ExecutionLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// =============================================================================
// STATISTICS
// =============================================================================

// AgentStats summarizes the calls made to one agent.
type AgentStats struct {
	TotalCalls int     `json:"total_calls"`
	TotalMs    float64 `json:"total_ms"`
	AvgMs      float64 `json:"avg_ms"`
}

// Statistics is a consistent snapshot of session aggregates.
type Statistics struct {
	SessionID        string                `json:"session_id"`
	StartTime        time.Time             `json:"start_time"`
	EndTime          *time.Time            `json:"end_time,omitempty"`
	TotalDurationSec float64               `json:"total_duration_seconds"`
	TotalAgentCalls  int                   `json:"total_agent_calls"`
	TotalCommands    int                   `json:"total_commands"`
	TotalErrors      int                   `json:"total_errors"`
	AgentDurations   map[string]AgentStats `json:"agent_average_durations"`
	CommandsByType   map[string]int        `json:"command_count_by_type"`
}

// Statistics computes the current aggregates under the lock, so a
// concurrent producer can never expose a torn state to the reader.
func (l *ExecutionLogger) Statistics() Statistics {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := Statistics{
		SessionID:       l.sessionID,
		StartTime:       l.startTime,
		TotalAgentCalls: l.agentCalls,
		TotalCommands:   l.commandCount,
		TotalErrors:     l.errorCount,
		AgentDurations:  make(map[string]AgentStats, len(l.agentDuration)),
		CommandsByType:  make(map[string]int, len(l.commandByType)),
	}
	for agent, durations := range l.agentDuration {
		var total float64
		for _, d := range durations {
			total += d
		}
		stats.AgentDurations[agent] = AgentStats{
			TotalCalls: len(durations),
			TotalMs:    total,
			AvgMs:      total / float64(len(durations)),
		}
	}
	for cmdType, count := range l.commandByType {
		stats.CommandsByType[cmdType] = count
	}
	if !l.endTime.IsZero() {
		end := l.endTime
		stats.EndTime = &end
		stats.TotalDurationSec = l.endTime.Sub(l.startTime).Seconds()
	} else {
		stats.TotalDurationSec = time.Since(l.startTime).Seconds()
	}
	return stats
}

// Summary renders a human-readable overview of the session.
func (l *ExecutionLogger) Summary() string {
	stats := l.Statistics()

	var b strings.Builder
	fmt.Fprintf(&b, "Execution Summary - Session: %s\n", l.sessionID)
	b.WriteString(strings.Repeat("=", 60) + "\n")
	fmt.Fprintf(&b, "Duration: %.2f seconds\n", stats.TotalDurationSec)
	fmt.Fprintf(&b, "Total Agent Calls: %d\n", stats.TotalAgentCalls)
	fmt.Fprintf(&b, "Total Commands: %d\n", stats.TotalCommands)
	fmt.Fprintf(&b, "Total Errors: %d\n\n", stats.TotalErrors)

	if len(stats.AgentDurations) > 0 {
		b.WriteString("Agent Performance:\n")
		for _, agent := range sortedKeys(stats.AgentDurations) {
			perf := stats.AgentDurations[agent]
			fmt.Fprintf(&b, "  - %s: %d calls, avg %.0fms\n", agent, perf.TotalCalls, perf.AvgMs)
		}
	}
	if len(stats.CommandsByType) > 0 {
		b.WriteString("\nCommand Types:\n")
		for _, cmd := range sortedKeys(stats.CommandsByType) {
			fmt.Fprintf(&b, "  - %s: %d\n", cmd, stats.CommandsByType[cmd])
		}
	}
	return b.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mergeMetadata(base, extra map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func formatMs(ms float64) string {
	return strconv.FormatFloat(ms, 'f', 2, 64)
}

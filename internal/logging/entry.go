// Package logging provides the structured execution log for one pipeline
// session. Every agent exchange, command execution, error, and metric is
// recorded as an append-only entry that can be exported to CSV and JSON
// for later analysis.
package logging

import (
	"encoding/json"
	"time"
)

// =============================================================================
// ENTRY TYPES
// =============================================================================

// EntryType defines the type of log entry.
type EntryType string

const (
	EntryWorkflowStart    EntryType = "workflow_start"
	EntryWorkflowEnd      EntryType = "workflow_end"
	EntryAgentRequest     EntryType = "agent_request"
	EntryAgentResponse    EntryType = "agent_response"
	EntryCommandExecution EntryType = "command_execution"
	EntryError            EntryType = "error"
	EntryMetric           EntryType = "metric"
	EntryValidation       EntryType = "validation"
)

// CSVHeaders is the fixed column order of the execution-log CSV export.
var CSVHeaders = []string{
	"timestamp", "session_id", "entry_type", "agent_name", "action",
	"input_data", "output_data", "duration_ms", "status", "error_message", "metadata",
}

// =============================================================================
// LOG ENTRY
// =============================================================================

// Entry is a single execution log record. Entries are immutable once
// appended and are never reordered.
type Entry struct {
	Timestamp    time.Time      `json:"timestamp"`
	SessionID    string         `json:"session_id"`
	Type         EntryType      `json:"entry_type"`
	AgentName    string         `json:"agent_name,omitempty"`
	Action       string         `json:"action,omitempty"`
	InputData    string         `json:"input_data,omitempty"`
	OutputData   string         `json:"output_data,omitempty"`
	DurationMs   *float64       `json:"duration_ms,omitempty"`
	Status       string         `json:"status,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// CSVRow renders the entry in the fixed CSV column order.
func (e Entry) CSVRow() []string {
	duration := ""
	if e.DurationMs != nil {
		duration = formatMs(*e.DurationMs)
	}
	metadata := ""
	if len(e.Metadata) > 0 {
		if data, err := json.Marshal(e.Metadata); err == nil {
			metadata = string(data)
		}
	}
	return []string{
		e.Timestamp.Format(time.RFC3339Nano),
		e.SessionID,
		string(e.Type),
		e.AgentName,
		e.Action,
		e.InputData,
		e.OutputData,
		duration,
		e.Status,
		e.ErrorMessage,
		metadata,
	}
}

// =============================================================================
// TRUNCATION POLICY
// =============================================================================

// passThroughFloor is the threshold above which configured limits are
// treated as "do not truncate at all".
const passThroughFloor = 10000

// TruncationPolicy controls how much input/output data is kept per entry.
// Setting both limits above the pass-through floor disables truncation
// entirely; this is a policy knob, not a fixed limit.
type TruncationPolicy struct {
	MaxInput  int
	MaxOutput int
}

// DefaultTruncation keeps logged payloads at a size that stays readable
// in CSV exports.
func DefaultTruncation() TruncationPolicy {
	return TruncationPolicy{MaxInput: 1000, MaxOutput: 1000}
}

// Unbounded disables truncation.
func Unbounded() TruncationPolicy {
	return TruncationPolicy{MaxInput: passThroughFloor + 1, MaxOutput: passThroughFloor + 1}
}

func (p TruncationPolicy) passThrough() bool {
	return p.MaxInput > passThroughFloor && p.MaxOutput > passThroughFloor
}

func (p TruncationPolicy) truncateInput(data string) string {
	return p.truncate(data, p.MaxInput)
}

func (p TruncationPolicy) truncateOutput(data string) string {
	return p.truncate(data, p.MaxOutput)
}

func (p TruncationPolicy) truncate(data string, limit int) string {
	if p.passThrough() || limit <= 0 || len(data) <= limit {
		return data
	}
	return data[:limit] + "... [truncated]"
}

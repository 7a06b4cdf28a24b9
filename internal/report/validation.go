package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"codeforge/internal/runner"
)

// jsonValidationReport is the full-fidelity JSON rendering of one
// validation outcome.
type jsonValidationReport struct {
	SessionID  string               `json:"session_id"`
	Timestamp  string               `json:"timestamp"`
	Validation jsonValidationResult `json:"validation_result"`
	Logs       jsonValidationLogs   `json:"logs"`
}

type jsonValidationResult struct {
	Success           bool     `json:"success"`
	ProjectType       string   `json:"project_type"`
	DurationSeconds   float64  `json:"duration_seconds"`
	PortListening     int      `json:"port_listening,omitempty"`
	HealthCheckPassed bool     `json:"health_check_passed"`
	Recommendations   []string `json:"recommendations"`
}

type jsonValidationLogs struct {
	Installation string `json:"installation"`
	Execution    string `json:"execution"`
	Errors       string `json:"errors"`
}

// validationSummaryHeaders is the column order of
// validation_summary.csv.
var validationSummaryHeaders = []string{
	"Session ID", "Timestamp", "Success", "Project Type", "Duration (s)",
	"Port", "Health Check", "Recommendations Count", "Error",
}

// GenerateValidationReports renders one validation outcome to
// Markdown, JSON, and the rolling validation_summary.csv, returning
// the produced paths keyed by kind.
func (g *Generator) GenerateValidationReports(result runner.ValidationResult, sessionID string) (map[string]string, error) {
	reports := make(map[string]string, 3)

	mdPath, err := g.WriteValidationReport(result, sessionID)
	if err != nil {
		return nil, err
	}
	reports["markdown"] = mdPath

	jsonPath, err := g.writeValidationJSON(result, sessionID)
	if err != nil {
		return nil, err
	}
	reports["json"] = jsonPath

	csvPath, err := g.AppendValidationSummary(result, sessionID)
	if err != nil {
		return nil, err
	}
	reports["csv"] = csvPath

	return reports, nil
}

func (g *Generator) writeValidationJSON(result runner.ValidationResult, sessionID string) (string, error) {
	doc := jsonValidationReport{
		SessionID: sessionID,
		Timestamp: g.now().Format(time.RFC3339),
		Validation: jsonValidationResult{
			Success:           result.Success,
			ProjectType:       result.ProjectType,
			DurationSeconds:   result.DurationSeconds,
			PortListening:     result.PortListening,
			HealthCheckPassed: result.HealthCheckPassed,
			Recommendations:   result.Recommendations,
		},
		Logs: jsonValidationLogs{
			Installation: result.InstallationLog,
			Execution:    result.ExecutionLog,
			Errors:       result.ErrorLog,
		},
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal validation report: %w", err)
	}
	path := g.path(fmt.Sprintf("validation_%s_%s.json", sessionID, g.now().Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// AppendValidationSummary appends one row to validation_summary.csv,
// writing the header only when the file is new.
func (g *Generator) AppendValidationSummary(result runner.ValidationResult, sessionID string) (string, error) {
	path := g.path("validation_summary.csv")

	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if isNew {
		if err := w.Write(validationSummaryHeaders); err != nil {
			return "", err
		}
	}

	port := ""
	if result.PortListening != 0 {
		port = strconv.Itoa(result.PortListening)
	}
	hasErrors := "no"
	if result.ErrorLog != "" {
		hasErrors = "yes"
	}
	row := []string{
		sessionID,
		g.now().Format(time.RFC3339),
		strconv.FormatBool(result.Success),
		result.ProjectType,
		strconv.FormatFloat(result.DurationSeconds, 'f', 2, 64),
		port,
		strconv.FormatBool(result.HealthCheckPassed),
		strconv.Itoa(len(result.Recommendations)),
		hasErrors,
	}
	if err := w.Write(row); err != nil {
		return "", err
	}
	w.Flush()
	return path, w.Error()
}

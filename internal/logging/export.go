package logging

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// =============================================================================
// EXPORT
// =============================================================================

// ExportCSV writes all entries to a CSV file under the log directory and
// returns the path. An empty filename defaults to
// execution_report_<session>.csv.
func (l *ExecutionLogger) ExportCSV(filename string) (string, error) {
	if filename == "" {
		filename = fmt.Sprintf("execution_report_%s.csv", l.sessionID)
	}
	path := filepath.Join(l.logDir, filename)
	if err := os.MkdirAll(l.logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV export: %w", err)
	}
	defer file.Close()

	if err := l.writeCSV(file); err != nil {
		return "", err
	}
	return path, nil
}

func (l *ExecutionLogger) writeCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(CSVHeaders); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, entry := range l.Entries() {
		if err := writer.Write(entry.CSVRow()); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// jsonReport is the shape of the JSON export: statistics first, then the
// ordered entry list.
type jsonReport struct {
	SessionID  string     `json:"session_id"`
	Statistics Statistics `json:"statistics"`
	Entries    []Entry    `json:"entries"`
}

// ExportJSON writes the full session report to a JSON file under the log
// directory and returns the path.
func (l *ExecutionLogger) ExportJSON(filename string) (string, error) {
	if filename == "" {
		filename = fmt.Sprintf("execution_report_%s.json", l.sessionID)
	}
	path := filepath.Join(l.logDir, filename)
	if err := os.MkdirAll(l.logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	report := jsonReport{
		SessionID:  l.sessionID,
		Statistics: l.Statistics(),
		Entries:    l.Entries(),
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write JSON export: %w", err)
	}
	return path, nil
}

package runner

import "strings"

// recommendations scans the collected logs for well-known failure
// signatures and suggests fixes. The scan is substring-based on
// purpose; it is advice, not diagnosis.
func recommendations(projectType, installLog string, outcome runOutcome) []string {
	var recs []string

	if outcome.errLog != "" {
		if strings.Contains(outcome.errLog, "command not found") {
			recs = append(recs, "Ensure "+projectType+" runtime is installed")
		}
		if strings.Contains(outcome.errLog, "Module not found") || strings.Contains(outcome.errLog, "Cannot find module") {
			recs = append(recs, "Check that all required dependencies are listed")
		}
		if strings.Contains(outcome.errLog, "Permission denied") {
			recs = append(recs, "Check file permissions")
		}
		if strings.Contains(outcome.errLog, "address already in use") {
			recs = append(recs, "The port is already in use, consider making it configurable")
		}
	}

	if strings.Contains(strings.ToLower(installLog), "error") {
		recs = append(recs, "Fix dependency installation errors")
	}

	if outcome.errLog == "" && outcome.output != "" {
		lower := strings.ToLower(outcome.output)
		if !strings.Contains(lower, "listening") && !strings.Contains(lower, "started") {
			recs = append(recs, "Add startup logging to confirm the application is running")
		}
	}

	return recs
}

package report

import (
	"fmt"
	"os"
	"strings"

	"codeforge/internal/runner"
	"codeforge/internal/testparse"
)

// Row caps for the Markdown report.
const (
	maxFailedDetails = 10
	maxTableRows     = 20
	outputSampleCap  = 1000
)

var statusIcons = map[testparse.Status]string{
	testparse.StatusPassed:  "✅",
	testparse.StatusFailed:  "❌",
	testparse.StatusSkipped: "⏭️",
}

func statusIcon(s testparse.Status) string {
	if icon, ok := statusIcons[s]; ok {
		return icon
	}
	return "❓"
}

func (g *Generator) writeMarkdownReport(run testparse.RunResult, workflow []AgentOutput, baseName, sessionID string) (string, error) {
	var b strings.Builder

	b.WriteString("# Test Execution Report\n")
	fmt.Fprintf(&b, "\n**Session:** %s\n", sessionID)
	fmt.Fprintf(&b, "**Date:** %s\n", g.now().Format("2006-01-02 15:04:05"))
	if run.Success {
		b.WriteString("**Status:** ✅ SUCCESS\n")
	} else {
		b.WriteString("**Status:** ❌ FAILED\n")
	}

	b.WriteString("\n## Summary\n")
	fmt.Fprintf(&b, "- **Total Tests:** %d\n", run.TotalTests)
	fmt.Fprintf(&b, "- **Passed:** %d ✅\n", run.Passed)
	fmt.Fprintf(&b, "- **Failed:** %d ❌\n", run.Failed)
	fmt.Fprintf(&b, "- **Skipped:** %d ⏭️\n", run.Skipped)
	fmt.Fprintf(&b, "- **Success Rate:** %.1f%%\n", successRate(run.Passed, run.TotalTests))
	fmt.Fprintf(&b, "- **Execution Time:** %.2f seconds\n", run.ExecutionTime)
	fmt.Fprintf(&b, "- **Test Framework:** %s\n", run.Framework)
	fmt.Fprintf(&b, "- **Test Command:** `%s`\n", run.TestCommand)

	var failed []testparse.TestResult
	for _, test := range run.Results {
		if test.Status == testparse.StatusFailed {
			failed = append(failed, test)
		}
	}
	if len(failed) > 0 {
		b.WriteString("\n## Failed Tests\n")
		shown := failed
		if len(shown) > maxFailedDetails {
			shown = shown[:maxFailedDetails]
		}
		for _, test := range shown {
			fmt.Fprintf(&b, "\n### ❌ %s\n", test.TestName)
			fmt.Fprintf(&b, "- **File:** `%s`\n", test.TestFile)
			if test.Suite != "" {
				fmt.Fprintf(&b, "- **Suite:** %s\n", test.Suite)
			}
			if test.ErrorMessage != "" {
				fmt.Fprintf(&b, "- **Error:** %s\n", test.ErrorMessage)
			}
		}
		if len(failed) > maxFailedDetails {
			fmt.Fprintf(&b, "\n... and %d more failed tests\n", len(failed)-maxFailedDetails)
		}
	}

	b.WriteString("\n## Test Results\n")
	b.WriteString("\n| Test File | Test Name | Status | Duration (ms) |\n")
	b.WriteString("|-----------|-----------|--------|---------------|\n")
	rows := run.Results
	if len(rows) > maxTableRows {
		rows = rows[:maxTableRows]
	}
	for _, test := range rows {
		name := test.TestName
		if len(name) > 40 {
			name = name[:40] + "..."
		}
		file := test.TestFile
		if idx := strings.LastIndex(file, "/"); idx >= 0 {
			file = file[idx+1:]
		}
		fmt.Fprintf(&b, "| %s | %s | %s %s | %.1f |\n",
			file, name, statusIcon(test.Status), test.Status, test.DurationMs)
	}
	if run.TotalTests > maxTableRows {
		fmt.Fprintf(&b, "\n*... and %d more tests*\n", run.TotalTests-maxTableRows)
	}

	if run.OutputLog != "" {
		b.WriteString("\n## Test Output (Sample)\n```\n")
		sample := run.OutputLog
		if len(sample) > outputSampleCap {
			sample = sample[:outputSampleCap] + "\n... (truncated)"
		}
		b.WriteString(sample)
		b.WriteString("\n```\n")
	}

	if len(workflow) > 0 {
		b.WriteString("\n## Workflow Context\n")
		for _, agent := range workflow {
			fmt.Fprintf(&b, "- **%s:** Generated %d characters of output\n", agent.Name, len(agent.Output))
		}
	}

	path := g.path(baseName + ".md")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// WriteValidationReport renders an application validation outcome to
// Markdown alongside the test reports.
func (g *Generator) WriteValidationReport(result runner.ValidationResult, sessionID string) (string, error) {
	var b strings.Builder

	b.WriteString("# Application Validation Report\n")
	fmt.Fprintf(&b, "\n**Session:** %s\n", sessionID)
	fmt.Fprintf(&b, "**Date:** %s\n", g.now().Format("2006-01-02 15:04:05"))
	if result.Success {
		b.WriteString("**Status:** ✅ SUCCESS\n")
	} else {
		b.WriteString("**Status:** ❌ FAILED\n")
	}

	b.WriteString("\n## Details\n")
	fmt.Fprintf(&b, "- **Project Type:** %s\n", result.ProjectType)
	fmt.Fprintf(&b, "- **Duration:** %.2f seconds\n", result.DurationSeconds)
	if result.PortListening != 0 {
		fmt.Fprintf(&b, "- **Listening Port:** %d\n", result.PortListening)
		fmt.Fprintf(&b, "- **Health Check:** %v\n", result.HealthCheckPassed)
	}
	if result.ErrorLog != "" {
		b.WriteString("\n## Errors\n```\n")
		errLog := result.ErrorLog
		if len(errLog) > outputSampleCap {
			errLog = errLog[:outputSampleCap] + "\n... (truncated)"
		}
		b.WriteString(errLog)
		b.WriteString("\n```\n")
	}
	if len(result.Recommendations) > 0 {
		b.WriteString("\n## Recommendations\n")
		for _, rec := range result.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}

	path := g.path(fmt.Sprintf("validation_%s_%s.md", sessionID, g.now().Format("20060102_150405")))
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

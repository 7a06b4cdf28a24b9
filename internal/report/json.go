package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"codeforge/internal/testparse"
)

// outputLogCap bounds the log excerpt carried by the JSON report.
const outputLogCap = 5000

type jsonReport struct {
	SessionID     string                  `json:"session_id"`
	Timestamp     string                  `json:"timestamp"`
	TestRunResult jsonRunSummary          `json:"test_run_result"`
	TestResults   []testparse.TestResult  `json:"test_results"`
	OutputLog     string                  `json:"output_log"`
	Workflow      *jsonWorkflowSummary    `json:"workflow_summary,omitempty"`
}

type jsonRunSummary struct {
	Success       bool    `json:"success"`
	TotalTests    int     `json:"total_tests"`
	Passed        int     `json:"passed"`
	Failed        int     `json:"failed"`
	Skipped       int     `json:"skipped"`
	ExecutionTime float64 `json:"execution_time"`
	Framework     string  `json:"test_framework"`
	TestCommand   string  `json:"test_command"`
	ProjectPath   string  `json:"project_path"`
}

type jsonWorkflowSummary struct {
	TotalAgents int              `json:"total_agents"`
	Agents      []jsonAgentEntry `json:"agents"`
}

type jsonAgentEntry struct {
	Name         string `json:"name"`
	OutputLength int    `json:"output_length"`
}

func (g *Generator) writeJSONReport(run testparse.RunResult, workflow []AgentOutput, baseName, sessionID string) (string, error) {
	outputLog := run.OutputLog
	if len(outputLog) > outputLogCap {
		outputLog = outputLog[:outputLogCap]
	}

	doc := jsonReport{
		SessionID: sessionID,
		Timestamp: g.now().Format(time.RFC3339),
		TestRunResult: jsonRunSummary{
			Success:       run.Success,
			TotalTests:    run.TotalTests,
			Passed:        run.Passed,
			Failed:        run.Failed,
			Skipped:       run.Skipped,
			ExecutionTime: run.ExecutionTime,
			Framework:     run.Framework,
			TestCommand:   run.TestCommand,
			ProjectPath:   run.ProjectPath,
		},
		TestResults: run.Results,
		OutputLog:   outputLog,
	}
	if len(workflow) > 0 {
		summary := &jsonWorkflowSummary{TotalAgents: len(workflow)}
		for _, agent := range workflow {
			summary.Agents = append(summary.Agents, jsonAgentEntry{
				Name:         agent.Name,
				OutputLength: len(agent.Output),
			})
		}
		doc.Workflow = summary
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	path := g.path(baseName + ".json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

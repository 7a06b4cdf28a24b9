package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codeforge/internal/llm"
	"codeforge/internal/logging"
	"codeforge/internal/report"
	"codeforge/internal/runner"
	"codeforge/internal/store"
	"codeforge/internal/workflow"
)

var (
	runOutputDir      string
	runRequirements   string
	runIncremental    bool
	runSkipTests      bool
	runSkipValidation bool
)

var runCmd = &cobra.Command{
	Use:   "run [requirements...]",
	Short: "Run the full generation pipeline for the given requirements",
	Long: `Run drives requirements through planning, design, implementation,
and review, then writes the generated files to the output directory.
Validation launches the result in a sandbox unless skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		requirements := strings.TrimSpace(strings.Join(args, " "))
		if runRequirements != "" {
			data, err := os.ReadFile(runRequirements)
			if err != nil {
				return fmt.Errorf("failed to read requirements file: %w", err)
			}
			requirements = strings.TrimSpace(string(data))
		}
		if requirements == "" {
			return fmt.Errorf("no requirements given: pass them as arguments or via --file")
		}

		apiKey := cfg.LLM.APIKey
		if apiKey == "" {
			return fmt.Errorf("no API key configured: set llm.api_key or GEMINI_API_KEY")
		}

		ctx := cmd.Context()
		client, err := llm.NewGeminiClient(ctx, apiKey, cfg.LLM.Model)
		if err != nil {
			return fmt.Errorf("failed to create model client: %w", err)
		}

		wfCfg := cfg.Workflow
		if runIncremental {
			wfCfg.Incremental = true
		}
		if runSkipTests {
			wfCfg.RunTests = false
		}

		registry := workflow.NewRegistry()
		workflow.RegisterLLMStages(registry, client)
		orchOpts := []workflow.OrchestratorOption{
			workflow.WithWorkflowLogger(logger),
			workflow.WithLogDir(cfg.Logging.Dir),
		}
		if cfg.Logging.MaxInputChars > 0 && cfg.Logging.MaxOutputChars > 0 {
			orchOpts = append(orchOpts, workflow.WithTruncation(logging.TruncationPolicy{
				MaxInput:  cfg.Logging.MaxInputChars,
				MaxOutput: cfg.Logging.MaxOutputChars,
			}))
		}
		orch := workflow.NewOrchestrator(registry, wfCfg, orchOpts...)

		run := orch.Execute(ctx, requirements)

		// The execution log is worth exporting even for failed runs.
		if path, err := run.Logger.ExportCSV(""); err == nil {
			fmt.Println(mutedStyle.Render("execution log: " + path))
		}
		if _, err := run.Logger.ExportJSON(""); err != nil {
			logger.Warn("failed to export execution log", zap.Error(err))
		}

		recordRun(ctx, run, requirements)

		if run.Err != nil {
			fmt.Println(renderRunSummary(run))
			return fmt.Errorf("pipeline failed: %w", run.Err)
		}

		if err := writeGeneratedFiles(runOutputDir, run.Files); err != nil {
			return err
		}

		if !runSkipValidation && cfg.Workflow.RunValidation && len(run.Files) > 0 {
			validateGenerated(ctx, run)
		}

		fmt.Println(renderRunSummary(run))
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOutputDir, "output", "o", "generated", "directory for generated files")
	runCmd.Flags().StringVarP(&runRequirements, "file", "f", "", "read requirements from a file")
	runCmd.Flags().BoolVar(&runIncremental, "incremental", false, "implement feature by feature")
	runCmd.Flags().BoolVar(&runSkipTests, "skip-tests", false, "skip the test-writing and execution phases")
	runCmd.Flags().BoolVar(&runSkipValidation, "skip-validation", false, "skip sandbox validation of the result")
}

func writeGeneratedFiles(dir string, files map[string]string) error {
	for path, content := range files {
		full := filepath.Join(dir, path)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(full, []byte(content+"\n"), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Println(successStyle.Render("wrote " + full))
	}
	return nil
}

// validateGenerated launches the generated files in a sandbox and
// renders a validation report. Validation problems are reported, not
// fatal: the generated code is already on disk.
func validateGenerated(ctx context.Context, run *workflow.Run) {
	r := runner.New(runner.WithLogger(logger))
	result, err := r.Validate(ctx, run.Files, runner.ValidationConfig{
		Timeout:        cfg.ExecutionTimeout(),
		HealthEndpoint: cfg.Execution.HealthEndpoint,
	})
	if err != nil {
		fmt.Println(warnStyle.Render("validation error: " + err.Error()))
		return
	}

	pairs := [][2]string{
		{"validation", renderStatus(result.Success)},
		{"project type", result.ProjectType},
	}
	if result.PortListening != 0 {
		pairs = append(pairs, [2]string{"listening port", fmt.Sprintf("%d", result.PortListening)})
	}
	for _, rec := range result.Recommendations {
		pairs = append(pairs, [2]string{"hint", rec})
	}
	fmt.Println(renderKV(pairs))

	gen, err := report.NewGenerator(cfg.Reports.Dir)
	if err != nil {
		logger.Warn("failed to create report generator", zap.Error(err))
		return
	}
	if reports, err := gen.GenerateValidationReports(result, run.SessionID); err == nil {
		for kind, path := range reports {
			fmt.Println(mutedStyle.Render("validation " + kind + ": " + path))
		}
	}
}

func recordRun(ctx context.Context, run *workflow.Run, requirements string) {
	hs, err := store.NewHistoryStore(cfg.History.DatabasePath)
	if err != nil {
		logger.Warn("failed to open history store", zap.Error(err))
		return
	}
	defer hs.Close()

	status := "completed"
	if run.Err != nil {
		status = "failed"
	}
	if _, err := hs.RecordRun(ctx, store.RunRecord{
		SessionID:    run.SessionID,
		Requirements: requirements,
		Status:       status,
	}); err != nil {
		logger.Warn("failed to record run", zap.Error(err))
	}
}

func renderRunSummary(run *workflow.Run) string {
	pairs := [][2]string{
		{"session", run.SessionID},
		{"status", renderStatus(run.Err == nil)},
		{"files", fmt.Sprintf("%d", len(run.Files))},
		{"stages", fmt.Sprintf("%d", len(run.Steps))},
	}
	return renderHeader("Pipeline Summary") + "\n" + renderKV(pairs) + "\n" + run.Logger.Summary()
}

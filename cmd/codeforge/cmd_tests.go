package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codeforge/internal/report"
	"codeforge/internal/runner"
	"codeforge/internal/store"
)

var testCmd = &cobra.Command{
	Use:   "test <dir>",
	Short: "Run a project's test suite and generate reports",
	Long: `Test detects the project's test framework, runs its suite, parses
the results (preferring machine-readable artifacts over console
output), and renders CSV, JSON, and Markdown reports.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sessionID := uuid.New().String()[:8]

		r := runner.New(runner.WithLogger(logger))
		run, err := r.RunTests(ctx, args[0], runner.TestConfig{
			Timeout:   cfg.TestTimeout(),
			SessionID: sessionID,
		})
		if err != nil {
			return fmt.Errorf("test run failed: %w", err)
		}

		pairs := [][2]string{
			{"status", renderStatus(run.Success)},
			{"framework", run.Framework},
			{"total", fmt.Sprintf("%d", run.TotalTests)},
			{"passed", successStyle.Render(fmt.Sprintf("%d", run.Passed))},
			{"failed", errorStyle.Render(fmt.Sprintf("%d", run.Failed))},
			{"skipped", warnStyle.Render(fmt.Sprintf("%d", run.Skipped))},
			{"duration", fmt.Sprintf("%.1fs", run.ExecutionTime)},
		}
		fmt.Println(renderHeader("Test Run") + "\n" + renderKV(pairs))

		gen, err := report.NewGenerator(cfg.Reports.Dir)
		if err != nil {
			return fmt.Errorf("failed to create report generator: %w", err)
		}
		reports, err := gen.Generate(run, nil, sessionID)
		if err != nil {
			return fmt.Errorf("failed to generate reports: %w", err)
		}
		for kind, path := range reports {
			fmt.Println(mutedStyle.Render(kind + ": " + path))
		}
		if _, err := gen.AppendHistory(run); err != nil {
			logger.Warn("failed to append test history", zap.Error(err))
		}

		if hs, err := store.NewHistoryStore(cfg.History.DatabasePath); err == nil {
			defer hs.Close()
			if _, err := hs.RecordTestRun(ctx, sessionID, "", run); err != nil {
				logger.Warn("failed to record test run", zap.Error(err))
			}
		}

		if !run.Success {
			return fmt.Errorf("%d of %d tests failed", run.Failed, run.TotalTests)
		}
		return nil
	},
}

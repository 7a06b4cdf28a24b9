package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"codeforge/internal/store"
)

var (
	historyLimit   int
	historySession string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent pipeline and test runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		hs, err := store.NewHistoryStore(cfg.History.DatabasePath)
		if err != nil {
			return fmt.Errorf("failed to open history store: %w", err)
		}
		defer hs.Close()

		var runs []store.RunRecord
		if historySession != "" {
			runs, err = hs.RunsBySession(cmd.Context(), historySession)
		} else {
			runs, err = hs.RecentRuns(cmd.Context(), historyLimit)
		}
		if err != nil {
			return fmt.Errorf("failed to query history: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println(mutedStyle.Render("no runs recorded"))
			return nil
		}

		fmt.Println(renderHeader("Run History"))
		for _, run := range runs {
			status := successStyle.Render(run.Status)
			if run.Status != "completed" {
				status = errorStyle.Render(run.Status)
			}
			line := fmt.Sprintf("%s  %s  %s", run.CreatedAt.Format("2006-01-02 15:04"), run.SessionID, status)
			if run.TotalTests > 0 {
				line += mutedStyle.Render(fmt.Sprintf("  %d/%d tests passed", run.Passed, run.TotalTests))
			}
			if req := strings.TrimSpace(run.Requirements); req != "" {
				if len(req) > 60 {
					req = req[:60] + "..."
				}
				line += "\n  " + mutedStyle.Render(req)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "number of runs to show")
	historyCmd.Flags().StringVarP(&historySession, "session", "s", "", "show runs for one session")
}

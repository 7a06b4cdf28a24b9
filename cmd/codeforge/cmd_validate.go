package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codeforge/internal/report"
	"codeforge/internal/runner"
)

// maxValidateFileSize bounds files copied into the sandbox.
const maxValidateFileSize = 1 << 20

var validateCmd = &cobra.Command{
	Use:   "validate <dir>",
	Short: "Launch a project in a sandbox and check that it runs",
	Long: `Validate copies the project into a temporary sandbox, installs its
dependencies, launches it, and probes for a listening port, optionally
hitting a health endpoint. The project directory itself is never
modified.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := loadProjectFiles(args[0])
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no files found under %s", args[0])
		}

		r := runner.New(runner.WithLogger(logger))
		result, err := r.Validate(cmd.Context(), files, runner.ValidationConfig{
			Timeout:        cfg.ExecutionTimeout(),
			HealthEndpoint: cfg.Execution.HealthEndpoint,
		})
		if err != nil {
			return fmt.Errorf("validation failed to run: %w", err)
		}

		pairs := [][2]string{
			{"status", renderStatus(result.Success)},
			{"project type", result.ProjectType},
			{"duration", fmt.Sprintf("%.1fs", result.DurationSeconds)},
		}
		if result.PortListening != 0 {
			pairs = append(pairs, [2]string{"listening port", fmt.Sprintf("%d", result.PortListening)})
		}
		if result.HealthCheckPassed {
			pairs = append(pairs, [2]string{"health check", successStyle.Render("passed")})
		}
		for _, rec := range result.Recommendations {
			pairs = append(pairs, [2]string{"hint", rec})
		}
		fmt.Println(renderHeader("Validation") + "\n" + renderKV(pairs))

		gen, err := report.NewGenerator(cfg.Reports.Dir)
		if err != nil {
			logger.Warn("failed to create report generator", zap.Error(err))
			return nil
		}
		if reports, err := gen.GenerateValidationReports(result, "manual"); err == nil {
			for kind, path := range reports {
				fmt.Println(mutedStyle.Render("validation " + kind + ": " + path))
			}
		}

		if !result.Success {
			return fmt.Errorf("application did not start")
		}
		return nil
	},
}

// loadProjectFiles reads a project directory into a relative-path file
// map, skipping dot directories, dependency trees, and oversized files.
func loadProjectFiles(root string) (map[string]string, error) {
	files := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != root {
				return filepath.SkipDir
			}
			if name == "node_modules" || name == "vendor" || name == "target" || name == "__pycache__" {
				return filepath.SkipDir
			}
			return nil
		}
		if info, err := d.Info(); err == nil && info.Size() > maxValidateFileSize {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[rel] = string(data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

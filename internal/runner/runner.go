// Package runner validates generated applications by materializing
// them into a scratch directory, installing dependencies, launching
// the entry point, and probing for signs of life (listening port,
// health endpoint). Every child process is terminated before a
// validation returns.
package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"codeforge/internal/detect"
)

// Default durations for the validation phases.
const (
	DefaultTimeout      = 60 * time.Second
	defaultStartupGrace = 2 * time.Second
	defaultOutputWindow = 5 * time.Second
)

// ValidationConfig tunes a single validation run.
type ValidationConfig struct {
	// Timeout bounds dependency installation and, separately, the
	// application run. Zero means DefaultTimeout.
	Timeout time.Duration

	// HealthEndpoint, when set, is probed over HTTP once a listening
	// port has been found (e.g. "/health").
	HealthEndpoint string

	// StartupGrace is how long the application gets to either crash
	// or keep running before the port probe. Zero means 2s.
	StartupGrace time.Duration

	// OutputWindow is how long to wait for more output after the
	// grace period. An application still running when it closes is
	// considered started. Zero means 5s.
	OutputWindow time.Duration

	// RunCommand overrides the detected run command when non-empty.
	RunCommand []string
}

func (c ValidationConfig) withDefaults() ValidationConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.StartupGrace <= 0 {
		c.StartupGrace = defaultStartupGrace
	}
	if c.OutputWindow <= 0 {
		c.OutputWindow = defaultOutputWindow
	}
	return c
}

// ValidationResult is the outcome of one application validation.
type ValidationResult struct {
	Success           bool     `json:"success"`
	ProjectType       string   `json:"project_type"`
	InstallationLog   string   `json:"installation_log"`
	ExecutionLog      string   `json:"execution_log"`
	ErrorLog          string   `json:"error_log,omitempty"`
	PortListening     int      `json:"port_listening,omitempty"`
	HealthCheckPassed bool     `json:"health_check_passed"`
	Recommendations   []string `json:"recommendations,omitempty"`
	DurationSeconds   float64  `json:"duration_seconds"`
	// EnvironmentPath points at the retained sandbox after a failed
	// run; empty on success, when the sandbox is removed.
	EnvironmentPath   string   `json:"environment_path,omitempty"`
}

// Runner validates generated applications.
type Runner struct {
	log      *zap.Logger
	probe    PortProbe
	detector *detect.Detector
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger replaces the no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithPortProbe replaces the platform port probe. Used by tests and
// by callers on platforms without lsof.
func WithPortProbe(probe PortProbe) Option {
	return func(r *Runner) { r.probe = probe }
}

// New creates a Runner with the platform default port probe.
func New(opts ...Option) *Runner {
	r := &Runner{
		log:      zap.NewNop(),
		probe:    newPlatformProbe(),
		detector: detect.NewProjectDetector(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Validate writes the generated files into a fresh scratch directory,
// installs dependencies, runs the application, and reports what it
// observed. Validate never returns a non-nil error for application
// failures; those are reported inside the result. The error return is
// reserved for sandbox materialization problems.
func (r *Runner) Validate(ctx context.Context, files map[string]string, cfg ValidationConfig) (ValidationResult, error) {
	start := time.Now()
	cfg = cfg.withDefaults()

	dir, err := os.MkdirTemp("", "codeforge-validate-*")
	if err != nil {
		return ValidationResult{}, fmt.Errorf("create scratch dir: %w", err)
	}

	if err := materialize(dir, files); err != nil {
		os.RemoveAll(dir)
		return ValidationResult{
			Success:         false,
			ProjectType:     detect.Unknown,
			ErrorLog:        err.Error(),
			Recommendations: []string{"Fix the error: " + err.Error()},
			DurationSeconds: time.Since(start).Seconds(),
		}, nil
	}

	projectType := r.detector.Detect(dir)
	r.log.Info("validating application",
		zap.String("project_type", projectType),
		zap.Int("files", len(files)),
		zap.String("dir", dir))

	// Watch the scratch tree while the app runs; purely advisory.
	watchCtx, stopWatch := context.WithCancel(ctx)
	watchDone := watchSandbox(watchCtx, r.log, dir)

	installLog := r.installDependencies(ctx, dir, projectType, cfg.Timeout)
	outcome := r.runApplication(ctx, dir, projectType, cfg)

	stopWatch()
	<-watchDone

	healthPassed := false
	if outcome.port != 0 && cfg.HealthEndpoint != "" {
		healthPassed = checkHealth(ctx, outcome.port, cfg.HealthEndpoint)
	}

	// A clean zero-output exit (a batch program, not a server) also
	// counts as success.
	cleanExit := outcome.exitOK && outcome.output == "" && outcome.errLog == ""
	result := ValidationResult{
		Success:           outcome.port != 0 || outcome.started || cleanExit,
		ProjectType:       projectType,
		InstallationLog:   installLog,
		ExecutionLog:      outcome.output,
		ErrorLog:          outcome.errLog,
		PortListening:     outcome.port,
		HealthCheckPassed: healthPassed,
		Recommendations:   recommendations(projectType, installLog, outcome),
		DurationSeconds:   time.Since(start).Seconds(),
	}

	// The sandbox is kept only when the application failed, so the
	// caller can inspect it; a reported path must actually exist.
	if result.Success {
		os.RemoveAll(dir)
	} else {
		result.EnvironmentPath = dir
		r.log.Info("sandbox retained for inspection", zap.String("dir", dir))
	}

	r.log.Info("validation finished",
		zap.Bool("success", result.Success),
		zap.Int("port", result.PortListening),
		zap.Float64("duration_s", result.DurationSeconds))
	return result, nil
}

// materialize writes the file map under root, creating parents as
// needed. Paths are cleaned and must stay inside root.
func materialize(root string, files map[string]string) error {
	for rel, content := range files {
		clean := filepath.Clean(rel)
		if clean == ".." || len(clean) >= 3 && clean[:3] == ".."+string(filepath.Separator) || filepath.IsAbs(clean) {
			return fmt.Errorf("file path escapes sandbox: %s", rel)
		}
		full := filepath.Join(root, clean)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			return fmt.Errorf("create dir for %s: %w", rel, err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			return fmt.Errorf("write %s: %w", rel, err)
		}
	}
	return nil
}

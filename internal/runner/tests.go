package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"codeforge/internal/detect"
	"codeforge/internal/testparse"
)

// DefaultTestTimeout bounds one full test run.
const DefaultTestTimeout = 300 * time.Second

// testCommands maps a detected framework to the command that runs its
// suite. Artifact-producing flags are included where the framework
// supports them so the parser can prefer the artifact over console
// output.
var testCommands = map[string][]string{
	detect.FrameworkPytest:   {"pytest", "-v", "--tb=short", "--junit-xml=test_results.xml"},
	detect.FrameworkUnittest: {"python", "-m", "unittest", "discover", "-v"},
	detect.FrameworkJest:     {"npm", "test", "--", "--json", "--outputFile=test_results.json"},
	detect.FrameworkMocha:    {"npm", "test"},
	detect.FrameworkGoTest:   {"go", "test", "-v", "./...", "-json"},
	detect.FrameworkCargo:    {"cargo", "test"},
}

// TestConfig tunes one test run.
type TestConfig struct {
	// Timeout bounds the whole run; zero means DefaultTestTimeout.
	Timeout time.Duration

	// Command overrides the framework-derived test command.
	Command []string

	// SessionID is carried into the result for report correlation.
	SessionID string
}

// RunTests detects the project's test framework, executes its suite in
// projectDir, and parses the results. A run that executes zero tests
// is not a success. Errors are reserved for infrastructure problems;
// failing tests come back in the RunResult.
func (r *Runner) RunTests(ctx context.Context, projectDir string, cfg TestConfig) (testparse.RunResult, error) {
	start := time.Now()
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTestTimeout
	}

	framework := detect.NewFrameworkDetector().Detect(projectDir)
	if framework == detect.Unknown {
		framework = detect.DetectByTestFiles(projectDir)
	}

	command := cfg.Command
	if len(command) == 0 {
		var ok bool
		command, ok = testCommands[framework]
		if !ok {
			return testparse.RunResult{
				Framework:   framework,
				ProjectPath: projectDir,
				SessionID:   cfg.SessionID,
				OutputLog:   "no test command for framework " + framework,
			}, nil
		}
	}

	r.log.Info("running tests",
		zap.String("framework", framework),
		zap.Strings("command", command),
		zap.String("dir", projectDir))

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	stdout, stderr, err := runBounded(runCtx, projectDir, command)
	if runCtx.Err() == context.DeadlineExceeded {
		return testparse.RunResult{
			Framework:   framework,
			ProjectPath: projectDir,
			SessionID:   cfg.SessionID,
			TestCommand: strings.Join(command, " "),
			OutputLog:   fmt.Sprintf("Test run timed out after %s", timeout),
		}, nil
	}
	if err != nil {
		// Non-zero exit usually just means failing tests; the parser
		// decides from the output.
		r.log.Debug("test command exited non-zero", zap.Error(err))
	}

	output := stdout
	if stderr != "" {
		output = stdout + "\n" + stderr
	}

	results := testparse.Parse(projectDir, framework, output)
	run := testparse.Summarize(results)
	run.Framework = framework
	run.ProjectPath = projectDir
	run.SessionID = cfg.SessionID
	run.TestCommand = strings.Join(command, " ")
	run.OutputLog = output
	run.ExecutionTime = time.Since(start).Seconds()
	return run, nil
}

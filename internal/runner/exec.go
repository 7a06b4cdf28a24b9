package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"codeforge/internal/detect"
)

// maxCapturedOutput caps stdout/stderr capture per stream.
const maxCapturedOutput = 256 * 1024

// =============================================================================
// DEPENDENCY INSTALLATION
// =============================================================================

var installCommands = map[string][]string{
	detect.ProjectNode:   {"npm", "install"},
	detect.ProjectPython: {"pip", "install", "-r", "requirements.txt"},
	detect.ProjectRust:   {"cargo", "build"},
	detect.ProjectGo:     {"go", "mod", "download"},
}

// installDependencies runs the install command for the project type
// and returns a combined log. Install failures never abort the
// validation; the log carries whatever happened.
func (r *Runner) installDependencies(ctx context.Context, dir, projectType string, timeout time.Duration) string {
	cmd, ok := installCommands[projectType]
	if !ok {
		return fmt.Sprintf("No install command for project type: %s", projectType)
	}
	if projectType == detect.ProjectPython {
		if _, err := os.Stat(filepath.Join(dir, "requirements.txt")); err != nil {
			return "No requirements.txt found, skipping dependency installation"
		}
	}

	r.log.Debug("installing dependencies", zap.Strings("cmd", cmd))

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout, stderr, err := runBounded(execCtx, dir, cmd)
	if execCtx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("Installation timed out after %s", timeout)
	}
	if err != nil {
		if _, isExit := err.(*exec.ExitError); !isExit {
			return fmt.Sprintf("Installation failed: %v", err)
		}
	}
	return fmt.Sprintf("STDOUT:\n%s\n\nSTDERR:\n%s", stdout, stderr)
}

// runBounded executes argv in dir and returns captured output. The
// context bounds the whole execution; output is capped per stream.
func runBounded(ctx context.Context, dir string, argv []string) (string, string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, max: maxCapturedOutput}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, max: maxCapturedOutput}

	err := cmd.Run()
	return stdoutBuf.String(), stderrBuf.String(), err
}

// =============================================================================
// APPLICATION RUN
// =============================================================================

// runOutcome is what the application run phase observed.
type runOutcome struct {
	output  string
	errLog  string
	port    int
	started bool
	// exitOK is set when the process exited on its own with status 0.
	exitOK bool
}

// runApplication launches the detected entry point, gives it a grace
// period to crash, probes for a listening port, then waits a short
// output window. An application still alive at the end of the window
// counts as started and is terminated together with its children.
func (r *Runner) runApplication(ctx context.Context, dir, projectType string, cfg ValidationConfig) runOutcome {
	argv := cfg.RunCommand
	if len(argv) == 0 {
		var ok bool
		argv, ok = runCommand(dir, projectType)
		if !ok {
			return runOutcome{errLog: fmt.Sprintf("No run command for project type: %s", projectType)}
		}
	}

	r.log.Debug("launching application", zap.Strings("cmd", argv))

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = dir
	setProcessGroup(cmd)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &limitedWriter{w: &stdoutBuf, max: maxCapturedOutput}
	cmd.Stderr = &limitedWriter{w: &stderrBuf, max: maxCapturedOutput}

	if err := cmd.Start(); err != nil {
		return runOutcome{errLog: fmt.Sprintf("Failed to run application: %v", err)}
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	// Grace period: a crash here is a hard failure.
	select {
	case err := <-waitCh:
		return runOutcome{output: stdoutBuf.String(), errLog: stderrBuf.String(), exitOK: err == nil}
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-waitCh
		return runOutcome{output: stdoutBuf.String(), errLog: "validation canceled"}
	case <-time.After(cfg.StartupGrace):
	}

	port, _ := r.probe.ListeningPort(ctx, cmd.Process.Pid)

	// Output window: an exit here still means the app did not stay up.
	select {
	case err := <-waitCh:
		return runOutcome{output: stdoutBuf.String(), errLog: stderrBuf.String(), port: port, exitOK: err == nil}
	case <-ctx.Done():
		killProcessGroup(cmd)
		<-waitCh
		return runOutcome{output: stdoutBuf.String(), errLog: "validation canceled", port: port}
	case <-time.After(cfg.OutputWindow):
	}

	// Still running: that is the success signal. Tear it down.
	killProcessGroup(cmd)
	<-waitCh
	return runOutcome{output: "Application started successfully", port: port, started: true}
}

// runCommand picks the entry-point command for the project type.
func runCommand(dir, projectType string) ([]string, bool) {
	switch projectType {
	case detect.ProjectNode:
		return nodeRunCommand(dir), true
	case detect.ProjectPython:
		return pythonRunCommand(dir), true
	case detect.ProjectRust:
		return []string{"cargo", "run"}, true
	case detect.ProjectGo:
		return []string{"go", "run", "."}, true
	default:
		return nil, false
	}
}

func nodeRunCommand(dir string) []string {
	if data, err := os.ReadFile(filepath.Join(dir, "package.json")); err == nil {
		var pkg struct {
			Scripts map[string]string `json:"scripts"`
		}
		if json.Unmarshal(data, &pkg) == nil {
			if _, ok := pkg.Scripts["start"]; ok {
				return []string{"npm", "start"}
			}
			if _, ok := pkg.Scripts["dev"]; ok {
				return []string{"npm", "run", "dev"}
			}
		}
	}
	for _, entry := range []string{"index.js", "app.js", "server.js"} {
		if _, err := os.Stat(filepath.Join(dir, entry)); err == nil {
			return []string{"node", entry}
		}
	}
	return []string{"npm", "start"}
}

func pythonRunCommand(dir string) []string {
	for _, entry := range []string{"main.py", "app.py", "server.py"} {
		if _, err := os.Stat(filepath.Join(dir, entry)); err == nil {
			return []string{"python", entry}
		}
	}
	return []string{"python", "main.py"}
}

// =============================================================================
// OUTPUT CAPTURE
// =============================================================================

// limitedWriter caps total bytes written, silently discarding the rest.
type limitedWriter struct {
	w         io.Writer
	max       int
	written   int
	truncated bool
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	if lw.written >= lw.max {
		lw.truncated = true
		return len(p), nil
	}
	remain := lw.max - lw.written
	if len(p) > remain {
		lw.truncated = true
		p = p[:remain]
	}
	n, err := lw.w.Write(p)
	lw.written += n
	if err != nil {
		return n, err
	}
	return len(p), nil
}

package runner

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrUnsupportedPlatform is returned by probes on platforms without a
// usable port-discovery tool.
var ErrUnsupportedPlatform = errors.New("port probing not supported on this platform")

// PortProbe discovers which port a process is listening on.
type PortProbe interface {
	// ListeningPort returns the first listening port of pid, or an
	// error when none was found or discovery is unavailable.
	ListeningPort(ctx context.Context, pid int) (int, error)
}

// lsofListenRe extracts the port from an lsof LISTEN line,
// e.g. "node 123 u 22u IPv4 ... TCP *:3000 (LISTEN)".
var lsofListenRe = regexp.MustCompile(`:(\d+)\s+\(LISTEN\)`)

// LsofProbe discovers listening ports with lsof.
type LsofProbe struct{}

// ListeningPort shells out to lsof and scans for LISTEN sockets owned
// by pid.
func (LsofProbe) ListeningPort(ctx context.Context, pid int) (int, error) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, "lsof", "-P", "-n", "-i", "-a", "-p", strconv.Itoa(pid))
	var out bytes.Buffer
	cmd.Stdout = &out
	// lsof exits non-zero when nothing matches; the output scan below
	// is the real signal.
	_ = cmd.Run()

	for _, line := range strings.Split(out.String(), "\n") {
		if !strings.Contains(line, "LISTEN") {
			continue
		}
		if match := lsofListenRe.FindStringSubmatch(line); match != nil {
			port, err := strconv.Atoi(match[1])
			if err == nil {
				return port, nil
			}
		}
	}
	return 0, errors.New("no listening port found")
}

// unsupportedProbe always reports ErrUnsupportedPlatform.
type unsupportedProbe struct{}

func (unsupportedProbe) ListeningPort(context.Context, int) (int, error) {
	return 0, ErrUnsupportedPlatform
}

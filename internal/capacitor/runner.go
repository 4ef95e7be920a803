package capacitor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandRunner executes one external command in an explicit working
// directory. The process-wide working directory is never changed; concurrent
// builds each pass their own dir.
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

// ExecRunner runs commands via os/exec, capturing combined output so failures
// carry the tool's own message.
type ExecRunner struct {
	// Timeout bounds each invocation. Zero means no per-command timeout.
	Timeout time.Duration
}

func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			return fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
		}
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, lastLines(msg, 5))
	}
	return nil
}

// lastLines trims tool output to its tail, where build tools put the error.
func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

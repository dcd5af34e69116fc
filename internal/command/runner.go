// Package command wraps external tool invocation (mysqldump, mysql, tar)
// behind an injectable interface so orchestration logic can be tested with a
// fake runner that simulates each failure mode on demand.
package command

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"mysql-backup-verify/internal/logging"
)

// Spec describes one external command invocation
type Spec struct {
	Name  string
	Args  []string
	Env   []string // appended to the inherited environment
	Stdin io.Reader
	// Stdout receives the command's standard output when set; otherwise
	// output is discarded.
	Stdout io.Writer
}

// Runner executes external commands
type Runner interface {
	Run(ctx context.Context, spec Spec) error
}

// ExecRunner runs commands through os/exec
type ExecRunner struct {
	logger *logging.Logger
}

// NewExecRunner creates a runner that shells out to the real tools
func NewExecRunner(logger *logging.Logger) *ExecRunner {
	return &ExecRunner{logger: logger}
}

// Run executes the command, streaming stdout to spec.Stdout and capturing a
// bounded amount of stderr for diagnostics. A non-zero exit is returned as an
// error carrying the stderr tail.
func (r *ExecRunner) Run(ctx context.Context, spec Spec) error {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)

	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	if spec.Stdin != nil {
		cmd.Stdin = spec.Stdin
	}
	if spec.Stdout != nil {
		cmd.Stdout = spec.Stdout
	} else {
		cmd.Stdout = io.Discard
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r.logger.LogProcessExecution(describe(spec), time.Since(start), err)

	if err != nil {
		tail := stderrTail(stderr.String())
		if tail != "" {
			return fmt.Errorf("%s failed: %w (stderr: %s)", spec.Name, err, tail)
		}
		return fmt.Errorf("%s failed: %w", spec.Name, err)
	}
	return nil
}

// describe renders the command line for logging, without environment values
// (which may carry credentials).
func describe(spec Spec) string {
	return spec.Name + " " + strings.Join(spec.Args, " ")
}

// stderrTail keeps the last few hundred bytes of stderr for error messages
func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	const max = 512
	if len(s) > max {
		return "..." + s[len(s)-max:]
	}
	return s
}

var _ Runner = (*ExecRunner)(nil)

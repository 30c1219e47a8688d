package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// CLIInvoker spawns the configured agent runtime CLI for each call and
// parses its streaming JSON output.
type CLIInvoker struct {
	// Command is the runtime executable, e.g. "claude".
	Command string

	// Dir is the working directory for the spawned process. Always set
	// explicitly from the project root, never inherited implicitly.
	Dir string

	// Timeout bounds one call. Zero means no timeout beyond ctx.
	Timeout time.Duration
}

// buildArgs maps a request onto runtime CLI arguments. Split out of Invoke
// so argument construction stays testable without spawning anything.
func buildArgs(req Request) ([]string, error) {
	args := []string{"-p", req.Prompt, "--output-format", "stream-json"}
	switch req.Resume.Kind {
	case ResumeNone:
	case ResumeLatest:
		args = append(args, "--continue")
	case ResumeByIndex:
		if req.Resume.Index < 1 {
			return nil, fmt.Errorf("resume index must be 1-based, got %d", req.Resume.Index)
		}
		args = append(args, "--resume", strconv.Itoa(req.Resume.Index))
	default:
		return nil, fmt.Errorf("unknown resume kind %d", req.Resume.Kind)
	}
	return args, nil
}

// Invoke runs one agent call and blocks until it completes or the context
// (or configured timeout) expires.
func (c *CLIInvoker) Invoke(ctx context.Context, req Request) (Result, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return Result{}, fmt.Errorf("prompt is required")
	}
	args, err := buildArgs(req)
	if err != nil {
		return Result{}, err
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Command, args...)
	cmd.Dir = c.Dir
	cmd.Env = mergedEnv(req.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if runErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return Result{}, &InvokeError{
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      runErr,
		}
	}

	outcome, err := collectStream(&stdout)
	if err != nil {
		return Result{}, &InvokeError{ExitCode: 0, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	if outcome.IsError {
		detail := outcome.ErrorText
		if detail == "" {
			detail = "runtime reported an error result"
		}
		return Result{}, &InvokeError{ExitCode: 0, Stderr: detail, Err: errors.New(detail)}
	}

	return Result{
		Output:    outcome.Text,
		SessionID: outcome.SessionID,
		Model:     outcome.Model,
		TokensIn:  outcome.TokensIn,
		TokensOut: outcome.TokensOut,
		Duration:  elapsed,
	}, nil
}

// mergedEnv overlays extra variables on the parent environment.
func mergedEnv(extra map[string]string) []string {
	if len(extra) == 0 {
		return os.Environ()
	}
	env := os.Environ()
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

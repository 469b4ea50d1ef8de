package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/ternarybob/arbor"

	"apiagent/internal/domain"
)

const (
	ModeCommand = "command"
	ModeScript  = "script"
)

// waitDelay bounds how long Execute waits for grandchildren holding the output
// pipes after the direct child was killed.
const waitDelay = 500 * time.Millisecond

// Runner executes one generated snippet and never returns an error: every
// failure is folded into the outcome.
type Runner interface {
	Mode() string
	Execute(ctx context.Context, code string) domain.ExecutionOutcome
}

// CommandFactory builds the process for an argument vector. Tests swap it
// to observe whether anything was spawned.
type CommandFactory func(ctx context.Context, name string, args ...string) *exec.Cmd

type Config struct {
	Mode           string
	AllowedProgram string
	Interpreter    []string
	Timeout        time.Duration
	TempDir        string
}

// New builds the runner for the configured mode.
func New(cfg Config, logger arbor.ILogger) (Runner, error) {
	switch cfg.Mode {
	case ModeCommand, "":
		return NewCommandRunner(cfg.AllowedProgram, cfg.Timeout, logger), nil
	case ModeScript:
		return NewScriptRunner(cfg.Interpreter, cfg.Timeout, cfg.TempDir, logger)
	default:
		return nil, fmt.Errorf("%w: unknown sandbox mode %q", domain.ErrConfiguration, cfg.Mode)
	}
}

// execute runs argv under timeout. Only the timeout cancels the process;
// the caller's context is detached so a dropped client cannot cut a run short.
func execute(ctx context.Context, newCmd CommandFactory, timeout time.Duration, argv []string) domain.ExecutionOutcome {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	cmd := newCmd(runCtx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return domain.ExecutionOutcome{
			Status:   domain.ExecutionTimeout,
			ExitCode: -1,
			Message:  timeoutMessage(timeout),
			Duration: elapsed,
		}
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return domain.ExecutionOutcome{
			Status:   domain.ExecutionSuccess,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: elapsed,
		}
	case errors.As(err, &exitErr):
		return domain.ExecutionOutcome{
			Status:   domain.ExecutionError,
			ExitCode: exitErr.ExitCode(),
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Duration: elapsed,
		}
	default:
		return internalError(err, elapsed)
	}
}

func timeoutMessage(timeout time.Duration) string {
	return "Error: Timed Out (Took longer than " + strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64) + "s)."
}

func internalError(err error, elapsed time.Duration) domain.ExecutionOutcome {
	return domain.ExecutionOutcome{
		Status:   domain.ExecutionInternalError,
		ExitCode: -1,
		Message:  "Error: " + err.Error(),
		Duration: elapsed,
	}
}

func logOutcome(logger arbor.ILogger, mode string, out domain.ExecutionOutcome) {
	ev := logger.Info()
	if out.Status == domain.ExecutionInternalError {
		ev = logger.Error()
	}
	ev.Str("mode", mode).
		Str("status", string(out.Status)).
		Int("exit_code", out.ExitCode).
		Dur("duration", out.Duration).
		Msg("Sandbox run finished")
}

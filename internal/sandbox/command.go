package sandbox

import (
	"context"
	"encoding/json"
	"os/exec"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/ternarybob/arbor"

	"apiagent/internal/domain"
)

// CommandRunner executes a single allow-listed program. The input is split
// with shell quoting rules and launched directly, never through a shell.
type CommandRunner struct {
	program string
	timeout time.Duration
	newCmd  CommandFactory
	logger  arbor.ILogger
}

func NewCommandRunner(program string, timeout time.Duration, logger arbor.ILogger) *CommandRunner {
	if program == "" {
		program = "curl"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CommandRunner{program: program, timeout: timeout, newCmd: exec.CommandContext, logger: logger}
}

// WithCommandFactory replaces how processes are created.
func (r *CommandRunner) WithCommandFactory(f CommandFactory) *CommandRunner {
	r.newCmd = f
	return r
}

func (r *CommandRunner) Mode() string { return ModeCommand }

func (r *CommandRunner) Execute(ctx context.Context, code string) domain.ExecutionOutcome {
	args, err := shlex.Split(strings.TrimSpace(code))
	if err != nil || len(args) == 0 || args[0] != r.program {
		r.logger.Warn().
			Str("program", r.program).
			Int("input_len", len(code)).
			Msg("Rejected command outside the allow-list")
		return domain.ExecutionOutcome{
			Status:   domain.ExecutionRejected,
			ExitCode: -1,
			Message:  r.rejection(),
		}
	}

	out := execute(ctx, r.newCmd, r.timeout, args)
	logOutcome(r.logger, ModeCommand, out)
	return out
}

func (r *CommandRunner) rejection() string {
	msg, _ := json.Marshal(map[string]string{
		"error": "This sandbox only executes " + r.program + " commands.",
	})
	return string(msg)
}

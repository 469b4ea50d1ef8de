package sandbox

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"apiagent/internal/domain"
)

// ScriptRunner writes the snippet to a private temp file and runs the fixed
// interpreter on it. The file is removed on every path.
type ScriptRunner struct {
	interpreter []string
	timeout     time.Duration
	tempDir     string
	newCmd      CommandFactory
	logger      arbor.ILogger
}

func NewScriptRunner(interpreter []string, timeout time.Duration, tempDir string, logger arbor.ILogger) (*ScriptRunner, error) {
	if len(interpreter) == 0 || interpreter[0] == "" {
		return nil, errors.New("script mode needs an interpreter")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ScriptRunner{
		interpreter: append([]string(nil), interpreter...),
		timeout:     timeout,
		tempDir:     tempDir,
		newCmd:      exec.CommandContext,
		logger:      logger,
	}, nil
}

// WithCommandFactory replaces how processes are created.
func (r *ScriptRunner) WithCommandFactory(f CommandFactory) *ScriptRunner {
	r.newCmd = f
	return r
}

func (r *ScriptRunner) Mode() string { return ModeScript }

func (r *ScriptRunner) Execute(ctx context.Context, code string) domain.ExecutionOutcome {
	start := time.Now()
	path, err := r.writeScript(code)
	if err != nil {
		out := internalError(err, time.Since(start))
		logOutcome(r.logger, ModeScript, out)
		return out
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.logger.Error().Err(err).Str("path", path).Msg("Failed to remove sandbox script")
		}
	}()

	argv := append(append([]string(nil), r.interpreter...), path)
	out := execute(ctx, r.newCmd, r.timeout, argv)
	logOutcome(r.logger, ModeScript, out)
	return out
}

func (r *ScriptRunner) writeScript(code string) (string, error) {
	f, err := os.CreateTemp(r.tempDir, "snippet-*"+r.extension())
	if err != nil {
		return "", err
	}
	path := f.Name()
	_, werr := f.WriteString(code)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func (r *ScriptRunner) extension() string {
	name := filepath.Base(r.interpreter[0])
	switch {
	case strings.HasPrefix(name, "python"):
		return ".py"
	case name == "node":
		return ".js"
	case name == "sh" || name == "bash":
		return ".sh"
	}
	return ""
}

package gphoto2

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/cjeanneret/GoPhoto/internal/debug"
	"github.com/mattn/go-shellwords"
)

// DefaultProgram is the gphoto2 executable looked up on PATH.
const DefaultProgram = "gphoto2"

// DefaultLocale pins gphoto2's output language so responses parse the same everywhere.
const DefaultLocale = "en_US.UTF-8"

// CommandFunc builds the *exec.Cmd for a gphoto2 invocation. It defaults to
// exec.CommandContext and is swapped out in tests.
type CommandFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

// ProcessConfig is the launch configuration shared by both transports.
type ProcessConfig struct {
	Program  string   // executable, DefaultProgram when empty
	BaseArgs []string // standard arguments passed on every launch (camera, port, --quiet)
	Locale   string   // value forced into LANG and LC_ALL, DefaultLocale when empty

	// Command overrides process construction; nil means exec.CommandContext.
	Command CommandFunc
}

func (c ProcessConfig) program() string {
	if c.Program == "" {
		return DefaultProgram
	}
	return c.Program
}

func (c ProcessConfig) command(ctx context.Context, args []string) *exec.Cmd {
	newCmd := c.Command
	if newCmd == nil {
		newCmd = exec.CommandContext
	}
	cmd := newCmd(ctx, c.program(), args...)
	cmd.Env = localeEnv(cmd.Env, c.Locale)
	return cmd
}

// localeEnv returns env (or the current environment when env is nil) with
// LANG and LC_ALL replaced by locale.
func localeEnv(env []string, locale string) []string {
	if locale == "" {
		locale = DefaultLocale
	}
	if env == nil {
		env = os.Environ()
	}
	out := make([]string, 0, len(env)+2)
	for _, kv := range env {
		if strings.HasPrefix(kv, "LANG=") || strings.HasPrefix(kv, "LC_ALL=") {
			continue
		}
		out = append(out, kv)
	}
	return append(out, "LANG="+locale, "LC_ALL="+locale)
}

// OneShot runs every command in a fresh gphoto2 process.
type OneShot struct {
	cfg ProcessConfig
}

func NewOneShot(cfg ProcessConfig) *OneShot {
	return &OneShot{cfg: cfg}
}

// Run launches gphoto2 with the base arguments followed by args (split like a
// shell would, so quoted camera names survive), waits for it to exit and
// returns its combined output. In-band errors win over the exit status since
// they carry the more useful message.
func (o *OneShot) Run(ctx context.Context, args string) (string, error) {
	extra, err := shellwords.Parse(args)
	if err != nil {
		return "", &ProcessError{Op: "parse arguments", Args: []string{args}, Err: err}
	}
	argv := append(append([]string{}, o.cfg.BaseArgs...), extra...)

	cmd := o.cfg.command(ctx, argv)
	debug.Verbose("one-shot: %s %s", o.cfg.program(), strings.Join(argv, " "))

	raw, runErr := cmd.CombinedOutput()
	output := string(raw)

	if runErr != nil && cmd.ProcessState == nil {
		return "", &ProcessError{Op: "start", Args: argv, Err: runErr}
	}
	if err := Scan(output); err != nil {
		return "", err
	}
	if runErr != nil {
		return "", &ProcessError{Op: "exit", Args: argv, Output: output, Err: runErr}
	}
	if cmd.ProcessState != nil {
		debug.Trace("one-shot pid %d exited: %s", cmd.ProcessState.Pid(), cmd.ProcessState)
	}
	return output, nil
}

func (o *OneShot) String() string {
	return fmt.Sprintf("one-shot(%s)", o.cfg.program())
}

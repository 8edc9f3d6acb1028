package gphoto2

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/GoPhoto/internal/debug"
)

// InteractiveConfig configures the persistent gphoto2 --shell process.
type InteractiveConfig struct {
	ProcessConfig

	// Prompt is the token a prompt line starts with, DefaultPrompt when empty.
	Prompt string

	// ResponseTimeout bounds the wait for the terminating prompt. Zero waits
	// forever. A timed out shell is killed and respawned by the next command.
	ResponseTimeout time.Duration

	// BeforeSpawn runs before every shell (re)start, e.g. to wake the camera.
	BeforeSpawn func() error
}

// Interactive owns at most one live gphoto2 shell and runs commands in it.
// RunInteractive must not be called concurrently; the Session guarantees that.
type Interactive struct {
	cfg InteractiveConfig

	mu     sync.Mutex
	proc   *shellProcess
	spawns int
}

type shellProcess struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	outPipe *os.File
	out     *bufio.Reader
	exited  chan struct{}
	waitErr error
	once    sync.Once
}

func NewInteractive(cfg InteractiveConfig) *Interactive {
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	return &Interactive{cfg: cfg}
}

// RunInteractive writes line to the shell and returns the framed response.
// A missing or dead shell is (re)started first.
func (t *Interactive) RunInteractive(ctx context.Context, line string) (string, error) {
	args := []string{line}
	// One line is one command; an embedded break would queue a second
	// response the next command would read.
	if strings.ContainsAny(line, "\r\n") {
		return "", &ProcessError{Op: "write", Args: args, Err: errors.New("command contains a line break")}
	}

	p, err := t.send(line)
	if err != nil {
		return "", err
	}

	type frame struct {
		lines []string
		err   error
	}
	done := make(chan frame, 1)
	go func() {
		lines, err := ReadFrame(p.out, t.cfg.Prompt)
		done <- frame{lines: lines, err: err}
	}()

	var timeout <-chan time.Time
	if t.cfg.ResponseTimeout > 0 {
		timer := time.NewTimer(t.cfg.ResponseTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case f := <-done:
		output := strings.Join(f.lines, "\n")
		if f.err != nil {
			t.discard(p)
			if scanErr := Scan(output); scanErr != nil {
				return "", scanErr
			}
			return "", &ProcessError{Op: "read", Args: args, Output: output, Err: f.err}
		}
		debug.Verbose("shell response to %q: %d line(s)", line, len(f.lines))
		if err := Scan(output); err != nil {
			return "", err
		}
		return output, nil

	case <-timeout:
		t.discard(p)
		f := <-done
		return "", &ProcessError{
			Op:     "timeout",
			Args:   args,
			Output: strings.Join(f.lines, "\n"),
			Err:    fmt.Errorf("no prompt within %s", t.cfg.ResponseTimeout),
		}

	case <-ctx.Done():
		t.discard(p)
		f := <-done
		return "", &ProcessError{Op: "read", Args: args, Output: strings.Join(f.lines, "\n"), Err: ctx.Err()}
	}
}

// send writes line to the live shell. A shell that died after ensure saw it
// alive fails the write; it is replaced and the write retried once.
func (t *Interactive) send(line string) (*shellProcess, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		p, err := t.ensure()
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(p.stdin, line+"\n"); err != nil {
			debug.Live("write to gphoto2 shell failed (%v), respawning", err)
			t.discard(p)
			lastErr = err
			continue
		}
		return p, nil
	}
	return nil, &ProcessError{Op: "write", Args: []string{line}, Err: lastErr}
}

// ensure returns the live shell, starting one when there is none or the
// previous one has exited.
func (t *Interactive) ensure() (*shellProcess, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if p := t.proc; p != nil {
		select {
		case <-p.exited:
			debug.Live("gphoto2 shell exited (%v), respawning", p.waitErr)
			p.kill()
			t.proc = nil
		default:
			return p, nil
		}
	}

	p, err := t.spawn()
	if err != nil {
		return nil, err
	}
	t.proc = p
	return p, nil
}

func (t *Interactive) spawn() (*shellProcess, error) {
	if t.cfg.BeforeSpawn != nil {
		if err := t.cfg.BeforeSpawn(); err != nil {
			return nil, &ProcessError{Op: "wake", Err: err}
		}
	}

	args := append([]string{"--shell"}, t.cfg.BaseArgs...)
	cmd := t.cfg.command(context.Background(), args)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &ProcessError{Op: "start", Args: args, Err: err}
	}
	// stdout and stderr share one pipe so error announcements land inside the frame.
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &ProcessError{Op: "start", Args: args, Err: err}
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return nil, &ProcessError{Op: "start", Args: args, Err: err}
	}
	pw.Close()

	p := &shellProcess{
		cmd:     cmd,
		stdin:   stdin,
		outPipe: pr,
		out:     bufio.NewReader(pr),
		exited:  make(chan struct{}),
	}
	go func() {
		p.waitErr = cmd.Wait()
		close(p.exited)
	}()

	t.spawns++
	debug.Spawn(t.cfg.program(), args, cmd.Process.Pid)
	return p, nil
}

// discard kills p and forgets it if it is still the current shell.
func (t *Interactive) discard(p *shellProcess) {
	t.mu.Lock()
	if t.proc == p {
		t.proc = nil
	}
	t.mu.Unlock()
	p.kill()
}

// Alive reports whether a shell is running.
func (t *Interactive) Alive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.proc == nil {
		return false
	}
	select {
	case <-t.proc.exited:
		return false
	default:
		return true
	}
}

// Spawns returns how many shells have been started so far.
func (t *Interactive) Spawns() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spawns
}

// Close terminates the shell, if any. It is safe to call repeatedly and
// concurrently with RunInteractive, whose pending read then fails.
func (t *Interactive) Close() error {
	t.mu.Lock()
	p := t.proc
	t.proc = nil
	t.mu.Unlock()

	if p != nil {
		p.kill()
	}
	return nil
}

func (p *shellProcess) kill() {
	p.once.Do(func() {
		_ = p.stdin.Close()
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		_ = p.outPipe.Close()
		<-p.exited
	})
}

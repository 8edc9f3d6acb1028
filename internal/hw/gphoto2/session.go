package gphoto2

import (
	"context"
	"fmt"
	"sync"

	"github.com/cjeanneret/GoPhoto/internal/debug"
	"github.com/google/uuid"
)

// Mode selects the transport a command is dispatched on.
type Mode int

const (
	ModeOneShot Mode = iota
	ModeInteractive
)

func (m Mode) String() string {
	switch m {
	case ModeOneShot:
		return "one-shot"
	case ModeInteractive:
		return "interactive"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Runner executes one command in a fresh process.
type Runner interface {
	Run(ctx context.Context, args string) (string, error)
}

// ShellRunner executes one command line in a persistent shell.
type ShellRunner interface {
	RunInteractive(ctx context.Context, line string) (string, error)
	Close() error
}

// Command is one request for the camera. Payload is the argument text for
// ModeOneShot or the shell line for ModeInteractive.
type Command struct {
	ID      uuid.UUID
	Mode    Mode
	Payload string
}

// NewCommand returns a Command with a fresh ID.
func NewCommand(mode Mode, payload string) Command {
	return Command{ID: uuid.New(), Mode: mode, Payload: payload}
}

// Future is the result slot of an enqueued Command. It resolves exactly once.
type Future struct {
	cmd    Command
	done   chan struct{}
	once   sync.Once
	output string
	err    error
}

func newFuture(cmd Command) *Future {
	return &Future{cmd: cmd, done: make(chan struct{})}
}

func (f *Future) resolve(output string, err error) {
	f.once.Do(func() {
		if err != nil {
			output = ""
		}
		f.output, f.err = output, err
		close(f.done)
	})
}

// Command returns the command this future belongs to.
func (f *Future) Command() Command { return f.cmd }

// Done is closed once the command has resolved.
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait blocks until the command resolves or ctx is done. Giving up on ctx
// does not withdraw the command: it still runs in its turn.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.output, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Stats are running totals of a session.
type Stats struct {
	Enqueued   uint64
	Dispatched uint64
	Failed     uint64
	Pending    int
	Spawns     int // shells started, when the interactive transport reports it
}

// Session serializes every command for one camera. Any number of goroutines
// may Enqueue; a single worker dispatches commands one at a time in enqueue
// order, whichever transport they use. A failing command only fails its own
// future.
type Session struct {
	oneShot Runner
	shell   ShellRunner

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending []*Future
	wake    chan struct{}
	closed  bool
	stats   Stats

	workerDone chan struct{}
	closeOnce  sync.Once
}

// NewSession starts the worker. Either runner may be nil, in which case
// commands for that mode fail with a ProcessError.
func NewSession(oneShot Runner, shell ShellRunner) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		oneShot:    oneShot,
		shell:      shell,
		ctx:        ctx,
		cancel:     cancel,
		wake:       make(chan struct{}, 1),
		workerDone: make(chan struct{}),
	}
	go s.work()
	return s
}

// Enqueue appends cmd to the queue and returns its future. On a closed
// session the future is already resolved with ErrSessionClosed.
func (s *Session) Enqueue(cmd Command) *Future {
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}
	f := newFuture(cmd)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		f.resolve("", ErrSessionClosed)
		return f
	}
	s.pending = append(s.pending, f)
	s.stats.Enqueued++
	s.mu.Unlock()

	debug.Command(cmd.ID.String(), "enqueued", cmd.Mode.String(), cmd.Payload)
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return f
}

// Execute runs args in a fresh gphoto2 process, in queue order.
func (s *Session) Execute(ctx context.Context, args string) (string, error) {
	return s.Enqueue(NewCommand(ModeOneShot, args)).Wait(ctx)
}

// ExecuteInteractive runs line in the shell, in queue order.
func (s *Session) ExecuteInteractive(ctx context.Context, line string) (string, error) {
	return s.Enqueue(NewCommand(ModeInteractive, line)).Wait(ctx)
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	st := s.stats
	st.Pending = len(s.pending)
	s.mu.Unlock()

	if sc, ok := s.shell.(interface{ Spawns() int }); ok {
		st.Spawns = sc.Spawns()
	}
	return st
}

func (s *Session) work() {
	defer close(s.workerDone)
	for {
		f, ok := s.next()
		if !ok {
			return
		}
		output, err := s.dispatch(f.cmd)

		s.mu.Lock()
		s.stats.Dispatched++
		if err != nil {
			s.stats.Failed++
		}
		s.mu.Unlock()

		if err != nil {
			debug.Command(f.cmd.ID.String(), "failed", f.cmd.Mode.String(), err.Error())
		} else {
			debug.Command(f.cmd.ID.String(), "resolved", f.cmd.Mode.String(), f.cmd.Payload)
		}
		f.resolve(output, err)
	}
}

// next blocks until a command is pending or the session is closed.
func (s *Session) next() (*Future, bool) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, false
		}
		if len(s.pending) > 0 {
			f := s.pending[0]
			s.pending[0] = nil
			s.pending = s.pending[1:]
			s.mu.Unlock()
			return f, true
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-s.ctx.Done():
		}
	}
}

// dispatch runs one command and never panics.
func (s *Session) dispatch(cmd Command) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = ""
			err = &ProcessError{Op: "dispatch", Args: []string{cmd.Payload}, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	debug.Command(cmd.ID.String(), "dispatched", cmd.Mode.String(), cmd.Payload)

	switch cmd.Mode {
	case ModeOneShot:
		if s.oneShot == nil {
			return "", &ProcessError{Op: "dispatch", Args: []string{cmd.Payload}, Err: fmt.Errorf("no one-shot transport")}
		}
		return s.oneShot.Run(s.ctx, cmd.Payload)
	case ModeInteractive:
		if s.shell == nil {
			return "", &ProcessError{Op: "dispatch", Args: []string{cmd.Payload}, Err: fmt.Errorf("no interactive transport")}
		}
		return s.shell.RunInteractive(s.ctx, cmd.Payload)
	default:
		return "", &ProcessError{Op: "dispatch", Args: []string{cmd.Payload}, Err: fmt.Errorf("unknown mode %s", cmd.Mode)}
	}
}

// Close stops accepting commands, fails the ones still queued with
// ErrSessionClosed, aborts the one in flight, and terminates the shell.
// It is idempotent.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		dropped := s.pending
		s.pending = nil
		s.mu.Unlock()

		for _, f := range dropped {
			f.resolve("", ErrSessionClosed)
		}

		s.cancel()
		<-s.workerDone

		if s.shell != nil {
			err = s.shell.Close()
		}
	})
	return err
}

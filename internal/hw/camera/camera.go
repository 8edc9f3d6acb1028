package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/GoPhoto/internal/debug"
	"github.com/cjeanneret/GoPhoto/internal/hw/gphoto2"
)

// ErrUnknownProperty is returned for a name the camera did not list.
var ErrUnknownProperty = errors.New("unknown property")

// Session is the command channel a Camera drives. *gphoto2.Session is the
// production implementation.
type Session interface {
	gphoto2.Executor
	Close() error
}

// Camera is the handle the rest of the application talks to. Every command
// it issues, its properties' included, goes through one Session, so callers
// may use it from any number of goroutines.
type Camera struct {
	session    Session
	abilities  Abilities
	properties []*Property
	byName     map[string]*Property
}

// New initializes a Camera over s: it reads the abilities with a one-shot
// --abilities and then lists the properties. The camera is returned only
// once both have succeeded. New does not close s on failure.
func New(ctx context.Context, s Session) (*Camera, error) {
	abilities, err := gphoto2.Query(ctx, s, gphoto2.ModeOneShot, "--abilities", "abilities", ParseAbilities)
	if err != nil {
		return nil, fmt.Errorf("read abilities: %w", err)
	}
	debug.Info("Camera: %s (capture=%v, configure=%v)", abilities.Model, abilities.CanCaptureImages, abilities.CanBeConfigured)

	props, err := ListProperties(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("list properties: %w", err)
	}
	debug.Info("Camera: %d properties", len(props))

	c := &Camera{
		session:    s,
		abilities:  abilities,
		properties: props,
		byName:     make(map[string]*Property, len(props)),
	}
	for _, p := range props {
		c.byName[p.Name()] = p
	}
	return c, nil
}

// Options configures Open.
type Options struct {
	Program      string   // gphoto2 executable
	Locale       string   // forced LANG / LC_ALL
	Prompt       string   // shell prompt token
	StandardArgs []string // passed on every launch, e.g. --quiet
	Model        string   // --camera, empty for gphoto2's choice
	Port         string   // --port, empty for gphoto2's choice

	// ResponseTimeout bounds each interactive response; zero waits forever.
	ResponseTimeout time.Duration

	// Waker, when set, runs before the first command and before every
	// shell (re)start.
	Waker Waker

	// Command overrides process construction (tests).
	Command gphoto2.CommandFunc
}

// BaseArgs returns the arguments every gphoto2 launch receives.
func (o Options) BaseArgs() []string {
	args := append([]string{}, o.StandardArgs...)
	if o.Model != "" {
		args = append(args, "--camera", o.Model)
	}
	if o.Port != "" {
		args = append(args, "--port", o.Port)
	}
	return args
}

// Open builds the transports and session described by opts and initializes
// a Camera on top of them.
func Open(ctx context.Context, opts Options) (*Camera, error) {
	proc := gphoto2.ProcessConfig{
		Program:  opts.Program,
		BaseArgs: opts.BaseArgs(),
		Locale:   opts.Locale,
		Command:  opts.Command,
	}
	shellCfg := gphoto2.InteractiveConfig{
		ProcessConfig:   proc,
		Prompt:          opts.Prompt,
		ResponseTimeout: opts.ResponseTimeout,
	}
	if opts.Waker != nil {
		shellCfg.BeforeSpawn = opts.Waker.Wake
		if err := opts.Waker.Wake(); err != nil {
			return nil, fmt.Errorf("wake camera: %w", err)
		}
	}

	s := gphoto2.NewSession(gphoto2.NewOneShot(proc), gphoto2.NewInteractive(shellCfg))
	c, err := New(ctx, s)
	if err != nil {
		s.Close()
		return nil, err
	}
	return c, nil
}

// Abilities returns what the camera reported at initialization.
func (c *Camera) Abilities() Abilities { return c.abilities }

// Properties returns every property in the order the camera listed them.
func (c *Camera) Properties() []*Property {
	return append([]*Property(nil), c.properties...)
}

// Property looks a property up by name.
func (c *Camera) Property(name string) (*Property, bool) {
	p, ok := c.byName[name]
	return p, ok
}

// Get describes the named property with its current value.
func (c *Camera) Get(ctx context.Context, name string) (Descriptor, error) {
	p, ok := c.Property(name)
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	return p.Describe(ctx)
}

// Set validates value and writes it to the named property.
func (c *Camera) Set(ctx context.Context, name, value string) error {
	p, ok := c.Property(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProperty, name)
	}
	return p.SetValue(ctx, value)
}

// Stats returns the session counters when the session keeps any.
func (c *Camera) Stats() (gphoto2.Stats, bool) {
	if s, ok := c.session.(interface{ Stats() gphoto2.Stats }); ok {
		return s.Stats(), true
	}
	return gphoto2.Stats{}, false
}

// Close shuts the session down and terminates the gphoto2 shell. It is idempotent.
func (c *Camera) Close() error {
	return c.session.Close()
}

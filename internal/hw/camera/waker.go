package camera

import (
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/GoPhoto/internal/debug"
	"github.com/cjeanneret/GoPhoto/internal/hw/gpio"
)

// Waker brings a sleeping camera back onto the USB bus before gphoto2
// talks to it.
type Waker interface {
	Wake() error
}

// WakerFunc adapts a function to Waker.
type WakerFunc func() error

func (f WakerFunc) Wake() error { return f() }

// GPIOWaker half-presses the shutter through the remote connector. Most
// DSLRs (the Nikon D90 among them) leave their auto power-off state on a
// FOCUS pulse:
// - GND: connected to Raspberry Pi ground
// - FOCUS: autofocus (active LOW)
//
// Sequence: FOCUS to LOW, hold for pulse, FOCUS back to HIGH, then wait
// settle for the camera to enumerate.
type GPIOWaker struct {
	gpio     gpio.Driver
	focusPin int
	pulse    time.Duration
	settle   time.Duration

	mu sync.Mutex
}

// NewGPIOWaker configures focusPin as an inactive (HIGH) output.
func NewGPIOWaker(g gpio.Driver, focusPin int, pulse, settle time.Duration) (*GPIOWaker, error) {
	if err := g.SetupPin(focusPin, gpio.Output); err != nil {
		return nil, fmt.Errorf("setup focus pin %d: %w", focusPin, err)
	}
	if err := g.WritePin(focusPin, gpio.High); err != nil {
		return nil, fmt.Errorf("release focus pin %d: %w", focusPin, err)
	}
	return &GPIOWaker{gpio: g, focusPin: focusPin, pulse: pulse, settle: settle}, nil
}

// Wake pulses the FOCUS line.
func (w *GPIOWaker) Wake() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	debug.Verbose("Camera: wake pulse on FOCUS (pin %d -> LOW for %v)", w.focusPin, w.pulse)
	if err := w.gpio.WritePin(w.focusPin, gpio.Low); err != nil {
		return err
	}
	time.Sleep(w.pulse)

	if err := w.gpio.WritePin(w.focusPin, gpio.High); err != nil {
		return err
	}
	if w.settle > 0 {
		debug.Verbose("Camera: waiting %v for the camera to come up", w.settle)
		time.Sleep(w.settle)
	}
	return nil
}

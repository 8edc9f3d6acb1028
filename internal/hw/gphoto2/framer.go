package gphoto2

import (
	"io"
	"strings"
)

// DefaultPrompt is the token the gphoto2 shell starts its prompt with.
const DefaultPrompt = "gphoto2:"

// FramePhase is the position of a Framer within one shell response.
type FramePhase int

const (
	PhaseBanner FramePhase = iota // line 1: the prompt the command was typed at
	PhaseEcho                     // line 2: echo of the command
	PhaseBody                     // response lines
	PhaseDone                     // a prompt line was seen past line 2
)

func (p FramePhase) String() string {
	switch p {
	case PhaseBanner:
		return "banner"
	case PhaseEcho:
		return "echo"
	case PhaseBody:
		return "body"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Framer splits the shell's output stream into one response. It is fed one
// byte at a time because the terminating prompt is not newline terminated.
//
// The banner prompt and the terminating prompt look alike; only a prompt
// line seen in PhaseBody ends the response. A body line that itself starts
// with the prompt token ends the response early, a known ambiguity of the
// shell protocol.
type Framer struct {
	prompt string
	phase  FramePhase
	line   strings.Builder
	lines  []string
}

// NewFramer returns a Framer in PhaseBanner. An empty prompt means DefaultPrompt.
func NewFramer(prompt string) *Framer {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return &Framer{prompt: strings.ToUpper(prompt)}
}

// Phase reports where the framer currently is.
func (f *Framer) Phase() FramePhase { return f.phase }

// Feed consumes one byte and reports whether the response is complete.
func (f *Framer) Feed(b byte) bool {
	switch b {
	case '\r':
		return f.phase == PhaseDone
	case '\n':
		f.endLine()
	default:
		if f.phase != PhaseDone {
			f.line.WriteByte(b)
		}
	}

	if f.phase == PhaseBody && f.atPrompt() {
		f.phase = PhaseDone
	}
	return f.phase == PhaseDone
}

func (f *Framer) endLine() {
	line := f.line.String()
	f.line.Reset()

	switch f.phase {
	case PhaseBanner:
		f.phase = PhaseEcho
	case PhaseEcho:
		f.phase = PhaseBody
	case PhaseBody:
		if strings.TrimSpace(line) != "" {
			f.lines = append(f.lines, line)
		}
	}
}

func (f *Framer) atPrompt() bool {
	if f.line.Len() < len(f.prompt) {
		return false
	}
	return strings.HasPrefix(strings.ToUpper(f.line.String()), f.prompt)
}

// Lines returns the retained body lines.
func (f *Framer) Lines() []string { return f.lines }

// Text joins the retained body lines with newlines.
func (f *Framer) Text() string { return strings.Join(f.lines, "\n") }

// ReadFrame feeds r into a new Framer until the response is complete.
// It returns io.ErrUnexpectedEOF when the stream ends first.
func ReadFrame(r io.ByteReader, prompt string) ([]string, error) {
	f := NewFramer(prompt)
	for {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return f.Lines(), err
		}
		if f.Feed(b) {
			return f.Lines(), nil
		}
	}
}

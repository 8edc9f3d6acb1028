package camera

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/cjeanneret/GoPhoto/internal/debug"
	"github.com/cjeanneret/GoPhoto/internal/hw/gphoto2"
)

// PropertyType is the declared type of a camera property.
type PropertyType int

const (
	TypeUnknown PropertyType = iota
	TypeText
	TypeOption
	TypeToggle
	TypeDateTime
)

func (t PropertyType) String() string {
	switch t {
	case TypeText:
		return "text"
	case TypeOption:
		return "option"
	case TypeToggle:
		return "toggle"
	case TypeDateTime:
		return "datetime"
	default:
		return "unknown"
	}
}

// MarshalText lets property types render as names in JSON.
func (t PropertyType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText accepts the names MarshalText produces; anything else is TypeUnknown.
func (t *PropertyType) UnmarshalText(b []byte) error {
	*t = TypeUnknown
	for _, c := range []PropertyType{TypeText, TypeOption, TypeToggle, TypeDateTime} {
		if c.String() == string(b) {
			*t = c
		}
	}
	return nil
}

// typeFromName maps a gphoto2 widget type to a PropertyType.
func typeFromName(name string) PropertyType {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TEXT":
		return TypeText
	case "RADIO", "MENU":
		return TypeOption
	case "DATE":
		return TypeDateTime
	case "TOGGLE":
		return TypeToggle
	default:
		return TypeUnknown
	}
}

// Descriptor is one description of a property as returned by get-config.
type Descriptor struct {
	Name     string       `json:"name"`
	Label    string       `json:"label"`
	Type     PropertyType `json:"type"`
	Value    string       `json:"value"`
	Choices  []string     `json:"choices,omitempty"`
	ReadOnly bool         `json:"readonly"`
}

var (
	currentPattern = regexp.MustCompile(`^Current:\s?(.*)$`)
	choicePattern  = regexp.MustCompile(`^Choice: [0-9]+ (.+)$`)
)

// ParseDescriptor parses a get-config response:
//
//	Label: ISO Speed
//	Readonly: 0            (newer gphoto2 only)
//	Type: RADIO
//	Current: 400
//	Choice: 0 100
//	Choice: 1 400
//
// The label, type and current lines are mandatory and positional. Any other
// trailing line that is not a choice is skipped.
func ParseDescriptor(name, text string) (Descriptor, error) {
	d := Descriptor{Name: name}
	lines := splitLines(text)

	fail := func(reason string) (Descriptor, error) {
		return Descriptor{}, &gphoto2.ParseError{What: "property " + name, Reason: reason}
	}

	if len(lines) < 3 {
		return fail(fmt.Sprintf("expected at least 3 lines, got %d", len(lines)))
	}

	label, ok := fieldValue(lines[0])
	if !ok {
		return fail(fmt.Sprintf("malformed label line %q", lines[0]))
	}
	d.Label = label
	lines = lines[1:]

	if key, value, found := strings.Cut(lines[0], ":"); found && strings.EqualFold(strings.TrimSpace(key), "Readonly") {
		d.ReadOnly = strings.TrimSpace(value) == "1"
		lines = lines[1:]
		if len(lines) < 2 {
			return fail("missing type or current value line")
		}
	}

	typeName, ok := fieldValue(lines[0])
	if !ok {
		return fail(fmt.Sprintf("malformed type line %q", lines[0]))
	}
	d.Type = typeFromName(typeName)

	m := currentPattern.FindStringSubmatch(strings.TrimSpace(lines[1]))
	if m == nil {
		return fail(fmt.Sprintf("malformed current value line %q", lines[1]))
	}
	d.Value = m[1]

	if d.Type == TypeOption {
		for _, line := range lines[2:] {
			if m := choicePattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
				d.Choices = append(d.Choices, m[1])
			}
		}
	}
	return d, nil
}

// ParsePropertyList parses a list-config response, one property name per line.
func ParsePropertyList(text string) ([]string, error) {
	var names []string
	for _, line := range splitLines(text) {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// fieldValue returns the trimmed text after the first colon of a "Key: value" line.
func fieldValue(line string) (string, bool) {
	_, value, found := strings.Cut(line, ":")
	if !found {
		return "", false
	}
	return strings.TrimSpace(value), true
}

// Validate checks value against d without touching the camera.
func (d Descriptor) Validate(value string) error {
	reject := func(reason string) error {
		return &gphoto2.ValidationError{Property: d.Name, Value: value, Type: d.Type.String(), Reason: reason}
	}
	if d.ReadOnly {
		return reject("property is read-only")
	}
	// set-config is a single shell line.
	if strings.ContainsAny(value, "\r\n") {
		return reject("must not contain a line break")
	}

	switch d.Type {
	case TypeText:
		return nil
	case TypeOption:
		for _, c := range d.Choices {
			if c == value {
				return nil
			}
		}
		return reject(fmt.Sprintf("not one of %q", d.Choices))
	case TypeToggle:
		if value == "0" || value == "1" {
			return nil
		}
		return reject(`must be "0" or "1"`)
	case TypeDateTime:
		if value == "" {
			return reject("must be a unix timestamp")
		}
		for _, r := range value {
			if r < '0' || r > '9' {
				return reject("must be a unix timestamp")
			}
		}
		return nil
	default:
		return reject("type is unknown")
	}
}

// Property is a lazily described camera setting. Label, type and choices are
// read once and kept; the value is re-read on every Describe or Value call
// because the camera may change it on its own.
type Property struct {
	name string
	exec gphoto2.Executor

	mu     sync.Mutex
	schema *Descriptor
}

// NewProperty returns an undescribed property bound to exec.
func NewProperty(name string, exec gphoto2.Executor) *Property {
	return &Property{name: name, exec: exec}
}

// Name returns the property path, e.g. /main/imgsettings/iso.
func (p *Property) Name() string { return p.name }

// Described reports whether the schema has been fetched.
func (p *Property) Described() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.schema != nil
}

// Describe queries the camera and returns the property with its current value.
func (p *Property) Describe(ctx context.Context) (Descriptor, error) {
	fresh, err := gphoto2.Query(ctx, p.exec, gphoto2.ModeInteractive, "get-config "+p.name, "property "+p.name,
		func(out string) (Descriptor, error) { return ParseDescriptor(p.name, out) })
	if err != nil {
		return Descriptor{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.schema == nil {
		debug.Verbose("property %s: %s %q (%d choices)", p.name, fresh.Type, fresh.Label, len(fresh.Choices))
		p.schema = &fresh
	} else {
		p.schema.Value = fresh.Value
	}
	d := *p.schema
	d.Choices = append([]string(nil), p.schema.Choices...)
	return d, nil
}

// Schema returns the cached description, describing the property first if
// that has not happened yet. The Value field is whatever was last read.
func (p *Property) Schema(ctx context.Context) (Descriptor, error) {
	p.mu.Lock()
	if p.schema != nil {
		d := *p.schema
		d.Choices = append([]string(nil), p.schema.Choices...)
		p.mu.Unlock()
		return d, nil
	}
	p.mu.Unlock()
	return p.Describe(ctx)
}

// Label returns the human readable name.
func (p *Property) Label(ctx context.Context) (string, error) {
	d, err := p.Schema(ctx)
	return d.Label, err
}

// Type returns the declared type.
func (p *Property) Type(ctx context.Context) (PropertyType, error) {
	d, err := p.Schema(ctx)
	return d.Type, err
}

// Choices returns the legal values of an option property.
func (p *Property) Choices(ctx context.Context) ([]string, error) {
	d, err := p.Schema(ctx)
	return d.Choices, err
}

// Value reads the current value from the camera.
func (p *Property) Value(ctx context.Context) (string, error) {
	d, err := p.Describe(ctx)
	return d.Value, err
}

// SetValue validates value against the schema and, when it passes, sends
// exactly one set-config command. A rejected value never reaches the camera.
func (p *Property) SetValue(ctx context.Context, value string) error {
	d, err := p.Schema(ctx)
	if err != nil {
		return err
	}
	if err := d.Validate(value); err != nil {
		return err
	}

	if _, err := p.exec.ExecuteInteractive(ctx, fmt.Sprintf("set-config %s=%s", p.name, value)); err != nil {
		return err
	}
	debug.Live("property %s set to %q", p.name, value)
	return nil
}

// ListProperties lists every property of the camera in one round trip. The
// returned properties are not described yet.
func ListProperties(ctx context.Context, exec gphoto2.Executor) ([]*Property, error) {
	names, err := gphoto2.Query(ctx, exec, gphoto2.ModeInteractive, "list-config", "property list", ParsePropertyList)
	if err != nil {
		return nil, err
	}
	props := make([]*Property, 0, len(names))
	for _, name := range names {
		props = append(props, NewProperty(name, exec))
	}
	return props, nil
}

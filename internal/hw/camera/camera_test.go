package camera

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/cjeanneret/GoPhoto/internal/hw/gphoto2"
)

const d90Abilities = `Abilities for camera             : Nikon DSC D90 (PTP mode)
Serial port support              : no
USB support                      : yes
Capture choices                  :
                                 : Image
                                 : Preview
                                 : Trigger Capture
Configuration support            : yes
Delete selected files on camera  : yes
Delete all files on camera       : no
File preview (thumbnail) support : yes
File upload support              : no
`

func TestParseAbilities(t *testing.T) {
	a, err := ParseAbilities(d90Abilities)
	if err != nil {
		t.Fatalf("ParseAbilities: %v", err)
	}
	if a.Model != "Nikon DSC D90 (PTP mode)" {
		t.Errorf("Model = %q", a.Model)
	}

	flags := map[string]bool{
		"CanCaptureImages":   a.CanCaptureImages,
		"CanCapturePreviews": a.CanCapturePreviews,
		"CanBeConfigured":    a.CanBeConfigured,
		"CanDeleteFiles":     a.CanDeleteFiles,
		"CanDeleteAllFiles":  a.CanDeleteAllFiles,
		"CanPreviewFiles":    a.CanPreviewFiles,
		"CanUploadFiles":     a.CanUploadFiles,
	}
	want := map[string]bool{
		"CanCaptureImages":   true,
		"CanCapturePreviews": true,
		"CanBeConfigured":    true,
		"CanDeleteFiles":     true,
		"CanDeleteAllFiles":  false,
		"CanPreviewFiles":    true,
		"CanUploadFiles":     false,
	}
	if !reflect.DeepEqual(flags, want) {
		t.Errorf("flags = %v, want %v", flags, want)
	}

	if got := a.Raw["CAPTURE CHOICES"]; !reflect.DeepEqual(got, []string{"IMAGE", "PREVIEW", "TRIGGER CAPTURE"}) {
		t.Errorf("capture choices = %q", got)
	}
	if !a.Has("usb support", "Yes") {
		t.Error("Has should match case-insensitively")
	}
	if a.Has("serial port support", "yes") {
		t.Error("serial port support is no")
	}
}

func TestParseAbilities_SkipsOddLines(t *testing.T) {
	text := "                 : orphan value\nVersion: 2.5.27: extra\nConfiguration support : yes\n"
	a, err := ParseAbilities(text)
	if err != nil {
		t.Fatal(err)
	}
	if !a.CanBeConfigured {
		t.Error("configuration support not parsed")
	}
	if len(a.Raw) != 1 {
		t.Errorf("raw = %v, want only configuration support", a.Raw)
	}
}

func TestParseAbilities_Empty(t *testing.T) {
	_, err := ParseAbilities("nothing useful here\n")
	var pe *gphoto2.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *gphoto2.ParseError", err)
	}
}

func scriptedCamera() *scriptedSession {
	s := newScriptedSession()
	s.oneShot["--abilities"] = d90Abilities
	s.shell["list-config"] = PropISO + "\n" + PropBatteryLevel + "\n"
	s.shell["get-config "+PropISO] = isoDescription
	s.shell["get-config "+PropBatteryLevel] = "Label: Battery Level\nReadonly: 1\nType: TEXT\nCurrent: 81%\n"
	return s
}

func TestNew_ReadsAbilitiesThenProperties(t *testing.T) {
	s := scriptedCamera()
	cam, err := New(context.Background(), s)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := []string{"oneshot --abilities", "shell list-config"}
	if got := s.commands(); !reflect.DeepEqual(got, want) {
		t.Errorf("commands = %q, want %q", got, want)
	}
	if !cam.Abilities().CanCaptureImages {
		t.Error("abilities not populated")
	}

	props := cam.Properties()
	if len(props) != 2 || props[0].Name() != PropISO || props[1].Name() != PropBatteryLevel {
		t.Fatalf("properties = %v", props)
	}
	if _, ok := cam.Property(PropISO); !ok {
		t.Error("Property lookup failed")
	}
	if _, ok := cam.Property(PropShutterSpeed); ok {
		t.Error("unlisted property found")
	}
}

func TestNew_AbilitiesFailure(t *testing.T) {
	s := newScriptedSession()
	s.oneShot["--abilities"] = "*** not a table ***"
	_, err := New(context.Background(), s)
	var pe *gphoto2.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *gphoto2.ParseError", err)
	}
	if n := s.count("shell list-config"); n != 0 {
		t.Error("properties listed after abilities failed")
	}
}

func TestNew_ListFailure(t *testing.T) {
	s := newScriptedSession()
	s.oneShot["--abilities"] = d90Abilities
	s.shellErr["list-config"] = &gphoto2.DeviceError{Details: "Could not detect any camera"}

	_, err := New(context.Background(), s)
	var de *gphoto2.DeviceError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *gphoto2.DeviceError", err)
	}
}

func TestCamera_GetAndSet(t *testing.T) {
	s := scriptedCamera()
	cam, err := New(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	d, err := cam.Get(ctx, PropISO)
	if err != nil || d.Value != "400" {
		t.Fatalf("Get = (%+v, %v)", d, err)
	}
	if err := cam.Set(ctx, PropISO, "100"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := cam.Set(ctx, PropBatteryLevel, "100%"); err == nil {
		t.Error("read-only property accepted a value")
	}
	if n := s.count("shell set-config"); n != 1 {
		t.Errorf("%d set-config sent, want 1", n)
	}

	if _, err := cam.Get(ctx, "/main/nope"); !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("Get unknown = %v, want ErrUnknownProperty", err)
	}
	if err := cam.Set(ctx, "/main/nope", "1"); !errors.Is(err, ErrUnknownProperty) {
		t.Errorf("Set unknown = %v, want ErrUnknownProperty", err)
	}
}

func TestCamera_CloseClosesSession(t *testing.T) {
	s := scriptedCamera()
	cam, err := New(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cam.Stats(); ok {
		t.Error("scripted session keeps no stats")
	}
	if err := cam.Close(); err != nil {
		t.Fatal(err)
	}
	if s.closed != 1 {
		t.Errorf("session closed %d times", s.closed)
	}
}

func TestOptions_BaseArgs(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"empty", Options{}, ""},
		{"standard only", Options{StandardArgs: []string{"--quiet"}}, "--quiet"},
		{"camera and port", Options{StandardArgs: []string{"--quiet"}, Model: "Nikon DSC D90", Port: "usb:001,004"},
			"--quiet|--camera|Nikon DSC D90|--port|usb:001,004"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := strings.Join(tt.opts.BaseArgs(), "|"); got != tt.want {
				t.Errorf("BaseArgs = %q, want %q", got, tt.want)
			}
		})
	}
}

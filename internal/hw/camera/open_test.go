package camera

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cjeanneret/GoPhoto/internal/hw/gphoto2"
)

func fakeGphoto2(ctx context.Context, name string, args ...string) *exec.Cmd {
	cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
	cmd := exec.CommandContext(ctx, os.Args[0], cs...)
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	return cmd
}

// TestHelperProcess is not a real test. It plays a gphoto2 attached to a
// D90 when the test binary is launched by fakeGphoto2.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)

	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	if len(args) < 2 {
		os.Exit(2)
	}
	args = args[2:]

	shell := false
	for _, a := range args {
		switch a {
		case "--shell":
			shell = true
		case "--abilities":
			fmt.Print(d90Abilities)
			return
		}
	}
	if !shell {
		fmt.Println("*** Error (-2): 'Bad parameters' ***")
		return
	}

	iso := "400"
	fmt.Print("gphoto2: /> ")
	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		line := in.Text()
		fmt.Print("\n" + line + "\n")
		switch {
		case line == "list-config":
			fmt.Println(PropISO)
			fmt.Println(PropBatteryLevel)
		case line == "get-config "+PropISO:
			fmt.Printf("Label: ISO Speed\nReadonly: 0\nType: RADIO\nCurrent: %s\nChoice: 0 100\nChoice: 1 400\nEND\n", iso)
		case line == "get-config "+PropBatteryLevel:
			fmt.Println("Label: Battery Level\nReadonly: 1\nType: TEXT\nCurrent: 81%\nEND")
		case strings.HasPrefix(line, "set-config "+PropISO+"="):
			iso = strings.TrimPrefix(line, "set-config "+PropISO+"=")
		case line == "exit":
			os.Exit(0)
		default:
			fmt.Printf("*** Error (-1): '%s not found in configuration tree.' ***\n", line)
		}
		fmt.Print("gphoto2: /> ")
	}
}

type countingWaker struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (w *countingWaker) Wake() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return w.err
}

func (w *countingWaker) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

func openFake(t *testing.T, waker Waker) *Camera {
	t.Helper()
	opts := Options{
		StandardArgs:    []string{"--quiet"},
		Model:           "Nikon DSC D90",
		Port:            "usb:001,004",
		ResponseTimeout: 10 * time.Second,
		Command:         fakeGphoto2,
	}
	if waker != nil {
		opts.Waker = waker
	}
	cam, err := Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { cam.Close() })
	return cam
}

func TestOpen_EndToEnd(t *testing.T) {
	cam := openFake(t, nil)
	ctx := context.Background()

	if cam.Abilities().Model != "Nikon DSC D90 (PTP mode)" {
		t.Errorf("model = %q", cam.Abilities().Model)
	}
	if len(cam.Properties()) != 2 {
		t.Fatalf("properties = %d, want 2", len(cam.Properties()))
	}

	iso, _ := cam.Property(PropISO)
	if v, err := iso.Value(ctx); err != nil || v != "400" {
		t.Fatalf("Value = (%q, %v)", v, err)
	}
	if err := iso.SetValue(ctx, "100"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if v, err := iso.Value(ctx); err != nil || v != "100" {
		t.Errorf("Value after set = (%q, %v), want 100", v, err)
	}

	st, ok := cam.Stats()
	if !ok {
		t.Fatal("gphoto2 session should report stats")
	}
	if st.Spawns != 1 {
		t.Errorf("Spawns = %d, want 1", st.Spawns)
	}
}

func TestOpen_ConcurrentCallers(t *testing.T) {
	cam := openFake(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			d, err := cam.Get(ctx, PropISO)
			if err == nil && d.Label != "ISO Speed" {
				err = fmt.Errorf("interleaved response: %+v", d)
			}
			errs <- err
		}()
		go func() {
			defer wg.Done()
			d, err := cam.Get(ctx, PropBatteryLevel)
			if err == nil && d.Label != "Battery Level" {
				err = fmt.Errorf("interleaved response: %+v", d)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}

func TestOpen_UnknownPropertyIsDeviceError(t *testing.T) {
	cam := openFake(t, nil)
	p := NewProperty("/main/bogus", cam.session)
	_, err := p.Describe(context.Background())
	var de *gphoto2.DeviceError
	if !errors.As(err, &de) {
		t.Fatalf("err = %v, want *gphoto2.DeviceError", err)
	}
}

func TestOpen_WakesBeforeFirstCommandAndEachShell(t *testing.T) {
	w := &countingWaker{}
	cam := openFake(t, w)

	// One wake before --abilities, one before the shell started for list-config.
	if n := w.count(); n != 2 {
		t.Errorf("wakes after Open = %d, want 2", n)
	}

	// Kill the shell; the next interactive command must respawn and wake again.
	cam.session.ExecuteInteractive(context.Background(), "exit")
	if _, err := cam.Get(context.Background(), PropISO); err != nil {
		t.Fatalf("Get after shell exit: %v", err)
	}
	if n := w.count(); n != 3 {
		t.Errorf("wakes after respawn = %d, want 3", n)
	}
}

func TestOpen_WakeFailure(t *testing.T) {
	w := &countingWaker{err: errors.New("no gpio")}
	_, err := Open(context.Background(), Options{Command: fakeGphoto2, Waker: w})
	if !errors.Is(err, w.err) {
		t.Fatalf("err = %v, want the wake error", err)
	}
}

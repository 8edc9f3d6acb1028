package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/cjeanneret/GoPhoto/internal/config"
	"github.com/cjeanneret/GoPhoto/internal/debug"
	"github.com/cjeanneret/GoPhoto/internal/hw/camera"
	"github.com/cjeanneret/GoPhoto/internal/hw/gpio"
	"github.com/cjeanneret/GoPhoto/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{}
	flag.Var(webPort, "web", "start web server on port; -web= for the configured port, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	svcAction := flag.String("service", "", "system service action: install, uninstall, start, stop or run")
	getName := flag.String("get", "", "print one property, e.g. /main/imgsettings/iso")
	setExpr := flag.String("set", "", "write one property, e.g. /main/imgsettings/iso=400")
	flag.Parse()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	webPort.defaultPort = cfg.Web.Port

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel, cfg.Defaults.LogFormat)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	if *svcAction != "" {
		if err := controlService(*svcAction, *cfgPath, cfg); err != nil {
			log.Fatalf("service %s: %v", *svcAction, err)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if port := webPort.port(); port > 0 {
		if err := serveWeb(ctx, cfg, port); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	cam, release, err := openCamera(ctx, cfg)
	if err != nil {
		log.Fatalf("open camera failed: %v", err)
	}
	defer release()

	switch {
	case *setExpr != "":
		name, value, err := parseSet(*setExpr)
		if err != nil {
			log.Fatalf("invalid -set: %v", err)
		}
		if err := cam.Set(ctx, name, value); err != nil {
			log.Fatalf("set %s: %v", name, err)
		}
		fmt.Printf("%s = %s\n", name, value)
	case *getName != "":
		d, err := cam.Get(ctx, *getName)
		if err != nil {
			log.Fatalf("get %s: %v", *getName, err)
		}
		printDescriptor(os.Stdout, d)
	default:
		if err := printSummary(ctx, os.Stdout, cam); err != nil {
			log.Fatalf("read camera: %v", err)
		}
	}
}

// serveWeb opens the camera and runs the HTTP API until ctx is cancelled.
func serveWeb(ctx context.Context, cfg *config.Config, port int) error {
	broadcaster := web.NewStatusBroadcaster()
	debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

	cam, release, err := openCamera(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	defer release()
	broadcaster.BroadcastMsg("Camera ready: " + cam.Abilities().Model)

	srv := web.NewServer(fmt.Sprintf(":%d", port), broadcaster, cam)
	return srv.Run(ctx)
}

// openCamera wires the optional GPIO waker and opens the camera described by cfg.
// The returned func closes the camera and then the GPIO driver.
func openCamera(ctx context.Context, cfg *config.Config) (*camera.Camera, func(), error) {
	var (
		waker      camera.Waker
		gpioDriver gpio.Driver
	)
	if cfg.Wake.Enabled {
		debug.Step(1, "Initializing GPIO driver")
		debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
		var err error
		gpioDriver, err = gpio.NewDriver(cfg.Defaults.MockGPIO)
		if err != nil {
			return nil, nil, fmt.Errorf("init GPIO: %w", err)
		}
		w, err := camera.NewGPIOWaker(gpioDriver, cfg.Wake.FocusPin, cfg.WakePulse(), cfg.WakeSettle())
		if err != nil {
			gpioDriver.Close()
			return nil, nil, err
		}
		debug.PrintStruct("Wake config", cfg.Wake)
		waker = w
	}
	closeGPIO := func() {
		if gpioDriver == nil {
			return
		}
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}

	debug.Step(2, "Opening camera")
	debug.PrintStruct("gphoto2 config", cfg.Gphoto2)
	cam, err := camera.Open(ctx, cameraOptions(cfg, waker))
	if err != nil {
		closeGPIO()
		return nil, nil, err
	}
	release := func() {
		if err := cam.Close(); err != nil {
			log.Printf("closing camera failed: %v", err)
		}
		closeGPIO()
	}
	return cam, release, nil
}

// cameraOptions translates the gphoto2 section of cfg into camera.Options.
func cameraOptions(cfg *config.Config, waker camera.Waker) camera.Options {
	return camera.Options{
		Program:         cfg.Gphoto2.Program,
		Locale:          cfg.Gphoto2.Locale,
		Prompt:          cfg.Gphoto2.Prompt,
		StandardArgs:    cfg.Gphoto2.StandardArgs,
		Model:           cfg.Gphoto2.Camera,
		Port:            cfg.Gphoto2.Port,
		ResponseTimeout: cfg.ResponseTimeout(),
		Waker:           waker,
	}
}

// parseSet splits "name=value". The value may be empty or contain '='.
func parseSet(expr string) (name, value string, err error) {
	name, value, ok := strings.Cut(expr, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("want name=value, got %q", expr)
	}
	return name, value, nil
}

func printDescriptor(w io.Writer, d camera.Descriptor) {
	fmt.Fprintf(w, "%s (%s)\n", d.Label, d.Name)
	fmt.Fprintf(w, "  type:    %s", d.Type)
	if d.ReadOnly {
		fmt.Fprint(w, ", read-only")
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  current: %s\n", d.Value)
	if len(d.Choices) > 0 {
		fmt.Fprintf(w, "  choices: %s\n", strings.Join(d.Choices, " | "))
	}
}

// printSummary prints the abilities followed by every property's label and value.
func printSummary(ctx context.Context, w io.Writer, cam *camera.Camera) error {
	a := cam.Abilities()
	fmt.Fprintf(w, "Camera: %s\n", a.Model)
	fmt.Fprintf(w, "  capture images: %v, previews: %v, configurable: %v\n",
		a.CanCaptureImages, a.CanCapturePreviews, a.CanBeConfigured)

	for _, p := range cam.Properties() {
		d, err := p.Describe(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", p.Name(), err)
		}
		fmt.Fprintf(w, "%-40s %-28s %s\n", d.Name, d.Label, d.Value)
	}
	return nil
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= → configured port, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
	useDefault  bool
}

func (w *webPortFlag) String() string {
	if w == nil || w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.useDefault = true
		w.val = 0
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	w.useDefault = false
	return nil
}

func (w *webPortFlag) port() int {
	if w.useDefault {
		return w.defaultPort
	}
	return w.val
}

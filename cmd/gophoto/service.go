package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/cjeanneret/GoPhoto/internal/config"
	"github.com/cjeanneret/GoPhoto/internal/debug"
	"github.com/kardianos/service"
)

const serviceName = "gophoto"

// program runs the web API under the OS service manager.
type program struct {
	cfg    *config.Config
	cancel context.CancelFunc
	done   chan error
	logger service.Logger
}

func (p *program) Start(s service.Service) error {
	// Start should not block. Do the actual work async.
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		err := serveWeb(ctx, p.cfg, p.cfg.Web.Port)
		if err != nil && p.logger != nil {
			p.logger.Error(err)
		}
		p.done <- err
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case err := <-p.done:
		return err
	case <-time.After(10 * time.Second):
		return fmt.Errorf("web server did not stop in time")
	}
}

// serviceConfig describes the installed service; it re-runs this binary
// with the same config file in "-service run" mode.
func serviceConfig(cfgPath string) (*service.Config, error) {
	abs, err := filepath.Abs(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	return &service.Config{
		Name:             serviceName,
		DisplayName:      "GoPhoto camera control",
		Description:      "HTTP control of a gphoto2 camera",
		Arguments:        []string{"-config", abs, "-service", "run"},
		WorkingDirectory: filepath.Dir(filepath.Dir(abs)),
	}, nil
}

// controlService performs a -service action.
func controlService(action, cfgPath string, cfg *config.Config) error {
	switch action {
	case "run", "install", "uninstall", "start", "stop", "restart":
	default:
		return fmt.Errorf("unknown action %q, want one of install, uninstall, start, stop, restart, run", action)
	}

	svcConfig, err := serviceConfig(cfgPath)
	if err != nil {
		return err
	}
	prg := &program{cfg: cfg}
	s, err := service.New(prg, svcConfig)
	if err != nil {
		return err
	}
	prg.logger, err = s.Logger(nil)
	if err != nil {
		debug.Error(err)
	}

	if action == "run" {
		return s.Run()
	}
	debug.Info("Service %s: %s", serviceName, action)
	return service.Control(s, action)
}

package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cjeanneret/GoPhoto/internal/debug"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server wraps the HTTP server and handlers.
type Server struct {
	addr     string
	handlers *Handlers
	echo     *echo.Echo
}

// NewServer creates a server configured for the given address and dependencies.
func NewServer(addr string, broadcaster *StatusBroadcaster, dev Device) *Server {
	s := &Server{
		addr:     addr,
		handlers: NewHandlers(broadcaster, dev),
		echo:     echo.New(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			debug.Live("HTTP %s %s -> %d (%s)", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	h := s.handlers
	e.GET("/abilities", h.HandleAbilities)
	e.GET("/properties", h.HandleProperties)
	e.GET("/properties/*", h.HandleGetProperty)
	e.PUT("/properties/*", h.HandleSetProperty)
	e.GET("/stats", h.HandleStats)
	e.GET("/status/stream", h.HandleStatusStream)
	e.GET("/status/ws", h.HandleStatusWS)
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run starts the server and blocks until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		debug.Info("Web server listening on %s", s.addr)
		errCh <- s.echo.Start(s.addr)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.echo.Shutdown(shutdownCtx)
	}
}

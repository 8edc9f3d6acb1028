package web

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/cjeanneret/GoPhoto/internal/debug"
	"github.com/cjeanneret/GoPhoto/internal/hw/camera"
	"github.com/cjeanneret/GoPhoto/internal/hw/gphoto2"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// maxValueBytes bounds a PUT /properties body.
const maxValueBytes = 4 << 10

// Device is the camera surface the HTTP API drives. *camera.Camera implements it.
type Device interface {
	Abilities() camera.Abilities
	Properties() []*camera.Property
	Get(ctx context.Context, name string) (camera.Descriptor, error)
	Set(ctx context.Context, name, value string) error
	Stats() (gphoto2.Stats, bool)
}

// SetRequest is the body of PUT /properties/<name>.
type SetRequest struct {
	Value *string `json:"value"`
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Device      Device

	upgrader websocket.Upgrader
}

// NewHandlers creates handlers with the given dependencies.
// If dev is nil, camera routes return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, dev Device) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Device:      dev,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

func (h *Handlers) device() (Device, error) {
	if h.Device == nil {
		return nil, echo.NewHTTPError(http.StatusServiceUnavailable, "camera not connected")
	}
	return h.Device, nil
}

// propertyName turns the wildcard of /properties/* into a gphoto2 path.
func propertyName(c echo.Context) string {
	return "/" + strings.TrimPrefix(c.Param("*"), "/")
}

// HandleAbilities returns the abilities read when the camera was opened.
func (h *Handlers) HandleAbilities(c echo.Context) error {
	dev, err := h.device()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, dev.Abilities())
}

// HandleProperties lists the property names in camera order.
func (h *Handlers) HandleProperties(c echo.Context) error {
	dev, err := h.device()
	if err != nil {
		return err
	}
	props := dev.Properties()
	names := make([]string, 0, len(props))
	for _, p := range props {
		names = append(names, p.Name())
	}
	return c.JSON(http.StatusOK, names)
}

// HandleGetProperty describes one property with its current value.
func (h *Handlers) HandleGetProperty(c echo.Context) error {
	dev, err := h.device()
	if err != nil {
		return err
	}
	d, err := dev.Get(c.Request().Context(), propertyName(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, d)
}

// HandleSetProperty validates and writes one property value.
func (h *Handlers) HandleSetProperty(c echo.Context) error {
	dev, err := h.device()
	if err != nil {
		return err
	}

	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, maxValueBytes)
	var req SetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid JSON")
	}
	if req.Value == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "value is required")
	}

	name := propertyName(c)
	if err := dev.Set(c.Request().Context(), name, *req.Value); err != nil {
		if h.Broadcaster != nil {
			h.Broadcaster.Broadcast("error", "Set "+name+" failed: "+err.Error())
		}
		return httpError(err)
	}
	if h.Broadcaster != nil {
		h.Broadcaster.Broadcast("info", "Set "+name+" = "+*req.Value)
	}
	return c.JSON(http.StatusOK, map[string]string{"name": name, "value": *req.Value})
}

// HandleStats returns the session counters.
func (h *Handlers) HandleStats(c echo.Context) error {
	dev, err := h.device()
	if err != nil {
		return err
	}
	st, ok := dev.Stats()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no statistics")
	}
	return c.JSON(http.StatusOK, st)
}

// httpError maps camera errors to HTTP statuses.
func httpError(err error) error {
	var (
		ve *gphoto2.ValidationError
		de *gphoto2.DeviceError
		pe *gphoto2.ParseError
		xe *gphoto2.ProcessError
	)
	switch {
	case errors.Is(err, camera.ErrUnknownProperty):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &de), errors.As(err, &pe):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	case errors.As(err, &xe), errors.Is(err, gphoto2.ErrSessionClosed):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return echo.NewHTTPError(http.StatusGatewayTimeout, err.Error())
	default:
		debug.Error(err)
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(c echo.Context) error {
	w := c.Response()
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx
	w.WriteHeader(http.StatusOK)

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	w.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			w.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			w.Flush()

		case <-c.Request().Context().Done():
			return nil
		}
	}
}

// HandleStatusWS handles GET /status/ws: the same events as the SSE stream,
// one JSON text frame each.
func (h *Handlers) HandleStatusWS(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already replied
		return nil
	}
	defer conn.Close()

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Reads only to notice the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				debug.Verbose("websocket client dropped: %v", err)
				return nil
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return nil
			}

		case <-gone:
			return nil
		}
	}
}

package http

import (
	"bufio"
	"errors"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/kiosco-api/internal/application/realtime"
	"github.com/valyala/fasthttp"
)

// EventsHandler expone el stream SSE de cambios del kiosco: estado,
// inventario, disponibilidad y tracking.
type EventsHandler struct {
	hub *realtime.Hub
}

// NewEventsHandler construye el handler.
func NewEventsHandler(hub *realtime.Hub) *EventsHandler {
	return &EventsHandler{hub: hub}
}

// Stream godoc
// @Summary      Stream de eventos del kiosco (SSE)
// @Description  Conexión push de larga vida. Al conectar se reenvía el
//
//	estado actual (replay inicial); luego llegan los cambios y un
//	heartbeat periódico que evita timeouts de proxies.
//
// @Tags         kiosk
// @Produce      text/event-stream
// @Success      200
// @Router       /api/kiosk/events [get]
func (h *EventsHandler) Stream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	conn := newSSEConn(256)
	// El replay inicial queda en el buffer del canal hasta que el stream
	// writer arranque.
	id := h.hub.Register(c.Context(), conn)
	hub := h.hub

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer hub.Unregister(id)
		for {
			select {
			case <-conn.done:
				return
			case frame := <-conn.frames:
				if _, err := w.Write(frame); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

var errConnNotWritable = errors.New("conexión sse sin capacidad de escritura")

// sseConn implementa realtime.Conn sobre un canal con buffer. Un buffer
// lleno significa cliente que no drena: Send falla y el hub lo desaloja.
type sseConn struct {
	frames    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newSSEConn(buffer int) *sseConn {
	return &sseConn{
		frames: make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// Send encola un frame SSE con nombre de evento. No bloquea: si el buffer
// está lleno o la conexión cerró, devuelve error.
func (c *sseConn) Send(event string, data []byte) error {
	frame := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, data))
	return c.enqueue(frame)
}

// Ping encola un comentario SSE como heartbeat (no-op para el cliente).
func (c *sseConn) Ping() error {
	return c.enqueue([]byte(": ping\n\n"))
}

func (c *sseConn) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return errConnNotWritable
	default:
	}
	select {
	case c.frames <- frame:
		return nil
	default:
		return errConnNotWritable
	}
}

// Close es idempotente; despierta al stream writer para que termine.
func (c *sseConn) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

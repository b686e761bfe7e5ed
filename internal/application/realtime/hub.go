// Package realtime implementa la capa de broadcast: registro de conexiones
// push de larga vida (SSE), replay del estado inicial al conectar, timer de
// reevaluación de estado y keep-alive compartidos, y desalojo por conexión
// ante fallas de escritura.
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/kiosco-api/internal/domain/entity"
	"github.com/jhoicas/kiosco-api/internal/domain/schedule"
	"github.com/jhoicas/kiosco-api/pkg/logger"
)

// Nombres de evento del stream.
const (
	EventStatus       = "status"
	EventInventory    = "inventory"
	EventAvailability = "availability"
	EventTracking     = "tracking"
)

// Conn es el canal push hacia un cliente (colaborador externo: el handler
// SSE lo implementa). Send falla si la conexión no admite más escrituras;
// el hub la desaloja y cierra, sin afectar a las demás.
type Conn interface {
	Send(event string, data []byte) error
	Ping() error
	Close()
}

// StatusSource reevalúa el estado del kiosco bajo demanda.
type StatusSource interface {
	Evaluate(ctx context.Context) (schedule.Status, bool, error)
	Current(ctx context.Context) (schedule.Status, error)
}

// TrackingSource lee el toggle de tracking para el replay inicial.
type TrackingSource interface {
	TrackingState(ctx context.Context) (bool, error)
}

// Config intervalos de los timers compartidos del hub.
type Config struct {
	PollEvery      time.Duration
	KeepAliveEvery time.Duration
}

// Hub mantiene el registro de conexiones y los timers compartidos. El
// registro es estado mutable compartido entre handlers y timers: siempre
// bajo mu. Los timers arrancan perezosamente con el primer cliente y se
// apagan cuando el registro queda vacío.
type Hub struct {
	statusSrc   StatusSource
	trackingSrc TrackingSource
	cfg         Config
	log         *logger.Logger

	mu           sync.Mutex
	conns        map[string]Conn
	availability map[string]availabilityEvent // cache por producto para replay
	lastFP       string                       // fingerprint del último estado emitido
	stopTimers   chan struct{}
}

type statusEvent struct {
	Status    string     `json:"status"`
	Reason    string     `json:"reason"`
	Message   string     `json:"message"`
	NextOpen  *time.Time `json:"next_open,omitempty"`
	NextClose *time.Time `json:"next_close,omitempty"`
	Maintenance struct {
		Enabled bool   `json:"enabled"`
		Message string `json:"message,omitempty"`
	} `json:"maintenance"`
}

type inventoryEvent struct {
	ProductID    string `json:"product_id"`
	CurrentStock int64  `json:"current_stock"`
	LowStock     bool   `json:"low_stock"`
	Negative     bool   `json:"negative"`
}

type availabilityEvent struct {
	ProductID    string `json:"product_id"`
	Availability string `json:"availability"`
}

type trackingEvent struct {
	Enabled bool `json:"enabled"`
}

// NewHub construye el hub.
func NewHub(statusSrc StatusSource, trackingSrc TrackingSource, cfg Config, log *logger.Logger) *Hub {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = time.Minute
	}
	if cfg.KeepAliveEvery <= 0 {
		cfg.KeepAliveEvery = 25 * time.Second
	}
	return &Hub{
		statusSrc:    statusSrc,
		trackingSrc:  trackingSrc,
		cfg:          cfg,
		log:          log,
		conns:        make(map[string]Conn),
		availability: make(map[string]availabilityEvent),
	}
}

// SetTrackingSource fija la fuente del toggle de tracking. Existe aparte del
// constructor porque el motor de inventario y el hub se referencian entre sí.
func (h *Hub) SetTrackingSource(src TrackingSource) {
	h.mu.Lock()
	h.trackingSrc = src
	h.mu.Unlock()
}

// Register registra una conexión, le empuja de inmediato el estado actual
// (replay inicial: status, tracking y disponibilidad cacheada) y asegura
// que los timers compartidos estén corriendo. Devuelve el id opaco.
func (h *Hub) Register(ctx context.Context, conn Conn) string {
	id := uuid.New().String()

	st, err := h.statusSrc.Current(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("estado inicial no disponible para replay")
	} else {
		_ = conn.Send(EventStatus, marshalStatus(st))
	}
	if h.trackingSrc != nil {
		if enabled, err := h.trackingSrc.TrackingState(ctx); err == nil {
			data, _ := json.Marshal(trackingEvent{Enabled: enabled})
			_ = conn.Send(EventTracking, data)
		}
	}

	h.mu.Lock()
	for _, ev := range h.availability {
		data, _ := json.Marshal(ev)
		_ = conn.Send(EventAvailability, data)
	}
	h.conns[id] = conn
	if h.stopTimers == nil {
		h.stopTimers = make(chan struct{})
		go h.runTimers(h.stopTimers)
	}
	total := len(h.conns)
	h.mu.Unlock()

	h.log.Debug().Str("conn_id", id).Int("total", total).Msg("conexión registrada")
	return id
}

// Unregister saca la conexión del registro y la cierra. Con el registro
// vacío, apaga los timers compartidos.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	conn, ok := h.conns[id]
	if ok {
		delete(h.conns, id)
	}
	h.maybeStopTimersLocked()
	h.mu.Unlock()
	if ok {
		conn.Close()
		h.log.Debug().Str("conn_id", id).Msg("conexión cerrada")
	}
}

// mu debe estar tomado.
func (h *Hub) maybeStopTimersLocked() {
	if len(h.conns) == 0 && h.stopTimers != nil {
		close(h.stopTimers)
		h.stopTimers = nil
	}
}

// PublishInventory empuja el snapshot de inventario a todos los clientes.
func (h *Hub) PublishInventory(snapshot *entity.Snapshot) {
	data, err := json.Marshal(inventoryEvent{
		ProductID:    snapshot.ProductID,
		CurrentStock: snapshot.CurrentStock,
		LowStock:     snapshot.LowStock,
		Negative:     snapshot.Negative,
	})
	if err != nil {
		return
	}
	h.broadcast(EventInventory, data)
}

// PublishAvailability empuja la vista pública de disponibilidad y la cachea
// para el replay de conexiones nuevas.
func (h *Hub) PublishAvailability(productID, availability string) {
	ev := availabilityEvent{ProductID: productID, Availability: availability}
	h.mu.Lock()
	h.availability[productID] = ev
	h.mu.Unlock()
	data, _ := json.Marshal(ev)
	h.broadcast(EventAvailability, data)
}

// PublishTracking empuja el cambio del toggle de tracking.
func (h *Hub) PublishTracking(enabled bool) {
	data, _ := json.Marshal(trackingEvent{Enabled: enabled})
	h.broadcast(EventTracking, data)
}

// ForceRefresh reevalúa el estado y lo emite aunque el fingerprint no haya
// cambiado. Nudge para cambios administrativos (mantenimiento, horarios).
func (h *Hub) ForceRefresh(ctx context.Context) {
	h.refresh(ctx, true)
}

func (h *Hub) refresh(ctx context.Context, force bool) {
	st, _, err := h.statusSrc.Evaluate(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("reevaluación de estado falló")
		return
	}
	// El hub compara contra el fingerprint del último estado que él mismo
	// emitió, no contra el flanco de la fuente: otras evaluaciones (una
	// consulta HTTP de estado, por ejemplo) no pueden consumir una
	// transición que los clientes conectados todavía no vieron.
	fp := st.Fingerprint()
	h.mu.Lock()
	changed := fp != h.lastFP
	h.lastFP = fp
	h.mu.Unlock()
	if !changed && !force {
		return
	}
	h.broadcast(EventStatus, marshalStatus(st))
}

// broadcast escribe a cada conexión; la que falla se desaloja y cierra.
// Best-effort por conexión, nunca todo-o-nada.
func (h *Hub) broadcast(event string, data []byte) {
	for _, victim := range h.send(func(c Conn) error { return c.Send(event, data) }) {
		h.Unregister(victim)
	}
}

// send aplica fn a cada conexión bajo mu y devuelve los ids que fallaron.
func (h *Hub) send(fn func(Conn) error) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var failed []string
	for id, conn := range h.conns {
		if err := fn(conn); err != nil {
			failed = append(failed, id)
		}
	}
	return failed
}

// runTimers corre el poll de estado y el keep-alive compartidos mientras
// haya clientes. El keep-alive derrota los timeouts de conexión ociosa de
// los proxies intermedios.
func (h *Hub) runTimers(stop chan struct{}) {
	poll := time.NewTicker(h.cfg.PollEvery)
	keepAlive := time.NewTicker(h.cfg.KeepAliveEvery)
	defer poll.Stop()
	defer keepAlive.Stop()

	for {
		select {
		case <-stop:
			return
		case <-poll.C:
			h.refresh(context.Background(), false)
		case <-keepAlive.C:
			for _, victim := range h.send(func(c Conn) error { return c.Ping() }) {
				h.Unregister(victim)
			}
		}
	}
}

// Shutdown cierra todas las conexiones y apaga los timers.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]Conn)
	h.maybeStopTimersLocked()
	h.mu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}
}

// ConnCount devuelve el número de conexiones registradas.
func (h *Hub) ConnCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func marshalStatus(st schedule.Status) []byte {
	ev := statusEvent{
		Status:    st.Status,
		Reason:    st.Reason,
		Message:   st.Message,
		NextOpen:  st.NextOpen,
		NextClose: st.NextClose,
	}
	ev.Maintenance.Enabled = st.Maintenance.Enabled
	ev.Maintenance.Message = st.Maintenance.Message
	data, _ := json.Marshal(ev)
	return data
}

package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/kiosco-api/internal/application/realtime"
	"github.com/jhoicas/kiosco-api/internal/application/status"
	"github.com/jhoicas/kiosco-api/internal/domain/entity"
	"github.com/jhoicas/kiosco-api/internal/domain/schedule"
	"github.com/jhoicas/kiosco-api/pkg/logger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type recibido struct {
	event string
	data  []byte
}

// fakeConn registra todo lo recibido; failSends hace fallar las escrituras
// para simular un cliente que dejó de leer.
type fakeConn struct {
	mu        sync.Mutex
	received  []recibido
	pings     int
	closed    bool
	failSends bool
}

func (f *fakeConn) Send(event string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSends {
		return errors.New("buffer lleno")
	}
	f.received = append(f.received, recibido{event: event, data: data})
	return nil
}

func (f *fakeConn) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSends {
		return errors.New("buffer lleno")
	}
	f.pings++
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) eventos(event string) []recibido {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recibido
	for _, r := range f.received {
		if r.event == event {
			out = append(out, r)
		}
	}
	return out
}

func (f *fakeConn) estaCerrada() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeStatusSrc fuente de estado con resultado fijo y contadores.
type fakeStatusSrc struct {
	mu        sync.Mutex
	status    schedule.Status
	changed   bool
	evaluates int
}

func (f *fakeStatusSrc) Evaluate(context.Context) (schedule.Status, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.evaluates++
	return f.status, f.changed, nil
}

func (f *fakeStatusSrc) Current(context.Context) (schedule.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, nil
}

type fakeTrackingSrc struct{ enabled bool }

func (f *fakeTrackingSrc) TrackingState(context.Context) (bool, error) {
	return f.enabled, nil
}

// fakeConfigRepo almacén clave/valor en memoria para componer el servicio de
// estado real con el hub.
type fakeConfigRepo struct {
	mu     sync.Mutex
	values map[string]entity.ConfigValue
}

func (f *fakeConfigRepo) Get(_ context.Context, key string) (*entity.ConfigValue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (f *fakeConfigRepo) Set(_ context.Context, key string, value entity.ConfigValue, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.values[key] = value
	return nil
}

func abierto() schedule.Status {
	return schedule.Status{Status: schedule.StatusOpen, Reason: schedule.ReasonOperatingWindow, Message: "cierra a las 18:00"}
}

func newHub(src *fakeStatusSrc) *realtime.Hub {
	return realtime.NewHub(src, &fakeTrackingSrc{enabled: true}, realtime.Config{
		PollEvery:      time.Hour, // los tests disparan refresh a mano
		KeepAliveEvery: time.Hour,
	}, logger.NewNop())
}

// ──────────────────────────────────────────────────────────────────────────────
// Register — replay inicial
// ──────────────────────────────────────────────────────────────────────────────

// Al conectar, el cliente recibe el estado del kiosco, el toggle de tracking
// y la disponibilidad cacheada, antes de cualquier broadcast.
func TestRegister_ReplayInicial(t *testing.T) {
	src := &fakeStatusSrc{status: abierto()}
	hub := newHub(src)
	hub.PublishAvailability("p1", entity.AvailabilityLowStock) // precalienta el cache

	conn := &fakeConn{}
	id := hub.Register(context.Background(), conn)
	require.NotEmpty(t, id)

	statusEvs := conn.eventos("status")
	require.Len(t, statusEvs, 1)
	var st map[string]any
	require.NoError(t, json.Unmarshal(statusEvs[0].data, &st))
	assert.Equal(t, "open", st["status"])

	trackingEvs := conn.eventos("tracking")
	require.Len(t, trackingEvs, 1)
	assert.JSONEq(t, `{"enabled":true}`, string(trackingEvs[0].data))

	availEvs := conn.eventos("availability")
	require.Len(t, availEvs, 1)
	assert.JSONEq(t, `{"product_id":"p1","availability":"low_stock"}`, string(availEvs[0].data))

	assert.Equal(t, 1, hub.ConnCount())
}

// ──────────────────────────────────────────────────────────────────────────────
// Broadcast y desalojo por conexión
// ──────────────────────────────────────────────────────────────────────────────

func TestPublishInventory_LlegaATodos(t *testing.T) {
	src := &fakeStatusSrc{status: abierto()}
	hub := newHub(src)
	ctx := context.Background()

	a, b := &fakeConn{}, &fakeConn{}
	hub.Register(ctx, a)
	hub.Register(ctx, b)

	hub.PublishInventory(&entity.Snapshot{ProductID: "p1", CurrentStock: 3, LowStock: true})

	for _, conn := range []*fakeConn{a, b} {
		evs := conn.eventos("inventory")
		require.Len(t, evs, 1)
		assert.JSONEq(t, `{"product_id":"p1","current_stock":3,"low_stock":true,"negative":false}`, string(evs[0].data))
	}
}

// Una conexión que no admite escrituras se desaloja y cierra; las demás
// siguen recibiendo sin enterarse.
func TestBroadcast_DesalojaSoloALaConexionRota(t *testing.T) {
	src := &fakeStatusSrc{status: abierto()}
	hub := newHub(src)
	ctx := context.Background()

	sana := &fakeConn{}
	rota := &fakeConn{failSends: true}
	hub.Register(ctx, sana)
	hub.Register(ctx, rota)
	require.Equal(t, 2, hub.ConnCount())

	hub.PublishTracking(false)

	assert.Equal(t, 1, hub.ConnCount(), "la conexión rota fue desalojada")
	assert.True(t, rota.estaCerrada())
	assert.False(t, sana.estaCerrada())
	require.Len(t, sana.eventos("tracking"), 2, "replay inicial + broadcast")
}

// La disponibilidad publicada queda cacheada: un cliente que conecta después
// del broadcast la recibe igual en el replay.
func TestPublishAvailability_CacheaParaReplay(t *testing.T) {
	src := &fakeStatusSrc{status: abierto()}
	hub := newHub(src)
	ctx := context.Background()

	hub.PublishAvailability("p1", entity.AvailabilityOutOfStock)
	hub.PublishAvailability("p1", entity.AvailabilityAvailable) // el último gana

	tardio := &fakeConn{}
	hub.Register(ctx, tardio)

	evs := tardio.eventos("availability")
	require.Len(t, evs, 1, "solo el último estado por producto")
	assert.JSONEq(t, `{"product_id":"p1","availability":"available"}`, string(evs[0].data))
}

// ──────────────────────────────────────────────────────────────────────────────
// ForceRefresh y supresión por fingerprint
// ──────────────────────────────────────────────────────────────────────────────

// Sin cambio de fingerprint el poll no emite; ForceRefresh emite siempre.
func TestForceRefresh_EmiteAunqueNoHayaCambio(t *testing.T) {
	src := &fakeStatusSrc{status: abierto(), changed: false}
	hub := newHub(src)
	ctx := context.Background()

	conn := &fakeConn{}
	hub.Register(ctx, conn)
	require.Len(t, conn.eventos("status"), 1, "solo el replay inicial")

	hub.ForceRefresh(ctx)
	assert.Len(t, conn.eventos("status"), 2, "el nudge administrativo siempre emite")
}

// Una consulta de estado intercalada (el handler HTTP también llama Evaluate
// sobre el mismo servicio) no debe consumir la transición que el poll todavía
// no emitió: el hub compara contra su propio fingerprint y los clientes
// conectados reciben el cambio igual.
func TestRefresh_ConsultaIntercaladaNoSuprimeLaTransicion(t *testing.T) {
	repo := &fakeConfigRepo{values: map[string]entity.ConfigValue{}}
	svc := status.NewService(repo, "America/Bogota", logger.NewNop())
	hub := realtime.NewHub(svc, &fakeTrackingSrc{enabled: true}, realtime.Config{
		PollEvery:      10 * time.Millisecond,
		KeepAliveEvery: time.Hour,
	}, logger.NewNop())
	ctx := context.Background()

	conn := &fakeConn{}
	id := hub.Register(ctx, conn)
	defer hub.Unregister(id)

	// Transición real: se activa mantenimiento...
	require.NoError(t, repo.Set(ctx, entity.ConfigKeyMaintenanceMode, entity.NewBoolValue(true), "admin-1"))

	// ...y consultas intercaladas la observan primero, como harían peticiones
	// GET de estado entre dos ticks del poll.
	require.Eventually(t, func() bool {
		st, _, err := svc.Evaluate(ctx)
		return err == nil && st.Status == schedule.StatusMaintenance
	}, time.Second, time.Millisecond)

	// El poll igual emite la transición a los clientes conectados.
	assert.Eventually(t, func() bool {
		for _, r := range conn.eventos("status") {
			var ev struct {
				Status string `json:"status"`
			}
			if json.Unmarshal(r.data, &ev) == nil && ev.Status == schedule.StatusMaintenance {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond, "la transición a mantenimiento debe llegar por el stream")
}

// ──────────────────────────────────────────────────────────────────────────────
// Ciclo de vida del registro
// ──────────────────────────────────────────────────────────────────────────────

func TestUnregister_CierraYDescuenta(t *testing.T) {
	src := &fakeStatusSrc{status: abierto()}
	hub := newHub(src)

	conn := &fakeConn{}
	id := hub.Register(context.Background(), conn)
	hub.Unregister(id)

	assert.Zero(t, hub.ConnCount())
	assert.True(t, conn.estaCerrada())

	// Unregister repetido es inocuo.
	hub.Unregister(id)
	assert.Zero(t, hub.ConnCount())
}

func TestShutdown_CierraTodas(t *testing.T) {
	src := &fakeStatusSrc{status: abierto()}
	hub := newHub(src)
	ctx := context.Background()

	a, b := &fakeConn{}, &fakeConn{}
	hub.Register(ctx, a)
	hub.Register(ctx, b)

	hub.Shutdown()

	assert.Zero(t, hub.ConnCount())
	assert.True(t, a.estaCerrada())
	assert.True(t, b.estaCerrada())
}

// El poll compartido reevalúa el estado mientras haya clientes conectados.
func TestTimers_PollReevalua(t *testing.T) {
	src := &fakeStatusSrc{status: abierto(), changed: true}
	hub := realtime.NewHub(src, &fakeTrackingSrc{enabled: true}, realtime.Config{
		PollEvery:      10 * time.Millisecond,
		KeepAliveEvery: time.Hour,
	}, logger.NewNop())

	conn := &fakeConn{}
	id := hub.Register(context.Background(), conn)

	assert.Eventually(t, func() bool {
		src.mu.Lock()
		defer src.mu.Unlock()
		return src.evaluates >= 2
	}, time.Second, 5*time.Millisecond, "el timer de poll debe reevaluar periódicamente")

	hub.Unregister(id)
}

// El keep-alive hace ping y desaloja a quien no responde.
func TestTimers_KeepAliveDesalojaRotas(t *testing.T) {
	src := &fakeStatusSrc{status: abierto()}
	hub := realtime.NewHub(src, &fakeTrackingSrc{enabled: true}, realtime.Config{
		PollEvery:      time.Hour,
		KeepAliveEvery: 10 * time.Millisecond,
	}, logger.NewNop())
	ctx := context.Background()

	sana := &fakeConn{}
	rota := &fakeConn{failSends: true}
	hub.Register(ctx, sana)
	hub.Register(ctx, rota)

	assert.Eventually(t, func() bool {
		return hub.ConnCount() == 1 && rota.estaCerrada()
	}, time.Second, 5*time.Millisecond, "el keep-alive debe desalojar la conexión rota")

	sana.mu.Lock()
	pings := sana.pings
	sana.mu.Unlock()
	assert.Positive(t, pings, "la conexión sana recibe pings")
}

package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/kiosco-api/internal/domain/schedule"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers de test
// ──────────────────────────────────────────────────────────────────────────────

// mins convierte HH:MM a minutos del día para legibilidad de los casos.
func mins(h, m int) int { return h*60 + m }

// bogota carga la zona por defecto; los fixtures la usan explícitamente.
func bogota(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Bogota")
	require.NoError(t, err)
	return loc
}

// weekdayConfig horario clásico de oficina: lunes a viernes 08:00-18:00.
func weekdayConfig() schedule.Config {
	return schedule.Config{
		Timezone: "America/Bogota",
		Windows: []schedule.Window{
			{Start: mins(8, 0), End: mins(18, 0), Days: []int{1, 2, 3, 4, 5}},
		},
	}
}

// overnightConfig ventana nocturna todos los días: 22:00-06:00.
func overnightConfig() schedule.Config {
	return schedule.Config{
		Timezone: "America/Bogota",
		Windows: []schedule.Window{
			{Start: mins(22, 0), End: mins(6, 0), Days: []int{1, 2, 3, 4, 5, 6, 7}},
		},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Ventanas diurnas
// ──────────────────────────────────────────────────────────────────────────────

// Miércoles 10:00 dentro de la ventana → open, cierra hoy a las 18:00 y la
// próxima apertura es mañana (estrictamente posterior al cierre).
func TestCompute_DentroDeVentana_Abierto(t *testing.T) {
	loc := bogota(t)
	// 2025-03-12 es miércoles
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, loc)

	st := schedule.Compute(weekdayConfig(), now)

	assert.Equal(t, schedule.StatusOpen, st.Status)
	assert.Equal(t, schedule.ReasonOperatingWindow, st.Reason)
	require.NotNil(t, st.NextClose)
	assert.Equal(t, time.Date(2025, 3, 12, 18, 0, 0, 0, loc), *st.NextClose,
		"debe cerrar hoy mismo a las 18:00")
	require.NotNil(t, st.NextOpen)
	assert.Equal(t, time.Date(2025, 3, 13, 8, 0, 0, 0, loc), *st.NextOpen,
		"la próxima apertura debe ser posterior al cierre, no la ventana actual")
	assert.Contains(t, st.Message, "cierra a las 18:00")
}

// Miércoles 19:30 fuera de la ventana → closed con próxima apertura mañana.
func TestCompute_FueraDeVentana_Cerrado(t *testing.T) {
	loc := bogota(t)
	now := time.Date(2025, 3, 12, 19, 30, 0, 0, loc)

	st := schedule.Compute(weekdayConfig(), now)

	assert.Equal(t, schedule.StatusClosed, st.Status)
	assert.Equal(t, schedule.ReasonOutsideHours, st.Reason)
	assert.Nil(t, st.NextClose)
	require.NotNil(t, st.NextOpen)
	assert.Equal(t, time.Date(2025, 3, 13, 8, 0, 0, 0, loc), *st.NextOpen)
}

// Sábado al mediodía con horario lunes-viernes → la próxima apertura salta el
// fin de semana completo hasta el lunes a las 08:00.
func TestCompute_FinDeSemana_ProximaAperturaLunes(t *testing.T) {
	loc := bogota(t)
	// 2025-03-15 es sábado
	now := time.Date(2025, 3, 15, 12, 0, 0, 0, loc)

	st := schedule.Compute(weekdayConfig(), now)

	assert.Equal(t, schedule.StatusClosed, st.Status)
	require.NotNil(t, st.NextOpen)
	assert.Equal(t, time.Date(2025, 3, 17, 8, 0, 0, 0, loc), *st.NextOpen,
		"debe abrir el lunes siguiente")
	assert.Contains(t, st.Message, "lunes")
	assert.Contains(t, st.Message, "08:00")
}

// El cómputo respeta la zona horaria configurada, no la del instante de
// entrada: 06:00 UTC es 08:00 en Helsinki (invierno) → abierto.
func TestCompute_ZonaHorariaConfigurada(t *testing.T) {
	cfg := schedule.Config{
		Timezone: "Europe/Helsinki",
		Windows: []schedule.Window{
			{Start: mins(8, 0), End: mins(18, 0), Days: []int{1, 2, 3, 4, 5}},
		},
	}
	// 2025-01-15 es miércoles; Helsinki está en UTC+2 en enero.
	now := time.Date(2025, 1, 15, 6, 0, 0, 0, time.UTC)

	st := schedule.Compute(cfg, now)
	assert.Equal(t, schedule.StatusOpen, st.Status,
		"06:00 UTC = 08:00 Helsinki, justo al inicio de la ventana")
}

// Zona horaria inválida → fallback silencioso a America/Bogota.
func TestLocation_ZonaInvalidaCaeADefault(t *testing.T) {
	cfg := schedule.Config{Timezone: "Marte/Olympus"}
	assert.Equal(t, "America/Bogota", cfg.Location().String())
}

// ──────────────────────────────────────────────────────────────────────────────
// Ventanas nocturnas (cruzan medianoche)
// ──────────────────────────────────────────────────────────────────────────────

// 22:00-06:00: abierto a las 23:30 (tramo de la noche) y a las 02:00 (tramo
// de la madrugada), cerrado al mediodía.
func TestCompute_VentanaNocturna(t *testing.T) {
	loc := bogota(t)
	cfg := overnightConfig()

	tarde := schedule.Compute(cfg, time.Date(2025, 3, 12, 23, 30, 0, 0, loc))
	assert.Equal(t, schedule.StatusOpen, tarde.Status, "23:30 cae en el tramo nocturno")
	require.NotNil(t, tarde.NextClose)
	assert.Equal(t, time.Date(2025, 3, 13, 6, 0, 0, 0, loc), *tarde.NextClose,
		"a las 23:30 el cierre es mañana a las 06:00")

	madrugada := schedule.Compute(cfg, time.Date(2025, 3, 13, 2, 0, 0, 0, loc))
	assert.Equal(t, schedule.StatusOpen, madrugada.Status, "02:00 cae en la madrugada de la misma ventana")
	require.NotNil(t, madrugada.NextClose)
	assert.Equal(t, time.Date(2025, 3, 13, 6, 0, 0, 0, loc), *madrugada.NextClose,
		"a las 02:00 el cierre es hoy a las 06:00")

	mediodia := schedule.Compute(cfg, time.Date(2025, 3, 13, 12, 0, 0, 0, loc))
	assert.Equal(t, schedule.StatusClosed, mediodia.Status)
}

// La madrugada de una ventana nocturna pertenece al día que la abrió: ventana
// solo de viernes → sábado 02:00 sigue abierto, domingo 02:00 no.
func TestCompute_NocturnaRestringidaPorDia(t *testing.T) {
	loc := bogota(t)
	cfg := schedule.Config{
		Timezone: "America/Bogota",
		Windows: []schedule.Window{
			{Start: mins(22, 0), End: mins(6, 0), Days: []int{5}}, // solo viernes
		},
	}

	// 2025-03-15 es sábado: la ventana la abrió el viernes 14.
	sabado := schedule.Compute(cfg, time.Date(2025, 3, 15, 2, 0, 0, 0, loc))
	assert.Equal(t, schedule.StatusOpen, sabado.Status,
		"sábado 02:00 pertenece a la ventana abierta el viernes")

	domingo := schedule.Compute(cfg, time.Date(2025, 3, 16, 2, 0, 0, 0, loc))
	assert.Equal(t, schedule.StatusClosed, domingo.Status,
		"domingo 02:00 no pertenece a ninguna ventana")
}

// Start == End significa abierto todo el día en los días configurados.
func TestCompute_VentanaTodoElDia(t *testing.T) {
	loc := bogota(t)
	cfg := schedule.Config{
		Timezone: "America/Bogota",
		Windows: []schedule.Window{
			{Start: 0, End: 0, Days: []int{6, 7}}, // fines de semana 24h
		},
	}

	st := schedule.Compute(cfg, time.Date(2025, 3, 15, 3, 0, 0, 0, loc))
	assert.Equal(t, schedule.StatusOpen, st.Status, "sábado 03:00 con ventana 24h")
}

// ──────────────────────────────────────────────────────────────────────────────
// Mantenimiento y configuraciones degeneradas
// ──────────────────────────────────────────────────────────────────────────────

// El modo mantenimiento tiene precedencia incondicional, incluso dentro de
// una ventana de operación activa.
func TestCompute_MantenimientoPrecedeAVentana(t *testing.T) {
	loc := bogota(t)
	cfg := weekdayConfig()
	cfg.Maintenance = schedule.Maintenance{Enabled: true}

	st := schedule.Compute(cfg, time.Date(2025, 3, 12, 10, 0, 0, 0, loc))

	assert.Equal(t, schedule.StatusMaintenance, st.Status)
	assert.Equal(t, schedule.ReasonMaintenance, st.Reason)
	assert.Equal(t, schedule.DefaultMaintenanceMessage, st.Message,
		"sin mensaje configurado debe usarse el mensaje por defecto")
	require.NotNil(t, st.Window, "la ventana que matchea se reporta igual")
}

func TestCompute_MantenimientoConMensajePropio(t *testing.T) {
	loc := bogota(t)
	cfg := weekdayConfig()
	cfg.Maintenance = schedule.Maintenance{Enabled: true, Message: "Inventario anual"}

	st := schedule.Compute(cfg, time.Date(2025, 3, 12, 10, 0, 0, 0, loc))
	assert.Equal(t, "Inventario anual", st.Message)
}

// Sin ventanas configuradas el kiosco está cerrado con razón explícita y sin
// proyección de apertura.
func TestCompute_SinVentanas(t *testing.T) {
	st := schedule.Compute(schedule.Config{Timezone: "America/Bogota"}, time.Now())

	assert.Equal(t, schedule.StatusClosed, st.Status)
	assert.Equal(t, schedule.ReasonNoWindows, st.Reason)
	assert.Nil(t, st.NextOpen)
	assert.Nil(t, st.NextClose)
}

// Las ventanas inválidas (días fuera de rango) se ignoran sin romper el
// cómputo del resto.
func TestCompute_VentanaInvalidaSeIgnora(t *testing.T) {
	loc := bogota(t)
	cfg := schedule.Config{
		Timezone: "America/Bogota",
		Windows: []schedule.Window{
			{Start: mins(8, 0), End: mins(18, 0), Days: []int{9}}, // día inválido
		},
	}

	st := schedule.Compute(cfg, time.Date(2025, 3, 12, 10, 0, 0, 0, loc))
	assert.Equal(t, schedule.StatusClosed, st.Status)
	assert.Nil(t, st.NextOpen, "una ventana inválida no puede producir apertura futura")
}

func TestWindowValidate(t *testing.T) {
	assert.NoError(t, schedule.Window{Start: 0, End: 1439, Days: []int{1}}.Validate())
	assert.Error(t, schedule.Window{Start: -1, End: 100, Days: []int{1}}.Validate())
	assert.Error(t, schedule.Window{Start: 0, End: 1440, Days: []int{1}}.Validate())
	assert.Error(t, schedule.Window{Start: 0, End: 100}.Validate(), "sin días es inválida")
	assert.Error(t, schedule.Window{Start: 0, End: 100, Days: []int{0}}.Validate())
	assert.Error(t, schedule.Window{Start: 0, End: 100, Days: []int{8}}.Validate())
}

// ──────────────────────────────────────────────────────────────────────────────
// Determinismo y fingerprint
// ──────────────────────────────────────────────────────────────────────────────

// Compute es función pura: mismo (config, instante) → mismo resultado.
func TestCompute_Determinista(t *testing.T) {
	loc := bogota(t)
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, loc)
	cfg := weekdayConfig()

	a := schedule.Compute(cfg, now)
	b := schedule.Compute(cfg, now)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.True(t, a.Equal(b))
}

// Dos instantes dentro de la misma ventana producen el mismo fingerprint
// (nada observable cambió); cruzar el cierre lo cambia.
func TestFingerprint_SuprimeInstantesEquivalentes(t *testing.T) {
	loc := bogota(t)
	cfg := weekdayConfig()

	a := schedule.Compute(cfg, time.Date(2025, 3, 12, 10, 0, 0, 0, loc))
	b := schedule.Compute(cfg, time.Date(2025, 3, 12, 14, 45, 0, 0, loc))
	c := schedule.Compute(cfg, time.Date(2025, 3, 12, 18, 30, 0, 0, loc))

	assert.True(t, a.Equal(b), "avanzar el reloj dentro de la ventana no cambia el estado observable")
	assert.False(t, a.Equal(c), "cruzar el cierre sí cambia el estado")
}

// Activar mantenimiento cambia el fingerprint aunque la ventana no cambie.
func TestFingerprint_SensibleAMantenimiento(t *testing.T) {
	loc := bogota(t)
	now := time.Date(2025, 3, 12, 10, 0, 0, 0, loc)

	normal := schedule.Compute(weekdayConfig(), now)

	conMant := weekdayConfig()
	conMant.Maintenance = schedule.Maintenance{Enabled: true}
	mant := schedule.Compute(conMant, now)

	assert.False(t, normal.Equal(mant))
}

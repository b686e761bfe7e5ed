// Package schedule contiene la lógica pura de horarios de atención del kiosco:
// ventanas de operación, precedencia de mantenimiento y proyección de
// próxima apertura/cierre. No toca red ni base de datos: Compute es una
// función pura de (configuración, instante).
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Estados del kiosco.
const (
	StatusOpen        = "open"
	StatusClosed      = "closed"
	StatusMaintenance = "maintenance"
)

// Razones del estado.
const (
	ReasonOperatingWindow = "operating_window"
	ReasonOutsideHours    = "outside_operating_hours"
	ReasonNoWindows       = "no_windows_configured"
	ReasonMaintenance     = "maintenance"
)

// DefaultTimezone se usa cuando la zona configurada es inválida.
const DefaultTimezone = "America/Bogota"

// Horizonte máximo (días) para buscar la próxima apertura.
const nextOpenHorizonDays = 14

// DefaultMaintenanceMessage mensaje por defecto en modo mantenimiento.
const DefaultMaintenanceMessage = "Estamos en mantenimiento, volvemos pronto"

// Window es una ventana de operación: minutos del día [Start, End) y días
// ISO (1=lunes ... 7=domingo). Start > End indica ventana nocturna que cruza
// medianoche; Start == End significa todo el día.
type Window struct {
	Start int   `json:"start"`
	End   int   `json:"end"`
	Days  []int `json:"days"`
}

// Maintenance es la configuración del modo mantenimiento.
type Maintenance struct {
	Enabled bool       `json:"enabled"`
	Message string     `json:"message,omitempty"`
	Since   *time.Time `json:"since,omitempty"`
}

// Config es la entrada de Compute: zona horaria, ventanas y mantenimiento.
type Config struct {
	Timezone    string   `json:"timezone"`
	Windows     []Window `json:"windows"`
	Maintenance Maintenance
}

// Status es el estado calculado del kiosco. No se persiste.
type Status struct {
	Status      string
	Reason      string
	Message     string
	NextOpen    *time.Time
	NextClose   *time.Time
	Window      *Window // ventana que matcheó, si alguna
	Maintenance Maintenance
}

var weekdayNamesES = [8]string{"", "lunes", "martes", "miércoles", "jueves", "viernes", "sábado", "domingo"}

// isoWeekday convierte time.Weekday (domingo=0) a ISO (lunes=1 ... domingo=7).
func isoWeekday(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}

// hasDay indica si el día ISO está en el set de la ventana.
func (w Window) hasDay(day int) bool {
	for _, d := range w.Days {
		if d == day {
			return true
		}
	}
	return false
}

// contains evalúa pertenencia del instante (día ISO de hoy, día ISO de ayer,
// minutos del día) a la ventana, incluyendo el caso nocturno.
func (w Window) contains(today, yesterday, minutes int) bool {
	switch {
	case w.Start == w.End:
		// Todo el día en los días configurados.
		return w.hasDay(today)
	case w.Start < w.End:
		return w.hasDay(today) && minutes >= w.Start && minutes < w.End
	default:
		// Nocturna: tramo de la noche (hoy matchea) o tramo de la madrugada
		// (el día que abrió la ventana fue ayer).
		if minutes >= w.Start && w.hasDay(today) {
			return true
		}
		return minutes < w.End && w.hasDay(yesterday)
	}
}

// Validate verifica rangos de minutos y días de la ventana.
func (w Window) Validate() error {
	if w.Start < 0 || w.Start > 1439 || w.End < 0 || w.End > 1439 {
		return fmt.Errorf("minutos fuera de rango [0,1439]: start=%d end=%d", w.Start, w.End)
	}
	if len(w.Days) == 0 {
		return fmt.Errorf("ventana sin días configurados")
	}
	for _, d := range w.Days {
		if d < 1 || d > 7 {
			return fmt.Errorf("día fuera de rango [1,7]: %d", d)
		}
	}
	return nil
}

// Location resuelve la zona horaria configurada; si es inválida cae a
// DefaultTimezone y en último término a UTC.
func (c Config) Location() *time.Location {
	if c.Timezone != "" {
		if loc, err := time.LoadLocation(c.Timezone); err == nil {
			return loc
		}
	}
	if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
		return loc
	}
	return time.UTC
}

// Compute calcula el estado del kiosco para el instante now. Función pura:
// misma (config, now) produce siempre el mismo resultado.
func Compute(cfg Config, now time.Time) Status {
	loc := cfg.Location()
	local := now.In(loc)
	minutes := local.Hour()*60 + local.Minute()
	today := isoWeekday(local.Weekday())
	yesterday := isoWeekday(local.AddDate(0, 0, -1).Weekday())

	var matched *Window
	for i := range cfg.Windows {
		if cfg.Windows[i].Validate() != nil {
			continue
		}
		if cfg.Windows[i].contains(today, yesterday, minutes) {
			matched = &cfg.Windows[i]
			break
		}
	}

	// Mantenimiento tiene precedencia incondicional sobre open/closed.
	if cfg.Maintenance.Enabled {
		msg := cfg.Maintenance.Message
		if msg == "" {
			msg = DefaultMaintenanceMessage
		}
		st := Status{
			Status:      StatusMaintenance,
			Reason:      ReasonMaintenance,
			Message:     msg,
			Window:      matched,
			Maintenance: cfg.Maintenance,
		}
		st.NextOpen = nextOpen(cfg, local, local)
		return st
	}

	if matched != nil {
		closeAt := nextClose(*matched, local)
		st := Status{
			Status:      StatusOpen,
			Reason:      ReasonOperatingWindow,
			Message:     fmt.Sprintf("cierra a las %s", formatMinutes(matched.End)),
			NextClose:   &closeAt,
			Window:      matched,
			Maintenance: cfg.Maintenance,
		}
		st.NextOpen = nextOpen(cfg, local, closeAt)
		return st
	}

	st := Status{
		Status:      StatusClosed,
		Reason:      ReasonOutsideHours,
		Message:     "cerrado",
		Maintenance: cfg.Maintenance,
	}
	if len(cfg.Windows) == 0 {
		st.Reason = ReasonNoWindows
		return st
	}
	if open := nextOpen(cfg, local, local); open != nil {
		st.NextOpen = open
		w := windowOpeningAt(cfg, *open)
		if w != nil {
			st.Message = fmt.Sprintf("abre el %s a las %s (horario: %s-%s)",
				weekdayNamesES[isoWeekday(open.Weekday())],
				formatMinutes(w.Start), formatMinutes(w.Start), formatMinutes(w.End))
		}
	}
	return st
}

// nextClose proyecta el fin de la ventana sobre el día calendario correcto:
// si el instante del fin ya pasó (tramo nocturno), rueda al día siguiente.
func nextClose(w Window, local time.Time) time.Time {
	candidate := atMinutes(local, w.End)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate
}

// nextOpen busca hacia adelante, día por día hasta el horizonte, el primer
// inicio de ventana estrictamente posterior al ancla (el cierre si el kiosco
// está abierto, o now si está cerrado).
func nextOpen(cfg Config, local, anchor time.Time) *time.Time {
	var best *time.Time
	for d := 0; d <= nextOpenHorizonDays; d++ {
		day := local.AddDate(0, 0, d)
		dayISO := isoWeekday(day.Weekday())
		for _, w := range cfg.Windows {
			if w.Validate() != nil || !w.hasDay(dayISO) {
				continue
			}
			candidate := atMinutes(day, w.Start)
			if !candidate.After(anchor) {
				continue
			}
			if best == nil || candidate.Before(*best) {
				c := candidate
				best = &c
			}
		}
		if best != nil {
			return best
		}
	}
	return nil
}

// windowOpeningAt devuelve la ventana cuyo inicio coincide con el instante t.
func windowOpeningAt(cfg Config, t time.Time) *Window {
	minutes := t.Hour()*60 + t.Minute()
	day := isoWeekday(t.Weekday())
	for i := range cfg.Windows {
		w := &cfg.Windows[i]
		if w.Start == minutes && w.hasDay(day) {
			return w
		}
	}
	return nil
}

// atMinutes construye el instante del día de ref a los minutos dados, en la
// misma zona horaria.
func atMinutes(ref time.Time, minutes int) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), minutes/60, minutes%60, 0, 0, ref.Location())
}

func formatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Fingerprint serializa los campos observables del estado. Dos estados son
// equivalentes para broadcast si y solo si sus fingerprints coinciden: se usa
// para suprimir emisiones redundantes cuando avanza el reloj pero nada
// visible cambió.
func (s Status) Fingerprint() string {
	parts := []string{
		s.Status,
		s.Reason,
		s.Message,
		formatInstant(s.NextOpen),
		formatInstant(s.NextClose),
		strconv.FormatBool(s.Maintenance.Enabled),
		s.Maintenance.Message,
	}
	return strings.Join(parts, "|")
}

func formatInstant(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// Equal compara estados por fingerprint.
func (s Status) Equal(other Status) bool {
	return s.Fingerprint() == other.Fingerprint()
}

// Package status evalúa el estado del kiosco (abierto/cerrado/mantenimiento)
// a partir de la configuración y el instante actual.
package status

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhoicas/kiosco-api/internal/domain/entity"
	"github.com/jhoicas/kiosco-api/internal/domain/repository"
	"github.com/jhoicas/kiosco-api/internal/domain/schedule"
	"github.com/jhoicas/kiosco-api/pkg/logger"
)

// operatingHoursDoc es la forma del objeto guardado bajo operating_hours.
type operatingHoursDoc struct {
	Timezone string            `json:"timezone"`
	Windows  []schedule.Window `json:"windows"`
}

// Service lee operating_hours y maintenance_mode del Config Store y calcula
// el estado con schedule.Compute. Las dos lecturas de configuración se
// tratan como una unidad atómica de evaluación: un gate in-flight evita
// evaluaciones concurrentes solapadas dentro del proceso.
type Service struct {
	configRepo repository.ConfigRepository
	defaultTZ  string
	log        *logger.Logger
	now        func() time.Time

	evaluating atomic.Bool

	mu     sync.Mutex
	last   *schedule.Status
	lastFP string
}

// NewService construye el servicio de estado.
func NewService(configRepo repository.ConfigRepository, defaultTimezone string, log *logger.Logger) *Service {
	return &Service{
		configRepo: configRepo,
		defaultTZ:  defaultTimezone,
		log:        log,
		now:        time.Now,
	}
}

// Current devuelve el último estado evaluado, evaluando si aún no hay cache.
func (s *Service) Current(ctx context.Context) (schedule.Status, error) {
	s.mu.Lock()
	if s.last != nil {
		st := *s.last
		s.mu.Unlock()
		return st, nil
	}
	s.mu.Unlock()
	st, _, err := s.Evaluate(ctx)
	return st, err
}

// Evaluate corre una evaluación completa: lee configuración, calcula el
// estado y lo compara por fingerprint con la evaluación anterior del
// servicio. changed=true solo si algo observable cambió. Si ya hay una
// evaluación en vuelo devuelve el cache sin cambios; sin cache todavía
// (carrera de arranque) se evalúa de todos modos en vez de inventar un
// estado.
func (s *Service) Evaluate(ctx context.Context) (schedule.Status, bool, error) {
	if !s.evaluating.CompareAndSwap(false, true) {
		s.mu.Lock()
		if s.last != nil {
			st := *s.last
			s.mu.Unlock()
			return st, false, nil
		}
		s.mu.Unlock()
		return s.evaluate(ctx)
	}
	defer s.evaluating.Store(false)
	return s.evaluate(ctx)
}

func (s *Service) evaluate(ctx context.Context) (schedule.Status, bool, error) {
	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return schedule.Status{}, false, err
	}
	st := schedule.Compute(cfg, s.now())
	fp := st.Fingerprint()

	s.mu.Lock()
	changed := fp != s.lastFP
	s.last = &st
	s.lastFP = fp
	s.mu.Unlock()
	return st, changed, nil
}

// ComputeAt calcula el estado para un instante arbitrario sin tocar el
// cache. Útil para consultas "¿estará abierto a las X?".
func (s *Service) ComputeAt(ctx context.Context, at time.Time) (schedule.Status, error) {
	cfg, err := s.loadConfig(ctx)
	if err != nil {
		return schedule.Status{}, err
	}
	return schedule.Compute(cfg, at), nil
}

// loadConfig arma schedule.Config desde el Config Store. Valores no
// parseables se tratan como ausentes (se loguea en warn); zona inválida cae
// al default del servicio.
func (s *Service) loadConfig(ctx context.Context) (schedule.Config, error) {
	cfg := schedule.Config{Timezone: s.defaultTZ}

	hours, err := s.configRepo.Get(ctx, entity.ConfigKeyOperatingHours)
	if err != nil {
		return schedule.Config{}, err
	}
	if hours != nil {
		var doc operatingHoursDoc
		if hours.AsObject(&doc) {
			if doc.Timezone != "" {
				cfg.Timezone = doc.Timezone
			}
			cfg.Windows = doc.Windows
		} else {
			s.log.Warn().Msg("operating_hours no parseable: se trata como ausente")
		}
	}

	maint, err := s.configRepo.Get(ctx, entity.ConfigKeyMaintenanceMode)
	if err != nil {
		return schedule.Config{}, err
	}
	if maint != nil {
		var doc schedule.Maintenance
		if maint.AsObject(&doc) {
			cfg.Maintenance = doc
		} else if maint.Kind == entity.ConfigKindBool {
			cfg.Maintenance = schedule.Maintenance{Enabled: maint.Bool}
		} else {
			s.log.Warn().Msg("maintenance_mode no parseable: se trata como ausente")
		}
	}
	return cfg, nil
}

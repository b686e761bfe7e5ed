package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/kiosco-api/internal/domain/entity"
	"github.com/jhoicas/kiosco-api/internal/domain/repository"
	"github.com/jhoicas/kiosco-api/pkg/logger"
)

// Sender es el transporte de correo saliente (colaborador externo).
type Sender interface {
	Send(to, subject, body string) error
}

// SenderFactory construye el transporte bajo demanda. Falla rápido si el
// SMTP no está configurado; el worker loguea y deja las filas pending.
type SenderFactory func() (Sender, error)

// ProcessLock es el lock consultivo entre réplicas (colaborador externo,
// típicamente un advisory lock de PostgreSQL). No es un mutex local: la
// exclusión debe ser visible entre procesos.
type ProcessLock interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
	Held() bool
}

// WorkerConfig parámetros del worker de entrega.
type WorkerConfig struct {
	PollEvery  time.Duration // intervalo del ciclo (también backoff del lock)
	BatchSize  int           // máximo de filas reclamadas por ciclo
	StaleAfter time.Duration // antigüedad para robar un lock de fila vencido
}

// Worker es el job recurrente que entrega notificaciones pendientes.
// Entre réplicas solo una procesa a la vez: la que sostiene el ProcessLock.
// Las demás reintentan la adquisición en cada tick en vez de competir.
type Worker struct {
	repo    repository.NotificationLogRepository
	factory SenderFactory
	lock    ProcessLock
	cfg     WorkerConfig
	log     *logger.Logger
	now     func() time.Time

	id     string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker construye el worker con un id único de réplica.
func NewWorker(repo repository.NotificationLogRepository, factory SenderFactory, lock ProcessLock, cfg WorkerConfig, log *logger.Logger) *Worker {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Minute
	}
	return &Worker{
		repo:    repo,
		factory: factory,
		lock:    lock,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
		id:      uuid.New().String(),
	}
}

// Start lanza el loop en background. Llamar Stop en el apagado.
func (w *Worker) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop detiene el loop y suelta el advisory lock si esta réplica lo
// sostiene. Debe llamarse en el apagado ordenado del proceso.
func (w *Worker) Stop(ctx context.Context) {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	if err := w.lock.Release(ctx); err != nil {
		w.log.Warn().Err(err).Msg("liberación del advisory lock falló")
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.PollEvery)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick adquiere (o verifica) el lock entre réplicas y procesa un batch.
// Cualquier falla se loguea y se reintenta en el próximo tick: una falla
// transitoria jamás detiene el loop.
func (w *Worker) tick(ctx context.Context) {
	if !w.lock.Held() {
		got, err := w.lock.TryAcquire(ctx)
		if err != nil {
			w.log.Warn().Err(err).Msg("adquisición del advisory lock falló")
			return
		}
		if !got {
			w.log.Debug().Msg("otra réplica sostiene el worker de notificaciones")
			return
		}
		w.log.Info().Str("worker_id", w.id).Msg("advisory lock adquirido: esta réplica procesa notificaciones")
	}
	w.ProcessBatch(ctx)
}

// ProcessBatch reclama hasta BatchSize filas pendientes y las entrega.
// Exportado para poder dispararlo desde tests o tareas administrativas.
func (w *Worker) ProcessBatch(ctx context.Context) {
	now := w.now()
	claimed, err := w.repo.ClaimPending(ctx, w.id, w.cfg.BatchSize, now, w.cfg.StaleAfter)
	if err != nil {
		w.log.Warn().Err(err).Msg("claim de notificaciones pendientes falló")
		return
	}
	if len(claimed) == 0 {
		return
	}

	sender, err := w.factory()
	if err != nil {
		// Transporte no configurado: soltar los locks y dejar todo pending.
		w.log.Error().Err(err).Msg("transporte de correo no disponible")
		for _, n := range claimed {
			if rerr := w.repo.ReleaseLock(ctx, n.ID); rerr != nil {
				w.log.Warn().Err(rerr).Str("id", n.ID).Msg("liberación de lock de fila falló")
			}
		}
		return
	}

	for _, n := range claimed {
		w.deliver(ctx, sender, n)
	}
}

func (w *Worker) deliver(ctx context.Context, sender Sender, n *entity.NotificationLog) {
	now := w.now()
	err := sender.Send(n.Recipient, n.Subject, buildBody(n))
	if err == nil {
		if merr := w.repo.MarkSent(ctx, n.ID, now); merr != nil {
			w.log.Warn().Err(merr).Str("id", n.ID).Msg("marca de notificación enviada falló")
			return
		}
		w.log.Info().Str("id", n.ID).Str("recipient", n.Recipient).Msg("notificación entregada")
		return
	}

	attempt := n.AttemptCount + 1
	offset, ok := nextRetryOffset(attempt)
	if !ok {
		if merr := w.repo.MarkFailed(ctx, n.ID, err.Error(), now); merr != nil {
			w.log.Warn().Err(merr).Str("id", n.ID).Msg("marca de notificación fallida falló")
			return
		}
		w.log.Error().Err(err).Str("id", n.ID).Int("attempts", attempt).
			Msg("agenda de reintentos agotada: notificación en estado terminal")
		return
	}
	next := now.Add(offset)
	if merr := w.repo.MarkRetry(ctx, n.ID, attempt, err.Error(), next, now); merr != nil {
		w.log.Warn().Err(merr).Str("id", n.ID).Msg("agendado de reintento falló")
		return
	}
	w.log.Warn().Err(err).Str("id", n.ID).Int("attempt", attempt).Time("next_attempt_at", next).
		Msg("entrega falló, reintento agendado")
}

func buildBody(n *entity.NotificationLog) string {
	return fmt.Sprintf(
		"El producto %s está por debajo de su umbral de stock.\n\nStock actual: %d\nUmbral: %d\nDetectado: %s\n",
		n.Payload.ProductID, n.Payload.CurrentStock, n.Payload.Threshold,
		n.Payload.TriggeredAt.Format(time.RFC3339),
	)
}

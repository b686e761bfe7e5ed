package repository

import (
	"context"
	"time"

	"github.com/jhoicas/kiosco-api/internal/domain/entity"
)

// NotificationLogRepository define el puerto de persistencia del log de
// notificaciones y el patrón claim-and-lock del worker de entrega.
type NotificationLogRepository interface {
	Create(ctx context.Context, log *entity.NotificationLog) error
	// HasActiveAlert indica si existe una alerta activa (pending o sent, sin
	// resolved_at) para el producto y destinatario. Garantiza a lo sumo una
	// alerta activa por producto por quiebre.
	HasActiveAlert(ctx context.Context, productID, recipient string) (bool, error)
	// ResolveActive marca resolved_at en las alertas activas del producto
	// (soft-resolve; las filas nunca se borran).
	ResolveActive(ctx context.Context, productID string, resolvedAt time.Time) (int64, error)
	// ClaimPending reclama hasta limit filas pendientes vencidas y no
	// bloqueadas (o con lock más viejo que staleAfter), marcándolas con
	// locked_by=workerID. Equivalente a SELECT ... FOR UPDATE SKIP LOCKED:
	// dos workers nunca procesan la misma fila.
	ClaimPending(ctx context.Context, workerID string, limit int, now time.Time, staleAfter time.Duration) ([]*entity.NotificationLog, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	// MarkRetry registra un intento fallido: avanza attempt_count, guarda el
	// error y agenda next_attempt_at; la fila sigue pending.
	MarkRetry(ctx context.Context, id string, attemptCount int, lastError string, nextAttemptAt time.Time, at time.Time) error
	// MarkFailed estado terminal: agenda de reintentos agotada.
	MarkFailed(ctx context.Context, id string, lastError string, at time.Time) error
	// ReleaseLock suelta el lock de una fila sin cambiar su estado.
	ReleaseLock(ctx context.Context, id string) error
}

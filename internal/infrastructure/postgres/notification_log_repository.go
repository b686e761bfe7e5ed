package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/kiosco-api/internal/domain/entity"
	"github.com/jhoicas/kiosco-api/internal/domain/repository"
)

var _ repository.NotificationLogRepository = (*NotificationLogRepo)(nil)

// NotificationLogRepo implementación del log de notificaciones sobre
// PostgreSQL (usable con pool o tx).
type NotificationLogRepo struct {
	q Querier
}

// NewNotificationLogRepository construye el adaptador. Pasar pool o tx (Querier).
func NewNotificationLogRepository(q Querier) *NotificationLogRepo {
	return &NotificationLogRepo{q: q}
}

// Create persiste una notificación nueva en estado pending.
func (r *NotificationLogRepo) Create(ctx context.Context, log *entity.NotificationLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	payload, err := json.Marshal(log.Payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	query := `
		INSERT INTO notification_log (id, notification_type, recipient, subject, payload, status, attempt_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	_, err = r.q.Exec(ctx, query,
		log.ID, log.Type, log.Recipient, log.Subject, payload,
		log.Status, log.AttemptCount, log.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create notification log: %w", err)
	}
	return nil
}

// HasActiveAlert verifica si hay una alerta activa (pending o sent, sin
// resolved_at en el payload) para producto+destinatario.
func (r *NotificationLogRepo) HasActiveAlert(ctx context.Context, productID, recipient string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notification_log
			WHERE notification_type = $1
			  AND payload->>'product_id' = $2
			  AND recipient = $3
			  AND status IN ('pending', 'sent')
			  AND payload->>'resolved_at' IS NULL
		)`
	var exists bool
	if err := r.q.QueryRow(ctx, query, entity.NotificationTypeLowStock, productID, recipient).Scan(&exists); err != nil {
		return false, fmt.Errorf("check active alert: %w", err)
	}
	return exists, nil
}

// ResolveActive marca resolved_at en el payload de las alertas activas del
// producto. Soft-resolve: el estado de la fila no cambia y nada se borra.
func (r *NotificationLogRepo) ResolveActive(ctx context.Context, productID string, resolvedAt time.Time) (int64, error) {
	query := `
		UPDATE notification_log
		SET payload = jsonb_set(payload, '{resolved_at}', to_jsonb($2::timestamptz)),
		    updated_at = now()
		WHERE notification_type = $3
		  AND payload->>'product_id' = $1
		  AND status IN ('pending', 'sent')
		  AND payload->>'resolved_at' IS NULL`
	tag, err := r.q.Exec(ctx, query, productID, resolvedAt, entity.NotificationTypeLowStock)
	if err != nil {
		return 0, fmt.Errorf("resolve active alerts: %w", err)
	}
	return tag.RowsAffected(), nil
}

const notificationColumns = `id, notification_type, recipient, subject, payload, status, attempt_count, last_error, last_attempt_at, next_attempt_at, locked_by, locked_at, created_at, updated_at`

// ClaimPending reclama hasta limit filas pendientes vencidas cuyo lock está
// libre o vencido, marcándolas como bloqueadas por workerID. El subquery usa
// FOR UPDATE SKIP LOCKED: réplicas concurrentes nunca reclaman la misma fila.
func (r *NotificationLogRepo) ClaimPending(ctx context.Context, workerID string, limit int, now time.Time, staleAfter time.Duration) ([]*entity.NotificationLog, error) {
	query := `
		UPDATE notification_log
		SET locked_by = $1, locked_at = $2, updated_at = now()
		WHERE id IN (
			SELECT id FROM notification_log
			WHERE status = 'pending'
			  AND (next_attempt_at IS NULL OR next_attempt_at <= $2)
			  AND (locked_by IS NULL OR locked_at < $3)
			ORDER BY created_at
			LIMIT $4
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + notificationColumns
	rows, err := r.q.Query(ctx, query, workerID, now, now.Add(-staleAfter), limit)
	if err != nil {
		return nil, fmt.Errorf("claim pending notifications: %w", err)
	}
	defer rows.Close()

	var list []*entity.NotificationLog
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, n)
	}
	return list, rows.Err()
}

func scanNotification(rows pgx.Rows) (*entity.NotificationLog, error) {
	var n entity.NotificationLog
	var payload []byte
	if err := rows.Scan(&n.ID, &n.Type, &n.Recipient, &n.Subject, &payload, &n.Status,
		&n.AttemptCount, &n.LastError, &n.LastAttemptAt, &n.NextAttemptAt,
		&n.LockedBy, &n.LockedAt, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &n.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal notification payload: %w", err)
		}
	}
	return &n, nil
}

// MarkSent transiciona la fila a sent y suelta el lock.
func (r *NotificationLogRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE notification_log
		SET status = 'sent', last_attempt_at = $2, locked_by = NULL, locked_at = NULL, updated_at = now()
		WHERE id = $1`
	if _, err := r.q.Exec(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark notification sent: %w", err)
	}
	return nil
}

// MarkRetry registra un intento fallido y agenda el siguiente; la fila sigue
// pending y el lock se suelta para que cualquier worker la retome al vencer.
func (r *NotificationLogRepo) MarkRetry(ctx context.Context, id string, attemptCount int, lastError string, nextAttemptAt time.Time, at time.Time) error {
	query := `
		UPDATE notification_log
		SET attempt_count = $2, last_error = $3, last_attempt_at = $5, next_attempt_at = $4,
		    locked_by = NULL, locked_at = NULL, updated_at = now()
		WHERE id = $1`
	if _, err := r.q.Exec(ctx, query, id, attemptCount, lastError, nextAttemptAt, at); err != nil {
		return fmt.Errorf("mark notification retry: %w", err)
	}
	return nil
}

// MarkFailed transiciona la fila al estado terminal failed.
func (r *NotificationLogRepo) MarkFailed(ctx context.Context, id string, lastError string, at time.Time) error {
	query := `
		UPDATE notification_log
		SET status = 'failed', last_error = $2, last_attempt_at = $3, next_attempt_at = NULL,
		    locked_by = NULL, locked_at = NULL, updated_at = now()
		WHERE id = $1`
	if _, err := r.q.Exec(ctx, query, id, lastError, at); err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}

// ReleaseLock suelta el lock de una fila sin tocar su estado.
func (r *NotificationLogRepo) ReleaseLock(ctx context.Context, id string) error {
	query := `
		UPDATE notification_log
		SET locked_by = NULL, locked_at = NULL, updated_at = now()
		WHERE id = $1`
	if _, err := r.q.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("release notification lock: %w", err)
	}
	return nil
}

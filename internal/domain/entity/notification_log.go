package entity

import "time"

// Estados del ciclo de vida de una notificación.
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
	NotificationStatusFailed  = "failed"
)

// Tipos de notificación.
const (
	NotificationTypeLowStock = "low_stock"
)

// NotificationPayload es el contenido JSON de la columna payload.
// ResolvedAt marca el soft-resolve cuando el stock se recupera; las filas
// nunca se borran.
type NotificationPayload struct {
	ProductID    string     `json:"product_id"`
	CurrentStock int64      `json:"current_stock"`
	Threshold    int64      `json:"threshold"`
	TriggeredAt  time.Time  `json:"triggered_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

// NotificationLog es una fila del log de notificaciones con su estado de
// reintentos y el lock de worker (locked_by/locked_at).
type NotificationLog struct {
	ID            string
	Type          string
	Recipient     string
	Subject       string
	Payload       NotificationPayload
	Status        string
	AttemptCount  int
	LastError     *string
	LastAttemptAt *time.Time
	NextAttemptAt *time.Time
	LockedBy      *string
	LockedAt      *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

package dto

import (
	"time"

	"github.com/jhoicas/kiosco-api/internal/domain/entity"
)

// DeductRequest body para POST /api/inventory/deduct. La capa de pagos lo
// invoca después de confirmar la transacción.
type DeductRequest struct {
	ProductID     string         `json:"product_id"`
	Quantity      int64          `json:"quantity"`
	TransactionID string         `json:"transaction_id,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// DeductResponse resultado de la deducción.
type DeductResponse struct {
	CurrentStock    int64 `json:"current_stock"`
	Delta           int64 `json:"delta"`
	Shortfall       int64 `json:"shortfall"`
	TrackingEnabled bool  `json:"tracking_enabled"`
}

// SetStockRequest body para PUT /api/inventory/products/:id/stock.
// Reconcile=true registra el asiento como reconciliación (conteo físico).
type SetStockRequest struct {
	Quantity  *int64 `json:"quantity"`
	Reason    string `json:"reason,omitempty"`
	Reconcile bool   `json:"reconcile,omitempty"`
}

// TrackingRequest body para PUT /api/inventory/tracking.
type TrackingRequest struct {
	Enabled *bool `json:"enabled"`
}

// TrackingResponse estado del toggle tras el cambio.
type TrackingResponse struct {
	Enabled  bool `json:"enabled"`
	Previous bool `json:"previous"`
}

// SnapshotDTO fila de la vista de inventario en respuestas.
type SnapshotDTO struct {
	ProductID         string     `json:"product_id"`
	CurrentStock      int64      `json:"current_stock"`
	LowStockThreshold int64      `json:"low_stock_threshold"`
	LowStock          bool       `json:"low_stock"`
	Negative          bool       `json:"negative"`
	LedgerBalance     int64      `json:"ledger_balance"`
	LastActivityAt    *time.Time `json:"last_activity_at,omitempty"`
	IsActive          bool       `json:"is_active"`
	Availability      string     `json:"availability"`
}

// NewSnapshotDTO mapea la entidad a la respuesta.
func NewSnapshotDTO(s *entity.Snapshot) SnapshotDTO {
	return SnapshotDTO{
		ProductID:         s.ProductID,
		CurrentStock:      s.CurrentStock,
		LowStockThreshold: s.LowStockThreshold,
		LowStock:          s.LowStock,
		Negative:          s.Negative,
		LedgerBalance:     s.LedgerBalance,
		LastActivityAt:    s.LastActivityAt,
		IsActive:          s.IsActive,
		Availability:      s.Availability(),
	}
}

// NewSnapshotDTOList mapea una lista de snapshots.
func NewSnapshotDTOList(list []*entity.Snapshot) []SnapshotDTO {
	out := make([]SnapshotDTO, 0, len(list))
	for _, s := range list {
		out = append(out, NewSnapshotDTO(s))
	}
	return out
}

package inventory

import (
	"context"

	"github.com/jhoicas/kiosco-api/internal/domain/entity"
	"github.com/jhoicas/kiosco-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando
// repositorios atados a esa tx. Garantiza atomicidad para el motor de
// inventario: el lock de fila vive exactamente lo que dura el callback.
type TxRunner interface {
	Run(ctx context.Context, fn func(
		stockRepo repository.StockRepository,
		ledgerRepo repository.LedgerRepository,
	) error) error
}

// Notifier consume el snapshot después de cada mutación para evaluar el
// estado de stock bajo (encolar o resolver alertas).
type Notifier interface {
	Evaluate(ctx context.Context, snapshot *entity.Snapshot)
}

// Publisher empuja cambios de inventario y disponibilidad a los clientes
// conectados. Best-effort: el motor no espera confirmación.
type Publisher interface {
	PublishInventory(snapshot *entity.Snapshot)
	PublishAvailability(productID, availability string)
	PublishTracking(enabled bool)
}

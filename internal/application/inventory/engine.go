package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/kiosco-api/internal/domain"
	"github.com/jhoicas/kiosco-api/internal/domain/entity"
	"github.com/jhoicas/kiosco-api/internal/domain/repository"
	"github.com/jhoicas/kiosco-api/pkg/logger"
)

// Engine es el motor de inventario: contabilidad autoritativa y no negativa
// del stock físico con libro append-only. Las deducciones de compra corren
// dentro de una transacción con bloqueo de fila (SELECT FOR UPDATE) y nunca
// fallan por stock insuficiente: el faltante se registra como shortfall,
// porque el pago ya fue confirmado aguas arriba.
type Engine struct {
	txRunner     TxRunner
	stockRepo    repository.StockRepository
	snapshotRepo repository.SnapshotRepository
	configRepo   repository.ConfigRepository
	notifier     Notifier
	publisher    Publisher
	log          *logger.Logger
	now          func() time.Time
}

// NewEngine construye el motor. notifier y publisher pueden ser nil (ej. en
// herramientas de migración); el pipeline post-mutación los salta.
func NewEngine(
	txRunner TxRunner,
	stockRepo repository.StockRepository,
	snapshotRepo repository.SnapshotRepository,
	configRepo repository.ConfigRepository,
	notifier Notifier,
	publisher Publisher,
	log *logger.Logger,
) *Engine {
	return &Engine{
		txRunner:     txRunner,
		stockRepo:    stockRepo,
		snapshotRepo: snapshotRepo,
		configRepo:   configRepo,
		notifier:     notifier,
		publisher:    publisher,
		log:          log,
		now:          time.Now,
	}
}

// DeductResult resultado de una deducción de compra.
type DeductResult struct {
	CurrentStock    int64
	Delta           int64
	Shortfall       int64
	TrackingEnabled bool
}

// TrackingChange resultado de cambiar el toggle de tracking.
type TrackingChange struct {
	Enabled  bool
	Previous bool
}

// TrackingState lee el toggle de tracking de inventario. Ausente = activo.
func (uc *Engine) TrackingState(ctx context.Context) (bool, error) {
	v, err := uc.configRepo.Get(ctx, entity.ConfigKeyTrackingEnabled)
	if err != nil {
		return false, err
	}
	if v == nil {
		return true, nil
	}
	return v.AsBool(true), nil
}

// SetTrackingState cambia el toggle. Apagarlo preserva los conteos
// históricos: las deducciones posteriores son no-ops hasta reactivarlo.
func (uc *Engine) SetTrackingState(ctx context.Context, enabled bool, actor string) (*TrackingChange, error) {
	previous, err := uc.TrackingState(ctx)
	if err != nil {
		return nil, err
	}
	if err := uc.configRepo.Set(ctx, entity.ConfigKeyTrackingEnabled, entity.NewBoolValue(enabled), actor); err != nil {
		return nil, err
	}
	uc.log.Info().Bool("enabled", enabled).Bool("previous", previous).Str("actor", actor).
		Msg("toggle de tracking de inventario actualizado")
	if uc.publisher != nil {
		uc.publisher.PublishTracking(enabled)
	}
	return &TrackingChange{Enabled: enabled, Previous: previous}, nil
}

// Deduct aplica la deducción de una compra. quantity debe ser entero
// positivo. Si el tracking está apagado la operación es un no-op que reporta
// TrackingEnabled=false. El stock nunca queda negativo: se hace clamp en
// cero y el exceso solicitado queda registrado como shortfall en el asiento.
func (uc *Engine) Deduct(ctx context.Context, productID string, quantity int64, transactionID string, meta map[string]any) (*DeductResult, error) {
	if productID == "" || quantity <= 0 {
		return nil, domain.ErrInvalidInput
	}

	enabled, err := uc.TrackingState(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		stock, err := uc.stockRepo.Get(ctx, productID)
		if err != nil {
			return nil, err
		}
		return &DeductResult{CurrentStock: stock.StockQuantity, TrackingEnabled: false}, nil
	}

	now := uc.now()
	result := &DeductResult{TrackingEnabled: true}

	err = uc.txRunner.Run(ctx, func(stockRepo repository.StockRepository, ledgerRepo repository.LedgerRepository) error {
		// Bloquea la fila del producto (SELECT FOR UPDATE): el lock se
		// libera en el commit y garantiza el orden de asientos por producto.
		stock, err := stockRepo.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if stock.DeletedAt != nil {
			return domain.ErrNotFound
		}

		current := stock.StockQuantity
		unclamped := current - quantity
		resulting := unclamped
		if resulting < 0 {
			resulting = 0
		}
		applied := resulting - current
		shortfall := int64(0)
		if unclamped < 0 {
			shortfall = -unclamped
		}

		if err := stockRepo.UpdateQuantity(ctx, productID, resulting); err != nil {
			return err
		}

		metadata := make(map[string]any, len(meta)+3)
		for k, v := range meta {
			metadata[k] = v
		}
		metadata[entity.MetaRequestedQuantity] = quantity
		metadata[entity.MetaAppliedQuantity] = -applied
		metadata[entity.MetaShortfall] = shortfall

		entry := &entity.LedgerEntry{
			ID:                uuid.New().String(),
			ProductID:         productID,
			Delta:             applied,
			ResultingQuantity: resulting,
			Source:            entity.LedgerSourcePurchase,
			Reason:            "deducción por compra",
			TransactionID:     nullable(transactionID),
			Metadata:          metadata,
			CreatedAt:         now,
		}
		if err := ledgerRepo.Create(ctx, entry); err != nil {
			return err
		}

		result.CurrentStock = resulting
		result.Delta = applied
		result.Shortfall = shortfall
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.afterMutation(ctx, productID)
	return result, nil
}

// SetAbsolute fija el stock de un producto a un valor absoluto (ajuste
// manual). newQuantity debe ser entero no negativo. Los fixtures sembrados
// por el sistema no generan asiento.
func (uc *Engine) SetAbsolute(ctx context.Context, productID string, newQuantity int64, reason, actor string) (*entity.Snapshot, error) {
	return uc.setAbsolute(ctx, productID, newQuantity, reason, actor, entity.LedgerSourceManualAdjustment)
}

// Reconcile fija el stock al conteo físico verificado. El asiento usa
// source=reconciliation, lo que reinicia el ancla del balance del libro.
func (uc *Engine) Reconcile(ctx context.Context, productID string, countedQuantity int64, actor string) (*entity.Snapshot, error) {
	return uc.setAbsolute(ctx, productID, countedQuantity, "conteo físico", actor, entity.LedgerSourceReconciliation)
}

func (uc *Engine) setAbsolute(ctx context.Context, productID string, newQuantity int64, reason, actor, source string) (*entity.Snapshot, error) {
	if productID == "" || newQuantity < 0 {
		return nil, domain.ErrInvalidInput
	}

	now := uc.now()
	err := uc.txRunner.Run(ctx, func(stockRepo repository.StockRepository, ledgerRepo repository.LedgerRepository) error {
		stock, err := stockRepo.GetForUpdate(ctx, productID)
		if err != nil {
			return err
		}
		if stock.DeletedAt != nil {
			return domain.ErrNotFound
		}

		delta := newQuantity - stock.StockQuantity
		if err := stockRepo.UpdateQuantity(ctx, productID, newQuantity); err != nil {
			return err
		}
		if stock.IsSystemSeed {
			return nil
		}
		entry := &entity.LedgerEntry{
			ID:                uuid.New().String(),
			ProductID:         productID,
			Delta:             delta,
			ResultingQuantity: newQuantity,
			Source:            source,
			Reason:            reason,
			ActorID:           nullable(actor),
			CreatedAt:         now,
		}
		return ledgerRepo.Create(ctx, entry)
	})
	if err != nil {
		return nil, err
	}

	uc.afterMutation(ctx, productID)

	snap, err := uc.snapshotRepo.Get(ctx, productID)
	if err != nil {
		// La vista puede ir un paso atrás del commit; el caller tolera
		// la brecha y reintenta la lectura.
		uc.log.Warn().Err(err).Str("product_id", productID).Msg("snapshot no disponible tras el ajuste")
		return nil, err
	}
	return snap, nil
}

// ListSnapshot lista la vista de inventario con filtros y paginación.
func (uc *Engine) ListSnapshot(ctx context.Context, filter repository.SnapshotFilter) ([]*entity.Snapshot, error) {
	return uc.snapshotRepo.List(ctx, filter)
}

// ListDiscrepancies lista los productos cuyo balance del libro quedó
// negativo: demanda registrada que el stock reconciliado no explica.
// Requieren revisión humana; no son un error.
func (uc *Engine) ListDiscrepancies(ctx context.Context) ([]*entity.Snapshot, error) {
	return uc.snapshotRepo.ListDiscrepancies(ctx)
}

// afterMutation es el pipeline post-mutación, compartido por deducciones y
// ajustes, invocado una vez por mutación lógica después del commit:
// refresh de la vista -> relectura del snapshot -> evaluación de stock bajo
// -> broadcast del snapshot y de la disponibilidad pública. Las fallas aquí
// se loguean y no se propagan: nunca detienen el flujo del caller.
func (uc *Engine) afterMutation(ctx context.Context, productID string) {
	if err := uc.snapshotRepo.Refresh(ctx); err != nil {
		uc.log.Warn().Err(err).Msg("refresh de la vista de inventario falló")
	}
	snap, err := uc.snapshotRepo.Get(ctx, productID)
	if err != nil {
		uc.log.Warn().Err(err).Str("product_id", productID).Msg("lectura del snapshot falló tras la mutación")
		return
	}
	if uc.notifier != nil {
		uc.notifier.Evaluate(ctx, snap)
	}
	if uc.publisher != nil {
		uc.publisher.PublishInventory(snap)
		uc.publisher.PublishAvailability(snap.ProductID, snap.Availability())
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

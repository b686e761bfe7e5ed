package entity

import "time"

// Orígenes de un asiento del libro de inventario.
const (
	LedgerSourcePurchase         = "purchase"          // deducción por compra
	LedgerSourceManualAdjustment = "manual_adjustment" // ajuste manual de un operador
	LedgerSourceReconciliation   = "reconciliation"    // conteo físico que reinicia el balance
	LedgerSourceSystem           = "system"            // eventos del sistema (ej. toggle de tracking)
)

// Claves conocidas dentro de Metadata.
const (
	MetaRequestedQuantity = "requested_quantity"
	MetaAppliedQuantity   = "applied_quantity"
	MetaShortfall         = "shortfall"
)

// LedgerEntry es un asiento del libro de inventario (append-only: nunca se
// actualiza ni se borra). Delta es con signo; ResultingQuantity es el stock
// físico después de aplicar el asiento.
type LedgerEntry struct {
	ID                string
	ProductID         string
	Delta             int64
	ResultingQuantity int64
	Source            string
	Reason            string
	ActorID           *string
	TransactionID     *string
	Metadata          map[string]any
	CreatedAt         time.Time
}

// ValidLedgerSource indica si source es uno de los orígenes conocidos.
func ValidLedgerSource(source string) bool {
	switch source {
	case LedgerSourcePurchase, LedgerSourceManualAdjustment, LedgerSourceReconciliation, LedgerSourceSystem:
		return true
	}
	return false
}

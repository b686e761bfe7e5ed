package entity

import "time"

// Snapshot es la vista derivada (materializada) del inventario de un producto.
// Combina el stock actual con banderas calculadas; puede estar brevemente
// desactualizada entre el commit de una mutación y el refresh de la vista.
type Snapshot struct {
	ProductID         string
	CurrentStock      int64
	LowStockThreshold int64
	LowStock          bool
	Negative          bool // balance del libro < 0 desde la última reconciliación
	LedgerBalance     int64
	LastActivityAt    *time.Time
	IsActive          bool
	DeletedAt         *time.Time
}

// Estados de disponibilidad pública de un producto (vista para clientes del kiosco).
const (
	AvailabilityOutOfStock = "out_of_stock"
	AvailabilityLowStock   = "low_stock"
	AvailabilityAvailable  = "available"
)

// Availability deriva la vista pública de disponibilidad a partir del snapshot.
func (s *Snapshot) Availability() string {
	switch {
	case s.CurrentStock <= 0:
		return AvailabilityOutOfStock
	case s.LowStock:
		return AvailabilityLowStock
	default:
		return AvailabilityAvailable
	}
}

// HasDiscrepancy indica si el producto requiere revisión humana: la demanda
// registrada excedió el stock que la reconciliación puede explicar.
func (s *Snapshot) HasDiscrepancy() bool {
	return s.Negative || s.LedgerBalance < 0
}

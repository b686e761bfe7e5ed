package repository

import (
	"context"

	"github.com/jhoicas/kiosco-api/internal/domain/entity"
)

// SnapshotFilter filtros para listar la vista de inventario.
type SnapshotFilter struct {
	OnlyLowStock    bool
	IncludeInactive bool
	Limit           int
	Offset          int
}

// SnapshotRepository define el puerto de la vista derivada de inventario.
// Refresh reconstruye la vista después de cada mutación; los lectores deben
// tolerar una breve desactualización entre commit y refresh.
type SnapshotRepository interface {
	Refresh(ctx context.Context) error
	Get(ctx context.Context, productID string) (*entity.Snapshot, error)
	List(ctx context.Context, filter SnapshotFilter) ([]*entity.Snapshot, error)
	// ListDiscrepancies devuelve los productos con bandera negativa o balance
	// del libro < 0, ordenados por actividad más reciente.
	ListDiscrepancies(ctx context.Context) ([]*entity.Snapshot, error)
}

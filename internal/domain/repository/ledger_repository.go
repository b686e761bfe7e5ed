package repository

import (
	"context"
	"time"

	"github.com/jhoicas/kiosco-api/internal/domain/entity"
)

// LedgerRepository define el puerto de persistencia del libro de inventario.
// El libro es append-only: no hay Update ni Delete.
type LedgerRepository interface {
	Create(ctx context.Context, entry *entity.LedgerEntry) error
	ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.LedgerEntry, error)
	// BalanceSince suma los deltas de un producto desde la última
	// reconciliación. Puede ser negativo: eso señala discrepancia.
	BalanceSince(ctx context.Context, productID string) (int64, error)
}

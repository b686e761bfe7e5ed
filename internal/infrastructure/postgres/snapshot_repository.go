package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/kiosco-api/internal/domain"
	"github.com/jhoicas/kiosco-api/internal/domain/entity"
	"github.com/jhoicas/kiosco-api/internal/domain/repository"
)

var _ repository.SnapshotRepository = (*SnapshotRepo)(nil)

// SnapshotRepo implementación de la vista derivada de inventario sobre una
// materialized view de PostgreSQL (inventory_snapshot). La vista junta
// product_stock con el balance del libro desde la última reconciliación.
type SnapshotRepo struct {
	q Querier
}

// NewSnapshotRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSnapshotRepository(q Querier) *SnapshotRepo {
	return &SnapshotRepo{q: q}
}

// Refresh reconstruye la vista materializada. CONCURRENTLY evita bloquear a
// los lectores; requiere el índice único por product_id de la vista.
func (r *SnapshotRepo) Refresh(ctx context.Context) error {
	if _, err := r.q.Exec(ctx, `REFRESH MATERIALIZED VIEW CONCURRENTLY inventory_snapshot`); err != nil {
		return fmt.Errorf("refresh inventory snapshot: %w", err)
	}
	return nil
}

const snapshotColumns = `product_id, current_stock, low_stock_threshold, low_stock, negative, ledger_balance, last_activity_at, is_active, deleted_at`

func scanSnapshot(row pgx.Row) (*entity.Snapshot, error) {
	var s entity.Snapshot
	err := row.Scan(&s.ProductID, &s.CurrentStock, &s.LowStockThreshold, &s.LowStock,
		&s.Negative, &s.LedgerBalance, &s.LastActivityAt, &s.IsActive, &s.DeletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan snapshot: %w", err)
	}
	return &s, nil
}

// Get obtiene el snapshot de un producto.
func (r *SnapshotRepo) Get(ctx context.Context, productID string) (*entity.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM inventory_snapshot WHERE product_id = $1`
	return scanSnapshot(r.q.QueryRow(ctx, query, productID))
}

// List lista snapshots con filtros y paginación.
func (r *SnapshotRepo) List(ctx context.Context, filter repository.SnapshotFilter) ([]*entity.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM inventory_snapshot WHERE deleted_at IS NULL`
	if !filter.IncludeInactive {
		query += ` AND is_active`
	}
	if filter.OnlyLowStock {
		query += ` AND low_stock`
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` ORDER BY product_id LIMIT $1 OFFSET $2`

	rows, err := r.q.Query(ctx, query, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list snapshot: %w", err)
	}
	defer rows.Close()
	return collectSnapshots(rows)
}

// ListDiscrepancies devuelve los productos donde las deducciones registradas
// exceden lo que el stock reconciliado puede explicar, los más recientes primero.
func (r *SnapshotRepo) ListDiscrepancies(ctx context.Context) ([]*entity.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM inventory_snapshot
		WHERE negative OR ledger_balance < 0
		ORDER BY last_activity_at DESC NULLS LAST`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list discrepancies: %w", err)
	}
	defer rows.Close()
	return collectSnapshots(rows)
}

func collectSnapshots(rows pgx.Rows) ([]*entity.Snapshot, error) {
	var list []*entity.Snapshot
	for rows.Next() {
		var s entity.Snapshot
		if err := rows.Scan(&s.ProductID, &s.CurrentStock, &s.LowStockThreshold, &s.LowStock,
			&s.Negative, &s.LedgerBalance, &s.LastActivityAt, &s.IsActive, &s.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		list = append(list, &s)
	}
	return list, rows.Err()
}

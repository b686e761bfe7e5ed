package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/kiosco-api/internal/domain/entity"
	"github.com/jhoicas/kiosco-api/internal/domain/repository"
)

var _ repository.LedgerRepository = (*LedgerRepo)(nil)

// LedgerRepo implementación del libro de inventario sobre PostgreSQL
// (usable con pool o tx). La tabla es append-only.
type LedgerRepo struct {
	q Querier
}

// NewLedgerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewLedgerRepository(q Querier) *LedgerRepo {
	return &LedgerRepo{q: q}
}

// Create persiste un asiento del libro.
func (r *LedgerRepo) Create(ctx context.Context, entry *entity.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	var meta []byte
	if entry.Metadata != nil {
		var err error
		meta, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal ledger metadata: %w", err)
		}
	}
	query := `
		INSERT INTO inventory_ledger (id, product_id, delta, resulting_quantity, source, reason, actor_id, transaction_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		entry.ID, entry.ProductID, entry.Delta, entry.ResultingQuantity,
		entry.Source, entry.Reason, entry.ActorID, entry.TransactionID,
		meta, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create ledger entry: %w", err)
	}
	return nil
}

// ListByProduct lista asientos de un producto en un rango de fechas.
func (r *LedgerRepo) ListByProduct(ctx context.Context, productID string, from, to *time.Time, limit, offset int) ([]*entity.LedgerEntry, error) {
	query := `
		SELECT id, product_id, delta, resulting_quantity, source, reason, actor_id, transaction_id, metadata, created_at
		FROM inventory_ledger WHERE product_id = $1`
	args := []any{productID}
	pos := 2
	if from != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", pos)
		args = append(args, *from)
		pos++
	}
	if to != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", pos)
		args = append(args, *to)
		pos++
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, limit, offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger by product: %w", err)
	}
	defer rows.Close()
	var list []*entity.LedgerEntry
	for rows.Next() {
		var e entity.LedgerEntry
		var meta []byte
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Delta, &e.ResultingQuantity, &e.Source,
			&e.Reason, &e.ActorID, &e.TransactionID, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Metadata)
		}
		list = append(list, &e)
	}
	return list, rows.Err()
}

// BalanceSince suma los deltas del producto desde su última reconciliación
// (o desde el inicio si nunca se reconcilió). Un balance negativo señala
// discrepancia sin resolver.
func (r *LedgerRepo) BalanceSince(ctx context.Context, productID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(delta), 0)
		FROM inventory_ledger
		WHERE product_id = $1
		  AND created_at > COALESCE(
			(SELECT MAX(created_at) FROM inventory_ledger
			 WHERE product_id = $1 AND source = 'reconciliation'),
			'-infinity'::timestamptz)`
	var balance int64
	if err := r.q.QueryRow(ctx, query, productID).Scan(&balance); err != nil {
		return 0, fmt.Errorf("ledger balance: %w", err)
	}
	return balance, nil
}

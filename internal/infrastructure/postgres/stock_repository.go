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

var _ repository.StockRepository = (*StockRepo)(nil)

// StockRepo implementación de StockRepository sobre PostgreSQL (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

const stockColumns = `product_id, stock_quantity, low_stock_threshold, is_active, is_system_seed, deleted_at, updated_at`

func scanStock(row pgx.Row) (*entity.ProductStock, error) {
	var s entity.ProductStock
	err := row.Scan(&s.ProductID, &s.StockQuantity, &s.LowStockThreshold, &s.IsActive, &s.IsSystemSeed, &s.DeletedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan stock: %w", err)
	}
	return &s, nil
}

// Get obtiene la fila de stock de un producto.
func (r *StockRepo) Get(ctx context.Context, productID string) (*entity.ProductStock, error) {
	query := `
		SELECT ` + stockColumns + `
		FROM product_stock WHERE product_id = $1`
	return scanStock(r.q.QueryRow(ctx, query, productID))
}

// GetForUpdate obtiene el stock y bloquea la fila para update (SELECT FOR UPDATE).
// El lock se mantiene hasta el commit/rollback de la transacción del caller.
func (r *StockRepo) GetForUpdate(ctx context.Context, productID string) (*entity.ProductStock, error) {
	query := `
		SELECT ` + stockColumns + `
		FROM product_stock WHERE product_id = $1
		FOR UPDATE`
	return scanStock(r.q.QueryRow(ctx, query, productID))
}

// UpdateQuantity escribe la nueva cantidad física. Nunca se persiste negativa:
// el motor hace el clamp antes de llamar aquí.
func (r *StockRepo) UpdateQuantity(ctx context.Context, productID string, quantity int64) error {
	query := `
		UPDATE product_stock SET stock_quantity = $2, updated_at = now()
		WHERE product_id = $1`
	tag, err := r.q.Exec(ctx, query, productID, quantity)
	if err != nil {
		return fmt.Errorf("update stock quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

package repository

import (
	"context"

	"github.com/jhoicas/kiosco-api/internal/domain/entity"
)

// StockRepository define el puerto para leer/mutar el stock físico de un
// producto. GetForUpdate se usa dentro de transacciones para garantizar
// consistencia (SELECT FOR UPDATE).
type StockRepository interface {
	Get(ctx context.Context, productID string) (*entity.ProductStock, error)
	// GetForUpdate bloquea la fila del producto para update (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, productID string) (*entity.ProductStock, error)
	UpdateQuantity(ctx context.Context, productID string, quantity int64) error
}

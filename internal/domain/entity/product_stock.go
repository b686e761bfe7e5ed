package entity

import "time"

// ProductStock representa el conteo físico de stock de un producto del kiosco.
// El catálogo es dueño de la fila; el motor de inventario solo muta StockQuantity.
// Invariante: StockQuantity nunca se persiste negativo.
type ProductStock struct {
	ProductID         string
	StockQuantity     int64
	LowStockThreshold int64
	IsActive          bool
	IsSystemSeed      bool // fixture sembrado por el sistema: sus ajustes no generan asiento
	DeletedAt         *time.Time
	UpdatedAt         time.Time
}

package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/kiosco-api/internal/application/inventory"
	"github.com/jhoicas/kiosco-api/internal/application/realtime"
	"github.com/jhoicas/kiosco-api/internal/application/status"
	"github.com/jhoicas/kiosco-api/internal/domain/repository"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Engine     *inventory.Engine
	StatusSvc  *status.Service
	ConfigRepo repository.ConfigRepository
	Hub        *realtime.Hub
	JWTSecret  string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Kiosco (público): estado y stream de eventos
	kiosk := api.Group("/kiosk")
	kioskHandler := NewKioskHandler(deps.StatusSvc, deps.ConfigRepo, deps.Hub)
	eventsHandler := NewEventsHandler(deps.Hub)
	kiosk.Get("/status", kioskHandler.GetStatus)
	kiosk.Get("/events", eventsHandler.Stream)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Configuración del kiosco (solo admin)
	adminKiosk := protected.Group("/kiosk", RequireRole("admin"))
	adminKiosk.Put("/maintenance", kioskHandler.SetMaintenance)
	adminKiosk.Put("/operating-hours", kioskHandler.SetOperatingHours)

	// Inventario (protegido; deduct lo invoca la capa de pagos con su token)
	inv := protected.Group("/inventory")
	inventoryHandler := NewInventoryHandler(deps.Engine)
	inv.Post("/deduct", inventoryHandler.Deduct)
	inv.Get("/snapshot", inventoryHandler.ListSnapshot)
	inv.Get("/tracking", inventoryHandler.GetTracking)

	// Operaciones de administración de inventario (solo admin)
	adminInv := inv.Group("/", RequireRole("admin"))
	adminInv.Put("/products/:id/stock", inventoryHandler.SetStock)
	adminInv.Put("/tracking", inventoryHandler.SetTracking)
	adminInv.Get("/discrepancies", inventoryHandler.ListDiscrepancies)
}

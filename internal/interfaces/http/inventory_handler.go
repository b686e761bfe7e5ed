package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/kiosco-api/internal/application/dto"
	"github.com/jhoicas/kiosco-api/internal/application/inventory"
	"github.com/jhoicas/kiosco-api/internal/domain"
	"github.com/jhoicas/kiosco-api/internal/domain/entity"
	"github.com/jhoicas/kiosco-api/internal/domain/repository"
)

// InventoryHandler maneja las peticiones HTTP del motor de inventario (protegido).
type InventoryHandler struct {
	engine *inventory.Engine
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(engine *inventory.Engine) *InventoryHandler {
	return &InventoryHandler{engine: engine}
}

// Deduct godoc
// @Summary      Deducción de stock por compra
// @Description  La capa de pagos la invoca tras confirmar la transacción.
//
//	Nunca rechaza por stock insuficiente: el faltante queda como shortfall.
//
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.DeductRequest  true  "product_id, quantity, transaction_id"
// @Success      200   {object}  dto.DeductResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/inventory/deduct [post]
func (h *InventoryHandler) Deduct(c *fiber.Ctx) error {
	var in dto.DeductRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	result, err := h.engine.Deduct(c.Context(), in.ProductID, in.Quantity, in.TransactionID, in.Metadata)
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(dto.DeductResponse{
		CurrentStock:    result.CurrentStock,
		Delta:           result.Delta,
		Shortfall:       result.Shortfall,
		TrackingEnabled: result.TrackingEnabled,
	})
}

// SetStock godoc
// @Summary      Ajuste manual o reconciliación de stock
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string               true  "ID del producto"
// @Param        body  body  dto.SetStockRequest  true  "quantity, reason, reconcile"
// @Success      200   {object}  dto.SnapshotDTO
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Router       /api/inventory/products/{id}/stock [put]
func (h *InventoryHandler) SetStock(c *fiber.Ctx) error {
	productID := c.Params("id")
	var in dto.SetStockRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.Quantity == nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "quantity requerido"})
	}
	actor := GetUserID(c)

	var snap *entity.Snapshot
	var err error
	if in.Reconcile {
		snap, err = h.engine.Reconcile(c.Context(), productID, *in.Quantity, actor)
	} else {
		reason := in.Reason
		if reason == "" {
			reason = "ajuste manual"
		}
		snap, err = h.engine.SetAbsolute(c.Context(), productID, *in.Quantity, reason, actor)
	}
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(dto.NewSnapshotDTO(snap))
}

// GetTracking godoc
// @Summary      Estado del toggle de tracking de inventario
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]bool
// @Router       /api/inventory/tracking [get]
func (h *InventoryHandler) GetTracking(c *fiber.Ctx) error {
	enabled, err := h.engine.TrackingState(c.Context())
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(fiber.Map{"enabled": enabled})
}

// SetTracking godoc
// @Summary      Cambiar el toggle de tracking de inventario
// @Description  Apagarlo convierte las deducciones en no-ops preservando los
//
//	conteos históricos.
//
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.TrackingRequest  true  "enabled"
// @Success      200   {object}  dto.TrackingResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/inventory/tracking [put]
func (h *InventoryHandler) SetTracking(c *fiber.Ctx) error {
	var in dto.TrackingRequest
	if err := c.BodyParser(&in); err != nil || in.Enabled == nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "enabled requerido"})
	}
	change, err := h.engine.SetTrackingState(c.Context(), *in.Enabled, GetUserID(c))
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(dto.TrackingResponse{Enabled: change.Enabled, Previous: change.Previous})
}

// ListSnapshot godoc
// @Summary      Vista de inventario
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        low_stock  query  bool  false  "Solo productos en stock bajo"
// @Param        limit      query  int   false  "Tamaño de página"
// @Param        offset     query  int   false  "Desplazamiento"
// @Success      200  {array}  dto.SnapshotDTO
// @Router       /api/inventory/snapshot [get]
func (h *InventoryHandler) ListSnapshot(c *fiber.Ctx) error {
	var page dto.PageRequest
	_ = c.QueryParser(&page)
	page.DefaultPage()
	list, err := h.engine.ListSnapshot(c.Context(), repository.SnapshotFilter{
		OnlyLowStock:    c.QueryBool("low_stock"),
		IncludeInactive: c.QueryBool("include_inactive"),
		Limit:           page.Limit,
		Offset:          page.Offset,
	})
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(list), "items": dto.NewSnapshotDTOList(list)})
}

// ListDiscrepancies godoc
// @Summary      Productos con discrepancia de inventario
// @Description  Balance del libro negativo: la demanda registrada excedió el
//
//	stock que la reconciliación puede explicar. Requieren revisión humana.
//
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Success      200  {array}  dto.SnapshotDTO
// @Router       /api/inventory/discrepancies [get]
func (h *InventoryHandler) ListDiscrepancies(c *fiber.Ctx) error {
	list, err := h.engine.ListDiscrepancies(c.Context())
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(fiber.Map{"total": len(list), "items": dto.NewSnapshotDTOList(list)})
}

// mapDomainError traduce errores de dominio a códigos HTTP.
func mapDomainError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "datos inválidos"})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "producto no encontrado"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

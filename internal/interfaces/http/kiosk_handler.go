package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/kiosco-api/internal/application/dto"
	"github.com/jhoicas/kiosco-api/internal/application/realtime"
	"github.com/jhoicas/kiosco-api/internal/application/status"
	"github.com/jhoicas/kiosco-api/internal/domain/entity"
	"github.com/jhoicas/kiosco-api/internal/domain/repository"
	"github.com/jhoicas/kiosco-api/internal/domain/schedule"
)

// KioskHandler maneja el estado del kiosco y su configuración administrativa.
type KioskHandler struct {
	statusSvc  *status.Service
	configRepo repository.ConfigRepository
	hub        *realtime.Hub
}

// NewKioskHandler construye el handler.
func NewKioskHandler(statusSvc *status.Service, configRepo repository.ConfigRepository, hub *realtime.Hub) *KioskHandler {
	return &KioskHandler{statusSvc: statusSvc, configRepo: configRepo, hub: hub}
}

// GetStatus godoc
// @Summary      Estado actual del kiosco
// @Description  abierto, cerrado o en mantenimiento, con próxima apertura y cierre.
// @Tags         kiosk
// @Produce      json
// @Param        at  query  string  false  "Instante a consultar (RFC3339); vacío = ahora"
// @Success      200  {object}  dto.StatusResponse
// @Router       /api/kiosk/status [get]
func (h *KioskHandler) GetStatus(c *fiber.Ctx) error {
	if at := c.Query("at"); at != "" {
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "at debe ser RFC3339"})
		}
		st, err := h.statusSvc.ComputeAt(c.Context(), t)
		if err != nil {
			return mapDomainError(c, err)
		}
		return c.JSON(dto.NewStatusResponse(st))
	}
	st, _, err := h.statusSvc.Evaluate(c.Context())
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(dto.NewStatusResponse(st))
}

// SetMaintenance godoc
// @Summary      Activar o desactivar el modo mantenimiento
// @Description  Mantenimiento tiene precedencia incondicional sobre el
//
//	horario de operación. El cambio fuerza un broadcast inmediato.
//
// @Tags         kiosk
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.MaintenanceRequest  true  "enabled, message"
// @Success      200   {object}  dto.StatusResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/kiosk/maintenance [put]
func (h *KioskHandler) SetMaintenance(c *fiber.Ctx) error {
	var in dto.MaintenanceRequest
	if err := c.BodyParser(&in); err != nil || in.Enabled == nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "enabled requerido"})
	}
	doc := schedule.Maintenance{Enabled: *in.Enabled, Message: in.Message}
	if *in.Enabled {
		now := time.Now()
		doc.Since = &now
	}
	value, err := entity.NewObjectValue(doc)
	if err != nil {
		return mapDomainError(c, err)
	}
	if err := h.configRepo.Set(c.Context(), entity.ConfigKeyMaintenanceMode, value, GetUserID(c)); err != nil {
		return mapDomainError(c, err)
	}
	// Nudge: emitir aunque el fingerprint del poll anterior coincida.
	h.hub.ForceRefresh(c.Context())
	st, _, err := h.statusSvc.Evaluate(c.Context())
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(dto.NewStatusResponse(st))
}

// SetOperatingHours godoc
// @Summary      Configurar ventanas de operación
// @Tags         kiosk
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.OperatingHoursRequest  true  "timezone, windows"
// @Success      200   {object}  dto.StatusResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/kiosk/operating-hours [put]
func (h *KioskHandler) SetOperatingHours(c *fiber.Ctx) error {
	var in dto.OperatingHoursRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	windows := make([]schedule.Window, 0, len(in.Windows))
	for _, w := range in.Windows {
		win := schedule.Window{Start: w.Start, End: w.End, Days: w.Days}
		if err := win.Validate(); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		}
		windows = append(windows, win)
	}
	doc := struct {
		Timezone string            `json:"timezone,omitempty"`
		Windows  []schedule.Window `json:"windows"`
	}{Timezone: in.Timezone, Windows: windows}

	value, err := entity.NewObjectValue(doc)
	if err != nil {
		return mapDomainError(c, err)
	}
	if err := h.configRepo.Set(c.Context(), entity.ConfigKeyOperatingHours, value, GetUserID(c)); err != nil {
		return mapDomainError(c, err)
	}
	h.hub.ForceRefresh(c.Context())
	st, _, err := h.statusSvc.Evaluate(c.Context())
	if err != nil {
		return mapDomainError(c, err)
	}
	return c.JSON(dto.NewStatusResponse(st))
}

package dto

import (
	"time"

	"github.com/jhoicas/kiosco-api/internal/domain/schedule"
)

// WindowDTO ventana de operación en requests/responses: minutos del día y
// días ISO (1=lunes ... 7=domingo). start > end indica ventana nocturna.
type WindowDTO struct {
	Start int   `json:"start"`
	End   int   `json:"end"`
	Days  []int `json:"days"`
}

// OperatingHoursRequest body para PUT /api/kiosk/operating-hours.
type OperatingHoursRequest struct {
	Timezone string      `json:"timezone,omitempty"`
	Windows  []WindowDTO `json:"windows"`
}

// MaintenanceRequest body para PUT /api/kiosk/maintenance.
type MaintenanceRequest struct {
	Enabled *bool  `json:"enabled"`
	Message string `json:"message,omitempty"`
}

// MaintenanceDTO bloque de mantenimiento en la respuesta de estado.
type MaintenanceDTO struct {
	Enabled bool       `json:"enabled"`
	Message string     `json:"message,omitempty"`
	Since   *time.Time `json:"since,omitempty"`
}

// StatusResponse respuesta de GET /api/kiosk/status.
type StatusResponse struct {
	Status      string         `json:"status"`
	Reason      string         `json:"reason"`
	Message     string         `json:"message"`
	NextOpen    *time.Time     `json:"next_open,omitempty"`
	NextClose   *time.Time     `json:"next_close,omitempty"`
	Window      *WindowDTO     `json:"operating_window,omitempty"`
	Maintenance MaintenanceDTO `json:"maintenance"`
}

// NewStatusResponse mapea el estado calculado a la respuesta.
func NewStatusResponse(st schedule.Status) StatusResponse {
	resp := StatusResponse{
		Status:    st.Status,
		Reason:    st.Reason,
		Message:   st.Message,
		NextOpen:  st.NextOpen,
		NextClose: st.NextClose,
		Maintenance: MaintenanceDTO{
			Enabled: st.Maintenance.Enabled,
			Message: st.Maintenance.Message,
			Since:   st.Maintenance.Since,
		},
	}
	if st.Window != nil {
		resp.Window = &WindowDTO{Start: st.Window.Start, End: st.Window.End, Days: st.Window.Days}
	}
	return resp
}

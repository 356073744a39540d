// handlers_health.go - Health check handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandlerImpl implements the HealthHandler interface
type HealthHandlerImpl struct {
	dash    Dashboard
	version string
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(dash Dashboard, version string) HealthHandler {
	return &HealthHandlerImpl{
		dash:    dash,
		version: version,
	}
}

// HandleHealth returns server health status. The server is healthy while
// it runs; a missing catalog or channel reports as degraded.
func (h *HealthHandlerImpl) HandleHealth(c echo.Context) error {
	status := h.dash.Status()
	state := "ok"
	if !status.CatalogLoaded || !status.ChannelConnected {
		state = "degraded"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":            state,
		"version":           h.version,
		"catalog_size":      status.CatalogSize,
		"channel_connected": status.ChannelConnected,
	})
}

// HandleStatus returns the operator-visible error indicator
func (h *HealthHandlerImpl) HandleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.dash.Status())
}

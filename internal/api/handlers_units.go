// handlers_units.go - Field unit view and selection handlers
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/fu-tracker/dashboard/internal/logging"
)

// UnitHandlerImpl implements the UnitHandler interface
type UnitHandlerImpl struct {
	dash Dashboard
	log  logging.Logger
}

// NewUnitHandler creates a new unit handler
func NewUnitHandler(dash Dashboard, log logging.Logger) UnitHandler {
	if log == nil {
		log = logging.Noop()
	}
	return &UnitHandlerImpl{
		dash: dash,
		log:  log.With(logging.Component("api")),
	}
}

// HandleListUnits returns every rendered field unit, sorted by fu_id
func (h *UnitHandlerImpl) HandleListUnits(c echo.Context) error {
	units, err := h.dash.Units(c.Request().Context())
	if err != nil {
		return NewServiceUnavailableError("dashboard unavailable")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"units": units,
		"total": len(units),
	})
}

// HandleListUnitsMsgpack is HandleListUnits in msgpack encoding
func (h *UnitHandlerImpl) HandleListUnitsMsgpack(c echo.Context) error {
	units, err := h.dash.Units(c.Request().Context())
	if err != nil {
		return NewServiceUnavailableError("dashboard unavailable")
	}

	data, err := msgpack.Marshal(map[string]interface{}{
		"units": units,
		"total": len(units),
	})
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleGetUnit returns one field unit
func (h *UnitHandlerImpl) HandleGetUnit(c echo.Context) error {
	id := c.Param("fuId")
	if id == "" {
		return NewValidationError("fuId")
	}

	unit, err := h.dash.Unit(c.Request().Context(), id)
	if err != nil {
		return selectionError(id, err)
	}
	return c.JSON(http.StatusOK, unit)
}

type selectSatelliteRequest struct {
	SatelliteName string `json:"satellite_name"`
}

// HandleSelectSatellite applies an operator selection to the unit's
// control. An empty or placeholder value is accepted and ignored.
func (h *UnitHandlerImpl) HandleSelectSatellite(c echo.Context) error {
	id := c.Param("fuId")
	if id == "" {
		return NewValidationError("fuId")
	}

	var req selectSatelliteRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	ctx := c.Request().Context()
	emitted, err := h.dash.Select(ctx, id, strings.TrimSpace(req.SatelliteName))
	if err != nil {
		h.log.Warn(ctx, "selection rejected",
			logging.String("fu_id", id), logging.String("satellite", req.SatelliteName), logging.Err(err))
		return selectionError(id, err)
	}
	if !emitted {
		return c.NoContent(http.StatusNoContent)
	}

	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"fu_id":          id,
		"satellite_name": strings.TrimSpace(req.SatelliteName),
		"status":         "sent",
	})
}

// HandleGetLogs returns the buffered log lines, oldest first
func (h *UnitHandlerImpl) HandleGetLogs(c echo.Context) error {
	lines, err := h.dash.Logs(c.Request().Context())
	if err != nil {
		return NewServiceUnavailableError("dashboard unavailable")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"lines": lines,
		"total": len(lines),
	})
}

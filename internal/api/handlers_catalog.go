// handlers_catalog.go - Satellite catalog handlers
package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/fu-tracker/dashboard/internal/catalog"
)

// CatalogHandlerImpl implements the CatalogHandler interface
type CatalogHandlerImpl struct {
	dash Dashboard
}

// NewCatalogHandler creates a new catalog handler
func NewCatalogHandler(dash Dashboard) CatalogHandler {
	return &CatalogHandlerImpl{dash: dash}
}

// HandleGetCatalog returns the sorted catalog, filtered by ?q= when given
func (h *CatalogHandlerImpl) HandleGetCatalog(c echo.Context) error {
	limit := catalog.MaxOptions
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return NewValidationError("limit")
		}
		limit = n
	}

	store, err := h.dash.Catalog(c.Request().Context())
	if err != nil {
		return NewServiceUnavailableError("catalog unavailable")
	}

	query := c.QueryParam("q")
	entries := store.Search(query, limit)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"satellites": names,
		"total":      store.Len(),
		"query":      query,
	})
}

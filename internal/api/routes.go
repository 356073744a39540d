// routes.go - Route registration helpers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/fu-tracker/dashboard/internal/logging"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Dashboard Dashboard
	Metrics   http.Handler
	Logger    logging.Logger
	Version   string
}

// Handlers holds all handler instances
type Handlers struct {
	Health   HealthHandler
	Catalog  CatalogHandler
	Units    UnitHandler
	ViewFeed ViewFeedHandler
	Metrics  http.Handler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:   NewHealthHandler(deps.Dashboard, deps.Version),
		Catalog:  NewCatalogHandler(deps.Dashboard),
		Units:    NewUnitHandler(deps.Dashboard, deps.Logger),
		ViewFeed: NewViewFeedHandler(deps.Dashboard, deps.Logger),
		Metrics:  deps.Metrics,
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health and operator status
	apiGroup.GET("/health", handlers.Health.HandleHealth)
	apiGroup.GET("/status", handlers.Health.HandleStatus)

	// Satellite catalog
	apiGroup.GET("/catalog", handlers.Catalog.HandleGetCatalog)

	// Field unit views
	apiGroup.GET("/units", handlers.Units.HandleListUnits)
	apiGroup.GET("/units.msgpack", handlers.Units.HandleListUnitsMsgpack)
	apiGroup.GET("/units/:fuId", handlers.Units.HandleGetUnit)
	apiGroup.POST("/units/:fuId/selection", handlers.Units.HandleSelectSatellite)
	apiGroup.GET("/logs", handlers.Units.HandleGetLogs)

	RegisterWebSocketRoutes(e, handlers)

	if handlers.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(handlers.Metrics))
	}
}

// RegisterWebSocketRoutes registers WebSocket routes
func RegisterWebSocketRoutes(e *echo.Echo, handlers *Handlers) {
	e.GET("/api/ws/view", handlers.ViewFeed.HandleViewFeed)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo) {
	e.HTTPErrorHandler = ErrorHandler
}

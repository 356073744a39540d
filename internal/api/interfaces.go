// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/fu-tracker/dashboard/internal/catalog"
	"github.com/fu-tracker/dashboard/internal/dashboard"
	"github.com/fu-tracker/dashboard/internal/view"
)

// Dashboard is the view engine the handlers read from and route
// operator selections to. *dashboard.Dashboard satisfies it.
type Dashboard interface {
	Status() dashboard.Status
	Catalog(ctx context.Context) (*catalog.Store, error)
	Units(ctx context.Context) ([]view.UnitState, error)
	Unit(ctx context.Context, fuID string) (view.UnitState, error)
	Select(ctx context.Context, fuID, satellite string) (bool, error)
	Logs(ctx context.Context) ([]string, error)
	Subscribe(ctx context.Context) (*dashboard.Subscription, []view.Mutation, error)
	Unsubscribe(sub *dashboard.Subscription)
}

// HealthHandler handles health and status checks
type HealthHandler interface {
	HandleHealth(c echo.Context) error
	HandleStatus(c echo.Context) error
}

// CatalogHandler serves the satellite catalog
type CatalogHandler interface {
	HandleGetCatalog(c echo.Context) error
}

// UnitHandler serves field unit views and accepts operator selections
type UnitHandler interface {
	HandleListUnits(c echo.Context) error
	HandleListUnitsMsgpack(c echo.Context) error
	HandleGetUnit(c echo.Context) error
	HandleSelectSatellite(c echo.Context) error
	HandleGetLogs(c echo.Context) error
}

// ViewFeedHandler streams view mutations to browsers
type ViewFeedHandler interface {
	HandleViewFeed(c echo.Context) error
}

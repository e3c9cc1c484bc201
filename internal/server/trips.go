package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/N9work/CrewAi-Project/internal/catalog"
)

type TripsHandler struct {
	Planner  TripPlanner
	Registry *catalog.Registry
}

func (h *TripsHandler) Register(g *echo.Group, mw ...echo.MiddlewareFunc) {
	g.Use(mw...)
	g.POST("/trips", h.plan)
	g.GET("/catalog", h.catalog)
}

// plan accepts the web client's form fields as JSON or form data.
func (h *TripsHandler) plan(c echo.Context) error {
	var req catalog.Request
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	report, err := h.Planner.Plan(c.Request().Context(), req)
	if report.RunID != "" {
		c.Set("run_id", report.RunID)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, TripResponse{
		Message: report.Message,
		Result:  report.Result,
		RunID:   report.RunID,
		Stages:  report.Stages,
	})
}

func (h *TripsHandler) catalog(c echo.Context) error {
	opts := h.Registry.Options()
	return c.JSON(http.StatusOK, CatalogResponse{
		Categories: opts.Categories,
		Styles:     opts.Styles,
		Costs:      opts.Costs,
		Durations:  opts.Durations,
	})
}

package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/pricing"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/search"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/siteconfig"
	"github.com/BRRODORTEGA/SOFA-sub000/pkg/logging"
)

type Searcher interface {
	Search(ctx context.Context, query string, page, size int) (search.Results, error)
}

type CatalogHTTP struct {
	Pricing *pricing.Service
	// Index is nil when no search backend is configured.
	Index Searcher
}

func (h *CatalogHTTP) Quote(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "pricing.quote")

	productID, err := queryUUID(c, "product_id")
	if err != nil {
		l.Warn("quote_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, errorBody("invalid product_id"))
	}
	fabricID, err := queryUUID(c, "fabric_id")
	if err != nil {
		l.Warn("quote_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, errorBody("invalid fabric_id"))
	}
	measure := parseIntDefault(c.QueryParam("measure_cm"), 0)
	if measure <= 0 {
		l.Warn("quote_error", "status", 400)
		return c.JSON(http.StatusBadRequest, errorBody("measure_cm must be positive"))
	}

	q, err := h.Pricing.ResolveActive(ctx, productID, fabricID, measure)
	if err != nil {
		switch {
		case errors.Is(err, siteconfig.ErrNoActiveTable):
			l.Warn("quote_error", "status", 503, "error", err)
			return c.JSON(http.StatusServiceUnavailable, errorBody("no active price table"))
		case errors.Is(err, pricing.ErrNotFound):
			l.Warn("quote_error", "status", 404, "error", err)
			return c.JSON(http.StatusNotFound, errorBody("fabric not found"))
		}
		l.Error("quote_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
	}

	return c.JSON(http.StatusOK, q)
}

func (h *CatalogHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "catalog.search")

	if h.Index == nil {
		l.Warn("search_error", "status", 503, "reason", "index not configured")
		return c.JSON(http.StatusServiceUnavailable, errorBody("search unavailable"))
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), 0)

	res, err := h.Index.Search(ctx, c.QueryParam("q"), page, size)
	if err != nil {
		l.Error("search_error", "status", 502, "error", err)
		return c.JSON(http.StatusBadGateway, errorBody("search failed"))
	}
	return c.JSON(http.StatusOK, res)
}

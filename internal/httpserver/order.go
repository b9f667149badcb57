package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/order"
	"github.com/BRRODORTEGA/SOFA-sub000/pkg/logging"
)

type OrderHTTP struct {
	Orders *order.GormRepo
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "orders.list")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized(c)
	}

	orders, err := h.Orders.List(ctx, userID)
	if err != nil {
		l.Error("list_orders_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "orders.get")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized(c)
	}
	orderID, err := paramUUID(c, "id")
	if err != nil {
		l.Warn("get_order_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, errorBody("invalid order id"))
	}

	o, err := h.Orders.Get(ctx, userID, orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			l.Warn("get_order_error", "status", 404, "error", err)
			return c.JSON(http.StatusNotFound, errorBody("order not found"))
		}
		l.Error("get_order_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, errorBody("internal error"))
	}
	return c.JSON(http.StatusOK, o)
}

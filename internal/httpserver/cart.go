package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/cart"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/siteconfig"
	"github.com/BRRODORTEGA/SOFA-sub000/pkg/logging"
)

type CartHTTP struct {
	Engine *cart.Engine
	Site   *siteconfig.GormRepo
}

type cartResponse struct {
	Cart   *models.Cart `json:"cart"`
	Totals cart.Totals  `json:"totals"`
	Report cart.Report  `json:"report"`
}

type checkoutResponse struct {
	Order  *models.Order `json:"order,omitempty"`
	Report cart.Report   `json:"report"`
	Error  string        `json:"error,omitempty"`
}

// cartError maps engine errors onto a status and a client message.
func cartError(err error) (int, string) {
	switch {
	case errors.Is(err, cart.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, cart.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, cart.ErrPricingUnavailable):
		return http.StatusConflict, "pricing_unavailable"
	case errors.Is(err, cart.ErrEmptyCart):
		return http.StatusBadRequest, "cart is empty"
	case errors.Is(err, siteconfig.ErrNoActiveTable):
		return http.StatusServiceUnavailable, "no active price table"
	case errors.Is(err, cart.ErrTableChanged):
		return http.StatusConflict, "price table changed, retry"
	}
	return http.StatusInternalServerError, "internal error"
}

func (h *CartHTTP) fail(c echo.Context, op string, err error) error {
	l := logging.FromContext(c.Request().Context())
	status, msg := cartError(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		l.Error(op+"_error", "status", status, "error", err)
	} else {
		l.Warn(op+"_error", "status", status, "error", err)
	}
	return c.JSON(status, errorBody(msg))
}

// GetCart revalidates the cart against the active table before returning it,
// so the customer always sees current prices.
func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := GetID(c)
	if err != nil {
		return unauthorized(c)
	}

	report := cart.Report{Changes: []cart.Change{}}
	tableID, err := h.Site.ActiveTableID(ctx)
	switch {
	case err == nil:
		report, err = h.Engine.Revalidate(ctx, tableID, userID)
		if err != nil {
			return h.fail(c, "get_cart", err)
		}
	case !errors.Is(err, siteconfig.ErrNoActiveTable):
		return h.fail(c, "get_cart", err)
	}

	cartObj, totals, err := h.Engine.Totals(ctx, userID)
	if err != nil {
		return h.fail(c, "get_cart", err)
	}

	return c.JSON(http.StatusOK, cartResponse{Cart: cartObj, Totals: totals, Report: report})
}

func (h *CartHTTP) AddItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req cart.AddRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_to_cart_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}

	tableID, err := h.Site.ActiveTableID(ctx)
	if err != nil {
		return h.fail(c, "add_to_cart", err)
	}

	line, err := h.Engine.Add(ctx, tableID, userID, req)
	if err != nil {
		return h.fail(c, "add_to_cart", err)
	}

	l.Info("item added to cart", "line_id", line.ID)
	return c.JSON(http.StatusCreated, line)
}

func (h *CartHTTP) UpdateItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized(c)
	}
	lineID, err := paramUUID(c, "id")
	if err != nil {
		l.Warn("update_cart_item_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, errorBody("invalid line id"))
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("update_cart_item_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}

	line, err := h.Engine.UpdateQuantity(ctx, userID, lineID, req.Quantity)
	if err != nil {
		return h.fail(c, "update_cart_item", err)
	}
	return c.JSON(http.StatusOK, line)
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized(c)
	}
	lineID, err := paramUUID(c, "id")
	if err != nil {
		l.Warn("remove_cart_item_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, errorBody("invalid line id"))
	}

	if err := h.Engine.Remove(ctx, userID, lineID); err != nil {
		return h.fail(c, "remove_cart_item", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) AttachCoupon(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.coupon.attach")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized(c)
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&req); err != nil {
		l.Warn("attach_coupon_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, errorBody("invalid body"))
	}

	if _, err := h.Engine.AttachCoupon(ctx, userID, req.Code); err != nil {
		return h.fail(c, "attach_coupon", err)
	}

	cartObj, totals, err := h.Engine.Totals(ctx, userID)
	if err != nil {
		return h.fail(c, "attach_coupon", err)
	}
	return c.JSON(http.StatusOK, cartResponse{Cart: cartObj, Totals: totals, Report: cart.Report{Changes: []cart.Change{}}})
}

func (h *CartHTTP) DetachCoupon(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := GetID(c)
	if err != nil {
		return unauthorized(c)
	}
	if err := h.Engine.DetachCoupon(ctx, userID); err != nil {
		return h.fail(c, "detach_coupon", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHTTP) Revalidate(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := GetID(c)
	if err != nil {
		return unauthorized(c)
	}
	tableID, err := h.Site.ActiveTableID(ctx)
	if err != nil {
		return h.fail(c, "revalidate_cart", err)
	}

	report, err := h.Engine.Revalidate(ctx, tableID, userID)
	if err != nil {
		return h.fail(c, "revalidate_cart", err)
	}
	return c.JSON(http.StatusOK, report)
}

func (h *CartHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.checkout")

	userID, err := GetID(c)
	if err != nil {
		return unauthorized(c)
	}
	placed, report, err := h.Engine.CheckoutActive(ctx, userID)
	if errors.Is(err, cart.ErrCheckoutBlocked) {
		l.Warn("checkout_error", "status", 409, "removed", report.Removed)
		return c.JSON(http.StatusConflict, checkoutResponse{Report: report, Error: "checkout_blocked"})
	}
	if err != nil {
		return h.fail(c, "checkout", err)
	}

	l.Info("checkout completed", "order_id", placed.ID)
	return c.JSON(http.StatusCreated, checkoutResponse{Order: placed, Report: report})
}

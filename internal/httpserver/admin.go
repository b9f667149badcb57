package httpserver

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/backoffice"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/catalog"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/coupon"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/importer"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/pricetable"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/siteconfig"
	"github.com/BRRODORTEGA/SOFA-sub000/pkg/logging"
)

type AdminHTTP struct {
	Svc *backoffice.Service
}

func adminError(err error) (int, string) {
	switch {
	case errors.Is(err, pricetable.ErrValidation),
		errors.Is(err, importer.ErrValidation),
		errors.Is(err, coupon.ErrValidation),
		errors.Is(err, siteconfig.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, pricetable.ErrNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, siteconfig.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, coupon.ErrConflict):
		return http.StatusConflict, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

func (h *AdminHTTP) fail(c echo.Context, op string, err error) error {
	l := logging.FromContext(c.Request().Context())
	status, msg := adminError(err)
	if status >= http.StatusInternalServerError {
		l.Error(op+"_error", "status", status, "error", err)
	} else {
		l.Warn(op+"_error", "status", status, "error", err)
	}
	return c.JSON(status, errorBody(msg))
}

func badParam(c echo.Context, op, name string, err error) error {
	logging.FromContext(c.Request().Context()).Warn(op+"_error", "status", 400, "param", name, "error", err)
	return c.JSON(http.StatusBadRequest, errorBody("invalid "+name))
}

func (h *AdminHTTP) ListTables(c echo.Context) error {
	tables, err := h.Svc.Tables.ListTables(c.Request().Context())
	if err != nil {
		return h.fail(c, "list_price_tables", err)
	}
	return c.JSON(http.StatusOK, tables)
}

func (h *AdminHTTP) CreateTable(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return badParam(c, "create_price_table", "body", err)
	}

	t, err := h.Svc.Tables.CreateTable(ctx, strings.TrimSpace(req.Name))
	if err != nil {
		return h.fail(c, "create_price_table", err)
	}
	logging.FromContext(ctx).Info("price table created", "price_table_id", t.ID, "version", t.Version)
	return c.JSON(http.StatusCreated, t)
}

func (h *AdminHTTP) ListRows(c echo.Context) error {
	ctx := c.Request().Context()

	tableID, err := paramUUID(c, "id")
	if err != nil {
		return badParam(c, "list_price_rows", "id", err)
	}
	if _, err := h.Svc.Tables.GetTable(ctx, tableID); err != nil {
		return h.fail(c, "list_price_rows", err)
	}

	var rows []models.PriceRow
	if pid := c.QueryParam("product_id"); pid != "" {
		productID, err := uuid.Parse(pid)
		if err != nil {
			return badParam(c, "list_price_rows", "product_id", err)
		}
		rows, err = h.Svc.Tables.ListProductRows(ctx, tableID, productID)
		if err != nil {
			return h.fail(c, "list_price_rows", err)
		}
	} else {
		rows, err = h.Svc.Tables.ListRows(ctx, tableID)
		if err != nil {
			return h.fail(c, "list_price_rows", err)
		}
	}
	return c.JSON(http.StatusOK, rows)
}

// UpsertRows takes a partial batch: rows not in the body are left alone.
func (h *AdminHTTP) UpsertRows(c echo.Context) error {
	ctx := c.Request().Context()

	tableID, err := paramUUID(c, "id")
	if err != nil {
		return badParam(c, "upsert_price_rows", "id", err)
	}
	if _, err := h.Svc.Tables.GetTable(ctx, tableID); err != nil {
		return h.fail(c, "upsert_price_rows", err)
	}

	var rows []pricetable.RowInput
	if err := c.Bind(&rows); err != nil {
		return badParam(c, "upsert_price_rows", "body", err)
	}

	n, err := h.Svc.UpsertRows(ctx, tableID, rows)
	if err != nil {
		return h.fail(c, "upsert_price_rows", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"upserted": n})
}

func (h *AdminHTTP) DeleteRow(c echo.Context) error {
	ctx := c.Request().Context()

	tableID, err := paramUUID(c, "id")
	if err != nil {
		return badParam(c, "delete_price_row", "id", err)
	}
	productID, err := paramUUID(c, "product_id")
	if err != nil {
		return badParam(c, "delete_price_row", "product_id", err)
	}
	measure, err := strconv.Atoi(c.Param("measure"))
	if err != nil {
		return badParam(c, "delete_price_row", "measure", err)
	}

	if err := h.Svc.DeleteRow(ctx, tableID, productID, measure); err != nil {
		return h.fail(c, "delete_price_row", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHTTP) Violations(c echo.Context) error {
	ctx := c.Request().Context()

	tableID, err := paramUUID(c, "id")
	if err != nil {
		return badParam(c, "validate_price_table", "id", err)
	}

	violations, err := h.Svc.Validator.Validate(ctx, tableID)
	if err != nil {
		return h.fail(c, "validate_price_table", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"clean": len(violations) == 0, "violations": violations})
}

func (h *AdminHTTP) MissingVariants(c echo.Context) error {
	ctx := c.Request().Context()

	tableID, err := paramUUID(c, "id")
	if err != nil {
		return badParam(c, "find_missing", "id", err)
	}
	productID, err := paramUUID(c, "product_id")
	if err != nil {
		return badParam(c, "find_missing", "product_id", err)
	}

	missing, err := h.Svc.Sync.FindMissing(ctx, tableID, productID)
	if err != nil {
		return h.fail(c, "find_missing", err)
	}
	return c.JSON(http.StatusOK, missing)
}

// CreateSkeleton fills the measures in the body, or every missing one when
// the body is empty.
func (h *AdminHTTP) CreateSkeleton(c echo.Context) error {
	ctx := c.Request().Context()

	tableID, err := paramUUID(c, "id")
	if err != nil {
		return badParam(c, "create_skeleton", "id", err)
	}
	productID, err := paramUUID(c, "product_id")
	if err != nil {
		return badParam(c, "create_skeleton", "product_id", err)
	}

	var req struct {
		Measures []int `json:"measures"`
	}
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badParam(c, "create_skeleton", "body", err)
		}
	}

	n, err := h.Svc.CreateSkeleton(ctx, tableID, productID, req.Measures)
	if err != nil {
		return h.fail(c, "create_skeleton", err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"created": n})
}

func (h *AdminHTTP) Activate(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "admin.activate")

	tableID, err := paramUUID(c, "id")
	if err != nil {
		return badParam(c, "activate_price_table", "id", err)
	}
	requireClean := false
	if v := c.QueryParam("require_clean"); v != "" {
		requireClean, err = strconv.ParseBool(v)
		if err != nil {
			return badParam(c, "activate_price_table", "require_clean", err)
		}
	}

	err = h.Svc.Activate(ctx, tableID, requireClean)
	var notClean *backoffice.NotCleanError
	if errors.As(err, &notClean) {
		l.Warn("activate_price_table_error", "status", 409, "violations", len(notClean.Violations))
		return c.JSON(http.StatusConflict, echo.Map{"error": "table_not_clean", "violations": notClean.Violations})
	}
	if err != nil {
		return h.fail(c, "activate_price_table", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"active_price_table_id": tableID})
}

// Import accepts the sheet either as the raw body or as the "file" field of a
// multipart form.
func (h *AdminHTTP) Import(c echo.Context) error {
	ctx := c.Request().Context()

	tableID, err := paramUUID(c, "id")
	if err != nil {
		return badParam(c, "import_price_table", "id", err)
	}

	var body io.Reader = c.Request().Body
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return badParam(c, "import_price_table", "file", err)
		}
		f, err := fh.Open()
		if err != nil {
			return badParam(c, "import_price_table", "file", err)
		}
		defer f.Close()
		body = f
	}

	n, err := h.Svc.Import(ctx, tableID, body)
	var lineErr *importer.LineError
	if errors.As(err, &lineErr) {
		logging.FromContext(ctx).Warn("import_price_table_error", "status", 400, "line", lineErr.Line, "error", err)
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "line": lineErr.Line})
	}
	if err != nil {
		return h.fail(c, "import_price_table", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"imported": n})
}

func (h *AdminHTTP) Export(c echo.Context) error {
	ctx := c.Request().Context()

	tableID, err := paramUUID(c, "id")
	if err != nil {
		return badParam(c, "export_price_table", "id", err)
	}
	if _, err := h.Svc.Tables.GetTable(ctx, tableID); err != nil {
		return h.fail(c, "export_price_table", err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", tableID.String()+".csv"))
	res.WriteHeader(http.StatusOK)
	if err := h.Svc.Export(ctx, tableID, res); err != nil {
		logging.FromContext(ctx).Error("export_price_table_error", "status", 500, "error", err)
		return err
	}
	return nil
}

type couponRequest struct {
	Code            string              `json:"code"`
	Kind            models.CouponKind   `json:"kind"`
	Value           decimal.Decimal     `json:"value"`
	MinimumSubtotal decimal.NullDecimal `json:"minimum_subtotal"`
	Active          *bool               `json:"active"`
}

func (h *AdminHTTP) CreateCoupon(c echo.Context) error {
	ctx := c.Request().Context()

	var req couponRequest
	if err := c.Bind(&req); err != nil {
		return badParam(c, "create_coupon", "body", err)
	}

	cp := models.Coupon{
		Code:            req.Code,
		Kind:            req.Kind,
		Value:           req.Value,
		MinimumSubtotal: req.MinimumSubtotal,
		Active:          req.Active == nil || *req.Active,
	}
	if err := h.Svc.CreateCoupon(ctx, &cp); err != nil {
		return h.fail(c, "create_coupon", err)
	}
	return c.JSON(http.StatusCreated, cp)
}

func (h *AdminHTTP) SetCouponActive(c echo.Context) error {
	ctx := c.Request().Context()

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.Bind(&req); err != nil {
		return badParam(c, "set_coupon_active", "body", err)
	}

	if err := h.Svc.Coupons.SetActive(ctx, c.Param("code"), req.Active); err != nil {
		return h.fail(c, "set_coupon_active", err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHTTP) SetFeaturedDiscount(c echo.Context) error {
	ctx := c.Request().Context()

	productID, err := paramUUID(c, "product_id")
	if err != nil {
		return badParam(c, "set_featured_discount", "product_id", err)
	}
	var req struct {
		Percent decimal.Decimal `json:"percent"`
	}
	if err := c.Bind(&req); err != nil {
		return badParam(c, "set_featured_discount", "body", err)
	}
	if err := h.Svc.SetFeaturedDiscount(ctx, productID, req.Percent); err != nil {
		return h.fail(c, "set_featured_discount", err)
	}
	return c.JSON(http.StatusOK, echo.Map{"product_id": productID, "percent": req.Percent})
}

func (h *AdminHTTP) ClearFeaturedDiscount(c echo.Context) error {
	ctx := c.Request().Context()

	productID, err := paramUUID(c, "product_id")
	if err != nil {
		return badParam(c, "clear_featured_discount", "product_id", err)
	}
	if err := h.Svc.ClearFeaturedDiscount(ctx, productID); err != nil {
		return h.fail(c, "clear_featured_discount", err)
	}
	return c.NoContent(http.StatusNoContent)
}

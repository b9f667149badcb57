package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/backoffice"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/cart"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/catalog"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/coupon"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/events"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/grade"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/importer"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/models"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/order"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/pricetable"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/pricing"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/search"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/siteconfig"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/testutil"
	"github.com/BRRODORTEGA/SOFA-sub000/pkg/middleware/csrf"
)

type testEnv struct {
	DB     *gorm.DB
	E      *echo.Echo
	Events *events.Recorder

	Catalog *CatalogHTTP
	Cart    *CartHTTP
	Orders  *OrderHTTP
	Admin   *AdminHTTP

	Sofa   models.Product
	Velvet models.Fabric
	Table  models.PriceTable
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	gdb := testutil.NewDB(t)
	rec := &events.Recorder{}
	tables := &pricetable.GormRepo{DB: gdb}
	cat := &catalog.GormRepo{DB: gdb}
	site := &siteconfig.GormRepo{DB: gdb}
	coupons := &coupon.GormRepo{DB: gdb}
	orders := &order.GormRepo{DB: gdb}
	prices := &pricing.Service{Tables: tables, Catalog: cat, Site: site}

	env := &testEnv{
		DB:      gdb,
		E:       echo.New(),
		Events:  rec,
		Catalog: &CatalogHTTP{Pricing: prices},
		Cart: &CartHTTP{
			Engine: &cart.Engine{
				Repo: &cart.GormRepo{DB: gdb}, Pricing: prices, Catalog: cat,
				Coupons: coupons, Orders: orders, Events: rec,
			},
			Site: site,
		},
		Orders: &OrderHTTP{Orders: orders},
		Admin: &AdminHTTP{Svc: &backoffice.Service{
			Tables:    tables,
			Catalog:   cat,
			Validator: &pricetable.Validator{Repo: tables},
			Sync:      &pricetable.Synchronizer{Repo: tables, Catalog: cat},
			Site:      site,
			Coupons:   coupons,
			Importer:  &importer.Service{Catalog: cat, Tables: tables},
			Events:    rec,
		}},
	}

	c := testutil.NewCatalog(t, gdb)
	env.Velvet = testutil.Fabric(t, gdb, "Velvet", grade.G3000)
	env.Sofa = c.Product(t, gdb, "Oslo", false, env.Velvet)
	testutil.Variant(t, gdb, env.Sofa.ID, 200, models.Dimensions{Width: 200, Depth: 95, Height: 80, SeatHeight: 45, FabricConsumption: 8})
	env.Table = testutil.Table(t, gdb, "2026")

	// Velvet sells from g3000: 1500 less 10% is 1350.
	_, err := tables.UpsertRows(context.Background(), env.Table.ID, []pricetable.RowInput{{
		ProductID:       env.Sofa.ID,
		MeasureCM:       200,
		Dimensions:      models.Dimensions{Width: 200, Depth: 95, Height: 80, SeatHeight: 45, FabricConsumption: 8},
		Prices:          testutil.Ladder(1000, 250),
		DiscountPercent: decimal.NewNullDecimal(decimal.NewFromInt(10)),
	}})
	require.NoError(t, err)
	return env
}

func (env *testEnv) activate(t *testing.T) {
	t.Helper()
	require.NoError(t, env.Admin.Svc.Site.SetActiveTable(context.Background(), env.Table.ID))
}

func (env *testEnv) doJSONRequest(method, target string, body any, userID uuid.UUID) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	if userID != uuid.Nil {
		c.Set("user_id", userID.String())
	}
	return rec, c
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestRegister_Routes(t *testing.T) {
	env := newTestEnv(t)
	e := echo.New()
	Register(e, &Deps{
		CatalogHandler: env.Catalog,
		CartHandler:    env.Cart,
		OrderHandler:   env.Orders,
		AdminHandler:   env.Admin,
		JWTSecret:      []byte("secret"),
		DB:             env.DB,
	})

	routes := map[string]bool{}
	for _, r := range e.Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /pricing/quote",
		"POST /cart/items",
		"POST /cart/checkout",
		"PUT /admin/price-tables/:id/rows",
		"POST /admin/price-tables/:id/activate",
		"DELETE /admin/featured-discounts/:product_id",
	} {
		assert.True(t, routes[want], want)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegister_CSRFGuardsCookieRoutes(t *testing.T) {
	env := newTestEnv(t)
	e := echo.New()
	Register(e, &Deps{
		CatalogHandler: env.Catalog,
		CartHandler:    env.Cart,
		OrderHandler:   env.Orders,
		AdminHandler:   env.Admin,
		JWTSecret:      []byte("secret"),
		CSRF:           csrf.Middleware(csrf.Config{}),
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cart/checkout", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-CSRF-Token"))
}

func TestQuote(t *testing.T) {
	env := newTestEnv(t)
	target := "/pricing/quote?product_id=" + env.Sofa.ID.String() + "&fabric_id=" + env.Velvet.ID.String() + "&measure_cm=200"

	rec, c := env.doJSONRequest(http.MethodGet, target, nil, uuid.Nil)
	require.NoError(t, env.Catalog.Quote(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	env.activate(t)

	rec, c = env.doJSONRequest(http.MethodGet, target, nil, uuid.Nil)
	require.NoError(t, env.Catalog.Quote(c))
	require.Equal(t, http.StatusOK, rec.Code)
	q := decode[pricing.Quote](t, rec)
	assert.True(t, q.Available)
	assert.Equal(t, "1350.00", q.UnitPrice.StringFixed(2))
	assert.Equal(t, "1500.00", q.UnitPriceOriginal.StringFixed(2))

	rec, c = env.doJSONRequest(http.MethodGet, strings.Replace(target, "measure_cm=200", "measure_cm=260", 1), nil, uuid.Nil)
	require.NoError(t, env.Catalog.Quote(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[pricing.Quote](t, rec).Available)

	rec, c = env.doJSONRequest(http.MethodGet, "/pricing/quote?product_id=x", nil, uuid.Nil)
	require.NoError(t, env.Catalog.Quote(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeSearcher struct{ query string }

func (f *fakeSearcher) Search(_ context.Context, q string, _, _ int) (search.Results, error) {
	f.query = q
	return search.Results{Total: 1, Items: []search.Document{{Name: "Oslo"}}}, nil
}

func TestSearch(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(http.MethodGet, "/catalog/search?q=oslo", nil, uuid.Nil)
	require.NoError(t, env.Catalog.Search(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	fs := &fakeSearcher{}
	env.Catalog.Index = fs
	rec, c = env.doJSONRequest(http.MethodGet, "/catalog/search?q=oslo", nil, uuid.Nil)
	require.NoError(t, env.Catalog.Search(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "oslo", fs.query)
	assert.EqualValues(t, 1, decode[search.Results](t, rec).Total)
}

func TestCart_Unauthorized(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(http.MethodGet, "/cart", nil, uuid.Nil)
	require.NoError(t, env.Cart.GetCart(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCart_AddWithoutActiveTable(t *testing.T) {
	env := newTestEnv(t)
	customer := uuid.New()

	rec, c := env.doJSONRequest(http.MethodPost, "/cart/items", cart.AddRequest{
		ProductID: env.Sofa.ID, FabricID: env.Velvet.ID, MeasureCM: 200, Quantity: 1,
	}, customer)
	require.NoError(t, env.Cart.AddItem(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec, c = env.doJSONRequest(http.MethodGet, "/cart", nil, customer)
	require.NoError(t, env.Cart.GetCart(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[cartResponse](t, rec).Totals.GrandTotal.IsZero())
}

func TestCart_AddCouponCheckout(t *testing.T) {
	env := newTestEnv(t)
	env.activate(t)
	customer := uuid.New()

	rec, c := env.doJSONRequest(http.MethodPost, "/cart/items", cart.AddRequest{
		ProductID: env.Sofa.ID, FabricID: env.Velvet.ID, MeasureCM: 200, Quantity: 2,
	}, customer)
	require.NoError(t, env.Cart.AddItem(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	line := decode[models.CartLine](t, rec)
	assert.Equal(t, "1350.00", line.UnitPrice.StringFixed(2))

	rec, c = env.doJSONRequest(http.MethodPost, "/cart/items", cart.AddRequest{
		ProductID: env.Sofa.ID, FabricID: env.Velvet.ID, MeasureCM: 260, Quantity: 1,
	}, customer)
	require.NoError(t, env.Cart.AddItem(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "pricing_unavailable", decode[map[string]string](t, rec)["error"])

	rec, c = env.doJSONRequest(http.MethodPatch, "/cart/items/"+line.ID.String(), echo.Map{"quantity": 0}, customer)
	c.SetParamNames("id")
	c.SetParamValues(line.ID.String())
	require.NoError(t, env.Cart.UpdateItem(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[models.CartLine](t, rec).Quantity)

	rec, c = env.doJSONRequest(http.MethodPost, "/admin/coupons", echo.Map{"code": "welcome", "kind": "fixed", "value": "50"}, uuid.Nil)
	require.NoError(t, env.Admin.CreateCoupon(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, c = env.doJSONRequest(http.MethodPut, "/cart/coupon", echo.Map{"code": "nope"}, customer)
	require.NoError(t, env.Cart.AttachCoupon(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, c = env.doJSONRequest(http.MethodPut, "/cart/coupon", echo.Map{"code": "welcome"}, customer)
	require.NoError(t, env.Cart.AttachCoupon(c))
	require.Equal(t, http.StatusOK, rec.Code)
	totals := decode[cartResponse](t, rec).Totals
	assert.Equal(t, "WELCOME", totals.CouponCode)
	assert.Equal(t, "1300.00", totals.GrandTotal.StringFixed(2))

	rec, c = env.doJSONRequest(http.MethodPost, "/cart/checkout", nil, customer)
	require.NoError(t, env.Cart.Checkout(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	placed := decode[checkoutResponse](t, rec).Order
	require.NotNil(t, placed)
	assert.Equal(t, models.OrderAwaitingApproval, placed.Status)
	assert.Equal(t, "1300.00", placed.Total.StringFixed(2))
	assert.Len(t, env.Events.Of(events.TopicOrder), 1)

	rec, c = env.doJSONRequest(http.MethodGet, "/orders/"+placed.ID.String(), nil, customer)
	c.SetParamNames("id")
	c.SetParamValues(placed.ID.String())
	require.NoError(t, env.Orders.GetOrder(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.Order](t, rec).Items, 1)

	rec, c = env.doJSONRequest(http.MethodGet, "/orders/"+placed.ID.String(), nil, uuid.New())
	c.SetParamNames("id")
	c.SetParamValues(placed.ID.String())
	require.NoError(t, env.Orders.GetOrder(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, c = env.doJSONRequest(http.MethodPost, "/cart/checkout", nil, customer)
	require.NoError(t, env.Cart.Checkout(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCart_CheckoutBlocked(t *testing.T) {
	env := newTestEnv(t)
	env.activate(t)
	customer := uuid.New()

	rec, c := env.doJSONRequest(http.MethodPost, "/cart/items", cart.AddRequest{
		ProductID: env.Sofa.ID, FabricID: env.Velvet.ID, MeasureCM: 200, Quantity: 1,
	}, customer)
	require.NoError(t, env.Cart.AddItem(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	target := "/admin/price-tables/" + env.Table.ID.String() + "/rows/" + env.Sofa.ID.String() + "/200"
	rec, c = env.doJSONRequest(http.MethodDelete, target, nil, uuid.Nil)
	c.SetParamNames("id", "product_id", "measure")
	c.SetParamValues(env.Table.ID.String(), env.Sofa.ID.String(), "200")
	require.NoError(t, env.Admin.DeleteRow(c))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec, c = env.doJSONRequest(http.MethodPost, "/cart/checkout", nil, customer)
	require.NoError(t, env.Cart.Checkout(c))
	require.Equal(t, http.StatusConflict, rec.Code)
	resp := decode[checkoutResponse](t, rec)
	assert.Equal(t, "checkout_blocked", resp.Error)
	assert.Nil(t, resp.Order)
	assert.Equal(t, 1, resp.Report.Removed)

	rec, c = env.doJSONRequest(http.MethodGet, "/cart", nil, customer)
	require.NoError(t, env.Cart.GetCart(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[cartResponse](t, rec).Cart.Lines)
}

func TestAdmin_ActivateRequiresCleanTable(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.doJSONRequest(http.MethodPost, "/admin/price-tables", echo.Map{"name": "draft"}, uuid.Nil)
	require.NoError(t, env.Admin.CreateTable(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	draft := decode[models.PriceTable](t, rec)

	base := "/admin/price-tables/" + draft.ID.String()
	rec, c = env.doJSONRequest(http.MethodPost, base+"/products/"+env.Sofa.ID.String()+"/skeleton", nil, uuid.Nil)
	c.SetParamNames("id", "product_id")
	c.SetParamValues(draft.ID.String(), env.Sofa.ID.String())
	require.NoError(t, env.Admin.CreateSkeleton(c))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]int](t, rec)["created"])

	rec, c = env.doJSONRequest(http.MethodPost, base+"/activate?require_clean=true", nil, uuid.Nil)
	c.SetParamNames("id")
	c.SetParamValues(draft.ID.String())
	require.NoError(t, env.Admin.Activate(c))
	require.Equal(t, http.StatusConflict, rec.Code)
	var notClean struct {
		Error      string                 `json:"error"`
		Violations []pricetable.Violation `json:"violations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notClean))
	assert.Equal(t, "table_not_clean", notClean.Error)
	assert.NotEmpty(t, notClean.Violations)

	rec, c = env.doJSONRequest(http.MethodPost, "/admin/price-tables/"+env.Table.ID.String()+"/activate?require_clean=true", nil, uuid.Nil)
	c.SetParamNames("id")
	c.SetParamValues(env.Table.ID.String())
	require.NoError(t, env.Admin.Activate(c))
	require.Equal(t, http.StatusOK, rec.Code)

	active, err := env.Admin.Svc.Site.ActiveTableID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, env.Table.ID, active)
}

func TestAdmin_UpsertRows(t *testing.T) {
	env := newTestEnv(t)

	rows := []pricetable.RowInput{{ProductID: env.Sofa.ID, MeasureCM: 200, Prices: testutil.Ladder(2000, 100)}}
	rec, c := env.doJSONRequest(http.MethodPut, "/admin/price-tables/"+env.Table.ID.String()+"/rows", rows, uuid.Nil)
	c.SetParamNames("id")
	c.SetParamValues(env.Table.ID.String())
	require.NoError(t, env.Admin.UpsertRows(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]int](t, rec)["upserted"])

	rows[0].MeasureCM = 0
	rec, c = env.doJSONRequest(http.MethodPut, "/admin/price-tables/"+env.Table.ID.String()+"/rows", rows, uuid.Nil)
	c.SetParamNames("id")
	c.SetParamValues(env.Table.ID.String())
	require.NoError(t, env.Admin.UpsertRows(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	unknown := uuid.New().String()
	rec, c = env.doJSONRequest(http.MethodGet, "/admin/price-tables/"+unknown+"/rows", nil, uuid.Nil)
	c.SetParamNames("id")
	c.SetParamValues(unknown)
	require.NoError(t, env.Admin.ListRows(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdmin_ImportExport(t *testing.T) {
	env := newTestEnv(t)
	id := env.Table.ID.String()

	req := httptest.NewRequest(http.MethodGet, "/admin/price-tables/"+id+"/export", nil)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	require.NoError(t, env.Admin.Export(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/csv")
	sheet := rec.Body.String()
	assert.True(t, strings.HasPrefix(sheet, strings.Join(importer.Header, ",")))
	assert.Contains(t, sheet, "Oslo")

	req = httptest.NewRequest(http.MethodPost, "/admin/price-tables/"+id+"/import", strings.NewReader(sheet))
	req.Header.Set(echo.HeaderContentType, "text/csv")
	rec = httptest.NewRecorder()
	c = env.E.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	require.NoError(t, env.Admin.Import(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]int](t, rec)["imported"])

	req = httptest.NewRequest(http.MethodPost, "/admin/price-tables/"+id+"/import", strings.NewReader("nope\n"))
	rec = httptest.NewRecorder()
	c = env.E.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	require.NoError(t, env.Admin.Import(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.NotEmpty(t, env.Events.Of(events.TopicPriceTable))
}

func TestAdmin_FeaturedDiscount(t *testing.T) {
	env := newTestEnv(t)
	pid := env.Sofa.ID.String()

	rec, c := env.doJSONRequest(http.MethodPut, "/admin/featured-discounts/"+pid, echo.Map{"percent": "15"}, uuid.Nil)
	c.SetParamNames("product_id")
	c.SetParamValues(pid)
	require.NoError(t, env.Admin.SetFeaturedDiscount(c))
	require.Equal(t, http.StatusOK, rec.Code)

	rec, c = env.doJSONRequest(http.MethodPut, "/admin/featured-discounts/"+pid, echo.Map{"percent": "0"}, uuid.Nil)
	c.SetParamNames("product_id")
	c.SetParamValues(pid)
	require.NoError(t, env.Admin.SetFeaturedDiscount(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, c = env.doJSONRequest(http.MethodDelete, "/admin/featured-discounts/"+pid, nil, uuid.Nil)
	c.SetParamNames("product_id")
	c.SetParamValues(pid)
	require.NoError(t, env.Admin.ClearFeaturedDiscount(c))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, c = env.doJSONRequest(http.MethodDelete, "/admin/featured-discounts/"+pid, nil, uuid.Nil)
	c.SetParamNames("product_id")
	c.SetParamValues(pid)
	require.NoError(t, env.Admin.ClearFeaturedDiscount(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

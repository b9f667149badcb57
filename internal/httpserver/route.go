package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	middleware "github.com/BRRODORTEGA/SOFA-sub000/pkg/middleware/auth"
)

type Deps struct {
	CatalogHandler *CatalogHTTP
	CartHandler    *CartHTTP
	OrderHandler   *OrderHTTP
	AdminHandler   *AdminHTTP

	JWTSecret    []byte
	AuthClient   middleware.Refresher
	CookieSecure bool
	// CSRF guards the cookie authenticated groups when set.
	CSRF echo.MiddlewareFunc

	// DB backs the readiness probe; nil reports ready.
	DB *gorm.DB
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.DB != nil {
			sqlDB, err := d.DB.DB()
			if err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	authMW := middleware.NewAutoRefreshMiddleware(d.JWTSecret, d.AuthClient)
	authMW.SecureCookies = d.CookieSecure

	e.GET("/pricing/quote", d.CatalogHandler.Quote)
	e.GET("/catalog/search", d.CatalogHandler.Search)

	cart := e.Group("/cart")
	if d.CSRF != nil {
		cart.Use(d.CSRF)
	}
	cart.Use(authMW.RequireAuth)

	cart.GET("", d.CartHandler.GetCart)
	cart.POST("/items", d.CartHandler.AddItem)
	cart.PATCH("/items/:id", d.CartHandler.UpdateItem)
	cart.DELETE("/items/:id", d.CartHandler.RemoveItem)
	cart.PUT("/coupon", d.CartHandler.AttachCoupon)
	cart.DELETE("/coupon", d.CartHandler.DetachCoupon)
	cart.POST("/revalidate", d.CartHandler.Revalidate)
	cart.POST("/checkout", d.CartHandler.Checkout)

	orders := e.Group("/orders")
	if d.CSRF != nil {
		orders.Use(d.CSRF)
	}
	orders.Use(authMW.RequireAuth)

	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/:id", d.OrderHandler.GetOrder)

	admin := e.Group("/admin")
	if d.CSRF != nil {
		admin.Use(d.CSRF)
	}
	admin.Use(authMW.RequireAdmin)

	admin.GET("/price-tables", d.AdminHandler.ListTables)
	admin.POST("/price-tables", d.AdminHandler.CreateTable)
	admin.GET("/price-tables/:id/rows", d.AdminHandler.ListRows)
	admin.PUT("/price-tables/:id/rows", d.AdminHandler.UpsertRows)
	admin.DELETE("/price-tables/:id/rows/:product_id/:measure", d.AdminHandler.DeleteRow)
	admin.GET("/price-tables/:id/violations", d.AdminHandler.Violations)
	admin.GET("/price-tables/:id/products/:product_id/missing", d.AdminHandler.MissingVariants)
	admin.POST("/price-tables/:id/products/:product_id/skeleton", d.AdminHandler.CreateSkeleton)
	admin.POST("/price-tables/:id/activate", d.AdminHandler.Activate)
	admin.POST("/price-tables/:id/import", d.AdminHandler.Import)
	admin.GET("/price-tables/:id/export", d.AdminHandler.Export)
	admin.POST("/coupons", d.AdminHandler.CreateCoupon)
	admin.PATCH("/coupons/:code", d.AdminHandler.SetCouponActive)
	admin.PUT("/featured-discounts/:product_id", d.AdminHandler.SetFeaturedDiscount)
	admin.DELETE("/featured-discounts/:product_id", d.AdminHandler.ClearFeaturedDiscount)
}

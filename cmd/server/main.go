package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"github.com/BRRODORTEGA/SOFA-sub000/internal/backoffice"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/cart"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/catalog"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/config"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/coupon"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/events"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/httpserver"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/importer"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/migrations"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/order"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/pricetable"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/pricing"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/search"
	"github.com/BRRODORTEGA/SOFA-sub000/internal/siteconfig"
	"github.com/BRRODORTEGA/SOFA-sub000/pkg/authclient"
	pkgconfig "github.com/BRRODORTEGA/SOFA-sub000/pkg/config"
	pkgdb "github.com/BRRODORTEGA/SOFA-sub000/pkg/db"
	"github.com/BRRODORTEGA/SOFA-sub000/pkg/logging"
	"github.com/BRRODORTEGA/SOFA-sub000/pkg/middleware/csrf"
	loggingmw "github.com/BRRODORTEGA/SOFA-sub000/pkg/middleware/logging"
)

func openDB(ctx context.Context, cfg pkgconfig.Config) (*gorm.DB, error) {
	if cfg.DBDriver == config.DriverSQLite {
		return pkgdb.OpenSQLite(ctx, cfg.DatabaseURL)
	}
	return pkgdb.Open(ctx, cfg.DatabaseURL)
}

func migrate(ctx context.Context, cfg pkgconfig.Config, db *gorm.DB) error {
	switch cfg.Migrations {
	case config.MigrateGoose:
		return migrations.Up(ctx, cfg.DatabaseURL)
	case config.MigrateAuto:
		return migrations.Auto(db)
	}
	return nil
}

func main() {
	cfg := config.Load()

	logger := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)
	slog.SetDefault(logger)
	initCtx, cancel := context.WithTimeout(logging.IntoContext(context.Background(), logger), 30*time.Second)

	db, err := openDB(initCtx, cfg)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	if err := migrate(initCtx, cfg, db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	var (
		publisher events.Publisher = events.Nop{}
		producer  *events.Producer
	)
	if len(cfg.KafkaBrokers) > 0 {
		if err := events.EnsureTopics(initCtx, cfg.KafkaBrokers[0], events.Topics...); err != nil {
			logger.Warn("kafka topics not ensured", "error", err)
		}
		producer, err = events.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Fatalf("kafka producer: %v", err)
		}
		publisher = producer
	} else {
		logger.Info("KAFKA_BROKERS not set, events are dropped")
	}

	tables := &pricetable.GormRepo{DB: db}
	cat := &catalog.GormRepo{DB: db}
	site := &siteconfig.GormRepo{DB: db}
	coupons := &coupon.GormRepo{DB: db}
	orders := &order.GormRepo{DB: db}
	prices := &pricing.Service{Tables: tables, Catalog: cat, Site: site}

	office := &backoffice.Service{
		Tables:    tables,
		Catalog:   cat,
		Validator: &pricetable.Validator{Repo: tables},
		Sync:      &pricetable.Synchronizer{Repo: tables, Catalog: cat},
		Site:      site,
		Coupons:   coupons,
		Importer:  &importer.Service{Catalog: cat, Tables: tables},
		Events:    publisher,
	}
	catalogHandler := &httpserver.CatalogHTTP{Pricing: prices}

	if cfg.ESURL != "" {
		client, err := search.NewClient(initCtx, cfg.ESURL, cfg.ESUser, cfg.ESPassword)
		if err != nil {
			logger.Warn("search disabled", "error", err)
		} else {
			indexer := &search.Indexer{
				Index:   &search.ESIndex{Client: client, Name: cfg.SearchIndex},
				Catalog: cat,
				Tables:  tables,
				Site:    site,
			}
			if _, err := indexer.ReindexActive(initCtx); err != nil && !errors.Is(err, siteconfig.ErrNoActiveTable) {
				logger.Warn("initial reindex failed", "error", err)
			}
			office.Search = indexer
			catalogHandler.Index = indexer
		}
	}
	cancel()

	deps := &httpserver.Deps{
		CatalogHandler: catalogHandler,
		CartHandler: &httpserver.CartHTTP{
			Engine: &cart.Engine{
				Repo:    &cart.GormRepo{DB: db},
				Pricing: prices,
				Catalog: cat,
				Coupons: coupons,
				Orders:  orders,
				Events:  publisher,
			},
			Site: site,
		},
		OrderHandler: &httpserver.OrderHTTP{Orders: orders},
		AdminHandler: &httpserver.AdminHTTP{Svc: office},
		JWTSecret:    cfg.JWTAccessSecret,
		CookieSecure: cfg.CookieSecure,
		DB:           db,
	}
	if cfg.CSRFEnabled {
		deps.CSRF = csrf.Middleware(csrf.Config{Secure: cfg.CookieSecure})
	}
	if cfg.AuthHTTPURL != "" {
		deps.AuthClient = authclient.NewClient(cfg.AuthHTTPURL)
	}

	e := echo.New()
	e.HideBanner = true
	e.Pre(echomw.RemoveTrailingSlash())
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(loggingmw.RequestLogger(logger))
	e.Use(echomw.CORS())
	e.Use(echomw.Secure())

	httpserver.Register(e, deps)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           e,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("storefront listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Error("kafka close error", "error", err)
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			logger.Error("db close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"github.com/wichananm65/storefront-backend/internal/address"
	"github.com/wichananm65/storefront-backend/internal/auth"
	"github.com/wichananm65/storefront-backend/internal/cart"
	"github.com/wichananm65/storefront-backend/internal/catalog"
	"github.com/wichananm65/storefront-backend/internal/category"
	"github.com/wichananm65/storefront-backend/internal/config"
	"github.com/wichananm65/storefront-backend/internal/logging"
	"github.com/wichananm65/storefront-backend/internal/order"
)

func main() {
	cfg := config.Load()

	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	if err := migrate(ctx, db); err != nil {
		log.Fatal("apply schema", zap.Error(err))
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	setupCORS(app)
	app.Use(logging.RequestLogger(log))

	productRepo := catalog.NewPostgresRepository(db)
	products := catalog.NewCachedReader(productRepo, cfg.CatalogCacheTTL)
	catalogHandler := catalog.NewHandler(catalog.NewService(productRepo, products, log.Named("catalog")))

	categoryHandler := category.NewHandler(category.NewService(category.NewPostgresRepository(db)))

	cartService := cart.NewService(cart.NewPostgresRepository(db), products, log.Named("cart"))
	cartHandler := cart.NewHandler(cartService)

	addressService := address.NewService(address.NewPostgresRepository(db))
	addressHandler := address.NewHandler(addressService)

	orderService := order.NewService(order.NewPostgresRepository(db), cartService, addressService, products, log.Named("order")).
		WithCharges(order.Charges{TaxRate: cfg.TaxRate, ShippingCost: cfg.ShippingCost})
	orderHandler := order.NewHandler(orderService, cfg.StatsDefaultDays)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	// guests call this once to obtain the id they send in the guest header
	app.Post("/api/v1/guests", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"guestId": auth.NewGuestID()})
	})
	catalogHandler.RegisterPublicRoutes(app)
	categoryHandler.RegisterPublicRoutes(app)
	orderHandler.RegisterPublicRoutes(app)

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET is empty; tokens signed with an empty key will be accepted")
	}
	app.Use(auth.Middleware(cfg.JWTSecret))

	catalogHandler.RegisterProtectedRoutes(app)
	categoryHandler.RegisterProtectedRoutes(app)
	cartHandler.RegisterProtectedRoutes(app)
	addressHandler.RegisterProtectedRoutes(app)
	orderHandler.RegisterProtectedRoutes(app)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	}()

	log.Info("listening", zap.String("addr", cfg.Addr), zap.Duration("catalog_cache_ttl", cfg.CatalogCacheTTL))
	if err := app.Listen(cfg.Addr); err != nil {
		log.Fatal("listen", zap.Error(err))
	}
}

var errDatabaseURL = errors.New("DATABASE_URL is not set")

func setupCORS(app *fiber.App) {
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + auth.GuestHeader,
	}))
}

func openDB(ctx context.Context, url string) (*sql.DB, error) {
	if url == "" {
		return nil, errDatabaseURL
	}
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

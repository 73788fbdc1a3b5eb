package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"aegis-backend/internal/abac"
	"aegis-backend/internal/apperror"
	"aegis-backend/internal/authz"
	"aegis-backend/internal/clients"
	"aegis-backend/internal/config"
	"aegis-backend/internal/exchange"
	"aegis-backend/internal/httpapi"
	"aegis-backend/internal/rbac"
	"aegis-backend/internal/store"
	"aegis-backend/internal/token"
)

func main() {
	ctx := context.Background()

	// 1. Load and validate config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
	log.Printf("Config loaded (port: %d, db: %s, issuer: %s)", cfg.Server.Port, cfg.Database.Driver, cfg.JWT.Issuer)

	// 2. Connect to database
	db, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	// 3. Bootstrap system tables
	if err := db.Bootstrap(ctx); err != nil {
		log.Fatalf("Failed to bootstrap system tables: %v", err)
	}
	log.Println("System tables ready")

	// 4. Token codec and SQL-backed stores
	codec := token.NewCodec(cfg.JWT.Issuer, cfg.JWT.Secret, cfg.JWT.AccessTTL())
	directory := store.NewDirectory(db)
	policies := abac.NewService(store.NewPolicyStore(db))

	// 5. Decision sink: SQL-backed when enabled, otherwise discard
	var sink authz.DecisionSink = authz.NoopSink{}
	if cfg.DecisionLog.Enabled {
		decisions := store.NewDecisionStore(db)
		buffered := authz.NewBufferedSink(
			cfg.DecisionLog.BufferSize,
			time.Duration(cfg.DecisionLog.FlushIntervalMs)*time.Millisecond,
			decisions.Flush,
		)
		defer buffered.Stop()
		sink = buffered
	}

	// 6. Authorization guard
	rbacCfg := rbac.Config{PlatformAdminEmails: cfg.Auth.PlatformAdminEmails}
	guard := authz.NewGuard(rbacCfg, policies, sink)

	// 7. Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))
	app.Use(logger.New(logger.Config{
		Format: "${time} ${status} ${method} ${path} ${latency}\n",
	}))

	// 8. Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// 9. Token RPC routes (no auth middleware — tokens come in the body)
	exchangeSvc := exchange.NewService(codec, directory, cfg.Auth.AllowedAudiences)
	exchange.RegisterRoutes(app, exchange.NewHandler(exchangeSvc))

	// 10. Auth middleware for protected routes
	registry := clients.NewRegistry(directory)
	authMW := httpapi.AuthMiddleware(codec, cfg.Auth.AllowedAudiences, registry)

	// 11. Policy admin routes
	policyHandler := httpapi.NewPolicyHandler(rbacCfg, policies)
	httpapi.RegisterPolicyRoutes(app, policyHandler, authMW)

	// 12. Authorization decision endpoint
	authzHandler := httpapi.NewAuthzHandler(guard)
	httpapi.RegisterAuthzRoutes(app, authzHandler, authMW)

	// 13. Start server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Fatal(app.Listen(addr))
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		code = fiberErr.Code
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(apperror.ErrorResponse{Error: appErr})
	}

	log.Printf("ERROR: %v", err)
	return c.Status(code).JSON(apperror.ErrorResponse{
		Error: &apperror.AppError{
			Code:    "INTERNAL_ERROR",
			Message: "Internal server error",
		},
	})
}

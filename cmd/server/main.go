package main

import (
	"os"
	"os/signal"
	"syscall"

	"vetbridge-affiliate/internal/adapters/http/middleware"
	"vetbridge-affiliate/internal/adapters/http/routes"
	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/bootstrap"
	"vetbridge-affiliate/internal/config"
	"vetbridge-affiliate/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	_ "vetbridge-affiliate/docs" // Swagger docs
)

// @title VetBridge Affiliate Commission API
// @version 1.0
// @description Multi-level referral commission engine for veterans-services brokerage

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to load configuration")
	}
	logger.Setup(cfg.AppMode, cfg.LogLevel)

	// Connect to database
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to connect to database")
	}
	defer config.CloseDatabase()

	// Auto migrate (creates tables if not exist)
	if err := models.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to auto migrate")
	}
	log.Info().Msg("✅ Database migration completed")

	// Seed bootstrap operator
	if err := config.NewSeeder(db, cfg).Run(); err != nil {
		log.Warn().Err(err).Msg("⚠️ Failed to seed operator")
	}

	container := bootstrap.New(db, cfg)

	// Scheduled upline cache rebuild and missing-commission sweep
	if cfg.Cron.Enabled {
		cronService := container.Cron(cfg)
		if err := cronService.Start(); err != nil {
			log.Fatal().Err(err).Msg("❌ Failed to start cron service")
		}
		defer cronService.Stop()
	}

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "VetBridge Affiliate API v1.0",
		ErrorHandler: middleware.CustomErrorHandler,
	})

	// Setup middlewares
	middleware.Setup(app, cfg)

	// Setup routes
	routes.Setup(app, container.Routes(), cfg)

	// Graceful shutdown
	go gracefulShutdown(app)

	// Start server
	log.Info().Str("port", cfg.Port).Str("mode", cfg.AppMode).Msg("🚀 Server starting")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("❌ Failed to start server")
	}
}

// gracefulShutdown handles graceful shutdown
func gracefulShutdown(app *fiber.App) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("🛑 Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Error().Err(err).Msg("❌ Error during shutdown")
	}
	log.Info().Msg("✅ Server stopped gracefully")
}

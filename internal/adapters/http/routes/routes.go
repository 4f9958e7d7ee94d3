package routes

import (
	"vetbridge-affiliate/internal/adapters/http/handlers"
	"vetbridge-affiliate/internal/adapters/http/middleware"
	"vetbridge-affiliate/internal/config"
	"vetbridge-affiliate/internal/core/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services bundles the wired services the HTTP layer depends on
type Services struct {
	Auth        *services.AuthService
	Directory   *services.DirectoryService
	Resolver    *services.HierarchyResolver
	Sales       *services.SaleService
	Commissions *services.CommissionService
	Ledger      *services.LedgerService
	Simulator   *services.SimulatorService
}

// Setup configures all routes for the application
func Setup(app *fiber.App, svc *Services, cfg *config.Config) {
	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg)
	authHandler := handlers.NewAuthHandler(svc.Auth)
	affiliateHandler := handlers.NewAffiliateHandler(svc.Directory, svc.Ledger, svc.Resolver)
	saleHandler := handlers.NewSaleHandler(svc.Sales, svc.Commissions, svc.Ledger)
	commissionHandler := handlers.NewCommissionHandler(svc.Ledger)
	reportHandler := handlers.NewReportHandler(svc.Ledger)
	simulationHandler := handlers.NewSimulationHandler(svc.Simulator, svc.Ledger)

	// Health check & root routes
	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// API v1 group
	apiV1 := app.Group("/api/v1")
	apiV1.Get("/", healthHandler.APIInfo)

	// Auth routes
	authRoutes := apiV1.Group("/auth")
	authRoutes.Post("/login", middleware.AuthRateLimiter(), authHandler.Login)
	authRoutes.Get("/me", middleware.AuthMiddleware(cfg), authHandler.Me)

	// Affiliate directory routes
	affiliateRoutes := apiV1.Group("/affiliates")
	affiliateRoutes.Use(middleware.AuthMiddleware(cfg))
	setupAffiliateRoutes(affiliateRoutes, affiliateHandler)

	// Sale ledger routes
	saleRoutes := apiV1.Group("/sales")
	saleRoutes.Use(middleware.AuthMiddleware(cfg))
	setupSaleRoutes(saleRoutes, saleHandler, commissionHandler)

	// Commission ledger routes
	commissionRoutes := apiV1.Group("/commissions")
	commissionRoutes.Use(middleware.AuthMiddleware(cfg))
	setupCommissionRoutes(commissionRoutes, commissionHandler)

	// Report routes
	reportRoutes := apiV1.Group("/reports")
	reportRoutes.Use(middleware.AuthMiddleware(cfg))
	reportRoutes.Use(middleware.NoCacheHeaders())
	setupReportRoutes(reportRoutes, reportHandler)

	// Simulation routes (Admin only)
	simulationRoutes := apiV1.Group("/simulations")
	simulationRoutes.Use(middleware.AuthMiddleware(cfg))
	simulationRoutes.Use(middleware.AdminOnly())
	setupSimulationRoutes(simulationRoutes, simulationHandler)
}

// setupAffiliateRoutes configures affiliate directory routes
func setupAffiliateRoutes(router fiber.Router, handler *handlers.AffiliateHandler) {
	router.Get("/", handler.List)
	router.Post("/", handler.Create)
	router.Post("/rebuild-cache", middleware.AdminOnly(), handler.RebuildCache)
	router.Get("/code/:code", handler.GetByCode)
	router.Get("/:id", handler.Get)
	router.Get("/:id/upline", handler.Upline)
	router.Patch("/:id/upline", handler.SetUpline)
	router.Patch("/:id/status", handler.SetStatus)
	router.Patch("/:id/comp-active", handler.SetCompActive)
	router.Get("/:id/downline", handler.Downline)
	router.Get("/:id/summary", middleware.NoCacheHeaders(), handler.Summary)
}

// setupSaleRoutes configures sale ledger routes
func setupSaleRoutes(router fiber.Router, handler *handlers.SaleHandler, commissionHandler *handlers.CommissionHandler) {
	router.Get("/", handler.List)
	router.Post("/", handler.Record)
	router.Get("/:id", handler.Get)
	router.Patch("/:id/status", handler.Transition)
	router.Post("/:id/compute", handler.Compute)
	router.Get("/:id/commissions", handler.Commissions)
	router.Patch("/:id/commissions/status", commissionHandler.TransitionBySale)
}

// setupCommissionRoutes configures commission ledger routes
func setupCommissionRoutes(router fiber.Router, handler *handlers.CommissionHandler) {
	router.Get("/", handler.List)
	router.Get("/:id", handler.Get)
	router.Patch("/:id/status", handler.Transition)
}

// setupReportRoutes configures aggregation and export routes
func setupReportRoutes(router fiber.Router, handler *handlers.ReportHandler) {
	router.Get("/affiliates", handler.Affiliates)
	router.Get("/export", handler.Export)
	router.Get("/verify", handler.Verify)
}

// setupSimulationRoutes configures stress-test routes (Admin only)
func setupSimulationRoutes(router fiber.Router, handler *handlers.SimulationHandler) {
	router.Get("/", handler.List)
	router.Post("/", middleware.SimulationRateLimiter(), handler.Run)
	router.Delete("/", handler.ClearAll)
	router.Get("/:runId", handler.Get)
	router.Delete("/:runId", handler.Clear)
}

// Package bootstrap wires repositories and services for the server and the CLI.
package bootstrap

import (
	"vetbridge-affiliate/internal/adapters/http/routes"
	"vetbridge-affiliate/internal/adapters/persistence/repositories"
	"vetbridge-affiliate/internal/config"
	"vetbridge-affiliate/internal/core/services"

	"gorm.io/gorm"
)

// Container holds the wired application services
type Container struct {
	DB          *gorm.DB
	Auth        *services.AuthService
	Directory   *services.DirectoryService
	Resolver    *services.HierarchyResolver
	Sales       *services.SaleService
	Commissions *services.CommissionService
	Ledger      *services.LedgerService
	Simulator   *services.SimulatorService
}

// New builds every repository and service on top of db
func New(db *gorm.DB, cfg *config.Config) *Container {
	// Initialize repositories
	operatorRepo := repositories.NewOperatorRepository(db)
	affiliateRepo := repositories.NewAffiliateRepository(db)
	saleRepo := repositories.NewSaleRepository(db)
	commissionRepo := repositories.NewCommissionRepository(db)
	simulationRepo := repositories.NewSimulationRepository(db)

	// Initialize services
	resolver := services.NewHierarchyResolver(affiliateRepo, affiliateRepo)
	commissions := services.NewCommissionService(saleRepo, commissionRepo, resolver, cfg.Commission.Rates)

	return &Container{
		DB:          db,
		Auth:        services.NewAuthService(operatorRepo, cfg),
		Directory:   services.NewDirectoryService(affiliateRepo, resolver),
		Resolver:    resolver,
		Sales:       services.NewSaleService(saleRepo, affiliateRepo, commissions),
		Commissions: commissions,
		Ledger:      services.NewLedgerService(affiliateRepo, saleRepo, commissionRepo),
		Simulator: services.NewSimulatorService(
			db,
			affiliateRepo,
			saleRepo,
			commissionRepo,
			simulationRepo,
			commissions,
			cfg.Simulator.ScalePolicy,
			cfg.Simulator.ChunkSize,
		),
	}
}

// Routes exposes the services the HTTP layer needs
func (c *Container) Routes() *routes.Services {
	return &routes.Services{
		Auth:        c.Auth,
		Directory:   c.Directory,
		Resolver:    c.Resolver,
		Sales:       c.Sales,
		Commissions: c.Commissions,
		Ledger:      c.Ledger,
		Simulator:   c.Simulator,
	}
}

// Cron builds the scheduled job runner from the configured specs
func (c *Container) Cron(cfg *config.Config) *services.CronService {
	return services.NewCronService(c.Resolver, c.Commissions, cfg.Cron.UplineRebuild, cfg.Cron.ComputeMissing)
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"vetbridge-affiliate/internal/core/domain"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all configuration for the application
type Config struct {
	AppMode    string
	Port       string
	LogLevel   string
	Database   DatabaseConfig
	JWT        JWTConfig
	Admin      AdminSeedConfig
	Commission CommissionConfig
	Simulator  SimulatorConfig
	Cron       CronConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret          string
	AccessTokenMins int
}

// AdminSeedConfig holds the bootstrap operator account
type AdminSeedConfig struct {
	Username string
	Password string
}

// CommissionConfig holds the per-level rate table
type CommissionConfig struct {
	Rates domain.RateTable
}

// SimulatorConfig holds stress-test harness settings
type SimulatorConfig struct {
	ScalePolicy domain.ScalePolicy
	ChunkSize   int
}

// CronConfig holds background job schedules
type CronConfig struct {
	Enabled        bool
	UplineRebuild  string
	ComputeMissing string
}

// DefaultCommissionRates is used when COMMISSION_RATES is not set
const DefaultCommissionRates = "0.10,0.05,0.03,0.02,0.01,0.01"

// Global config instance
var AppConfig *Config

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, using environment variables")
	}

	// Trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	database, err := loadDatabaseConfig(appMode)
	if err != nil {
		return nil, err
	}

	commission, err := loadCommissionConfig()
	if err != nil {
		return nil, err
	}

	simulator, err := loadSimulatorConfig()
	if err != nil {
		return nil, err
	}

	config := &Config{
		AppMode:    appMode,
		Port:       getEnv("PORT", "3000"),
		LogLevel:   getEnv("LOG_LEVEL", ""),
		Database:   database,
		JWT:        loadJWTConfig(appMode),
		Admin:      loadAdminSeedConfig(),
		Commission: commission,
		Simulator:  simulator,
		Cron:       loadCronConfig(),
	}

	// Set global config
	AppConfig = config

	log.Info().Str("mode", appMode).Msg("✅ Configuration loaded successfully")
	return config, nil
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) (DatabaseConfig, error) {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	driver := strings.ToLower(strings.TrimSpace(getEnv("DB_DRIVER", "mysql")))
	defaultPort := "3306"
	switch driver {
	case "mysql":
	case "postgres":
		defaultPort = "5432"
	default:
		return DatabaseConfig{}, fmt.Errorf("invalid DB_DRIVER: '%s' (must be 'mysql' or 'postgres')", driver)
	}

	return DatabaseConfig{
		Driver:   driver,
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", defaultPort),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "vetbridge_affiliate"),
	}, nil
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	accessMins, _ := strconv.Atoi(getEnv("ACCESS_TOKEN_MINUTES", "60"))

	return JWTConfig{
		Secret:          getEnv(prefix+"JWT_SECRET", "default_secret"),
		AccessTokenMins: accessMins,
	}
}

func loadAdminSeedConfig() AdminSeedConfig {
	return AdminSeedConfig{
		Username: getEnv("ADMIN_USERNAME", ""),
		Password: getEnv("ADMIN_PASSWORD", ""),
	}
}

func loadCommissionConfig() (CommissionConfig, error) {
	rates, err := domain.ParseRateTable(getEnv("COMMISSION_RATES", DefaultCommissionRates))
	if err != nil {
		return CommissionConfig{}, fmt.Errorf("invalid COMMISSION_RATES: %w", err)
	}
	return CommissionConfig{Rates: rates}, nil
}

func loadSimulatorConfig() (SimulatorConfig, error) {
	policy := domain.ScalePolicy(strings.ToLower(getEnv("SIM_SCALE_POLICY", string(domain.ScalePolicyReject))))
	if policy != domain.ScalePolicyReject && policy != domain.ScalePolicyClamp {
		return SimulatorConfig{}, fmt.Errorf("invalid SIM_SCALE_POLICY: '%s' (must be 'reject' or 'clamp')", policy)
	}

	chunkSize, err := strconv.Atoi(getEnv("SIM_CHUNK_SIZE", "500"))
	if err != nil || chunkSize < 1 {
		return SimulatorConfig{}, fmt.Errorf("invalid SIM_CHUNK_SIZE: must be a positive integer")
	}

	return SimulatorConfig{
		ScalePolicy: policy,
		ChunkSize:   chunkSize,
	}, nil
}

func loadCronConfig() CronConfig {
	enabled, _ := strconv.ParseBool(getEnv("CRON_ENABLED", "true"))
	return CronConfig{
		Enabled:        enabled,
		UplineRebuild:  getEnv("CRON_UPLINE_REBUILD", "0 3 * * *"),
		ComputeMissing: getEnv("CRON_COMPUTE_MISSING", "@every 15m"),
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://partners.vetbridge.org"
	}
	return origins
}

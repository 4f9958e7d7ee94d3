package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/bootstrap"
	"vetbridge-affiliate/internal/config"
	"vetbridge-affiliate/internal/pkg/logger"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// LogLevel Flag
var LogLevel = ""

var rootCmd = &cobra.Command{
	Use:   "commctl",
	Short: "Operate the affiliate commission ledger",
	Long: `Maintenance and stress-test tooling for the affiliate commission engine.
Database and rate settings are read from the same environment as the API server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&LogLevel, "log-level", "", LogLevel, "logging level (debug|info|warn|error), default from LOG_LEVEL")
}

// Execute the commands
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("❌ Command failed")
	}
}

// setup loads configuration, connects the database and wires services
func setup() (*config.Config, *bootstrap.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	level := cfg.LogLevel
	if LogLevel != "" {
		level = LogLevel
	}
	logger.Setup(cfg.AppMode, level)

	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := models.AutoMigrate(db); err != nil {
		return nil, nil, err
	}
	return cfg, bootstrap.New(db, cfg), nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

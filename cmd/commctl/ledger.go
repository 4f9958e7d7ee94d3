package main

import (
	"errors"
	"os"

	"vetbridge-affiliate/internal/config"
	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/core/services"
	"vetbridge-affiliate/internal/pkg/export"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	scopeFlag      string
	exportOut      string
	verifyFile     string
	computeSale    uint
	computeRedo    bool
	computeMissing bool
	computeLimit   int
)

func init() {
	exportCmd.Flags().StringVar(&scopeFlag, "scope", "real", "real | synthetic | all | run:<id>")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default: stdout)")

	verifyCmd.Flags().StringVar(&scopeFlag, "scope", "real", "real | synthetic | all | run:<id>")
	verifyCmd.Flags().StringVar(&verifyFile, "file", "", "compare a previously exported CSV instead of the served report")

	computeCmd.Flags().UintVar(&computeSale, "sale", 0, "sale id to compute")
	computeCmd.Flags().BoolVar(&computeRedo, "recompute", false, "replace existing pending rows")
	computeCmd.Flags().BoolVar(&computeMissing, "missing", false, "compute every sale without commission rows")
	computeCmd.Flags().IntVar(&computeLimit, "limit", 1000, "max sales per --missing pass")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(computeCmd)
	rootCmd.AddCommand(rebuildUplinesCmd)
	rootCmd.AddCommand(migrateCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the per-affiliate commission report as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := domain.ParseScope(scopeFlag)
		if err != nil {
			return err
		}
		_, container, err := setup()
		if err != nil {
			return err
		}
		defer config.CloseDatabase()

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}

		rows, err := container.Ledger.ExportCSV(cmd.Context(), scope, out)
		if err != nil {
			return err
		}
		log.Info().Int("rows", rows).Str("scope", scopeFlag).Msg("✅ Export written")
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Recompute the report from raw commission rows and compare",
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := domain.ParseScope(scopeFlag)
		if err != nil {
			return err
		}
		_, container, err := setup()
		if err != nil {
			return err
		}
		defer config.CloseDatabase()

		var result *services.VerifyResult
		if verifyFile != "" {
			f, err := os.Open(verifyFile)
			if err != nil {
				return err
			}
			defer f.Close()
			rows, err := export.ReadAll(f)
			if err != nil {
				return err
			}
			result, err = container.Ledger.CompareExport(cmd.Context(), scope, rows)
			if err != nil {
				return err
			}
		} else {
			result, err = container.Ledger.VerifyReport(cmd.Context(), scope)
			if err != nil {
				return err
			}
		}

		if err := printJSON(result); err != nil {
			return err
		}
		if !result.OK() {
			return errors.New("report differs from raw commission rows")
		}
		return nil
	},
}

var computeCmd = &cobra.Command{
	Use:   "compute",
	Short: "Compute commissions for one sale or for every sale missing them",
	RunE: func(cmd *cobra.Command, args []string) error {
		if computeSale == 0 && !computeMissing {
			return errors.New("either --sale or --missing is required")
		}
		_, container, err := setup()
		if err != nil {
			return err
		}
		defer config.CloseDatabase()

		if computeMissing {
			result, err := container.Commissions.ComputeMissing(cmd.Context(), computeLimit)
			if err != nil {
				return err
			}
			return printJSON(result)
		}

		result, err := container.Commissions.ComputeCommissions(cmd.Context(), computeSale, services.ComputeOptions{Recompute: computeRedo})
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

var rebuildUplinesCmd = &cobra.Command{
	Use:   "rebuild-uplines",
	Short: "Recompute the cached upline columns of every affiliate",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, container, err := setup()
		if err != nil {
			return err
		}
		defer config.CloseDatabase()

		updated, err := container.Resolver.RebuildUplineCache(cmd.Context())
		if err != nil {
			return err
		}
		log.Info().Int("updated", updated).Msg("✅ Upline cache rebuilt")
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and seed the bootstrap operator",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, container, err := setup()
		if err != nil {
			return err
		}
		defer config.CloseDatabase()

		if err := config.NewSeeder(container.DB, cfg).Run(); err != nil {
			return err
		}
		log.Info().Msg("✅ Migration completed")
		return nil
	},
}

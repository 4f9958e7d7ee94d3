package main

import (
	"errors"

	"vetbridge-affiliate/internal/bootstrap"
	"vetbridge-affiliate/internal/config"
	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/core/services"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	simOptIns     int
	simRandomness int
	simSeed       int64
	simClamp      bool
	simVerify     bool
	clearRunID    string
)

func init() {
	simulateCmd.Flags().IntVar(&simOptIns, "opt-ins", 10000, "veteran opt-ins driving the run size")
	simulateCmd.Flags().IntVar(&simRandomness, "randomness", 50, "hierarchy randomness 0-100")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "random seed (default: clock)")
	simulateCmd.Flags().BoolVar(&simClamp, "clamp", false, "clamp out-of-range opt-ins instead of rejecting")
	simulateCmd.Flags().BoolVar(&simVerify, "verify", true, "verify the run's report against raw rows")
	clearCmd.Flags().StringVar(&clearRunID, "run", "", "run id to clear (default: every run)")

	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(clearCmd)
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Generate a synthetic hierarchy and sales through the real commission path",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, container, err := setup()
		if err != nil {
			return err
		}
		defer config.CloseDatabase()

		simulator := container.Simulator
		if simClamp {
			simulator = clampedSimulator(cfg, container)
		}

		ctx, stop := signalContext()
		defer stop()

		simCfg := services.SimulationConfig{
			VeteranOptIns:       simOptIns,
			HierarchyRandomness: simRandomness,
			OnChunk: func(phase string, done, total int) {
				log.Info().Str("phase", phase).Int("done", done).Int("total", total).Msg("⏳ Chunk committed")
			},
		}
		if cmd.Flags().Changed("seed") {
			simCfg.Seed = &simSeed
		}

		result, err := simulator.Run(ctx, simCfg)
		if err != nil && !(errors.Is(err, domain.ErrSimulationCancelled) && result != nil) {
			return err
		}
		if perr := printJSON(result); perr != nil {
			return perr
		}
		if err != nil {
			return err
		}

		if simVerify {
			verify, err := container.Ledger.VerifyReport(ctx, domain.Scope{Kind: domain.ScopeRun, RunID: result.RunID})
			if err != nil {
				return err
			}
			if err := printJSON(verify); err != nil {
				return err
			}
			if !verify.OK() {
				return errors.New("report differs from raw commission rows")
			}
		}
		return nil
	},
}

// clampedSimulator rebuilds the simulator with the clamp scale policy
func clampedSimulator(cfg *config.Config, container *bootstrap.Container) *services.SimulatorService {
	clamped := *cfg
	clamped.Simulator.ScalePolicy = domain.ScalePolicyClamp
	return bootstrap.New(container.DB, &clamped).Simulator
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete synthetic rows of one run, or of every run",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, container, err := setup()
		if err != nil {
			return err
		}
		defer config.CloseDatabase()

		result, err := container.Simulator.Clear(cmd.Context(), clearRunID)
		if err != nil {
			return err
		}
		return printJSON(result)
	},
}

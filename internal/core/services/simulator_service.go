package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/adapters/persistence/repositories"
	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Simulation sizing
const (
	MinVeteranOptIns = 1000
	MaxVeteranOptIns = 500000

	minSimAffiliates  = 5
	salesPerAffiliate = 7

	minSaleCents = 50000  // $500.00
	maxSaleCents = 500000 // $5,000.00

	// out of 100 non-root affiliates
	inactiveShare      = 5
	notCompActiveShare = 5

	defaultChunkSize = 500
)

// Simulation phases reported to OnChunk
const (
	PhaseAffiliates = "affiliates"
	PhaseSales      = "sales"
)

// SimulationConfig configures one stress-test run
type SimulationConfig struct {
	VeteranOptIns       int
	HierarchyRandomness int
	// Seed makes the run reproducible; nil draws one from the clock
	Seed *int64
	// OnChunk is called after every committed chunk
	OnChunk func(phase string, done, total int)
}

// SimulationResult summarises a run
type SimulationResult struct {
	RunID                string                  `json:"run_id"`
	Seed                 int64                   `json:"seed"`
	VeteranOptIns        int                     `json:"veteran_opt_ins"`
	HierarchyRandomness  int                     `json:"hierarchy_randomness"`
	Clamped              bool                    `json:"clamped"`
	AffiliatesUsed       int                     `json:"affiliates_used"`
	SalesCreated         int                     `json:"sales_created"`
	CommissionsCreated   int                     `json:"commissions_created"`
	SalesWithShortChains int                     `json:"sales_with_short_chains"`
	ForfeitedLevels      int                     `json:"forfeited_levels"`
	StaleLevels          int                     `json:"stale_levels"`
	TotalCommissionCents int64                   `json:"total_commission_cents"`
	Status               domain.SimulationStatus `json:"status"`
}

// ClearResult counts the rows removed by Clear
type ClearResult struct {
	RunID       string `json:"run_id,omitempty"`
	Commissions int64  `json:"commissions"`
	Sales       int64  `json:"sales"`
	Affiliates  int64  `json:"affiliates"`
	Runs        int64  `json:"runs"`
}

// SimulatorService generates synthetic hierarchies and sales through the
// real commission path
type SimulatorService struct {
	db          *gorm.DB
	affiliates  *repositories.AffiliateRepository
	sales       *repositories.SaleRepository
	commissions *repositories.CommissionRepository
	runs        *repositories.SimulationRepository
	computer    CommissionComputer
	policy      domain.ScalePolicy
	chunkSize   int
	log         zerolog.Logger
}

// NewSimulatorService creates a new simulator service
func NewSimulatorService(
	db *gorm.DB,
	affiliates *repositories.AffiliateRepository,
	sales *repositories.SaleRepository,
	commissions *repositories.CommissionRepository,
	runs *repositories.SimulationRepository,
	computer CommissionComputer,
	policy domain.ScalePolicy,
	chunkSize int,
) *SimulatorService {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if policy == "" {
		policy = domain.ScalePolicyReject
	}
	return &SimulatorService{
		db:          db,
		affiliates:  affiliates,
		sales:       sales,
		commissions: commissions,
		runs:        runs,
		computer:    computer,
		policy:      policy,
		chunkSize:   chunkSize,
		log:         logger.Component("simulator"),
	}
}

// SimulationSize returns the affiliate and sale counts for an opt-in count
func SimulationSize(optIns int) (affiliates, sales int) {
	affiliates = optIns * 3 / 1000
	if affiliates < minSimAffiliates {
		affiliates = minSimAffiliates
	}
	return affiliates, affiliates * salesPerAffiliate
}

// normalize validates cfg before anything is generated
func (s *SimulatorService) normalize(cfg *SimulationConfig) (optIns int, clamped bool, err error) {
	if cfg.HierarchyRandomness < 0 || cfg.HierarchyRandomness > 100 {
		return 0, false, fmt.Errorf("%w: got %d", domain.ErrInvalidRandomness, cfg.HierarchyRandomness)
	}

	optIns = cfg.VeteranOptIns
	if optIns >= MinVeteranOptIns && optIns <= MaxVeteranOptIns {
		return optIns, false, nil
	}
	if s.policy != domain.ScalePolicyClamp {
		return 0, false, fmt.Errorf("%w: %d not in [%d, %d]", domain.ErrSimulationScale, optIns, MinVeteranOptIns, MaxVeteranOptIns)
	}
	if optIns < MinVeteranOptIns {
		optIns = MinVeteranOptIns
	} else {
		optIns = MaxVeteranOptIns
	}
	return optIns, true, nil
}

// simAffiliate is the in-memory view of a generated affiliate
type simAffiliate struct {
	id       uint
	depth    int
	eligible bool
	cache    [3]*uint
}

// Run executes one stress-test run. A cancelled context stops the run at
// the next chunk boundary and returns ErrSimulationCancelled with the
// partial result.
func (s *SimulatorService) Run(ctx context.Context, cfg SimulationConfig) (*SimulationResult, error) {
	optIns, clamped, err := s.normalize(&cfg)
	if err != nil {
		return nil, err
	}

	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}

	numAffiliates, numSales := SimulationSize(optIns)
	result := &SimulationResult{
		RunID:               uuid.NewString(),
		Seed:                seed,
		VeteranOptIns:       optIns,
		HierarchyRandomness: cfg.HierarchyRandomness,
		Clamped:             clamped,
		Status:              domain.SimulationRunning,
	}

	run := &models.SimulationRun{
		RunID:               result.RunID,
		VeteranOptIns:       optIns,
		HierarchyRandomness: cfg.HierarchyRandomness,
		Seed:                seed,
		Status:              domain.SimulationRunning,
		StartedAt:           time.Now(),
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, err
	}

	runLog := s.log.With().Str("run_id", result.RunID).Logger()
	if clamped {
		runLog.Warn().Int("requested", cfg.VeteranOptIns).Int("used", optIns).Msg("⚠️ Veteran opt-ins clamped")
	}
	runLog.Info().Int("affiliates", numAffiliates).Int("sales", numSales).Int64("seed", seed).
		Int("randomness", cfg.HierarchyRandomness).Msg("🧪 Simulation started")

	rng := rand.New(rand.NewSource(seed))
	runErr := s.generate(ctx, rng, cfg, result, numAffiliates, numSales)

	switch {
	case runErr == nil:
		result.Status = domain.SimulationCompleted
	case errors.Is(runErr, domain.ErrSimulationCancelled):
		result.Status = domain.SimulationCancelled
	default:
		result.Status = domain.SimulationFailed
		run.Error = runErr.Error()
	}

	finished := time.Now()
	run.Status = result.Status
	run.AffiliatesUsed = result.AffiliatesUsed
	run.SalesCreated = result.SalesCreated
	run.CommissionsCreated = result.CommissionsCreated
	run.SalesWithShortChains = result.SalesWithShortChains
	run.ForfeitedLevels = result.ForfeitedLevels
	run.StaleLevels = result.StaleLevels
	run.FinishedAt = &finished
	if err := s.runs.Update(context.WithoutCancel(ctx), run); err != nil {
		runLog.Error().Err(err).Msg("❌ Failed to save simulation run record")
	}
	simulationRuns.WithLabelValues(string(result.Status)).Inc()

	runLog.Info().
		Str("status", string(result.Status)).
		Int("affiliates", result.AffiliatesUsed).
		Int("sales", result.SalesCreated).
		Int("commissions", result.CommissionsCreated).
		Int("short_chains", result.SalesWithShortChains).
		Dur("elapsed", finished.Sub(run.StartedAt)).
		Msg("🏁 Simulation finished")

	if runErr != nil {
		return result, runErr
	}
	return result, nil
}

func (s *SimulatorService) generate(ctx context.Context, rng *rand.Rand, cfg SimulationConfig, result *SimulationResult, numAffiliates, numSales int) error {
	provenance := domain.SyntheticProvenance(result.RunID)
	// Work inside a chunk always completes; cancellation is honoured between chunks.
	work := context.WithoutCancel(ctx)

	shaper := NewHierarchyShaper(cfg.HierarchyRandomness)
	generated := make([]simAffiliate, 0, numAffiliates)
	var eligible []int

	for start := 0; start < numAffiliates; start += s.chunkSize {
		if ctx.Err() != nil {
			return domain.ErrSimulationCancelled
		}
		end := min(start+s.chunkSize, numAffiliates)

		for i := start; i < end; i++ {
			parent := shaper.Parent(rng)
			a := s.newAffiliate(rng, result.RunID, provenance, i, parent, generated)
			if err := s.affiliates.Create(work, a); err != nil {
				return fmt.Errorf("create affiliate %d: %w", i, err)
			}

			node := simAffiliate{id: a.ID, depth: 1, eligible: a.Eligible()}
			if parent >= 0 {
				up := generated[parent]
				node.depth = up.depth + 1
				uplineID := up.id
				node.cache = [3]*uint{&uplineID, up.cache[0], up.cache[1]}
			}
			generated = append(generated, node)
			shaper.Placed(i, node.depth)
			if node.eligible {
				eligible = append(eligible, i)
			}
		}

		result.AffiliatesUsed = len(generated)
		if cfg.OnChunk != nil {
			cfg.OnChunk(PhaseAffiliates, end, numAffiliates)
		}
	}

	if err := s.writeCaches(work, generated); err != nil {
		return err
	}

	for start := 0; start < numSales; start += s.chunkSize {
		if ctx.Err() != nil {
			return domain.ErrSimulationCancelled
		}
		end := min(start+s.chunkSize, numSales)

		chunk := make([]*models.Sale, 0, end-start)
		for i := start; i < end; i++ {
			producer := generated[eligible[rng.Intn(len(eligible))]]
			chunk = append(chunk, &models.Sale{
				AffiliateID: producer.id,
				AmountCents: minSaleCents + rng.Int63n(maxSaleCents-minSaleCents+1),
				ExternalRef: fmt.Sprintf("sim-%s-%d", result.RunID[:8], i+1),
				Status:      domain.StatusPending,
				Provenance:  provenance,
			})
		}
		if err := s.sales.CreateBatch(work, chunk, s.chunkSize); err != nil {
			return fmt.Errorf("create sales: %w", err)
		}

		for _, sale := range chunk {
			computation, err := s.computer.ComputeCommissions(work, sale.ID, ComputeOptions{})
			if err != nil {
				return fmt.Errorf("compute sale %d: %w", sale.ID, err)
			}
			result.SalesCreated++
			result.CommissionsCreated += len(computation.Commissions)
			result.ForfeitedLevels += computation.ForfeitedLevels
			result.StaleLevels += computation.StaleLevels
			result.TotalCommissionCents += computation.TotalCents
			if computation.ShortChain() {
				result.SalesWithShortChains++
			}
		}

		s.log.Debug().Str("run_id", result.RunID).Int("sales", end).Int("of", numSales).Msg("Sale chunk committed")
		if cfg.OnChunk != nil {
			cfg.OnChunk(PhaseSales, end, numSales)
		}
	}

	return nil
}

func (s *SimulatorService) newAffiliate(rng *rand.Rand, runID string, provenance domain.Provenance, i, parent int, generated []simAffiliate) *models.Affiliate {
	a := &models.Affiliate{
		Name:         fmt.Sprintf("Sim Affiliate %d", i+1),
		Email:        fmt.Sprintf("sim%d.%s@example.invalid", i+1, runID[:8]),
		ReferralCode: fmt.Sprintf("S%s%06d", runID[:8], i+1),
		Status:       domain.AffiliateActive,
		CompActive:   true,
		Provenance:   provenance,
		Role:         domain.RoleMaster,
	}
	if parent < 0 {
		return a
	}

	up := generated[parent]
	a.UplineID = &up.id
	if up.depth+1 == 2 {
		a.Role = domain.RoleSubMaster
	} else {
		a.Role = domain.RoleAffiliate
	}

	switch roll := rng.Intn(100); {
	case roll < inactiveShare:
		a.Status = domain.AffiliateInactive
	case roll < inactiveShare+notCompActiveShare:
		a.CompActive = false
	}
	return a
}

func (s *SimulatorService) writeCaches(ctx context.Context, generated []simAffiliate) error {
	for _, a := range generated {
		if a.cache[0] == nil {
			continue
		}
		if err := s.affiliates.UpdateCache(ctx, a.id, a.cache); err != nil {
			return fmt.Errorf("write upline cache: %w", err)
		}
	}
	return nil
}

// Clear deletes the synthetic rows of one run, or of every run when runID
// is empty, in a single transaction. Real rows never match the filter.
func (s *SimulatorService) Clear(ctx context.Context, runID string) (*ClearResult, error) {
	if runID != "" {
		if _, err := s.runs.GetByRunID(ctx, runID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, domain.ErrSimulationNotFound
			}
			return nil, err
		}
	}

	result := &ClearResult{RunID: runID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if result.Commissions, err = s.commissions.WithTx(tx).DeleteSynthetic(ctx, runID); err != nil {
			return err
		}
		if result.Sales, err = s.sales.WithTx(tx).DeleteSynthetic(ctx, runID); err != nil {
			return err
		}
		if result.Affiliates, err = s.affiliates.WithTx(tx).DeleteSynthetic(ctx, runID); err != nil {
			return err
		}
		result.Runs, err = s.runs.WithTx(tx).MarkCleared(ctx, runID, time.Now())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("clear simulation data: %w", err)
	}

	s.log.Info().
		Str("run_id", runID).
		Int64("commissions", result.Commissions).
		Int64("sales", result.Sales).
		Int64("affiliates", result.Affiliates).
		Msg("🧹 Simulation data cleared")
	return result, nil
}

// GetRun gets a run record
func (s *SimulatorService) GetRun(ctx context.Context, runID string) (*models.SimulationRun, error) {
	run, err := s.runs.GetByRunID(ctx, runID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSimulationNotFound
		}
		return nil, err
	}
	return run, nil
}

// ListRuns lists run records, newest first
func (s *SimulatorService) ListRuns(ctx context.Context, offset, limit int) ([]*models.SimulationRun, int64, error) {
	return s.runs.List(ctx, offset, limit)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/adapters/persistence/repositories"
	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/pkg/logger"
	"vetbridge-affiliate/internal/pkg/money"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ComputeOptions controls a single-sale computation
type ComputeOptions struct {
	// Recompute replaces an existing pending set instead of skipping the sale
	Recompute bool
}

// ComputationResult summarises one sale's computation
type ComputationResult struct {
	SaleID          uint                     `json:"sale_id"`
	Status          domain.ComputationStatus `json:"status"`
	Commissions     []*models.Commission     `json:"-"`
	ForfeitedLevels int                      `json:"forfeited_levels"`
	StaleLevels     int                      `json:"stale_levels"`
	TotalCents      int64                    `json:"total_cents"`
}

// ShortChain reports whether fewer than MaxLevels commission rows were written
func (r *ComputationResult) ShortChain() bool {
	return len(r.Commissions) < domain.MaxLevels
}

// SweepResult summarises a ComputeMissing pass
type SweepResult struct {
	Scanned  int `json:"scanned"`
	Computed int `json:"computed"`
	Failed   int `json:"failed"`
}

// CommissionService computes multi-level commissions for sales
type CommissionService struct {
	sales       *repositories.SaleRepository
	commissions *repositories.CommissionRepository
	resolver    *HierarchyResolver
	rates       domain.RateTable
	log         zerolog.Logger
}

// NewCommissionService creates a new commission service
func NewCommissionService(
	sales *repositories.SaleRepository,
	commissions *repositories.CommissionRepository,
	resolver *HierarchyResolver,
	rates domain.RateTable,
) *CommissionService {
	return &CommissionService{
		sales:       sales,
		commissions: commissions,
		resolver:    resolver,
		rates:       rates,
		log:         logger.Component("commission"),
	}
}

// Rates returns the rate table in use
func (s *CommissionService) Rates() domain.RateTable {
	return s.rates
}

// ComputeCommissions writes the commission rows of one sale.
// A sale already computed is skipped unless opts.Recompute is set, including
// a sale whose every level forfeited and left no rows.
func (s *CommissionService) ComputeCommissions(ctx context.Context, saleID uint, opts ComputeOptions) (*ComputationResult, error) {
	start := time.Now()
	defer func() { commissionComputeSeconds.Observe(time.Since(start).Seconds()) }()

	sale, err := s.sales.GetByID(ctx, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSaleNotFound
		}
		return nil, err
	}
	if sale.Status == domain.StatusVoid {
		return nil, domain.ErrSaleVoid
	}

	computed := sale.CommissionsComputedAt != nil
	if computed && !opts.Recompute {
		return s.skipped(ctx, saleID)
	}

	entries, err := s.resolver.ResolveUpline(ctx, sale.AffiliateID)
	if err != nil {
		commissionComputations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("resolve upline of sale %d: %w", saleID, err)
	}

	result := s.build(sale, entries)

	if computed {
		if err := s.commissions.ReplaceForSale(ctx, saleID, result.Commissions); err != nil {
			commissionComputations.WithLabelValues("error").Inc()
			return nil, err
		}
		result.Status = domain.ComputationRecomputed
	} else {
		inserted, err := s.commissions.InsertForSale(ctx, saleID, result.Commissions)
		if err != nil {
			commissionComputations.WithLabelValues("error").Inc()
			return nil, err
		}
		if !inserted {
			return s.skipped(ctx, saleID)
		}
		result.Status = domain.ComputationComputed
	}

	commissionComputations.WithLabelValues(string(result.Status)).Inc()
	commissionsCreated.WithLabelValues(provenanceLabel(sale.Provenance)).Add(float64(len(result.Commissions)))
	commissionLevelsSkipped.WithLabelValues("forfeited").Add(float64(result.ForfeitedLevels))
	commissionLevelsSkipped.WithLabelValues("stale").Add(float64(result.StaleLevels))

	s.log.Debug().
		Uint("sale_id", saleID).
		Str("status", string(result.Status)).
		Int("rows", len(result.Commissions)).
		Int("forfeited", result.ForfeitedLevels).
		Int("stale", result.StaleLevels).
		Msg("💰 Commissions computed")

	return result, nil
}

func (s *CommissionService) skipped(ctx context.Context, saleID uint) (*ComputationResult, error) {
	rows, err := s.commissions.ListBySale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	result := &ComputationResult{SaleID: saleID, Status: domain.ComputationSkippedExisting, Commissions: rows}
	for _, c := range rows {
		if c.Status != domain.StatusVoid {
			result.TotalCents += c.AmountCents
		}
	}
	commissionComputations.WithLabelValues(string(result.Status)).Inc()
	return result, nil
}

// build turns resolved upline entries into pending rows. Stale and
// ineligible levels are dropped; the running total never exceeds the sale.
func (s *CommissionService) build(sale *models.Sale, entries []domain.UplineEntry) *ComputationResult {
	result := &ComputationResult{SaleID: sale.ID}
	remaining := sale.AmountCents

	for _, e := range entries {
		if e.Stale {
			result.StaleLevels++
			s.log.Warn().Uint("sale_id", sale.ID).Int("level", e.Level).Uint("affiliate_id", e.AffiliateID).
				Msg("⚠️ Stale upline reference skipped")
			continue
		}
		if !e.Eligible() {
			result.ForfeitedLevels++
			s.log.Debug().Uint("sale_id", sale.ID).Int("level", e.Level).Uint("affiliate_id", e.AffiliateID).
				Msg("Level forfeited (ineligible affiliate)")
			continue
		}

		rate := s.rates.For(e.Level)
		amount := money.ApplyRate(sale.AmountCents, rate)
		if amount > remaining {
			amount = remaining
		}
		remaining -= amount

		result.Commissions = append(result.Commissions, &models.Commission{
			SaleID:      sale.ID,
			Level:       e.Level,
			RecipientID: e.AffiliateID,
			Rate:        rate,
			AmountCents: amount,
			Status:      domain.StatusPending,
			Provenance:  sale.Provenance,
		})
		result.TotalCents += amount
	}
	return result
}

// ComputeMissing computes commissions for up to limit non-void sales that
// were never computed. Per-sale failures are logged and counted, not
// returned; the pass keeps scanning past them so a sale that keeps failing
// cannot hold back the sales behind it.
func (s *CommissionService) ComputeMissing(ctx context.Context, limit int) (*SweepResult, error) {
	sweep := &SweepResult{}
	var after uint

	for sweep.Computed < limit {
		ids, err := s.sales.ListMissingCommissions(ctx, after, limit-sweep.Computed)
		if err != nil {
			return sweep, err
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return sweep, err
			}
			after = id
			sweep.Scanned++
			if _, err := s.ComputeCommissions(ctx, id, ComputeOptions{}); err != nil {
				sweep.Failed++
				s.log.Error().Err(err).Uint("sale_id", id).Msg("❌ Commission sweep failed for sale")
				continue
			}
			sweep.Computed++
		}
	}

	if sweep.Scanned > 0 {
		s.log.Info().Int("scanned", sweep.Scanned).Int("computed", sweep.Computed).Int("failed", sweep.Failed).
			Msg("✅ Missing commissions swept")
	}
	return sweep, nil
}

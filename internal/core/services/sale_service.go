package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/adapters/persistence/repositories"
	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/pkg/logger"
	"vetbridge-affiliate/internal/pkg/money"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// SaleService handles sale ledger business logic
type SaleService struct {
	sales      *repositories.SaleRepository
	affiliates *repositories.AffiliateRepository
	computer   CommissionComputer
	log        zerolog.Logger
}

// NewSaleService creates a new sale service
func NewSaleService(
	sales *repositories.SaleRepository,
	affiliates *repositories.AffiliateRepository,
	computer CommissionComputer,
) *SaleService {
	return &SaleService{
		sales:      sales,
		affiliates: affiliates,
		computer:   computer,
		log:        logger.Component("sales"),
	}
}

// RecordSaleInput represents a sale attributed to a producing affiliate,
// given by ID or by referral code
type RecordSaleInput struct {
	AffiliateID  *uint
	ReferralCode string
	Amount       string
	ExternalRef  string
	Compute      bool
}

// RecordSaleResult is the stored sale plus the computation when requested
type RecordSaleResult struct {
	Sale        *models.Sale
	Computation *ComputationResult
}

// Record stores a pending sale and optionally computes its commissions
func (s *SaleService) Record(ctx context.Context, input *RecordSaleInput) (*RecordSaleResult, error) {
	cents, err := money.ParseCents(input.Amount)
	if err != nil {
		return nil, domain.ErrInvalidAmount
	}

	producer, err := s.producer(ctx, input)
	if err != nil {
		return nil, err
	}

	sale := &models.Sale{
		AffiliateID: producer.ID,
		AmountCents: cents,
		ExternalRef: strings.TrimSpace(input.ExternalRef),
		Status:      domain.StatusPending,
		Provenance:  producer.Provenance,
	}
	if err := s.sales.Create(ctx, sale); err != nil {
		return nil, err
	}

	s.log.Info().Uint("sale_id", sale.ID).Uint("affiliate_id", producer.ID).Str("amount", money.FormatCents(cents)).
		Msg("✅ Sale recorded")

	result := &RecordSaleResult{Sale: sale}
	if input.Compute {
		computation, err := s.computer.ComputeCommissions(ctx, sale.ID, ComputeOptions{})
		if err != nil {
			return nil, fmt.Errorf("sale %d recorded but commission computation failed: %w", sale.ID, err)
		}
		result.Computation = computation
	}

	sale.Affiliate = producer
	return result, nil
}

func (s *SaleService) producer(ctx context.Context, input *RecordSaleInput) (*models.Affiliate, error) {
	var (
		producer *models.Affiliate
		err      error
	)
	switch {
	case input.AffiliateID != nil:
		producer, err = s.affiliates.GetByID(ctx, *input.AffiliateID)
	case strings.TrimSpace(input.ReferralCode) != "":
		producer, err = s.affiliates.GetByReferralCode(ctx, strings.TrimSpace(input.ReferralCode))
	default:
		return nil, fmt.Errorf("%w: affiliate_id or referral_code is required", domain.ErrInvalidInput)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAffiliateNotFound
		}
		return nil, err
	}
	return producer, nil
}

// GetByID gets a sale by ID
func (s *SaleService) GetByID(ctx context.Context, id uint) (*models.Sale, error) {
	sale, err := s.sales.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrSaleNotFound
		}
		return nil, err
	}
	return sale, nil
}

// List lists sales
func (s *SaleService) List(ctx context.Context, filter repositories.SaleFilter, offset, limit int) ([]*models.Sale, int64, error) {
	return s.sales.List(ctx, filter, offset, limit)
}

// Transition moves a sale one step forward (or to void).
// Commission rows follow only through LedgerService.TransitionSaleCommissions.
func (s *SaleService) Transition(ctx context.Context, id uint, to domain.LedgerStatus) (*models.Sale, error) {
	if !to.Valid() {
		return nil, domain.ErrInvalidStatus
	}

	sale, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sale.Status.CanTransition(to) {
		return nil, fmt.Errorf("%w: sale %d %s -> %s", domain.ErrInvalidTransition, id, sale.Status, to)
	}

	ok, err := s.sales.UpdateStatus(ctx, id, sale.Status, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: sale %d changed concurrently", domain.ErrInvalidTransition, id)
	}

	s.log.Info().Uint("sale_id", id).Str("from", string(sale.Status)).Str("to", string(to)).Msg("🔄 Sale status changed")
	return s.GetByID(ctx, id)
}

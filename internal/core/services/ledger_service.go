package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/adapters/persistence/repositories"
	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/pkg/export"
	"vetbridge-affiliate/internal/pkg/logger"
	"vetbridge-affiliate/internal/pkg/money"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// reportBatchSize is the affiliate batch used by export and verification
const reportBatchSize = 500

// LedgerService handles commission status changes and aggregation
type LedgerService struct {
	affiliates  *repositories.AffiliateRepository
	sales       *repositories.SaleRepository
	commissions *repositories.CommissionRepository
	log         zerolog.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	affiliates *repositories.AffiliateRepository,
	sales *repositories.SaleRepository,
	commissions *repositories.CommissionRepository,
) *LedgerService {
	return &LedgerService{
		affiliates:  affiliates,
		sales:       sales,
		commissions: commissions,
		log:         logger.Component("ledger"),
	}
}

// AffiliateReport is one affiliate's aggregated position. Void rows are
// excluded from every money field.
type AffiliateReport struct {
	AffiliateID      uint
	Name             string
	Email            string
	Role             domain.Role
	ReferralCode     string
	Status           domain.AffiliateStatus
	CompActive       bool
	DirectSales      int64
	SalesVolumeCents int64
	TotalCents       int64
	PendingCents     int64
	ApprovedCents    int64
	PaidCents        int64
	LevelCents       [domain.MaxLevels]int64
}

// AffiliateReportResponse DTO
type AffiliateReportResponse struct {
	AffiliateID      uint                   `json:"affiliate_id"`
	Name             string                 `json:"name"`
	Email            string                 `json:"email"`
	Role             domain.Role            `json:"role"`
	ReferralCode     string                 `json:"referral_code"`
	Status           domain.AffiliateStatus `json:"status"`
	CompActive       bool                   `json:"comp_active"`
	DirectSales      int64                  `json:"direct_sales"`
	SalesVolume      string                 `json:"sales_volume"`
	TotalCommissions string                 `json:"total_commissions"`
	Pending          string                 `json:"pending"`
	Approved         string                 `json:"approved"`
	Paid             string                 `json:"paid"`
	Levels           []string               `json:"levels"`
}

// ToResponse converts the report to its API shape
func (r *AffiliateReport) ToResponse() *AffiliateReportResponse {
	levels := make([]string, len(r.LevelCents))
	for i, cents := range r.LevelCents {
		levels[i] = money.FormatCents(cents)
	}
	return &AffiliateReportResponse{
		AffiliateID:      r.AffiliateID,
		Name:             r.Name,
		Email:            r.Email,
		Role:             r.Role,
		ReferralCode:     r.ReferralCode,
		Status:           r.Status,
		CompActive:       r.CompActive,
		DirectSales:      r.DirectSales,
		SalesVolume:      money.FormatCents(r.SalesVolumeCents),
		TotalCommissions: money.FormatCents(r.TotalCents),
		Pending:          money.FormatCents(r.PendingCents),
		Approved:         money.FormatCents(r.ApprovedCents),
		Paid:             money.FormatCents(r.PaidCents),
		Levels:           levels,
	}
}

func (r *AffiliateReport) exportRow() *export.Row {
	return &export.Row{
		AffiliateID:      r.AffiliateID,
		Name:             r.Name,
		Email:            r.Email,
		Role:             string(r.Role),
		ReferralCode:     r.ReferralCode,
		Status:           string(r.Status),
		CompActive:       r.CompActive,
		DirectSales:      r.DirectSales,
		SalesVolumeCents: r.SalesVolumeCents,
		TotalCents:       r.TotalCents,
		PendingCents:     r.PendingCents,
		ApprovedCents:    r.ApprovedCents,
		PaidCents:        r.PaidCents,
		LevelCents:       r.LevelCents,
	}
}

func (r *AffiliateReport) add(level int, status domain.LedgerStatus, cents int64) {
	if status == domain.StatusVoid || level < 1 || level > domain.MaxLevels {
		return
	}
	r.TotalCents += cents
	r.LevelCents[level-1] += cents
	switch status {
	case domain.StatusPending:
		r.PendingCents += cents
	case domain.StatusApproved:
		r.ApprovedCents += cents
	case domain.StatusPaid:
		r.PaidCents += cents
	}
}

func newReport(a *models.Affiliate) *AffiliateReport {
	return &AffiliateReport{
		AffiliateID:  a.ID,
		Name:         a.Name,
		Email:        a.Email,
		Role:         a.Role,
		ReferralCode: a.ReferralCode,
		Status:       a.Status,
		CompActive:   a.CompActive,
	}
}

// Mismatch is one field where the served aggregation differs from raw rows
type Mismatch struct {
	AffiliateID uint   `json:"affiliate_id"`
	Field       string `json:"field"`
	Served      int64  `json:"served"`
	Raw         int64  `json:"raw"`
}

// VerifyResult is the outcome of VerifyReport
type VerifyResult struct {
	Scope      string     `json:"scope"`
	Affiliates int        `json:"affiliates"`
	Mismatches []Mismatch `json:"mismatches"`
}

// OK reports whether the served aggregation matched raw recomputation
func (v *VerifyResult) OK() bool {
	return len(v.Mismatches) == 0
}

// ============================================================
// Status transitions
// ============================================================

func transitionCheck(to domain.LedgerStatus) func(c *models.Commission, sale *models.Sale) error {
	return func(c *models.Commission, sale *models.Sale) error {
		if !c.Status.CanTransition(to) {
			return fmt.Errorf("%w: commission %d %s -> %s", domain.ErrInvalidTransition, c.ID, c.Status, to)
		}
		if to == domain.StatusPaid && !sale.Status.Approved() {
			return fmt.Errorf("%w: sale %d is %s", domain.ErrSaleNotApproved, sale.ID, sale.Status)
		}
		if sale.Status == domain.StatusVoid && to != domain.StatusVoid {
			return domain.ErrSaleVoid
		}
		return nil
	}
}

// TransitionCommission moves one commission a single step forward (or to void)
func (s *LedgerService) TransitionCommission(ctx context.Context, id uint, to domain.LedgerStatus) (*models.Commission, error) {
	if !to.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	commission, err := s.commissions.TransitionOne(ctx, id, to, transitionCheck(to))
	if err != nil {
		return nil, err
	}
	s.log.Info().Uint("commission_id", id).Str("to", string(to)).Msg("🔄 Commission status changed")
	return commission, nil
}

// TransitionSaleCommissions moves every row of a sale to status to in one
// transaction. Rows already at to are left as they are.
func (s *LedgerService) TransitionSaleCommissions(ctx context.Context, saleID uint, to domain.LedgerStatus) (int64, error) {
	if !to.Valid() {
		return 0, domain.ErrInvalidStatus
	}
	moved, err := s.commissions.TransitionForSale(ctx, saleID, to, transitionCheck(to))
	if err != nil {
		return 0, err
	}
	s.log.Info().Uint("sale_id", saleID).Str("to", string(to)).Int64("moved", moved).Msg("🔄 Sale commissions moved")
	return moved, nil
}

// GetCommission gets a commission by ID
func (s *LedgerService) GetCommission(ctx context.Context, id uint) (*models.Commission, error) {
	commission, err := s.commissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCommissionNotFound
		}
		return nil, err
	}
	return commission, nil
}

// ListCommissions lists commission rows
func (s *LedgerService) ListCommissions(ctx context.Context, filter repositories.CommissionFilter, offset, limit int) ([]*models.Commission, int64, error) {
	return s.commissions.List(ctx, filter, offset, limit)
}

// ListBySale lists the rows of one sale
func (s *LedgerService) ListBySale(ctx context.Context, saleID uint) ([]*models.Commission, error) {
	return s.commissions.ListBySale(ctx, saleID)
}

// ============================================================
// Aggregation
// ============================================================

// aggregate builds served report rows for a batch through GROUP BY queries
func (s *LedgerService) aggregate(ctx context.Context, batch []*models.Affiliate) ([]*AffiliateReport, error) {
	ids := make([]uint, len(batch))
	reports := make([]*AffiliateReport, len(batch))
	byID := make(map[uint]*AffiliateReport, len(batch))
	for i, a := range batch {
		ids[i] = a.ID
		reports[i] = newReport(a)
		byID[a.ID] = reports[i]
	}

	totals, err := s.commissions.LevelStatusTotals(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, t := range totals {
		byID[t.RecipientID].add(t.Level, t.Status, t.AmountCents)
	}

	direct, err := s.sales.DirectTotals(ctx, ids)
	if err != nil {
		return nil, err
	}
	for id, d := range direct {
		byID[id].DirectSales = d.Count
		byID[id].SalesVolumeCents = d.VolumeCents
	}

	return reports, nil
}

// recompute builds report rows for a batch by folding raw rows in memory
func (s *LedgerService) recompute(ctx context.Context, batch []*models.Affiliate) ([]*AffiliateReport, error) {
	ids := make([]uint, len(batch))
	reports := make([]*AffiliateReport, len(batch))
	byID := make(map[uint]*AffiliateReport, len(batch))
	for i, a := range batch {
		ids[i] = a.ID
		reports[i] = newReport(a)
		byID[a.ID] = reports[i]
	}

	rows, err := s.commissions.ListRawByRecipients(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, c := range rows {
		byID[c.RecipientID].add(c.Level, c.Status, c.AmountCents)
	}

	sales, err := s.sales.ListRawByProducers(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, sale := range sales {
		if sale.Status == domain.StatusVoid {
			continue
		}
		byID[sale.AffiliateID].DirectSales++
		byID[sale.AffiliateID].SalesVolumeCents += sale.AmountCents
	}

	return reports, nil
}

// AffiliateSummary returns one affiliate's totals by status and by level
func (s *LedgerService) AffiliateSummary(ctx context.Context, affiliateID uint) (*AffiliateReport, error) {
	affiliate, err := s.affiliates.GetByID(ctx, affiliateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAffiliateNotFound
		}
		return nil, err
	}
	reports, err := s.aggregate(ctx, []*models.Affiliate{affiliate})
	if err != nil {
		return nil, err
	}
	return reports[0], nil
}

// Report returns one page of per-affiliate rows for a scope
func (s *LedgerService) Report(ctx context.Context, scope domain.Scope, offset, limit int) ([]*AffiliateReport, int64, error) {
	affiliates, total, err := s.affiliates.List(ctx, scope, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	reports, err := s.aggregate(ctx, affiliates)
	if err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

// ExportCSV streams the version 1 export of a scope and returns the row count
func (s *LedgerService) ExportCSV(ctx context.Context, scope domain.Scope, w io.Writer) (int, error) {
	cw := export.NewWriter(w)
	if err := cw.WriteHeader(); err != nil {
		return 0, err
	}

	written := 0
	err := s.affiliates.FindInBatches(ctx, scope, reportBatchSize, func(batch []*models.Affiliate) error {
		reports, err := s.aggregate(ctx, batch)
		if err != nil {
			return err
		}
		for _, r := range reports {
			if err := cw.Write(r.exportRow()); err != nil {
				return err
			}
			written++
		}
		return cw.Flush()
	})
	if err != nil {
		return written, fmt.Errorf("export: %w", err)
	}
	if err := cw.Flush(); err != nil {
		return written, err
	}

	s.log.Info().Str("scope", scopeLabel(scope)).Int("rows", written).Msg("📤 Commission export written")
	return written, nil
}

// VerifyReport recomputes every row of a scope from raw commission and
// sale rows and compares it to the served aggregation.
func (s *LedgerService) VerifyReport(ctx context.Context, scope domain.Scope) (*VerifyResult, error) {
	result := &VerifyResult{Scope: scopeLabel(scope), Mismatches: []Mismatch{}}

	err := s.affiliates.FindInBatches(ctx, scope, reportBatchSize, func(batch []*models.Affiliate) error {
		served, err := s.aggregate(ctx, batch)
		if err != nil {
			return err
		}
		raw, err := s.recompute(ctx, batch)
		if err != nil {
			return err
		}
		for i := range served {
			result.Mismatches = append(result.Mismatches, compareReports(served[i], raw[i])...)
		}
		result.Affiliates += len(batch)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify report: %w", err)
	}

	if result.OK() {
		s.log.Info().Str("scope", result.Scope).Int("affiliates", result.Affiliates).Msg("✅ Report matches raw rows")
	} else {
		s.log.Error().Str("scope", result.Scope).Int("mismatches", len(result.Mismatches)).Msg("❌ Report differs from raw rows")
	}
	return result, nil
}

// CompareExport checks exported rows against raw recomputation
func (s *LedgerService) CompareExport(ctx context.Context, scope domain.Scope, rows []*export.Row) (*VerifyResult, error) {
	result := &VerifyResult{Scope: scopeLabel(scope), Mismatches: []Mismatch{}}
	exported := make(map[uint]*export.Row, len(rows))
	for _, r := range rows {
		exported[r.AffiliateID] = r
	}

	err := s.affiliates.FindInBatches(ctx, scope, reportBatchSize, func(batch []*models.Affiliate) error {
		raw, err := s.recompute(ctx, batch)
		if err != nil {
			return err
		}
		for _, r := range raw {
			row, ok := exported[r.AffiliateID]
			if !ok {
				result.Mismatches = append(result.Mismatches, Mismatch{AffiliateID: r.AffiliateID, Field: "missing_row"})
				continue
			}
			delete(exported, r.AffiliateID)
			result.Mismatches = append(result.Mismatches, compareRows(row, r.exportRow())...)
		}
		result.Affiliates += len(batch)
		return nil
	})
	if err != nil {
		return nil, err
	}
	for id := range exported {
		result.Mismatches = append(result.Mismatches, Mismatch{AffiliateID: id, Field: "unexpected_row"})
	}
	return result, nil
}

func compareReports(served, raw *AffiliateReport) []Mismatch {
	return compareRows(served.exportRow(), raw.exportRow())
}

func compareRows(served, raw *export.Row) []Mismatch {
	type field struct {
		name      string
		served    int64
		recounted int64
	}
	fields := []field{
		{"direct_sales", served.DirectSales, raw.DirectSales},
		{"sales_volume", served.SalesVolumeCents, raw.SalesVolumeCents},
		{"total_commissions", served.TotalCents, raw.TotalCents},
		{"pending", served.PendingCents, raw.PendingCents},
		{"approved", served.ApprovedCents, raw.ApprovedCents},
		{"paid", served.PaidCents, raw.PaidCents},
	}
	for i := range served.LevelCents {
		fields = append(fields, field{fmt.Sprintf("level_%d", i+1), served.LevelCents[i], raw.LevelCents[i]})
	}

	var out []Mismatch
	for _, f := range fields {
		if f.served != f.recounted {
			out = append(out, Mismatch{AffiliateID: served.AffiliateID, Field: f.name, Served: f.served, Raw: f.recounted})
		}
	}
	return out
}

func scopeLabel(scope domain.Scope) string {
	if scope.Kind == domain.ScopeRun {
		return "run:" + scope.RunID
	}
	return string(scope.Kind)
}

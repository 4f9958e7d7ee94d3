package models

import (
	"time"

	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/pkg/money"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Operators (back-office accounts)
// ============================================================

// Operator represents operators table
type Operator struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Username  string         `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Password  string         `gorm:"size:255;not null" json:"-"`
	Role      string         `gorm:"size:20;default:'OPERATOR'" json:"role"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Operator) TableName() string {
	return "operators"
}

// Operator roles
const (
	OperatorRoleAdmin    = "ADMIN"
	OperatorRoleOperator = "OPERATOR"
)

// ============================================================
// Affiliate Directory
// ============================================================

// Affiliate represents affiliates table.
// UplineID is the only writable hierarchy field; the CacheUpline columns are
// a rebuildable projection of the first three generations above.
type Affiliate struct {
	ID             uint                   `gorm:"primaryKey" json:"id"`
	Name           string                 `gorm:"size:120;not null" json:"name"`
	Email          string                 `gorm:"size:160;index" json:"email"`
	ReferralCode   string                 `gorm:"size:32;uniqueIndex;not null" json:"referral_code"`
	Role           domain.Role            `gorm:"size:20;not null;default:'affiliate'" json:"role"`
	UplineID       *uint                  `gorm:"index" json:"upline_id"`
	Status         domain.AffiliateStatus `gorm:"size:20;not null;default:'active';index" json:"status"`
	CompActive     bool                   `gorm:"not null;default:false" json:"comp_active"`
	Provenance     domain.Provenance      `gorm:"size:64;not null;default:'real';index" json:"provenance"`
	CacheUpline1ID *uint                  `gorm:"index" json:"-"`
	CacheUpline2ID *uint                  `gorm:"index" json:"-"`
	CacheUpline3ID *uint                  `gorm:"index" json:"-"`
	CreatedAt      time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time              `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Upline *Affiliate `gorm:"foreignKey:UplineID" json:"upline,omitempty"`
}

func (Affiliate) TableName() string {
	return "affiliates"
}

// Eligible reports whether the affiliate may earn commission
func (a *Affiliate) Eligible() bool {
	return a.Status == domain.AffiliateActive && a.CompActive
}

// AffiliateResponse DTO
type AffiliateResponse struct {
	ID           uint                   `json:"id"`
	Name         string                 `json:"name"`
	Email        string                 `json:"email"`
	ReferralCode string                 `json:"referral_code"`
	Role         domain.Role            `json:"role"`
	UplineID     *uint                  `json:"upline_id"`
	UplineName   string                 `json:"upline_name,omitempty"`
	Status       domain.AffiliateStatus `json:"status"`
	CompActive   bool                   `json:"comp_active"`
	Provenance   domain.Provenance      `json:"provenance"`
	CreatedAt    time.Time              `json:"created_at"`
}

func (a *Affiliate) ToResponse() *AffiliateResponse {
	resp := &AffiliateResponse{
		ID:           a.ID,
		Name:         a.Name,
		Email:        a.Email,
		ReferralCode: a.ReferralCode,
		Role:         a.Role,
		UplineID:     a.UplineID,
		Status:       a.Status,
		CompActive:   a.CompActive,
		Provenance:   a.Provenance,
		CreatedAt:    a.CreatedAt,
	}
	if a.Upline != nil {
		resp.UplineName = a.Upline.Name
	}
	return resp
}

// ============================================================
// Sale Ledger
// ============================================================

// Sale represents sales table
type Sale struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	AffiliateID uint                `gorm:"not null;index" json:"affiliate_id"`
	AmountCents int64               `gorm:"not null" json:"amount_cents"`
	ExternalRef string              `gorm:"size:64;index" json:"external_ref"`
	Status      domain.LedgerStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Provenance  domain.Provenance   `gorm:"size:64;not null;default:'real';index" json:"provenance"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"autoUpdateTime" json:"updated_at"`

	// Set in the same transaction as the sale's commission rows, even when
	// every level forfeits and no row is written.
	CommissionsComputedAt *time.Time `gorm:"index" json:"commissions_computed_at"`

	// Relations
	Affiliate *Affiliate `gorm:"foreignKey:AffiliateID" json:"affiliate,omitempty"`
}

func (Sale) TableName() string {
	return "sales"
}

// SaleResponse DTO
type SaleResponse struct {
	ID            uint                `json:"id"`
	AffiliateID   uint                `json:"affiliate_id"`
	AffiliateName string              `json:"affiliate_name,omitempty"`
	Amount        string              `json:"amount"`
	ExternalRef   string              `json:"external_ref"`
	Status        domain.LedgerStatus `json:"status"`
	Provenance    domain.Provenance   `json:"provenance"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	ComputedAt    *time.Time          `json:"commissions_computed_at,omitempty"`
}

func (s *Sale) ToResponse() *SaleResponse {
	resp := &SaleResponse{
		ID:          s.ID,
		AffiliateID: s.AffiliateID,
		Amount:      money.FormatCents(s.AmountCents),
		ExternalRef: s.ExternalRef,
		Status:      s.Status,
		Provenance:  s.Provenance,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		ComputedAt:  s.CommissionsComputedAt,
	}
	if s.Affiliate != nil {
		resp.AffiliateName = s.Affiliate.Name
	}
	return resp
}

// ============================================================
// Commission Ledger
// ============================================================

// Commission represents commissions table.
// One row per (sale, level); Rate is the rate applied when the row was computed.
type Commission struct {
	ID          uint                `gorm:"primaryKey" json:"id"`
	SaleID      uint                `gorm:"not null;uniqueIndex:idx_commission_sale_level" json:"sale_id"`
	Level       int                 `gorm:"not null;uniqueIndex:idx_commission_sale_level" json:"level"`
	RecipientID uint                `gorm:"not null;index" json:"recipient_id"`
	Rate        decimal.Decimal     `gorm:"type:decimal(7,4);not null" json:"rate"`
	AmountCents int64               `gorm:"not null" json:"amount_cents"`
	Status      domain.LedgerStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`
	Provenance  domain.Provenance   `gorm:"size:64;not null;default:'real';index" json:"provenance"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"autoUpdateTime" json:"updated_at"`

	// Relations
	Sale      *Sale      `gorm:"foreignKey:SaleID" json:"sale,omitempty"`
	Recipient *Affiliate `gorm:"foreignKey:RecipientID" json:"recipient,omitempty"`
}

func (Commission) TableName() string {
	return "commissions"
}

// CommissionResponse DTO
type CommissionResponse struct {
	ID            uint                `json:"id"`
	SaleID        uint                `json:"sale_id"`
	Level         int                 `json:"level"`
	RecipientID   uint                `json:"recipient_id"`
	RecipientName string              `json:"recipient_name,omitempty"`
	Rate          string              `json:"rate"`
	Amount        string              `json:"amount"`
	Status        domain.LedgerStatus `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
}

func (c *Commission) ToResponse() *CommissionResponse {
	resp := &CommissionResponse{
		ID:          c.ID,
		SaleID:      c.SaleID,
		Level:       c.Level,
		RecipientID: c.RecipientID,
		Rate:        c.Rate.String(),
		Amount:      money.FormatCents(c.AmountCents),
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
	}
	if c.Recipient != nil {
		resp.RecipientName = c.Recipient.Name
	}
	return resp
}

// ============================================================
// Stress-test runs
// ============================================================

// SimulationRun represents simulation_runs table
type SimulationRun struct {
	ID                   uint                    `gorm:"primaryKey" json:"-"`
	RunID                string                  `gorm:"size:36;uniqueIndex;not null" json:"run_id"`
	VeteranOptIns        int                     `gorm:"not null" json:"veteran_opt_ins"`
	HierarchyRandomness  int                     `gorm:"not null" json:"hierarchy_randomness"`
	Seed                 int64                   `gorm:"not null" json:"seed"`
	Status               domain.SimulationStatus `gorm:"size:20;not null;index" json:"status"`
	AffiliatesUsed       int                     `json:"affiliates_used"`
	SalesCreated         int                     `json:"sales_created"`
	CommissionsCreated   int                     `json:"commissions_created"`
	SalesWithShortChains int                     `json:"sales_with_short_chains"`
	ForfeitedLevels      int                     `json:"forfeited_levels"`
	StaleLevels          int                     `json:"stale_levels"`
	Error                string                  `gorm:"type:text" json:"error,omitempty"`
	StartedAt            time.Time               `gorm:"not null" json:"started_at"`
	FinishedAt           *time.Time              `json:"finished_at"`
	ClearedAt            *time.Time              `json:"cleared_at"`
}

func (SimulationRun) TableName() string {
	return "simulation_runs"
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate runs auto migration for all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Operator{},
		&Affiliate{},
		&Sale{},
		&Commission{},
		&SimulationRun{},
	)
}

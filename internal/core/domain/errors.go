package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrDuplicateEntry     = errors.New("duplicate entry")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidScope       = errors.New("invalid scope (use real, synthetic, all or run:<id>)")
)

// Directory errors
var (
	ErrAffiliateNotFound  = errors.New("affiliate not found")
	ErrUplineNotFound     = errors.New("upline affiliate not found")
	ErrUplineCycle        = errors.New("upline change would make the affiliate its own ancestor")
	ErrReferralCodeTaken  = errors.New("referral code already in use")
	ErrProvenanceMismatch = errors.New("real affiliates cannot be linked to synthetic affiliates")
	ErrInvalidRole        = errors.New("invalid affiliate role")
	ErrInvalidStatus      = errors.New("invalid status")
)

// Ledger errors
var (
	ErrSaleNotFound       = errors.New("sale not found")
	ErrCommissionNotFound = errors.New("commission not found")
	ErrInvalidAmount      = errors.New("amount must be a positive value up to 1000000000.00 with at most 2 decimal places")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrSaleNotApproved    = errors.New("commission cannot be paid before its sale is approved")
	ErrSaleVoid           = errors.New("sale is void")
	ErrRecomputeLocked    = errors.New("commissions already progressed past pending and cannot be recomputed")
	ErrInvalidRateTable   = errors.New("invalid commission rate table")
)

// Simulator errors
var (
	ErrSimulationScale     = errors.New("veteran opt-ins outside the supported range")
	ErrInvalidRandomness   = errors.New("hierarchy randomness must be between 0 and 100")
	ErrSimulationCancelled = errors.New("simulation cancelled")
	ErrSimulationNotFound  = errors.New("simulation run not found")
)

// HierarchyCycleError is returned when an upline walk revisits an affiliate
type HierarchyCycleError struct {
	AffiliateID uint
	RepeatedID  uint
}

func (e *HierarchyCycleError) Error() string {
	return fmt.Sprintf("upline cycle detected resolving affiliate %d: affiliate %d visited twice", e.AffiliateID, e.RepeatedID)
}

package domain

import (
	"strings"
)

// MaxLevels is the deepest commission level counted (level 1 = producer)
const MaxLevels = 6

// Role is an affiliate classification. It is not a hierarchy depth.
type Role string

const (
	RoleMaster    Role = "master"
	RoleSubMaster Role = "sub_master"
	RoleAffiliate Role = "affiliate"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleMaster, RoleSubMaster, RoleAffiliate:
		return true
	}
	return false
}

// AffiliateStatus is the account status of an affiliate
type AffiliateStatus string

const (
	AffiliateActive   AffiliateStatus = "active"
	AffiliateInactive AffiliateStatus = "inactive"
)

// Valid reports whether s is a known affiliate status
func (s AffiliateStatus) Valid() bool {
	return s == AffiliateActive || s == AffiliateInactive
}

// LedgerStatus is the lifecycle status shared by sales and commissions.
// pending -> approved -> paid, with void as a terminal exit from pending
// or approved.
type LedgerStatus string

const (
	StatusPending  LedgerStatus = "pending"
	StatusApproved LedgerStatus = "approved"
	StatusPaid     LedgerStatus = "paid"
	StatusVoid     LedgerStatus = "void"
)

var ledgerRank = map[LedgerStatus]int{
	StatusPending:  0,
	StatusApproved: 1,
	StatusPaid:     2,
}

// Valid reports whether s is a known ledger status
func (s LedgerStatus) Valid() bool {
	_, ok := ledgerRank[s]
	return ok || s == StatusVoid
}

// CanTransition reports whether moving from s to next is a legal forward step
func (s LedgerStatus) CanTransition(next LedgerStatus) bool {
	if next == StatusVoid {
		return s == StatusPending || s == StatusApproved
	}
	from, okFrom := ledgerRank[s]
	to, okTo := ledgerRank[next]
	if !okFrom || !okTo {
		return false
	}
	return to == from+1
}

// Approved reports whether a sale in status s allows its commissions to be paid
func (s LedgerStatus) Approved() bool {
	return s == StatusApproved || s == StatusPaid
}

// Provenance tags every affiliate, sale and commission row as real or
// generated by a simulation run.
type Provenance string

const (
	ProvenanceReal   Provenance = "real"
	syntheticPrefix             = "synthetic:"
)

// SyntheticProvenance returns the provenance tag for a simulation run
func SyntheticProvenance(runID string) Provenance {
	return Provenance(syntheticPrefix + runID)
}

// SyntheticPattern is the LIKE pattern matching every simulator row
func SyntheticPattern() string {
	return syntheticPrefix + "%"
}

// IsSynthetic reports whether p was produced by the simulator
func (p Provenance) IsSynthetic() bool {
	return strings.HasPrefix(string(p), syntheticPrefix)
}

// RunID returns the simulation run id of a synthetic provenance
func (p Provenance) RunID() string {
	return strings.TrimPrefix(string(p), syntheticPrefix)
}

// Scope selects which provenance a report or listing covers
type Scope struct {
	Kind  ScopeKind
	RunID string
}

// ScopeKind enumerates report scopes
type ScopeKind string

const (
	ScopeReal      ScopeKind = "real"
	ScopeSynthetic ScopeKind = "synthetic"
	ScopeRun       ScopeKind = "run"
	ScopeAll       ScopeKind = "all"
)

// ParseScope parses "real", "synthetic", "all" or "run:<id>". Empty means real.
func ParseScope(raw string) (Scope, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "" || raw == string(ScopeReal):
		return Scope{Kind: ScopeReal}, nil
	case raw == string(ScopeSynthetic):
		return Scope{Kind: ScopeSynthetic}, nil
	case raw == string(ScopeAll):
		return Scope{Kind: ScopeAll}, nil
	case strings.HasPrefix(raw, "run:") && len(raw) > len("run:"):
		return Scope{Kind: ScopeRun, RunID: strings.TrimPrefix(raw, "run:")}, nil
	}
	return Scope{}, ErrInvalidScope
}

// UplineEntry is one resolved level of an affiliate's upline chain.
// A Stale entry names an upline pointer whose affiliate no longer exists.
type UplineEntry struct {
	Level       int
	AffiliateID uint
	Status      AffiliateStatus
	CompActive  bool
	Stale       bool
}

// Eligible reports whether the affiliate at this level may earn commission
func (e UplineEntry) Eligible() bool {
	return !e.Stale && e.Status == AffiliateActive && e.CompActive
}

// ComputationStatus describes the outcome of a commission computation
type ComputationStatus string

const (
	ComputationComputed        ComputationStatus = "computed"
	ComputationRecomputed      ComputationStatus = "recomputed"
	ComputationSkippedExisting ComputationStatus = "skipped_existing"
)

// ScalePolicy decides what happens to out-of-range simulator opt-in counts
type ScalePolicy string

const (
	ScalePolicyReject ScalePolicy = "reject"
	ScalePolicyClamp  ScalePolicy = "clamp"
)

// SimulationStatus is the state of a simulation run record
type SimulationStatus string

const (
	SimulationRunning   SimulationStatus = "running"
	SimulationCompleted SimulationStatus = "completed"
	SimulationCancelled SimulationStatus = "cancelled"
	SimulationFailed    SimulationStatus = "failed"
	SimulationCleared   SimulationStatus = "cleared"
)

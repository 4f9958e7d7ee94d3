package repositories

import (
	"vetbridge-affiliate/internal/core/domain"

	"gorm.io/gorm"
)

// scoped narrows a query to the provenance selected by scope.
// column is the (optionally table-qualified) provenance column.
func scoped(db *gorm.DB, column string, scope domain.Scope) *gorm.DB {
	switch scope.Kind {
	case domain.ScopeReal:
		return db.Where(column+" = ?", domain.ProvenanceReal)
	case domain.ScopeSynthetic:
		return db.Where(column+" LIKE ?", domain.SyntheticPattern())
	case domain.ScopeRun:
		return db.Where(column+" = ?", domain.SyntheticProvenance(scope.RunID))
	}
	return db
}

// syntheticOnly narrows a destructive query to simulator rows.
// An empty runID selects every run; real rows can never match.
func syntheticOnly(db *gorm.DB, runID string) *gorm.DB {
	if runID == "" {
		return db.Where("provenance LIKE ?", domain.SyntheticPattern())
	}
	return db.Where("provenance = ?", domain.SyntheticProvenance(runID))
}

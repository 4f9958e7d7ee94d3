package repositories

import (
	"context"
	"time"

	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/core/domain"

	"gorm.io/gorm"
)

// SimulationRepository handles stress-test run records
type SimulationRepository struct {
	db *gorm.DB
}

// NewSimulationRepository creates a new simulation repository
func NewSimulationRepository(db *gorm.DB) *SimulationRepository {
	return &SimulationRepository{db: db}
}

// Create creates a new run record
func (r *SimulationRepository) Create(ctx context.Context, run *models.SimulationRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// GetByRunID gets a run record by its public run ID
func (r *SimulationRepository) GetByRunID(ctx context.Context, runID string) (*models.SimulationRun, error) {
	var run models.SimulationRun
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Update saves a run record
func (r *SimulationRepository) Update(ctx context.Context, run *models.SimulationRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

// List lists run records, newest first
func (r *SimulationRepository) List(ctx context.Context, offset, limit int) ([]*models.SimulationRun, int64, error) {
	var runs []*models.SimulationRun
	var total int64

	if err := r.db.WithContext(ctx).Model(&models.SimulationRun{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.db.WithContext(ctx).
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&runs).Error

	return runs, total, err
}

// MarkCleared flags one run (or every uncleared run when runID is empty) as cleared
func (r *SimulationRepository) MarkCleared(ctx context.Context, runID string, at time.Time) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.SimulationRun{}).Where("status <> ?", domain.SimulationCleared)
	if runID != "" {
		q = q.Where("run_id = ?", runID)
	}
	res := q.Updates(map[string]interface{}{
		"status":     domain.SimulationCleared,
		"cleared_at": at,
	})
	return res.RowsAffected, res.Error
}

// WithTx returns a repository bound to an open transaction
func (r *SimulationRepository) WithTx(tx *gorm.DB) *SimulationRepository {
	return &SimulationRepository{db: tx}
}

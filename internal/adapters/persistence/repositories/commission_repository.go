package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/core/domain"

	"gorm.io/gorm"
)

// errAlreadyComputed aborts an insert transaction when the sale already has rows
var errAlreadyComputed = errors.New("commissions already computed")

// CommissionFilter narrows a commission listing
type CommissionFilter struct {
	Scope       domain.Scope
	RecipientID uint
	SaleID      uint
	Status      domain.LedgerStatus
}

// LevelStatusTotal is one GROUP BY bucket of non-void commission amounts
type LevelStatusTotal struct {
	RecipientID uint
	Level       int
	Status      domain.LedgerStatus
	AmountCents int64
}

// CommissionRepository handles commission ledger data access
type CommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository creates a new commission repository
func NewCommissionRepository(db *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: db}
}

// GetByID gets a commission by ID with its sale and recipient
func (r *CommissionRepository) GetByID(ctx context.Context, id uint) (*models.Commission, error) {
	var commission models.Commission
	err := r.db.WithContext(ctx).
		Preload("Sale").
		Preload("Recipient").
		First(&commission, id).Error
	if err != nil {
		return nil, err
	}
	return &commission, nil
}

// ListBySale lists the rows of one sale ordered by level
func (r *CommissionRepository) ListBySale(ctx context.Context, saleID uint) ([]*models.Commission, error) {
	var commissions []*models.Commission
	err := r.db.WithContext(ctx).
		Preload("Recipient").
		Where("sale_id = ?", saleID).
		Order("level ASC").
		Find(&commissions).Error
	return commissions, err
}

// CountBySale counts the rows of one sale
func (r *CommissionRepository) CountBySale(ctx context.Context, saleID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Commission{}).Where("sale_id = ?", saleID).Count(&count).Error
	return count, err
}

func (r *CommissionRepository) filtered(ctx context.Context, f CommissionFilter) *gorm.DB {
	q := scoped(r.db.WithContext(ctx).Model(&models.Commission{}), "provenance", f.Scope)
	if f.RecipientID != 0 {
		q = q.Where("recipient_id = ?", f.RecipientID)
	}
	if f.SaleID != 0 {
		q = q.Where("sale_id = ?", f.SaleID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

// List lists commissions with filters and pagination
func (r *CommissionRepository) List(ctx context.Context, f CommissionFilter, offset, limit int) ([]*models.Commission, int64, error) {
	var commissions []*models.Commission
	var total int64

	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.filtered(ctx, f).
		Preload("Recipient").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&commissions).Error

	return commissions, total, err
}

// markComputed claims the sale's computed marker. Only the first caller
// sees the row change.
func markComputed(tx *gorm.DB, saleID uint) (bool, error) {
	res := tx.Model(&models.Sale{}).
		Where("id = ? AND commissions_computed_at IS NULL", saleID).
		Update("commissions_computed_at", time.Now())
	return res.RowsAffected == 1, res.Error
}

// InsertForSale writes a sale's commission set as one unit and marks the
// sale computed, also when rows is empty.
// Returns false without writing when the sale was already computed, including
// when a concurrent writer wins the marker or the (sale_id, level) unique index.
func (r *CommissionRepository) InsertForSale(ctx context.Context, saleID uint, rows []*models.Commission) (bool, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claimed, err := markComputed(tx, saleID)
		if err != nil {
			return err
		}
		if !claimed {
			return errAlreadyComputed
		}

		var count int64
		if err := tx.Model(&models.Commission{}).Where("sale_id = ?", saleID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errAlreadyComputed
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(rows).Error
	})

	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errAlreadyComputed), errors.Is(err, gorm.ErrDuplicatedKey):
		return false, nil
	}
	return false, err
}

// ReplaceForSale atomically swaps a sale's commission set.
// Refused with ErrRecomputeLocked once any existing row has left pending.
func (r *CommissionRepository) ReplaceForSale(ctx context.Context, saleID uint, rows []*models.Commission) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked int64
		err := tx.Model(&models.Commission{}).
			Where("sale_id = ? AND status <> ?", saleID, domain.StatusPending).
			Count(&locked).Error
		if err != nil {
			return err
		}
		if locked > 0 {
			return domain.ErrRecomputeLocked
		}

		if err := tx.Where("sale_id = ?", saleID).Delete(&models.Commission{}).Error; err != nil {
			return err
		}
		err = tx.Model(&models.Sale{}).Where("id = ?", saleID).
			Update("commissions_computed_at", time.Now()).Error
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(rows).Error
	})
}

// TransitionOne moves a single commission to status to after check approves
// the row and its sale, all inside one transaction.
func (r *CommissionRepository) TransitionOne(ctx context.Context, id uint, to domain.LedgerStatus, check func(c *models.Commission, sale *models.Sale) error) (*models.Commission, error) {
	var commission models.Commission
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&commission, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrCommissionNotFound
			}
			return err
		}

		var sale models.Sale
		if err := tx.First(&sale, commission.SaleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrSaleNotFound
			}
			return err
		}

		if err := check(&commission, &sale); err != nil {
			return err
		}

		res := tx.Model(&models.Commission{}).
			Where("id = ? AND status = ?", commission.ID, commission.Status).
			Update("status", to)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return fmt.Errorf("%w: commission %d changed concurrently", domain.ErrInvalidTransition, commission.ID)
		}
		commission.Status = to
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &commission, nil
}

// TransitionForSale moves every row of a sale that is not already at to.
// Void rows are terminal and left out of the batch. check is called once
// per row; any error rolls the whole batch back.
func (r *CommissionRepository) TransitionForSale(ctx context.Context, saleID uint, to domain.LedgerStatus, check func(c *models.Commission, sale *models.Sale) error) (int64, error) {
	var moved int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sale models.Sale
		if err := tx.First(&sale, saleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrSaleNotFound
			}
			return err
		}

		var rows []*models.Commission
		if err := tx.Where("sale_id = ? AND status NOT IN ?", saleID, []domain.LedgerStatus{to, domain.StatusVoid}).Order("level ASC").Find(&rows).Error; err != nil {
			return err
		}

		for _, c := range rows {
			if err := check(c, &sale); err != nil {
				return err
			}
			res := tx.Model(&models.Commission{}).
				Where("id = ? AND status = ?", c.ID, c.Status).
				Update("status", to)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				return fmt.Errorf("%w: commission %d changed concurrently", domain.ErrInvalidTransition, c.ID)
			}
			moved++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// LevelStatusTotals groups non-void commission amounts by recipient, level
// and status for the given recipients.
func (r *CommissionRepository) LevelStatusTotals(ctx context.Context, recipientIDs []uint) ([]LevelStatusTotal, error) {
	var rows []LevelStatusTotal
	if len(recipientIDs) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).Model(&models.Commission{}).
		Select("recipient_id, level, status, COALESCE(SUM(amount_cents), 0) AS amount_cents").
		Where("recipient_id IN ? AND status <> ?", recipientIDs, domain.StatusVoid).
		Group("recipient_id, level, status").
		Scan(&rows).Error
	return rows, err
}

// ListRawByRecipients loads every commission row of the given recipients
// without aggregation.
func (r *CommissionRepository) ListRawByRecipients(ctx context.Context, recipientIDs []uint) ([]*models.Commission, error) {
	var rows []*models.Commission
	if len(recipientIDs) == 0 {
		return rows, nil
	}
	err := r.db.WithContext(ctx).
		Select("id", "sale_id", "recipient_id", "level", "amount_cents", "status").
		Where("recipient_id IN ?", recipientIDs).
		Find(&rows).Error
	return rows, err
}

// DeleteSynthetic hard-deletes simulator commissions of one run (or every run)
func (r *CommissionRepository) DeleteSynthetic(ctx context.Context, runID string) (int64, error) {
	res := syntheticOnly(r.db.WithContext(ctx), runID).Delete(&models.Commission{})
	return res.RowsAffected, res.Error
}

// WithTx returns a repository bound to an open transaction
func (r *CommissionRepository) WithTx(tx *gorm.DB) *CommissionRepository {
	return &CommissionRepository{db: tx}
}

package repositories

import (
	"context"

	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/core/domain"

	"gorm.io/gorm"
)

// SaleFilter narrows a sale listing
type SaleFilter struct {
	Scope       domain.Scope
	AffiliateID uint
	Status      domain.LedgerStatus
}

// DirectTotal is an affiliate's own non-void sales
type DirectTotal struct {
	AffiliateID uint
	Count       int64
	VolumeCents int64
}

// SaleRepository handles sale ledger data access
type SaleRepository struct {
	db *gorm.DB
}

// NewSaleRepository creates a new sale repository
func NewSaleRepository(db *gorm.DB) *SaleRepository {
	return &SaleRepository{db: db}
}

// Create creates a new sale
func (r *SaleRepository) Create(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

// CreateBatch inserts sales in batches, filling their IDs
func (r *SaleRepository) CreateBatch(ctx context.Context, sales []*models.Sale, batchSize int) error {
	if len(sales) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(sales, batchSize).Error
}

// GetByID gets a sale by ID with its producer
func (r *SaleRepository) GetByID(ctx context.Context, id uint) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Affiliate").
		First(&sale, id).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *SaleRepository) filtered(ctx context.Context, f SaleFilter) *gorm.DB {
	q := scoped(r.db.WithContext(ctx).Model(&models.Sale{}), "provenance", f.Scope)
	if f.AffiliateID != 0 {
		q = q.Where("affiliate_id = ?", f.AffiliateID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	return q
}

// List lists sales with filters and pagination
func (r *SaleRepository) List(ctx context.Context, f SaleFilter, offset, limit int) ([]*models.Sale, int64, error) {
	var sales []*models.Sale
	var total int64

	if err := r.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := r.filtered(ctx, f).
		Preload("Affiliate").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&sales).Error

	return sales, total, err
}

// UpdateStatus moves a sale from one status to another.
// Returns false when the sale was no longer in status from.
func (r *SaleRepository) UpdateStatus(ctx context.Context, id uint, from, to domain.LedgerStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Sale{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected == 1, res.Error
}

// ListMissingCommissions returns IDs above afterID of non-void sales never computed
func (r *SaleRepository) ListMissingCommissions(ctx context.Context, afterID uint, limit int) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.Sale{}).
		Where("id > ? AND status <> ?", afterID, domain.StatusVoid).
		Where("commissions_computed_at IS NULL").
		Order("id ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// DirectTotals sums the non-void sales produced by each affiliate
func (r *SaleRepository) DirectTotals(ctx context.Context, affiliateIDs []uint) (map[uint]DirectTotal, error) {
	totals := make(map[uint]DirectTotal, len(affiliateIDs))
	if len(affiliateIDs) == 0 {
		return totals, nil
	}

	var rows []DirectTotal
	err := r.db.WithContext(ctx).Model(&models.Sale{}).
		Select("affiliate_id, COUNT(*) AS count, COALESCE(SUM(amount_cents), 0) AS volume_cents").
		Where("affiliate_id IN ? AND status <> ?", affiliateIDs, domain.StatusVoid).
		Group("affiliate_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		totals[row.AffiliateID] = row
	}
	return totals, nil
}

// DeleteSynthetic hard-deletes simulator sales of one run (or every run)
func (r *SaleRepository) DeleteSynthetic(ctx context.Context, runID string) (int64, error) {
	res := syntheticOnly(r.db.WithContext(ctx), runID).Delete(&models.Sale{})
	return res.RowsAffected, res.Error
}

// ListRawByProducers loads every sale of the given producers without aggregation
func (r *SaleRepository) ListRawByProducers(ctx context.Context, affiliateIDs []uint) ([]*models.Sale, error) {
	var sales []*models.Sale
	if len(affiliateIDs) == 0 {
		return sales, nil
	}
	err := r.db.WithContext(ctx).
		Select("id", "affiliate_id", "amount_cents", "status").
		Where("affiliate_id IN ?", affiliateIDs).
		Find(&sales).Error
	return sales, err
}

// WithTx returns a repository bound to an open transaction
func (r *SaleRepository) WithTx(tx *gorm.DB) *SaleRepository {
	return &SaleRepository{db: tx}
}

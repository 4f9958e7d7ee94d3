package repositories

import (
	"context"

	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/core/domain"

	"gorm.io/gorm"
)

// AffiliateRepository handles affiliate directory data access
type AffiliateRepository struct {
	db *gorm.DB
}

// NewAffiliateRepository creates a new affiliate repository
func NewAffiliateRepository(db *gorm.DB) *AffiliateRepository {
	return &AffiliateRepository{db: db}
}

// Create creates a new affiliate
func (r *AffiliateRepository) Create(ctx context.Context, affiliate *models.Affiliate) error {
	return r.db.WithContext(ctx).Create(affiliate).Error
}

// CreateBatch inserts affiliates in batches, filling their IDs
func (r *AffiliateRepository) CreateBatch(ctx context.Context, affiliates []*models.Affiliate, batchSize int) error {
	if len(affiliates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(affiliates, batchSize).Error
}

// GetByID gets an affiliate by ID with its upline
func (r *AffiliateRepository) GetByID(ctx context.Context, id uint) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).
		Preload("Upline").
		First(&affiliate, id).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// GetNode loads only the fields an upline walk needs
func (r *AffiliateRepository) GetNode(ctx context.Context, id uint) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).
		Select("id", "upline_id", "status", "comp_active", "provenance").
		First(&affiliate, id).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// GetByReferralCode gets an affiliate by referral code
func (r *AffiliateRepository) GetByReferralCode(ctx context.Context, code string) (*models.Affiliate, error) {
	var affiliate models.Affiliate
	err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&affiliate).Error
	if err != nil {
		return nil, err
	}
	return &affiliate, nil
}

// ExistsByReferralCode checks if a referral code is taken
func (r *AffiliateRepository) ExistsByReferralCode(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Affiliate{}).Where("referral_code = ?", code).Count(&count).Error
	return count > 0, err
}

// List lists affiliates in a provenance scope with pagination
func (r *AffiliateRepository) List(ctx context.Context, scope domain.Scope, offset, limit int) ([]*models.Affiliate, int64, error) {
	var affiliates []*models.Affiliate
	var total int64

	if err := scoped(r.db.WithContext(ctx).Model(&models.Affiliate{}), "provenance", scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := scoped(r.db.WithContext(ctx), "provenance", scope).
		Preload("Upline").
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&affiliates).Error

	return affiliates, total, err
}

// FindInBatches streams affiliates of a scope ordered by ID
func (r *AffiliateRepository) FindInBatches(ctx context.Context, scope domain.Scope, batchSize int, fn func(batch []*models.Affiliate) error) error {
	var batch []*models.Affiliate
	return scoped(r.db.WithContext(ctx), "provenance", scope).
		FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
			return fn(batch)
		}).Error
}

// UpdateFields updates selected columns of an affiliate
func (r *AffiliateRepository) UpdateFields(ctx context.Context, id uint, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Affiliate{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateCache writes the denormalised upline cache columns
func (r *AffiliateRepository) UpdateCache(ctx context.Context, id uint, cache [3]*uint) error {
	return r.db.WithContext(ctx).Model(&models.Affiliate{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"cache_upline1_id": cache[0],
			"cache_upline2_id": cache[1],
			"cache_upline3_id": cache[2],
		}).Error
}

// DownlineCounts counts first, second and third generation downline
// through the cache columns
func (r *AffiliateRepository) DownlineCounts(ctx context.Context, id uint) ([3]int64, error) {
	var counts [3]int64
	columns := [3]string{"cache_upline1_id", "cache_upline2_id", "cache_upline3_id"}
	for i, column := range columns {
		if err := r.db.WithContext(ctx).Model(&models.Affiliate{}).Where(column+" = ?", id).Count(&counts[i]).Error; err != nil {
			return counts, err
		}
	}
	return counts, nil
}

// DeleteSynthetic hard-deletes simulator affiliates of one run (or every run)
func (r *AffiliateRepository) DeleteSynthetic(ctx context.Context, runID string) (int64, error) {
	res := syntheticOnly(r.db.WithContext(ctx), runID).Delete(&models.Affiliate{})
	return res.RowsAffected, res.Error
}

// CountByProvenance counts affiliates in a scope
func (r *AffiliateRepository) CountByProvenance(ctx context.Context, scope domain.Scope) (int64, error) {
	var count int64
	err := scoped(r.db.WithContext(ctx).Model(&models.Affiliate{}), "provenance", scope).Count(&count).Error
	return count, err
}

// WithTx returns a repository bound to an open transaction
func (r *AffiliateRepository) WithTx(tx *gorm.DB) *AffiliateRepository {
	return &AffiliateRepository{db: tx}
}

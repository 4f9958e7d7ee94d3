package repositories

import (
	"context"

	"vetbridge-affiliate/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// operatorRepository implements OperatorRepository interface
type operatorRepository struct {
	db *gorm.DB
}

// NewOperatorRepository creates a new operator repository
func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &operatorRepository{db: db}
}

// Create creates a new operator
func (r *operatorRepository) Create(ctx context.Context, operator *models.Operator) error {
	return r.db.WithContext(ctx).Create(operator).Error
}

// GetByID gets an operator by ID
func (r *operatorRepository) GetByID(ctx context.Context, id uint) (*models.Operator, error) {
	var operator models.Operator
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&operator).Error
	if err != nil {
		return nil, err
	}
	return &operator, nil
}

// GetByUsername gets an operator by username
func (r *operatorRepository) GetByUsername(ctx context.Context, username string) (*models.Operator, error) {
	var operator models.Operator
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&operator).Error
	if err != nil {
		return nil, err
	}
	return &operator, nil
}

// ExistsByUsername checks if username exists
func (r *operatorRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Operator{}).Where("username = ?", username).Count(&count).Error
	return count > 0, err
}

// CountByRole counts operators holding a role
func (r *operatorRepository) CountByRole(ctx context.Context, role string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Operator{}).Where("role = ?", role).Count(&count).Error
	return count, err
}

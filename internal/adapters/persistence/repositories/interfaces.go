package repositories

import (
	"context"

	"vetbridge-affiliate/internal/adapters/persistence/models"
)

// OperatorRepository defines operator repository interface
type OperatorRepository interface {
	Create(ctx context.Context, operator *models.Operator) error
	GetByID(ctx context.Context, id uint) (*models.Operator, error)
	GetByUsername(ctx context.Context, username string) (*models.Operator, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	CountByRole(ctx context.Context, role string) (int64, error)
}

package services

import (
	"context"

	"vetbridge-affiliate/internal/adapters/persistence/models"
)

// UplineReader loads one affiliate node at a time for upline walks.
// A missing affiliate is reported as gorm.ErrRecordNotFound.
type UplineReader interface {
	GetNode(ctx context.Context, id uint) (*models.Affiliate, error)
}

// CommissionComputer computes the commission set of a single sale
type CommissionComputer interface {
	ComputeCommissions(ctx context.Context, saleID uint, opts ComputeOptions) (*ComputationResult, error)
}

package services

import (
	"context"
	"errors"

	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/adapters/persistence/repositories"
	"vetbridge-affiliate/internal/config"
	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/pkg/jwt"
	"vetbridge-affiliate/internal/pkg/logger"
	"vetbridge-affiliate/internal/pkg/password"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Auth errors
var (
	ErrOperatorNotFound = errors.New("operator not found")
	ErrOperatorInactive = errors.New("operator account is inactive")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
)

// AuthService handles operator authentication
type AuthService struct {
	operatorRepo repositories.OperatorRepository
	cfg          *config.Config
	log          zerolog.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(operatorRepo repositories.OperatorRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		operatorRepo: operatorRepo,
		cfg:          cfg,
		log:          logger.Component("auth"),
	}
}

// LoginInput represents login input
type LoginInput struct {
	Username string
	Password string
}

// AuthResponse represents authentication response
type AuthResponse struct {
	Operator    *models.Operator `json:"operator"`
	AccessToken string           `json:"access_token"`
	ExpiresIn   int              `json:"expires_in"`
}

// Login authenticates an operator and issues an access token
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*AuthResponse, error) {
	operator, err := s.operatorRepo.GetByUsername(ctx, input.Username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}

	if !operator.IsActive {
		return nil, ErrOperatorInactive
	}

	if !password.Verify(input.Password, operator.Password) {
		return nil, domain.ErrInvalidCredentials
	}

	token, err := jwt.GenerateAccessToken(
		operator.ID,
		operator.Username,
		operator.Role,
		s.cfg.JWT.Secret,
		s.cfg.JWT.AccessTokenMins,
	)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("username", operator.Username).Msg("✅ Operator logged in")

	return &AuthResponse{
		Operator:    operator,
		AccessToken: token,
		ExpiresIn:   jwt.ExpiresIn(s.cfg.JWT.AccessTokenMins),
	}, nil
}

// ValidateAccessToken validates an access token
func (s *AuthService) ValidateAccessToken(accessToken string) (*jwt.Claims, error) {
	claims, err := jwt.ValidateAccessToken(accessToken, s.cfg.JWT.Secret)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// GetOperatorByID gets an operator by ID
func (s *AuthService) GetOperatorByID(ctx context.Context, id uint) (*models.Operator, error) {
	operator, err := s.operatorRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOperatorNotFound
		}
		return nil, err
	}
	return operator, nil
}

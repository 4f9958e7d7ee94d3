package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/adapters/persistence/repositories"
	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// referralCodeAttempts bounds retries when a generated code collides
const referralCodeAttempts = 5

// DirectoryService handles affiliate directory business logic
type DirectoryService struct {
	affiliates *repositories.AffiliateRepository
	resolver   *HierarchyResolver
	log        zerolog.Logger
}

// NewDirectoryService creates a new directory service
func NewDirectoryService(affiliates *repositories.AffiliateRepository, resolver *HierarchyResolver) *DirectoryService {
	return &DirectoryService{
		affiliates: affiliates,
		resolver:   resolver,
		log:        logger.Component("directory"),
	}
}

// CreateAffiliateInput represents affiliate intake.
// The upline is given either by ID or by the recruiter's referral code.
type CreateAffiliateInput struct {
	Name         string
	Email        string
	ReferralCode string
	Role         domain.Role
	UplineID     *uint
	UplineCode   string
	CompActive   bool
}

// DownlineCounts is the size of an affiliate's first three downline generations
type DownlineCounts struct {
	AffiliateID uint  `json:"affiliate_id"`
	Level1      int64 `json:"level_1"`
	Level2      int64 `json:"level_2"`
	Level3      int64 `json:"level_3"`
}

// Create registers a real affiliate
func (s *DirectoryService) Create(ctx context.Context, input *CreateAffiliateInput) (*models.Affiliate, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}

	role := input.Role
	if role == "" {
		role = domain.RoleAffiliate
	}
	if !role.Valid() {
		return nil, domain.ErrInvalidRole
	}

	upline, err := s.lookupUpline(ctx, input.UplineID, input.UplineCode)
	if err != nil {
		return nil, err
	}
	if upline != nil && upline.Provenance.IsSynthetic() {
		return nil, domain.ErrProvenanceMismatch
	}

	code, err := s.referralCode(ctx, input.ReferralCode)
	if err != nil {
		return nil, err
	}

	affiliate := &models.Affiliate{
		Name:         name,
		Email:        strings.TrimSpace(input.Email),
		ReferralCode: code,
		Role:         role,
		Status:       domain.AffiliateActive,
		CompActive:   input.CompActive,
		Provenance:   domain.ProvenanceReal,
	}
	if upline != nil {
		affiliate.UplineID = &upline.ID
	}

	if err := s.affiliates.Create(ctx, affiliate); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrReferralCodeTaken
		}
		return nil, err
	}

	if err := s.refreshCache(ctx, affiliate.ID); err != nil {
		return nil, err
	}

	s.log.Info().Uint("affiliate_id", affiliate.ID).Str("referral_code", code).Msg("✅ Affiliate registered")
	return s.GetByID(ctx, affiliate.ID)
}

func (s *DirectoryService) lookupUpline(ctx context.Context, id *uint, code string) (*models.Affiliate, error) {
	var (
		upline *models.Affiliate
		err    error
	)
	switch {
	case id != nil:
		upline, err = s.affiliates.GetByID(ctx, *id)
	case strings.TrimSpace(code) != "":
		upline, err = s.affiliates.GetByReferralCode(ctx, strings.TrimSpace(code))
	default:
		return nil, nil
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUplineNotFound
		}
		return nil, err
	}
	return upline, nil
}

func (s *DirectoryService) referralCode(ctx context.Context, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		taken, err := s.affiliates.ExistsByReferralCode(ctx, requested)
		if err != nil {
			return "", err
		}
		if taken {
			return "", domain.ErrReferralCodeTaken
		}
		return requested, nil
	}

	for i := 0; i < referralCodeAttempts; i++ {
		code := NewReferralCode()
		taken, err := s.affiliates.ExistsByReferralCode(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", domain.ErrReferralCodeTaken
}

// NewReferralCode returns an 8 character uppercase code
func NewReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// GetByID gets an affiliate by ID
func (s *DirectoryService) GetByID(ctx context.Context, id uint) (*models.Affiliate, error) {
	affiliate, err := s.affiliates.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAffiliateNotFound
		}
		return nil, err
	}
	return affiliate, nil
}

// GetByReferralCode gets an affiliate by referral code
func (s *DirectoryService) GetByReferralCode(ctx context.Context, code string) (*models.Affiliate, error) {
	affiliate, err := s.affiliates.GetByReferralCode(ctx, strings.TrimSpace(code))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAffiliateNotFound
		}
		return nil, err
	}
	return affiliate, nil
}

// List lists affiliates of a provenance scope
func (s *DirectoryService) List(ctx context.Context, scope domain.Scope, offset, limit int) ([]*models.Affiliate, int64, error) {
	return s.affiliates.List(ctx, scope, offset, limit)
}

// SetUpline re-parents an affiliate. A nil uplineID makes it a root.
// Existing commissions are not touched; descendants' caches heal on the
// next RebuildUplineCache.
func (s *DirectoryService) SetUpline(ctx context.Context, id uint, uplineID *uint) (*models.Affiliate, error) {
	affiliate, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if uplineID != nil {
		if *uplineID == id {
			return nil, domain.ErrUplineCycle
		}
		upline, err := s.lookupUpline(ctx, uplineID, "")
		if err != nil {
			return nil, err
		}
		if !affiliate.Provenance.IsSynthetic() && upline.Provenance.IsSynthetic() {
			return nil, domain.ErrProvenanceMismatch
		}
		if err := s.ensureNotAncestor(ctx, id, upline.ID); err != nil {
			return nil, err
		}
	}

	if err := s.affiliates.UpdateFields(ctx, id, map[string]interface{}{"upline_id": uplineID}); err != nil {
		return nil, err
	}
	if err := s.refreshCache(ctx, id); err != nil {
		return nil, err
	}

	s.log.Info().Uint("affiliate_id", id).Interface("upline_id", uplineID).Msg("🔀 Upline changed")
	return s.GetByID(ctx, id)
}

// ensureNotAncestor walks the whole chain above start and fails if id is on it
func (s *DirectoryService) ensureNotAncestor(ctx context.Context, id, start uint) error {
	visited := make(map[uint]bool)
	cur := &start
	for cur != nil {
		if *cur == id {
			return domain.ErrUplineCycle
		}
		if visited[*cur] {
			// pre-existing loop above; id is not on it
			return nil
		}
		visited[*cur] = true

		node, err := s.affiliates.GetNode(ctx, *cur)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		cur = node.UplineID
	}
	return nil
}

func (s *DirectoryService) refreshCache(ctx context.Context, id uint) error {
	cache, err := s.resolver.CacheFor(ctx, id)
	if err != nil {
		return err
	}
	return s.affiliates.UpdateCache(ctx, id, cache)
}

// SetStatus activates or deactivates an affiliate
func (s *DirectoryService) SetStatus(ctx context.Context, id uint, status domain.AffiliateStatus) (*models.Affiliate, error) {
	if !status.Valid() {
		return nil, domain.ErrInvalidStatus
	}
	return s.update(ctx, id, map[string]interface{}{"status": status})
}

// SetCompActive sets the compensation-active flag
func (s *DirectoryService) SetCompActive(ctx context.Context, id uint, active bool) (*models.Affiliate, error) {
	return s.update(ctx, id, map[string]interface{}{"comp_active": active})
}

func (s *DirectoryService) update(ctx context.Context, id uint, fields map[string]interface{}) (*models.Affiliate, error) {
	if err := s.affiliates.UpdateFields(ctx, id, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAffiliateNotFound
		}
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// Downline counts the first three downline generations from the upline cache
func (s *DirectoryService) Downline(ctx context.Context, id uint) (*DownlineCounts, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	counts, err := s.affiliates.DownlineCounts(ctx, id)
	if err != nil {
		return nil, err
	}
	return &DownlineCounts{AffiliateID: id, Level1: counts[0], Level2: counts[1], Level3: counts[2]}, nil
}

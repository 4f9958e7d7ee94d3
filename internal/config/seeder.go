package config

import (
	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/pkg/password"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// Seeder handles database seeding
type Seeder struct {
	db  *gorm.DB
	cfg *Config
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, cfg *Config) *Seeder {
	return &Seeder{db: db, cfg: cfg}
}

// Run executes all seeders
func (s *Seeder) Run() error {
	log.Info().Msg("🌱 Running database seeders...")

	if err := s.seedAdminOperator(); err != nil {
		log.Warn().Err(err).Msg("⚠️ Admin seeder skipped")
	}

	log.Info().Msg("✅ Database seeding completed")
	return nil
}

// seedAdminOperator creates the bootstrap ADMIN from ADMIN_USERNAME and
// ADMIN_PASSWORD when no admin exists yet
func (s *Seeder) seedAdminOperator() error {
	var count int64
	if err := s.db.Model(&models.Operator{}).Where("role = ?", models.OperatorRoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if s.cfg.Admin.Username == "" || s.cfg.Admin.Password == "" {
		log.Warn().Msg("⚠️ Skipping admin seed: ADMIN_USERNAME / ADMIN_PASSWORD not set")
		return nil
	}
	if !password.ValidatePassword(s.cfg.Admin.Password) {
		log.Warn().Int("min_length", password.MinLength).Msg("⚠️ Skipping admin seed: ADMIN_PASSWORD too short")
		return nil
	}

	hashedPassword, err := password.Hash(s.cfg.Admin.Password)
	if err != nil {
		return err
	}

	admin := &models.Operator{
		Username: s.cfg.Admin.Username,
		Password: hashedPassword,
		Role:     models.OperatorRoleAdmin,
		IsActive: true,
	}
	if err := s.db.Create(admin).Error; err != nil {
		return err
	}

	log.Info().Str("username", admin.Username).Msg("✅ Admin operator created")
	return nil
}

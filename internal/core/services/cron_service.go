package services

import (
	"context"
	"time"

	"vetbridge-affiliate/internal/pkg/logger"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// sweepBatch bounds one ComputeMissing pass
const sweepBatch = 1000

// jobTimeout bounds a single scheduled job
const jobTimeout = 30 * time.Minute

// CronService runs the scheduled ledger maintenance jobs
type CronService struct {
	cron        *cron.Cron
	resolver    *HierarchyResolver
	commissions *CommissionService
	rebuildSpec string
	sweepSpec   string
	log         zerolog.Logger
	ctx         context.Context
	cancelCtx   context.CancelFunc
}

// NewCronService creates a new cron service
func NewCronService(resolver *HierarchyResolver, commissions *CommissionService, rebuildSpec, sweepSpec string) *CronService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CronService{
		cron:        cron.New(),
		resolver:    resolver,
		commissions: commissions,
		rebuildSpec: rebuildSpec,
		sweepSpec:   sweepSpec,
		log:         logger.Component("cron"),
		ctx:         ctx,
		cancelCtx:   cancel,
	}
}

// Start registers the jobs and starts the scheduler
func (s *CronService) Start() error {
	if s.rebuildSpec != "" {
		if _, err := s.cron.AddFunc(s.rebuildSpec, s.RebuildUplines); err != nil {
			return err
		}
	}
	if s.sweepSpec != "" {
		if _, err := s.cron.AddFunc(s.sweepSpec, s.SweepMissing); err != nil {
			return err
		}
	}
	s.cron.Start()
	s.log.Info().Str("upline_rebuild", s.rebuildSpec).Str("compute_missing", s.sweepSpec).Msg("🚀 CronService started")
	return nil
}

// Stop cancels running jobs and waits for them to return
func (s *CronService) Stop() {
	s.cancelCtx()
	<-s.cron.Stop().Done()
	s.log.Info().Msg("🛑 CronService stopped")
}

// RebuildUplines is the nightly upline cache rebuild job
func (s *CronService) RebuildUplines() {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	if _, err := s.resolver.RebuildUplineCache(ctx); err != nil {
		s.log.Error().Err(err).Msg("❌ Scheduled upline rebuild failed")
	}
}

// SweepMissing computes commissions for sales never computed
func (s *CronService) SweepMissing() {
	ctx, cancel := context.WithTimeout(s.ctx, jobTimeout)
	defer cancel()

	if _, err := s.commissions.ComputeMissing(ctx, sweepBatch); err != nil {
		s.log.Error().Err(err).Msg("❌ Scheduled commission sweep failed")
	}
}

package services

import (
	"context"
	"errors"
	"fmt"

	"vetbridge-affiliate/internal/adapters/persistence/models"
	"vetbridge-affiliate/internal/adapters/persistence/repositories"
	"vetbridge-affiliate/internal/core/domain"
	"vetbridge-affiliate/internal/pkg/logger"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// cacheBatchSize is the affiliate batch used by cache rebuilds
const cacheBatchSize = 1000

// HierarchyResolver walks upline chains and maintains the upline cache
type HierarchyResolver struct {
	reader     UplineReader
	affiliates *repositories.AffiliateRepository
	log        zerolog.Logger
}

// NewHierarchyResolver creates a new hierarchy resolver.
// affiliates may be nil when only ResolveUpline is needed.
func NewHierarchyResolver(reader UplineReader, affiliates *repositories.AffiliateRepository) *HierarchyResolver {
	return &HierarchyResolver{
		reader:     reader,
		affiliates: affiliates,
		log:        logger.Component("hierarchy"),
	}
}

// ResolveUpline returns the affiliate itself at level 1 followed by its
// ancestors, nearest first, up to MaxLevels entries or the root.
func (h *HierarchyResolver) ResolveUpline(ctx context.Context, affiliateID uint) ([]domain.UplineEntry, error) {
	node, err := h.reader.GetNode(ctx, affiliateID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", domain.ErrAffiliateNotFound, affiliateID)
		}
		return nil, err
	}

	entries := make([]domain.UplineEntry, 0, domain.MaxLevels)
	entries = append(entries, entryFor(1, node))
	visited := map[uint]bool{node.ID: true}

	for level := 2; level <= domain.MaxLevels && node.UplineID != nil; level++ {
		nextID := *node.UplineID
		if visited[nextID] {
			return nil, &domain.HierarchyCycleError{AffiliateID: affiliateID, RepeatedID: nextID}
		}
		visited[nextID] = true

		parent, err := h.reader.GetNode(ctx, nextID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// Parent pointer of a missing row is unknown, so the walk ends here.
				entries = append(entries, domain.UplineEntry{Level: level, AffiliateID: nextID, Stale: true})
				break
			}
			return nil, err
		}
		entries = append(entries, entryFor(level, parent))
		node = parent
	}

	return entries, nil
}

func entryFor(level int, a *models.Affiliate) domain.UplineEntry {
	return domain.UplineEntry{
		Level:       level,
		AffiliateID: a.ID,
		Status:      a.Status,
		CompActive:  a.CompActive,
	}
}

// CacheFor derives the three upline cache columns of one affiliate
func (h *HierarchyResolver) CacheFor(ctx context.Context, affiliateID uint) ([3]*uint, error) {
	var cache [3]*uint
	entries, err := h.ResolveUpline(ctx, affiliateID)
	if err != nil {
		return cache, err
	}
	for _, e := range entries[1:] {
		if e.Stale || e.Level > 4 {
			break
		}
		id := e.AffiliateID
		cache[e.Level-2] = &id
	}
	return cache, nil
}

// RebuildUplineCache recomputes the cache columns of every affiliate from
// the parent pointers and writes only rows whose cache changed.
func (h *HierarchyResolver) RebuildUplineCache(ctx context.Context) (int, error) {
	all := domain.Scope{Kind: domain.ScopeAll}

	parents := make(map[uint]*uint)
	err := h.affiliates.FindInBatches(ctx, all, cacheBatchSize, func(batch []*models.Affiliate) error {
		for _, a := range batch {
			parents[a.ID] = a.UplineID
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("load parent pointers: %w", err)
	}

	updated := 0
	err = h.affiliates.FindInBatches(ctx, all, cacheBatchSize, func(batch []*models.Affiliate) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, a := range batch {
			cache := cacheFromParents(a.ID, parents)
			if sameCache(cache, [3]*uint{a.CacheUpline1ID, a.CacheUpline2ID, a.CacheUpline3ID}) {
				continue
			}
			if err := h.affiliates.UpdateCache(ctx, a.ID, cache); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return updated, fmt.Errorf("rebuild upline cache: %w", err)
	}

	h.log.Info().Int("updated", updated).Int("affiliates", len(parents)).Msg("✅ Upline cache rebuilt")
	return updated, nil
}

// cacheFromParents follows existing parents only and stops on a loop
func cacheFromParents(id uint, parents map[uint]*uint) [3]*uint {
	var cache [3]*uint
	cur := parents[id]
	for i := 0; i < 3 && cur != nil; i++ {
		ancestor := *cur
		if ancestor == id {
			break
		}
		next, ok := parents[ancestor]
		if !ok {
			break
		}
		cache[i] = &ancestor
		cur = next
	}
	return cache
}

func sameCache(a, b [3]*uint) bool {
	for i := range a {
		switch {
		case a[i] == nil && b[i] == nil:
		case a[i] == nil || b[i] == nil:
			return false
		case *a[i] != *b[i]:
			return false
		}
	}
	return true
}

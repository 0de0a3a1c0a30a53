package tierapi

import (
	"context"
	"log/slog"
	"sync"

	"github.com/closetiq/closetiq/internal/models"
)

// StaticService serves tier data from the built-in catalog without any
// network. It backs local development when no tier service URL is configured,
// and doubles as a test collaborator.
type StaticService struct {
	mu      sync.Mutex
	catalog map[models.TierKey]models.TierRecord
	current models.TierKey
}

// NewStaticService creates a static service starting every account on the
// free tier.
func NewStaticService() *StaticService {
	return &StaticService{
		catalog: models.DefaultTierCatalog(),
		current: models.TierFree,
	}
}

func (s *StaticService) GetUserTier(ctx context.Context) (UserTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return UserTier{Tier: s.current, Active: s.current != models.TierFree}, nil
}

func (s *StaticService) GetAllTiers(ctx context.Context) ([]models.TierRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tiers := make([]models.TierRecord, 0, len(s.catalog))
	for _, key := range []models.TierKey{models.TierFree, models.TierPro, models.TierElite} {
		if rec, ok := s.catalog[key]; ok {
			tiers = append(tiers, rec)
		}
	}
	return tiers, nil
}

func (s *StaticService) SetUserTier(ctx context.Context, key models.TierKey) (UserTier, error) {
	if key == "" {
		return UserTier{}, models.ErrEmptyTierKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = key
	slog.Debug("StaticService.SetUserTier", "tier", key)
	return UserTier{Tier: key, Active: key != models.TierFree}, nil
}

package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SangwoonYun/ks-rewards.com/internal/cache"
	"github.com/SangwoonYun/ks-rewards.com/internal/model"
	"github.com/SangwoonYun/ks-rewards.com/internal/repository"
)

// Dashboard bundles the aggregate counts the presentation layer polls.
type Dashboard struct {
	Codes       *model.GiftCodeStats `json:"codes"`
	Queue       *model.QueueStats    `json:"queue"`
	Accounts    int                  `json:"accounts"`
	ActiveCount int                  `json:"active_accounts"`
}

// StatsService serves read-only aggregates, caching them briefly since
// the dashboard polls them far more often than they change.
type StatsService struct {
	cache       cache.Cache
	ttl         time.Duration
	accounts    repository.AccountRepository
	codes       repository.GiftCodeRepository
	redemptions repository.RedemptionRepository
	queue       repository.QueueRepository
}

// NewStatsService creates a stats service. cache may be nil to disable
// caching.
func NewStatsService(c cache.Cache, ttl time.Duration,
	accounts repository.AccountRepository, codes repository.GiftCodeRepository,
	redemptions repository.RedemptionRepository, queue repository.QueueRepository) *StatsService {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &StatsService{
		cache:       c,
		ttl:         ttl,
		accounts:    accounts,
		codes:       codes,
		redemptions: redemptions,
		queue:       queue,
	}
}

// Dashboard returns aggregate counts across codes, queue and accounts.
func (s *StatsService) Dashboard(ctx context.Context) (*Dashboard, error) {
	load := func() (*Dashboard, error) {
		codeStats, err := s.codes.Stats(ctx)
		if err != nil {
			return nil, err
		}
		queueStats, err := s.queue.Stats(ctx)
		if err != nil {
			return nil, err
		}
		all, err := s.accounts.FindAll(ctx)
		if err != nil {
			return nil, err
		}
		active := 0
		for _, a := range all {
			if a.Active {
				active++
			}
		}
		return &Dashboard{
			Codes:       codeStats,
			Queue:       queueStats,
			Accounts:    len(all),
			ActiveCount: active,
		}, nil
	}

	if s.cache == nil {
		return load()
	}

	data, err := s.cache.GetOrSet(ctx, "stats:dashboard", s.ttl, func() ([]byte, error) {
		d, err := load()
		if err != nil {
			return nil, err
		}
		return json.Marshal(d)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard stats: %w", err)
	}

	var d Dashboard
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("failed to decode cached stats: %w", err)
	}
	return &d, nil
}

// RecentRedemptions returns recent successful redemptions joined with
// account profiles.
func (s *StatsService) RecentRedemptions(ctx context.Context, limit int) ([]model.Redemption, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.redemptions.FindRecentSuccesses(ctx, limit)
}

// Invalidate drops cached aggregates after a mutating operation.
func (s *StatsService) Invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Delete(ctx, "stats:dashboard")
	}
}

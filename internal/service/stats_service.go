package service

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/idea-service/internal/cache"
	"github.com/spec-kit/idea-service/internal/domain"
	"github.com/spec-kit/idea-service/internal/events"
	"github.com/spec-kit/idea-service/internal/observability"
	"github.com/spec-kit/idea-service/internal/repository"
)

// StatsService computes per-status counts over an identity's visible ideas.
type StatsService struct {
	ideas      repository.IdeaRepository
	cache      *cache.StatsCache
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger

	// untrusted is set when an invalidation could not be recorded.
	untrusted atomic.Bool
}

const invalidateTimeout = 2 * time.Second

// StatsDependencies bundles collaborators for the stats service. Cache may be nil.
type StatsDependencies struct {
	IdeaRepo   repository.IdeaRepository
	Cache      *cache.StatsCache
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewStatsService constructs the service.
func NewStatsService(deps StatsDependencies) *StatsService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatsService{
		ideas:      deps.IdeaRepo,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// ComputeStats counts exactly the ideas ListIdeas would return for actor.
func (s *StatsService) ComputeStats(ctx context.Context, actor domain.Identity) (domain.Stats, error) {
	filter, err := visibleFilter(actor, domain.ActionViewStats)
	if err != nil {
		return domain.Stats{}, err
	}
	if s.cache == nil {
		return s.ideas.CountByStatus(ctx, filter)
	}

	scope := cache.ScopeFor(actor)
	gen, usable := s.generation(ctx)
	if usable {
		stats, err := s.cache.Get(ctx, gen, scope)
		switch {
		case err == nil:
			s.metrics.StatsCacheResult("hit")
			return stats, nil
		case errors.Is(err, cache.ErrMiss):
			s.metrics.StatsCacheResult("miss")
		default:
			s.metrics.StatsCacheResult("error")
			s.logger.Warn("stats cache read failed", zap.String("scope", scope), zap.Error(err))
			usable = false
		}
	}

	stats, err := s.ideas.CountByStatus(ctx, filter)
	if err != nil {
		return domain.Stats{}, err
	}

	if usable {
		if _, err := s.cache.SetIfCurrent(ctx, gen, scope, stats); err != nil {
			s.logger.Warn("stats cache write failed", zap.String("scope", scope), zap.Error(err))
		}
	}
	return stats, nil
}

// generation returns the cache generation to read from. After a failed
// invalidation the cache is bypassed until a new generation is started.
func (s *StatsService) generation(ctx context.Context) (int64, bool) {
	if s.untrusted.Load() {
		gen, err := s.cache.Invalidate(ctx)
		if err != nil {
			s.metrics.StatsCacheResult("bypass")
			return 0, false
		}
		s.untrusted.Store(false)
		s.logger.Info("stats cache trusted again", zap.Int64("generation", gen))
		return gen, true
	}
	gen, err := s.cache.Generation(ctx)
	if err != nil {
		s.metrics.StatsCacheResult("error")
		s.logger.Warn("stats cache generation read failed", zap.Error(err))
		return 0, false
	}
	return gen, true
}

// RegisterHandlers subscribes cache invalidation to every event that can move
// an idea between status buckets or visibility scopes.
func (s *StatsService) RegisterHandlers() {
	if s.dispatcher == nil || s.cache == nil {
		return
	}
	for _, eventType := range []events.EventType{
		events.EventIdeaCreated,
		events.EventIdeaStatusChanged,
		events.EventIdeaAssigned,
		events.EventIdeaUnassigned,
	} {
		s.dispatcher.Subscribe(eventType, s.invalidate)
	}
}

// invalidate runs after the mutation committed, so it must not inherit the
// request deadline.
func (s *StatsService) invalidate(ctx context.Context, event events.Event) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
	defer cancel()

	gen, err := s.cache.Invalidate(ctx)
	if err != nil {
		s.untrusted.Store(true)
		s.logger.Error("stats cache invalidation failed; bypassing cache",
			zap.String("event_type", string(event.Type)),
			zap.String("idea_id", event.IdeaID),
			zap.Error(err))
		return err
	}
	s.logger.Debug("stats cache invalidated", zap.Int64("generation", gen), zap.String("event_type", string(event.Type)))
	return nil
}

package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/idea-service/internal/cache"
	"github.com/spec-kit/idea-service/internal/domain"
	"github.com/spec-kit/idea-service/internal/events"
	"github.com/spec-kit/idea-service/internal/observability"
	"github.com/spec-kit/idea-service/internal/repository/memory"
)

type fixture struct {
	store      *memory.Store
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	ideas      *IdeaService
	stats      *StatsService
	directory  *DirectoryService
	redis      *miniredis.Miniredis
	cache      *cache.StatsCache

	customer      domain.Identity
	otherCustomer domain.Identity
	dev           domain.Identity
	otherDev      domain.Identity
	thirdDev      domain.Identity
	owner         domain.Identity
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	withCache bool
}

func withCache() fixtureOption {
	return func(c *fixtureConfig) { c.withCache = true }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	var cfg fixtureConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	f := &fixture{
		store:      memory.New(),
		dispatcher: events.NewInMemoryDispatcher(zap.NewNop()),
		metrics:    observability.NewMetrics(prometheus.NewRegistry()),
	}

	var statsCache *cache.StatsCache
	if cfg.withCache {
		f.redis = miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: f.redis.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		statsCache = cache.NewStatsCache(client, time.Minute)
		f.cache = statsCache
	}

	f.ideas = NewIdeaService(IdeaDependencies{
		IdeaRepo:   f.store.Ideas(),
		UpdateRepo: f.store.Updates(),
		UserRepo:   f.store.Users(),
		Dispatcher: f.dispatcher,
		Metrics:    f.metrics,
	})
	f.stats = NewStatsService(StatsDependencies{
		IdeaRepo:   f.store.Ideas(),
		Cache:      statsCache,
		Dispatcher: f.dispatcher,
		Metrics:    f.metrics,
	})
	f.stats.RegisterHandlers()
	f.directory = NewDirectoryService(f.store.Users())

	f.customer = f.addUser(t, "Cara", domain.RoleCustomer)
	f.otherCustomer = f.addUser(t, "Cole", domain.RoleCustomer)
	f.dev = f.addUser(t, "Dev", domain.RoleDeveloper)
	f.otherDev = f.addUser(t, "Eve", domain.RoleDeveloper)
	f.thirdDev = f.addUser(t, "Finn", domain.RoleDeveloper)
	f.owner = f.addUser(t, "Olga", domain.RoleOwner)
	return f
}

func (f *fixture) addUser(t *testing.T, name string, role domain.Role) domain.Identity {
	t.Helper()
	user := &domain.User{Name: name, Email: name + "@example.com", Role: role, PasswordHash: "x"}
	if err := f.store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	return domain.IdentityOf(user)
}

func (f *fixture) createIdea(t *testing.T, title string) *domain.Idea {
	t.Helper()
	idea, err := f.ideas.CreateIdea(context.Background(), f.customer, title, "description of "+title)
	if err != nil {
		t.Fatalf("CreateIdea(%q): %v", title, err)
	}
	return idea
}

func (f *fixture) visibleIDs(t *testing.T, actor domain.Identity) map[string]bool {
	t.Helper()
	ideas, err := f.ideas.ListIdeas(context.Background(), actor, Page{})
	if err != nil {
		t.Fatalf("ListIdeas(%s): %v", actor.Name, err)
	}
	ids := make(map[string]bool, len(ideas))
	for _, idea := range ideas {
		ids[idea.ID] = true
	}
	return ids
}

func (f *fixture) assertStatsMatchList(t *testing.T) {
	t.Helper()
	for _, actor := range []domain.Identity{f.customer, f.otherCustomer, f.dev, f.otherDev, f.thirdDev, f.owner} {
		stats, err := f.stats.ComputeStats(context.Background(), actor)
		if err != nil {
			t.Fatalf("ComputeStats(%s): %v", actor.Name, err)
		}
		ideas, _ := f.ideas.ListIdeas(context.Background(), actor, Page{})
		if stats.Total != len(ideas) {
			t.Fatalf("%s: stats.Total = %d, len(ListIdeas) = %d", actor.Name, stats.Total, len(ideas))
		}
		if stats != domain.Tally(ideas) {
			t.Fatalf("%s: stats %+v do not match list tally %+v", actor.Name, stats, domain.Tally(ideas))
		}
	}
}

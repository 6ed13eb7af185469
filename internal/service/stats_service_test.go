package service

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/spec-kit/idea-service/internal/cache"
	"github.com/spec-kit/idea-service/internal/domain"
	"github.com/spec-kit/idea-service/internal/events"
	apperrors "github.com/spec-kit/idea-service/pkg/util/errorutil"
)

func currentEntry(t *testing.T, f *fixture, scope string) string {
	t.Helper()
	gen, err := f.cache.Generation(context.Background())
	if err != nil {
		t.Fatalf("Generation(): %v", err)
	}
	return cache.EntryKey(gen, scope)
}

func TestComputeStats_CachesPerScope(t *testing.T) {
	f := newFixture(t, withCache())
	ctx := context.Background()
	f.createIdea(t, "a")

	if _, err := f.stats.ComputeStats(ctx, f.customer); err != nil {
		t.Fatal(err)
	}
	customerKey := currentEntry(t, f, cache.ScopeFor(f.customer))
	if !f.redis.Exists(customerKey) {
		t.Fatal("customer stats were not cached")
	}
	if f.redis.Exists(currentEntry(t, f, cache.ScopeFor(f.owner))) {
		t.Fatal("owner entry must not be populated by a customer read")
	}

	// A direct write to the cache is served on the next read.
	if err := f.redis.Set(customerKey, `{"total":9,"pending":9,"in_progress":0,"completed":0}`); err != nil {
		t.Fatal(err)
	}
	stats, _ := f.stats.ComputeStats(ctx, f.customer)
	if stats.Total != 9 {
		t.Fatalf("expected cached value, got %+v", stats)
	}
	if got := testutil.ToFloat64(f.metrics.StatsCacheResults("hit")); got != 1 {
		t.Errorf("hits = %v, want 1", got)
	}
}

func TestComputeStats_InvalidatedByMutations(t *testing.T) {
	f := newFixture(t, withCache())
	ctx := context.Background()
	idea := f.createIdea(t, "a")

	warm := func() {
		for _, actor := range []domain.Identity{f.customer, f.dev, f.owner} {
			if _, err := f.stats.ComputeStats(ctx, actor); err != nil {
				t.Fatal(err)
			}
		}
	}
	warm()
	before, _ := f.cache.Generation(ctx)

	if _, err := f.ideas.Assign(ctx, f.owner, idea.ID, f.dev.UserID); err != nil {
		t.Fatal(err)
	}
	after, _ := f.cache.Generation(ctx)
	if after <= before {
		t.Fatalf("generation %d -> %d, assignment did not invalidate", before, after)
	}
	for _, actor := range []domain.Identity{f.customer, f.dev, f.owner} {
		if f.redis.Exists(cache.EntryKey(after, cache.ScopeFor(actor))) {
			t.Fatalf("%s has an entry in the fresh generation", actor.Name)
		}
	}

	warm()
	dev, _ := f.stats.ComputeStats(ctx, f.dev)
	if dev != (domain.Stats{Total: 1, InProgress: 1}) {
		t.Fatalf("developer stats = %+v", dev)
	}

	// Posting an update does not move counts, so caches stay warm.
	if _, err := f.ideas.PostUpdate(ctx, f.owner, idea.ID, "note"); err != nil {
		t.Fatal(err)
	}
	if gen, _ := f.cache.Generation(ctx); gen != after {
		t.Fatalf("update post moved generation %d -> %d", after, gen)
	}
}

func TestComputeStats_FallsBackWhenRedisFails(t *testing.T) {
	f := newFixture(t, withCache())
	ctx := context.Background()
	f.createIdea(t, "a")

	f.redis.SetError("ERR cache unavailable")
	stats, err := f.stats.ComputeStats(ctx, f.customer)
	if err != nil {
		t.Fatalf("ComputeStats() with broken cache error: %v", err)
	}
	if stats != (domain.Stats{Total: 1, Pending: 1}) {
		t.Fatalf("stats = %+v", stats)
	}

	// Mutations still succeed when invalidation fails.
	if _, err := f.ideas.CreateIdea(ctx, f.customer, "b", "b"); err != nil {
		t.Fatalf("CreateIdea() with broken cache error: %v", err)
	}
	f.redis.SetError("")
}

func TestComputeStats_NoStaleSnapshotAfterFailedInvalidation(t *testing.T) {
	f := newFixture(t, withCache())
	ctx := context.Background()
	f.createIdea(t, "a")

	if stats, _ := f.stats.ComputeStats(ctx, f.customer); stats.Total != 1 {
		t.Fatalf("warm stats = %+v", stats)
	}

	// Redis fails only while the mutation runs.
	f.redis.SetError("ERR blip")
	if _, err := f.ideas.CreateIdea(ctx, f.customer, "b", "b"); err != nil {
		t.Fatalf("CreateIdea(): %v", err)
	}
	f.redis.SetError("")

	stats, err := f.stats.ComputeStats(ctx, f.customer)
	if err != nil {
		t.Fatal(err)
	}
	ideas, _ := f.ideas.ListIdeas(ctx, f.customer, Page{})
	if stats.Total != len(ideas) || stats.Total != 2 {
		t.Fatalf("stats.Total = %d, len(ListIdeas) = %d", stats.Total, len(ideas))
	}

	// The recovered cache is used again.
	if _, err := f.stats.ComputeStats(ctx, f.customer); err != nil {
		t.Fatal(err)
	}
	if got := testutil.ToFloat64(f.metrics.StatsCacheResults("hit")); got != 1 {
		t.Errorf("hits after recovery = %v, want 1", got)
	}
	f.assertStatsMatchList(t)
}

func TestComputeStats_IgnoresEntriesFromBeforeFailedInvalidation(t *testing.T) {
	f := newFixture(t, withCache())
	ctx := context.Background()
	f.createIdea(t, "a")
	gen, _ := f.cache.Generation(ctx)

	f.redis.SetError("ERR blip")
	f.createIdea(t, "b")
	f.redis.SetError("")

	// Simulate an entry that was current before the failed invalidation.
	if err := f.redis.Set(cache.EntryKey(gen, cache.ScopeFor(f.owner)), `{"total":1,"pending":1,"in_progress":0,"completed":0}`); err != nil {
		t.Fatal(err)
	}

	stats, err := f.stats.ComputeStats(ctx, f.owner)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Total != 2 {
		t.Fatalf("owner stats = %+v, stale entry served", stats)
	}
}

func TestComputeStats_InvalidationIgnoresRequestDeadline(t *testing.T) {
	f := newFixture(t, withCache())
	ctx := context.Background()
	f.createIdea(t, "a")
	before, _ := f.cache.Generation(ctx)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	idea := f.createIdea(t, "b")
	if err := f.stats.invalidate(canceled, events.NewEvent(events.EventIdeaCreated, idea, f.customer, nil)); err != nil {
		t.Fatalf("invalidate() with canceled context: %v", err)
	}
	after, _ := f.cache.Generation(ctx)
	if after != before+2 {
		t.Fatalf("generation %d -> %d, want +2", before, after)
	}
}

func TestComputeStats_UnknownRoleForbidden(t *testing.T) {
	f := newFixture(t)
	_, err := f.stats.ComputeStats(context.Background(), domain.Identity{UserID: "x", Role: "auditor"})
	if !apperrors.IsForbidden(err) {
		t.Fatalf("ComputeStats(unknown role) = %v, want Forbidden", err)
	}
}

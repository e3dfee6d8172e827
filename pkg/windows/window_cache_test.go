package windows

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestWindowCacheMemory(t *testing.T) {
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return clock }
	t.Cleanup(func() { now = time.Now })

	cache, err := NewWindowCacheMemory(10, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	taskID := primitive.NewObjectID()
	window := &ApplicationWindow{ID: primitive.NewObjectID(), TaskID: taskID, Status: StatusActive}

	if _, err := cache.Get(ctx, taskID); err == nil {
		t.Fatal("expected a miss on an empty cache")
	}

	_ = cache.Add(ctx, taskID, window)
	window.Status = StatusCancelled

	cached, err := cache.Get(ctx, taskID)
	if err != nil {
		t.Fatal(err)
	}
	if cached.Status != StatusActive {
		t.Error("cache must hold a snapshot, not the caller's pointer")
	}

	clock = clock.Add(5 * time.Second)
	if _, err := cache.Get(ctx, taskID); err == nil {
		t.Error("expected the entry to expire")
	}

	_ = cache.Add(ctx, taskID, window)
	_ = cache.Invalidate(ctx, taskID)
	if _, err := cache.Get(ctx, taskID); err == nil {
		t.Error("expected a miss after invalidation")
	}
}

func TestWindowCacheRedis(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	cache := NewWindowCacheRedis(client, time.Minute)

	ctx := context.Background()
	taskID := primitive.NewObjectID()
	end := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	window := &ApplicationWindow{
		ID:              primitive.NewObjectID(),
		TaskID:          taskID,
		WindowEnd:       end,
		ExtensionsCount: 1,
		Status:          StatusCompleted,
		Resolution:      &Resolution{WorkerID: primitive.NewObjectID(), Finalized: true},
	}

	if err := cache.Add(ctx, taskID, window); err != nil {
		t.Fatal(err)
	}

	cached, err := cache.Get(ctx, taskID)
	if err != nil {
		t.Fatal(err)
	}
	if cached.ID != window.ID || !cached.WindowEnd.Equal(end) || cached.Resolution == nil || cached.Resolution.WorkerID != window.Resolution.WorkerID {
		t.Errorf("unexpected cached window %+v", cached)
	}

	if err := cache.Invalidate(ctx, taskID); err != nil {
		t.Fatal(err)
	}
	if err := cache.Invalidate(ctx, taskID); err != nil {
		t.Errorf("invalidating a missing entry must not fail: %v", err)
	}
	if _, err := cache.Get(ctx, taskID); err == nil {
		t.Error("expected a miss after invalidation")
	}
}

func TestStatusReader_CachesUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cache, err := NewWindowCacheMemory(10, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	f.engine.Cache = cache
	reader := &StatusReader{Windows: f.windows, Cache: cache, Logger: f.engine.Logger}

	task, _ := f.open(t, 10, 1)

	view, err := reader.View(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.Phase != PhaseActive || view.Countdown.SecondsLeft != 600 || !view.CanExtend {
		t.Errorf("unexpected view %+v", view)
	}

	if _, err := f.engine.ExtendWindow(ctx, task.ID); err != nil {
		t.Fatal(err)
	}

	view, err = reader.View(ctx, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if view.ExtensionsCount != 1 || view.CanExtend {
		t.Errorf("extension not visible, cache wasn't invalidated: %+v", view)
	}
}

func TestWindowCache_StaleFillAfterInvalidationIsDropped(t *testing.T) {
	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	now = func() time.Time { return clock }
	t.Cleanup(func() { now = time.Now })

	memory, err := NewWindowCacheMemory(10, 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	server := miniredis.RunT(t)
	shared := NewWindowCacheRedis(redis.NewClient(&redis.Options{Addr: server.Addr()}), 5*time.Second)

	caches := []struct {
		name   string
		cache  WindowCacheInterface
		expire func()
	}{
		{"memory", memory, func() { clock = clock.Add(5 * time.Second) }},
		{"redis", shared, func() { server.FastForward(5 * time.Second) }},
	}

	for _, c := range caches {
		t.Run(c.name, func(t *testing.T) {
			ctx := context.Background()
			taskID := primitive.NewObjectID()
			stale := &ApplicationWindow{ID: primitive.NewObjectID(), TaskID: taskID, Status: StatusActive}

			// a reader loaded the window, then the engine wrote and invalidated before the reader filled the cache
			if err := c.cache.Invalidate(ctx, taskID); err != nil {
				t.Fatal(err)
			}
			if err := c.cache.Add(ctx, taskID, stale); err != nil {
				t.Fatal(err)
			}
			if _, err := c.cache.Get(ctx, taskID); err == nil {
				t.Fatal("window loaded before the invalidation was cached")
			}

			c.expire()

			fresh := &ApplicationWindow{ID: stale.ID, TaskID: taskID, Status: StatusCancelled}
			if err := c.cache.Add(ctx, taskID, fresh); err != nil {
				t.Fatal(err)
			}
			cached, err := c.cache.Get(ctx, taskID)
			if err != nil {
				t.Fatal(err)
			}
			if cached.Status != StatusCancelled {
				t.Errorf("unexpected cached window %+v", cached)
			}

			// a later write still replaces the entry
			if err := c.cache.Invalidate(ctx, taskID); err != nil {
				t.Fatal(err)
			}
			if _, err := c.cache.Get(ctx, taskID); err == nil {
				t.Error("expected a miss after invalidation")
			}
		})
	}
}

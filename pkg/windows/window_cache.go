package windows

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WindowCacheInterface caches the latest window of a task for pollers.
// Invalidate leaves a marker for one TTL and Add never replaces a live entry,
// so a reader that loaded the window before a write can't cache the old state.
type WindowCacheInterface interface {
	// Add stores the window unless the key holds an entry or an invalidation marker
	Add(ctx context.Context, taskID primitive.ObjectID, window *ApplicationWindow) error
	Invalidate(ctx context.Context, taskID primitive.ObjectID) error
	Get(ctx context.Context, taskID primitive.ObjectID) (*ApplicationWindow, error)
}

func cacheKey(taskID primitive.ObjectID) string {
	return "window:" + taskID.Hex()
}

// windowCacheEntry without a window marks an invalidation
type windowCacheEntry struct {
	window  *ApplicationWindow
	expires time.Time
}

// WindowCacheMemory is a process local WindowCacheInterface
type WindowCacheMemory struct {
	Cache *lru.Cache
	TTL   time.Duration

	mutex sync.Mutex
}

// NewWindowCacheMemory initializes a new WindowCacheMemory
func NewWindowCacheMemory(size int, ttl time.Duration) (*WindowCacheMemory, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, err
	}

	return &WindowCacheMemory{
		Cache: cache,
		TTL:   ttl,
	}, nil
}

func (c *WindowCacheMemory) live(key string) (*windowCacheEntry, bool) {
	result, ok := c.Cache.Peek(key)
	if !ok {
		return nil, false
	}

	entry, ok := result.(*windowCacheEntry)
	if !ok || !now().Before(entry.expires) {
		c.Cache.Remove(key)
		return nil, false
	}

	return entry, true
}

// Add adds a window to the cache
func (c *WindowCacheMemory) Add(_ context.Context, taskID primitive.ObjectID, window *ApplicationWindow) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := cacheKey(taskID)
	if _, ok := c.live(key); ok {
		return nil
	}

	snapshot := *window
	_ = c.Cache.Add(key, &windowCacheEntry{window: &snapshot, expires: now().Add(c.TTL)})
	return nil
}

// Invalidate replaces a cached window with an invalidation marker
func (c *WindowCacheMemory) Invalidate(_ context.Context, taskID primitive.ObjectID) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_ = c.Cache.Add(cacheKey(taskID), &windowCacheEntry{expires: now().Add(c.TTL)})
	return nil
}

// Get retrieves a window from the cache
func (c *WindowCacheMemory) Get(_ context.Context, taskID primitive.ObjectID) (*ApplicationWindow, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	key := cacheKey(taskID)
	entry, ok := c.live(key)
	if !ok {
		return nil, fmt.Errorf("could not find key %s in window cache", key)
	}
	if entry.window == nil {
		return nil, fmt.Errorf("window cache entry %s was invalidated", key)
	}

	window := *entry.window
	return &window, nil
}

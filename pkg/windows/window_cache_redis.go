package windows

import (
	"context"
	"time"

	"github.com/go-redis/cache/v8"
	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WindowCacheRedis is a WindowCacheInterface shared by all instances
type WindowCacheRedis struct {
	Cache *cache.Cache
	TTL   time.Duration
}

// NewWindowCacheRedis initializes a new WindowCacheRedis
func NewWindowCacheRedis(redisClient *redis.Client, ttl time.Duration) *WindowCacheRedis {
	redisCache := cache.New(&cache.Options{
		Redis: redisClient,
	})

	return &WindowCacheRedis{
		Cache: redisCache,
		TTL:   ttl,
	}
}

// cachedWindow without a window marks an invalidation
type cachedWindow struct {
	Window *ApplicationWindow
}

// Add adds a window unless the key is taken
func (c *WindowCacheRedis) Add(ctx context.Context, taskID primitive.ObjectID, window *ApplicationWindow) error {
	return c.Cache.Set(&cache.Item{
		Ctx:            ctx,
		Key:            cacheKey(taskID),
		Value:          &cachedWindow{Window: window},
		TTL:            c.TTL,
		SetNX:          true,
		SkipLocalCache: true,
	})
}

// Invalidate overwrites a window with an invalidation marker
func (c *WindowCacheRedis) Invalidate(ctx context.Context, taskID primitive.ObjectID) error {
	return c.Cache.Set(&cache.Item{
		Ctx:            ctx,
		Key:            cacheKey(taskID),
		Value:          &cachedWindow{},
		TTL:            c.TTL,
		SkipLocalCache: true,
	})
}

// Get retrieves a window
func (c *WindowCacheRedis) Get(ctx context.Context, taskID primitive.ObjectID) (*ApplicationWindow, error) {
	result := cachedWindow{}
	err := c.Cache.Get(ctx, cacheKey(taskID), &result)
	if err != nil {
		return nil, err
	}
	if result.Window == nil {
		return nil, cache.ErrCacheMiss
	}

	return result.Window, nil
}

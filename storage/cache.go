package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
)

type backend interface {
	ListTasks(ctx context.Context, owner, search string) ([]domain.Task, error)
	InsertTask(ctx context.Context, owner string, t domain.Task) (domain.Task, error)
	UpdateTask(ctx context.Context, owner, id string, patch domain.TaskPatch, updatedAt time.Time) (domain.Task, error)
	DeleteTask(ctx context.Context, owner, id string) error
	DeleteOwnerTasks(ctx context.Context, owner string) (int, error)
	GetTheme(ctx context.Context, userID string) (domain.Theme, error)
	SaveTheme(ctx context.Context, userID string, theme domain.Theme) error
}

// Cache wraps a task and settings backend with Redis-backed caching for reads.
// Only unsearched task lists are cached; every write evicts the owner's entries.
type Cache struct {
	base  backend
	redis *redis.Client
	ttl   time.Duration
}

// NewCache creates a caching wrapper using the provided Redis client and TTL.
func NewCache(base backend, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("storage.NewCache: base storage is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) ListTasks(ctx context.Context, owner, search string) ([]domain.Task, error) {
	if search != "" {
		return c.base.ListTasks(ctx, owner, search)
	}
	if tasks, ok := c.loadTasksFromCache(ctx, owner); ok {
		return tasks, nil
	}

	tasks, err := c.base.ListTasks(ctx, owner, "")
	if err != nil {
		return nil, err
	}

	c.store(ctx, tasksCacheKey(owner), tasks)
	return tasks, nil
}

func (c *Cache) InsertTask(ctx context.Context, owner string, t domain.Task) (domain.Task, error) {
	created, err := c.base.InsertTask(ctx, owner, t)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, tasksCacheKey(owner))
	return created, nil
}

func (c *Cache) UpdateTask(ctx context.Context, owner, id string, patch domain.TaskPatch, updatedAt time.Time) (domain.Task, error) {
	updated, err := c.base.UpdateTask(ctx, owner, id, patch, updatedAt)
	if err != nil {
		return domain.Task{}, err
	}
	c.evict(ctx, tasksCacheKey(owner))
	return updated, nil
}

func (c *Cache) DeleteTask(ctx context.Context, owner, id string) error {
	if err := c.base.DeleteTask(ctx, owner, id); err != nil {
		return err
	}
	c.evict(ctx, tasksCacheKey(owner))
	return nil
}

func (c *Cache) DeleteOwnerTasks(ctx context.Context, owner string) (int, error) {
	n, err := c.base.DeleteOwnerTasks(ctx, owner)
	// Partial batches may have succeeded.
	c.evict(ctx, tasksCacheKey(owner))
	return n, err
}

func (c *Cache) GetTheme(ctx context.Context, userID string) (domain.Theme, error) {
	var theme domain.Theme
	if c.load(ctx, settingsCacheKey(userID), &theme) {
		return theme, nil
	}
	theme, err := c.base.GetTheme(ctx, userID)
	if err != nil {
		return "", err
	}
	c.store(ctx, settingsCacheKey(userID), theme)
	return theme, nil
}

func (c *Cache) SaveTheme(ctx context.Context, userID string, theme domain.Theme) error {
	if err := c.base.SaveTheme(ctx, userID, theme); err != nil {
		return err
	}
	c.evict(ctx, settingsCacheKey(userID))
	return nil
}

func (c *Cache) loadTasksFromCache(ctx context.Context, owner string) ([]domain.Task, bool) {
	var tasks []domain.Task
	if !c.load(ctx, tasksCacheKey(owner), &tasks) {
		return nil, false
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, true
}

func (c *Cache) load(ctx context.Context, key string, v any) bool {
	if c.redis == nil {
		return false
	}
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			// On redis errors fall back to the backing storage without failing.
			log.WithError(err).WithField("key", key).Warn("cache read failed")
			_ = c.redis.Del(ctx, key).Err()
		}
		return false
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return false
	}
	return true
}

func (c *Cache) store(ctx context.Context, key string, v any) {
	if c.redis == nil || c.ttl == 0 {
		return
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

func (c *Cache) evict(ctx context.Context, keys ...string) {
	if c.redis == nil {
		return
	}
	_, _ = c.redis.Del(ctx, keys...).Result()
}

func tasksCacheKey(owner string) string {
	return "tasks:" + owner
}

func settingsCacheKey(userID string) string {
	return "settings:" + userID
}

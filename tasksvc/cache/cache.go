// Package cache adds a Redis read-through cache in front of a task repository.
package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/ichigozero/todokit/tasksvc"
	"github.com/redis/go-redis/v9"
)

const generationKey = "tasks:gen"

// Cache serves listings from Redis and invalidates every cached listing on
// any mutation by bumping a generation counter that is part of each key.
type Cache struct {
	base  tasksvc.TaskRepository
	redis *redis.Client
	ttl   time.Duration
}

var _ tasksvc.TaskRepository = (*Cache)(nil)

func New(base tasksvc.TaskRepository, client *redis.Client, ttl time.Duration) *Cache {
	if base == nil {
		panic("cache.New: base repository is nil")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{base: base, redis: client, ttl: ttl}
}

func (c *Cache) FindAll(ctx context.Context, f tasksvc.Filter) ([]tasksvc.Task, error) {
	gen, ok := c.generation(ctx)
	if ok {
		if tasks, hit := c.load(ctx, listKey(gen, f)); hit {
			return tasks, nil
		}
	}

	tasks, err := c.base.FindAll(ctx, f)
	if err != nil {
		return nil, err
	}

	if ok {
		c.store(ctx, listKey(gen, f), tasks)
	}
	return tasks, nil
}

func (c *Cache) Find(ctx context.Context, customID int64) (tasksvc.Task, error) {
	return c.base.Find(ctx, customID)
}

func (c *Cache) Create(ctx context.Context, title string) (tasksvc.Task, error) {
	task, err := c.base.Create(ctx, title)
	if err != nil {
		return tasksvc.Task{}, err
	}
	c.invalidate(ctx)
	return task, nil
}

func (c *Cache) Update(ctx context.Context, customID int64, p tasksvc.Patch) (tasksvc.Task, error) {
	task, err := c.base.Update(ctx, customID, p)
	if err != nil {
		return tasksvc.Task{}, err
	}
	c.invalidate(ctx)
	return task, nil
}

func (c *Cache) Toggle(ctx context.Context, customID int64) (tasksvc.Task, error) {
	task, err := c.base.Toggle(ctx, customID)
	if err != nil {
		return tasksvc.Task{}, err
	}
	c.invalidate(ctx)
	return task, nil
}

func (c *Cache) Delete(ctx context.Context, customID int64) error {
	if err := c.base.Delete(ctx, customID); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// generation reports the current listing generation. ok is false when Redis
// is unavailable, in which case the cache is bypassed.
func (c *Cache) generation(ctx context.Context) (gen int64, ok bool) {
	if c.redis == nil || c.ttl == 0 {
		return 0, false
	}
	gen, err := c.redis.Get(ctx, generationKey).Int64()
	if err == redis.Nil {
		return 0, true
	}
	if err != nil {
		return 0, false
	}
	return gen, true
}

func (c *Cache) load(ctx context.Context, key string) ([]tasksvc.Task, bool) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var tasks []tasksvc.Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		_ = c.redis.Del(ctx, key).Err()
		return nil, false
	}
	return tasks, true
}

func (c *Cache) store(ctx context.Context, key string, tasks []tasksvc.Task) {
	data, err := json.Marshal(tasks)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}

func (c *Cache) invalidate(ctx context.Context) {
	if c.redis == nil {
		return
	}
	_ = c.redis.Incr(ctx, generationKey).Err()
}

func listKey(gen int64, f tasksvc.Filter) string {
	return "tasks:" + strconv.FormatInt(gen, 10) + ":" + f.Key()
}

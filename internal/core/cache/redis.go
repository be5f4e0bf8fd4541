package cache

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

var lookups = prometheus.NewCounterVec(
	prometheus.CounterOpts{Name: "cache_lookups_total", Help: "Read-through cache lookups by result"},
	[]string{"result"},
)

func init() { prometheus.MustRegister(lookups) }

// Cache 读穿缓存；c 为 nil 或未配置 redis 时直接回源
type Cache struct {
	RDB *redis.Client
	sf  singleflight.Group
}

func NewWithClient(rdb *redis.Client) *Cache { return &Cache{RDB: rdb} }

func (c *Cache) enabled() bool { return c != nil && c.RDB != nil }

func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	if !c.enabled() {
		return load(ctx)
	}
	if b, err := c.RDB.Get(ctx, key).Bytes(); err == nil {
		lookups.WithLabelValues("hit").Inc()
		return b, nil
	}
	lookups.WithLabelValues("miss").Inc()
	// 同一个 key 并发未命中只回源一次
	v, err, _ := c.sf.Do(key, func() (any, error) {
		b, e := load(ctx)
		if e != nil {
			return nil, e
		}
		// 写缓存失败只影响下一次命中
		_ = c.RDB.Set(ctx, key, b, ttl).Err()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Invalidate 删除缓存键；写操作之后调用
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if !c.enabled() || len(keys) == 0 {
		return nil
	}
	return c.RDB.Del(ctx, keys...).Err()
}

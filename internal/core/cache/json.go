package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Remember 读穿缓存的 JSON 版本：命中则解码，未命中调用 load 并写回。
// 缓存内容无法解码时视为未命中，删除后重新回源。
func Remember[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var zero T
	encode := func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}

	b, err := c.GetOrLoad(ctx, key, ttl, encode)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(b, &out); err == nil {
		return out, nil
	}

	_ = c.Invalidate(ctx, key)
	if b, err = c.GetOrLoad(ctx, key, ttl, encode); err != nil {
		return zero, err
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return zero, err
	}
	return out, nil
}

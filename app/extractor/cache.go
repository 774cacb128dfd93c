package extractor

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cached 在有效期内复用成功的提取结果，串行和并行两条路径处理同一列表时不会重复请求
type Cached struct {
	next  Extractor
	cache *cache.Cache
}

// NewCached 创建带缓存的提取器，清理间隔为有效期的两倍
func NewCached(next Extractor, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *Cached) Extract(ctx context.Context, id string) (map[string]any, error) {
	if v, ok := c.cache.Get(id); ok {
		return cloneInfo(v.(map[string]any)), nil
	}

	info, err := c.next.Extract(ctx, id)
	if err != nil {
		return nil, err
	}

	c.cache.Set(id, cloneInfo(info), cache.DefaultExpiration)
	return info, nil
}

// Close 清空缓存并关闭被包装的提取器
func (c *Cached) Close() error {
	c.cache.Flush()
	return Close(c.next)
}

func cloneInfo(info map[string]any) map[string]any {
	out := make(map[string]any, len(info))
	for k, v := range info {
		out[k] = v
	}
	return out
}

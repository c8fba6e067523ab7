// Package registry 缓存当前生效的打分参数与分类规则，过期后由首个读取者重新加载
package registry

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Observer 缓存命中/加载的观测钩子，可为 nil
type Observer interface {
	CacheHit(registry string)
	CacheMiss(registry string)
	Reloaded(registry string, err error)
	MalformedRules(registry string, n int)
}

type noopObserver struct{}

func (noopObserver) CacheHit(string)            {}
func (noopObserver) CacheMiss(string)           {}
func (noopObserver) Reloaded(string, error)     {}
func (noopObserver) MalformedRules(string, int) {}

type cacheEntry[T any] struct {
	value    T
	loadedAt time.Time
}

// ttlCache 读路径只有一次原子 Load；并发的过期读取通过 singleflight 合并为一次加载。
// 加载失败不写入缓存，旧值也不再返回。
// generation 在每次 invalidate 时递增，加载期间发生过 invalidate 的结果不写入缓存。
type ttlCache[T any] struct {
	name     string
	ttl      time.Duration
	now      func() time.Time
	load     func(ctx context.Context) (T, error)
	observer Observer

	current    atomic.Pointer[cacheEntry[T]]
	generation atomic.Uint64
	group      singleflight.Group
}

func newTTLCache[T any](name string, ttl time.Duration, now func() time.Time, observer Observer,
	load func(ctx context.Context) (T, error)) *ttlCache[T] {
	if now == nil {
		now = time.Now
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &ttlCache[T]{name: name, ttl: ttl, now: now, load: load, observer: observer}
}

func (c *ttlCache[T]) fresh() (T, bool) {
	e := c.current.Load()
	if e == nil || c.now().Sub(e.loadedAt) >= c.ttl {
		var zero T
		return zero, false
	}
	return e.value, true
}

func (c *ttlCache[T]) get(ctx context.Context) (T, error) {
	if v, ok := c.fresh(); ok {
		c.observer.CacheHit(c.name)
		return v, nil
	}
	c.observer.CacheMiss(c.name)

	for {
		gen := c.generation.Load()
		v, err, _ := c.group.Do(c.groupKey(gen), func() (interface{}, error) {
			if v, ok := c.fresh(); ok {
				return v, nil
			}
			val, err := c.load(ctx)
			c.observer.Reloaded(c.name, err)
			if err != nil {
				return nil, err
			}
			entry := &cacheEntry[T]{value: val, loadedAt: c.now()}
			if c.generation.Load() == gen {
				c.current.Store(entry)
				// Store 与 invalidate 交错时撤回这次写入
				if c.generation.Load() != gen {
					c.current.CompareAndSwap(entry, nil)
				}
			}
			return val, nil
		})
		if err != nil {
			var zero T
			return zero, err
		}
		// 加载期间配置被改过，这次读到的可能是旧数据，重新加载
		if c.generation.Load() != gen {
			continue
		}
		return v.(T), nil
	}
}

// groupKey 不同 generation 的加载不合并
func (c *ttlCache[T]) groupKey(gen uint64) string {
	return c.name + "#" + strconv.FormatUint(gen, 10)
}

func (c *ttlCache[T]) invalidate() {
	c.generation.Add(1)
	c.current.Store(nil)
}

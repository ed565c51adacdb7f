package matcher

import (
	"context"
	"fmt"
	"time"

	"ChannelSync/internal/interfaces"
	"ChannelSync/internal/model"

	"github.com/patrickmn/go-cache"
)

// CachedSchedule 赛程源的 TTL 缓存，赛程独立于生成任务刷新
type CachedSchedule struct {
	inner interfaces.ScheduleProvider
	cache *cache.Cache
}

func NewCachedSchedule(inner interfaces.ScheduleProvider, ttl time.Duration) *CachedSchedule {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CachedSchedule{inner: inner, cache: cache.New(ttl, ttl*2)}
}

func (c *CachedSchedule) GetName() string { return c.inner.GetName() }

// Flush 清空赛程缓存
func (c *CachedSchedule) Flush() { c.cache.Flush() }

func (c *CachedSchedule) Events(ctx context.Context, league string, from, to time.Time) ([]model.MatchedEvent, error) {
	// 窗口按小时取整，避免每次运行都生成新 key
	key := fmt.Sprintf("events:%s:%d:%d", league, from.Truncate(time.Hour).Unix(), to.Truncate(time.Hour).Unix())
	if v, ok := c.cache.Get(key); ok {
		if events, ok := v.([]model.MatchedEvent); ok {
			return events, nil
		}
	}
	events, err := c.inner.Events(ctx, league, from.Truncate(time.Hour), to.Truncate(time.Hour).Add(time.Hour))
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, events, cache.DefaultExpiration)
	return events, nil
}

func (c *CachedSchedule) TeamLeagues(ctx context.Context, team string) ([]string, error) {
	key := "team:" + team
	if v, ok := c.cache.Get(key); ok {
		if ls, ok := v.([]string); ok {
			return ls, nil
		}
	}
	ls, err := c.inner.TeamLeagues(ctx, team)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, ls, cache.DefaultExpiration)
	return ls, nil
}

func (c *CachedSchedule) SoccerLeagues(ctx context.Context) ([]string, error) {
	if v, ok := c.cache.Get("soccer"); ok {
		if ls, ok := v.([]string); ok {
			return ls, nil
		}
	}
	ls, err := c.inner.SoccerLeagues(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set("soccer", ls, cache.DefaultExpiration)
	return ls, nil
}

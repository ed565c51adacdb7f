// Package matcher 把候选流解析为赛程源中的具体赛事
package matcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"ChannelSync/internal/extraction"
	"ChannelSync/internal/interfaces"
	"ChannelSync/internal/model"
	"ChannelSync/internal/runconfig"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// 无日期标记时的搜索窗口
const (
	lookBehind = 12 * time.Hour
	lookAhead  = 7 * 24 * time.Hour
)

// MatchError 赛程查询失败，流被标记为 lookup_failed，运行继续
type MatchError struct {
	StreamID uint64
	League   string
	Err      error
}

func (e *MatchError) Error() string {
	return fmt.Sprintf("流%d查询联赛%s赛程失败: %v", e.StreamID, e.League, e.Err)
}

func (e *MatchError) Unwrap() error { return e.Err }

// Stats 匹配缓存命中统计
type Stats struct {
	Hits   int64
	Misses int64
}

// Matcher 基于赛程源的参考匹配器，结果按流指纹缓存
type Matcher struct {
	schedule interfaces.ScheduleProvider
	cache    *cache.Cache
	logger   *logrus.Logger
	now      func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

func NewMatcher(schedule interfaces.ScheduleProvider, ttl time.Duration, logger *logrus.Logger) *Matcher {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Matcher{
		schedule: schedule,
		cache:    cache.New(ttl, ttl*2),
		logger:   logger,
		now:      time.Now,
	}
}

// Flush 清空匹配缓存
func (m *Matcher) Flush() {
	m.cache.Flush()
}

// Stats 累计命中/未命中次数
func (m *Matcher) Stats() Stats {
	return Stats{Hits: m.hits.Load(), Misses: m.misses.Load()}
}

// Fingerprint 流指纹：组、规范化流名、联赛列表和配置代次
func Fingerprint(cfg runconfig.RunConfig, group runconfig.ResolvedGroupConfig, name string) string {
	leagues := append([]string(nil), group.Leagues...)
	sort.Strings(leagues)
	raw := fmt.Sprintf("%d|%s|%s|%s", group.ID, extraction.Normalize(name), strings.Join(leagues, ","), cfg.Generation)
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Match 提取标记 -> 球队过滤 -> 确定联赛 -> 查询赛程 -> 按参赛方匹配
func (m *Matcher) Match(ctx context.Context, cfg runconfig.RunConfig, group runconfig.ResolvedGroupConfig, c model.StreamCandidate) (model.MatchResult, error) {
	key := Fingerprint(cfg, group, c.Name)
	if cached, found := m.cache.Get(key); found {
		if res, ok := cached.(model.MatchResult); ok {
			m.hits.Add(1)
			return res, nil
		}
	}
	m.misses.Add(1)

	res, err := m.match(ctx, cfg, group, c)
	if err != nil {
		// 查询失败不缓存，下一轮重试
		return model.MatchResult{ExclusionReason: model.ReasonLookupFailed}, err
	}
	m.cache.Set(key, res, cache.DefaultExpiration)
	return res, nil
}

func (m *Matcher) match(ctx context.Context, cfg runconfig.RunConfig, group runconfig.ResolvedGroupConfig, c model.StreamCandidate) (model.MatchResult, error) {
	tokens := cfg.Patterns.For(group.ID).Extract(c.Name)
	side1, side2 := tokens.Team1, tokens.Team2
	if !tokens.HasTeams() {
		side1, side2 = tokens.Fighter1, tokens.Fighter2
	}
	if side1 == "" || side2 == "" {
		return model.MatchResult{ExclusionReason: model.ReasonNoTeams}, nil
	}
	if !passesTeamFilter(group, side1, side2) {
		return model.MatchResult{ExclusionReason: model.ReasonTeamFiltered}, nil
	}

	leagues, err := m.leaguesFor(ctx, group, tokens.League, side1, side2)
	if err != nil {
		return model.MatchResult{}, &MatchError{StreamID: c.StreamID, Err: err}
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := m.now()
	from, to := now.Add(-lookBehind), now.Add(lookAhead)
	if day, ok := extraction.ParseDate(tokens.Date, now.In(loc)); ok {
		from = extraction.StartOfDay(day, loc)
		to = from.AddDate(0, 0, 1)
	}

	for _, league := range leagues {
		events, err := m.schedule.Events(ctx, league, from, to)
		if err != nil {
			return model.MatchResult{}, &MatchError{StreamID: c.StreamID, League: league, Err: err}
		}
		ev := pickEvent(events, side1, side2, now)
		if ev == nil {
			continue
		}
		if ev.EndTime.IsZero() {
			ev.EndTime = ev.StartTime.Add(3 * time.Hour)
		}
		if ev.Status == model.EventFinal {
			return model.MatchResult{Event: ev, League: league, ExclusionReason: model.ReasonEventFinal}, nil
		}
		if ev.League == "" {
			ev.League = league
		}
		return model.MatchResult{Event: ev, League: league}, nil
	}
	return model.MatchResult{ExclusionReason: model.ReasonNoEvent}, nil
}

// passesTeamFilter include 模式只放行名单内球队参与的比赛，exclude 模式排除名单内球队
func passesTeamFilter(group runconfig.ResolvedGroupConfig, a, b string) bool {
	anyListed := func(list []string) bool {
		for _, t := range list {
			if extraction.SameTeam(t, a) || extraction.SameTeam(t, b) {
				return true
			}
		}
		return false
	}
	if group.TeamFilterMode == model.TeamFilterExclude {
		return len(group.ExcludeTeams) == 0 || !anyListed(group.ExcludeTeams)
	}
	return len(group.IncludeTeams) == 0 || anyListed(group.IncludeTeams)
}

// leaguesFor 组联赛 + soccer_mode 扩展，流名自带联赛标签时优先查询该联赛
func (m *Matcher) leaguesFor(ctx context.Context, group runconfig.ResolvedGroupConfig, hint, a, b string) ([]string, error) {
	var out []string
	seen := map[string]struct{}{}
	add := func(ls ...string) {
		for _, l := range ls {
			k := strings.ToLower(strings.TrimSpace(l))
			if k == "" {
				continue
			}
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	add(group.Leagues...)

	switch group.SoccerMode {
	case model.SoccerAll:
		ls, err := m.schedule.SoccerLeagues(ctx)
		if err != nil {
			return nil, err
		}
		add(ls...)
	case model.SoccerTeams:
		for _, team := range []string{a, b} {
			ls, err := m.schedule.TeamLeagues(ctx, team)
			if err != nil {
				return nil, err
			}
			add(ls...)
		}
	}

	if h := strings.ToLower(strings.TrimSpace(hint)); h != "" {
		for i, l := range out {
			if l == h {
				out[0], out[i] = out[i], out[0]
				break
			}
		}
	}
	return out, nil
}

// pickEvent 参赛方两边都对得上的赛事；多场时取开赛时间离 now 最近的一场
func pickEvent(events []model.MatchedEvent, a, b string, now time.Time) *model.MatchedEvent {
	var best *model.MatchedEvent
	var bestDiff time.Duration
	for i := range events {
		e := events[i]
		if !involves(e.Participants, a) || !involves(e.Participants, b) {
			continue
		}
		diff := e.StartTime.Sub(now)
		if diff < 0 {
			diff = -diff
		}
		if best == nil || diff < bestDiff || (diff == bestDiff && e.EventID < best.EventID) {
			cp := e
			best, bestDiff = &cp, diff
		}
	}
	return best
}

func involves(participants []string, team string) bool {
	for _, p := range participants {
		if extraction.SameTeam(p, team) {
			return true
		}
	}
	return false
}

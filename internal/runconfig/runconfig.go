// Package runconfig 在每次生成任务开始时把数据库中的设置冻结为不可变快照。
// 之后的各个阶段只读 RunConfig，设置接口的修改只影响下一次运行。
package runconfig

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"ChannelSync/internal/extraction"
	"ChannelSync/internal/model"
)

// Snapshot 运行开始时从存储读出的原始设置
type Snapshot struct {
	Groups            []model.EventGroup
	Numbering         model.ChannelNumberingSettings
	Lifecycle         model.LifecycleSettings
	ExceptionKeywords []model.ExceptionKeyword
	SortPriorities    []model.SortPriority
}

// ResolvedGroupConfig 已合并继承字段的赛事组配置。子组的模板/频道组/编号等取自父组，
// 下游阶段不再需要回查父组。
type ResolvedGroupConfig struct {
	ID          uint64
	Name        string
	DisplayName string
	ParentID    *uint64

	SourceGroup       string
	Leagues           []string
	GroupMode         model.GroupMode
	Patterns          model.ExtractionPatterns
	SkipBuiltinFilter bool
	Enabled           bool

	TemplateID         *uint64
	ChannelGroupID     *uint64
	ChannelProfileIDs  []uint64
	AssignmentMode     model.AssignmentMode
	ChannelStartNumber *int
	MaxChannels        *int
	DuplicateHandling  model.DuplicateHandling
	OverlapHandling    model.OverlapHandling
	SortOrder          int

	IncludeTeams   []string
	ExcludeTeams   []string
	TeamFilterMode model.TeamFilterMode
	SoccerMode     model.SoccerMode
}

// IsChild 是否为子组
func (g ResolvedGroupConfig) IsChild() bool { return g.ParentID != nil }

// Label 频道命名用的组名
func (g ResolvedGroupConfig) Label() string {
	if g.DisplayName != "" {
		return g.DisplayName
	}
	return g.Name
}

// SortRanks sport/league 的排序名次，未登记的排在最后
type SortRanks struct {
	Sport  map[string]int
	League map[string]int
}

// Unranked 未登记 key 的名次
const Unranked = 1 << 30

// SportRank 查询运动名次
func (r SortRanks) SportRank(sport string) int {
	if v, ok := r.Sport[strings.ToLower(sport)]; ok {
		return v
	}
	return Unranked
}

// LeagueRank 查询联赛名次
func (r SortRanks) LeagueRank(league string) int {
	if v, ok := r.League[strings.ToLower(league)]; ok {
		return v
	}
	return Unranked
}

// RunConfig 单次运行的不可变配置快照，按值在各阶段间传递
type RunConfig struct {
	Generation string // 配置指纹，变化时匹配缓存失效
	CapturedAt time.Time

	// Groups 全部可参与运行的组（含子组），按 sort_order、id 排序
	Groups            []ResolvedGroupConfig
	Numbering         model.ChannelNumberingSettings
	CreateTiming      Timing
	DeleteTiming      Timing
	Location          *time.Location
	ExceptionKeywords []model.ExceptionKeyword // 仅启用的，按 priority、id 排序
	Ranks             SortRanks
	Patterns          extraction.Table

	// Warnings 构建快照时发现的非致命问题（如子组引用了被禁用的父组）
	Warnings []string
}

// Group 按 id 查找
func (c RunConfig) Group(id uint64) (ResolvedGroupConfig, bool) {
	for _, g := range c.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return ResolvedGroupConfig{}, false
}

// TopLevel 启用的顶层组，按优先级排列
func (c RunConfig) TopLevel() []ResolvedGroupConfig {
	out := make([]ResolvedGroupConfig, 0, len(c.Groups))
	for _, g := range c.Groups {
		if !g.IsChild() && g.Enabled {
			out = append(out, g)
		}
	}
	return out
}

// Children 某父组下启用的子组
func (c RunConfig) Children(parentID uint64) []ResolvedGroupConfig {
	var out []ResolvedGroupConfig
	for _, g := range c.Groups {
		if g.ParentID != nil && *g.ParentID == parentID && g.Enabled {
			out = append(out, g)
		}
	}
	return out
}

// Active 本次运行需要分类/匹配的组：启用的顶层组 + 父组有效的启用子组
func (c RunConfig) Active() []ResolvedGroupConfig {
	out := c.TopLevel()
	for _, g := range c.Groups {
		if g.IsChild() && g.Enabled {
			out = append(out, g)
		}
	}
	return out
}

// Build 校验并冻结快照。数值/时机/正则错误返回 *ConfigError，
// 层级问题（父组缺失、被禁用、嵌套）只让子组失效并记录告警。
func Build(s Snapshot, now time.Time) (RunConfig, error) {
	numbering := NormalizeNumbering(s.Numbering)
	if err := ValidateNumbering(numbering); err != nil {
		return RunConfig{}, err
	}
	createTiming, err := ParseCreateTiming(s.Lifecycle.CreateTiming)
	if err != nil {
		return RunConfig{}, err
	}
	deleteTiming, err := ParseDeleteTiming(s.Lifecycle.DeleteTiming)
	if err != nil {
		return RunConfig{}, err
	}
	loc, err := LoadLocation(s.Lifecycle.Timezone)
	if err != nil {
		return RunConfig{}, err
	}

	cfg := RunConfig{
		CapturedAt:   now,
		Numbering:    numbering,
		CreateTiming: createTiming,
		DeleteTiming: deleteTiming,
		Location:     loc,
		Patterns:     make(extraction.Table, len(s.Groups)),
		Ranks:        buildRanks(s.SortPriorities),
	}

	byID := make(map[uint64]model.EventGroup, len(s.Groups))
	for _, g := range s.Groups {
		byID[g.ID] = g
	}

	groups := append([]model.EventGroup(nil), s.Groups...)
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].SortOrder != groups[j].SortOrder {
			return groups[i].SortOrder < groups[j].SortOrder
		}
		return groups[i].ID < groups[j].ID
	})

	for _, g := range groups {
		if err := validateGroupFields(g, numbering); err != nil {
			return RunConfig{}, err
		}
		p, err := extraction.Compile(g.Patterns())
		if err != nil {
			return RunConfig{}, groupErr(g.ID, "extraction_patterns", "%v", err)
		}
		cfg.Patterns[g.ID] = p

		if !g.IsChild() {
			cfg.Groups = append(cfg.Groups, resolve(g, nil))
			continue
		}
		parent, ok := byID[*g.ParentGroupID]
		switch {
		case !ok:
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("子组%d(%s)引用的父组%d不存在，已忽略", g.ID, g.Name, *g.ParentGroupID))
			continue
		case parent.IsChild():
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("子组%d(%s)的父组%d本身是子组，已忽略", g.ID, g.Name, parent.ID))
			continue
		case !parent.Enabled && g.Enabled:
			cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("子组%d(%s)的父组%d已禁用，已忽略", g.ID, g.Name, parent.ID))
			continue
		}
		cfg.Groups = append(cfg.Groups, resolve(g, &parent))
	}

	cfg.ExceptionKeywords = activeKeywords(s.ExceptionKeywords)
	cfg.Generation = fingerprint(s)
	return cfg, nil
}

// resolve 合并继承字段：子组只保留 enabled、display_name、提取正则和流来源
func resolve(g model.EventGroup, parent *model.EventGroup) ResolvedGroupConfig {
	r := ResolvedGroupConfig{
		ID:                g.ID,
		Name:              g.Name,
		ParentID:          g.ParentGroupID,
		SourceGroup:       g.SourceGroup,
		Patterns:          g.Patterns(),
		SkipBuiltinFilter: g.SkipBuiltinFilter,
		Enabled:           g.Enabled,
	}
	if g.DisplayName != nil {
		r.DisplayName = *g.DisplayName
	}

	src := g
	if parent != nil {
		src = *parent
	}
	r.Leagues = append([]string(nil), src.Leagues...)
	r.GroupMode = src.GroupMode
	if parent != nil {
		r.GroupMode = model.GroupModeSingle
	}
	r.TemplateID = src.TemplateID
	r.ChannelGroupID = src.ChannelGroupID
	r.ChannelProfileIDs = append([]uint64(nil), src.ChannelProfileIDs...)
	r.AssignmentMode = orDefault(src.ChannelAssignmentMode, model.AssignmentAuto)
	r.ChannelStartNumber = src.ChannelStartNumber
	r.MaxChannels = src.MaxChannels
	r.DuplicateHandling = orDefault(src.DuplicateEventHandling, model.DuplicateConsolidate)
	r.OverlapHandling = orDefault(src.OverlapHandling, model.OverlapAddStream)
	r.SortOrder = src.SortOrder
	r.IncludeTeams = append([]string(nil), src.IncludeTeams...)
	r.ExcludeTeams = append([]string(nil), src.ExcludeTeams...)
	r.TeamFilterMode = orDefault(src.TeamFilterMode, model.TeamFilterInclude)
	if src.SoccerMode != nil {
		r.SoccerMode = *src.SoccerMode
	}
	return r
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}

func buildRanks(prios []model.SortPriority) SortRanks {
	r := SortRanks{Sport: map[string]int{}, League: map[string]int{}}
	for _, p := range prios {
		key := strings.ToLower(strings.TrimSpace(p.Key))
		switch p.Kind {
		case model.PrioritySport:
			r.Sport[key] = p.Rank
		case model.PriorityLeague:
			r.League[key] = p.Rank
		}
	}
	return r
}

func activeKeywords(in []model.ExceptionKeyword) []model.ExceptionKeyword {
	out := make([]model.ExceptionKeyword, 0, len(in))
	for _, k := range in {
		if k.Enabled && len(k.Keywords) > 0 {
			out = append(out, k)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// fingerprint 影响匹配结果的配置摘要
func fingerprint(s Snapshot) string {
	type groupKey struct {
		ID       uint64
		Leagues  []string
		Patterns model.ExtractionPatterns
		Include  []string
		Exclude  []string
		Mode     model.TeamFilterMode
		Soccer   *model.SoccerMode
		Parent   *uint64
	}
	keys := make([]groupKey, 0, len(s.Groups))
	for _, g := range s.Groups {
		keys = append(keys, groupKey{g.ID, g.Leagues, g.Patterns(), g.IncludeTeams, g.ExcludeTeams, g.TeamFilterMode, g.SoccerMode, g.ParentGroupID})
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	b, _ := json.Marshal(keys)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

// LoadLocation 空时区按 UTC 处理
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, settingErr("timezone", "无法识别的时区 %q: %v", name, err)
	}
	return loc, nil
}

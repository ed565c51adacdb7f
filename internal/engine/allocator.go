package engine

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"ChannelSync/internal/model"
	"ChannelSync/internal/runconfig"
)

// ErrAllocationExhausted 编号区间不足，部分频道未分配
var ErrAllocationExhausted = errors.New("频道号区间已耗尽")

// Slot 参与编号的一个活跃频道
type Slot struct {
	Key         model.ChannelKey
	Name        string
	League      string
	Sport       string
	Start       time.Time
	StreamOrder int
}

// AllocationInput 分配器输入。Groups 为顶层组，已按优先级排列
type AllocationInput struct {
	Groups   []runconfig.ResolvedGroupConfig
	Slots    []Slot
	Settings model.ChannelNumberingSettings
	Ranks    runconfig.SortRanks
	Capacity map[uint64]int // strict_block 容量估算：组自身的候选流数量
	Previous map[model.ChannelKey]int
}

// Allocation 分配结果
type Allocation struct {
	Numbers   map[model.ChannelKey]int
	Exhausted []model.ExhaustedChannel
	Blocks    []model.GroupBlock
	Drift     int
}

// Err 有频道因区间不足未分配时返回 ErrAllocationExhausted
func (a Allocation) Err() error {
	if len(a.Exhausted) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d个频道未分配", ErrAllocationExhausted, len(a.Exhausted))
}

type span struct{ start, end int }

type spans []span

func (s spans) contains(n int) bool {
	for _, sp := range s {
		if n >= sp.start && n <= sp.end {
			return true
		}
	}
	return false
}

// place 从 from 开始找第一个与已保留区间不相交的长度为 size 的位置
func (s spans) place(from, size int) int {
	start := from
	for {
		moved := false
		for _, sp := range s {
			if start <= sp.end && start+size-1 >= sp.start {
				start = sp.end + 1
				moved = true
			}
		}
		if !moved {
			return start
		}
	}
}

// Allocate 为活跃频道分配频道号。结果只取决于输入（组、频道、设置），
// 上一轮的编号只用于统计漂移，不参与计算。
func Allocate(in AllocationInput) Allocation {
	settings := runconfig.NormalizeNumbering(in.Settings)
	out := Allocation{Numbers: make(map[model.ChannelKey]int, len(in.Slots))}

	byGroup := make(map[uint64][]Slot, len(in.Groups))
	for _, s := range in.Slots {
		byGroup[s.Key.GroupID] = append(byGroup[s.Key.GroupID], s)
	}
	sortBy := settings.SortBy
	if settings.SortingScope == model.ScopeGlobal {
		sortBy = model.SortBySportLeagueTime
	}
	for gid := range byGroup {
		sortSlots(byGroup[gid], sortBy, in.Ranks)
	}

	a := &allocator{in: in, settings: settings, out: &out, byGroup: byGroup}

	// manual 组固定在 channel_start_number，先占位
	var auto []runconfig.ResolvedGroupConfig
	for _, g := range in.Groups {
		if g.AssignmentMode != model.AssignmentManual || g.ChannelStartNumber == nil {
			auto = append(auto, g)
			continue
		}
		size := a.blockSize(g)
		if size == 0 {
			continue
		}
		start := a.reserved.place(*g.ChannelStartNumber, size)
		a.reserve(g, start, size)
	}

	switch settings.NumberingMode {
	case model.NumberingStrictCompact:
		a.compact(auto)
	default:
		if settings.SortingScope == model.ScopeGlobal {
			auto = a.globalOrder(auto)
		}
		cursor := settings.RangeStart
		for _, g := range auto {
			size := a.blockSize(g)
			if size == 0 {
				continue
			}
			start := a.reserved.place(cursor, size)
			a.reserve(g, start, size)
			cursor = start + size
		}
	}

	for key, n := range out.Numbers {
		if prev, ok := in.Previous[key]; ok && prev > 0 && prev != n {
			out.Drift++
		}
	}
	return out
}

type allocator struct {
	in       AllocationInput
	settings model.ChannelNumberingSettings
	out      *Allocation
	byGroup  map[uint64][]Slot
	reserved spans
}

// blockSize strict_block 取静态容量估算，其余模式取当前频道数
func (a *allocator) blockSize(g runconfig.ResolvedGroupConfig) int {
	count := len(a.byGroup[g.ID])
	if a.settings.NumberingMode != model.NumberingStrictBlock {
		return count
	}
	if g.MaxChannels != nil {
		return *g.MaxChannels
	}
	estimate := count
	if c := a.in.Capacity[g.ID]; c > estimate {
		estimate = c
	}
	if estimate < 1 {
		estimate = 1
	}
	step := a.settings.BlockStep
	return (estimate + step - 1) / step * step
}

// reserve 占用 [start, start+size-1] 并在块内顺序编号
func (a *allocator) reserve(g runconfig.ResolvedGroupConfig, start, size int) {
	a.reserved = append(a.reserved, span{start, start + size - 1})
	used := 0
	for i, s := range a.byGroup[g.ID] {
		n := start + i
		if i >= size || a.beyondRange(n) {
			a.exhaust(s)
			continue
		}
		a.out.Numbers[s.Key] = n
		used++
	}
	a.out.Blocks = append(a.out.Blocks, model.GroupBlock{GroupID: g.ID, Start: start, End: start + size - 1, Used: used})
}

// compact auto 组的频道首尾相接，从 range_start 起跳过 manual 组占用的号
func (a *allocator) compact(auto []runconfig.ResolvedGroupConfig) {
	var list []Slot
	for _, g := range auto {
		list = append(list, a.byGroup[g.ID]...)
	}
	if a.settings.SortingScope == model.ScopeGlobal {
		sortSlots(list, model.SortBySportLeagueTime, a.in.Ranks)
	}
	n := a.settings.RangeStart
	for _, s := range list {
		for a.reserved.contains(n) {
			n++
		}
		if a.beyondRange(n) {
			a.exhaust(s)
			continue
		}
		a.out.Numbers[s.Key] = n
		n++
	}
}

// globalOrder global 范围下按各组第一个频道在全局排序中的位置排列组
func (a *allocator) globalOrder(groups []runconfig.ResolvedGroupConfig) []runconfig.ResolvedGroupConfig {
	var pool []Slot
	for _, g := range groups {
		pool = append(pool, a.byGroup[g.ID]...)
	}
	sortSlots(pool, model.SortBySportLeagueTime, a.in.Ranks)
	first := make(map[uint64]int, len(groups))
	for i, s := range pool {
		if _, ok := first[s.Key.GroupID]; !ok {
			first[s.Key.GroupID] = i
		}
	}
	out := append([]runconfig.ResolvedGroupConfig(nil), groups...)
	sort.SliceStable(out, func(i, j int) bool {
		fi, iok := first[out[i].ID]
		fj, jok := first[out[j].ID]
		if iok != jok {
			return iok
		}
		return fi < fj
	})
	return out
}

func (a *allocator) beyondRange(n int) bool {
	return a.settings.RangeEnd != nil && n > *a.settings.RangeEnd
}

func (a *allocator) exhaust(s Slot) {
	a.out.Exhausted = append(a.out.Exhausted, model.ExhaustedChannel{GroupID: s.Key.GroupID, EventID: s.Key.EventID, Name: s.Name})
}

// sortSlots 全部键参与比较，保证结果确定
func sortSlots(list []Slot, by model.SortBy, ranks runconfig.SortRanks) {
	sort.SliceStable(list, func(i, j int) bool {
		return lessSlot(list[i], list[j], by, ranks)
	})
}

func lessSlot(a, b Slot, by model.SortBy, ranks runconfig.SortRanks) bool {
	switch by {
	case model.SortBySportLeagueTime:
		if ra, rb := ranks.SportRank(a.Sport), ranks.SportRank(b.Sport); ra != rb {
			return ra < rb
		}
		if sa, sb := strings.ToLower(a.Sport), strings.ToLower(b.Sport); sa != sb {
			return sa < sb
		}
		if ra, rb := ranks.LeagueRank(a.League), ranks.LeagueRank(b.League); ra != rb {
			return ra < rb
		}
		if la, lb := strings.ToLower(a.League), strings.ToLower(b.League); la != lb {
			return la < lb
		}
	case model.SortByStreamOrder:
		if a.StreamOrder != b.StreamOrder {
			return a.StreamOrder < b.StreamOrder
		}
	}
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	if a.StreamOrder != b.StreamOrder {
		return a.StreamOrder < b.StreamOrder
	}
	return compareKeys(a.Key, b.Key) < 0
}

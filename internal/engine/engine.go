package engine

import (
	"time"

	"ChannelSync/internal/model"
	"ChannelSync/internal/runconfig"

	"github.com/google/uuid"
)

// Input 一次生成的全部输入，已在并行阶段收集完毕
type Input struct {
	Config   runconfig.RunConfig
	Matches  map[uint64][]model.StreamMatch // 组 id（含子组）-> 匹配结果
	Capacity map[uint64]int                 // 组 id -> 候选流数量，子组的不计入
	Previous []model.ManagedChannel
	Now      time.Time
	NewID    func() string // 为空时使用 uuid
}

// Result 引擎输出：待持久化的频道、移除的频道和分配详情
type Result struct {
	Channels   []*model.ManagedChannel
	Discarded  []model.ManagedChannel
	Allocation Allocation
	Report     model.RunReport
}

// Run 顺序执行 重复合并 -> 父子合并 -> 跨组重叠 -> 生命周期 -> 编号分配。
// 只有本轮结束时处于 active 的频道会拿到频道号。
func Run(in Input) Result {
	cfg := in.Config
	newID := in.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	var report model.RunReport

	perGroup := make(GroupDrafts)
	for _, g := range cfg.Active() {
		drafts, ignored := Consolidate(g, in.Matches[g.ID], cfg.ExceptionKeywords)
		perGroup[g.ID] = drafts
		report.DuplicatesIgnored += len(ignored)
	}
	merged := MergeChildren(cfg, perGroup, &report)
	resolved := ResolveOverlaps(cfg, merged, NewEventChannels(in.Previous), &report)

	lc := ApplyLifecycle(cfg, resolved, in.Previous, in.Now, newID)

	// 子组只贡献流，不计入父组的块容量
	topLevel := cfg.TopLevel()
	capacity := make(map[uint64]int, len(topLevel))
	for _, g := range topLevel {
		capacity[g.ID] = in.Capacity[g.ID]
	}

	previous := make(map[model.ChannelKey]int, len(in.Previous))
	for _, p := range in.Previous {
		if p.AssignedNumber > 0 {
			previous[p.Key()] = p.AssignedNumber
		}
	}

	var slots []Slot
	for _, ch := range lc.Channels {
		if ch.State != model.ChannelActive {
			continue
		}
		slots = append(slots, Slot{
			Key:         ch.Key(),
			Name:        ch.Name,
			League:      ch.League,
			Sport:       ch.Sport,
			Start:       ch.EventStart,
			StreamOrder: ch.StreamOrder,
		})
	}
	alloc := Allocate(AllocationInput{
		Groups:   topLevel,
		Slots:    slots,
		Settings: cfg.Numbering,
		Ranks:    cfg.Ranks,
		Capacity: capacity,
		Previous: previous,
	})

	// 区间不足：未下发过的频道退回 pending_create 等下一轮，已下发的删除以释放号码
	channels := make([]*model.ManagedChannel, 0, len(lc.Channels))
	discarded := lc.Discarded
	for _, ch := range lc.Channels {
		if ch.State != model.ChannelActive {
			ch.AssignedNumber = 0
			channels = append(channels, ch)
			continue
		}
		n, ok := alloc.Numbers[ch.Key()]
		if ok {
			ch.AssignedNumber = n
			channels = append(channels, ch)
			continue
		}
		ch.AssignedNumber = 0
		if ch.ProviderChannelID == nil {
			ch.State = model.ChannelPendingCreate
		} else {
			ch.State = model.ChannelPendingDelete
		}
		channels = append(channels, ch)
	}

	for _, ch := range channels {
		switch ch.State {
		case model.ChannelActive:
			report.ChannelsActive++
		case model.ChannelPendingCreate:
			report.ChannelsPending++
		}
	}
	report.ChannelsDiscarded = len(discarded)
	report.NumberDrift = alloc.Drift
	report.Exhausted = alloc.Exhausted
	report.Blocks = alloc.Blocks
	for _, w := range cfg.Warnings {
		report.Warn(w)
	}

	return Result{Channels: channels, Discarded: discarded, Allocation: alloc, Report: report}
}

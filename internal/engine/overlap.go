package engine

import (
	"strings"

	"ChannelSync/internal/model"
	"ChannelSync/internal/runconfig"
)

// claimKey 重叠判定按 (联赛, 赛事) 而不是按组
type claimKey struct {
	league  string
	eventID string
}

func claimOf(d *ChannelDraft) claimKey {
	return claimKey{league: strings.ToLower(d.League), eventID: d.Event.EventID}
}

// EventChannels 上一轮已处于 active 的频道，按 (组, 赛事) 索引
type EventChannels map[model.ChannelKey]struct{}

// NewEventChannels 从上一轮的托管频道里挑出 active 的，fanout 不参与索引
func NewEventChannels(previous []model.ManagedChannel) EventChannels {
	out := make(EventChannels, len(previous))
	for _, p := range previous {
		if p.State == model.ChannelActive {
			out[model.ChannelKey{GroupID: p.GroupID, EventID: p.EventID}] = struct{}{}
		}
	}
	return out
}

func (e EventChannels) has(groupID uint64, eventID string) bool {
	_, ok := e[model.ChannelKey{GroupID: groupID, EventID: eventID}]
	return ok
}

// ResolveOverlaps 同一 (联赛, 赛事) 被多个顶层组认领时，按组优先级（sort_order、id）
// 第一个认领者为所有者，其余组按各自的 overlap_handling 处理：
// add_stream 把流追加到所有者的第一个频道；add_only 只在所有者的频道上一轮已经 active 时追加，
// 所有者本轮才新建的不算，认领直接放弃；create_all 保留自己的频道；skip 放弃认领。
func ResolveOverlaps(cfg runconfig.RunConfig, drafts GroupDrafts, existing EventChannels, report *model.RunReport) GroupDrafts {
	out := make(GroupDrafts, len(drafts))
	owners := make(map[claimKey]uint64)
	primary := make(map[claimKey]*ChannelDraft)

	for _, g := range cfg.TopLevel() {
		kept := make([]*ChannelDraft, 0, len(drafts[g.ID]))
		for _, src := range drafts[g.ID] {
			d := src.clone()
			ck := claimOf(d)
			owner, claimed := owners[ck]
			if !claimed || owner == g.ID {
				owners[ck] = g.ID
				if _, ok := primary[ck]; !ok {
					primary[ck] = d
				}
				kept = append(kept, d)
				continue
			}

			switch g.OverlapHandling {
			case model.OverlapCreateAll:
				kept = append(kept, d)
			case model.OverlapSkip:
				report.OverlapDropped++
			case model.OverlapAddOnly:
				if !existing.has(owner, ck.eventID) {
					report.OverlapDropped++
					continue
				}
				primary[ck].appendStreams(d.Streams)
				report.OverlapMerged++
			default: // add_stream
				primary[ck].appendStreams(d.Streams)
				report.OverlapMerged++
			}
		}
		out[g.ID] = kept
	}
	return out
}

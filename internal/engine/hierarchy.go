package engine

import (
	"ChannelSync/internal/model"
	"ChannelSync/internal/runconfig"
)

// MergeChildren 把启用子组的流并入父组已有的频道。子组不会单独占用频道号，也不会给父组新增频道：
// 同键草稿直接追加流；同赛事不同 fanout 的，流追加到父组该赛事的第一个频道；
// 父组没有的赛事整条丢弃并计入 ChildDropped。父组策略为 ignore 时子组的流一律丢弃。
// 被忽略的子组（父组缺失/禁用）在构建 RunConfig 时已剔除。
func MergeChildren(cfg runconfig.RunConfig, perGroup GroupDrafts, report *model.RunReport) GroupDrafts {
	out := make(GroupDrafts, len(perGroup))
	for _, parent := range cfg.TopLevel() {
		own := perGroup[parent.ID]
		merged := make([]*ChannelDraft, 0, len(own))
		index := make(map[model.ChannelKey]*ChannelDraft, len(own))
		byEvent := make(map[string]*ChannelDraft, len(own))
		for _, d := range own {
			c := d.clone()
			merged = append(merged, c)
			index[c.Key()] = c
			if _, ok := byEvent[c.Event.EventID]; !ok {
				byEvent[c.Event.EventID] = c
			}
		}

		for _, child := range cfg.Children(parent.ID) {
			for _, d := range perGroup[child.ID] {
				key := model.ChannelKey{GroupID: parent.ID, EventID: d.Event.EventID, FanoutKey: d.FanoutKey}
				target, ok := index[key]
				if !ok {
					target, ok = byEvent[d.Event.EventID]
				}
				if !ok {
					report.ChildDropped += len(d.Streams)
					continue
				}
				if target.Policy == model.DuplicateIgnore {
					report.DuplicatesIgnored += len(d.Streams)
					continue
				}
				report.ChildMerged += target.appendStreams(d.Streams)
			}
		}
		out[parent.ID] = merged
	}
	return out
}

// Package engine 频道生成的核心：重复合并、父子组合并、跨组重叠、频道号分配和生命周期。
// 包内全部是纯函数，输入为 RunConfig 快照、匹配结果和上一轮的托管频道。
package engine

import (
	"fmt"
	"sort"

	"ChannelSync/internal/model"
)

// Fanout key 前缀
const (
	fanoutKeyword = "kw:"
	fanoutStream  = "stream:"
)

// ChannelDraft 一个待生成的频道：同一赛事下的一组有序流
type ChannelDraft struct {
	GroupID        uint64 // 归属的顶层组
	OriginGroupID  uint64 // 产生该草稿的组（子组/重叠组审计用）
	Event          *model.MatchedEvent
	League         string
	FanoutKey      string
	ExceptionLabel string
	Policy         model.DuplicateHandling // 产生该草稿时生效的重复策略
	Name           string
	Streams        []model.StreamRef
}

// Key 持久化键
func (d *ChannelDraft) Key() model.ChannelKey {
	return model.ChannelKey{GroupID: d.GroupID, EventID: d.Event.EventID, FanoutKey: d.FanoutKey}
}

// StreamOrder 首条流的原始顺序
func (d *ChannelDraft) StreamOrder() int {
	if len(d.Streams) == 0 {
		return 0
	}
	return d.Streams[0].Order
}

// appendStreams 追加流并按 stream_id 去重，已有顺序不变
func (d *ChannelDraft) appendStreams(refs []model.StreamRef) int {
	seen := make(map[uint64]struct{}, len(d.Streams))
	for _, s := range d.Streams {
		seen[s.StreamID] = struct{}{}
	}
	added := 0
	for _, s := range refs {
		if _, ok := seen[s.StreamID]; ok {
			continue
		}
		seen[s.StreamID] = struct{}{}
		d.Streams = append(d.Streams, s)
		added++
	}
	return added
}

func (d *ChannelDraft) clone() *ChannelDraft {
	c := *d
	c.Streams = append([]model.StreamRef(nil), d.Streams...)
	return &c
}

// GroupDrafts 顶层组 id -> 有序草稿列表
type GroupDrafts map[uint64][]*ChannelDraft

func keywordFanout(label string) string { return fanoutKeyword + label }

func streamFanout(streamID uint64) string { return fmt.Sprintf("%s%d", fanoutStream, streamID) }

func compareKeys(a, b model.ChannelKey) int {
	switch {
	case a.GroupID != b.GroupID:
		if a.GroupID < b.GroupID {
			return -1
		}
		return 1
	case a.EventID != b.EventID:
		if a.EventID < b.EventID {
			return -1
		}
		return 1
	case a.FanoutKey != b.FanoutKey:
		if a.FanoutKey < b.FanoutKey {
			return -1
		}
		return 1
	}
	return 0
}

// sortMatches 按 stream_order、stream_id 稳定排序
func sortMatches(ms []model.StreamMatch) {
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].StreamOrder != ms[j].StreamOrder {
			return ms[i].StreamOrder < ms[j].StreamOrder
		}
		return ms[i].StreamID < ms[j].StreamID
	})
}

package engine

import (
	"fmt"
	"strings"

	"ChannelSync/internal/extraction"
	"ChannelSync/internal/model"
	"ChannelSync/internal/runconfig"
)

// MatchKeyword 流名命中的第一个例外关键词（keywords 已按优先级排序）
func MatchKeyword(name string, keywords []model.ExceptionKeyword) (model.ExceptionKeyword, bool) {
	norm := " " + extraction.Normalize(name) + " "
	for _, k := range keywords {
		for _, w := range k.Keywords {
			nw := extraction.Normalize(w)
			if nw == "" {
				continue
			}
			if strings.Contains(norm, " "+nw+" ") {
				return k, true
			}
		}
	}
	return model.ExceptionKeyword{}, false
}

// Consolidate 对单个组的匹配结果应用重复策略与例外关键词，返回有序草稿和被 ignore 丢弃的流
func Consolidate(group runconfig.ResolvedGroupConfig, matches []model.StreamMatch, keywords []model.ExceptionKeyword) ([]*ChannelDraft, []model.StreamMatch) {
	matched := make([]model.StreamMatch, 0, len(matches))
	for _, m := range matches {
		if m.Event != nil && m.ExclusionReason == "" {
			matched = append(matched, m)
		}
	}
	sortMatches(matched)

	behaviors := make(map[string]model.DuplicateHandling, len(keywords))
	for _, k := range keywords {
		behaviors[k.Label] = k.Behavior
	}
	for i := range matched {
		if matched[i].ExceptionKeywordLabel != "" {
			continue
		}
		if k, ok := MatchKeyword(matched[i].StreamName, keywords); ok {
			matched[i].ExceptionKeywordLabel = k.Label
		}
	}

	// 赛事按首条流出现顺序；同一赛事内按标签首次出现顺序
	type partition struct {
		label   string
		matches []model.StreamMatch
	}
	type bucket struct {
		event *model.MatchedEvent
		parts []*partition
	}
	var order []string
	buckets := make(map[string]*bucket)
	for _, m := range matched {
		id := m.Event.EventID
		b, ok := buckets[id]
		if !ok {
			b = &bucket{event: m.Event}
			buckets[id] = b
			order = append(order, id)
		}
		var p *partition
		for _, candidate := range b.parts {
			if candidate.label == m.ExceptionKeywordLabel {
				p = candidate
				break
			}
		}
		if p == nil {
			p = &partition{label: m.ExceptionKeywordLabel}
			b.parts = append(b.parts, p)
		}
		p.matches = append(p.matches, m)
	}

	var drafts []*ChannelDraft
	var ignored []model.StreamMatch
	for _, id := range order {
		b := buckets[id]
		for _, p := range b.parts {
			policy := group.DuplicateHandling
			if p.label != "" {
				if bh, ok := behaviors[p.label]; ok {
					policy = bh
				}
			}
			out, dropped := applyPolicy(group, b.event, p.label, policy, p.matches)
			drafts = append(drafts, out...)
			ignored = append(ignored, dropped...)
		}
	}
	return drafts, ignored
}

func applyPolicy(group runconfig.ResolvedGroupConfig, event *model.MatchedEvent, label string, policy model.DuplicateHandling, ms []model.StreamMatch) ([]*ChannelDraft, []model.StreamMatch) {
	base := ChannelDraft{
		GroupID:        group.ID,
		OriginGroupID:  group.ID,
		Event:          event,
		League:         claimedLeague(ms[0]),
		ExceptionLabel: label,
		Policy:         policy,
		Name:           channelName(event, label),
	}
	fanout := ""
	if label != "" {
		fanout = keywordFanout(label)
	}

	switch policy {
	case model.DuplicateIgnore:
		d := base
		d.FanoutKey = fanout
		d.Streams = []model.StreamRef{streamRef(group.ID, ms[0])}
		return []*ChannelDraft{&d}, ms[1:]
	case model.DuplicateSeparate:
		out := make([]*ChannelDraft, 0, len(ms))
		for i, m := range ms {
			d := base
			d.FanoutKey = streamFanout(m.StreamID)
			d.League = claimedLeague(m)
			d.Streams = []model.StreamRef{streamRef(group.ID, m)}
			if i > 0 {
				d.Name = fmt.Sprintf("%s (%d)", base.Name, i+1)
			}
			out = append(out, &d)
		}
		return out, nil
	default:
		d := base
		d.FanoutKey = fanout
		d.Streams = make([]model.StreamRef, 0, len(ms))
		for _, m := range ms {
			d.Streams = append(d.Streams, streamRef(group.ID, m))
		}
		return []*ChannelDraft{&d}, nil
	}
}

func claimedLeague(m model.StreamMatch) string {
	if m.League != "" {
		return m.League
	}
	return m.Event.League
}

func streamRef(groupID uint64, m model.StreamMatch) model.StreamRef {
	return model.StreamRef{StreamID: m.StreamID, Name: m.StreamName, Order: m.StreamOrder, OriginGroupID: groupID}
}

func channelName(event *model.MatchedEvent, label string) string {
	name := event.Name
	if name == "" {
		name = event.EventID
	}
	if label != "" {
		return fmt.Sprintf("%s (%s)", name, extraction.DisplayCase(label))
	}
	return name
}

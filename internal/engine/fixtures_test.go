package engine

import (
	"fmt"
	"testing"
	"time"

	"ChannelSync/internal/model"
	"ChannelSync/internal/runconfig"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var base = time.Date(2026, 10, 16, 18, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

type groupOpt func(*model.EventGroup)

func withDuplicate(p model.DuplicateHandling) groupOpt {
	return func(g *model.EventGroup) { g.DuplicateEventHandling = p }
}

func withOverlap(p model.OverlapHandling) groupOpt {
	return func(g *model.EventGroup) { g.OverlapHandling = p }
}

func childOf(parent uint64) groupOpt {
	return func(g *model.EventGroup) { g.ParentGroupID = ptr(parent) }
}

func disabled() groupOpt {
	return func(g *model.EventGroup) { g.Enabled = false }
}

func manualAt(start int) groupOpt {
	return func(g *model.EventGroup) {
		g.ChannelAssignmentMode = model.AssignmentManual
		g.ChannelStartNumber = ptr(start)
	}
}

func group(id uint64, sortOrder int, opts ...groupOpt) model.EventGroup {
	g := model.EventGroup{
		ID:        id,
		Name:      fmt.Sprintf("group-%d", id),
		Enabled:   true,
		SortOrder: sortOrder,
		Leagues:   datatypes.JSONSlice[string]{"nba"},
	}
	for _, o := range opts {
		o(&g)
	}
	return g
}

func numbering(mode model.NumberingMode, start int) model.ChannelNumberingSettings {
	return model.ChannelNumberingSettings{NumberingMode: mode, SortingScope: model.ScopePerGroup, SortBy: model.SortByTime, RangeStart: start, BlockStep: 10}
}

func buildConfig(t *testing.T, n model.ChannelNumberingSettings, lc model.LifecycleSettings, groups ...model.EventGroup) runconfig.RunConfig {
	t.Helper()
	cfg, err := runconfig.Build(runconfig.Snapshot{Groups: groups, Numbering: n, Lifecycle: lc}, base)
	require.NoError(t, err)
	return cfg
}

func ev(id string, start time.Time) *model.MatchedEvent {
	return &model.MatchedEvent{
		EventID:   id,
		League:    "nba",
		Sport:     "basketball",
		Name:      "Event " + id,
		StartTime: start,
		EndTime:   start.Add(3 * time.Hour),
		Status:    model.EventScheduled,
	}
}

func sm(groupID, streamID uint64, order int, e *model.MatchedEvent) model.StreamMatch {
	return model.StreamMatch{
		StreamID:    streamID,
		StreamName:  fmt.Sprintf("stream %d", streamID),
		StreamOrder: order,
		GroupID:     groupID,
		Event:       e,
		League:      e.League,
	}
}

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("ch-%03d", n)
	}
}

func numbersOf(chs []*model.ManagedChannel) map[model.ChannelKey]int {
	out := make(map[model.ChannelKey]int)
	for _, ch := range chs {
		if ch.State == model.ChannelActive {
			out[ch.Key()] = ch.AssignedNumber
		}
	}
	return out
}

func persisted(chs []*model.ManagedChannel) []model.ManagedChannel {
	out := make([]model.ManagedChannel, 0, len(chs))
	for _, ch := range chs {
		out = append(out, *ch)
	}
	return out
}

func streamIDs(refs []model.StreamRef) []uint64 {
	out := make([]uint64, 0, len(refs))
	for _, r := range refs {
		out = append(out, r.StreamID)
	}
	return out
}

func mustGroup(t *testing.T, cfg runconfig.RunConfig, id uint64) runconfig.ResolvedGroupConfig {
	t.Helper()
	g, ok := cfg.Group(id)
	require.True(t, ok)
	return g
}

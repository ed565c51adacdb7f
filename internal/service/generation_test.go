package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ChannelSync/internal/metrics"
	"ChannelSync/internal/model"
	"ChannelSync/internal/repository"
	"ChannelSync/internal/runconfig"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedNBA 一个 nba 组 + 六条流：两条同场、一条另一场、一条非比赛、一条查不到、一条查询失败
func seedNBA(t *testing.T, h *harness) *model.EventGroup {
	t.Helper()
	g := &model.EventGroup{Name: "nba", SourceGroup: "NBA", Enabled: true, Leagues: []string{"nba"}}
	require.NoError(t, h.groups.Create(context.Background(), g))

	e1 := nbaEvent("E1", "Lakers @ Celtics", base.Add(time.Hour))
	e2 := nbaEvent("E2", "Bulls @ Knicks", base.Add(2*time.Hour))
	h.matcher.events["NBA: Lakers @ Celtics"] = e1
	h.matcher.events["NBA: Lakers vs Celtics HD"] = e1
	h.matcher.events["NBA: Bulls @ Knicks"] = e2
	h.matcher.failing["NBA: Heat @ Magic"] = true

	h.classifier.set(g.ID,
		cand(1, "NBA: Lakers @ Celtics", 0),
		cand(2, "NBA: Lakers vs Celtics HD", 1),
		cand(3, "NBA: Bulls @ Knicks", 2),
		model.StreamCandidate{StreamID: 4, Name: "NBA TV 24/7", Order: 3, ExclusionReason: model.ReasonNotGame},
		cand(5, "NBA: Mystery Game", 4),
		cand(6, "NBA: Heat @ Magic", 5),
	)
	return g
}

func numbersByEvent(t *testing.T, h *harness) map[string]int {
	t.Helper()
	list, err := h.channels.LoadAll(context.Background())
	require.NoError(t, err)
	out := make(map[string]int, len(list))
	for _, ch := range list {
		out[ch.EventID] = ch.AssignedNumber
	}
	return out
}

func TestGenerationRunEndToEnd(t *testing.T) {
	h := newHarness(t)
	seedNBA(t, h)

	run, err := h.svc.Run(context.Background(), "api")
	require.NoError(t, err)
	assert.Equal(t, model.RunSucceeded, run.Status)

	r := run.Report.Data()
	assert.Equal(t, 6, r.StreamsTotal)
	assert.Equal(t, 1, r.StreamsExcluded)
	assert.Equal(t, 2, r.StreamsUnmatched)
	assert.Equal(t, 3, r.StreamsMatched)
	assert.Equal(t, 1, r.LookupFailures)
	assert.Equal(t, 2, r.ChannelsActive)
	assert.Equal(t, 2, r.ChannelsCreated)
	assert.Equal(t, 0, r.ProviderErrors)
	assert.Equal(t, 1, r.ExclusionReasons[model.ReasonLookupFailed])
	assert.Equal(t, 1, r.ExclusionReasons[model.ReasonNotGame])

	assert.Equal(t, map[string]int{"E1": 100, "E2": 101}, numbersByEvent(t, h))

	list, err := h.channels.List(context.Background(), repository.ChannelFilter{State: model.ChannelActive})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Len(t, list[0].Streams, 2, "同场两条流合并到一个频道")
	require.NotNil(t, list[0].ProviderChannelID)
	assert.Equal(t, "p-1", *list[0].ProviderChannelID)

	require.Len(t, h.epg.entries, 2)
	assert.Equal(t, 100, h.epg.entries[0].Number)
	assert.Equal(t, "Lakers @ Celtics", h.epg.entries[0].Title)

	stored, err := h.runs.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunSucceeded, stored.Status)
	assert.NotNil(t, stored.FinishedAt)
}

func TestGenerationRunIsIdempotent(t *testing.T) {
	h := newHarness(t)
	seedNBA(t, h)

	_, err := h.svc.Run(context.Background(), "api")
	require.NoError(t, err)
	first := numbersByEvent(t, h)

	run, err := h.svc.Run(context.Background(), "cron")
	require.NoError(t, err)
	r := run.Report.Data()
	assert.Equal(t, first, numbersByEvent(t, h))
	assert.Equal(t, 0, r.NumberDrift)
	assert.Equal(t, 0, r.ChannelsCreated)
	assert.Equal(t, 2, r.ChannelsActive)
	assert.Equal(t, 2, h.provider.seq, "第二轮不应在对端重复建频道")

	runs, err := h.runs.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestGenerationRunDeletesRemovedStreams(t *testing.T) {
	h := newHarness(t)
	g := seedNBA(t, h)
	ctx := context.Background()

	_, err := h.svc.Run(ctx, "api")
	require.NoError(t, err)

	require.NoError(t, h.settings.SaveLifecycle(ctx, model.LifecycleSettings{
		CreateTiming: "stream_available", DeleteTiming: "stream_removed", Timezone: "UTC",
	}))
	h.classifier.set(g.ID, cand(1, "NBA: Lakers @ Celtics", 0))

	run, err := h.svc.Run(ctx, "api")
	require.NoError(t, err)
	r := run.Report.Data()
	assert.Equal(t, 1, r.ChannelsDeleted)
	assert.Equal(t, []string{"p-2"}, h.provider.deleted)
	assert.Equal(t, map[string]int{"E1": 100}, numbersByEvent(t, h))
}

func TestGenerationRunProviderErrorIsNotFatal(t *testing.T) {
	h := newHarness(t)
	seedNBA(t, h)
	h.provider.failUpsert["Bulls @ Knicks"] = true

	run, err := h.svc.Run(context.Background(), "api")
	require.NoError(t, err)
	r := run.Report.Data()
	assert.Equal(t, 1, r.ProviderErrors)
	assert.Equal(t, 1, r.ChannelsCreated)
	assert.Equal(t, 2, r.ChannelsActive)

	// 下一轮重试成功
	delete(h.provider.failUpsert, "Bulls @ Knicks")
	run, err = h.svc.Run(context.Background(), "api")
	require.NoError(t, err)
	assert.Equal(t, 1, run.Report.Data().ChannelsCreated)
	assert.Equal(t, 0, run.Report.Data().ProviderErrors)
}

func TestGenerationRunConfigErrorIsFatal(t *testing.T) {
	h := newHarness(t)
	seedNBA(t, h)
	ctx := context.Background()
	require.NoError(t, h.settings.SaveLifecycle(ctx, model.LifecycleSettings{
		CreateTiming: "stream_available", DeleteTiming: "same_day", Timezone: "Mars/Olympus_Mons",
	}))

	run, err := h.svc.Run(ctx, "api")
	require.Error(t, err)
	var cfgErr *runconfig.ConfigError
	assert.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, model.RunFailed, run.Status)
	assert.Empty(t, h.provider.upserts)

	list, err := h.channels.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGenerationRunClassifierFailureKeepsState(t *testing.T) {
	h := newHarness(t)
	seedNBA(t, h)
	ctx := context.Background()
	_, err := h.svc.Run(ctx, "api")
	require.NoError(t, err)
	before := numbersByEvent(t, h)

	h.classifier.err = errors.New("m3u unreachable")
	run, err := h.svc.Run(ctx, "api")
	require.Error(t, err)
	assert.Equal(t, model.RunFailed, run.Status)
	assert.Equal(t, before, numbersByEvent(t, h))
	assert.Empty(t, h.provider.deleted)
}

func TestGenerationRunCancelledBeforeAllocation(t *testing.T) {
	h := newHarness(t)
	seedNBA(t, h)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := h.svc.Run(ctx, "api")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.RunCancelled, run.Status)

	list, err := h.channels.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)

	stored, err := h.runs.Latest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.RunCancelled, stored.Status)
}

func TestGenerationRunRecordsMetrics(t *testing.T) {
	h := newHarness(t)
	seedNBA(t, h)
	m, err := metrics.NewGenerationMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	h.svc.deps.Metrics = m

	_, err = h.svc.Run(context.Background(), "api")
	require.NoError(t, err)
	assert.Equal(t, 1, testutil.CollectAndCount(m, "channelsync_generation_runs_total"))
}

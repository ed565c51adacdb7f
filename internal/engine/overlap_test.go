package engine

import (
	"testing"

	"ChannelSync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runOverlap(t *testing.T, second model.OverlapHandling) Result {
	t.Helper()
	e := ev("E", base)
	cfg := buildConfig(t, numbering(model.NumberingStrictBlock, 1), model.LifecycleSettings{},
		group(1, 1, withOverlap(model.OverlapAddStream)),
		group(2, 2, withOverlap(second)),
	)
	return Run(Input{
		Config: cfg,
		Matches: map[uint64][]model.StreamMatch{
			1: {sm(1, 1, 0, e)},
			2: {sm(2, 2, 0, e)},
		},
		Now:   base,
		NewID: seqIDs(),
	})
}

func TestOverlapSkip(t *testing.T) {
	res := runOverlap(t, model.OverlapSkip)
	require.Len(t, res.Channels, 1)
	ch := res.Channels[0]
	assert.Equal(t, uint64(1), ch.GroupID)
	assert.Equal(t, []uint64{1}, streamIDs(ch.Streams))
	assert.Equal(t, 1, res.Report.OverlapDropped)
}

func TestOverlapAddStream(t *testing.T) {
	res := runOverlap(t, model.OverlapAddStream)
	require.Len(t, res.Channels, 1)
	assert.Equal(t, []uint64{1, 2}, streamIDs(res.Channels[0].Streams))
	assert.Equal(t, uint64(2), res.Channels[0].Streams[1].OriginGroupID)
}

func TestOverlapAddOnly(t *testing.T) {
	// 所有者的频道本轮才新建：add_only 放弃认领
	res := runOverlap(t, model.OverlapAddOnly)
	require.Len(t, res.Channels, 1)
	assert.Equal(t, []uint64{1}, streamIDs(res.Channels[0].Streams))
	assert.Equal(t, 1, res.Report.OverlapDropped)
	assert.Zero(t, res.Report.OverlapMerged)

	// add_stream 同样输入会并入
	assert.Equal(t, []uint64{1, 2}, streamIDs(runOverlap(t, model.OverlapAddStream).Channels[0].Streams))
}

func TestOverlapAddOnlyJoinsExistingChannel(t *testing.T) {
	e := ev("E", base)
	cfg := buildConfig(t, numbering(model.NumberingStrictBlock, 1), model.LifecycleSettings{},
		group(1, 1, withOverlap(model.OverlapAddStream)),
		group(2, 2, withOverlap(model.OverlapAddOnly)),
	)
	first := Run(Input{
		Config:  cfg,
		Matches: map[uint64][]model.StreamMatch{1: {sm(1, 1, 0, e)}},
		Now:     base,
		NewID:   seqIDs(),
	})
	require.Len(t, first.Channels, 1)
	require.Equal(t, model.ChannelActive, first.Channels[0].State)

	second := Run(Input{
		Config: cfg,
		Matches: map[uint64][]model.StreamMatch{
			1: {sm(1, 1, 0, e)},
			2: {sm(2, 2, 0, e)},
		},
		Previous: persisted(first.Channels),
		Now:      base,
		NewID:    seqIDs(),
	})
	require.Len(t, second.Channels, 1)
	assert.Equal(t, []uint64{1, 2}, streamIDs(second.Channels[0].Streams))
	assert.Equal(t, 1, second.Report.OverlapMerged)
	assert.Equal(t, first.Channels[0].ChannelID, second.Channels[0].ChannelID)
}

func TestOverlapCreateAll(t *testing.T) {
	res := runOverlap(t, model.OverlapCreateAll)
	require.Len(t, res.Channels, 2)
	assert.NotEqual(t, res.Channels[0].GroupID, res.Channels[1].GroupID)
}

func TestOverlapOwnerIsEarlierGroup(t *testing.T) {
	// 即使高优先级组配置了 skip，它仍是第一个认领者
	e := ev("E", base)
	cfg := buildConfig(t, numbering(model.NumberingStrictBlock, 1), model.LifecycleSettings{},
		group(1, 5, withOverlap(model.OverlapAddStream)),
		group(2, 1, withOverlap(model.OverlapSkip)),
	)
	d1, _ := Consolidate(mustGroup(t, cfg, 1), []model.StreamMatch{sm(1, 1, 0, e)}, nil)
	d2, _ := Consolidate(mustGroup(t, cfg, 2), []model.StreamMatch{sm(2, 2, 0, e)}, nil)
	out := ResolveOverlaps(cfg, GroupDrafts{1: d1, 2: d2}, nil, &model.RunReport{})
	require.Len(t, out[2], 1)
	assert.Empty(t, out[1])
	assert.Equal(t, []uint64{2, 1}, streamIDs(out[2][0].Streams))
}

func TestOverlapScopedPerClaimedLeague(t *testing.T) {
	e := ev("E", base)
	cfg := buildConfig(t, numbering(model.NumberingStrictBlock, 1), model.LifecycleSettings{},
		group(1, 1), group(2, 2, withOverlap(model.OverlapSkip)),
	)
	viaSecondary := sm(2, 2, 0, e)
	viaSecondary.League = "ucl"
	d1, _ := Consolidate(mustGroup(t, cfg, 1), []model.StreamMatch{sm(1, 1, 0, e)}, nil)
	d2, _ := Consolidate(mustGroup(t, cfg, 2), []model.StreamMatch{viaSecondary}, nil)

	out := ResolveOverlaps(cfg, GroupDrafts{1: d1, 2: d2}, nil, &model.RunReport{})
	assert.Len(t, out[1], 1)
	assert.Len(t, out[2], 1)
}

func TestOverlapDoesNotMutateInput(t *testing.T) {
	e := ev("E", base)
	cfg := buildConfig(t, numbering(model.NumberingStrictBlock, 1), model.LifecycleSettings{}, group(1, 1), group(2, 2))
	d1, _ := Consolidate(mustGroup(t, cfg, 1), []model.StreamMatch{sm(1, 1, 0, e)}, nil)
	d2, _ := Consolidate(mustGroup(t, cfg, 2), []model.StreamMatch{sm(2, 2, 0, e)}, nil)
	ResolveOverlaps(cfg, GroupDrafts{1: d1, 2: d2}, nil, &model.RunReport{})
	assert.Len(t, d1[0].Streams, 1)
}

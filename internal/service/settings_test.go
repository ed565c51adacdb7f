package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"ChannelSync/internal/config"
	"ChannelSync/internal/model"
	"ChannelSync/internal/repository"
	"ChannelSync/internal/runconfig"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSettingsService(t *testing.T) *SettingsService {
	t.Helper()
	db := openTestDB(t)
	return NewSettingsService(repository.NewSettingsRepository(db), repository.NewGroupRepository(db), quietLogger())
}

func TestSeedDefaultsKeepsExisting(t *testing.T) {
	ctx := context.Background()
	s := newSettingsService(t)
	cfg := &config.Config{Timezone: "America/New_York"}
	cfg.Defaults.Numbering = config.NumberingDefaults{NumberingMode: "rational_block", RangeStart: 500, RangeEnd: 999}
	cfg.Defaults.Lifecycle = config.LifecycleDefaults{CreateTiming: "day_before", DeleteTiming: "6_hours_after"}

	require.NoError(t, s.SeedDefaults(ctx, cfg))
	n, err := s.GetNumbering(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.NumberingRationalBlock, n.NumberingMode)
	assert.Equal(t, 500, n.RangeStart)
	require.NotNil(t, n.RangeEnd)
	assert.Equal(t, 999, *n.RangeEnd)

	_, err = s.UpdateNumbering(ctx, model.ChannelNumberingSettings{NumberingMode: model.NumberingStrictCompact, RangeStart: 10})
	require.NoError(t, err)
	require.NoError(t, s.SeedDefaults(ctx, cfg))
	n, err = s.GetNumbering(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.NumberingStrictCompact, n.NumberingMode, "已有设置不被种子覆盖")

	l, err := s.GetLifecycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", l.Timezone)

	cfg.Defaults.Lifecycle.DeleteTiming = "whenever"
	assert.Error(t, newSettingsService(t).SeedDefaults(ctx, cfg))
}

func TestUpdateNumberingRejectsConflicts(t *testing.T) {
	ctx := context.Background()
	s := newSettingsService(t)

	_, err := s.UpdateNumbering(ctx, model.ChannelNumberingSettings{
		NumberingMode: model.NumberingStrictBlock, SortingScope: model.ScopeGlobal, RangeStart: 100,
	})
	var cfgErr *runconfig.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "sorting_scope", cfgErr.Field)

	_, err = s.UpdateNumbering(ctx, model.ChannelNumberingSettings{
		NumberingMode: model.NumberingRationalBlock, SortingScope: model.ScopeGlobal, SortBy: model.SortByTime, RangeStart: 100,
	})
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "sort_by", cfgErr.Field)

	// global 未指定 sort_by 时补成 sport_league_time
	n, err := s.UpdateNumbering(ctx, model.ChannelNumberingSettings{
		NumberingMode: model.NumberingRationalBlock, SortingScope: model.ScopeGlobal, RangeStart: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, model.SortBySportLeagueTime, n.SortBy)
}

func TestUpdateNumberingKeepsManualGroupsInRange(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	groups := repository.NewGroupRepository(db)
	s := NewSettingsService(repository.NewSettingsRepository(db), groups, quietLogger())

	_, err := s.UpdateNumbering(ctx, model.ChannelNumberingSettings{NumberingMode: model.NumberingStrictBlock, RangeStart: 100})
	require.NoError(t, err)
	start := 150
	manual := &model.EventGroup{Name: "nhl", Enabled: true, ChannelAssignmentMode: model.AssignmentManual, ChannelStartNumber: &start}
	require.NoError(t, groups.Create(ctx, manual))

	_, err = s.UpdateNumbering(ctx, model.ChannelNumberingSettings{NumberingMode: model.NumberingStrictBlock, RangeStart: 200})
	var cfgErr *runconfig.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "channel_start_number", cfgErr.Field)
	assert.Equal(t, manual.ID, cfgErr.GroupID)

	end := 140
	_, err = s.UpdateNumbering(ctx, model.ChannelNumberingSettings{NumberingMode: model.NumberingStrictBlock, RangeStart: 100, RangeEnd: &end})
	require.True(t, errors.As(err, &cfgErr))

	// 被拒绝的保存不落库，下一次运行仍能构建配置
	n, err := s.GetNumbering(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, n.RangeStart)
	assert.Nil(t, n.RangeEnd)
	all, err := groups.List(ctx)
	require.NoError(t, err)
	_, err = runconfig.Build(runconfig.Snapshot{Groups: all, Numbering: n}, time.Now())
	require.NoError(t, err)

	_, err = s.UpdateNumbering(ctx, model.ChannelNumberingSettings{NumberingMode: model.NumberingStrictBlock, RangeStart: 120})
	require.NoError(t, err)
}

func TestUpdateLifecycleValidates(t *testing.T) {
	ctx := context.Background()
	s := newSettingsService(t)

	_, err := s.UpdateLifecycle(ctx, model.LifecycleSettings{CreateTiming: "3_days_before", DeleteTiming: "2_days_after", Timezone: "Europe/London"})
	require.NoError(t, err)
	_, err = s.UpdateLifecycle(ctx, model.LifecycleSettings{CreateTiming: "later", DeleteTiming: "same_day"})
	assert.Error(t, err)
	_, err = s.UpdateLifecycle(ctx, model.LifecycleSettings{DeleteTiming: "same_day", Timezone: "Nowhere/City"})
	assert.Error(t, err)

	l, err := s.GetLifecycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, "3_days_before", l.CreateTiming)
}

func TestReplaceExceptionKeywords(t *testing.T) {
	ctx := context.Background()
	s := newSettingsService(t)

	list, err := s.ReplaceExceptionKeywords(ctx, []model.ExceptionKeyword{
		{Label: "spanish", Keywords: []string{" ESP ", "Spanish", ""}, Behavior: model.DuplicateConsolidate, Priority: 2, Enabled: true},
		{Label: "4k", Keywords: []string{"4K", "UHD"}, Behavior: model.DuplicateSeparate, Priority: 1, Enabled: true},
	})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "4k", list[0].Label)
	assert.Equal(t, []string{"ESP", "Spanish"}, []string(list[1].Keywords))

	_, err = s.ReplaceExceptionKeywords(ctx, []model.ExceptionKeyword{
		{Label: "4K", Keywords: []string{"4K"}, Behavior: model.DuplicateIgnore},
		{Label: "4k", Keywords: []string{"UHD"}, Behavior: model.DuplicateIgnore},
	})
	assert.Error(t, err)
	_, err = s.ReplaceExceptionKeywords(ctx, []model.ExceptionKeyword{{Label: "x", Keywords: []string{"x"}, Behavior: "merge"}})
	assert.Error(t, err)

	list, err = s.ListExceptionKeywords(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2, "校验失败不改动已有数据")
}

func TestReplaceSortPriorities(t *testing.T) {
	ctx := context.Background()
	s := newSettingsService(t)

	list, err := s.ReplaceSortPriorities(ctx, []model.SortPriority{
		{Kind: model.PrioritySport, Key: " Football ", Rank: 1},
		{Kind: model.PriorityLeague, Key: "NFL", Rank: 1},
		{Kind: model.PriorityLeague, Key: "ncaaf", Rank: 2},
	})
	require.NoError(t, err)
	require.Len(t, list, 3)
	keys := make([]string, 0, len(list))
	for _, p := range list {
		keys = append(keys, p.Key)
	}
	assert.ElementsMatch(t, []string{"football", "nfl", "ncaaf"}, keys)

	_, err = s.ReplaceSortPriorities(ctx, []model.SortPriority{{Kind: "team", Key: "x"}})
	assert.Error(t, err)
	_, err = s.ReplaceSortPriorities(ctx, []model.SortPriority{
		{Kind: model.PriorityLeague, Key: "NFL"}, {Kind: model.PriorityLeague, Key: "nfl"},
	})
	assert.Error(t, err)
}

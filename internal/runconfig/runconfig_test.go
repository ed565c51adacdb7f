package runconfig

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"ChannelSync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func ptr[T any](v T) *T { return &v }

func baseSnapshot(groups ...model.EventGroup) Snapshot {
	return Snapshot{
		Groups:    groups,
		Numbering: model.ChannelNumberingSettings{NumberingMode: model.NumberingStrictBlock, RangeStart: 100},
		Lifecycle: model.LifecycleSettings{CreateTiming: "same_day", DeleteTiming: "same_day", Timezone: "America/New_York"},
	}
}

func TestBuildResolvesChildInheritance(t *testing.T) {
	parent := model.EventGroup{
		ID: 1, Name: "NFL", Enabled: true, SortOrder: 2,
		Leagues:                datatypes.JSONSlice[string]{"nfl"},
		ChannelGroupID:         ptr(uint64(9)),
		ChannelProfileIDs:      datatypes.JSONSlice[uint64]{3, 4},
		DuplicateEventHandling: model.DuplicateSeparate,
		TemplateID:             ptr(uint64(7)),
	}
	child := model.EventGroup{
		ID: 2, Name: "NFL backup", Enabled: true, SortOrder: 1,
		ParentGroupID:          ptr(uint64(1)),
		DisplayName:            ptr("Backup"),
		DuplicateEventHandling: model.DuplicateIgnore,
		ExtractionPatterns:     datatypes.NewJSONType(model.ExtractionPatterns{ExcludeRegex: `(?i)replay`}),
	}

	cfg, err := Build(baseSnapshot(parent, child), time.Now())
	require.NoError(t, err)

	got, ok := cfg.Group(2)
	require.True(t, ok)
	assert.True(t, got.IsChild())
	assert.Equal(t, model.DuplicateSeparate, got.DuplicateHandling)
	assert.Equal(t, []string{"nfl"}, got.Leagues)
	assert.Equal(t, uint64(9), *got.ChannelGroupID)
	assert.Equal(t, []uint64{3, 4}, got.ChannelProfileIDs)
	assert.Equal(t, uint64(7), *got.TemplateID)
	assert.Equal(t, "Backup", got.Label())
	assert.Equal(t, `(?i)replay`, got.Patterns.ExcludeRegex)

	require.Len(t, cfg.TopLevel(), 1)
	assert.Len(t, cfg.Children(1), 1)
	assert.Len(t, cfg.Active(), 2)
	assert.Empty(t, cfg.Warnings)
}

func TestBuildIgnoresChildOfDisabledParent(t *testing.T) {
	parent := model.EventGroup{ID: 1, Name: "NBA", Enabled: false}
	child := model.EventGroup{ID: 2, Name: "NBA alt", Enabled: true, ParentGroupID: ptr(uint64(1))}
	orphan := model.EventGroup{ID: 3, Name: "orphan", Enabled: true, ParentGroupID: ptr(uint64(42))}

	cfg, err := Build(baseSnapshot(parent, child, orphan), time.Now())
	require.NoError(t, err)
	assert.Empty(t, cfg.Active())
	assert.Len(t, cfg.Warnings, 2)
}

func TestBuildOrdersGroupsBySortOrderThenID(t *testing.T) {
	cfg, err := Build(baseSnapshot(
		model.EventGroup{ID: 5, Name: "e", Enabled: true, SortOrder: 1},
		model.EventGroup{ID: 3, Name: "c", Enabled: true, SortOrder: 1},
		model.EventGroup{ID: 9, Name: "i", Enabled: true, SortOrder: 0},
	), time.Now())
	require.NoError(t, err)
	var ids []uint64
	for _, g := range cfg.TopLevel() {
		ids = append(ids, g.ID)
	}
	assert.Equal(t, []uint64{9, 3, 5}, ids)
}

func TestBuildRejectsBadRegex(t *testing.T) {
	g := model.EventGroup{ID: 1, Name: "bad", Enabled: true,
		ExtractionPatterns: datatypes.NewJSONType(model.ExtractionPatterns{IncludeRegex: `(`})}
	_, err := Build(baseSnapshot(g), time.Now())
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, uint64(1), ce.GroupID)
	assert.Equal(t, "extraction_patterns", ce.Field)
}

func TestValidateNumberingConflicts(t *testing.T) {
	cases := []struct {
		name  string
		in    model.ChannelNumberingSettings
		field string
	}{
		{"strict block global", model.ChannelNumberingSettings{NumberingMode: model.NumberingStrictBlock, SortingScope: model.ScopeGlobal, SortBy: model.SortBySportLeagueTime, RangeStart: 1, BlockStep: 10}, "sorting_scope"},
		{"global by time", model.ChannelNumberingSettings{NumberingMode: model.NumberingRationalBlock, SortingScope: model.ScopeGlobal, SortBy: model.SortByTime, RangeStart: 1, BlockStep: 10}, "sort_by"},
		{"inverted range", model.ChannelNumberingSettings{NumberingMode: model.NumberingStrictCompact, SortingScope: model.ScopePerGroup, SortBy: model.SortByTime, RangeStart: 50, RangeEnd: ptr(10), BlockStep: 10}, "range_end"},
		{"unknown mode", model.ChannelNumberingSettings{NumberingMode: "loose", SortingScope: model.ScopePerGroup, SortBy: model.SortByTime, RangeStart: 1, BlockStep: 10}, "numbering_mode"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateNumbering(tc.in)
			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tc.field, ce.Field)
		})
	}

	ok := NormalizeNumbering(model.ChannelNumberingSettings{NumberingMode: model.NumberingRationalBlock, SortingScope: model.ScopeGlobal})
	assert.Equal(t, model.SortBySportLeagueTime, ok.SortBy)
	assert.NoError(t, ValidateNumbering(ok))
}

func TestValidateGroupHierarchy(t *testing.T) {
	numbering := model.ChannelNumberingSettings{RangeStart: 1}
	parent := model.EventGroup{ID: 1, Name: "p", Enabled: true}
	child := model.EventGroup{ID: 2, Name: "c", Enabled: true, ParentGroupID: ptr(uint64(1))}
	grandchild := model.EventGroup{ID: 3, Name: "g", Enabled: true, ParentGroupID: ptr(uint64(2))}
	all := []model.EventGroup{parent, child, grandchild}

	assert.NoError(t, ValidateGroup(child, all[:2], numbering))
	assert.Error(t, ValidateGroup(grandchild, all, numbering))

	missing := model.EventGroup{ID: 4, Name: "m", ParentGroupID: ptr(uint64(99))}
	assert.Error(t, ValidateGroup(missing, append(all, missing), numbering))

	multiChild := model.EventGroup{ID: 5, Name: "mc", GroupMode: model.GroupModeMulti, ParentGroupID: ptr(uint64(1))}
	assert.Error(t, ValidateGroup(multiChild, append(all, multiChild), numbering))

	// 已有子组的组不能变成子组
	reparent := child
	reparent.ID = 1
	reparent.ParentGroupID = ptr(uint64(6))
	other := model.EventGroup{ID: 6, Name: "o"}
	assert.Error(t, ValidateGroup(reparent, []model.EventGroup{reparent, child, other}, numbering))
}

func TestValidateManualGroupNeedsStart(t *testing.T) {
	numbering := model.ChannelNumberingSettings{RangeStart: 100, RangeEnd: ptr(200)}
	g := model.EventGroup{ID: 1, Name: "m", ChannelAssignmentMode: model.AssignmentManual}
	assert.Error(t, ValidateGroup(g, []model.EventGroup{g}, numbering))

	g.ChannelStartNumber = ptr(250)
	assert.Error(t, ValidateGroup(g, []model.EventGroup{g}, numbering))

	g.ChannelStartNumber = ptr(150)
	assert.NoError(t, ValidateGroup(g, []model.EventGroup{g}, numbering))
}

func TestValidateGroupsForNumbering(t *testing.T) {
	groups := []model.EventGroup{
		{ID: 1, Name: "auto"},
		{ID: 2, Name: "m", ChannelAssignmentMode: model.AssignmentManual, ChannelStartNumber: ptr(150)},
	}
	assert.NoError(t, ValidateGroupsForNumbering(groups, model.ChannelNumberingSettings{RangeStart: 100}))

	err := ValidateGroupsForNumbering(groups, model.ChannelNumberingSettings{RangeStart: 200})
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, uint64(2), cfgErr.GroupID)
	assert.Equal(t, "channel_start_number", cfgErr.Field)
}

func TestParseTimings(t *testing.T) {
	c, err := ParseCreateTiming("3_days_before")
	require.NoError(t, err)
	assert.Equal(t, Timing{Kind: TimingDaysBefore, Offset: 3, Raw: "3_days_before"}, c)

	c, err = ParseCreateTiming("1_week_before")
	require.NoError(t, err)
	assert.Equal(t, 7, c.Offset)

	d, err := ParseDeleteTiming("6_hours_after")
	require.NoError(t, err)
	assert.Equal(t, TimingHoursAfter, d.Kind)
	assert.Equal(t, 6, d.Offset)

	d, err = ParseDeleteTiming("")
	require.NoError(t, err)
	assert.Equal(t, TimingSameDay, d.Kind)

	_, err = ParseDeleteTiming("2_days_before")
	assert.Error(t, err)
	_, err = ParseCreateTiming("0_days_before")
	assert.Error(t, err)
}

func TestExceptionKeywordsSortedAndFiltered(t *testing.T) {
	s := baseSnapshot()
	s.ExceptionKeywords = []model.ExceptionKeyword{
		{ID: 1, Label: "es", Keywords: datatypes.JSONSlice[string]{"spanish"}, Priority: 2, Enabled: true},
		{ID: 2, Label: "4k", Keywords: datatypes.JSONSlice[string]{"4k", "uhd"}, Priority: 1, Enabled: true},
		{ID: 3, Label: "off", Keywords: datatypes.JSONSlice[string]{"x"}, Priority: 0, Enabled: false},
	}
	s.SortPriorities = []model.SortPriority{{Kind: model.PriorityLeague, Key: "NFL", Rank: 1}}
	cfg, err := Build(s, time.Now())
	require.NoError(t, err)
	require.Len(t, cfg.ExceptionKeywords, 2)
	assert.Equal(t, "4k", cfg.ExceptionKeywords[0].Label)
	assert.Equal(t, 1, cfg.Ranks.LeagueRank("nfl"))
	assert.Equal(t, Unranked, cfg.Ranks.SportRank("football"))
}

func TestGenerationChangesWithPatterns(t *testing.T) {
	g := model.EventGroup{ID: 1, Name: "a", Enabled: true}
	a, err := Build(baseSnapshot(g), time.Now())
	require.NoError(t, err)
	g.ExtractionPatterns = datatypes.NewJSONType(model.ExtractionPatterns{ExcludeRegex: "x"})
	b, err := Build(baseSnapshot(g), time.Now())
	require.NoError(t, err)
	assert.NotEqual(t, a.Generation, b.Generation)
}

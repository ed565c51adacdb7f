package runconfig

import (
	"ChannelSync/internal/extraction"
	"ChannelSync/internal/model"
)

// DefaultBlockStep strict_block 容量估算的取整单位
const DefaultBlockStep = 10

// NormalizeNumbering 补齐缺省值
func NormalizeNumbering(n model.ChannelNumberingSettings) model.ChannelNumberingSettings {
	if n.NumberingMode == "" {
		n.NumberingMode = model.NumberingStrictBlock
	}
	if n.SortingScope == "" {
		n.SortingScope = model.ScopePerGroup
	}
	if n.SortBy == "" {
		if n.SortingScope == model.ScopeGlobal {
			n.SortBy = model.SortBySportLeagueTime
		} else {
			n.SortBy = model.SortByTime
		}
	}
	if n.RangeStart == 0 {
		n.RangeStart = 1
	}
	if n.BlockStep <= 0 {
		n.BlockStep = DefaultBlockStep
	}
	return n
}

// ValidateNumbering strict_block 只能 per_group；global 只能 sport_league_time
func ValidateNumbering(n model.ChannelNumberingSettings) error {
	switch n.NumberingMode {
	case model.NumberingStrictBlock, model.NumberingRationalBlock, model.NumberingStrictCompact:
	default:
		return settingErr("numbering_mode", "未知的编号模式 %q", n.NumberingMode)
	}
	switch n.SortingScope {
	case model.ScopePerGroup, model.ScopeGlobal:
	default:
		return settingErr("sorting_scope", "未知的排序范围 %q", n.SortingScope)
	}
	switch n.SortBy {
	case model.SortByTime, model.SortBySportLeagueTime, model.SortByStreamOrder:
	default:
		return settingErr("sort_by", "未知的排序依据 %q", n.SortBy)
	}
	if n.NumberingMode == model.NumberingStrictBlock && n.SortingScope != model.ScopePerGroup {
		return settingErr("sorting_scope", "strict_block 模式只支持 per_group 排序范围")
	}
	if n.SortingScope == model.ScopeGlobal && n.SortBy != model.SortBySportLeagueTime {
		return settingErr("sort_by", "global 排序范围必须使用 sport_league_time")
	}
	if n.RangeStart < 1 {
		return settingErr("range_start", "起始频道号必须 >= 1，当前 %d", n.RangeStart)
	}
	if n.RangeEnd != nil && *n.RangeEnd < n.RangeStart {
		return settingErr("range_end", "结束频道号 %d 小于起始频道号 %d", *n.RangeEnd, n.RangeStart)
	}
	if n.BlockStep < 1 {
		return settingErr("block_step", "block_step 必须 >= 1")
	}
	return nil
}

// ValidateLifecycle 校验创建/删除时机与时区
func ValidateLifecycle(l model.LifecycleSettings) error {
	if _, err := ParseCreateTiming(l.CreateTiming); err != nil {
		return err
	}
	if _, err := ParseDeleteTiming(l.DeleteTiming); err != nil {
		return err
	}
	_, err := LoadLocation(l.Timezone)
	return err
}

// ValidateExceptionKeyword 例外关键词必须有 label、关键词和合法行为
func ValidateExceptionKeyword(k model.ExceptionKeyword) error {
	if k.Label == "" {
		return settingErr("label", "例外关键词缺少 label")
	}
	if len(k.Keywords) == 0 {
		return settingErr("keywords", "例外关键词 %s 没有关键词", k.Label)
	}
	switch k.Behavior {
	case model.DuplicateConsolidate, model.DuplicateSeparate, model.DuplicateIgnore:
	default:
		return settingErr("behavior", "例外关键词 %s 的行为 %q 无效", k.Label, k.Behavior)
	}
	return nil
}

// ValidateGroup 保存赛事组前的完整校验。all 为保存后的全部组（含 g 自身）。
func ValidateGroup(g model.EventGroup, all []model.EventGroup, numbering model.ChannelNumberingSettings) error {
	if g.Name == "" {
		return groupErr(g.ID, "name", "组名不能为空")
	}
	if err := validateGroupFields(g, NormalizeNumbering(numbering)); err != nil {
		return err
	}
	if _, err := extraction.Compile(g.Patterns()); err != nil {
		return groupErr(g.ID, "extraction_patterns", "%v", err)
	}

	if g.IsChild() {
		if g.ID != 0 && *g.ParentGroupID == g.ID {
			return groupErr(g.ID, "parent_group_id", "不能把自己设为父组")
		}
		var parent *model.EventGroup
		for i := range all {
			if all[i].ID == *g.ParentGroupID {
				parent = &all[i]
				break
			}
		}
		if parent == nil {
			return groupErr(g.ID, "parent_group_id", "父组%d不存在", *g.ParentGroupID)
		}
		if parent.IsChild() {
			return groupErr(g.ID, "parent_group_id", "父组%d本身是子组，层级最多一层", parent.ID)
		}
		if g.GroupMode != "" && g.GroupMode != model.GroupModeSingle {
			return groupErr(g.ID, "group_mode", "子组必须是 single 模式")
		}
	}

	if g.ID != 0 && g.IsChild() {
		for _, other := range all {
			if other.ParentGroupID != nil && *other.ParentGroupID == g.ID {
				return groupErr(g.ID, "parent_group_id", "组%d已有子组，不能再设为子组", g.ID)
			}
		}
	}
	return nil
}

// ValidateGroupsForNumbering 用新的编号设置逐组检查构建 RunConfig 时会做的字段校验
func ValidateGroupsForNumbering(groups []model.EventGroup, numbering model.ChannelNumberingSettings) error {
	numbering = NormalizeNumbering(numbering)
	for _, g := range groups {
		if err := validateGroupFields(g, numbering); err != nil {
			return err
		}
	}
	return nil
}

// validateGroupFields 单组的枚举与编号字段
func validateGroupFields(g model.EventGroup, numbering model.ChannelNumberingSettings) error {
	if g.GroupMode != "" && g.GroupMode != model.GroupModeSingle && g.GroupMode != model.GroupModeMulti {
		return groupErr(g.ID, "group_mode", "未知模式 %q", g.GroupMode)
	}
	switch g.ChannelAssignmentMode {
	case "", model.AssignmentAuto:
	case model.AssignmentManual:
		if !g.IsChild() {
			if g.ChannelStartNumber == nil {
				return groupErr(g.ID, "channel_start_number", "manual 分配必须设置起始频道号")
			}
			if *g.ChannelStartNumber < numbering.RangeStart ||
				(numbering.RangeEnd != nil && *g.ChannelStartNumber > *numbering.RangeEnd) {
				return groupErr(g.ID, "channel_start_number", "起始频道号 %d 超出编号区间", *g.ChannelStartNumber)
			}
		}
	default:
		return groupErr(g.ID, "channel_assignment_mode", "未知分配方式 %q", g.ChannelAssignmentMode)
	}
	switch g.DuplicateEventHandling {
	case "", model.DuplicateConsolidate, model.DuplicateSeparate, model.DuplicateIgnore:
	default:
		return groupErr(g.ID, "duplicate_event_handling", "未知策略 %q", g.DuplicateEventHandling)
	}
	switch g.OverlapHandling {
	case "", model.OverlapAddStream, model.OverlapAddOnly, model.OverlapCreateAll, model.OverlapSkip:
	default:
		return groupErr(g.ID, "overlap_handling", "未知策略 %q", g.OverlapHandling)
	}
	switch g.TeamFilterMode {
	case "", model.TeamFilterInclude, model.TeamFilterExclude:
	default:
		return groupErr(g.ID, "team_filter_mode", "未知过滤方式 %q", g.TeamFilterMode)
	}
	if g.SoccerMode != nil {
		switch *g.SoccerMode {
		case model.SoccerAll, model.SoccerTeams, model.SoccerManual:
		default:
			return groupErr(g.ID, "soccer_mode", "未知足球模式 %q", *g.SoccerMode)
		}
	}
	if g.MaxChannels != nil && *g.MaxChannels < 1 {
		return groupErr(g.ID, "max_channels", "max_channels 必须 >= 1")
	}
	return nil
}

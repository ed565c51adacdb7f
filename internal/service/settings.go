package service

import (
	"context"
	"fmt"
	"strings"

	"ChannelSync/internal/config"
	"ChannelSync/internal/model"
	"ChannelSync/internal/repository"
	"ChannelSync/internal/runconfig"

	"github.com/sirupsen/logrus"
)

// SettingsService 全局设置读写。保存前校验，改动只影响下一次运行。
type SettingsService struct {
	repo   repository.SettingsRepository
	groups repository.GroupRepository
	logger *logrus.Logger
}

func NewSettingsService(repo repository.SettingsRepository, groups repository.GroupRepository, logger *logrus.Logger) *SettingsService {
	return &SettingsService{repo: repo, groups: groups, logger: logger}
}

// SeedDefaults 首次启动时写入配置文件里的缺省值，已有记录不覆盖
func (s *SettingsService) SeedDefaults(ctx context.Context, cfg *config.Config) error {
	d := cfg.Defaults
	numbering := model.ChannelNumberingSettings{
		NumberingMode: model.NumberingMode(d.Numbering.NumberingMode),
		SortingScope:  model.SortingScope(d.Numbering.SortingScope),
		SortBy:        model.SortBy(d.Numbering.SortBy),
		RangeStart:    d.Numbering.RangeStart,
		BlockStep:     d.Numbering.BlockStep,
	}
	if d.Numbering.RangeEnd > 0 {
		end := d.Numbering.RangeEnd
		numbering.RangeEnd = &end
	}
	numbering = runconfig.NormalizeNumbering(numbering)
	if err := runconfig.ValidateNumbering(numbering); err != nil {
		return fmt.Errorf("默认编号设置无效: %w", err)
	}
	lifecycle := model.LifecycleSettings{
		CreateTiming: d.Lifecycle.CreateTiming,
		DeleteTiming: d.Lifecycle.DeleteTiming,
		Timezone:     cfg.Timezone,
	}
	if err := runconfig.ValidateLifecycle(lifecycle); err != nil {
		return fmt.Errorf("默认生命周期设置无效: %w", err)
	}
	return s.repo.EnsureDefaults(ctx, numbering, lifecycle)
}

func (s *SettingsService) GetNumbering(ctx context.Context) (model.ChannelNumberingSettings, error) {
	n, err := s.repo.GetNumbering(ctx)
	if err != nil {
		return n, err
	}
	return runconfig.NormalizeNumbering(n), nil
}

// UpdateNumbering 冲突组合（strict_block+global、global 非 sport_league_time）直接拒绝。
// 新区间还要容得下现有 manual 组的起始频道号，否则之后每次运行都会因配置错误失败。
func (s *SettingsService) UpdateNumbering(ctx context.Context, n model.ChannelNumberingSettings) (model.ChannelNumberingSettings, error) {
	n = runconfig.NormalizeNumbering(n)
	if err := runconfig.ValidateNumbering(n); err != nil {
		return n, err
	}
	groups, err := s.groups.List(ctx)
	if err != nil {
		return n, err
	}
	if err := runconfig.ValidateGroupsForNumbering(groups, n); err != nil {
		return n, err
	}
	if err := s.repo.SaveNumbering(ctx, n); err != nil {
		return n, err
	}
	s.logger.WithFields(logrus.Fields{
		"mode":  n.NumberingMode,
		"scope": n.SortingScope,
		"sort":  n.SortBy,
		"start": n.RangeStart,
	}).Info("编号设置已更新")
	return n, nil
}

func (s *SettingsService) GetLifecycle(ctx context.Context) (model.LifecycleSettings, error) {
	return s.repo.GetLifecycle(ctx)
}

func (s *SettingsService) UpdateLifecycle(ctx context.Context, l model.LifecycleSettings) (model.LifecycleSettings, error) {
	l.CreateTiming = strings.TrimSpace(l.CreateTiming)
	l.DeleteTiming = strings.TrimSpace(l.DeleteTiming)
	if err := runconfig.ValidateLifecycle(l); err != nil {
		return l, err
	}
	if err := s.repo.SaveLifecycle(ctx, l); err != nil {
		return l, err
	}
	s.logger.WithFields(logrus.Fields{"create": l.CreateTiming, "delete": l.DeleteTiming, "tz": l.Timezone}).Info("生命周期设置已更新")
	return l, nil
}

func (s *SettingsService) ListExceptionKeywords(ctx context.Context) ([]model.ExceptionKeyword, error) {
	return s.repo.ListExceptionKeywords(ctx)
}

// ReplaceExceptionKeywords 整表替换；label 不可重复
func (s *SettingsService) ReplaceExceptionKeywords(ctx context.Context, list []model.ExceptionKeyword) ([]model.ExceptionKeyword, error) {
	seen := make(map[string]struct{}, len(list))
	for i := range list {
		k := &list[i]
		k.ID = 0
		k.Label = strings.TrimSpace(k.Label)
		kws := k.Keywords[:0]
		for _, w := range k.Keywords {
			if w = strings.TrimSpace(w); w != "" {
				kws = append(kws, w)
			}
		}
		k.Keywords = kws
		if err := runconfig.ValidateExceptionKeyword(*k); err != nil {
			return nil, err
		}
		key := strings.ToLower(k.Label)
		if _, dup := seen[key]; dup {
			return nil, &runconfig.ConfigError{Field: "label", Reason: fmt.Sprintf("例外关键词 label %s 重复", k.Label)}
		}
		seen[key] = struct{}{}
	}
	if err := s.repo.ReplaceExceptionKeywords(ctx, list); err != nil {
		return nil, err
	}
	return s.repo.ListExceptionKeywords(ctx)
}

func (s *SettingsService) ListSortPriorities(ctx context.Context) ([]model.SortPriority, error) {
	return s.repo.ListSortPriorities(ctx)
}

// ReplaceSortPriorities 整表替换；key 统一小写，(kind, key) 不可重复
func (s *SettingsService) ReplaceSortPriorities(ctx context.Context, list []model.SortPriority) ([]model.SortPriority, error) {
	type pk struct {
		kind model.SortPriorityKind
		key  string
	}
	seen := make(map[pk]struct{}, len(list))
	for i := range list {
		p := &list[i]
		p.ID = 0
		p.Key = strings.ToLower(strings.TrimSpace(p.Key))
		switch p.Kind {
		case model.PrioritySport, model.PriorityLeague:
		default:
			return nil, &runconfig.ConfigError{Field: "kind", Reason: fmt.Sprintf("未知的优先级维度 %q", p.Kind)}
		}
		if p.Key == "" {
			return nil, &runconfig.ConfigError{Field: "key", Reason: "优先级 key 不能为空"}
		}
		k := pk{p.Kind, p.Key}
		if _, dup := seen[k]; dup {
			return nil, &runconfig.ConfigError{Field: "key", Reason: fmt.Sprintf("%s %s 重复", p.Kind, p.Key)}
		}
		seen[k] = struct{}{}
	}
	if err := s.repo.ReplaceSortPriorities(ctx, list); err != nil {
		return nil, err
	}
	return s.repo.ListSortPriorities(ctx)
}

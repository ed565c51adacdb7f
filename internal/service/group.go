package service

import (
	"context"
	"fmt"
	"os"
	"strings"

	"ChannelSync/internal/model"
	"ChannelSync/internal/repository"
	"ChannelSync/internal/runconfig"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
)

// GroupService 赛事组增删改查与 YAML 导入
type GroupService struct {
	repo     repository.GroupRepository
	settings repository.SettingsRepository
	logger   *logrus.Logger
}

func NewGroupService(repo repository.GroupRepository, settings repository.SettingsRepository, logger *logrus.Logger) *GroupService {
	return &GroupService{repo: repo, settings: settings, logger: logger}
}

func (s *GroupService) List(ctx context.Context) ([]model.EventGroup, error) {
	return s.repo.List(ctx)
}

func (s *GroupService) Get(ctx context.Context, id uint64) (*model.EventGroup, error) {
	return s.repo.Get(ctx, id)
}

func (s *GroupService) Create(ctx context.Context, g *model.EventGroup) error {
	g.ID = 0
	numbering, err := s.settings.GetNumbering(ctx)
	if err != nil {
		return err
	}
	if err := s.validate(ctx, s.repo, g, numbering); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"group_id": g.ID, "name": g.Name}).Info("赛事组已创建")
	return nil
}

func (s *GroupService) Update(ctx context.Context, g *model.EventGroup) error {
	if _, err := s.repo.Get(ctx, g.ID); err != nil {
		return err
	}
	numbering, err := s.settings.GetNumbering(ctx)
	if err != nil {
		return err
	}
	if err := s.validate(ctx, s.repo, g, numbering); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, g); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{"group_id": g.ID, "name": g.Name}).Info("赛事组已更新")
	return nil
}

// Delete 有子组的父组不能删除；组下的频道在下一轮按删除时机下线
func (s *GroupService) Delete(ctx context.Context, id uint64) error {
	all, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	for _, g := range all {
		if g.ParentGroupID != nil && *g.ParentGroupID == id {
			return &runconfig.ConfigError{GroupID: id, Field: "parent_group_id", Reason: fmt.Sprintf("仍有子组%d(%s)，不能删除", g.ID, g.Name)}
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("group_id", id).Info("赛事组已删除")
	return nil
}

// validate 用保存后的组列表做整体校验
func (s *GroupService) validate(ctx context.Context, repo repository.GroupRepository, g *model.EventGroup, numbering model.ChannelNumberingSettings) error {
	g.Name = strings.TrimSpace(g.Name)
	all, err := repo.List(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range all {
		if g.ID != 0 && all[i].ID == g.ID {
			all[i] = *g
			replaced = true
		}
	}
	if !replaced {
		all = append(all, *g)
	}
	return runconfig.ValidateGroup(*g, all, numbering)
}

// groupFile 导入文件格式
type groupFile struct {
	Groups []groupSpec `yaml:"groups"`
}

// groupSpec YAML 里的赛事组，父组按名称引用
type groupSpec struct {
	Name                   string                   `yaml:"name"`
	DisplayName            *string                  `yaml:"display_name"`
	Parent                 string                   `yaml:"parent"`
	Leagues                []string                 `yaml:"leagues"`
	GroupMode              model.GroupMode          `yaml:"group_mode"`
	TemplateID             *uint64                  `yaml:"template_id"`
	SourceGroup            string                   `yaml:"source_group"`
	ChannelGroupID         *uint64                  `yaml:"channel_group_id"`
	ChannelProfileIDs      []uint64                 `yaml:"channel_profile_ids"`
	ChannelAssignmentMode  model.AssignmentMode     `yaml:"channel_assignment_mode"`
	ChannelStartNumber     *int                     `yaml:"channel_start_number"`
	MaxChannels            *int                     `yaml:"max_channels"`
	DuplicateEventHandling model.DuplicateHandling  `yaml:"duplicate_event_handling"`
	OverlapHandling        model.OverlapHandling    `yaml:"overlap_handling"`
	ChannelSortOrder       model.ChannelSortOrder   `yaml:"channel_sort_order"`
	ExtractionPatterns     model.ExtractionPatterns `yaml:"extraction_patterns"`
	SkipBuiltinFilter      bool                     `yaml:"skip_builtin_filter"`
	IncludeTeams           []string                 `yaml:"include_teams"`
	ExcludeTeams           []string                 `yaml:"exclude_teams"`
	TeamFilterMode         model.TeamFilterMode     `yaml:"team_filter_mode"`
	SoccerMode             *model.SoccerMode        `yaml:"soccer_mode"`
	Enabled                *bool                    `yaml:"enabled"`
	SortOrder              int                      `yaml:"sort_order"`
}

func (gs groupSpec) toModel() model.EventGroup {
	enabled := true
	if gs.Enabled != nil {
		enabled = *gs.Enabled
	}
	return model.EventGroup{
		Name:                   strings.TrimSpace(gs.Name),
		DisplayName:            gs.DisplayName,
		Leagues:                datatypes.JSONSlice[string](gs.Leagues),
		GroupMode:              orDefault(gs.GroupMode, model.GroupModeSingle),
		TemplateID:             gs.TemplateID,
		SourceGroup:            gs.SourceGroup,
		ChannelGroupID:         gs.ChannelGroupID,
		ChannelProfileIDs:      datatypes.JSONSlice[uint64](gs.ChannelProfileIDs),
		ChannelAssignmentMode:  orDefault(gs.ChannelAssignmentMode, model.AssignmentAuto),
		ChannelStartNumber:     gs.ChannelStartNumber,
		MaxChannels:            gs.MaxChannels,
		DuplicateEventHandling: orDefault(gs.DuplicateEventHandling, model.DuplicateConsolidate),
		OverlapHandling:        orDefault(gs.OverlapHandling, model.OverlapAddStream),
		ChannelSortOrder:       orDefault(gs.ChannelSortOrder, model.SortOrderTime),
		ExtractionPatterns:     datatypes.NewJSONType(gs.ExtractionPatterns),
		SkipBuiltinFilter:      gs.SkipBuiltinFilter,
		IncludeTeams:           datatypes.JSONSlice[string](gs.IncludeTeams),
		ExcludeTeams:           datatypes.JSONSlice[string](gs.ExcludeTeams),
		TeamFilterMode:         orDefault(gs.TeamFilterMode, model.TeamFilterInclude),
		SoccerMode:             gs.SoccerMode,
		Enabled:                enabled,
		SortOrder:              gs.SortOrder,
	}
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}

// ImportYAML 按组名导入/覆盖赛事组。先父组后子组，全部在一个事务里，任何一个组校验失败整体回滚。
func (s *GroupService) ImportYAML(ctx context.Context, data []byte) (int, error) {
	var f groupFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, &runconfig.ConfigError{Field: "yaml", Reason: fmt.Sprintf("解析赛事组YAML失败: %v", err)}
	}
	seen := make(map[string]struct{}, len(f.Groups))
	for _, gs := range f.Groups {
		name := strings.TrimSpace(gs.Name)
		if name == "" {
			return 0, &runconfig.ConfigError{Field: "name", Reason: "导入的赛事组缺少名称"}
		}
		if _, dup := seen[name]; dup {
			return 0, &runconfig.ConfigError{Field: "name", Reason: fmt.Sprintf("导入文件中组名%s重复", name)}
		}
		seen[name] = struct{}{}
	}

	// 事务内只走 repo，编号设置提前读出
	numbering, err := s.settings.GetNumbering(ctx)
	if err != nil {
		return 0, err
	}
	err = s.repo.Transaction(ctx, func(repo repository.GroupRepository) error {
		// 父组先落库，子组才能按名称找到 id
		for _, pass := range []bool{false, true} {
			for _, gs := range f.Groups {
				if (gs.Parent != "") != pass {
					continue
				}
				g := gs.toModel()
				if pass {
					parent, err := repo.GetByName(ctx, strings.TrimSpace(gs.Parent))
					if err != nil {
						return &runconfig.ConfigError{Field: "parent", Reason: fmt.Sprintf("组%s的父组%s不存在", g.Name, gs.Parent)}
					}
					g.ParentGroupID = &parent.ID
				}
				if existing, err := repo.GetByName(ctx, g.Name); err == nil {
					g.ID = existing.ID
				}
				if err := s.validate(ctx, repo, &g, numbering); err != nil {
					return err
				}
				if err := repo.UpsertByName(ctx, &g); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.WithField("count", len(f.Groups)).Info("赛事组导入完成")
	return len(f.Groups), nil
}

// ImportFile 启动时导入种子文件，路径为空时跳过
func (s *GroupService) ImportFile(ctx context.Context, path string) (int, error) {
	if path == "" {
		return 0, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("读取赛事组文件失败: %w", err)
	}
	return s.ImportYAML(ctx, data)
}

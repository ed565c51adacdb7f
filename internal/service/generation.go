package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"ChannelSync/internal/engine"
	"ChannelSync/internal/interfaces"
	"ChannelSync/internal/matcher"
	"ChannelSync/internal/metrics"
	"ChannelSync/internal/model"
	"ChannelSync/internal/repository"
	"ChannelSync/internal/runconfig"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// GenerationDeps 生成任务依赖；EPG 与 Metrics 可为空
type GenerationDeps struct {
	Groups     repository.GroupRepository
	Settings   repository.SettingsRepository
	Channels   repository.ChannelRepository
	Runs       repository.RunRepository
	Classifier interfaces.Classifier
	Matcher    interfaces.EventMatcher
	Provider   interfaces.ChannelProvider
	EPG        interfaces.EPGWriter
	Metrics    *metrics.GenerationMetrics

	MaxParallelGroups int
}

// GenerationService 单次生成：快照 -> 分类 -> 匹配 -> 引擎 -> 持久化 -> 下发
type GenerationService struct {
	deps   GenerationDeps
	logger *logrus.Logger
	now    func() time.Time
	newID  func() string

	statsMu   sync.Mutex
	lastStats matcher.Stats
}

func NewGenerationService(deps GenerationDeps, logger *logrus.Logger) *GenerationService {
	if deps.MaxParallelGroups < 1 {
		deps.MaxParallelGroups = 1
	}
	return &GenerationService{deps: deps, logger: logger, now: time.Now, newID: uuid.NewString}
}

// groupOutcome 单个组的分类/匹配结果，并行阶段各自写自己的槽位
type groupOutcome struct {
	group      runconfig.ResolvedGroupConfig
	candidates []model.StreamCandidate
	matches    []model.StreamMatch
	capacity   int
	failures   int
}

// Run 执行一次生成。只有配置错误、流来源失败和存储失败会让本次运行失败；
// 取消只在分类后、匹配后两个检查点生效，进入分配阶段后一定跑完。
func (s *GenerationService) Run(ctx context.Context, trigger string) (*model.GenerationRun, error) {
	started := s.now()
	run := &model.GenerationRun{
		RunID:     s.newID(),
		Trigger:   trigger,
		Status:    model.RunRunning,
		StartedAt: started,
	}
	if err := s.deps.Runs.Create(context.WithoutCancel(ctx), run); err != nil {
		return nil, err
	}
	log := s.logger.WithFields(logrus.Fields{"run_id": run.RunID, "trigger": trigger})
	log.Info("生成任务开始")

	report, err := s.execute(ctx, log)
	status := model.RunSucceeded
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = model.RunCancelled
	default:
		status = model.RunFailed
	}

	finishCtx := context.WithoutCancel(ctx)
	if ferr := s.deps.Runs.Finish(finishCtx, run.RunID, status, report, err); ferr != nil {
		log.WithError(ferr).Error("记录生成任务结果失败")
	}
	took := s.now().Sub(started)
	if s.deps.Metrics != nil {
		s.deps.Metrics.RecordRun(status, took, report)
	}
	s.recordCacheStats()

	run.Status = status
	run.Report = datatypes.NewJSONType(report)
	if err != nil {
		msg := err.Error()
		run.Error = &msg
		log.WithError(err).WithField("status", status).Warn("生成任务未完成")
		return run, err
	}
	log.WithFields(logrus.Fields{
		"took":     took.String(),
		"active":   report.ChannelsActive,
		"pending":  report.ChannelsPending,
		"drift":    report.NumberDrift,
		"warnings": len(report.Warnings),
	}).Info("生成任务完成")
	return run, nil
}

func (s *GenerationService) execute(ctx context.Context, log *logrus.Entry) (model.RunReport, error) {
	var report model.RunReport

	snap, err := s.snapshot(ctx)
	if err != nil {
		return report, err
	}
	now := s.now()
	cfg, err := runconfig.Build(snap, now)
	if err != nil {
		return report, err
	}
	log = log.WithField("generation", cfg.Generation)

	groups := cfg.Active()
	outcomes := make([]groupOutcome, len(groups))
	for i, g := range groups {
		outcomes[i].group = g
	}

	// 阶段一：分类
	if err := s.fanOut(ctx, outcomes, func(gctx context.Context, o *groupOutcome) error {
		cands, err := s.deps.Classifier.Classify(gctx, cfg, o.group)
		if err != nil {
			return err
		}
		o.candidates = cands
		return nil
	}); err != nil {
		return report, fmt.Errorf("流分类失败: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	// 阶段二：匹配
	if err := s.fanOut(ctx, outcomes, func(gctx context.Context, o *groupOutcome) error {
		return s.matchGroup(gctx, cfg, o, log)
	}); err != nil {
		return report, err
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}

	matches := make(map[uint64][]model.StreamMatch, len(outcomes))
	capacity := make(map[uint64]int, len(outcomes))
	for _, o := range outcomes {
		matches[o.group.ID] = o.matches
		capacity[o.group.ID] = o.capacity
		countStreams(&report, o)
	}

	// 以下不再响应取消：分配结果要么整体提交，要么整体失败
	ctx = context.WithoutCancel(ctx)
	previous, err := s.deps.Channels.LoadAll(ctx)
	if err != nil {
		return report, err
	}
	res := engine.Run(engine.Input{
		Config:   cfg,
		Matches:  matches,
		Capacity: capacity,
		Previous: previous,
		Now:      now,
		NewID:    s.newID,
	})
	mergeReport(&report, res.Report)
	if err := res.Allocation.Err(); err != nil {
		log.WithField("exhausted", len(res.Allocation.Exhausted)).Warn(err.Error())
	}

	if err := s.deps.Channels.SaveState(ctx, res.Channels, res.Discarded); err != nil {
		return report, err
	}

	if err := s.reconcileProvider(ctx, cfg, res.Channels, &report, log); err != nil {
		return report, err
	}

	if s.deps.EPG != nil {
		if err := s.deps.EPG.Write(ctx, EPGEntries(res.Channels)); err != nil {
			report.Warn(fmt.Sprintf("写入EPG失败: %v", err))
			log.WithError(err).Warn("写入EPG失败")
		}
	}
	return report, nil
}

// snapshot 一次性读出本次运行需要的全部设置
func (s *GenerationService) snapshot(ctx context.Context) (runconfig.Snapshot, error) {
	var snap runconfig.Snapshot
	var err error
	if snap.Groups, err = s.deps.Groups.List(ctx); err != nil {
		return snap, err
	}
	if snap.Numbering, err = s.deps.Settings.GetNumbering(ctx); err != nil {
		return snap, err
	}
	if snap.Lifecycle, err = s.deps.Settings.GetLifecycle(ctx); err != nil {
		return snap, err
	}
	if snap.ExceptionKeywords, err = s.deps.Settings.ListExceptionKeywords(ctx); err != nil {
		return snap, err
	}
	if snap.SortPriorities, err = s.deps.Settings.ListSortPriorities(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

// fanOut 按组并行，最多 MaxParallelGroups 个同时执行
func (s *GenerationService) fanOut(ctx context.Context, outcomes []groupOutcome, fn func(context.Context, *groupOutcome) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.deps.MaxParallelGroups)
	for i := range outcomes {
		o := &outcomes[i]
		g.Go(func() error {
			if err := fn(gctx, o); err != nil {
				return fmt.Errorf("组%d(%s): %w", o.group.ID, o.group.Name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// matchGroup 逐条匹配；赛程查询失败只影响当前流
func (s *GenerationService) matchGroup(ctx context.Context, cfg runconfig.RunConfig, o *groupOutcome, log *logrus.Entry) error {
	o.matches = make([]model.StreamMatch, 0, len(o.candidates))
	for _, c := range o.candidates {
		m := model.StreamMatch{
			StreamID:    c.StreamID,
			StreamName:  c.Name,
			StreamOrder: c.Order,
			GroupID:     o.group.ID,
		}
		if c.Excluded() {
			m.ExclusionReason = c.ExclusionReason
			o.matches = append(o.matches, m)
			continue
		}
		o.capacity++
		if err := ctx.Err(); err != nil {
			return err
		}

		res, err := s.deps.Matcher.Match(ctx, cfg, o.group, c)
		if err != nil {
			var me *matcher.MatchError
			if !errors.As(err, &me) {
				return err
			}
			o.failures++
			log.WithError(err).WithFields(logrus.Fields{"group_id": o.group.ID, "stream_id": c.StreamID}).Warn("赛程查询失败，流标记为未匹配")
			res = model.MatchResult{ExclusionReason: model.ReasonLookupFailed}
		}
		m.Event = res.Event
		m.League = res.League
		m.ExclusionReason = res.ExclusionReason
		if m.ExclusionReason == "" && m.Event == nil {
			m.ExclusionReason = model.ReasonNoEvent
		}
		o.matches = append(o.matches, m)
	}
	return nil
}

func countStreams(r *model.RunReport, o groupOutcome) {
	r.StreamsTotal += len(o.candidates)
	r.LookupFailures += o.failures
	for _, m := range o.matches {
		switch m.ExclusionReason {
		case "":
			r.StreamsMatched++
			continue
		case model.ReasonNotIncluded, model.ReasonExcludedRegex, model.ReasonNotGame:
			r.StreamsExcluded++
		case model.ReasonTeamFiltered, model.ReasonEventFinal:
			r.StreamsFiltered++
		default:
			r.StreamsUnmatched++
		}
		r.CountExclusion(m.ExclusionReason)
	}
}

func mergeReport(dst *model.RunReport, src model.RunReport) {
	dst.ChannelsActive = src.ChannelsActive
	dst.ChannelsPending = src.ChannelsPending
	dst.ChannelsDiscarded = src.ChannelsDiscarded
	dst.NumberDrift = src.NumberDrift
	dst.DuplicatesIgnored = src.DuplicatesIgnored
	dst.OverlapMerged = src.OverlapMerged
	dst.OverlapDropped = src.OverlapDropped
	dst.ChildMerged = src.ChildMerged
	dst.ChildDropped = src.ChildDropped
	dst.Exhausted = src.Exhausted
	dst.Blocks = src.Blocks
	dst.Warnings = append(dst.Warnings, src.Warnings...)
	for reason, n := range src.ExclusionReasons {
		if dst.ExclusionReasons == nil {
			dst.ExclusionReasons = make(map[string]int)
		}
		dst.ExclusionReasons[reason] += n
	}
}

// reconcileProvider 把本轮状态下发到频道管理系统。单个频道失败只计数，下一轮重试。
func (s *GenerationService) reconcileProvider(ctx context.Context, cfg runconfig.RunConfig, channels []*model.ManagedChannel, report *model.RunReport, log *logrus.Entry) error {
	if s.deps.Provider == nil {
		return nil
	}
	providerIDs := make(map[string]string)
	var removed []string

	for _, ch := range channels {
		clog := log.WithFields(logrus.Fields{"channel_id": ch.ChannelID, "group_id": ch.GroupID, "event_id": ch.EventID})
		switch ch.State {
		case model.ChannelActive:
			pc := interfaces.ProviderChannel{
				ChannelID:  ch.ChannelID,
				ProviderID: ch.ProviderChannelID,
				Number:     ch.AssignedNumber,
				Name:       ch.Name,
			}
			for _, st := range ch.Streams {
				pc.StreamIDs = append(pc.StreamIDs, st.StreamID)
			}
			if g, ok := cfg.Group(ch.GroupID); ok {
				pc.ChannelGroupID = g.ChannelGroupID
				pc.ProfileIDs = g.ChannelProfileIDs
				pc.TemplateID = g.TemplateID
			}
			id, err := s.deps.Provider.UpsertChannel(ctx, pc)
			if err != nil {
				report.ProviderErrors++
				clog.WithError(err).Warn("下发频道失败")
				continue
			}
			if ch.ProviderChannelID == nil {
				report.ChannelsCreated++
			}
			if ch.ProviderChannelID == nil || *ch.ProviderChannelID != id {
				providerIDs[ch.ChannelID] = id
				ch.ProviderChannelID = &id
			}
		case model.ChannelPendingDelete:
			if ch.ProviderChannelID != nil {
				if err := s.deps.Provider.DeleteChannel(ctx, *ch.ProviderChannelID); err != nil {
					report.ProviderErrors++
					clog.WithError(err).Warn("删除频道失败")
					continue
				}
			}
			ch.State = model.ChannelRemoved
			removed = append(removed, ch.ChannelID)
			report.ChannelsDeleted++
		}
	}

	if len(providerIDs) == 0 && len(removed) == 0 {
		return nil
	}
	return s.deps.Channels.ApplyProviderResults(ctx, providerIDs, removed)
}

// EPGEntries active 频道按频道号排列的节目单
func EPGEntries(channels []*model.ManagedChannel) []interfaces.EPGEntry {
	out := make([]interfaces.EPGEntry, 0, len(channels))
	for _, ch := range channels {
		if ch.State != model.ChannelActive || ch.AssignedNumber == 0 {
			continue
		}
		out = append(out, interfaces.EPGEntry{
			ChannelID:   ch.ChannelID,
			Number:      ch.AssignedNumber,
			ChannelName: ch.Name,
			Title:       ch.EventName,
			League:      ch.League,
			Sport:       ch.Sport,
			Start:       ch.EventStart,
			End:         ch.EventEnd,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// recordCacheStats 把匹配缓存的增量写入指标
func (s *GenerationService) recordCacheStats() {
	src, ok := s.deps.Matcher.(interface{ Stats() matcher.Stats })
	if !ok || s.deps.Metrics == nil {
		return
	}
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	cur := src.Stats()
	s.deps.Metrics.RecordMatchCache(cur.Hits-s.lastStats.Hits, cur.Misses-s.lastStats.Misses)
	s.lastStats = cur
}

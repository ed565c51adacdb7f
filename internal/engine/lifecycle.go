package engine

import (
	"sort"
	"time"

	"ChannelSync/internal/extraction"
	"ChannelSync/internal/model"
	"ChannelSync/internal/runconfig"
)

// defaultEventDuration 赛程源未给结束时间时的估计时长
const defaultEventDuration = 3 * time.Hour

// CreateAt 频道最早可以创建的时间
func CreateAt(t runconfig.Timing, start time.Time, loc *time.Location) time.Time {
	switch t.Kind {
	case runconfig.TimingSameDay:
		return extraction.StartOfDay(start, loc)
	case runconfig.TimingDaysBefore:
		return extraction.StartOfDay(start, loc).AddDate(0, 0, -t.Offset)
	default: // stream_available
		return time.Time{}
	}
}

// DeleteAt 频道应当删除的时间；stream_removed 只看流是否消失，返回 false
func DeleteAt(t runconfig.Timing, end time.Time, loc *time.Location) (time.Time, bool) {
	switch t.Kind {
	case runconfig.TimingStreamRemoved:
		return time.Time{}, false
	case runconfig.TimingHoursAfter:
		return end.Add(time.Duration(t.Offset) * time.Hour), true
	case runconfig.TimingDaysAfter:
		return extraction.StartOfDay(end, loc).AddDate(0, 0, 1+t.Offset), true
	default: // same_day：结束当天的下一个零点
		return extraction.StartOfDay(end, loc).AddDate(0, 0, 1), true
	}
}

func eventEnd(e *model.MatchedEvent) time.Time {
	if e.EndTime.IsZero() || e.EndTime.Before(e.StartTime) {
		return e.StartTime.Add(defaultEventDuration)
	}
	return e.EndTime
}

// LifecycleResult 生命周期评估结果
type LifecycleResult struct {
	Channels  []*model.ManagedChannel // 需要持久化的频道（pending_create / active / pending_delete）
	Discarded []model.ManagedChannel  // 直接移除的频道（从未下发到频道管理系统）
	Activated int                     // 本轮新进入 active 的数量
	Expired   int                     // 赛事已过删除时间，不再创建的草稿数
	Retained  int                     // 流已消失但仍在宽限期内的 active 频道
}

// ApplyLifecycle 按创建/删除时机推进每个频道的状态：
// pending_create -> active -> pending_delete -> removed。
// 匹配消失的 pending_create 直接丢弃；匹配消失的 active 保留到删除时机（stream_removed 除外）。
func ApplyLifecycle(cfg runconfig.RunConfig, drafts GroupDrafts, previous []model.ManagedChannel, now time.Time, newID func() string) LifecycleResult {
	var res LifecycleResult
	prevByKey := make(map[model.ChannelKey]model.ManagedChannel, len(previous))
	for _, p := range previous {
		prevByKey[p.Key()] = p
	}
	seen := make(map[model.ChannelKey]struct{})
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	for _, g := range cfg.TopLevel() {
		for _, d := range drafts[g.ID] {
			key := d.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}

			end := eventEnd(d.Event)
			deleteAt, hasDelete := DeleteAt(cfg.DeleteTiming, end, loc)
			createAt := CreateAt(cfg.CreateTiming, d.Event.StartTime, loc)

			prev, existed := prevByKey[key]
			ch := &model.ManagedChannel{}
			if existed {
				*ch = prev
			} else {
				if hasDelete && !now.Before(deleteAt) {
					res.Expired++
					continue
				}
				ch.ChannelID = newID()
				ch.GroupID = key.GroupID
				ch.EventID = key.EventID
				ch.FanoutKey = key.FanoutKey
				ch.State = model.ChannelPendingCreate
				ch.CreatedAt = now
			}
			fillFromDraft(ch, d, end, now)
			if hasDelete {
				t := deleteAt
				ch.ScheduledDeleteAt = &t
			} else {
				ch.ScheduledDeleteAt = nil
			}

			if ch.State == model.ChannelPendingCreate && !now.Before(createAt) {
				ch.State = model.ChannelActive
				res.Activated++
			}
			if ch.State != model.ChannelPendingDelete && hasDelete && !now.Before(deleteAt) {
				ch.State = model.ChannelPendingDelete
			}
			res.keep(ch)
		}
	}

	active := make(map[uint64]bool)
	for _, g := range cfg.TopLevel() {
		active[g.ID] = true
	}
	for _, p := range previous {
		if _, ok := seen[p.Key()]; ok {
			continue
		}
		ch := p
		switch {
		case !active[p.GroupID]:
			ch.State = model.ChannelPendingDelete
		case p.State == model.ChannelPendingCreate, p.State == model.ChannelRemoved:
			ch.State = model.ChannelRemoved
		case p.State == model.ChannelActive:
			if cfg.DeleteTiming.Kind == runconfig.TimingStreamRemoved {
				ch.State = model.ChannelPendingDelete
				break
			}
			deleteAt, _ := DeleteAt(cfg.DeleteTiming, p.EventEnd, loc)
			if !now.Before(deleteAt) {
				ch.State = model.ChannelPendingDelete
			} else {
				res.Retained++
			}
		}
		res.keep(&ch)
	}

	sort.SliceStable(res.Channels, func(i, j int) bool {
		return compareKeys(res.Channels[i].Key(), res.Channels[j].Key()) < 0
	})
	sort.SliceStable(res.Discarded, func(i, j int) bool {
		return compareKeys(res.Discarded[i].Key(), res.Discarded[j].Key()) < 0
	})
	return res
}

// keep 未下发过的频道无需删除调用，直接进入 removed
func (r *LifecycleResult) keep(ch *model.ManagedChannel) {
	if ch.State == model.ChannelPendingDelete && ch.ProviderChannelID == nil {
		ch.State = model.ChannelRemoved
	}
	if ch.State == model.ChannelRemoved {
		ch.AssignedNumber = 0
		r.Discarded = append(r.Discarded, *ch)
		return
	}
	r.Channels = append(r.Channels, ch)
}

func fillFromDraft(ch *model.ManagedChannel, d *ChannelDraft, end, now time.Time) {
	ch.Name = d.Name
	ch.League = d.League
	ch.Sport = d.Event.Sport
	ch.EventName = d.Event.Name
	ch.EventStart = d.Event.StartTime
	ch.EventEnd = end
	ch.StreamOrder = d.StreamOrder()
	ch.Streams = append([]model.StreamRef(nil), d.Streams...)
	seen := now
	ch.LastSeenAt = &seen
}

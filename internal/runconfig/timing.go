package runconfig

import (
	"fmt"
	"strings"
)

// TimingKind 频道创建/删除时机类型
type TimingKind string

const (
	TimingStreamAvailable TimingKind = "stream_available"
	TimingStreamRemoved   TimingKind = "stream_removed"
	TimingHoursAfter      TimingKind = "hours_after"
	TimingSameDay         TimingKind = "same_day"
	TimingDaysBefore      TimingKind = "days_before"
	TimingDaysAfter       TimingKind = "days_after"
)

// Timing 解析后的时机：Kind + 偏移量（天或小时）
type Timing struct {
	Kind   TimingKind
	Offset int
	Raw    string
}

// ParseCreateTiming 支持 stream_available / same_day / day_before / N_days_before / 1_week_before
func ParseCreateTiming(raw string) (Timing, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "", "stream_available":
		return Timing{Kind: TimingStreamAvailable, Raw: "stream_available"}, nil
	case "same_day":
		return Timing{Kind: TimingSameDay, Raw: s}, nil
	case "day_before":
		return Timing{Kind: TimingDaysBefore, Offset: 1, Raw: s}, nil
	case "1_week_before":
		return Timing{Kind: TimingDaysBefore, Offset: 7, Raw: s}, nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d_days_before", &n); err == nil && n > 0 && s == fmt.Sprintf("%d_days_before", n) {
		return Timing{Kind: TimingDaysBefore, Offset: n, Raw: s}, nil
	}
	return Timing{}, settingErr("channel_create_timing", "不支持的创建时机: %q", raw)
}

// ParseDeleteTiming 支持 stream_removed / 6_hours_after / same_day / day_after / N_days_after / 1_week_after
func ParseDeleteTiming(raw string) (Timing, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "stream_removed":
		return Timing{Kind: TimingStreamRemoved, Raw: s}, nil
	case "", "same_day":
		return Timing{Kind: TimingSameDay, Raw: "same_day"}, nil
	case "day_after":
		return Timing{Kind: TimingDaysAfter, Offset: 1, Raw: s}, nil
	case "1_week_after":
		return Timing{Kind: TimingDaysAfter, Offset: 7, Raw: s}, nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "%d_hours_after", &n); err == nil && n > 0 && s == fmt.Sprintf("%d_hours_after", n) {
		return Timing{Kind: TimingHoursAfter, Offset: n, Raw: s}, nil
	}
	if _, err := fmt.Sscanf(s, "%d_days_after", &n); err == nil && n > 0 && s == fmt.Sprintf("%d_days_after", n) {
		return Timing{Kind: TimingDaysAfter, Offset: n, Raw: s}, nil
	}
	return Timing{}, settingErr("channel_delete_timing", "不支持的删除时机: %q", raw)
}

package extraction

import (
	"strconv"
	"strings"
	"time"
)

// ParseDate 解析流名中的日期标记，缺省年份时取离 ref 最近的年份
func ParseDate(token string, ref time.Time) (time.Time, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return time.Time{}, false
	}
	loc := ref.Location()
	if t, err := time.ParseInLocation("2006-01-02", token, loc); err == nil {
		return t, true
	}

	parts := strings.Split(token, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return time.Time{}, false
	}
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	if len(parts) == 3 {
		year, err := strconv.Atoi(parts[2])
		if err != nil {
			return time.Time{}, false
		}
		if year < 100 {
			year += 2000
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc), true
	}

	// 无年份：在 ref 前后一年里取最近的一个
	best := time.Time{}
	var bestDiff time.Duration = -1
	for _, y := range []int{ref.Year() - 1, ref.Year(), ref.Year() + 1} {
		c := time.Date(y, time.Month(month), day, 0, 0, 0, 0, loc)
		diff := c.Sub(ref)
		if diff < 0 {
			diff = -diff
		}
		if bestDiff < 0 || diff < bestDiff {
			best, bestDiff = c, diff
		}
	}
	return best, true
}

// StartOfDay 当地零点
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

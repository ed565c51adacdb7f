// Package extraction 从流名中提取球队/日期/时间/联赛/选手/赛事名等标记。
// 每个赛事组的自定义正则在构建 RunConfig 时编译一次，运行期只做匹配。
package extraction

import (
	"fmt"
	"regexp"
	"strings"

	"ChannelSync/internal/model"
)

// Tokens 单条流名的提取结果
type Tokens struct {
	Team1      string
	Team2      string
	Date       string
	Time       string
	League     string
	Fighter1   string
	Fighter2   string
	EventName  string
	Normalized string
}

// HasTeams 是否提取到对阵双方
func (t Tokens) HasTeams() bool { return t.Team1 != "" && t.Team2 != "" }

// HasFighters 是否提取到格斗双方
func (t Tokens) HasFighters() bool { return t.Fighter1 != "" && t.Fighter2 != "" }

// PatternError 自定义正则编译失败
type PatternError struct {
	Field string
	Err   error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("提取正则[%s]无效: %v", e.Field, e.Err)
}

func (e *PatternError) Unwrap() error { return e.Err }

// 内置规则
var (
	builtinSeparator = regexp.MustCompile(`(?i)^(?P<team1>.+?)\s+(?:vs\.?|v\.?|versus|@|at|x)\s+(?P<team2>.+?)$`)
	builtinGame      = regexp.MustCompile(`(?i)\s(?:vs\.?|v\.?|versus|@|at|x)\s`)
	builtinDate      = regexp.MustCompile(`(?P<date>\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}(?:/\d{2,4})?\b)`)
	builtinTime      = regexp.MustCompile(`(?i)(?P<time>\b\d{1,2}:\d{2}\s*(?:am|pm)?(?:\s*(?:et|est|edt|ct|cst|cdt|pt|pst|pdt|mt|mst|utc|gmt)\b)?|\b\d{1,2}\s*(?:am|pm)\b)`)
	builtinLabel     = regexp.MustCompile(`^(?P<league>[^:|]{1,40}?)\s*[:|]\s+`)
	bracketed        = regexp.MustCompile(`[\[(][^\])]*[\])]`)
	trailingDash     = regexp.MustCompile(`\s+-\s+.*$`)
)

// Patterns 一个赛事组编译后的提取规则
type Patterns struct {
	include   *regexp.Regexp
	exclude   *regexp.Regexp
	teams     *regexp.Regexp
	date      *regexp.Regexp
	time      *regexp.Regexp
	league    *regexp.Regexp
	fighters  *regexp.Regexp
	eventName *regexp.Regexp
}

// Builtin 全部使用内置规则
func Builtin() *Patterns {
	return &Patterns{}
}

// Compile 编译组级正则；自定义正则必须带上对应的命名捕获
func Compile(p model.ExtractionPatterns) (*Patterns, error) {
	out := &Patterns{}
	specs := []struct {
		field    string
		expr     string
		dst      **regexp.Regexp
		captures []string
	}{
		{"include_regex", p.IncludeRegex, &out.include, nil},
		{"exclude_regex", p.ExcludeRegex, &out.exclude, nil},
		{"teams", p.Teams, &out.teams, []string{"team1", "team2"}},
		{"date", p.Date, &out.date, []string{"date"}},
		{"time", p.Time, &out.time, []string{"time"}},
		{"league", p.League, &out.league, []string{"league"}},
		{"fighters", p.Fighters, &out.fighters, []string{"fighter1", "fighter2"}},
		{"event_name", p.EventName, &out.eventName, []string{"event_name"}},
	}
	for _, s := range specs {
		if strings.TrimSpace(s.expr) == "" {
			continue
		}
		re, err := regexp.Compile(s.expr)
		if err != nil {
			return nil, &PatternError{Field: s.field, Err: err}
		}
		for _, name := range s.captures {
			if re.SubexpIndex(name) < 0 {
				return nil, &PatternError{Field: s.field, Err: fmt.Errorf("缺少命名捕获 (?P<%s>...)", name)}
			}
		}
		*s.dst = re
	}
	return out, nil
}

// Included include_regex 未配置时全部放行
func (p *Patterns) Included(name string) bool {
	return p.include == nil || p.include.MatchString(name)
}

// Excluded exclude_regex 命中则排除
func (p *Patterns) Excluded(name string) bool {
	return p.exclude != nil && p.exclude.MatchString(name)
}

// IsGameName 内置赛事流识别：包含 vs/@/at/x 等对阵分隔符
func IsGameName(name string) bool {
	return builtinGame.MatchString(" " + name + " ")
}

// Extract 对流名应用组规则，未配置的字段回落到内置规则
func (p *Patterns) Extract(name string) Tokens {
	t := Tokens{Normalized: Normalize(name)}

	t.Date = capture(p.date, builtinDate, name, "date")
	t.Time = capture(p.time, builtinTime, name, "time")
	if p.league != nil {
		t.League = named(p.league, name, "league")
	} else {
		t.League, _ = labelPrefix(name)
	}
	if p.eventName != nil {
		t.EventName = named(p.eventName, name, "event_name")
	} else {
		t.EventName = t.League
	}

	if p.teams != nil {
		t.Team1 = named(p.teams, name, "team1")
		t.Team2 = named(p.teams, name, "team2")
	} else {
		t.Team1, t.Team2 = builtinTeams(name)
	}

	if p.fighters != nil {
		t.Fighter1 = named(p.fighters, name, "fighter1")
		t.Fighter2 = named(p.fighters, name, "fighter2")
	} else {
		t.Fighter1, t.Fighter2 = t.Team1, t.Team2
	}
	return t
}

// builtinTeams 去掉前缀标签、日期时间和括号内容后按分隔符切分
func builtinTeams(name string) (string, string) {
	_, s := labelPrefix(name)
	if i := strings.Index(s, "|"); i >= 0 {
		s = s[:i]
	}
	s = bracketed.ReplaceAllString(s, " ")
	s = builtinDate.ReplaceAllString(s, " ")
	s = builtinTime.ReplaceAllString(s, " ")
	s = trailingDash.ReplaceAllString(s, "")
	s = strings.TrimSpace(multiSpace.ReplaceAllString(s, " "))
	m := builtinSeparator.FindStringSubmatch(s)
	if m == nil {
		return "", ""
	}
	return cleanTeam(m[builtinSeparator.SubexpIndex("team1")]), cleanTeam(m[builtinSeparator.SubexpIndex("team2")])
}

// labelPrefix 拆出 "NBA: ..." 形式的前缀标签；前缀本身含对阵分隔符时不视为标签
func labelPrefix(name string) (string, string) {
	m := builtinLabel.FindStringSubmatch(name)
	if m == nil || IsGameName(m[1]) {
		return "", name
	}
	return strings.TrimSpace(m[1]), name[len(m[0]):]
}

func cleanTeam(s string) string {
	return strings.Trim(strings.TrimSpace(s), "-|:,.")
}

func capture(custom, builtin *regexp.Regexp, name, group string) string {
	if custom != nil {
		return named(custom, name, group)
	}
	return named(builtin, name, group)
}

func named(re *regexp.Regexp, s, group string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	idx := re.SubexpIndex(group)
	if idx < 0 || idx >= len(m) {
		return ""
	}
	return strings.TrimSpace(m[idx])
}

// Table 按组 id 缓存的编译结果，RunConfig 构建后只读
type Table map[uint64]*Patterns

// For 未登记的组返回内置规则
func (t Table) For(groupID uint64) *Patterns {
	if p, ok := t[groupID]; ok && p != nil {
		return p
	}
	return Builtin()
}

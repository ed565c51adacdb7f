package extraction

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlphaNum = regexp.MustCompile(`[^a-z0-9\s]+`)
	multiSpace  = regexp.MustCompile(`\s+`)
)

// Normalize 去重音、小写、去标点、合并空白，用于队名/流名比较
func Normalize(s string) string {
	// transform.Chain 带状态，不能在 goroutine 间共享
	stripper := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(stripper, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(strings.TrimSpace(out))
	out = nonAlphaNum.ReplaceAllString(out, " ")
	out = multiSpace.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// DisplayCase 标签展示用的首字母大写
func DisplayCase(s string) string {
	return cases.Title(language.English).String(strings.TrimSpace(s))
}

// SameTeam 两个队名是否指同一支队（规范化后相等或互相包含整词）
func SameTeam(a, b string) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return containsWords(na, nb) || containsWords(nb, na)
}

func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

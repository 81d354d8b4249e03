// Package normalize builds canonical fields out of the heterogeneous
// payloads the platform crawlers collect: timestamps in several absolute
// and relative forms, a comparable heat score, and size-bounded bodies.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var tagRe = regexp.MustCompile(`<[^>]+>`)

// Relative idioms are matched against the whole string. Bare substring
// checks would fire inside absolute timestamps ("Monday, 02 Jan 2006 ..."
// contains "day") and fabricate a wrong instant.
var (
	relSecondRe    = regexp.MustCompile(`^(\d+)\s*(?:秒前?|seconds? ago)$`)
	relMinuteRe    = regexp.MustCompile(`^(\d+)\s*(?:分钟前|minutes? ago)$`)
	relHourRe      = regexp.MustCompile(`^(\d+)\s*(?:小时前|hours? ago)$`)
	relDayRe       = regexp.MustCompile(`^(\d+)\s*(?:天前|days? ago)$`)
	relYesterdayRe = regexp.MustCompile(`^(?:昨天|yesterday)(?:\s+\d{1,2}:\d{2})?$`)
)

// ParseTimestamp parses a raw timestamp string into a local-time instant.
// It accepts the absolute layouts common on the supported platforms plus
// relative idioms ("5分钟前", "2 hours ago", "昨天", "just now"), which
// resolve against the wall clock at parse time. The second return value is
// false when the input cannot be parsed; callers decide inclusion policy.
func ParseTimestamp(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	if t, ok := parseRelative(s); ok {
		return t, true
	}

	// Month-day form without a year, seen on weibo ("12-07 10:30").
	if t, err := time.ParseInLocation("01-02 15:04", s, time.Local); err == nil {
		now := time.Now()
		return time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, time.Local), true
	}

	if t, err := dateparse.ParseIn(s, time.Local); err == nil {
		return t, true
	}

	return time.Time{}, false
}

func parseRelative(s string) (time.Time, bool) {
	now := time.Now()

	switch {
	case s == "刚刚", s == "just now":
		return now, true
	case relSecondRe.MatchString(s):
		return now, true
	case relYesterdayRe.MatchString(s):
		return now.AddDate(0, 0, -1), true
	}

	if m := relMinuteRe.FindStringSubmatch(s); m != nil {
		return now.Add(-time.Duration(relativeCount(m[1])) * time.Minute), true
	}
	if m := relHourRe.FindStringSubmatch(s); m != nil {
		return now.Add(-time.Duration(relativeCount(m[1])) * time.Hour), true
	}
	if m := relDayRe.FindStringSubmatch(s); m != nil {
		return now.AddDate(0, 0, -relativeCount(m[1])), true
	}

	return time.Time{}, false
}

func relativeCount(digits string) int {
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// HeatScore derives a popularity metric from engagement counts. Every
// crawler uses the same weights, so heat is comparable across platforms.
func HeatScore(likes, comments, reposts int) float64 {
	return float64(likes + comments*2 + reposts*3)
}

// Truncate caps a body at max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

// StripTags removes HTML tags from rich-text bodies (zhihu answers and
// articles arrive as HTML fragments).
func StripTags(s string) string {
	return tagRe.ReplaceAllString(s, "")
}

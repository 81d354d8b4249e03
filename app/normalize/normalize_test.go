package normalize

import (
	"testing"
	"time"
)

func TestParseTimestampAbsolute(t *testing.T) {
	ts, ok := ParseTimestamp("2024-12-07 10:30:00")
	if !ok {
		t.Fatal("Expected absolute timestamp to parse")
	}
	if ts.Year() != 2024 || ts.Month() != time.December || ts.Day() != 7 {
		t.Errorf("Expected 2024-12-07, got %v", ts)
	}
	if ts.Hour() != 10 || ts.Minute() != 30 {
		t.Errorf("Expected 10:30, got %02d:%02d", ts.Hour(), ts.Minute())
	}
}

func TestParseTimestampMonthDay(t *testing.T) {
	ts, ok := ParseTimestamp("12-07 10:30")
	if !ok {
		t.Fatal("Expected month-day timestamp to parse")
	}
	if ts.Year() != time.Now().Year() {
		t.Errorf("Expected current year, got %d", ts.Year())
	}
	if ts.Month() != time.December || ts.Day() != 7 {
		t.Errorf("Expected December 7, got %v %d", ts.Month(), ts.Day())
	}
}

func TestParseTimestampRelative(t *testing.T) {
	now := time.Now()

	tests := []struct {
		input string
		want  time.Duration
	}{
		{"刚刚", 0},
		{"just now", 0},
		{"30秒前", 0},
		{"5分钟前", 5 * time.Minute},
		{"2 minutes ago", 2 * time.Minute},
		{"3小时前", 3 * time.Hour},
		{"1 hour ago", time.Hour},
		{"昨天 10:30", 24 * time.Hour},
		{"2天前", 48 * time.Hour},
	}

	for _, tt := range tests {
		ts, ok := ParseTimestamp(tt.input)
		if !ok {
			t.Errorf("Expected %q to parse", tt.input)
			continue
		}
		got := now.Sub(ts)
		// Allow a generous margin for wall clock movement during the test.
		if got < tt.want-time.Minute || got > tt.want+time.Minute {
			t.Errorf("%q: expected offset near %v, got %v", tt.input, tt.want, got)
		}
	}
}

func TestParseTimestampAbsoluteWithWeekday(t *testing.T) {
	// A weekday name contains "day"; the relative matcher must not
	// swallow it and fabricate an instant near now.
	ts, ok := ParseTimestamp("Monday, 02 Jan 2006 15:04:05 UTC")
	if !ok {
		t.Fatal("Expected weekday-prefixed absolute timestamp to parse")
	}
	if ts.Year() != 2006 || ts.Month() != time.January || ts.Day() != 2 {
		t.Errorf("Expected 2006-01-02, got %v", ts)
	}

	ts, ok = ParseTimestamp("Sat, 07 Dec 2024 10:30:00 +0800")
	if !ok {
		t.Fatal("Expected RFC1123-style timestamp to parse")
	}
	if ts.UTC().Format("2006-01-02") != "2024-12-07" {
		t.Errorf("Expected 2024-12-07, got %v", ts)
	}
}

func TestParseTimestampUnparseable(t *testing.T) {
	inputs := []string{
		"", "   ", "not a timestamp", "置顶",
		// Relative keywords embedded in unrelated words must not match.
		"Sunday update", "happy hour", "minutemen",
	}
	for _, input := range inputs {
		if _, ok := ParseTimestamp(input); ok {
			t.Errorf("Expected %q to fail parsing", input)
		}
	}
}

func TestHeatScore(t *testing.T) {
	tests := []struct {
		likes, comments, reposts int
		want                     float64
	}{
		{0, 0, 0, 0},
		{10, 0, 0, 10},
		{0, 10, 0, 20},
		{0, 0, 10, 30},
		{100, 20, 5, 155},
	}

	for _, tt := range tests {
		got := HeatScore(tt.likes, tt.comments, tt.reposts)
		if got != tt.want {
			t.Errorf("HeatScore(%d, %d, %d): expected %v, got %v",
				tt.likes, tt.comments, tt.reposts, tt.want, got)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Expected unmodified string, got %q", got)
	}

	got := Truncate("abcdefghij", 8)
	if got != "abcde..." {
		t.Errorf("Expected 'abcde...', got %q", got)
	}
	if len([]rune(got)) != 8 {
		t.Errorf("Expected 8 runes, got %d", len([]rune(got)))
	}

	// Multi-byte runes must not be split.
	got = Truncate("一二三四五六七八九十", 8)
	if got != "一二三四五..." {
		t.Errorf("Expected '一二三四五...', got %q", got)
	}
}

func TestStripTags(t *testing.T) {
	got := StripTags(`<p>看好<b>后市</b></p><a href="/u/1">@作者</a>`)
	if got != "看好后市@作者" {
		t.Errorf("Expected '看好后市@作者', got %q", got)
	}
}

package capture

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// FormatTimeAgo renders a relative age for ts (epoch ms). Future timestamps read
// as "Just now"; anything a week or older shows the calendar date.
func FormatTimeAgo(ts int64, now time.Time) string {
	diff := now.Sub(time.UnixMilli(ts))
	if diff < time.Minute {
		return "Just now"
	}
	mins := int(diff / time.Minute)
	hours := mins / 60
	days := hours / 24
	switch {
	case mins < 60:
		return plural(mins, "min")
	case hours < 24:
		return plural(hours, "hour")
	case days < 7:
		return plural(days, "day")
	}
	return time.UnixMilli(ts).In(now.Location()).Format("Jan 2, 2006")
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

func Capitalize(s string) string {
	if s == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// Truncate shortens s to max runes with a trailing ellipsis.
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}

// Package format renders counts, durations and dates for display. Every
// function returns a safe default for missing, negative or non-finite input
// and never emits "NaN". Durations too large for an int64 count of seconds
// get the default as well.
package format

import (
	"math"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Views abbreviates a view count: 999, 1.5K, 2M, 1.2B.
func Views(views float64) string {
	if !finiteNonNegative(views) {
		return "0"
	}
	switch {
	case views >= 1e9:
		return compact(views/1e9) + "B"
	case views >= 1e6:
		return compact(views/1e6) + "M"
	case views >= 1e3:
		return compact(views/1e3) + "K"
	}
	return strconv.FormatFloat(views, 'f', -1, 64)
}

// Subscribers is Views with a unit: "1 subscriber", "12K subscribers".
func Subscribers(count float64) string {
	if !finiteNonNegative(count) {
		return "0 subscribers"
	}
	switch {
	case count >= 1e6:
		return compact(count/1e6) + "M subscribers"
	case count >= 1e3:
		return compact(count/1e3) + "K subscribers"
	case count == 1:
		return "1 subscriber"
	}
	return strconv.FormatFloat(count, 'f', -1, 64) + " subscribers"
}

// maxDurationSeconds bounds Duration's input below the int64 range.
const maxDurationSeconds = 1 << 53

// Duration renders seconds as m:ss or h:mm:ss.
func Duration(seconds float64) string {
	if !finiteNonNegative(seconds) || seconds > maxDurationSeconds {
		return "0:00"
	}
	total := int64(math.Floor(seconds))
	hrs := total / 3600
	mins := (total % 3600) / 60
	secs := total % 60

	var b strings.Builder
	if hrs > 0 {
		b.WriteString(strconv.FormatInt(hrs, 10))
		b.WriteByte(':')
		b.WriteString(pad2(mins))
	} else {
		b.WriteString(strconv.FormatInt(mins, 10))
	}
	b.WriteByte(':')
	b.WriteString(pad2(secs))
	return b.String()
}

// TimeAgo describes t relative to now.
func TimeAgo(t time.Time) string {
	return TimeAgoAt(t, time.Now())
}

// TimeAgoAt describes t relative to now: "3 days ago", "1 year ago". Future
// times are "Just now"; the zero time is "".
func TimeAgoAt(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := now.Sub(t)
	if diff < 0 {
		return "Just now"
	}

	mins := int64(diff / time.Minute)
	hours := mins / 60
	days := hours / 24
	weeks := days / 7
	months := days / 30
	years := days / 365

	switch {
	case years > 0:
		return ago(years, "year")
	case months > 0:
		return ago(months, "month")
	case weeks > 0:
		return ago(weeks, "week")
	case days > 0:
		return ago(days, "day")
	case hours > 0:
		return ago(hours, "hour")
	case mins > 0:
		return ago(mins, "minute")
	}
	return "Just now"
}

// Date renders t like "Jan 2, 2006" in local time; the zero time is "".
func Date(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("Jan 2, 2006")
}

// DateSeparator labels a history group.
func DateSeparator(t time.Time) string {
	return DateSeparatorAt(t, time.Now())
}

// DateSeparatorAt returns "Today", "Yesterday", "N days ago" within a week,
// and Date beyond that. Times after now count as today.
func DateSeparatorAt(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	days := int64(now.Sub(t) / (24 * time.Hour))
	switch {
	case days <= 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days < 7:
		return strconv.FormatInt(days, 10) + " days ago"
	}
	return Date(t)
}

// Truncate cuts text to maxLen runes and appends "..." when it was longer.
func Truncate(text string, maxLen int) string {
	if text == "" || maxLen <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return strings.TrimRightFunc(string(runes[:maxLen]), unicode.IsSpace) + "..."
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

// compact formats v with one decimal, rounding half up, and drops a ".0".
func compact(v float64) string {
	s := strconv.FormatFloat(math.Floor(v*10+0.5)/10, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}

func ago(n int64, unit string) string {
	s := strconv.FormatInt(n, 10) + " " + unit
	if n > 1 {
		s += "s"
	}
	return s + " ago"
}

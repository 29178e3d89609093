package classify

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	usDateRe    = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	todayRe     = wordsPattern(`today`)
	tomorrowRe  = wordsPattern(`tomorrow`)
	weekdayRe   = wordsPattern(`monday|tuesday|wednesday|thursday|friday|saturday|sunday`)
	nextWeekRe  = regexp.MustCompile(`(?i)\bnext\s+week\b`)
	timeOfDayRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
)

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

type dateRule func(text string, today time.Time) (time.Time, bool, bool)

// dateRules run in priority order; the first rule that matches wins. The
// second flag reports whether a time-of-day token may refine the result.
var dateRules = []dateRule{
	explicitDate,
	func(text string, today time.Time) (time.Time, bool, bool) {
		return today, todayRe.MatchString(text), true
	},
	func(text string, today time.Time) (time.Time, bool, bool) {
		return today.AddDate(0, 0, 1), tomorrowRe.MatchString(text), true
	},
	namedWeekday,
	func(text string, today time.Time) (time.Time, bool, bool) {
		return today.AddDate(0, 0, 7), nextWeekRe.MatchString(text), false
	},
}

// ResolveDue finds the first recognised date phrase in text and resolves it
// relative to now, in now's location. Dates without a time-of-day are
// returned at midnight. No phrase means no due date.
func ResolveDue(text string, now time.Time) (time.Time, bool) {
	today := StartOfDay(now)
	for _, rule := range dateRules {
		d, ok, timed := rule(text, today)
		if !ok {
			continue
		}
		if timed {
			if h, m, ok := timeOfDay(text); ok {
				d = time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, d.Location())
			}
		}
		return d, true
	}
	return time.Time{}, false
}

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func explicitDate(text string, today time.Time) (time.Time, bool, bool) {
	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		if d, ok := calendarDate(m[1], m[2], m[3], today.Location()); ok {
			return d, true, false
		}
	}
	if m := usDateRe.FindStringSubmatch(text); m != nil {
		if d, ok := calendarDate(m[3], m[1], m[2], today.Location()); ok {
			return d, true, false
		}
	}
	return time.Time{}, false, false
}

// namedWeekday resolves to the next occurrence strictly after today.
func namedWeekday(text string, today time.Time) (time.Time, bool, bool) {
	name := weekdayRe.FindString(text)
	if name == "" {
		return time.Time{}, false, false
	}
	target := weekdays[strings.ToLower(name)]
	days := (int(target) - int(today.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return today.AddDate(0, 0, days), true, true
}

func calendarDate(year, month, day string, loc *time.Location) (time.Time, bool) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)
	// time.Date normalises out-of-range values; reject anything that moved.
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func timeOfDay(text string) (int, int, bool) {
	m := timeOfDayRe.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(m[1])
	if err != nil || hour < 1 || hour > 12 {
		return 0, 0, false
	}
	minute := 0
	if m[2] != "" {
		minute, err = strconv.Atoi(m[2])
		if err != nil || minute > 59 {
			return 0, 0, false
		}
	}
	switch strings.ToLower(m[3]) {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return hour, minute, true
}

package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Pattern string

const (
	PatternDaily   Pattern = "daily"
	PatternWeekly  Pattern = "weekly"
	PatternMonthly Pattern = "monthly"
)

var (
	ErrUnsupportedPattern = errors.New("unsupported recurrence pattern")
	ErrInvalidDuration    = errors.New("invalid duration")
	ErrEndDateBeforeStart = errors.New("recurrence_end_date must be after start_time")
	ErrTooManyOccurrences = errors.New("recurrence produces too many occurrences")
)

func ParsePattern(s string) (Pattern, error) {
	p := Pattern(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PatternDaily, PatternWeekly, PatternMonthly:
		return p, nil
	}
	return "", ErrUnsupportedPattern
}

type RecurrencePlan struct {
	Pattern     Pattern
	AnchorStart time.Time
	AnchorEnd   time.Time
	EndDate     time.Time
}

func (p RecurrencePlan) Duration() time.Duration {
	return p.AnchorEnd.Sub(p.AnchorStart)
}

type Occurrence struct {
	Index     int
	StartTime time.Time
	EndTime   time.Time
}

// Expand lists the occurrences of plan whose start is not after EndDate.
// Steps are taken on the wall clock in loc so that a 09:00 appointment stays at
// 09:00 across DST changes. Monthly steps that land on a missing day clamp to
// the last day of that month; the following month returns to the anchor day.
// A positive limit caps the number of occurrences.
func Expand(plan RecurrencePlan, loc *time.Location, limit int) ([]Occurrence, error) {
	if loc == nil {
		loc = time.UTC
	}
	switch plan.Pattern {
	case PatternDaily, PatternWeekly, PatternMonthly:
	default:
		return nil, ErrUnsupportedPattern
	}

	duration := plan.Duration()
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	if !plan.EndDate.After(plan.AnchorStart) {
		return nil, ErrEndDateBeforeStart
	}

	anchor := plan.AnchorStart.In(loc)
	var out []Occurrence
	for i := 0; ; i++ {
		start := nthOccurrence(plan.Pattern, anchor, i, loc)
		if start.After(plan.EndDate) {
			break
		}
		if limit > 0 && len(out) == limit {
			return nil, fmt.Errorf("%w: more than %d", ErrTooManyOccurrences, limit)
		}
		out = append(out, Occurrence{
			Index:     i,
			StartTime: start.UTC(),
			EndTime:   start.Add(duration).UTC(),
		})
	}
	return out, nil
}

func nthOccurrence(p Pattern, anchor time.Time, n int, loc *time.Location) time.Time {
	switch p {
	case PatternDaily:
		return anchor.AddDate(0, 0, n)
	case PatternWeekly:
		return anchor.AddDate(0, 0, 7*n)
	}

	first := time.Date(anchor.Year(), anchor.Month()+time.Month(n), 1, 0, 0, 0, 0, loc)
	day := anchor.Day()
	if last := daysIn(first.Year(), first.Month(), loc); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, anchor.Hour(), anchor.Minute(), anchor.Second(), anchor.Nanosecond(), loc)
}

func daysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

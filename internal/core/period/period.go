// Package period handles the calendar date ranges a weekly closing covers.
package period

import (
	"fmt"
	"strings"
	"time"

	"fireblue/internal/core/apperror"
)

// DateLayout is the wire format of range bounds.
const DateLayout = "2006-01-02"

// Range is an inclusive span of calendar days.
// Start and End are midnight of their day in the range location.
type Range struct {
	Start time.Time
	End   time.Time
}

// Parse builds a Range from two date strings.
// Dates are YYYY-MM-DD; RFC3339 timestamps are accepted and their date part is used.
func Parse(start, end string, loc *time.Location) (Range, error) {
	if loc == nil {
		loc = time.Local
	}
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return Range{}, apperror.NewInvalidInput("dataInicio", "dataInicio and dataFim are required")
	}

	s, err := parseDate(start, loc)
	if err != nil {
		return Range{}, apperror.NewInvalidInput("dataInicio", "dataInicio must be a date (YYYY-MM-DD)").
			WithDetail("value", start)
	}
	e, err := parseDate(end, loc)
	if err != nil {
		return Range{}, apperror.NewInvalidInput("dataFim", "dataFim must be a date (YYYY-MM-DD)").
			WithDetail("value", end)
	}
	if s.After(e) {
		return Range{}, apperror.NewInvalidInput("dataInicio", "dataInicio must not be after dataFim").
			WithDetail("dataInicio", start).
			WithDetail("dataFim", end)
	}

	return Range{Start: s, End: e}, nil
}

// New builds a Range from two instants, truncated to their calendar days in loc.
func New(start, end time.Time, loc *time.Location) Range {
	if loc == nil {
		loc = time.Local
	}
	return Range{Start: midnight(start.In(loc)), End: midnight(end.In(loc))}
}

func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) && s[len(DateLayout)] == 'T' {
		s = s[:len(DateLayout)]
	}
	return time.ParseInLocation(DateLayout, s, loc)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// From is the first instant inside the range (Start at 00:00:00).
func (r Range) From() time.Time {
	return r.Start
}

// Until is the first instant after the range (the day after End at 00:00:00).
// Queries use ts >= From AND ts < Until, so End 23:59:59 is included.
func (r Range) Until() time.Time {
	return r.End.AddDate(0, 0, 1)
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.From()) && t.Before(r.Until())
}

// WeekKey returns the ISO week of the range start, formatted YYYY-Www.
func (r Range) WeekKey() string {
	return WeekKey(r.Start)
}

// WeekKey formats the ISO 8601 week of t, e.g. 2025-W26.
func WeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// String renders the range as "start..end".
func (r Range) String() string {
	return r.Start.Format(DateLayout) + ".." + r.End.Format(DateLayout)
}

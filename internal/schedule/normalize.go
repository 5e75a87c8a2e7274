// Package schedule converts externally supplied session times into absolute
// instants and decides whether two sessions of the same teacher overlap.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidTimeFormat = errors.New("invalid time format")

// FieldError names the input field that could not be normalized.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidTimeFormat, e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrInvalidTimeFormat
}

const dateLayout = "2006-01-02"

var clockLayouts = []string{
	"03:04 PM",
	"3:04 PM",
	"03:04PM",
	"3:04PM",
	"03:04:05 PM",
	"15:04",
	"15:04:05",
}

var localDateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Normalizer interprets offset-less input in a fixed business location.
type Normalizer struct {
	loc *time.Location
}

func NewNormalizer(loc *time.Location) Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return Normalizer{loc: loc}
}

func (n Normalizer) Location() *time.Location {
	return n.loc
}

func (n Normalizer) parseDate(date string) (time.Time, bool) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), n.loc)
	return d, err == nil
}

func parseClock(clock string) (time.Time, bool) {
	clock = strings.ToUpper(strings.TrimSpace(clock))

	for _, layout := range clockLayouts {
		if c, err := time.Parse(layout, clock); err == nil {
			return c, true
		}
	}

	return time.Time{}, false
}

func (n Normalizer) combine(d, c time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), c.Second(), 0, n.loc).UTC()
}

// Instant combines a calendar date and a wall clock time into a UTC instant.
func (n Normalizer) Instant(date, clock string) (time.Time, error) {
	return n.instant(date, clock, "date", "time")
}

func (n Normalizer) instant(date, clock, dateField, clockField string) (time.Time, error) {
	d, ok := n.parseDate(date)
	if !ok {
		return time.Time{}, &FieldError{Field: dateField, Reason: fmt.Sprintf("%q is not a YYYY-MM-DD date", date)}
	}

	c, ok := parseClock(clock)
	if !ok {
		return time.Time{}, &FieldError{Field: clockField, Reason: fmt.Sprintf("%q is not a valid time of day", clock)}
	}

	return n.combine(d, c), nil
}

// ParseDateTime accepts RFC 3339 values with an explicit offset, or a local
// date-time which is read in the business location.
func (n Normalizer) ParseDateTime(value string) (time.Time, error) {
	return n.parseDateTime(value, "datetime")
}

func (n Normalizer) parseDateTime(value, field string) (time.Time, error) {
	v := strings.TrimSpace(value)

	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), nil
	}

	for _, layout := range localDateTimeLayouts {
		if t, err := time.ParseInLocation(layout, v, n.loc); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, &FieldError{Field: field, Reason: fmt.Sprintf("%q is not a valid datetime", value)}
}

// RangeInput holds either the split form (Date, StartTime, EndTime and an
// optional EndDate for sessions that cross midnight) or the combined Start/End form.
type RangeInput struct {
	Date      string
	EndDate   string
	StartTime string
	EndTime   string
	Start     string
	End       string
}

func (r RangeInput) Combined() bool {
	return r.Start != "" || r.End != ""
}

// Range normalizes both ends of a session and enforces start < end.
func (n Normalizer) Range(in RangeInput) (Interval, error) {
	var start, end time.Time
	var err error

	endField := "end_time"

	if in.Combined() {
		endField = "end"
		if start, err = n.parseDateTime(in.Start, "start"); err != nil {
			return Interval{}, err
		}
		if end, err = n.parseDateTime(in.End, "end"); err != nil {
			return Interval{}, err
		}
	} else {
		endDate, endDateField := in.EndDate, "end_date"
		if endDate == "" {
			endDate, endDateField = in.Date, "date"
		}
		if start, err = n.instant(in.Date, in.StartTime, "date", "start_time"); err != nil {
			return Interval{}, err
		}
		if end, err = n.instant(endDate, in.EndTime, endDateField, "end_time"); err != nil {
			return Interval{}, err
		}
	}

	iv, err := NewInterval(start, end)
	if err != nil {
		return Interval{}, &FieldError{Field: endField, Reason: "must be after start"}
	}

	return iv, nil
}

// DayBounds returns the UTC instants delimiting the business-location day containing t.
func (n Normalizer) DayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(n.loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, n.loc)
	to := from.AddDate(0, 0, 1)

	return from.UTC(), to.UTC()
}

// Display is the read-side presentation of an instant in the business location.
type Display struct {
	DateTime string
	Date     string
	Clock    string
	Clock24  string
}

func (n Normalizer) Display(t time.Time) Display {
	local := t.In(n.loc)

	return Display{
		DateTime: local.Format(time.RFC3339),
		Date:     local.Format(dateLayout),
		Clock:    local.Format("03:04 PM"),
		Clock24:  local.Format("15:04:05"),
	}
}

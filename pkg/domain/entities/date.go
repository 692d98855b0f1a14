package entities

import (
	"fmt"
	"time"
)

// Date is a civil calendar day counted from 1970-01-01 UTC
type Date int32

const (
	// AggregateDate stands in for the production date of untracked (aggregate) cohorts
	AggregateDate Date = -1 << 30
	// NoDate marks an unset date, such as the thaw date of a cohort that never thawed
	NoDate Date = -1 << 31
)

const dateLayout = "2006-01-02"

// NewDate creates a Date from year, month and day
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf truncates a time to its calendar day
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	u := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Date(u.Unix() / 86400)
}

// ParseDate parses a YYYY-MM-DD string
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// Time returns midnight UTC of the day
func (d Date) Time() time.Time {
	return time.Unix(int64(d)*86400, 0).UTC()
}

// AddDays returns the date n days later
func (d Date) AddDays(n int) Date {
	return d + Date(n)
}

// Sub returns the number of days from o to d
func (d Date) Sub(o Date) int {
	return int(d - o)
}

func (d Date) Before(o Date) bool { return d < o }
func (d Date) After(o Date) bool  { return d > o }

// Weekday returns the day of the week
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// IsAggregate reports whether d is the aggregate production date marker
func (d Date) IsAggregate() bool {
	return d == AggregateDate
}

func (d Date) String() string {
	switch d {
	case AggregateDate:
		return "aggregate"
	case NoDate:
		return ""
	}
	return d.Time().Format(dateLayout)
}

// MarshalText implements encoding.TextMarshaler
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (d *Date) UnmarshalText(b []byte) error {
	switch string(b) {
	case "aggregate":
		*d = AggregateDate
		return nil
	case "":
		*d = NoDate
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive range of days
type DateRange struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Contains reports whether d lies within the range
func (r DateRange) Contains(d Date) bool {
	return d >= r.Start && d <= r.End
}

// Days returns the number of days in the range, zero when empty
func (r DateRange) Days() int {
	if r.End < r.Start {
		return 0
	}
	return r.End.Sub(r.Start) + 1
}

// Empty reports whether the range holds no days
func (r DateRange) Empty() bool {
	return r.End < r.Start
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start, r.End)
}

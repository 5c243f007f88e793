// Package timezone converts between zone-local wall-clock values and
// canonical UTC instants. Every conversion takes an explicit location;
// nothing in this package consults time.Local.
package timezone

import (
	"errors"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata"
)

const (
	dateLayout  = "2006-01-02"
	clockLayout = "15:04"
)

var (
	ErrZoneRequired = errors.New("timezone: zone is required")
	ErrUnknownZone  = errors.New("timezone: unknown zone")
	ErrInvalidDate  = errors.New("timezone: invalid date")
	ErrInvalidClock = errors.New("timezone: invalid time of day")
	ErrEmptyRange   = errors.New("timezone: range ends when it starts")
)

var zoneCache sync.Map

// LoadZone resolves an IANA zone name. An empty name is a caller error.
func LoadZone(name string) (*time.Location, error) {
	if name == "" {
		return nil, ErrZoneRequired
	}
	if loc, ok := zoneCache.Load(name); ok {
		return loc.(*time.Location), nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil || name == "Local" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}
	zoneCache.Store(name, loc)
	return loc, nil
}

// ValidZone reports whether name resolves to a concrete IANA zone.
func ValidZone(name string) bool {
	_, err := LoadZone(name)
	return err == nil
}

// Date is a calendar date without a zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// NewDate normalizes out-of-range values the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return dateFromUTC(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

func dateFromUTC(t time.Time) Date {
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (d Date) utc() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	return d.utc().Format(dateLayout)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Weekday of the civil date.
func (d Date) Weekday() time.Weekday {
	return d.utc().Weekday()
}

// AddDays shifts the date by n calendar days.
func (d Date) AddDays(n int) Date {
	return dateFromUTC(d.utc().AddDate(0, 0, n))
}

// DaysUntil returns the number of calendar days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.utc().Sub(d.utc()).Hours() / 24)
}

// Compare returns -1, 0 or +1.
func (d Date) Compare(other Date) int {
	return d.utc().Compare(other.utc())
}

func (d Date) Before(other Date) bool { return d.Compare(other) < 0 }
func (d Date) After(other Date) bool  { return d.Compare(other) > 0 }
func (d Date) Equal(other Date) bool  { return d == other }

// MarshalText encodes the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes YYYY-MM-DD.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Clock is a wall-clock time of day at minute granularity.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses HH:MM in 24h form.
func ParseClock(s string) (Clock, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return Clock{}, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return Clock{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) valid() bool {
	return c.Hour >= 0 && c.Hour < 24 && c.Minute >= 0 && c.Minute < 60
}

// ToInstant interprets date+clock as wall-clock time in loc and returns the
// UTC instant, using the offset in effect on that date. A wall-clock time
// inside a DST gap does not exist and is normalized by the gap length; one
// inside a DST overlap resolves to the earlier of its two instants.
func ToInstant(d Date, c Clock, loc *time.Location) (time.Time, error) {
	if loc == nil {
		return time.Time{}, ErrZoneRequired
	}
	if !c.valid() {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidClock, c)
	}
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, loc).UTC(), nil
}

// ToZonedWallClock renders an instant as the date and time of day a viewer
// in loc would see. Seconds are truncated.
func ToZonedWallClock(t time.Time, loc *time.Location) (Date, Clock, error) {
	if loc == nil {
		return Date{}, Clock{}, ErrZoneRequired
	}
	local := t.In(loc)
	return Date{Year: local.Year(), Month: local.Month(), Day: local.Day()},
		Clock{Hour: local.Hour(), Minute: local.Minute()}, nil
}

// FormatDisplay formats an instant in loc with a Go reference layout.
func FormatDisplay(t time.Time, loc *time.Location, layout string) (string, error) {
	if loc == nil {
		return "", ErrZoneRequired
	}
	return t.In(loc).Format(layout), nil
}

// DateOf returns the calendar date of t as seen in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	local := t.In(loc)
	return Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

// StartOfDay is the first instant of d in loc.
func StartOfDay(d Date, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc).UTC()
}

// DayWindow is the half-open interval covering d in loc. It spans 23 or 25
// hours on DST transition days.
func DayWindow(d Date, loc *time.Location) (time.Time, time.Time) {
	return StartOfDay(d, loc), StartOfDay(d.AddDays(1), loc)
}

// WallClockRange converts a same-form input (one date, two clocks) into
// instants. An end clock before the start clock means the range crosses
// midnight and ends on the following date. Equal clocks are ErrEmptyRange.
func WallClockRange(d Date, start, end Clock, loc *time.Location) (time.Time, time.Time, error) {
	startAt, err := ToInstant(d, start, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end == start {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s-%s", ErrEmptyRange, start, end)
	}
	endDate := d
	if end.minutes() < start.minutes() {
		endDate = d.AddDays(1)
	}
	endAt, err := ToInstant(endDate, end, loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return startAt, endAt, nil
}

package calendar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type monthDay struct {
	month time.Month
	day   int
}

// Holidays holds Monday public holidays keyed by year.
type Holidays struct {
	years map[int]map[monthDay]bool
}

// NewHolidays creates an empty holiday table.
func NewHolidays() *Holidays {
	return &Holidays{years: make(map[int]map[monthDay]bool)}
}

// Add registers a holiday. Dates that do not exist (e.g. 2/30) are rejected.
func (h *Holidays) Add(year int, month time.Month, day int) error {
	if !ValidDate(year, month, day) {
		return fmt.Errorf("invalid holiday %d/%d/%d", year, month, day)
	}
	if h.years[year] == nil {
		h.years[year] = make(map[monthDay]bool)
	}
	h.years[year][monthDay{month, day}] = true
	return nil
}

// AddList registers holidays written as "M/D" strings for one year. The year
// counts as configured even when dates is empty.
func (h *Holidays) AddList(year int, dates []string) error {
	if h.years[year] == nil {
		h.years[year] = make(map[monthDay]bool)
	}
	for _, s := range dates {
		month, day, err := ParseMonthDay(s)
		if err != nil {
			return fmt.Errorf("holidays %d: %w", year, err)
		}
		if err := h.Add(year, month, day); err != nil {
			return fmt.Errorf("holidays %d: %w", year, err)
		}
	}
	return nil
}

// Contains reports whether the calendar date of t is a registered holiday.
// A nil table contains nothing.
func (h *Holidays) Contains(t time.Time) bool {
	if h == nil {
		return false
	}
	return h.years[t.Year()][monthDay{t.Month(), t.Day()}]
}

// HasYear reports whether a table was configured for year.
func (h *Holidays) HasYear(year int) bool {
	if h == nil {
		return false
	}
	_, ok := h.years[year]
	return ok
}

// Years returns the configured years in ascending order.
func (h *Holidays) Years() []int {
	if h == nil {
		return nil
	}
	years := make([]int, 0, len(h.years))
	for y := range h.years {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}

// Dates returns the holidays of one year in calendar order.
func (h *Holidays) Dates(year int) []time.Time {
	if h == nil {
		return nil
	}
	dates := make([]time.Time, 0, len(h.years[year]))
	for md := range h.years[year] {
		dates = append(dates, Date(year, md.month, md.day))
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Date builds a UTC midnight time for a calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ValidDate reports whether year/month/day names a real calendar date.
func ValidDate(year int, month time.Month, day int) bool {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return false
	}
	t := Date(year, month, day)
	return t.Month() == month && t.Day() == day
}

// IsTargetDate reports whether the date is a Saturday, or a Sunday followed by a
// Monday holiday. The following day is computed on the full date so that
// 5/31 looks at 6/1 and 12/31 looks at January of the next year.
func IsTargetDate(year int, month time.Month, day int, holidays *Holidays) bool {
	if !ValidDate(year, month, day) {
		return false
	}
	d := Date(year, month, day)
	switch d.Weekday() {
	case time.Saturday:
		return true
	case time.Sunday:
		return holidays.Contains(d.AddDate(0, 0, 1))
	default:
		return false
	}
}

// IsTarget is IsTargetDate for a time value.
func IsTarget(t time.Time, holidays *Holidays) bool {
	return IsTargetDate(t.Year(), t.Month(), t.Day(), holidays)
}

// TargetSundays lists the Sundays of year that qualify because of a holiday.
func TargetSundays(year int, holidays *Holidays) []time.Time {
	var sundays []time.Time
	for _, y := range []int{year, year + 1} {
		for _, hd := range holidays.Dates(y) {
			prev := hd.AddDate(0, 0, -1)
			if prev.Year() == year && prev.Weekday() == time.Sunday {
				sundays = append(sundays, prev)
			}
		}
	}
	return sundays
}

var weekdaysJP = [...]string{"日", "月", "火", "水", "木", "金", "土"}

// WeekdayJP returns the single-character Japanese weekday name.
func WeekdayJP(w time.Weekday) string {
	return weekdaysJP[w]
}

// ResolveYear picks the year for a month printed without one. Reservation
// calendars only list the current month onwards, so a month earlier than the
// reference month belongs to the following year.
func ResolveYear(month time.Month, ref time.Time) int {
	if month < ref.Month() {
		return ref.Year() + 1
	}
	return ref.Year()
}

// ParseMonthDay parses "M/D" text such as "1/12" or "12/31".
func ParseMonthDay(s string) (time.Month, int, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid month/day %q", s)
	}
	m, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month in %q: %w", s, err)
	}
	d, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid day in %q: %w", s, err)
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return 0, 0, fmt.Errorf("month/day out of range %q", s)
	}
	return time.Month(m), d, nil
}

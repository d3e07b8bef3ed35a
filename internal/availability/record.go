package availability

import (
	"crypto/sha1"
	"fmt"
	"time"

	"github.com/pfrederiksen/camp-watch/internal/calendar"
)

// Level is the normalized meaning of a site's status token.
type Level string

const (
	LevelAvailable Level = "available"
	LevelFewLeft   Level = "few-left"
	LevelFull      Level = "full"
)

// Date is a calendar date without time of day.
type Date struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// Time returns the date at UTC midnight.
func (d Date) Time() time.Time {
	return calendar.Date(d.Year, d.Month, d.Day)
}

// Weekday returns the day of the week.
func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// Before reports whether d is earlier than o.
func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

// String formats the date as "M/D", the way the monitored sites print it.
func (d Date) String() string {
	return fmt.Sprintf("%d/%d", int(d.Month), d.Day)
}

// Record is one availability observation.
type Record struct {
	Date     Date   `json:"date"`
	Status   string `json:"status"`
	Level    Level  `json:"level"`
	Detail   string `json:"detail,omitempty"`
	Facility string `json:"facility,omitempty"`
}

// InvalidDateError is returned for a day/month that does not exist in the given year.
type InvalidDateError struct {
	Year  int
	Month int
	Day   int
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %d/%d/%d", e.Year, e.Month, e.Day)
}

// NewRecord validates the date and builds a Record.
func NewRecord(year, month, day int, status string, level Level, detail, facility string) (Record, error) {
	if month < 1 || month > 12 || !calendar.ValidDate(year, time.Month(month), day) {
		return Record{}, &InvalidDateError{Year: year, Month: month, Day: day}
	}
	if level == "" {
		level = LevelFewLeft
	}
	return Record{
		Date:     Date{Year: year, Month: time.Month(month), Day: day},
		Status:   status,
		Level:    level,
		Detail:   detail,
		Facility: facility,
	}, nil
}

// Key identifies the slot a record describes: the same date at the same facility.
func (r Record) Key() string {
	return fmt.Sprintf("%04d-%02d-%02d|%s", r.Date.Year, int(r.Date.Month), r.Date.Day, r.Facility)
}

// ID is a deterministic hash of the slot and its status.
func (r Record) ID() string {
	h := sha1.New()
	h.Write([]byte(r.Key() + "|" + r.Status + "|" + r.Detail))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// WeekdayJP returns the Japanese weekday character for the record's date.
func (r Record) WeekdayJP() string {
	return calendar.WeekdayJP(r.Date.Weekday())
}

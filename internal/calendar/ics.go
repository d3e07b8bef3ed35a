package calendar

import (
	"time"

	ics "github.com/arran4/golang-ical"
)

const prodID = "-//camp-watch//camp-watch//JA"

// Entry is one all-day calendar event, typically an open campsite night.
type Entry struct {
	UID         string
	Date        time.Time
	Summary     string
	Description string
	URL         string
	Location    string
}

// GenerateICS renders entries as an iCalendar document of all-day events.
// Entries are tentative and transparent: an open slot is not a booking.
func GenerateICS(entries []Entry, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(prodID)
	cal.SetXWRCalName("camp-watch")

	for _, e := range entries {
		day := Date(e.Date.Year(), e.Date.Month(), e.Date.Day())

		evt := cal.AddEvent(e.UID + "@camp-watch")
		evt.SetDtStampTime(now.UTC())
		evt.SetAllDayStartAt(day)
		evt.SetAllDayEndAt(day.AddDate(0, 0, 1))
		evt.SetSummary(e.Summary)
		if e.Description != "" {
			evt.SetDescription(e.Description)
		}
		if e.URL != "" {
			evt.SetURL(e.URL)
		}
		if e.Location != "" {
			evt.SetLocation(e.Location)
		}
		evt.SetProperty(ics.ComponentPropertyStatus, "TENTATIVE")
		evt.SetProperty(ics.ComponentPropertyTransp, "TRANSPARENT")
	}

	return cal.Serialize()
}

// Package filter reduces extracted availability records to the ones worth
// announcing and groups them for the notification formatter.
//
// A record survives when it is not full, falls on a target date (a Saturday, or
// a Sunday before a Monday holiday) and passes the site's facility rules.
// Survivors are deduplicated per (date, facility) and grouped by month and then
// by facility, keeping first-seen order at every level.
//
// Example usage:
//
//	result := filter.Aggregate(records, holidays, site.Facilities)
//	if result == nil {
//		return // nothing to announce
//	}
//	text := notifier.Format(site, result)
package filter

import (
	"fmt"
	"time"

	"github.com/pfrederiksen/camp-watch/internal/availability"
	"github.com/pfrederiksen/camp-watch/internal/calendar"
	"github.com/pfrederiksen/camp-watch/internal/site"
)

// GroupedResult is the set of qualifying records, grouped by month.
type GroupedResult struct {
	Months []MonthGroup `json:"months"`
}

// MonthGroup holds the qualifying records of one calendar month.
type MonthGroup struct {
	Year       int             `json:"year"`
	Month      time.Month      `json:"month"`
	Label      string          `json:"label"`
	Facilities []FacilityGroup `json:"facilities"`
}

// FacilityGroup holds the records of one facility within a month. Sites that do
// not report facilities have a single group with an empty name.
type FacilityGroup struct {
	Facility string                `json:"facility,omitempty"`
	Records  []availability.Record `json:"records"`
}

// MonthLabel renders a month the way reservation sites print it, e.g. "2月".
func MonthLabel(m time.Month) string {
	return fmt.Sprintf("%d月", int(m))
}

// Aggregate filters and groups records. It returns nil when nothing qualifies,
// which callers treat as "send nothing". The input slice is not modified.
func Aggregate(records []availability.Record, holidays *calendar.Holidays, rules *site.FacilityRules) *GroupedResult {
	kept := Qualifying(records, holidays, rules)
	if len(kept) == 0 {
		return nil
	}

	result := &GroupedResult{}
	monthIdx := make(map[string]int)
	facilityIdx := make(map[string]int)

	for _, r := range kept {
		mk := fmt.Sprintf("%04d-%02d", r.Date.Year, int(r.Date.Month))
		mi, ok := monthIdx[mk]
		if !ok {
			mi = len(result.Months)
			monthIdx[mk] = mi
			result.Months = append(result.Months, MonthGroup{
				Year:  r.Date.Year,
				Month: r.Date.Month,
				Label: MonthLabel(r.Date.Month),
			})
		}

		month := &result.Months[mi]
		fk := mk + "|" + r.Facility
		fi, ok := facilityIdx[fk]
		if !ok {
			fi = len(month.Facilities)
			facilityIdx[fk] = fi
			month.Facilities = append(month.Facilities, FacilityGroup{Facility: r.Facility})
		}
		month.Facilities[fi].Records = append(month.Facilities[fi].Records, r)
	}

	return result
}

// Qualifying returns the deduplicated records that pass the level, date and
// facility checks, in first-seen order. A later record for the same date and
// facility replaces the content of an earlier one but keeps its position.
func Qualifying(records []availability.Record, holidays *calendar.Holidays, rules *site.FacilityRules) []availability.Record {
	var kept []availability.Record
	seen := make(map[string]int)

	for _, r := range records {
		if !Eligible(r, holidays, rules) {
			continue
		}
		if i, ok := seen[r.Key()]; ok {
			kept[i] = r
			continue
		}
		seen[r.Key()] = len(kept)
		kept = append(kept, r)
	}
	return kept
}

// Eligible reports whether a single record should be announced.
func Eligible(r availability.Record, holidays *calendar.Holidays, rules *site.FacilityRules) bool {
	if r.Level == availability.LevelFull {
		return false
	}
	if !calendar.IsTargetDate(r.Date.Year, r.Date.Month, r.Date.Day, holidays) {
		return false
	}
	return rules.Eligible(r.Facility, r.Date.Month)
}

// Len returns the number of records across all groups.
func (g *GroupedResult) Len() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, m := range g.Months {
		for _, f := range m.Facilities {
			n += len(f.Records)
		}
	}
	return n
}

// Records flattens the groups back into one slice in display order.
func (g *GroupedResult) Records() []availability.Record {
	if g == nil {
		return nil
	}
	out := make([]availability.Record, 0, g.Len())
	for _, m := range g.Months {
		for _, f := range m.Facilities {
			out = append(out, f.Records...)
		}
	}
	return out
}

// HasFacilities reports whether any group is named after a facility.
func (g *GroupedResult) HasFacilities() bool {
	if g == nil {
		return false
	}
	for _, m := range g.Months {
		for _, f := range m.Facilities {
			if f.Facility != "" {
				return true
			}
		}
	}
	return false
}

package cli

import (
	"sort"

	"github.com/pfrederiksen/camp-watch/internal/availability"
	"github.com/pfrederiksen/camp-watch/internal/monitor"
)

// SortOrder represents the available report orders
type SortOrder string

const (
	SortBySite SortOrder = "site"
	SortByDate SortOrder = "date"
)

// reportEntry is a qualifying record tagged with its site.
type reportEntry struct {
	Site   string
	Record availability.Record
}

func collectEntries(sites []monitor.SiteResult) []reportEntry {
	var entries []reportEntry
	for _, s := range sites {
		for _, r := range s.Result.Records() {
			entries = append(entries, reportEntry{Site: s.Site, Record: r})
		}
	}
	return entries
}

// sortEntries orders entries in place. SortBySite keeps configuration order.
func sortEntries(entries []reportEntry, order SortOrder) {
	if order != SortByDate {
		return
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return compareByDate(entries[i], entries[j])
	})
}

// compareByDate compares two entries by date, then site, then facility.
// Returns true if entry i should come before entry j
func compareByDate(i, j reportEntry) bool {
	di, dj := i.Record.Date, j.Record.Date
	if di != dj {
		return di.Before(dj)
	}
	if i.Site != j.Site {
		return i.Site < j.Site
	}
	return i.Record.Facility < j.Record.Facility
}

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/camp-watch/internal/monitor"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// OutputResult contains data to be output
type OutputResult struct {
	CheckedAt       time.Time            `json:"checked_at"`
	Sites           []monitor.SiteResult `json:"sites"`
	QualifyingCount int                  `json:"qualifying_count"`
	Notified        int                  `json:"notified"`
	AllFailed       bool                 `json:"all_failed"`
}

// NewOutputResult summarizes a run.
func NewOutputResult(run *monitor.RunResult) *OutputResult {
	result := &OutputResult{
		CheckedAt: run.StartedAt.UTC(),
		Sites:     run.Sites,
		AllFailed: run.AllFailed(),
	}
	for _, s := range run.Sites {
		result.QualifyingCount += s.Qualifying
		if s.Notified {
			result.Notified++
		}
	}
	return result
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, order SortOrder, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, order, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// writeJSON outputs results as JSON
func writeJSON(w io.Writer, result *OutputResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// writeText outputs results as human-readable text
func writeText(w io.Writer, result *OutputResult, order SortOrder, verbose bool) error {
	for _, s := range result.Sites {
		fmt.Fprintf(w, "%s (%s): %s\n", s.Site, s.DisplayName, siteSummary(s))
		if order == SortBySite {
			for _, r := range s.Result.Records() {
				fmt.Fprintf(w, "  %s\n", formatEntry(reportEntry{Record: r}, false))
				if verbose && r.Detail != "" {
					fmt.Fprintf(w, "       Detail: %s\n", r.Detail)
				}
			}
		}
		if verbose {
			for _, e := range s.Errors {
				fmt.Fprintf(w, "       Error: %s\n", e)
			}
		}
	}

	if order == SortByDate {
		entries := collectEntries(result.Sites)
		sortEntries(entries, order)
		if len(entries) > 0 {
			fmt.Fprintln(w)
		}
		for _, e := range entries {
			fmt.Fprintf(w, "  %s\n", formatEntry(e, true))
		}
	}

	if result.QualifyingCount == 0 {
		fmt.Fprintln(w, "\nNo open target dates found.")
		return nil
	}
	fmt.Fprintf(w, "\nTotal: %d open target dates across %d sites\n", result.QualifyingCount, len(result.Sites))
	return nil
}

func siteSummary(s monitor.SiteResult) string {
	switch {
	case s.Pages > 0 && s.Failed():
		return fmt.Sprintf("FAILED (%d/%d pages)", s.FailedPages, s.Pages)
	case s.Pages == 0:
		return "FAILED (not checked)"
	case s.Qualifying == 0:
		return fmt.Sprintf("no open target dates (%d records extracted)", s.Extracted)
	}

	summary := fmt.Sprintf("%d open target dates", s.Qualifying)
	switch {
	case s.Notified:
		summary += ", notified"
	case s.Duplicate:
		summary += ", unchanged since last notification"
	case len(s.Errors) > 0:
		summary += ", notification failed"
	}
	return summary
}

func formatEntry(e reportEntry, withSite bool) string {
	r := e.Record
	line := fmt.Sprintf("%04d-%02d-%02d (%s) %s", r.Date.Year, int(r.Date.Month), r.Date.Day, r.WeekdayJP(), r.Status)
	if r.Facility != "" {
		line += " " + r.Facility
	}
	if withSite {
		line = fmt.Sprintf("%s  %s", line, e.Site)
	}
	return line
}

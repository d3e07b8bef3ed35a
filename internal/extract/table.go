package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/pfrederiksen/camp-watch/internal/availability"
	"github.com/pfrederiksen/camp-watch/internal/logger"
	"github.com/pfrederiksen/camp-watch/internal/site"
)

var (
	DefaultTableSelector    = "table"
	DefaultAvailableMarkers = []string{"〇", "○", "△"}
	DefaultWeekdayMarkers   = []string{"土", "日"}

	labelDatePattern = regexp.MustCompile(`(\d{1,2})/(\d{1,2})`)
)

// TableDOM reads a facility-by-date table.
type TableDOM struct {
	ext site.Extraction
}

// NewTableDOM fills unset selector and marker lists with defaults.
func NewTableDOM(ext site.Extraction) *TableDOM {
	if ext.TableSelector == "" {
		ext.TableSelector = DefaultTableSelector
	}
	if len(ext.AvailableMarkers) == 0 {
		ext.AvailableMarkers = DefaultAvailableMarkers
	}
	if len(ext.WeekdayMarkers) == 0 {
		ext.WeekdayMarkers = DefaultWeekdayMarkers
	}
	if len(ext.AvailableTokens) == 0 {
		ext.AvailableTokens = []string{"〇", "○"}
	}
	return &TableDOM{ext: ext}
}

// Extract walks the body rows of the first matching table. The header row
// supplies the date label for each column; the first cell of every row names
// the facility.
func (s *TableDOM) Extract(page Page) ([]availability.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Content))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	table := doc.Find(s.ext.TableSelector).First()
	if table.Length() == 0 {
		logger.Debug("no calendar table on page", logger.Fields{"selector": s.ext.TableSelector})
		return nil, nil
	}

	header, rows := splitRows(table)
	if header == nil {
		return nil, nil
	}

	var labels []string
	header.Find("th, td").Slice(1, goquery.ToEnd).Each(func(_ int, cell *goquery.Selection) {
		labels = append(labels, cleanText(cell.Text()))
	})

	var records []availability.Record
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		facility := cleanText(cells.First().Text())

		cells.Slice(1, goquery.ToEnd).Each(func(idx int, cell *goquery.Selection) {
			if idx >= len(labels) {
				return
			}
			label := labels[idx]
			status := cleanText(cell.Text())

			if !containsAny(label, s.ext.WeekdayMarkers) || !containsAny(status, s.ext.AvailableMarkers) {
				return
			}

			rec, err := s.record(page, label, status, facility)
			if err != nil {
				dropRecord(site.StrategyTableDOM, label+" "+facility, err)
				return
			}
			records = append(records, rec)
		})
	})
	return records, nil
}

func (s *TableDOM) record(page Page, label, status, facility string) (availability.Record, error) {
	m := labelDatePattern.FindStringSubmatch(label)
	if m == nil {
		return availability.Record{}, fmt.Errorf("no month/day in label %q", label)
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return availability.Record{}, fmt.Errorf("month %d out of range", month)
	}
	year := page.yearFor(time.Month(month))
	return availability.NewRecord(year, month, day, status, s.ext.LevelOf(status), "", facility)
}

// splitRows separates the header row from the body rows. Tables without a
// thead use their first row as the header.
func splitRows(table *goquery.Selection) (*goquery.Selection, *goquery.Selection) {
	if head := table.Find("thead tr").First(); head.Length() > 0 {
		return head, table.Find("tbody tr")
	}
	all := table.Find("tr")
	if all.Length() == 0 {
		return nil, nil
	}
	return all.First(), all.Slice(1, goquery.ToEnd)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

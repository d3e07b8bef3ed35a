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

// CellStatusOpen is the status recorded for an open cell that carries no text
// besides its date.
const CellStatusOpen = "空き"

var (
	DefaultOpenMarkers     = []string{"割増", "通常"}
	DefaultCellFullMarkers = []string{"満"}

	cellDayPattern = regexp.MustCompile(`\d{1,2}`)
)

// CellScan reads a calendar whose cells each hold one day: a date, its
// weekday and a status. Cells carrying an open marker are open; otherwise a
// cell is open unless it shows a full marker.
type CellScan struct {
	ext site.Extraction
}

// NewCellScan fills unset selector, marker and token lists with defaults.
// AvailableMarkers are the open markers, FullTokens the full markers.
func NewCellScan(ext site.Extraction) *CellScan {
	if ext.TableSelector == "" {
		ext.TableSelector = DefaultTableSelector
	}
	if len(ext.AvailableMarkers) == 0 {
		ext.AvailableMarkers = DefaultOpenMarkers
	}
	if len(ext.FullTokens) == 0 {
		ext.FullTokens = DefaultCellFullMarkers
	}
	if len(ext.WeekdayMarkers) == 0 {
		ext.WeekdayMarkers = DefaultWeekdayMarkers
	}
	if len(ext.AvailableTokens) == 0 {
		ext.AvailableTokens = DefaultOpenMarkers
	}
	return &CellScan{ext: ext}
}

// Extract scans every td of every matching table. A cell names its date as
// "M/D" or, on a month-scoped page, as a bare day number.
func (s *CellScan) Extract(page Page) ([]availability.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page.Content))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	cells := doc.Find(s.ext.TableSelector).Find("td")
	if cells.Length() == 0 {
		logger.Debug("no calendar cells on page", logger.Fields{"selector": s.ext.TableSelector})
		return nil, nil
	}

	var records []availability.Record
	cells.Each(func(_ int, cell *goquery.Selection) {
		text := cleanText(cell.Text())
		if !cellDayPattern.MatchString(text) || !containsAny(text, s.ext.WeekdayMarkers) {
			return
		}
		open := containsAny(text, s.ext.AvailableMarkers)
		if !open && containsAny(text, s.ext.FullTokens) {
			return
		}

		rec, ok, err := s.record(page, text)
		if err != nil {
			dropRecord(site.StrategyCellScan, text, err)
			return
		}
		if ok {
			records = append(records, rec)
		}
	})
	return records, nil
}

// record builds the record of one open cell. It reports false for a bare day
// number on a page without month context.
func (s *CellScan) record(page Page, text string) (availability.Record, bool, error) {
	var month, day int
	var dateText string
	if m := labelDatePattern.FindStringSubmatch(text); m != nil {
		month, _ = strconv.Atoi(m[1])
		day, _ = strconv.Atoi(m[2])
		dateText = m[0]
	} else {
		if page.Month == 0 {
			logger.Debug("day without month context", logger.Fields{"cell": truncate(text, 40)})
			return availability.Record{}, false, nil
		}
		dateText = cellDayPattern.FindString(text)
		day, _ = strconv.Atoi(dateText)
		month = int(page.Month)
	}
	if month < 1 || month > 12 {
		return availability.Record{}, false, fmt.Errorf("month %d out of range", month)
	}

	status := s.status(text, dateText)
	level := availability.LevelFewLeft
	if containsAny(status, s.ext.AvailableTokens) {
		level = availability.LevelAvailable
	}

	year := page.yearFor(time.Month(month))
	rec, err := availability.NewRecord(year, month, day, status, level, "", "")
	return rec, err == nil, err
}

// status is the cell text without its date and leading weekday.
func (s *CellScan) status(text, dateText string) string {
	rest := strings.Replace(text, dateText, "", 1)
	rest = strings.TrimLeft(rest, " ()（）")
	for _, w := range s.ext.WeekdayMarkers {
		if strings.HasPrefix(rest, w) {
			rest = strings.TrimLeft(strings.TrimPrefix(rest, w), " ()（）")
			break
		}
	}
	if rest = strings.TrimSpace(rest); rest == "" {
		return CellStatusOpen
	}
	return rest
}

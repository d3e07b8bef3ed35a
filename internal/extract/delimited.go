package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/pfrederiksen/camp-watch/internal/availability"
	"github.com/pfrederiksen/camp-watch/internal/site"
)

const (
	// DefaultDelimitedDetailPattern matches "2/14 残7（ラM2,フM）" and "2/7 〇".
	DefaultDelimitedDetailPattern = `(\d+)/(\d+)\s+(〇|残\d+)(?:（([^）]+)）)?`
	// DefaultDetail is used when a match carries no parenthesized detail.
	DefaultDetail = "全サイト対象"
)

// DelimitedDetail captures month, day, status and an optional detail in one pass.
type DelimitedDetail struct {
	re  *regexp.Regexp
	ext site.Extraction
}

// NewDelimitedDetail compiles the configured pattern. Groups are month, day,
// status and, optionally, detail.
func NewDelimitedDetail(ext site.Extraction) (*DelimitedDetail, error) {
	pattern := ext.Pattern
	if pattern == "" {
		pattern = DefaultDelimitedDetailPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling delimited-detail pattern: %w", err)
	}
	if re.NumSubexp() < 3 {
		return nil, fmt.Errorf("delimited-detail pattern needs at least 3 capture groups, has %d", re.NumSubexp())
	}
	if ext.DefaultDetail == "" {
		ext.DefaultDetail = DefaultDetail
	}
	if len(ext.AvailableTokens) == 0 {
		ext.AvailableTokens = []string{"〇"}
	}
	return &DelimitedDetail{re: re, ext: ext}, nil
}

// Extract returns one record per match in document order.
func (s *DelimitedDetail) Extract(page Page) ([]availability.Record, error) {
	var records []availability.Record
	for _, m := range s.re.FindAllStringSubmatch(page.Content, -1) {
		month, err := strconv.Atoi(m[1])
		if err != nil {
			dropRecord(site.StrategyDelimitedDetail, m[0], err)
			continue
		}
		day, err := strconv.Atoi(m[2])
		if err != nil {
			dropRecord(site.StrategyDelimitedDetail, m[0], err)
			continue
		}
		if month < 1 || month > 12 {
			dropRecord(site.StrategyDelimitedDetail, m[0], fmt.Errorf("month %d out of range", month))
			continue
		}

		status := m[3]
		detail := s.ext.DefaultDetail
		if len(m) > 4 && m[4] != "" {
			detail = m[4]
		}

		year := page.yearFor(time.Month(month))
		rec, err := availability.NewRecord(year, month, day, status, s.ext.LevelOf(status), detail, "")
		if err != nil {
			dropRecord(site.StrategyDelimitedDetail, m[0], err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

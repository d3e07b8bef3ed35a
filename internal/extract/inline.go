package extract

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/pfrederiksen/camp-watch/internal/availability"
	"github.com/pfrederiksen/camp-watch/internal/site"
)

// DefaultInlinePairPattern matches a day cell followed by its status cell.
const DefaultInlinePairPattern = `<div[^>]*>(\d+)</div>[\s\S]*?<div[^>]*>(残室あり|残りわずか)</div>`

// InlinePair pairs a day number with a status token inside a month page.
type InlinePair struct {
	re  *regexp.Regexp
	ext site.Extraction
}

// NewInlinePair compiles the configured pattern, which needs a day group and a status group.
func NewInlinePair(ext site.Extraction) (*InlinePair, error) {
	pattern := ext.Pattern
	if pattern == "" {
		pattern = DefaultInlinePairPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling inline-pair pattern: %w", err)
	}
	if re.NumSubexp() < 2 {
		return nil, fmt.Errorf("inline-pair pattern needs 2 capture groups, has %d", re.NumSubexp())
	}
	if len(ext.AvailableTokens) == 0 {
		ext.AvailableTokens = []string{"残室あり"}
	}
	return &InlinePair{re: re, ext: ext}, nil
}

// Extract returns one record per non-overlapping match, left to right.
func (s *InlinePair) Extract(page Page) ([]availability.Record, error) {
	if page.Month == 0 {
		return nil, fmt.Errorf("inline-pair needs a month-scoped page")
	}

	var records []availability.Record
	for _, loc := range s.re.FindAllStringSubmatchIndex(page.Content, -1) {
		loc = s.narrow(page.Content, loc)
		match := page.Content[loc[0]:loc[1]]
		dayText := page.Content[loc[2]:loc[3]]
		status := page.Content[loc[4]:loc[5]]

		day, err := strconv.Atoi(dayText)
		if err != nil {
			dropRecord(site.StrategyInlinePair, match, err)
			continue
		}
		rec, err := availability.NewRecord(page.Year, int(page.Month), day, status, s.ext.LevelOf(status), "", "")
		if err != nil {
			dropRecord(site.StrategyInlinePair, match, err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// narrow shrinks a match to the last day cell before the status. A lazy gap can
// still start at an earlier day with no status of its own; the status belongs to
// the closest preceding day.
func (s *InlinePair) narrow(content string, loc []int) []int {
	for {
		start, end := loc[0]+1, loc[1]
		if start >= end {
			return loc
		}
		sub := s.re.FindStringSubmatchIndex(content[start:end])
		if sub == nil || start+sub[1] != end {
			return loc
		}
		shifted := make([]int, len(sub))
		for i, v := range sub {
			if v < 0 {
				shifted[i] = v
				continue
			}
			shifted[i] = start + v
		}
		loc = shifted
	}
}

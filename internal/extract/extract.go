package extract

import (
	"fmt"
	"strings"
	"time"

	"github.com/pfrederiksen/camp-watch/internal/availability"
	"github.com/pfrederiksen/camp-watch/internal/calendar"
	"github.com/pfrederiksen/camp-watch/internal/logger"
	"github.com/pfrederiksen/camp-watch/internal/site"
)

// Page is fetched content plus the month it was requested for, if any.
type Page struct {
	Content string
	Year    int
	Month   time.Month
	Ref     time.Time
}

// yearFor returns the year of a month printed on the page without one.
func (p Page) yearFor(month time.Month) int {
	if p.Year != 0 && p.Month == month {
		return p.Year
	}
	ref := p.Ref
	if p.Year != 0 {
		ref = calendar.Date(p.Year, p.Month, 1)
	}
	if ref.IsZero() {
		ref = time.Now()
	}
	return calendar.ResolveYear(month, ref)
}

// Strategy extracts availability records from a page.
type Strategy interface {
	Extract(page Page) ([]availability.Record, error)
}

// New returns the strategy configured for a site.
func New(ext site.Extraction) (Strategy, error) {
	switch ext.Strategy {
	case site.StrategyInlinePair:
		return NewInlinePair(ext)
	case site.StrategyDelimitedDetail:
		return NewDelimitedDetail(ext)
	case site.StrategyTableDOM:
		return NewTableDOM(ext), nil
	case site.StrategyCellScan:
		return NewCellScan(ext), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", ext.Strategy)
	}
}

func dropRecord(strategy site.StrategyID, match string, err error) {
	logger.Warn("dropping malformed record", logger.Fields{
		"strategy": string(strategy),
		"match":    truncate(match, 120),
		"error":    err.Error(),
	})
	logger.IncrCounter("records.dropped")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

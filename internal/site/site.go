package site

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pfrederiksen/camp-watch/internal/availability"
)

// FetchMode selects how a site's pages are retrieved.
type FetchMode string

const (
	FetchStatic  FetchMode = "static"
	FetchBrowser FetchMode = "browser"
)

// StrategyID selects how availability is read from a page.
type StrategyID string

const (
	StrategyInlinePair      StrategyID = "inline-pair"
	StrategyDelimitedDetail StrategyID = "delimited-detail"
	StrategyTableDOM        StrategyID = "table-dom"
	StrategyCellScan        StrategyID = "cell-scan"
)

const DefaultMonthFormat = "2006-01"

// Site is one monitored reservation page.
type Site struct {
	Name         string         `yaml:"name" json:"name"`
	DisplayName  string         `yaml:"display_name" json:"display_name"`
	Username     string         `yaml:"username" json:"username"`
	Disabled     bool           `yaml:"disabled" json:"disabled,omitempty"`
	Fetch        FetchMode      `yaml:"fetch" json:"fetch"`
	URL          string         `yaml:"url" json:"url"`
	MonthParam   string         `yaml:"month_param" json:"month_param,omitempty"`
	MonthFormat  string         `yaml:"month_format" json:"month_format,omitempty"`
	MonthsAhead  int            `yaml:"months_ahead" json:"months_ahead,omitempty"`
	WaitSelector string         `yaml:"wait_selector" json:"wait_selector,omitempty"`
	Link         string         `yaml:"link" json:"link"`
	Extraction   Extraction     `yaml:"extraction" json:"extraction"`
	Facilities   *FacilityRules `yaml:"facilities" json:"facilities,omitempty"`
}

// Extraction holds the strategy id and its parameters.
type Extraction struct {
	Strategy         StrategyID `yaml:"strategy" json:"strategy"`
	Pattern          string     `yaml:"pattern" json:"pattern,omitempty"`
	AvailableTokens  []string   `yaml:"available_tokens" json:"available_tokens,omitempty"`
	FullTokens       []string   `yaml:"full_tokens" json:"full_tokens,omitempty"`
	DefaultDetail    string     `yaml:"default_detail" json:"default_detail,omitempty"`
	TableSelector    string     `yaml:"table_selector" json:"table_selector,omitempty"`
	AvailableMarkers []string   `yaml:"available_markers" json:"available_markers,omitempty"`
	WeekdayMarkers   []string   `yaml:"weekday_markers" json:"weekday_markers,omitempty"`
}

// LevelOf maps a status token to its normalized level. Tokens not listed as
// available or full were matched as open and count as few-left.
func (e Extraction) LevelOf(status string) availability.Level {
	for _, tok := range e.FullTokens {
		if strings.Contains(status, tok) {
			return availability.LevelFull
		}
	}
	for _, tok := range e.AvailableTokens {
		if strings.Contains(status, tok) {
			return availability.LevelAvailable
		}
	}
	return availability.LevelFewLeft
}

// FacilityRules restrict which facilities are reported. Facilities in Always are
// reported all year; facilities in Seasonal only in SeasonMonths.
type FacilityRules struct {
	Always       []string `yaml:"always" json:"always,omitempty"`
	Seasonal     []string `yaml:"seasonal" json:"seasonal,omitempty"`
	SeasonMonths []int    `yaml:"season_months" json:"season_months,omitempty"`
}

// Eligible reports whether a facility may be reported for a month.
// Nil rules allow everything.
func (r *FacilityRules) Eligible(facility string, month time.Month) bool {
	if r == nil {
		return true
	}
	if contains(r.Always, facility) {
		return true
	}
	if !contains(r.Seasonal, facility) {
		return false
	}
	for _, m := range r.SeasonMonths {
		if time.Month(m) == month {
			return true
		}
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// ConfigError reports an unusable site definition.
type ConfigError struct {
	Site   string
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	name := e.Site
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("site %s: %s: %s", name, e.Field, e.Reason)
}

// ApplyDefaults fills optional fields.
func (s *Site) ApplyDefaults() {
	s.Name = strings.TrimSpace(s.Name)
	if s.DisplayName == "" {
		s.DisplayName = s.Name
	}
	if s.Username == "" {
		s.Username = s.DisplayName + "監視bot"
	}
	if s.Fetch == "" {
		s.Fetch = FetchStatic
	}
	if s.MonthParam != "" {
		if s.MonthFormat == "" {
			s.MonthFormat = DefaultMonthFormat
		}
		if s.MonthsAhead == 0 {
			s.MonthsAhead = 1
		}
	}
	if s.Link == "" {
		s.Link = s.URL
	}
}

// Validate checks required fields and value ranges.
func (s *Site) Validate() error {
	if s.Name == "" {
		return &ConfigError{Field: "name", Reason: "is required"}
	}
	if s.URL == "" {
		return &ConfigError{Site: s.Name, Field: "url", Reason: "is required"}
	}
	u, err := url.Parse(s.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ConfigError{Site: s.Name, Field: "url", Reason: fmt.Sprintf("invalid url %q", s.URL)}
	}
	switch s.Fetch {
	case FetchStatic, FetchBrowser:
	default:
		return &ConfigError{Site: s.Name, Field: "fetch", Reason: fmt.Sprintf("unknown mode %q", s.Fetch)}
	}
	switch s.Extraction.Strategy {
	case StrategyInlinePair, StrategyDelimitedDetail, StrategyTableDOM, StrategyCellScan:
	case "":
		return &ConfigError{Site: s.Name, Field: "extraction.strategy", Reason: "is required"}
	default:
		return &ConfigError{Site: s.Name, Field: "extraction.strategy", Reason: fmt.Sprintf("unknown strategy %q", s.Extraction.Strategy)}
	}
	if s.Extraction.Strategy == StrategyInlinePair && s.MonthParam == "" {
		return &ConfigError{Site: s.Name, Field: "month_param", Reason: "inline-pair pages carry no month, month_param is required"}
	}
	if s.MonthsAhead < 0 || s.MonthsAhead > 12 {
		return &ConfigError{Site: s.Name, Field: "months_ahead", Reason: "must be between 0 and 12"}
	}
	if r := s.Facilities; r != nil {
		if len(r.Always) == 0 && len(r.Seasonal) == 0 {
			return &ConfigError{Site: s.Name, Field: "facilities", Reason: "needs always or seasonal facilities"}
		}
		if len(r.Seasonal) > 0 && len(r.SeasonMonths) == 0 {
			return &ConfigError{Site: s.Name, Field: "facilities.season_months", Reason: "required with seasonal facilities"}
		}
		for _, m := range r.SeasonMonths {
			if m < 1 || m > 12 {
				return &ConfigError{Site: s.Name, Field: "facilities.season_months", Reason: fmt.Sprintf("month %d out of range", m)}
			}
		}
	}
	return nil
}

// Paginated reports whether the site is fetched once per month.
func (s *Site) Paginated() bool {
	return s.MonthParam != ""
}

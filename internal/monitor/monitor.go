// Package monitor runs one poll cycle across all configured sites: fetch every
// page, extract records, keep the qualifying ones and dispatch a notification
// per site that has any.
//
// Sites run concurrently and independently. A failing site is logged and
// reported in the RunResult; it never stops the others.
package monitor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pfrederiksen/camp-watch/internal/availability"
	"github.com/pfrederiksen/camp-watch/internal/calendar"
	"github.com/pfrederiksen/camp-watch/internal/extract"
	"github.com/pfrederiksen/camp-watch/internal/filter"
	"github.com/pfrederiksen/camp-watch/internal/logger"
	"github.com/pfrederiksen/camp-watch/internal/notifier"
	"github.com/pfrederiksen/camp-watch/internal/scraper"
	"github.com/pfrederiksen/camp-watch/internal/site"
	"github.com/pfrederiksen/camp-watch/internal/storage"
)

const defaultConcurrency = 4

// Options tune a Monitor. Zero values select defaults.
type Options struct {
	Concurrency int
	Pacing      time.Duration
	// Store enables deduplication of identical consecutive messages.
	Store *storage.Storage
	// Fetcher overrides fetcher selection, mainly for tests.
	Fetcher func(*site.Site) scraper.Fetcher
	Now     func() time.Time
}

// Monitor checks a fixed set of sites.
type Monitor struct {
	sites    []*site.Site
	holidays *calendar.Holidays
	notifier notifier.Notifier
	opts     Options
}

// New creates a Monitor. A nil notifier disables dispatch.
func New(sites []*site.Site, holidays *calendar.Holidays, n notifier.Notifier, opts Options) *Monitor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Pacing <= 0 {
		opts.Pacing = scraper.DefaultPacing
	}
	if opts.Fetcher == nil {
		pacing := opts.Pacing
		opts.Fetcher = func(s *site.Site) scraper.Fetcher { return scraper.New(s, pacing) }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Monitor{sites: sites, holidays: holidays, notifier: n, opts: opts}
}

// SiteResult is the outcome of checking one site.
type SiteResult struct {
	Site        string                `json:"site"`
	DisplayName string                `json:"display_name"`
	Pages       int                   `json:"pages"`
	FailedPages int                   `json:"failed_pages"`
	Extracted   int                   `json:"extracted"`
	Qualifying  int                   `json:"qualifying"`
	Result      *filter.GroupedResult `json:"result,omitempty"`
	Notified    bool                  `json:"notified"`
	Duplicate   bool                  `json:"duplicate,omitempty"`
	Errors      []string              `json:"errors,omitempty"`
	Duration    time.Duration         `json:"duration_ns"`
}

// Failed reports whether availability could not be determined at all.
func (r SiteResult) Failed() bool {
	return r.Pages == 0 || r.FailedPages == r.Pages
}

// RunResult collects the site results of one cycle in configuration order.
type RunResult struct {
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Sites     []SiteResult  `json:"sites"`
}

// AllFailed reports whether every site failed.
func (r *RunResult) AllFailed() bool {
	if len(r.Sites) == 0 {
		return false
	}
	for _, s := range r.Sites {
		if !s.Failed() {
			return false
		}
	}
	return true
}

// Qualifying returns the qualifying records of all sites.
func (r *RunResult) Qualifying() []availability.Record {
	var out []availability.Record
	for _, s := range r.Sites {
		out = append(out, s.Result.Records()...)
	}
	return out
}

// Run checks every site once.
func (m *Monitor) Run(ctx context.Context) *RunResult {
	run := &RunResult{
		StartedAt: m.opts.Now(),
		Sites:     make([]SiteResult, len(m.sites)),
	}
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Concurrency)
	for i, s := range m.sites {
		i, s := i, s
		g.Go(func() error {
			run.Sites[i] = m.CheckSite(gctx, s)
			return nil
		})
	}
	_ = g.Wait()

	run.Duration = time.Since(start)
	logger.RecordTiming("run.duration", run.Duration)
	return run
}

// CheckSite fetches, extracts, filters and dispatches for one site.
func (m *Monitor) CheckSite(ctx context.Context, s *site.Site) SiteResult {
	start := time.Now()
	log := logger.Default().With(logger.Fields{"site": s.Name})
	res := SiteResult{Site: s.Name, DisplayName: s.DisplayName}
	defer func() {
		res.Duration = time.Since(start)
		logger.RecordTiming("site.duration", res.Duration)
	}()

	strategy, err := extract.New(s.Extraction)
	if err != nil {
		log.Error("invalid extraction", nil, err)
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	now := m.opts.Now()
	targets, err := scraper.Targets(s, now)
	if err != nil {
		log.Error("building page list", nil, err)
		res.Errors = append(res.Errors, err.Error())
		return res
	}

	fetcher := m.opts.Fetcher(s)
	var records []availability.Record
	for _, tgt := range targets {
		res.Pages++
		content, err := fetcher.Fetch(ctx, tgt.URL)
		if err != nil {
			res.FailedPages++
			res.Errors = append(res.Errors, err.Error())
			log.Error("fetch failed", logger.Fields{"url": tgt.URL}, err)
			logger.IncrCounter("fetch.errors")
			continue
		}
		logger.IncrCounter("fetch.pages")

		recs, err := strategy.Extract(extract.Page{Content: content, Year: tgt.Year, Month: tgt.Month, Ref: now})
		if err != nil {
			res.Errors = append(res.Errors, err.Error())
			log.Error("extracting availability", logger.Fields{"url": tgt.URL}, err)
			continue
		}
		records = append(records, recs...)
	}
	res.Extracted = len(records)
	logger.AddCounter("records.extracted", int64(len(records)))

	result := filter.Aggregate(records, m.holidays, s.Facilities)
	if result == nil {
		log.Info("no qualifying dates", logger.Fields{"extracted": res.Extracted})
		return res
	}
	res.Result = result
	res.Qualifying = result.Len()
	logger.AddCounter("records.qualifying", int64(res.Qualifying))
	log.Info("qualifying dates found", logger.Fields{"qualifying": res.Qualifying})

	m.dispatch(ctx, s, notifier.NewMessage(s, result), &res, log)
	return res
}

func (m *Monitor) dispatch(ctx context.Context, s *site.Site, msg notifier.Message, res *SiteResult, log *logger.Logger) {
	if m.notifier == nil {
		return
	}

	store := m.opts.Store
	if store != nil {
		claimed, err := store.Claim(ctx, s.Name, storage.Fingerprint(msg.Text), len(msg.Records))
		switch {
		case err != nil:
			log.Warn("notification state unavailable, sending anyway", logger.Fields{"error": err.Error()})
			store = nil
		case !claimed:
			res.Duplicate = true
			log.Info("message unchanged since last run, not sending", nil)
			logger.IncrCounter("notify.duplicates")
			return
		}
	}

	if err := m.notifier.Notify(ctx, msg); err != nil {
		res.Errors = append(res.Errors, err.Error())
		log.Error("notification failed", nil, err)
		logger.IncrCounter("notify.errors")
		if store != nil {
			if ferr := store.Forget(ctx, s.Name); ferr != nil {
				log.Warn("clearing notification state", logger.Fields{"error": ferr.Error()})
			}
		}
		return
	}
	res.Notified = true
	logger.IncrCounter("notify.sent")
}

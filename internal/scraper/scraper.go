package scraper

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
	"golang.org/x/time/rate"

	"github.com/pfrederiksen/camp-watch/internal/logger"
	"github.com/pfrederiksen/camp-watch/internal/site"
)

const (
	UserAgent     = "camp-watch/1.0 (github.com/pfrederiksen/camp-watch)"
	Timeout       = 30 * time.Second
	DefaultPacing = 500 * time.Millisecond
	maxBodySize   = 5 * 1024 * 1024
)

// Fetcher returns the content of one page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetchError is returned when a page could not be retrieved at all.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// HTTPClient is the subset of *http.Client used by Static.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Static fetches pages with a plain GET.
type Static struct {
	client HTTPClient
}

// NewStatic creates a Static fetcher with a bounded timeout.
func NewStatic() *Static {
	return NewStaticWithClient(&http.Client{Timeout: Timeout})
}

// NewStaticWithClient creates a Static fetcher using client.
func NewStaticWithClient(client HTTPClient) *Static {
	return &Static{client: client}
}

// Fetch performs the GET. A non-2xx status is logged and returned as empty
// content with a nil error; only transport failures are errors.
func (s *Static) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept-Language", "ja,en;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("muted http error status", logger.Fields{
			"url":    pageURL,
			"status": resp.StatusCode,
		})
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodySize))
		return "", nil
	}

	body, err := decodeBody(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", &FetchError{URL: pageURL, Err: fmt.Errorf("reading response: %w", err)}
	}
	return body, nil
}

// decodeBody converts the body to UTF-8 using the declared or sniffed charset.
// Without any charset hint the body is read as UTF-8 rather than the HTML5
// windows-1252 fallback, since an ASCII-only head says nothing about the rest.
func decodeBody(r io.Reader, contentType string) (string, error) {
	br := bufio.NewReader(io.LimitReader(r, maxBodySize))
	peek, _ := br.Peek(1024)
	enc, name, certain := charset.DetermineEncoding(peek, contentType)

	var src io.Reader = br
	if certain || name != "windows-1252" {
		src = transform.NewReader(br, enc.NewDecoder())
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Paced spaces out requests made through the wrapped fetcher.
type Paced struct {
	next    Fetcher
	limiter *rate.Limiter
}

// NewPaced allows one request per interval through next.
func NewPaced(next Fetcher, interval time.Duration) *Paced {
	if interval <= 0 {
		interval = DefaultPacing
	}
	return &Paced{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Fetch waits for the limiter, then fetches.
func (p *Paced) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", &FetchError{URL: pageURL, Err: fmt.Errorf("waiting for pacing: %w", err)}
	}
	return p.next.Fetch(ctx, pageURL)
}

// New returns the paced fetcher matching the site's fetch mode.
func New(s *site.Site, pacing time.Duration) Fetcher {
	var f Fetcher
	switch s.Fetch {
	case site.FetchBrowser:
		f = NewBrowser(s.WaitSelector)
	default:
		f = NewStatic()
	}
	return NewPaced(f, pacing)
}

// Target is one page to fetch. Year and Month are set for month-paginated
// sites and zero for fixed URLs.
type Target struct {
	URL   string
	Year  int
	Month time.Month
}

// Targets lists the pages of a site starting at the month of ref.
func Targets(s *site.Site, ref time.Time) ([]Target, error) {
	if !s.Paginated() {
		return []Target{{URL: s.URL}}, nil
	}

	base, err := url.Parse(s.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}

	first := time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, time.UTC)
	targets := make([]Target, 0, s.MonthsAhead)
	for i := 0; i < s.MonthsAhead; i++ {
		m := first.AddDate(0, i, 0)
		u := *base
		q := u.Query()
		q.Set(s.MonthParam, m.Format(s.MonthFormat))
		u.RawQuery = q.Encode()
		targets = append(targets, Target{URL: u.String(), Year: m.Year(), Month: m.Month()})
	}
	return targets, nil
}

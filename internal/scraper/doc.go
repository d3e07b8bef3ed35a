// Package scraper retrieves the raw pages of monitored reservation sites.
//
// Static sites are fetched with a plain HTTP GET whose non-2xx responses are muted
// (returned as empty content), and decoded to UTF-8 from whatever charset the site
// declares. Sites that render their calendar client-side are loaded in headless
// Chromium through Playwright. Requests for one site are paced by a rate limiter.
package scraper

// Package config loads the camp-watch YAML configuration and applies
// environment overrides for secrets.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pfrederiksen/camp-watch/internal/calendar"
	"github.com/pfrederiksen/camp-watch/internal/extract"
	"github.com/pfrederiksen/camp-watch/internal/notifier"
	"github.com/pfrederiksen/camp-watch/internal/site"
)

const (
	DefaultPath        = "configs/sites.yaml"
	DefaultConcurrency = 4
	DefaultPacing      = 500 * time.Millisecond
	DefaultDataDir     = "~/.local/share/camp-watch"
	DefaultRetryBudget = 30 * time.Second

	// PathEnv overrides DefaultPath when no --config flag is given.
	PathEnv = "CAMP_WATCH_CONFIG"
)

// Config is the whole configuration file.
type Config struct {
	Holidays map[int][]string `yaml:"holidays"`
	Notify   NotifyConfig     `yaml:"notify"`
	Monitor  MonitorConfig    `yaml:"monitor"`
	Sites    []site.Site      `yaml:"sites"`
}

// NotifyConfig selects notification channels. Secrets normally come from the
// environment rather than the file.
type NotifyConfig struct {
	DiscordWebhookURL string         `yaml:"discord_webhook_url"`
	Telegram          TelegramConfig `yaml:"telegram"`
	Twitter           TwitterConfig  `yaml:"twitter"`
	Retry             bool           `yaml:"retry"`
	RetryMaxElapsed   time.Duration  `yaml:"retry_max_elapsed"`
}

// TelegramConfig targets one chat.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
}

// TwitterConfig holds OAuth1 user credentials.
type TwitterConfig struct {
	APIKey       string `yaml:"api_key"`
	APISecret    string `yaml:"api_secret"`
	AccessToken  string `yaml:"access_token"`
	AccessSecret string `yaml:"access_secret"`
}

// Credentials converts to the notifier's credential type.
func (t TwitterConfig) Credentials() notifier.TwitterCredentials {
	return notifier.TwitterCredentials{
		APIKey:       t.APIKey,
		APISecret:    t.APISecret,
		AccessToken:  t.AccessToken,
		AccessSecret: t.AccessSecret,
	}
}

// MonitorConfig tunes a poll cycle.
type MonitorConfig struct {
	Concurrency int           `yaml:"concurrency"`
	Pacing      time.Duration `yaml:"pacing"`
	DataDir     string        `yaml:"data_dir"`
	LogLevel    string        `yaml:"log_level"`
}

// Path resolves the configuration file: the flag value, then CAMP_WATCH_CONFIG,
// then DefaultPath.
func Path(flag string) string {
	if flag != "" {
		return flag
	}
	if env := os.Getenv(PathEnv); env != "" {
		return env
	}
	return DefaultPath
}

// Load reads, parses and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML. Unknown keys are rejected so typos surface early.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Monitor.Concurrency <= 0 {
		c.Monitor.Concurrency = DefaultConcurrency
	}
	if c.Monitor.Pacing <= 0 {
		c.Monitor.Pacing = DefaultPacing
	}
	if c.Monitor.DataDir == "" {
		c.Monitor.DataDir = DefaultDataDir
	}
	if c.Monitor.LogLevel == "" {
		c.Monitor.LogLevel = "info"
	}
	if c.Notify.RetryMaxElapsed <= 0 {
		c.Notify.RetryMaxElapsed = DefaultRetryBudget
	}
	for i := range c.Sites {
		c.Sites[i].ApplyDefaults()
	}
}

// ApplyEnv overrides secrets and the log level from environment variables.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	set := func(dst *string, key string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Notify.DiscordWebhookURL, "DISCORD_WEBHOOK_URL")
	set(&c.Notify.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	set(&c.Notify.Twitter.APIKey, "TWITTER_API_KEY")
	set(&c.Notify.Twitter.APISecret, "TWITTER_API_SECRET")
	set(&c.Notify.Twitter.AccessToken, "TWITTER_ACCESS_TOKEN")
	set(&c.Notify.Twitter.AccessSecret, "TWITTER_ACCESS_SECRET")
	set(&c.Monitor.LogLevel, "LOG_LEVEL")

	if v := getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing TELEGRAM_CHAT_ID: %w", err)
		}
		c.Notify.Telegram.ChatID = id
	}
	return nil
}

// HolidayTable builds the injected holiday set.
func (c *Config) HolidayTable() (*calendar.Holidays, error) {
	h := calendar.NewHolidays()
	years := make([]int, 0, len(c.Holidays))
	for y := range c.Holidays {
		years = append(years, y)
	}
	sort.Ints(years)
	for _, y := range years {
		if err := h.AddList(y, c.Holidays[y]); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// SiteStatus is the validation outcome of one configured site.
type SiteStatus struct {
	Site *site.Site
	Err  error
}

// Usable reports whether the site can be monitored.
func (s SiteStatus) Usable() bool {
	return s.Err == nil && !s.Site.Disabled
}

// CheckSites validates every site, including its extraction pattern. Site names
// must be unique.
func (c *Config) CheckSites() []SiteStatus {
	seen := make(map[string]bool)
	out := make([]SiteStatus, 0, len(c.Sites))
	for i := range c.Sites {
		s := &c.Sites[i]
		err := s.Validate()
		if err == nil && seen[s.Name] {
			err = &site.ConfigError{Site: s.Name, Field: "name", Reason: "duplicate site name"}
		}
		if err == nil {
			if _, exErr := extract.New(s.Extraction); exErr != nil {
				err = &site.ConfigError{Site: s.Name, Field: "extraction", Reason: exErr.Error()}
			}
		}
		seen[s.Name] = true
		out = append(out, SiteStatus{Site: s, Err: err})
	}
	return out
}

// ErrNoSites is returned when no configured site can be monitored.
var ErrNoSites = errors.New("no usable sites configured")

// UsableSites returns the valid, enabled sites, restricted to names when any are
// given, plus the configuration errors of the rest. Unknown names are errors.
func (c *Config) UsableSites(names []string) ([]*site.Site, []error) {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	found := make(map[string]bool, len(names))

	var sites []*site.Site
	var errs []error
	for _, st := range c.CheckSites() {
		if len(names) > 0 {
			if !wanted[st.Site.Name] {
				continue
			}
			found[st.Site.Name] = true
		}
		switch {
		case st.Err != nil:
			errs = append(errs, st.Err)
		case st.Site.Disabled:
		default:
			sites = append(sites, st.Site)
		}
	}

	var missing []string
	for n := range wanted {
		if !found[n] {
			missing = append(missing, n)
		}
	}
	sort.Strings(missing)
	for _, n := range missing {
		errs = append(errs, &site.ConfigError{Site: n, Field: "name", Reason: "not configured"})
	}
	return sites, errs
}

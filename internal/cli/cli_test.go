package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pfrederiksen/camp-watch/internal/config"
	"github.com/pfrederiksen/camp-watch/internal/notifier"
)

// nextSaturday returns the next Saturday on or after today.
func nextSaturday() time.Time {
	now := time.Now()
	return now.AddDate(0, 0, (int(time.Saturday)-int(now.Weekday())+7)%7)
}

func writeConfig(t *testing.T, sites string) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`holidays:
  2026: ["1/12", "2/23"]
monitor:
  pacing: 1ms
  data_dir: %s
sites:
%s`, filepath.Join(dir, "data"), sites)
	path := filepath.Join(dir, "sites.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("DISCORD_WEBHOOK_URL", "")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TWITTER_API_KEY", "")

	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCheck_DryRunJSON(t *testing.T) {
	sat := nextSaturday()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<p>%d/%d 〇</p>", int(sat.Month()), sat.Day())
	}))
	defer server.Close()

	cfgPath := writeConfig(t, fmt.Sprintf(`  - name: tenku
    display_name: TENKU
    url: %s/form
    extraction:
      strategy: delimited-detail
`, server.URL))
	icsPath := filepath.Join(t.TempDir(), "out", "open.ics")

	stdout, stderr, err := runCmd(t, "check", "--config", cfgPath, "--dry-run", "--format", "json", "--ics", icsPath)
	if err != nil {
		t.Fatalf("check error: %v", err)
	}

	var result OutputResult
	if err := json.Unmarshal([]byte(stdout), &result); err != nil {
		t.Fatalf("stdout is not JSON: %v\n%s", err, stdout)
	}
	if result.QualifyingCount != 1 || result.Notified != 1 || result.AllFailed {
		t.Errorf("result = %+v", result)
	}
	if len(result.Sites) != 1 || result.Sites[0].Site != "tenku" {
		t.Fatalf("sites = %+v", result.Sites)
	}

	if !strings.Contains(stderr, "予約はこちら") {
		t.Errorf("dry-run message should go to stderr, got:\n%s", stderr)
	}

	ics, err := os.ReadFile(icsPath)
	if err != nil {
		t.Fatalf("reading ics: %v", err)
	}
	for _, want := range []string{"BEGIN:VEVENT", sat.Format("20060102")} {
		if !strings.Contains(string(ics), want) {
			t.Errorf("ics missing %q", want)
		}
	}
}

func TestCheck_DefaultCommandText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>満員御礼</p>"))
	}))
	defer server.Close()

	cfgPath := writeConfig(t, fmt.Sprintf(`  - name: tenku
    url: %s/form
    extraction:
      strategy: delimited-detail
`, server.URL))

	stdout, _, err := runCmd(t, "--config", cfgPath, "--dry-run")
	if err != nil {
		t.Fatalf("root command error: %v", err)
	}
	for _, want := range []string{"tenku (tenku): no open target dates", "No open target dates found."} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
}

func TestCheck_AllSitesFailed(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	cfgPath := writeConfig(t, fmt.Sprintf(`  - name: tenku
    url: %s/form
    extraction:
      strategy: delimited-detail
`, url))

	stdout, _, err := runCmd(t, "check", "--config", cfgPath, "--dry-run")
	if !errors.Is(err, ErrAllSitesFailed) {
		t.Fatalf("check error = %v, want %v", err, ErrAllSitesFailed)
	}
	if !strings.Contains(stdout, "FAILED (1/1 pages)") {
		t.Errorf("output should report the failed site:\n%s", stdout)
	}
}

func TestCheck_NoUsableSites(t *testing.T) {
	cfgPath := writeConfig(t, `  - name: broken
    url: not-a-url
    extraction:
      strategy: delimited-detail
`)

	_, stderr, err := runCmd(t, "check", "--config", cfgPath)
	if !errors.Is(err, config.ErrNoSites) {
		t.Fatalf("check error = %v, want %v", err, config.ErrNoSites)
	}
	if !strings.Contains(stderr, "skipping site") {
		t.Errorf("stderr should log the skipped site:\n%s", stderr)
	}
}

func TestCheck_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "format", args: []string{"check", "--format", "xml"}},
		{name: "sort", args: []string{"check", "--sort", "random"}},
		{name: "missing config", args: []string{"check", "--config", filepath.Join(t.TempDir(), "none.yaml")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := runCmd(t, tt.args...); err == nil {
				t.Errorf("%v should fail", tt.args)
			}
		})
	}
}

func TestSitesCommand(t *testing.T) {
	cfgPath := writeConfig(t, `  - name: tenku
    url: https://example.com/form
    extraction:
      strategy: delimited-detail
  - name: hillbilly
    url: https://example.com/book
    extraction:
      strategy: inline-pair
  - name: old
    disabled: true
    url: https://example.com/old
    extraction:
      strategy: table-dom
`)

	stdout, _, err := runCmd(t, "sites", "--config", cfgPath)
	if err != nil {
		t.Fatalf("sites error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4:\n%s", len(lines), stdout)
	}
	tests := []struct {
		line int
		want []string
	}{
		{0, []string{"STRATEGY"}},
		{1, []string{"tenku", "ok"}},
		{2, []string{"hillbilly", "error:", "month_param"}},
		{3, []string{"old", "disabled"}},
	}
	for _, tt := range tests {
		for _, want := range tt.want {
			if !strings.Contains(lines[tt.line], want) {
				t.Errorf("line %d = %q, want to contain %q", tt.line, lines[tt.line], want)
			}
		}
	}
}

func TestHolidaysCommand(t *testing.T) {
	cfgPath := writeConfig(t, `  - name: tenku
    url: https://example.com/form
    extraction:
      strategy: delimited-detail
`)

	stdout, _, err := runCmd(t, "holidays", "--config", cfgPath)
	if err != nil {
		t.Fatalf("holidays error: %v", err)
	}
	for _, want := range []string{
		"2026 holidays:      1/12(月) 2/23(月)",
		"2026 target Sundays: 1/11(日) 2/22(日)",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("output missing %q:\n%s", want, stdout)
		}
	}
}

func TestBuildNotifier(t *testing.T) {
	twitter := config.TwitterConfig{APIKey: "k", APISecret: "s", AccessToken: "t", AccessSecret: "a"}

	tests := []struct {
		name   string
		notify config.NotifyConfig
		dryRun bool
		want   string
	}{
		{name: "dry run", dryRun: true, want: "*notifier.DryRun"},
		{name: "nothing configured", want: "<nil>"},
		{
			name:   "single discord channel retries per post",
			notify: config.NotifyConfig{DiscordWebhookURL: "https://discord.example/webhook", Retry: true, RetryMaxElapsed: time.Second},
			want:   "*notifier.Discord",
		},
		{
			name:   "twitter is wrapped on its own",
			notify: config.NotifyConfig{Twitter: twitter, Retry: true, RetryMaxElapsed: time.Second},
			want:   "*notifier.Retrying",
		},
		{
			name: "several channels fan out without an outer retry",
			notify: config.NotifyConfig{
				DiscordWebhookURL: "https://discord.example/webhook",
				Twitter:           twitter,
				Retry:             true,
				RetryMaxElapsed:   time.Second,
			},
			want: "notifier.Multi",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{Notify: tt.notify}
			n := buildNotifier(cfg, tt.dryRun, &bytes.Buffer{})
			if got := fmt.Sprintf("%T", n); got != tt.want {
				t.Errorf("buildNotifier() = %s, want %s", got, tt.want)
			}
			if multi, ok := n.(notifier.Multi); ok {
				if _, isRetrying := multi[1].(*notifier.Retrying); !isRetrying {
					t.Errorf("twitter channel = %T, want *notifier.Retrying", multi[1])
				}
			}
		})
	}
}

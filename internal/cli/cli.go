package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pfrederiksen/camp-watch/internal/calendar"
	"github.com/pfrederiksen/camp-watch/internal/config"
	"github.com/pfrederiksen/camp-watch/internal/logger"
	"github.com/pfrederiksen/camp-watch/internal/monitor"
	"github.com/pfrederiksen/camp-watch/internal/notifier"
	"github.com/pfrederiksen/camp-watch/internal/site"
	"github.com/pfrederiksen/camp-watch/internal/storage"
)

const (
	ExitSuccess = 0
	ExitError   = 1
)

// ErrAllSitesFailed is returned when no site could be fetched at all.
var ErrAllSitesFailed = errors.New("every site failed; availability could not be determined")

type globalOptions struct {
	configPath string
	verbose    bool
	logFile    string
}

type checkOptions struct {
	sites   []string
	dryRun  bool
	format  string
	sort    string
	icsPath string
	dedupe  bool
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	var global globalOptions
	var check checkOptions

	cmd := &cobra.Command{
		Use:   "camp-watch",
		Short: "Watch campsite reservation pages for open weekend nights",
		Long: `A CLI tool that checks campsite reservation pages for open Saturday nights
and Sunday nights before a Monday holiday, and posts what it finds to Discord.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, &global, &check)
		},
	}

	cmd.PersistentFlags().StringVar(&global.configPath, "config", "", "Config file (default $CAMP_WATCH_CONFIG or "+config.DefaultPath+")")
	cmd.PersistentFlags().BoolVar(&global.verbose, "verbose", false, "Enable verbose logging")
	cmd.PersistentFlags().StringVar(&global.logFile, "log-file", "", "Also write logs to this file, rotated")
	addCheckFlags(cmd, &check)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check every site once and notify about open dates (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(cmd, &global, &check)
		},
	}
	addCheckFlags(checkCmd, &check)

	sitesCmd := &cobra.Command{
		Use:   "sites",
		Short: "List configured sites and their validation status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSites(cmd, &global)
		},
	}

	holidaysCmd := &cobra.Command{
		Use:   "holidays",
		Short: "Show holiday tables and the Sunday nights they make targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHolidays(cmd, &global)
		},
	}

	cmd.AddCommand(checkCmd, sitesCmd, holidaysCmd)
	return cmd
}

func addCheckFlags(cmd *cobra.Command, opts *checkOptions) {
	cmd.Flags().StringSliceVar(&opts.sites, "site", nil, "Only check these sites (repeatable)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Print notifications instead of sending them")
	cmd.Flags().StringVar(&opts.format, "format", "text", "Output format: text or json")
	cmd.Flags().StringVar(&opts.sort, "sort", string(SortBySite), "Text report order: site or date")
	cmd.Flags().StringVar(&opts.icsPath, "ics", "", "Write qualifying dates to this .ics file")
	cmd.Flags().BoolVar(&opts.dedupe, "dedupe", false, "Skip a site's notification when it is unchanged since the last run")
}

func loadConfig(global *globalOptions) (*config.Config, error) {
	path := config.Path(global.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}

// setupLogging installs the default logger. The returned closer flushes the
// optional log file.
func setupLogging(global *globalOptions, levelName string, stderr io.Writer) io.Closer {
	level := logger.ParseLevel(levelName)
	if global.verbose {
		level = logger.LevelDebug
	}
	if global.logFile == "" {
		logger.SetDefault(logger.New(level, stderr))
		return io.NopCloser(nil)
	}
	l, closer := logger.NewWithFile(level, stderr, global.logFile)
	logger.SetDefault(l)
	return closer
}

// runCheck is the main command logic
func runCheck(cmd *cobra.Command, global *globalOptions, opts *checkOptions) error {
	format := OutputFormat(strings.ToLower(opts.format))
	if format != FormatText && format != FormatJSON {
		return fmt.Errorf("invalid format: %s (must be 'text' or 'json')", opts.format)
	}
	order := SortOrder(strings.ToLower(opts.sort))
	if order != SortBySite && order != SortByDate {
		return fmt.Errorf("invalid sort: %s (must be 'site' or 'date')", opts.sort)
	}

	cfg, err := loadConfig(global)
	if err != nil {
		return err
	}
	closer := setupLogging(global, cfg.Monitor.LogLevel, cmd.ErrOrStderr())
	defer closer.Close()
	defer logger.Default().Sync() //nolint:errcheck

	holidays, err := cfg.HolidayTable()
	if err != nil {
		return fmt.Errorf("building holiday table: %w", err)
	}
	warnMissingHolidays(holidays, time.Now())

	sites, errs := cfg.UsableSites(opts.sites)
	for _, err := range errs {
		var ce *site.ConfigError
		fields := logger.Fields{}
		if errors.As(err, &ce) {
			fields["site"] = ce.Site
			fields["field"] = ce.Field
		}
		logger.Error("skipping site", fields, err)
	}
	if len(sites) == 0 {
		return config.ErrNoSites
	}

	out := cmd.OutOrStdout()
	dryRunOut := out
	if format == FormatJSON {
		dryRunOut = cmd.ErrOrStderr()
	}
	n := buildNotifier(cfg, opts.dryRun, dryRunOut)

	monOpts := monitor.Options{
		Concurrency: cfg.Monitor.Concurrency,
		Pacing:      cfg.Monitor.Pacing,
	}
	if opts.dedupe && !opts.dryRun {
		store, err := storage.New(cfg.Monitor.DataDir)
		if err != nil {
			return fmt.Errorf("initializing storage: %w", err)
		}
		monOpts.Store = store
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting check", logger.Fields{"sites": len(sites), "dry_run": opts.dryRun})
	run := monitor.New(sites, holidays, n, monOpts).Run(ctx)

	if opts.icsPath != "" {
		if err := writeICS(opts.icsPath, run, sites); err != nil {
			return err
		}
	}

	result := NewOutputResult(run)
	if err := WriteOutput(out, result, format, order, global.verbose); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	logger.Info("check complete", logger.Fields{
		"qualifying": result.QualifyingCount,
		"duration":   run.Duration.String(),
		"metrics":    logger.GetMetricsSnapshot().Counters,
	})

	if run.AllFailed() {
		return ErrAllSitesFailed
	}
	return nil
}

// buildNotifier assembles the configured channels. It returns nil when no
// channel is configured, which disables dispatch.
func buildNotifier(cfg *config.Config, dryRun bool, dryRunOut io.Writer) notifier.Notifier {
	if dryRun {
		return notifier.NewDryRun(dryRunOut)
	}

	// Retries wrap each channel, never the fan-out, so one failing channel
	// does not resend to the others.
	retry, budget := cfg.Notify.Retry, cfg.Notify.RetryMaxElapsed
	var channels notifier.Multi
	if url := cfg.Notify.DiscordWebhookURL; url != "" {
		d, err := notifier.NewDiscord(url)
		if err != nil {
			logger.Error("discord notifier", nil, err)
		} else {
			if retry {
				d = d.WithRetry(budget)
			}
			channels = append(channels, d)
		}
	}
	if tg := cfg.Notify.Telegram; tg.BotToken != "" {
		t, err := notifier.NewTelegram(tg.BotToken, tg.ChatID)
		if err != nil {
			logger.Error("telegram notifier", nil, err)
		} else {
			if retry {
				t = t.WithRetry(budget)
			}
			channels = append(channels, t)
		}
	}
	if creds := cfg.Notify.Twitter.Credentials(); creds.Complete() {
		tw, err := notifier.NewTwitter(creds)
		if err != nil {
			logger.Error("twitter notifier", nil, err)
		} else if retry {
			channels = append(channels, notifier.NewRetrying(tw, budget))
		} else {
			channels = append(channels, tw)
		}
	}

	if len(channels) == 0 {
		logger.Warn("no notification channel configured; results are only reported", nil)
		return nil
	}

	if len(channels) == 1 {
		return channels[0]
	}
	return channels
}

// warnMissingHolidays flags years in the polling window without a holiday
// table; their Sunday nights would silently never qualify.
func warnMissingHolidays(h *calendar.Holidays, now time.Time) {
	for _, y := range []int{now.Year(), now.AddDate(0, 3, 0).Year()} {
		if !h.HasYear(y) {
			logger.Warn("no holidays configured for year", logger.Fields{"year": y})
		}
	}
}

func writeICS(path string, run *monitor.RunResult, sites []*site.Site) error {
	byName := make(map[string]*site.Site, len(sites))
	for _, s := range sites {
		byName[s.Name] = s
	}

	var entries []calendar.Entry
	for _, sr := range run.Sites {
		s := byName[sr.Site]
		for _, r := range sr.Result.Records() {
			summary := fmt.Sprintf("%s %s(%s) %s", sr.DisplayName, r.Date, r.WeekdayJP(), r.Status)
			if r.Facility != "" {
				summary = fmt.Sprintf("%s %s %s(%s) %s", sr.DisplayName, r.Facility, r.Date, r.WeekdayJP(), r.Status)
			}
			e := calendar.Entry{
				UID:         sr.Site + "-" + r.ID(),
				Date:        r.Date.Time(),
				Summary:     summary,
				Description: r.Detail,
				Location:    sr.DisplayName,
			}
			if s != nil {
				e.URL = s.Link
			}
			entries = append(entries, e)
		}
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating ics directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(calendar.GenerateICS(entries, time.Now())), 0644); err != nil {
		return fmt.Errorf("writing ics file: %w", err)
	}
	logger.Info("wrote calendar", logger.Fields{"path": path, "events": len(entries)})
	return nil
}

func runSites(cmd *cobra.Command, global *globalOptions) error {
	cfg, err := loadConfig(global)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTRATEGY\tFETCH\tMONTHS\tSTATUS")
	for _, st := range cfg.CheckSites() {
		s := st.Site
		months := "1"
		if s.Paginated() {
			months = fmt.Sprintf("%d", s.MonthsAhead)
		}
		status := "ok"
		switch {
		case st.Err != nil:
			status = "error: " + st.Err.Error()
		case s.Disabled:
			status = "disabled"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.Extraction.Strategy, s.Fetch, months, status)
	}
	return w.Flush()
}

func runHolidays(cmd *cobra.Command, global *globalOptions) error {
	cfg, err := loadConfig(global)
	if err != nil {
		return err
	}
	h, err := cfg.HolidayTable()
	if err != nil {
		return fmt.Errorf("building holiday table: %w", err)
	}

	out := cmd.OutOrStdout()
	years := h.Years()
	if len(years) == 0 {
		fmt.Fprintln(out, "No holidays configured.")
		return nil
	}
	for _, y := range years {
		fmt.Fprintf(out, "%d holidays:      %s\n", y, joinDates(h.Dates(y)))
		fmt.Fprintf(out, "%d target Sundays: %s\n", y, joinDates(calendar.TargetSundays(y, h)))
	}
	return nil
}

func joinDates(dates []time.Time) string {
	if len(dates) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(dates))
	for _, d := range dates {
		parts = append(parts, fmt.Sprintf("%d/%d(%s)", int(d.Month()), d.Day(), calendar.WeekdayJP(d.Weekday())))
	}
	return strings.Join(parts, " ")
}

// Execute runs the CLI
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitError)
	}
}

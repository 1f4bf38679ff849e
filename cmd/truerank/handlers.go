package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/harukimoto/truerank/internal/config"
	"github.com/harukimoto/truerank/internal/scheduler"
	"github.com/harukimoto/truerank/internal/store"
	"github.com/harukimoto/truerank/pkg/alert"
	"github.com/harukimoto/truerank/pkg/anime"
	"github.com/harukimoto/truerank/pkg/news"
	"github.com/harukimoto/truerank/pkg/normalize"
	"github.com/harukimoto/truerank/pkg/rank"
	"github.com/harukimoto/truerank/pkg/report"
	"github.com/harukimoto/truerank/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func normalizeConfig(cfg *config.Config) normalize.Config {
	return normalize.Config{
		MinSampleSize:  cfg.Normalize.MinSampleSize,
		MinCohortSize:  cfg.Normalize.MinCohortSize,
		BaselineStart:  cfg.Normalize.BaselineStart,
		BaselineEnd:    cfg.Normalize.BaselineEnd,
		AllowIncreases: cfg.Normalize.AllowIncreases,
	}
}

func buildProviders(cfg *config.Config) []anime.Provider {
	var providers []anime.Provider

	if cfg.Providers.MAL.Enabled {
		providers = append(providers, anime.NewJikan(cfg.Providers.MAL.BaseURL, cfg.Providers.MAL.Pages))
	}
	if cfg.Providers.AniList.Enabled {
		providers = append(providers, anime.NewAniList(
			cfg.Providers.AniList.BaseURL,
			cfg.Providers.AniList.Pages,
			cfg.Providers.AniList.PerPage,
		))
	}

	return providers
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func runFetch(only []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	all := buildProviders(cfg)

	// Filter to requested providers only.
	var providers []anime.Provider
	if len(only) > 0 {
		wanted := make(map[string]bool)
		for _, p := range only {
			wanted[strings.ToLower(strings.TrimSpace(p))] = true
		}
		for _, p := range all {
			if wanted[string(p.Name())] {
				providers = append(providers, p)
			}
		}
		if len(providers) == 0 {
			return fmt.Errorf("no matching providers for: %s", strings.Join(only, ", "))
		}
	} else {
		providers = all
	}

	ctx := context.Background()
	total := 0

	for _, p := range providers {
		fmt.Fprintf(os.Stderr, "fetching from %s...\n", p.Name())
		items, err := p.FetchTop(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "  error: %v\n", err)
			continue
		}

		if err := db.UpsertAll(ctx, items); err != nil {
			fmt.Fprintf(os.Stderr, "  store error: %v\n", err)
			continue
		}

		fmt.Fprintf(os.Stderr, "  fetched %d shows\n", len(items))
		total += len(items)
	}

	fmt.Fprintf(os.Stderr, "\ntotal: %d shows from %d providers\n", total, len(providers))
	return nil
}

func runRank(allowDegenerate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine := rank.NewEngine(db, normalizeConfig(cfg), allowDegenerate)
	run, res, err := engine.Rank(context.Background())
	if err != nil {
		if errors.Is(err, normalize.ErrEmptyInput) {
			return fmt.Errorf("%w (try fetching data first: truerank fetch)", err)
		}
		if errors.Is(err, normalize.ErrEmptyBaseline) {
			return fmt.Errorf("%w (rerun with --allow-degenerate to proceed anyway)", err)
		}
		return err
	}

	fmt.Printf("run %s\n", run.ID)
	fmt.Printf("  %d shows ranked against baseline %s (median %.2f over %d shows)\n",
		run.ItemCount, run.BaselineLabel(), run.BaselineMedian, run.BaselineCount)
	fmt.Printf("  %d estimated, %d dropped below %d raters\n",
		res.EstimatedCount, res.DroppedCount, run.MinSampleSize)
	fmt.Printf("\nsee the standings: truerank report\n")
	return nil
}

func runReport(format, runID string, limit int, out string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	var run *store.Run
	if runID != "" {
		run, err = db.GetRun(ctx, runID)
	} else {
		run, err = db.LatestRun(ctx)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no saved run (try ranking first: truerank rank)")
		}
		return fmt.Errorf("load run: %w", err)
	}

	details, err := db.ListRankings(ctx, run.ID, limit)
	if err != nil {
		return fmt.Errorf("list rankings: %w", err)
	}

	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "json":
		return report.WriteJSON(w, report.Build(run, details))
	case "html":
		return report.WriteHTML(w, run, details)
	case "table":
		return report.NewConsole(out == "").Render(w, run, details)
	default:
		return fmt.Errorf("unknown format %q (want table, json or html)", format)
	}
}

func runTop(jsonOutput bool, limit, year int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	items, err := db.ListAnime(context.Background(), store.ListOpts{
		Year:  year,
		Limit: limit,
	})
	if err != nil {
		return fmt.Errorf("list shows: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(items) == 0 {
		fmt.Println("no shows stored (try fetching data first: truerank fetch)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tRATERS\tYEAR\tTITLE")
	for _, a := range items {
		year := "-"
		if a.HasYear {
			year = fmt.Sprintf("%d", a.Year)
		}
		fmt.Fprintf(w, "%.2f\t%d\t%s\t%s\n", a.Score, a.ScoredBy, year, a.Title)
	}
	return w.Flush()
}

func runNews(topN int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Watch the adjusted top titles; before the first run, the raw ones.
	var titles []string
	if run, err := db.LatestRun(ctx); err == nil {
		details, err := db.ListRankings(ctx, run.ID, topN)
		if err != nil {
			return fmt.Errorf("list rankings: %w", err)
		}
		for _, d := range details {
			titles = append(titles, d.Title, d.TitleEN)
		}
	} else {
		items, err := db.ListAnime(ctx, store.ListOpts{Limit: topN})
		if err != nil {
			return fmt.Errorf("list shows: %w", err)
		}
		for _, a := range items {
			titles = append(titles, a.Title, a.TitleEN)
		}
	}

	feeds := make([]news.Feed, len(cfg.News.Feeds))
	for i, f := range cfg.News.Feeds {
		feeds[i] = news.Feed{Name: f.Name, URL: f.URL}
	}

	filter := news.NewFilter(titles, cfg.Filter.ExtraKeywords, cfg.Filter.ExcludeKeywords)
	items, err := news.NewReader(feeds, filter).Collect(ctx)
	if err != nil {
		return fmt.Errorf("collect news: %w", err)
	}

	if len(items) == 0 {
		fmt.Println("no recent headlines for the watched titles")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PUBLISHED\tFEED\tHEADLINE")
	for _, it := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", it.PublishedAt.Format("2006-01-02 15:04"), it.Feed, it.Title)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d headlines from %d feeds\n", len(items), len(feeds))
	return nil
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine := rank.NewEngine(db, normalizeConfig(cfg), false)
	providers := buildProviders(cfg)

	srv := server.New(db, engine, providers, port)
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	engine := rank.NewEngine(db, normalizeConfig(cfg), false)
	providers := buildProviders(cfg)
	alertMgr := buildAlertManager(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(db, providers, engine, alertMgr,
		cfg.Schedule.ParseFetchInterval(),
		cfg.Schedule.ParseRankInterval(),
		cfg.Alerts.MinRankDelta,
	)

	// Start scheduler in background.
	go func() {
		if err := sched.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "scheduler error: %v\n", err)
		}
	}()

	// Start HTTP server.
	srv := server.New(db, engine, providers, port)
	go func() {
		<-ctx.Done()
		fmt.Fprintln(os.Stderr, "\nshutting down...")
	}()

	return srv.ListenAndServe()
}

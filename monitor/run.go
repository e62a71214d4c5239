package monitor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Run wires the collaborators together and polls until interrupted.
func Run(opts Options) {
	cfg := LoadConfig(opts)
	initLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, err := NewFetcher(cfg)
	if err != nil {
		slog.Error("fetcher setup failed", "err", err)
		os.Exit(1)
	}
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("state store setup failed", "err", err)
		os.Exit(1)
	}
	defer closeStore()
	known := LoadKnownSet(ctx, store)

	var notifier Notifier
	switch {
	case cfg.WebhookURL != "":
		notifier = NewWebhookNotifier(cfg.WebhookURL, cfg.NotifyTimeout)
	case cfg.BotToken != "" && cfg.ChannelID != "":
		notifier = NewBotNotifier(cfg.BotToken, cfg.ChannelID, cfg.NotifyTimeout)
	default:
		slog.Error("DISCORD_WEBHOOK_URL or DISCORD_BOT_TOKEN with DISCORD_CHANNEL_ID is required")
		os.Exit(1)
	}

	StartMetrics(cfg.MetricsAddr)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runStats(ctx)
	}()

	NewRunner(cfg, fetcher, known, notifier).RunLoop(ctx)
	wg.Wait()

	slog.Info("monitor stopped",
		"cycles", MonitorStats.Cycles.Load(),
		"rows", MonitorStats.RowsFetched.Load(),
		"fresh", MonitorStats.FreshRows.Load(),
		"notified", MonitorStats.Notified.Load(),
		"notify_errors", MonitorStats.NotifyErrors.Load(),
		"fetch_errors", MonitorStats.FetchErrors.Load(),
	)
}

// Check performs a single fetch and diff, printing counts to out without
// sending notifications or touching the persisted state.
func Check(opts Options, out io.Writer) int {
	cfg := LoadConfig(opts)
	initLogging(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fetcher, err := NewFetcher(cfg)
	if err != nil {
		slog.Error("fetcher setup failed", "err", err)
		return 1
	}
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("state store setup failed", "err", err)
		return 1
	}
	defer closeStore()
	known := LoadKnownSet(ctx, store)

	year := cfg.TargetYear
	if year == 0 {
		year = time.Now().Year()
	}
	page, err := fetcher.FetchPage(ctx, year)
	if err != nil {
		slog.Error("fetch failed", "err", err)
		return 1
	}
	rows := ExtractFilings(page, cfg.TabPrefix, year)
	baseline := known.Snapshot()
	fresh := 0
	for _, row := range rows {
		if _, ok := baseline[row.ID]; !ok {
			fresh++
		}
	}
	fmt.Fprintf(out, "[CHECK] Got %d rows, %d are new.\n", len(rows), fresh)
	return 0
}

func openStore(ctx context.Context, cfg Config) (Store, func(), error) {
	if cfg.DatabaseURL != "" {
		pg, err := NewPgStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		slog.Info("state store", "backend", "postgres")
		return pg, pg.Close, nil
	}
	slog.Info("state store", "backend", "file", "path", cfg.StateFile)
	return NewFileStore(cfg.StateFile), func() {}, nil
}

func initLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func runStats(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			slog.Info("stats",
				"cycles", MonitorStats.Cycles.Load(),
				"zero_row_cycles", MonitorStats.ZeroRowCycles.Load(),
				"rows", MonitorStats.RowsFetched.Load(),
				"fresh", MonitorStats.FreshRows.Load(),
				"notified", MonitorStats.Notified.Load(),
				"notify_errors", MonitorStats.NotifyErrors.Load(),
				"fetch_errors", MonitorStats.FetchErrors.Load(),
				"state_errors", MonitorStats.StateErrors.Load(),
			)
		case <-ctx.Done():
			return
		}
	}
}

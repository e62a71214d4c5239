package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Runner executes poll cycles against a fixed set of collaborators.
type Runner struct {
	cfg      Config
	fetcher  *Fetcher
	known    *KnownSet
	notifier Notifier
}

func NewRunner(cfg Config, fetcher *Fetcher, known *KnownSet, notifier Notifier) *Runner {
	return &Runner{cfg: cfg, fetcher: fetcher, known: known, notifier: notifier}
}

func (r *Runner) year() int {
	if r.cfg.TargetYear != 0 {
		return r.cfg.TargetYear
	}
	return time.Now().Year()
}

// RunCycle fetches the page once, announces every row missing from the known
// set and merges those rows in. Failed announcements still mark their rows
// known, so a flaky channel cannot produce repeats on later cycles.
func (r *Runner) RunCycle(ctx context.Context) CycleResult {
	start := time.Now()
	year := r.year()
	var rows []Filing
	page, err := r.fetcher.FetchPage(ctx, year)
	if err != nil {
		slog.Warn("fetch failed", "err", err)
		MonitorStats.FetchErrors.Add(1)
		fetchErrorsTotal.Inc()
	} else {
		rows = ExtractFilings(page, r.cfg.TabPrefix, year)
	}
	elapsed := time.Since(start)
	MonitorStats.Cycles.Add(1)
	cyclesTotal.Inc()
	if len(rows) == 0 {
		MonitorStats.ZeroRowCycles.Add(1)
		slog.Warn("zero rows", "year", year, "elapsed", elapsed.Round(time.Millisecond))
		return CycleResult{Elapsed: elapsed}
	}
	MonitorStats.RowsFetched.Add(int64(len(rows)))
	rowsFetchedTotal.Add(float64(len(rows)))

	baseline := r.known.Snapshot()
	var fresh []Filing
	for _, row := range rows {
		if _, ok := baseline[row.ID]; !ok {
			fresh = append(fresh, row)
		}
	}
	if len(fresh) == 0 {
		slog.Info("no new rows", "rows", len(rows), "elapsed", elapsed.Round(time.Millisecond))
		return CycleResult{Rows: rows, Elapsed: elapsed}
	}
	MonitorStats.FreshRows.Add(int64(len(fresh)))
	freshRowsTotal.Add(float64(len(fresh)))
	slog.Info("new rows", "count", len(fresh), "rows", len(rows), "elapsed", elapsed.Round(time.Millisecond))

	// newest rows sit at the bottom of the table; announce those first
	var wg sync.WaitGroup
	for i := len(fresh) - 1; i >= 0; i-- {
		wg.Add(1)
		go func(row Filing) {
			defer wg.Done()
			if err := r.notifier.Notify(ctx, row); err != nil {
				slog.Error("notify failed", "id", row.ID, "err", err)
				MonitorStats.NotifyErrors.Add(1)
				notificationsTotal.WithLabelValues("error").Inc()
				return
			}
			slog.Info("notified", "id", row.ID)
			MonitorStats.Notified.Add(1)
			notificationsTotal.WithLabelValues("ok").Inc()
		}(fresh[i])
	}
	wg.Wait()

	ids := make([]string, 0, len(fresh))
	for _, row := range fresh {
		ids = append(ids, row.ID)
	}
	// the merge must persist even when shutdown cancels the cycle mid-announcement
	if err := r.known.MergeAndSave(context.WithoutCancel(ctx), ids); err != nil {
		slog.Error("state save failed", "err", err)
		MonitorStats.StateErrors.Add(1)
		stateErrorsTotal.Inc()
	}
	return CycleResult{Rows: rows, Fresh: fresh, Elapsed: elapsed}
}

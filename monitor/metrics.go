package monitor

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filing_monitor_cycles_total",
		Help: "Completed poll cycles.",
	})
	rowsFetchedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filing_monitor_rows_fetched_total",
		Help: "Filing rows extracted from fetched pages.",
	})
	freshRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filing_monitor_fresh_rows_total",
		Help: "Rows seen for the first time.",
	})
	notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "filing_monitor_notifications_total",
		Help: "Notification attempts by status.",
	}, []string{"status"})
	fetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filing_monitor_fetch_errors_total",
		Help: "Failed page fetches.",
	})
	stateErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "filing_monitor_state_write_errors_total",
		Help: "Failed known-ID set saves.",
	})
)

// StartMetrics exposes /metrics on addr when one is configured.
func StartMetrics(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()
	slog.Info("metrics listening", "addr", addr)
}

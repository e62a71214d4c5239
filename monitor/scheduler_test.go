package monitor_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ZaryabShah/nasdaq-rule-filing-monitor/monitor"
)

// -- RunLoop -------------------------------------------------------------------

func TestLoop_BoundsInFlightCycles(t *testing.T) {
	var inFlight, peak atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(150 * time.Millisecond)
		inFlight.Add(-1)
		w.Write([]byte(`<html><body><div id="NASDAQ-tab-2025">empty</div></body></html>`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.StateFile = stateFile(t)
	cfg.CheckInterval = 10 * time.Millisecond
	cfg.MaxOverlap = 2
	fetcher := newFetcher(t, cfg)
	known := monitor.LoadKnownSet(context.Background(), monitor.NewFileStore(cfg.StateFile))
	runner := monitor.NewRunner(cfg, fetcher, known, &stubNotifier{})

	ctx, cancel := context.WithTimeout(context.Background(), 700*time.Millisecond)
	defer cancel()
	runner.RunLoop(ctx)

	if p := peak.Load(); p > 2 {
		t.Errorf("in-flight cycles exceeded limit: peak %d", p)
	}
	if p := peak.Load(); p < 2 {
		t.Logf("peak concurrency only reached %d", p)
	}
}

// slowNotifier ignores cancellation, standing in for an announcement
// already on the wire when shutdown begins.
type slowNotifier struct {
	delay time.Duration
	done  atomic.Int64
}

func (s *slowNotifier) Notify(context.Context, monitor.Filing) error {
	time.Sleep(s.delay)
	s.done.Add(1)
	return nil
}

func TestLoop_DrainsInFlightCyclesOnCancel(t *testing.T) {
	srv := pageServer(t, [2]string{"SR-NASDAQ-2025-001", "slow to announce"})

	cfg := testConfig(srv.URL)
	cfg.StateFile = stateFile(t)
	cfg.CheckInterval = 10 * time.Millisecond
	cfg.MaxOverlap = 2
	fetcher := newFetcher(t, cfg)
	known := monitor.LoadKnownSet(context.Background(), monitor.NewFileStore(cfg.StateFile))
	slow := &slowNotifier{delay: 300 * time.Millisecond}
	runner := monitor.NewRunner(cfg, fetcher, known, slow)

	ctx, cancel := context.WithCancel(context.Background())
	returned := make(chan struct{})
	go func() {
		runner.RunLoop(ctx)
		close(returned)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not return after cancel")
	}
	if slow.done.Load() == 0 {
		t.Error("loop returned before in-flight announcement finished")
	}
}

func TestLoop_ReturnsPromptlyWhenIdle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><div id="NASDAQ-tab-2025">empty</div></body></html>`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.StateFile = stateFile(t)
	cfg.CheckInterval = 20 * time.Millisecond
	cfg.MaxOverlap = 2
	fetcher := newFetcher(t, cfg)
	known := monitor.LoadKnownSet(context.Background(), monitor.NewFileStore(cfg.StateFile))
	runner := monitor.NewRunner(cfg, fetcher, known, &stubNotifier{})

	ctx, cancel := context.WithCancel(context.Background())
	returned := make(chan struct{})
	go func() {
		runner.RunLoop(ctx)
		close(returned)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-returned:
	case <-time.After(2 * time.Second):
		t.Fatal("idle loop did not return after cancel")
	}
}

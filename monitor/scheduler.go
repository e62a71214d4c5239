package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// RunLoop launches a cycle every CheckInterval, holding at most MaxOverlap
// cycles in flight. When every slot is taken the tick blocks, so a stalled
// site slows the launch rate instead of growing an unbounded backlog.
// Cancelling ctx stops launching and waits for in-flight cycles to finish.
func (r *Runner) RunLoop(ctx context.Context) {
	sem := make(chan struct{}, r.cfg.MaxOverlap)
	var wg sync.WaitGroup
	ticker := time.NewTicker(r.cfg.CheckInterval)
	defer ticker.Stop()
	slog.Info("monitor started",
		"interval", r.cfg.CheckInterval,
		"max_overlap", r.cfg.MaxOverlap,
		"known", r.known.Len(),
	)
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case <-ticker.C:
		}
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			r.RunCycle(ctx)
		}()
	}
}

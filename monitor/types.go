package monitor

import (
	"sync/atomic"
	"time"
)

type Filing struct {
	ID          string
	Description string
}

type CycleResult struct {
	Rows    []Filing
	Fresh   []Filing
	Elapsed time.Duration
}

type Stats struct {
	Cycles        atomic.Int64
	ZeroRowCycles atomic.Int64
	RowsFetched   atomic.Int64
	FreshRows     atomic.Int64
	Notified      atomic.Int64
	NotifyErrors  atomic.Int64
	FetchErrors   atomic.Int64
	StateErrors   atomic.Int64
}

var MonitorStats Stats

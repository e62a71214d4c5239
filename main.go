package main

import (
	"flag"
	"os"

	"github.com/ZaryabShah/nasdaq-rule-filing-monitor/monitor"
)

func main() {
	check := flag.Bool("check", false, "fetch once, print row counts, then exit")
	state := flag.String("state", "", "path of the known-ID state file")
	interval := flag.Duration("interval", 0, "poll interval, e.g. 5s")
	year := flag.Int("year", 0, "rule-filing year tab to watch (default: current year)")
	flag.Parse()

	opts := monitor.Options{
		StateFile: *state,
		Interval:  *interval,
		Year:      *year,
	}
	if *check {
		os.Exit(monitor.Check(opts, os.Stdout))
	}
	monitor.Run(opts)
}

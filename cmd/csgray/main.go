// Command csgray traces a grid of rays through a model file and prints
// the partitions each ray produced.
//
//	csgray [-config run.cfg] model.csg
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/chazu/csgray"
	"github.com/chazu/csgray/pkg/batch"
	"github.com/chazu/csgray/pkg/config"
	"github.com/chazu/csgray/pkg/rt"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	var (
		configPath    string
		exampleConfig bool
		showMisses    bool
		showMetrics   bool
	)
	flag.StringVar(&configPath, "config", "", "Configuration file. Defaults apply when omitted.")
	flag.BoolVar(&exampleConfig, "example-config", false, "Print an example configuration file and exit.")
	flag.BoolVar(&showMisses, "misses", false, "Also list rays that hit nothing.")
	flag.BoolVar(&showMetrics, "metrics", false, "Print the run's Prometheus counters.")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] model.csg\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if exampleConfig {
		fmt.Println(config.Example)
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			fatal(err)
		}
	}
	level, err := cfg.LogLevel()
	if err != nil {
		fatal(err)
	}
	rt.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	source, err := os.ReadFile(flag.Arg(0))
	if err != nil {
		fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reg := prometheus.NewRegistry()
	app := csgray.NewApp(cfg).WithMetrics(batch.NewMetrics(reg))
	result := app.Trace(ctx, string(source))

	for _, w := range result.Warnings {
		rt.Logger().Warn("model", "name", w.Name, "msg", w.Message)
	}
	printRays(result, showMisses)
	fmt.Println(result.Stats.String())
	if showMetrics {
		printMetrics(reg)
	}
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		os.Exit(1)
	}
}

func printRays(result csgray.TraceResult, misses bool) {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RAY\tX\tY\tREGION\tID\tIN\tOUT\tNOTE")
	for _, r := range result.Rays {
		if !r.Hit {
			if misses {
				fmt.Fprintf(tw, "%d\t%d\t%d\t-\t\t\t\t\n", r.Index, r.X, r.Y)
			}
			continue
		}
		for _, s := range r.Spans {
			note := ""
			if s.Overlapped {
				note = "overlap " + strings.Join(s.Claimants, ",")
			}
			fmt.Fprintf(tw, "%d\t%d\t%d\t%s\t%d\t%.4f\t%.4f\t%s\n",
				r.Index, r.X, r.Y, s.Region, s.RegionID, s.In, s.Out, note)
		}
	}
	tw.Flush()

	for _, o := range result.Overlaps {
		fmt.Printf("overlap ray %d: %s and %s over [%.4f, %.4f]\n", o.Ray, o.A, o.B, o.In, o.Out)
	}
}

func printMetrics(reg *prometheus.Registry) {
	mfs, err := reg.Gather()
	if err != nil {
		fatal(err)
	}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, l := range m.GetLabel() {
				labels = append(labels, l.GetName()+"="+l.GetValue())
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				fmt.Printf("%s %g\n", name, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				fmt.Printf("%s count=%d sum=%g\n", name, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "csgray:", err)
	os.Exit(1)
}

// Package batch fires a grid of rays at a scene from a pool of workers,
// each owning its own rt.Resource, and collects the results in ray order.
package batch

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/chazu/csgray/pkg/geom"
	"github.com/chazu/csgray/pkg/rt"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/chazu/csgray/pkg/batch"

// Options tunes a Run.
type Options struct {
	// Workers is the number of goroutines; zero means runtime.NumCPU.
	Workers int

	OneHit           int
	TrackAir         bool
	NoBooleans       bool
	OverlapTolerance float64
	Resolver         rt.Resolver

	// KeepOverlaps keeps overlapping partitions, flagged, instead of
	// handing them to the Resolver.
	KeepOverlaps bool

	// Bundle, when positive, hands each worker runs of that many rays and
	// shoots them with rt.Shootrays instead of one rt.Shootray per ray.
	Bundle int

	// Metrics receives the run's counters. Nil uses a private registry.
	Metrics *Metrics
}

// Span is one partition of a ray's result.
type Span struct {
	Region     string
	RegionID   int
	In, Out    float64
	InNormal   v3.Vec
	Overlapped bool
	Claimants  []string
}

// RayResult is the outcome of one ray.
type RayResult struct {
	Index int
	X, Y  int
	Hit   bool
	Spans []Span

	done bool
}

// Overlap records two regions claiming the same stretch of a ray.
type Overlap struct {
	Ray     int
	A, B    string
	In, Out float64
}

// Report is the outcome of a Run.
type Report struct {
	Rays     []RayResult
	Stats    rt.Stats
	Overlaps []Overlap
	Duration time.Duration
}

// worker is the per-goroutine state, reached from the callbacks through
// Application.User.
type worker struct {
	id       int
	opts     *Options
	out      []RayResult
	overlaps []Overlap
	ap       rt.Application
}

func hit(ap *rt.Application, parts *rt.PartitionList) int {
	w := ap.User.(*worker)
	res := &w.out[ap.Ray.Index]
	res.Hit = true
	res.Spans = make([]Span, 0, parts.Len())
	for p := range parts.All() {
		res.Spans = append(res.Spans, Span{
			Region:     p.Region.Name,
			RegionID:   p.Region.ID,
			In:         p.InDist,
			Out:        p.OutDist,
			InNormal:   p.InNormal(),
			Overlapped: p.Overlapped(),
			Claimants:  lo.Map(p.Claimants(), func(r *rt.Region, _ int) string { return r.Name }),
		})
	}
	return 1
}

func miss(*rt.Application) int { return 0 }

func overlap(ap *rt.Application, pp *rt.Partition, a, b *rt.Region) int {
	w := ap.User.(*worker)
	w.overlaps = append(w.overlaps, Overlap{
		Ray: ap.Ray.Index,
		A:   a.Name,
		B:   b.Name,
		In:  pp.InDist,
		Out: pp.OutDist,
	})
	if w.opts.KeepOverlaps {
		return 1
	}
	return rt.DefaultOverlap(ap, pp, a, b)
}

// Run fires every ray of grid at sc. Cancelling ctx stops new rays from
// being started; rays already in flight complete. On cancellation the
// report holds the rays that finished, and ctx's error is returned.
func Run(ctx context.Context, sc *rt.Scene, grid Grid, opts Options) (*Report, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	return RunRays(ctx, sc, grid.Rays(), opts)
}

// RunRays is Run over an explicit ray list. Each ray's Index must be its
// position in rays.
func RunRays(ctx context.Context, sc *rt.Scene, rays []geom.Ray, opts Options) (*Report, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	step := max(opts.Bundle, 1)
	workers = min(workers, max((len(rays)+step-1)/step, 1))
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(prometheus.NewRegistry())
	}
	for i := range rays {
		if rays[i].Index != i {
			return nil, fmt.Errorf("batch: ray %d carries index %d", i, rays[i].Index)
		}
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "batch.Run",
		trace.WithAttributes(
			attribute.Int("rays", len(rays)),
			attribute.Int("workers", workers),
			attribute.Int("bundle", opts.Bundle),
		),
	)
	defer span.End()

	start := time.Now()
	out := make([]RayResult, len(rays))
	jobs := make(chan int)
	pool := make([]*worker, workers)
	var wg sync.WaitGroup
	for i := range pool {
		w := &worker{id: i, opts: &opts, out: out}
		w.ap = rt.Application{
			Scene:            sc,
			Resource:         rt.NewResource(i),
			Hit:              hit,
			Miss:             miss,
			Overlap:          overlap,
			Resolve:          opts.Resolver,
			OneHit:           opts.OneHit,
			TrackAir:         opts.TrackAir,
			NoBooleans:       opts.NoBooleans,
			OverlapTolerance: opts.OverlapTolerance,
			Purpose:          "batch",
			User:             w,
		}
		pool[i] = w
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.run(ctx, rays, jobs)
		}()
	}

feed:
	for i := 0; i < len(rays); i += step {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	rep := &Report{Duration: time.Since(start)}
	for _, w := range pool {
		rep.Stats.Add(w.ap.Resource.Stats)
		rep.Overlaps = append(rep.Overlaps, w.overlaps...)
	}
	sort.Slice(rep.Overlaps, func(i, j int) bool {
		a, b := rep.Overlaps[i], rep.Overlaps[j]
		if a.Ray != b.Ray {
			return a.Ray < b.Ray
		}
		return a.In < b.In
	})
	rep.Rays = lo.Filter(out, func(r RayResult, _ int) bool { return r.done })
	opts.Metrics.observe(rep.Stats, rep.Duration)

	span.SetAttributes(
		attribute.Int64("hits", int64(rep.Stats.Hits)),
		attribute.Int64("misses", int64(rep.Stats.Misses())),
		attribute.Int("overlaps", len(rep.Overlaps)),
	)
	rt.Logger().Info("batch: run complete",
		"rays", len(rep.Rays),
		"workers", workers,
		"duration", rep.Duration,
		"stats", rep.Stats.String())

	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled")
		return rep, err
	}
	span.SetStatus(codes.Ok, "run complete")
	return rep, nil
}

func (w *worker) run(ctx context.Context, rays []geom.Ray, jobs <-chan int) {
	_, span := otel.Tracer(tracerName).Start(ctx, "batch.worker",
		trace.WithAttributes(attribute.Int("worker", w.id)),
	)
	defer span.End()

	step := max(w.opts.Bundle, 1)
	n := 0
	for first := range jobs {
		end := min(first+step, len(rays))
		for i := first; i < end; i++ {
			w.out[i] = RayResult{Index: rays[i].Index, X: rays[i].X, Y: rays[i].Y}
		}
		if w.opts.Bundle > 0 {
			rt.Shootrays(&w.ap, rays[first:end])
		} else {
			for i := first; i < end; i++ {
				w.ap.Ray = rays[i]
				rt.Shootray(&w.ap)
			}
		}
		for i := first; i < end; i++ {
			w.out[i].done = true
		}
		n += end - first
	}
	span.SetAttributes(attribute.Int("rays", n))
}

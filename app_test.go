package csgray

import (
	"context"
	"math"
	"os"
	"testing"

	"github.com/chazu/csgray/pkg/batch"
	"github.com/chazu/csgray/pkg/config"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// plateGrid looks down -z at examples/plate.csg: three rays at x=-3, 0, 3.
func plateGrid() batch.Grid {
	return batch.Grid{
		Origin:   v3.Vec{Z: 10},
		Dir:      v3.Vec{Z: -1},
		Up:       v3.Vec{Y: 1},
		Width:    3,
		Height:   1,
		CellSize: 3,
	}
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-3 }

// TestE2EPlateExample exercises the full pipeline: source, engine,
// validation, flatten, prep, batch trace.
func TestE2EPlateExample(t *testing.T) {
	app := NewApp(nil)

	source, err := os.ReadFile("examples/plate.csg")
	if err != nil {
		t.Fatalf("failed to read plate.csg: %v", err)
	}

	result := app.TraceGrid(context.Background(), string(source), plateGrid())
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("trace error: %s", e.Error())
		}
		t.FailNow()
	}
	if len(result.Rays) != 3 {
		t.Fatalf("expected 3 rays, got %d", len(result.Rays))
	}

	want := []struct {
		region  string
		in, out float64
	}{
		{"body", 9, 10},
		{"ball", 7.5, 8.5},
		{"body", 9, 10},
	}
	for i, w := range want {
		r := result.Rays[i]
		if !r.Hit || len(r.Spans) != 1 {
			t.Errorf("ray %d: expected one span, got %+v", i, r.Spans)
			continue
		}
		s := r.Spans[0]
		if s.Region != w.region || !near(s.In, w.in) || !near(s.Out, w.out) {
			t.Errorf("ray %d: got %s [%g, %g], want %s [%g, %g]",
				i, s.Region, s.In, s.Out, w.region, w.in, w.out)
		}
	}

	if result.Stats.Hits != 3 {
		t.Errorf("expected 3 hits, got %d", result.Stats.Hits)
	}
	if len(result.Regions) != 2 {
		t.Errorf("expected 2 regions, got %d", len(result.Regions))
	}
}

// TestE2EOverlapExample checks that overlaps are reported per ray.
func TestE2EOverlapExample(t *testing.T) {
	cfg := config.Default()
	cfg.Trace.KeepOverlaps = true
	app := NewApp(cfg)

	source, err := os.ReadFile("examples/overlap.csg")
	if err != nil {
		t.Fatalf("failed to read overlap.csg: %v", err)
	}

	g := batch.Grid{
		Origin:   v3.Vec{X: -5},
		Dir:      v3.Vec{X: 1},
		Up:       v3.Vec{Z: 1},
		Width:    1,
		Height:   1,
		CellSize: 1,
	}
	result := app.TraceGrid(context.Background(), string(source), g)
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if len(result.Overlaps) != 1 {
		t.Fatalf("expected 1 overlap, got %d", len(result.Overlaps))
	}
	o := result.Overlaps[0]
	if !near(o.In, 4.5) || !near(o.Out, 5.5) {
		t.Errorf("overlap at [%g, %g], want [4.5, 5.5]", o.In, o.Out)
	}
	spans := result.Rays[0].Spans
	if len(spans) != 3 || !spans[1].Overlapped {
		t.Errorf("expected a flagged middle span, got %+v", spans)
	}
}

// TestE2EEmptySource ensures the pipeline handles empty input gracefully.
func TestE2EEmptySource(t *testing.T) {
	app := NewApp(nil)
	result := app.TraceGrid(context.Background(), "", plateGrid())

	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors for empty source: %v", result.Errors)
	}
	for _, r := range result.Rays {
		if r.Hit {
			t.Errorf("ray %d hit an empty model", r.Index)
		}
	}
	if result.Stats.MissModel != 3 {
		t.Errorf("expected 3 model misses, got %d", result.Stats.MissModel)
	}
}

// TestE2ESyntaxError ensures eval errors are reported, not fatal errors.
func TestE2ESyntaxError(t *testing.T) {
	app := NewApp(nil)
	result := app.TraceGrid(context.Background(), `(sph "test"`, plateGrid())

	if len(result.Errors) == 0 {
		t.Fatal("expected eval errors for syntax error")
	}
	if len(result.Rays) != 0 {
		t.Errorf("expected no rays on error, got %d", len(result.Rays))
	}
}

// TestE2EConfiguredGrid traces with the grid from the configuration.
func TestE2EConfiguredGrid(t *testing.T) {
	cfg, err := config.Parse(`
[Grid]
Origin = 0 0 10
Dir = -z
Up = +y
Width = 3
Height = 1
CellSize = 3
`)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	reg := prometheus.NewRegistry()
	app := NewApp(cfg).WithMetrics(batch.NewMetrics(reg))

	source, err := os.ReadFile("examples/plate.csg")
	if err != nil {
		t.Fatalf("failed to read plate.csg: %v", err)
	}
	result := app.Trace(context.Background(), string(source))
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.Stats.Hits != 3 {
		t.Errorf("expected 3 hits, got %d", result.Stats.Hits)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(mfs) == 0 {
		t.Error("expected metrics to be recorded")
	}
}

// TestE2EBundledTrace traces the plate with bundled shooting and expects
// the same rays as the scalar run.
func TestE2EBundledTrace(t *testing.T) {
	source, err := os.ReadFile("examples/plate.csg")
	if err != nil {
		t.Fatalf("failed to read plate.csg: %v", err)
	}
	want := NewApp(nil).TraceGrid(context.Background(), string(source), plateGrid())

	cfg := config.Default()
	cfg.Trace.Bundle = 2
	got := NewApp(cfg).TraceGrid(context.Background(), string(source), plateGrid())
	if len(got.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", got.Errors)
	}
	if len(got.Rays) != len(want.Rays) {
		t.Fatalf("got %d rays, want %d", len(got.Rays), len(want.Rays))
	}
	for i := range want.Rays {
		w, g := want.Rays[i], got.Rays[i]
		if w.Hit != g.Hit || len(w.Spans) != len(g.Spans) {
			t.Errorf("ray %d: got %+v, want %+v", i, g, w)
			continue
		}
		for j := range w.Spans {
			if w.Spans[j].Region != g.Spans[j].Region || !near(w.Spans[j].In, g.Spans[j].In) || !near(w.Spans[j].Out, g.Spans[j].Out) {
				t.Errorf("ray %d span %d: got %+v, want %+v", i, j, g.Spans[j], w.Spans[j])
			}
		}
	}
}

// Package csgray ties the model language, the ray tracer and the batch
// runner together: source in, per-ray partitions out.
package csgray

import (
	"context"
	"fmt"

	"github.com/chazu/csgray/pkg/batch"
	"github.com/chazu/csgray/pkg/config"
	"github.com/chazu/csgray/pkg/engine"
	"github.com/chazu/csgray/pkg/model"
	"github.com/chazu/csgray/pkg/primitive"
	"github.com/chazu/csgray/pkg/primitive/sdfx"
	"github.com/chazu/csgray/pkg/rt"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/chazu/csgray"

// App evaluates model source and traces it with one configuration.
type App struct {
	engine   *engine.Engine
	registry *primitive.Registry
	cfg      *config.Config
	metrics  *batch.Metrics
}

// TraceResult is everything a Trace call produces. On evaluation or prep
// failure Errors is non-empty and Rays is empty.
type TraceResult struct {
	Rays     []batch.RayResult
	Overlaps []batch.Overlap
	Stats    rt.Stats
	Regions  []rt.RegionSummary
	Errors   []engine.EvalError
	Warnings []engine.EvalWarning
}

// NewApp creates an App with the analytic and sdfx primitives. A nil cfg
// uses config.Default.
func NewApp(cfg *config.Config) *App {
	if cfg == nil {
		cfg = config.Default()
	}
	reg := primitive.Builtin()
	if err := reg.Register(sdfx.New()); err != nil {
		panic(err)
	}
	return &App{
		engine:   engine.NewEngine(),
		registry: reg,
		cfg:      cfg,
	}
}

// WithMetrics makes every Trace report into m.
func (a *App) WithMetrics(m *batch.Metrics) *App {
	a.metrics = m
	return a
}

// Evaluate runs source and validates the database it builds. Validation
// errors are reported alongside evaluation errors; warnings never block.
func (a *App) Evaluate(source string) engine.EvalResult {
	result := engine.EvalResult{
		Errors:   []engine.EvalError{},
		Warnings: []engine.EvalWarning{},
	}

	db, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		rt.Logger().Error("app: evaluate failed", "err", err)
		result.Errors = append(result.Errors, engine.EvalError{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		result.Errors = append(result.Errors, evalErrs...)
		return result
	}

	findings := model.Validate(db)
	for _, f := range model.Warnings(findings) {
		result.Warnings = append(result.Warnings, engine.EvalWarning{Name: f.Name, Message: f.Message})
	}
	if errs := model.Errors(findings); len(errs) > 0 {
		for _, f := range errs {
			result.Errors = append(result.Errors, engine.EvalError{Message: f.Error()})
		}
		return result
	}
	result.Database = db
	return result
}

// Prep flattens db and preps it into a scene. The caller owns the scene
// and must Free it.
func (a *App) Prep(ctx context.Context, db *model.Database) (*rt.Scene, error) {
	_, span := otel.Tracer(tracerName).Start(ctx, "app.Prep",
		trace.WithAttributes(attribute.Int("objects", db.Len())),
	)
	defer span.End()

	flat, err := model.Flatten(db)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "flatten failed")
		return nil, fmt.Errorf("app: %w", err)
	}
	sc, err := rt.Prep(flat, a.registry, a.cfg.PrepOptions())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prep failed")
		return nil, fmt.Errorf("app: %w", err)
	}
	span.SetAttributes(
		attribute.Int("solids", len(sc.Solids)),
		attribute.Int("regions", len(sc.Regions)),
	)
	return sc, nil
}

// Trace evaluates source and fires the configured grid at it.
func (a *App) Trace(ctx context.Context, source string) TraceResult {
	g, err := a.cfg.BatchGrid()
	if err != nil {
		return TraceResult{Errors: []engine.EvalError{{Message: err.Error()}}}
	}
	return a.TraceGrid(ctx, source, g)
}

// TraceGrid is Trace with an explicit grid.
func (a *App) TraceGrid(ctx context.Context, source string, g batch.Grid) TraceResult {
	ev := a.Evaluate(source)
	result := TraceResult{Errors: ev.Errors, Warnings: ev.Warnings}
	if len(ev.Errors) > 0 {
		return result
	}

	sc, err := a.Prep(ctx, ev.Database)
	if err != nil {
		result.Errors = append(result.Errors, engine.EvalError{Message: err.Error()})
		return result
	}
	defer sc.Free()
	result.Regions = sc.Describe()

	opts := a.cfg.BatchOptions()
	opts.Metrics = a.metrics
	rep, err := batch.Run(ctx, sc, g, opts)
	if rep != nil {
		result.Rays = rep.Rays
		result.Overlaps = rep.Overlaps
		result.Stats = rep.Stats
	}
	if err != nil {
		result.Errors = append(result.Errors, engine.EvalError{Message: err.Error()})
	}
	return result
}

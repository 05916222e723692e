package csgray

import (
	"context"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// 1. Empty editor: empty string -> no database errors, no warnings.
// ---------------------------------------------------------------------------

func TestE2EEmptySourceExtended(t *testing.T) {
	app := NewApp(nil)
	result := app.Evaluate("")

	if len(result.Errors) != 0 {
		t.Errorf("expected 0 errors for empty source, got %d", len(result.Errors))
	}
	if len(result.Warnings) != 0 {
		t.Errorf("expected 0 warnings for empty source, got %d", len(result.Warnings))
	}
	if result.Database == nil || result.Database.Len() != 0 {
		t.Error("expected an empty, non-nil database")
	}
	if result.Errors == nil || result.Warnings == nil {
		t.Error("Errors and Warnings should be non-nil empty slices")
	}
}

func TestE2EWhitespaceOnly(t *testing.T) {
	app := NewApp(nil)
	result := app.Evaluate("   \n\t\n  ")
	if len(result.Errors) != 0 {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
}

// ---------------------------------------------------------------------------
// 2. Syntax errors: unmatched parens -> eval error, no database.
// ---------------------------------------------------------------------------

func TestE2ESyntaxErrorWithLineInfo(t *testing.T) {
	app := NewApp(nil)

	// Valid code on line 1, broken code on line 2 so line info is meaningful.
	result := app.Evaluate("(+ 1 2)\n(sph \"test\"")

	if len(result.Errors) == 0 {
		t.Fatal("expected at least one eval error for unmatched parens")
	}
	if result.Database != nil {
		t.Error("expected no database on syntax error")
	}
	e := result.Errors[0]
	if e.Message == "" {
		t.Error("syntax error should have a non-empty message")
	}
	t.Logf("syntax error: line=%d, col=%d, message=%q", e.Line, e.Col, e.Message)
}

func TestE2ESyntaxErrorSingleLineMissingParen(t *testing.T) {
	app := NewApp(nil)
	result := app.Evaluate("(+ 1 2")

	if len(result.Errors) == 0 {
		t.Fatal("expected eval error for missing closing paren")
	}
	if result.Errors[0].Message == "" {
		t.Error("error message should not be empty")
	}
}

// ---------------------------------------------------------------------------
// 3. Undefined references are caught by validation.
// ---------------------------------------------------------------------------

func TestE2EUndefinedReference(t *testing.T) {
	app := NewApp(nil)

	source := `
(sph "ball" :radius 1)
(region "r" (union "ball" "nonexistent"))
`
	result := app.Evaluate(source)

	if len(result.Errors) == 0 {
		t.Fatal("expected an error for the undefined reference")
	}
	found := false
	for _, e := range result.Errors {
		if strings.Contains(e.Message, "nonexistent") {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected error mentioning 'nonexistent', got: %v", result.Errors)
	}
	if result.Database != nil {
		t.Error("expected no database when validation fails")
	}
}

func TestE2ENestedRegion(t *testing.T) {
	app := NewApp(nil)
	result := app.Evaluate(`
(sph "a")
(region "inner" "a" :id 1)
(region "outer" "inner" :id 2)
`)
	if len(result.Errors) == 0 {
		t.Fatal("expected an error for a region inside a region")
	}
	if !strings.Contains(result.Errors[0].Message, "contains region") {
		t.Errorf("unexpected error: %v", result.Errors[0])
	}
}

// ---------------------------------------------------------------------------
// 4. Invalid dimensions.
// ---------------------------------------------------------------------------

func TestE2ENegativeRadius(t *testing.T) {
	app := NewApp(nil)
	result := app.Evaluate(`(region "r" (sph "s" :radius -3))`)
	if len(result.Errors) == 0 {
		t.Fatal("expected an error for a negative radius")
	}
}

func TestE2EZeroThicknessSlab(t *testing.T) {
	app := NewApp(nil)
	result := app.Evaluate(`(region "r" (rpp "slab" :min (vec3 0 0 0) :max (vec3 1 1 0)))`)
	if len(result.Errors) == 0 {
		t.Fatal("expected an error for a zero thickness rpp")
	}
}

// ---------------------------------------------------------------------------
// 5. Warnings: findings that do not block tracing.
// ---------------------------------------------------------------------------

func TestE2ENoRegionsWarns(t *testing.T) {
	app := NewApp(nil)
	result := app.Evaluate(`(sph "lonely")`)

	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	if result.Database == nil {
		t.Fatal("warnings must not withhold the database")
	}
	var sawRegions, sawOrphan bool
	for _, w := range result.Warnings {
		if strings.Contains(w.Message, "no regions") {
			sawRegions = true
		}
		if w.Name == "lonely" {
			sawOrphan = true
		}
	}
	if !sawRegions || !sawOrphan {
		t.Errorf("expected no-regions and orphan warnings, got %+v", result.Warnings)
	}
}

// ---------------------------------------------------------------------------
// 6. Rapid evaluation: no panics, engine recovers between failures.
// ---------------------------------------------------------------------------

func TestE2ERapidEvaluationAlternating(t *testing.T) {
	app := NewApp(nil)

	sources := []string{
		`(region "ok" (sph "a" :radius 1))`,
		`(region "broken"`,
		``,
		`(region "r" "missing")`,
		`(region "also-ok" (rpp "b" :max (vec3 2 2 2)))`,
		`(+ 1 2)`,
		`;; just a comment`,
		`(undefined-func 1 2 3)`,
		`(region "last" (sdf-sphere "c" :radius 2))`,
	}

	for i, source := range sources {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Errorf("iteration %d panicked on source %q: %v", i, source, r)
				}
			}()
			_ = app.Evaluate(source)
		}()
	}

	result := app.Evaluate(sources[0])
	if len(result.Errors) != 0 || result.Database == nil {
		t.Errorf("engine did not recover: %v", result.Errors)
	}
}

// ---------------------------------------------------------------------------
// 7. Comments.
// ---------------------------------------------------------------------------

func TestE2ECommentsOnly(t *testing.T) {
	app := NewApp(nil)

	source := `
;; This is a comment
;; Another comment
; And another
`
	result := app.Evaluate(source)
	if len(result.Errors) > 0 {
		t.Errorf("unexpected errors for comments-only source: %v", result.Errors)
	}
}

// ---------------------------------------------------------------------------
// 8. Nested expressions: def with arithmetic feeding shape parameters.
// ---------------------------------------------------------------------------

func TestE2ENestedArithmeticDef(t *testing.T) {
	app := NewApp(nil)

	source := `
(def base-length 10)
(def margin 1.5)
(def inner-length (- base-length (* 2 margin)))

(region "inner-panel"
  (rpp "panel" :min (vec3 0 0 0) :max (vec3 inner-length 1 1)))
`
	result := app.TraceGrid(context.Background(), source, plateGrid())
	if len(result.Errors) > 0 {
		for _, e := range result.Errors {
			t.Errorf("eval error: %s", e.Message)
		}
		t.FailNow()
	}
	if len(result.Regions) != 1 || result.Regions[0].Name != "inner-panel" {
		t.Fatalf("expected region inner-panel, got %+v", result.Regions)
	}
	// The panel spans x 0..7; only the ray at x=3 crosses it.
	if result.Stats.Hits != 1 {
		t.Errorf("expected 1 hit, got %d", result.Stats.Hits)
	}
	r := result.Rays[2]
	if !r.Hit || !near(r.Spans[0].In, 9) || !near(r.Spans[0].Out, 10) {
		t.Errorf("unexpected spans for ray 2: %+v", r.Spans)
	}
}

// ---------------------------------------------------------------------------
// 9. Large dimensions: rays still resolve far from the origin.
// ---------------------------------------------------------------------------

func TestE2ELargeDimensions(t *testing.T) {
	app := NewApp(nil)
	source := `(region "huge" (rpp "slab" :min (vec3 -100000 -100000 -5) :max (vec3 100000 100000 0)))`

	result := app.TraceGrid(context.Background(), source, plateGrid())
	if len(result.Errors) > 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
	for _, r := range result.Rays {
		if !r.Hit || len(r.Spans) != 1 {
			t.Errorf("ray %d: expected one span, got %+v", r.Index, r.Spans)
			continue
		}
		if !near(r.Spans[0].In, 10) || !near(r.Spans[0].Out, 15) {
			t.Errorf("ray %d: got [%g, %g], want [10, 15]", r.Index, r.Spans[0].In, r.Spans[0].Out)
		}
	}
}

// ---------------------------------------------------------------------------
// 10. Cancellation: a cancelled context reports an error, not a panic.
// ---------------------------------------------------------------------------

func TestE2ECancelled(t *testing.T) {
	app := NewApp(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := plateGrid()
	g.Width, g.Height = 64, 64
	result := app.TraceGrid(ctx, `(region "r" (sph "a" :radius 1))`, g)
	if len(result.Errors) == 0 {
		t.Fatal("expected a cancellation error")
	}
	if !strings.Contains(result.Errors[len(result.Errors)-1].Message, "canceled") {
		t.Errorf("unexpected error: %v", result.Errors)
	}
}

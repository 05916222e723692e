package model

import (
	"errors"
	"strings"
	"testing"

	"github.com/chazu/csgray/pkg/primitive"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// buildTwoSpheres creates the canonical two-sphere database: spheres at
// x=-2 and x=2 combined by op into region R.
func buildTwoSpheres(t *testing.T, op func(l, r *Node) *Node) *Database {
	t.Helper()
	db := NewDatabase()
	if _, err := db.AddShape("left", primitive.SphereParams{Center: v3.Vec{X: -2}, Radius: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddShape("right", primitive.SphereParams{Center: v3.Vec{X: 2}, Radius: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.AddRegion("R", 1, op(Ref("left"), Ref("right"))); err != nil {
		t.Fatal(err)
	}
	return db
}

func TestDatabaseOrderAndLookup(t *testing.T) {
	db := buildTwoSpheres(t, Union)
	if db.Len() != 3 {
		t.Fatalf("expected 3 objects, got %d", db.Len())
	}
	shapes := db.Shapes()
	if len(shapes) != 2 || shapes[0].Name != "left" || shapes[1].Name != "right" {
		t.Fatalf("unexpected shape order: %v", shapes)
	}
	if shapes[0].Type() != "sph" {
		t.Errorf("expected sph, got %q", shapes[0].Type())
	}
	if db.Comb("R") == nil || !db.Comb("R").Region {
		t.Fatal("expected region R")
	}
	if db.Shape("R") != nil {
		t.Error("R must not be a shape")
	}
}

func TestDatabaseRejectsDuplicateNames(t *testing.T) {
	db := buildTwoSpheres(t, Union)
	if _, err := db.AddShape("left", primitive.SphereParams{Radius: 1}); err == nil {
		t.Fatal("expected duplicate name error")
	}
	if _, err := db.AddRegion("", 1, Ref("left")); err == nil {
		t.Fatal("expected empty name error")
	}
}

func TestValidateClean(t *testing.T) {
	db := buildTwoSpheres(t, Union)
	if errs := Validate(db); len(errs) != 0 {
		t.Fatalf("expected no findings, got %v", errs)
	}
}

func TestValidateUndefinedReference(t *testing.T) {
	db := buildTwoSpheres(t, Union)
	if _, err := db.AddRegion("bad", 2, Ref("ghost")); err != nil {
		t.Fatal(err)
	}
	errs := Errors(Validate(db))
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}
	if !strings.Contains(errs[0].Message, "ghost") {
		t.Errorf("unexpected message: %s", errs[0].Message)
	}
}

func TestValidateCycle(t *testing.T) {
	db := NewDatabase()
	db.AddComb(&Comb{Name: "a", Tree: Ref("b")})
	db.AddComb(&Comb{Name: "b", Tree: Ref("a")})
	db.AddRegion("R", 1, Ref("a"))

	errs := Errors(Validate(db))
	found := false
	for _, e := range errs {
		if strings.Contains(e.Message, "cycle") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected cycle error, got %v", errs)
	}
}

func TestValidateNestedRegion(t *testing.T) {
	db := buildTwoSpheres(t, Union)
	db.AddRegion("outer", 2, Ref("R"))
	errs := Errors(Validate(db))
	if len(errs) != 1 || errs[0].Name != "outer" {
		t.Fatalf("expected nested region error on outer, got %v", errs)
	}
}

func TestValidateMalformedTree(t *testing.T) {
	db := NewDatabase()
	db.AddShape("s", primitive.SphereParams{Radius: 1})
	db.AddRegion("R", 1, &Node{Op: OpUnion, Left: Ref("s")})
	db.AddComb(&Comb{Name: "empty"})
	errs := Errors(Validate(db))
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors, got %v", errs)
	}
}

func TestValidateOrphanWarning(t *testing.T) {
	db := buildTwoSpheres(t, Union)
	db.AddShape("spare", primitive.SphereParams{Radius: 1})
	findings := Validate(db)
	if len(Errors(findings)) != 0 {
		t.Fatalf("orphans must not be errors: %v", findings)
	}
	warns := Warnings(findings)
	if len(warns) != 1 || warns[0].Name != "spare" {
		t.Fatalf("expected orphan warning for spare, got %v", warns)
	}
}

func TestFlattenTwoSpheres(t *testing.T) {
	flat, err := Flatten(buildTwoSpheres(t, Union))
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	if len(flat.Instances) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(flat.Instances))
	}
	if len(flat.Regions) != 1 {
		t.Fatalf("expected 1 region, got %d", len(flat.Regions))
	}
	r := flat.Regions[0]
	if r.Name != "R" || r.ID != 1 || r.Air() {
		t.Errorf("unexpected region %+v", r)
	}
	if got := r.Tree.String(); got != "(union #0 #1)" {
		t.Errorf("tree = %s", got)
	}
}

func TestFlattenInstancesShareTransforms(t *testing.T) {
	db := NewDatabase()
	db.AddShape("s", primitive.SphereParams{Radius: 1})
	db.AddComb(&Comb{Name: "pair", Tree: Union(
		Ref("s"),
		Ref("s").Transform(sdf.Translate3d(v3.Vec{X: 5})),
	)})
	// Two regions reuse the pair, one of them moved.
	db.AddRegion("A", 1, Ref("pair"))
	db.AddRegion("B", 2, Ref("pair").Transform(sdf.Translate3d(v3.Vec{Y: 5})))

	flat, err := Flatten(db)
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	if len(flat.Instances) != 4 {
		t.Fatalf("expected 4 instances, got %d", len(flat.Instances))
	}
	if flat.Instances[0].Name != "s" || flat.Instances[1].Name != "s@2" {
		t.Errorf("unexpected instance names %q %q", flat.Instances[0].Name, flat.Instances[1].Name)
	}
	p := flat.Instances[3].Xform.MulPosition(v3.Vec{})
	if p.X != 5 || p.Y != 5 {
		t.Errorf("expected composed translation (5,5,0), got %v", p)
	}
	if got := flat.Regions[1].Tree.Solids(); len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("region B solids = %v", got)
	}
}

func TestFlattenRoots(t *testing.T) {
	db := buildTwoSpheres(t, Union)
	db.AddShape("far", primitive.SphereParams{Center: v3.Vec{Z: 10}, Radius: 1})
	db.AddRegion("F", 2, Ref("far"))
	db.AddComb(&Comb{Name: "group", Tree: Ref("F")})

	flat, err := Flatten(db, "group")
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}
	if len(flat.Regions) != 1 || flat.Regions[0].Name != "F" {
		t.Fatalf("expected only region F, got %+v", flat.Regions)
	}
	if _, err := Flatten(db, "nope"); err == nil {
		t.Fatal("expected unknown root error")
	}
}

func TestFlattenRejectsInvalid(t *testing.T) {
	db := buildTwoSpheres(t, Union)
	db.AddRegion("bad", 2, Ref("ghost"))
	_, err := Flatten(db)
	var inv *InvalidError
	if !errors.As(err, &inv) {
		t.Fatalf("expected InvalidError, got %v", err)
	}
	if len(inv.Findings) == 0 {
		t.Fatal("expected findings")
	}
}

func TestOpString(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpLeaf, "leaf"},
		{OpUnion, "union"},
		{OpIntersect, "intersect"},
		{OpSubtract, "subtract"},
		{Op(42), "Op(42)"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Op(%d).String() = %q, want %q", int(tt.op), got, tt.want)
		}
	}
}

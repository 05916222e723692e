package engine

import (
	"fmt"
	"math"
	"strings"

	"github.com/chazu/csgray/pkg/model"
	"github.com/chazu/csgray/pkg/primitive"
	sdfxprim "github.com/chazu/csgray/pkg/primitive/sdfx"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
	zygo "github.com/glycerine/zygomys/zygo"
)

// ---------------------------------------------------------------------------
// Go values passed through the zygomys environment
// ---------------------------------------------------------------------------

type sexpVec3 struct {
	vec v3.Vec
}

func (v *sexpVec3) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(vec3 %g %g %g)", v.vec.X, v.vec.Y, v.vec.Z)
}
func (v *sexpVec3) Type() *zygo.RegisteredType { return nil }

// sexpTree carries a boolean tree between builtins. Shape and comb
// builtins return a leaf referencing what they defined.
type sexpTree struct {
	node *model.Node
}

func (t *sexpTree) SexpString(ps *zygo.PrintState) string {
	return fmt.Sprintf("(tree %s)", t.node)
}
func (t *sexpTree) Type() *zygo.RegisteredType { return nil }

// ---------------------------------------------------------------------------
// Keyword argument parsing
// ---------------------------------------------------------------------------

// isKW reports whether s is a preprocessed keyword and returns its name.
func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

// parseArgs separates keyword and positional arguments. A trailing
// keyword with no value maps to SexpNull.
func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// float returns the keyword's number, or def when it is absent.
func (a kwArgs) float(name string, def float64) (float64, error) {
	v, ok := a.kw[name]
	if !ok {
		return def, nil
	}
	f, err := toFloat64(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return f, nil
}

// vec returns the keyword's vec3, or def when it is absent.
func (a kwArgs) vec(name string, def v3.Vec) (v3.Vec, error) {
	v, ok := a.kw[name]
	if !ok {
		return def, nil
	}
	vec, err := toVec3(v)
	if err != nil {
		return v3.Vec{}, fmt.Errorf("%s: %w", name, err)
	}
	return vec, nil
}

// ---------------------------------------------------------------------------
// Value extraction helpers
// ---------------------------------------------------------------------------

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	if v, ok := s.(*zygo.SexpInt); ok {
		return int(v.Val), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

func toString(s zygo.Sexp) (string, error) {
	if str, ok := s.(*zygo.SexpStr); ok && !strings.HasPrefix(str.S, kwPrefix) {
		return str.S, nil
	}
	return "", fmt.Errorf("expected string, got %T (%s)", s, s.SexpString(nil))
}

func toVec3(s zygo.Sexp) (v3.Vec, error) {
	if v, ok := s.(*sexpVec3); ok {
		return v.vec, nil
	}
	return v3.Vec{}, fmt.Errorf("expected vec3, got %T (%s)", s, s.SexpString(nil))
}

// toTree accepts a tree value or the name of a shape or comb.
func toTree(s zygo.Sexp) (*model.Node, error) {
	switch v := s.(type) {
	case *sexpTree:
		return v.node, nil
	case *zygo.SexpStr:
		if name, err := toString(v); err == nil {
			return model.Ref(name), nil
		}
	}
	return nil, fmt.Errorf("expected shape, combination or name, got %T (%s)", s, s.SexpString(nil))
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// firstRegionID is the id given to regions declared without :id.
const firstRegionID = 1000

// builder accumulates definitions into a database during one evaluation.
type builder struct {
	db     *model.Database
	nextID int
}

func newBuilder(db *model.Database) *builder {
	return &builder{db: db, nextID: firstRegionID}
}

// shape registers a primitive and returns a leaf referencing it.
func (b *builder) shape(name string, p primitive.Params) (zygo.Sexp, error) {
	if _, err := b.db.AddShape(name, p); err != nil {
		return zygo.SexpNull, err
	}
	return &sexpTree{node: model.Ref(name)}, nil
}

// namedShape parses the leading name argument shared by every shape
// builtin.
func namedShape(fn string, args []zygo.Sexp) (string, kwArgs, error) {
	pa := parseArgs(args)
	if len(pa.positional) < 1 {
		return "", pa, fmt.Errorf("%s requires a name argument", fn)
	}
	name, err := toString(pa.positional[0])
	if err != nil {
		return "", pa, fmt.Errorf("%s: name: %w", fn, err)
	}
	return name, pa, nil
}

type zfunc = func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error)

// registerBuiltins installs the model language into env. Source must be
// preprocessed with preprocessSource first, so that keywords and kebab
// case names arrive in the form the builtins expect.
func registerBuiltins(env *zygo.Zlisp, b *builder) {
	builtins := map[string]zfunc{
		"vec3":         vec3Builtin,
		"sph":          b.sphBuiltin,
		"rpp":          b.rppBuiltin,
		"sdf_box":      b.sdfBoxBuiltin,
		"sdf_cylinder": b.sdfCylinderBuiltin,
		"sdf_sphere":   b.sdfSphereBuiltin,
		"union":        boolBuiltin("union", model.Union),
		"intersect":    boolBuiltin("intersect", model.Intersect),
		"subtract":     boolBuiltin("subtract", model.Subtract),
		"translate":    transformBuiltin("translate", sdf.Translate3d),
		"rotate":       transformBuiltin("rotate", eulerDegrees),
		"comb":         b.combBuiltin,
		"region":       b.regionBuiltin,
	}
	for name, fn := range builtins {
		env.AddFunction(name, fn)
	}
}

// (vec3 1 2 3)
func vec3Builtin(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
	if len(args) != 3 {
		return zygo.SexpNull, fmt.Errorf("vec3 requires exactly 3 arguments, got %d", len(args))
	}
	var c [3]float64
	for i, axis := range []string{"x", "y", "z"} {
		f, err := toFloat64(args[i])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("vec3: %s: %w", axis, err)
		}
		c[i] = f
	}
	return &sexpVec3{vec: v3.Vec{X: c[0], Y: c[1], Z: c[2]}}, nil
}

// (sph "ball" :center (vec3 0 0 0) :radius 5)
func (b *builder) sphBuiltin(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
	name, pa, err := namedShape("sph", args)
	if err != nil {
		return zygo.SexpNull, err
	}
	var p primitive.SphereParams
	if p.Center, err = pa.vec("center", v3.Vec{}); err != nil {
		return zygo.SexpNull, fmt.Errorf("sph: %w", err)
	}
	if p.Radius, err = pa.float("radius", 1); err != nil {
		return zygo.SexpNull, fmt.Errorf("sph: %w", err)
	}
	if !(p.Radius > 0) {
		return zygo.SexpNull, fmt.Errorf("sph: radius must be positive, got %g", p.Radius)
	}
	return b.shape(name, p)
}

// (rpp "slab" :min (vec3 0 0 0) :max (vec3 10 10 1))
func (b *builder) rppBuiltin(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
	name, pa, err := namedShape("rpp", args)
	if err != nil {
		return zygo.SexpNull, err
	}
	var p primitive.RPPParams
	if p.Min, err = pa.vec("min", v3.Vec{}); err != nil {
		return zygo.SexpNull, fmt.Errorf("rpp: %w", err)
	}
	if p.Max, err = pa.vec("max", v3.Vec{X: 1, Y: 1, Z: 1}); err != nil {
		return zygo.SexpNull, fmt.Errorf("rpp: %w", err)
	}
	if p.Max.X <= p.Min.X || p.Max.Y <= p.Min.Y || p.Max.Z <= p.Min.Z {
		return zygo.SexpNull, fmt.Errorf("rpp: max must exceed min on every axis")
	}
	return b.shape(name, p)
}

// (sdf-box "b" :size (vec3 2 2 2) :round 0.1)
func (b *builder) sdfBoxBuiltin(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
	name, pa, err := namedShape("sdf-box", args)
	if err != nil {
		return zygo.SexpNull, err
	}
	size, err := pa.vec("size", v3.Vec{X: 1, Y: 1, Z: 1})
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("sdf-box: %w", err)
	}
	round, err := pa.float("round", 0)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("sdf-box: %w", err)
	}
	p, err := sdfxprim.Box(size, round)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("sdf-box: %w", err)
	}
	return b.shape(name, p)
}

// (sdf-cylinder "c" :height 4 :radius 1 :round 0)
func (b *builder) sdfCylinderBuiltin(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
	name, pa, err := namedShape("sdf-cylinder", args)
	if err != nil {
		return zygo.SexpNull, err
	}
	height, err := pa.float("height", 1)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("sdf-cylinder: %w", err)
	}
	radius, err := pa.float("radius", 1)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("sdf-cylinder: %w", err)
	}
	round, err := pa.float("round", 0)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("sdf-cylinder: %w", err)
	}
	p, err := sdfxprim.Cylinder(height, radius, round)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("sdf-cylinder: %w", err)
	}
	return b.shape(name, p)
}

// (sdf-sphere "s" :radius 2)
func (b *builder) sdfSphereBuiltin(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
	name, pa, err := namedShape("sdf-sphere", args)
	if err != nil {
		return zygo.SexpNull, err
	}
	radius, err := pa.float("radius", 1)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("sdf-sphere: %w", err)
	}
	p, err := sdfxprim.Sphere(radius)
	if err != nil {
		return zygo.SexpNull, fmt.Errorf("sdf-sphere: %w", err)
	}
	return b.shape(name, p)
}

// (union a b c ...) folds left: ((a op b) op c).
func boolBuiltin(fn string, op func(l, r *model.Node) *model.Node) zfunc {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 2 {
			return zygo.SexpNull, fmt.Errorf("%s requires at least 2 operands, got %d", fn, len(args))
		}
		var acc *model.Node
		for i, a := range args {
			n, err := toTree(a)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: operand %d: %w", fn, i+1, err)
			}
			// Operands may be shared by other expressions.
			n = n.Clone()
			if acc == nil {
				acc = n
			} else {
				acc = op(acc, n)
			}
		}
		return &sexpTree{node: acc}, nil
	}
}

// (translate (vec3 1 0 0) tree) and (rotate (vec3 0 0 90) tree).
func transformBuiltin(fn string, matrix func(v3.Vec) sdf.M44) zfunc {
	return func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) != 2 {
			return zygo.SexpNull, fmt.Errorf("%s requires a vec3 and a tree, got %d arguments", fn, len(args))
		}
		v, err := toVec3(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
		}
		n, err := toTree(args[1])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("%s: %w", fn, err)
		}
		return &sexpTree{node: n.Clone().Transform(matrix(v))}, nil
	}
}

// eulerDegrees rotates about X, then Y, then Z.
func eulerDegrees(v v3.Vec) sdf.M44 {
	rad := math.Pi / 180
	return sdf.RotateZ(v.Z * rad).Mul(sdf.RotateY(v.Y * rad)).Mul(sdf.RotateX(v.X * rad))
}

// combArgs parses (name tree ...keywords).
func combArgs(fn string, args []zygo.Sexp) (string, *model.Node, kwArgs, error) {
	pa := parseArgs(args)
	if len(pa.positional) != 2 {
		return "", nil, pa, fmt.Errorf("%s requires a name and a tree", fn)
	}
	name, err := toString(pa.positional[0])
	if err != nil {
		return "", nil, pa, fmt.Errorf("%s: name: %w", fn, err)
	}
	tree, err := toTree(pa.positional[1])
	if err != nil {
		return "", nil, pa, fmt.Errorf("%s: %w", fn, err)
	}
	return name, tree.Clone(), pa, nil
}

// (comb "pair" (union a b))
func (b *builder) combBuiltin(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
	name, tree, _, err := combArgs("comb", args)
	if err != nil {
		return zygo.SexpNull, err
	}
	if err := b.db.AddComb(&model.Comb{Name: name, Tree: tree}); err != nil {
		return zygo.SexpNull, fmt.Errorf("comb: %w", err)
	}
	return &sexpTree{node: model.Ref(name)}, nil
}

// (region "hull" tree :id 1 :material "steel"). An :id of 0 or less makes
// an air region; without :id regions are numbered from 1000.
func (b *builder) regionBuiltin(env *zygo.Zlisp, fn string, args []zygo.Sexp) (zygo.Sexp, error) {
	name, tree, pa, err := combArgs("region", args)
	if err != nil {
		return zygo.SexpNull, err
	}
	c := &model.Comb{Name: name, Tree: tree, Region: true}
	if v, ok := pa.kw["id"]; ok {
		if c.RegionID, err = toInt(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("region: id: %w", err)
		}
	} else {
		c.RegionID = b.nextID
		b.nextID++
	}
	if v, ok := pa.kw["material"]; ok {
		if c.Material, err = toString(v); err != nil {
			return zygo.SexpNull, fmt.Errorf("region: material: %w", err)
		}
	}
	if err := b.db.AddComb(c); err != nil {
		return zygo.SexpNull, fmt.Errorf("region: %w", err)
	}
	return &sexpTree{node: model.Ref(name)}, nil
}

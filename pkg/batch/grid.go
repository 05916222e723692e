package batch

import (
	"errors"
	"fmt"

	"github.com/chazu/csgray/pkg/geom"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Grid is an orthographic view: Width x Height parallel rays fired along
// Dir from a plane centred on Origin, CellSize apart. Up fixes the
// plane's vertical; it need not be exactly perpendicular to Dir.
type Grid struct {
	Origin   v3.Vec
	Dir      v3.Vec
	Up       v3.Vec
	Width    int
	Height   int
	CellSize float64
}

// Validate reports a grid that cannot produce rays.
func (g Grid) Validate() error {
	var errs []error
	if g.Width <= 0 || g.Height <= 0 {
		errs = append(errs, fmt.Errorf("grid: size %dx%d must be positive", g.Width, g.Height))
	}
	if !(g.CellSize > 0) {
		errs = append(errs, fmt.Errorf("grid: cell size %g must be positive", g.CellSize))
	}
	if g.Dir.Length() == 0 {
		errs = append(errs, errors.New("grid: direction is zero"))
	} else if g.Dir.Cross(g.Up).Length() < 1e-9*g.Dir.Length()*g.Up.Length() || g.Up.Length() == 0 {
		errs = append(errs, errors.New("grid: up is zero or parallel to the direction"))
	}
	return errors.Join(errs...)
}

// Rays returns the grid's rays in row-major order from the top left.
// Ray.Index is the position in the slice.
func (g Grid) Rays() []geom.Ray {
	dir := g.Dir.Normalize()
	right := dir.Cross(g.Up).Normalize()
	up := right.Cross(dir)

	cx := float64(g.Width-1) / 2
	cy := float64(g.Height-1) / 2
	rays := make([]geom.Ray, 0, g.Width*g.Height)
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			o := g.Origin.
				Add(right.MulScalar((float64(x) - cx) * g.CellSize)).
				Add(up.MulScalar((cy - float64(y)) * g.CellSize))
			r := geom.NewRay(o, dir)
			r.Index = len(rays)
			r.X, r.Y = x, y
			rays = append(rays, r)
		}
	}
	return rays
}

// Len is the number of rays.
func (g Grid) Len() int { return g.Width * g.Height }

// Axis parses an axis direction: "+x", "-y", "z" and so on.
func Axis(s string) (v3.Vec, error) {
	sign := 1.0
	name := s
	if len(name) == 2 {
		switch name[0] {
		case '+':
		case '-':
			sign = -1
		default:
			return v3.Vec{}, fmt.Errorf("batch: bad axis %q", s)
		}
		name = name[1:]
	}
	switch name {
	case "x", "X":
		return v3.Vec{X: sign}, nil
	case "y", "Y":
		return v3.Vec{Y: sign}, nil
	case "z", "Z":
		return v3.Vec{Z: sign}, nil
	}
	return v3.Vec{}, fmt.Errorf("batch: bad axis %q", s)
}

// Package config reads csgray run settings from gcfg (INI style) files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/chazu/csgray/pkg/batch"
	"github.com/chazu/csgray/pkg/cut"
	"github.com/chazu/csgray/pkg/rt"
	v3 "github.com/deadsy/sdfx/vec/v3"
	"gopkg.in/gcfg.v1"
)

// Example is a commented config file listing every setting with its
// default.
const Example = `[Tolerance]

# Distances closer than Dist are treated as equal.
Dist = 0.0005

[Cut]

# Space partitioning limits. A cell stops splitting at MaxDepth, or once
# it holds no more than MaxLen solids, or when a cut would leave a child
# narrower than MinSide.
MaxDepth = 32
MaxLen = 45
MinSide = 1.0

[Trace]

# Number of ray workers. 0 uses one per CPU.
Workers = 0

# Rays per worker job. Above 0, each job is shot as one bundle with
# solids grouped by primitive type.
Bundle = 0

# How overlapping regions are settled: air-yields, first-region, discard.
Resolver = air-yields

# Overlaps shorter than this are resolved silently.
OverlapTolerance = 0

# Stop after this many partitions per ray. 0 traces the whole ray; a
# negative value counts only non-air partitions.
OneHit = 0

# TrackAir = false
# NoBooleans = false
# KeepOverlaps = false

# debug, info, warn or error.
LogLevel = info

[Grid]

# Origin is the centre of the view plane. Dir and Up are either an axis
# such as -z or three numbers.
Origin = -10 0 0
Dir = +x
Up = +z
Width = 32
Height = 32
CellSize = 0.25`

// Config is a full set of run settings.
type Config struct {
	Tolerance struct {
		Dist float64
	}
	Cut struct {
		MaxDepth int
		MaxLen   int
		MinSide  float64
	}
	Trace struct {
		Workers          int
		Bundle           int
		Resolver         string
		OverlapTolerance float64
		OneHit           int
		TrackAir         bool
		NoBooleans       bool
		KeepOverlaps     bool
		LogLevel         string
	}
	Grid struct {
		Origin   string
		Dir      string
		Up       string
		Width    int
		Height   int
		CellSize float64
	}
}

// Default returns the settings Example describes.
func Default() *Config {
	c := &Config{}
	c.Tolerance.Dist = rt.DefaultTolerance().Dist
	opts := cut.DefaultOptions()
	c.Cut.MaxDepth = opts.MaxDepth
	c.Cut.MaxLen = opts.MaxLen
	c.Cut.MinSide = opts.MinSide
	c.Trace.Resolver = "air-yields"
	c.Trace.LogLevel = "info"
	c.Grid.Origin = "-10 0 0"
	c.Grid.Dir = "+x"
	c.Grid.Up = "+z"
	c.Grid.Width = 32
	c.Grid.Height = 32
	c.Grid.CellSize = 0.25
	return c
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	c := Default()
	if err := gcfg.ReadFileInto(c, path); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse is Load for an in-memory file.
func Parse(s string) (*Config, error) {
	c := Default()
	if err := gcfg.ReadStringInto(c, s); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Tolerance.Dist <= 0 {
		errs = append(errs, fmt.Errorf("Tolerance.Dist %g must be positive", c.Tolerance.Dist))
	}
	if c.Cut.MaxDepth < 0 || c.Cut.MaxLen < 0 || c.Cut.MinSide < 0 {
		errs = append(errs, errors.New("Cut settings must not be negative"))
	}
	if c.Trace.Workers < 0 {
		errs = append(errs, fmt.Errorf("Trace.Workers %d must not be negative", c.Trace.Workers))
	}
	if c.Trace.Bundle < 0 {
		errs = append(errs, fmt.Errorf("Trace.Bundle %d must not be negative", c.Trace.Bundle))
	}
	if c.Trace.OverlapTolerance < 0 {
		errs = append(errs, fmt.Errorf("Trace.OverlapTolerance %g must not be negative", c.Trace.OverlapTolerance))
	}
	if _, err := rt.ParseResolver(c.Trace.Resolver); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.BatchGrid(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// PrepOptions converts the Tolerance and Cut sections.
func (c *Config) PrepOptions() rt.PrepOptions {
	return rt.PrepOptions{
		Tol: rt.Tolerance{Dist: c.Tolerance.Dist},
		Cut: cut.Options{
			MaxDepth: c.Cut.MaxDepth,
			MaxLen:   c.Cut.MaxLen,
			MinSide:  c.Cut.MinSide,
		},
	}
}

// BatchOptions converts the Trace section. The resolver name has already
// been checked by Validate; an unknown one falls back to the default.
func (c *Config) BatchOptions() batch.Options {
	res, _ := rt.ParseResolver(c.Trace.Resolver)
	return batch.Options{
		Workers:          c.Trace.Workers,
		Bundle:           c.Trace.Bundle,
		OneHit:           c.Trace.OneHit,
		TrackAir:         c.Trace.TrackAir,
		NoBooleans:       c.Trace.NoBooleans,
		OverlapTolerance: c.Trace.OverlapTolerance,
		Resolver:         res,
		KeepOverlaps:     c.Trace.KeepOverlaps,
	}
}

// BatchGrid converts the Grid section.
func (c *Config) BatchGrid() (batch.Grid, error) {
	g := batch.Grid{
		Width:    c.Grid.Width,
		Height:   c.Grid.Height,
		CellSize: c.Grid.CellSize,
	}
	var err error
	if g.Origin, err = vector(c.Grid.Origin); err != nil {
		return g, fmt.Errorf("Grid.Origin: %w", err)
	}
	if g.Dir, err = vector(c.Grid.Dir); err != nil {
		return g, fmt.Errorf("Grid.Dir: %w", err)
	}
	if g.Up, err = vector(c.Grid.Up); err != nil {
		return g, fmt.Errorf("Grid.Up: %w", err)
	}
	return g, g.Validate()
}

// LogLevel parses Trace.LogLevel.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Trace.LogLevel)); err != nil {
		return l, fmt.Errorf("Trace.LogLevel: %w", err)
	}
	return l, nil
}

// vector parses "x y z" or an axis name.
func vector(s string) (v3.Vec, error) {
	f := strings.Fields(s)
	switch len(f) {
	case 1:
		return batch.Axis(f[0])
	case 3:
		var xyz [3]float64
		for i := range f {
			v, err := strconv.ParseFloat(f[i], 64)
			if err != nil {
				return v3.Vec{}, fmt.Errorf("bad component %q", f[i])
			}
			xyz[i] = v
		}
		return v3.Vec{X: xyz[0], Y: xyz[1], Z: xyz[2]}, nil
	}
	return v3.Vec{}, fmt.Errorf("expected an axis or three numbers, got %q", s)
}

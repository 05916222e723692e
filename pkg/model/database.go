package model

import (
	"fmt"

	"github.com/chazu/csgray/pkg/primitive"
)

// Database is the description of a model: named shapes and combinations.
// Names share one namespace. Iteration order is insertion order so that
// everything derived from a database is deterministic.
type Database struct {
	shapes map[string]*Shape
	combs  map[string]*Comb
	order  []string
}

// NewDatabase creates an empty Database.
func NewDatabase() *Database {
	return &Database{
		shapes: make(map[string]*Shape),
		combs:  make(map[string]*Comb),
	}
}

// AddShape registers a named primitive shape.
func (db *Database) AddShape(name string, p primitive.Params) (*Shape, error) {
	if err := db.claim(name); err != nil {
		return nil, err
	}
	s := &Shape{Name: name, Params: p}
	db.shapes[name] = s
	return s, nil
}

// AddComb registers a combination.
func (db *Database) AddComb(c *Comb) error {
	if err := db.claim(c.Name); err != nil {
		return err
	}
	db.combs[c.Name] = c
	return nil
}

// AddRegion registers a region combination.
func (db *Database) AddRegion(name string, id int, tree *Node) (*Comb, error) {
	c := &Comb{Name: name, Tree: tree, Region: true, RegionID: id}
	if err := db.AddComb(c); err != nil {
		return nil, err
	}
	return c, nil
}

func (db *Database) claim(name string) error {
	if name == "" {
		return fmt.Errorf("model: empty name")
	}
	if db.Has(name) {
		return fmt.Errorf("model: name %q already defined", name)
	}
	db.order = append(db.order, name)
	return nil
}

// Has reports whether name is defined.
func (db *Database) Has(name string) bool {
	_, s := db.shapes[name]
	_, c := db.combs[name]
	return s || c
}

// Shape returns the shape with the given name, or nil.
func (db *Database) Shape(name string) *Shape {
	return db.shapes[name]
}

// Comb returns the combination with the given name, or nil.
func (db *Database) Comb(name string) *Comb {
	return db.combs[name]
}

// Shapes returns all shapes in insertion order.
func (db *Database) Shapes() []*Shape {
	out := make([]*Shape, 0, len(db.shapes))
	for _, name := range db.order {
		if s, ok := db.shapes[name]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Combs returns all combinations in insertion order.
func (db *Database) Combs() []*Comb {
	out := make([]*Comb, 0, len(db.combs))
	for _, name := range db.order {
		if c, ok := db.combs[name]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Regions returns the region combinations in insertion order.
func (db *Database) Regions() []*Comb {
	var out []*Comb
	for _, c := range db.Combs() {
		if c.Region {
			out = append(out, c)
		}
	}
	return out
}

// Len returns the number of named objects.
func (db *Database) Len() int {
	return len(db.order)
}

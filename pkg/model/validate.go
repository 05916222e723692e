package model

import (
	"fmt"

	"github.com/samber/lo"
)

// ValidationSeverity indicates whether a finding blocks flattening or is
// merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // blocks flattening
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Name     string // object with the problem, empty if database-level
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("[%s] %s", e.Severity, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Severity, e.Name, e.Message)
}

// Errors returns only the blocking findings.
func Errors(findings []ValidationError) []ValidationError {
	return lo.Filter(findings, func(e ValidationError, _ int) bool {
		return e.Severity == SeverityError
	})
}

// Warnings returns only the advisory findings.
func Warnings(findings []ValidationError) []ValidationError {
	return lo.Filter(findings, func(e ValidationError, _ int) bool {
		return e.Severity == SeverityWarning
	})
}

// Validate runs the structural checks on db. An empty result means the
// database can be flattened. It never mutates db.
func Validate(db *Database) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateTrees(db)...)
	errs = append(errs, validateReferences(db)...)
	errs = append(errs, validateDAG(db)...)
	errs = append(errs, validateRegions(db)...)
	errs = append(errs, validateShapes(db)...)
	errs = append(errs, validateOrphans(db)...)
	return errs
}

// validateTrees checks that every comb has a well formed tree.
func validateTrees(db *Database) []ValidationError {
	var errs []ValidationError
	for _, c := range db.Combs() {
		if c.Tree == nil {
			errs = append(errs, ValidationError{
				Name:     c.Name,
				Message:  "combination has an empty tree",
				Severity: SeverityError,
			})
			continue
		}
		var bad bool
		var walk func(n *Node)
		walk = func(n *Node) {
			if bad {
				return
			}
			if n == nil {
				bad = true
				return
			}
			if n.Op == OpLeaf {
				if n.Name == "" {
					bad = true
				}
				return
			}
			walk(n.Left)
			walk(n.Right)
		}
		walk(c.Tree)
		if bad {
			errs = append(errs, ValidationError{
				Name:     c.Name,
				Message:  "tree has a missing operand or unnamed leaf",
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateReferences checks that every leaf names an existing object.
func validateReferences(db *Database) []ValidationError {
	var errs []ValidationError
	for _, c := range db.Combs() {
		c.Tree.Leaves(func(n *Node) {
			if n.Name != "" && !db.Has(n.Name) {
				errs = append(errs, ValidationError{
					Name:     c.Name,
					Message:  fmt.Sprintf("references undefined object %q", n.Name),
					Severity: SeverityError,
				})
			}
		})
	}
	return errs
}

// validateDAG checks comb references for cycles using DFS with 3-color
// marking. White = unvisited, gray = on the current path, black = done.
func validateDAG(db *Database) []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[string]int)
	var errs []ValidationError

	var visit func(name string) bool // true if a cycle was found
	visit = func(name string) bool {
		switch color[name] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				Name:     name,
				Message:  fmt.Sprintf("cycle detected: %q is part of a cycle", name),
				Severity: SeverityError,
			})
			return true
		}

		c := db.Comb(name)
		if c == nil {
			// Shapes and dangling names have no edges.
			color[name] = black
			return false
		}

		color[name] = gray
		found := false
		c.Tree.Leaves(func(n *Node) {
			if !found && visit(n.Name) {
				found = true
			}
		})
		color[name] = black
		return found
	}

	for _, c := range db.Combs() {
		if color[c.Name] == white && visit(c.Name) {
			// One cycle error is sufficient.
			break
		}
	}
	return errs
}

// validateRegions rejects regions nested below other regions; each slice
// of space must belong to one region.
func validateRegions(db *Database) []ValidationError {
	var errs []ValidationError
	for _, r := range db.Regions() {
		seen := make(map[string]bool)
		var walk func(n *Node)
		walk = func(n *Node) {
			n.Leaves(func(leaf *Node) {
				c := db.Comb(leaf.Name)
				if c == nil || seen[c.Name] {
					return
				}
				seen[c.Name] = true
				if c.Region {
					errs = append(errs, ValidationError{
						Name:     r.Name,
						Message:  fmt.Sprintf("region contains region %q", c.Name),
						Severity: SeverityError,
					})
					return
				}
				walk(c.Tree)
			})
		}
		walk(r.Tree)
	}
	if len(db.Regions()) == 0 && db.Len() > 0 {
		errs = append(errs, ValidationError{
			Message:  "database defines no regions; nothing can be traced",
			Severity: SeverityWarning,
		})
	}
	return errs
}

// validateShapes checks that every shape has parameters.
func validateShapes(db *Database) []ValidationError {
	var errs []ValidationError
	for _, s := range db.Shapes() {
		if s.Params == nil {
			errs = append(errs, ValidationError{
				Name:     s.Name,
				Message:  "shape has no parameters",
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateOrphans warns about shapes and combinations no region reaches.
func validateOrphans(db *Database) []ValidationError {
	reached := make(map[string]bool)
	var queue []string
	for _, r := range db.Regions() {
		reached[r.Name] = true
		queue = append(queue, r.Name)
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		c := db.Comb(name)
		if c == nil {
			continue
		}
		c.Tree.Leaves(func(n *Node) {
			if !reached[n.Name] {
				reached[n.Name] = true
				queue = append(queue, n.Name)
			}
		})
	}

	var errs []ValidationError
	for _, name := range db.order {
		if !reached[name] {
			errs = append(errs, ValidationError{
				Name:     name,
				Message:  "not reachable from any region",
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}

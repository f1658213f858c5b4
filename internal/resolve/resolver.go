package resolve

import (
	"sort"

	"kasaio/internal/catalog"
)

// Catalog is the read-only profile universe the validator operates over.
// Production code passes catalog.Default; tests substitute synthetic graphs.
type Catalog interface {
	Lookup(id string) (catalog.Profile, bool)
	Canonicalize(ids []string) ([]string, []catalog.Migration)
}

// Validator resolves and validates profile selections. It holds no mutable
// state and is safe for concurrent use.
type Validator struct {
	cat Catalog
}

func NewValidator(cat Catalog) *Validator {
	return &Validator{cat: cat}
}

// Resolve computes the dependency closure of a selection: legacy ids are
// rewritten to canonical ones, then hard dependencies are followed
// breadth-first. Unknown ids are dropped. The result is sorted, which makes
// Resolve idempotent: Resolve(Resolve(x)) == Resolve(x).
func (v *Validator) Resolve(ids []string) []string {
	canonical, _ := v.cat.Canonicalize(ids)

	seen := make(map[string]bool, len(canonical))
	queue := make([]string, 0, len(canonical))
	for _, id := range canonical {
		if _, ok := v.cat.Lookup(id); !ok {
			continue
		}
		if !seen[id] {
			seen[id] = true
			queue = append(queue, id)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		p, ok := v.cat.Lookup(id)
		if !ok {
			continue
		}
		for _, dep := range p.Dependencies {
			if _, ok := v.cat.Lookup(dep); !ok {
				continue
			}
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// detectCycles runs a DFS over dependency edges from every start profile,
// reporting each distinct cycle as the ordered list of profiles on it.
func (v *Validator) detectCycles(starts []string) [][]string {
	const (
		white = 0 // unvisited
		grey  = 1 // on the current path
		black = 2 // fully explored
	)
	color := make(map[string]int)
	var path []string
	var cycles [][]string
	reported := make(map[string]bool)

	var walk func(id string)
	walk = func(id string) {
		color[id] = grey
		path = append(path, id)

		p, ok := v.cat.Lookup(id)
		if ok {
			for _, dep := range p.Dependencies {
				if _, known := v.cat.Lookup(dep); !known {
					continue
				}
				switch color[dep] {
				case white:
					walk(dep)
				case grey:
					// Slice the current path from the revisited node to
					// obtain the cycle in traversal order.
					start := 0
					for i, node := range path {
						if node == dep {
							start = i
							break
						}
					}
					cycle := append([]string(nil), path[start:]...)
					key := cycleKey(cycle)
					if !reported[key] {
						reported[key] = true
						cycles = append(cycles, cycle)
					}
				}
			}
		}

		path = path[:len(path)-1]
		color[id] = black
	}

	for _, id := range starts {
		if _, ok := v.cat.Lookup(id); !ok {
			continue
		}
		if color[id] == white {
			walk(id)
		}
	}
	return cycles
}

// cycleKey builds a rotation-invariant identity for a cycle so the same loop
// found from two entry points is reported once.
func cycleKey(cycle []string) string {
	if len(cycle) == 0 {
		return ""
	}
	minIdx := 0
	for i, id := range cycle {
		if id < cycle[minIdx] {
			minIdx = i
		}
	}
	key := ""
	for i := range cycle {
		key += cycle[(minIdx+i)%len(cycle)] + "\x00"
	}
	return key
}

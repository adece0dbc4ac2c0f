// Package dependency maintains the acyclic part dependency graph and
// answers bounded dependency traces.
package dependency

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/okian/fleetready/internal/domain/model"
)

// Sentinel errors.
var (
	ErrCycle       = errors.New("dependency cycle")
	ErrInvalidPart = errors.New("invalid part id")
)

// DefaultMaxDepth bounds a trace when the caller passes a non-positive depth.
const DefaultMaxDepth = 8

// Hop is one edge reached by a trace.
type Hop struct {
	From  string   `json:"from"`
	To    string   `json:"to"`
	Depth int      `json:"depth"`
	Path  []string `json:"path"`
}

// Graph is a directed acyclic graph of part dependencies.
// It is safe for concurrent use.
type Graph struct {
	mu    sync.RWMutex
	edges map[string]map[string]struct{} // part -> depends on
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{edges: make(map[string]map[string]struct{})}
}

// Add inserts part -> dependsOn. It fails with ErrCycle when the edge would
// close a cycle, including a self-loop. Adding an existing edge is a no-op.
func (g *Graph) Add(part, dependsOn string) error {
	part, dependsOn = strings.TrimSpace(part), strings.TrimSpace(dependsOn)
	if part == "" || dependsOn == "" {
		return ErrInvalidPart
	}
	if part == dependsOn {
		return fmt.Errorf("%w: %s depends on itself", ErrCycle, part)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.edges[part][dependsOn]; ok {
		return nil
	}
	if path := g.pathLocked(dependsOn, part); path != nil {
		return fmt.Errorf("%w: %s -> %s", ErrCycle, part, strings.Join(path, " -> "))
	}
	if g.edges[part] == nil {
		g.edges[part] = make(map[string]struct{})
	}
	g.edges[part][dependsOn] = struct{}{}
	return nil
}

// Load adds every edge, stopping at the first failure.
func (g *Graph) Load(edges []model.PartDependency) error {
	for _, e := range edges {
		if err := g.Add(e.PartID, e.DependsOn); err != nil {
			return err
		}
	}
	return nil
}

// Check reports whether part -> dependsOn could be added without mutating g.
func (g *Graph) Check(part, dependsOn string) error {
	if part == dependsOn {
		return fmt.Errorf("%w: %s depends on itself", ErrCycle, part)
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if path := g.pathLocked(dependsOn, part); path != nil {
		return fmt.Errorf("%w: %s -> %s", ErrCycle, part, strings.Join(path, " -> "))
	}
	return nil
}

// Trace walks dependencies of part breadth-first up to maxDepth hops and
// never revisits a part.
func (g *Graph) Trace(part string, maxDepth int) []Hop {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	g.mu.RLock()
	defer g.mu.RUnlock()

	type item struct {
		id   string
		path []string
	}
	visited := map[string]struct{}{part: {}}
	queue := []item{{id: part, path: []string{part}}}
	var hops []Hop
	for depth := 1; depth <= maxDepth && len(queue) > 0; depth++ {
		var next []item
		for _, cur := range queue {
			for _, dep := range sortedSet(g.edges[cur.id]) {
				if _, seen := visited[dep]; seen {
					continue
				}
				visited[dep] = struct{}{}
				path := append(append([]string(nil), cur.path...), dep)
				hops = append(hops, Hop{From: cur.id, To: dep, Depth: depth, Path: path})
				next = append(next, item{id: dep, path: path})
			}
		}
		queue = next
	}
	return hops
}

// Edges returns every edge sorted by part then dependency.
func (g *Graph) Edges() []model.PartDependency {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []model.PartDependency
	for _, part := range sortedKeys(g.edges) {
		for _, dep := range sortedSet(g.edges[part]) {
			out = append(out, model.PartDependency{PartID: part, DependsOn: dep})
		}
	}
	return out
}

// pathLocked returns a dependency path from -> to, or nil.
func (g *Graph) pathLocked(from, to string) []string {
	prev := map[string]string{from: ""}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			var path []string
			for n := to; n != ""; n = prev[n] {
				path = append([]string{n}, path...)
			}
			return path
		}
		for dep := range g.edges[cur] {
			if _, seen := prev[dep]; !seen {
				prev[dep] = cur
				queue = append(queue, dep)
			}
		}
	}
	return nil
}

func sortedSet(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Package dag models the reference dependencies between the tables of one
// request. It supports cycle detection and the independent/dependent
// partition the scheduler executes in, preserving request order throughout.
package dag

import (
	"fmt"
	"sort"

	"github.com/leapstack-labs/declsql/pkg/core"
)

// Graph is the per-request dependency graph. Keys are result keys (the table
// name, or its alias when one is set); an edge source -> dependent means the
// dependent holds a reference into source's result.
type Graph struct {
	order   []string
	nodes   map[string]*core.TableQuery
	sources map[string][]string // dependent -> referenced tables
	al      map[string][]string // source -> dependents
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*core.TableQuery),
		sources: make(map[string][]string),
		al:      make(map[string][]string),
	}
}

// Add registers a table query under its result key. Insertion order is the
// request order and is preserved by every traversal.
func (g *Graph) Add(key string, tq *core.TableQuery) error {
	if _, exists := g.nodes[key]; exists {
		return fmt.Errorf("duplicate table key %q in one request", key)
	}
	g.order = append(g.order, key)
	g.nodes[key] = tq
	return nil
}

// Depend records that dependent references source's result.
func (g *Graph) Depend(dependent, source string) error {
	if _, ok := g.nodes[dependent]; !ok {
		return fmt.Errorf("unknown table key %q", dependent)
	}
	if dependent == source {
		return fmt.Errorf("table %q references its own result", dependent)
	}
	if !contains(g.sources[dependent], source) {
		g.sources[dependent] = append(g.sources[dependent], source)
		g.al[source] = append(g.al[source], dependent)
	}
	return nil
}

// Get returns the query registered under a key.
func (g *Graph) Get(key string) (*core.TableQuery, bool) {
	tq, ok := g.nodes[key]
	return tq, ok
}

// Keys returns every key in request order.
func (g *Graph) Keys() []string {
	return g.order
}

// Sources returns the tables a key references, in declaration order.
func (g *Graph) Sources(key string) []string {
	return g.sources[key]
}

// Partition splits the keys into independent (no references) and dependent
// (at least one), each in request order.
func (g *Graph) Partition() (independent, dependent []string) {
	for _, key := range g.order {
		if len(g.sources[key]) == 0 {
			independent = append(independent, key)
		} else {
			dependent = append(dependent, key)
		}
	}
	return independent, dependent
}

// Dangling returns references to tables absent from the request, mapped by
// dependent key.
func (g *Graph) Dangling() map[string][]string {
	missing := make(map[string][]string)
	for key, srcs := range g.sources {
		for _, src := range srcs {
			if _, ok := g.nodes[src]; !ok {
				missing[key] = append(missing[key], src)
			}
		}
	}
	return missing
}

// MultiHop returns dependent keys that reference another dependent key.
// Execution is one pass over the partition, so such chains cannot resolve.
func (g *Graph) MultiHop() []string {
	var chained []string
	for _, key := range g.order {
		for _, src := range g.sources[key] {
			if len(g.sources[src]) > 0 {
				chained = append(chained, key)
				break
			}
		}
	}
	return chained
}

// HasCycle reports whether the reference edges form a cycle, with one cycle
// path for diagnostics.
func (g *Graph) HasCycle() (bool, []string) {
	visited := make(map[string]bool)
	inStack := make(map[string]bool)
	cameFrom := make(map[string]string)

	var cyclePath []string

	var dfs func(key string) bool
	dfs = func(key string) bool {
		visited[key] = true
		inStack[key] = true

		for _, next := range g.al[key] {
			if _, ok := g.nodes[next]; !ok {
				continue
			}
			if !visited[next] {
				cameFrom[next] = key
				if dfs(next) {
					return true
				}
			} else if inStack[next] {
				cyclePath = []string{next}
				for cur := key; cur != next; cur = cameFrom[cur] {
					cyclePath = append([]string{cur}, cyclePath...)
				}
				cyclePath = append([]string{next}, cyclePath...)
				return true
			}
		}

		inStack[key] = false
		return false
	}

	keys := make([]string, len(g.order))
	copy(keys, g.order)
	sort.Strings(keys)

	for _, key := range keys {
		if !visited[key] && dfs(key) {
			return true, cyclePath
		}
	}
	return false, nil
}

func contains(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}

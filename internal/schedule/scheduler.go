// Package schedule orders and runs the tables of one request. Independent
// queries (no references) run first in request order; dependent queries run
// afterward, each with its references resolved against the already-executed
// results. This is a single pass over the partition, not a general
// topological sort.
package schedule

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/declsql/internal/dag"
	"github.com/leapstack-labs/declsql/pkg/core"
)

// Runner executes one reference-free table query.
type Runner interface {
	Execute(ctx context.Context, tq *core.TableQuery) (*core.TableResult, error)
}

// Scheduler runs a request's tables against a Runner.
type Scheduler struct {
	runner   Runner
	logger   *slog.Logger
	parallel bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithParallel runs independent queries concurrently. Results keep request
// order; dependent queries still wait for every independent one.
func WithParallel() Option {
	return func(s *Scheduler) { s.parallel = true }
}

// New creates a scheduler. A nil logger discards output.
func New(runner Runner, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Scheduler{runner: runner, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ResultKey is the name a table's rows are published under: the alias when
// set, otherwise the table name with an array marker for list queries.
func ResultKey(tq *core.TableQuery) string {
	if tq.Alias != "" {
		return tq.Alias
	}
	if tq.IsArray {
		return tq.Table + "[]"
	}
	return tq.Table
}

// Run executes every table and returns the per-key results.
func (s *Scheduler) Run(ctx context.Context, tables []*core.TableQuery) (map[string]*core.TableResult, error) {
	graph, err := s.buildGraph(tables)
	if err != nil {
		return nil, err
	}

	if cyclic, path := graph.HasCycle(); cyclic {
		return nil, core.NewError(core.KindNotExist, "", "reference cycle: %s", strings.Join(path, " -> "))
	}
	for key, missing := range graph.Dangling() {
		return nil, core.NewError(core.KindNotExist, key,
			"reference to %q, which is not in the request", missing[0])
	}
	if chained := graph.MultiHop(); len(chained) > 0 {
		return nil, core.NewError(core.KindNotExist, chained[0],
			"references another dependent query; chains resolve in one pass only")
	}

	independent, dependent := graph.Partition()
	results := make(map[string]*core.TableResult, len(tables))

	if err := s.runIndependent(ctx, graph, independent, results); err != nil {
		return nil, err
	}

	for _, key := range dependent {
		tq, _ := graph.Get(key)
		if err := s.resolve(tq, results); err != nil {
			return nil, err
		}
		res, err := s.runner.Execute(ctx, tq)
		if err != nil {
			return nil, err
		}
		results[key] = res
	}

	return results, nil
}

func (s *Scheduler) runIndependent(ctx context.Context, graph *dag.Graph, keys []string, results map[string]*core.TableResult) error {
	if !s.parallel || len(keys) < 2 {
		for _, key := range keys {
			tq, _ := graph.Get(key)
			res, err := s.runner.Execute(ctx, tq)
			if err != nil {
				return err
			}
			results[key] = res
		}
		return nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, key := range keys {
		tq, _ := graph.Get(key)
		g.Go(func() error {
			res, err := s.runner.Execute(gctx, tq)
			if err != nil {
				return err
			}
			mu.Lock()
			results[key] = res
			mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) buildGraph(tables []*core.TableQuery) (*dag.Graph, error) {
	graph := dag.New()
	for _, tq := range tables {
		if err := graph.Add(ResultKey(tq), tq); err != nil {
			return nil, core.WrapError(core.KindValidation, tq.Table, err, "request shape")
		}
	}
	for _, tq := range tables {
		key := ResultKey(tq)
		for _, ref := range tq.Refs {
			src, _, err := splitPath(ref.Path)
			if err != nil {
				return nil, core.WrapError(core.KindNotExist, tq.Table, err, "reference %q", ref.Path)
			}
			if err := graph.Depend(key, normalizeSource(graph, src)); err != nil {
				return nil, core.WrapError(core.KindNotExist, tq.Table, err, "reference %q", ref.Path)
			}
		}
	}
	return graph, nil
}

// normalizeSource maps a path's table segment onto a registered key, so
// "/Moment/id" finds a "Moment[]" list query and vice versa.
func normalizeSource(graph *dag.Graph, src string) string {
	if _, ok := graph.Get(src); ok {
		return src
	}
	if trimmed, found := strings.CutSuffix(src, "[]"); found {
		if _, ok := graph.Get(trimmed); ok {
			return trimmed
		}
	} else if _, ok := graph.Get(src + "[]"); ok {
		return src + "[]"
	}
	return src
}

// resolve substitutes every reference value in the query with data from the
// already-executed results. An absent or empty source is fatal.
func (s *Scheduler) resolve(tq *core.TableQuery, results map[string]*core.TableResult) error {
	values := make(map[string]any, len(tq.Refs))
	for _, ref := range tq.Refs {
		v, err := s.resolvePath(tq.Table, ref, results)
		if err != nil {
			return err
		}
		values[ref.OwnerField] = v
	}

	substituteConditions(tq.Conditions, values)
	for field, raw := range tq.Payload {
		if ref, ok := raw.(core.Reference); ok {
			if v, ok := values[ref.OwnerField]; ok {
				tq.Payload[field] = v
			}
		}
	}
	return nil
}

func (s *Scheduler) resolvePath(table string, ref core.Reference, results map[string]*core.TableResult) (any, error) {
	src, fieldPath, err := splitPath(ref.Path)
	if err != nil {
		return nil, core.WrapError(core.KindNotExist, table, err, "reference %q", ref.Path)
	}

	res, ok := results[src]
	if !ok {
		if trimmed, found := strings.CutSuffix(src, "[]"); found {
			res, ok = results[trimmed]
		} else {
			res, ok = results[src+"[]"]
		}
	}
	if !ok {
		return nil, core.NewError(core.KindNotExist, table,
			"reference %q points at a table that has not executed", ref.Path)
	}
	if len(res.Rows) == 0 {
		return nil, core.NewError(core.KindNotExist, table,
			"reference %q resolved against an empty result", ref.Path)
	}

	if ref.IsArray {
		values := make([]any, 0, len(res.Rows))
		for _, row := range res.Rows {
			v, ok := fieldValue(row, fieldPath)
			if !ok {
				return nil, core.NewError(core.KindNotExist, table,
					"reference %q names a missing field", ref.Path)
			}
			values = append(values, v)
		}
		return values, nil
	}

	v, ok := fieldValue(res.Rows[0], fieldPath)
	if !ok {
		return nil, core.NewError(core.KindNotExist, table,
			"reference %q names a missing field", ref.Path)
	}
	return v, nil
}

// substituteConditions swaps Reference placeholders for resolved values,
// recursing into logical groups.
func substituteConditions(conds []core.Condition, values map[string]any) {
	for i := range conds {
		if len(conds[i].Nested) > 0 {
			substituteConditions(conds[i].Nested, values)
			continue
		}
		if ref, ok := conds[i].Value.(core.Reference); ok {
			if v, ok := values[ref.OwnerField]; ok {
				conds[i].Value = v
			}
		}
	}
}

// splitPath cuts "/Table/field[/nested...]" into the table segment and the
// remaining field segments.
func splitPath(path string) (table string, fields []string, err error) {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", nil, core.NewError(core.KindNotExist, "",
			"path %q must look like \"/Table/field\"", path)
	}
	return parts[0], parts[1:], nil
}

// fieldValue walks nested map segments down to the addressed field.
func fieldValue(row map[string]any, fields []string) (any, bool) {
	var cur any = row
	for _, f := range fields {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[f]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Package execute runs built queries against a database adapter and shapes
// the per-table results: totals for counted selects, re-selected rows after
// writes, affected counts for deletes. Errors are fail-fast.
package execute

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cast"

	"github.com/leapstack-labs/declsql/pkg/core"
)

// Builder compiles table queries; satisfied by sqlbuild.Builder.
type Builder interface {
	Build(tq *core.TableQuery) (*core.BuiltQuery, error)
	BuildCount(tq *core.TableQuery) (*core.BuiltQuery, error)
}

// Executor dispatches one table query per operation kind.
type Executor struct {
	adapter core.Adapter
	builder Builder
	limits  core.Limits
	cache   core.Cache
	logger  *slog.Logger
}

// New creates an executor. cache may be nil; a nil logger discards output.
func New(adapter core.Adapter, builder Builder, limits core.Limits, cache core.Cache, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{adapter: adapter, builder: builder, limits: limits, cache: cache, logger: logger}
}

// Execute runs one reference-free table query.
func (e *Executor) Execute(ctx context.Context, tq *core.TableQuery) (*core.TableResult, error) {
	switch tq.Op {
	case core.OpSelect:
		return e.executeSelect(ctx, tq)
	case core.OpCount:
		return e.executeCount(ctx, tq)
	case core.OpInsert:
		return e.executeInsert(ctx, tq)
	case core.OpUpdate:
		return e.executeUpdate(ctx, tq)
	case core.OpDelete:
		return e.executeDelete(ctx, tq)
	default:
		return nil, core.NewError(core.KindExecution, tq.Table, "unknown operation")
	}
}

func (e *Executor) executeSelect(ctx context.Context, tq *core.TableQuery) (*core.TableResult, error) {
	built, err := e.builder.Build(tq)
	if err != nil {
		return nil, err
	}

	if e.cache != nil && tq.Cache {
		if cached, ok := e.cache.Get(cacheKey(tq, built)); ok {
			if res, ok := cached.(*core.TableResult); ok {
				e.logger.Debug("cache hit", "table", tq.Table)
				return res, nil
			}
		}
	}

	res := &core.TableResult{}

	if tq.QueryType == core.QueryTotal || tq.QueryType == core.QueryBoth {
		total, err := e.runCount(ctx, tq)
		if err != nil {
			return nil, err
		}
		res.Total = total
	}

	if tq.QueryType != core.QueryTotal {
		outcome, err := e.query(ctx, tq.Table, built)
		if err != nil {
			return nil, err
		}
		res.Rows = outcome.Rows
		res.Count = outcome.RowCount
		if tq.QueryType == core.QueryData {
			res.Total = int64(outcome.RowCount)
		}
	}

	if e.cache != nil && tq.Cache {
		ttl := tq.CacheTTLSeconds
		if ttl <= 0 {
			ttl = e.limits.CacheTTLSeconds
		}
		e.cache.Set(cacheKey(tq, built), res, ttl)
	}
	return res, nil
}

func (e *Executor) executeCount(ctx context.Context, tq *core.TableQuery) (*core.TableResult, error) {
	total, err := e.runCount(ctx, tq)
	if err != nil {
		return nil, err
	}
	return &core.TableResult{Total: total, Count: int(total)}, nil
}

func (e *Executor) runCount(ctx context.Context, tq *core.TableQuery) (int64, error) {
	built, err := e.builder.BuildCount(tq)
	if err != nil {
		return 0, err
	}
	outcome, err := e.query(ctx, tq.Table, built)
	if err != nil {
		return 0, err
	}
	if len(outcome.Rows) == 0 {
		return 0, nil
	}
	for _, v := range outcome.Rows[0] {
		n, err := cast.ToInt64E(v)
		if err != nil {
			return 0, core.WrapError(core.KindExecution, tq.Table, err, "count value")
		}
		return n, nil
	}
	return 0, nil
}

func (e *Executor) executeInsert(ctx context.Context, tq *core.TableQuery) (*core.TableResult, error) {
	built, err := e.builder.Build(tq)
	if err != nil {
		return nil, err
	}
	outcome, err := e.query(ctx, tq.Table, built)
	if err != nil {
		return nil, err
	}
	return e.insertResult(ctx, tq, outcome)
}

// insertResult re-selects inserted rows by primary key. A single insert
// re-selects its last-insert-id; a batch re-selects the contiguous id range,
// falling back to a bounded scan when auto-increment gaps shrink the range.
func (e *Executor) insertResult(ctx context.Context, tq *core.TableQuery, outcome *core.QueryOutcome) (*core.TableResult, error) {
	affected := outcome.AffectedRows

	if outcome.InsertID == 0 {
		// Driver without last-insert-id support: hand the payload back.
		rows := tq.PayloadRows
		if rows == nil && tq.Payload != nil {
			rows = []map[string]any{tq.Payload}
		}
		return &core.TableResult{Rows: rows, Total: affected, Count: len(rows)}, nil
	}

	if len(tq.PayloadRows) == 0 {
		rows, err := e.selectByID(ctx, tq, core.Condition{
			Field: e.limits.IDField, Op: core.OpEq, Value: outcome.InsertID,
		}, 1)
		if err != nil {
			return nil, err
		}
		return &core.TableResult{Rows: rows, Total: affected, Count: len(rows)}, nil
	}

	want := len(tq.PayloadRows)
	last := outcome.InsertID + affected - 1
	rows, err := e.selectByID(ctx, tq, core.Condition{
		Field: e.limits.IDField, Op: core.OpBetween,
		Value: []any{outcome.InsertID, last},
	}, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) < want {
		rows, err = e.selectByID(ctx, tq, core.Condition{
			Field: e.limits.IDField, Op: core.OpGte, Value: outcome.InsertID,
		}, want)
		if err != nil {
			return nil, err
		}
	}
	return &core.TableResult{Rows: rows, Total: affected, Count: len(rows)}, nil
}

// selectByID runs "SELECT * FROM table WHERE <cond> [ORDER BY id LIMIT n]".
func (e *Executor) selectByID(ctx context.Context, tq *core.TableQuery, cond core.Condition, limit int) ([]map[string]any, error) {
	reselect := &core.TableQuery{
		Table:      tq.Table,
		Schema:     tq.Schema,
		Database:   tq.Database,
		Op:         core.OpSelect,
		Conditions: []core.Condition{cond},
	}
	if limit > 0 {
		reselect.Count = limit
		reselect.Order = []core.OrderSpec{{Field: e.limits.IDField, Direction: core.OrderAsc}}
	}

	built, err := e.builder.Build(reselect)
	if err != nil {
		return nil, err
	}
	outcome, err := e.query(ctx, tq.Table, built)
	if err != nil {
		return nil, err
	}
	return outcome.Rows, nil
}

func (e *Executor) executeUpdate(ctx context.Context, tq *core.TableQuery) (*core.TableResult, error) {
	built, err := e.builder.Build(tq)
	if err != nil {
		return nil, err
	}
	outcome, err := e.query(ctx, tq.Table, built)
	if err != nil {
		return nil, err
	}
	return e.updateResult(ctx, tq, outcome)
}

// updateResult re-selects the updated row to return post-update state. Batch
// updates return the submitted rows unmodified.
func (e *Executor) updateResult(ctx context.Context, tq *core.TableQuery, outcome *core.QueryOutcome) (*core.TableResult, error) {
	if len(tq.PayloadRows) > 0 {
		return &core.TableResult{
			Rows:  tq.PayloadRows,
			Total: outcome.AffectedRows,
			Count: len(tq.PayloadRows),
		}, nil
	}

	id, ok := tq.PrimaryKeyValue(e.limits.IDField)
	if !ok {
		return &core.TableResult{Total: outcome.AffectedRows, Count: int(outcome.AffectedRows)}, nil
	}

	rows, err := e.selectByID(ctx, tq, core.Condition{
		Field: e.limits.IDField, Op: core.OpEq, Value: id,
	}, 1)
	if err != nil {
		return nil, err
	}
	return &core.TableResult{Rows: rows, Total: outcome.AffectedRows, Count: len(rows)}, nil
}

func (e *Executor) executeDelete(ctx context.Context, tq *core.TableQuery) (*core.TableResult, error) {
	built, err := e.builder.Build(tq)
	if err != nil {
		return nil, err
	}
	outcome, err := e.query(ctx, tq.Table, built)
	if err != nil {
		return nil, err
	}
	return &core.TableResult{
		Total: outcome.AffectedRows,
		Count: int(outcome.AffectedRows),
	}, nil
}

// RunTransaction executes several mutations as one unit. On the first
// failure the adapter rolls back and nothing is applied. Row re-selection
// happens after the commit.
func (e *Executor) RunTransaction(ctx context.Context, tables []*core.TableQuery) ([]*core.TableResult, error) {
	stmts := make([]core.Statement, 0, len(tables))
	for _, tq := range tables {
		if !tq.Op.IsMutation() {
			return nil, core.NewError(core.KindTransaction, tq.Table, "transactions take mutations only")
		}
		built, err := e.builder.Build(tq)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, core.Statement{SQL: built.SQL, Params: built.Params})
	}

	outcomes, err := e.adapter.ExecTransaction(ctx, stmts)
	if err != nil {
		return nil, core.WrapError(core.KindTransaction, "", err, "transaction rolled back")
	}

	results := make([]*core.TableResult, len(tables))
	for i, tq := range tables {
		switch tq.Op {
		case core.OpInsert:
			results[i], err = e.insertResult(ctx, tq, outcomes[i])
		case core.OpUpdate:
			results[i], err = e.updateResult(ctx, tq, outcomes[i])
		default:
			results[i] = &core.TableResult{
				Total: outcomes[i].AffectedRows,
				Count: int(outcomes[i].AffectedRows),
			}
		}
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (e *Executor) query(ctx context.Context, table string, built *core.BuiltQuery) (*core.QueryOutcome, error) {
	outcome, err := e.adapter.Query(ctx, built.SQL, built.Params)
	if err != nil {
		return nil, core.WrapError(core.KindExecution, table, err, "query failed")
	}
	return outcome, nil
}

// cacheKey identifies a cached result. Only top-level queries reach the
// cache, so the subquery slot is constant.
func cacheKey(tq *core.TableQuery, built *core.BuiltQuery) string {
	return fmt.Sprintf("%s:%s:%s%v:0", tq.Database, tq.Schema, built.SQL, built.Params)
}

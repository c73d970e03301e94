package schedule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/declsql/internal/parser"
	"github.com/leapstack-labs/declsql/pkg/core"
)

// stubRunner returns canned rows per table and records execution order.
type stubRunner struct {
	rows  map[string][]map[string]any
	order []string
	seen  []*core.TableQuery
}

func (r *stubRunner) Execute(_ context.Context, tq *core.TableQuery) (*core.TableResult, error) {
	r.order = append(r.order, tq.Table)
	r.seen = append(r.seen, tq)
	rows := r.rows[tq.Table]
	return &core.TableResult{Rows: rows, Total: int64(len(rows)), Count: len(rows)}, nil
}

func parseTables(t *testing.T, body, verb string) []*core.TableQuery {
	t.Helper()
	res, err := parser.New(core.DefaultLimits(), nil).Parse([]byte(body), verb)
	require.NoError(t, err)
	return res.Tables
}

func TestRunResolvesReference(t *testing.T) {
	tables := parseTables(t, `{"receive": {"id": 1}, "Order": {"receiveId@": "/receive/id"}}`, "GET")
	runner := &stubRunner{rows: map[string][]map[string]any{
		"receive": {{"id": int64(1), "orderId": int64(42)}},
		"Order":   {{"id": int64(42), "receiveId": int64(1)}},
	}}

	results, err := New(runner, nil).Run(context.Background(), tables)
	require.NoError(t, err)

	assert.Equal(t, []string{"receive", "Order"}, runner.order, "source executes before dependent")

	order := runner.seen[1]
	require.Len(t, order.Conditions, 1)
	assert.Equal(t, "receiveId", order.Conditions[0].Field)
	assert.Equal(t, int64(1), order.Conditions[0].Value, "reference replaced by the first row's field")

	require.Contains(t, results, "receive")
	require.Contains(t, results, "Order")
}

func TestRunArrayReferenceGathers(t *testing.T) {
	tables := parseTables(t, `{"Moment[]": {"userId": 1}, "Comment[]": {"momentId{}@": "/Moment[]/id"}}`, "GET")
	runner := &stubRunner{rows: map[string][]map[string]any{
		"Moment":  {{"id": int64(10)}, {"id": int64(11)}, {"id": int64(12)}},
		"Comment": {},
	}}

	_, err := New(runner, nil).Run(context.Background(), tables)
	require.NoError(t, err)

	comment := runner.seen[1]
	require.Len(t, comment.Conditions, 1)
	assert.Equal(t, core.OpIn, comment.Conditions[0].Op)
	assert.Equal(t, []any{int64(10), int64(11), int64(12)}, comment.Conditions[0].Value)
}

func TestRunMissingSourceTable(t *testing.T) {
	tables := parseTables(t, `{"Order": {"receiveId@": "/receive/id"}}`, "GET")
	runner := &stubRunner{}

	_, err := New(runner, nil).Run(context.Background(), tables)
	require.Error(t, err)
	assert.Equal(t, core.KindNotExist, core.KindOf(err))
	assert.Empty(t, runner.order, "nothing executes when a reference dangles")
}

func TestRunEmptySourceResult(t *testing.T) {
	tables := parseTables(t, `{"receive": {"id": 999}, "Order": {"receiveId@": "/receive/id"}}`, "GET")
	runner := &stubRunner{rows: map[string][]map[string]any{"receive": {}}}

	_, err := New(runner, nil).Run(context.Background(), tables)
	require.Error(t, err)
	assert.Equal(t, core.KindNotExist, core.KindOf(err))
	assert.Equal(t, []string{"receive"}, runner.order)
}

func TestRunRequestOrderPreserved(t *testing.T) {
	tables := parseTables(t, `{"A": {"x": 1}, "B": {"y": 2}, "C": {"z": 3}}`, "GET")
	runner := &stubRunner{}

	_, err := New(runner, nil).Run(context.Background(), tables)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, runner.order)
}

func TestRunMultiHopRejected(t *testing.T) {
	tables := parseTables(t, `{
		"A": {"id": 1},
		"B": {"aId@": "/A/id"},
		"C": {"bId@": "/B/id"}
	}`, "GET")
	runner := &stubRunner{rows: map[string][]map[string]any{"A": {{"id": 1}}}}

	_, err := New(runner, nil).Run(context.Background(), tables)
	require.Error(t, err)
	assert.Equal(t, core.KindNotExist, core.KindOf(err))
}

func TestRunParallelIndependent(t *testing.T) {
	tables := parseTables(t, `{"A": {"x": 1}, "B": {"y": 2}, "D": {"aId@": "/A/id"}}`, "GET")
	runner := &syncRunner{
		mu: make(chan struct{}, 1),
		rows: map[string][]map[string]any{
			"A": {{"id": 7}},
			"B": {{"id": 8}},
			"D": {{"id": 9}},
		},
	}

	results, err := New(runner, nil, WithParallel()).Run(context.Background(), tables)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "D", runner.last, "dependent runs after every independent query")
}

// syncRunner is a mutex-guarded stub for the parallel path.
type syncRunner struct {
	rows map[string][]map[string]any
	mu   chan struct{}
	last string
}

func (r *syncRunner) Execute(_ context.Context, tq *core.TableQuery) (*core.TableResult, error) {
	r.mu <- struct{}{}
	r.last = tq.Table
	rows := r.rows[tq.Table]
	<-r.mu
	return &core.TableResult{Rows: rows, Total: int64(len(rows)), Count: len(rows)}, nil
}

func TestResultKey(t *testing.T) {
	assert.Equal(t, "User", ResultKey(&core.TableQuery{Table: "User"}))
	assert.Equal(t, "User[]", ResultKey(&core.TableQuery{Table: "User", IsArray: true}))
	assert.Equal(t, "author", ResultKey(&core.TableQuery{Table: "User", Alias: "author"}))
}

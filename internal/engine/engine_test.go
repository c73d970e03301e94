package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/declsql/internal/testutil"
	"github.com/leapstack-labs/declsql/pkg/adapter"
	"github.com/leapstack-labs/declsql/pkg/core"
	_ "github.com/leapstack-labs/declsql/pkg/dialects/ansi"
)

// fakeAdapter replays scripted outcomes and records every statement.
type fakeAdapter struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	outcomes  []*core.QueryOutcome
	sqls      []string
	params    [][]any
	txStmts   []core.Statement
	queryErr  error
}

func (f *fakeAdapter) Connect(_ context.Context, _ core.AdapterConfig) error {
	f.connected = true
	return nil
}

func (f *fakeAdapter) Close() error {
	f.closed = true
	return nil
}

func (f *fakeAdapter) Query(_ context.Context, sqlStr string, params []any) (*core.QueryOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	f.sqls = append(f.sqls, sqlStr)
	f.params = append(f.params, params)
	if len(f.outcomes) == 0 {
		return &core.QueryOutcome{}, nil
	}
	out := f.outcomes[0]
	f.outcomes = f.outcomes[1:]
	return out, nil
}

func (f *fakeAdapter) ExecTransaction(_ context.Context, stmts []core.Statement) ([]*core.QueryOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txStmts = append(f.txStmts, stmts...)
	outs := make([]*core.QueryOutcome, len(stmts))
	for i := range stmts {
		if len(f.outcomes) > 0 {
			outs[i] = f.outcomes[0]
			f.outcomes = f.outcomes[1:]
		} else {
			outs[i] = &core.QueryOutcome{AffectedRows: 1}
		}
	}
	return outs, nil
}

func (f *fakeAdapter) DialectName() string { return "ansi" }

var registerFake sync.Once

func newTestEngine(t *testing.T, fake *fakeAdapter, policy core.AccessPolicy) *Engine {
	t.Helper()

	registerFake.Do(func() {
		adapter.Register("fake", func(*slog.Logger) adapter.Adapter {
			return activeFake
		})
	})
	activeFake = fake

	eng, err := New(Config{
		Target: adapter.Config{Type: "fake"},
		Limits: core.DefaultLimits(),
		Policy: policy,
		Logger: testutil.NewTestLogger(t),
	})
	require.NoError(t, err)
	return eng
}

// activeFake is swapped per test; the registry factory closes over it.
var activeFake *fakeAdapter

func rows(rs ...map[string]any) *core.QueryOutcome {
	return &core.QueryOutcome{Rows: rs, RowCount: len(rs)}
}

func TestProcessSingleSelect(t *testing.T) {
	fake := &fakeAdapter{outcomes: []*core.QueryOutcome{
		rows(map[string]any{"id": int64(38710), "name": "ava"}),
	}}
	eng := newTestEngine(t, fake, nil)

	res, err := eng.Process(context.Background(), Request{
		Body: []byte(`{"User": {"id": 38710}}`),
		Verb: "GET",
	})
	require.NoError(t, err)

	require.Contains(t, res.Data, "User")
	assert.Equal(t, 1, res.Data["User"].Count)
	assert.Equal(t, "ava", res.Data["User"].Rows[0]["name"])
	assert.True(t, fake.connected)
}

func TestProcessDependentTables(t *testing.T) {
	fake := &fakeAdapter{outcomes: []*core.QueryOutcome{
		rows(map[string]any{"id": int64(5), "momentId": int64(12)}),
		rows(map[string]any{"id": int64(12), "content": "hi"}),
	}}
	eng := newTestEngine(t, fake, nil)

	res, err := eng.Process(context.Background(), Request{
		Body: []byte(`{
			"Comment": {"id": 5},
			"Moment": {"id@": "/Comment/momentId"}
		}`),
		Verb: "GET",
	})
	require.NoError(t, err)

	require.Len(t, fake.sqls, 2)
	assert.Contains(t, fake.sqls[1], `"id" = ?`)
	assert.Equal(t, []any{int64(12)}, fake.params[1])
	assert.Equal(t, "hi", res.Data["Moment"].Rows[0]["content"])
}

func TestProcessValidationError(t *testing.T) {
	eng := newTestEngine(t, &fakeAdapter{}, nil)

	_, err := eng.Process(context.Background(), Request{
		Body: []byte(`{"User[]": {"@count": 5000}}`),
		Verb: "GET",
	})
	require.Error(t, err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, "@count", verr.Violations[0].Key)
	assert.Equal(t, core.KindOutOfRange, core.KindOf(err))
	// Nothing reached the database.
	assert.False(t, eng.dbConnected)
}

func TestProcessMalformedBody(t *testing.T) {
	eng := newTestEngine(t, &fakeAdapter{}, nil)

	_, err := eng.Process(context.Background(), Request{
		Body: []byte(`{"User": `),
		Verb: "GET",
	})
	require.Error(t, err)
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

type denyPolicy struct{}

func (denyPolicy) CheckAccess(context.Context, string, core.Method, string) (bool, error) {
	return false, nil
}

func (denyPolicy) CheckContent(context.Context, core.Method, string, *core.TableQuery, map[string]any) error {
	return nil
}

func TestProcessAccessDenied(t *testing.T) {
	eng := newTestEngine(t, &fakeAdapter{}, denyPolicy{})

	_, err := eng.Process(context.Background(), Request{
		Body:     []byte(`{"User": {"name": "ava"}}`),
		Verb:     "POST",
		Identity: &core.Identity{Subject: "u1", Role: "viewer"},
	})
	require.Error(t, err)
	assert.Equal(t, core.KindPermission, core.KindOf(err))
}

func TestProcessAnonymousMutationRejected(t *testing.T) {
	eng := newTestEngine(t, &fakeAdapter{}, denyPolicy{})

	_, err := eng.Process(context.Background(), Request{
		Body: []byte(`{"User": {"name": "ava"}}`),
		Verb: "POST",
	})
	require.Error(t, err)
	assert.Equal(t, core.KindNotLoggedIn, core.KindOf(err))
}

func TestProcessAnonymousMutationRejectedWithoutPolicy(t *testing.T) {
	fake := &fakeAdapter{}
	eng := newTestEngine(t, fake, nil)

	_, err := eng.Process(context.Background(), Request{
		Body: []byte(`{"User": {"name": "ava"}}`),
		Verb: "POST",
	})
	require.Error(t, err)
	assert.Equal(t, core.KindNotLoggedIn, core.KindOf(err))
	assert.Empty(t, fake.sqls)
}

func TestProcessIdentifiedMutationWithoutPolicy(t *testing.T) {
	fake := &fakeAdapter{outcomes: []*core.QueryOutcome{
		{InsertID: 4, AffectedRows: 1},
		rows(map[string]any{"id": int64(4), "name": "ava"}),
	}}
	eng := newTestEngine(t, fake, nil)

	res, err := eng.Process(context.Background(), Request{
		Body:     []byte(`{"User": {"name": "ava"}}`),
		Verb:     "POST",
		Identity: &core.Identity{Subject: "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ava", res.Data["User"].Rows[0]["name"])
}

func TestProcessMultipleMutationsUseTransaction(t *testing.T) {
	fake := &fakeAdapter{outcomes: []*core.QueryOutcome{
		{InsertID: 7, AffectedRows: 1},
		{AffectedRows: 1},
		rows(map[string]any{"id": int64(7), "name": "ava"}),
		rows(map[string]any{"id": int64(2), "name": "bo"}),
	}}
	eng := newTestEngine(t, fake, nil)

	res, err := eng.Process(context.Background(), Request{
		Body: []byte(`{
			"User": {"name": "ava"},
			"Profile": {"@method": "PUT", "id": 2, "name": "bo"}
		}`),
		Verb:     "POST",
		Identity: &core.Identity{Subject: "u1", Role: "admin"},
	})
	require.NoError(t, err)

	require.Len(t, fake.txStmts, 2)
	assert.Contains(t, fake.txStmts[0].SQL, "INSERT INTO")
	assert.Contains(t, fake.txStmts[1].SQL, "UPDATE")
	assert.Contains(t, res.Data, "User")
	assert.Contains(t, res.Data, "Profile")
}

func TestProcessTransactionRejectsReferences(t *testing.T) {
	eng := newTestEngine(t, &fakeAdapter{}, nil)

	_, err := eng.Process(context.Background(), Request{
		Body: []byte(`{
			"User": {"name": "ava"},
			"Moment": {"userId@": "/User/id", "content": "hi"}
		}`),
		Verb:     "POST",
		Identity: &core.Identity{Subject: "u1", Role: "admin"},
	})
	require.Error(t, err)
	assert.Equal(t, core.KindCondition, core.KindOf(err))
}

func TestProcessExecutionError(t *testing.T) {
	fake := &fakeAdapter{queryErr: errors.New("connection reset")}
	eng := newTestEngine(t, fake, nil)

	_, err := eng.Process(context.Background(), Request{
		Body: []byte(`{"User": {"id": 1}}`),
		Verb: "GET",
	})
	require.Error(t, err)
	assert.Equal(t, core.KindExecution, core.KindOf(err))
}

func TestCloseIsIdempotent(t *testing.T) {
	fake := &fakeAdapter{}
	eng := newTestEngine(t, fake, nil)

	require.NoError(t, eng.Close())
	assert.False(t, fake.closed)

	require.NoError(t, eng.ensureConnected(context.Background()))
	require.NoError(t, eng.Close())
	assert.True(t, fake.closed)
}

func TestUnknownAdapterFailsFast(t *testing.T) {
	_, err := New(Config{
		Target: adapter.Config{Type: "nope"},
		Limits: core.DefaultLimits(),
	})
	require.Error(t, err)
	var unknown *adapter.UnknownAdapterError
	assert.ErrorAs(t, err, &unknown)
}

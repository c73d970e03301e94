package adapter

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/declsql/pkg/core"
)

func TestBaseSQLAdapter_Query_Read(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		sql       string
		params    []any
		wantRows  int
		expectErr bool
	}{
		{
			name: "select returns rows",
			setupMock: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"id", "name"}).
					AddRow(1, "alice").
					AddRow(2, []byte("bob"))
				mock.ExpectQuery("SELECT").WithArgs(int64(18)).WillReturnRows(rows)
			},
			sql:      "SELECT id, name FROM User WHERE age > ?",
			params:   []any{int64(18)},
			wantRows: 2,
		},
		{
			name: "query error propagates",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)
			},
			sql:       "SELECT id FROM User",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			tt.setupMock(mock)

			base := &BaseSQLAdapter{DB: db}
			outcome, err := base.Query(context.Background(), tt.sql, tt.params)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRows, outcome.RowCount)
			assert.Len(t, outcome.Rows, tt.wantRows)
			// []byte columns come back as strings
			assert.Equal(t, "bob", outcome.Rows[1]["name"])
		})
	}
}

func TestBaseSQLAdapter_Query_Write(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectExec("INSERT INTO User").
		WithArgs("alice", int64(25)).
		WillReturnResult(sqlmock.NewResult(42, 1))

	base := &BaseSQLAdapter{DB: db}
	outcome, err := base.Query(context.Background(), "INSERT INTO User (name, age) VALUES (?, ?)", []any{"alice", int64(25)})
	require.NoError(t, err)
	assert.Equal(t, int64(42), outcome.InsertID)
	assert.Equal(t, int64(1), outcome.AffectedRows)
	assert.Nil(t, outcome.Rows)
}

func TestBaseSQLAdapter_Query_NotConnected(t *testing.T) {
	base := &BaseSQLAdapter{}
	_, err := base.Query(context.Background(), "SELECT 1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not established")
}

func TestBaseSQLAdapter_ExecTransaction(t *testing.T) {
	t.Run("commit on success", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO User").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE User").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		base := &BaseSQLAdapter{DB: db}
		outcomes, err := base.ExecTransaction(context.Background(), []core.Statement{
			{SQL: "INSERT INTO User (name) VALUES (?)", Params: []any{"a"}},
			{SQL: "UPDATE User SET name = ? WHERE id = ?", Params: []any{"b", 1}},
		})
		require.NoError(t, err)
		require.Len(t, outcomes, 2)
		assert.Equal(t, int64(1), outcomes[0].InsertID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rollback on failure", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = db.Close() }()

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO User").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("UPDATE User").WillReturnError(assert.AnError)
		mock.ExpectRollback()

		base := &BaseSQLAdapter{DB: db}
		_, err = base.ExecTransaction(context.Background(), []core.Statement{
			{SQL: "INSERT INTO User (name) VALUES (?)", Params: []any{"a"}},
			{SQL: "UPDATE User SET name = ? WHERE id = ?", Params: []any{"b", 1}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "rolled back")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestIsReadStatement(t *testing.T) {
	reads := []string{"SELECT 1", "  select id from t", "WITH x AS (SELECT 1) SELECT * FROM x", "EXPLAIN SELECT 1"}
	for _, s := range reads {
		assert.True(t, isReadStatement(s), s)
	}
	writes := []string{"INSERT INTO t VALUES (1)", "UPDATE t SET a = 1", "DELETE FROM t"}
	for _, s := range writes {
		assert.False(t, isReadStatement(s), s)
	}
}

func TestRegistry_UnknownAdapter(t *testing.T) {
	_, err := NewAdapter(core.AdapterConfig{Type: "no-such-db"}, nil)
	require.Error(t, err)
	var unknown *UnknownAdapterError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "no-such-db", unknown.Type)

	_, err = NewAdapter(core.AdapterConfig{}, nil)
	require.Error(t, err)
}

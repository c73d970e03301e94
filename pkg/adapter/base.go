package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/declsql/pkg/core"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Query, and ExecTransaction implementations.
type BaseSQLAdapter struct {
	DB     *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.DB != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.DB.Close()
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.DB != nil
}

// Query runs one statement with the given bind parameters. Read statements
// report rows; write statements report insert id and affected rows.
// Parameter order is preserved exactly as supplied.
func (b *BaseSQLAdapter) Query(ctx context.Context, sqlStr string, params []any) (*core.QueryOutcome, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	if isReadStatement(sqlStr) {
		return queryRows(ctx, b.DB, sqlStr, params)
	}
	return execStatement(ctx, b.DB, sqlStr, params)
}

// ExecTransaction runs the statements as one unit. On the first failure the
// transaction is rolled back and the failure returned; nothing partial is
// committed.
func (b *BaseSQLAdapter) ExecTransaction(ctx context.Context, stmts []core.Statement) ([]*core.QueryOutcome, error) {
	if b.DB == nil {
		return nil, fmt.Errorf("database connection not established")
	}

	tx, err := b.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	outcomes := make([]*core.QueryOutcome, 0, len(stmts))
	for i, stmt := range stmts {
		var outcome *core.QueryOutcome
		var stmtErr error
		if isReadStatement(stmt.SQL) {
			outcome, stmtErr = queryRows(ctx, tx, stmt.SQL, stmt.Params)
		} else {
			outcome, stmtErr = execStatement(ctx, tx, stmt.SQL, stmt.Params)
		}
		if stmtErr != nil {
			if rbErr := tx.Rollback(); rbErr != nil && b.Logger != nil {
				b.Logger.Warn("rollback failed", "error", rbErr)
			}
			return nil, fmt.Errorf("statement %d failed, transaction rolled back: %w", i, stmtErr)
		}
		outcomes = append(outcomes, outcome)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return outcomes, nil
}

// querier abstracts *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func queryRows(ctx context.Context, q querier, sqlStr string, params []any) (*core.QueryOutcome, error) {
	rows, err := q.QueryContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(cols))
		for i, col := range cols {
			if bs, ok := values[i].([]byte); ok {
				row[col] = string(bs)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return &core.QueryOutcome{Rows: result, RowCount: len(result)}, nil
}

func execStatement(ctx context.Context, q querier, sqlStr string, params []any) (*core.QueryOutcome, error) {
	res, err := q.ExecContext(ctx, sqlStr, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}

	outcome := &core.QueryOutcome{}
	// Not every driver reports these; missing support is not an error.
	if id, err := res.LastInsertId(); err == nil {
		outcome.InsertID = id
	}
	if n, err := res.RowsAffected(); err == nil {
		outcome.AffectedRows = n
	}
	return outcome, nil
}

// isReadStatement reports whether the statement returns rows.
func isReadStatement(sqlStr string) bool {
	head := strings.ToUpper(strings.TrimSpace(sqlStr))
	for _, prefix := range []string{"SELECT", "WITH", "EXPLAIN", "SHOW", "VALUES"} {
		if strings.HasPrefix(head, prefix) {
			return true
		}
	}
	return false
}

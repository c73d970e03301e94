// Package postgres provides the PostgreSQL dialect: double-quoted
// identifiers, $N placeholders, LIMIT/OFFSET pagination.
package postgres

import "github.com/leapstack-labs/declsql/pkg/dialect"

func init() {
	dialect.Register(Postgres)
}

// Postgres is the PostgreSQL dialect.
var Postgres = dialect.NewDialect("postgres").
	DefaultSchema("public").
	PlaceholderStyle(dialect.PlaceholderDollar).
	Build()

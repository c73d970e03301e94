// Package db2 provides the IBM DB2 dialect: ? placeholders and
// FETCH FIRST pagination.
package db2

import "github.com/leapstack-labs/declsql/pkg/dialect"

func init() {
	dialect.Register(DB2)
}

// DB2 is the IBM DB2 dialect.
var DB2 = dialect.NewDialect("db2").
	PaginationStyle(dialect.PageFetchFirst).
	Build()

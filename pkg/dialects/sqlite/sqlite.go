// Package sqlite provides the SQLite dialect. SQLite has no RIGHT or FULL
// outer join before 3.39; the mapping keeps the standard keywords and trusts
// the linked library version.
package sqlite

import "github.com/leapstack-labs/declsql/pkg/dialect"

func init() {
	dialect.Register(SQLite)
}

// SQLite is the SQLite dialect.
var SQLite = dialect.NewDialect("sqlite").
	DefaultSchema("main").
	Build()

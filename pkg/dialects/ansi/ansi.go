// Package ansi provides the base ANSI SQL dialect: double-quoted
// identifiers, ? placeholders, LIMIT/OFFSET pagination, and the standard
// join keyword mapping.
//
// Other dialects start from the same defaults and override what differs.
package ansi

import "github.com/leapstack-labs/declsql/pkg/dialect"

func init() {
	dialect.Register(ANSI)
}

// ANSI is the base ANSI SQL dialect.
var ANSI = dialect.NewDialect("ansi").
	DefaultSchema("public").
	Build()

// Package oracle provides the Oracle dialect: :N placeholders and ROWNUM
// pagination. The builder appends the ROWNUM predicate to WHERE because
// Oracle (before 12c) has no trailing pagination clause.
package oracle

import "github.com/leapstack-labs/declsql/pkg/dialect"

func init() {
	dialect.Register(Oracle)
}

// Oracle is the Oracle dialect.
var Oracle = dialect.NewDialect("oracle").
	PlaceholderStyle(dialect.PlaceholderColon).
	PaginationStyle(dialect.PageRownum).
	Build()

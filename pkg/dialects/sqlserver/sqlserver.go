// Package sqlserver provides the SQL Server dialect: bracket identifiers,
// @pN placeholders, OFFSET/FETCH pagination.
package sqlserver

import "github.com/leapstack-labs/declsql/pkg/dialect"

func init() {
	dialect.Register(SQLServer)
}

// SQLServer is the Microsoft SQL Server dialect.
var SQLServer = dialect.NewDialect("sqlserver").
	Identifiers("[", "]", "]]").
	DefaultSchema("dbo").
	PlaceholderStyle(dialect.PlaceholderAt).
	PaginationStyle(dialect.PageOffsetFetch).
	Build()

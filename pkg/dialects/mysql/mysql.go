// Package mysql provides the MySQL dialect: backtick identifiers,
// ? placeholders, LIMIT/OFFSET pagination.
package mysql

import "github.com/leapstack-labs/declsql/pkg/dialect"

func init() {
	dialect.Register(MySQL)
}

// MySQL is the MySQL dialect.
var MySQL = dialect.NewDialect("mysql").
	Identifiers("`", "`", "``").
	Build()

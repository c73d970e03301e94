// Package tidb provides the TiDB dialect. TiDB speaks the MySQL wire
// protocol and SQL surface; only the name differs for adapter selection.
package tidb

import "github.com/leapstack-labs/declsql/pkg/dialect"

func init() {
	dialect.Register(TiDB)
}

// TiDB is the TiDB dialect.
var TiDB = dialect.NewDialect("tidb").
	Identifiers("`", "`", "``").
	Build()

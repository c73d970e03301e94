// Package clickhouse provides the ClickHouse dialect: backtick identifiers,
// LIMIT/OFFSET pagination, and native ASOF joins.
package clickhouse

import (
	"github.com/leapstack-labs/declsql/pkg/core"
	"github.com/leapstack-labs/declsql/pkg/dialect"
)

func init() {
	dialect.Register(ClickHouse)
}

// ClickHouse is the ClickHouse dialect.
var ClickHouse = dialect.NewDialect("clickhouse").
	Identifiers("`", "`", "``").
	JoinKeyword(core.JoinAsof, "ASOF JOIN").
	JoinKeyword(core.JoinAnti, "ANTI JOIN").
	Build()

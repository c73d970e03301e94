// Package mysql provides a MySQL database adapter for declsql.
//
// This file registers the MySQL and TiDB adapters with the adapter registry.
// Import this package with a blank identifier to register them:
//
//	import _ "github.com/leapstack-labs/declsql/pkg/adapters/mysql"
package mysql

import (
	"log/slog"

	"github.com/leapstack-labs/declsql/pkg/adapter"

	// Import dialects to ensure they're registered
	_ "github.com/leapstack-labs/declsql/pkg/dialects/mysql"
	_ "github.com/leapstack-labs/declsql/pkg/dialects/tidb"
)

func init() {
	adapter.Register("mysql", func(logger *slog.Logger) adapter.Adapter { return New(logger) })
	adapter.Register("tidb", func(logger *slog.Logger) adapter.Adapter { return NewTiDB(logger) })
}

// Package adapter provides database adapter interfaces and shared plumbing
// for declsql's query executor.
//
// This package contains the public contract that all database adapters must
// implement. Concrete adapter implementations are in pkg/adapters/
// subdirectories.
//
// Note: the core types (Adapter, AdapterConfig, QueryOutcome, Statement) are
// defined in pkg/core. This package re-exports them via type aliases so
// adapter implementations only import pkg/adapter.
package adapter

import "github.com/leapstack-labs/declsql/pkg/core"

type (
	// Adapter is an alias for core.Adapter.
	Adapter = core.Adapter

	// Config is an alias for core.AdapterConfig.
	Config = core.AdapterConfig

	// Outcome is an alias for core.QueryOutcome.
	Outcome = core.QueryOutcome

	// Statement is an alias for core.Statement.
	Statement = core.Statement
)

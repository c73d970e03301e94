// Package core defines the shared language of the declsql system.
//
// This package contains:
//   - Domain entities (TableQuery, Condition, Join, BuiltQuery, TableResult)
//   - Collaborator interfaces (Adapter, AccessPolicy, Cache)
//   - Configuration types (Limits, AdapterConfig)
//   - The error taxonomy used across the pipeline
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core

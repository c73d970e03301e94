package core

import "context"

// Adapter is the database collaborator. Parameter order must be preserved
// exactly as produced by the builder. Adapter errors propagate unchanged;
// cancellation and timeouts are the adapter's responsibility.
type Adapter interface {
	// Connect establishes the connection.
	Connect(ctx context.Context, cfg AdapterConfig) error

	// Close releases the connection.
	Close() error

	// Query runs one statement and reports rows or write counters.
	Query(ctx context.Context, sql string, params []any) (*QueryOutcome, error)

	// ExecTransaction runs the statements as one unit: begin, execute
	// sequentially, commit on success. On the first failure it rolls back
	// and returns the failure, leaving no partial effect.
	ExecTransaction(ctx context.Context, stmts []Statement) ([]*QueryOutcome, error)

	// DialectName names the SQL dialect the adapter speaks.
	DialectName() string
}

// AdapterConfig holds connection settings for an adapter.
type AdapterConfig struct {
	Type     string            `koanf:"type"`
	Path     string            `koanf:"path"`
	Host     string            `koanf:"host"`
	Port     int               `koanf:"port"`
	Database string            `koanf:"database"`
	Username string            `koanf:"username"`
	Password string            `koanf:"password"`
	Schema   string            `koanf:"schema"`
	Options  map[string]string `koanf:"options"`
}

// Identity is the authenticated caller, set by the transport boundary.
type Identity struct {
	// Subject is the caller's stable identifier.
	Subject string
	// Role is the caller's resolved role name.
	Role string
}

// AccessPolicy is the pluggable role/content collaborator consulted for
// mutating operations.
type AccessPolicy interface {
	// CheckAccess reports whether the role may run the method on the table.
	CheckAccess(ctx context.Context, table string, method Method, role string) (bool, error)

	// CheckContent vets a mutation payload; a nil error admits it.
	CheckContent(ctx context.Context, method Method, table string, target *TableQuery, payload map[string]any) error
}

// Cache is the optional best-effort result cache. Entries expire once
// now >= storedAt+ttl.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttlSeconds int)
}

// Package engine orchestrates the request pipeline: parse, verify, check
// access, schedule, execute, and assemble the response.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/declsql/internal/cache"
	"github.com/leapstack-labs/declsql/internal/execute"
	"github.com/leapstack-labs/declsql/internal/parser"
	"github.com/leapstack-labs/declsql/internal/sqlbuild"
	"github.com/leapstack-labs/declsql/internal/verify"
	"github.com/leapstack-labs/declsql/pkg/adapter"
	"github.com/leapstack-labs/declsql/pkg/core"
)

// Engine glues the pipeline stages together around one database target.
// It is safe for concurrent use; the database connection is established
// lazily on the first request.
type Engine struct {
	db          adapter.Adapter
	dbConfig    adapter.Config
	dbConnected bool
	dbMu        sync.Mutex

	parser   *parser.Parser
	verifier *verify.Verifier
	builder  *sqlbuild.Builder
	executor *execute.Executor

	policy   core.AccessPolicy
	limits   core.Limits
	parallel bool
	logger   *slog.Logger
}

// Config holds engine configuration.
type Config struct {
	// Target is the database target.
	Target adapter.Config
	// Limits bounds request shape and result sizes.
	Limits core.Limits
	// Policy vets mutating operations; nil allows everything.
	Policy core.AccessPolicy
	// Cache serves repeated @cache selects; nil disables caching.
	Cache core.Cache
	// Parallel runs independent queries of one request concurrently.
	Parallel bool
	// Logger is the structured logger (discard if nil).
	Logger *slog.Logger
}

// New creates an engine with a lazy database connection. The adapter and
// dialect are resolved up front so a misconfigured target fails fast.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := adapter.NewAdapter(cfg.Target, logger)
	if err != nil {
		return nil, fmt.Errorf("create adapter: %w", err)
	}

	builder, err := sqlbuild.New(db.DialectName(), cfg.Limits, logger)
	if err != nil {
		return nil, fmt.Errorf("create builder: %w", err)
	}

	resultCache := cfg.Cache
	if resultCache == nil {
		resultCache = cache.New(cfg.Limits.CacheTTLSeconds)
	}

	logger.Debug("initializing engine",
		"adapter_type", cfg.Target.Type,
		"dialect", db.DialectName())

	return &Engine{
		db:       db,
		dbConfig: cfg.Target,
		parser:   parser.New(cfg.Limits, logger),
		verifier: verify.New(cfg.Limits, logger),
		builder:  builder,
		executor: execute.New(db, builder, cfg.Limits, resultCache, logger),
		policy:   cfg.Policy,
		limits:   cfg.Limits,
		parallel: cfg.Parallel,
		logger:   logger,
	}, nil
}

// ensureConnected lazily connects to the database.
func (e *Engine) ensureConnected(ctx context.Context) error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if e.dbConnected {
		return nil
	}

	e.logger.Debug("connecting to database", "adapter_type", e.dbConfig.Type)
	if err := e.db.Connect(ctx, e.dbConfig); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	e.dbConnected = true
	return nil
}

// Close releases the database connection.
func (e *Engine) Close() error {
	e.dbMu.Lock()
	defer e.dbMu.Unlock()

	if !e.dbConnected {
		return nil
	}
	e.dbConnected = false
	return e.db.Close()
}

// Builder exposes the SQL builder, used by tooling to render queries
// without executing them.
func (e *Engine) Builder() *sqlbuild.Builder {
	return e.builder
}

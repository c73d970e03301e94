package engine

import (
	"context"
	"fmt"

	"github.com/leapstack-labs/declsql/internal/schedule"
	"github.com/leapstack-labs/declsql/internal/verify"
	"github.com/leapstack-labs/declsql/pkg/core"
)

// Request is one incoming query document.
type Request struct {
	// Body is the raw JSON document.
	Body []byte
	// Verb is the HTTP method hint; a top-level @method directive wins.
	Verb string
	// Identity is the authenticated caller, nil when anonymous.
	Identity *core.Identity
}

// ValidationError carries all verifier violations for one request so the
// transport can report them together.
type ValidationError struct {
	Violations []verify.Violation
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 0 {
		return "validation failed"
	}
	v := e.Violations[0]
	return fmt.Sprintf("validation failed: %s.%s: %s", v.Table, v.Key, v.Message)
}

// Unwrap exposes the first violation as a kinded error so status mapping
// keeps working through errors.As.
func (e *ValidationError) Unwrap() error {
	if len(e.Violations) == 0 {
		return nil
	}
	v := e.Violations[0]
	return core.NewError(v.Kind, v.Table, "%s", v.Message)
}

// Process runs one request through the full pipeline and assembles the
// response.
func (e *Engine) Process(ctx context.Context, req Request) (*core.RequestResult, error) {
	parsed, err := e.parser.Parse(req.Body, req.Verb)
	if err != nil {
		return nil, err
	}

	if result := e.verifier.Verify(parsed); !result.Valid() {
		return nil, &ValidationError{Violations: result.Violations}
	}

	// Runs even without a policy: mutations always require an identity.
	if err := e.verifier.CheckAccess(ctx, e.policy, req.Identity, parsed); err != nil {
		return nil, err
	}

	if err := e.ensureConnected(ctx); err != nil {
		return nil, core.WrapError(core.KindExecution, "", err, "database unavailable")
	}

	results, err := e.run(ctx, parsed.Tables)
	if err != nil {
		return nil, err
	}

	return &core.RequestResult{
		Data:       results,
		Directives: parsed.Directives,
		Original:   parsed.Original,
	}, nil
}

// run dispatches between the scheduled per-table path and the transactional
// path used when a request carries more than one mutation.
func (e *Engine) run(ctx context.Context, tables []*core.TableQuery) (map[string]*core.TableResult, error) {
	if countMutations(tables) >= 2 {
		return e.runTransactional(ctx, tables)
	}

	opts := []schedule.Option{}
	if e.parallel {
		opts = append(opts, schedule.WithParallel())
	}
	return schedule.New(e.executor, e.logger, opts...).Run(ctx, tables)
}

// runTransactional executes all mutations of the request as one unit.
// References are not available on this path: statements are compiled before
// anything runs, so a value produced by one mutation cannot feed another.
func (e *Engine) runTransactional(ctx context.Context, tables []*core.TableQuery) (map[string]*core.TableResult, error) {
	mutations := make([]*core.TableQuery, 0, len(tables))
	for _, tq := range tables {
		if !tq.Op.IsMutation() {
			return nil, core.NewError(core.KindCondition, tq.Table,
				"read operations cannot be combined with multiple writes in one request")
		}
		if len(tq.Refs) > 0 {
			return nil, core.NewError(core.KindCondition, tq.Table,
				"references are not supported between writes in one request")
		}
		mutations = append(mutations, tq)
	}

	txResults, err := e.executor.RunTransaction(ctx, mutations)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*core.TableResult, len(txResults))
	for i, tr := range txResults {
		results[schedule.ResultKey(mutations[i])] = tr
	}
	return results, nil
}

func countMutations(tables []*core.TableQuery) int {
	n := 0
	for _, tq := range tables {
		if tq.Op.IsMutation() {
			n++
		}
	}
	return n
}

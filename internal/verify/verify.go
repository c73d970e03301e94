// Package verify checks a ParseResult for structural violations before any
// SQL is built. Structural checks accumulate every violation in the request
// so callers can report them in one batch; access-policy checks for mutating
// operations are fatal on first failure and carry their own error kinds.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cast"

	"github.com/leapstack-labs/declsql/internal/parser"
	"github.com/leapstack-labs/declsql/pkg/core"
)

// Violation is one structural problem found in a request.
type Violation struct {
	Table   string
	Key     string
	Kind    core.ErrorKind
	Message string
}

// Result aggregates every violation and warning for one request.
type Result struct {
	Violations []Violation
	Warnings   []string
}

// Valid reports whether the request may proceed to the builder.
func (r *Result) Valid() bool {
	return len(r.Violations) == 0
}

// Err converts the first violation into the request-aborting error, or nil
// when the result is valid. The full set stays available on the Result.
func (r *Result) Err() error {
	if len(r.Violations) == 0 {
		return nil
	}
	v := r.Violations[0]
	return core.NewError(v.Kind, v.Table, "%s", v.Message)
}

// Verifier validates ParseResults. It never mutates its input, so verifying
// the same result twice yields the same outcome.
type Verifier struct {
	limits core.Limits
	logger *slog.Logger
}

// New creates a verifier. A nil logger discards output.
func New(limits core.Limits, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Verifier{limits: limits, logger: logger}
}

// Verify runs every structural check over the parsed request and returns the
// accumulated result.
func (v *Verifier) Verify(res *parser.ParseResult) *Result {
	out := &Result{}

	v.checkDirectives(out, "", res.Directives)

	for _, tq := range res.Tables {
		v.checkTable(out, tq)
	}

	if !out.Valid() {
		v.logger.Debug("request rejected", "violations", len(out.Violations))
	}
	return out
}

func (v *Verifier) checkTable(out *Result, tq *core.TableQuery) {
	if !core.ValidIdentifier(tq.Table) {
		out.add(tq.Table, "", core.KindValidation, "invalid table name %q", tq.Table)
	}
	if tq.Alias != "" && !core.ValidIdentifier(tq.Alias) {
		out.add(tq.Table, "", core.KindValidation, "invalid table alias %q", tq.Alias)
	}
	if tq.Depth > v.limits.MaxQueryDepth {
		out.add(tq.Table, "", core.KindOutOfRange,
			"nesting depth %d exceeds the maximum %d", tq.Depth, v.limits.MaxQueryDepth)
	}

	for _, col := range tq.Columns {
		if !validColumnToken(col) {
			out.add(tq.Table, "@column", core.KindValidation, "invalid column token %q", col)
		}
	}
	for _, g := range tq.Group {
		if !validColumnToken(g) {
			out.add(tq.Table, "@group", core.KindValidation, "invalid group token %q", g)
		}
	}
	for _, o := range tq.Order {
		if !validColumnToken(o.Field) {
			out.add(tq.Table, "@order", core.KindValidation, "invalid order token %q", o.Field)
		}
	}

	v.checkConditions(out, tq.Table, tq.Conditions)
	v.checkHaving(out, tq.Table, tq.Having)

	for _, join := range tq.Joins {
		v.checkJoin(out, tq.Table, join)
	}

	v.checkPagination(out, tq)
	v.checkDirectives(out, tq.Table, tq.Directives)
	v.checkPayload(out, tq)
}

func (v *Verifier) checkConditions(out *Result, table string, conds []core.Condition) {
	for _, c := range conds {
		if c.Op.IsGroup() {
			if len(c.Nested) == 0 {
				out.add(table, "", core.KindCondition, "empty logical group")
			}
			v.checkConditions(out, table, c.Nested)
			continue
		}
		if !core.ValidIdentifier(c.Field) {
			out.add(table, c.Field, core.KindValidation, "invalid condition field %q", c.Field)
		}
		if sub, ok := c.Value.(*core.Subquery); ok {
			v.checkSubquery(out, table, sub)
		}
	}
}

// checkHaving validates HAVING keys with the column-token rule, since they
// address aggregate outputs like COUNT(*) rather than bare identifiers.
func (v *Verifier) checkHaving(out *Result, table string, conds []core.Condition) {
	for _, c := range conds {
		if c.Op.IsGroup() {
			v.checkHaving(out, table, c.Nested)
			continue
		}
		if !validColumnToken(c.Field) {
			out.add(table, "@having", core.KindValidation, "invalid having field %q", c.Field)
		}
	}
}

func (v *Verifier) checkSubquery(out *Result, table string, sub *core.Subquery) {
	if !core.ValidIdentifier(sub.From) {
		out.add(table, "@from", core.KindCondition, "invalid subquery table %q", sub.From)
	}
	for _, col := range sub.Columns {
		if !validColumnToken(col) {
			out.add(table, "@column", core.KindCondition, "invalid subquery column %q", col)
		}
	}
	v.checkConditions(out, table, sub.Conditions)
}

func (v *Verifier) checkJoin(out *Result, table string, join core.Join) {
	if !core.ValidIdentifier(join.Table) {
		out.add(table, "@join", core.KindCondition, "invalid join table %q", join.Table)
	}
	if join.Kind.Symbol() == 0 {
		out.add(table, "@join", core.KindCondition, "unknown join kind")
	}
	// APP joins resolve on the application side and need no ON clause; every
	// SQL join does.
	if join.Kind != core.JoinApp && join.Key == "" && len(join.On) == 0 {
		out.add(table, "@join", core.KindCondition,
			"join on %q is missing its ON column", join.Table)
	}
	if join.Key != "" && !core.ValidIdentifier(join.Key) {
		out.add(table, "@join", core.KindCondition, "invalid join key %q", join.Key)
	}
	if join.OwnerKey != "" && !core.ValidIdentifier(join.OwnerKey) {
		out.add(table, "@join", core.KindCondition, "invalid join owner key %q", join.OwnerKey)
	}
	v.checkConditions(out, table, join.On)
}

func (v *Verifier) checkPagination(out *Result, tq *core.TableQuery) {
	if tq.Count < 0 {
		out.add(tq.Table, "@count", core.KindOutOfRange, "count must not be negative")
	}
	if tq.Count > v.limits.MaxQueryCount {
		out.add(tq.Table, "@count", core.KindOutOfRange,
			"count %d exceeds the maximum %d", tq.Count, v.limits.MaxQueryCount)
	}
	if tq.Page < 0 {
		out.add(tq.Table, "@page", core.KindOutOfRange, "page must not be negative")
	}
	if tq.Page > v.limits.MaxQueryPage {
		out.add(tq.Table, "@page", core.KindOutOfRange,
			"page %d exceeds the maximum %d", tq.Page, v.limits.MaxQueryPage)
	}
	if tq.HasOffset && tq.Offset < 0 {
		out.add(tq.Table, "@offset", core.KindOutOfRange, "offset must not be negative")
	}
}

func (v *Verifier) checkPayload(out *Result, tq *core.TableQuery) {
	check := func(row map[string]any) {
		for field := range row {
			if !core.ValidIdentifier(field) {
				out.add(tq.Table, field, core.KindValidation, "invalid payload field %q", field)
			}
		}
	}
	if tq.Payload != nil {
		check(tq.Payload)
	}
	for _, row := range tq.PayloadRows {
		check(row)
	}
	if tq.Op == core.OpInsert && tq.Payload == nil && len(tq.PayloadRows) == 0 {
		out.add(tq.Table, "", core.KindValidation, "insert without payload")
	}
}

// directiveSpec describes one whitelisted directive's accepted value shape.
type directiveSpec struct {
	check func(any) bool
	hint  string
}

var directiveWhitelist = map[string]directiveSpec{
	"@method":   {isMethodName, "GET, GETS, HEAD, HEADS, POST, PUT, PATCH or DELETE"},
	"@column":   {isStringOrList, "a string or array of column tokens"},
	"@join":     {isJoinShape, "a string, array, or object of join specs"},
	"@group":    {isStringOrList, "a string or array of column tokens"},
	"@having":   {isObject, "an object of conditions"},
	"@order":    {isStringOrList, "a string or array of order tokens"},
	"@count":    {isNumber, "a non-negative number"},
	"@limit":    {isNumber, "a non-negative number"},
	"@page":     {isNumber, "a non-negative number"},
	"@offset":   {isNumber, "a non-negative number"},
	"@query":    {isQueryKind, "0 (data), 1 (total) or 2 (both)"},
	"@total":    {isBool, "a boolean"},
	"@search":   {isString, "a string"},
	"@cache":    {isBoolOrObject, "a boolean or {ttl} object"},
	"@explain":  {isBool, "a boolean"},
	"@role":     {isString, "a string"},
	"@database": {isString, "a string"},
	"@schema":   {isString, "a string"},
}

// checkDirectives reports violations in name order so repeated verification
// of one request yields identical output.
func (v *Verifier) checkDirectives(out *Result, table string, directives map[string]any) {
	names := make([]string, 0, len(directives))
	for name := range directives {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		raw := directives[name]
		spec, ok := directiveWhitelist[name]
		if !ok {
			out.add(table, name, core.KindValidation, "unknown directive %q", name)
			continue
		}
		if !spec.check(raw) {
			out.add(table, name, core.KindValidation,
				"directive %s must be %s", name, spec.hint)
		}
	}
}

func (r *Result) add(table, key string, kind core.ErrorKind, format string, args ...any) {
	r.Violations = append(r.Violations, Violation{
		Table:   table,
		Key:     key,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	})
}

var aggregatePattern = regexp.MustCompile(`^(COUNT|SUM|AVG|MIN|MAX)\((\*|[A-Za-z_][A-Za-z0-9_]*(, *[A-Za-z_][A-Za-z0-9_]*)*)\)(:[A-Za-z_][A-Za-z0-9_]*)?$`)

// validColumnToken accepts a bare identifier, "*", or an aggregate call
// "FUNC(args)" with an optional ":alias" suffix. The function name is
// case-insensitive.
func validColumnToken(token string) bool {
	if token == "*" {
		return true
	}
	if i := strings.IndexByte(token, '('); i >= 0 {
		return aggregatePattern.MatchString(strings.ToUpper(token[:i]) + token[i:])
	}
	if field, alias, ok := strings.Cut(token, ":"); ok {
		return core.ValidIdentifier(field) && core.ValidIdentifier(alias)
	}
	return core.ValidIdentifier(token)
}

func isString(raw any) bool {
	_, ok := raw.(string)
	return ok
}

func isBool(raw any) bool {
	_, ok := raw.(bool)
	return ok
}

func isNumber(raw any) bool {
	if _, ok := raw.(string); ok {
		return false
	}
	_, err := cast.ToIntE(raw)
	return err == nil
}

func isObject(raw any) bool {
	_, ok := raw.(map[string]any)
	return ok
}

func isBoolOrObject(raw any) bool {
	return isBool(raw) || isObject(raw)
}

func isStringOrList(raw any) bool {
	switch raw.(type) {
	case string, []any:
		return true
	default:
		return false
	}
}

func isJoinShape(raw any) bool {
	switch raw.(type) {
	case string, []any, map[string]any:
		return true
	default:
		return false
	}
}

func isMethodName(raw any) bool {
	s, ok := raw.(string)
	if !ok {
		return false
	}
	_, ok = core.MethodFromString(s)
	return ok
}

func isQueryKind(raw any) bool {
	if s, ok := raw.(string); ok {
		switch strings.ToLower(s) {
		case "0", "1", "2", "data", "total", "count", "both", "all":
			return true
		}
		return false
	}
	n, err := cast.ToIntE(raw)
	return err == nil && n >= 0 && n <= 2
}

// CheckAccess runs the pluggable access policy for mutating operations in a
// fixed order: login, then role, then content, then the update-count bound.
// The first failure wins and is returned with its own error kind.
func (v *Verifier) CheckAccess(ctx context.Context, policy core.AccessPolicy, identity *core.Identity, res *parser.ParseResult) error {
	if !res.Method.IsMutation() {
		return nil
	}
	if identity == nil || identity.Subject == "" {
		return core.NewError(core.KindNotLoggedIn, "", "mutating requests require a logged-in identity")
	}
	if policy == nil {
		return nil
	}

	for _, tq := range res.Tables {
		role := tq.Role
		if role == "" {
			role = identity.Role
		}
		allowed, err := policy.CheckAccess(ctx, tq.Table, res.Method, role)
		if err != nil {
			return core.WrapError(core.KindPermission, tq.Table, err, "role check failed")
		}
		if !allowed {
			return core.NewError(core.KindPermission, tq.Table,
				"role %q may not %s %s", role, res.Method, tq.Table)
		}
		if err := policy.CheckContent(ctx, res.Method, tq.Table, tq, tq.Payload); err != nil {
			return core.WrapError(core.KindPermission, tq.Table, err, "content check failed")
		}
		if n := affectedRows(tq); n > v.limits.MaxUpdateCount {
			return core.NewError(core.KindOutOfRange, tq.Table,
				"write touches %d rows, more than the maximum %d", n, v.limits.MaxUpdateCount)
		}
	}
	return nil
}

// affectedRows estimates how many rows a write addresses before execution:
// batch rows for batch inserts, the id-set size for set-scoped writes, one
// otherwise.
func affectedRows(tq *core.TableQuery) int {
	if len(tq.PayloadRows) > 0 {
		return len(tq.PayloadRows)
	}
	for _, c := range tq.Conditions {
		if c.Op == core.OpIn {
			if vals, ok := c.Value.([]any); ok {
				return len(vals)
			}
		}
	}
	return 1
}

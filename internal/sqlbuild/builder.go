// Package sqlbuild compiles TableQuery values into dialect-specific SQL with
// ordered bind parameters. Building is a pure function of the query and the
// dialect; the builder holds no per-request state and is safe for concurrent
// use.
package sqlbuild

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/leapstack-labs/declsql/pkg/core"
	"github.com/leapstack-labs/declsql/pkg/dialect"
)

// Builder compiles table queries for one dialect.
type Builder struct {
	dialect *dialect.Dialect
	limits  core.Limits
	logger  *slog.Logger
}

// New creates a builder for a registered dialect name.
func New(dialectName string, limits core.Limits, logger *slog.Logger) (*Builder, error) {
	d, ok := dialect.Get(dialectName)
	if !ok {
		return nil, fmt.Errorf("unknown dialect %q (known: %s)", dialectName, strings.Join(dialect.List(), ", "))
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Builder{dialect: d, limits: limits, logger: logger}, nil
}

// Dialect exposes the builder's dialect.
func (b *Builder) Dialect() *dialect.Dialect {
	return b.dialect
}

// Build compiles one table query. Unresolved references in the query are an
// error; the scheduler resolves them before dependent queries are built.
func (b *Builder) Build(tq *core.TableQuery) (*core.BuiltQuery, error) {
	sql, params, err := b.compile(tq, false)
	if err != nil {
		return nil, err
	}
	return &core.BuiltQuery{
		Table:  tq.Table,
		Alias:  tq.Alias,
		Op:     tq.Op,
		SQL:    sql,
		Params: params,
		Query:  tq,
	}, nil
}

// BuildCount compiles the COUNT(*) variant of a SELECT, used to populate
// totals and to serve HEAD-style requests.
func (b *Builder) BuildCount(tq *core.TableQuery) (*core.BuiltQuery, error) {
	counted := *tq
	counted.Op = core.OpCount
	counted.Order = nil
	counted.Count = 0
	counted.Page = 0
	counted.Offset = 0
	counted.HasOffset = false
	return b.Build(&counted)
}

// Render returns the query as literal SQL with every parameter inlined, for
// explain output and logging only. Execution always binds parameters.
func (b *Builder) Render(tq *core.TableQuery) (string, error) {
	sql, _, err := b.compile(tq, true)
	return sql, err
}

func (b *Builder) compile(tq *core.TableQuery, literal bool) (string, []any, error) {
	p := &paramList{dialect: b.dialect, literal: literal}

	var sql string
	var err error
	switch tq.Op {
	case core.OpSelect, core.OpCount:
		sql, err = b.selectSQL(tq, p)
	case core.OpInsert:
		sql, err = b.insertSQL(tq, p)
	case core.OpUpdate:
		sql, err = b.updateSQL(tq, p)
	case core.OpDelete:
		sql, err = b.deleteSQL(tq, p)
	default:
		err = core.NewError(core.KindCondition, tq.Table, "unknown operation")
	}
	if err != nil {
		return "", nil, err
	}

	if tq.Explain {
		sql = "EXPLAIN " + sql
	}
	return sql, p.values, nil
}

func (b *Builder) selectSQL(tq *core.TableQuery, p *paramList) (string, error) {
	var sb strings.Builder

	sb.WriteString("SELECT ")
	if tq.Op == core.OpCount {
		sb.WriteString("COUNT(*)")
	} else {
		cols, err := b.columnList(tq.Table, tq.Columns)
		if err != nil {
			return "", err
		}
		sb.WriteString(cols)
	}

	sb.WriteString(" FROM ")
	sb.WriteString(b.tableRef(tq))

	for _, join := range tq.Joins {
		if join.Kind == core.JoinApp {
			continue
		}
		clause, err := b.joinClause(tq, join, p)
		if err != nil {
			return "", err
		}
		sb.WriteString(" ")
		sb.WriteString(clause)
	}

	where, err := b.whereFragments(tq, p)
	if err != nil {
		return "", err
	}
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}

	if len(tq.Group) > 0 {
		var groups []string
		for _, g := range tq.Group {
			groups = append(groups, b.columnRef(g))
		}
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(groups, ", "))
	}

	if len(tq.Having) > 0 {
		frags, err := b.conditionList(tq.Table, tq.Having, p)
		if err != nil {
			return "", err
		}
		sb.WriteString(" HAVING ")
		sb.WriteString(strings.Join(frags, " AND "))
	}

	if len(tq.Order) > 0 {
		var orders []string
		for _, o := range tq.Order {
			orders = append(orders, b.columnRef(o.Field)+" "+o.Direction.String())
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(orders, ", "))
	}

	if tq.Op == core.OpSelect {
		if frag := b.dialect.RenderPagination(tq.Count, rowOffset(tq)); frag != "" {
			// OFFSET ... FETCH is invalid without ORDER BY on SQL Server.
			if b.dialect.Pagination == dialect.PageOffsetFetch && len(tq.Order) == 0 {
				sb.WriteString(" ORDER BY (SELECT NULL)")
			}
			sb.WriteString(" ")
			sb.WriteString(frag)
		}
	}

	return sb.String(), nil
}

// whereFragments collects WHERE fragments: plain conditions, the IS NULL
// predicates of anti joins, and a ROWNUM bound for predicate-paginating
// dialects.
func (b *Builder) whereFragments(tq *core.TableQuery, p *paramList) ([]string, error) {
	frags, err := b.conditionList(tq.Table, tq.Conditions, p)
	if err != nil {
		return nil, err
	}

	for _, join := range tq.Joins {
		if join.Kind == core.JoinAnti {
			frags = append(frags, fmt.Sprintf("%s.%s IS NULL",
				b.dialect.QuoteIdentifier(join.Table), b.dialect.QuoteIdentifier(join.Key)))
		}
	}

	if tq.Op == core.OpSelect {
		if frag := b.dialect.PaginationPredicate(tq.Count, rowOffset(tq)); frag != "" {
			frags = append(frags, frag)
		}
	}
	return frags, nil
}

func (b *Builder) insertSQL(tq *core.TableQuery, p *paramList) (string, error) {
	rows := tq.PayloadRows
	if len(rows) == 0 {
		if tq.Payload == nil {
			return "", core.NewError(core.KindValidation, tq.Table, "insert without payload")
		}
		rows = []map[string]any{tq.Payload}
	}

	fields := sortedFields(rows[0])
	if len(fields) == 0 {
		return "", core.NewError(core.KindValidation, tq.Table, "insert row has no fields")
	}

	var quoted []string
	for _, f := range fields {
		quoted = append(quoted, b.dialect.QuoteIdentifier(f))
	}

	var tuples []string
	for _, row := range rows {
		var slots []string
		for _, f := range fields {
			v, err := resolvedValue(tq.Table, row[f])
			if err != nil {
				return "", err
			}
			slots = append(slots, p.add(v))
		}
		tuples = append(tuples, "("+strings.Join(slots, ", ")+")")
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		b.tableName(tq), strings.Join(quoted, ", "), strings.Join(tuples, ", ")), nil
}

func (b *Builder) updateSQL(tq *core.TableQuery, p *paramList) (string, error) {
	if len(tq.Payload) == 0 {
		return "", core.NewError(core.KindValidation, tq.Table, "update without payload")
	}
	if len(tq.Conditions) == 0 {
		return "", core.NewError(core.KindValidation, tq.Table, "update without a row scope")
	}

	var sets []string
	for _, f := range sortedFields(tq.Payload) {
		v, err := resolvedValue(tq.Table, tq.Payload[f])
		if err != nil {
			return "", err
		}
		sets = append(sets, b.dialect.QuoteIdentifier(f)+" = "+p.add(v))
	}

	frags, err := b.conditionList(tq.Table, tq.Conditions, p)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		b.tableName(tq), strings.Join(sets, ", "), strings.Join(frags, " AND ")), nil
}

func (b *Builder) deleteSQL(tq *core.TableQuery, p *paramList) (string, error) {
	if len(tq.Conditions) == 0 {
		return "", core.NewError(core.KindValidation, tq.Table, "delete without a row scope")
	}
	frags, err := b.conditionList(tq.Table, tq.Conditions, p)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("DELETE FROM %s WHERE %s",
		b.tableName(tq), strings.Join(frags, " AND ")), nil
}

// tableName renders the (optionally schema-qualified) quoted table name.
func (b *Builder) tableName(tq *core.TableQuery) string {
	name := b.dialect.QuoteIdentifier(tq.Table)
	if tq.Schema != "" {
		return b.dialect.QuoteIdentifier(tq.Schema) + "." + name
	}
	return name
}

// tableRef is tableName plus an AS alias for FROM position.
func (b *Builder) tableRef(tq *core.TableQuery) string {
	ref := b.tableName(tq)
	if tq.Alias != "" {
		ref += " AS " + b.dialect.QuoteIdentifier(tq.Alias)
	}
	return ref
}

func (b *Builder) joinClause(tq *core.TableQuery, join core.Join, p *paramList) (string, error) {
	keyword, err := b.dialect.JoinKeyword(join.Kind)
	if err != nil {
		return "", core.WrapError(core.KindCondition, tq.Table, err, "join on %q", join.Table)
	}

	owner := tq.Alias
	if owner == "" {
		owner = tq.Table
	}
	ownerKey := join.OwnerKey
	if ownerKey == "" {
		ownerKey = b.limits.IDField
	}

	var on []string
	if join.Key != "" {
		on = append(on, fmt.Sprintf("%s.%s = %s.%s",
			b.dialect.QuoteIdentifier(join.Table), b.dialect.QuoteIdentifier(join.Key),
			b.dialect.QuoteIdentifier(owner), b.dialect.QuoteIdentifier(ownerKey)))
	}
	if len(join.On) > 0 {
		frags, err := b.conditionList(join.Table, join.On, p)
		if err != nil {
			return "", err
		}
		on = append(on, frags...)
	}
	if len(on) == 0 {
		return "", core.NewError(core.KindCondition, tq.Table, "join on %q has no ON clause", join.Table)
	}

	return fmt.Sprintf("%s %s ON %s",
		keyword, b.dialect.QuoteIdentifier(join.Table), strings.Join(on, " AND ")), nil
}

func sortedFields(row map[string]any) []string {
	fields := make([]string, 0, len(row))
	for f := range row {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// resolvedValue rejects values the scheduler should have substituted.
func resolvedValue(table string, v any) (any, error) {
	if ref, ok := v.(core.Reference); ok {
		return nil, core.NewError(core.KindNotExist, table, "unresolved reference to %q", ref.Path)
	}
	return v, nil
}

// rowOffset resolves the pagination offset: an explicit offset wins over the
// page*count product.
func rowOffset(tq *core.TableQuery) int {
	if tq.HasOffset {
		return tq.Offset
	}
	return tq.Page * tq.Count
}

package sqlbuild

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/declsql/pkg/core"
	"github.com/leapstack-labs/declsql/pkg/dialect"
)

// paramList accumulates bind parameters while fragments are rendered. In
// literal mode it inlines values instead, for explain and log output.
type paramList struct {
	dialect *dialect.Dialect
	values  []any
	literal bool
}

// add records a value and returns its placeholder (or literal form).
func (p *paramList) add(v any) string {
	if p.literal {
		return Literal(v)
	}
	p.values = append(p.values, v)
	return p.dialect.FormatPlaceholder(len(p.values))
}

// conditionList renders each condition as one SQL fragment.
func (b *Builder) conditionList(table string, conds []core.Condition, p *paramList) ([]string, error) {
	var frags []string
	for _, c := range conds {
		frag, err := b.conditionSQL(table, c, p)
		if err != nil {
			return nil, err
		}
		frags = append(frags, frag)
	}
	return frags, nil
}

func (b *Builder) conditionSQL(table string, c core.Condition, p *paramList) (string, error) {
	if c.Op.IsGroup() {
		return b.groupSQL(table, c, p)
	}

	if ref, ok := c.Value.(core.Reference); ok {
		return "", core.NewError(core.KindNotExist, table, "unresolved reference to %q", ref.Path)
	}
	if sub, ok := c.Value.(*core.Subquery); ok {
		return b.subqueryCondition(table, c, sub, p)
	}

	field := b.columnRef(c.Field)

	switch c.Op {
	case core.OpEq:
		if c.Value == nil {
			return field + " IS NULL", nil
		}
		return field + " = " + p.add(c.Value), nil
	case core.OpNe:
		if c.Value == nil {
			return field + " IS NOT NULL", nil
		}
		return field + " != " + p.add(c.Value), nil
	case core.OpGt:
		return field + " > " + p.add(c.Value), nil
	case core.OpGte:
		return field + " >= " + p.add(c.Value), nil
	case core.OpLt:
		return field + " < " + p.add(c.Value), nil
	case core.OpLte:
		return field + " <= " + p.add(c.Value), nil
	case core.OpLike:
		return field + " LIKE " + p.add(likePattern(c.Value)), nil
	case core.OpNotLike:
		return field + " NOT LIKE " + p.add(likePattern(c.Value)), nil
	case core.OpBetween:
		return b.betweenSQL(table, field, "BETWEEN", c.Value, p)
	case core.OpNotBetween:
		return b.betweenSQL(table, field, "NOT BETWEEN", c.Value, p)
	case core.OpIn:
		return b.inSQL(table, field, "IN", c.Value, p)
	case core.OpNotIn:
		return b.inSQL(table, field, "NOT IN", c.Value, p)
	case core.OpContains:
		// Containment over a JSON-encoded column, matched textually so it
		// works on every dialect.
		return field + " LIKE " + p.add("%"+jsonText(c.Value)+"%"), nil
	default:
		return "", core.NewError(core.KindCondition, table, "operator %s has no SQL form", c.Op)
	}
}

func (b *Builder) groupSQL(table string, c core.Condition, p *paramList) (string, error) {
	if len(c.Nested) == 0 {
		return "", core.NewError(core.KindCondition, table, "empty logical group")
	}
	frags, err := b.conditionList(table, c.Nested, p)
	if err != nil {
		return "", err
	}

	switch c.Op {
	case core.OpAnd:
		return "(" + strings.Join(frags, " AND ") + ")", nil
	case core.OpOr:
		return "(" + strings.Join(frags, " OR ") + ")", nil
	case core.OpNot:
		return "NOT (" + strings.Join(frags, " AND ") + ")", nil
	default:
		return "", core.NewError(core.KindCondition, table, "unknown logical group")
	}
}

func (b *Builder) betweenSQL(table, field, keyword string, value any, p *paramList) (string, error) {
	bounds, ok := value.([]any)
	if !ok || len(bounds) != 2 {
		return "", core.NewError(core.KindCondition, table,
			"%s on %s needs a two-element array", keyword, field)
	}
	return fmt.Sprintf("%s %s %s AND %s", field, keyword, p.add(bounds[0]), p.add(bounds[1])), nil
}

// inSQL expands an IN set to one placeholder per element. An empty set keeps
// the statement valid: IN over nothing matches no rows, NOT IN matches all.
func (b *Builder) inSQL(table, field, keyword string, value any, p *paramList) (string, error) {
	vals, ok := value.([]any)
	if !ok {
		return "", core.NewError(core.KindCondition, table, "%s on %s needs an array", keyword, field)
	}
	if len(vals) == 0 {
		if keyword == "IN" {
			return "1 = 0", nil
		}
		return "1 = 1", nil
	}
	slots := make([]string, len(vals))
	for i, v := range vals {
		slots[i] = p.add(v)
	}
	return fmt.Sprintf("%s %s (%s)", field, keyword, strings.Join(slots, ", ")), nil
}

// subqueryCondition renders "field op [ALL|ANY] (SELECT ...)" or EXISTS.
func (b *Builder) subqueryCondition(table string, c core.Condition, sub *core.Subquery, p *paramList) (string, error) {
	inner, err := b.subquerySQL(table, sub, p)
	if err != nil {
		return "", err
	}

	if sub.Kind == core.SubExists {
		return "EXISTS (" + inner + ")", nil
	}

	op, err := comparisonKeyword(table, c.Op)
	if err != nil {
		return "", err
	}

	qualifier := ""
	switch sub.Range {
	case core.RangeAll:
		qualifier = "ALL "
	case core.RangeAny:
		qualifier = "ANY "
	}

	return fmt.Sprintf("%s %s %s(%s)", b.columnRef(c.Field), op, qualifier, inner), nil
}

func (b *Builder) subquerySQL(table string, sub *core.Subquery, p *paramList) (string, error) {
	cols, err := b.columnList(sub.From, sub.Columns)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(b.dialect.QuoteIdentifier(sub.From))

	if len(sub.Conditions) > 0 {
		frags, err := b.conditionList(table, sub.Conditions, p)
		if err != nil {
			return "", err
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(frags, " AND "))
	}
	return sb.String(), nil
}

func comparisonKeyword(table string, op core.Operator) (string, error) {
	switch op {
	case core.OpEq:
		return "=", nil
	case core.OpNe:
		return "!=", nil
	case core.OpGt:
		return ">", nil
	case core.OpGte:
		return ">=", nil
	case core.OpLt:
		return "<", nil
	case core.OpLte:
		return "<=", nil
	case core.OpIn:
		return "IN", nil
	case core.OpNotIn:
		return "NOT IN", nil
	default:
		return "", core.NewError(core.KindCondition, table, "operator %s cannot take a subquery", op)
	}
}

// likePattern wraps bare values in wildcards; values that already carry a
// wildcard pass through unchanged.
func likePattern(v any) string {
	s := fmt.Sprintf("%v", v)
	if strings.ContainsAny(s, "%_") {
		return s
	}
	return "%" + s + "%"
}

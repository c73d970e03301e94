package sqlbuild

import (
	"strings"

	"github.com/leapstack-labs/declsql/pkg/core"
)

// columnList renders a SELECT column list; empty means every column.
func (b *Builder) columnList(table string, columns []string) (string, error) {
	if len(columns) == 0 {
		return "*", nil
	}
	rendered := make([]string, 0, len(columns))
	for _, token := range columns {
		col, err := b.columnToken(table, token)
		if err != nil {
			return "", err
		}
		rendered = append(rendered, col)
	}
	return strings.Join(rendered, ", "), nil
}

// columnToken renders one column token: "*", a bare identifier, "field:alias",
// or an aggregate "FUNC(args)[:alias]".
func (b *Builder) columnToken(table, token string) (string, error) {
	if token == "*" {
		return "*", nil
	}

	if i := strings.IndexByte(token, '('); i >= 0 {
		return b.aggregateToken(table, token, i)
	}

	if field, alias, ok := strings.Cut(token, ":"); ok {
		return b.dialect.QuoteIdentifier(field) + " AS " + b.dialect.QuoteIdentifier(alias), nil
	}
	return b.columnRef(token), nil
}

func (b *Builder) aggregateToken(table, token string, open int) (string, error) {
	fn := strings.ToUpper(token[:open])
	switch fn {
	case "COUNT", "SUM", "AVG", "MIN", "MAX":
	default:
		return "", core.NewError(core.KindCondition, table, "unknown aggregate function %q", fn)
	}

	end := strings.IndexByte(token, ')')
	if end < open {
		return "", core.NewError(core.KindCondition, table, "malformed aggregate %q", token)
	}

	args := strings.TrimSpace(token[open+1 : end])
	rendered := "*"
	if args != "*" {
		var parts []string
		for _, arg := range strings.Split(args, ",") {
			arg = strings.TrimSpace(arg)
			if !core.ValidIdentifier(arg) {
				return "", core.NewError(core.KindCondition, table, "invalid aggregate argument %q", arg)
			}
			parts = append(parts, b.dialect.QuoteIdentifier(arg))
		}
		rendered = strings.Join(parts, ", ")
	}

	expr := fn + "(" + rendered + ")"
	rest := token[end+1:]
	if alias, ok := strings.CutPrefix(rest, ":"); ok && alias != "" {
		expr += " AS " + b.dialect.QuoteIdentifier(alias)
	} else if rest != "" {
		return "", core.NewError(core.KindCondition, table, "malformed aggregate %q", token)
	}
	return expr, nil
}

// columnRef renders a field for WHERE/GROUP/ORDER position. Aggregate
// expressions (HAVING keys) pass through; plain names are quoted.
func (b *Builder) columnRef(field string) string {
	if strings.ContainsRune(field, '(') {
		if i := strings.IndexByte(field, '('); i >= 0 {
			return strings.ToUpper(field[:i]) + field[i:]
		}
	}
	return b.dialect.QuoteIdentifier(field)
}

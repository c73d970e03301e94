// Package grammar decodes suffix-encoded condition keys into
// (field, operator) pairs.
//
// The decoder is pure and stateless; it never touches I/O. Matching is
// longest-suffix-first so ">=" is never mis-decoded as ">" followed by a
// stray "=".
package grammar

import (
	"strings"

	"github.com/leapstack-labs/declsql/pkg/core"
)

// Decoded is the result of decoding one condition key.
type Decoded struct {
	Field string
	Op    core.Operator
}

// suffixTable binds key suffixes to operators, ordered longest first.
// Reference suffixes ("@", "{}@") are handled separately by Reference().
var suffixTable = []struct {
	suffix string
	op     core.Operator
}{
	{"!><", core.OpNotBetween},
	{">=", core.OpGte},
	{"<=", core.OpLte},
	{"!=", core.OpNe},
	{"><", core.OpBetween},
	{"<>", core.OpContains},
	{"!~", core.OpNotLike},
	{"[]", core.OpIn},
	{"{}", core.OpNotIn},
	{">", core.OpGt},
	{"<", core.OpLt},
	{"~", core.OpLike},
}

// groupKeys binds the logical-group keys to their operators.
var groupKeys = map[string]core.Operator{
	"$and": core.OpAnd,
	"$or":  core.OpOr,
	"$not": core.OpNot,
}

// Decode strips the longest known suffix from key and returns the bare field
// with its operator. A key with no known suffix decodes to equality.
func Decode(key string) Decoded {
	if op, ok := groupKeys[key]; ok {
		return Decoded{Op: op}
	}
	for _, entry := range suffixTable {
		if field, ok := strings.CutSuffix(key, entry.suffix); ok && field != "" {
			return Decoded{Field: field, Op: entry.op}
		}
	}
	return Decoded{Field: key, Op: core.OpEq}
}

// Reference reports whether key declares a value reference: a trailing "@"
// for a single value, or "{}@" for an array-scoped gather. The returned
// field has the suffix stripped.
func Reference(key string) (field string, isArray bool, ok bool) {
	if field, ok := strings.CutSuffix(key, "{}@"); ok && field != "" {
		return field, true, true
	}
	if field, ok := strings.CutSuffix(key, "@"); ok && field != "" {
		return field, false, true
	}
	return "", false, false
}

// Suffix renders the key suffix for an operator. Group operators render
// their full key. This is the inverse of Decode for every operator that has
// a textual form.
func Suffix(op core.Operator) string {
	switch op {
	case core.OpAnd:
		return "$and"
	case core.OpOr:
		return "$or"
	case core.OpNot:
		return "$not"
	}
	for _, entry := range suffixTable {
		if entry.op == op {
			return entry.suffix
		}
	}
	return ""
}

// Render reassembles the request key for a (field, operator) pair.
func Render(field string, op core.Operator) string {
	if op.IsGroup() {
		return Suffix(op)
	}
	return field + Suffix(op)
}

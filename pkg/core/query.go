package core

// Method is the request-level verb that drives operation inference.
type Method int

const (
	// MethodGet reads a single object per table.
	MethodGet Method = iota
	// MethodGets reads a paged list per table (array-suffixed table keys).
	MethodGets
	// MethodHead counts rows for a single-object query.
	MethodHead
	// MethodHeads counts rows for a list query.
	MethodHeads
	// MethodPost inserts rows.
	MethodPost
	// MethodPut updates rows.
	MethodPut
	// MethodDelete deletes rows.
	MethodDelete
)

// String returns the canonical upper-case name of the method.
func (m Method) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodGets:
		return "GETS"
	case MethodHead:
		return "HEAD"
	case MethodHeads:
		return "HEADS"
	case MethodPost:
		return "POST"
	case MethodPut:
		return "PUT"
	case MethodDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// MethodFromString resolves an @method directive value. PATCH maps to PUT.
func MethodFromString(s string) (Method, bool) {
	switch s {
	case "GET":
		return MethodGet, true
	case "GETS":
		return MethodGets, true
	case "HEAD":
		return MethodHead, true
	case "HEADS":
		return MethodHeads, true
	case "POST":
		return MethodPost, true
	case "PUT", "PATCH":
		return MethodPut, true
	case "DELETE":
		return MethodDelete, true
	default:
		return MethodGet, false
	}
}

// IsMutation reports whether the method writes data.
func (m Method) IsMutation() bool {
	switch m {
	case MethodPost, MethodPut, MethodDelete:
		return true
	default:
		return false
	}
}

// Operation is the per-table operation kind a query compiles to.
type Operation int

const (
	// OpSelect reads rows.
	OpSelect Operation = iota
	// OpInsert writes new rows.
	OpInsert
	// OpUpdate modifies existing rows.
	OpUpdate
	// OpDelete removes rows.
	OpDelete
	// OpCount runs a count-only query.
	OpCount
)

// String returns the SQL-ish name of the operation.
func (o Operation) String() string {
	switch o {
	case OpSelect:
		return "SELECT"
	case OpInsert:
		return "INSERT"
	case OpUpdate:
		return "UPDATE"
	case OpDelete:
		return "DELETE"
	case OpCount:
		return "COUNT"
	default:
		return "UNKNOWN"
	}
}

// IsMutation reports whether the operation writes data.
func (o Operation) IsMutation() bool {
	switch o {
	case OpInsert, OpUpdate, OpDelete:
		return true
	default:
		return false
	}
}

// Operator identifies a condition operator. The set is closed; the decoder in
// internal/grammar maps key suffixes onto it.
type Operator int

const (
	// OpEq is plain equality (no suffix).
	OpEq Operator = iota
	// OpNe is inequality ("!=" suffix).
	OpNe
	// OpGt is greater-than (">" suffix).
	OpGt
	// OpGte is greater-or-equal (">=" suffix).
	OpGte
	// OpLt is less-than ("<" suffix).
	OpLt
	// OpLte is less-or-equal ("<=" suffix).
	OpLte
	// OpLike is a LIKE match ("~" suffix, value wrapped in %).
	OpLike
	// OpNotLike is a NOT LIKE match ("!~" suffix).
	OpNotLike
	// OpIn is an IN value set ("[]" suffix).
	OpIn
	// OpNotIn is a NOT IN value set ("{}" suffix).
	OpNotIn
	// OpBetween is a BETWEEN range ("><" suffix, two-element value).
	OpBetween
	// OpNotBetween is a NOT BETWEEN range.
	OpNotBetween
	// OpContains matches array containment ("<>" suffix).
	OpContains
	// OpAnd groups nested conditions with AND ("$and" key).
	OpAnd
	// OpOr groups nested conditions with OR ("$or" key).
	OpOr
	// OpNot negates a nested condition group ("$not" key).
	OpNot
)

// String returns the decoder name of the operator.
func (op Operator) String() string {
	switch op {
	case OpEq:
		return "eq"
	case OpNe:
		return "ne"
	case OpGt:
		return "gt"
	case OpGte:
		return "gte"
	case OpLt:
		return "lt"
	case OpLte:
		return "lte"
	case OpLike:
		return "like"
	case OpNotLike:
		return "notLike"
	case OpIn:
		return "in"
	case OpNotIn:
		return "notIn"
	case OpBetween:
		return "between"
	case OpNotBetween:
		return "notBetween"
	case OpContains:
		return "contains"
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpNot:
		return "not"
	default:
		return "unknown"
	}
}

// IsGroup reports whether the operator carries nested conditions instead of a
// scalar value.
func (op Operator) IsGroup() bool {
	return op == OpAnd || op == OpOr || op == OpNot
}

// Condition is one (field, operator, value) predicate. Immutable once parsed.
// Group operators carry Nested instead of Value.
type Condition struct {
	Field  string
	Op     Operator
	Value  any
	Nested []Condition
}

// OrderDirection is the sort direction of one ORDER BY term.
type OrderDirection int

const (
	// OrderAsc sorts ascending ("+" or "" suffix).
	OrderAsc OrderDirection = iota
	// OrderDesc sorts descending ("-" suffix).
	OrderDesc
)

// String returns the SQL keyword for the direction.
func (d OrderDirection) String() string {
	if d == OrderDesc {
		return "DESC"
	}
	return "ASC"
}

// OrderSpec is one ORDER BY term.
type OrderSpec struct {
	Field     string
	Direction OrderDirection
}

// QueryType selects what an executed SELECT populates.
type QueryType int

const (
	// QueryData runs only the data query (the default).
	QueryData QueryType = iota
	// QueryTotal runs only the COUNT-rewritten query.
	QueryTotal
	// QueryBoth runs the count first, then the data query.
	QueryBoth
)

// TableQuery is the parsed, per-table representation of one request entry.
// It is created by the parser, annotated by the verifier and builder, and
// discarded after one request. A fresh value is built per parse; there is no
// reuse or reset.
type TableQuery struct {
	// Table is the target table name, without any [] suffix.
	Table string
	// Alias is an optional alias ("Table:alias" keys).
	Alias string
	// Op is the resolved operation kind.
	Op Operation
	// IsArray marks a paged multi-row query ("Table[]" keys).
	IsArray bool

	// Conditions is the ordered WHERE condition list.
	Conditions []Condition
	// Columns is the column selection; empty means *. Entries may be bare
	// identifiers or aggregate expressions like "COUNT(*):c".
	Columns []string
	// Group holds GROUP BY tokens.
	Group []string
	// Having holds HAVING conditions, built with the WHERE machinery.
	Having []Condition
	// Order holds ORDER BY terms.
	Order []OrderSpec

	// Count is the page size; 0 means the configured default.
	Count int
	// Page is the zero-based page number.
	Page int
	// Offset overrides Page*Count when set explicitly (@offset).
	Offset int
	// HasOffset distinguishes an explicit zero offset from none.
	HasOffset bool

	// Joins lists SQL and APP joins declared via @join.
	Joins []Join

	// QueryType selects data/count/both execution (@query).
	QueryType QueryType
	// Cache asks for best-effort result caching (@cache).
	Cache bool
	// CacheTTLSeconds overrides the cache default TTL when > 0.
	CacheTTLSeconds int
	// Explain renders literalized SQL instead of executing (@explain).
	Explain bool

	// Role is the table-local requested role (@role).
	Role string
	// Database and Schema override the adapter defaults (@database, @schema).
	Database string
	Schema   string

	// Payload holds the raw column->value map for INSERT/UPDATE.
	Payload map[string]any
	// PayloadRows holds batch INSERT rows; nil for single-row writes.
	PayloadRows []map[string]any

	// Refs maps owner field -> reference into another table's result.
	Refs []Reference

	// Directives holds the raw table-local @directive values for shape
	// verification.
	Directives map[string]any

	// Depth is the nesting depth at which this table appeared.
	Depth int
}

// HasReferences reports whether the query depends on another table's result.
func (q *TableQuery) HasReferences() bool {
	return len(q.Refs) > 0
}

// PrimaryKeyValue returns the value bound to an id-equality condition, if any.
func (q *TableQuery) PrimaryKeyValue(idField string) (any, bool) {
	for _, c := range q.Conditions {
		if c.Field == idField && c.Op == OpEq {
			return c.Value, true
		}
	}
	if q.Payload != nil {
		if v, ok := q.Payload[idField]; ok {
			return v, true
		}
	}
	return nil, false
}

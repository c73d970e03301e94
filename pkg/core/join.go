package core

// JoinKind identifies one of the supported join strategies. Each kind is
// bound to a one-character symbol in the @join grammar.
type JoinKind int

const (
	// JoinApp ("@") is resolved in application code via references and never
	// reaches SQL.
	JoinApp JoinKind = iota
	// JoinInner ("&") is a plain INNER JOIN.
	JoinInner
	// JoinFull ("|") is a FULL JOIN.
	JoinFull
	// JoinLeft ("<") is a LEFT JOIN.
	JoinLeft
	// JoinRight (">") is a RIGHT JOIN.
	JoinRight
	// JoinOuter ("!") maps to LEFT OUTER JOIN.
	JoinOuter
	// JoinSide ("^") maps to RIGHT OUTER JOIN.
	JoinSide
	// JoinAnti ("(") keeps left rows without a match.
	JoinAnti
	// JoinForeign (")") follows a foreign key; maps to INNER JOIN.
	JoinForeign
	// JoinAsof ("~") is an ASOF JOIN where the dialect supports one.
	JoinAsof
)

// joinSymbols binds each kind to its grammar symbol.
var joinSymbols = map[byte]JoinKind{
	'@': JoinApp,
	'&': JoinInner,
	'|': JoinFull,
	'<': JoinLeft,
	'>': JoinRight,
	'!': JoinOuter,
	'^': JoinSide,
	'(': JoinAnti,
	')': JoinForeign,
	'~': JoinAsof,
}

// JoinKindForSymbol returns the join kind bound to a one-character symbol.
func JoinKindForSymbol(sym byte) (JoinKind, bool) {
	k, ok := joinSymbols[sym]
	return k, ok
}

// String returns the grammar name of the join kind.
func (k JoinKind) String() string {
	switch k {
	case JoinApp:
		return "APP"
	case JoinInner:
		return "INNER"
	case JoinFull:
		return "FULL"
	case JoinLeft:
		return "LEFT"
	case JoinRight:
		return "RIGHT"
	case JoinOuter:
		return "OUTER"
	case JoinSide:
		return "SIDE"
	case JoinAnti:
		return "ANTI"
	case JoinForeign:
		return "FOREIGN"
	case JoinAsof:
		return "ASOF"
	default:
		return "UNKNOWN"
	}
}

// Symbol returns the one-character grammar symbol of the join kind.
func (k JoinKind) Symbol() byte {
	for sym, kind := range joinSymbols {
		if kind == k {
			return sym
		}
	}
	return 0
}

// Join declares one join against the owning TableQuery.
type Join struct {
	// Kind is the join strategy.
	Kind JoinKind
	// Table is the joined table.
	Table string
	// Key is the joined table's column matched against OwnerKey.
	Key string
	// OwnerKey is the owning table's column; defaults to Key when empty.
	OwnerKey string
	// On holds optional extra ON conditions beyond the key equality.
	On []Condition
}

// Reference declares that a field's value comes from another table's
// already-executed result. It exists only until the scheduler resolves it.
type Reference struct {
	// OwnerField is the condition or payload field awaiting the value.
	OwnerField string
	// Path addresses the source: "/Table/field".
	Path string
	// IsArray gathers the field across every row instead of the first row.
	IsArray bool
}

// SubqueryKind positions a subquery inside its parent statement.
type SubqueryKind int

const (
	// SubWhere embeds the subquery in a WHERE comparison.
	SubWhere SubqueryKind = iota
	// SubExists wraps the subquery in EXISTS().
	SubExists
	// SubFrom uses the subquery as the FROM source.
	SubFrom
	// SubSelect embeds the subquery in the column list.
	SubSelect
)

// SubqueryRange is the optional ALL/ANY qualifier.
type SubqueryRange int

const (
	// RangeNone omits the qualifier.
	RangeNone SubqueryRange = iota
	// RangeAll prefixes the subquery with ALL.
	RangeAll
	// RangeAny prefixes the subquery with ANY.
	RangeAny
)

// String returns the SQL keyword for the range qualifier.
func (r SubqueryRange) String() string {
	switch r {
	case RangeAll:
		return "ALL"
	case RangeAny:
		return "ANY"
	default:
		return ""
	}
}

// Subquery is a nested query compiled recursively through the builder and
// wrapped in parentheses.
type Subquery struct {
	Kind       SubqueryKind
	Range      SubqueryRange
	From       string
	Columns    []string
	Conditions []Condition
}

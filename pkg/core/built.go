package core

// BuiltQuery is a compiled (sql, params) pair, produced once per TableQuery
// and consumed exactly once by the executor. Pure data.
type BuiltQuery struct {
	// Table is the source table, carried through for result assembly.
	Table string
	// Alias is the request alias under which results are keyed, if any.
	Alias string
	// Op is the operation kind the SQL implements.
	Op Operation
	// SQL is the parameterized statement text.
	SQL string
	// Params holds bind values in placeholder order.
	Params []any

	// Query carries the originating TableQuery for executor decisions
	// (re-select, pagination, query type). The builder never mutates it.
	Query *TableQuery
}

// Statement is one (sql, params) unit inside a transaction batch.
type Statement struct {
	SQL    string
	Params []any
}

// TableResult is the per-table slice of the response: the rows the executor
// assembled, the total matching-row count, and the returned-row count.
type TableResult struct {
	Rows  []map[string]any `json:"rows"`
	Total int64            `json:"total"`
	Count int              `json:"count"`
}

// QueryOutcome is what an adapter reports for one statement.
type QueryOutcome struct {
	// Rows holds result rows for reads; nil for writes.
	Rows []map[string]any
	// RowCount is len(Rows) for reads.
	RowCount int
	// InsertID is the last insert id after an INSERT, when the driver
	// supports it.
	InsertID int64
	// AffectedRows is the driver-reported affected count for writes.
	AffectedRows int64
}

// RequestResult is the assembled output of one request: a per-table result
// map plus the directives and original body, handed to the response
// formatter.
type RequestResult struct {
	Data       map[string]*TableResult `json:"data"`
	Directives map[string]any          `json:"directives,omitempty"`
	Original   map[string]any          `json:"-"`
}

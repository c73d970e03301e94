package sqlbuild

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/declsql/pkg/core"

	_ "github.com/leapstack-labs/declsql/pkg/dialects/ansi"
	_ "github.com/leapstack-labs/declsql/pkg/dialects/db2"
	_ "github.com/leapstack-labs/declsql/pkg/dialects/mysql"
	_ "github.com/leapstack-labs/declsql/pkg/dialects/oracle"
	_ "github.com/leapstack-labs/declsql/pkg/dialects/postgres"
	_ "github.com/leapstack-labs/declsql/pkg/dialects/sqlserver"
)

func newBuilder(t *testing.T, dialectName string) *Builder {
	t.Helper()
	b, err := New(dialectName, core.DefaultLimits(), nil)
	require.NoError(t, err)
	return b
}

func TestBuildSimpleSelect(t *testing.T) {
	tq := &core.TableQuery{
		Table:      "User",
		Op:         core.OpSelect,
		Conditions: []core.Condition{{Field: "id", Op: core.OpEq, Value: 1}},
	}

	built, err := newBuilder(t, "ansi").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "User" WHERE "id" = ?`, built.SQL)
	assert.Equal(t, []any{1}, built.Params)
}

func TestBuildListSelect(t *testing.T) {
	tq := &core.TableQuery{
		Table:      "User",
		Op:         core.OpSelect,
		IsArray:    true,
		Count:      10,
		Page:       2,
		Conditions: []core.Condition{{Field: "age", Op: core.OpGt, Value: 18}},
		Order:      []core.OrderSpec{{Field: "id", Direction: core.OrderDesc}},
		Columns:    []string{"id", "name"},
	}

	built, err := newBuilder(t, "ansi").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id", "name" FROM "User" WHERE "age" > ? ORDER BY "id" DESC LIMIT 10 OFFSET 20`, built.SQL)
	assert.Equal(t, []any{18}, built.Params)
}

func TestBuildOffsetIsPageTimesCount(t *testing.T) {
	for _, page := range []int{0, 1, 3, 7} {
		tq := &core.TableQuery{Table: "User", Op: core.OpSelect, Count: 25, Page: page}
		built, err := newBuilder(t, "ansi").Build(tq)
		require.NoError(t, err)
		assert.Contains(t, built.SQL, "LIMIT 25 OFFSET "+strconv.Itoa(25*page))
	}
}

func TestBuildDialectPagination(t *testing.T) {
	tq := &core.TableQuery{Table: "User", Op: core.OpSelect, Count: 10, Page: 1}

	tests := []struct {
		dialect string
		want    string
	}{
		{"mysql", "SELECT * FROM `User` LIMIT 10 OFFSET 10"},
		{"postgres", `SELECT * FROM "User" LIMIT 10 OFFSET 10`},
		{"sqlserver", "SELECT * FROM [User] ORDER BY (SELECT NULL) OFFSET 10 ROWS FETCH NEXT 10 ROWS ONLY"},
		{"db2", `SELECT * FROM "User" FETCH FIRST 10 ROWS ONLY`},
		{"oracle", `SELECT * FROM "User" WHERE ROWNUM <= 20`},
	}
	for _, tt := range tests {
		t.Run(tt.dialect, func(t *testing.T) {
			built, err := newBuilder(t, tt.dialect).Build(tq)
			require.NoError(t, err)
			assert.Equal(t, tt.want, built.SQL)
		})
	}
}

func TestBuildSQLServerPagingOrdersRows(t *testing.T) {
	tq := &core.TableQuery{Table: "User", Op: core.OpSelect, Count: 10, Page: 1}

	built, err := newBuilder(t, "sqlserver").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM [User] ORDER BY (SELECT NULL) OFFSET 10 ROWS FETCH NEXT 10 ROWS ONLY", built.SQL)

	tq.Order = []core.OrderSpec{{Field: "id", Direction: core.OrderDesc}}
	built, err = newBuilder(t, "sqlserver").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM [User] ORDER BY [id] DESC OFFSET 10 ROWS FETCH NEXT 10 ROWS ONLY", built.SQL)
}

func TestBuildPostgresPlaceholders(t *testing.T) {
	tq := &core.TableQuery{
		Table: "User",
		Op:    core.OpSelect,
		Conditions: []core.Condition{
			{Field: "age", Op: core.OpGte, Value: 18},
			{Field: "level", Op: core.OpLt, Value: 5},
		},
	}

	built, err := newBuilder(t, "postgres").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "User" WHERE "age" >= $1 AND "level" < $2`, built.SQL)
	assert.Equal(t, []any{18, 5}, built.Params)
}

func TestBuildOperatorFragments(t *testing.T) {
	tests := []struct {
		name       string
		cond       core.Condition
		wantSQL    string
		wantParams []any
	}{
		{"null eq", core.Condition{Field: "deletedAt", Op: core.OpEq, Value: nil}, `"deletedAt" IS NULL`, nil},
		{"null ne", core.Condition{Field: "deletedAt", Op: core.OpNe, Value: nil}, `"deletedAt" IS NOT NULL`, nil},
		{"like wraps", core.Condition{Field: "name", Op: core.OpLike, Value: "Ada"}, `"name" LIKE ?`, []any{"%Ada%"}},
		{"like keeps wildcards", core.Condition{Field: "name", Op: core.OpLike, Value: "A%"}, `"name" LIKE ?`, []any{"A%"}},
		{"not like", core.Condition{Field: "name", Op: core.OpNotLike, Value: "bot"}, `"name" NOT LIKE ?`, []any{"%bot%"}},
		{"between", core.Condition{Field: "age", Op: core.OpBetween, Value: []any{18, 65}}, `"age" BETWEEN ? AND ?`, []any{18, 65}},
		{"not between", core.Condition{Field: "age", Op: core.OpNotBetween, Value: []any{0, 17}}, `"age" NOT BETWEEN ? AND ?`, []any{0, 17}},
		{"in", core.Condition{Field: "id", Op: core.OpIn, Value: []any{1, 2, 3}}, `"id" IN (?, ?, ?)`, []any{1, 2, 3}},
		{"not in", core.Condition{Field: "id", Op: core.OpNotIn, Value: []any{9}}, `"id" NOT IN (?)`, []any{9}},
		{"empty in", core.Condition{Field: "id", Op: core.OpIn, Value: []any{}}, `1 = 0`, nil},
		{"empty not in", core.Condition{Field: "id", Op: core.OpNotIn, Value: []any{}}, `1 = 1`, nil},
		{"contains", core.Condition{Field: "tags", Op: core.OpContains, Value: "go"}, `"tags" LIKE ?`, []any{`%"go"%`}},
	}
	b := newBuilder(t, "ansi")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tq := &core.TableQuery{Table: "User", Op: core.OpSelect, Conditions: []core.Condition{tt.cond}}
			built, err := b.Build(tq)
			require.NoError(t, err)
			assert.Equal(t, `SELECT * FROM "User" WHERE `+tt.wantSQL, built.SQL)
			assert.Equal(t, tt.wantParams, built.Params)
		})
	}
}

func TestBuildLogicalGroups(t *testing.T) {
	tq := &core.TableQuery{
		Table: "User",
		Op:    core.OpSelect,
		Conditions: []core.Condition{{
			Op: core.OpOr,
			Nested: []core.Condition{
				{Field: "age", Op: core.OpGt, Value: 60},
				{Op: core.OpAnd, Nested: []core.Condition{
					{Field: "level", Op: core.OpEq, Value: 9},
					{Field: "active", Op: core.OpEq, Value: true},
				}},
			},
		}},
	}

	built, err := newBuilder(t, "ansi").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "User" WHERE ("age" > ? OR ("level" = ? AND "active" = ?))`, built.SQL)
	assert.Equal(t, []any{60, 9, true}, built.Params)
}

func TestBuildNotGroup(t *testing.T) {
	tq := &core.TableQuery{
		Table: "User",
		Op:    core.OpSelect,
		Conditions: []core.Condition{{
			Op:     core.OpNot,
			Nested: []core.Condition{{Field: "banned", Op: core.OpEq, Value: true}},
		}},
	}

	built, err := newBuilder(t, "ansi").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "User" WHERE NOT ("banned" = ?)`, built.SQL)
}

func TestBuildJoin(t *testing.T) {
	tq := &core.TableQuery{
		Table: "Moment",
		Op:    core.OpSelect,
		Joins: []core.Join{{Kind: core.JoinLeft, Table: "Comment", Key: "momentId"}},
	}

	built, err := newBuilder(t, "ansi").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "Moment" LEFT JOIN "Comment" ON "Comment"."momentId" = "Moment"."id"`, built.SQL)
}

func TestBuildAppJoinContributesNothing(t *testing.T) {
	tq := &core.TableQuery{
		Table: "Comment",
		Op:    core.OpSelect,
		Joins: []core.Join{{Kind: core.JoinApp, Table: "User"}},
	}

	built, err := newBuilder(t, "ansi").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "Comment"`, built.SQL)
}

func TestBuildAntiJoin(t *testing.T) {
	tq := &core.TableQuery{
		Table: "Moment",
		Op:    core.OpSelect,
		Joins: []core.Join{{Kind: core.JoinAnti, Table: "Comment", Key: "momentId"}},
	}

	built, err := newBuilder(t, "ansi").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "Moment" LEFT JOIN "Comment" ON "Comment"."momentId" = "Moment"."id" WHERE "Comment"."momentId" IS NULL`, built.SQL)
}

func TestBuildGroupHaving(t *testing.T) {
	tq := &core.TableQuery{
		Table:   "Order",
		Op:      core.OpSelect,
		Columns: []string{"userId", "COUNT(*):total", "AVG(amount):avgAmount"},
		Group:   []string{"userId"},
		Having:  []core.Condition{{Field: "COUNT(*)", Op: core.OpGt, Value: 3}},
	}

	built, err := newBuilder(t, "ansi").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "userId", COUNT(*) AS "total", AVG("amount") AS "avgAmount" FROM "Order" GROUP BY "userId" HAVING COUNT(*) > ?`, built.SQL)
	assert.Equal(t, []any{3}, built.Params)
}

func TestBuildSubquery(t *testing.T) {
	tq := &core.TableQuery{
		Table: "User",
		Op:    core.OpSelect,
		Conditions: []core.Condition{{
			Field: "id",
			Op:    core.OpIn,
			Value: &core.Subquery{
				From:       "Comment",
				Columns:    []string{"userId"},
				Conditions: []core.Condition{{Field: "momentId", Op: core.OpEq, Value: 12}},
			},
		}},
	}

	built, err := newBuilder(t, "ansi").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "User" WHERE "id" IN (SELECT "userId" FROM "Comment" WHERE "momentId" = ?)`, built.SQL)
	assert.Equal(t, []any{12}, built.Params)
}

func TestBuildSubqueryRange(t *testing.T) {
	tq := &core.TableQuery{
		Table: "User",
		Op:    core.OpSelect,
		Conditions: []core.Condition{{
			Field: "age",
			Op:    core.OpGt,
			Value: &core.Subquery{
				Range:   core.RangeAny,
				From:    "User",
				Columns: []string{"age"},
			},
		}},
	}

	built, err := newBuilder(t, "ansi").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "User" WHERE "age" > ANY (SELECT "age" FROM "User")`, built.SQL)
}

func TestBuildInsert(t *testing.T) {
	tq := &core.TableQuery{
		Table:   "User",
		Op:      core.OpInsert,
		Payload: map[string]any{"name": "张三", "age": 25},
	}

	built, err := newBuilder(t, "ansi").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "User" ("age", "name") VALUES (?, ?)`, built.SQL)
	assert.Equal(t, []any{25, "张三"}, built.Params)
}

func TestBuildBatchInsert(t *testing.T) {
	tq := &core.TableQuery{
		Table: "Comment",
		Op:    core.OpInsert,
		PayloadRows: []map[string]any{
			{"content": "a", "userId": 1},
			{"content": "b", "userId": 2},
		},
	}

	built, err := newBuilder(t, "ansi").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "Comment" ("content", "userId") VALUES (?, ?), (?, ?)`, built.SQL)
	assert.Equal(t, []any{"a", 1, "b", 2}, built.Params)
}

func TestBuildUpdate(t *testing.T) {
	tq := &core.TableQuery{
		Table:      "User",
		Op:         core.OpUpdate,
		Payload:    map[string]any{"name": "Grace"},
		Conditions: []core.Condition{{Field: "id", Op: core.OpEq, Value: 7}},
	}

	built, err := newBuilder(t, "ansi").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "User" SET "name" = ? WHERE "id" = ?`, built.SQL)
	assert.Equal(t, []any{"Grace", 7}, built.Params)
}

func TestBuildUpdateWithoutScopeFails(t *testing.T) {
	tq := &core.TableQuery{Table: "User", Op: core.OpUpdate, Payload: map[string]any{"name": "x"}}
	_, err := newBuilder(t, "ansi").Build(tq)
	require.Error(t, err)
	assert.Equal(t, core.KindValidation, core.KindOf(err))
}

func TestBuildDelete(t *testing.T) {
	tq := &core.TableQuery{
		Table:      "Comment",
		Op:         core.OpDelete,
		Conditions: []core.Condition{{Field: "id", Op: core.OpIn, Value: []any{100, 110}}},
	}

	built, err := newBuilder(t, "ansi").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "Comment" WHERE "id" IN (?, ?)`, built.SQL)
	assert.Equal(t, []any{100, 110}, built.Params)
}

func TestBuildDeleteWithoutScopeFails(t *testing.T) {
	tq := &core.TableQuery{Table: "Comment", Op: core.OpDelete}
	_, err := newBuilder(t, "ansi").Build(tq)
	require.Error(t, err)
}

func TestBuildCount(t *testing.T) {
	tq := &core.TableQuery{
		Table:      "User",
		Op:         core.OpSelect,
		Count:      10,
		Order:      []core.OrderSpec{{Field: "id", Direction: core.OrderDesc}},
		Conditions: []core.Condition{{Field: "sex", Op: core.OpEq, Value: 0}},
	}

	built, err := newBuilder(t, "ansi").BuildCount(tq)
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "User" WHERE "sex" = ?`, built.SQL)
	assert.Equal(t, []any{0}, built.Params)
}

func TestBuildUnresolvedReferenceFails(t *testing.T) {
	tq := &core.TableQuery{
		Table: "Order",
		Op:    core.OpSelect,
		Conditions: []core.Condition{{
			Field: "receiveId",
			Op:    core.OpEq,
			Value: core.Reference{OwnerField: "receiveId", Path: "/receive/id"},
		}},
	}

	_, err := newBuilder(t, "ansi").Build(tq)
	require.Error(t, err)
	assert.Equal(t, core.KindNotExist, core.KindOf(err))
}

func TestBuildSchemaAndAlias(t *testing.T) {
	tq := &core.TableQuery{
		Table:  "User",
		Alias:  "author",
		Schema: "app",
		Op:     core.OpSelect,
	}

	built, err := newBuilder(t, "ansi").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "app"."User" AS "author"`, built.SQL)
}

func TestBuildExplainPrefix(t *testing.T) {
	tq := &core.TableQuery{
		Table:      "User",
		Op:         core.OpSelect,
		Explain:    true,
		Conditions: []core.Condition{{Field: "id", Op: core.OpEq, Value: 1}},
	}

	built, err := newBuilder(t, "ansi").Build(tq)
	require.NoError(t, err)
	assert.Equal(t, `EXPLAIN SELECT * FROM "User" WHERE "id" = ?`, built.SQL)
}

func TestRenderLiteral(t *testing.T) {
	tq := &core.TableQuery{
		Table: "User",
		Op:    core.OpSelect,
		Conditions: []core.Condition{
			{Field: "name", Op: core.OpEq, Value: "O'Brien"},
			{Field: "id", Op: core.OpIn, Value: []any{1, 2}},
		},
	}

	sql, err := newBuilder(t, "ansi").Render(tq)
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "User" WHERE "name" = 'O''Brien' AND "id" IN (1, 2)`, sql)
}

func TestLiteral(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, "NULL"},
		{true, "TRUE"},
		{false, "FALSE"},
		{"a'b", "'a''b'"},
		{42, "42"},
		{float64(3.5), "3.5"},
		{[]any{1, "x"}, "(1, 'x')"},
		{map[string]any{"k": 1}, `'{"k":1}'`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Literal(tt.in))
	}
}

func TestBuildUnknownDialect(t *testing.T) {
	_, err := New("dbase", core.DefaultLimits(), nil)
	require.Error(t, err)
}

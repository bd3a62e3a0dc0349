package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowscope/flowscope/dialect"
)

func TestParseSimpleSelect(t *testing.T) {
	stmt := Parse("SELECT id, name FROM users WHERE active = true", dialect.Postgres)
	sel, ok := stmt.(*Select)
	require.True(t, ok, "expected *Select, got %T", stmt)
	require.Len(t, sel.SelectExprs, 2)
	require.Len(t, sel.From, 1)
	require.NotNil(t, sel.From[0].Table)
	require.Equal(t, "users", sel.From[0].Table.Qualified())
	require.NotNil(t, sel.Where, "expected WHERE clause")
}

func TestParseJoin(t *testing.T) {
	stmt := Parse("SELECT o.id FROM orders o JOIN users u ON o.user_id = u.id", dialect.Postgres)
	sel, ok := stmt.(*Select)
	require.True(t, ok, "expected *Select, got %T", stmt)
	require.Len(t, sel.From, 1)
	require.True(t, sel.From[0].HasJoin)
	require.Equal(t, InnerJoin, sel.From[0].JoinKind)
	require.NotNil(t, sel.From[0].JoinOn)
}

func TestParseCTE(t *testing.T) {
	stmt := Parse("WITH recent AS (SELECT id FROM orders) SELECT id FROM recent", dialect.Postgres)
	sel, ok := stmt.(*Select)
	require.True(t, ok, "expected *Select, got %T", stmt)
	require.Len(t, sel.With, 1)
	require.Equal(t, "recent", sel.With[0].Name)
}

func TestParseSelectExprSpanAnchorsToItsOwnTokens(t *testing.T) {
	sql := "SELECT id, total + 1 AS bumped FROM orders"
	stmt := Parse(sql, dialect.Postgres)
	sel, ok := stmt.(*Select)
	require.True(t, ok, "expected *Select, got %T", stmt)
	require.Len(t, sel.SelectExprs, 2)
	for _, se := range sel.SelectExprs {
		require.True(t, se.Span.Valid())
		require.True(t, stmt.Span().Contains(se.Span))
	}
	first := sel.SelectExprs[0]
	require.Equal(t, "id", sql[first.Span.Start:first.Span.End])
}

func TestParseCTESpanCoversNameThroughClosingParen(t *testing.T) {
	sql := "WITH recent AS (SELECT id FROM orders) SELECT id FROM recent"
	stmt := Parse(sql, dialect.Postgres)
	sel, ok := stmt.(*Select)
	require.True(t, ok, "expected *Select, got %T", stmt)
	require.Len(t, sel.With, 1)
	cte := sel.With[0]
	require.True(t, cte.Span.Valid())
	require.True(t, stmt.Span().Contains(cte.Span))
	require.Equal(t, "recent AS (SELECT id FROM orders)", sql[cte.Span.Start:cte.Span.End])
}

func TestParseTableNameSpanAnchorsToTableToken(t *testing.T) {
	sql := "SELECT id FROM orders"
	stmt := Parse(sql, dialect.Postgres)
	sel, ok := stmt.(*Select)
	require.True(t, ok, "expected *Select, got %T", stmt)
	require.NotNil(t, sel.From[0].Table)
	require.Equal(t, "orders", sql[sel.From[0].Table.Span().Start:sel.From[0].Table.Span().End])
}

func TestParseUnion(t *testing.T) {
	stmt := Parse("SELECT id FROM a UNION ALL SELECT id FROM b", dialect.Postgres)
	op, ok := stmt.(*SetOperation)
	require.True(t, ok, "expected *SetOperation, got %T", stmt)
	require.Equal(t, UnionAll, op.Op)
}

func TestParseCreateTable(t *testing.T) {
	stmt := Parse(`CREATE TABLE public.orders (
		id INTEGER PRIMARY KEY,
		user_id INTEGER NOT NULL REFERENCES public.users(id),
		total NUMERIC(10,2) DEFAULT 0,
		FOREIGN KEY (user_id) REFERENCES public.users(id)
	)`, dialect.Postgres)
	ct, ok := stmt.(*CreateTable)
	require.True(t, ok, "expected *CreateTable, got %T", stmt)
	require.Len(t, ct.Columns, 3)
	require.True(t, ct.Columns[0].PrimaryKey, "expected id to be primary key")
	require.NotNil(t, ct.Columns[1].References, "expected inline REFERENCES on user_id")
	require.Len(t, ct.Constraints, 1)
	require.Equal(t, ConstraintForeignKey, ct.Constraints[0].Kind)
}

func TestParseCreateViewAsSelect(t *testing.T) {
	stmt := Parse("CREATE VIEW active_users AS SELECT id, name FROM users WHERE active = true", dialect.Postgres)
	cv, ok := stmt.(*CreateView)
	require.True(t, ok, "expected *CreateView, got %T", stmt)
	require.NotNil(t, cv.Definition, "expected a view definition")
}

func TestParseInsertSelect(t *testing.T) {
	stmt := Parse("INSERT INTO archived_orders (id, total) SELECT id, total FROM orders WHERE closed = true", dialect.Postgres)
	ins, ok := stmt.(*InsertStatement)
	require.True(t, ok, "expected *InsertStatement, got %T", stmt)
	require.NotNil(t, ins.Select, "expected INSERT ... SELECT form")
}

func TestParseInsertValues(t *testing.T) {
	stmt := Parse("INSERT INTO t (a, b) VALUES (1, 'x'), (2, 'y')", dialect.Postgres)
	ins, ok := stmt.(*InsertStatement)
	require.True(t, ok, "expected *InsertStatement, got %T", stmt)
	require.Len(t, ins.Values, 2)
}

func TestParseAggregateAndCase(t *testing.T) {
	stmt := Parse(`SELECT user_id, SUM(CASE WHEN active THEN 1 ELSE 0 END) AS active_count
		FROM orders GROUP BY user_id HAVING SUM(total) > 100`, dialect.Postgres)
	sel, ok := stmt.(*Select)
	require.True(t, ok, "expected *Select, got %T", stmt)
	require.Len(t, sel.GroupBy, 1)
	require.NotNil(t, sel.Having)
	call, ok := sel.SelectExprs[1].Expr.(*FuncCall)
	require.True(t, ok, "expected SUM(...) call, got %+v", sel.SelectExprs[1].Expr)
	require.Equal(t, "SUM", call.Name)
}

func TestParseWindowFunction(t *testing.T) {
	stmt := Parse("SELECT ROW_NUMBER() OVER (PARTITION BY user_id ORDER BY created_at) FROM events", dialect.Postgres)
	sel, ok := stmt.(*Select)
	require.True(t, ok, "expected *Select, got %T", stmt)
	call, ok := sel.SelectExprs[0].Expr.(*FuncCall)
	require.True(t, ok, "expected a windowed call, got %+v", sel.SelectExprs[0].Expr)
	require.NotNil(t, call.Over)
}

func TestParseErrorFallsBackToRawStatement(t *testing.T) {
	stmt := Parse("SELEKT * FRM nowhere", dialect.Postgres)
	raw, ok := stmt.(*RawStatement)
	require.True(t, ok, "expected *RawStatement fallback, got %T", stmt)
	require.Error(t, raw.Err, "expected RawStatement to carry the parse error")
	require.False(t, raw.ValidSyntax, "expected genuinely malformed SQL not to validate against pg_query_go")
}

func TestParseUnsupportedConstructValidatesAgainstPgQuery(t *testing.T) {
	// CREATE POLICY is valid Postgres DDL this grammar doesn't model, so it
	// falls back to *RawStatement, but pg_query_go's real Postgres grammar
	// should still confirm the text is syntactically valid SQL.
	stmt := Parse(`CREATE POLICY p ON accounts USING (owner_id = current_user_id())`, dialect.Postgres)
	raw, ok := stmt.(*RawStatement)
	require.True(t, ok, "expected *RawStatement fallback, got %T", stmt)
	require.True(t, raw.ValidSyntax, "expected pg_query_go to validate this as syntactically valid Postgres SQL")
}

func TestSplitStatements(t *testing.T) {
	pieces := SplitStatements("SELECT 1; SELECT 2; ", dialect.Postgres)
	require.Len(t, pieces, 2)
}

func TestSplitMarginComments(t *testing.T) {
	query, comments := SplitMarginComments("/* lead */ SELECT 1 /* trail */")
	require.Equal(t, "SELECT 1", query)
	require.NotEmpty(t, comments.Leading)
	require.NotEmpty(t, comments.Trailing)
}

package expr

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowscope/flowscope/dialect"
	"github.com/flowscope/flowscope/parser"
	"github.com/flowscope/flowscope/schema"
	"github.com/flowscope/flowscope/typesystem"
)

func newScope(t *testing.T) (*Scope, *schema.Registry) {
	t.Helper()
	reg := schema.New(&schema.Metadata{CaseSensitivity: dialect.Lower, AllowImplied: true}, dialect.Postgres)
	reg.RegisterImplied("orders", []schema.ColumnSchema{
		{Name: "id", DataType: "integer", HasDataType: true},
		{Name: "user_id", DataType: "integer", HasDataType: true},
		{Name: "total", DataType: "numeric(10,2)", HasDataType: true},
	}, false, "create_table", 0)
	norm := dialect.NewNormalizer(dialect.Postgres, dialect.Lower)
	scope := NewScope(reg, norm)
	scope.Bind("orders", "orders")
	scope.Bind("o", "orders")
	return scope, reg
}

func parseExpr(t *testing.T, src string) parser.Expr {
	t.Helper()
	stmt := parser.Parse("SELECT "+src+" FROM orders o", dialect.Postgres)
	sel, ok := stmt.(*parser.Select)
	require.True(t, ok, "expected *parser.Select, got %T", stmt)
	return sel.SelectExprs[0].Expr
}

func TestAnalyzeDirectColumn(t *testing.T) {
	scope, _ := newScope(t)
	a := &Analyzer{StatementIndex: 0}
	result := a.Analyze(parseExpr(t, "o.total"), scope)
	require.Equal(t, DirectColumn, result.Classification)
	require.True(t, result.HasType)
	require.Equal(t, typesystem.Numeric, result.Type)
	require.Len(t, result.References, 1)
	require.Equal(t, "total", result.References[0].Column)
}

func TestAnalyzeUnknownColumnIssue(t *testing.T) {
	scope, _ := newScope(t)
	a := &Analyzer{StatementIndex: 2}
	result := a.Analyze(parseExpr(t, "o.nonexistent"), scope)
	require.Len(t, result.Issues, 1)
	require.Equal(t, "UNKNOWN_COLUMN", result.Issues[0].Code)
}

func TestAnalyzeDerivedArithmetic(t *testing.T) {
	scope, _ := newScope(t)
	a := &Analyzer{}
	result := a.Analyze(parseExpr(t, "o.total + 1"), scope)
	require.Equal(t, Derived, result.Classification)
	require.True(t, result.HasType)
	require.Equal(t, typesystem.Numeric, result.Type)
}

func TestAnalyzeAggregate(t *testing.T) {
	scope, _ := newScope(t)
	a := &Analyzer{}
	result := a.Analyze(parseExpr(t, "SUM(o.total)"), scope)
	require.Equal(t, Aggregated, result.Classification)
}

func TestAnalyzeWindowFunction(t *testing.T) {
	scope, _ := newScope(t)
	a := &Analyzer{}
	result := a.Analyze(parseExpr(t, "ROW_NUMBER() OVER (PARTITION BY o.user_id)"), scope)
	require.Equal(t, Windowed, result.Classification)
}

func TestAnalyzeTypeMismatchComparison(t *testing.T) {
	scope, _ := newScope(t)
	a := &Analyzer{}
	result := a.Analyze(parseExpr(t, "o.total = 'abc'"), scope)
	found := false
	for _, iss := range result.Issues {
		if iss.Code == "TYPE_MISMATCH" {
			found = true
		}
	}
	require.True(t, found, "expected TYPE_MISMATCH issue, got %+v", result.Issues)
}

func TestAnalyzeCaseExprWidensBranchTypes(t *testing.T) {
	scope, _ := newScope(t)
	a := &Analyzer{}
	result := a.Analyze(parseExpr(t, "CASE WHEN o.id = 1 THEN o.id ELSE o.total END"), scope)
	require.True(t, result.HasType)
	require.Equal(t, typesystem.Numeric, result.Type)
}

func TestAnalyzeConstant(t *testing.T) {
	scope, _ := newScope(t)
	a := &Analyzer{}
	result := a.Analyze(parseExpr(t, "42"), scope)
	require.Equal(t, Constant, result.Classification)
	require.True(t, result.HasType)
	require.Equal(t, typesystem.Integer, result.Type)
}

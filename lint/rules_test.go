package lint

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowscope/flowscope/dialect"
	"github.com/flowscope/flowscope/issue"
	"github.com/flowscope/flowscope/parser"
	"github.com/flowscope/flowscope/schema"
)

func testRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.New(&schema.Metadata{CaseSensitivity: dialect.Lower, AllowImplied: true}, dialect.Postgres)
	reg.RegisterImplied("orders", []schema.ColumnSchema{
		{Name: "id", DataType: "integer", HasDataType: true},
		{Name: "user_id", DataType: "integer", HasDataType: true},
		{Name: "total", DataType: "integer", HasDataType: true},
	}, false, "create_table", 0)
	reg.RegisterImplied("users", []schema.ColumnSchema{
		{Name: "id", DataType: "integer", HasDataType: true},
		{Name: "name", DataType: "text", HasDataType: true},
	}, false, "create_table", 0)
	return reg
}

func run(t *testing.T, rule Rule, sql string) []issue.Issue {
	t.Helper()
	stmt := parser.Parse(sql, dialect.Postgres)
	ctx := &Context{
		SQL:            sql,
		Span:           issue.Span{Start: 0, End: len(sql)},
		StatementIndex: 0,
		Dialect:        dialect.Postgres,
		Statement:      stmt,
		Registry:       testRegistry(t),
	}
	return rule.Check(ctx)
}

func codesOf(issues []issue.Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Code
	}
	return out
}

func TestDistinctWithGroupByFlags(t *testing.T) {
	issues := run(t, &DistinctWithGroupBy{}, "SELECT DISTINCT id FROM orders GROUP BY id")
	require.Len(t, issues, 1, "got %v", codesOf(issues))
}

func TestDistinctWithGroupByIgnoresPlainDistinct(t *testing.T) {
	issues := run(t, &DistinctWithGroupBy{}, "SELECT DISTINCT id FROM orders")
	require.Empty(t, issues, "got %v", codesOf(issues))
}

func TestCountOneShouldBeStarFlags(t *testing.T) {
	issues := run(t, &CountOneShouldBeStar{}, "SELECT COUNT(1) FROM orders")
	require.Len(t, issues, 1, "got %v", codesOf(issues))
}

func TestCountOneShouldBeStarIgnoresCountStar(t *testing.T) {
	issues := run(t, &CountOneShouldBeStar{}, "SELECT COUNT(*) FROM orders")
	require.Empty(t, issues, "got %v", codesOf(issues))
}

func TestCaseElseNullRedundantFlags(t *testing.T) {
	issues := run(t, &CaseElseNullRedundant{}, "SELECT CASE WHEN id > 0 THEN 1 ELSE NULL END FROM orders")
	require.Len(t, issues, 1, "got %v", codesOf(issues))
}

func TestNullComparisonShouldUseIsFlags(t *testing.T) {
	issues := run(t, &NullComparisonShouldUseIs{}, "SELECT id FROM orders WHERE total = NULL")
	require.Len(t, issues, 1, "got %v", codesOf(issues))
}

func TestNullComparisonShouldUseIsIgnoresIsNull(t *testing.T) {
	issues := run(t, &NullComparisonShouldUseIs{}, "SELECT id FROM orders WHERE total IS NULL")
	require.Empty(t, issues, "got %v", codesOf(issues))
}

func TestReferencesQualificationFlagsBareColumn(t *testing.T) {
	issues := run(t, &ReferencesQualification{}, "SELECT id FROM orders o JOIN users u ON o.user_id = u.id")
	require.Len(t, issues, 1, `expected 1 issue for bare "id", got %v`, codesOf(issues))
}

func TestReferencesQualificationIgnoresSingleSource(t *testing.T) {
	issues := run(t, &ReferencesQualification{}, "SELECT id FROM orders")
	require.Empty(t, issues, "got %v", codesOf(issues))
}

func TestUnusedTableAliasFlags(t *testing.T) {
	issues := run(t, &UnusedTableAlias{}, "SELECT o.id FROM orders o CROSS JOIN users u")
	require.Len(t, issues, 1, `expected 1 issue for unused alias "u", got %v`, codesOf(issues))
}

func TestUnusedTableAliasIgnoresUsedAlias(t *testing.T) {
	issues := run(t, &UnusedTableAlias{}, "SELECT o.id, u.name FROM orders o JOIN users u ON o.user_id = u.id")
	require.Empty(t, issues, "got %v", codesOf(issues))
}

func TestAliasShadowsKnownTableFlags(t *testing.T) {
	issues := run(t, &AliasShadowsKnownTable{}, "SELECT id FROM orders users")
	require.Len(t, issues, 1, "got %v", codesOf(issues))
}

func TestRedundantSelfAliasFlags(t *testing.T) {
	issues := run(t, &RedundantSelfAlias{}, "SELECT id AS id FROM orders")
	require.Len(t, issues, 1, "got %v", codesOf(issues))
}

func TestRedundantSelfAliasIgnoresRename(t *testing.T) {
	issues := run(t, &RedundantSelfAlias{}, "SELECT id AS order_id FROM orders")
	require.Empty(t, issues, "got %v", codesOf(issues))
}

func TestReservedKeywordAliasFlags(t *testing.T) {
	issues := run(t, &ReservedKeywordAlias{}, "SELECT id AS \"select\" FROM orders AS \"where\"")
	require.NotEmpty(t, issues, "expected at least one issue, got none")
}

func TestRedundantCastFlags(t *testing.T) {
	issues := run(t, &RedundantCast{}, "SELECT CAST(total AS integer) FROM orders")
	require.Len(t, issues, 1, "got %v", codesOf(issues))
}

func TestRedundantCastIgnoresRealCast(t *testing.T) {
	issues := run(t, &RedundantCast{}, "SELECT CAST(total AS text) FROM orders")
	require.Empty(t, issues, "got %v", codesOf(issues))
}

func TestJinjaPaddingFlagsUnpadded(t *testing.T) {
	issues := run(t, &JinjaPadding{}, "SELECT id FROM {%if is_incremental()%} orders {%endif%}")
	require.Len(t, issues, 2, "got %v", codesOf(issues))
}

func TestJinjaPaddingIgnoresPadded(t *testing.T) {
	issues := run(t, &JinjaPadding{}, "SELECT id FROM {% if is_incremental() %} orders {% endif %}")
	require.Empty(t, issues, "got %v", codesOf(issues))
}

func TestTrailingCommaBeforeFromFlags(t *testing.T) {
	issues := run(t, &TrailingCommaBeforeFrom{}, "SELECT id, FROM orders")
	require.Len(t, issues, 1, "got %v", codesOf(issues))
}

func TestCommaSpacingFlags(t *testing.T) {
	issues := run(t, &CommaSpacing{}, "SELECT id,total FROM orders")
	require.Len(t, issues, 1, "got %v", codesOf(issues))
}

func TestCommaSpacingIgnoresStringLiteralCommas(t *testing.T) {
	issues := run(t, &CommaSpacing{}, "SELECT id FROM orders WHERE total > 0 AND id = 'a,b'")
	require.Empty(t, issues, "got %v", codesOf(issues))
}

func TestTrailingWhitespaceFlags(t *testing.T) {
	issues := run(t, &TrailingWhitespace{}, "SELECT id FROM orders  \nWHERE id > 0")
	require.Len(t, issues, 1, "got %v", codesOf(issues))
}

func TestTrailingNewlineRequiredFlagsMissing(t *testing.T) {
	issues := run(t, &TrailingNewlineRequired{}, "SELECT id FROM orders")
	require.Len(t, issues, 1, "got %v", codesOf(issues))
}

func TestTrailingNewlineRequiredAcceptsExactlyOne(t *testing.T) {
	issues := run(t, &TrailingNewlineRequired{}, "SELECT id FROM orders\n")
	require.Empty(t, issues, "got %v", codesOf(issues))
}

func TestRegistryFilterExcludesDisabledCode(t *testing.T) {
	reg := NewRegistry(DefaultRules()...)
	disabled := map[string]bool{"LINT_ST_001": true}
	for _, rule := range reg.Filter(disabled) {
		require.NotEqual(t, "LINT_ST_001", rule.Code(), "expected LINT_ST_001 to be filtered out")
	}
}

func TestRegistrySkipsASTRulesOnRawStatement(t *testing.T) {
	reg := NewRegistry(DefaultRules()...)
	ctx := &Context{
		SQL:            "this is not valid sql at all %%%",
		StatementIndex: 0,
		Dialect:        dialect.Postgres,
		Statement:      parser.Parse("this is not valid sql at all %%%", dialect.Postgres),
		Registry:       testRegistry(t),
	}
	// Should not panic despite every AST-requiring rule being asked to run
	// against a statement that failed to parse as anything but raw text.
	_ = reg.Check(ctx, nil)
}

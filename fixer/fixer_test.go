package fixer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowscope/flowscope/dialect"
	"github.com/flowscope/flowscope/schema"
)

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.New(&schema.Metadata{CaseSensitivity: dialect.Lower, AllowImplied: true}, dialect.Postgres)
	reg.RegisterImplied("orders", []schema.ColumnSchema{
		{Name: "id", DataType: "integer", HasDataType: true},
		{Name: "total", DataType: "integer", HasDataType: true},
	}, false, "create_table", 0)
	return reg
}

func TestApplyLintFixesFixesCommaSpacing(t *testing.T) {
	out := ApplyLintFixes("SELECT id,total FROM orders\n", dialect.Postgres, newRegistry(t), nil)
	require.True(t, out.Changed)
	require.Contains(t, out.SQL, "id, total")
	require.Equal(t, 1, out.Counts.Get("LINT_CP_002"))
}

func TestApplyLintFixesFixesTrailingCommaBeforeFrom(t *testing.T) {
	out := ApplyLintFixes("SELECT id, FROM orders\n", dialect.Postgres, newRegistry(t), nil)
	require.True(t, out.Changed)
	require.NotContains(t, out.SQL, ", FROM")
}

func TestApplyLintFixesFixesTrailingNewline(t *testing.T) {
	out := ApplyLintFixes("SELECT id FROM orders", dialect.Postgres, newRegistry(t), nil)
	require.True(t, out.Changed)
	require.True(t, len(out.SQL) > 0 && out.SQL[len(out.SQL)-1] == '\n')
	require.False(t, len(out.SQL) > 1 && out.SQL[len(out.SQL)-2] == '\n')
}

func TestApplyLintFixesFixesRedundantSelfAlias(t *testing.T) {
	out := ApplyLintFixes("SELECT id AS id FROM orders\n", dialect.Postgres, newRegistry(t), nil)
	require.Contains(t, out.SQL, "SELECT id FROM")
}

func TestApplyLintFixesFixesNullComparison(t *testing.T) {
	out := ApplyLintFixes("SELECT id FROM orders WHERE total = NULL\n", dialect.Postgres, newRegistry(t), nil)
	require.Contains(t, out.SQL, "total IS NULL")
}

func TestApplyLintFixesFixesCountOneToStar(t *testing.T) {
	out := ApplyLintFixes("SELECT COUNT(1) FROM orders\n", dialect.Postgres, newRegistry(t), nil)
	require.True(t, out.Changed)
	require.Contains(t, out.SQL, "COUNT(*)")
	require.NotContains(t, out.SQL, "COUNT(1)")
	require.Equal(t, 1, out.Counts.Get("LINT_ST_002"))
}

func TestApplyLintFixesFixesCaseElseNullRedundant(t *testing.T) {
	out := ApplyLintFixes("SELECT CASE WHEN id > 0 THEN 1 ELSE NULL END FROM orders\n", dialect.Postgres, newRegistry(t), nil)
	require.True(t, out.Changed)
	require.Contains(t, out.SQL, "THEN 1 END")
	require.NotContains(t, out.SQL, "ELSE NULL")
	require.Equal(t, 1, out.Counts.Get("LINT_ST_003"))
}

func TestApplyLintFixesFixesAroundMarginComments(t *testing.T) {
	out := ApplyLintFixes("/* owner: team-orders */\nSELECT id,total FROM orders\n", dialect.Postgres, newRegistry(t), nil)
	require.True(t, out.Changed)
	require.Contains(t, out.SQL, "/* owner: team-orders */")
	require.Contains(t, out.SQL, "id, total")
}

func TestApplyLintFixesSkipsDocumentWithComments(t *testing.T) {
	out := ApplyLintFixes("SELECT id,total FROM orders -- trailing comment\n", dialect.Postgres, newRegistry(t), nil)
	require.True(t, out.SkippedDueToComments)
	require.False(t, out.Changed)
}

func TestApplyLintFixesNoopOnCleanSQL(t *testing.T) {
	clean := "SELECT id, total FROM orders\n"
	out := ApplyLintFixes(clean, dialect.Postgres, newRegistry(t), nil)
	require.False(t, out.Changed)
	require.Equal(t, clean, out.SQL)
}

func TestApplyLintFixesRespectsDisabledRules(t *testing.T) {
	out := ApplyLintFixes("SELECT id,total FROM orders\n", dialect.Postgres, newRegistry(t), []string{"LINT_CP_002"})
	require.NotContains(t, out.SQL, "id, total")
}

func TestApplyLintFixesIsIdempotent(t *testing.T) {
	first := ApplyLintFixes("SELECT id,total FROM orders", dialect.Postgres, newRegistry(t), nil)
	second := ApplyLintFixes(first.SQL, dialect.Postgres, newRegistry(t), nil)
	require.False(t, second.Changed)
	require.Equal(t, first.SQL, second.SQL)
}

func TestCountsTotalAndCodes(t *testing.T) {
	var c Counts
	c.Add("LINT_CP_002", 2)
	c.Add("LINT_LT_002", 1)
	c.Add("LINT_AM_001", 0)
	require.Equal(t, 3, c.Total())
	require.Len(t, c.Codes(), 2)
}

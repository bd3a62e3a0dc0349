package analyze

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowscope/flowscope/dialect"
	"github.com/flowscope/flowscope/issue"
	"github.com/flowscope/flowscope/lineage"
)

func TestRunBuildsLineageForSimpleSelect(t *testing.T) {
	result := Run(Request{SQL: "SELECT id, total FROM orders", Dialect: dialect.Postgres})
	require.Len(t, result.Statements, 1)
	require.Equal(t, "SELECT", result.Statements[0].StatementType)
	require.NotNil(t, result.Statements[0].Graph)
	require.NotEmpty(t, result.Statements[0].Graph.Nodes)
}

func TestRunForwardDeclaresLaterTable(t *testing.T) {
	sql := "SELECT id FROM later_table;\nCREATE TABLE later_table (id integer)"
	result := Run(Request{SQL: sql, Dialect: dialect.Postgres})
	for _, iss := range result.Issues {
		require.NotEqual(t, issue.CodeUnresolvedReference, iss.Code, "unexpected issue: %+v", iss)
	}
}

func TestRunSkipsLintWhenDisabled(t *testing.T) {
	result := Run(Request{SQL: "SELECT id,total FROM orders", Dialect: dialect.Postgres})
	for _, iss := range result.Issues {
		require.False(t, len(iss.Code) >= 5 && iss.Code[:5] == "LINT_", "unexpected lint issue: %+v", iss)
	}
}

func TestRunEmitsLintIssuesWhenEnabled(t *testing.T) {
	result := Run(Request{
		SQL:     "SELECT id,total FROM orders\n",
		Dialect: dialect.Postgres,
		Options: &Options{Lint: &LintConfig{Enabled: true}},
	})
	found := false
	for _, iss := range result.Issues {
		if iss.Code == "LINT_CP_002" {
			found = true
		}
	}
	require.True(t, found, "expected a LINT_CP_002 issue, got %+v", result.Issues)
}

func TestRunRespectsDisabledLintRules(t *testing.T) {
	result := Run(Request{
		SQL:     "SELECT id,total FROM orders\n",
		Dialect: dialect.Postgres,
		Options: &Options{Lint: &LintConfig{Enabled: true, DisabledRules: []string{"LINT_CP_002"}}},
	})
	for _, iss := range result.Issues {
		require.NotEqual(t, "LINT_CP_002", iss.Code)
	}
}

func TestRunAddsCrossStatementEdge(t *testing.T) {
	sql := "INSERT INTO staged (id) SELECT id FROM raw;\nSELECT id FROM staged"
	result := Run(Request{SQL: sql, Dialect: dialect.Postgres})
	found := false
	for _, e := range result.GlobalLineage.Edges {
		if e.Kind == lineage.CrossStatement {
			found = true
		}
	}
	require.True(t, found, "expected a cross-statement edge, got %+v", result.GlobalLineage.Edges)
}

func TestRunPerFileStatementIndicesRestart(t *testing.T) {
	result := Run(Request{
		Files: []File{
			{Name: "a.sql", SQL: "SELECT 1;;"},
			{Name: "b.sql", SQL: "SELECT 1;;"},
		},
		Dialect: dialect.Postgres,
		Options: &Options{Lint: &LintConfig{Enabled: true}},
	})
	for _, s := range result.Statements {
		require.Zero(t, s.StatementIndex)
	}
}

func TestRunColumnLineageDisabledStripsColumnNodes(t *testing.T) {
	result := Run(Request{
		SQL:     "SELECT id FROM orders",
		Dialect: dialect.Postgres,
		Options: &Options{EnableColumnLineage: false},
	})
	for _, n := range result.Statements[0].Graph.Nodes {
		require.NotEqual(t, lineage.ColumnNode, n.Kind)
		require.NotEqual(t, lineage.OutputNode, n.Kind)
	}
}

func TestExitCodeZeroWhenNoIssuesAtThreshold(t *testing.T) {
	result := Result{Issues: []issue.Issue{issue.Note("X", "info only")}}
	require.Equal(t, 0, result.ExitCode(issue.Warning))
}

func TestExitCodeOneWhenIssueAtThreshold(t *testing.T) {
	result := Result{Issues: []issue.Issue{issue.Warn("X", "a warning")}}
	require.Equal(t, 1, result.ExitCode(issue.Warning))
}

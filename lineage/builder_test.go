package lineage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowscope/flowscope/dialect"
	"github.com/flowscope/flowscope/issue"
	"github.com/flowscope/flowscope/parser"
	"github.com/flowscope/flowscope/schema"
)

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.New(&schema.Metadata{CaseSensitivity: dialect.Lower, AllowImplied: true}, dialect.Postgres)
	reg.RegisterImplied("orders", []schema.ColumnSchema{
		{Name: "id", DataType: "integer", HasDataType: true},
		{Name: "user_id", DataType: "integer", HasDataType: true},
		{Name: "total", DataType: "numeric(10,2)", HasDataType: true},
	}, false, "create_table", 0)
	reg.RegisterImplied("users", []schema.ColumnSchema{
		{Name: "id", DataType: "integer", HasDataType: true},
		{Name: "name", DataType: "text", HasDataType: true},
	}, false, "create_table", 0)
	return reg
}

func buildGraph(t *testing.T, reg *schema.Registry, sql string, opts Options) *Graph {
	t.Helper()
	stmt := parser.Parse(sql, dialect.Postgres)
	norm := dialect.NewNormalizer(dialect.Postgres, dialect.Lower)
	b := NewBuilder(reg, norm, dialect.Postgres, 0, opts)
	g, _ := b.Build(stmt)
	return g
}

func hasEdgeKind(g *Graph, kind EdgeKind) bool {
	for _, e := range g.Edges {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

func nodeLabels(g *Graph, kind NodeKind) []string {
	var out []string
	for _, n := range g.Nodes {
		if n.Kind == kind {
			out = append(out, n.Label)
		}
	}
	return out
}

func TestBuildSimpleSelectDataFlow(t *testing.T) {
	reg := newRegistry(t)
	g := buildGraph(t, reg, "SELECT id, total FROM orders", Options{})
	require.True(t, hasEdgeKind(g, DataFlow), "expected a DataFlow edge, got %+v", g.Edges)
	require.Len(t, nodeLabels(g, OutputNode), 2)
}

func TestBuildDerivedExpression(t *testing.T) {
	reg := newRegistry(t)
	g := buildGraph(t, reg, "SELECT total + 1 AS bumped FROM orders", Options{})
	require.True(t, hasEdgeKind(g, Derivation), "expected a Derivation edge, got %+v", g.Edges)
}

func TestBuildJoinDependency(t *testing.T) {
	reg := newRegistry(t)
	g := buildGraph(t, reg, "SELECT o.id FROM orders o JOIN users u ON o.user_id = u.id", Options{})
	require.True(t, hasEdgeKind(g, JoinDependency), "expected a JoinDependency edge, got %+v", g.Edges)
	require.Len(t, g.ForeignKeyHints, 2, "expected bidirectional FK hints")
}

func TestBuildCTEOwnership(t *testing.T) {
	reg := newRegistry(t)
	g := buildGraph(t, reg, "WITH recent AS (SELECT id FROM orders) SELECT id FROM recent", Options{})
	require.Len(t, nodeLabels(g, CTENode), 1)
}

func TestBuildHideCTEsStripsNode(t *testing.T) {
	reg := newRegistry(t)
	g := buildGraph(t, reg, "WITH recent AS (SELECT id FROM orders) SELECT id FROM recent", Options{HideCTEs: true})
	require.Len(t, nodeLabels(g, CTENode), 0, "expected CTE node to be stripped")
	require.True(t, hasEdgeKind(g, DataFlow), "expected table-to-output reachability preserved after stripping CTE")
}

func TestBuildSetOperationUnion(t *testing.T) {
	reg := newRegistry(t)
	g := buildGraph(t, reg, "SELECT id FROM orders UNION ALL SELECT id FROM users", Options{})
	require.Len(t, nodeLabels(g, OutputNode), 3, "expected one output per branch plus 1 combined output column")
}

func TestBuildCreateTableAsSelect(t *testing.T) {
	reg := newRegistry(t)
	g := buildGraph(t, reg, "CREATE TABLE archived_orders AS SELECT id, total FROM orders", Options{})
	require.NotEmpty(t, nodeLabels(g, TableNode), "expected a table node for the created target")
	require.True(t, hasEdgeKind(g, DataFlow), "expected DataFlow edges from the select into the new table's columns")
}

func TestBuildInsertSelectPositionalLineage(t *testing.T) {
	reg := newRegistry(t)
	reg.RegisterImplied("archived_orders", []schema.ColumnSchema{
		{Name: "id", DataType: "integer", HasDataType: true},
		{Name: "total", DataType: "numeric(10,2)", HasDataType: true},
	}, false, "create_table", 0)
	g := buildGraph(t, reg, "INSERT INTO archived_orders SELECT id, total FROM orders", Options{})
	require.True(t, hasEdgeKind(g, DataFlow), "expected DataFlow edges into the insert target's columns")
}

func TestBuildStarExpansion(t *testing.T) {
	reg := newRegistry(t)
	g := buildGraph(t, reg, "SELECT * FROM orders", Options{})
	require.Len(t, nodeLabels(g, OutputNode), 3)
}

func TestBuildConstantSelectItemMarkedApproximate(t *testing.T) {
	reg := newRegistry(t)
	stmt := parser.Parse("SELECT 1 AS x", dialect.Postgres)
	norm := dialect.NewNormalizer(dialect.Postgres, dialect.Lower)
	b := NewBuilder(reg, norm, dialect.Postgres, 0, Options{})
	g, issues := b.Build(stmt)

	require.Equal(t, []string{"x"}, nodeLabels(g, OutputNode))
	for _, n := range g.Nodes {
		if n.Kind == OutputNode {
			require.False(t, hasIncomingEdge(g, n.ID), "constant output column should have no incoming edge")
		}
	}
	require.True(t, hasIssueCode(issues, issue.CodeApproximateLineage),
		"constant select item should be flagged approximate rather than silently left without lineage")
}

func TestBuildCTEOfConstantSelectItem(t *testing.T) {
	reg := newRegistry(t)
	stmt := parser.Parse("WITH cte AS (SELECT 1 AS x) SELECT * FROM cte", dialect.Postgres)
	norm := dialect.NewNormalizer(dialect.Postgres, dialect.Lower)
	b := NewBuilder(reg, norm, dialect.Postgres, 0, Options{})
	g, issues := b.Build(stmt)

	// One OutputNode inside the CTE body (the reference-free "1 AS x") and
	// one outside it (the outer SELECT * expansion, which does have an
	// incoming DataFlow edge from the CTE's own column).
	require.Len(t, nodeLabels(g, OutputNode), 2)
	require.True(t, hasIssueCode(issues, issue.CodeApproximateLineage))
}

func TestBuildNodesCarryValidSpans(t *testing.T) {
	reg := newRegistry(t)
	sql := "SELECT o.id, total FROM orders o JOIN users u ON o.user_id = u.id"
	stmt := parser.Parse(sql, dialect.Postgres)
	norm := dialect.NewNormalizer(dialect.Postgres, dialect.Lower)
	b := NewBuilder(reg, norm, dialect.Postgres, 0, Options{})
	g, _ := b.Build(stmt)

	require.NotEmpty(t, g.Nodes)
	for _, n := range g.Nodes {
		require.True(t, n.HasSpan, "node %q (%v) should have a span", n.Label, n.Kind)
		require.True(t, n.Span.Valid(), "node %q (%v) span should satisfy start < end", n.Label, n.Kind)
		require.True(t, stmt.Span().Contains(n.Span), "node %q (%v) span should be contained in the statement span", n.Label, n.Kind)
	}
}

func TestBuildTableNodeSpanAnchorsToTableNameToken(t *testing.T) {
	reg := newRegistry(t)
	sql := "SELECT id FROM orders"
	stmt := parser.Parse(sql, dialect.Postgres)
	norm := dialect.NewNormalizer(dialect.Postgres, dialect.Lower)
	b := NewBuilder(reg, norm, dialect.Postgres, 0, Options{})
	g, _ := b.Build(stmt)

	var found bool
	for _, n := range g.Nodes {
		if n.Kind == TableNode {
			found = true
			require.True(t, n.HasSpan)
			require.Equal(t, "orders", sql[n.Span.Start:n.Span.End])
		}
	}
	require.True(t, found, "expected a table node")
}

func TestBuildUnresolvedTableIssueCarriesTableSpan(t *testing.T) {
	reg := newRegistry(t)
	sql := "SELECT id FROM missing_table"
	stmt := parser.Parse(sql, dialect.Postgres)
	norm := dialect.NewNormalizer(dialect.Postgres, dialect.Lower)
	b := NewBuilder(reg, norm, dialect.Postgres, 0, Options{})
	_, issues := b.Build(stmt)

	var found bool
	for _, iss := range issues {
		if iss.Code == issue.CodeUnresolvedReference {
			found = true
			require.True(t, iss.HasSpan)
			require.Equal(t, "missing_table", sql[iss.Span.Start:iss.Span.End])
		}
	}
	require.True(t, found, "expected an unresolved-reference issue")
}

func hasIncomingEdge(g *Graph, nodeID string) bool {
	for _, e := range g.Edges {
		if e.To == nodeID {
			return true
		}
	}
	return false
}

func hasIssueCode(issues []issue.Issue, code string) bool {
	for _, iss := range issues {
		if iss.Code == code {
			return true
		}
	}
	return false
}

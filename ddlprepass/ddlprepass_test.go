package ddlprepass

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowscope/flowscope/dialect"
	"github.com/flowscope/flowscope/parser"
	"github.com/flowscope/flowscope/schema"
)

func newRegistry(t *testing.T) *schema.Registry {
	t.Helper()
	return schema.New(&schema.Metadata{CaseSensitivity: dialect.Lower, AllowImplied: true}, dialect.Postgres)
}

func TestRunSeedsForwardReferencedTable(t *testing.T) {
	reg := newRegistry(t)
	stmts := []parser.Statement{
		parser.Parse("SELECT id FROM later_table", dialect.Postgres),
		parser.Parse("CREATE TABLE later_table (id integer, name text)", dialect.Postgres),
	}

	require.False(t, reg.IsKnown("later_table"))

	Run(stmts, reg)

	require.True(t, reg.IsKnown("later_table"))
	entry, ok := reg.Get("later_table")
	require.True(t, ok)
	require.Len(t, entry.Table.Columns, 2)
}

func TestRunMarksViewKnown(t *testing.T) {
	reg := newRegistry(t)
	stmts := []parser.Statement{
		parser.Parse("CREATE VIEW v AS SELECT id FROM t", dialect.Postgres),
	}
	Run(stmts, reg)
	require.True(t, reg.IsKnown("v"))
}

func TestRunIgnoresNonDDLStatements(t *testing.T) {
	reg := newRegistry(t)
	stmts := []parser.Statement{
		parser.Parse("SELECT 1", dialect.Postgres),
		parser.Parse("INSERT INTO t (id) VALUES (1)", dialect.Postgres),
	}
	Run(stmts, reg)
	require.False(t, reg.IsKnown("t"))
}

func TestRunCapturesForeignKeyConstraint(t *testing.T) {
	reg := newRegistry(t)
	stmts := []parser.Statement{
		parser.Parse(`CREATE TABLE orders (
			id integer,
			user_id integer,
			FOREIGN KEY (user_id) REFERENCES users(id)
		)`, dialect.Postgres),
	}
	Run(stmts, reg)
	entry, ok := reg.Get("orders")
	require.True(t, ok)

	found := false
	for _, c := range entry.Constraints {
		if c.ConstraintType == schema.ForeignKeyConstraint {
			found = true
		}
	}
	require.True(t, found, "expected a foreign key constraint recorded, got %+v", entry.Constraints)
}

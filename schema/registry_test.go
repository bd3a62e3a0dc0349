package schema

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flowscope/flowscope/dialect"
)

func TestCanonicalizeSimpleName(t *testing.T) {
	meta := &Metadata{
		Tables: []SchemaTable{
			{Schema: "public", HasSchema: true, Name: "users"},
		},
		DefaultSchema: "public", HasDefaultSchema: true,
		AllowImplied: true,
	}
	r := New(meta, dialect.Postgres)
	res := r.CanonicalizeTableReference("users")
	require.Equal(t, "public.users", res.Canonical)
	require.True(t, res.MatchedSchema)
}

func TestCanonicalizeWithSearchPath(t *testing.T) {
	meta := &Metadata{
		Tables: []SchemaTable{
			{Schema: "staging", HasSchema: true, Name: "users"},
			{Schema: "public", HasSchema: true, Name: "orders"},
		},
		SearchPath: []NamespaceHint{
			{Schema: "staging"},
			{Schema: "public"},
		},
		HasSearchPath: true,
		AllowImplied:  true,
	}
	r := New(meta, dialect.Postgres)

	res := r.CanonicalizeTableReference("users")
	require.Equal(t, "staging.users", res.Canonical)
	require.True(t, res.MatchedSchema)

	res = r.CanonicalizeTableReference("orders")
	require.Equal(t, "public.orders", res.Canonical)
	require.True(t, res.MatchedSchema)
}

func TestCanonicalizeUnknownTable(t *testing.T) {
	r := New(nil, dialect.Postgres)
	res := r.CanonicalizeTableReference("unknown_table")
	require.Equal(t, "unknown_table", res.Canonical)
	require.False(t, res.MatchedSchema)
}

func TestRegisterImpliedSchema(t *testing.T) {
	r := New(nil, dialect.Postgres)
	cols := []ColumnSchema{{Name: "id", DataType: "integer", HasDataType: true}, {Name: "name", DataType: "text", HasDataType: true}}

	_, hasIssue := r.RegisterImplied("public.users", cols, false, "CREATE TABLE", 0)
	require.False(t, hasIssue, "expected no conflict issue")

	require.True(t, r.IsKnown("public.users"))
	require.False(t, r.IsImported("public.users"))

	entry, ok := r.Get("public.users")
	require.True(t, ok)
	require.Len(t, entry.Table.Columns, 2)
	require.Equal(t, Implied, entry.Origin)
}

func TestRegisterImpliedConflictWithImported(t *testing.T) {
	meta := &Metadata{
		Tables: []SchemaTable{
			{Schema: "public", HasSchema: true, Name: "users", Columns: []ColumnSchema{
				{Name: "id", DataType: "integer", HasDataType: true},
			}},
		},
		DefaultSchema: "public", HasDefaultSchema: true,
		AllowImplied: true,
	}
	r := New(meta, dialect.Postgres)
	cols := []ColumnSchema{
		{Name: "id", DataType: "integer", HasDataType: true},
		{Name: "email", DataType: "text", HasDataType: true},
	}
	iss, hasIssue := r.RegisterImplied("public.users", cols, false, "CREATE TABLE", 0)
	require.True(t, hasIssue, "expected conflict issue")
	require.NotEmpty(t, iss.Message)
}

func TestRemoveImpliedDoesNotAffectImported(t *testing.T) {
	meta := &Metadata{
		Tables:       []SchemaTable{{Schema: "public", HasSchema: true, Name: "users"}},
		AllowImplied: true,
	}
	r := New(meta, dialect.Postgres)
	r.RemoveImplied("public.users")
	require.True(t, r.IsKnown("public.users"), "imported table should survive RemoveImplied")
}

func TestValidateColumnCaseInsensitive(t *testing.T) {
	meta := &Metadata{
		Tables: []SchemaTable{
			{Schema: "public", HasSchema: true, Name: "users", Columns: []ColumnSchema{
				{Name: "UserName", DataType: "text", HasDataType: true},
			}},
		},
		AllowImplied: true,
	}
	r := New(meta, dialect.Postgres)

	_, hasIssue := r.ValidateColumn("public.users", "username", 0)
	require.False(t, hasIssue, "expected case-insensitive match to suppress issue")

	_, hasIssue = r.ValidateColumn("public.users", "nonexistent", 0)
	require.True(t, hasIssue, "expected unknown column issue")
}

func TestHasNoKnownTables(t *testing.T) {
	r := New(nil, dialect.Postgres)
	require.True(t, r.HasNoKnownTables(), "expected no known tables initially")

	r.MarkTableKnown("public.forward_declared")
	require.True(t, r.HasNoKnownTables(), "expected forward-declared-only registry to still report no known tables")

	meta := &Metadata{Tables: []SchemaTable{{Name: "users"}}, AllowImplied: true}
	r2 := New(meta, dialect.Postgres)
	require.False(t, r2.HasNoKnownTables(), "expected imported table to count as known")
}

func TestSnowflakeUppercaseNormalization(t *testing.T) {
	meta := &Metadata{
		Tables:          []SchemaTable{{Schema: "PUBLIC", HasSchema: true, Name: "USERS"}},
		CaseSensitivity: dialect.Upper,
		AllowImplied:    true,
	}
	r := New(meta, dialect.Snowflake)
	res := r.CanonicalizeTableReference("public.users")
	require.Equal(t, "PUBLIC.USERS", res.Canonical)
	require.True(t, res.MatchedSchema)
}

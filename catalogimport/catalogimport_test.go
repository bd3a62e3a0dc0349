package catalogimport

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/flowscope/flowscope/dialect"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestLoadSQLiteListsTablesAndColumns(t *testing.T) {
	db := openMemoryDB(t)
	_, err := db.Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, total REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)

	meta, err := Load(context.Background(), db, dialect.SQLite, Options{})
	require.NoError(t, err)
	require.Len(t, meta.Tables, 2)

	found := false
	for _, tbl := range meta.Tables {
		if tbl.Name != "orders" {
			continue
		}
		found = true
		require.Len(t, tbl.Columns, 2)
		require.True(t, tbl.Columns[0].IsPrimaryKey)
	}
	require.True(t, found, "expected an orders table in %+v", meta.Tables)
}

func TestLoadRejectsUnsupportedDialect(t *testing.T) {
	db := openMemoryDB(t)
	_, err := Load(context.Background(), db, dialect.BigQuery, Options{})
	require.Error(t, err)
}

func TestLoadEmptyDatabaseReturnsNoTables(t *testing.T) {
	db := openMemoryDB(t)
	meta, err := Load(context.Background(), db, dialect.SQLite, Options{})
	require.NoError(t, err)
	require.Empty(t, meta.Tables)
}

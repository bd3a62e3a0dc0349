package catalogimport

import (
	"context"
	"database/sql"

	"github.com/flowscope/flowscope/schema"
)

// sqliteLoader mirrors sqldef's database/sqlite3 package's reliance
// on sqlite_master plus PRAGMA statements rather than an
// information_schema (SQLite has none), grounded on modernc.org/sqlite as
// the driver the rest of the module's go.mod already carries.
type sqliteLoader struct{}

func (sqliteLoader) tableNames(ctx context.Context, db *sql.DB, opts Options) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (sqliteLoader) tableColumns(ctx context.Context, db *sql.DB, opts Options, table string) (schema.SchemaTable, error) {
	// PRAGMA doesn't accept bind parameters; table names come from
	// sqlite_master above, never from user input, so this is safe to
	// interpolate directly.
	rows, err := db.QueryContext(ctx, `PRAGMA table_info("`+table+`")`)
	if err != nil {
		return schema.SchemaTable{}, err
	}
	defer rows.Close()

	st := schema.SchemaTable{Name: table}
	for rows.Next() {
		var cid int
		var name, dataType string
		var notNull int
		var dfltValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &dataType, &notNull, &dfltValue, &pk); err != nil {
			return schema.SchemaTable{}, err
		}
		st.Columns = append(st.Columns, schema.ColumnSchema{
			Name:         name,
			DataType:     dataType,
			HasDataType:  dataType != "",
			IsPrimaryKey: pk > 0,
		})
	}
	return st, rows.Err()
}

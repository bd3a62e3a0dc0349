package catalogimport

import (
	"context"
	"database/sql"

	"github.com/flowscope/flowscope/schema"
)

// mssqlLoader mirrors sqldef's database/mssql package's per-schema
// scoping, grounded on github.com/microsoft/go-mssqldb as the driver the
// rest of the module's go.mod already carries.
type mssqlLoader struct{}

func (mssqlLoader) schemaFilter(opts Options) string {
	if opts.Schema != "" {
		return opts.Schema
	}
	return "dbo"
}

func (l mssqlLoader) tableNames(ctx context.Context, db *sql.DB, opts Options) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`, l.schemaFilter(opts))
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

func (l mssqlLoader) tableColumns(ctx context.Context, db *sql.DB, opts Options, table string) (schema.SchemaTable, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.COLUMN_NAME, c.DATA_TYPE,
		       CASE WHEN pk.COLUMN_NAME IS NOT NULL THEN 1 ELSE 0 END
		FROM INFORMATION_SCHEMA.COLUMNS c
		LEFT JOIN (
			SELECT kcu.COLUMN_NAME, kcu.TABLE_NAME, kcu.TABLE_SCHEMA
			FROM INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			JOIN INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
			  ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
			WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
		) pk ON pk.TABLE_SCHEMA = c.TABLE_SCHEMA AND pk.TABLE_NAME = c.TABLE_NAME AND pk.COLUMN_NAME = c.COLUMN_NAME
		WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION
	`, l.schemaFilter(opts), table)
	if err != nil {
		return schema.SchemaTable{}, err
	}
	defer rows.Close()

	st := schema.SchemaTable{Schema: l.schemaFilter(opts), HasSchema: true, Name: table}
	for rows.Next() {
		var col schema.ColumnSchema
		var isPK int
		if err := rows.Scan(&col.Name, &col.DataType, &isPK); err != nil {
			return schema.SchemaTable{}, err
		}
		col.HasDataType = col.DataType != ""
		col.IsPrimaryKey = isPK != 0
		st.Columns = append(st.Columns, col)
	}
	return st, rows.Err()
}

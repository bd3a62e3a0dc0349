package catalogimport

import (
	"context"
	"database/sql"

	"github.com/flowscope/flowscope/schema"
)

// postgresLoader mirrors sqldef's database/postgres package's use of
// the target schema filter (Config.TargetSchema), but queries
// information_schema for column metadata instead of dumping DDL via
// pg_get_tabledef-equivalent text.
type postgresLoader struct{}

func (postgresLoader) schemaFilter(opts Options) string {
	if opts.Schema != "" {
		return opts.Schema
	}
	return "public"
}

func (l postgresLoader) tableNames(ctx context.Context, db *sql.DB, opts Options) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
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

func (l postgresLoader) tableColumns(ctx context.Context, db *sql.DB, opts Options, table string) (schema.SchemaTable, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.column_name, c.data_type,
		       EXISTS (
		           SELECT 1
		           FROM information_schema.key_column_usage kcu
		           JOIN information_schema.table_constraints tc
		             ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		           WHERE tc.constraint_type = 'PRIMARY KEY'
		             AND kcu.table_schema = c.table_schema
		             AND kcu.table_name = c.table_name
		             AND kcu.column_name = c.column_name
		       ) AS is_primary_key
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`, l.schemaFilter(opts), table)
	if err != nil {
		return schema.SchemaTable{}, err
	}
	defer rows.Close()

	st := schema.SchemaTable{Schema: l.schemaFilter(opts), HasSchema: true, Name: table}
	for rows.Next() {
		var col schema.ColumnSchema
		if err := rows.Scan(&col.Name, &col.DataType, &col.IsPrimaryKey); err != nil {
			return schema.SchemaTable{}, err
		}
		col.HasDataType = col.DataType != ""
		st.Columns = append(st.Columns, col)
	}
	return st, rows.Err()
}

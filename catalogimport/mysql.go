package catalogimport

import (
	"context"
	"database/sql"

	"github.com/flowscope/flowscope/schema"
)

// mysqlLoader introspects INFORMATION_SCHEMA the way sqldef's
// database/mysql package queries INFORMATION_SCHEMA.VIEWS for view
// definitions, but against COLUMNS/TABLES for structured column metadata
// instead of DDL text.
type mysqlLoader struct{}

func (mysqlLoader) tableNames(ctx context.Context, db *sql.DB, opts Options) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
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

func (mysqlLoader) tableColumns(ctx context.Context, db *sql.DB, opts Options, table string) (schema.SchemaTable, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE, COLUMN_KEY = 'PRI'
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`, table)
	if err != nil {
		return schema.SchemaTable{}, err
	}
	defer rows.Close()

	st := schema.SchemaTable{Name: table}
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

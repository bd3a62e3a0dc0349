// Package catalogimport loads live database catalogs into a
// schema.Metadata, so an analysis can be seeded from what a real database
// actually contains instead of only the DDL visible in the script under
// analysis.
//
// sqldef's database/{mysql,postgres,mssql,sqlite3} packages dump whole
// CREATE TABLE/VIEW DDL text for a schema diff, never structured column
// metadata — so this package borrows their connection and concurrency
// idiom (one *sql.DB per dialect package, table names fetched first and
// then fanned out per table) and replaces the DDL-dump queries with the
// information_schema / pragma queries each engine exposes for structured
// introspection.
package catalogimport

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/flowscope/flowscope/dialect"
	"github.com/flowscope/flowscope/schema"
)

// Concurrency bounds how many tables are introspected at once; 0 means
// unbounded, mirroring sqldef's DumpConcurrency convention.
type Options struct {
	Concurrency int
	Schema      string // Postgres/MSSQL schema filter; ignored by MySQL/SQLite
}

// Load introspects db's catalog for the given dialect and returns it as a
// schema.Metadata ready to seed an analysis registry. Only MySQL, Postgres,
// SQLite and TSQL (MSSQL) are supported; any other dialect is an error
// since this package only has queries for the drivers listed in the
// module's dependency set.
func Load(ctx context.Context, db *sql.DB, d dialect.Dialect, opts Options) (*schema.Metadata, error) {
	loader, ok := loaders[d]
	if !ok {
		return nil, fmt.Errorf("catalogimport: no catalog loader for dialect %s", d)
	}

	names, err := loader.tableNames(ctx, db, opts)
	if err != nil {
		return nil, fmt.Errorf("catalogimport: listing tables: %w", err)
	}

	tables, err := concurrentMap(ctx, names, opts.Concurrency, func(ctx context.Context, name string) (schema.SchemaTable, error) {
		return loader.tableColumns(ctx, db, opts, name)
	})
	if err != nil {
		return nil, fmt.Errorf("catalogimport: loading columns: %w", err)
	}

	return &schema.Metadata{
		Tables:          tables,
		CaseSensitivity: d.DefaultCaseSensitivity(),
		AllowImplied:    true,
	}, nil
}

type catalogLoader interface {
	tableNames(ctx context.Context, db *sql.DB, opts Options) ([]string, error)
	tableColumns(ctx context.Context, db *sql.DB, opts Options, table string) (schema.SchemaTable, error)
}

var loaders = map[dialect.Dialect]catalogLoader{
	dialect.MySQL:    mysqlLoader{},
	dialect.Postgres: postgresLoader{},
	dialect.SQLite:   sqliteLoader{},
	dialect.TSQL:     mssqlLoader{},
}

// concurrentMap runs f over inputs with up to concurrency goroutines in
// flight, preserving input order in the result, mirroring sqldef's
// ConcurrentMapFuncWithError but built on errgroup.WithContext so a
// table-introspection failure cancels the rest instead of letting the
// whole batch run to completion.
func concurrentMap[Tin any, Tout any](ctx context.Context, inputs []Tin, concurrency int, f func(context.Context, Tin) (Tout, error)) ([]Tout, error) {
	eg, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		eg.SetLimit(concurrency)
	}

	outputs := make([]Tout, len(inputs))
	for i := range inputs {
		i := i
		eg.Go(func() error {
			out, err := f(ctx, inputs[i])
			if err != nil {
				return err
			}
			outputs[i] = out
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

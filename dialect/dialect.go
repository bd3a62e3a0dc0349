// Package dialect describes the closed set of SQL dialects FlowScope
// understands, along with the per-dialect defaults (case sensitivity,
// comment markers, feature flags) the rest of the engine keys off of.
//
// The split between "dialect" (what a database engine does) and
// "generator/parser mode" (how our own code branches on it) mirrors
// sqldef's GeneratorMode/ParserMode split: a single small enum threaded
// through every component instead of string comparisons scattered around.
package dialect

import "fmt"

// Dialect is the closed enum of SQL dialects FlowScope analyzes.
type Dialect int

const (
	Generic Dialect = iota
	Postgres
	MySQL
	SQLite
	BigQuery
	Snowflake
	Redshift
	Databricks
	DuckDB
	TSQL
	ClickHouse
	Hive
	Spark
)

var names = map[Dialect]string{
	Generic:    "generic",
	Postgres:   "postgres",
	MySQL:      "mysql",
	SQLite:     "sqlite",
	BigQuery:   "bigquery",
	Snowflake:  "snowflake",
	Redshift:   "redshift",
	Databricks: "databricks",
	DuckDB:     "duckdb",
	TSQL:       "tsql",
	ClickHouse: "clickhouse",
	Hive:       "hive",
	Spark:      "spark",
}

func (d Dialect) String() string {
	if s, ok := names[d]; ok {
		return s
	}
	return fmt.Sprintf("dialect(%d)", int(d))
}

// ParseDialect maps a case-insensitive dialect name to a Dialect, mirroring
// sqldef's acceptance of both "psql"/"postgres" style aliases for its
// GeneratorMode flags.
func ParseDialect(name string) (Dialect, bool) {
	switch name {
	case "generic", "":
		return Generic, true
	case "postgres", "postgresql", "psql":
		return Postgres, true
	case "mysql":
		return MySQL, true
	case "sqlite", "sqlite3":
		return SQLite, true
	case "bigquery", "bq":
		return BigQuery, true
	case "snowflake":
		return Snowflake, true
	case "redshift":
		return Redshift, true
	case "databricks":
		return Databricks, true
	case "duckdb":
		return DuckDB, true
	case "tsql", "mssql", "sqlserver":
		return TSQL, true
	case "clickhouse":
		return ClickHouse, true
	case "hive":
		return Hive, true
	case "spark":
		return Spark, true
	default:
		return Generic, false
	}
}

// DefaultCaseSensitivity returns the case-folding behavior a dialect applies
// to unquoted identifiers. Snowflake upper-folds; Postgres/Generic
// lower-fold; everything else we model as case-preserving ("Exact") since
// their effective behavior depends on server/collation configuration that
// FlowScope has no way to observe statically.
func (d Dialect) DefaultCaseSensitivity() CaseSensitivity {
	switch d {
	case Snowflake:
		return Upper
	case Postgres, Generic:
		return Lower
	default:
		return Exact
	}
}

// CommentMarkers returns the set of line/block comment markers active for a
// dialect. Every dialect accepts "--" and "/* */"; MySQL additionally
// accepts "#".
func (d Dialect) CommentMarkers() []string {
	if d == MySQL {
		return []string{"--", "/*", "#"}
	}
	return []string{"--", "/*"}
}

// SupportsLateralColumnAlias reports whether a dialect lets a SELECT item
// reference the alias of an earlier item in the same projection list
// (e.g. `SELECT a+1 AS b, b+1 AS c`). This feeds the expression analyzer's
// column-resolution step: dialects without the feature must treat such a
// reference as unresolved rather than as a derived self-reference.
func (d Dialect) SupportsLateralColumnAlias() bool {
	switch d {
	case BigQuery, Databricks, DuckDB, Redshift:
		return true
	default:
		return false
	}
}

// BacktickQuotesIdentifiers reports whether the dialect uses backticks
// (rather than double quotes) as its primary quoted-identifier delimiter.
func (d Dialect) BacktickQuotesIdentifiers() bool {
	switch d {
	case MySQL, BigQuery, ClickHouse, Hive, Spark, Databricks:
		return true
	default:
		return false
	}
}

// BracketQuotesIdentifiers reports whether the dialect also accepts
// `[bracket]`-quoted identifiers, as TSQL does.
func (d Dialect) BracketQuotesIdentifiers() bool {
	return d == TSQL
}

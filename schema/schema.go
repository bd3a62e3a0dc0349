// Package schema centralizes table schema state during an analysis pass:
// user-imported schema metadata (authoritative, from a database catalog)
// and implied schema captured opportunistically from DDL statements
// (CREATE TABLE, CREATE VIEW) encountered in the script being analyzed.
//
// The Registry type and its resolution algorithm are grounded on the
// original Rust implementation's SchemaRegistry
// (analyzer/schema_registry.rs): the same two-tier imported/implied model,
// the same search-path resolution order, and the same identifier-cache
// pattern, expressed with Go's mutex-guarded map instead of a RefCell.
package schema

import (
	"fmt"
	"strings"

	"github.com/flowscope/flowscope/dialect"
)

// ConstraintType is the closed set of table-level constraint kinds the DDL
// pre-pass can discover and hand to the registry.
type ConstraintType int

const (
	PrimaryKeyConstraint ConstraintType = iota
	ForeignKeyConstraint
	UniqueConstraint
	CheckConstraint
)

func (c ConstraintType) String() string {
	switch c {
	case PrimaryKeyConstraint:
		return "PRIMARY KEY"
	case ForeignKeyConstraint:
		return "FOREIGN KEY"
	case UniqueConstraint:
		return "UNIQUE"
	case CheckConstraint:
		return "CHECK"
	default:
		return "UNKNOWN"
	}
}

// ForeignKeyRef points a column at the table/column it references.
type ForeignKeyRef struct {
	Table  string
	Column string
}

func (e ForeignKeyRef) String() string {
	return fmt.Sprintf("%s.%s", e.Table, e.Column)
}

// ColumnSchema describes a single column of a SchemaTable.
type ColumnSchema struct {
	Name            string
	DataType        string
	HasDataType     bool
	IsPrimaryKey    bool
	ForeignKey      *ForeignKeyRef
	Classifications []string
}

// TableConstraintInfo is a table-level constraint: composite primary keys,
// foreign keys spanning multiple columns, uniqueness, or a CHECK expression.
type TableConstraintInfo struct {
	ConstraintType     ConstraintType
	Columns            []string
	ReferencedTable    string
	HasReferencedTable bool
	ReferencedColumns  []string
}

// SchemaTable is a table's column layout plus its optional catalog/schema
// qualification.
type SchemaTable struct {
	Catalog    string
	HasCatalog bool
	Schema     string
	HasSchema  bool
	Name       string
	Columns    []ColumnSchema
}

// SchemaOrigin distinguishes user-provided schema from schema the DDL
// pre-pass inferred.
type SchemaOrigin int

const (
	Imported SchemaOrigin = iota
	Implied
)

func (o SchemaOrigin) String() string {
	if o == Imported {
		return "imported"
	}
	return "implied"
}

// SchemaTableEntry is a SchemaTable plus the bookkeeping metadata the
// registry needs to answer "where did this come from" and "what statement
// introduced it".
type SchemaTableEntry struct {
	Table              SchemaTable
	Origin             SchemaOrigin
	SourceStatementIdx int
	HasSourceStatement bool
	Temporary          bool
	Constraints        []TableConstraintInfo
}

// SearchPathEntry is one schema (optionally catalog-qualified) to try when
// resolving an unqualified table name, analogous to a single entry in
// PostgreSQL's search_path.
type SearchPathEntry struct {
	Catalog    string
	HasCatalog bool
	Schema     string
}

// NamespaceHint is the caller-supplied form of a SearchPathEntry, before
// identifier normalization.
type NamespaceHint struct {
	Catalog    string
	HasCatalog bool
	Schema     string
}

// Metadata is the caller-supplied schema the registry is seeded from:
// imported tables plus resolution defaults.
type Metadata struct {
	Tables            []SchemaTable
	DefaultCatalog    string
	HasDefaultCatalog bool
	DefaultSchema     string
	HasDefaultSchema  bool
	SearchPath        []NamespaceHint
	HasSearchPath     bool
	CaseSensitivity   dialect.CaseSensitivity
	AllowImplied      bool
}

// TableResolution is the result of resolving a (possibly unqualified) table
// reference against the registry's known tables, search path, and defaults.
type TableResolution struct {
	Canonical     string
	MatchedSchema bool
}

func qualifiedKey(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}

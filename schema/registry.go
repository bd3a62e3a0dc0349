package schema

import (
	"strconv"
	"strings"

	"github.com/flowscope/flowscope/dialect"
	"github.com/flowscope/flowscope/issue"
)

// Registry is the single source of truth for schema metadata during an
// analysis pass.
//
// Invariants (mirrored from the original SchemaRegistry):
//   - knownTables is a superset of every table in schemaTables and
//     importedTables.
//   - entries in importedTables are never overwritten by implied schema.
//   - every canonical name stored anywhere in the registry has already
//     passed through the same identifier normalization.
type Registry struct {
	knownTables          map[string]bool
	forwardDeclaredTables map[string]bool
	importedTables       map[string]bool
	schemaTables         map[string]SchemaTableEntry

	defaultCatalog    string
	hasDefaultCatalog bool
	defaultSchema     string
	hasDefaultSchema  bool
	searchPath        []SearchPathEntry

	allowImplied bool

	norm *dialect.Normalizer
}

// New builds a Registry from optional caller-supplied schema metadata and a
// dialect, seeding known/imported tables and resolution defaults. It always
// succeeds; schema metadata is trusted input validated upstream, so there is
// no error return.
func New(meta *Metadata, d dialect.Dialect) *Registry {
	r := &Registry{
		knownTables:           make(map[string]bool),
		forwardDeclaredTables: make(map[string]bool),
		importedTables:        make(map[string]bool),
		schemaTables:          make(map[string]SchemaTableEntry),
		allowImplied:          true,
	}

	caseSensitivity := dialect.DialectDefault
	if meta != nil {
		caseSensitivity = meta.CaseSensitivity
	}
	r.norm = dialect.NewNormalizer(d, caseSensitivity)

	if meta == nil {
		return r
	}

	r.allowImplied = meta.AllowImplied

	if meta.HasDefaultCatalog {
		r.defaultCatalog = r.norm.Normalize(meta.DefaultCatalog)
		r.hasDefaultCatalog = true
	}
	if meta.HasDefaultSchema {
		r.defaultSchema = r.norm.Normalize(meta.DefaultSchema)
		r.hasDefaultSchema = true
	}

	if meta.HasSearchPath {
		for _, hint := range meta.SearchPath {
			entry := SearchPathEntry{Schema: r.norm.Normalize(hint.Schema)}
			if hint.HasCatalog {
				entry.Catalog = r.norm.Normalize(hint.Catalog)
				entry.HasCatalog = true
			}
			r.searchPath = append(r.searchPath, entry)
		}
	} else if r.hasDefaultSchema {
		entry := SearchPathEntry{Schema: r.defaultSchema}
		if r.hasDefaultCatalog {
			entry.Catalog = r.defaultCatalog
			entry.HasCatalog = true
		}
		r.searchPath = append(r.searchPath, entry)
	}

	for _, table := range meta.Tables {
		canonical := r.schemaTableKey(table)
		r.knownTables[canonical] = true
		r.importedTables[canonical] = true
		r.schemaTables[canonical] = SchemaTableEntry{
			Table:  table,
			Origin: Imported,
		}
	}

	return r
}

// AllowImplied reports whether DDL-inferred schema capture is enabled.
func (r *Registry) AllowImplied() bool {
	return r.allowImplied
}

// Get returns the schema entry for a canonical table name, if known.
func (r *Registry) Get(canonical string) (SchemaTableEntry, bool) {
	e, ok := r.schemaTables[canonical]
	return e, ok
}

// IsKnown reports whether a canonical table name is known to the registry,
// from any source.
func (r *Registry) IsKnown(canonical string) bool {
	return r.knownTables[canonical]
}

// IsImported reports whether a canonical table name came from user-provided
// schema metadata.
func (r *Registry) IsImported(canonical string) bool {
	return r.importedTables[canonical]
}

// MarkTableKnown records a table as known without persisting column
// metadata for it, and marks it forward-declared. Used by the DDL pre-pass
// so earlier statements can see that a later CREATE TABLE/VIEW target
// exists, without yet knowing its columns.
func (r *Registry) MarkTableKnown(canonical string) {
	r.knownTables[canonical] = true
	r.forwardDeclaredTables[canonical] = true
}

// RemoveImplied drops an implied schema entry, used for DROP TABLE/VIEW
// statements. Imported entries are never removed: they represent schema
// the caller asserted exists regardless of what the script does to it.
func (r *Registry) RemoveImplied(canonical string) {
	if r.importedTables[canonical] {
		return
	}
	delete(r.schemaTables, canonical)
	delete(r.knownTables, canonical)
	delete(r.forwardDeclaredTables, canonical)
}

type registerParams struct {
	canonical      string
	columns        []ColumnSchema
	constraints    []TableConstraintInfo
	isTemporary    bool
	statementType  string
	statementIndex int
	emitWarnings   bool
	isSeed         bool
}

func (r *Registry) registerImpliedInternal(p registerParams) (issue.Issue, bool) {
	r.knownTables[p.canonical] = true

	if p.isSeed {
		r.forwardDeclaredTables[p.canonical] = true
	} else {
		delete(r.forwardDeclaredTables, p.canonical)
	}

	if r.importedTables[p.canonical] {
		if p.emitWarnings {
			if imported, ok := r.schemaTables[p.canonical]; ok {
				importedCols := columnNameSet(imported.Table.Columns)
				ddlCols := columnNameSet(p.columns)
				if !sameStringSet(importedCols, ddlCols) {
					msg := p.statementType + " for '" + p.canonical +
						"' conflicts with imported schema. Using imported schema (imported has " +
						strconv.Itoa(len(importedCols)) + " columns, " + p.statementType + " has " +
						strconv.Itoa(len(ddlCols)) + " columns)"
					return issue.Warn(issue.CodeSchemaConflict, msg).WithStatement(p.statementIndex), true
				}
			}
		}
		return issue.Issue{}, false
	}

	if !r.allowImplied || len(p.columns) == 0 {
		return issue.Issue{}, false
	}

	table := SchemaTable{Name: p.canonical, Columns: p.columns}
	parts := dialect.SplitQualified(p.canonical)
	switch len(parts) {
	case 3:
		table.Catalog, table.HasCatalog = parts[0], true
		table.Schema, table.HasSchema = parts[1], true
		table.Name = parts[2]
	case 2:
		table.Schema, table.HasSchema = parts[0], true
		table.Name = parts[1]
	case 1:
		table.Name = parts[0]
	default:
		table.Name = p.canonical
	}

	r.schemaTables[p.canonical] = SchemaTableEntry{
		Table:              table,
		Origin:             Implied,
		SourceStatementIdx: p.statementIndex,
		HasSourceStatement: true,
		Temporary:          p.isTemporary,
		Constraints:        p.constraints,
	}
	return issue.Issue{}, false
}

// RegisterImplied records schema inferred from a DDL statement. It returns
// an issue (ok=true) when the DDL's columns conflict with already-imported
// schema for the same table; imported schema always wins and is never
// overwritten.
func (r *Registry) RegisterImplied(canonical string, columns []ColumnSchema, isTemporary bool, statementType string, statementIndex int) (issue.Issue, bool) {
	return r.registerImpliedInternal(registerParams{
		canonical:      canonical,
		columns:        columns,
		isTemporary:    isTemporary,
		statementType:  statementType,
		statementIndex: statementIndex,
		emitWarnings:   true,
	})
}

// RegisterImpliedWithConstraints is RegisterImplied plus table-level
// constraint metadata (composite keys, multi-column foreign keys).
func (r *Registry) RegisterImpliedWithConstraints(canonical string, columns []ColumnSchema, constraints []TableConstraintInfo, isTemporary bool, statementType string, statementIndex int) (issue.Issue, bool) {
	return r.registerImpliedInternal(registerParams{
		canonical:      canonical,
		columns:        columns,
		constraints:    constraints,
		isTemporary:    isTemporary,
		statementType:  statementType,
		statementIndex: statementIndex,
		emitWarnings:   true,
	})
}

// SeedImpliedSchemaWithConstraints registers forward-declared schema
// (discovered during the DDL pre-pass) without emitting conflict warnings,
// so later statements can resolve columns against a table defined earlier
// in the analysis but later in the script.
func (r *Registry) SeedImpliedSchemaWithConstraints(canonical string, columns []ColumnSchema, constraints []TableConstraintInfo, isTemporary bool, statementIndex int) {
	r.registerImpliedInternal(registerParams{
		canonical:      canonical,
		columns:        columns,
		constraints:    constraints,
		isTemporary:    isTemporary,
		statementType:  "seed",
		statementIndex: statementIndex,
		emitWarnings:   false,
		isSeed:         true,
	})
}

// schemaTableKey derives the canonical registry key for a table definition,
// normalizing and joining catalog.schema.table in whichever parts are
// present.
func (r *Registry) schemaTableKey(table SchemaTable) string {
	var parts []string
	if table.HasCatalog {
		parts = append(parts, table.Catalog)
	}
	if table.HasSchema {
		parts = append(parts, table.Schema)
	}
	parts = append(parts, table.Name)
	return r.normalizeTableName(qualifiedKey(parts...))
}

// CanonicalizeTableReference resolves a (possibly unqualified, possibly
// partially qualified) table reference against the search path and
// defaults, trying progressively broader qualification in order:
//
//  1. three-or-more-part names are taken as already fully qualified
//  2. two-part names try as-is, then with the default catalog prepended
//  3. one-part names try as-is, then each search path entry in order,
//     then the default schema (and catalog), finally falling back to the
//     bare name
func (r *Registry) CanonicalizeTableReference(name string) TableResolution {
	parts := dialect.SplitQualified(name)
	if len(parts) == 0 {
		return TableResolution{}
	}

	normalized := make([]string, len(parts))
	for i, p := range parts {
		normalized[i] = r.norm.Normalize(p)
	}

	switch {
	case len(normalized) >= 3:
		canonical := qualifiedKey(normalized...)
		return TableResolution{Canonical: canonical, MatchedSchema: r.knownTables[canonical]}

	case len(normalized) == 2:
		canonical := qualifiedKey(normalized...)
		if r.knownTables[canonical] {
			return TableResolution{Canonical: canonical, MatchedSchema: true}
		}
		if r.hasDefaultCatalog {
			withCatalog := qualifiedKey(r.defaultCatalog, canonical)
			if r.knownTables[withCatalog] {
				return TableResolution{Canonical: withCatalog, MatchedSchema: true}
			}
		}
		return TableResolution{Canonical: canonical, MatchedSchema: false}

	default:
		tableOnly := normalized[0]

		if r.knownTables[tableOnly] {
			return TableResolution{Canonical: tableOnly, MatchedSchema: true}
		}

		if candidate, ok := r.resolveViaSearchPath(tableOnly); ok {
			return TableResolution{Canonical: candidate, MatchedSchema: true}
		}

		if r.hasDefaultSchema {
			var canonical string
			if r.hasDefaultCatalog {
				canonical = qualifiedKey(r.defaultCatalog, r.defaultSchema, tableOnly)
			} else {
				canonical = qualifiedKey(r.defaultSchema, tableOnly)
			}
			return TableResolution{Canonical: canonical, MatchedSchema: r.knownTables[canonical]}
		}

		return TableResolution{Canonical: tableOnly, MatchedSchema: r.knownTables[tableOnly]}
	}
}

func (r *Registry) resolveViaSearchPath(table string) (string, bool) {
	for _, entry := range r.searchPath {
		var canonical string
		if entry.HasCatalog {
			canonical = qualifiedKey(entry.Catalog, entry.Schema, table)
		} else {
			canonical = qualifiedKey(entry.Schema, table)
		}
		if r.knownTables[canonical] {
			return canonical, true
		}
	}
	return "", false
}

// normalizeTableName normalizes every dot-separated part of a possibly
// qualified table name.
func (r *Registry) normalizeTableName(name string) string {
	return r.norm.NormalizeQualified(name)
}

// ValidateColumn reports an UNKNOWN_COLUMN issue when column is not present
// on the given canonical table. If the table itself is unknown, ValidateColumn
// is silent (ok=false): there is no schema to validate against, so absence
// of a column is not evidence of anything.
func (r *Registry) ValidateColumn(canonical, column string, statementIndex int) (issue.Issue, bool) {
	entry, ok := r.schemaTables[canonical]
	if !ok {
		return issue.Issue{}, false
	}
	normalizedCol := r.norm.Normalize(column)
	for _, c := range entry.Table.Columns {
		if r.norm.Normalize(c.Name) == normalizedCol {
			return issue.Issue{}, false
		}
	}

	names := make([]string, len(entry.Table.Columns))
	for i, c := range entry.Table.Columns {
		names[i] = c.Name
	}
	msg := "Column '" + column + "' not found in table '" + canonical + "'. Available columns: " + strings.Join(names, ", ")
	return issue.Warn(issue.CodeUnknownColumn, msg).WithStatement(statementIndex), true
}

// AllEntries returns every schema entry currently held by the registry, in
// no particular order (callers that need determinism should sort by
// canonical name).
func (r *Registry) AllEntries() []SchemaTableEntry {
	out := make([]SchemaTableEntry, 0, len(r.schemaTables))
	for _, e := range r.schemaTables {
		out = append(out, e)
	}
	return out
}

// IsEmpty reports whether the registry holds no column metadata at all.
func (r *Registry) IsEmpty() bool {
	return len(r.schemaTables) == 0
}

// HasNoKnownTables reports whether the registry should be treated as having
// received no authoritative external schema: true when there are no
// imported tables and every known table is merely forward-declared (i.e.
// discovered from DDL inside the script itself, not asserted by the
// caller). Components that emit UNRESOLVED_REFERENCE consult this to avoid
// flagging references to tables that legitimately live outside the script.
func (r *Registry) HasNoKnownTables() bool {
	if len(r.importedTables) != 0 {
		return false
	}
	for name := range r.knownTables {
		if !r.forwardDeclaredTables[name] {
			return false
		}
	}
	return true
}

func columnNameSet(cols []ColumnSchema) map[string]bool {
	out := make(map[string]bool, len(cols))
	for _, c := range cols {
		out[c.Name] = true
	}
	return out
}

func sameStringSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}


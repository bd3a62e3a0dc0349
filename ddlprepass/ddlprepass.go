// Package ddlprepass implements the forward-declaration walk that runs
// once, before any statement is analyzed for lineage or lint: it visits
// every CREATE TABLE / CREATE VIEW / CREATE TEMPORARY TABLE in the input
// and seeds the schema registry with their columns and constraints, so a
// reference to a table created later in the script never produces a
// false-positive unresolved-reference warning.
//
// There is no teacher analog (sqldef's own DDL walk compares two fully
// parsed schemas, it never forward-declares anything), so this package
// follows the distilled specification's own description of the pre-pass,
// reusing the registry's existing seed path.
package ddlprepass

import (
	"github.com/flowscope/flowscope/parser"
	"github.com/flowscope/flowscope/schema"
)

// Run walks statements in order and seeds registry with every CREATE
// TABLE / CREATE VIEW it finds, so that later per-statement analysis can
// resolve forward references.
func Run(statements []parser.Statement, registry *schema.Registry) {
	for _, stmt := range statements {
		switch s := stmt.(type) {
		case *parser.CreateTable:
			seedCreateTable(s, registry)
		case *parser.CreateView:
			seedCreateView(s, registry)
		}
	}
}

func seedCreateTable(ct *parser.CreateTable, registry *schema.Registry) {
	canonical := registry.CanonicalizeTableReference(ct.Name.Qualified()).Canonical

	if ct.AsSelect != nil {
		// CREATE TABLE ... AS SELECT has no column list to forward-declare
		// from syntax alone; mark it known so references to it don't spuriously
		// warn, but leave column detail for the lineage builder's own pass.
		registry.MarkTableKnown(canonical)
		return
	}

	columns := make([]schema.ColumnSchema, 0, len(ct.Columns))
	for _, col := range ct.Columns {
		cs := schema.ColumnSchema{
			Name:        col.Name,
			DataType:    col.TypeName,
			HasDataType: col.TypeName != "",
			IsPrimaryKey: col.PrimaryKey,
		}
		if col.References != nil {
			cs.ForeignKey = &schema.ForeignKeyRef{
				Table:  col.References.Table.Qualified(),
				Column: firstOrEmpty(col.References.Columns),
			}
		}
		columns = append(columns, cs)
	}

	constraints := make([]schema.TableConstraintInfo, 0, len(ct.Constraints))
	for _, c := range ct.Constraints {
		constraints = append(constraints, schema.TableConstraintInfo{
			ConstraintType:     constraintKind(c.Kind),
			Columns:            c.Columns,
			ReferencedTable:    c.ReferencedTable.Qualified(),
			HasReferencedTable: c.HasReferenced,
			ReferencedColumns:  c.ReferencedColumns,
		})
	}

	registry.SeedImpliedSchemaWithConstraints(canonical, columns, constraints, ct.Temporary, 0)
}

func seedCreateView(cv *parser.CreateView, registry *schema.Registry) {
	canonical := registry.CanonicalizeTableReference(cv.Name.Qualified()).Canonical
	// A view's column set depends on its SELECT's projection, which the
	// lineage builder computes when it reaches this statement; the
	// pre-pass only needs to make the name resolvable to later statements.
	registry.MarkTableKnown(canonical)
}

func constraintKind(k parser.TableConstraintKind) schema.ConstraintType {
	switch k {
	case parser.ConstraintPrimaryKey:
		return schema.PrimaryKeyConstraint
	case parser.ConstraintForeignKey:
		return schema.ForeignKeyConstraint
	case parser.ConstraintUnique:
		return schema.UniqueConstraint
	case parser.ConstraintCheck:
		return schema.CheckConstraint
	default:
		return schema.PrimaryKeyConstraint
	}
}

func firstOrEmpty(cols []string) string {
	if len(cols) == 0 {
		return ""
	}
	return cols[0]
}

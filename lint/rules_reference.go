package lint

import (
	"strings"

	"github.com/flowscope/flowscope/issue"
	"github.com/flowscope/flowscope/parser"
)

// flatFromItems walks a FROM clause (including nested joins) and returns
// every leaf source in left-to-right order.
func flatFromItems(item *parser.FromItem) []*parser.FromItem {
	if item == nil {
		return nil
	}
	if item.HasJoin {
		return append(flatFromItems(item.Left), flatFromItems(item.Right)...)
	}
	return []*parser.FromItem{item}
}

// allFromItems flattens every comma-joined root in a SELECT's FROM clause.
func allFromItems(from []parser.FromItem) []*parser.FromItem {
	var out []*parser.FromItem
	for i := range from {
		out = append(out, flatFromItems(&from[i])...)
	}
	return out
}

func sourceAlias(item *parser.FromItem) string {
	if item.Alias != "" {
		return item.Alias
	}
	if item.Table != nil {
		return item.Table.Qualified()
	}
	return ""
}

// collectColumnRefs gathers every ColumnRef reachable from e.
func collectColumnRefs(e parser.Expr) []*parser.ColumnRef {
	var out []*parser.ColumnRef
	walkExpr(e, func(n parser.Expr) {
		if cr, ok := n.(*parser.ColumnRef); ok {
			out = append(out, cr)
		}
	})
	return out
}

// ReferencesQualification flags unqualified column references in a query
// that reads from more than one source, where a reader can't tell which
// table a bare column name came from without consulting each one's schema.
type ReferencesQualification struct{}

func (r *ReferencesQualification) Code() string { return "LINT_RF_002" }
func (r *ReferencesQualification) Name() string { return "references-qualification" }
func (r *ReferencesQualification) Description() string {
	return "column references should be table-qualified when more than one source is in scope"
}
func (r *ReferencesQualification) RequiresParsedStatement() bool { return true }
func (r *ReferencesQualification) DocumentLevel() bool           { return false }

func (r *ReferencesQualification) Check(ctx *Context) []issue.Issue {
	sel := currentSelect(ctx)
	if sel == nil {
		return nil
	}
	sources := allFromItems(sel.From)
	if len(sources) < 2 {
		return nil
	}
	// Names declared as SELECT-list aliases are legal bare references in
	// ORDER BY/HAVING and aren't column lookups against a source.
	declared := map[string]bool{}
	for _, se := range sel.SelectExprs {
		if se.Alias != "" {
			declared[strings.ToLower(se.Alias)] = true
		}
	}
	exprs := make([]parser.Expr, 0, len(sel.SelectExprs)+4)
	for _, se := range sel.SelectExprs {
		exprs = append(exprs, se.Expr)
	}
	if sel.Where != nil {
		exprs = append(exprs, sel.Where)
	}
	if sel.Having != nil {
		exprs = append(exprs, sel.Having)
	}
	for _, g := range sel.GroupBy {
		exprs = append(exprs, g)
	}
	var out []issue.Issue
	seen := map[string]bool{}
	for _, top := range exprs {
		for _, cr := range collectColumnRefs(top) {
			if len(cr.Qualifiers) > 0 {
				continue
			}
			if declared[strings.ToLower(cr.Column)] {
				continue
			}
			key := strings.ToLower(cr.Column)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, ctx.Warn(r.Code(), "unqualified reference to \""+cr.Column+"\" with multiple sources in scope"))
		}
	}
	return out
}

// UnusedTableAlias flags a FROM/JOIN source given an alias that is never
// referenced anywhere in the statement, a common leftover from editing.
type UnusedTableAlias struct{}

func (r *UnusedTableAlias) Code() string                   { return "LINT_RF_001" }
func (r *UnusedTableAlias) Name() string                   { return "unused-table-alias" }
func (r *UnusedTableAlias) Description() string {
	return "a table alias is declared but never referenced"
}
func (r *UnusedTableAlias) RequiresParsedStatement() bool { return true }
func (r *UnusedTableAlias) DocumentLevel() bool           { return false }

func (r *UnusedTableAlias) Check(ctx *Context) []issue.Issue {
	sel := currentSelect(ctx)
	if sel == nil {
		return nil
	}
	sources := allFromItems(sel.From)
	if len(sources) == 0 {
		return nil
	}
	used := map[string]bool{}
	record := func(e parser.Expr) {
		for _, cr := range collectColumnRefs(e) {
			for _, q := range cr.Qualifiers {
				used[strings.ToLower(q)] = true
			}
		}
	}
	for _, se := range sel.SelectExprs {
		record(se.Expr)
		if se.Table != "" {
			used[strings.ToLower(se.Table)] = true
		}
	}
	record(sel.Where)
	record(sel.Having)
	for _, g := range sel.GroupBy {
		record(g)
	}
	for _, o := range sel.OrderBy {
		record(o.Expr)
	}
	var recordJoins func(item *parser.FromItem)
	recordJoins = func(item *parser.FromItem) {
		if item == nil || !item.HasJoin {
			return
		}
		record(item.JoinOn)
		recordJoins(item.Left)
		recordJoins(item.Right)
	}
	for i := range sel.From {
		recordJoins(&sel.From[i])
	}
	var out []issue.Issue
	for _, item := range sources {
		if item.Alias == "" || item.Table == nil {
			continue
		}
		if !used[strings.ToLower(item.Alias)] {
			out = append(out, ctx.Warn(r.Code(), "alias \""+item.Alias+"\" is never referenced"))
		}
	}
	return out
}

// AliasShadowsKnownTable flags a FROM/JOIN alias that happens to equal the
// canonical name of a different table known to the schema registry, which
// can mislead a reader into thinking a reference resolves to the real
// table of that name.
type AliasShadowsKnownTable struct{}

func (r *AliasShadowsKnownTable) Code() string { return "LINT_AL_001" }
func (r *AliasShadowsKnownTable) Name() string { return "alias-shadows-known-table" }
func (r *AliasShadowsKnownTable) Description() string {
	return "a table alias matches the name of a different known table"
}
func (r *AliasShadowsKnownTable) RequiresParsedStatement() bool { return true }
func (r *AliasShadowsKnownTable) DocumentLevel() bool           { return false }

func (r *AliasShadowsKnownTable) Check(ctx *Context) []issue.Issue {
	sel := currentSelect(ctx)
	if sel == nil || ctx.Registry == nil {
		return nil
	}
	var out []issue.Issue
	for _, item := range allFromItems(sel.From) {
		if item.Table == nil || item.Alias == "" {
			continue
		}
		own := ctx.Registry.CanonicalizeTableReference(item.Table.Qualified())
		aliasAsTable := ctx.Registry.CanonicalizeTableReference(item.Alias)
		if aliasAsTable.MatchedSchema && aliasAsTable.Canonical != own.Canonical {
			out = append(out, ctx.Warn(r.Code(), "alias \""+item.Alias+"\" shadows the known table \""+aliasAsTable.Canonical+"\""))
		}
	}
	return out
}

// RedundantSelfAlias flags `expr AS name` where name is exactly the bare
// column name already being selected, adding nothing.
type RedundantSelfAlias struct{}

func (r *RedundantSelfAlias) Code() string                   { return "LINT_AM_001" }
func (r *RedundantSelfAlias) Name() string                   { return "redundant-self-alias" }
func (r *RedundantSelfAlias) Description() string {
	return "a column is aliased to its own name"
}
func (r *RedundantSelfAlias) RequiresParsedStatement() bool { return true }
func (r *RedundantSelfAlias) DocumentLevel() bool           { return false }

func (r *RedundantSelfAlias) Check(ctx *Context) []issue.Issue {
	sel := currentSelect(ctx)
	if sel == nil {
		return nil
	}
	var out []issue.Issue
	for _, se := range sel.SelectExprs {
		if se.Alias == "" {
			continue
		}
		cr, ok := se.Expr.(*parser.ColumnRef)
		if !ok {
			continue
		}
		if strings.EqualFold(cr.Column, se.Alias) {
			out = append(out, ctx.Warn(r.Code(), "redundant alias AS \""+se.Alias+"\" matches the column's own name"))
		}
	}
	return out
}

// ReservedKeywordAlias flags an alias chosen from the dialect's reserved
// word list, which forces every future reference to that alias to be
// quoted or risks a parse error in stricter dialects.
type ReservedKeywordAlias struct{}

func (r *ReservedKeywordAlias) Code() string                   { return "LINT_TQ_001" }
func (r *ReservedKeywordAlias) Name() string                   { return "reserved-keyword-alias" }
func (r *ReservedKeywordAlias) Description() string {
	return "an alias is a reserved SQL keyword"
}
func (r *ReservedKeywordAlias) RequiresParsedStatement() bool { return true }
func (r *ReservedKeywordAlias) DocumentLevel() bool           { return false }

func (r *ReservedKeywordAlias) Check(ctx *Context) []issue.Issue {
	sel := currentSelect(ctx)
	if sel == nil {
		return nil
	}
	var out []issue.Issue
	for _, se := range sel.SelectExprs {
		if se.Alias != "" && parser.IsKeyword(se.Alias) {
			out = append(out, ctx.Warn(r.Code(), "alias \""+se.Alias+"\" is a reserved keyword"))
		}
	}
	for _, item := range allFromItems(sel.From) {
		if item.Alias != "" && parser.IsKeyword(item.Alias) {
			out = append(out, ctx.Warn(r.Code(), "alias \""+item.Alias+"\" is a reserved keyword"))
		}
	}
	return out
}

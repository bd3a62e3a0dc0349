package lint

import (
	"strings"

	"github.com/flowscope/flowscope/dialect"
	"github.com/flowscope/flowscope/expr"
	"github.com/flowscope/flowscope/issue"
	"github.com/flowscope/flowscope/parser"
	"github.com/flowscope/flowscope/schema"
	"github.com/flowscope/flowscope/typesystem"
)

func currentSelect(ctx *Context) *parser.Select {
	sel, ok := ctx.Statement.(*parser.Select)
	if !ok {
		return nil
	}
	return sel
}

// DistinctWithGroupBy flags SELECT DISTINCT combined with GROUP BY, where
// the DISTINCT is always redundant: grouping already collapses duplicates
// at the grain of the GROUP BY columns.
type DistinctWithGroupBy struct{}

func (r *DistinctWithGroupBy) Code() string                   { return "LINT_ST_001" }
func (r *DistinctWithGroupBy) Name() string                   { return "distinct-with-group-by" }
func (r *DistinctWithGroupBy) Description() string {
	return "SELECT DISTINCT is redundant when the query already has a GROUP BY"
}
func (r *DistinctWithGroupBy) RequiresParsedStatement() bool { return true }
func (r *DistinctWithGroupBy) DocumentLevel() bool           { return false }

func (r *DistinctWithGroupBy) Check(ctx *Context) []issue.Issue {
	sel := currentSelect(ctx)
	if sel == nil || !sel.Distinct || len(sel.GroupBy) == 0 {
		return nil
	}
	return []issue.Issue{ctx.Warn(r.Code(), "DISTINCT is redundant alongside GROUP BY")}
}

// CountOneShouldBeStar flags COUNT(1), which is equivalent to COUNT(*) in
// every dialect this package targets but reads as if the literal mattered.
type CountOneShouldBeStar struct{}

func (r *CountOneShouldBeStar) Code() string { return "LINT_ST_002" }
func (r *CountOneShouldBeStar) Name() string { return "count-one-should-be-star" }
func (r *CountOneShouldBeStar) Description() string {
	return "COUNT(1) should be written COUNT(*)"
}
func (r *CountOneShouldBeStar) RequiresParsedStatement() bool { return true }
func (r *CountOneShouldBeStar) DocumentLevel() bool           { return false }

func (r *CountOneShouldBeStar) Check(ctx *Context) []issue.Issue {
	sel := currentSelect(ctx)
	if sel == nil {
		return nil
	}
	var out []issue.Issue
	for _, se := range sel.SelectExprs {
		walkExpr(se.Expr, func(e parser.Expr) {
			fc, ok := e.(*parser.FuncCall)
			if !ok || !strings.EqualFold(fc.Name, "count") || len(fc.Args) != 1 {
				return
			}
			lit, ok := fc.Args[0].(*parser.Literal)
			if ok && lit.Kind == parser.LiteralNumber && lit.Text == "1" {
				out = append(out, ctx.Warn(r.Code(), "COUNT(1) should be COUNT(*)"))
			}
		})
	}
	return out
}

// CaseElseNullRedundant flags a CASE expression whose ELSE branch is an
// explicit NULL, which is exactly what omitting ELSE already produces.
type CaseElseNullRedundant struct{}

func (r *CaseElseNullRedundant) Code() string { return "LINT_ST_003" }
func (r *CaseElseNullRedundant) Name() string { return "case-else-null-redundant" }
func (r *CaseElseNullRedundant) Description() string {
	return "CASE ... ELSE NULL is redundant; omitting ELSE has the same meaning"
}
func (r *CaseElseNullRedundant) RequiresParsedStatement() bool { return true }
func (r *CaseElseNullRedundant) DocumentLevel() bool           { return false }

func (r *CaseElseNullRedundant) Check(ctx *Context) []issue.Issue {
	sel := currentSelect(ctx)
	if sel == nil {
		return nil
	}
	var out []issue.Issue
	for _, se := range sel.SelectExprs {
		walkExpr(se.Expr, func(e parser.Expr) {
			ce, ok := e.(*parser.CaseExpr)
			if !ok || ce.Else == nil {
				return
			}
			lit, ok := ce.Else.(*parser.Literal)
			if ok && lit.Kind == parser.LiteralNull {
				out = append(out, ctx.Warn(r.Code(), "redundant ELSE NULL in CASE expression"))
			}
		})
	}
	return out
}

// NullComparisonShouldUseIs flags `x = NULL` / `x <> NULL`, which are
// neither true nor false in standard SQL and almost always a mistake for
// `x IS [NOT] NULL`.
type NullComparisonShouldUseIs struct{}

func (r *NullComparisonShouldUseIs) Code() string { return "LINT_ST_004" }
func (r *NullComparisonShouldUseIs) Name() string { return "null-comparison-should-use-is" }
func (r *NullComparisonShouldUseIs) Description() string {
	return "comparing to NULL with = or <> should use IS [NOT] NULL"
}
func (r *NullComparisonShouldUseIs) RequiresParsedStatement() bool { return true }
func (r *NullComparisonShouldUseIs) DocumentLevel() bool           { return false }

func isNullLiteral(e parser.Expr) bool {
	lit, ok := e.(*parser.Literal)
	return ok && lit.Kind == parser.LiteralNull
}

func (r *NullComparisonShouldUseIs) Check(ctx *Context) []issue.Issue {
	sel := currentSelect(ctx)
	if sel == nil {
		return nil
	}
	exprs := make([]parser.Expr, 0, len(sel.SelectExprs)+2)
	for _, se := range sel.SelectExprs {
		exprs = append(exprs, se.Expr)
	}
	if sel.Where != nil {
		exprs = append(exprs, sel.Where)
	}
	if sel.Having != nil {
		exprs = append(exprs, sel.Having)
	}
	var out []issue.Issue
	for _, top := range exprs {
		walkExpr(top, func(e parser.Expr) {
			be, ok := e.(*parser.BinaryExpr)
			if !ok || (be.Op != "=" && be.Op != "<>" && be.Op != "!=") {
				return
			}
			if isNullLiteral(be.Left) || isNullLiteral(be.Right) {
				out = append(out, ctx.Warn(r.Code(), "use IS [NOT] NULL instead of "+be.Op+" NULL"))
			}
		})
	}
	return out
}

// RedundantCast flags CAST(expr AS T) where expr's own inferred canonical
// type already equals T, so the cast changes nothing.
type RedundantCast struct{}

func (r *RedundantCast) Code() string                   { return "LINT_CV_001" }
func (r *RedundantCast) Name() string                   { return "redundant-cast" }
func (r *RedundantCast) Description() string {
	return "CAST to the expression's own inferred type is a no-op"
}
func (r *RedundantCast) RequiresParsedStatement() bool { return true }
func (r *RedundantCast) DocumentLevel() bool           { return false }

func (r *RedundantCast) Check(ctx *Context) []issue.Issue {
	sel := currentSelect(ctx)
	if sel == nil || ctx.Registry == nil {
		return nil
	}
	norm := dialect.NewNormalizer(ctx.Dialect, dialect.DialectDefault)
	scope := expr.NewScope(ctx.Registry, norm)
	for _, item := range sel.From {
		item := item
		for alias, canonical := range shallowFromBindings(&item, ctx.Registry) {
			scope.Bind(alias, canonical)
		}
	}
	analyzer := &expr.Analyzer{StatementIndex: ctx.StatementIndex}
	var out []issue.Issue
	for _, se := range sel.SelectExprs {
		walkExpr(se.Expr, func(e parser.Expr) {
			ce, ok := e.(*parser.CastExpr)
			if !ok {
				return
			}
			want, ok := typesystem.NormalizeTypeName(ce.TypeName)
			if !ok {
				return
			}
			inner := analyzer.Analyze(ce.Expr, scope)
			if inner.HasType && inner.Type == want {
				out = append(out, ctx.Warn(r.Code(), "redundant CAST to "+ce.TypeName))
			}
		})
	}
	return out
}

// shallowFromBindings does a best-effort alias->canonical-table walk of a
// FROM clause for rules that need a Scope but don't need the lineage
// builder's full join/subquery/CTE handling.
func shallowFromBindings(from *parser.FromItem, reg *schema.Registry) map[string]string {
	out := map[string]string{}
	var walk func(item *parser.FromItem)
	walk = func(item *parser.FromItem) {
		if item == nil {
			return
		}
		if item.HasJoin {
			walk(item.Left)
			walk(item.Right)
			return
		}
		if item.Table == nil {
			return
		}
		res := reg.CanonicalizeTableReference(item.Table.Qualified())
		alias := item.Alias
		if alias == "" {
			alias = item.Table.Qualified()
		}
		out[alias] = res.Canonical
		out[res.Canonical] = res.Canonical
	}
	walk(from)
	return out
}

// walkExpr visits e and every sub-expression reachable from it.
func walkExpr(e parser.Expr, visit func(parser.Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case *parser.UnaryExpr:
		walkExpr(n.Expr, visit)
	case *parser.BinaryExpr:
		walkExpr(n.Left, visit)
		walkExpr(n.Right, visit)
	case *parser.CaseExpr:
		walkExpr(n.Operand, visit)
		for _, w := range n.Whens {
			walkExpr(w.When, visit)
			walkExpr(w.Then, visit)
		}
		walkExpr(n.Else, visit)
	case *parser.CastExpr:
		walkExpr(n.Expr, visit)
	case *parser.FuncCall:
		for _, a := range n.Args {
			walkExpr(a, visit)
		}
	case *parser.InExpr:
		walkExpr(n.Expr, visit)
		for _, item := range n.List {
			walkExpr(item, visit)
		}
	case *parser.BetweenExpr:
		walkExpr(n.Expr, visit)
		walkExpr(n.Low, visit)
		walkExpr(n.High, visit)
	}
}

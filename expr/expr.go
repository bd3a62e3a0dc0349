// Package expr is the expression analyzer: given a parsed expression tree
// and a resolution Scope (which aliases are bound to which canonical
// tables), it extracts the columns an expression references, infers its
// canonical type where possible, classifies how it relates to its inputs
// (a bare column vs. something derived/aggregated/windowed), and emits
// UNKNOWN_COLUMN and TYPE_MISMATCH issues.
//
// sqldef never evaluates expressions — it only diffs DDL — so this
// package's expression-analysis is new, expressed in the rest of this
// module's idiom: small, well-named structs, fluent Issue construction,
// explicit confidence tagging on anything the grammar only approximately
// understood.
package expr

import (
	"strings"

	"github.com/flowscope/flowscope/dialect"
	"github.com/flowscope/flowscope/issue"
	"github.com/flowscope/flowscope/parser"
	"github.com/flowscope/flowscope/schema"
	"github.com/flowscope/flowscope/typesystem"
)

// maxExprDepth bounds how deep the analyzer recurses into an expression
// tree before giving up and reporting APPROXIMATE_LINEAGE instead of a
// precise type/reference set. Real hand-written SQL rarely nests past a
// handful of levels; generated SQL (templated reporting queries, ORM
// output) occasionally does, and that's exactly the case this guards.
const maxExprDepth = 32

// Classification describes how an expression relates to the columns it
// references.
type Classification int

const (
	// Constant expressions reference no columns at all.
	Constant Classification = iota
	// DirectColumn is a bare column reference with no transformation.
	DirectColumn
	// Derived is any expression that combines or transforms one or more
	// column references (arithmetic, CASE, CAST, string functions, ...).
	Derived
	// Aggregated is a call to an aggregate function.
	Aggregated
	// Windowed is a call to a window function (including an aggregate
	// used with an OVER clause).
	Windowed
)

// ColumnReference is one column an expression reads, resolved against a
// Scope when a qualifier was present (or inferrable).
type ColumnReference struct {
	Qualifier      string
	HasQualifier   bool
	Column         string
	CanonicalTable string
	Resolved       bool
}

// Result is the full output of analyzing one expression.
type Result struct {
	Type           typesystem.CanonicalType
	HasType        bool
	Classification Classification
	References     []ColumnReference
	Issues         []issue.Issue
	Approximate    bool
}

// Scope maps the aliases/bare names visible in the enclosing FROM clause to
// canonical table names, and carries the schema registry used to resolve
// column types and flag unknown columns.
type Scope struct {
	Bindings map[string]string // normalized alias/table name -> canonical table
	Registry *schema.Registry
	Norm     *dialect.Normalizer
}

// NewScope builds an empty Scope ready to have Bind called for each FROM
// item.
func NewScope(registry *schema.Registry, norm *dialect.Normalizer) *Scope {
	return &Scope{Bindings: make(map[string]string), Registry: registry, Norm: norm}
}

// Bind records that alias (or, with no alias, the table's own name) refers
// to canonical within the enclosing query.
func (s *Scope) Bind(alias string, canonical string) {
	s.Bindings[s.Norm.Normalize(alias)] = canonical
}

// Analyzer runs expression analysis for a single statement, attaching
// StatementIndex to every issue it produces.
type Analyzer struct {
	StatementIndex int
}

// Analyze walks e, producing its Result. analyze never errors: an
// expression form it doesn't recognize degrades to an unresolved
// Derived/Constant classification rather than failing the whole statement.
func (a *Analyzer) Analyze(e parser.Expr, scope *Scope) Result {
	return a.analyzeDepth(e, scope, 0)
}

func (a *Analyzer) analyzeDepth(e parser.Expr, scope *Scope, depth int) Result {
	if depth > maxExprDepth {
		return Result{
			Classification: Derived,
			Approximate:    true,
			Issues: []issue.Issue{
				issue.Note(issue.CodeApproximateLineage, "expression exceeds analysis depth limit; treating as opaque derived value").
					WithStatement(a.StatementIndex).
					WithConfidence(issue.Low, issue.TextOnly),
			},
		}
	}

	switch n := e.(type) {
	case nil:
		return Result{Classification: Constant}

	case *parser.Literal:
		return Result{Type: literalType(n), HasType: n.Kind != parser.LiteralNull, Classification: Constant}

	case *parser.ColumnRef:
		return a.analyzeColumnRef(n, scope)

	case *parser.StarExpr:
		return Result{Classification: Constant}

	case *parser.UnaryExpr:
		inner := a.analyzeDepth(n.Expr, scope, depth+1)
		inner.Classification = promote(inner.Classification, Derived)
		if n.Op == "NOT" || n.Op == "IS NULL" || n.Op == "IS NOT NULL" {
			inner.Type = typesystem.Boolean
			inner.HasType = true
		}
		return inner

	case *parser.BinaryExpr:
		return a.analyzeBinary(n, scope, depth)

	case *parser.CaseExpr:
		return a.analyzeCase(n, scope, depth)

	case *parser.CastExpr:
		inner := a.analyzeDepth(n.Expr, scope, depth+1)
		result := mergeRefs(Result{Classification: Derived}, inner)
		if t, ok := typesystem.NormalizeTypeName(n.TypeName); ok {
			result.Type = t
			result.HasType = true
		}
		return result

	case *parser.FuncCall:
		return a.analyzeFuncCall(n, scope, depth)

	case *parser.InExpr:
		result := a.analyzeDepth(n.Expr, scope, depth+1)
		for _, item := range n.List {
			result = mergeRefs(result, a.analyzeDepth(item, scope, depth+1))
		}
		if n.Subquery != nil {
			result.Approximate = true
		}
		result.Type = typesystem.Boolean
		result.HasType = true
		result.Classification = promote(result.Classification, Derived)
		return result

	case *parser.BetweenExpr:
		result := a.analyzeDepth(n.Expr, scope, depth+1)
		result = mergeRefs(result, a.analyzeDepth(n.Low, scope, depth+1))
		result = mergeRefs(result, a.analyzeDepth(n.High, scope, depth+1))
		result.Type = typesystem.Boolean
		result.HasType = true
		result.Classification = promote(result.Classification, Derived)
		return result

	case *parser.SubqueryExpr:
		return Result{Classification: Derived, Approximate: true}

	default:
		return Result{Classification: Derived, Approximate: true}
	}
}

func literalType(l *parser.Literal) typesystem.CanonicalType {
	switch l.Kind {
	case parser.LiteralNumber:
		if strings.ContainsAny(l.Text, ".eE") {
			return typesystem.Float
		}
		return typesystem.Integer
	case parser.LiteralString:
		return typesystem.Text
	case parser.LiteralBool:
		return typesystem.Boolean
	default:
		return typesystem.Unknown
	}
}

func (a *Analyzer) analyzeColumnRef(n *parser.ColumnRef, scope *Scope) Result {
	ref := ColumnReference{Column: n.Column}
	if len(n.Qualifiers) > 0 {
		ref.Qualifier = n.Qualifiers[len(n.Qualifiers)-1]
		ref.HasQualifier = true
	}

	result := Result{Classification: DirectColumn, References: []ColumnReference{ref}}

	candidates := a.candidateTables(ref, scope)
	for _, canonical := range candidates {
		if scope.Registry == nil {
			continue
		}
		if iss, has := scope.Registry.ValidateColumn(canonical, ref.Column, a.StatementIndex); has {
			result.Issues = append(result.Issues, iss)
		}
		entry, ok := scope.Registry.Get(canonical)
		if !ok {
			continue
		}
		normalizedCol := scope.Norm.Normalize(ref.Column)
		for _, c := range entry.Table.Columns {
			if scope.Norm.Normalize(c.Name) == normalizedCol && c.HasDataType {
				if t, ok := typesystem.NormalizeTypeName(c.DataType); ok {
					result.Type = t
					result.HasType = true
				}
			}
		}
		result.References[0].CanonicalTable = canonical
		result.References[0].Resolved = true
	}

	return result
}

// candidateTables returns the canonical table(s) a column reference might
// resolve against: the single qualified binding if the reference was
// qualified, or every bound table if it was bare (the lineage builder
// narrows a bare, ambiguous reference further using its own join context).
func (a *Analyzer) candidateTables(ref ColumnReference, scope *Scope) []string {
	if scope == nil {
		return nil
	}
	if ref.HasQualifier {
		if canonical, ok := scope.Bindings[scope.Norm.Normalize(ref.Qualifier)]; ok {
			return []string{canonical}
		}
		return nil
	}
	out := make([]string, 0, len(scope.Bindings))
	for _, canonical := range scope.Bindings {
		out = append(out, canonical)
	}
	return out
}

func (a *Analyzer) analyzeBinary(n *parser.BinaryExpr, scope *Scope, depth int) Result {
	left := a.analyzeDepth(n.Left, scope, depth+1)
	right := a.analyzeDepth(n.Right, scope, depth+1)
	result := mergeRefs(Result{Classification: Derived}, left)
	result = mergeRefs(result, right)

	switch n.Op {
	case "AND", "OR", "LIKE", "NOT LIKE":
		result.Type = typesystem.Boolean
		result.HasType = true
		return result
	case "=", "<", ">", "<=", ">=", "<>", "!=":
		result.Type = typesystem.Boolean
		result.HasType = true
		if left.HasType && right.HasType && left.Type != typesystem.Unknown && right.Type != typesystem.Unknown {
			if !typesystem.CanImplicitlyCast(left.Type, right.Type) && !typesystem.CanImplicitlyCast(right.Type, left.Type) {
				result.Issues = append(result.Issues, issue.Warn(issue.CodeTypeMismatch,
					"comparison between incompatible types "+left.Type.String()+" and "+right.Type.String()).
					WithStatement(a.StatementIndex))
			}
		}
		return result
	case "||":
		result.Type = typesystem.Text
		result.HasType = true
		return result
	default: // arithmetic
		if left.HasType && right.HasType {
			if t, ok := typesystem.WidestCommonType(left.Type, right.Type); ok {
				result.Type = t
				result.HasType = true
			} else {
				result.Issues = append(result.Issues, issue.Warn(issue.CodeTypeMismatch,
					"arithmetic between incompatible types "+left.Type.String()+" and "+right.Type.String()).
					WithStatement(a.StatementIndex))
			}
		}
		return result
	}
}

func (a *Analyzer) analyzeCase(n *parser.CaseExpr, scope *Scope, depth int) Result {
	result := Result{Classification: Derived}
	if n.Operand != nil {
		result = mergeRefs(result, a.analyzeDepth(n.Operand, scope, depth+1))
	}
	var branchType typesystem.CanonicalType
	hasBranchType := false
	for _, w := range n.Whens {
		result = mergeRefs(result, a.analyzeDepth(w.When, scope, depth+1))
		then := a.analyzeDepth(w.Then, scope, depth+1)
		result = mergeRefs(result, then)
		if then.HasType {
			if !hasBranchType {
				branchType, hasBranchType = then.Type, true
			} else if widened, ok := typesystem.WidestCommonType(branchType, then.Type); ok {
				branchType = widened
			}
		}
	}
	if n.Else != nil {
		elseResult := a.analyzeDepth(n.Else, scope, depth+1)
		result = mergeRefs(result, elseResult)
		if elseResult.HasType {
			if !hasBranchType {
				branchType, hasBranchType = elseResult.Type, true
			} else if widened, ok := typesystem.WidestCommonType(branchType, elseResult.Type); ok {
				branchType = widened
			}
		}
	}
	if hasBranchType {
		result.Type = branchType
		result.HasType = true
	}
	return result
}

func (a *Analyzer) analyzeFuncCall(n *parser.FuncCall, scope *Scope, depth int) Result {
	result := Result{Classification: Derived}
	argTypes := make([]typesystem.CanonicalType, 0, len(n.Args))
	for _, arg := range n.Args {
		argResult := a.analyzeDepth(arg, scope, depth+1)
		result = mergeRefs(result, argResult)
		if argResult.HasType {
			argTypes = append(argTypes, argResult.Type)
		}
	}

	kind := typesystem.ClassifyFunction(n.Name)
	switch {
	case n.Over != nil:
		result.Classification = Windowed
		for _, pe := range n.Over.PartitionBy {
			result = mergeRefs(result, a.analyzeDepth(pe, scope, depth+1))
		}
		for _, oi := range n.Over.OrderBy {
			result = mergeRefs(result, a.analyzeDepth(oi.Expr, scope, depth+1))
		}
	case kind == typesystem.AggregateFunction:
		result.Classification = Aggregated
	case kind == typesystem.TableGeneratingFunction:
		result.Approximate = true
	}

	if t, ok := typesystem.InferFunctionReturnType(n.Name, argTypes); ok {
		result.Type = t
		result.HasType = true
	}
	return result
}

func mergeRefs(acc, next Result) Result {
	acc.References = append(acc.References, next.References...)
	acc.Issues = append(acc.Issues, next.Issues...)
	acc.Approximate = acc.Approximate || next.Approximate
	return acc
}

// promote returns the "larger" of two classifications, where Derived
// outranks DirectColumn/Constant: an expression combining a bare column
// with anything else is no longer a bare column reference.
func promote(a, b Classification) Classification {
	if a == Derived || b == Derived {
		return Derived
	}
	if a > b {
		return a
	}
	return b
}

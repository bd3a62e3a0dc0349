package parser

import "github.com/flowscope/flowscope/issue"

// Statement is the closed set of top-level SQL statement kinds the grammar
// produces. A statement the parser cannot fully reduce still yields a
// *RawStatement so callers always get something to attach a span and a
// ParserFallback-tagged issue to, per the parser-fallback model (see
// issue.FallbackSource).
type Statement interface {
	Span() issue.Span
	statementNode()
}

type baseStatement struct {
	span issue.Span
}

func (b baseStatement) Span() issue.Span { return b.span }

// RawStatement is produced when the grammar recognizes a statement
// boundary but cannot parse its interior (an unsupported dialect
// extension, a syntax error, or a construct outside the scoped grammar).
// Components that consume Statement must treat this as "unknown but
// present" rather than crash.
type RawStatement struct {
	baseStatement
	Text string
	Err  error

	// ValidSyntax is true when an external, dialect-specific validator
	// (currently pg_query_go for Postgres) confirmed the text is
	// syntactically valid SQL even though this grammar couldn't reduce
	// it — a signal that the gap is in this package's coverage, not in
	// the input. Lint confidence does not depend on it: every fallback
	// statement is linted at Medium/ParserFallback.
	ValidSyntax bool
}

func (*RawStatement) statementNode() {}

// TableName is a (possibly multi-part) table reference as it appeared in
// source, before schema-registry canonicalization.
type TableName struct {
	Parts []string // e.g. ["catalog", "schema", "table"]
	span  issue.Span
}

func (t TableName) Span() issue.Span { return t.span }

// Qualified joins the raw parts with ".", exactly as they appeared in
// source (quotes included) — the schema registry's
// CanonicalizeTableReference is responsible for normalization.
func (t TableName) Qualified() string {
	out := ""
	for i, p := range t.Parts {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

// CTE is one WITH-clause common table expression.
type CTE struct {
	Name          string
	ColumnAliases []string
	Query         Statement
	Recursive     bool
	// Span covers the CTE's name through its closing paren, letting
	// lineage.CTENode anchor to the defining token rather than the whole
	// enclosing statement.
	Span issue.Span
}

// SelectStatement is the common interface for anything that can appear as
// the body of a query: a single SELECT, or a set operation combining two
// query bodies.
type SelectStatement interface {
	Statement
	selectStatementNode()
}

// SetOp is the closed set of set operators.
type SetOp int

const (
	SetOpNone SetOp = iota
	Union
	UnionAll
	Intersect
	Except
)

// SetOperation combines two query bodies with UNION/INTERSECT/EXCEPT.
type SetOperation struct {
	baseStatement
	Op    SetOp
	Left  SelectStatement
	Right SelectStatement
}

func (*SetOperation) statementNode()       {}
func (*SetOperation) selectStatementNode() {}

// SelectExpr is one item in a SELECT's projection list.
type SelectExpr struct {
	Star  bool   // true for "*" or "table.*"
	Table string // non-empty only when Star is a qualified "table.*"
	Expr  Expr   // nil when Star is true
	Alias string
	// Span covers the select item's own tokens (expression and alias, or
	// the "*"/"table.*"), not the enclosing statement.
	Span issue.Span
}

// JoinKind is the closed set of join types the grammar recognizes.
type JoinKind int

const (
	InnerJoin JoinKind = iota
	LeftJoin
	RightJoin
	FullJoin
	CrossJoin
)

// FromItem is one entry in a FROM clause: either a base table reference, a
// parenthesized subquery, or a join combining two earlier FromItems.
type FromItem struct {
	Table    *TableName
	Alias    string
	Subquery SelectStatement // non-nil for a derived table: (SELECT ...) AS alias
	Lateral  bool

	// Set when this FromItem is itself a join.
	JoinKind  JoinKind
	HasJoin   bool
	Left      *FromItem
	Right     *FromItem
	JoinOn    Expr
	JoinUsing []string
}

// OrderItem is one ORDER BY entry.
type OrderItem struct {
	Expr       Expr
	Descending bool
}

// Select is a single SELECT ... FROM ... WHERE ... query body (no set
// operations; those wrap a Select in a SetOperation).
type Select struct {
	baseStatement
	With        []CTE
	Distinct    bool
	SelectExprs []SelectExpr
	From        []FromItem
	Where       Expr
	GroupBy     []Expr
	Having      Expr
	OrderBy     []OrderItem
	Limit       Expr
	HasLimit    bool
}

func (*Select) statementNode()       {}
func (*Select) selectStatementNode() {}

// ColumnDef is one column in a CREATE TABLE's column list.
type ColumnDef struct {
	Name         string
	TypeName     string
	NotNull      bool
	PrimaryKey   bool
	Unique       bool
	HasDefault   bool
	Default      Expr
	References   *ForeignKeyClause
}

// ForeignKeyClause is an inline or table-level REFERENCES clause.
type ForeignKeyClause struct {
	Table   TableName
	Columns []string
}

// TableConstraintKind mirrors schema.ConstraintType for table-level
// constraints discovered while parsing CREATE TABLE.
type TableConstraintKind int

const (
	ConstraintPrimaryKey TableConstraintKind = iota
	ConstraintForeignKey
	ConstraintUnique
	ConstraintCheck
)

// TableConstraint is a table-level constraint clause (as opposed to an
// inline per-column one).
type TableConstraint struct {
	Kind              TableConstraintKind
	Columns           []string
	ReferencedTable   TableName
	HasReferenced     bool
	ReferencedColumns []string
}

// CreateTable is a CREATE [TEMPORARY] TABLE statement.
type CreateTable struct {
	baseStatement
	Name        TableName
	IfNotExists bool
	Temporary   bool
	Columns     []ColumnDef
	Constraints []TableConstraint
	AsSelect    SelectStatement // non-nil for CREATE TABLE ... AS SELECT
}

func (*CreateTable) statementNode() {}

// CreateView is a CREATE [OR REPLACE] [MATERIALIZED] VIEW statement.
type CreateView struct {
	baseStatement
	Name         TableName
	OrReplace    bool
	Materialized bool
	ColumnAliases []string
	Definition   SelectStatement
}

func (*CreateView) statementNode() {}

// InsertStatement is an INSERT INTO statement, sourced either from VALUES
// rows or from a SELECT.
type InsertStatement struct {
	baseStatement
	Table   TableName
	Columns []string
	Select  SelectStatement // non-nil for INSERT INTO ... SELECT
	Values  [][]Expr        // non-nil for INSERT INTO ... VALUES (...), (...)
}

func (*InsertStatement) statementNode() {}

// DropStatement is a DROP TABLE/VIEW statement.
type DropObjectKind int

const (
	DropTable DropObjectKind = iota
	DropView
)

type DropStatement struct {
	baseStatement
	Kind     DropObjectKind
	Name     TableName
	IfExists bool
}

func (*DropStatement) statementNode() {}

// --- Expressions ---

// Expr is the common interface for every expression node.
type Expr interface {
	exprNode()
}

// Literal is a numeric, string, boolean, or NULL literal.
type LiteralKind int

const (
	LiteralNumber LiteralKind = iota
	LiteralString
	LiteralBool
	LiteralNull
)

type Literal struct {
	Kind LiteralKind
	Text string
}

func (*Literal) exprNode() {}

// ColumnRef is an identifier or dotted identifier chain referencing a
// column, optionally table-qualified (Table, or Table+Schema for a
// three-part reference — stored flat in Qualifiers).
type ColumnRef struct {
	Qualifiers []string // e.g. ["o"] for o.id, empty for a bare column
	Column     string
}

func (*ColumnRef) exprNode() {}

// BinaryExpr is a binary operator expression (arithmetic, comparison,
// AND/OR, string concatenation, etc).
type BinaryExpr struct {
	Op    string
	Left  Expr
	Right Expr
}

func (*BinaryExpr) exprNode() {}

// UnaryExpr is a prefix unary operator (NOT, unary -, unary +).
type UnaryExpr struct {
	Op   string
	Expr Expr
}

func (*UnaryExpr) exprNode() {}

// FuncCall is a function call expression, e.g. SUM(x), COUNT(*),
// ROW_NUMBER() OVER (...).
type FuncCall struct {
	Name     string
	Args     []Expr
	Star     bool // true for COUNT(*)
	Distinct bool
	Over     *WindowSpec // non-nil if this call has an OVER clause
}

func (*FuncCall) exprNode() {}

// WindowSpec is a window function's OVER(...) clause.
type WindowSpec struct {
	PartitionBy []Expr
	OrderBy     []OrderItem
}

// CaseExpr is a CASE [expr] WHEN ... THEN ... [ELSE ...] END expression.
type CaseWhen struct {
	When Expr
	Then Expr
}

type CaseExpr struct {
	Operand Expr // non-nil for the "simple CASE x WHEN ..." form
	Whens   []CaseWhen
	Else    Expr
}

func (*CaseExpr) exprNode() {}

// CastExpr is CAST(expr AS type).
type CastExpr struct {
	Expr     Expr
	TypeName string
}

func (*CastExpr) exprNode() {}

// InExpr is `expr [NOT] IN (...)`, where the list is either a set of
// scalar expressions or a subquery.
type InExpr struct {
	Expr     Expr
	Not      bool
	List     []Expr
	Subquery SelectStatement
}

func (*InExpr) exprNode() {}

// BetweenExpr is `expr [NOT] BETWEEN lo AND hi`.
type BetweenExpr struct {
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

func (*BetweenExpr) exprNode() {}

// SubqueryExpr wraps a SELECT used in scalar/expression position, e.g.
// `WHERE x = (SELECT max(y) FROM t)`.
type SubqueryExpr struct {
	Query SelectStatement
}

func (*SubqueryExpr) exprNode() {}

// StarExpr represents a bare `*` appearing where an expression is
// syntactically expected (only legal inside COUNT(*) in this grammar).
type StarExpr struct{}

func (*StarExpr) exprNode() {}

package parser

import (
	"fmt"
	"strconv"
	"strings"

	pgquery "github.com/pganalyze/pg_query_go/v2"

	"github.com/flowscope/flowscope/dialect"
	"github.com/flowscope/flowscope/issue"
)

// ParseError reports a syntax error at a specific offset, letting callers
// degrade to ParserFallback confidence for the enclosing statement rather
// than aborting the whole analysis.
type ParseError struct {
	Offset  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Message)
}

type parser struct {
	toks    []Token
	pos     int
	dialect dialect.Dialect
}

func (p *parser) cur() Token  { return p.toks[p.pos] }
func (p *parser) atEnd() bool { return p.cur().Kind == TokenEOF }

func (p *parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

// prevEnd returns the byte offset just past the most recently consumed
// token, for capturing a span that ends where parsing of some production
// stopped.
func (p *parser) prevEnd() int {
	if p.pos == 0 {
		return 0
	}
	return p.toks[p.pos-1].End
}

func (p *parser) isKeyword(word string) bool {
	t := p.cur()
	return t.Kind == TokenKeyword && strings.EqualFold(t.Text, word)
}

func (p *parser) isPunct(text string) bool {
	t := p.cur()
	return (t.Kind == TokenPunct || t.Kind == TokenOperator) && t.Text == text
}

func (p *parser) expectKeyword(word string) error {
	if !p.isKeyword(word) {
		return &ParseError{Offset: p.cur().Start, Message: fmt.Sprintf("expected keyword %q, got %q", word, p.cur().Text)}
	}
	p.advance()
	return nil
}

func (p *parser) expectPunct(text string) error {
	if !p.isPunct(text) {
		return &ParseError{Offset: p.cur().Start, Message: fmt.Sprintf("expected %q, got %q", text, p.cur().Text)}
	}
	p.advance()
	return nil
}

// eatKeyword consumes the keyword if present and reports whether it did.
func (p *parser) eatKeyword(word string) bool {
	if p.isKeyword(word) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) eatPunct(text string) bool {
	if p.isPunct(text) {
		p.advance()
		return true
	}
	return false
}

// SplitStatements splits a script into individual statement source texts on
// top-level semicolons (semicolons inside string/quoted-identifier literals
// are not split points). Grounded on sqldef's parser/sqldef.go
// splitDDLs, simplified: FlowScope doesn't need the "retry with a larger
// chunk on parse failure" heuristic because RawStatement fallback means a
// wrongly split statement degrades gracefully rather than failing analysis
// outright.
func SplitStatements(src string, d dialect.Dialect) []string {
	toks := AllTokens(src, d)
	var pieces []string
	lastCut := 0
	depth := 0
	for _, t := range toks {
		switch {
		case t.Kind == TokenPunct && t.Text == "(":
			depth++
		case t.Kind == TokenPunct && t.Text == ")":
			if depth > 0 {
				depth--
			}
		case t.Kind == TokenPunct && t.Text == ";" && depth == 0:
			piece := strings.TrimSpace(src[lastCut:t.Start])
			if piece != "" {
				pieces = append(pieces, piece)
			}
			lastCut = t.End
		case t.Kind == TokenEOF:
			piece := strings.TrimSpace(src[lastCut:t.Start])
			if piece != "" {
				pieces = append(pieces, piece)
			}
		}
	}
	return pieces
}

// Parse parses a single SQL statement under the given dialect. On a syntax
// error it returns a *RawStatement wrapping the original text (with Err
// set) rather than an error, so callers always get a Statement to attach
// ParserFallback-tagged issues to — see issue.FallbackSource.
func Parse(src string, d dialect.Dialect) Statement {
	toks := AllTokens(src, d)
	p := &parser{toks: toks, dialect: d}
	stmt, err := p.parseStatement()
	if err != nil {
		return &RawStatement{
			baseStatement: baseStatement{span: issue.Span{Start: 0, End: len(src)}},
			Text:          src,
			Err:           err,
			ValidSyntax:   d == dialect.Postgres && isValidPostgresSyntax(src),
		}
	}
	setStatementSpan(stmt, issue.Span{Start: 0, End: len(src)})
	return stmt
}

// isValidPostgresSyntax asks pg_query_go's bundled copy of the real
// Postgres grammar whether src parses at all. It is only consulted once
// this package's own grammar has already failed, to classify the failure:
// a pg_query_go success means the construct is valid SQL outside this
// package's scoped grammar, a failure means the input itself is broken.
func isValidPostgresSyntax(src string) bool {
	_, err := pgquery.Parse(src)
	return err == nil
}

// setStatementSpan fills in the whole-statement span the grammar doesn't
// track node-by-node. FlowScope anchors issues to the enclosing statement
// far more often than to a sub-expression, so a single per-statement span
// (rather than per-node spans threaded through every production) covers
// the cases that matter at a fraction of the bookkeeping.
func setStatementSpan(stmt Statement, span issue.Span) {
	switch s := stmt.(type) {
	case *Select:
		s.span = span
	case *SetOperation:
		s.span = span
	case *CreateTable:
		s.span = span
	case *CreateView:
		s.span = span
	case *InsertStatement:
		s.span = span
	case *DropStatement:
		s.span = span
	}
}

// ParseScript splits src into statements and parses each independently. A
// single malformed statement never prevents the rest of the script from
// being analyzed.
func ParseScript(src string, d dialect.Dialect) []Statement {
	pieces := SplitStatements(src, d)
	out := make([]Statement, 0, len(pieces))
	for _, piece := range pieces {
		out = append(out, Parse(piece, d))
	}
	return out
}

func (p *parser) parseStatement() (Statement, error) {
	switch {
	case p.isKeyword("with"):
		return p.parseSelectWithCTEs()
	case p.isKeyword("select"):
		return p.parseSetOperation()
	case p.isKeyword("create"):
		return p.parseCreate()
	case p.isKeyword("insert"):
		return p.parseInsert()
	case p.isKeyword("drop"):
		return p.parseDrop()
	default:
		return nil, &ParseError{Offset: p.cur().Start, Message: "unsupported statement"}
	}
}

func (p *parser) parseSelectWithCTEs() (Statement, error) {
	var ctes []CTE
	if p.eatKeyword("with") {
		recursive := p.eatKeyword("recursive")
		for {
			cteStart := p.cur().Start
			name, err := p.parseIdentName()
			if err != nil {
				return nil, err
			}
			var colAliases []string
			if p.eatPunct("(") {
				for {
					col, err := p.parseIdentName()
					if err != nil {
						return nil, err
					}
					colAliases = append(colAliases, col)
					if p.eatPunct(",") {
						continue
					}
					break
				}
				if err := p.expectPunct(")"); err != nil {
					return nil, err
				}
			}
			if err := p.expectKeyword("as"); err != nil {
				return nil, err
			}
			if err := p.expectPunct("("); err != nil {
				return nil, err
			}
			query, err := p.parseSetOperation()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			ctes = append(ctes, CTE{
				Name:          name,
				ColumnAliases: colAliases,
				Query:         query,
				Recursive:     recursive,
				Span:          issue.Span{Start: cteStart, End: p.prevEnd()},
			})
			if p.eatPunct(",") {
				continue
			}
			break
		}
	}
	body, err := p.parseSetOperation()
	if err != nil {
		return nil, err
	}
	if sel, ok := body.(*Select); ok {
		sel.With = ctes
		return sel, nil
	}
	return body, nil
}

func (p *parser) parseSetOperation() (SelectStatement, error) {
	left, err := p.parseSelect()
	if err != nil {
		return nil, err
	}
	var result SelectStatement = left
	for {
		var op SetOp
		switch {
		case p.isKeyword("union"):
			p.advance()
			if p.eatKeyword("all") {
				op = UnionAll
			} else {
				op = Union
			}
		case p.isKeyword("intersect"):
			p.advance()
			op = Intersect
		case p.isKeyword("except"):
			p.advance()
			op = Except
		default:
			return result, nil
		}
		right, err := p.parseSelect()
		if err != nil {
			return nil, err
		}
		result = &SetOperation{Op: op, Left: result, Right: right}
	}
}

func (p *parser) parseSelect() (*Select, error) {
	if p.eatPunct("(") {
		inner, err := p.parseSetOperation()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		if sel, ok := inner.(*Select); ok {
			return sel, nil
		}
		return &Select{}, nil
	}

	if err := p.expectKeyword("select"); err != nil {
		return nil, err
	}
	sel := &Select{}
	sel.Distinct = p.eatKeyword("distinct")
	p.eatKeyword("all")

	items, err := p.parseSelectExprList()
	if err != nil {
		return nil, err
	}
	sel.SelectExprs = items

	if p.eatKeyword("from") {
		from, err := p.parseFromList()
		if err != nil {
			return nil, err
		}
		sel.From = from
	}

	if p.eatKeyword("where") {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Where = expr
	}

	if p.eatKeyword("group") {
		if err := p.expectKeyword("by"); err != nil {
			return nil, err
		}
		exprs, err := p.parseExprListUntilClause()
		if err != nil {
			return nil, err
		}
		sel.GroupBy = exprs
	}

	if p.eatKeyword("having") {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Having = expr
	}

	if p.eatKeyword("order") {
		if err := p.expectKeyword("by"); err != nil {
			return nil, err
		}
		items, err := p.parseOrderByList()
		if err != nil {
			return nil, err
		}
		sel.OrderBy = items
	}

	if p.eatKeyword("limit") {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		sel.Limit = expr
		sel.HasLimit = true
	}

	return sel, nil
}

func (p *parser) parseSelectExprList() ([]SelectExpr, error) {
	var out []SelectExpr
	for {
		item, err := p.parseSelectExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
		if p.eatPunct(",") {
			continue
		}
		return out, nil
	}
}

func (p *parser) parseSelectExpr() (SelectExpr, error) {
	start := p.cur().Start
	if p.isPunct("*") {
		p.advance()
		return SelectExpr{Star: true, Span: issue.Span{Start: start, End: p.prevEnd()}}, nil
	}
	// "table.*" — peek ahead for ident '.' '*'
	if p.cur().Kind == TokenIdent && p.pos+2 < len(p.toks) &&
		p.toks[p.pos+1].Kind == TokenPunct && p.toks[p.pos+1].Text == "." &&
		p.toks[p.pos+2].Kind == TokenPunct && p.toks[p.pos+2].Text == "*" {
		tbl := p.advance().Text
		p.advance() // .
		p.advance() // *
		return SelectExpr{Star: true, Table: tbl, Span: issue.Span{Start: start, End: p.prevEnd()}}, nil
	}

	expr, err := p.parseExpr()
	if err != nil {
		return SelectExpr{}, err
	}
	alias := ""
	if p.eatKeyword("as") {
		alias, err = p.parseIdentName()
		if err != nil {
			return SelectExpr{}, err
		}
	} else if p.cur().Kind == TokenIdent {
		alias = p.advance().Text
	}
	return SelectExpr{Expr: expr, Alias: alias, Span: issue.Span{Start: start, End: p.prevEnd()}}, nil
}

func (p *parser) parseFromList() ([]FromItem, error) {
	var out []FromItem
	for {
		item, err := p.parseFromItem()
		if err != nil {
			return nil, err
		}
		out = append(out, item)
		if p.eatPunct(",") {
			continue
		}
		return out, nil
	}
}

func (p *parser) parseFromItem() (FromItem, error) {
	item, err := p.parseFromPrimary()
	if err != nil {
		return FromItem{}, err
	}
	for {
		kind, has, err := p.parseJoinKeyword()
		if err != nil {
			return FromItem{}, err
		}
		if !has {
			return item, nil
		}
		right, err := p.parseFromPrimary()
		if err != nil {
			return FromItem{}, err
		}
		joined := FromItem{HasJoin: true, JoinKind: kind}
		left := item
		joined.Left = &left
		joined.Right = &right

		if kind != CrossJoin {
			switch {
			case p.eatKeyword("on"):
				cond, err := p.parseExpr()
				if err != nil {
					return FromItem{}, err
				}
				joined.JoinOn = cond
			case p.eatKeyword("using"):
				if err := p.expectPunct("("); err != nil {
					return FromItem{}, err
				}
				for {
					col, err := p.parseIdentName()
					if err != nil {
						return FromItem{}, err
					}
					joined.JoinUsing = append(joined.JoinUsing, col)
					if p.eatPunct(",") {
						continue
					}
					break
				}
				if err := p.expectPunct(")"); err != nil {
					return FromItem{}, err
				}
			}
		}
		item = joined
	}
}

func (p *parser) parseJoinKeyword() (JoinKind, bool, error) {
	switch {
	case p.isKeyword("join"):
		p.advance()
		return InnerJoin, true, nil
	case p.isKeyword("inner"):
		p.advance()
		if err := p.expectKeyword("join"); err != nil {
			return 0, false, err
		}
		return InnerJoin, true, nil
	case p.isKeyword("left"):
		p.advance()
		p.eatKeyword("outer")
		if err := p.expectKeyword("join"); err != nil {
			return 0, false, err
		}
		return LeftJoin, true, nil
	case p.isKeyword("right"):
		p.advance()
		p.eatKeyword("outer")
		if err := p.expectKeyword("join"); err != nil {
			return 0, false, err
		}
		return RightJoin, true, nil
	case p.isKeyword("full"):
		p.advance()
		p.eatKeyword("outer")
		if err := p.expectKeyword("join"); err != nil {
			return 0, false, err
		}
		return FullJoin, true, nil
	case p.isKeyword("cross"):
		p.advance()
		if err := p.expectKeyword("join"); err != nil {
			return 0, false, err
		}
		return CrossJoin, true, nil
	default:
		return 0, false, nil
	}
}

func (p *parser) parseFromPrimary() (FromItem, error) {
	lateral := p.eatKeyword("lateral")
	if p.eatPunct("(") {
		sub, err := p.parseSetOperation()
		if err != nil {
			return FromItem{}, err
		}
		if err := p.expectPunct(")"); err != nil {
			return FromItem{}, err
		}
		item := FromItem{Subquery: sub, Lateral: lateral}
		item.Alias = p.parseOptionalAlias()
		return item, nil
	}

	tbl, err := p.parseTableName()
	if err != nil {
		return FromItem{}, err
	}
	item := FromItem{Table: &tbl}
	item.Alias = p.parseOptionalAlias()
	return item, nil
}

func (p *parser) parseOptionalAlias() string {
	if p.eatKeyword("as") {
		if p.cur().Kind == TokenIdent || p.cur().Kind == TokenQuotedIdent {
			return p.advance().Text
		}
		return ""
	}
	if p.cur().Kind == TokenIdent && !p.startsClause() {
		return p.advance().Text
	}
	return ""
}

// startsClause reports whether the current token begins a clause keyword
// that can follow a table reference (so a bare identifier there is NOT an
// alias).
func (p *parser) startsClause() bool {
	for _, kw := range []string{"where", "group", "having", "order", "limit", "join", "inner", "left", "right", "full", "cross", "on", "union", "intersect", "except"} {
		if p.isKeyword(kw) {
			return true
		}
	}
	return false
}

func (p *parser) parseTableName() (TableName, error) {
	start := p.cur().Start
	var parts []string
	name, err := p.parseIdentName()
	if err != nil {
		return TableName{}, err
	}
	parts = append(parts, name)
	for p.eatPunct(".") {
		name, err := p.parseIdentName()
		if err != nil {
			return TableName{}, err
		}
		parts = append(parts, name)
	}
	return TableName{Parts: parts, span: issue.Span{Start: start, End: p.cur().Start}}, nil
}

func (p *parser) parseIdentName() (string, error) {
	t := p.cur()
	if t.Kind != TokenIdent && t.Kind != TokenQuotedIdent {
		return "", &ParseError{Offset: t.Start, Message: fmt.Sprintf("expected identifier, got %q", t.Text)}
	}
	p.advance()
	return t.Text, nil
}

func (p *parser) parseOrderByList() ([]OrderItem, error) {
	var out []OrderItem
	for {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		desc := false
		if p.eatKeyword("asc") {
			desc = false
		} else if p.eatKeyword("desc") {
			desc = true
		}
		out = append(out, OrderItem{Expr: expr, Descending: desc})
		if p.eatPunct(",") {
			continue
		}
		return out, nil
	}
}

func (p *parser) parseExprListUntilClause() ([]Expr, error) {
	var out []Expr
	for {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		out = append(out, expr)
		if p.eatPunct(",") {
			continue
		}
		return out, nil
	}
}

// --- expressions: precedence climbing ---
// or < and < not < comparison/[NOT] IN/BETWEEN/LIKE/IS < concat/additive < multiplicative < unary < primary

func (p *parser) parseExpr() (Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "OR", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "AND", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.eatKeyword("not") {
		inner, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "NOT", Expr: inner}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseConcat()
	if err != nil {
		return nil, err
	}

	negate := p.eatKeyword("not")

	switch {
	case p.isKeyword("between"):
		p.advance()
		lo, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("and"); err != nil {
			return nil, err
		}
		hi, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		return &BetweenExpr{Expr: left, Not: negate, Low: lo, High: hi}, nil

	case p.isKeyword("in"):
		p.advance()
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		if p.isKeyword("select") || p.isKeyword("with") {
			sub, err := p.parseSetOperation()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return &InExpr{Expr: left, Not: negate, Subquery: sub}, nil
		}
		var list []Expr
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			list = append(list, e)
			if p.eatPunct(",") {
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return &InExpr{Expr: left, Not: negate, List: list}, nil

	case p.isKeyword("like"):
		p.advance()
		right, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		op := "LIKE"
		if negate {
			op = "NOT LIKE"
		}
		return &BinaryExpr{Op: op, Left: left, Right: right}, nil
	}

	if negate {
		return nil, &ParseError{Offset: p.cur().Start, Message: "unexpected NOT"}
	}

	if p.isKeyword("is") {
		p.advance()
		notNull := p.eatKeyword("not")
		if err := p.expectKeyword("null"); err != nil {
			return nil, err
		}
		op := "IS NULL"
		if notNull {
			op = "IS NOT NULL"
		}
		return &UnaryExpr{Op: op, Expr: left}, nil
	}

	if op, ok := p.peekComparisonOp(); ok {
		p.advance()
		right, err := p.parseConcat()
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: op, Left: left, Right: right}, nil
	}

	return left, nil
}

func (p *parser) peekComparisonOp() (string, bool) {
	t := p.cur()
	if t.Kind != TokenOperator {
		return "", false
	}
	switch t.Text {
	case "=", "<", ">", "<=", ">=", "<>", "!=":
		return t.Text, true
	}
	return "", false
}

func (p *parser) parseConcat() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.isPunct("||") {
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: "||", Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isPunct("+") || p.isPunct("-") {
		op := p.advance().Text
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isPunct("*") || p.isPunct("/") || p.isPunct("%") {
		op := p.advance().Text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.isPunct("-") || p.isPunct("+") {
		op := p.advance().Text
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: op, Expr: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch {
	case t.Kind == TokenNumber:
		p.advance()
		if _, err := strconv.ParseFloat(t.Text, 64); err != nil {
			return nil, &ParseError{Offset: t.Start, Message: "invalid numeric literal"}
		}
		return &Literal{Kind: LiteralNumber, Text: t.Text}, nil

	case t.Kind == TokenString:
		p.advance()
		return &Literal{Kind: LiteralString, Text: t.Text}, nil

	case p.isKeyword("null"):
		p.advance()
		return &Literal{Kind: LiteralNull}, nil

	case p.isKeyword("true") || p.isKeyword("false"):
		p.advance()
		return &Literal{Kind: LiteralBool, Text: t.Text}, nil

	case p.isKeyword("case"):
		return p.parseCase()

	case p.isKeyword("cast"):
		return p.parseCast()

	case p.isPunct("("):
		p.advance()
		if p.isKeyword("select") || p.isKeyword("with") {
			sub, err := p.parseSetOperation()
			if err != nil {
				return nil, err
			}
			if err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			return &SubqueryExpr{Query: sub}, nil
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return inner, nil

	case t.Kind == TokenIdent || t.Kind == TokenQuotedIdent || t.Kind == TokenKeyword:
		return p.parseIdentOrCallOrColumnRef()

	default:
		return nil, &ParseError{Offset: t.Start, Message: fmt.Sprintf("unexpected token %q", t.Text)}
	}
}

func (p *parser) parseCase() (Expr, error) {
	p.advance() // CASE
	ce := &CaseExpr{}
	if !p.isKeyword("when") {
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Operand = operand
	}
	for p.eatKeyword("when") {
		when, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("then"); err != nil {
			return nil, err
		}
		then, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Whens = append(ce.Whens, CaseWhen{When: when, Then: then})
	}
	if p.eatKeyword("else") {
		elseExpr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		ce.Else = elseExpr
	}
	if err := p.expectKeyword("end"); err != nil {
		return nil, err
	}
	return ce, nil
}

func (p *parser) parseCast() (Expr, error) {
	p.advance() // CAST
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	inner, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("as"); err != nil {
		return nil, err
	}
	typeName, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return &CastExpr{Expr: inner, TypeName: typeName}, nil
}

func (p *parser) parseTypeName() (string, error) {
	name, err := p.parseIdentName()
	if err != nil {
		return "", err
	}
	if p.eatPunct("(") {
		var parts []string
		for {
			if p.cur().Kind == TokenNumber {
				parts = append(parts, p.advance().Text)
			} else {
				break
			}
			if p.eatPunct(",") {
				continue
			}
			break
		}
		if err := p.expectPunct(")"); err != nil {
			return "", err
		}
		name = name + "(" + strings.Join(parts, ",") + ")"
	}
	return name, nil
}

// parseIdentOrCallOrColumnRef disambiguates bare identifiers, dotted column
// references, and function calls (including an OVER() window clause).
func (p *parser) parseIdentOrCallOrColumnRef() (Expr, error) {
	first, err := p.parseIdentName()
	if err != nil {
		return nil, err
	}

	if p.isPunct("(") {
		return p.parseFuncCallTail(first)
	}

	parts := []string{first}
	for p.eatPunct(".") {
		if p.isPunct("*") {
			p.advance()
			return &StarExpr{}, nil
		}
		name, err := p.parseIdentName()
		if err != nil {
			return nil, err
		}
		parts = append(parts, name)
	}

	col := parts[len(parts)-1]
	qualifiers := parts[:len(parts)-1]
	return &ColumnRef{Qualifiers: qualifiers, Column: col}, nil
}

func (p *parser) parseFuncCallTail(name string) (Expr, error) {
	p.advance() // (
	call := &FuncCall{Name: name}
	if p.isPunct("*") {
		p.advance()
		call.Star = true
	} else if !p.isPunct(")") {
		call.Distinct = p.eatKeyword("distinct")
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			call.Args = append(call.Args, arg)
			if p.eatPunct(",") {
				continue
			}
			break
		}
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}

	if p.eatKeyword("over") {
		win := &WindowSpec{}
		if err := p.expectPunct("("); err != nil {
			return nil, err
		}
		if p.eatKeyword("partition") {
			if err := p.expectKeyword("by"); err != nil {
				return nil, err
			}
			exprs, err := p.parseExprListUntilClause()
			if err != nil {
				return nil, err
			}
			win.PartitionBy = exprs
		}
		if p.eatKeyword("order") {
			if err := p.expectKeyword("by"); err != nil {
				return nil, err
			}
			items, err := p.parseOrderByList()
			if err != nil {
				return nil, err
			}
			win.OrderBy = items
		}
		if err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		call.Over = win
	}

	return call, nil
}

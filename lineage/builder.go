package lineage

import (
	"fmt"

	"github.com/flowscope/flowscope/dialect"
	"github.com/flowscope/flowscope/expr"
	"github.com/flowscope/flowscope/internal/dump"
	"github.com/flowscope/flowscope/issue"
	"github.com/flowscope/flowscope/parser"
	"github.com/flowscope/flowscope/schema"
)

// Options controls lineage-builder behavior that varies per analyze call
// rather than per statement.
type Options struct {
	// HideCTEs removes CTE wrapper nodes, and the edges touching them, from
	// the built graph. Table-to-output reachability survives because a CTE's
	// columns are its body's own output nodes, not the wrapper node.
	HideCTEs bool
}

// columnBinding is one column a source (table/view/CTE/subquery) exposes,
// paired with the graph node that represents it.
type columnBinding struct {
	Name   string
	NodeID string
}

// sourceBinding is one resolved FROM-clause entry: an alias bound to a
// graph node and the columns reachable through it. Pointers are used
// throughout so that lazily discovered columns (referenced but not known
// from schema metadata) persist back into the shared binding.
type sourceBinding struct {
	Alias        string
	Canonical    string
	HasCanonical bool
	NodeID       string
	Kind         NodeKind
	Columns      []columnBinding
}

type cteBinding struct {
	NodeID  string
	Columns []columnBinding
}

// Builder constructs the lineage graph for a single statement. A fresh
// Builder is used per statement; nothing it owns survives past Build.
type Builder struct {
	Registry       *schema.Registry
	Norm           *dialect.Normalizer
	Dialect        dialect.Dialect
	StatementIndex int
	Options        Options

	graph    *Graph
	issues   []issue.Issue
	counter  nodeIDCounter
	ctes     map[string]*cteBinding
	stmtSpan issue.Span
}

// spanOr returns span if it is a well-formed (non-empty) sub-span, falling
// back to the enclosing statement's span otherwise. Every node the builder
// creates gets a span this way: a precise one anchored to the token that
// introduced it when the grammar tracked one, the statement's own span
// (still satisfying start < end and span-containment) when it didn't.
func (b *Builder) spanOr(span issue.Span) issue.Span {
	if span.Valid() {
		return span
	}
	return b.stmtSpan
}

// NewBuilder constructs a Builder bound to one statement's position and a
// shared schema registry/normalizer.
func NewBuilder(registry *schema.Registry, norm *dialect.Normalizer, d dialect.Dialect, statementIndex int, opts Options) *Builder {
	return &Builder{
		Registry:       registry,
		Norm:           norm,
		Dialect:        d,
		StatementIndex: statementIndex,
		Options:        opts,
		ctes:           make(map[string]*cteBinding),
	}
}

// Build produces the lineage graph and any issues raised while building it
// for a single parsed statement. Statement kinds the builder doesn't model
// (DROP, anything that failed to parse) yield an empty graph rather than
// an error.
func (b *Builder) Build(stmt parser.Statement) (*Graph, []issue.Issue) {
	b.graph = &Graph{StatementIndex: b.StatementIndex}
	b.stmtSpan = stmt.Span()

	switch s := stmt.(type) {
	case parser.SelectStatement:
		b.buildQuery(s)
	case *parser.CreateTable:
		b.buildCreateTable(s)
	case *parser.CreateView:
		b.buildCreateView(s)
	case *parser.InsertStatement:
		b.buildInsert(s)
	case *parser.DropStatement, *parser.RawStatement:
		// No lineage to build: DROP removes state tracked at the schema
		// registry level, and a raw (unparsed) statement carries its own
		// degraded-confidence issue already.
	}

	if b.Options.HideCTEs {
		b.graph.stripCTEs()
	}
	b.dedupeApproximateLineageIssues()
	dump.Value(b.graph)
	return b.graph, b.issues
}

func (g *Graph) stripCTEs() {
	removed := make(map[string]bool)
	for _, n := range g.Nodes {
		if n.Kind == CTENode {
			removed[n.ID] = true
		}
	}
	if len(removed) == 0 {
		return
	}
	keptNodes := g.Nodes[:0]
	for _, n := range g.Nodes {
		if !removed[n.ID] {
			keptNodes = append(keptNodes, n)
		}
	}
	g.Nodes = keptNodes

	keptEdges := g.Edges[:0]
	for _, e := range g.Edges {
		if removed[e.From] && e.Kind == Ownership {
			continue // the CTE's ownership wrapper disappears with the node
		}
		keptEdges = append(keptEdges, e)
	}
	g.Edges = keptEdges
}

func (b *Builder) dedupeApproximateLineageIssues() {
	seen := false
	kept := b.issues[:0]
	for _, iss := range b.issues {
		if iss.Code == issue.CodeApproximateLineage {
			if seen {
				continue
			}
			seen = true
		}
		kept = append(kept, iss)
	}
	b.issues = kept
}

// buildQuery dispatches to the concrete query-body builder and returns its
// output columns, for use by CTE registration, set operations, and DML
// target resolution.
func (b *Builder) buildQuery(stmt parser.SelectStatement) []columnBinding {
	switch s := stmt.(type) {
	case *parser.Select:
		return b.buildSelect(s)
	case *parser.SetOperation:
		return b.buildSetOperation(s)
	default:
		return nil
	}
}

func (b *Builder) buildSetOperation(op *parser.SetOperation) []columnBinding {
	left := b.buildQuery(op.Left)
	right := b.buildQuery(op.Right)
	n := len(left)
	if len(right) < n {
		n = len(right)
	}
	out := make([]columnBinding, 0, n)
	for i := 0; i < n; i++ {
		id := ordinalNodeID(b.StatementIndex, OutputNode, b.counter.take())
		node := b.graph.addNode(Node{ID: id, Kind: OutputNode, Label: left[i].Name, Span: b.stmtSpan, HasSpan: true})
		b.graph.addEdge(Edge{From: left[i].NodeID, To: node.ID, Kind: DataFlow})
		b.graph.addEdge(Edge{From: right[i].NodeID, To: node.ID, Kind: DataFlow})
		out = append(out, columnBinding{Name: left[i].Name, NodeID: node.ID})
	}
	if len(left) != len(right) {
		b.issues = append(b.issues, issue.Note(issue.CodeApproximateLineage,
			"set operation branches project a different number of columns").
			WithStatement(b.StatementIndex).WithSpan(b.stmtSpan))
	}
	return out
}

func (b *Builder) buildSelect(sel *parser.Select) []columnBinding {
	for _, cte := range sel.With {
		b.registerCTE(cte)
	}

	var ordered []*sourceBinding
	byAlias := make(map[string]*sourceBinding)
	for _, item := range sel.From {
		for _, sb := range b.resolveFromItem(item) {
			ordered = append(ordered, sb)
			byAlias[sb.Alias] = sb
		}
	}

	scope := expr.NewScope(b.Registry, b.Norm)
	for _, sb := range ordered {
		if sb.HasCanonical {
			scope.Bind(sb.Alias, sb.Canonical)
		}
	}

	a := &expr.Analyzer{StatementIndex: b.StatementIndex}
	if sel.Where != nil {
		b.issues = append(b.issues, a.Analyze(sel.Where, scope).Issues...)
	}
	if sel.Having != nil {
		b.issues = append(b.issues, a.Analyze(sel.Having, scope).Issues...)
	}

	out := make([]columnBinding, 0, len(sel.SelectExprs))
	for _, se := range sel.SelectExprs {
		out = append(out, b.buildSelectExpr(se, scope, ordered, byAlias)...)
	}
	return out
}

func (b *Builder) buildSelectExpr(se parser.SelectExpr, scope *expr.Scope, ordered []*sourceBinding, byAlias map[string]*sourceBinding) []columnBinding {
	if se.Star {
		var targets []*sourceBinding
		if se.Table != "" {
			if sb, ok := byAlias[b.Norm.Normalize(se.Table)]; ok {
				targets = []*sourceBinding{sb}
			}
		} else {
			targets = ordered
		}
		var out []columnBinding
		for _, sb := range targets {
			if len(sb.Columns) == 0 {
				b.issues = append(b.issues, issue.Note(issue.CodeApproximateLineage,
					"cannot expand * against a source with no known columns").
					WithStatement(b.StatementIndex).WithConfidence(issue.Medium, issue.TextOnly).
					WithSpan(b.spanOr(se.Span)))
				continue
			}
			for _, c := range sb.Columns {
				id := ordinalNodeID(b.StatementIndex, OutputNode, b.counter.take())
				node := b.graph.addNode(Node{ID: id, Kind: OutputNode, Label: c.Name, Span: b.spanOr(se.Span), HasSpan: true})
				b.graph.addEdge(Edge{From: c.NodeID, To: node.ID, Kind: DataFlow})
				out = append(out, columnBinding{Name: c.Name, NodeID: node.ID})
			}
		}
		return out
	}

	a := &expr.Analyzer{StatementIndex: b.StatementIndex}
	result := a.Analyze(se.Expr, scope)
	b.issues = append(b.issues, result.Issues...)

	label := se.Alias
	if label == "" {
		if result.Classification == expr.DirectColumn && len(result.References) == 1 {
			label = result.References[0].Column
		} else {
			label = fmt.Sprintf("expr#%d", b.counter.take())
		}
	}

	id := ordinalNodeID(b.StatementIndex, OutputNode, b.counter.take())
	node := b.graph.addNode(Node{ID: id, Kind: OutputNode, Label: label, Span: b.spanOr(se.Span), HasSpan: true})

	kind := Derivation
	if result.Classification == expr.DirectColumn {
		kind = DataFlow
	}
	wired := false
	for _, ref := range result.References {
		if nid, ok := b.resolveReference(ref, byAlias); ok {
			e := Edge{From: nid, To: node.ID, Kind: kind}
			if result.Approximate {
				e.Approximate, e.HasApproximate = "depth_limit", true
			}
			b.graph.addEdge(e)
			wired = true
		}
	}
	// A constant/literal select item (no References at all) or one whose
	// references couldn't be resolved to a source column still produces an
	// output node; mark it approximate rather than leaving it with zero
	// incoming edges, satisfying the "every output column has lineage, or
	// is flagged approximate" invariant.
	if !wired {
		b.issues = append(b.issues, issue.Note(issue.CodeApproximateLineage,
			fmt.Sprintf("output column %q has no traceable source column", label)).
			WithStatement(b.StatementIndex).WithConfidence(issue.Medium, issue.TextOnly).
			WithSpan(b.spanOr(se.Span)))
	}

	return []columnBinding{{Name: label, NodeID: node.ID}}
}

func (b *Builder) resolveReference(ref expr.ColumnReference, byAlias map[string]*sourceBinding) (string, bool) {
	if ref.HasQualifier {
		if sb, ok := byAlias[b.Norm.Normalize(ref.Qualifier)]; ok {
			return b.columnNodeFor(sb, ref.Column)
		}
		return "", false
	}
	for _, sb := range byAlias {
		if id, ok := b.columnNodeFor(sb, ref.Column); ok {
			return id, true
		}
	}
	return "", false
}

// columnNodeFor returns the node ID for name within sb, creating and
// recording a new column node (owned by sb's node) if this is the first
// time that column was referenced — schema metadata only ever lists known
// columns, but a statement may validly reference implied/unknown ones too.
func (b *Builder) columnNodeFor(sb *sourceBinding, name string) (string, bool) {
	normalized := b.Norm.Normalize(name)
	for _, c := range sb.Columns {
		if b.Norm.Normalize(c.Name) == normalized {
			return c.NodeID, true
		}
	}
	id := nodeID(b.StatementIndex, ColumnNode, sb.NodeID+"."+name)
	node := b.graph.addNode(Node{ID: id, Kind: ColumnNode, Label: name, Span: b.stmtSpan, HasSpan: true})
	b.graph.addEdge(Edge{From: sb.NodeID, To: node.ID, Kind: Ownership})
	sb.Columns = append(sb.Columns, columnBinding{Name: name, NodeID: node.ID})
	return node.ID, true
}

func (b *Builder) registerCTE(cte parser.CTE) {
	selStmt, ok := cte.Query.(parser.SelectStatement)
	if !ok {
		return
	}
	inner := b.buildQuery(selStmt)

	id := nodeID(b.StatementIndex, CTENode, b.Norm.Normalize(cte.Name))
	node := b.graph.addNode(Node{ID: id, Kind: CTENode, Label: cte.Name, Span: b.spanOr(cte.Span), HasSpan: true})

	cols := make([]columnBinding, len(inner))
	for i, c := range inner {
		name := c.Name
		if i < len(cte.ColumnAliases) {
			name = cte.ColumnAliases[i]
		}
		cols[i] = columnBinding{Name: name, NodeID: c.NodeID}
		b.graph.addEdge(Edge{From: node.ID, To: c.NodeID, Kind: Ownership})
	}

	b.ctes[b.Norm.Normalize(cte.Name)] = &cteBinding{NodeID: node.ID, Columns: cols}
}

func (b *Builder) resolveFromItem(item parser.FromItem) []*sourceBinding {
	if item.HasJoin {
		left := b.resolveFromItem(*item.Left)
		right := b.resolveFromItem(*item.Right)
		all := append(append([]*sourceBinding{}, left...), right...)

		if item.JoinOn != nil {
			localScope := expr.NewScope(b.Registry, b.Norm)
			byAlias := make(map[string]*sourceBinding)
			for _, sb := range all {
				byAlias[sb.Alias] = sb
				if sb.HasCanonical {
					localScope.Bind(sb.Alias, sb.Canonical)
				}
			}
			a := &expr.Analyzer{StatementIndex: b.StatementIndex}
			result := a.Analyze(item.JoinOn, localScope)
			b.issues = append(b.issues, result.Issues...)
			b.extractJoinEqualities(item.JoinOn, byAlias)
		}
		for _, col := range item.JoinUsing {
			var nodes []string
			for _, sb := range all {
				if nid, ok := b.columnNodeFor(sb, col); ok {
					nodes = append(nodes, nid)
				}
			}
			for i := 1; i < len(nodes); i++ {
				b.graph.addEdge(Edge{From: nodes[0], To: nodes[i], Kind: JoinDependency})
			}
		}
		return all
	}

	if item.Subquery != nil {
		cols := b.buildQuery(item.Subquery)
		id := ordinalNodeID(b.StatementIndex, SubqueryNode, b.counter.take())
		alias := item.Alias
		if alias == "" {
			alias = "subquery"
		}
		node := b.graph.addNode(Node{ID: id, Kind: SubqueryNode, Label: alias, Span: b.stmtSpan, HasSpan: true})
		for _, c := range cols {
			b.graph.addEdge(Edge{From: node.ID, To: c.NodeID, Kind: Ownership})
		}
		return []*sourceBinding{{Alias: b.Norm.Normalize(alias), NodeID: node.ID, Kind: SubqueryNode, Columns: cols}}
	}

	if item.Table != nil {
		raw := item.Table.Qualified()
		if len(item.Table.Parts) == 1 {
			if cb, ok := b.ctes[b.Norm.Normalize(item.Table.Parts[0])]; ok {
				alias := item.Alias
				if alias == "" {
					alias = item.Table.Parts[0]
				}
				return []*sourceBinding{{Alias: b.Norm.Normalize(alias), NodeID: cb.NodeID, Kind: CTENode, Columns: cb.Columns}}
			}
		}

		res := b.Registry.CanonicalizeTableReference(raw)
		id := nodeID(b.StatementIndex, TableNode, res.Canonical)
		tableSpan := b.spanOr(item.Table.Span())
		node := b.graph.addNode(Node{ID: id, Kind: TableNode, Label: raw, QualifiedName: res.Canonical, HasQualifiedName: true, Span: tableSpan, HasSpan: true})

		var cols []columnBinding
		if entry, ok := b.Registry.Get(res.Canonical); ok {
			for _, c := range entry.Table.Columns {
				cid := nodeID(b.StatementIndex, ColumnNode, res.Canonical+"."+c.Name)
				cnode := b.graph.addNode(Node{ID: cid, Kind: ColumnNode, Label: c.Name, Span: b.stmtSpan, HasSpan: true})
				b.graph.addEdge(Edge{From: node.ID, To: cnode.ID, Kind: Ownership})
				cols = append(cols, columnBinding{Name: c.Name, NodeID: cnode.ID})
			}
		}

		if !res.MatchedSchema && !b.Registry.HasNoKnownTables() {
			b.issues = append(b.issues, issue.Warn(issue.CodeUnresolvedReference, "unresolved table reference "+raw).
				WithStatement(b.StatementIndex).WithSpan(tableSpan))
		}

		alias := item.Alias
		if alias == "" {
			alias = item.Table.Parts[len(item.Table.Parts)-1]
		}
		return []*sourceBinding{{
			Alias: b.Norm.Normalize(alias), Canonical: res.Canonical, HasCanonical: true,
			NodeID: node.ID, Kind: TableNode, Columns: cols,
		}}
	}

	return nil
}

// extractJoinEqualities walks an ON predicate's top-level AND chain,
// emitting a JoinDependency edge for each equality comparison and
// proposing bidirectional foreign-key hints when both sides belong to
// user-provided (schema-backed) tables.
func (b *Builder) extractJoinEqualities(e parser.Expr, byAlias map[string]*sourceBinding) {
	bin, ok := e.(*parser.BinaryExpr)
	if !ok {
		return
	}
	if bin.Op == "AND" {
		b.extractJoinEqualities(bin.Left, byAlias)
		b.extractJoinEqualities(bin.Right, byAlias)
		return
	}
	if bin.Op != "=" {
		return
	}
	leftRef, leftOK := bin.Left.(*parser.ColumnRef)
	rightRef, rightOK := bin.Right.(*parser.ColumnRef)
	if !leftOK || !rightOK {
		return
	}

	leftNode, leftFound := b.resolveReference(toColumnReference(leftRef), byAlias)
	rightNode, rightFound := b.resolveReference(toColumnReference(rightRef), byAlias)
	if !leftFound || !rightFound {
		return
	}
	b.graph.addEdge(Edge{From: leftNode, To: rightNode, Kind: JoinDependency})

	leftSB := sourceOf(leftRef, byAlias, b.Norm)
	rightSB := sourceOf(rightRef, byAlias, b.Norm)
	hasSchema := func(canonical string) bool {
		_, ok := b.Registry.Get(canonical)
		return ok
	}
	if leftSB != nil && rightSB != nil && leftSB.HasCanonical && rightSB.HasCanonical && leftSB.Canonical != rightSB.Canonical &&
		hasSchema(leftSB.Canonical) && hasSchema(rightSB.Canonical) {
		b.graph.ForeignKeyHints = append(b.graph.ForeignKeyHints,
			ForeignKeyHint{FromTable: leftSB.Canonical, FromColumn: leftRef.Column, ToTable: rightSB.Canonical, ToColumn: rightRef.Column},
			ForeignKeyHint{FromTable: rightSB.Canonical, FromColumn: rightRef.Column, ToTable: leftSB.Canonical, ToColumn: leftRef.Column},
		)
	}
}

func toColumnReference(ref *parser.ColumnRef) expr.ColumnReference {
	out := expr.ColumnReference{Column: ref.Column}
	if len(ref.Qualifiers) > 0 {
		out.Qualifier = ref.Qualifiers[len(ref.Qualifiers)-1]
		out.HasQualifier = true
	}
	return out
}

func sourceOf(ref *parser.ColumnRef, byAlias map[string]*sourceBinding, norm *dialect.Normalizer) *sourceBinding {
	if len(ref.Qualifiers) == 0 {
		return nil
	}
	sb, ok := byAlias[norm.Normalize(ref.Qualifiers[len(ref.Qualifiers)-1])]
	if !ok {
		return nil
	}
	return sb
}

func (b *Builder) buildCreateTable(ct *parser.CreateTable) {
	canonical := b.Registry.CanonicalizeTableReference(ct.Name.Qualified()).Canonical
	id := nodeID(b.StatementIndex, TableNode, canonical)
	target := b.graph.addNode(Node{ID: id, Kind: TableNode, Label: ct.Name.Qualified(), QualifiedName: canonical, HasQualifiedName: true, Span: b.spanOr(ct.Name.Span()), HasSpan: true})

	if ct.AsSelect != nil {
		cols := b.buildQuery(ct.AsSelect)
		for _, c := range cols {
			cid := nodeID(b.StatementIndex, ColumnNode, canonical+"."+c.Name)
			cnode := b.graph.addNode(Node{ID: cid, Kind: ColumnNode, Label: c.Name, Span: b.stmtSpan, HasSpan: true})
			b.graph.addEdge(Edge{From: target.ID, To: cnode.ID, Kind: Ownership})
			b.graph.addEdge(Edge{From: c.NodeID, To: cnode.ID, Kind: DataFlow})
		}
		return
	}
	for _, col := range ct.Columns {
		cid := nodeID(b.StatementIndex, ColumnNode, canonical+"."+col.Name)
		cnode := b.graph.addNode(Node{ID: cid, Kind: ColumnNode, Label: col.Name, Span: b.stmtSpan, HasSpan: true})
		b.graph.addEdge(Edge{From: target.ID, To: cnode.ID, Kind: Ownership})
	}
}

func (b *Builder) buildCreateView(cv *parser.CreateView) {
	canonical := b.Registry.CanonicalizeTableReference(cv.Name.Qualified()).Canonical
	id := nodeID(b.StatementIndex, ViewNode, canonical)
	target := b.graph.addNode(Node{ID: id, Kind: ViewNode, Label: cv.Name.Qualified(), QualifiedName: canonical, HasQualifiedName: true, Span: b.spanOr(cv.Name.Span()), HasSpan: true})

	cols := b.buildQuery(cv.Definition)
	for i, c := range cols {
		name := c.Name
		if i < len(cv.ColumnAliases) {
			name = cv.ColumnAliases[i]
		}
		cid := nodeID(b.StatementIndex, ColumnNode, canonical+"."+name)
		cnode := b.graph.addNode(Node{ID: cid, Kind: ColumnNode, Label: name, Span: b.stmtSpan, HasSpan: true})
		b.graph.addEdge(Edge{From: target.ID, To: cnode.ID, Kind: Ownership})
		b.graph.addEdge(Edge{From: c.NodeID, To: cnode.ID, Kind: DataFlow})
	}
}

func (b *Builder) buildInsert(ins *parser.InsertStatement) {
	canonical := b.Registry.CanonicalizeTableReference(ins.Table.Qualified()).Canonical
	id := nodeID(b.StatementIndex, TableNode, canonical)
	target := b.graph.addNode(Node{ID: id, Kind: TableNode, Label: ins.Table.Qualified(), QualifiedName: canonical, HasQualifiedName: true, Span: b.spanOr(ins.Table.Span()), HasSpan: true})

	if ins.Select == nil {
		return // VALUES-only inserts have no upstream column to trace
	}

	targetCols := ins.Columns
	if len(targetCols) == 0 {
		if entry, ok := b.Registry.Get(canonical); ok {
			for _, c := range entry.Table.Columns {
				targetCols = append(targetCols, c.Name)
			}
		}
	}

	cols := b.buildQuery(ins.Select)
	for i, c := range cols {
		name := fmt.Sprintf("col#%d", i)
		if i < len(targetCols) {
			name = targetCols[i]
		}
		cid := nodeID(b.StatementIndex, ColumnNode, canonical+"."+name)
		cnode := b.graph.addNode(Node{ID: cid, Kind: ColumnNode, Label: name, Span: b.stmtSpan, HasSpan: true})
		b.graph.addEdge(Edge{From: target.ID, To: cnode.ID, Kind: Ownership})
		b.graph.addEdge(Edge{From: c.NodeID, To: cnode.ID, Kind: DataFlow})
	}
}

// Package analyze implements the top-level orchestrator: given an
// AnalyzeRequest, it splits the input into statements, runs the DDL
// pre-pass, builds each statement's lineage graph and lint findings, and
// assembles everything into one AnalyzeResult — including the global
// lineage graph's cross-statement edges from a DML target to every
// statement that later reads it.
//
// sqldef's `database` package orchestrates a diff between two schemas,
// not a per-statement analysis pipeline, so Analyze composes the
// packages built for the earlier stages in pipeline order: parse,
// pre-pass, per-statement {lineage, lint}, aggregate.
package analyze

import (
	"log/slog"

	"github.com/flowscope/flowscope/ddlprepass"
	"github.com/flowscope/flowscope/dialect"
	"github.com/flowscope/flowscope/issue"
	"github.com/flowscope/flowscope/lineage"
	"github.com/flowscope/flowscope/lint"
	"github.com/flowscope/flowscope/parser"
	"github.com/flowscope/flowscope/schema"
)

// LintConfig controls whether the lint engine runs and which rule codes
// are disabled.
type LintConfig struct {
	Enabled        bool     `json:"enabled"`
	DisabledRules  []string `json:"disabled_rules,omitempty"`
}

// Options controls analyze behavior that applies across the whole
// request rather than to one statement.
type Options struct {
	HideCTEs            bool        `json:"hide_ctes"`
	EnableColumnLineage bool        `json:"enable_column_lineage"`
	Lint                *LintConfig `json:"lint,omitempty"`
	SourceName          string      `json:"source_name,omitempty"`
}

// File is one named SQL document within a multi-file request. Diagnostics
// from each file are kept independent: statement indices restart at 0 per
// file.
type File struct {
	Name string `json:"name,omitempty"`
	SQL  string `json:"sql"`
}

// Request is the library's single entry point input: either a single
// sql string or a list of named files, a dialect, and optional schema and
// behavior options.
type Request struct {
	SQL        string          `json:"sql,omitempty"`
	Files      []File          `json:"files,omitempty"`
	Dialect    dialect.Dialect `json:"dialect"`
	SourceName string          `json:"source_name,omitempty"`
	Options    *Options        `json:"options,omitempty"`
	Schema     *schema.Metadata `json:"schema,omitempty"`
}

func (r *Request) files() []File {
	if len(r.Files) > 0 {
		return r.Files
	}
	return []File{{Name: r.SourceName, SQL: r.SQL}}
}

// StatementResult is one statement's analysis output within a file.
type StatementResult struct {
	FileName       string         `json:"file_name,omitempty"`
	StatementIndex int            `json:"statement_index"`
	StatementType  string         `json:"statement_type"`
	Graph          *lineage.Graph `json:"graph,omitempty"`
}

// Summary is the result's top-level roll-up.
type Summary struct {
	HasErrors       bool `json:"has_errors"`
	TableCount      int  `json:"table_count"`
	ComplexityScore int  `json:"complexity_score"`
}

// Result is everything one Analyze call produces.
type Result struct {
	Statements     []StatementResult `json:"statements"`
	Issues         []issue.Issue     `json:"issues"`
	Summary        Summary           `json:"summary"`
	ResolvedSchema []schema.SchemaTableEntry `json:"resolved_schema,omitempty"`
	ForeignKeyHints []lineage.ForeignKeyHint `json:"foreign_key_hints,omitempty"`
	GlobalLineage  *lineage.Graph    `json:"global_lineage,omitempty"`
}

// ExitCode maps the result's issues to a CLI-style exit code: 0 if no
// issue at or above threshold was emitted, 1 otherwise. Invalid-invocation
// (exit code 2) is a CLI-layer concern this library never produces.
func (r *Result) ExitCode(threshold issue.Severity) int {
	for _, iss := range r.Issues {
		if severityRank(iss.Severity) <= severityRank(threshold) {
			return 1
		}
	}
	return 0
}

// severityRank orders Error as most severe, Info as least: lower rank is
// more severe, matching issue.Severity's own iota ordering (Error=0).
func severityRank(s issue.Severity) int {
	return int(s)
}

// statementTypeName renders a stable, uppercase wire-format name for a
// parsed statement's kind.
func statementTypeName(stmt parser.Statement) string {
	switch s := stmt.(type) {
	case *parser.Select, *parser.SetOperation:
		return "SELECT"
	case *parser.InsertStatement:
		return "INSERT"
	case *parser.CreateTable:
		if s.AsSelect != nil {
			return "CREATE_TABLE_AS"
		}
		return "CREATE_TABLE"
	case *parser.CreateView:
		return "CREATE_VIEW"
	case *parser.DropStatement:
		switch s.Kind {
		case parser.DropView:
			return "DROP_VIEW"
		default:
			return "DROP_TABLE"
		}
	case *parser.RawStatement:
		return "UNKNOWN"
	default:
		return "UNKNOWN"
	}
}

// Run performs one full analysis: parse every file, seed forward
// declarations across all files combined (a DDL in file A may be
// referenced from file B, mirroring one script split across multiple
// inputs), then analyze each statement in order.
func Run(req Request) Result {
	opts := Options{EnableColumnLineage: true}
	if req.Options != nil {
		opts = *req.Options
	}

	registry := schema.New(req.Schema, req.Dialect)
	norm := dialect.NewNormalizer(req.Dialect, dialect.DialectDefault)

	// parsedStatement keeps a statement's own source text alongside its AST
	// so lint rules (which need the raw SQL for pattern-matching and
	// string/comment-aware scanning) see the same text the parser saw,
	// rather than the whole file.
	type parsedStatement struct {
		text string
		stmt parser.Statement
	}
	type parsedFile struct {
		name       string
		sql        string
		statements []parsedStatement
	}

	files := req.files()
	parsedFiles := make([]parsedFile, 0, len(files))
	var allStatements []parser.Statement
	for _, f := range files {
		pieces := parser.SplitStatements(f.SQL, req.Dialect)
		stmts := make([]parsedStatement, 0, len(pieces))
		for _, piece := range pieces {
			stmt := parser.Parse(piece, req.Dialect)
			stmts = append(stmts, parsedStatement{text: piece, stmt: stmt})
			allStatements = append(allStatements, stmt)
		}
		parsedFiles = append(parsedFiles, parsedFile{name: f.Name, sql: f.SQL, statements: stmts})
	}

	ddlprepass.Run(allStatements, registry)

	lintRegistry := lint.NewRegistry(lint.DefaultRules()...)
	disabledRules := map[string]bool{}
	lintEnabled := opts.Lint != nil && opts.Lint.Enabled
	if opts.Lint != nil {
		for _, code := range opts.Lint.DisabledRules {
			disabledRules[code] = true
		}
	}

	var result Result
	result.Summary.TableCount = len(registry.AllEntries())

	global := &lineage.Graph{}
	// dmlTargets maps a canonical table name to every node ID that wrote to
	// it, so later statements reading that table can be linked with a
	// CrossStatement edge.
	dmlTargets := map[string][]string{}
	tableReads := map[string][]string{}

	for _, pf := range parsedFiles {
		statementIndex := 0
		for _, ps := range pf.statements {
			stmt := ps.stmt
			slog.Debug("analyzing statement", "file", pf.name, "index", statementIndex, "type", statementTypeName(stmt))

			builder := lineage.NewBuilder(registry, norm, req.Dialect, statementIndex, lineage.Options{HideCTEs: opts.HideCTEs})
			graph, issues := builder.Build(stmt)
			result.Issues = append(result.Issues, issues...)

			if lintEnabled {
				ctx := &lint.Context{
					SQL:            ps.text,
					Span:           issue.Span{Start: 0, End: len(ps.text)},
					StatementIndex: statementIndex,
					Dialect:        req.Dialect,
					Statement:      stmt,
					Registry:       registry,
				}
				if _, isRaw := stmt.(*parser.RawStatement); isRaw {
					ctx.FallbackSource = issue.ParserFallback
					ctx.Confidence = issue.Medium
				}
				result.Issues = append(result.Issues, lintRegistry.Check(ctx, disabledRules)...)
			}

			result.Statements = append(result.Statements, StatementResult{
				FileName:       pf.name,
				StatementIndex: statementIndex,
				StatementType:  statementTypeName(stmt),
				Graph:          graph,
			})

			if !opts.EnableColumnLineage {
				stripColumnLineage(graph)
			}

			mergeGraph(global, graph)
			recordDMLTargets(stmt, registry, graph, statementIndex, dmlTargets)
			recordTableReads(stmt, registry, graph, statementIndex, tableReads)

			statementIndex++
		}

		if lintEnabled {
			docCtx := &lint.Context{SQL: pf.sql, Dialect: req.Dialect, Registry: registry}
			result.Issues = append(result.Issues, lintRegistry.CheckDocument(docCtx, disabledRules)...)
		}
	}

	addCrossStatementEdges(global, dmlTargets, tableReads)

	result.GlobalLineage = global
	result.ResolvedSchema = registry.AllEntries()

	for _, entry := range result.ResolvedSchema {
		result.Summary.ComplexityScore += len(entry.Table.Columns)
	}
	for _, g := range result.Statements {
		if g.Graph != nil {
			result.Summary.ComplexityScore += g.Graph.ComplexityScore
		}
	}

	for _, iss := range result.Issues {
		if iss.Severity == issue.Error {
			result.Summary.HasErrors = true
			break
		}
	}

	return result
}

// stripColumnLineage removes column- and output-level nodes from g,
// rolling up what they connected into direct table/view/CTE-to-table
// edges so some cross-table signal survives even with column lineage
// disabled: only table-level edges remain.
func stripColumnLineage(g *lineage.Graph) {
	if g == nil {
		return
	}

	isTableLevel := func(k lineage.NodeKind) bool {
		return k == lineage.TableNode || k == lineage.ViewNode || k == lineage.CTENode || k == lineage.SubqueryNode
	}

	ownerOf := map[string]string{}
	for _, e := range g.Edges {
		if e.Kind != lineage.Ownership {
			continue
		}
		ownerOf[e.To] = e.From
	}

	seen := map[string]bool{}
	var tableEdges []lineage.Edge
	for _, e := range g.Edges {
		if e.Kind != lineage.DataFlow && e.Kind != lineage.Derivation && e.Kind != lineage.JoinDependency {
			continue
		}
		from, fromOK := ownerOf[e.From]
		to, toOK := ownerOf[e.To]
		if !fromOK {
			from = e.From
		}
		if !toOK {
			to = e.To
		}
		if from == to {
			continue
		}
		key := from + "->" + to + ":" + e.Kind.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		tableEdges = append(tableEdges, lineage.Edge{From: from, To: to, Kind: e.Kind})
	}

	var keptNodes []lineage.Node
	for _, n := range g.Nodes {
		if isTableLevel(n.Kind) {
			keptNodes = append(keptNodes, n)
		}
	}

	g.Nodes = keptNodes
	g.Edges = tableEdges
}

func mergeGraph(global *lineage.Graph, g *lineage.Graph) {
	if g == nil {
		return
	}
	global.Nodes = append(global.Nodes, g.Nodes...)
	global.Edges = append(global.Edges, g.Edges...)
	global.ForeignKeyHints = append(global.ForeignKeyHints, g.ForeignKeyHints...)
	global.ComplexityScore += g.ComplexityScore
}

func recordDMLTargets(stmt parser.Statement, registry *schema.Registry, g *lineage.Graph, idx int, dmlTargets map[string][]string) {
	var canonical string
	switch s := stmt.(type) {
	case *parser.InsertStatement:
		canonical = registry.CanonicalizeTableReference(s.Table.Qualified()).Canonical
	case *parser.CreateTable:
		if s.AsSelect == nil {
			return
		}
		canonical = registry.CanonicalizeTableReference(s.Name.Qualified()).Canonical
	default:
		return
	}
	for _, n := range g.Nodes {
		if n.Kind == lineage.TableNode && n.HasQualifiedName && n.QualifiedName == canonical {
			dmlTargets[canonical] = append(dmlTargets[canonical], n.ID)
		}
	}
}

func recordTableReads(stmt parser.Statement, registry *schema.Registry, g *lineage.Graph, idx int, tableReads map[string][]string) {
	if _, ok := stmt.(parser.SelectStatement); !ok {
		if _, ok := stmt.(*parser.InsertStatement); !ok {
			return
		}
	}
	for _, n := range g.Nodes {
		if n.Kind == lineage.TableNode && n.HasQualifiedName {
			tableReads[n.QualifiedName] = append(tableReads[n.QualifiedName], n.ID)
		}
	}
}

// addCrossStatementEdges links every DML target node to the table nodes
// of later statements that read the same canonical table: the global
// lineage graph is the union of per-statement graphs with cross-statement
// edges added from DML target nodes to downstream reads.
func addCrossStatementEdges(global *lineage.Graph, dmlTargets, tableReads map[string][]string) {
	for canonical, targetIDs := range dmlTargets {
		readIDs := tableReads[canonical]
		for _, from := range targetIDs {
			for _, to := range readIDs {
				if from == to {
					continue
				}
				global.Edges = append(global.Edges, lineage.Edge{From: from, To: to, Kind: lineage.CrossStatement})
			}
		}
	}
}

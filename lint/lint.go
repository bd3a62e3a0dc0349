// Package lint implements the rule engine: a Context carrying one
// statement's parse result and position, a Rule interface rules
// implement, and a Registry that holds and filters the active rule set.
//
// There is no teacher analog (sqldef has no lint engine), so this package
// follows the distilled specification's §4.7/§4.8 description, grounded
// where possible on the original Rust implementation's own
// `LintRule`/`LintContext` shapes (see linter/rules/jj_001.rs,
// linter/rules/rf_002.rs in original_source) translated into Go's
// interface-and-struct idiom rather than Rust traits.
package lint

import (
	"github.com/flowscope/flowscope/dialect"
	"github.com/flowscope/flowscope/issue"
	"github.com/flowscope/flowscope/parser"
	"github.com/flowscope/flowscope/schema"
)

// Context is everything a Rule's Check needs: the full document, this
// statement's byte range within it, its index, the active dialect, its
// parsed form, and the schema registry for reference-aware rules.
type Context struct {
	SQL            string
	Span           issue.Span
	StatementIndex int
	Dialect        dialect.Dialect
	Statement      parser.Statement
	Registry       *schema.Registry

	// Confidence/FallbackSource are set by the caller when this
	// statement's AST came from a degraded parse path; Warn/Note/Err
	// stamp them onto every issue the rule emits.
	Confidence     issue.Confidence
	FallbackSource issue.FallbackSource
}

// StatementText returns the SQL text of just this statement.
func (c *Context) StatementText() string {
	if c.Span.Start < 0 || c.Span.End > len(c.SQL) || c.Span.Start > c.Span.End {
		return c.SQL
	}
	return c.SQL[c.Span.Start:c.Span.End]
}

func (c *Context) stamp(i issue.Issue) issue.Issue {
	i = i.WithStatement(c.StatementIndex)
	if c.Confidence != issue.ConfidenceUnset {
		i = i.WithConfidence(c.Confidence, c.FallbackSource)
	}
	return i
}

// Warn builds a namespaced lint warning stamped with this context's
// statement index and (if degraded) confidence.
func (c *Context) Warn(code, message string) issue.Issue {
	return c.stamp(issue.Warn(code, message))
}

// Note builds a namespaced lint info-level finding.
func (c *Context) Note(code, message string) issue.Issue {
	return c.stamp(issue.Note(code, message))
}

// Rule is one lint check. Implementations must be pure with respect to
// the Registry: a Check call never mutates shared state, so rules can run
// concurrently across statements if a caller chooses to.
type Rule interface {
	Code() string
	Name() string
	Description() string
	// RequiresParsedStatement reports whether this rule needs a fully
	// parsed AST. When the parser fell back to a *parser.RawStatement,
	// rules answering true here are skipped entirely rather than run
	// against nothing.
	RequiresParsedStatement() bool
	// DocumentLevel reports whether this rule's trigger condition spans
	// the whole document rather than one statement (e.g. trailing
	// newline). Document-level rules are invoked once per input file
	// with StatementIndex left at its zero value by convention, rather
	// than once per statement.
	DocumentLevel() bool
	Check(ctx *Context) []issue.Issue
}

// Registry holds an ordered, fixed rule set and can filter it down by
// disabled code.
type Registry struct {
	rules []Rule
}

// NewRegistry builds a Registry over the given rules, in the order given.
func NewRegistry(rules ...Rule) *Registry {
	return &Registry{rules: rules}
}

// Rules returns every registered rule, in registration order.
func (r *Registry) Rules() []Rule {
	return r.rules
}

// Filter returns the subset of rules whose code is not present in
// disabled.
func (r *Registry) Filter(disabled map[string]bool) []Rule {
	if len(disabled) == 0 {
		return r.rules
	}
	out := make([]Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if !disabled[rule.Code()] {
			out = append(out, rule)
		}
	}
	return out
}

// Check runs every applicable rule (skipping AST-requiring rules against
// a RawStatement) and returns every issue raised, in rule-registration
// order.
func (r *Registry) Check(ctx *Context, disabled map[string]bool) []issue.Issue {
	var out []issue.Issue
	_, isRaw := ctx.Statement.(*parser.RawStatement)
	for _, rule := range r.Filter(disabled) {
		if rule.DocumentLevel() {
			continue
		}
		if isRaw && rule.RequiresParsedStatement() {
			continue
		}
		out = append(out, rule.Check(ctx)...)
	}
	return out
}

// CheckDocument runs every document-level rule once against the whole SQL
// text, independent of statement boundaries.
func (r *Registry) CheckDocument(ctx *Context, disabled map[string]bool) []issue.Issue {
	var out []issue.Issue
	for _, rule := range r.Filter(disabled) {
		if !rule.DocumentLevel() {
			continue
		}
		out = append(out, rule.Check(ctx)...)
	}
	return out
}

// DefaultRules returns the built-in rule suite, at least one rule per
// namespaced family (LINT_AL/AM/CP/CV/JJ/LT/RF/ST/TQ). This is not
// the full ~55-rule suite; see DESIGN.md for the scope decision.
func DefaultRules() []Rule {
	return []Rule{
		&DistinctWithGroupBy{},
		&CountOneShouldBeStar{},
		&CaseElseNullRedundant{},
		&NullComparisonShouldUseIs{},
		&UnusedTableAlias{},
		&ReferencesQualification{},
		&AliasShadowsKnownTable{},
		&RedundantSelfAlias{},
		&RedundantCast{},
		&ReservedKeywordAlias{},
		&JinjaPadding{},
		&TrailingCommaBeforeFrom{},
		&CommaSpacing{},
		&TrailingWhitespace{},
		&TrailingNewlineRequired{},
	}
}

// Package fixer implements the deterministic auto-fixer: given a SQL
// document and a set of disabled rule codes, it rewrites the text to
// resolve as many lint findings as it safely can, reports how many of
// each rule's violations were removed, and refuses to apply a change that
// would make things worse.
//
// Grounded on the original Rust implementation's
// `flowscope-cli/src/fix.rs`: the same before/after lint-count comparison,
// the same comment-marker skip guard, and the same fixed, documented
// order of text-level rewrites. That implementation also rewrites the
// parsed AST before re-rendering it to source; this package's parser has
// no printer (sqldef, the package's own teacher, never needed one — it
// diffs DDL shapes, it doesn't re-emit them), so every fix here is a
// text-level rewrite grounded on fix.rs's own `apply_text_fixes` family,
// scoped to the lint rules this repository's own `lint` package defines.
package fixer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/flowscope/flowscope/dialect"
	"github.com/flowscope/flowscope/issue"
	"github.com/flowscope/flowscope/lint"
	"github.com/flowscope/flowscope/parser"
	"github.com/flowscope/flowscope/schema"
)

// Counts is a per-rule count of lint violations removed by a fix pass,
// keyed by rule code.
type Counts struct {
	byRule map[string]int
}

// Add accumulates n occurrences of code. A zero count is a no-op, so a
// Counts built purely from "removed = before - after" deltas never
// records a rule that didn't improve.
func (c *Counts) Add(code string, n int) {
	if n == 0 {
		return
	}
	if c.byRule == nil {
		c.byRule = map[string]int{}
	}
	c.byRule[code] += n
}

// Get returns how many violations of code were removed.
func (c Counts) Get(code string) int {
	return c.byRule[code]
}

// Total sums every rule's removed-violation count.
func (c Counts) Total() int {
	total := 0
	for _, n := range c.byRule {
		total += n
	}
	return total
}

// Codes returns every code with a nonzero count, sorted for deterministic
// output.
func (c Counts) Codes() []string {
	out := make([]string, 0, len(c.byRule))
	for code := range c.byRule {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func countsFromRemoved(before, after map[string]int) Counts {
	var out Counts
	for code, beforeCount := range before {
		afterCount := after[code]
		if beforeCount > afterCount {
			out.Add(code, beforeCount-afterCount)
		}
	}
	return out
}

// Outcome is the result of one apply_lint_fixes pass.
type Outcome struct {
	SQL                    string
	Counts                 Counts
	Changed                bool
	SkippedDueToComments   bool
	SkippedDueToRegression bool
}

// ApplyLintFixes rewrites sql to resolve as many of the active lint
// rules' violations as this package's fixed text-rewrite set can handle,
// following the original's 8-step algorithm: skip if the document
// contains comments (rewriting text near a comment risks corrupting it),
// count violations before, rewrite, count violations after, and only
// report a change if the rewrite removed at least one violation without
// raising the total count.
//
// A statement wrapped in pure leading/trailing "/* ... */" margin
// comments is an exception to the comment guard: parser.SplitMarginComments
// peels those off first, so the skip check and the rewrite itself only
// ever look at the query in between, and the margin comments are
// reattached verbatim around the fixed query afterward.
func ApplyLintFixes(sql string, d dialect.Dialect, registry *schema.Registry, disabledRules []string) Outcome {
	disabled := map[string]bool{}
	for _, code := range disabledRules {
		disabled[strings.ToUpper(strings.TrimSpace(code))] = true
	}

	query, margin := parser.SplitMarginComments(sql)
	hasMargin := margin.Leading != "" || margin.Trailing != ""
	fixTarget := sql
	if hasMargin {
		fixTarget = query
	}

	if containsCommentMarkers(fixTarget, d) {
		return Outcome{SQL: sql, SkippedDueToComments: true}
	}

	beforeCounts := lintRuleCounts(fixTarget, d, registry, disabled)
	fixedQuery := applyTextFixes(fixTarget, disabled)
	afterCounts := lintRuleCounts(fixedQuery, d, registry, disabled)
	counts := countsFromRemoved(beforeCounts, afterCounts)

	beforeTotal, afterTotal := 0, 0
	for _, n := range beforeCounts {
		beforeTotal += n
	}
	for _, n := range afterCounts {
		afterTotal += n
	}
	if afterTotal > beforeTotal {
		return Outcome{SQL: sql, SkippedDueToRegression: true}
	}
	if counts.Total() == 0 {
		return Outcome{SQL: sql, Counts: counts}
	}

	fixed := fixedQuery
	if hasMargin {
		fixed = reattachMarginComments(fixedQuery, margin)
	}

	return Outcome{
		SQL:     fixed,
		Counts:  counts,
		Changed: fixed != sql,
	}
}

// reattachMarginComments rebuilds the document around a fixed query,
// restoring the leading/trailing comments parser.SplitMarginComments
// peeled off. The comments' own content is never touched by a fix.
func reattachMarginComments(query string, margin parser.MarginComments) string {
	var b strings.Builder
	if margin.Leading != "" {
		b.WriteString(margin.Leading)
		b.WriteString("\n")
	}
	b.WriteString(query)
	if margin.Trailing != "" {
		b.WriteString("\n")
		b.WriteString(margin.Trailing)
	}
	return b.String()
}

// containsCommentMarkers scans for -- and /* outside string literals
// (and, for MySQL, a bare #), character by character so a comment marker
// inside a quoted string isn't mistaken for a real comment.
func containsCommentMarkers(sql string, d dialect.Dialect) bool {
	inSingle := false
	for i := 0; i < len(sql); i++ {
		b := sql[i]
		if b == '\'' {
			inSingle = !inSingle
			continue
		}
		if inSingle {
			continue
		}
		if b == '-' && i+1 < len(sql) && sql[i+1] == '-' {
			return true
		}
		if b == '/' && i+1 < len(sql) && sql[i+1] == '*' {
			return true
		}
		if d == dialect.MySQL && b == '#' {
			return true
		}
	}
	return false
}

func lintRuleCounts(sql string, d dialect.Dialect, registry *schema.Registry, disabled map[string]bool) map[string]int {
	reg := lint.NewRegistry(lint.DefaultRules()...)
	counts := map[string]int{}

	docCtx := &lint.Context{SQL: sql, Dialect: d, Registry: registry}
	for _, iss := range reg.CheckDocument(docCtx, disabled) {
		counts[iss.Code]++
	}

	for i, piece := range parser.SplitStatements(sql, d) {
		stmt := parser.Parse(piece, d)
		ctx := &lint.Context{
			SQL:            piece,
			Span:           issue.Span{Start: 0, End: len(piece)},
			StatementIndex: i,
			Dialect:        d,
			Statement:      stmt,
			Registry:       registry,
		}
		for _, iss := range reg.Check(ctx, disabled) {
			counts[iss.Code]++
		}
	}
	return counts
}

// applyTextFixes runs the fixed, documented set of text-level rewrites in
// a stable order. Order matters: later fixes assume the document already
// satisfies earlier ones (e.g. comma spacing runs after the
// trailing-comma-before-FROM fix so it isn't fighting over the same
// comma).
func applyTextFixes(sql string, disabled map[string]bool) string {
	out := sql
	apply := func(code string, fn func(string) string) {
		if disabled[code] {
			return
		}
		out = fn(out)
	}

	apply("LINT_JJ_001", fixJinjaPadding)
	apply("LINT_CP_001", fixTrailingCommaBeforeFrom)
	apply("LINT_CP_002", fixCommaSpacing)
	apply("LINT_ST_002", fixCountOneToStar)
	apply("LINT_ST_003", fixCaseElseNullRedundant)
	apply("LINT_ST_004", fixNullComparison)
	apply("LINT_AM_001", fixRedundantSelfAlias)
	apply("LINT_LT_001", fixTrailingWhitespace)
	apply("LINT_LT_002", fixTrailingNewline)

	return out
}

func regexReplaceAll(sql, pattern, replacement string) string {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return sql
	}
	return re.ReplaceAllString(sql, replacement)
}

func fixJinjaPadding(sql string) string {
	out := regexReplaceAll(sql, `\{\{\s*([^{}]+?)\s*\}\}`, "{{ $1 }}")
	return regexReplaceAll(out, `\{%-?\s*([^%]+?)\s*%\}`, "{% $1 %}")
}

func fixTrailingCommaBeforeFrom(sql string) string {
	return regexReplaceAll(sql, `(?i),\s*(FROM\b)`, " $1")
}

func fixCommaSpacing(sql string) string {
	return replaceOutsideLiterals(sql, func(segment string) string {
		out := regexReplaceAll(segment, `\s+,`, ",")
		return regexReplaceAll(out, `,\s*`, ", ")
	})
}

var countOneToStarPattern = regexp.MustCompile(`(?i)\b(count)\s*\(\s*1\s*\)`)

// fixCountOneToStar rewrites COUNT(1) to COUNT(*), the LINT_ST_002 fix:
// both count every row in every dialect this package targets, so the
// rewrite never changes a query's result.
func fixCountOneToStar(sql string) string {
	return replaceOutsideLiterals(sql, func(segment string) string {
		return countOneToStarPattern.ReplaceAllStringFunc(segment, func(m string) string {
			groups := countOneToStarPattern.FindStringSubmatch(m)
			if groups == nil {
				return m
			}
			return groups[1] + "(*)"
		})
	})
}

var caseElseNullPattern = regexp.MustCompile(`(?i)\belse\s+null\s+(end)\b`)

// fixCaseElseNullRedundant drops an explicit "ELSE NULL" arm, the
// LINT_ST_003 fix: omitting ELSE already yields NULL for any CASE branch
// that falls through, so the two forms are equivalent.
func fixCaseElseNullRedundant(sql string) string {
	return replaceOutsideLiterals(sql, func(segment string) string {
		return caseElseNullPattern.ReplaceAllStringFunc(segment, func(m string) string {
			groups := caseElseNullPattern.FindStringSubmatch(m)
			if groups == nil {
				return m
			}
			return groups[1]
		})
	})
}

var nullComparisonPattern = regexp.MustCompile(`(?i)([A-Za-z0-9_."]+)\s*(=|<>|!=)\s*NULL\b`)

func fixNullComparison(sql string) string {
	return replaceOutsideLiterals(sql, func(segment string) string {
		return nullComparisonPattern.ReplaceAllStringFunc(segment, func(m string) string {
			groups := nullComparisonPattern.FindStringSubmatch(m)
			if groups == nil {
				return m
			}
			if groups[2] == "=" {
				return groups[1] + " IS NULL"
			}
			return groups[1] + " IS NOT NULL"
		})
	})
}

var selfAliasPattern = regexp.MustCompile(`(?i)\b([A-Za-z_][A-Za-z0-9_]*)\s+AS\s+([A-Za-z_][A-Za-z0-9_]*)\b`)

func fixRedundantSelfAlias(sql string) string {
	return replaceOutsideLiterals(sql, func(segment string) string {
		return selfAliasPattern.ReplaceAllStringFunc(segment, func(m string) string {
			groups := selfAliasPattern.FindStringSubmatch(m)
			if groups == nil || !strings.EqualFold(groups[1], groups[2]) {
				return m
			}
			return groups[1]
		})
	})
}

var trailingWhitespacePattern = regexp.MustCompile(`[ \t]+(\r?\n|$)`)

func fixTrailingWhitespace(sql string) string {
	return trailingWhitespacePattern.ReplaceAllString(sql, "$1")
}

func fixTrailingNewline(sql string) string {
	if sql == "" {
		return sql
	}
	trimmed := strings.TrimRight(sql, "\n")
	return trimmed + "\n"
}

// replaceOutsideLiterals applies transform to every run of sql that lies
// outside a single/double-quoted string or a -- / /* */ comment, leaving
// literal and comment contents untouched.
func replaceOutsideLiterals(sql string, transform func(string) string) string {
	var out strings.Builder
	var outside strings.Builder
	flush := func() {
		if outside.Len() > 0 {
			out.WriteString(transform(outside.String()))
			outside.Reset()
		}
	}

	i := 0
	for i < len(sql) {
		c := sql[i]
		switch {
		case c == '\'' || c == '"':
			flush()
			delim := c
			out.WriteByte(c)
			i++
			for i < len(sql) {
				out.WriteByte(sql[i])
				if sql[i] == delim {
					if i+1 < len(sql) && sql[i+1] == delim {
						i++
						out.WriteByte(sql[i])
						i++
						continue
					}
					i++
					break
				}
				i++
			}
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			flush()
			for i < len(sql) && sql[i] != '\n' {
				out.WriteByte(sql[i])
				i++
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			flush()
			end := strings.Index(sql[i:], "*/")
			if end < 0 {
				out.WriteString(sql[i:])
				i = len(sql)
			} else {
				out.WriteString(sql[i : i+end+2])
				i += end + 2
			}
		default:
			outside.WriteByte(c)
			i++
		}
	}
	flush()
	return out.String()
}

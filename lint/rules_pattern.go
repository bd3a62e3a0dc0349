package lint

import (
	"regexp"
	"strings"

	"github.com/flowscope/flowscope/issue"
)

// JinjaPadding flags dbt/Jinja control blocks ({% ... %}) whose opening
// `{%` (or `{%-`) is not followed by a space, e.g. `{%if x %}` instead of
// `{% if x %}`. The closing `%}` side is not checked. This is a text-only rule: the statement may not even be
// valid SQL until templating runs, so it never requires a parsed AST.
type JinjaPadding struct{}

func (r *JinjaPadding) Code() string                   { return "LINT_JJ_001" }
func (r *JinjaPadding) Name() string                   { return "jinja-padding" }
func (r *JinjaPadding) Description() string            { return "Jinja {% %} blocks should be padded with a single space" }
func (r *JinjaPadding) RequiresParsedStatement() bool   { return false }
func (r *JinjaPadding) DocumentLevel() bool             { return false }

func (r *JinjaPadding) Check(ctx *Context) []issue.Issue {
	text := ctx.StatementText()
	var out []issue.Issue
	for i := 0; i+1 < len(text); i++ {
		if text[i] != '{' || text[i+1] != '%' {
			continue
		}
		j := i + 2
		if j < len(text) && text[j] == '-' {
			j++
		}
		switch {
		case j >= len(text):
		case text[j] == ' ':
			// correctly padded
		case text[j] == '%':
			// {%%} empty block, nothing to pad
		default:
			out = append(out, ctx.Warn(r.Code(), "Jinja block is missing a space after {%"))
		}
	}
	return out
}

// TrailingCommaBeforeFrom flags a stray comma directly before a FROM
// keyword, almost always left over from reordering or removing the last
// select-list item.
type TrailingCommaBeforeFrom struct{}

func (r *TrailingCommaBeforeFrom) Code() string                 { return "LINT_CP_001" }
func (r *TrailingCommaBeforeFrom) Name() string                 { return "trailing-comma-before-from" }
func (r *TrailingCommaBeforeFrom) Description() string {
	return "a comma immediately precedes FROM, usually left over from editing the select list"
}
func (r *TrailingCommaBeforeFrom) RequiresParsedStatement() bool { return false }
func (r *TrailingCommaBeforeFrom) DocumentLevel() bool           { return false }

var trailingCommaBeforeFromPattern = regexp.MustCompile(`(?i),\s*FROM\b`)

func (r *TrailingCommaBeforeFrom) Check(ctx *Context) []issue.Issue {
	text := trimOutsideLiterals(ctx.StatementText())
	if trailingCommaBeforeFromPattern.MatchString(text) {
		return []issue.Issue{ctx.Warn(r.Code(), "trailing comma before FROM")}
	}
	return nil
}

// CommaSpacing flags a comma with no following whitespace, e.g. `a,b`
// instead of `a, b`.
type CommaSpacing struct{}

func (r *CommaSpacing) Code() string                 { return "LINT_CP_002" }
func (r *CommaSpacing) Name() string                 { return "comma-spacing" }
func (r *CommaSpacing) Description() string          { return "a comma should be followed by a space" }
func (r *CommaSpacing) RequiresParsedStatement() bool { return false }
func (r *CommaSpacing) DocumentLevel() bool           { return false }

func (r *CommaSpacing) Check(ctx *Context) []issue.Issue {
	text := trimOutsideLiterals(ctx.StatementText())
	for i := 0; i+1 < len(text); i++ {
		if text[i] != ',' {
			continue
		}
		next := text[i+1]
		if next == ' ' || next == '\t' || next == '\n' || next == '\r' || next == ')' {
			continue
		}
		return []issue.Issue{ctx.Warn(r.Code(), "comma not followed by a space")}
	}
	return nil
}

// trimOutsideLiterals replaces string/comment contents with spaces so a
// regexp or byte-scan over the result only sees real SQL syntax, while
// preserving byte offsets.
func trimOutsideLiterals(sql string) string {
	out := []byte(sql)
	inString := false
	var delim byte
	for i := 0; i < len(out); i++ {
		c := out[i]
		if inString {
			if c == delim {
				if i+1 < len(out) && out[i+1] == delim {
					out[i], out[i+1] = ' ', ' '
					i++
					continue
				}
				inString = false
				continue
			}
			out[i] = ' '
			continue
		}
		switch {
		case c == '\'' || c == '"':
			inString, delim = true, c
		case c == '-' && i+1 < len(out) && out[i+1] == '-':
			for i < len(out) && out[i] != '\n' {
				out[i] = ' '
				i++
			}
		case c == '/' && i+1 < len(out) && out[i+1] == '*':
			end := strings.Index(string(out[i:]), "*/")
			if end < 0 {
				end = len(out) - i
			} else {
				end += 2
			}
			for k := i; k < i+end && k < len(out); k++ {
				out[k] = ' '
			}
			i += end - 1
		}
	}
	return string(out)
}

// TrailingWhitespace flags any line ending in spaces or tabs. It runs once
// per document rather than per statement, since trailing whitespace is a
// file-formatting concern independent of statement boundaries.
type TrailingWhitespace struct{}

func (r *TrailingWhitespace) Code() string                 { return "LINT_LT_001" }
func (r *TrailingWhitespace) Name() string                 { return "trailing-whitespace" }
func (r *TrailingWhitespace) Description() string          { return "a line ends with trailing whitespace" }
func (r *TrailingWhitespace) RequiresParsedStatement() bool { return false }
func (r *TrailingWhitespace) DocumentLevel() bool           { return true }

var trailingWhitespacePattern = regexp.MustCompile(`[ \t]+(\r?\n|$)`)

func (r *TrailingWhitespace) Check(ctx *Context) []issue.Issue {
	if trailingWhitespacePattern.MatchString(ctx.SQL) {
		return []issue.Issue{ctx.Warn(r.Code(), "trailing whitespace at end of line")}
	}
	return nil
}

// TrailingNewlineRequired flags a document that doesn't end with exactly
// one trailing newline: none at all, or more than one (blank lines at
// end of file).
type TrailingNewlineRequired struct{}

func (r *TrailingNewlineRequired) Code() string        { return "LINT_LT_002" }
func (r *TrailingNewlineRequired) Name() string        { return "trailing-newline-required" }
func (r *TrailingNewlineRequired) Description() string {
	return "the file should end with exactly one trailing newline"
}
func (r *TrailingNewlineRequired) RequiresParsedStatement() bool { return false }
func (r *TrailingNewlineRequired) DocumentLevel() bool           { return true }

func (r *TrailingNewlineRequired) Check(ctx *Context) []issue.Issue {
	if ctx.SQL == "" {
		return nil
	}
	if !strings.HasSuffix(ctx.SQL, "\n") {
		return []issue.Issue{ctx.Warn(r.Code(), "file does not end with a newline")}
	}
	if strings.HasSuffix(ctx.SQL, "\n\n") {
		return []issue.Issue{ctx.Warn(r.Code(), "file ends with more than one trailing newline")}
	}
	return nil
}

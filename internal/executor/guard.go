package executor

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/review-agent/backend/internal/sanitize"
)

type tokenKind int

const (
	wordToken tokenKind = iota
	quotedToken
	literalToken
	numberToken
	punctToken
)

type token struct {
	kind tokenKind
	text string
}

func (t token) is(word string) bool {
	return t.kind == wordToken && strings.EqualFold(t.text, word)
}

func (t token) punct(p string) bool {
	return t.kind == punctToken && t.text == p
}

func (t token) ident() bool {
	return t.kind == wordToken || t.kind == quotedToken
}

// Keywords that change data or schema. As a bare word they reject the
// statement; followed by "(" they are functions such as replace().
var writeKeywords = map[string]bool{
	"INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true, "ALTER": true,
	"CREATE": true, "REPLACE": true, "TRUNCATE": true, "ATTACH": true, "DETACH": true,
	"PRAGMA": true, "VACUUM": true, "REINDEX": true, "GRANT": true, "REVOKE": true,
	"MERGE": true, "COPY": true, "CALL": true, "INTO": true, "LOCK": true,
}

// Words that can follow a table reference without being its alias.
var clauseKeywords = map[string]bool{
	"WHERE": true, "GROUP": true, "ORDER": true, "LIMIT": true, "HAVING": true,
	"JOIN": true, "INNER": true, "LEFT": true, "RIGHT": true, "FULL": true,
	"OUTER": true, "CROSS": true, "NATURAL": true, "ON": true, "USING": true,
	"UNION": true, "INTERSECT": true, "EXCEPT": true, "WINDOW": true,
	"OFFSET": true, "FETCH": true, "FOR": true, "TABLESAMPLE": true,
}

// tokenize splits a statement into words, quoted identifiers, literals,
// numbers and single punctuation characters. Comments are dropped.
func tokenize(stmt string) []token {
	var out []token
	rs := []rune(stmt)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '-' && i+1 < len(rs) && rs[i+1] == '-':
			for i < len(rs) && rs[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < len(rs) && rs[i+1] == '*':
			i += 2
			for i < len(rs) && !(rs[i] == '*' && i+1 < len(rs) && rs[i+1] == '/') {
				i++
			}
			i += 2
		case r == '\'':
			j := i + 1
			for j < len(rs) {
				if rs[j] == '\'' {
					if j+1 < len(rs) && rs[j+1] == '\'' {
						j += 2
						continue
					}
					break
				}
				j++
			}
			out = append(out, token{kind: literalToken, text: string(rs[i:min(j+1, len(rs))])})
			i = j + 1
		case r == '"' || r == '`' || r == '[':
			end := r
			if r == '[' {
				end = ']'
			}
			j := i + 1
			for j < len(rs) && rs[j] != end {
				j++
			}
			out = append(out, token{kind: quotedToken, text: string(rs[i+1 : min(j, len(rs))])})
			i = j + 1
		case r == '_' || unicode.IsLetter(r):
			j := i
			for j < len(rs) && (rs[j] == '_' || rs[j] == '$' || unicode.IsLetter(rs[j]) || unicode.IsDigit(rs[j])) {
				j++
			}
			out = append(out, token{kind: wordToken, text: string(rs[i:j])})
			i = j
		case unicode.IsDigit(r):
			j := i
			for j < len(rs) && (unicode.IsDigit(rs[j]) || rs[j] == '.') {
				j++
			}
			out = append(out, token{kind: numberToken, text: string(rs[i:j])})
			i = j
		default:
			out = append(out, token{kind: punctToken, text: string(r)})
			i++
		}
	}
	return out
}

func opensSubquery(toks []token, i int) bool {
	return i+1 < len(toks) && toks[i].punct("(") && (toks[i+1].is("SELECT") || toks[i+1].is("WITH"))
}

// cteNames collects names bound by "name AS (SELECT" and
// "name (cols) AS (SELECT", with an optional [NOT] MATERIALIZED.
func cteNames(toks []token) map[string]bool {
	names := map[string]bool{}
	for i := 1; i < len(toks); i++ {
		if !toks[i].is("AS") {
			continue
		}
		j := i + 1
		if j < len(toks) && toks[j].is("NOT") {
			j++
		}
		if j < len(toks) && toks[j].is("MATERIALIZED") {
			j++
		}
		if !opensSubquery(toks, j) {
			continue
		}
		k := i - 1
		if toks[k].punct(")") {
			depth := 0
			for ; k >= 0; k-- {
				if toks[k].punct(")") {
					depth++
				} else if toks[k].punct("(") {
					depth--
					if depth == 0 {
						break
					}
				}
			}
			k--
		}
		if k >= 0 && toks[k].ident() {
			names[strings.ToLower(toks[k].text)] = true
		}
	}
	return names
}

// Words that end a FROM list at the current nesting level.
var fromEnders = map[string]bool{
	"SELECT": true, "WHERE": true, "GROUP": true, "ORDER": true, "LIMIT": true,
	"HAVING": true, "UNION": true, "INTERSECT": true, "EXCEPT": true,
	"WINDOW": true, "OFFSET": true, "FETCH": true, "FOR": true, "RETURNING": true,
}

type frame struct {
	relational bool // subquery or join group, not a call or grouping
	inFrom     bool
}

// relations returns every relation named in a FROM or JOIN position,
// including comma lists and parenthesised join groups. FROM inside a
// function call, as in EXTRACT(YEAR FROM d), is not a relation.
func relations(toks []token) []string {
	var names []string
	stack := []*frame{{relational: true}}
	top := func() *frame { return stack[len(stack)-1] }

	readOne := func(i int) int {
		for i < len(toks) && toks[i].punct("(") && !opensSubquery(toks, i) {
			stack = append(stack, &frame{relational: true, inFrom: true})
			i++
		}
		if i >= len(toks) || !toks[i].ident() {
			return i
		}
		name := toks[i].text
		i++
		for i+1 < len(toks) && toks[i].punct(".") && toks[i+1].ident() {
			name = toks[i+1].text
			i += 2
		}
		names = append(names, name)
		if i < len(toks) && toks[i].is("AS") {
			i += 2
		} else if i < len(toks) && toks[i].ident() && !clauseKeywords[strings.ToUpper(toks[i].text)] {
			i++
		}
		return i
	}

	for i := 0; i < len(toks); {
		t := toks[i]
		switch {
		case t.punct("("):
			stack = append(stack, &frame{relational: opensSubquery(toks, i)})
			i++
		case t.punct(")"):
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			i++
		case t.is("JOIN"):
			top().inFrom = true
			i = readOne(i + 1)
		case t.is("FROM") && top().relational:
			top().inFrom = true
			i = readOne(i + 1)
		case t.punct(",") && top().relational && top().inFrom:
			i = readOne(i + 1)
		case t.kind == wordToken && fromEnders[strings.ToUpper(t.text)]:
			top().inFrom = false
			i++
		default:
			i++
		}
	}
	return names
}

// guard returns the statement without its terminator, or the failure that
// rejects it. Only a single SELECT or WITH statement over the allowed
// tables passes. A nil allow set skips the table check.
func guard(statement string, allowed map[string]bool) (string, *Failure) {
	stmt := strings.TrimSpace(statement)
	stmt = strings.TrimSpace(strings.TrimRight(stmt, "; \t\n"))
	if stmt == "" {
		return "", &Failure{Kind: RuntimeError, Message: "empty statement"}
	}

	if _, more := sanitize.TerminatorIndex(stmt); more {
		return "", &Failure{Kind: RuntimeError, Message: "only a single statement may be executed"}
	}

	toks := tokenize(stmt)
	if len(toks) == 0 || toks[0].kind != wordToken {
		return "", &Failure{Kind: RuntimeError, Message: "statement does not start with a keyword"}
	}
	if lead := strings.ToUpper(toks[0].text); lead != "SELECT" && lead != "WITH" {
		return "", readOnlyFailure(lead)
	}
	for i, t := range toks {
		if t.kind != wordToken || !writeKeywords[strings.ToUpper(t.text)] {
			continue
		}
		if i+1 < len(toks) && toks[i+1].punct("(") {
			continue
		}
		return "", readOnlyFailure(strings.ToUpper(t.text))
	}

	if allowed == nil {
		return stmt, nil
	}
	ctes := cteNames(toks)
	for _, name := range relations(toks) {
		key := strings.ToLower(name)
		if allowed[key] || ctes[key] {
			continue
		}
		return "", &Failure{
			Kind:    SchemaError,
			Message: fmt.Sprintf("no such table: %s (only %s may be queried)", name, allowedList(allowed)),
		}
	}
	return stmt, nil
}

func readOnlyFailure(keyword string) *Failure {
	return &Failure{
		Kind:    RuntimeError,
		Message: fmt.Sprintf("%s is not allowed; only read-only statements may be executed", keyword),
	}
}

func allowedList(allowed map[string]bool) string {
	names := make([]string, 0, len(allowed))
	for name := range allowed {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// Package sanitize turns raw completion text into a single statement.
//
// Statement never fails: whatever the model produced, the caller gets a
// string ending in exactly one ';'. The executor decides whether it is valid.
package sanitize

import (
	"regexp"
	"strings"
)

const Terminator = ";"

var (
	fenceRe = regexp.MustCompile("```[A-Za-z]*")
	labelRe = regexp.MustCompile(`(?i)^\s*(sql|query|answer|a)\s*:\s*`)
	startRe = regexp.MustCompile(`(?i)^\s*(select|with)\b`)
)

func Statement(raw string) string {
	text := fenceRe.ReplaceAllString(raw, "\n")
	text = strings.ReplaceAll(text, "\r\n", "\n")

	lines := strings.Split(text, "\n")
	lines = dropLeadingProse(lines)
	if len(lines) > 0 {
		lines[0] = labelRe.ReplaceAllString(lines[0], "")
	}
	text = strings.Join(lines, "\n")

	if cut, ok := TerminatorIndex(text); ok {
		text = text[:cut]
	} else {
		text = firstBlock(text)
	}

	text = strings.TrimSpace(text)
	text = strings.TrimRight(text, "; \t\n")
	return text + Terminator
}

// dropLeadingProse skips blank lines and explanation lines that precede the
// first line opening a statement, with or without a label. If no such line
// exists the input is kept as is.
func dropLeadingProse(lines []string) []string {
	for i, line := range lines {
		if startRe.MatchString(labelRe.ReplaceAllString(line, "")) {
			return lines[i:]
		}
	}
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			return lines[i:]
		}
	}
	return nil
}

// TerminatorIndex returns the index of the first ';' outside single quotes,
// double quotes or a line comment.
func TerminatorIndex(s string) (int, bool) {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '-' && i+1 < len(s) && s[i+1] == '-':
			nl := strings.IndexByte(s[i:], '\n')
			if nl < 0 {
				return 0, false
			}
			i += nl
		case c == ';':
			return i, true
		}
	}
	return 0, false
}

func firstBlock(s string) string {
	s = strings.TrimLeft(s, " \t\n")
	if i := strings.Index(s, "\n\n"); i >= 0 {
		return s[:i]
	}
	return s
}

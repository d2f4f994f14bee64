// Package fallback picks a fixed statement for a question when the
// completion service cannot be reached.
package fallback

import (
	"fmt"
	"strings"

	"github.com/jdkato/prose/v2"
)

// Rule fires when every one of its keywords occurs among the question's
// tokens. A keyword ending in '*' matches by prefix.
type Rule struct {
	Name      string
	Keywords  []string
	Statement string
}

type Rules struct {
	rules       []Rule
	defaultStmt string
}

// ForTable returns the rule table for the reviews table. Rules are tried in
// order; the first match wins.
func ForTable(table string) *Rules {
	return &Rules{
		rules: []Rule{
			{Name: "positive_count", Keywords: []string{"positive"},
				Statement: fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE sentiment = 'Positive';", table)},
			{Name: "negative_count", Keywords: []string{"negative"},
				Statement: fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE sentiment = 'Negative';", table)},
			{Name: "neutral_count", Keywords: []string{"neutral"},
				Statement: fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE sentiment = 'Neutral';", table)},
			{Name: "average_rating_by_country", Keywords: []string{"average", "countr*"},
				Statement: fmt.Sprintf("SELECT passenger_country, AVG(overall_rating) AS avg_rating FROM %s GROUP BY passenger_country;", table)},
			{Name: "average_rating", Keywords: []string{"average"},
				Statement: fmt.Sprintf("SELECT AVG(overall_rating) AS avg_rating FROM %s;", table)},
			{Name: "recommend_count", Keywords: []string{"recommend*"},
				Statement: fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE recommended = 'yes';", table)},
		},
		defaultStmt: fmt.Sprintf("SELECT COUNT(*) FROM %s;", table),
	}
}

var synonyms = map[string]string{
	"avg":  "average",
	"mean": "average",
}

// Statement returns the statement for question and the name of the rule
// that produced it ("default" when none matched). It always returns a
// statement.
func (r *Rules) Statement(question string) (string, string) {
	tokens := tokenize(question)
	for _, rule := range r.rules {
		if matchesAll(tokens, rule.Keywords) {
			return rule.Statement, rule.Name
		}
	}
	return r.defaultStmt, "default"
}

func tokenize(question string) map[string]bool {
	set := map[string]bool{}
	add := func(w string) {
		w = strings.ToLower(strings.Trim(w, ".,;:!?'\"()"))
		if w == "" {
			return
		}
		if s, ok := synonyms[w]; ok {
			w = s
		}
		set[w] = true
	}

	doc, err := prose.NewDocument(question,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		for _, w := range strings.Fields(question) {
			add(w)
		}
		return set
	}
	for _, tok := range doc.Tokens() {
		add(tok.Text)
	}
	return set
}

func matchesAll(tokens map[string]bool, keywords []string) bool {
	for _, kw := range keywords {
		if !matches(tokens, kw) {
			return false
		}
	}
	return true
}

func matches(tokens map[string]bool, keyword string) bool {
	prefix, ok := strings.CutSuffix(keyword, "*")
	if !ok {
		return tokens[keyword]
	}
	for tok := range tokens {
		if strings.HasPrefix(tok, prefix) {
			return true
		}
	}
	return false
}

// Package prompt composes the text sent to the completion service.
// Both builders are pure: the same inputs always give the same prompt.
package prompt

import (
	"fmt"
	"strings"

	"github.com/review-agent/backend/internal/catalog"
	"github.com/review-agent/backend/internal/storage/models"
)

type Policy string

const (
	// PolicyLatest shows the corrector only the statement that just failed.
	PolicyLatest Policy = "latest"
	// PolicyFullHistory lists every earlier attempt of the question as well.
	PolicyFullHistory Policy = "full_history"
)

// Example maps a question pattern to a correct statement.
type Example struct {
	Question  string
	Statement string
}

// DefaultExamples returns the worked examples shown in every prompt.
func DefaultExamples(table string) []Example {
	return []Example{
		{
			Question:  "How many positive reviews are there?",
			Statement: fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE sentiment = 'Positive';", table),
		},
		{
			Question:  "What is the average overall rating by country?",
			Statement: fmt.Sprintf("SELECT passenger_country, AVG(overall_rating) AS avg_rating FROM %s GROUP BY passenger_country;", table),
		},
		{
			Question:  "How many passengers would recommend the airline?",
			Statement: fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE recommended = 'yes';", table),
		},
	}
}

type Builder struct {
	catalog  catalog.Catalog
	dialect  string
	examples []Example
	policy   Policy
}

type Option func(*Builder)

func WithDialect(dialect string) Option {
	return func(b *Builder) { b.dialect = dialect }
}

// WithExamples replaces the worked examples. An empty list keeps the
// defaults; every prompt carries at least one example.
func WithExamples(examples []Example) Option {
	return func(b *Builder) {
		if len(examples) > 0 {
			b.examples = examples
		}
	}
}

func WithPolicy(policy Policy) Option {
	return func(b *Builder) { b.policy = policy }
}

func NewBuilder(cat catalog.Catalog, opts ...Option) *Builder {
	b := &Builder{
		catalog:  cat,
		dialect:  "SQLite",
		examples: DefaultExamples(cat.Table),
		policy:   PolicyLatest,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// DialectFor names the SQL dialect of a database/sql driver.
func DialectFor(driver string) string {
	if driver == "pgx" {
		return "PostgreSQL"
	}
	return "SQLite"
}

func (b *Builder) Policy() Policy {
	return b.policy
}

func (b *Builder) BuildInitial(question string) string {
	var sb strings.Builder
	b.writeHeader(&sb)
	b.writeExamples(&sb)
	sb.WriteString("Now answer:\n")
	fmt.Fprintf(&sb, "Q: %s\nA:", oneLine(question))
	return sb.String()
}

// BuildRepair asks for a corrected statement. history holds earlier failed
// attempts of the same question, oldest first; it is only rendered under
// PolicyFullHistory.
func (b *Builder) BuildRepair(question, failing, errMsg string, history []models.Attempt) string {
	var sb strings.Builder
	b.writeHeader(&sb)
	b.writeExamples(&sb)

	if b.policy == PolicyFullHistory && len(history) > 0 {
		sb.WriteString("Earlier attempts that also failed:\n")
		for i, a := range history {
			fmt.Fprintf(&sb, "%d. %s\n   Error: %s\n", i+1, a.Statement, a.Error)
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Question: %s\n\n", oneLine(question))
	sb.WriteString("This query failed:\n")
	fmt.Fprintf(&sb, "%s\n\n", failing)
	fmt.Fprintf(&sb, "Error: %s\n\n", errMsg)
	sb.WriteString("Write a corrected query that does not repeat this error. ")
	sb.WriteString("Use only the columns listed above.\n")
	sb.WriteString("A:")
	return sb.String()
}

func (b *Builder) writeHeader(sb *strings.Builder) {
	fmt.Fprintf(sb, "You are an expert SQL assistant. Convert the user's question into one valid %s query for the table named %s.\n\n",
		b.dialect, b.catalog.Table)
	sb.WriteString(b.catalog.Describe())
	sb.WriteString("\nRules:\n")
	sb.WriteString("- Use only the columns listed above; never invent columns or tables.\n")
	sb.WriteString("- Compare text columns with the allowed values exactly as written, including case.\n")
	sb.WriteString("- Only read data with SELECT; never modify the table.\n")
	sb.WriteString("- Reply with the SQL statement only, ending with ';'. No explanation, no markdown.\n\n")
}

func (b *Builder) writeExamples(sb *strings.Builder) {
	sb.WriteString("Example questions and SQL:\n\n")
	for _, ex := range b.examples {
		fmt.Fprintf(sb, "Q: %s\nA: %s\n\n", ex.Question, ex.Statement)
	}
}

// oneLine keeps a multi-line question from breaking the Q:/A: framing.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

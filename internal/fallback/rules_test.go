package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatement(t *testing.T) {
	rules := ForTable("reviews")

	tests := []struct {
		question string
		rule     string
		stmt     string
	}{
		{"How many positive reviews are there?", "positive_count", "SELECT COUNT(*) FROM reviews WHERE sentiment = 'Positive';"},
		{"Count the NEGATIVE ones", "negative_count", "SELECT COUNT(*) FROM reviews WHERE sentiment = 'Negative';"},
		{"how many neutral reviews", "neutral_count", "SELECT COUNT(*) FROM reviews WHERE sentiment = 'Neutral';"},
		{"What is the average overall rating by country?", "average_rating_by_country", "SELECT passenger_country, AVG(overall_rating) AS avg_rating FROM reviews GROUP BY passenger_country;"},
		{"mean rating per country", "average_rating_by_country", "SELECT passenger_country, AVG(overall_rating) AS avg_rating FROM reviews GROUP BY passenger_country;"},
		{"What's the avg rating?", "average_rating", "SELECT AVG(overall_rating) AS avg_rating FROM reviews;"},
		{"Would people recommend Ryanair?", "recommend_count", "SELECT COUNT(*) FROM reviews WHERE recommended = 'yes';"},
		{"how many passengers recommended it", "recommend_count", "SELECT COUNT(*) FROM reviews WHERE recommended = 'yes';"},
		{"Tell me something", "default", "SELECT COUNT(*) FROM reviews;"},
		{"", "default", "SELECT COUNT(*) FROM reviews;"},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			stmt, rule := rules.Statement(tt.question)
			assert.Equal(t, tt.rule, rule)
			assert.Equal(t, tt.stmt, stmt)
		})
	}
}

func TestFirstMatchingRuleWins(t *testing.T) {
	stmt, rule := ForTable("reviews").Statement("average rating of positive reviews by country")
	assert.Equal(t, "positive_count", rule)
	assert.Contains(t, stmt, "'Positive'")
}

package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribeListsEveryColumn(t *testing.T) {
	c := Reviews()
	desc := c.Describe()

	for _, col := range c.Columns {
		assert.Contains(t, desc, "- "+col.Name+" (")
	}
	assert.Contains(t, desc, "'yes' | 'no'")
	assert.Contains(t, desc, "'Positive' | 'Neutral' | 'Negative'")
	assert.Contains(t, desc, "overall_rating (INTEGER)")
	assert.Contains(t, desc, "1-10")
}

func TestReviewsReturnsCopy(t *testing.T) {
	c := Reviews()
	c.Columns[0].Name = "mutated"
	col, ok := Reviews().Column("recommended")
	require.True(t, ok)
	col.Values[0] = "mutated"

	again := Reviews()
	assert.Equal(t, "id", again.Columns[0].Name)
	rec, _ := again.Column("recommended")
	assert.Equal(t, []string{"yes", "no"}, rec.Values)
}

func TestColumnLookupIsCaseInsensitive(t *testing.T) {
	col, ok := Reviews().Column("SENTIMENT")
	require.True(t, ok)
	assert.Equal(t, "sentiment", col.Name)

	_, ok = Reviews().Column("happiness")
	assert.False(t, ok)
}

func TestCreateTableSQL(t *testing.T) {
	ddl := Reviews().CreateTableSQL()
	assert.True(t, strings.HasPrefix(ddl, "CREATE TABLE IF NOT EXISTS reviews ("))
	assert.Contains(t, ddl, "id INTEGER PRIMARY KEY,")
	assert.Contains(t, ddl, "sentiment_reason TEXT\n)")
}

// Package catalog describes the one table the question pipeline may query.
// The catalog is loaded once at start-up and never mutated; every prompt and
// every fallback statement is derived from it.
package catalog

import (
	"fmt"
	"strings"
)

type Column struct {
	Name string
	// Type is the declared SQL type used for CREATE TABLE.
	Type string
	// Values enumerates the permitted literal values, if the column has a
	// closed domain. Literals are matched exactly, including case.
	Values []string
	// Range describes numeric bounds, e.g. "1-10".
	Range       string
	Description string
}

type Catalog struct {
	Table   string
	Columns []Column
}

const ReviewsTable = "reviews"

var reviews = Catalog{
	Table: ReviewsTable,
	Columns: []Column{
		{Name: "id", Type: "INTEGER", Description: "unique review id"},
		{Name: "date_published", Type: "TEXT", Description: "date the review was published, ISO format YYYY-MM-DD"},
		{Name: "overall_rating", Type: "INTEGER", Range: "1-10", Description: "overall rating given by the passenger, 10 is best"},
		{Name: "passenger_country", Type: "TEXT", Description: "country of the passenger, English name such as 'United Kingdom' or 'United States'"},
		{Name: "trip_verified", Type: "TEXT", Values: []string{"Trip Verified", "Not Verified"}, Description: "whether the trip was verified by the review site"},
		{Name: "comment_title", Type: "TEXT", Description: "title of the review"},
		{Name: "comment", Type: "TEXT", Description: "full review text written by the passenger"},
		{Name: "aircraft", Type: "TEXT", Description: "aircraft type, e.g. 'Boeing 737-800'; may be NULL"},
		{Name: "type_of_traveller", Type: "TEXT", Values: []string{"Solo Leisure", "Couple Leisure", "Family Leisure", "Business"}, Description: "kind of trip"},
		{Name: "seat_type", Type: "TEXT", Description: "cabin class, usually 'Economy Class'"},
		{Name: "origin", Type: "TEXT", Description: "departure city or airport"},
		{Name: "destination", Type: "TEXT", Description: "arrival city or airport"},
		{Name: "date_flown", Type: "TEXT", Description: "month flown as text, e.g. 'March 2023'"},
		{Name: "seat_comfort", Type: "REAL", Range: "1-5", Description: "seat comfort score; NULL when not rated"},
		{Name: "cabin_staff_service", Type: "REAL", Range: "1-5", Description: "cabin staff service score; NULL when not rated"},
		{Name: "food_beverages", Type: "REAL", Range: "1-5", Description: "food and beverages score; NULL when not rated"},
		{Name: "ground_service", Type: "REAL", Range: "1-5", Description: "ground service score; NULL when not rated"},
		{Name: "value_for_money", Type: "REAL", Range: "1-5", Description: "value for money score; NULL when not rated"},
		{Name: "inflight_entertainment", Type: "REAL", Range: "1-5", Description: "inflight entertainment score; NULL when not rated"},
		{Name: "wifi_connectivity", Type: "REAL", Range: "1-5", Description: "wifi connectivity score; NULL when not rated"},
		{Name: "recommended", Type: "TEXT", Values: []string{"yes", "no"}, Description: "whether the passenger recommends the airline, stored as the text 'yes' or 'no', never 1/0 or true/false"},
		{Name: "sentiment", Type: "TEXT", Values: []string{"Positive", "Neutral", "Negative"}, Description: "sentiment label of the review text; 'happy' or 'satisfied' customers are 'Positive', complaints are 'Negative'"},
		{Name: "sentiment_reason", Type: "TEXT", Description: "short explanation of the sentiment label"},
	},
}

// Reviews returns the catalog of the review table. The returned value is a
// copy; callers may not change the shared definition.
func Reviews() Catalog {
	cols := make([]Column, len(reviews.Columns))
	for i, c := range reviews.Columns {
		c.Values = append([]string(nil), c.Values...)
		cols[i] = c
	}
	return Catalog{Table: reviews.Table, Columns: cols}
}

func (c Catalog) Column(name string) (Column, bool) {
	for _, col := range c.Columns {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}
	return Column{}, false
}

func (c Catalog) ColumnNames() []string {
	names := make([]string, len(c.Columns))
	for i, col := range c.Columns {
		names[i] = col.Name
	}
	return names
}

// Domain renders the permitted values of a column for prompts and listings.
func (col Column) Domain() string {
	switch {
	case len(col.Values) > 0:
		quoted := make([]string, len(col.Values))
		for i, v := range col.Values {
			quoted[i] = "'" + v + "'"
		}
		return strings.Join(quoted, " | ")
	case col.Range != "":
		return col.Range
	default:
		return ""
	}
}

// Describe renders the table for inclusion in a prompt, one column per line.
func (c Catalog) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Table %s:\n", c.Table)
	for _, col := range c.Columns {
		fmt.Fprintf(&b, "- %s (%s): %s", col.Name, col.Type, col.Description)
		if d := col.Domain(); d != "" {
			fmt.Fprintf(&b, ". Allowed values: %s", d)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// CreateTableSQL returns the DDL of the table. The statement is valid for
// both SQLite and PostgreSQL.
func (c Catalog) CreateTableSQL() string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", c.Table)
	for i, col := range c.Columns {
		fmt.Fprintf(&b, "\t%s %s", col.Name, col.Type)
		if col.Name == "id" {
			b.WriteString(" PRIMARY KEY")
		}
		if i < len(c.Columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

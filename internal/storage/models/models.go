package models

import "time"

// Terminal statuses of a failure record.
const (
	StatusExhausted           = "EXHAUSTED"
	StatusUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	StatusUpstreamTimeout     = "UPSTREAM_TIMEOUT"
	StatusFallbackFailed      = "FALLBACK_FAILED"
	StatusInternalError       = "INTERNAL_ERROR"
)

// Statement sources.
const (
	SourceGenerated = "generated"
	SourceRepaired  = "repaired"
	SourceFallback  = "fallback"
)

// MaxAttempts is the number of attempt slots a failure record carries.
const MaxAttempts = 5

// Attempt is one executed statement and the error it produced.
type Attempt struct {
	Statement string `json:"statement"`
	Error     string `json:"error"`
}

type FailureRecord struct {
	ID                string    `json:"id"`
	Question          string    `json:"question"`
	OriginalStatement string    `json:"original_statement"`
	Attempts          []Attempt `json:"attempts"`
	Status            string    `json:"status"`
	Fingerprint       string    `json:"fingerprint"`
	CreatedAt         time.Time `json:"created_at"`
}

type SuccessRecord struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Statement string    `json:"statement"`
	Answer    string    `json:"answer"`
	LatencyMS int64     `json:"latency_ms"`
	Attempts  int       `json:"attempts"`
	Source    string    `json:"source"`
	Cached    bool      `json:"cached"`
	CreatedAt time.Time `json:"created_at"`
}

// Review is one row of the reviews table. Optional scores are nil when the
// passenger left them blank.
type Review struct {
	ID                    int64
	DatePublished         string
	OverallRating         int
	PassengerCountry      string
	TripVerified          string
	CommentTitle          string
	Comment               string
	Aircraft              *string
	TypeOfTraveller       string
	SeatType              string
	Origin                string
	Destination           string
	DateFlown             string
	SeatComfort           *float64
	CabinStaffService     *float64
	FoodBeverages         *float64
	GroundService         *float64
	ValueForMoney         *float64
	InflightEntertainment *float64
	WifiConnectivity      *float64
	Recommended           string
	Sentiment             string
	SentimentReason       string
}

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/review-agent/backend/internal/catalog"
	"github.com/review-agent/backend/internal/storage/models"
	"github.com/review-agent/backend/pkg/logger"
	"github.com/review-agent/backend/pkg/retry"
)

type Client struct {
	db    *sql.DB
	retry retry.Config
}

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err = db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	cfg := retry.DefaultConfig()
	cfg.Name = "sqlite-write"
	cfg.Retryable = IsBusy
	cfg.Logger = logger.Component("audit")

	return &Client{db: db, retry: cfg}, nil
}

// OpenQueryOnly opens a second handle on dbPath that refuses writes at the
// connection level. The query executor reads through it.
func OpenQueryOnly(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_query_only=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open query-only handle: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open query-only handle: %w", err)
	}
	return db, nil
}

// NewFromDB wraps an already opened handle.
func NewFromDB(db *sql.DB) *Client {
	cfg := retry.DefaultConfig()
	cfg.Name = "sqlite-write"
	cfg.Retryable = IsBusy
	return &Client{db: db, retry: cfg}
}

func (c *Client) DB() *sql.DB {
	return c.db
}

func (c *Client) Close() error {
	return c.db.Close()
}

// IsBusy reports whether err is a transient lock error worth retrying.
func IsBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

// InitReviewSchema creates the review table the pipeline queries.
func (c *Client) InitReviewSchema(ctx context.Context) error {
	schema := catalog.Reviews().CreateTableSQL() + `;
	CREATE INDEX IF NOT EXISTS idx_reviews_sentiment ON reviews(sentiment);
	CREATE INDEX IF NOT EXISTS idx_reviews_country ON reviews(passenger_country);
	`

	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize review schema: %w", err)
	}

	logger.Info("Review schema initialized")
	return nil
}

// InitAuditSchema creates the failure and success logs.
func (c *Client) InitAuditSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS query_error_log (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		original_sql TEXT,
		attempt_1_sql TEXT,
		attempt_1_error TEXT,
		attempt_2_sql TEXT,
		attempt_2_error TEXT,
		attempt_3_sql TEXT,
		attempt_3_error TEXT,
		attempt_4_sql TEXT,
		attempt_4_error TEXT,
		attempt_5_sql TEXT,
		attempt_5_error TEXT,
		attempt_count INTEGER NOT NULL,
		final_status TEXT NOT NULL,
		attempts_fingerprint TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_error_log_created ON query_error_log(created_at);
	CREATE INDEX IF NOT EXISTS idx_error_log_fingerprint ON query_error_log(attempts_fingerprint);

	CREATE TABLE IF NOT EXISTS query_success_log (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		sql_query TEXT NOT NULL,
		answer_text TEXT NOT NULL,
		execution_time_ms INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		source TEXT NOT NULL,
		cached INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_success_log_created ON query_success_log(created_at);
	`

	if _, err := c.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	logger.Info("Audit schema initialized")
	return nil
}

func (c *Client) InsertFailure(ctx context.Context, record *models.FailureRecord) error {
	if len(record.Attempts) == 0 || len(record.Attempts) > models.MaxAttempts {
		return fmt.Errorf("failure record must carry 1..%d attempts, got %d", models.MaxAttempts, len(record.Attempts))
	}

	query := `
		INSERT INTO query_error_log (id, question, original_sql,
			attempt_1_sql, attempt_1_error, attempt_2_sql, attempt_2_error,
			attempt_3_sql, attempt_3_error, attempt_4_sql, attempt_4_error,
			attempt_5_sql, attempt_5_error,
			attempt_count, final_status, attempts_fingerprint, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	args := []any{record.ID, record.Question, record.OriginalStatement}
	for i := 0; i < models.MaxAttempts; i++ {
		if i < len(record.Attempts) {
			args = append(args, record.Attempts[i].Statement, record.Attempts[i].Error)
		} else {
			args = append(args, nil, nil)
		}
	}
	args = append(args, len(record.Attempts), record.Status, record.Fingerprint, record.CreatedAt.Unix())

	err := retry.Do(ctx, c.retry, func() error {
		_, err := c.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert failure record: %w", err)
	}

	logger.Info("Failure recorded",
		zap.String("question_id", record.ID),
		zap.String("status", record.Status),
		zap.Int("attempts", len(record.Attempts)),
	)

	return nil
}

func (c *Client) InsertSuccess(ctx context.Context, record *models.SuccessRecord) error {
	query := `
		INSERT INTO query_success_log (id, question, sql_query, answer_text,
			execution_time_ms, attempts, source, cached, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	cached := 0
	if record.Cached {
		cached = 1
	}

	err := retry.Do(ctx, c.retry, func() error {
		_, err := c.db.ExecContext(ctx, query,
			record.ID,
			record.Question,
			record.Statement,
			record.Answer,
			record.LatencyMS,
			record.Attempts,
			record.Source,
			cached,
			record.CreatedAt.Unix(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to insert success record: %w", err)
	}

	logger.Info("Success recorded",
		zap.String("question_id", record.ID),
		zap.Int64("latency_ms", record.LatencyMS),
		zap.Bool("cached", record.Cached),
	)

	return nil
}

func (c *Client) ListFailures(ctx context.Context, limit int) ([]models.FailureRecord, error) {
	query := `
		SELECT id, question, COALESCE(original_sql, ''),
			attempt_1_sql, attempt_1_error, attempt_2_sql, attempt_2_error,
			attempt_3_sql, attempt_3_error, attempt_4_sql, attempt_4_error,
			attempt_5_sql, attempt_5_error,
			final_status, attempts_fingerprint, created_at
		FROM query_error_log
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failure records: %w", err)
	}
	defer rows.Close()

	var records []models.FailureRecord
	for rows.Next() {
		var r models.FailureRecord
		var slots [2 * models.MaxAttempts]sql.NullString
		var createdAt int64

		dest := []any{&r.ID, &r.Question, &r.OriginalStatement}
		for i := range slots {
			dest = append(dest, &slots[i])
		}
		dest = append(dest, &r.Status, &r.Fingerprint, &createdAt)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i := 0; i < models.MaxAttempts; i++ {
			stmt, msg := slots[2*i], slots[2*i+1]
			if !stmt.Valid {
				break
			}
			r.Attempts = append(r.Attempts, models.Attempt{Statement: stmt.String, Error: msg.String})
		}
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) ListSuccesses(ctx context.Context, limit int) ([]models.SuccessRecord, error) {
	query := `
		SELECT id, question, sql_query, answer_text, execution_time_ms,
			attempts, source, cached, created_at
		FROM query_success_log
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list success records: %w", err)
	}
	defer rows.Close()

	var records []models.SuccessRecord
	for rows.Next() {
		var r models.SuccessRecord
		var cached int
		var createdAt int64

		err := rows.Scan(&r.ID, &r.Question, &r.Statement, &r.Answer, &r.LatencyMS,
			&r.Attempts, &r.Source, &cached, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.Cached = cached == 1
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}

// InsertReviews loads review rows in one transaction. It exists for seeding
// local stores and tests; the question pipeline itself only reads.
func (c *Client) InsertReviews(ctx context.Context, reviews []models.Review) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO reviews (id, date_published, overall_rating, passenger_country,
			trip_verified, comment_title, comment, aircraft, type_of_traveller,
			seat_type, origin, destination, date_flown, seat_comfort,
			cabin_staff_service, food_beverages, ground_service, value_for_money,
			inflight_entertainment, wifi_connectivity, recommended, sentiment,
			sentiment_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare review insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range reviews {
		_, err := stmt.ExecContext(ctx,
			r.ID, r.DatePublished, r.OverallRating, r.PassengerCountry,
			r.TripVerified, r.CommentTitle, r.Comment, r.Aircraft, r.TypeOfTraveller,
			r.SeatType, r.Origin, r.Destination, r.DateFlown, r.SeatComfort,
			r.CabinStaffService, r.FoodBeverages, r.GroundService, r.ValueForMoney,
			r.InflightEntertainment, r.WifiConnectivity, r.Recommended, r.Sentiment,
			r.SentimentReason,
		)
		if err != nil {
			return fmt.Errorf("failed to insert review %d: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reviews: %w", err)
	}

	logger.Info("Reviews loaded", zap.Int("count", len(reviews)))
	return nil
}

package executor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"github.com/review-agent/backend/pkg/logger"
)

type ErrorKind string

const (
	SyntaxError  ErrorKind = "SyntaxError"
	SchemaError  ErrorKind = "SchemaError"
	RuntimeError ErrorKind = "RuntimeError"
)

// ResultSet is an ordered list of named columns and rows of scalar values.
// A result with zero rows is a success.
type ResultSet struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func (rs ResultSet) Len() int {
	return len(rs.Rows)
}

type Failure struct {
	Kind    ErrorKind
	Message string
}

func (f Failure) String() string {
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Outcome is either a result set or a classified failure, never both.
// Cached marks a result served without touching the store.
type Outcome struct {
	Result  ResultSet
	Failure *Failure
	Cached  bool
}

func Success(rs ResultSet) Outcome {
	return Outcome{Result: rs}
}

func Failed(kind ErrorKind, message string) Outcome {
	return Outcome{Failure: &Failure{Kind: kind, Message: message}}
}

func (o Outcome) OK() bool {
	return o.Failure == nil
}

type Executor struct {
	db      *sql.DB
	timeout time.Duration
	tables  map[string]bool
}

type Option func(*Executor)

// WithTables limits statements to the named tables. Any other relation,
// including the store's own catalogs and audit tables, is rejected as a
// schema error before the statement reaches the store.
func WithTables(names ...string) Option {
	return func(e *Executor) {
		e.tables = make(map[string]bool, len(names))
		for _, n := range names {
			e.tables[strings.ToLower(n)] = true
		}
	}
}

func New(db *sql.DB, timeout time.Duration, opts ...Option) *Executor {
	e := &Executor{db: db, timeout: timeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs one read-only statement. It never returns an error: store
// errors, rejected statements and panics from drivers all come back as a
// classified Failure.
func (e *Executor) Execute(ctx context.Context, statement string) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Executor panic", zap.Any("panic", r))
			outcome = Failed(RuntimeError, fmt.Sprintf("execution aborted: %v", r))
		}
	}()

	stmt, rejected := guard(statement, e.tables)
	if rejected != nil {
		logger.Warn("Statement rejected",
			zap.String("error_kind", string(rejected.Kind)),
			zap.String("reason", rejected.Message),
		)
		return Outcome{Failure: rejected}
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	rs, err := e.query(ctx, stmt)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
		}
		kind := Classify(err)
		logger.Debug("Statement failed",
			zap.String("error_kind", string(kind)),
			zap.Error(err),
		)
		return Failed(kind, errorMessage(err))
	}

	logger.Debug("Statement executed",
		zap.Int("rows", rs.Len()),
		zap.Int64("latency_ms", time.Since(start).Milliseconds()),
	)
	return Success(rs)
}

// query runs stmt inside a read-only transaction that is always rolled back.
func (e *Executor) query(ctx context.Context, stmt string) (ResultSet, error) {
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return ResultSet{}, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, stmt)
	if err != nil {
		return ResultSet{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return ResultSet{}, err
	}

	rs := ResultSet{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return ResultSet{}, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		rs.Rows = append(rs.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return ResultSet{}, err
	}
	return rs, nil
}

// Classify maps a store error onto the error kinds driving repair.
func Classify(err error) ErrorKind {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "42601":
			return SyntaxError
		case "42703", "42P01", "42702", "42883":
			return SchemaError
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "syntax error"),
		strings.Contains(msg, "incomplete input"),
		strings.Contains(msg, "unrecognized token"):
		return SyntaxError
	case strings.Contains(msg, "no such column"),
		strings.Contains(msg, "no such table"),
		strings.Contains(msg, "no such function"),
		strings.Contains(msg, "does not exist"),
		strings.Contains(msg, "ambiguous column"):
		return SchemaError
	default:
		return RuntimeError
	}
}

func errorMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "statement timed out"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message
	}
	return err.Error()
}

// Package app wires configuration into a ready question engine. Both
// binaries build their dependencies through Build.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/review-agent/backend/internal/audit"
	auditredis "github.com/review-agent/backend/internal/audit/redis"
	"github.com/review-agent/backend/internal/cache"
	"github.com/review-agent/backend/internal/catalog"
	"github.com/review-agent/backend/internal/executor"
	"github.com/review-agent/backend/internal/fallback"
	"github.com/review-agent/backend/internal/llm"
	"github.com/review-agent/backend/internal/metrics"
	"github.com/review-agent/backend/internal/prompt"
	"github.com/review-agent/backend/internal/query"
	"github.com/review-agent/backend/internal/repair"
	"github.com/review-agent/backend/internal/storage/postgres"
	"github.com/review-agent/backend/internal/storage/sqlite"
	"github.com/review-agent/backend/pkg/config"
	"github.com/review-agent/backend/pkg/logger"
)

type App struct {
	Config  *config.Config
	Catalog catalog.Catalog
	// Audit holds the failure and success logs, in a file of their own
	// unless the configuration points the review store at it.
	Audit   *sqlite.Client
	Reviews *sql.DB
	Cache   *cache.Cache
	LLM     *llm.Client
	Engine  *query.Engine

	closers []func() error
}

type Option func(*options)

type options struct {
	completer repair.Completer
}

// WithCompleter replaces the configured completion providers.
func WithCompleter(c repair.Completer) Option {
	return func(o *options) { o.completer = c }
}

func Build(ctx context.Context, cfg *config.Config, opts ...Option) (_ *App, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	metrics.Init()

	a := &App{Config: cfg, Catalog: catalog.Reviews()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.Audit, err = sqlite.NewClient(cfg.Audit.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store: %w", err)
	}
	a.closers = append(a.closers, a.Audit.Close)
	if err = a.Audit.InitAuditSchema(ctx); err != nil {
		return nil, err
	}

	if a.Reviews, err = a.openReviews(ctx); err != nil {
		return nil, err
	}

	completer := o.completer
	if completer == nil {
		a.LLM, err = llm.NewFromConfig(ctx, cfg.LLM, llm.WithObserver(metrics.ObserveCompletion))
		if err != nil {
			return nil, fmt.Errorf("failed to configure completion client: %w", err)
		}
		completer = a.LLM
	}

	a.Cache = cache.New()
	queryDB, err := a.openQueryHandle()
	if err != nil {
		return nil, err
	}
	exec := executor.New(queryDB, time.Duration(cfg.Store.QueryTimeoutMs)*time.Millisecond,
		executor.WithTables(a.Catalog.Table),
	)
	reader := cache.NewReader(a.Cache, exec)
	reader.OnLookup = metrics.ObserveCacheLookup

	builder := prompt.NewBuilder(a.Catalog,
		prompt.WithDialect(prompt.DialectFor(cfg.Store.Driver)),
		prompt.WithPolicy(prompt.Policy(cfg.Pipeline.RepairPolicy)),
	)

	a.Engine = query.NewEngine(query.Deps{
		Completer: completer,
		Builder:   builder,
		Runner:    reader,
		Cache:     a.Cache,
		Rules:     fallback.ForTable(a.Catalog.Table),
		Audit:     a.auditLog(),
		Logger:    logger.Component("engine"),
	},
		query.WithAttemptObserver(metrics.ObserveExecution),
		query.WithObserver(a.observeAnswer),
	)

	logger.Info("Question engine ready",
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("repair_policy", cfg.Pipeline.RepairPolicy),
		zap.String("generation_provider", cfg.LLM.Generation.Provider),
		zap.String("repair_provider", cfg.LLM.Repair.Provider),
	)
	return a, nil
}

func (a *App) openReviews(ctx context.Context) (*sql.DB, error) {
	cfg := a.Config.Store
	switch cfg.Driver {
	case "pgx":
		db, err := postgres.Open(ctx, postgres.DBConfig{
			DSN:             cfg.DSN,
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		return db, nil

	default:
		store := a.Audit
		if cfg.DSN != a.Config.Audit.Path {
			var err error
			if store, err = sqlite.NewClient(cfg.DSN); err != nil {
				return nil, fmt.Errorf("failed to open review store: %w", err)
			}
			a.closers = append(a.closers, store.Close)
		}
		if err := store.InitReviewSchema(ctx); err != nil {
			return nil, err
		}
		return store.DB(), nil
	}
}

// openQueryHandle returns the handle generated statements run on. For
// SQLite it is a separate query-only connection pool; Postgres relies on
// the executor's read-only transactions.
func (a *App) openQueryHandle() (*sql.DB, error) {
	if a.Config.Store.Driver == "pgx" {
		return a.Reviews, nil
	}
	db, err := sqlite.OpenQueryOnly(a.Config.Store.DSN)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	return db, nil
}

func (a *App) auditLog() audit.Log {
	multi := audit.NewMulti(audit.FromStore(a.Audit), metrics.ObserveAuditWrite)

	rc := a.Config.Audit.Redis
	if !rc.Enabled {
		return multi
	}
	stream, err := auditredis.NewStream(rc.Host, rc.Port, rc.Password, rc.DB, rc.Stream, rc.MaxLen)
	if err != nil {
		logger.Warn("Redis audit stream disabled", zap.Error(err))
		return multi
	}
	a.closers = append(a.closers, stream.Close)
	multi.AddMirror("redis", stream)
	return multi
}

func (a *App) observeAnswer(ans query.Answer) {
	metrics.ObserveQuestion(ans.Status, ans.Attempts, time.Duration(ans.LatencyMS)*time.Millisecond)
	if a.LLM != nil {
		metrics.ObserveBreakerStates(a.LLM.BreakerStates())
	}
}

// Seed loads the sample reviews into an empty SQLite review store.
func (a *App) Seed(ctx context.Context) (int, error) {
	if a.Config.Store.Driver != "sqlite3" {
		return 0, fmt.Errorf("seeding is only supported for the sqlite3 store")
	}

	var n int
	if err := a.Reviews.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+a.Catalog.Table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	reviews := sqlite.SampleReviews()
	if err := sqlite.NewFromDB(a.Reviews).InsertReviews(ctx, reviews); err != nil {
		return 0, err
	}
	return len(reviews), nil
}

// Ready checks that the review store answers.
func (a *App) Ready(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return a.Reviews.PingContext(ctx)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

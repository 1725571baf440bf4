package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"parkwise-booking-core/internal/domain"
	"parkwise-booking-core/internal/logger"
	"parkwise-booking-core/internal/repository"

	_ "github.com/lib/pq"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Store runs every mutation in a serializable transaction and re-runs the whole unit of work
// when Postgres reports a serialization failure or deadlock.
type Store struct {
	db           *sql.DB
	maxAttempts  int
	retryBackoff time.Duration
}

var _ repository.Transactor = (*Store)(nil)

func NewStore(db *sql.DB, maxRetries int, retryBackoff time.Duration) *Store {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Store{db: db, maxAttempts: maxRetries + 1, retryBackoff: retryBackoff}
}

func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := s.runTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable}, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
		logger.Warn("Serializable transaction aborted, retrying", "attempt", attempt, "max_attempts", s.maxAttempts, "error", err)
		if err := s.sleep(ctx, attempt); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: gave up after %d attempts: %v", domain.ErrStorageConflict, s.maxAttempts, lastErr)
}

func (s *Store) View(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	err := s.runTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn)
	if isRetryable(err) {
		return fmt.Errorf("%w: %v", domain.ErrStorageConflict, err)
	}
	return err
}

func (s *Store) runTx(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context, repos repository.Repos) error) (err error) {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.Error("Failed to roll back transaction", "error", rbErr)
			}
		}
	}()

	if err = fn(ctx, NewRepos(tx)); err != nil {
		return classify(err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}
	return nil
}

func (s *Store) sleep(ctx context.Context, attempt int) error {
	if s.retryBackoff <= 0 {
		return nil
	}
	d := s.retryBackoff*time.Duration(attempt) + rand.N(s.retryBackoff)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type txRepos struct {
	q DBTX
}

// NewRepos binds the repositories to q, which is normally a transaction.
func NewRepos(q DBTX) repository.Repos {
	return txRepos{q: q}
}

func (r txRepos) Catalog() repository.CatalogRepository { return NewCatalogRepository(r.q) }
func (r txRepos) Bookings() repository.BookingRepository { return NewBookingRepository(r.q) }
func (r txRepos) SlotLedger() repository.SlotLedgerRepository { return NewSlotLedgerRepository(r.q) }
func (r txRepos) Payments() repository.PaymentRepository { return NewPaymentRepository(r.q) }
func (r txRepos) Summaries() repository.PaymentSummaryRepository { return NewPaymentSummaryRepository(r.q) }
func (r txRepos) History() repository.StatusHistoryRepository { return NewStatusHistoryRepository(r.q) }

// Connect opens the pool and waits for the database to answer, retrying while it starts up.
func Connect(ctx context.Context, dsn string, maxOpenConns, attempts int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	for i := 1; ; i++ {
		err = db.PingContext(ctx)
		if err == nil {
			return db, nil
		}
		if i >= attempts {
			db.Close()
			return nil, fmt.Errorf("failed to ping database after %d attempts: %w", i, err)
		}
		logger.Warn("Database not ready, retrying", "attempt", i, "error", err)
		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, fmt.Sprintf(format, args...))
	}
	return err
}

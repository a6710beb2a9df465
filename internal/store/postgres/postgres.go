// Package postgres implements the store.Store interface backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/alfredjeanlab/vesting/internal/model"
	"github.com/alfredjeanlab/vesting/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ledgerLockKey is the transaction-scoped advisory lock every mutating
// transaction takes first. Ledger writes are rare, so all of them are
// serialized behind this one key instead of locking individual rows.
const ledgerLockKey int64 = 0x76657374 // "vest"

// PostgresStore implements store.Store backed by a PostgreSQL database.
type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements store.Store.
var _ store.Store = (*PostgresStore)(nil)

// New opens a connection to the PostgreSQL database at the given URL,
// configures the connection pool, and runs any pending migrations.
func New(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewWithDB wraps an existing connection without running migrations.
func NewWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// Close closes the underlying database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) GetSchedule(ctx context.Context, beneficiary model.Address) (*model.Schedule, error) {
	return queryGetSchedule(ctx, s.db, beneficiary)
}

func (s *PostgresStore) PutSchedule(ctx context.Context, sched *model.Schedule) error {
	return queryPutSchedule(ctx, s.db, sched)
}

func (s *PostgresStore) ListSchedules(ctx context.Context, filter model.ScheduleFilter) ([]*model.Schedule, error) {
	return queryListSchedules(ctx, s.db, filter)
}

func (s *PostgresStore) GetAgreement(ctx context.Context, signer model.Address) (*model.Agreement, error) {
	return queryGetAgreement(ctx, s.db, signer)
}

func (s *PostgresStore) PutAgreement(ctx context.Context, a *model.Agreement) error {
	return queryPutAgreement(ctx, s.db, a)
}

func (s *PostgresStore) ListAgreements(ctx context.Context) ([]*model.Agreement, error) {
	return queryListAgreements(ctx, s.db)
}

func (s *PostgresStore) GetBalance(ctx context.Context, addr model.Address) (decimal.Decimal, error) {
	return queryGetBalance(ctx, s.db, addr)
}

func (s *PostgresStore) SetBalance(ctx context.Context, addr model.Address, amount decimal.Decimal) error {
	return querySetBalance(ctx, s.db, addr, amount)
}

func (s *PostgresStore) ListBalances(ctx context.Context) ([]*model.Balance, error) {
	return queryListBalances(ctx, s.db)
}

func (s *PostgresStore) TotalSupply(ctx context.Context) (decimal.Decimal, error) {
	return queryTotalSupply(ctx, s.db)
}

func (s *PostgresStore) GetAllowance(ctx context.Context, owner, spender model.Address) (decimal.Decimal, error) {
	return queryGetAllowance(ctx, s.db, owner, spender)
}

func (s *PostgresStore) SetAllowance(ctx context.Context, owner, spender model.Address, amount decimal.Decimal) error {
	return querySetAllowance(ctx, s.db, owner, spender, amount)
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.db, event)
}

func (s *PostgresStore) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	return queryListEvents(ctx, s.db, filter)
}

// RunInTransaction begins a database transaction, takes the ledger advisory
// lock, creates a txStore that delegates to it, calls fn, and commits on
// success or rolls back on error.
func (s *PostgresStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("acquire ledger lock: %w", err)
	}

	txS := &txStore{tx: tx}
	if err := fn(txS); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// txStore implements store.Store using a *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

// Compile-time check that txStore implements store.Store.
var _ store.Store = (*txStore)(nil)

func (s *txStore) GetSchedule(ctx context.Context, beneficiary model.Address) (*model.Schedule, error) {
	return queryGetSchedule(ctx, s.tx, beneficiary)
}

func (s *txStore) PutSchedule(ctx context.Context, sched *model.Schedule) error {
	return queryPutSchedule(ctx, s.tx, sched)
}

func (s *txStore) ListSchedules(ctx context.Context, filter model.ScheduleFilter) ([]*model.Schedule, error) {
	return queryListSchedules(ctx, s.tx, filter)
}

func (s *txStore) GetAgreement(ctx context.Context, signer model.Address) (*model.Agreement, error) {
	return queryGetAgreement(ctx, s.tx, signer)
}

func (s *txStore) PutAgreement(ctx context.Context, a *model.Agreement) error {
	return queryPutAgreement(ctx, s.tx, a)
}

func (s *txStore) ListAgreements(ctx context.Context) ([]*model.Agreement, error) {
	return queryListAgreements(ctx, s.tx)
}

func (s *txStore) GetBalance(ctx context.Context, addr model.Address) (decimal.Decimal, error) {
	return queryGetBalance(ctx, s.tx, addr)
}

func (s *txStore) SetBalance(ctx context.Context, addr model.Address, amount decimal.Decimal) error {
	return querySetBalance(ctx, s.tx, addr, amount)
}

func (s *txStore) ListBalances(ctx context.Context) ([]*model.Balance, error) {
	return queryListBalances(ctx, s.tx)
}

func (s *txStore) TotalSupply(ctx context.Context) (decimal.Decimal, error) {
	return queryTotalSupply(ctx, s.tx)
}

func (s *txStore) GetAllowance(ctx context.Context, owner, spender model.Address) (decimal.Decimal, error) {
	return queryGetAllowance(ctx, s.tx, owner, spender)
}

func (s *txStore) SetAllowance(ctx context.Context, owner, spender model.Address, amount decimal.Decimal) error {
	return querySetAllowance(ctx, s.tx, owner, spender, amount)
}

func (s *txStore) RecordEvent(ctx context.Context, event *model.Event) error {
	return queryRecordEvent(ctx, s.tx, event)
}

func (s *txStore) ListEvents(ctx context.Context, filter model.EventFilter) ([]*model.Event, error) {
	return queryListEvents(ctx, s.tx, filter)
}

// RunInTransaction on a txStore reuses the existing transaction (no nesting).
func (s *txStore) RunInTransaction(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// Close is a no-op for a transaction store; the parent store owns the connection.
func (s *txStore) Close() error {
	return nil
}

// Package adapter defines the backing-store capability used by migration
// units and the ledger. A single database/sql implementation covers all
// supported engines; the engines differ only in a small dialect surface
// (placeholder style, DDL for the ledger table, duplicate-key detection).
package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrConnection marks failures to reach or authenticate against the
	// backing store.
	ErrConnection = errors.New("connection failed")
	// ErrExecution marks a failed statement, whether issued by a unit or
	// by the ledger itself.
	ErrExecution = errors.New("execution failed")
	// ErrDuplicateEntry marks a ledger uniqueness violation: the unit was
	// already recorded, by this process or a concurrent one.
	ErrDuplicateEntry = errors.New("duplicate ledger entry")
	// ErrUnsupportedDriver marks an unrecognized backing-store kind.
	ErrUnsupportedDriver = errors.New("unsupported database type")
)

// Execer is the capability handed to migration unit operations. Units get
// raw statement execution and nothing else, so they stay portable between
// engines and cannot touch the ledger.
type Execer interface {
	Exec(ctx context.Context, stmt string, args ...any) error
}

// Entry is one recorded ledger row.
type Entry struct {
	ID         string    `json:"id"`
	ExecutedAt time.Time `json:"executed_at"`
}

// Adapter is the uniform contract over a backing store: connection
// lifecycle, raw execution for units, and the four ledger primitives in
// the store's native dialect.
type Adapter interface {
	Execer

	// Ping verifies the connection is live. Returns ErrConnection-wrapped
	// errors.
	Ping(ctx context.Context) error
	// Close releases the underlying pool. Safe to call once per adapter.
	Close() error

	// EnsureLedger creates the ledger table if absent. Idempotent.
	EnsureLedger(ctx context.Context, table string) error
	// Entries returns recorded unit identifiers in application order.
	Entries(ctx context.Context, table string) ([]Entry, error)
	// Record appends one entry. Fails with ErrDuplicateEntry if the
	// identifier is already recorded.
	Record(ctx context.Context, table, id string) error
	// Remove deletes the entry for id. Absent identifiers are a no-op.
	Remove(ctx context.Context, table, id string) error
}

// ConnConfig holds the connection parameters for a backing store. For
// sqlite, Database is the file path (or :memory:) and the network fields
// are ignored.
type ConnConfig struct {
	Kind     string
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// dialect is the per-engine surface behind the shared sqlAdapter.
type dialect interface {
	// driverName is the registered database/sql driver.
	driverName() string
	// dsn renders the connection string for cfg.
	dsn(cfg ConnConfig) string
	// placeholder returns the bind marker for 1-based position n.
	placeholder(n int) string
	// createLedgerSQL returns the idempotent DDL for the ledger table.
	createLedgerSQL(table string) string
	// isDuplicate reports whether err is a uniqueness violation.
	isDuplicate(err error) bool
}

// sqlAdapter implements Adapter for any database/sql driver.
type sqlAdapter struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to the backing store described by cfg. The connection is
// pinged before the adapter is returned, so configuration mistakes
// surface here rather than mid-sequence.
func Open(ctx context.Context, cfg ConnConfig) (Adapter, error) {
	var d dialect
	switch cfg.Kind {
	case "postgres":
		d = postgresDialect{}
	case "mysql":
		d = mysqlDialect{}
	case "sqlite":
		d = sqliteDialect{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Kind)
	}

	db, err := sql.Open(d.driverName(), d.dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	a := &sqlAdapter{db: db, dialect: d}
	if err := a.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return a, nil
}

func (a *sqlAdapter) Ping(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

func (a *sqlAdapter) Close() error {
	return a.db.Close()
}

func (a *sqlAdapter) Exec(ctx context.Context, stmt string, args ...any) error {
	if _, err := a.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("%w: %v", ErrExecution, err)
	}
	return nil
}

func (a *sqlAdapter) EnsureLedger(ctx context.Context, table string) error {
	if _, err := a.db.ExecContext(ctx, a.dialect.createLedgerSQL(table)); err != nil {
		return fmt.Errorf("%w: ensure ledger table %s: %v", ErrExecution, table, err)
	}
	return nil
}

func (a *sqlAdapter) Entries(ctx context.Context, table string) ([]Entry, error) {
	// Ordering by the autoincrement id breaks ties between entries whose
	// executed_at timestamps collide at the store's clock resolution.
	query := fmt.Sprintf(
		"SELECT name, executed_at FROM %s ORDER BY executed_at ASC, id ASC", table,
	)
	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list ledger %s: %v", ErrExecution, table, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.ExecutedAt); err != nil {
			return nil, fmt.Errorf("%w: scan ledger row: %v", ErrExecution, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list ledger %s: %v", ErrExecution, table, err)
	}
	return entries, nil
}

func (a *sqlAdapter) Record(ctx context.Context, table, id string) error {
	stmt := fmt.Sprintf(
		"INSERT INTO %s (name) VALUES (%s)", table, a.dialect.placeholder(1),
	)
	if _, err := a.db.ExecContext(ctx, stmt, id); err != nil {
		if a.dialect.isDuplicate(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateEntry, id)
		}
		return fmt.Errorf("%w: record %s: %v", ErrExecution, id, err)
	}
	return nil
}

func (a *sqlAdapter) Remove(ctx context.Context, table, id string) error {
	stmt := fmt.Sprintf(
		"DELETE FROM %s WHERE name = %s", table, a.dialect.placeholder(1),
	)
	if _, err := a.db.ExecContext(ctx, stmt, id); err != nil {
		return fmt.Errorf("%w: remove %s: %v", ErrExecution, id, err)
	}
	return nil
}

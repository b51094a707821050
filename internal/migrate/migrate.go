// Package migrate implements the migration ledger reconciliation core:
// computing pending units against the recorded ledger and driving their
// application or reversion one unit at a time.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/stratify-db/stratify/internal/adapter"
	"github.com/stratify-db/stratify/internal/source"
)

// ErrInvalidTableName marks a ledger table name that fails validation.
// The table name is interpolated into SQL, not bound as a parameter, so
// it is restricted to plain identifiers.
var ErrInvalidTableName = errors.New("invalid ledger table name")

var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Migrator reconciles the on-disk unit set against the recorded ledger.
// It owns one adapter for the duration of one command invocation and
// applies units strictly sequentially: the ledger entry for one unit is
// recorded before the next unit is even loaded.
type Migrator struct {
	adapter adapter.Adapter
	source  source.Source
	table   string
}

// Status is the result of a status query: identifiers already recorded in
// the ledger, in application order, and identifiers still pending, in
// ascending identifier order.
type Status struct {
	Executed []string `json:"executed"`
	Pending  []string `json:"pending"`
}

// New returns a Migrator over the given adapter and unit source. The
// table name is validated here, before any I/O.
func New(a adapter.Adapter, src source.Source, table string) (*Migrator, error) {
	if !tablePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}
	return &Migrator{adapter: a, source: src, table: table}, nil
}

// Init creates the ledger table if it doesn't exist. Safe to run on every
// invocation.
func (m *Migrator) Init(ctx context.Context) error {
	return m.adapter.EnsureLedger(ctx, m.table)
}

// Up applies all pending units in ascending identifier order, recording
// each in the ledger immediately after its forward operation succeeds.
// It returns the identifiers applied, which is empty (not an error) when
// there is nothing to do.
//
// On the first failure the sequence stops: the failing unit is not
// recorded and no later unit is attempted. If a unit's forward operation
// succeeded but the ledger write failed, the database holds the unit's
// effects without a record of them; the returned error says so explicitly
// because only an operator can resolve that state.
func (m *Migrator) Up(ctx context.Context) ([]string, error) {
	pending, err := m.pending(ctx)
	if err != nil {
		return nil, err
	}

	applied := make([]string, 0, len(pending))
	for _, id := range pending {
		unit, err := m.source.Load(id)
		if err != nil {
			return applied, err
		}
		if err := unit.Up(ctx, m.adapter); err != nil {
			return applied, fmt.Errorf("apply %s: %w", id, err)
		}
		if err := m.adapter.Record(ctx, m.table, id); err != nil {
			return applied, fmt.Errorf(
				"unit %s applied but not recorded, inspect the database manually: %w", id, err,
			)
		}
		applied = append(applied, id)
	}
	return applied, nil
}

// Down reverts the most recently applied unit and removes its ledger
// entry. "Most recently applied" is the ledger's own application order,
// not the highest identifier, so manually back-filled entries roll back
// in the order they actually ran. Returns the reverted identifier, or
// "" when the ledger is empty.
//
// One unit per invocation; repeated invocations walk further back.
func (m *Migrator) Down(ctx context.Context) (string, error) {
	entries, err := m.adapter.Entries(ctx, m.table)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}
	last := entries[len(entries)-1].ID

	// A load failure leaves the ledger untouched: the entry is dangling
	// (recorded but no unit file) and rollback cannot proceed.
	unit, err := m.source.Load(last)
	if err != nil {
		return "", err
	}
	if unit.Down == nil {
		return "", fmt.Errorf("%w: %s", source.ErrMissingDown, last)
	}
	if err := unit.Down(ctx, m.adapter); err != nil {
		return "", fmt.Errorf("revert %s: %w", last, err)
	}
	if err := m.adapter.Remove(ctx, m.table, last); err != nil {
		return "", fmt.Errorf(
			"unit %s reverted but its ledger entry remains, inspect the database manually: %w", last, err,
		)
	}
	return last, nil
}

// StatusOf reports executed and pending identifiers without mutating
// anything.
func (m *Migrator) StatusOf(ctx context.Context) (*Status, error) {
	executed, err := m.executed(ctx)
	if err != nil {
		return nil, err
	}
	available, err := m.source.IDs()
	if err != nil {
		return nil, err
	}
	return &Status{
		Executed: executed,
		Pending:  difference(available, executed),
	}, nil
}

// pending computes available \ executed, preserving available's ascending
// order. Applying in that order regardless of ledger insertion order is
// what keeps near-simultaneous timestamps from running out of creation
// order.
func (m *Migrator) pending(ctx context.Context) ([]string, error) {
	executed, err := m.executed(ctx)
	if err != nil {
		return nil, err
	}
	available, err := m.source.IDs()
	if err != nil {
		return nil, err
	}
	return difference(available, executed), nil
}

func (m *Migrator) executed(ctx context.Context) ([]string, error) {
	entries, err := m.adapter.Entries(ctx, m.table)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

// difference returns the elements of available not in executed, in
// available's order.
func difference(available, executed []string) []string {
	seen := make(map[string]bool, len(executed))
	for _, id := range executed {
		seen[id] = true
	}
	out := make([]string, 0, len(available))
	for _, id := range available {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}

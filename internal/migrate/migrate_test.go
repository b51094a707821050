package migrate

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stratify-db/stratify/internal/adapter"
	"github.com/stratify-db/stratify/internal/source"
)

// fakeAdapter is an in-memory Adapter for failure injection. The real
// dialects are covered in internal/adapter; the reconciler only needs the
// contract.
type fakeAdapter struct {
	entries    []adapter.Entry
	execs      []string
	failRecord bool
	failRemove bool
}

func (f *fakeAdapter) Ping(context.Context) error { return nil }
func (f *fakeAdapter) Close() error               { return nil }

func (f *fakeAdapter) Exec(_ context.Context, stmt string, _ ...any) error {
	f.execs = append(f.execs, stmt)
	return nil
}

func (f *fakeAdapter) EnsureLedger(context.Context, string) error { return nil }

func (f *fakeAdapter) Entries(context.Context, string) ([]adapter.Entry, error) {
	out := make([]adapter.Entry, len(f.entries))
	copy(out, f.entries)
	return out, nil
}

func (f *fakeAdapter) Record(_ context.Context, _ string, id string) error {
	if f.failRecord {
		return fmt.Errorf("%w: record %s: disk full", adapter.ErrExecution, id)
	}
	for _, e := range f.entries {
		if e.ID == id {
			return fmt.Errorf("%w: %s", adapter.ErrDuplicateEntry, id)
		}
	}
	f.entries = append(f.entries, adapter.Entry{ID: id, ExecutedAt: time.Now()})
	return nil
}

func (f *fakeAdapter) Remove(_ context.Context, _ string, id string) error {
	if f.failRemove {
		return fmt.Errorf("%w: remove %s: disk full", adapter.ErrExecution, id)
	}
	for i, e := range f.entries {
		if e.ID == id {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeAdapter) ids() []string {
	out := make([]string, 0, len(f.entries))
	for _, e := range f.entries {
		out = append(out, e.ID)
	}
	return out
}

// noopUnit registers id with side-effect-free operations.
func noopUnit(r *source.Registry, id string) {
	r.Register(id,
		func(context.Context, adapter.Execer) error { return nil },
		func(context.Context, adapter.Execer) error { return nil },
	)
}

func TestNewValidatesTableName(t *testing.T) {
	tests := []struct {
		table string
		ok    bool
	}{
		{"valid_name", true},
		{"_leading_underscore", true},
		{"Migrations2", true},
		{"bad-name", false},
		{"1starts_with_digit", false},
		{"drop table; --", false},
		{"", false},
	}
	for _, tt := range tests {
		_, err := New(&fakeAdapter{}, source.NewRegistry(), tt.table)
		if tt.ok && err != nil {
			t.Errorf("New(%q) unexpected error: %v", tt.table, err)
		}
		if !tt.ok {
			if err == nil {
				t.Errorf("New(%q) expected error, got nil", tt.table)
			} else if !errors.Is(err, ErrInvalidTableName) {
				t.Errorf("New(%q) error = %v, want ErrInvalidTableName", tt.table, err)
			}
		}
	}
}

func TestUpFreshProject(t *testing.T) {
	ctx := context.Background()
	reg := source.NewRegistry()
	noopUnit(reg, "20250101000000_a")
	noopUnit(reg, "20250102000000_b")
	fake := &fakeAdapter{}

	m, err := New(fake, reg, "migrations")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	st, err := m.StatusOf(ctx)
	if err != nil {
		t.Fatalf("StatusOf: %v", err)
	}
	if len(st.Executed) != 0 {
		t.Errorf("executed = %v, want empty", st.Executed)
	}
	want := []string{"20250101000000_a", "20250102000000_b"}
	if !reflect.DeepEqual(st.Pending, want) {
		t.Errorf("pending = %v, want %v", st.Pending, want)
	}

	applied, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if !reflect.DeepEqual(applied, want) {
		t.Errorf("applied = %v, want %v", applied, want)
	}
	if !reflect.DeepEqual(fake.ids(), want) {
		t.Errorf("ledger = %v, want %v", fake.ids(), want)
	}

	st, err = m.StatusOf(ctx)
	if err != nil {
		t.Fatalf("StatusOf after up: %v", err)
	}
	if !reflect.DeepEqual(st.Executed, want) || len(st.Pending) != 0 {
		t.Errorf("status after up = %+v, want all executed", st)
	}
}

func TestUpPartialHistory(t *testing.T) {
	ctx := context.Background()
	reg := source.NewRegistry()
	noopUnit(reg, "20250101000000_a")
	noopUnit(reg, "20250102000000_b")
	noopUnit(reg, "20250103000000_c")
	fake := &fakeAdapter{entries: []adapter.Entry{{ID: "20250101000000_a"}}}

	m, err := New(fake, reg, "migrations")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	applied, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	want := []string{"20250102000000_b", "20250103000000_c"}
	if !reflect.DeepEqual(applied, want) {
		t.Errorf("applied = %v, want %v", applied, want)
	}
}

// An executed entry recorded out of identifier order must not disturb the
// ascending application order of what remains pending.
func TestUpOrderingIgnoresLedgerInsertionOrder(t *testing.T) {
	ctx := context.Background()
	reg := source.NewRegistry()
	var ran []string
	for _, id := range []string{"20250101000000_a", "20250102000000_b", "20250103000000_c", "20250104000000_d"} {
		id := id
		reg.Register(id,
			func(context.Context, adapter.Execer) error { ran = append(ran, id); return nil },
			nil,
		)
	}
	// c was applied before a (manual backfill); both are excluded from
	// pending, and b still runs before d.
	fake := &fakeAdapter{entries: []adapter.Entry{
		{ID: "20250103000000_c"},
		{ID: "20250101000000_a"},
	}}

	m, err := New(fake, reg, "migrations")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.Up(ctx); err != nil {
		t.Fatalf("Up: %v", err)
	}
	want := []string{"20250102000000_b", "20250104000000_d"}
	if !reflect.DeepEqual(ran, want) {
		t.Errorf("ran = %v, want %v", ran, want)
	}
}

func TestUpIdempotent(t *testing.T) {
	ctx := context.Background()
	reg := source.NewRegistry()
	noopUnit(reg, "20250101000000_a")
	fake := &fakeAdapter{}

	m, err := New(fake, reg, "migrations")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.Up(ctx); err != nil {
		t.Fatalf("first Up: %v", err)
	}
	applied, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("second Up: %v", err)
	}
	if len(applied) != 0 {
		t.Errorf("second Up applied %v, want none", applied)
	}
}

func TestUpStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	reg := source.NewRegistry()
	noopUnit(reg, "20250101000000_a")
	boom := errors.New("syntax error near FROM")
	reg.Register("20250102000000_b",
		func(context.Context, adapter.Execer) error { return boom },
		nil,
	)
	noopUnit(reg, "20250103000000_c")
	fake := &fakeAdapter{}

	m, err := New(fake, reg, "migrations")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	applied, err := m.Up(ctx)
	if err == nil {
		t.Fatal("Up: expected error, got nil")
	}
	if !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
	if want := "20250102000000_b"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q does not name failing unit %s", err, want)
	}
	if !reflect.DeepEqual(applied, []string{"20250101000000_a"}) {
		t.Errorf("applied = %v, want only a", applied)
	}
	if !reflect.DeepEqual(fake.ids(), []string{"20250101000000_a"}) {
		t.Errorf("ledger = %v, want only a", fake.ids())
	}
}

func TestUpSurfacesUnrecordedApply(t *testing.T) {
	ctx := context.Background()
	reg := source.NewRegistry()
	noopUnit(reg, "20250101000000_a")
	fake := &fakeAdapter{failRecord: true}

	m, err := New(fake, reg, "migrations")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = m.Up(ctx)
	if err == nil {
		t.Fatal("Up: expected error, got nil")
	}
	// The unit's effects are in the database with no record of them; the
	// error has to say so.
	if !strings.Contains(err.Error(), "applied but not recorded") {
		t.Errorf("error %q does not surface the inconsistent state", err)
	}
	if len(fake.ids()) != 0 {
		t.Errorf("ledger = %v, want empty", fake.ids())
	}
}

func TestDownRevertsMostRecentlyApplied(t *testing.T) {
	ctx := context.Background()
	reg := source.NewRegistry()
	noopUnit(reg, "20250101000000_a")
	noopUnit(reg, "20250102000000_b")
	noopUnit(reg, "20250103000000_c")
	fake := &fakeAdapter{entries: []adapter.Entry{
		{ID: "20250101000000_a"},
		{ID: "20250102000000_b"},
		{ID: "20250103000000_c"},
	}}

	m, err := New(fake, reg, "migrations")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, err := m.Down(ctx)
	if err != nil {
		t.Fatalf("Down: %v", err)
	}
	if id != "20250103000000_c" {
		t.Errorf("reverted %s, want c", id)
	}
	want := []string{"20250101000000_a", "20250102000000_b"}
	if !reflect.DeepEqual(fake.ids(), want) {
		t.Errorf("ledger = %v, want %v", fake.ids(), want)
	}
}

// Most recently applied is ledger order, not identifier order.
func TestDownFollowsLedgerOrder(t *testing.T) {
	ctx := context.Background()
	reg := source.NewRegistry()
	noopUnit(reg, "20250101000000_a")
	noopUnit(reg, "20250102000000_b")
	fake := &fakeAdapter{entries: []adapter.Entry{
		{ID: "20250102000000_b"},
		{ID: "20250101000000_a"}, // backfilled after b
	}}

	m, err := New(fake, reg, "migrations")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, err := m.Down(ctx)
	if err != nil {
		t.Fatalf("Down: %v", err)
	}
	if id != "20250101000000_a" {
		t.Errorf("reverted %s, want a (last applied)", id)
	}
}

func TestDownEmptyLedger(t *testing.T) {
	m, err := New(&fakeAdapter{}, source.NewRegistry(), "migrations")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	id, err := m.Down(context.Background())
	if err != nil {
		t.Fatalf("Down: %v", err)
	}
	if id != "" {
		t.Errorf("reverted %q, want none", id)
	}
}

func TestDownDanglingEntry(t *testing.T) {
	fake := &fakeAdapter{entries: []adapter.Entry{{ID: "20250101000000_gone"}}}
	m, err := New(fake, source.NewRegistry(), "migrations")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = m.Down(context.Background())
	if !errors.Is(err, source.ErrUnitNotFound) {
		t.Fatalf("Down error = %v, want ErrUnitNotFound", err)
	}
	// The ledger must be left untouched.
	if len(fake.ids()) != 1 {
		t.Errorf("ledger = %v, want unchanged", fake.ids())
	}
}

func TestDownMissingDownOp(t *testing.T) {
	reg := source.NewRegistry()
	reg.Register("20250101000000_a",
		func(context.Context, adapter.Execer) error { return nil },
		nil,
	)
	fake := &fakeAdapter{entries: []adapter.Entry{{ID: "20250101000000_a"}}}
	m, err := New(fake, reg, "migrations")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = m.Down(context.Background())
	if !errors.Is(err, source.ErrMissingDown) {
		t.Fatalf("Down error = %v, want ErrMissingDown", err)
	}
	if len(fake.ids()) != 1 {
		t.Errorf("ledger = %v, want unchanged", fake.ids())
	}
}

func TestDownFailedRevertKeepsEntry(t *testing.T) {
	reg := source.NewRegistry()
	boom := errors.New("table does not exist")
	reg.Register("20250101000000_a",
		func(context.Context, adapter.Execer) error { return nil },
		func(context.Context, adapter.Execer) error { return boom },
	)
	fake := &fakeAdapter{entries: []adapter.Entry{{ID: "20250101000000_a"}}}
	m, err := New(fake, reg, "migrations")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = m.Down(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Down error = %v, want wrapped %v", err, boom)
	}
	if len(fake.ids()) != 1 {
		t.Errorf("ledger = %v, want entry kept", fake.ids())
	}
}

func TestDifference(t *testing.T) {
	tests := []struct {
		name      string
		available []string
		executed  []string
		want      []string
	}{
		{"both empty", nil, nil, []string{}},
		{"nothing executed", []string{"a", "b"}, nil, []string{"a", "b"}},
		{"all executed", []string{"a", "b"}, []string{"a", "b"}, []string{}},
		{"prefix executed", []string{"a", "b", "c"}, []string{"a"}, []string{"b", "c"}},
		{"gap in executed", []string{"a", "b", "c"}, []string{"b"}, []string{"a", "c"}},
		{"executed superset", []string{"b"}, []string{"a", "b", "c"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := difference(tt.available, tt.executed)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("difference(%v, %v) = %v, want %v", tt.available, tt.executed, got, tt.want)
			}
		})
	}
}


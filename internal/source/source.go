// Package source discovers migration units and resolves identifiers to
// their forward and backward operations.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/stratify-db/stratify/internal/adapter"
)

var (
	// ErrUnitNotFound marks an identifier with no loadable unit, typically
	// a ledger entry whose file was deleted.
	ErrUnitNotFound = errors.New("migration unit not found")
	// ErrDuplicateUnit marks the same identifier appearing twice across
	// merged sources.
	ErrDuplicateUnit = errors.New("duplicate migration unit")
	// ErrMissingDown marks a rollback attempt on a unit without a backward
	// operation.
	ErrMissingDown = errors.New("unit has no down operation")
)

// idPattern is the unit identifier format: a 14-digit timestamp prefix so
// string order equals creation order, then an underscore-separated name.
var idPattern = regexp.MustCompile(`^\d{14}_[A-Za-z0-9_]+$`)

// Op is one direction of a unit: it may issue any number of statements
// through the adapter and fails by returning the first error encountered.
type Op func(ctx context.Context, db adapter.Execer) error

// Unit is one discovered migration unit.
type Unit struct {
	ID   string
	Up   Op
	Down Op
}

// Source produces the ordered identifiers of available units and resolves
// an identifier to its operations.
type Source interface {
	// IDs returns all available unit identifiers in ascending string order.
	IDs() ([]string, error)
	// Load resolves id to its unit. Returns ErrUnitNotFound if no unit
	// exists for id.
	Load(id string) (*Unit, error)
}

// ValidID reports whether id is a well-formed unit identifier.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// DirSource reads SQL unit files from a directory. Files are named
// {14-digit-timestamp}_{name}.sql and contain -- +up and -- +down
// sections.
type DirSource struct {
	dir string
}

// NewDirSource returns a source over dir. The directory must exist.
func NewDirSource(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("migrations directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("migrations directory %s: not a directory", dir)
	}
	return &DirSource{dir: dir}, nil
}

// IDs lists the identifiers of all well-formed .sql files, ascending.
// Files that don't match the identifier format are skipped, not errors:
// editors and VCS tooling drop strays in migration directories.
func (s *DirSource) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", s.dir, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := strings.CutSuffix(e.Name(), ".sql")
		if !ok || !ValidID(id) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Load parses the unit file for id into its up and down operations.
func (s *DirSource) Load(id string) (*Unit, error) {
	path := filepath.Join(s.dir, id+".sql")
	data, err := os.ReadFile(path) // #nosec G304 - path built from validated id
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("read unit %s: %w", id, err)
	}
	up, down, err := parseUnit(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse unit %s: %w", id, err)
	}
	return &Unit{
		ID:   id,
		Up:   execStatements(up),
		Down: execStatements(down),
	}, nil
}

// execStatements returns an Op running stmts sequentially, or nil when the
// section is empty (no down section means the unit is irreversible).
func execStatements(stmts []string) Op {
	if len(stmts) == 0 {
		return nil
	}
	return func(ctx context.Context, db adapter.Execer) error {
		for _, stmt := range stmts {
			if err := db.Exec(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}
}

// Registry is a compiled-in source: units registered as Go functions at
// build time, for changes that can't be expressed as plain SQL.
type Registry struct {
	units map[string]*Unit
	ids   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{units: make(map[string]*Unit)}
}

// Register adds a unit. The identifier must be well-formed and unused;
// registration happens at program start, so violations panic rather than
// return.
func (r *Registry) Register(id string, up, down Op) {
	if !ValidID(id) {
		panic(fmt.Sprintf("source: invalid unit identifier %q", id))
	}
	if _, ok := r.units[id]; ok {
		panic(fmt.Sprintf("source: unit %q registered twice", id))
	}
	if up == nil {
		panic(fmt.Sprintf("source: unit %q has no up operation", id))
	}
	r.units[id] = &Unit{ID: id, Up: up, Down: down}
	r.ids = append(r.ids, id)
}

// IDs returns registered identifiers in ascending order.
func (r *Registry) IDs() ([]string, error) {
	ids := make([]string, len(r.ids))
	copy(ids, r.ids)
	sort.Strings(ids)
	return ids, nil
}

// Load resolves a registered unit.
func (r *Registry) Load(id string) (*Unit, error) {
	u, ok := r.units[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
	}
	return u, nil
}

// Multi merges several sources into one ordered listing. The same
// identifier appearing in two sources is an error, not a shadowing rule.
type Multi []Source

func (m Multi) IDs() ([]string, error) {
	seen := make(map[string]bool)
	var ids []string
	for _, src := range m {
		sub, err := src.IDs()
		if err != nil {
			return nil, err
		}
		for _, id := range sub {
			if seen[id] {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateUnit, id)
			}
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m Multi) Load(id string) (*Unit, error) {
	for _, src := range m {
		u, err := src.Load(id)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, ErrUnitNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnitNotFound, id)
}

// Package scaffold creates new migration unit files.
package scaffold

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// ErrInvalidName marks a unit name that fails validation.
var ErrInvalidName = errors.New("invalid migration name")

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

const template = `-- +up

-- +down

`

// timestamp format yields 14 digits, so string order equals creation order.
const timestampLayout = "20060102150405"

// now is swapped in tests to pin the generated identifier.
var now = time.Now

// Create writes an empty unit file {timestamp}_{name}.sql into dir,
// creating dir if needed, and returns the new unit's identifier.
func Create(dir, name string) (string, error) {
	if !namePattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q (allowed: letters, digits, underscore)", ErrInvalidName, name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migrations directory: %w", err)
	}
	id := now().UTC().Format(timestampLayout) + "_" + name
	path := filepath.Join(dir, id+".sql")
	// O_EXCL so two creates within the same second don't clobber each other.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644) // #nosec G304
	if err != nil {
		return "", fmt.Errorf("create unit file: %w", err)
	}
	if _, err := f.WriteString(template); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write unit file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("write unit file: %w", err)
	}
	return id, nil
}

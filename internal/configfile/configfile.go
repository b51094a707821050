// Package configfile scaffolds a starter stratify.yaml.
package configfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/stratify-db/stratify/internal/config"
)

const starter = `# stratify configuration
database:
  type: %s        # postgres, mysql or sqlite
  host: localhost
  port: %d
  user: ""
  password: ""    # prefer STRATIFY_DATABASE_PASSWORD over storing it here
  database: ""    # database name, or the file path for sqlite

migrationsDir: %s
tableName: %s
`

// Exists reports whether a config file is already present in dir.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, config.FileName))
	return err == nil
}

// Write creates a commented starter config in dir. Fails if one already
// exists; init never overwrites configuration.
func Write(dir, dbType, migrationsDir, tableName string) (string, error) {
	path := filepath.Join(dir, config.FileName)
	port := 5432
	if dbType == "mysql" {
		port = 3306
	}
	content := fmt.Sprintf(starter, dbType, port, migrationsDir, tableName)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600) // #nosec G304
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", config.FileName, err)
	}
	if _, err := f.WriteString(content); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("writing %s: %w", config.FileName, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing %s: %w", config.FileName, err)
	}
	return path, nil
}

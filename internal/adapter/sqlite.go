package adapter

import (
	"fmt"
	"strings"

	// Registers the "sqlite" database/sql driver.
	_ "modernc.org/sqlite"
)

type sqliteDialect struct{}

func (sqliteDialect) driverName() string { return "sqlite" }

func (sqliteDialect) dsn(cfg ConnConfig) string {
	return sqliteDSN(cfg.Database)
}

func (sqliteDialect) placeholder(int) string {
	return "?"
}

func (sqliteDialect) createLedgerSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL,
	executed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, table)
}

func (sqliteDialect) isDuplicate(err error) bool {
	// modernc.org/sqlite wraps SQLITE_CONSTRAINT_UNIQUE in the error text.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// sqliteDSN normalizes a file path or :memory: into a connection string
// with consistent pragmas. busy_timeout keeps a second invocation waiting
// on locks instead of failing immediately; _time_format makes DATETIME
// columns scan into time.Time.
func sqliteDSN(path string) string {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:?cache=shared"
	}
	params := "_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(10000)&_time_format=sqlite"
	if strings.Contains(dsn, "?") {
		return dsn + "&" + params
	}
	return dsn + "?" + params
}

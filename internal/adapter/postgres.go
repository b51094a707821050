package adapter

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresDialect struct{}

func (postgresDialect) driverName() string { return "pgx" }

func (postgresDialect) dsn(cfg ConnConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:   "/" + cfg.Database,
	}
	return u.String()
}

func (postgresDialect) placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (postgresDialect) createLedgerSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id SERIAL PRIMARY KEY,
	name TEXT UNIQUE NOT NULL,
	executed_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, table)
}

func (postgresDialect) isDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	// 23505 is unique_violation.
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

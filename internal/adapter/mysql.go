package adapter

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	// Registers the "mysql" database/sql driver.
	"github.com/go-sql-driver/mysql"
)

type mysqlDialect struct{}

func (mysqlDialect) driverName() string { return "mysql" }

func (mysqlDialect) dsn(cfg ConnConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	// executed_at scans into time.Time.
	mc.ParseTime = true
	return mc.FormatDSN()
}

func (mysqlDialect) placeholder(int) string {
	return "?"
}

func (mysqlDialect) createLedgerSQL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id INT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(255) UNIQUE NOT NULL,
	executed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, table)
}

func (mysqlDialect) isDuplicate(err error) bool {
	var myErr *mysql.MySQLError
	// 1062 is ER_DUP_ENTRY.
	return errors.As(err, &myErr) && myErr.Number == 1062
}

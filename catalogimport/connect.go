package catalogimport

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"

	"github.com/flowscope/flowscope/dialect"
)

// ConnectConfig is the subset of connection parameters every supported
// engine needs; TLS/socket options beyond this are out of scope for a
// read-only catalog importer.
type ConnectConfig struct {
	Host     string
	Port     int
	DBName   string
	User     string
	Password string
	SSLMode  string // Postgres only; empty means the driver default
}

// Open builds a *sql.DB for the given dialect and connection parameters,
// registering whichever driver that dialect needs. It does not ping the
// connection; callers that want to fail fast should call db.PingContext
// themselves.
//
// Grounded on sqldef's per-engine NewDatabase/*BuildDSN functions
// (database/mysql/database.go's mysqlBuildDSN, database/postgres/
// database.go's postgresBuildDSN, database/mssql/database.go's
// mssqlBuildDSN) — same DSN shapes, minus the options this package's
// read-only, DDL-free scope doesn't need (cleartext-auth opt-in, custom
// TLS certs, Unix sockets).
func Open(d dialect.Dialect, cfg ConnectConfig) (*sql.DB, error) {
	switch d {
	case dialect.MySQL:
		return sql.Open("mysql", mysqlDSN(cfg))
	case dialect.Postgres:
		return sql.Open("postgres", postgresDSN(cfg))
	case dialect.TSQL:
		return sql.Open("sqlserver", mssqlDSN(cfg))
	case dialect.SQLite:
		return sql.Open("sqlite", cfg.DBName)
	default:
		return nil, fmt.Errorf("catalogimport: no driver for dialect %s", d)
	}
}

func mysqlDSN(cfg ConnectConfig) string {
	c := mysqldriver.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.DBName = cfg.DBName
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	return c.FormatDSN()
}

func postgresDSN(cfg ConnectConfig) string {
	host := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	var options []string
	if cfg.SSLMode != "" {
		options = append(options, "sslmode="+cfg.SSLMode)
	}
	return fmt.Sprintf("postgres://%s:%s@%s/%s?%s",
		url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password), host, cfg.DBName, strings.Join(options, "&"))
}

func mssqlDSN(cfg ConnectConfig) string {
	query := url.Values{}
	query.Add("database", cfg.DBName)
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-sql-driver/mysql"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverSQLite3  = "sqlite3"  // mattn/go-sqlite3 (cgo)
	DriverSQLite   = "sqlite"   // modernc.org/sqlite (pure Go)
	DriverPostgres = "postgres" // lib/pq
	DriverMySQL    = "mysql"    // go-sql-driver/mysql
	DriverPgx      = "pgx"      // native pgx, used by PgxStore only
)

// ConnConfig is the connection description handed over by an external config loader.
type ConnConfig struct {
	Driver   string            `json:"driver" yaml:"driver" toml:"driver"`
	Host     string            `json:"host" yaml:"host" toml:"host"`
	Port     int               `json:"port" yaml:"port" toml:"port"`
	User     string            `json:"user" yaml:"user" toml:"user"`
	Password string            `json:"-" yaml:"password" toml:"password"`
	Database string            `json:"database" yaml:"database" toml:"database"`
	Path     string            `json:"path" yaml:"path" toml:"path"`
	Params   map[string]string `json:"params" yaml:"params" toml:"params"`
}

// Validate checks the fields the selected driver needs.
func (c ConnConfig) Validate() error {
	sqlite := c.Driver == DriverSQLite3 || c.Driver == DriverSQLite
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.Required,
			validation.In(DriverSQLite3, DriverSQLite, DriverPostgres, DriverMySQL, DriverPgx)),
		validation.Field(&c.Path, validation.When(sqlite, validation.Required)),
		validation.Field(&c.Host, validation.When(!sqlite, validation.Required)),
		validation.Field(&c.Database, validation.When(!sqlite, validation.Required)),
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
	)
}

// DSN renders the driver specific connection string.
func (c ConnConfig) DSN() string {
	switch c.Driver {
	case DriverSQLite3, DriverSQLite:
		dsn := "file:" + c.Path
		if q := c.query(); q != "" {
			dsn += "?" + q
		}
		return dsn
	case DriverMySQL:
		cfg := mysql.NewConfig()
		cfg.User = c.User
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.portOr(3306)))
		cfg.DBName = c.Database
		cfg.ParseTime = true
		if len(c.Params) > 0 {
			cfg.Params = make(map[string]string, len(c.Params))
			for k, v := range c.Params {
				cfg.Params[k] = v
			}
		}
		return cfg.FormatDSN()
	default:
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.portOr(5432))),
			Path:   "/" + c.Database,
		}
		if c.User != "" {
			u.User = url.UserPassword(c.User, c.Password)
		}
		params := c.Params
		if _, ok := params["sslmode"]; !ok {
			params = withDefault(params, "sslmode", "disable")
		}
		u.RawQuery = encode(params)
		return u.String()
	}
}

// String renders the DSN with the password masked.
func (c ConnConfig) String() string {
	masked := c
	if masked.Password != "" {
		masked.Password = "xxxxx"
	}
	return masked.DSN()
}

// SQLDriverName maps the configured driver to its database/sql registration name.
func (c ConnConfig) SQLDriverName() string {
	return c.Driver
}

// Dialect returns the bun dialect matching the driver.
func (c ConnConfig) Dialect() (schema.Dialect, error) {
	switch c.Driver {
	case DriverSQLite3, DriverSQLite:
		return sqlitedialect.New(), nil
	case DriverPostgres:
		return pgdialect.New(), nil
	case DriverMySQL:
		return mysqldialect.New(), nil
	}
	return nil, goerrors.New(fmt.Sprintf("driver %q has no bun dialect", c.Driver), goerrors.CategoryBadInput).
		WithTextCode(TextCodeInvalidQuery)
}

func (c ConnConfig) portOr(def int) int {
	if c.Port > 0 {
		return c.Port
	}
	return def
}

func (c ConnConfig) query() string {
	return encode(c.Params)
}

func withDefault(params map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out[key] = value
	return out
}

func encode(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(params[k]))
	}
	return strings.Join(parts, "&")
}

// Opener acquires a fresh *sql.DB for a single fetch.
type Opener func(ctx context.Context) (*sql.DB, error)

// DefaultOpener opens cfg with database/sql and verifies the connection with a ping.
// Failures are reported as StoreUnavailable.
func DefaultOpener(cfg ConnConfig) Opener {
	return func(ctx context.Context) (*sql.DB, error) {
		db, err := sql.Open(cfg.SQLDriverName(), cfg.DSN())
		if err != nil {
			return nil, Unavailable(err, "open "+cfg.Driver+" connection")
		}
		db.SetMaxOpenConns(1)
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, Timeout(err, 0)
			}
			return nil, Unavailable(err, "ping "+cfg.Driver+" connection")
		}
		return db, nil
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-pager/internal/logging"
	"github.com/jackc/pgx/v5"
)

// PgxConn is the subset of *pgx.Conn a PgxStore needs.
type PgxConn interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close(ctx context.Context) error
}

// Dialer opens a connection for a single fetch.
type Dialer func(ctx context.Context) (PgxConn, error)

// PgxDialer connects to connString with pgx.Connect.
func PgxDialer(connString string) Dialer {
	return func(ctx context.Context) (PgxConn, error) {
		conn, err := pgx.Connect(ctx, connString)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// PgxConfig describes the table a PgxStore reads from.
type PgxConfig struct {
	// Source names the database in cache keys, see PgxSource. Stores without
	// one never share cached pages.
	Source     string
	Table      string
	PrimaryKey string
	Columns    []string
	Filters    []Filter
	Timeout    time.Duration
}

// PgxSource renders connString without its password, or "" when pgx cannot
// parse it.
func PgxSource(connString string) string {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)
}

// PgxStore reads pages from PostgreSQL with the native pgx driver.
type PgxStore struct {
	id     uint64
	cfg    PgxConfig
	dial   Dialer
	query  string
	logger logging.Logger
}

var (
	_ Store[Record] = (*PgxStore)(nil)
	_ Identifier    = (*PgxStore)(nil)
)

// NewPgxStore builds a store that dials a fresh connection per FetchPage.
func NewPgxStore(cfg PgxConfig, dial Dialer, logger logging.Logger) (*PgxStore, error) {
	if cfg.PrimaryKey == "" {
		cfg.PrimaryKey = DefaultPrimaryKey
	}
	sqlCfg := SQLConfig{
		Table:      cfg.Table,
		PrimaryKey: cfg.PrimaryKey,
		Columns:    cfg.Columns,
		Filters:    cfg.Filters,
		Timeout:    cfg.Timeout,
	}
	if err := sqlCfg.Validate(); err != nil {
		return nil, InvalidQuery(goerrors.FromOzzoValidation(err, "invalid pgx store config"), "invalid pgx store config")
	}
	if dial == nil {
		return nil, InvalidQuery(nil, "pgx store requires a dialer")
	}

	s := &PgxStore{
		id:     instanceID(),
		cfg:    cfg,
		dial:   dial,
		logger: logging.OrNop(logger).With("store", cfg.Table),
	}
	s.query = s.buildQuery()
	return s, nil
}

// Name returns the table name.
func (s *PgxStore) Name() string { return s.cfg.Table }

// Identity describes the rows this store reads. Without a Source the store
// instance stands in for the database.
func (s *PgxStore) Identity() map[string]any {
	id := map[string]any{
		"query":   s.query,
		"filters": Params(s.cfg.Filters),
	}
	if s.cfg.Source != "" {
		id["source"] = s.cfg.Source
	} else {
		id["instance"] = s.id
	}
	return id
}

// Query returns the SQL statement issued for every page.
func (s *PgxStore) Query() string { return s.query }

// FetchPage runs the page query on a dedicated connection and closes it afterwards.
func (s *PgxStore) FetchPage(ctx context.Context, pageSize, offset int) (Page[Record], error) {
	if err := ValidateWindow(pageSize, offset); err != nil {
		return Page[Record]{}, err
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	conn, err := s.dial(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Page[Record]{}, Timeout(err, s.cfg.Timeout)
		}
		return Page[Record]{}, Unavailable(err, "dial postgres")
	}
	defer func() {
		// the fetch context may already be done, closing must still happen
		if cerr := conn.Close(context.WithoutCancel(ctx)); cerr != nil {
			s.logger.Warn("closing connection failed", "error", cerr)
		}
	}()

	args := make([]any, 0, len(s.cfg.Filters)+2)
	for _, f := range s.cfg.Filters {
		args = append(args, f.Value)
	}
	args = append(args, pageSize, offset)

	s.logger.Debug("executing query", "query", s.query, "page_size", pageSize, "offset", offset)
	rows, err := conn.Query(ctx, s.query, args...)
	if err != nil {
		return Page[Record]{}, classify(ctx, err, s.cfg.Timeout)
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return Page[Record]{}, classify(ctx, err, s.cfg.Timeout)
	}

	records := make([]Record, 0, len(maps))
	for _, m := range maps {
		records = append(records, Record(m))
	}
	return Page[Record]{Records: records, Offset: offset, Size: pageSize}, nil
}

func (s *PgxStore) buildQuery() string {
	cols := "*"
	if len(s.cfg.Columns) > 0 {
		quoted := make([]string, len(s.cfg.Columns))
		for i, c := range s.cfg.Columns {
			quoted[i] = pgx.Identifier(strings.Split(c, ".")).Sanitize()
		}
		cols = strings.Join(quoted, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", cols, pgx.Identifier(strings.Split(s.cfg.Table, ".")).Sanitize())

	n := 1
	for i, f := range s.cfg.Filters {
		if i == 0 {
			b.WriteString(" WHERE ")
		} else {
			b.WriteString(" AND ")
		}
		fmt.Fprintf(&b, "%s %s $%d", pgx.Identifier(strings.Split(f.Column, ".")).Sanitize(), f.Op, n)
		n++
	}

	fmt.Fprintf(&b, " ORDER BY %s ASC LIMIT $%d OFFSET $%d",
		pgx.Identifier{s.cfg.PrimaryKey}.Sanitize(), n, n+1)
	return b.String()
}

package store

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-pager/internal/logging"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// DefaultPrimaryKey is the ordering column used when SQLConfig.PrimaryKey is empty.
const DefaultPrimaryKey = "id"

// SQLConfig describes the table a SQLStore reads from.
type SQLConfig struct {
	Conn       ConnConfig    `yaml:"conn" toml:"conn"`
	Table      string        `yaml:"table" toml:"table"`
	PrimaryKey string        `yaml:"primary_key" toml:"primary_key"`
	Columns    []string      `yaml:"columns" toml:"columns"`
	Filters    []Filter      `yaml:"filters" toml:"filters"`
	Timeout    time.Duration `yaml:"-" toml:"-"`
}

// Validate checks identifiers, filters and the timeout.
func (c SQLConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Table, validation.Required, validation.By(identifierRule)),
		validation.Field(&c.PrimaryKey, validation.By(func(value any) error {
			if pk, _ := value.(string); pk == "" {
				return nil
			}
			return identifierRule(value)
		})),
		validation.Field(&c.Columns, validation.Each(validation.By(identifierRule))),
		validation.Field(&c.Filters),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// SQLStore reads pages from a relational table through bun.
// Each FetchPage opens its own connection and closes it before returning.
type SQLStore struct {
	cfg     SQLConfig
	dialect schema.Dialect
	open    Opener
	logger  logging.Logger
}

var (
	_ Store[Record] = (*SQLStore)(nil)
	_ Identifier    = (*SQLStore)(nil)
)

// SQLOption customises a SQLStore.
type SQLOption func(*SQLStore)

// WithOpener replaces the connection opener, mostly useful in tests.
func WithOpener(open Opener) SQLOption {
	return func(s *SQLStore) {
		if open != nil {
			s.open = open
		}
	}
}

// WithLogger sets the logger used by the store and its query hook.
func WithLogger(logger logging.Logger) SQLOption {
	return func(s *SQLStore) {
		s.logger = logging.OrNop(logger)
	}
}

// NewSQLStore validates cfg and builds a store. Configuration problems are InvalidQuery errors.
func NewSQLStore(cfg SQLConfig, opts ...SQLOption) (*SQLStore, error) {
	if cfg.PrimaryKey == "" {
		cfg.PrimaryKey = DefaultPrimaryKey
	}
	if err := cfg.Validate(); err != nil {
		return nil, InvalidQuery(goerrors.FromOzzoValidation(err, "invalid sql store config"), "invalid sql store config")
	}

	dialect, err := cfg.Conn.Dialect()
	if err != nil {
		return nil, err
	}

	s := &SQLStore{
		cfg:     cfg,
		dialect: dialect,
		open:    DefaultOpener(cfg.Conn),
		logger:  logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("store", s.Name())
	return s, nil
}

// Name returns the table name.
func (s *SQLStore) Name() string {
	return s.cfg.Table
}

// Identity describes the rows this store reads: the masked connection,
// the primary key, the selected columns and the filters.
func (s *SQLStore) Identity() map[string]any {
	return map[string]any{
		"conn":        s.cfg.Conn.String(),
		"primary_key": s.cfg.PrimaryKey,
		"columns":     s.cfg.Columns,
		"filters":     Params(s.cfg.Filters),
	}
}

// Config returns the store configuration.
func (s *SQLStore) Config() SQLConfig {
	return s.cfg
}

// FetchPage selects at most pageSize rows starting at offset, ordered by primary key.
func (s *SQLStore) FetchPage(ctx context.Context, pageSize, offset int) (Page[Record], error) {
	if err := ValidateWindow(pageSize, offset); err != nil {
		return Page[Record]{}, err
	}

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	sqldb, err := s.open(ctx)
	if err != nil {
		return Page[Record]{}, classify(ctx, err, s.cfg.Timeout)
	}

	db := bun.NewDB(sqldb, s.dialect)
	defer db.Close()
	db.AddQueryHook(newQueryLogHook(s.logger))

	var rows []map[string]interface{}
	if err := s.selectQuery(db, pageSize, offset).Scan(ctx, &rows); err != nil {
		return Page[Record]{}, classify(ctx, err, s.cfg.Timeout)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, Record(row))
	}

	return Page[Record]{Records: records, Offset: offset, Size: pageSize}, nil
}

func (s *SQLStore) selectQuery(db *bun.DB, pageSize, offset int) *bun.SelectQuery {
	q := db.NewSelect().Table(s.cfg.Table)
	if len(s.cfg.Columns) > 0 {
		q = q.Column(s.cfg.Columns...)
	}
	for _, f := range s.cfg.Filters {
		q = q.Where("? "+string(f.Op)+" ?", bun.Ident(f.Column), f.Value)
	}
	return q.OrderExpr("? ASC", bun.Ident(s.cfg.PrimaryKey)).
		Limit(pageSize).
		Offset(offset)
}

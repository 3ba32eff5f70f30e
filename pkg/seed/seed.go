// Package seed creates the user_data table and loads users from CSV inside a
// single transaction. It is what examples and integration tests use to give a
// paginator something to read.
package seed

import (
	"context"
	"database/sql"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-pager/internal/logging"
	"github.com/goliatone/go-repository-pager/store"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// DefaultBatchSize keeps a batch well under SQLite's bound parameter limit.
const DefaultBatchSize = 200

// User is a row of the user_data table.
type User struct {
	bun.BaseModel `bun:"table:user_data,alias:u"`

	UserID string          `bun:"user_id,pk,type:varchar(36)" json:"user_id"`
	Name   string          `bun:"name,notnull,type:varchar(255)" json:"name"`
	Email  string          `bun:"email,notnull,type:varchar(255)" json:"email"`
	Age    decimal.Decimal `bun:"age,notnull,type:decimal" json:"age"`
}

// Seeder writes users through bun.
type Seeder struct {
	db        *bun.DB
	logger    logging.Logger
	batchSize int
}

// Option configures a Seeder.
type Option func(*Seeder)

// WithLogger sets the seeder logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Seeder) {
		s.logger = logging.OrNop(logger)
	}
}

// WithBatchSize sets how many rows go into one INSERT. Values below one are ignored.
func WithBatchSize(n int) Option {
	return func(s *Seeder) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// New returns a Seeder writing to db.
func New(db *bun.DB, opts ...Option) *Seeder {
	s := &Seeder{
		db:        db,
		logger:    logging.NewNopLogger(),
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to cfg with the store opener and wraps the handle in bun.
// The caller closes the returned DB.
func Open(ctx context.Context, cfg store.ConnConfig) (*bun.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, goerrors.FromOzzoValidation(err, "invalid connection config")
	}
	d, err := cfg.Dialect()
	if err != nil {
		return nil, err
	}
	sqldb, err := store.DefaultOpener(cfg)(ctx)
	if err != nil {
		return nil, err
	}
	return bun.NewDB(sqldb, d), nil
}

// CreateTable creates user_data when it does not exist yet.
func (s *Seeder) CreateTable(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*User)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "create user_data table")
	}
	return nil
}

// Insert upserts users in batches inside one transaction. Either every row is
// written or none is.
func (s *Seeder) Insert(ctx context.Context, users []User) error {
	if len(users) == 0 {
		return nil
	}

	err := s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for start := 0; start < len(users); start += s.batchSize {
			end := min(start+s.batchSize, len(users))
			batch := users[start:end]
			if _, err := upsert(tx, &batch).Exec(ctx); err != nil {
				return fmt.Errorf("insert rows %d-%d: %w", start, end-1, err)
			}
		}
		return nil
	})
	if err != nil {
		logging.WithError(s.logger, err).Error("seed rolled back")
		return goerrors.Wrap(err, goerrors.CategoryOperation, "seed user_data")
	}

	s.logger.Info("seeded users", "rows", len(users))
	return nil
}

func upsert(tx bun.Tx, batch *[]User) *bun.InsertQuery {
	q := tx.NewInsert().Model(batch)
	if tx.Dialect().Name() == dialect.MySQL {
		return q.On("DUPLICATE KEY UPDATE").
			Set("name = VALUES(name)").
			Set("email = VALUES(email)").
			Set("age = VALUES(age)")
	}
	return q.On("CONFLICT (user_id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("email = EXCLUDED.email").
		Set("age = EXCLUDED.age")
}

// Count returns the number of rows in user_data.
func (s *Seeder) Count(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*User)(nil)).Count(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryOperation, "count user_data")
	}
	return n, nil
}

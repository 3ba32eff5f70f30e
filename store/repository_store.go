package store

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-pager/internal/logging"
	"github.com/uptrace/bun"
)

// Lister is the part of a go-repository-bun Repository used for paging.
type Lister[T any] interface {
	List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error)
}

// RepositoryStore pages through typed models held by a go-repository-bun repository.
type RepositoryStore[T any] struct {
	id       uint64
	repo     Lister[T]
	name     string
	orderBy  string
	criteria []repository.SelectCriteria
	logger   logging.Logger
}

var (
	_ Store[any] = (*RepositoryStore[any])(nil)
	_ Identifier = (*RepositoryStore[any])(nil)
)

// RepositoryOption customises a RepositoryStore.
type RepositoryOption func(*repositoryOptions)

type repositoryOptions struct {
	name     string
	orderBy  string
	criteria []repository.SelectCriteria
	logger   logging.Logger
}

// WithName overrides the store name. It defaults to the pluralised snake case type name.
func WithName(name string) RepositoryOption {
	return func(o *repositoryOptions) { o.name = name }
}

// WithOrderBy sets the ordering column, DefaultPrimaryKey when unset.
func WithOrderBy(column string) RepositoryOption {
	return func(o *repositoryOptions) { o.orderBy = column }
}

// WithCriteria adds criteria applied to every page query.
func WithCriteria(criteria ...repository.SelectCriteria) RepositoryOption {
	return func(o *repositoryOptions) { o.criteria = append(o.criteria, criteria...) }
}

// WithRepositoryLogger sets the logger.
func WithRepositoryLogger(logger logging.Logger) RepositoryOption {
	return func(o *repositoryOptions) { o.logger = logger }
}

// NewRepositoryStore wraps repo. The ordering column must be a valid identifier.
func NewRepositoryStore[T any](repo Lister[T], opts ...RepositoryOption) (*RepositoryStore[T], error) {
	o := repositoryOptions{
		name:    TableNameOf[T](),
		orderBy: DefaultPrimaryKey,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if repo == nil {
		return nil, InvalidQuery(nil, "repository store requires a repository")
	}
	if !ValidIdentifier(o.orderBy) {
		return nil, InvalidQuery(nil, "invalid order column "+o.orderBy)
	}
	if o.name == "" {
		return nil, InvalidQuery(nil, "repository store requires a name")
	}

	return &RepositoryStore[T]{
		id:       instanceID(),
		repo:     repo,
		name:     o.name,
		orderBy:  o.orderBy,
		criteria: o.criteria,
		logger:   logging.OrNop(o.logger).With("store", o.name),
	}, nil
}

// Name returns the store name.
func (s *RepositoryStore[T]) Name() string { return s.name }

// Identity names the repository and the ordering column. Criteria are
// closures that cannot be compared, so a store carrying any keeps its cached
// pages to itself.
func (s *RepositoryStore[T]) Identity() map[string]any {
	id := map[string]any{
		"repository": addressOf(s.repo),
		"order_by":   s.orderBy,
	}
	if len(s.criteria) > 0 {
		id["instance"] = s.id
	}
	return id
}

// FetchPage lists one window of models ordered by the configured column.
func (s *RepositoryStore[T]) FetchPage(ctx context.Context, pageSize, offset int) (Page[T], error) {
	if err := ValidateWindow(pageSize, offset); err != nil {
		return Page[T]{}, err
	}

	criteria := make([]repository.SelectCriteria, 0, len(s.criteria)+1)
	criteria = append(criteria, s.criteria...)
	criteria = append(criteria, s.window(pageSize, offset))

	records, total, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return Page[T]{}, classify(ctx, err, 0)
	}
	s.logger.Debug("listed page", "page_size", pageSize, "offset", offset, "records", len(records), "total", total)

	if records == nil {
		records = []T{}
	}
	return Page[T]{Records: records, Offset: offset, Size: pageSize}, nil
}

func (s *RepositoryStore[T]) window(pageSize, offset int) repository.SelectCriteria {
	orderBy := s.orderBy
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("? ASC", bun.Ident(orderBy)).Limit(pageSize).Offset(offset)
	}
}

package pager

import (
	"github.com/goliatone/go-repository-pager/cache"
	"github.com/goliatone/go-repository-pager/internal/logging"
	"github.com/goliatone/go-repository-pager/retry"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer name used for paginator spans.
const InstrumentationName = "github.com/goliatone/go-repository-pager/pager"

// Option customises a Paginator.
type Option func(*options)

type options struct {
	retrier  *retry.Retrier
	cache    cache.CacheService
	logger   logging.Logger
	provider trace.TracerProvider
	offset   int
	keys     cache.KeySerializer
}

// WithRetrier routes every store fetch through r.
func WithRetrier(r *retry.Retrier) Option {
	return func(o *options) { o.retrier = r }
}

// WithCache memoizes pages in svc, keyed by store name, page size and offset.
func WithCache(svc cache.CacheService) Option {
	return func(o *options) { o.cache = svc }
}

// WithKeySerializer renders cache keys with ks instead of the default serializer.
func WithKeySerializer(ks cache.KeySerializer) Option {
	return func(o *options) { o.keys = ks }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTracer records a span per NextPage call. A nil provider falls back to
// the global OpenTelemetry provider.
func WithTracer(provider trace.TracerProvider) Option {
	return func(o *options) { o.provider = provider }
}

// WithStartOffset starts the walk at offset instead of 0.
func WithStartOffset(offset int) Option {
	return func(o *options) { o.offset = offset }
}

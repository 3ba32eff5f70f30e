package store

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-pager/internal/logging"
	"github.com/uptrace/bun"
)

// queryLogHook logs every statement bun executes for a store.
type queryLogHook struct {
	logger logging.Logger
}

var _ bun.QueryHook = (*queryLogHook)(nil)

func newQueryLogHook(logger logging.Logger) *queryLogHook {
	return &queryLogHook{logger: logging.OrNop(logger)}
}

func (h *queryLogHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	h.logger.Debug("executing query", "operation", event.Operation(), "query", event.Query)
	return ctx
}

func (h *queryLogHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	if event.Err != nil {
		h.logger.Warn("query failed",
			"operation", event.Operation(),
			"query", event.Query,
			"duration", elapsed,
			"error", event.Err,
		)
		return
	}
	h.logger.Debug("query finished", "operation", event.Operation(), "duration", elapsed)
}

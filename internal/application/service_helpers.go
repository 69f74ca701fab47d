package application

import (
	"context"
	"log/slog"

	"github.com/viralforge/mesh/services/financial-rails/M46-invoice-reconciliation-service/internal/ports"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

func (s *Service) logger() *slog.Logger {
	return slog.Default().With(
		"service", s.cfg.ServiceName,
		"module", "application",
		"layer", "application",
	)
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func normalizePageQuery(q ports.PageQuery) ports.PageQuery {
	q.Limit, q.Offset = normalizePage(q.Limit, q.Offset)
	return q
}

func (s *Service) logOperationFailure(ctx context.Context, operation string, err error, fields ...any) {
	attrs := append([]any{
		"operation", operation,
		"outcome", "failure",
		"error", err,
	}, fields...)
	s.logger().ErrorContext(ctx, "operation failed", attrs...)
}

// Package service implements the compliance use cases: submission intake,
// officer review, detection reconciliation and the read models built on
// resolved reports.
package service

import (
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DukeRupert/bwg/internal/domain"
)

// Pagination defaults for list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// storeError passes domain errors through and wraps anything else as an
// internal error.
func storeError(logger *slog.Logger, err error, op, message string) error {
	if domain.ErrorCode(err) != domain.EINTERNAL {
		return err
	}
	logger.Error(message, "error", err, "op", op)
	return domain.Internal(err, op, message)
}

func zeroIfNil(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

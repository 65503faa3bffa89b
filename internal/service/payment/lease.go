package payment

import (
	"context"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-dispatch/internal/domain/payment"
	"github.com/cmlabs-hris/payroll-dispatch/internal/pkg/cache"
	"github.com/google/uuid"
)

const defaultLeaseTTL = 10 * time.Minute

type cacheLease struct {
	logger *slog.Logger
	cache  cache.Cache
	ttl    time.Duration
}

// NewLease returns a dispatch lease kept in c. The TTL bounds how long a
// crashed holder can block the run.
func NewLease(logger *slog.Logger, c cache.Cache, ttl time.Duration) payment.Lease {
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &cacheLease{logger: logger, cache: c, ttl: ttl}
}

func (l *cacheLease) Acquire(ctx context.Context, runID string) (func(), error) {
	key := "dispatch:lease:" + runID
	owner := uuid.NewString()

	ok, err := l.cache.SetNX(ctx, key, owner, l.ttl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, payment.ErrDispatchInProgress
	}

	release := func() {
		if err := l.cache.CompareAndDelete(context.WithoutCancel(ctx), key, owner); err != nil {
			l.logger.WarnContext(ctx, "failed to release dispatch lease", "run_id", runID, "error", err)
		}
	}
	return release, nil
}

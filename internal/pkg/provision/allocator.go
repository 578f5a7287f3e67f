package provision

import (
	"context"
	"time"

	"github.com/BorisBinyaminov/eSIM/internal/pkg/esimapi"
)

// awaitAllocation polls the provider by order number until at least one
// profile is allocated or the poll budget elapses. Each poll is an
// independent read-only query; a partial profile list is accepted as done
// rather than waiting for the full requested count. The wait is bound to
// ctx, so an abandoned request stops polling immediately.
func (s *Service) awaitAllocation(ctx context.Context, orderNo string) ([]esimapi.ProfileInfo, error) {
	deadline := time.Now().Add(s.cfg.PollBudget)
	stillProcessing := false

	if err := sleepCtx(ctx, s.cfg.WarmUpDelay); err != nil {
		return nil, err
	}

	for {
		profiles, err := s.api.QueryByOrderNo(ctx, orderNo)
		switch {
		case err == nil && len(profiles) > 0:
			return profiles, nil
		case err != nil && esimapi.IsAllocating(err):
			stillProcessing = true
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			// Empty list or a transient fault: the query is idempotent,
			// keep polling until the budget runs out.
		}

		if time.Now().After(deadline) {
			return nil, &AllocationTimeoutError{OrderNo: orderNo, StillProcessing: stillProcessing}
		}
		if err := sleepCtx(ctx, s.cfg.PollInterval); err != nil {
			return nil, err
		}
	}
}

// sleepCtx waits for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

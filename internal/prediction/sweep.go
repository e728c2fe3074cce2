package prediction

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SweepResult reports one auto-resolve pass.
type SweepResult struct {
	Scanned  int
	Resolved int
	Skipped  int
}

// AutoResolveSweep resolves every expired active market using the external
// metric reader. A failed read skips the market; it stays active and is
// retried on the next sweep, so a flaky collaborator never half-resolves
// anything.
func (s *Service) AutoResolveSweep(ctx context.Context, now time.Time, batchSize int) (SweepResult, error) {
	var result SweepResult
	if s.Reader == nil {
		return result, nil
	}

	expired, err := s.Repo.ListExpiredActiveMarkets(ctx, now, batchSize)
	if err != nil {
		return result, err
	}
	result.Scanned = len(expired)

	for _, market := range expired {
		finalValue, err := s.Reader.Read(ctx, market.ContentRef, market.MetricType)
		if err != nil {
			result.Skipped++
			if s.Logger != nil {
				s.Logger.Warn("metric read failed, market skipped",
					zap.String("market", market.ID),
					zap.Error(err),
				)
			}
			continue
		}
		if _, err := s.Resolve(ctx, market.ID, finalValue); err != nil {
			result.Skipped++
			if s.Logger != nil {
				s.Logger.Warn("auto-resolve failed",
					zap.String("market", market.ID),
					zap.Error(err),
				)
			}
			continue
		}
		result.Resolved++
	}
	return result, nil
}

package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"course-receipt-verification/internal/infra/metrics"
	"course-receipt-verification/internal/usecase"
)

// ExpiryWorker periodically flips past-dated enrollments via the use case.
type ExpiryWorker struct {
	interval time.Duration
	enrollUC usecase.EnrollUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, enrollUC usecase.EnrollUseCase, logger *zerolog.Logger) *ExpiryWorker {
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		enrollUC: enrollUC,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.enrollUC.ExpireDue(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry worker error")
			}
			if n > 0 {
				metrics.AddExpired(n)
				w.log.Info().Int("count", n).Msg("enrollments expired")
			}
		}
	}
}

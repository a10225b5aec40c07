package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CleanupPaymentEventsJob drops payment event ledger rows older than the retention window, at most once a day.
func (s *Scheduler) CleanupPaymentEventsJob(ctx context.Context) error {
	retentionDays := s.cfg.WebhookRetentionDays
	if retentionDays <= 0 {
		return nil
	}

	now := s.clock.Now(ctx)
	s.mu.Lock()
	due := s.lastCleanup.IsZero() || now.Sub(s.lastCleanup) >= 24*time.Hour
	s.mu.Unlock()
	if !due {
		return nil
	}

	run := s.startJob("cleanup_payment_events")
	cutoff := now.AddDate(0, 0, -retentionDays)
	s.log.Info("cleaning up payment events", zap.Time("cutoff", cutoff))

	deleted, err := s.payments.DeleteEventsReceivedBefore(ctx, s.db, cutoff)
	if err != nil {
		return err
	}
	run.AddProcessed(int(deleted))
	s.finishJob(run, zap.Time("cutoff", cutoff))

	s.mu.Lock()
	s.lastCleanup = now
	s.mu.Unlock()
	return nil
}

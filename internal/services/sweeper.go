package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/metrics"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

const (
	defaultSweepInterval  = time.Minute
	defaultSweepBatchSize = 100
)

type SweeperConfig struct {
	Interval  time.Duration
	BatchSize int
	// Lease is taken before each pass; nil sweeps unconditionally
	Lease cache.Lease
}

// ExpirySweeper force-submits IN_PROGRESS sheets whose deadline passed, through the same
// submit path a student uses
type ExpirySweeper struct {
	repo     repositories.Repository
	attempts AttemptService
	lease    cache.Lease
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time

	interval  time.Duration
	batchSize int
}

func NewExpirySweeper(deps Dependencies, attempts AttemptService, cfg SweeperConfig) *ExpirySweeper {
	deps = deps.withDefaults()
	if cfg.Interval <= 0 {
		cfg.Interval = defaultSweepInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultSweepBatchSize
	}
	if cfg.Lease == nil {
		cfg.Lease = cache.NewLocalLease()
	}
	return &ExpirySweeper{
		repo:      deps.Repo,
		attempts:  attempts,
		lease:     cfg.Lease,
		metrics:   deps.Metrics,
		logger:    deps.Logger.With("component", "expiry_sweeper"),
		now:       deps.Now,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
	}
}

// Run sweeps on every tick until ctx is cancelled
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Expiry sweeper started", "interval", s.interval, "batch_size", s.batchSize)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("Expiry sweep failed", "error", err)
			}
		}
	}
}

// RunOnce performs one pass and returns how many sheets it submitted
func (s *ExpirySweeper) RunOnce(ctx context.Context) (int, error) {
	acquired, err := s.lease.TryAcquire(ctx)
	if err != nil {
		s.count("error")
		return 0, err
	}
	if !acquired {
		s.count("skipped")
		s.logger.Debug("Sweep lease held elsewhere, skipping")
		return 0, nil
	}
	defer func() {
		if err := s.lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release sweep lease", "error", err)
		}
	}()

	submitted := 0
	failed := make(map[uint]bool)
	unchanged := make(map[uint]bool)
	for {
		ids, err := s.repo.AnswerSheet().ListExpiredIDs(ctx, nil, s.now(), s.batchSize)
		if err != nil {
			s.count("error")
			return submitted, fmt.Errorf("failed to list expired answer sheets: %w", err)
		}

		progressed := false
		for _, id := range ids {
			if failed[id] || unchanged[id] {
				continue
			}
			_, fired, err := s.attempts.SubmitExpired(ctx, id)
			if err != nil {
				failed[id] = true
				s.logger.Error("Failed to submit expired answer sheet", "answer_sheet_id", id, "error", err)
				continue
			}
			if !fired {
				// submitted elsewhere, or not yet expired once locked
				unchanged[id] = true
				continue
			}
			progressed = true
			submitted++
		}

		if len(ids) < s.batchSize || !progressed || ctx.Err() != nil {
			break
		}
	}

	outcome := "ok"
	if len(failed) > 0 {
		outcome = "partial"
	}
	s.count(outcome)
	if submitted > 0 || len(failed) > 0 {
		s.logger.Info("Expiry sweep finished", "submitted", submitted, "failed", len(failed))
	}
	return submitted, nil
}

func (s *ExpirySweeper) count(outcome string) {
	if s.metrics != nil {
		s.metrics.SweepRuns.WithLabelValues(outcome).Inc()
	}
}

package usecase

import (
	"context"
	"log/slog"
	"time"

	"form-orchestrator/internal/domain"
	"form-orchestrator/internal/metrics"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RetentionService purges terminal executions older than the configured TTL on
// a cron schedule. Purged identifiers resolve to NotFound afterwards, which
// status clients must already handle. When several nodes share a store, only
// the leader sweeps.
type RetentionService struct {
	store  domain.ExecutionStore
	leader domain.LeaderElectionManager
	ttl    time.Duration
	cron   *cron.Cron
	logger *slog.Logger
	tracer trace.Tracer
}

// NewRetentionService creates a retention sweeper. leader may be nil on
// single-node deployments, in which case every sweep runs.
func NewRetentionService(store domain.ExecutionStore, leader domain.LeaderElectionManager, schedule string, ttl time.Duration, logger *slog.Logger) (*RetentionService, error) {
	s := &RetentionService{
		store:  store,
		leader: leader,
		ttl:    ttl,
		cron:   cron.New(),
		logger: logger.With("component", "retention"),
		tracer: otel.Tracer("form-orchestrator-usecase"),
	}
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins scheduling sweeps and blocks until the context is canceled.
func (s *RetentionService) Start(ctx context.Context) error {
	s.logger.Info("retention sweeper started", "ttl", s.ttl)
	s.cron.Start()
	<-ctx.Done()
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("retention sweeper stopped")
	return ctx.Err()
}

// Sweep purges eligible executions once. Called by the cron schedule.
func (s *RetentionService) Sweep() {
	if s.leader != nil && !s.leader.IsLeader() {
		return
	}

	ctx, span := s.tracer.Start(context.Background(), "retention.Sweep")
	defer span.End()

	executions, err := s.store.List(ctx)
	if err != nil {
		s.logger.Error("failed to list executions for retention sweep", "error", err)
		span.RecordError(err)
		return
	}

	cutoff := time.Now().Add(-s.ttl)
	purged := 0
	for _, exec := range executions {
		if !exec.Status.Terminal() || exec.UpdatedAt.After(cutoff) {
			continue
		}
		if err := s.store.Delete(ctx, exec.ID); err != nil {
			s.logger.Warn("failed to purge execution", "execution_id", exec.ID, "error", err)
			continue
		}
		purged++
	}
	span.SetAttributes(attribute.Int("retention.purged", purged))
	if purged > 0 {
		metrics.ExecutionsPurgedTotal.Add(float64(purged))
		s.logger.Info("purged terminal executions", "count", purged)
	}
}

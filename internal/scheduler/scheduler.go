// Package scheduler runs the periodic ingestion re-scan.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/talentops/cvindex/internal/usecase/ingest"
)

// IngestRunner triggers one ingestion run.
type IngestRunner interface {
	Run(ctx context.Context, limit int) (ingest.Report, error)
}

// Scheduler owns the background job loop.
type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *zap.Logger
}

// New creates a stopped scheduler.
func New(logger *zap.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Scheduler{scheduler: s, logger: logger}
}

// ScheduleIngest registers the periodic re-scan. batchSize bounds how
// many CVs one run considers (0 means unbounded).
func (s *Scheduler) ScheduleIngest(interval time.Duration, batchSize int, runner IngestRunner) error {
	_, err := s.scheduler.Every(interval).Tag("ingest-rescan").Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), interval)
		defer cancel()

		report, err := runner.Run(ctx, batchSize)
		if err != nil {
			s.logger.Error("scheduled ingest run failed", zap.Error(err))
			return
		}
		s.logger.Info("scheduled ingest run finished",
			zap.String("run_id", report.RunID),
			zap.Int("embedded", report.Embedded),
			zap.Int("failed", report.Failed))
	})
	return err
}

// Start launches the job loop in the background.
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop waits for a running job to finish and halts the loop.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

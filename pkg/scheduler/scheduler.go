package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/getship/shipd/internal/logger"
	"github.com/getship/shipd/pkg/services"
)

// Scheduler runs the retention sweep on a cron schedule when one is
// configured.
type Scheduler struct {
	cron   *cron.Cron
	builds *services.BuildService
}

func New(builds *services.BuildService) *Scheduler {
	return &Scheduler{cron: cron.New(), builds: builds}
}

// Schedule registers the retention sweep under the given cron expression and
// starts the scheduler.
func (s *Scheduler) Schedule(expr string) error {
	_, err := s.cron.AddFunc(expr, func() {
		result, err := s.builds.Cleanup(context.Background())
		if err != nil {
			logger.Error("scheduled retention sweep failed", zap.Error(err))
			return
		}
		logger.Info("scheduled retention sweep finished",
			zap.Int("kept", len(result.Kept)),
			zap.Int("removed", len(result.Removed)))
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

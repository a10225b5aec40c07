package scheduler

import (
	"time"

	"go.uber.org/zap"
)

type jobRun struct {
	name      string
	startedAt time.Time
	processed int
}

func (r *jobRun) AddProcessed(n int) {
	r.processed += n
}

func (s *Scheduler) startJob(name string) *jobRun {
	s.log.Info("job started", zap.String("job", name))
	return &jobRun{name: name, startedAt: time.Now()}
}

func (s *Scheduler) finishJob(run *jobRun, fields ...zap.Field) {
	fields = append([]zap.Field{
		zap.String("job", run.name),
		zap.Int("processed", run.processed),
		zap.Duration("took", time.Since(run.startedAt)),
	}, fields...)
	s.log.Info("job finished", fields...)
}

package gallery

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Triggerer requests a refresh cycle. Implemented by Controller.
type Triggerer interface {
	Trigger()
}

// Poller periodically requests a refresh cycle. The cycle still honors the
// eligibility toggle and the modal gate.
type Poller struct {
	scheduler gocron.Scheduler
	interval  time.Duration
	logger    *zap.Logger
}

// NewPoller schedules target.Trigger every interval. Call Start to begin.
func NewPoller(interval time.Duration, target Triggerer, logger *zap.Logger) (*Poller, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			logger.Debug("poll tick")
			target.Trigger()
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		sched.Shutdown()
		return nil, fmt.Errorf("schedule poll job: %w", err)
	}
	return &Poller{scheduler: sched, interval: interval, logger: logger}, nil
}

// Start begins polling.
func (p *Poller) Start() {
	p.logger.Info("poller started", zap.Duration("interval", p.interval))
	p.scheduler.Start()
}

// Stop stops polling and waits for a running tick to finish.
func (p *Poller) Stop() error {
	return p.scheduler.Shutdown()
}

package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// Sweeper releases holds whose expiry notification was missed.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// StatusRefresher moves showtimes between lifecycle states as time passes.
type StatusRefresher interface {
	RefreshStatuses(ctx context.Context) (finished, selling int64, err error)
}

// Jobs runs the periodic maintenance tasks of the consumers process.
type Jobs struct {
	sweeper   Sweeper
	refresher StatusRefresher
	scheduler gocron.Scheduler
}

// New registers the expiry sweep and the showtime status refresh. A nil
// clock means the wall clock.
func New(sweeper Sweeper, refresher StatusRefresher, sweepEvery, statusEvery time.Duration, clock clockwork.Clock) (*Jobs, error) {
	opts := []gocron.SchedulerOption{}
	if clock != nil {
		opts = append(opts, gocron.WithClock(clock))
	}
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	j := &Jobs{sweeper: sweeper, refresher: refresher, scheduler: s}

	_, err = s.NewJob(
		gocron.DurationJob(sweepEvery),
		gocron.NewTask(j.SweepExpired),
		gocron.WithName("expiry-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register expiry sweep: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(statusEvery),
		gocron.NewTask(j.RefreshStatuses),
		gocron.WithName("showtime-status"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register status refresh: %w", err)
	}

	return j, nil
}

func (j *Jobs) Start() {
	j.scheduler.Start()
	slog.Info("Scheduled jobs started", "jobs", len(j.scheduler.Jobs()))
}

func (j *Jobs) Stop() error {
	return j.scheduler.Shutdown()
}

// SweepExpired is the expiry-sweep task body.
func (j *Jobs) SweepExpired(ctx context.Context) {
	released, err := j.sweeper.Sweep(ctx)
	if err != nil {
		slog.Error("Expiry sweep failed", "error", err)
		return
	}
	if released > 0 {
		slog.Info("Expiry sweep released orphaned holds", "seats", released)
	}
}

// RefreshStatuses is the showtime-status task body.
func (j *Jobs) RefreshStatuses(ctx context.Context) {
	finished, selling, err := j.refresher.RefreshStatuses(ctx)
	if err != nil {
		slog.Error("Showtime status refresh failed", "error", err)
		return
	}
	if finished > 0 || selling > 0 {
		slog.Info("Showtime statuses refreshed", "finished", finished, "on_sale", selling)
	}
}

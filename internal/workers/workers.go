// Package workers schedules the background sweeps.
package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/lease"
	"zenithAPI/services"
)

const (
	dailyLeaseTTL = time.Hour
	// renewEvery is the fraction of the TTL between lease renewals.
	renewEvery = 3
)

// Scheduler runs sweeps on gocron. Each job is in singleton mode within the
// process and holds the sweep's lease while it runs, so two instances of the
// API never run the same sweep at once. The lease is renewed for as long as
// the run lasts, so a run may take longer than the TTL it started with.
type Scheduler struct {
	sched  gocron.Scheduler
	locker lease.Locker
	ctx    context.Context
	cancel context.CancelFunc
}

func NewScheduler(locker lease.Locker, loc *time.Location) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{sched: sched, locker: locker, ctx: ctx, cancel: cancel}, nil
}

// Daily runs the sweep once a day at hour:minute in the scheduler's location.
func (s *Scheduler) Daily(sweep services.Sweep, hour, minute uint) error {
	_, err := s.sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(hour, minute, 0))),
		gocron.NewTask(s.task(sweep, dailyLeaseTTL)),
		gocron.WithName(sweep.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s sweep: %w", sweep.Name(), err)
	}
	log.WithFields(log.Fields{"sweep": sweep.Name(), "at": fmt.Sprintf("%02d:%02d", hour, minute)}).Info("Sweep scheduled daily")
	return nil
}

// Every runs the sweep at a fixed interval, starting immediately.
func (s *Scheduler) Every(sweep services.Sweep, interval time.Duration) error {
	_, err := s.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.task(sweep, interval)),
		gocron.WithName(sweep.Name()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule %s sweep: %w", sweep.Name(), err)
	}
	log.WithFields(log.Fields{"sweep": sweep.Name(), "interval": interval.String()}).Info("Sweep scheduled")
	return nil
}

func (s *Scheduler) task(sweep services.Sweep, ttl time.Duration) func() {
	return func() {
		if err := RunOnce(s.ctx, s.locker, sweep, ttl); err != nil && !errors.Is(err, lease.ErrHeld) {
			log.WithError(err).WithField("sweep", sweep.Name()).Warn("Sweep run ended with error")
		}
	}
}

func (s *Scheduler) Start() {
	s.sched.Start()
	log.Info("Sweep scheduler started")
}

// Shutdown stops scheduling, tells running sweeps to stop after their current
// unit and waits for them.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	if err := s.sched.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	log.Info("Sweep scheduler stopped")
	return nil
}

// RunOnce runs the sweep while holding its lease and renews the lease every
// ttl/3 until the run returns. It returns lease.ErrHeld without running when
// another run is in progress. If the lease is lost mid-run the sweep's
// context is cancelled so it stops after the current unit.
func RunOnce(ctx context.Context, locker lease.Locker, sweep services.Sweep, ttl time.Duration) error {
	l, err := locker.Acquire(ctx, "sweep:"+sweep.Name(), ttl)
	if err != nil {
		if errors.Is(err, lease.ErrHeld) {
			log.WithField("sweep", sweep.Name()).Info("Sweep already running elsewhere, skipping")
		}
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.Release(releaseCtx); err != nil {
			log.WithError(err).WithField("sweep", sweep.Name()).Warn("Failed to release sweep lease")
		}
	}()

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	renewed := make(chan struct{})
	go func() {
		defer close(renewed)
		keepAlive(runCtx, l, sweep.Name(), ttl, stop)
	}()

	err = sweep.Run(runCtx)
	stop()
	<-renewed
	return err
}

func keepAlive(ctx context.Context, l lease.Lease, name string, ttl time.Duration, lost context.CancelFunc) {
	ticker := time.NewTicker(ttl / renewEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		extendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		err := l.Extend(extendCtx, ttl)
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, lease.ErrLost):
			log.WithField("sweep", name).Warn("Sweep lease lost, stopping after the current unit")
			lost()
			return
		default:
			log.WithError(err).WithField("sweep", name).Warn("Failed to renew sweep lease")
		}
	}
}

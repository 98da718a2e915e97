package services

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

// Sweep is a background reconciliation pass. Run handles one unit of work at
// a time; each unit runs to completion even if ctx is cancelled mid-unit, and
// no new unit is started once ctx is done.
type Sweep interface {
	Name() string
	Run(ctx context.Context) error
}

// unitContext detaches a unit of work from run cancellation so a shutdown
// never interrupts a half-applied unit.
func unitContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), timeout)
}

func observeSweep(name string, start time.Time, err error) {
	sweepDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		result = "interrupted"
	default:
		result = "error"
	}
	sweepRuns.WithLabelValues(name, result).Inc()

	entry := log.WithFields(log.Fields{"sweep": name, "duration": time.Since(start).String()})
	if result == "error" {
		entry.WithError(err).Error("Sweep failed")
		return
	}
	entry.WithField("result", result).Info("Sweep finished")
}

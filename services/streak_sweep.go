package services

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"zenithAPI/internal/ledger"
)

const streakPageSize = 500

// StreakSweep zeroes the current streak of every user who has not submitted
// since the start of the previous local day.
type StreakSweep struct {
	users ledger.UserStore
	loc   *time.Location
	now   func() time.Time
}

func NewStreakSweep(users ledger.UserStore, loc *time.Location) *StreakSweep {
	if loc == nil {
		loc = time.UTC
	}
	return &StreakSweep{users: users, loc: loc, now: time.Now}
}

func (s *StreakSweep) Name() string { return "streak" }

// StreakCutoff is the start of yesterday in loc. A user whose last submission
// is before it missed a full local day.
func StreakCutoff(now time.Time, loc *time.Location) time.Time {
	local := now.In(loc)
	startOfToday := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return startOfToday.AddDate(0, 0, -1)
}

func (s *StreakSweep) Run(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observeSweep(s.Name(), start, err) }()

	cutoff := StreakCutoff(s.now(), s.loc)
	logger := log.WithFields(log.Fields{"sweep": s.Name(), "cutoff": cutoff})

	reset := 0
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			logger.WithField("reset", reset).Info("Streak sweep stopping early")
			return err
		}

		ids, err := s.users.ListStaleStreaks(ctx, cutoff, after, streakPageSize)
		if err != nil {
			return err
		}

		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				logger.WithField("reset", reset).Info("Streak sweep stopping early")
				return err
			}
			if s.resetOne(ctx, id, cutoff) {
				reset++
			}
		}

		if len(ids) < streakPageSize {
			break
		}
		after = ids[len(ids)-1]
	}

	logger.WithField("reset", reset).Info("Streaks reconciled")
	return nil
}

func (s *StreakSweep) resetOne(ctx context.Context, userID string, cutoff time.Time) bool {
	unitCtx, cancel := unitContext(ctx, 10*time.Second)
	defer cancel()

	changed, err := s.users.ResetStreakIfStale(unitCtx, userID, cutoff)
	if err != nil {
		sweepUnits.WithLabelValues(s.Name(), "error").Inc()
		log.WithError(err).WithField("user_id", userID).Error("Failed to reset streak")
		return false
	}
	if !changed {
		// The user submitted after the listing.
		sweepUnits.WithLabelValues(s.Name(), "skipped").Inc()
		return false
	}
	sweepUnits.WithLabelValues(s.Name(), "reset").Inc()
	return true
}

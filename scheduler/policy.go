package scheduler

import (
	"time"

	"github.com/fluxpay/webhooks/merchant"
)

// Policy decides when retry attemptIndex for a profile should run, or
// reports false when the profile's automatic retry budget is spent.
type Policy func(p *merchant.Profile, attemptIndex int) (time.Time, bool)

// DefaultSchedule is the backoff applied when a profile carries no custom
// configuration. Attempts past the schedule's length reuse its last entry.
var DefaultSchedule = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
	6 * time.Hour,
	24 * time.Hour,
}

// DefaultBudget caps automatic retries when the profile sets none.
const DefaultBudget = 6

// DefaultPolicy returns SchedulePolicy over DefaultSchedule and
// DefaultBudget.
func DefaultPolicy() Policy {
	return SchedulePolicy(DefaultSchedule, DefaultBudget)
}

// SchedulePolicy builds a Policy from a fixed backoff schedule. The
// profile's RetryBudget overrides defaultBudget when set; a budget below 1
// is raised to 1 so every event gets at least one automatic retry.
func SchedulePolicy(schedule []time.Duration, defaultBudget int) Policy {
	return func(p *merchant.Profile, attemptIndex int) (time.Time, bool) {
		budget := defaultBudget
		if p != nil && p.RetryBudget > 0 {
			budget = p.RetryBudget
		}
		if budget < 1 {
			budget = 1
		}

		if attemptIndex >= budget {
			return time.Time{}, false
		}

		delay := schedule[len(schedule)-1]
		if attemptIndex < len(schedule) {
			delay = schedule[attemptIndex]
		}
		return time.Now().UTC().Add(delay), true
	}
}

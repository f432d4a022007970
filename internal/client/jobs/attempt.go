package jobs

import "time"

// PollAttempt is the state of one polling loop. It is discarded when the
// loop exits.
type PollAttempt struct {
	PollCount                int
	ConsecutiveNetworkErrors int
	CurrentInterval          time.Duration
	BackoffMultiplier        int
}

func newAttempt(base time.Duration) *PollAttempt {
	return &PollAttempt{CurrentInterval: base, BackoffMultiplier: 1}
}

// succeeded resets the error budget and the backoff.
func (a *PollAttempt) succeeded(base time.Duration) {
	a.ConsecutiveNetworkErrors = 0
	a.BackoffMultiplier = 1
	a.CurrentInterval = base
}

// networkFailed counts a network-class failure and doubles the wait, capped
// at max. It reports whether the budget of limit failures is used up.
func (a *PollAttempt) networkFailed(base, max time.Duration, limit int) (exhausted bool) {
	a.ConsecutiveNetworkErrors++
	if a.ConsecutiveNetworkErrors >= limit {
		return true
	}

	if a.CurrentInterval < max {
		a.BackoffMultiplier *= 2
	}
	a.CurrentInterval = min(base*time.Duration(a.BackoffMultiplier), max)
	return false
}

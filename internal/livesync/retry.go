package livesync

import (
	"time"
)

// RetryPolicy is the shared retry/backoff policy used by the change-feed
// reconnect loop and by anything else that needs classified retries. The
// Poller deliberately does not grow backoff: its fixed interval is the
// backoff for transient poll failures.
type RetryPolicy struct {
	MaxAttempts int           // 0 means retry forever
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Classify    func(error) ErrorKind
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 0,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    30 * time.Second,
		Classify:    KindOf,
	}
}

// Delay returns the backoff delay before the given attempt (1-based),
// doubling from BaseDelay and capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// ShouldRetry reports whether another attempt should be made after err.
func (p RetryPolicy) ShouldRetry(attempt int, err error) bool {
	classify := p.Classify
	if classify == nil {
		classify = KindOf
	}
	if classify(err) == KindFatal {
		return false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		return false
	}
	return true
}

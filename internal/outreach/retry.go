package outreach

import "time"

// DefaultMaxAttempts bounds how often a failing follow-up is re-queued.
const DefaultMaxAttempts = 5

var followUpBackoff = []time.Duration{
	time.Minute,
	5 * time.Minute,
	30 * time.Minute,
	2 * time.Hour,
	12 * time.Hour,
}

// backoff returns the delay before retry number attempt (1-based).
func backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return followUpBackoff[0]
	}
	if attempt > len(followUpBackoff) {
		return followUpBackoff[len(followUpBackoff)-1]
	}
	return followUpBackoff[attempt-1]
}

// exhausted reports whether attempt has used up the allowed retries.
func exhausted(attempt, maxAttempts int) bool {
	return attempt >= maxAttempts
}

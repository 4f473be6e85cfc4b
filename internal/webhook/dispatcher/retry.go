package dispatcher

import "time"

// RetryPolicy computes the delay before the given retry attempt.
type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

// ExponentialRetryPolicy doubles the delay per attempt: Initial, 2*Initial,
// 4*Initial, capped at Max.
type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = 2 * time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 8 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

package worker

import (
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoff returns the delay before retry number attempt:
// 2s, 4s, 8s, ... capped at 5 minutes, plus up to 250ms of jitter.
func ExponentialBackoff(attempt int) time.Duration {
	base := 2 * time.Second
	capDelay := 5 * time.Minute

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt)))

	if delay > capDelay || delay <= 0 {
		delay = capDelay
	}

	delay += time.Duration(rand.Intn(250)) * time.Millisecond
	return delay
}

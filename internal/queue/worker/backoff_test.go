package worker

import (
	"testing"
	"time"
)

func TestExponentialBackoff(t *testing.T) {
	jitter := 250 * time.Millisecond

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 4 * time.Second},
		{2, 8 * time.Second},
		{3, 16 * time.Second},
	}

	for _, tt := range tests {
		got := ExponentialBackoff(tt.attempt)

		if got < tt.want || got > tt.want+jitter {
			t.Errorf("attempt %d: got %v, want %v..%v", tt.attempt, got, tt.want, tt.want+jitter)
		}
	}
}

func TestExponentialBackoff_Cap(t *testing.T) {
	capDelay := 5 * time.Minute
	jitter := 250 * time.Millisecond

	for _, attempt := range []int{10, 30, 100} {
		got := ExponentialBackoff(attempt)

		if got < capDelay || got > capDelay+jitter {
			t.Errorf("attempt %d: got %v, want capped at %v", attempt, got, capDelay)
		}
	}
}

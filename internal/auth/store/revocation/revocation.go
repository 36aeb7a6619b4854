// Package revocation stores the ids of session credentials that were signed out
// before they expired. Entries only need to outlive the credential they deny.
package revocation

import (
	"fmt"
	"time"

	"luwei/pkg/platform/sentinel"
)

// Clock returns the current time.
type Clock func() time.Time

// LatencyObserver records lookup latency. Optional.
type LatencyObserver interface {
	ObserveRevocationCheck(d time.Duration)
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive: %w", sentinel.ErrInvalidState)
	}
	return nil
}

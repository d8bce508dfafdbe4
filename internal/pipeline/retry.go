package pipeline

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/pagewash/internal/cleaner"
)

// IsRetryable checks if an error is worth retrying. Only stateless HTTP
// cleaning calls qualify; session and render failures abort the run.
func IsRetryable(err error) bool {
	return errors.Is(err, cleaner.ErrService)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3

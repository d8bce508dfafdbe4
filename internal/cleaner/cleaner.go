// Package cleaner talks to the remote image-cleaning service. Two
// transports exist: a stateless HTTP client and a stateful browser
// session driving the service's web UI.
package cleaner

import (
	"context"
	"errors"

	"github.com/dgallion1/pagewash/internal/page"
)

var (
	// ErrService flags a failed HTTP cleaning call.
	ErrService = errors.New("cleaner: service error")

	// ErrSession flags a failed interactive session, including result
	// timeouts. A session that returns ErrSession is no longer usable.
	ErrSession = errors.New("cleaner: session error")
)

// Cleaner submits one page image and returns its cleaned counterpart.
// Implementations must be safe for concurrent use; each call is
// independent of every other.
type Cleaner interface {
	Clean(ctx context.Context, img page.RawImage) (page.RawImage, error)
}

// Session is the stateful interactive variant. Submit and AwaitResult
// pair 1:1 in submission order and at most one page may be in flight at
// a time. A Session is never shared between goroutines.
type Session interface {
	Submit(ctx context.Context, img page.RawImage) error
	AwaitResult(ctx context.Context) (page.RawImage, error)
	Close() error
}

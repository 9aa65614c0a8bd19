package cancel

import (
	"context"
	"errors"
	"log"
	"time"
)

// ErrUserCancelled - cause attached to contexts stopped by a cancel request
var ErrUserCancelled = errors.New("cancelled by user")

// Checker - reports whether a cancel was requested for a job
type Checker interface {
	IsJobCancelled(ctx context.Context, jobID string) bool
}

// Watch - derive a context that is cancelled with ErrUserCancelled once checker reports jobID cancelled
//
// The flag is polled every interval. The returned CancelFunc stops the watcher
// and must always be called.
func Watch(parent context.Context, checker Checker, jobID string, interval time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if checker.IsJobCancelled(ctx, jobID) {
					log.Printf("🛑 Job %s cancelled, stopping generation", jobID)
					cancel(ErrUserCancelled)
					return
				}
			}
		}
	}()
	return ctx, func() { cancel(context.Canceled) }
}

// Cancelled - whether ctx was stopped by Watch
func Cancelled(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrUserCancelled)
}

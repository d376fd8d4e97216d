package orchestrator

import (
	"context"
	"time"
)

// beginBatch acquires the single batch slot, waiting at most maxWait.
// Returns a release func to be deferred.
func (o *Orchestrator) beginBatch(ctx context.Context) (func(), error) {
	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return func() {}, err
	}
	timer := time.NewTimer(o.maxWait)
	defer timer.Stop()
	select {
	case o.batchCh <- struct{}{}:
		return func() { <-o.batchCh }, nil
	case <-ctx.Done():
		return func() {}, ctx.Err()
	case <-timer.C:
		return func() {}, tooBusyError{}
	}
}

// Busy reports whether a batch currently holds the slot.
func (o *Orchestrator) Busy() bool { return len(o.batchCh) > 0 }

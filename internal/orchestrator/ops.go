package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// OpState is the lifecycle of a background batch.
type OpState string

const (
	OpRunning OpState = "running"
	OpDone    OpState = "done"
	OpFailed  OpState = "failed"
)

// Op is a background batch started by Submit.
type Op struct {
	ID       string
	State    OpState
	Result   BatchResult
	Err      string
	Started  time.Time
	Finished time.Time
}

const maxRetainedOps = 64

// Submit reserves the batch slot and runs req in the background, returning
// an operation id callers can poll with Op. Admission errors (TooBusy,
// validation) are returned synchronously.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (string, error) {
	req, err := req.normalize()
	if err != nil {
		return "", err
	}
	release, err := o.beginBatch(ctx)
	if err != nil {
		return "", err
	}
	// Cleared before the id is handed out so a Cancel that follows Submit
	// is seen by this batch.
	o.cancel.Store(false)
	op := &Op{ID: uuid.NewString(), State: OpRunning, Started: o.now()}
	o.storeOp(op)
	go func() {
		defer release()
		// Detached: the batch outlives the submitting request. Cancel stops it.
		res, err := o.runBatch(context.Background(), req)
		o.mu.Lock()
		op.Result = res
		op.Finished = o.now()
		op.State = OpDone
		if err != nil {
			op.State = OpFailed
			op.Err = err.Error()
		}
		o.mu.Unlock()
	}()
	return op.ID, nil
}

func (o *Orchestrator) storeOp(op *Op) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ops[op.ID] = op
	o.opOrder = append(o.opOrder, op.ID)
	for len(o.opOrder) > maxRetainedOps {
		old := o.ops[o.opOrder[0]]
		if old != nil && old.State == OpRunning {
			break
		}
		delete(o.ops, o.opOrder[0])
		o.opOrder = o.opOrder[1:]
	}
}

// Op returns a copy of the operation with id.
func (o *Orchestrator) Op(id string) (Op, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	op, ok := o.ops[id]
	if !ok {
		return Op{}, false
	}
	return *op, true
}

// Cancel raises the shared cancellation flag. The running batch stops after
// at most one more diffusion step. It reports whether a batch was running.
func (o *Orchestrator) Cancel() bool {
	running := o.Busy()
	o.cancel.Store(true)
	o.log.Info().Bool("running", running).Msg("cancel requested")
	return running
}

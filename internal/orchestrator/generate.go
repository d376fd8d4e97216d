package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"image"

	"diffusiond/internal/backend"
	"diffusiond/internal/catalog"
	"diffusiond/internal/progress"
)

// Run validates req, waits for the batch slot and executes the batch.
// A batch stopped by Cancel returns its partial result and a nil error.
func (o *Orchestrator) Run(ctx context.Context, req Request) (BatchResult, error) {
	req, err := req.normalize()
	if err != nil {
		return BatchResult{}, err
	}
	release, err := o.beginBatch(ctx)
	if err != nil {
		return BatchResult{}, err
	}
	defer release()
	o.cancel.Store(false)
	return o.runBatch(ctx, req)
}

func defaultScheduler(kind backend.Kind) backend.Scheduler {
	if kind == backend.KindExtended {
		return backend.SchedulerEulerAncestral
	}
	return backend.SchedulerDPMSolverMultistep
}

// runBatch must be called while holding the batch slot, after the
// cancellation flag was cleared for this batch.
func (o *Orchestrator) runBatch(ctx context.Context, req Request) (BatchResult, error) {
	n := req.Count
	o.publisher.Publish(Event{Name: EventBatchStart, Model: req.Model, Fields: map[string]any{"count": n}})
	o.transition(func(s *progress.Snapshot) {
		*s = progress.Snapshot{State: progress.StateLoading, Model: req.Model, QueueTotal: n}
	})
	progress.SetQueue(0, n)

	entry, err := o.resolveModel(req.Model)
	if err != nil {
		return BatchResult{}, o.fail(req.Model, err)
	}
	kind := backend.KindFor(entry)
	if req.Scheduler == "" {
		req.Scheduler = defaultScheduler(kind)
	}
	if err := backend.CheckScheduler(kind, req.Scheduler); err != nil {
		return BatchResult{}, o.fail(entry.Name, err)
	}
	names := req.controlNames()
	for _, name := range names {
		if _, ok := entry.ControlNet(name); !ok {
			return BatchResult{}, o.fail(entry.Name, invalidRequest(fmt.Sprintf("model %s has no conditioning module %q", entry.Name, name)))
		}
	}
	units := o.resolveCompute(req.ComputeUnits)
	fp := Fingerprint(kind, entry.Path, names, units, req.Size, req.StartingImage != nil)
	be, err := o.ensureBackend(ctx, kind, fp, backend.LoadOptions{
		Model:        entry,
		ControlNets:  names,
		ComputeUnits: units,
		ReduceMemory: o.reduceMemory,
	})
	if err != nil {
		return BatchResult{}, o.fail(entry.Name, err)
	}
	if o.reduceMemory {
		defer o.releaseSlot("reduce_memory")
	}
	in, err := be.Prepare(req.params())
	if err != nil {
		return BatchResult{}, o.fail(entry.Name, err)
	}

	seed := req.Seed
	if seed == 0 {
		seed = o.seed()
	}
	res := BatchResult{FirstSeed: seed}
	for i := 0; i < n; i, seed = i+1, seed+1 {
		if o.cancel.Load() || ctx.Err() != nil {
			res.Cancelled = true
			break
		}
		o.transition(func(s *progress.Snapshot) {
			s.Model = entry.Name
			s.QueueIndex, s.QueueTotal = i, n
		})
		progress.SetQueue(i, n)
		o.publisher.Publish(Event{Name: EventQueue, Model: entry.Path, Fields: map[string]any{"index": i, "total": n, "seed": seed}})

		img, err := o.generateOne(ctx, be, in, entry, req, seed)
		if err == nil {
			res.Images = append(res.Images, o.deliver(ctx, req, entry, img, seed))
			progress.CountImage(progress.OutcomeCompleted)
			continue
		}
		if backend.IsCancelled(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			o.log.Info().Str("model", entry.Name).Int("index", i).Uint32("seed", seed).Msg("generation cancelled")
			progress.CountImage(progress.OutcomeCancelled)
			res.Cancelled = true
			break
		}
		progress.CountImage(progress.OutcomeFailed)
		res.Failed++
		res.Message = err.Error()
		o.log.Warn().Err(err).Str("model", entry.Name).Int("index", i).Uint32("seed", seed).Msg("image failed")
		o.publisher.Publish(Event{Name: EventImageFailed, Model: entry.Path, Fields: map[string]any{"index": i, "seed": seed, "error": err.Error()}})
		if backend.IsPipelineNotLoaded(err) || !be.Loaded() {
			o.releaseSlot("unusable")
			return res, o.fail(entry.Name, err)
		}
	}

	o.transition(func(s *progress.Snapshot) {
		*s = progress.Ready(res.Message)
		s.Model = entry.Name
	})
	progress.SetQueue(0, 0)
	o.publisher.Publish(Event{Name: EventBatchEnd, Model: entry.Path, Fields: map[string]any{
		"images":    len(res.Images),
		"failed":    res.Failed,
		"cancelled": res.Cancelled,
	}})
	if res.Cancelled && ctx.Err() != nil && !o.cancel.Load() {
		return res, ctx.Err()
	}
	return res, nil
}

// generateOne runs one image, publishing running(step, total) after every step.
func (o *Orchestrator) generateOne(ctx context.Context, be backend.Backend, in backend.Input, entry catalog.ModelEntry, req Request, seed uint32) (image.Image, error) {
	o.transition(func(s *progress.Snapshot) {
		s.State = progress.StateRunning
		s.Message = ""
		s.Step, s.TotalSteps = 0, req.Steps
		s.Preview = nil
	})
	last := o.now()
	fn := func(p backend.Progress) bool {
		now := o.now()
		d := now.Sub(last)
		last = now
		progress.ObserveStep(d)
		var preview image.Image
		if req.Preview != PreviewNone {
			preview = p.Preview(req.Preview == PreviewHigh)
		}
		total := p.TotalSteps
		if total <= 0 {
			total = req.Steps
		}
		o.transition(func(s *progress.Snapshot) {
			s.State = progress.StateRunning
			s.Step, s.TotalSteps = p.Step, total
			s.LastStepLatency = d
			if preview != nil {
				s.Preview = preview
			}
		})
		return !o.cancel.Load()
	}
	o.log.Debug().Str("model", entry.Name).Uint32("seed", seed).Int("steps", req.Steps).Msg("generating")
	return be.Generate(ctx, in, seed, fn)
}

// transition is the only writer of the published snapshot.
func (o *Orchestrator) transition(fn func(*progress.Snapshot)) {
	s := o.progress.Update(fn)
	o.publisher.Publish(Event{Name: EventState, Model: s.Model, Fields: map[string]any{
		"state":       string(s.State),
		"message":     s.Message,
		"step":        s.Step,
		"total_steps": s.TotalSteps,
		"queue_index": s.QueueIndex,
		"queue_total": s.QueueTotal,
	}})
}

// fail publishes error(msg) with progress reset and returns err.
func (o *Orchestrator) fail(model string, err error) error {
	o.log.Error().Err(err).Str("model", model).Msg("batch failed")
	o.transition(func(s *progress.Snapshot) {
		*s = progress.Snapshot{State: progress.StateError, Message: err.Error(), Model: model}
	})
	progress.SetQueue(0, 0)
	o.publisher.Publish(Event{Name: EventBatchEnd, Model: model, Fields: map[string]any{"error": err.Error()}})
	return err
}

func (o *Orchestrator) releaseSlot(reason string) {
	o.mu.RLock()
	cur := o.cur
	o.mu.RUnlock()
	if cur != nil {
		o.dropSlot(cur, reason)
	}
}

package orchestrator

import (
	"context"

	"diffusiond/internal/backend"
	"diffusiond/internal/catalog"
)

// resolveModel finds ref by path, then by name. An empty ref picks the
// first catalog entry.
func (o *Orchestrator) resolveModel(ref string) (catalog.ModelEntry, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if len(o.models) == 0 {
		return catalog.ModelEntry{}, catalog.ErrNoModelsFound
	}
	if ref == "" {
		return o.models[0].Clone(), nil
	}
	for _, m := range o.models {
		if m.Path == ref {
			return m.Clone(), nil
		}
	}
	for _, m := range o.models {
		if m.Name == ref {
			return m.Clone(), nil
		}
	}
	return catalog.ModelEntry{}, backend.ErrModelNotFound(ref)
}

// ensureBackend returns a loaded backend for opts, reusing the slot when the
// family and fingerprint match. Any other slot content is unloaded first.
func (o *Orchestrator) ensureBackend(ctx context.Context, kind backend.Kind, fp uint64, opts backend.LoadOptions) (backend.Backend, error) {
	o.mu.RLock()
	cur := o.cur
	o.mu.RUnlock()

	if cur != nil && cur.kind == kind && cur.fingerprint == fp && cur.backend.Loaded() {
		o.publisher.Publish(Event{Name: EventReuse, Model: opts.Model.Path, Fields: map[string]any{"kind": kind.String()}})
		return cur.backend, nil
	}
	if cur != nil {
		o.dropSlot(cur, "reload")
	}

	o.log.Info().Str("model", opts.Model.Name).Str("kind", kind.String()).
		Str("compute_units", string(opts.ComputeUnits)).Strs("controlnets", opts.ControlNets).
		Msg("loading pipeline")
	start := o.now()
	be := o.newBackend(kind)
	if err := be.Load(ctx, opts); err != nil {
		o.unavailable.Store(backend.IsDependencyUnavailable(err))
		o.publisher.Publish(Event{Name: EventLoad, Model: opts.Model.Path, Fields: map[string]any{"kind": kind.String(), "error": err.Error()}})
		return nil, err
	}
	o.unavailable.Store(false)
	o.mu.Lock()
	o.cur = &slot{backend: be, kind: kind, fingerprint: fp, model: opts.Model.Clone(), controlNets: append([]string(nil), opts.ControlNets...), loadedAt: o.now()}
	o.mu.Unlock()
	o.publisher.Publish(Event{Name: EventLoad, Model: opts.Model.Path, Fields: map[string]any{
		"kind":        kind.String(),
		"duration_ms": o.now().Sub(start).Milliseconds(),
	}})
	return be, nil
}

// dropSlot unloads s and clears it if it is still current.
func (o *Orchestrator) dropSlot(s *slot, reason string) {
	o.mu.Lock()
	if o.cur == s {
		o.cur = nil
	}
	o.mu.Unlock()
	if err := s.backend.Unload(); err != nil {
		o.log.Warn().Err(err).Str("model", s.model.Name).Msg("unload failed")
	}
	o.publisher.Publish(Event{Name: EventUnload, Model: s.model.Path, Fields: map[string]any{"reason": reason}})
}

package orchestrator

import (
	"context"
	"time"

	"diffusiond/internal/backend"
	"diffusiond/internal/catalog"
	"diffusiond/internal/progress"
	"diffusiond/pkg/types"
)

// Snapshot returns the latest published progress state.
func (o *Orchestrator) Snapshot() progress.Snapshot { return o.progress.Snapshot() }

// Status builds a detailed status response for /status.
func (o *Orchestrator) Status() types.StatusResponse {
	s := o.progress.Snapshot()
	resp := types.StatusResponse{
		State:      string(s.State),
		Message:    s.Message,
		Model:      s.Model,
		Step:       s.Step,
		TotalSteps: s.TotalSteps,
		QueueIndex: s.QueueIndex,
		QueueTotal: s.QueueTotal,
		LastStepMS: float64(s.LastStepLatency) / float64(time.Millisecond),
		Busy:       o.Busy(),
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	resp.Models = len(o.models)
	if o.cur != nil {
		resp.Loaded = &types.LoadedPipeline{
			Model:       o.cur.model.Name,
			Backend:     o.cur.kind.String(),
			LoadedAt:    o.cur.loadedAt.Unix(),
			ControlNets: append([]string(nil), o.cur.controlNets...),
		}
	}
	return resp
}

// RefreshModels rescans the configured directories and replaces the catalog
// wholesale. The current catalog is kept when the scan fails.
func (o *Orchestrator) RefreshModels(ctx context.Context) ([]catalog.ModelEntry, error) {
	entries, err := o.scanner.Scan(ctx, o.modelsDir, o.conditioningDir)
	if err != nil {
		o.log.Warn().Err(err).Str("dir", o.modelsDir).Msg("model refresh failed")
		return nil, err
	}
	o.mu.Lock()
	o.models = entries
	o.mu.Unlock()
	o.log.Info().Int("models", len(entries)).Msg("model catalog refreshed")
	return cloneEntries(entries), nil
}

// SwitchModel resolves selected and the group references against the
// catalog and returns the group entry to switch to. matched is false when no
// entry shares the selected model's capabilities and the first group entry
// was used instead.
func (o *Orchestrator) SwitchModel(selected string, group []string) (target catalog.ModelEntry, matched bool, err error) {
	if len(group) == 0 {
		return catalog.ModelEntry{}, false, invalidRequest("group must name at least one model")
	}
	cur, err := o.resolveModel(selected)
	if err != nil {
		return catalog.ModelEntry{}, false, err
	}
	candidates := make([]catalog.ModelEntry, 0, len(group))
	for _, ref := range group {
		m, err := o.resolveModel(ref)
		if err != nil {
			return catalog.ModelEntry{}, false, err
		}
		candidates = append(candidates, m)
	}
	target, matched = o.switchTarget(cur, candidates)
	return target, matched, nil
}

// switchTarget picks the entry in a non-empty group that best matches
// selected, falling back to the first entry.
func (o *Orchestrator) switchTarget(selected catalog.ModelEntry, group []catalog.ModelEntry) (catalog.ModelEntry, bool) {
	if m, ok := catalog.MatchCapability(selected, group); ok {
		return m, true
	}
	o.log.Warn().Str("selected", selected.Name).Str("fallback", group[0].Name).
		Msg("no capability match in group, using first entry")
	return group[0].Clone(), false
}

// ModelView converts a catalog entry into its API form.
func ModelView(m catalog.ModelEntry) types.Model {
	kind := backend.KindFor(m)
	out := types.Model{
		Name:            m.Name,
		Path:            m.Path,
		Attention:       string(m.Attention),
		ExtendedCapable: m.IsExtendedCapable,
		LargeVariant:    m.IsLargeVariant,
		Backend:         kind.String(),
		Resolution:      sizeView(m.Resolution),
	}
	for _, s := range backend.Schedulers(kind) {
		out.Schedulers = append(out.Schedulers, string(s))
	}
	for _, c := range m.ControlNets {
		out.ControlNets = append(out.ControlNets, types.ConditioningModule{
			Name:       c.Name,
			Kind:       string(c.Kind),
			Path:       c.Path,
			Resolution: sizeView(c.Resolution),
		})
	}
	return out
}

func sizeView(s *catalog.Size) *types.Size {
	if s == nil {
		return nil
	}
	return &types.Size{Width: s.Width, Height: s.Height}
}

package orchestrator

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"diffusiond/internal/backend"
	"diffusiond/internal/catalog"
	"diffusiond/internal/progress"
)

// slot is the one loaded pipeline. Only the goroutine holding the batch
// slot replaces it.
type slot struct {
	backend     backend.Backend
	kind        backend.Kind
	fingerprint uint64
	model       catalog.ModelEntry
	controlNets []string
	loadedAt    time.Time
}

type Orchestrator struct {
	mu      sync.RWMutex
	models  []catalog.ModelEntry
	cur     *slot
	ops     map[string]*Op
	opOrder []string

	scanner         *catalog.Scanner
	modelsDir       string
	conditioningDir string

	newBackend     func(backend.Kind) backend.Backend
	resolveCompute func(backend.ComputeUnits) backend.ComputeUnits
	upscaler       Upscaler
	saver          Saver
	sink           Sink

	progress  *progress.Broadcaster
	publisher EventPublisher
	log       zerolog.Logger

	maxWait      time.Duration
	reduceMemory bool
	seed         func() uint32
	now          func() time.Time

	// batchCh is the single batch slot.
	batchCh chan struct{}
	cancel  atomic.Bool
	// unavailable is set while the last load failed for lack of a runtime.
	unavailable atomic.Bool
}

// Progress exposes the broadcaster observers subscribe to.
func (o *Orchestrator) Progress() *progress.Broadcaster { return o.progress }

// Ready reports whether the orchestrator can accept work: the catalog is
// non-empty and the last load did not find the runtime missing. Batches
// rejected for their own parameters do not affect readiness.
func (o *Orchestrator) Ready() bool {
	o.mu.RLock()
	n := len(o.models)
	o.mu.RUnlock()
	return n > 0 && !o.unavailable.Load()
}

// ListModels returns a copy of the current catalog.
func (o *Orchestrator) ListModels() []catalog.ModelEntry {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return cloneEntries(o.models)
}

// Close unloads any loaded pipeline.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	s := o.cur
	o.cur = nil
	o.mu.Unlock()
	if s == nil {
		return nil
	}
	return s.backend.Unload()
}

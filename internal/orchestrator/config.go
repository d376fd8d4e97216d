package orchestrator

import (
	"context"
	"image"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"diffusiond/internal/backend"
	"diffusiond/internal/catalog"
	"diffusiond/internal/progress"
	"diffusiond/internal/results"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultMaxWait = 30 * time.Second
)

// Upscaler enlarges a finished image and names itself for the record.
type Upscaler interface {
	Upscale(ctx context.Context, img image.Image) (image.Image, string, error)
}

// Saver persists a finished image and returns its path.
type Saver interface {
	Save(ctx context.Context, img results.GeneratedImage, dir string, f results.Format) (string, error)
}

// Sink takes ownership of finished images.
type Sink interface {
	Store(ctx context.Context, img results.GeneratedImage) (string, error)
}

// Config encapsulates all tunables for Orchestrator construction.
type Config struct {
	// Models is the initial catalog; RefreshModels replaces it.
	Models          []catalog.ModelEntry
	Scanner         *catalog.Scanner
	ModelsDir       string
	ConditioningDir string

	// NewBackend builds an unloaded backend for a family. Defaults to
	// backend.Factory with unavailable runtimes.
	NewBackend func(backend.Kind) backend.Backend
	// ResolveCompute turns "auto" into a concrete preference.
	ResolveCompute func(backend.ComputeUnits) backend.ComputeUnits

	Upscaler Upscaler
	Saver    Saver
	Sink     Sink

	Progress  *progress.Broadcaster
	Publisher EventPublisher
	Logger    zerolog.Logger

	MaxWait time.Duration
	// ReduceMemory unloads the pipeline after every batch.
	ReduceMemory bool
	// Seed supplies random starting seeds for requests with seed 0.
	Seed func() uint32
}

// New constructs an Orchestrator from Config.
func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		models:          cloneEntries(cfg.Models),
		scanner:         cfg.Scanner,
		modelsDir:       cfg.ModelsDir,
		conditioningDir: cfg.ConditioningDir,
		newBackend:      cfg.NewBackend,
		resolveCompute:  cfg.ResolveCompute,
		upscaler:        cfg.Upscaler,
		saver:           cfg.Saver,
		sink:            cfg.Sink,
		progress:        cfg.Progress,
		publisher:       cfg.Publisher,
		log:             cfg.Logger,
		maxWait:         cfg.MaxWait,
		reduceMemory:    cfg.ReduceMemory,
		seed:            cfg.Seed,
		batchCh:         make(chan struct{}, 1),
		ops:             make(map[string]*Op),
		now:             time.Now,
	}
	// Apply defaults if unset
	if o.newBackend == nil {
		f := backend.Factory{Standard: backend.UnavailableStandard(), Extended: backend.UnavailableExtended()}
		o.newBackend = f.New
	}
	if o.resolveCompute == nil {
		o.resolveCompute = func(u backend.ComputeUnits) backend.ComputeUnits {
			if u == "" {
				return backend.ComputeAuto
			}
			return u
		}
	}
	if o.progress == nil {
		o.progress = progress.NewBroadcaster()
	}
	if o.publisher == nil {
		o.publisher = noopPublisher{}
	}
	if o.maxWait <= 0 {
		o.maxWait = defaultMaxWait
	}
	if o.seed == nil {
		o.seed = func() uint32 { return rand.Uint32N(1<<32-1) + 1 }
	}
	if o.scanner == nil {
		o.scanner = catalog.NewScanner(o.log)
	}
	return o
}

func cloneEntries(in []catalog.ModelEntry) []catalog.ModelEntry {
	out := make([]catalog.ModelEntry, len(in))
	for i, m := range in {
		out[i] = m.Clone()
	}
	return out
}

package backend

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"diffusiond/internal/catalog"
	"diffusiond/internal/common/fsutil"
)

// Micro-conditioning defaults for the larger input schema.
const (
	defaultAestheticScore         = 6.0
	defaultNegativeAestheticScore = 2.5
	defaultExtendedSize           = 1024
)

// ExtendedBackend drives the extended library family used by large-variant models.
type ExtendedBackend struct {
	rt ExtendedRuntime

	mu       sync.Mutex
	pipeline ExtendedPipeline
	adapters map[string]bool
	native   *catalog.Size
}

// NewExtended wraps rt; a nil rt yields the unavailable stub.
func NewExtended(rt ExtendedRuntime) *ExtendedBackend {
	if rt == nil {
		rt = UnavailableExtended()
	}
	return &ExtendedBackend{rt: rt}
}

func (b *ExtendedBackend) Kind() Kind { return KindExtended }

func (b *ExtendedBackend) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pipeline != nil
}

func (b *ExtendedBackend) Load(ctx context.Context, opts LoadOptions) error {
	// Only a vanished package is ModelNotFound; unreadable ones fall through
	// to the runtime and surface as load failures.
	if !fsutil.PathExists(opts.Model.Path) {
		return ErrModelNotFound(opts.Model.Path)
	}
	if err := b.Unload(); err != nil {
		return err
	}
	p, err := b.rt.Load(ctx, ExtendedConfig{
		ModelPath:    opts.Model.Path,
		Adapters:     append([]string(nil), opts.ControlNets...),
		ComputeUnits: opts.ComputeUnits,
		LowMemory:    opts.ReduceMemory,
	})
	if err != nil {
		if IsDependencyUnavailable(err) {
			return err
		}
		return loadFailureError{model: opts.Model.Name, err: err}
	}
	adapters := make(map[string]bool, len(opts.ControlNets))
	for _, n := range opts.ControlNets {
		adapters[n] = true
	}
	b.mu.Lock()
	b.pipeline = p
	b.adapters = adapters
	if opts.Model.Resolution != nil {
		r := *opts.Model.Resolution
		b.native = &r
	} else {
		b.native = nil
	}
	b.mu.Unlock()
	return nil
}

func (b *ExtendedBackend) Unload() error {
	b.mu.Lock()
	p := b.pipeline
	b.pipeline = nil
	b.adapters = nil
	b.native = nil
	b.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Release()
}

type extendedInput struct{ native ExtendedInput }

func (extendedInput) Kind() Kind { return KindExtended }

// Prepare maps the scheduler to a sampler name and fills the size and
// aesthetic conditioning from the requested output size.
func (b *ExtendedBackend) Prepare(p Params) (Input, error) {
	sampler, err := extendedSampler(p.Scheduler)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	loaded := b.pipeline != nil
	adapters := b.adapters
	native := b.native
	b.mu.Unlock()
	if !loaded {
		return nil, pipelineNotLoadedError{kind: KindExtended}
	}
	cond := make(map[string]image.Image, len(p.ControlInputs))
	for _, ci := range p.ControlInputs {
		if !adapters[ci.Name] {
			return nil, fmt.Errorf("%w: conditioning module %q not loaded", ErrInvalidInput, ci.Name)
		}
		cond[ci.Name] = ci.Image
	}
	target := catalog.Size{Width: p.Width, Height: p.Height}
	if target.Width <= 0 || target.Height <= 0 {
		if native != nil {
			target = *native
		} else {
			target = catalog.Size{Width: defaultExtendedSize, Height: defaultExtendedSize}
		}
	}
	return extendedInput{native: ExtendedInput{
		Prompt:                 p.Prompt,
		NegativePrompt:         p.NegativePrompt,
		InitImage:              p.StartingImage,
		InitMask:               p.Mask,
		Denoise:                float64(p.Strength),
		Steps:                  p.Steps,
		CFGScale:               float64(p.GuidanceScale),
		Sampler:                sampler,
		SafetyFilter:           p.SafetyChecker,
		Conditioning:           cond,
		OriginalSize:           target,
		TargetSize:             target,
		AestheticScore:         defaultAestheticScore,
		NegativeAestheticScore: defaultNegativeAestheticScore,
		Preview:                p.Preview,
	}}, nil
}

func (b *ExtendedBackend) Generate(ctx context.Context, in Input, seed uint32, fn ProgressFunc) (image.Image, error) {
	b.mu.Lock()
	p := b.pipeline
	b.mu.Unlock()
	if p == nil {
		return nil, pipelineNotLoadedError{kind: KindExtended}
	}
	ei, ok := in.(extendedInput)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not an extended input", ErrInvalidInput, in)
	}
	native := ei.native
	native.Seed = int64(seed)

	stopped := false
	img, err := p.Run(ctx, native, func(ev ExtendedProgress) bool {
		if fn == nil {
			return false
		}
		var preview func(bool) image.Image
		if ev.Decode != nil {
			preview = func(hq bool) image.Image { return ev.Decode(!hq) }
		}
		if !fn(NewProgress(ev.Iteration, ev.Total, preview)) {
			stopped = true
			return true
		}
		return false
	})
	if stopped {
		return nil, ErrCancelled
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, generationFailureError{err: err}
	}
	if img == nil {
		return nil, generationFailureError{err: errors.New("pipeline returned no image")}
	}
	return img, nil
}

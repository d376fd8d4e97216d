package backend

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"diffusiond/internal/common/fsutil"
)

// StandardBackend drives the standard library family, including models with
// linked conditioning modules.
type StandardBackend struct {
	rt StandardRuntime

	mu          sync.Mutex
	pipeline    StandardPipeline
	controlNets []string
}

// NewStandard wraps rt; a nil rt yields the unavailable stub.
func NewStandard(rt StandardRuntime) *StandardBackend {
	if rt == nil {
		rt = UnavailableStandard()
	}
	return &StandardBackend{rt: rt}
}

func (b *StandardBackend) Kind() Kind { return KindStandard }

func (b *StandardBackend) Loaded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pipeline != nil
}

func (b *StandardBackend) Load(ctx context.Context, opts LoadOptions) error {
	// Only a vanished package is ModelNotFound; unreadable ones fall through
	// to the runtime and surface as load failures.
	if !fsutil.PathExists(opts.Model.Path) {
		return ErrModelNotFound(opts.Model.Path)
	}
	if err := b.Unload(); err != nil {
		return err
	}
	p, err := b.rt.Open(ctx, StandardConfig{
		ModelPath:    opts.Model.Path,
		Attention:    opts.Model.Attention,
		ControlNets:  append([]string(nil), opts.ControlNets...),
		ComputeUnits: opts.ComputeUnits,
		ReduceMemory: opts.ReduceMemory,
	})
	if err != nil {
		if IsDependencyUnavailable(err) {
			return err
		}
		return loadFailureError{model: opts.Model.Name, err: err}
	}
	b.mu.Lock()
	b.pipeline = p
	b.controlNets = append([]string(nil), opts.ControlNets...)
	b.mu.Unlock()
	return nil
}

func (b *StandardBackend) Unload() error {
	b.mu.Lock()
	p := b.pipeline
	b.pipeline = nil
	b.controlNets = nil
	b.mu.Unlock()
	if p == nil {
		return nil
	}
	return p.Close()
}

// standardInput is the prepared native record; only Seed changes per image.
type standardInput struct{ native StandardInput }

func (standardInput) Kind() Kind { return KindStandard }

// Prepare maps the scheduler and orders conditioning images to match the
// modules the pipeline was loaded with.
func (b *StandardBackend) Prepare(p Params) (Input, error) {
	sched, err := standardScheduler(p.Scheduler)
	if err != nil {
		return nil, err
	}
	b.mu.Lock()
	loaded := b.pipeline != nil
	names := append([]string(nil), b.controlNets...)
	b.mu.Unlock()
	if !loaded {
		return nil, pipelineNotLoadedError{kind: KindStandard}
	}
	byName := make(map[string]image.Image, len(p.ControlInputs))
	for _, ci := range p.ControlInputs {
		byName[ci.Name] = ci.Image
	}
	if len(byName) != len(names) {
		return nil, fmt.Errorf("%w: %d conditioning images for %d loaded modules", ErrInvalidInput, len(byName), len(names))
	}
	cond := make([]image.Image, 0, len(names))
	for _, n := range names {
		img, ok := byName[n]
		if !ok || img == nil {
			return nil, fmt.Errorf("%w: missing conditioning image for %q", ErrInvalidInput, n)
		}
		cond = append(cond, img)
	}
	return standardInput{native: StandardInput{
		Prompt:           p.Prompt,
		NegativePrompt:   p.NegativePrompt,
		StartingImage:    p.StartingImage,
		Mask:             p.Mask,
		Strength:         p.Strength,
		StepCount:        p.Steps,
		GuidanceScale:    p.GuidanceScale,
		Scheduler:        sched,
		DisableSafety:    !p.SafetyChecker,
		ControlNetInputs: cond,
		Preview:          p.Preview,
	}}, nil
}

func (b *StandardBackend) Generate(ctx context.Context, in Input, seed uint32, fn ProgressFunc) (image.Image, error) {
	b.mu.Lock()
	p := b.pipeline
	b.mu.Unlock()
	if p == nil {
		return nil, pipelineNotLoadedError{kind: KindStandard}
	}
	si, ok := in.(standardInput)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a standard input", ErrInvalidInput, in)
	}
	native := si.native
	native.Seed = seed

	stopped := false
	imgs, err := p.Generate(ctx, native, func(s StandardStep) bool {
		if fn == nil {
			return true
		}
		var preview func(bool) image.Image
		if s.CurrentImages != nil {
			preview = func(hq bool) image.Image { return first(s.CurrentImages(!hq)) }
		}
		if !fn(NewProgress(s.Step, s.StepCount, preview)) {
			stopped = true
			return false
		}
		return true
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
	img := first(imgs)
	if img == nil {
		return nil, generationFailureError{err: errors.New("pipeline returned no image")}
	}
	return img, nil
}

func first(imgs []image.Image) image.Image {
	if len(imgs) == 0 {
		return nil
	}
	return imgs[0]
}

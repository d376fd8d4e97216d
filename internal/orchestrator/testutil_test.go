package orchestrator

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"diffusiond/internal/backend"
	"diffusiond/internal/catalog"
	"diffusiond/internal/progress"
	"diffusiond/internal/results"
)

type fakeInput struct {
	kind  backend.Kind
	steps int
}

func (f fakeInput) Kind() backend.Kind { return f.kind }

// fakeBackend runs Steps progress callbacks per image and returns a solid frame.
type fakeBackend struct {
	kind backend.Kind

	mu       sync.Mutex
	loaded   bool
	loads    []backend.LoadOptions
	unloads  int
	prepares int
	params   backend.Params
	seeds    []uint32
	stepsRun int

	loadErr  error
	failSeed map[uint32]error
	// breakOnFail drops the pipeline when a seed fails.
	breakOnFail bool
	onStep      func(step int)
	block       chan struct{}
}

func (f *fakeBackend) Kind() backend.Kind { return f.kind }

func (f *fakeBackend) Loaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

func (f *fakeBackend) Load(ctx context.Context, opts backend.LoadOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, opts)
	if f.loadErr != nil {
		return f.loadErr
	}
	f.loaded = true
	return nil
}

func (f *fakeBackend) Prepare(p backend.Params) (backend.Input, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepares++
	f.params = p
	if !f.loaded {
		return nil, errors.New("not loaded")
	}
	return fakeInput{kind: f.kind, steps: p.Steps}, nil
}

func (f *fakeBackend) Generate(ctx context.Context, in backend.Input, seed uint32, fn backend.ProgressFunc) (image.Image, error) {
	f.mu.Lock()
	f.seeds = append(f.seeds, seed)
	failErr := f.failSeed[seed]
	if failErr != nil && f.breakOnFail {
		f.loaded = false
	}
	f.mu.Unlock()
	if failErr != nil {
		return nil, failErr
	}
	if f.block != nil {
		<-f.block
	}
	steps := in.(fakeInput).steps
	preview := func(hq bool) image.Image {
		if hq {
			return image.NewGray(image.Rect(0, 0, 8, 8))
		}
		return image.NewGray(image.Rect(0, 0, 2, 2))
	}
	for s := 1; s <= steps; s++ {
		f.mu.Lock()
		f.stepsRun++
		f.mu.Unlock()
		if f.onStep != nil {
			f.onStep(s)
		}
		if !fn(backend.NewProgress(s, steps, preview)) {
			return nil, backend.ErrCancelled
		}
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{R: uint8(seed), A: 255})
	return img, nil
}

func (f *fakeBackend) Unload() error {
	f.mu.Lock()
	f.loaded = false
	f.unloads++
	f.mu.Unlock()
	return nil
}

// harness wires an orchestrator to fakes and records every backend it builds.
type harness struct {
	o        *Orchestrator
	pub      *MemoryPublisher
	gallery  *results.MemoryGallery
	mu       sync.Mutex
	backends []*fakeBackend
	setup    func(*fakeBackend)
}

func newHarness(t *testing.T, models []catalog.ModelEntry, setup func(*fakeBackend)) *harness {
	t.Helper()
	h := &harness{pub: NewMemoryPublisher(), gallery: results.NewMemoryGallery(), setup: setup}
	h.o = New(Config{
		Models: models,
		NewBackend: func(k backend.Kind) backend.Backend {
			fb := &fakeBackend{kind: k}
			if h.setup != nil {
				h.setup(fb)
			}
			h.mu.Lock()
			h.backends = append(h.backends, fb)
			h.mu.Unlock()
			return fb
		},
		Sink:      h.gallery,
		Progress:  progress.NewBroadcaster(),
		Publisher: h.pub,
		Logger:    zerolog.Nop(),
		MaxWait:   50 * time.Millisecond,
		Seed:      func() uint32 { return 1000 },
	})
	return h
}

func (h *harness) built() []*fakeBackend {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*fakeBackend(nil), h.backends...)
}

func standardModel(name string) catalog.ModelEntry {
	return catalog.ModelEntry{Path: "/models/" + name, Name: name, Attention: catalog.AttentionOriginal}
}

func largeModel(name string) catalog.ModelEntry {
	return catalog.ModelEntry{Path: "/models/" + name, Name: name, Attention: catalog.AttentionOriginal, IsLargeVariant: true}
}

// queueIndices returns the index field of every queue publication.
func queueIndices(p *MemoryPublisher) []int {
	var out []int
	for _, e := range p.Named(EventQueue) {
		out = append(out, e.Fields["index"].(int))
	}
	return out
}

// states returns the published state sequence with consecutive duplicates collapsed.
func states(p *MemoryPublisher) []string {
	var out []string
	for _, e := range p.Named(EventState) {
		s := e.Fields["state"].(string)
		if len(out) == 0 || out[len(out)-1] != s {
			out = append(out, s)
		}
	}
	return out
}

// waitOp polls until the op leaves the running state.
func waitOp(t *testing.T, o *Orchestrator, id string) Op {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		op, ok := o.Op(id)
		if !ok {
			t.Fatalf("op %s missing", id)
		}
		if op.State != OpRunning {
			return op
		}
		if time.Now().After(deadline) {
			t.Fatalf("op %s still running", id)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

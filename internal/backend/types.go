package backend

import (
	"context"
	"fmt"
	"image"
	"strings"

	"diffusiond/internal/catalog"
)

// Kind identifies a backend family.
type Kind int

const (
	KindStandard Kind = iota
	KindExtended
)

func (k Kind) String() string {
	switch k {
	case KindStandard:
		return "standard"
	case KindExtended:
		return "extended"
	default:
		return "unknown"
	}
}

// ComputeUnits is the hardware preference handed to the runtime.
type ComputeUnits string

const (
	ComputeAuto            ComputeUnits = "auto"
	ComputeCPUOnly         ComputeUnits = "cpu-only"
	ComputeCPUAndGPU       ComputeUnits = "cpu-and-gpu"
	ComputeCPUAndNeuralEng ComputeUnits = "cpu-and-neural-engine"
	ComputeAll             ComputeUnits = "all"
)

// ParseComputeUnits accepts the five preference names; empty means auto.
func ParseComputeUnits(s string) (ComputeUnits, error) {
	switch u := ComputeUnits(strings.ToLower(strings.TrimSpace(s))); u {
	case "":
		return ComputeAuto, nil
	case ComputeAuto, ComputeCPUOnly, ComputeCPUAndGPU, ComputeCPUAndNeuralEng, ComputeAll:
		return u, nil
	default:
		return "", fmt.Errorf("%w: unknown compute units %q", ErrInvalidInput, s)
	}
}

// PreviewQuality is the fidelity of per-step preview frames requested from
// the runtime.
type PreviewQuality string

const (
	PreviewOff  PreviewQuality = ""
	PreviewLow  PreviewQuality = "low"
	PreviewHigh PreviewQuality = "high"
)

// ControlInput pairs a conditioning module name with its guidance image.
type ControlInput struct {
	Name  string
	Image image.Image
}

// Params are the shared generation fields, before translation to a family's
// native record.
type Params struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	StartingImage  image.Image
	Mask           image.Image
	Strength       float32
	Steps          int
	GuidanceScale  float32
	Scheduler      Scheduler
	SafetyChecker  bool
	ControlInputs  []ControlInput
	Preview        PreviewQuality
}

// LoadOptions selects what a backend loads.
type LoadOptions struct {
	Model        catalog.ModelEntry
	ControlNets  []string
	ComputeUnits ComputeUnits
	ReduceMemory bool
}

// Progress describes one completed diffusion step.
type Progress struct {
	Step       int
	TotalSteps int
	preview    func(highQuality bool) image.Image
}

// NewProgress builds a Progress; preview may be nil.
func NewProgress(step, total int, preview func(highQuality bool) image.Image) Progress {
	return Progress{Step: step, TotalSteps: total, preview: preview}
}

// Preview decodes the current latents. It returns nil when the runtime
// cannot provide an intermediate frame.
func (p Progress) Preview(highQuality bool) image.Image {
	if p.preview == nil {
		return nil
	}
	return p.preview(highQuality)
}

// ProgressFunc observes a step; returning false cancels the generation.
type ProgressFunc func(Progress) bool

// Input is a family-specific native parameter record built by Prepare.
type Input interface {
	Kind() Kind
}

// Backend is the uniform pipeline contract.
type Backend interface {
	Kind() Kind
	// Load replaces any loaded pipeline with one for opts.Model.
	Load(ctx context.Context, opts LoadOptions) error
	// Prepare translates shared params into the native record once per batch.
	Prepare(p Params) (Input, error)
	// Generate produces one image. It returns ErrCancelled when fn asked to stop.
	Generate(ctx context.Context, in Input, seed uint32, fn ProgressFunc) (image.Image, error)
	Unload() error
	Loaded() bool
}

package backend

import (
	"context"
	"image"

	"diffusiond/internal/catalog"
)

// StandardScheduler is the standard library's native scheduler enum.
type StandardScheduler int

const (
	StandardPNDM StandardScheduler = iota
	StandardDPMSolverMultistep
	StandardDiscreteFlow
)

// StandardConfig is what the standard library needs to build a pipeline.
type StandardConfig struct {
	ModelPath    string
	Attention    catalog.AttentionVariant
	ControlNets  []string
	ComputeUnits ComputeUnits
	ReduceMemory bool
}

// StandardInput is the standard library's per-image request.
type StandardInput struct {
	Prompt           string
	NegativePrompt   string
	StartingImage    image.Image
	Mask             image.Image
	Strength         float32
	StepCount        int
	Seed             uint32
	GuidanceScale    float32
	Scheduler        StandardScheduler
	DisableSafety    bool
	ControlNetInputs []image.Image
	// Preview asks the library for step frames at this fidelity.
	Preview PreviewQuality
}

// StandardStep is reported by the standard library after each step.
type StandardStep struct {
	Step      int
	StepCount int
	// CurrentImages decodes the current latents; approximate selects the
	// cheap latent-to-RGB path. May be nil.
	CurrentImages func(approximate bool) []image.Image
}

// StandardPipeline is one loaded standard pipeline. The handler is invoked
// after every step; a false return must stop the loop before the next step.
type StandardPipeline interface {
	Generate(ctx context.Context, in StandardInput, handler func(StandardStep) bool) ([]image.Image, error)
	Close() error
}

// StandardRuntime opens standard pipelines.
type StandardRuntime interface {
	Open(ctx context.Context, cfg StandardConfig) (StandardPipeline, error)
}

// ExtendedSampler is the extended library's native sampler name.
type ExtendedSampler string

const (
	SamplerEulerAncestral ExtendedSampler = "euler_a"
	SamplerDPMPP2M        ExtendedSampler = "dpmpp_2m"
	SamplerDPMPP2MKarras  ExtendedSampler = "dpmpp_2m_karras"
	SamplerLCM            ExtendedSampler = "lcm"
)

// ExtendedConfig is what the extended library needs to build a pipeline.
type ExtendedConfig struct {
	ModelPath    string
	Adapters     []string
	ComputeUnits ComputeUnits
	LowMemory    bool
}

// ExtendedInput is the extended library's per-image request. It carries the
// size and aesthetic conditioning the larger input schema requires.
type ExtendedInput struct {
	Prompt                 string
	NegativePrompt         string
	InitImage              image.Image
	InitMask               image.Image
	Denoise                float64
	Steps                  int
	Seed                   int64
	CFGScale               float64
	Sampler                ExtendedSampler
	SafetyFilter           bool
	Conditioning           map[string]image.Image
	OriginalSize           catalog.Size
	TargetSize             catalog.Size
	CropTopLeft            image.Point
	AestheticScore         float64
	NegativeAestheticScore float64
	Preview                PreviewQuality
}

// ExtendedProgress is reported by the extended library after each iteration.
type ExtendedProgress struct {
	Iteration int
	Total     int
	// Decode renders the current latents; fast selects a low-fidelity decode. May be nil.
	Decode func(fast bool) image.Image
}

// ExtendedPipeline is one loaded extended pipeline. The observer returns
// stop=true to end the run after the current iteration.
type ExtendedPipeline interface {
	Run(ctx context.Context, in ExtendedInput, observer func(ExtendedProgress) (stop bool)) (image.Image, error)
	Release() error
}

// ExtendedRuntime loads extended pipelines.
type ExtendedRuntime interface {
	Load(ctx context.Context, cfg ExtendedConfig) (ExtendedPipeline, error)
}

// unavailableRuntime satisfies both runtime contracts but refuses to load,
// so builds without a configured runtime fail fast rather than fake output.
type unavailableRuntime struct{ family string }

// UnavailableStandard returns a StandardRuntime that always fails to open.
func UnavailableStandard() StandardRuntime { return unavailableRuntime{family: "standard"} }

// UnavailableExtended returns an ExtendedRuntime that always fails to load.
func UnavailableExtended() ExtendedRuntime { return unavailableRuntime{family: "extended"} }

func (u unavailableRuntime) Open(ctx context.Context, cfg StandardConfig) (StandardPipeline, error) {
	return nil, ErrDependencyUnavailable("no " + u.family + " inference runtime configured")
}

func (u unavailableRuntime) Load(ctx context.Context, cfg ExtendedConfig) (ExtendedPipeline, error) {
	return nil, ErrDependencyUnavailable("no " + u.family + " inference runtime configured")
}

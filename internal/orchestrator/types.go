package orchestrator

import (
	"fmt"
	"image"
	"strings"

	"diffusiond/internal/backend"
	"diffusiond/internal/catalog"
	"diffusiond/internal/results"
)

// PreviewMode selects whether per-step preview frames are decoded.
type PreviewMode string

const (
	PreviewNone PreviewMode = "none"
	PreviewLow  PreviewMode = "low"
	PreviewHigh PreviewMode = "high"
)

// ParsePreviewMode accepts none, low and high; empty means none.
func ParsePreviewMode(s string) (PreviewMode, error) {
	switch PreviewMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", PreviewNone:
		return PreviewNone, nil
	case PreviewLow:
		return PreviewLow, nil
	case PreviewHigh:
		return PreviewHigh, nil
	default:
		return "", fmt.Errorf("unknown preview mode %q", s)
	}
}

// Request is one batch: Count images sharing every field but the seed.
type Request struct {
	Prompt         string
	NegativePrompt string
	// Size overrides the model's native resolution when set.
	Size          *catalog.Size
	StartingImage image.Image
	Mask          image.Image
	Strength      float32
	Steps         int
	// Seed 0 asks for a random starting seed.
	Seed          uint32
	GuidanceScale float32
	Scheduler     backend.Scheduler
	// Model is a catalog path or name; empty selects the first entry.
	Model         string
	ComputeUnits  backend.ComputeUnits
	Upscale       bool
	ControlInputs []backend.ControlInput
	SafetyChecker bool
	SaveDir       string
	SaveFormat    results.Format
	Count         int
	Preview       PreviewMode
}

const (
	defaultSteps    = 25
	defaultGuidance = 7.5
	defaultStrength = 0.75
)

// normalize fills defaults and validates the caller-controlled fields.
func (r Request) normalize() (Request, error) {
	if strings.TrimSpace(r.Prompt) == "" {
		return r, invalidRequest("prompt is required")
	}
	if r.Count == 0 {
		r.Count = 1
	}
	if r.Count < 0 {
		return r, invalidRequest("count must be positive")
	}
	if r.Steps == 0 {
		r.Steps = defaultSteps
	}
	if r.Steps < 0 {
		return r, invalidRequest("steps must be positive")
	}
	if r.GuidanceScale == 0 {
		r.GuidanceScale = defaultGuidance
	}
	if r.StartingImage != nil && r.Strength == 0 {
		r.Strength = defaultStrength
	}
	if r.Strength < 0 || r.Strength > 1 {
		return r, invalidRequest("strength must be within [0, 1]")
	}
	if r.Mask != nil && r.StartingImage == nil {
		return r, invalidRequest("mask requires a starting image")
	}
	if r.Size != nil && (r.Size.Width <= 0 || r.Size.Height <= 0) {
		return r, invalidRequest("size must be positive")
	}
	if r.Preview == "" {
		r.Preview = PreviewNone
	}
	seen := make(map[string]bool, len(r.ControlInputs))
	for _, c := range r.ControlInputs {
		if c.Name == "" || c.Image == nil {
			return r, invalidRequest("conditioning inputs need a name and an image")
		}
		if seen[c.Name] {
			return r, invalidRequest("duplicate conditioning input " + c.Name)
		}
		seen[c.Name] = true
	}
	return r, nil
}

func (r Request) controlNames() []string {
	out := make([]string, len(r.ControlInputs))
	for i, c := range r.ControlInputs {
		out[i] = c.Name
	}
	return out
}

func (r Request) params() backend.Params {
	p := backend.Params{
		Prompt:         r.Prompt,
		NegativePrompt: r.NegativePrompt,
		StartingImage:  r.StartingImage,
		Mask:           r.Mask,
		Strength:       r.Strength,
		Steps:          r.Steps,
		GuidanceScale:  r.GuidanceScale,
		Scheduler:      r.Scheduler,
		SafetyChecker:  r.SafetyChecker,
		ControlInputs:  append([]backend.ControlInput(nil), r.ControlInputs...),
	}
	switch r.Preview {
	case PreviewLow:
		p.Preview = backend.PreviewLow
	case PreviewHigh:
		p.Preview = backend.PreviewHigh
	}
	if r.Size != nil {
		p.Width, p.Height = r.Size.Width, r.Size.Height
	}
	return p
}

// BatchResult reports what a batch produced.
type BatchResult struct {
	Images    []results.GeneratedImage
	Failed    int
	Cancelled bool
	// FirstSeed is the realized seed of index 0.
	FirstSeed uint32
	// Message carries the last per-image failure, empty otherwise.
	Message string
}

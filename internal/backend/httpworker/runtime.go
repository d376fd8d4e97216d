package httpworker

import (
	"context"
	"errors"
	"image"
	"maps"
	"slices"
	"time"

	"diffusiond/internal/backend"
)

const unloadTimeout = 10 * time.Second

var standardSchedulerNames = map[backend.StandardScheduler]string{
	backend.StandardPNDM:               "pndm",
	backend.StandardDPMSolverMultistep: "dpm-solver-multistep",
	backend.StandardDiscreteFlow:       "discrete-flow",
}

var errNoPipelineID = errors.New("worker load reply carried no pipeline id")

func (c *Client) load(ctx context.Context, req loadRequest) (string, error) {
	var reply loadReply
	if err := c.call(ctx, "/v1/load", req, &reply); err != nil {
		return "", err
	}
	if reply.PipelineID == "" {
		return "", errNoPipelineID
	}
	c.log.Info().Str("family", req.Family).Str("model", req.ModelPath).Str("pipeline", reply.PipelineID).Msg("worker pipeline loaded")
	return reply.PipelineID, nil
}

func (c *Client) unload(id string) error {
	ctx, cancel := context.WithTimeout(context.Background(), unloadTimeout)
	defer cancel()
	return c.call(ctx, "/v1/unload", unloadRequest{PipelineID: id}, nil)
}

// previewQuality is the fidelity sent to the worker for q.
func (c *Client) previewQuality(q backend.PreviewQuality) string {
	if c.noPreviews {
		return ""
	}
	return string(q)
}

// previewFunc decodes a step preview lazily. The worker renders frames at
// the fidelity named in the request, so the decode flag is not consulted.
func (c *Client) previewFunc(data string) func() image.Image {
	if data == "" {
		return nil
	}
	return func() image.Image {
		img, err := decodeImage(data)
		if err != nil {
			c.log.Debug().Err(err).Msg("bad preview frame")
			return nil
		}
		return img
	}
}

type standardRuntime struct{ c *Client }

func (r standardRuntime) Open(ctx context.Context, cfg backend.StandardConfig) (backend.StandardPipeline, error) {
	id, err := r.c.load(ctx, loadRequest{
		Family:       familyStandard,
		ModelPath:    cfg.ModelPath,
		Attention:    string(cfg.Attention),
		ControlNets:  cfg.ControlNets,
		ComputeUnits: string(cfg.ComputeUnits),
		ReduceMemory: cfg.ReduceMemory,
	})
	if err != nil {
		return nil, err
	}
	return &standardPipeline{c: r.c, id: id, controlNets: append([]string(nil), cfg.ControlNets...)}, nil
}

type standardPipeline struct {
	c           *Client
	id          string
	controlNets []string
}

func (p *standardPipeline) Generate(ctx context.Context, in backend.StandardInput, handler func(backend.StandardStep) bool) ([]image.Image, error) {
	req := generateRequest{
		PipelineID:     p.id,
		Prompt:         in.Prompt,
		NegativePrompt: in.NegativePrompt,
		Strength:       float64(in.Strength),
		Steps:          in.StepCount,
		Seed:           int64(in.Seed),
		GuidanceScale:  float64(in.GuidanceScale),
		Scheduler:      standardSchedulerNames[in.Scheduler],
		SafetyChecker:  !in.DisableSafety,
		Previews:       p.c.previewQuality(in.Preview),
	}
	var err error
	if req.StartingImage, err = encodeImage(in.StartingImage); err != nil {
		return nil, err
	}
	if req.Mask, err = encodeImage(in.Mask); err != nil {
		return nil, err
	}
	for i, img := range in.ControlNetInputs {
		data, err := encodeImage(img)
		if err != nil {
			return nil, err
		}
		name := ""
		if i < len(p.controlNets) {
			name = p.controlNets[i]
		}
		req.Conditioning = append(req.Conditioning, conditioningJSON{Name: name, Image: data})
	}
	img, err := p.c.stream(ctx, req, func(l streamLine) bool {
		step := backend.StandardStep{Step: l.Step, StepCount: l.Total}
		if decode := p.c.previewFunc(l.Preview); decode != nil {
			step.CurrentImages = func(bool) []image.Image {
				if img := decode(); img != nil {
					return []image.Image{img}
				}
				return nil
			}
		}
		return handler(step)
	})
	if err != nil {
		return nil, err
	}
	return []image.Image{img}, nil
}

func (p *standardPipeline) Close() error { return p.c.unload(p.id) }

type extendedRuntime struct{ c *Client }

func (r extendedRuntime) Load(ctx context.Context, cfg backend.ExtendedConfig) (backend.ExtendedPipeline, error) {
	id, err := r.c.load(ctx, loadRequest{
		Family:       familyExtended,
		ModelPath:    cfg.ModelPath,
		ControlNets:  cfg.Adapters,
		ComputeUnits: string(cfg.ComputeUnits),
		ReduceMemory: cfg.LowMemory,
	})
	if err != nil {
		return nil, err
	}
	return &extendedPipeline{c: r.c, id: id}, nil
}

type extendedPipeline struct {
	c  *Client
	id string
}

func (p *extendedPipeline) Run(ctx context.Context, in backend.ExtendedInput, observer func(backend.ExtendedProgress) bool) (image.Image, error) {
	req := generateRequest{
		PipelineID:             p.id,
		Prompt:                 in.Prompt,
		NegativePrompt:         in.NegativePrompt,
		Strength:               in.Denoise,
		Steps:                  in.Steps,
		Seed:                   in.Seed,
		GuidanceScale:          in.CFGScale,
		Scheduler:              string(in.Sampler),
		SafetyChecker:          in.SafetyFilter,
		Previews:               p.c.previewQuality(in.Preview),
		OriginalSize:           &sizeJSON{Width: in.OriginalSize.Width, Height: in.OriginalSize.Height},
		TargetSize:             &sizeJSON{Width: in.TargetSize.Width, Height: in.TargetSize.Height},
		CropTopLeft:            []int{in.CropTopLeft.X, in.CropTopLeft.Y},
		AestheticScore:         in.AestheticScore,
		NegativeAestheticScore: in.NegativeAestheticScore,
	}
	var err error
	if req.StartingImage, err = encodeImage(in.InitImage); err != nil {
		return nil, err
	}
	if req.Mask, err = encodeImage(in.InitMask); err != nil {
		return nil, err
	}
	for _, name := range slices.Sorted(maps.Keys(in.Conditioning)) {
		data, err := encodeImage(in.Conditioning[name])
		if err != nil {
			return nil, err
		}
		req.Conditioning = append(req.Conditioning, conditioningJSON{Name: name, Image: data})
	}
	return p.c.stream(ctx, req, func(l streamLine) bool {
		ev := backend.ExtendedProgress{Iteration: l.Step, Total: l.Total}
		if decode := p.c.previewFunc(l.Preview); decode != nil {
			ev.Decode = func(bool) image.Image { return decode() }
		}
		return !observer(ev)
	})
}

func (p *extendedPipeline) Release() error { return p.c.unload(p.id) }

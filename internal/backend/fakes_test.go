package backend

import (
	"context"
	"errors"
	"image"
	"image/color"
)

func solid(c uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = c
	}
	return img
}

// fakeStandardRuntime records what it was asked to open and run.
type fakeStandardRuntime struct {
	openErr error
	genErr  error
	cfg     StandardConfig
	last    StandardInput
	steps   int
	closed  int
}

func (f *fakeStandardRuntime) Open(ctx context.Context, cfg StandardConfig) (StandardPipeline, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.cfg = cfg
	return &fakeStandardPipeline{rt: f}, nil
}

type fakeStandardPipeline struct{ rt *fakeStandardRuntime }

func (p *fakeStandardPipeline) Generate(ctx context.Context, in StandardInput, handler func(StandardStep) bool) ([]image.Image, error) {
	p.rt.last = in
	if p.rt.genErr != nil {
		return nil, p.rt.genErr
	}
	for i := 1; i <= in.StepCount; i++ {
		p.rt.steps++
		step := StandardStep{Step: i, StepCount: in.StepCount, CurrentImages: func(approx bool) []image.Image {
			if approx {
				return []image.Image{solid(1)}
			}
			return []image.Image{solid(2)}
		}}
		if !handler(step) {
			return nil, nil
		}
	}
	return []image.Image{image.NewUniform(color.White)}, nil
}

func (p *fakeStandardPipeline) Close() error {
	p.rt.closed++
	return nil
}

type fakeExtendedRuntime struct {
	loadErr  error
	cfg      ExtendedConfig
	last     ExtendedInput
	steps    int
	released int
}

func (f *fakeExtendedRuntime) Load(ctx context.Context, cfg ExtendedConfig) (ExtendedPipeline, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	f.cfg = cfg
	return &fakeExtendedPipeline{rt: f}, nil
}

type fakeExtendedPipeline struct{ rt *fakeExtendedRuntime }

func (p *fakeExtendedPipeline) Run(ctx context.Context, in ExtendedInput, observer func(ExtendedProgress) bool) (image.Image, error) {
	p.rt.last = in
	for i := 1; i <= in.Steps; i++ {
		p.rt.steps++
		if observer(ExtendedProgress{Iteration: i, Total: in.Steps, Decode: func(fast bool) image.Image { return solid(3) }}) {
			return nil, nil
		}
	}
	if in.Steps == 0 {
		return nil, errors.New("zero steps")
	}
	return solid(9), nil
}

func (p *fakeExtendedPipeline) Release() error {
	p.rt.released++
	return nil
}

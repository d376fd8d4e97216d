package orchestrator

import (
	"context"
	"image"

	"github.com/google/uuid"

	"diffusiond/internal/catalog"
	"diffusiond/internal/results"
)

// deliver builds the result record and routes it through the optional
// upscaler, autosave and sink. Failures past generation are logged and the
// image is still reported.
func (o *Orchestrator) deliver(ctx context.Context, req Request, entry catalog.ModelEntry, img image.Image, seed uint32) results.GeneratedImage {
	rec := results.GeneratedImage{
		ID:             uuid.NewString(),
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Model:          entry.Name,
		Scheduler:      string(req.Scheduler),
		Steps:          req.Steps,
		GuidanceScale:  req.GuidanceScale,
		Strength:       req.Strength,
		Seed:           seed,
		GeneratedAt:    o.now(),
		Image:          img,
	}
	if req.Upscale {
		if o.upscaler == nil {
			o.log.Warn().Msg("upscale requested but no upscaler configured")
		} else if up, label, err := o.upscaler.Upscale(ctx, img); err != nil {
			o.log.Warn().Err(err).Uint32("seed", seed).Msg("upscale failed, keeping original")
		} else if up == nil {
			o.log.Warn().Str("upscaler", label).Uint32("seed", seed).Msg("upscaler returned no image, keeping original")
		} else {
			rec.Image, rec.Upscaler = up, label
		}
	}
	b := rec.Image.Bounds()
	rec.Width, rec.Height = b.Dx(), b.Dy()

	if req.SaveDir != "" && o.saver != nil {
		if path, err := o.saver.Save(ctx, rec, req.SaveDir, req.SaveFormat); err != nil {
			o.log.Warn().Err(err).Str("dir", req.SaveDir).Msg("autosave failed")
		} else {
			rec.Path = path
		}
	}
	if o.sink != nil {
		if id, err := o.sink.Store(ctx, rec); err != nil {
			o.log.Warn().Err(err).Str("id", rec.ID).Msg("result sink rejected image")
		} else {
			rec.ID = id
		}
	}
	o.publisher.Publish(Event{Name: EventImage, Model: entry.Path, Fields: map[string]any{
		"id":   rec.ID,
		"seed": seed,
		"path": rec.Path,
	}})
	return rec
}

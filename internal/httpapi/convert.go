package httpapi

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"
	"time"

	"diffusiond/internal/backend"
	"diffusiond/internal/catalog"
	"diffusiond/internal/orchestrator"
	"diffusiond/internal/progress"
	"diffusiond/internal/results"
	"diffusiond/pkg/types"
)

// apiError carries a status chosen by the HTTP layer itself.
type apiError struct {
	code int
	msg  string
}

func (e apiError) Error() string   { return e.msg }
func (e apiError) StatusCode() int { return e.code }

func badRequest(format string, args ...any) error {
	return apiError{code: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func unprocessable(format string, args ...any) error {
	return apiError{code: http.StatusUnprocessableEntity, msg: fmt.Sprintf(format, args...)}
}

// toRequest decodes the wire payload into an orchestrator request. Image
// fields accept raw base64 or a data URL.
func toRequest(in types.GenerateRequest) (orchestrator.Request, error) {
	out := orchestrator.Request{
		Prompt:         in.Prompt,
		NegativePrompt: in.NegativePrompt,
		Strength:       in.Strength,
		Steps:          in.Steps,
		Seed:           in.Seed,
		GuidanceScale:  in.GuidanceScale,
		Scheduler:      backend.Scheduler(strings.ToLower(strings.TrimSpace(in.Scheduler))),
		Model:          in.Model,
		Upscale:        in.Upscale,
		SafetyChecker:  in.SafetyChecker,
		SaveDir:        in.SaveDir,
		Count:          in.Count,
	}
	if in.Size != nil {
		out.Size = &catalog.Size{Width: in.Size.Width, Height: in.Size.Height}
	}
	var err error
	if out.ComputeUnits, err = backend.ParseComputeUnits(in.ComputeUnits); err != nil {
		return out, err
	}
	if out.Preview, err = orchestrator.ParsePreviewMode(in.Preview); err != nil {
		return out, unprocessable("%v", err)
	}
	if in.SaveFormat == "" {
		out.SaveFormat = defaultSaveFormat
	} else if out.SaveFormat, err = results.ParseFormat(in.SaveFormat); err != nil {
		return out, unprocessable("%v", err)
	}
	if out.SaveDir == "" {
		out.SaveDir = defaultSaveDir
	}
	if out.StartingImage, err = decodeImage("starting_image", in.StartingImage); err != nil {
		return out, err
	}
	if out.Mask, err = decodeImage("mask", in.Mask); err != nil {
		return out, err
	}
	for _, c := range in.ControlInputs {
		img, err := decodeImage("control_inputs."+c.Name, c.Image)
		if err != nil {
			return out, err
		}
		out.ControlInputs = append(out.ControlInputs, backend.ControlInput{Name: c.Name, Image: img})
	}
	return out, nil
}

func decodeImage(field, s string) (image.Image, error) {
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, badRequest("%s: invalid base64", field)
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, badRequest("%s: %v", field, err)
	}
	return img, nil
}

func imageSummary(img results.GeneratedImage) types.ImageSummary {
	return types.ImageSummary{
		ID:             img.ID,
		Prompt:         img.Prompt,
		NegativePrompt: img.NegativePrompt,
		Model:          img.Model,
		Scheduler:      img.Scheduler,
		Steps:          img.Steps,
		GuidanceScale:  img.GuidanceScale,
		Strength:       img.Strength,
		Width:          img.Width,
		Height:         img.Height,
		Seed:           img.Seed,
		GeneratedAt:    img.GeneratedAt.UnixMilli(),
		Path:           img.Path,
		Upscaler:       img.Upscaler,
	}
}

func batchResponse(res orchestrator.BatchResult) *types.GenerateResponse {
	out := &types.GenerateResponse{
		Images:    make([]types.ImageSummary, 0, len(res.Images)),
		Failed:    res.Failed,
		Cancelled: res.Cancelled,
		Message:   res.Message,
	}
	for _, img := range res.Images {
		out.Images = append(out.Images, imageSummary(img))
	}
	return out
}

func opStatus(op orchestrator.Op) types.OpStatus {
	out := types.OpStatus{
		ID:      op.ID,
		State:   string(op.State),
		Error:   op.Err,
		Started: op.Started.Unix(),
	}
	if op.State != orchestrator.OpRunning {
		out.Result = batchResponse(op.Result)
		out.Finished = op.Finished.Unix()
	}
	return out
}

func progressEvent(s progress.Snapshot) types.ProgressEvent {
	return types.ProgressEvent{
		State:      string(s.State),
		Message:    s.Message,
		Model:      s.Model,
		Step:       s.Step,
		TotalSteps: s.TotalSteps,
		QueueIndex: s.QueueIndex,
		QueueTotal: s.QueueTotal,
		LastStepMS: float64(s.LastStepLatency) / float64(time.Millisecond),
		HasPreview: s.Preview != nil,
		UpdatedAt:  s.UpdatedAt.UnixMilli(),
	}
}

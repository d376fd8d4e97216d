package httpworker

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	// decoders for worker replies that are not PNG
	_ "image/jpeg"
)

const (
	familyStandard = "standard"
	familyExtended = "extended"
)

type loadRequest struct {
	Family       string   `json:"family"`
	ModelPath    string   `json:"model_path"`
	Attention    string   `json:"attention,omitempty"`
	ControlNets  []string `json:"controlnets,omitempty"`
	ComputeUnits string   `json:"compute_units,omitempty"`
	ReduceMemory bool     `json:"reduce_memory,omitempty"`
}

type loadReply struct {
	PipelineID string `json:"pipeline_id"`
}

type unloadRequest struct {
	PipelineID string `json:"pipeline_id"`
}

type sizeJSON struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type conditioningJSON struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

// generateRequest is shared by both families; extended-only fields are omitted
// for standard pipelines.
type generateRequest struct {
	PipelineID     string             `json:"pipeline_id"`
	Prompt         string             `json:"prompt"`
	NegativePrompt string             `json:"negative_prompt,omitempty"`
	StartingImage  string             `json:"starting_image,omitempty"`
	Mask           string             `json:"mask,omitempty"`
	Strength       float64            `json:"strength,omitempty"`
	Steps          int                `json:"steps"`
	Seed           int64              `json:"seed"`
	GuidanceScale  float64            `json:"guidance_scale"`
	Scheduler      string             `json:"scheduler"`
	SafetyChecker  bool               `json:"safety_checker"`
	Conditioning   []conditioningJSON `json:"conditioning,omitempty"`
	Previews       string             `json:"previews,omitempty"` // low | high

	OriginalSize           *sizeJSON `json:"original_size,omitempty"`
	TargetSize             *sizeJSON `json:"target_size,omitempty"`
	CropTopLeft            []int     `json:"crop_top_left,omitempty"`
	AestheticScore         float64   `json:"aesthetic_score,omitempty"`
	NegativeAestheticScore float64   `json:"negative_aesthetic_score,omitempty"`
}

// streamLine is one NDJSON line of a generate reply.
type streamLine struct {
	Type    string `json:"type"` // step | image | error
	Step    int    `json:"step,omitempty"`
	Total   int    `json:"total,omitempty"`
	Preview string `json:"preview,omitempty"`
	Image   string `json:"image,omitempty"`
	Error   string `json:"error,omitempty"`
}

func encodeImage(img image.Image) (string, error) {
	if img == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func decodeImage(s string) (image.Image, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode base64 image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

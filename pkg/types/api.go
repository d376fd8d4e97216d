package types

// ControlInput is a named conditioning image, base64-encoded PNG or JPEG.
type ControlInput struct {
	// example: canny
	Name string `json:"name" example:"canny"`
	// Base64-encoded image data.
	Image string `json:"image"`
}

// GenerateRequest represents a generation batch payload.
type GenerateRequest struct {
	// Required prompt text.
	// example: a lighthouse on a cliff at dusk, oil painting
	Prompt string `json:"prompt" example:"a lighthouse on a cliff at dusk, oil painting"`
	// example: blurry, low quality
	NegativePrompt string `json:"negative_prompt,omitempty" example:"blurry, low quality"`
	// Model path or name. If empty, the first catalogued model is used.
	// example: stable-diffusion-2-1
	Model string `json:"model,omitempty" example:"stable-diffusion-2-1"`
	// Output size; defaults to the model's native resolution.
	Size *Size `json:"size,omitempty"`
	// Base64-encoded starting image for image-to-image.
	StartingImage string `json:"starting_image,omitempty"`
	// Base64-encoded inpainting mask; requires starting_image.
	Mask string `json:"mask,omitempty"`
	// Denoise strength for image-to-image, in [0, 1].
	// example: 0.75
	Strength float32 `json:"strength,omitempty" example:"0.75"`
	// example: 25
	Steps int `json:"steps,omitempty" example:"25"`
	// Starting seed; 0 or omitted lets the server choose. Each further image uses seed+1.
	// example: 42
	Seed uint32 `json:"seed,omitempty" example:"42"`
	// example: 7.5
	GuidanceScale float32 `json:"guidance_scale,omitempty" example:"7.5"`
	// Scheduler name; must be supported by the model's backend.
	// example: dpm-solver-multistep
	Scheduler string `json:"scheduler,omitempty" example:"dpm-solver-multistep"`
	// auto, cpu-only, cpu-and-gpu, cpu-and-neural-engine or all.
	// example: auto
	ComputeUnits string `json:"compute_units,omitempty" example:"auto"`
	// Route finished images through the upscaler.
	// example: false
	Upscale       bool           `json:"upscale,omitempty" example:"false"`
	ControlInputs []ControlInput `json:"control_inputs,omitempty"`
	// example: true
	SafetyChecker bool `json:"safety_checker,omitempty" example:"true"`
	// Directory for autosave; empty disables it unless the server sets a default.
	SaveDir string `json:"save_dir,omitempty"`
	// png, jpeg, bmp or tiff.
	// example: png
	SaveFormat string `json:"save_format,omitempty" example:"png"`
	// Number of images in the batch.
	// example: 1
	Count int `json:"count,omitempty" example:"1"`
	// none, low or high.
	// example: low
	Preview string `json:"preview,omitempty" example:"low"`
	// When true the batch runs in the background and the response carries an operation id.
	// example: false
	Async bool `json:"async,omitempty" example:"false"`
}

// ImageSummary describes a generated image without pixel data.
type ImageSummary struct {
	// example: 0b8e5a4e-8e53-4a1c-9a1e-5b5f5c1d2e3f
	ID string `json:"id" example:"0b8e5a4e-8e53-4a1c-9a1e-5b5f5c1d2e3f"`
	// example: a lighthouse on a cliff at dusk, oil painting
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Model          string  `json:"model"`
	Scheduler      string  `json:"scheduler"`
	Steps          int     `json:"steps"`
	GuidanceScale  float32 `json:"guidance_scale"`
	Strength       float32 `json:"strength,omitempty"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	// example: 42
	Seed uint32 `json:"seed" example:"42"`
	// Unix milliseconds.
	GeneratedAt int64 `json:"generated_at_ms"`
	// Autosave location, when the image was saved.
	Path string `json:"path,omitempty"`
	// Upscaler label, when the image was upscaled.
	// example: catmull-rom-2x
	Upscaler string `json:"upscaler,omitempty" example:"catmull-rom-2x"`
}

// GenerateResponse is returned by POST /generate.
type GenerateResponse struct {
	// Operation id for async submissions.
	OpID      string         `json:"op_id,omitempty"`
	Images    []ImageSummary `json:"images,omitempty"`
	Failed    int            `json:"failed,omitempty"`
	Cancelled bool           `json:"cancelled,omitempty"`
	// Last per-image failure message, if any.
	Message string `json:"message,omitempty"`
}

// OpStatus reports a background batch.
type OpStatus struct {
	ID string `json:"id"`
	// running, done or failed.
	// example: done
	State    string            `json:"state" example:"done"`
	Error    string            `json:"error,omitempty"`
	Result   *GenerateResponse `json:"result,omitempty"`
	Started  int64             `json:"started_unix"`
	Finished int64             `json:"finished_unix,omitempty"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	// List of available models.
	Models []Model `json:"models"`
}

// ModelMatchResponse is returned by GET /models/match.
type ModelMatchResponse struct {
	Model Model `json:"model"`
	// False when no group entry shared the selected model's resolution and
	// the first group entry was returned.
	Matched bool `json:"matched" example:"true"`
}

// ImagesResponse wraps a gallery listing.
type ImagesResponse struct {
	Images []ImageSummary `json:"images"`
}

// CancelResponse is returned by POST /cancel.
type CancelResponse struct {
	// True when a batch was running when the flag was raised.
	// example: true
	Running bool `json:"running" example:"true"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// LoadedPipeline describes the backend slot.
type LoadedPipeline struct {
	// example: stable-diffusion-2-1
	Model string `json:"model" example:"stable-diffusion-2-1"`
	// example: standard
	Backend     string   `json:"backend" example:"standard"`
	ControlNets []string `json:"controlnets,omitempty"`
	// example: 1700000000
	LoadedAt int64 `json:"loaded_unix" example:"1700000000"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// ready, loading, running or error.
	// example: running
	State string `json:"state" example:"running"`
	// Failure or informational message attached to the state.
	Message string `json:"message,omitempty"`
	// example: stable-diffusion-2-1
	Model string `json:"model,omitempty" example:"stable-diffusion-2-1"`
	// example: 7
	Step int `json:"step" example:"7"`
	// example: 25
	TotalSteps int `json:"total_steps" example:"25"`
	// Index of the image in progress within the batch.
	// example: 0
	QueueIndex int `json:"queue_index" example:"0"`
	// example: 3
	QueueTotal int `json:"queue_total" example:"3"`
	// Wall-clock time of the last diffusion step in milliseconds.
	// example: 412.5
	LastStepMS float64 `json:"last_step_ms" example:"412.5"`
	// True while a batch holds the slot.
	Busy bool `json:"busy"`
	// Loaded pipeline, when one is resident.
	Loaded *LoadedPipeline `json:"loaded,omitempty"`
	// Number of catalogued models.
	// example: 4
	Models int `json:"models" example:"4"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// ProgressEvent is one server-sent event on GET /events.
type ProgressEvent struct {
	State      string  `json:"state"`
	Message    string  `json:"message,omitempty"`
	Model      string  `json:"model,omitempty"`
	Step       int     `json:"step"`
	TotalSteps int     `json:"total_steps"`
	QueueIndex int     `json:"queue_index"`
	QueueTotal int     `json:"queue_total"`
	LastStepMS float64 `json:"last_step_ms"`
	// True when GET /preview has a frame for this step.
	HasPreview bool  `json:"has_preview"`
	UpdatedAt  int64 `json:"updated_unix_ms"`
}

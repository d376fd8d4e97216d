package types

// Size is an image resolution in pixels.
type Size struct {
	// example: 512
	Width int `json:"width" example:"512"`
	// example: 768
	Height int `json:"height" example:"768"`
}

// ConditioningModule is an auxiliary guidance network a model can load.
type ConditioningModule struct {
	// Module name, used as the key for conditioning inputs.
	// example: canny
	Name string `json:"name" example:"canny"`
	// Either conditioningNet or adapterNet.
	// example: conditioningNet
	Kind string `json:"kind" example:"conditioningNet"`
	// example: /home/user/diffusion/controlnet/canny.mlmodelc
	Path string `json:"path" example:"/home/user/diffusion/controlnet/canny.mlmodelc"`
	// Native resolution, when the module declares one.
	Resolution *Size `json:"resolution,omitempty"`
}

// Model is one catalogued model package.
type Model struct {
	// Display name, taken from the package directory.
	// example: stable-diffusion-2-1
	Name string `json:"name" example:"stable-diffusion-2-1"`
	// Absolute path to the package directory.
	// example: /home/user/diffusion/models/stable-diffusion-2-1
	Path string `json:"path" example:"/home/user/diffusion/models/stable-diffusion-2-1"`
	// Attention implementation compiled into the package: original, split-einsum or empty.
	// example: split-einsum
	Attention string `json:"attention,omitempty" example:"split-einsum"`
	// True when the package accepts conditioning-module residuals.
	// example: false
	ExtendedCapable bool `json:"extended_capable" example:"false"`
	// True for large-variant packages, which run on the extended backend.
	// example: false
	LargeVariant bool `json:"large_variant" example:"false"`
	// Backend family that serves this model: standard or extended.
	// example: standard
	Backend string `json:"backend" example:"standard"`
	// Schedulers the backend family accepts.
	Schedulers []string `json:"schedulers"`
	// Native resolution probed from the encoder, when present.
	Resolution *Size `json:"resolution,omitempty"`
	// Conditioning modules associated with this model.
	ControlNets []ConditioningModule `json:"controlnets,omitempty"`
}

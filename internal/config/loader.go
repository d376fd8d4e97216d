package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr             string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir        string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	ConditioningDir  string `json:"conditioning_dir" yaml:"conditioning_dir" toml:"conditioning_dir"`
	LinkConditioning bool   `json:"link_conditioning" yaml:"link_conditioning" toml:"link_conditioning"`
	ReduceMemory     bool   `json:"reduce_memory" yaml:"reduce_memory" toml:"reduce_memory"`
	ComputeUnits     string `json:"compute_units" yaml:"compute_units" toml:"compute_units"`

	WorkerURL        string `json:"worker_url" yaml:"worker_url" toml:"worker_url"`
	WorkerAPIKey     string `json:"worker_api_key" yaml:"worker_api_key" toml:"worker_api_key"`
	WorkerTimeoutSec int    `json:"worker_timeout_sec" yaml:"worker_timeout_sec" toml:"worker_timeout_sec"`
	NoPreviews       bool   `json:"no_previews" yaml:"no_previews" toml:"no_previews"`

	GalleryPath    string `json:"gallery_path" yaml:"gallery_path" toml:"gallery_path"`
	NoGallery      bool   `json:"no_gallery" yaml:"no_gallery" toml:"no_gallery"`
	AutosaveDir    string `json:"autosave_dir" yaml:"autosave_dir" toml:"autosave_dir"`
	AutosaveFormat string `json:"autosave_format" yaml:"autosave_format" toml:"autosave_format"`
	UpscaleFactor  int    `json:"upscale_factor" yaml:"upscale_factor" toml:"upscale_factor"`

	MaxWaitSec  int      `json:"max_wait_sec" yaml:"max_wait_sec" toml:"max_wait_sec"`
	CORSOrigins []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`

	LogLevel   string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFile    string `json:"log_file" yaml:"log_file" toml:"log_file"`
	LogConsole bool   `json:"log_console" yaml:"log_console" toml:"log_console"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}

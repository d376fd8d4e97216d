package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Defaults applied by WithDefaults.
const (
	DefaultAddr           = ":8088"
	DefaultModelsDir      = "~/.diffusiond/models"
	DefaultGalleryPath    = "~/.diffusiond/gallery.db"
	DefaultComputeUnits   = "auto"
	DefaultAutosaveFormat = "png"
	DefaultUpscaleFactor  = 2
	DefaultMaxWaitSec     = 30
	DefaultLogLevel       = "info"
)

// Defaults returns a Config with every default filled in.
func Defaults() Config { return Config{}.WithDefaults() }

// WithDefaults replaces unspecified fields.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.ModelsDir == "" {
		c.ModelsDir = DefaultModelsDir
	}
	if c.GalleryPath == "" {
		c.GalleryPath = DefaultGalleryPath
	}
	if c.ComputeUnits == "" {
		c.ComputeUnits = DefaultComputeUnits
	}
	if c.AutosaveFormat == "" {
		c.AutosaveFormat = DefaultAutosaveFormat
	}
	if c.UpscaleFactor <= 0 {
		c.UpscaleFactor = DefaultUpscaleFactor
	}
	if c.MaxWaitSec <= 0 {
		c.MaxWaitSec = DefaultMaxWaitSec
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	return c
}

// EnvPrefix namespaces environment overrides.
const EnvPrefix = "DIFFUSIOND_"

// ApplyEnv overrides fields from DIFFUSIOND_* variables. lookup defaults to
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = b
		return nil
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("ADDR", &c.Addr)
	str("MODELS_DIR", &c.ModelsDir)
	str("CONDITIONING_DIR", &c.ConditioningDir)
	str("COMPUTE_UNITS", &c.ComputeUnits)
	str("WORKER_URL", &c.WorkerURL)
	str("WORKER_API_KEY", &c.WorkerAPIKey)
	str("GALLERY_PATH", &c.GalleryPath)
	str("AUTOSAVE_DIR", &c.AutosaveDir)
	str("AUTOSAVE_FORMAT", &c.AutosaveFormat)
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FILE", &c.LogFile)
	if v, ok := lookup(EnvPrefix + "CORS_ORIGINS"); ok {
		c.CORSOrigins = SplitCSV(v)
	}
	for name, dst := range map[string]*bool{
		"LINK_CONDITIONING": &c.LinkConditioning,
		"REDUCE_MEMORY":     &c.ReduceMemory,
		"NO_PREVIEWS":       &c.NoPreviews,
		"NO_GALLERY":        &c.NoGallery,
		"LOG_CONSOLE":       &c.LogConsole,
	} {
		if err := boolean(name, dst); err != nil {
			return err
		}
	}
	for name, dst := range map[string]*int{
		"WORKER_TIMEOUT_SEC": &c.WorkerTimeoutSec,
		"UPSCALE_FACTOR":     &c.UpscaleFactor,
		"MAX_WAIT_SEC":       &c.MaxWaitSec,
	} {
		if err := integer(name, dst); err != nil {
			return err
		}
	}
	return nil
}

// SplitCSV splits a comma-separated list, trimming blanks.
func SplitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

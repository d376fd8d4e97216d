package httpapi

import "diffusiond/internal/results"

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
// Generation payloads carry base64 images, so the default is 32 MiB.
var maxBodyBytes int64 = defaultMaxBodyBytes

const defaultMaxBodyBytes = 32 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
		return
	}
	maxBodyBytes = n
}

// generateTimeout bounds a synchronous /generate call in seconds.
// Zero means no additional timeout beyond server/connection timeouts.
var generateTimeout = int64(0)

// SetGenerateTimeoutSeconds sets the synchronous generate timeout (0 disables).
func SetGenerateTimeoutSeconds(sec int64) {
	if sec < 0 {
		sec = 0
	}
	generateTimeout = sec
}

// Autosave defaults applied when a request names neither directory nor format.
var (
	defaultSaveDir    string
	defaultSaveFormat = results.FormatPNG
)

// SetAutosaveDefaults configures the server-wide autosave directory and format.
func SetAutosaveDefaults(dir string, f results.Format) {
	defaultSaveDir = dir
	if f == "" {
		f = results.FormatPNG
	}
	defaultSaveFormat = f
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}

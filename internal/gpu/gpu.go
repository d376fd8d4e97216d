// Package gpu resolves the "auto" compute-unit preference into a concrete
// one by probing for accelerator devices.
package gpu

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"diffusiond/internal/backend"
)

// ErrNoSupport is returned by the detector in builds without NVML.
var ErrNoSupport = errors.New("gpu detection not compiled in (build with -tags=cuda)")

// Detector counts usable accelerator devices.
type Detector interface {
	DeviceCount() (int, error)
}

// Resolver maps ComputeAuto onto a concrete preference. The probe runs once.
type Resolver struct {
	det Detector
	log zerolog.Logger

	once  sync.Once
	units backend.ComputeUnits
}

// NewResolver uses the NVML detector when compiled with the cuda tag.
func NewResolver(log zerolog.Logger) *Resolver {
	return NewResolverWith(defaultDetector(), log)
}

func NewResolverWith(det Detector, log zerolog.Logger) *Resolver {
	return &Resolver{det: det, log: log}
}

// Resolve returns u unchanged unless it is empty or auto.
func (r *Resolver) Resolve(u backend.ComputeUnits) backend.ComputeUnits {
	if u != "" && u != backend.ComputeAuto {
		return u
	}
	r.once.Do(func() {
		r.units = backend.ComputeCPUOnly
		n, err := r.det.DeviceCount()
		if err != nil {
			r.log.Debug().Err(err).Msg("gpu probe unavailable, using cpu-only")
			return
		}
		if n > 0 {
			r.units = backend.ComputeCPUAndGPU
		}
		r.log.Info().Int("devices", n).Str("compute_units", string(r.units)).Msg("resolved compute units")
	})
	return r.units
}

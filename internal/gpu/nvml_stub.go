//go:build !cuda

package gpu

type noDetector struct{}

func defaultDetector() Detector { return noDetector{} }

func (noDetector) DeviceCount() (int, error) { return 0, ErrNoSupport }

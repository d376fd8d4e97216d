//go:build cuda

package gpu

import (
	"fmt"

	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

type nvmlDetector struct{}

func defaultDetector() Detector { return nvmlDetector{} }

func (nvmlDetector) DeviceCount() (int, error) {
	if ret := nvml.Init(); ret != nvml.SUCCESS {
		return 0, fmt.Errorf("nvml init: %s", nvml.ErrorString(ret))
	}
	defer nvml.Shutdown()
	n, ret := nvml.DeviceGetCount()
	if ret != nvml.SUCCESS {
		return 0, fmt.Errorf("nvml device count: %s", nvml.ErrorString(ret))
	}
	return n, nil
}

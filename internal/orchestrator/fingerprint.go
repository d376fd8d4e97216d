package orchestrator

import (
	"slices"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"diffusiond/internal/backend"
	"diffusiond/internal/catalog"
)

// Fingerprint keys pipeline reuse: a loaded backend is kept only when the
// family and this value both match the next batch.
func Fingerprint(kind backend.Kind, modelPath string, conditioning []string, units backend.ComputeUnits, size *catalog.Size, hasStartingImage bool) uint64 {
	names := slices.Clone(conditioning)
	slices.Sort(names)

	d := xxhash.New()
	write := func(s string) {
		_, _ = d.WriteString(s)
		_, _ = d.Write([]byte{0})
	}
	write(kind.String())
	write(modelPath)
	write(strconv.Itoa(len(names)))
	for _, n := range names {
		write(n)
	}
	write(string(units))
	if size != nil {
		write(size.String())
	} else {
		write("native")
	}
	write(strconv.FormatBool(hasStartingImage))
	return d.Sum64()
}

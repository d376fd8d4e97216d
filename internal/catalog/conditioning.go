package catalog

import (
	"os"
	"path/filepath"
	"strings"

	"diffusiond/internal/common/fsutil"
)

// KindClassifier decides which family a conditioning package belongs to.
type KindClassifier func(name, path string) ConditioningKind

// DefaultKindClassifier treats packages named like adapters as adapter nets.
func DefaultKindClassifier(name, _ string) ConditioningKind {
	if strings.Contains(strings.ToLower(name), "adapter") {
		return KindAdapterNet
	}
	return KindConditioningNet
}

const conditioningPackageExt = ".mlmodelc"

// ScanConditioning lists the conditioning packages in dir. Conditioning is
// optional, so a missing or unreadable directory yields an empty list.
func ScanConditioning(dir string, classify KindClassifier) []ConditioningModule {
	if dir == "" {
		return nil
	}
	if classify == nil {
		classify = DefaultKindClassifier
	}
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil
	}
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil
	}
	var out []ConditioningModule
	for _, e := range entries {
		if fsutil.IsHidden(e.Name()) {
			continue
		}
		real, ok := fsutil.ResolveDir(filepath.Join(base, e.Name()))
		if !ok {
			continue
		}
		name := strings.TrimSuffix(e.Name(), conditioningPackageExt)
		mod := ConditioningModule{Path: real, Name: name, Kind: classify(name, real)}
		mod.Resolution = probeConditioningResolution(real)
		out = append(out, mod)
	}
	sortByName(out, func(m ConditioningModule) string { return m.Name })
	return out
}

// probeConditioningResolution looks for the guidance image input in the
// package descriptor. Any failure leaves the module unconstrained.
func probeConditioningResolution(pkg string) *Size {
	d, err := readDescriptor(filepath.Join(pkg, "metadata.json"))
	if err != nil {
		return nil
	}
	for _, in := range d.InputSchema {
		dims, err := parseShape(in.Shape)
		if err != nil || len(dims) < 4 || dims[1] != 3 {
			continue
		}
		return &Size{Width: dims[3], Height: dims[2]}
	}
	return nil
}

// compatibleModules returns the modules a model at res may load.
func compatibleModules(mods []ConditioningModule, res *Size) []ConditioningModule {
	var out []ConditioningModule
	for _, m := range mods {
		if res != nil && m.Resolution != nil && *res != *m.Resolution {
			continue
		}
		out = append(out, m)
	}
	return out
}

package catalog

import "fmt"

// AttentionVariant is the attention implementation a package was compiled with.
// The zero value means it could not be detected.
type AttentionVariant string

const (
	AttentionOriginal    AttentionVariant = "original"
	AttentionSplitEinsum AttentionVariant = "split-einsum"
)

// ConditioningKind distinguishes the two families of auxiliary guidance networks.
type ConditioningKind string

const (
	KindConditioningNet ConditioningKind = "conditioningNet"
	KindAdapterNet      ConditioningKind = "adapterNet"
)

// Size is a pixel resolution.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string { return fmt.Sprintf("%dx%d", s.Width, s.Height) }

// ConditioningModule is one auxiliary guidance package found in the shared
// conditioning directory.
type ConditioningModule struct {
	Path       string           `json:"path"`
	Name       string           `json:"name"`
	Kind       ConditioningKind `json:"kind"`
	Resolution *Size            `json:"resolution,omitempty"`
}

// ModelEntry is an immutable record describing one installed model package.
// Entries are rebuilt wholesale on every scan and never edited in place.
type ModelEntry struct {
	// Path is the symlink-resolved package directory and the entry's identity.
	Path string `json:"path"`
	// Name is the directory name shown to users.
	Name string `json:"name"`
	// Attention is empty when the descriptor carries no operation histogram.
	Attention AttentionVariant `json:"attention,omitempty"`
	// IsExtendedCapable is set for packages that ship the conditioning-augmented U-Net.
	IsExtendedCapable bool `json:"extended_capable"`
	// IsLargeVariant is set when the U-Net expects time ids and text embeddings.
	IsLargeVariant bool `json:"large_variant"`
	// Resolution is nil when the package accepts any requested size.
	Resolution *Size `json:"resolution,omitempty"`
	// ControlNets are the conditioning modules this model may load.
	ControlNets []ConditioningModule `json:"controlnets,omitempty"`
}

// ControlNet returns the linked conditioning module with the given name.
func (m ModelEntry) ControlNet(name string) (ConditioningModule, bool) {
	for _, c := range m.ControlNets {
		if c.Name == name {
			return c, true
		}
	}
	return ConditioningModule{}, false
}

// Clone returns a deep copy so callers may hand entries out without sharing slices.
func (m ModelEntry) Clone() ModelEntry {
	out := m
	if m.Resolution != nil {
		r := *m.Resolution
		out.Resolution = &r
	}
	if m.ControlNets != nil {
		out.ControlNets = make([]ConditioningModule, len(m.ControlNets))
		copy(out.ControlNets, m.ControlNets)
	}
	return out
}

package backend

import "diffusiond/internal/catalog"

// KindFor is the single selection point between families: large-variant
// models always use the extended family.
func KindFor(m catalog.ModelEntry) Kind {
	if m.IsLargeVariant {
		return KindExtended
	}
	return KindStandard
}

// Factory builds backends from the configured runtimes.
type Factory struct {
	Standard StandardRuntime
	Extended ExtendedRuntime
}

// New returns a fresh, unloaded backend of the given kind.
func (f Factory) New(kind Kind) Backend {
	if kind == KindExtended {
		return NewExtended(f.Extended)
	}
	return NewStandard(f.Standard)
}

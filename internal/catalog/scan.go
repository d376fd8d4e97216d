package catalog

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"diffusiond/internal/common/fsutil"
)

const (
	defaultProbeConcurrency = 4
	conditioningLinkName    = "controlnet"
)

// Scanner builds the model catalog from a models directory.
type Scanner struct {
	log zerolog.Logger
	// LinkConditioning additionally creates <package>/controlnet pointing at the
	// shared conditioning directory, for runtimes that expect that layout.
	LinkConditioning bool
	Classify         KindClassifier
	Concurrency      int
}

// NewScanner returns a Scanner that reports skipped packages through log.
func NewScanner(log zerolog.Logger) *Scanner {
	return &Scanner{log: log, Classify: DefaultKindClassifier, Concurrency: defaultProbeConcurrency}
}

type candidate struct {
	name string
	path string
}

// Scan enumerates the immediate subdirectories of modelsDir and returns one
// entry per valid package, sorted by name ignoring case and diacritics.
// Invalid packages are logged and skipped.
func (s *Scanner) Scan(ctx context.Context, modelsDir, conditioningDir string) ([]ModelEntry, error) {
	base, err := fsutil.ExpandHome(modelsDir)
	if err != nil {
		return nil, directoryNoAccessError{dir: modelsDir, err: err}
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, directoryNoAccessError{dir: modelsDir, err: err}
	}
	dirEntries, err := os.ReadDir(abs)
	if err != nil {
		return nil, directoryNoAccessError{dir: abs, err: err}
	}

	var cands []candidate
	for _, e := range dirEntries {
		if fsutil.IsHidden(e.Name()) {
			continue
		}
		real, ok := fsutil.ResolveDir(filepath.Join(abs, e.Name()))
		if !ok {
			continue
		}
		cands = append(cands, candidate{name: e.Name(), path: real})
	}
	sortByName(cands, func(c candidate) string { return c.name })

	modules := ScanConditioning(conditioningDir, s.Classify)
	s.log.Debug().Str("dir", abs).Int("candidates", len(cands)).Int("conditioning", len(modules)).Msg("catalog scan")

	found := make([]*ModelEntry, len(cands))
	g, gctx := errgroup.WithContext(ctx)
	limit := s.Concurrency
	if limit <= 0 {
		limit = defaultProbeConcurrency
	}
	g.SetLimit(limit)
	for i, c := range cands {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			entry, err := s.probe(c, modules, conditioningDir)
			if err != nil {
				s.log.Warn().Str("model", c.name).Str("path", c.path).Err(err).Msg("skipping invalid model package")
				return nil
			}
			found[i] = &entry
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]ModelEntry, 0, len(found))
	for _, e := range found {
		if e != nil {
			out = append(out, *e)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoModelsFound
	}
	return out, nil
}

func (s *Scanner) probe(c candidate, modules []ConditioningModule, conditioningDir string) (ModelEntry, error) {
	descPath, err := findDescriptor(c.path)
	if err != nil {
		return ModelEntry{}, err
	}
	d, err := readDescriptor(descPath)
	if err != nil {
		return ModelEntry{}, err
	}
	entry := ModelEntry{
		Path:           c.path,
		Name:           c.name,
		Attention:      d.attention(),
		IsLargeVariant: d.isLargeVariant(),
	}
	res, err := probeResolution(c.path)
	if err != nil {
		s.log.Warn().Str("model", c.name).Err(err).Msg("unreadable encoder descriptor, treating resolution as unconstrained")
	}
	entry.Resolution = res

	if fi, err := os.Stat(filepath.Join(c.path, controlledUnetDir)); err == nil && fi.IsDir() {
		entry.IsExtendedCapable = true
		entry.ControlNets = compatibleModules(modules, res)
		if s.LinkConditioning && conditioningDir != "" {
			s.linkConditioning(c, conditioningDir)
		}
	}
	return entry, nil
}

func (s *Scanner) linkConditioning(c candidate, conditioningDir string) {
	target, err := fsutil.ExpandHome(conditioningDir)
	if err == nil {
		target, err = filepath.Abs(target)
	}
	if err == nil {
		err = fsutil.EnsureSymlink(target, filepath.Join(c.path, conditioningLinkName))
	}
	if err != nil {
		s.log.Warn().Str("model", c.name).Err(err).Msg("could not link conditioning directory")
	}
}

// sortByName orders items by display name, ignoring case and diacritics.
// Names that collate equal keep a stable byte order.
func sortByName[T any](items []T, name func(T) string) {
	col := collate.New(language.Und, collate.IgnoreCase, collate.IgnoreDiacritics)
	sort.SliceStable(items, func(i, j int) bool {
		a, b := name(items[i]), name(items[j])
		if c := col.CompareString(a, b); c != 0 {
			return c < 0
		}
		return a < b
	})
}

package schema

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var ErrUnsupportedVersion = errors.New("unsupported schema version")

//go:embed definitions/*.yaml
var definitionFiles embed.FS

type loader func() (*Definition, error)

// builtinLoaders binds every supported version to its embedded document.
var builtinLoaders = map[Version]loader{
	LegacyBeforeCutover: embedded("definitions/legacy_before_1645224519.yaml", LegacyBeforeCutover),
	LegacyAfterCutover:  embedded("definitions/legacy_after_1645224519.yaml", LegacyAfterCutover),
	V1:                  embedded("definitions/v1.yaml", V1),
	V2:                  embedded("definitions/v2.yaml", V2),
	V3:                  embedded("definitions/v3.yaml", V3),
	V4:                  embedded("definitions/v4.yaml", V4),
}

func embedded(path string, v Version) loader {
	return func() (*Definition, error) {
		data, err := definitionFiles.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		return ParseDefinition(data, v)
	}
}

type registryEntry struct {
	once sync.Once
	def  *Definition
	err  error
}

// Registry loads schema definitions on first use and keeps them for its
// lifetime. Concurrent first loads of one version run the loader once.
type Registry struct {
	loaders map[Version]loader

	mu      sync.Mutex
	entries map[Version]*registryEntry
}

func NewRegistry() *Registry {
	return newRegistry(builtinLoaders)
}

func newRegistry(loaders map[Version]loader) *Registry {
	return &Registry{
		loaders: loaders,
		entries: make(map[Version]*registryEntry, len(loaders)),
	}
}

// GetOrLoad returns the definition for v, loading it if this is the first
// request. A failed load is remembered and returned to later callers.
func (r *Registry) GetOrLoad(v Version) (*Definition, error) {
	load, ok := r.loaders[v]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVersion, v)
	}

	r.mu.Lock()
	entry, ok := r.entries[v]
	if !ok {
		entry = &registryEntry{}
		r.entries[v] = entry
	}
	r.mu.Unlock()

	entry.once.Do(func() {
		entry.def, entry.err = load()
	})
	return entry.def, entry.err
}

// Versions lists every version the registry can load, oldest first.
func (r *Registry) Versions() []Version {
	versions := make([]Version, 0, len(r.loaders))
	for v := range r.loaders {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		return order(versions[i]) < order(versions[j])
	})
	return versions
}

// order places the post-cutover legacy schema between the oldest one and V1.
func order(v Version) float64 {
	if v == LegacyAfterCutover {
		return 0.5
	}
	return float64(v)
}

package capability

import (
	"context"
	"sort"
	"sync"
)

// Constructor builds a capability provider. Constructors run at discovery
// time; a failing constructor is skipped without aborting discovery.
type Constructor func(ctx context.Context) (Capability, error)

// ManifestEntry names one candidate provider within a namespace.
type ManifestEntry struct {
	Name string
	New  Constructor
}

// Manifest is a static, compile-time enumerable mapping from namespace to
// candidate capability constructors. It replaces runtime type-introspection
// scanning: packages register their constructors explicitly at wiring time.
type Manifest struct {
	mu         sync.RWMutex
	namespaces map[string][]ManifestEntry
}

// NewManifest creates an empty Manifest.
func NewManifest() *Manifest {
	return &Manifest{
		namespaces: make(map[string][]ManifestEntry),
	}
}

// Add appends a constructor under the given namespace. Declaration order is
// preserved within a namespace.
func (m *Manifest) Add(namespace, name string, ctor Constructor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.namespaces[namespace] = append(m.namespaces[namespace], ManifestEntry{Name: name, New: ctor})
}

// Entries returns the candidate entries for a namespace in declaration order.
func (m *Manifest) Entries(namespace string) []ManifestEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.namespaces[namespace]
	out := make([]ManifestEntry, len(entries))
	copy(out, entries)
	return out
}

// Namespaces returns the sorted set of known namespaces.
func (m *Manifest) Namespaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.namespaces))
	for ns := range m.namespaces {
		names = append(names, ns)
	}
	sort.Strings(names)
	return names
}

// BuiltinManifest returns the manifest of capability providers that ship with
// the engine, all under the "tools" namespace.
func BuiltinManifest() *Manifest {
	m := NewManifest()
	m.Add("tools", "web_search", func(ctx context.Context) (Capability, error) {
		return NewWebSearch(), nil
	})
	m.Add("tools", "document_ingestion", func(ctx context.Context) (Capability, error) {
		return NewDocumentIngestion(), nil
	})
	m.Add("tools", "transform", func(ctx context.Context) (Capability, error) {
		return NewTransform(), nil
	})
	return m
}

package capability

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/ariadne-labs/ariadne/pkg/schema"
)

// Registry is the thread-safe lookup table from capability name to provider.
// An instance is owned by the application root and passed into the engine;
// there is no ambient global.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[string]Capability
	logger       *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		capabilities: make(map[string]Capability),
		logger:       logger,
	}
}

// Register stores a capability under its name. A duplicate name overwrites
// the previous provider and logs a warning; registration never fails on
// conflict. Nil providers and empty names are rejected.
func (r *Registry) Register(cap Capability) error {
	if cap == nil {
		return schema.NewError(schema.ErrCodeValidation, "capability is nil")
	}
	name := cap.Name()
	if name == "" {
		return schema.NewError(schema.ErrCodeValidation, "capability name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.capabilities[name]; exists {
		r.logger.Warn("capability already registered, overwriting",
			slog.String("capability", name),
			slog.String("version", cap.Version()),
		)
	}
	r.capabilities[name] = cap
	return nil
}

// Get retrieves a capability by exact name.
func (r *Registry) Get(name string) (Capability, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cap, ok := r.capabilities[name]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeCapabilityUnavailable, "capability %q not registered", name)
	}
	return cap, nil
}

// List returns info for all registered capabilities, sorted by name.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.capabilities))
	for _, c := range r.capabilities {
		infos = append(infos, Info{
			Name:        c.Name(),
			Description: c.Description(),
			Version:     c.Version(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Name < infos[j].Name
	})
	return infos
}

// Names returns the sorted set of registered capability names.
func (r *Registry) Names() []string {
	infos := r.List()
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name
	}
	return names
}

// Has checks if a capability is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.capabilities[name]
	return ok
}

// Count returns the number of registered capabilities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.capabilities)
}

// Unregister removes a capability by name. Returns true if it was present.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.capabilities[name]; !ok {
		return false
	}
	delete(r.capabilities, name)
	r.logger.Info("capability unregistered", slog.String("capability", name))
	return true
}

// Discover enumerates the manifest entries under the given namespace,
// constructs each provider and registers it. A failure to construct one
// provider is logged and skipped, never aborting discovery of the rest.
// Entries whose names contain any exclude pattern are skipped.
// Returns the number of providers registered.
func (r *Registry) Discover(ctx context.Context, manifest *Manifest, namespace string, excludePatterns []string) int {
	entries := manifest.Entries(namespace)
	registered := 0

	for _, entry := range entries {
		if excluded(entry.Name, excludePatterns) {
			continue
		}
		cap, err := entry.New(ctx)
		if err != nil {
			r.logger.Error("failed to construct capability, skipping",
				slog.String("namespace", namespace),
				slog.String("capability", entry.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := r.Register(cap); err != nil {
			r.logger.Error("failed to register capability, skipping",
				slog.String("capability", entry.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		registered++
	}

	r.logger.Info("capability discovery complete",
		slog.String("namespace", namespace),
		slog.Int("registered", registered),
		slog.Int("candidates", len(entries)),
	)
	return registered
}

func excluded(name string, patterns []string) bool {
	lower := strings.ToLower(name)
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

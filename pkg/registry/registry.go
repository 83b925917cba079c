// Package registry provides discovery, lookup and categorization of node types.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/protocol"
	"github.com/xeipuuv/gojsonschema"
)

// Registry maps node type ids to their factories. It is read-mostly after
// warm-up: registration happens once at process start, workers read
// concurrently afterwards.
type Registry struct {
	mu        sync.RWMutex
	logger    *slog.Logger
	factories map[string]protocol.NodeFactory

	// manifest is a cacheable snapshot of every descriptor, rebuilt lazily
	// after explicit invalidation.
	manifest      []models.NodeDescriptor
	manifestValid bool
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:    logger.With("module", "registry"),
		factories: make(map[string]protocol.NodeFactory),
	}
}

// Register adds a node factory keyed by its descriptor id. Registration is
// idempotent: a duplicate id is a no-op with a warning, not an error, and
// the first registration wins.
func (r *Registry) Register(factory protocol.NodeFactory) {
	descriptor := factory.Descriptor()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[descriptor.ID]; exists {
		r.logger.Warn("Node type already registered, ignoring duplicate", "node_type", descriptor.ID)

		return
	}

	r.factories[descriptor.ID] = factory
	r.manifestValid = false
}

// Unregister removes a node factory. Unknown ids are ignored.
func (r *Registry) Unregister(nodeType string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.factories, nodeType)
	r.manifestValid = false
}

// Factory returns the factory registered under the given type id.
func (r *Registry) Factory(nodeType string) (protocol.NodeFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[nodeType]

	return factory, ok
}

// Create instantiates a node of the given type with the given configuration.
func (r *Registry) Create(ctx context.Context, nodeType, id string, config map[string]any) (protocol.Node, error) {
	factory, ok := r.Factory(nodeType)
	if !ok {
		return nil, fmt.Errorf("node type '%s' not registered", nodeType)
	}

	return factory.Create(ctx, id, config)
}

// Validate checks node configuration against the type's declared JSON schema.
// Types without a schema accept any configuration.
func (r *Registry) Validate(nodeType string, config map[string]any) (bool, []string, error) {
	factory, ok := r.Factory(nodeType)
	if !ok {
		return false, nil, fmt.Errorf("node type '%s' not registered", nodeType)
	}

	schema := factory.Descriptor().Schema
	if schema == nil {
		return true, nil, nil
	}

	if config == nil {
		config = map[string]any{}
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(config))
	if err != nil {
		return false, nil, fmt.Errorf("schema validation failed for node type '%s': %w", nodeType, err)
	}

	if result.Valid() {
		return true, nil, nil
	}

	reasons := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		reasons = append(reasons, desc.String())
	}

	return false, reasons, nil
}

// Manifest returns the cached descriptor snapshot, rebuilding it when stale.
// The returned slice is sorted by id for stable client rendering.
func (r *Registry) Manifest() []models.NodeDescriptor {
	r.mu.RLock()
	if r.manifestValid {
		manifest := r.manifest
		r.mu.RUnlock()

		return manifest
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.manifestValid {
		return r.manifest
	}

	manifest := make([]models.NodeDescriptor, 0, len(r.factories))
	for _, factory := range r.factories {
		manifest = append(manifest, factory.Descriptor())
	}

	sort.Slice(manifest, func(i, j int) bool {
		return manifest[i].ID < manifest[j].ID
	})

	r.manifest = manifest
	r.manifestValid = true

	return manifest
}

// InvalidateManifest drops the cached snapshot. Cache invalidation is an
// explicit call, never an implicit side effect.
func (r *Registry) InvalidateManifest() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.manifestValid = false
}

// ByCategory returns descriptors in the given category.
func (r *Registry) ByCategory(category models.CategoryType) []models.NodeDescriptor {
	matches := make([]models.NodeDescriptor, 0)

	for _, descriptor := range r.Manifest() {
		if descriptor.Category == category {
			matches = append(matches, descriptor)
		}
	}

	return matches
}

// ByTag returns descriptors carrying the given tag.
func (r *Registry) ByTag(tag string) []models.NodeDescriptor {
	matches := make([]models.NodeDescriptor, 0)

	for _, descriptor := range r.Manifest() {
		if descriptor.HasTag(tag) {
			matches = append(matches, descriptor)
		}
	}

	return matches
}

// Search performs a case-insensitive full-text match over id, name,
// description and tags.
func (r *Registry) Search(query string) []models.NodeDescriptor {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return r.Manifest()
	}

	matches := make([]models.NodeDescriptor, 0)

	for _, descriptor := range r.Manifest() {
		if strings.Contains(strings.ToLower(descriptor.ID), query) ||
			strings.Contains(strings.ToLower(descriptor.Name), query) ||
			strings.Contains(strings.ToLower(descriptor.Description), query) {
			matches = append(matches, descriptor)

			continue
		}

		for _, tag := range descriptor.Tags {
			if strings.Contains(strings.ToLower(tag), query) {
				matches = append(matches, descriptor)

				break
			}
		}
	}

	return matches
}

// Compatible reports whether a source type's outputs can feed a target
// type's inputs. This is a structural check only, not a type or schema
// check, and is intentionally conservative: either side declaring zero
// ports is incompatible.
func (r *Registry) Compatible(sourceType, targetType string) bool {
	source, ok := r.Factory(sourceType)
	if !ok {
		return false
	}

	target, ok := r.Factory(targetType)
	if !ok {
		return false
	}

	return len(source.Descriptor().Outputs) > 0 && len(target.Descriptor().Inputs) > 0
}

// Recommend returns type ids whose inputs are compatible with the given
// node type's outputs, ranked by descriptor priority (higher first) and id.
func (r *Registry) Recommend(nodeType string) []string {
	source, ok := r.Factory(nodeType)
	if !ok {
		return nil
	}

	if len(source.Descriptor().Outputs) == 0 {
		return nil
	}

	candidates := make([]models.NodeDescriptor, 0)

	for _, descriptor := range r.Manifest() {
		if descriptor.ID == nodeType {
			continue
		}

		if len(descriptor.Inputs) > 0 {
			candidates = append(candidates, descriptor)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}

		return candidates[i].ID < candidates[j].ID
	})

	ids := make([]string, 0, len(candidates))
	for _, descriptor := range candidates {
		ids = append(ids, descriptor.ID)
	}

	return ids
}

package registry

import (
	"context"
	"log/slog"
	"testing"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFactory struct {
	descriptor models.NodeDescriptor
}

func (f *stubFactory) Create(_ context.Context, _ string, _ map[string]any) (protocol.Node, error) {
	return nil, nil
}

func (f *stubFactory) Descriptor() models.NodeDescriptor {
	return f.descriptor
}

func newStubFactory(id string, opts ...func(*models.NodeDescriptor)) *stubFactory {
	descriptor := models.NodeDescriptor{
		ID:       id,
		Name:     id,
		Version:  "1.0.0",
		Category: models.CategoryTypeAction,
		Inputs:   []models.InputPort{{Port: models.Port{Name: models.DefaultPort}}},
		Outputs:  []models.OutputPort{{Port: models.Port{Name: models.DefaultPort}}},
	}

	for _, opt := range opts {
		opt(&descriptor)
	}

	return &stubFactory{descriptor: descriptor}
}

func newTestRegistry() *Registry {
	return NewRegistry(slog.Default())
}

func TestRegistry_RegisterIsIdempotent(t *testing.T) {
	registry := newTestRegistry()

	first := newStubFactory("dup", func(d *models.NodeDescriptor) { d.Name = "First" })
	second := newStubFactory("dup", func(d *models.NodeDescriptor) { d.Name = "Second" })

	registry.Register(first)
	registry.Register(second)

	factory, ok := registry.Factory("dup")
	require.True(t, ok)
	assert.Equal(t, "First", factory.Descriptor().Name, "first registration wins")

	manifest := registry.Manifest()
	assert.Len(t, manifest, 1)
}

func TestRegistry_UnregisterUnknownIsNoop(t *testing.T) {
	registry := newTestRegistry()

	registry.Unregister("never-registered")

	assert.Empty(t, registry.Manifest())
}

func TestRegistry_CreateUnknownType(t *testing.T) {
	registry := newTestRegistry()

	_, err := registry.Create(context.Background(), "ghost", "node-1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not registered")
}

func TestRegistry_ManifestSortedAndCached(t *testing.T) {
	registry := newTestRegistry()

	registry.Register(newStubFactory("zeta"))
	registry.Register(newStubFactory("alpha"))
	registry.Register(newStubFactory("mid"))

	manifest := registry.Manifest()
	require.Len(t, manifest, 3)
	assert.Equal(t, "alpha", manifest[0].ID)
	assert.Equal(t, "mid", manifest[1].ID)
	assert.Equal(t, "zeta", manifest[2].ID)

	// Registration invalidates the snapshot.
	registry.Register(newStubFactory("beta"))

	manifest = registry.Manifest()
	require.Len(t, manifest, 4)
	assert.Equal(t, "beta", manifest[1].ID)
}

func TestRegistry_ValidateAgainstSchema(t *testing.T) {
	registry := newTestRegistry()

	registry.Register(newStubFactory("schemaful", func(d *models.NodeDescriptor) {
		d.Schema = map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{"type": "string"},
			},
			"required": []string{"url"},
		}
	}))
	registry.Register(newStubFactory("schemaless"))

	valid, reasons, err := registry.Validate("schemaful", map[string]any{"url": "https://example.com"})
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Empty(t, reasons)

	valid, reasons, err = registry.Validate("schemaful", map[string]any{})
	require.NoError(t, err)
	assert.False(t, valid)
	assert.NotEmpty(t, reasons)

	valid, _, err = registry.Validate("schemaless", map[string]any{"anything": true})
	require.NoError(t, err)
	assert.True(t, valid, "types without a schema accept any configuration")
}

func TestRegistry_Search(t *testing.T) {
	registry := newTestRegistry()
	RegisterDefaultNodes(registry)

	results := registry.Search("http")
	require.NotEmpty(t, results)
	assert.Equal(t, "httprequest", results[0].ID)

	results = registry.Search("WEBHOOK")
	require.NotEmpty(t, results, "search is case-insensitive")

	results = registry.Search("")
	assert.Len(t, results, len(registry.Manifest()), "empty query returns everything")

	assert.Empty(t, registry.Search("no-such-node"))
}

func TestRegistry_ByCategoryAndTag(t *testing.T) {
	registry := newTestRegistry()
	RegisterDefaultNodes(registry)

	triggers := registry.ByCategory(models.CategoryTypeTrigger)
	require.Len(t, triggers, 3)

	tagged := registry.ByTag("webhook")
	require.NotEmpty(t, tagged)

	for _, descriptor := range tagged {
		assert.True(t, descriptor.HasTag("webhook"))
	}
}

func TestRegistry_Compatible(t *testing.T) {
	registry := newTestRegistry()

	registry.Register(newStubFactory("source"))
	registry.Register(newStubFactory("sink", func(d *models.NodeDescriptor) {
		d.Outputs = nil
	}))
	registry.Register(newStubFactory("faucet", func(d *models.NodeDescriptor) {
		d.Inputs = nil
	}))

	assert.True(t, registry.Compatible("source", "sink"))
	assert.False(t, registry.Compatible("sink", "source"), "zero outputs cannot feed anything")
	assert.False(t, registry.Compatible("source", "faucet"), "zero inputs cannot be fed")
	assert.False(t, registry.Compatible("source", "ghost"))
}

func TestRegistry_RecommendRanksByPriority(t *testing.T) {
	registry := newTestRegistry()

	registry.Register(newStubFactory("source"))
	registry.Register(newStubFactory("low", func(d *models.NodeDescriptor) { d.Priority = 1 }))
	registry.Register(newStubFactory("high", func(d *models.NodeDescriptor) { d.Priority = 10 }))
	registry.Register(newStubFactory("also-high", func(d *models.NodeDescriptor) { d.Priority = 10 }))
	registry.Register(newStubFactory("no-inputs", func(d *models.NodeDescriptor) { d.Inputs = nil }))

	recommendations := registry.Recommend("source")
	require.Equal(t, []string{"also-high", "high", "low"}, recommendations)

	assert.Nil(t, registry.Recommend("ghost"))
}

func TestRegisterDefaultNodes(t *testing.T) {
	registry := newTestRegistry()
	RegisterDefaultNodes(registry)

	for _, nodeType := range []string{
		"trigger:webhook", "trigger:scheduler", "trigger:manual",
		"httprequest", "transform", "log", "switch", "conditional", "merge", "wait",
	} {
		_, ok := registry.Factory(nodeType)
		assert.True(t, ok, "expected %s to be registered", nodeType)
	}

	// Safe to call again.
	RegisterDefaultNodes(registry)
	assert.Len(t, registry.Manifest(), 10)
}

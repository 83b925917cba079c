package services

import (
	"fmt"

	"github.com/loomery/loom/pkg/models"
	"github.com/loomery/loom/pkg/registry"
)

// Node serves the node catalog: manifest, search and wiring recommendations.
type Node struct {
	registry *registry.Registry
}

func NewNode(reg *registry.Registry) *Node {
	return &Node{registry: reg}
}

func (s *Node) Manifest() []models.NodeDescriptor {
	return s.registry.Manifest()
}

func (s *Node) Search(query string) []models.NodeDescriptor {
	return s.registry.Search(query)
}

func (s *Node) ByCategory(category models.CategoryType) []models.NodeDescriptor {
	return s.registry.ByCategory(category)
}

// Recommend lists node types able to consume the given type's outputs,
// highest descriptor priority first.
func (s *Node) Recommend(nodeType string) ([]string, error) {
	_, ok := s.registry.Factory(nodeType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNodeType, nodeType)
	}

	return s.registry.Recommend(nodeType), nil
}

// ValidateConfig checks a config document against the node type's schema.
func (s *Node) ValidateConfig(nodeType string, config map[string]any) (bool, []string, error) {
	_, ok := s.registry.Factory(nodeType)
	if !ok {
		return false, nil, fmt.Errorf("%w: %s", ErrUnknownNodeType, nodeType)
	}

	return s.registry.Validate(nodeType, config)
}

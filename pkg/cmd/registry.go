// Package cmd provides common initialization for the command-line entrypoints.
package cmd

import (
	"log/slog"

	"github.com/loomery/loom/pkg/registry"
)

// NewRegistry builds the node registry with the built-in node set.
func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)
	registry.RegisterDefaultNodes(reg)

	return reg
}

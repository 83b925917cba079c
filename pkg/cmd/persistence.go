package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/loomery/loom/pkg/persistence"
	"github.com/loomery/loom/pkg/persistence/file"
	"github.com/loomery/loom/pkg/persistence/postgresql"
)

// NewPersistence selects the storage backend from the database URL scheme.
// postgres:// and postgresql:// pick the PostgreSQL backend, anything else
// is treated as a file root.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (persistence.Persistence, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgresql.NewPersistence(ctx, logger, databaseURL)
	case databaseURL == "":
		return nil, fmt.Errorf("database URL is required")
	default:
		return file.NewPersistence(databaseURL)
	}
}

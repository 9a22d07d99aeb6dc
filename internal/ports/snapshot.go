package ports

import (
	"context"

	"packagedb/internal/core"
)

// SnapshotStorePort persists database generations.
type SnapshotStorePort interface {
	// Load returns the stored generation, interning its artifact types
	// in registry. A store that holds nothing yields the empty database.
	Load(ctx context.Context, registry *core.ArtifactTypeRegistry) (*core.PackageDB, error)
	Save(ctx context.Context, db *core.PackageDB) error
}

package ports

import (
	"context"

	"packagedb/internal/core"
	"packagedb/internal/types"
)

// GenerationHistoryPort keeps published generations addressable by id
// and by tag.
type GenerationHistoryPort interface {
	Record(ctx context.Context, id string, db *core.PackageDB) error
	Tag(ctx context.Context, id string, tag string) error
	// Resolve maps an id or a tag to a generation id.
	Resolve(ctx context.Context, ref string) (string, error)
	Load(ctx context.Context, id string, registry *core.ArtifactTypeRegistry) (*core.PackageDB, error)
	ListGenerations(ctx context.Context) ([]types.GenerationInfo, error)
	DeleteGeneration(ctx context.Context, id string) error
}

package ports

import (
	"context"
	"time"

	"packagedb/internal/core"
)

// SBOMPort writes a bill of materials describing a set of packages.
type SBOMPort interface {
	WriteSBOM(ctx context.Context, path string, name string, createdAt time.Time, packages []*core.PackageInstance) error
}

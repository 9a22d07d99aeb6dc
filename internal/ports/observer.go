package ports

import (
	"context"

	"packagedb/internal/core"
	"packagedb/internal/types"
)

// ChangeObserverPort receives the delta of every published generation.
type ChangeObserverPort interface {
	Apply(ctx context.Context, changes core.ChangedInfo) error
}

// FeedMirrorReaderPort reads back the listings written by a mirror.
type FeedMirrorReaderPort interface {
	ReadListings(ctx context.Context) ([]types.FeedListingFile, error)
}

// FeedMirrorPort is a mirror that can be both updated and read back.
type FeedMirrorPort interface {
	ChangeObserverPort
	FeedMirrorReaderPort
}

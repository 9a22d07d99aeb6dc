package ports

import "packagedb/internal/types"

type FeedManifestPort interface {
	ReadManifest(path string) (types.FeedManifestFile, error)
}

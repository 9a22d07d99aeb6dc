package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *ArtifactTypeRegistry {
	t.Helper()
	r := NewArtifactTypeRegistry()
	require.NoError(t, RegisterDefaultTypes(r))
	return r
}

func mustKey(t require.TestingT, r *ArtifactTypeRegistry, text string) ArtifactInstance {
	key, err := r.ParseArtifactInstance(text)
	require.NoError(t, err)
	return key
}

// info builds a PackageInfo for text in the given feeds.
func info(t require.TestingT, r *ArtifactTypeRegistry, text string, feeds []string, deps ...string) PackageInfo {
	p := PackageInfo{Key: mustKey(t, r, text), FeedNames: feeds}
	for _, dep := range deps {
		p.Dependencies = append(p.Dependencies, mustKey(t, r, dep))
	}
	return p
}

func instanceKeys(instances []*PackageInstance) []string {
	out := make([]string, 0, len(instances))
	for _, instance := range instances {
		out = append(out, instance.Key().String())
	}
	return out
}

func feedNames(feeds []*PackageFeed) []string {
	out := make([]string, 0, len(feeds))
	for _, feed := range feeds {
		out = append(out, feed.Name())
	}
	return out
}

func mustAdd(t *testing.T, db *PackageDB, batch ...PackageInfo) (*PackageDB, ChangedInfo) {
	t.Helper()
	next, changes, err := db.Add(t.Context(), batch, false)
	require.NoError(t, err)
	return next, changes
}

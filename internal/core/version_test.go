package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"packagedb/internal/types"
)

// ---------------------------------------------------------------------------
// versionCache
// ---------------------------------------------------------------------------

func TestVersionCacheParseCaches(t *testing.T) {
	cache := newVersionCache(types.VersionSchemeSemVer)

	v1, err := cache.parse("v1.2")
	require.NoError(t, err)
	assert.Equal(t, "1.2.0", v1.canonical)

	// The canonical form is cached too.
	v2, err := cache.parse("1.2.0")
	require.NoError(t, err)
	assert.Equal(t, v1, v2)
	assert.Len(t, cache.parsed, 2)
}

func TestVersionCacheParseInvalid(t *testing.T) {
	tests := []struct {
		scheme types.VersionScheme
		value  string
	}{
		{types.VersionSchemeSemVer, "not-a-version!!!"},
		{types.VersionSchemeSemVer, ""},
		{types.VersionSchemePep440, "not-a-pep440!!!"},
		{types.VersionSchemeDeb, "abc"},
	}
	for _, tt := range tests {
		t.Run(string(tt.scheme)+"/"+tt.value, func(t *testing.T) {
			cache := newVersionCache(tt.scheme)
			_, err := cache.parse(tt.value)
			require.Error(t, err)
			assert.Empty(t, cache.parsed)
		})
	}
}

func TestVersionCacheCompare(t *testing.T) {
	tests := []struct {
		name   string
		scheme types.VersionScheme
		a, b   string
		want   int
	}{
		{"semver numeric", types.VersionSchemeSemVer, "1.9.0", "1.10.0", -1},
		{"semver prerelease first", types.VersionSchemeSemVer, "1.0.0-rc.1", "1.0.0", -1},
		{"semver ci after release", types.VersionSchemeSemVer, "1.0.1--ci.3", "1.0.0", 1},
		{"semver equal", types.VersionSchemeSemVer, "1.0.0", "1.0.0", 0},
		{"invalid first", types.VersionSchemeSemVer, "garbage!", "0.0.1", -1},
		{"pep440 rc first", types.VersionSchemePep440, "1.0rc1", "1.0", -1},
		{"pep440 ordinal tie break", types.VersionSchemePep440, "1.0", "1.0.0", -1},
		{"deb tilde first", types.VersionSchemeDeb, "1.0~rc1", "1.0", -1},
		{"deb epoch", types.VersionSchemeDeb, "1:0.9", "2.0", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := newVersionCache(tt.scheme)
			assert.Equal(t, tt.want, cache.compare(tt.a, tt.b))
			assert.Equal(t, -tt.want, cache.compare(tt.b, tt.a))
		})
	}
}

// ---------------------------------------------------------------------------
// Quality classification
// ---------------------------------------------------------------------------

func TestSemverQuality(t *testing.T) {
	tests := map[string]types.PackageQuality{
		"1.0.0":          types.PackageQualityStable,
		"1.0.0-rc.1":     types.PackageQualityReleaseCandidate,
		"1.0.0-pre.2":    types.PackageQualityPreview,
		"1.0.0-preview":  types.PackageQualityPreview,
		"1.0.0-alpha":    types.PackageQualityExploratory,
		"1.0.0-beta.3":   types.PackageQualityExploratory,
		"1.0.0-gamma":    types.PackageQualityExploratory,
		"1.0.0-ci.5":     types.PackageQualityCI,
		"1.0.1--ci.3":    types.PackageQualityCI,
		"1.0.0-1":        types.PackageQualityCI,
		"1.0.0-whatever": types.PackageQualityCI,
	}
	for value, want := range tests {
		t.Run(value, func(t *testing.T) {
			parsed, err := parseVersion(types.VersionSchemeSemVer, value)
			require.NoError(t, err)
			assert.Equal(t, want, parsed.quality)
		})
	}
}

func TestPep440Quality(t *testing.T) {
	tests := map[string]types.PackageQuality{
		"1.0":        types.PackageQualityStable,
		"1.0.post1":  types.PackageQualityStable,
		"1!2.0":      types.PackageQualityStable,
		"1.0a1":      types.PackageQualityExploratory,
		"1.0b2":      types.PackageQualityPreview,
		"1.0rc1":     types.PackageQualityReleaseCandidate,
		"1.0.dev3":   types.PackageQualityCI,
		"1.0rc1.dev": types.PackageQualityCI,
	}
	for value, want := range tests {
		t.Run(value, func(t *testing.T) {
			parsed, err := parseVersion(types.VersionSchemePep440, value)
			require.NoError(t, err)
			assert.Equal(t, want, parsed.quality)
		})
	}
}

func TestDebQuality(t *testing.T) {
	tests := map[string]types.PackageQuality{
		"1.2.3-1":          types.PackageQualityStable,
		"2.0~rc1-1":        types.PackageQualityReleaseCandidate,
		"2.0~beta1":        types.PackageQualityExploratory,
		"2.0~pre1":         types.PackageQualityPreview,
		"2.0~git20240101":  types.PackageQualityCI,
		"1:2.0~dev1-0ubu1": types.PackageQualityCI,
	}
	for value, want := range tests {
		t.Run(value, func(t *testing.T) {
			parsed, err := parseVersion(types.VersionSchemeDeb, value)
			require.NoError(t, err)
			assert.Equal(t, want, parsed.quality)
		})
	}
}

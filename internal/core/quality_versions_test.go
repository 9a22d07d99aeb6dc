package core

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"packagedb/internal/types"
)

func TestPackageQualityVersionsCascade(t *testing.T) {
	r := newTestRegistry(t)
	got := NewPackageQualityVersions(r.Find("NuGet"), []string{"1.0.0", "2.0.0-ci"})

	assert.True(t, got.IsValid())
	assert.Equal(t, "2.0.0-ci", got.CI())
	assert.Equal(t, "1.0.0", got.Exploratory())
	assert.Equal(t, "1.0.0", got.Preview())
	assert.Equal(t, "1.0.0", got.Latest())
	assert.Equal(t, "1.0.0", got.Stable())
	if diff := cmp.Diff([]string{"2.0.0-ci", "1.0.0"}, got.Versions()); diff != "" {
		t.Fatalf("versions mismatch (-want +got):\n%s", diff)
	}
}

func TestPackageQualityVersionsTiers(t *testing.T) {
	r := newTestRegistry(t)
	got := NewPackageQualityVersions(r.Find("NuGet"), []string{
		"1.0.0",
		"1.1.0-rc.1",
		"1.2.0-pre.1",
		"1.3.0-alpha.1",
		"1.4.0-ci.7",
		"1.0.1-ci.2",
		"not a version",
	})

	want := map[types.PackageQuality]string{
		types.PackageQualityCI:               "1.4.0-ci.7",
		types.PackageQualityExploratory:      "1.3.0-alpha.1",
		types.PackageQualityPreview:          "1.2.0-pre.1",
		types.PackageQualityReleaseCandidate: "1.1.0-rc.1",
		types.PackageQualityStable:           "1.0.0",
	}
	for q, v := range want {
		assert.Equal(t, v, got.GetVersion(q), q.String())
	}
	assert.Equal(t, "1.1.0-rc.1", got.GetVersionByLabel(types.PackageLabelLatest))
	assert.Empty(t, got.GetVersion(types.PackageQuality(9)))
	assert.Empty(t, got.GetVersionByLabel("nightly"))
	assert.Equal(t, "ci:1.4.0-ci.7, exploratory:1.3.0-alpha.1, preview:1.2.0-pre.1, rc:1.1.0-rc.1, stable:1.0.0", got.String())
}

func TestPackageQualityVersionsMonotone(t *testing.T) {
	r := newTestRegistry(t)
	nuget := r.Find("NuGet")
	got := NewPackageQualityVersions(nuget, []string{"3.0.0", "2.0.0-rc.1", "1.0.0-alpha"})

	// A stable release newer than every prerelease wins every tier.
	for _, q := range types.PackageQualities {
		assert.Equal(t, "3.0.0", got.GetVersion(q), q.String())
	}
	if diff := cmp.Diff([]string{"3.0.0"}, got.Versions()); diff != "" {
		t.Fatalf("versions mismatch (-want +got):\n%s", diff)
	}
}

func TestPackageQualityVersionsEmpty(t *testing.T) {
	r := newTestRegistry(t)
	got := NewPackageQualityVersions(r.Find("Pip"), []string{"not!valid"})
	assert.False(t, got.IsValid())
	assert.Empty(t, got.Versions())
	assert.Equal(t, "none", got.String())

	var zero PackageQualityVersions
	assert.False(t, zero.IsValid())
}

func TestPackageQualityVersionsWith(t *testing.T) {
	r := newTestRegistry(t)
	pip := r.Find("Pip")
	a := NewPackageQualityVersions(pip, []string{"1.0", "2.0a1"})
	b := NewPackageQualityVersions(pip, []string{"1.5", "2.0rc1", "2.1.dev1"})

	got := a.With(b)
	want := NewPackageQualityVersions(pip, []string{"1.0", "2.0a1", "1.5", "2.0rc1", "2.1.dev1"})
	assert.Equal(t, want, got)
	assert.Equal(t, "2.1.dev1", got.CI())
	assert.Equal(t, "2.0rc1", got.Exploratory())
	assert.Equal(t, "2.0rc1", got.Latest())
	assert.Equal(t, "1.5", got.Stable())

	assert.Equal(t, a, a.With(PackageQualityVersions{}))
	assert.Equal(t, b, PackageQualityVersions{artifactType: pip}.With(b))
}

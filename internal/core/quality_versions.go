package core

import (
	"slices"
	"strings"

	"packagedb/internal/types"
)

// PackageQualityVersions holds, for one artifact, the best version
// satisfying each minimal quality. A version of quality Q satisfies
// every bar up to Q, so the picks never decrease from Stable to CI.
type PackageQualityVersions struct {
	artifactType *ArtifactType
	best         [types.PackageQualityCount]string
}

// NewPackageQualityVersions reduces versions of one artifact of type t
// in a single pass. Invalid versions are skipped.
func NewPackageQualityVersions(t *ArtifactType, versions []string) PackageQualityVersions {
	result := PackageQualityVersions{artifactType: t}
	if t == nil {
		return result
	}
	for _, version := range versions {
		parsed, err := t.versions.parse(strings.TrimSpace(version))
		if err != nil {
			continue
		}
		result.offer(parsed)
	}
	return result
}

// offer cascades v from its own tier down to CI.
func (p *PackageQualityVersions) offer(v parsedVersion) {
	for tier := v.quality; tier >= types.PackageQualityCI; tier-- {
		current := p.best[tier]
		if current == "" || p.artifactType.compareVersions(v.canonical, current) > 0 {
			p.best[tier] = v.canonical
		}
	}
}

func qualityVersionsOf(t *ArtifactType, instances []*PackageInstance) PackageQualityVersions {
	versions := make([]string, 0, len(instances))
	for _, instance := range instances {
		versions = append(versions, instance.key.Version)
	}
	return NewPackageQualityVersions(t, versions)
}

// IsValid is true when at least one version exists.
func (p PackageQualityVersions) IsValid() bool {
	return p.best[types.PackageQualityCI] != ""
}

func (p PackageQualityVersions) CI() string          { return p.best[types.PackageQualityCI] }
func (p PackageQualityVersions) Exploratory() string { return p.best[types.PackageQualityExploratory] }
func (p PackageQualityVersions) Preview() string     { return p.best[types.PackageQualityPreview] }
func (p PackageQualityVersions) Latest() string      { return p.best[types.PackageQualityReleaseCandidate] }
func (p PackageQualityVersions) Stable() string      { return p.best[types.PackageQualityStable] }

// GetVersion returns the best version of at least quality q, or "".
func (p PackageQualityVersions) GetVersion(q types.PackageQuality) string {
	if !q.IsValid() {
		return ""
	}
	return p.best[q]
}

func (p PackageQualityVersions) GetVersionByLabel(label types.PackageLabel) string {
	q, ok := label.Quality()
	if !ok {
		return ""
	}
	return p.best[q]
}

// With combines two results for the same artifact, as if computed over
// the union of their versions.
func (p PackageQualityVersions) With(o PackageQualityVersions) PackageQualityVersions {
	if !o.IsValid() {
		return p
	}
	if !p.IsValid() {
		return o
	}
	union := append(p.Versions(), o.Versions()...)
	return NewPackageQualityVersions(p.artifactType, sortedUnique(union))
}

// Versions returns the distinct picks from the CI pick up to the Stable
// pick, skipping a tier whose pick was already returned.
func (p PackageQualityVersions) Versions() []string {
	var out []string
	for _, q := range types.PackageQualities {
		v := p.best[q]
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

func (p PackageQualityVersions) String() string {
	if !p.IsValid() {
		return "none"
	}
	parts := make([]string, 0, types.PackageQualityCount)
	for _, q := range types.PackageQualities {
		if v := p.best[q]; v != "" {
			parts = append(parts, q.String()+":"+v)
		}
	}
	return strings.Join(parts, ", ")
}

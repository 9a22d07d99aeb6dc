package types

import (
	"fmt"
	"strings"
)

type VersionScheme string

const (
	VersionSchemeSemVer VersionScheme = "semver"
	VersionSchemePep440 VersionScheme = "pep440"
	VersionSchemeDeb    VersionScheme = "deb"
)

// PackageQuality is the stability tier of a version. Tiers are ordered
// worst to best so that a higher tier always satisfies a lower bar.
type PackageQuality int

const (
	PackageQualityCI PackageQuality = iota
	PackageQualityExploratory
	PackageQualityPreview
	PackageQualityReleaseCandidate
	PackageQualityStable
)

// PackageQualityCount is the number of quality tiers.
const PackageQualityCount = int(PackageQualityStable) + 1

// PackageQualities lists every tier from CI to Stable.
var PackageQualities = []PackageQuality{
	PackageQualityCI,
	PackageQualityExploratory,
	PackageQualityPreview,
	PackageQualityReleaseCandidate,
	PackageQualityStable,
}

func (q PackageQuality) IsValid() bool {
	return q >= PackageQualityCI && q <= PackageQualityStable
}

func (q PackageQuality) String() string {
	switch q {
	case PackageQualityCI:
		return "ci"
	case PackageQualityExploratory:
		return "exploratory"
	case PackageQualityPreview:
		return "preview"
	case PackageQualityReleaseCandidate:
		return "rc"
	case PackageQualityStable:
		return "stable"
	default:
		return fmt.Sprintf("quality(%d)", int(q))
	}
}

// PackageLabel names the version picked for a quality bar. "latest"
// is the release candidate pick.
type PackageLabel string

const (
	PackageLabelCI          PackageLabel = "ci"
	PackageLabelExploratory PackageLabel = "exploratory"
	PackageLabelPreview     PackageLabel = "preview"
	PackageLabelLatest      PackageLabel = "latest"
	PackageLabelStable      PackageLabel = "stable"
)

func (l PackageLabel) Quality() (PackageQuality, bool) {
	switch l {
	case PackageLabelCI:
		return PackageQualityCI, true
	case PackageLabelExploratory:
		return PackageQualityExploratory, true
	case PackageLabelPreview:
		return PackageQualityPreview, true
	case PackageLabelLatest:
		return PackageQualityReleaseCandidate, true
	case PackageLabelStable:
		return PackageQualityStable, true
	default:
		return PackageQualityCI, false
	}
}

// ParsePackageLabel accepts a label name case-insensitively. "rc" and
// "release" are accepted as aliases of "latest" and "stable".
func ParsePackageLabel(value string) (PackageLabel, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "ci":
		return PackageLabelCI, true
	case "exploratory":
		return PackageLabelExploratory, true
	case "preview":
		return PackageLabelPreview, true
	case "latest", "rc", "releasecandidate", "release-candidate":
		return PackageLabelLatest, true
	case "stable", "release":
		return PackageLabelStable, true
	default:
		return "", false
	}
}

// PackageState carries feed lifecycle flags that may change without the
// package content changing.
type PackageState uint8

const (
	PackageStateNone       PackageState = 0
	PackageStateUnlisted   PackageState = 1 << 0
	PackageStateDeprecated PackageState = 1 << 1
)

func (s PackageState) Has(flag PackageState) bool {
	return s&flag == flag
}

func (s PackageState) String() string {
	if s == PackageStateNone {
		return "none"
	}
	var parts []string
	if s.Has(PackageStateUnlisted) {
		parts = append(parts, "unlisted")
	}
	if s.Has(PackageStateDeprecated) {
		parts = append(parts, "deprecated")
	}
	if rest := s &^ (PackageStateUnlisted | PackageStateDeprecated); rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint8(rest)))
	}
	return strings.Join(parts, ",")
}

// ParsePackageState parses a comma separated list of state flags. An
// empty value or "none" is PackageStateNone.
func ParsePackageState(value string) (PackageState, error) {
	state := PackageStateNone
	for _, part := range strings.Split(value, ",") {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "", "none":
		case "unlisted":
			state |= PackageStateUnlisted
		case "deprecated":
			state |= PackageStateDeprecated
		default:
			return PackageStateNone, fmt.Errorf("unknown package state %q", strings.TrimSpace(part))
		}
	}
	return state, nil
}

type PackageEventType string

const (
	PackageEventAdded                  PackageEventType = "added"
	PackageEventDestroyed              PackageEventType = "destroyed"
	PackageEventContentOnlyChanged     PackageEventType = "content-only-changed"
	PackageEventStateOnlyChanged       PackageEventType = "state-only-changed"
	PackageEventContentAndStateChanged PackageEventType = "content-and-state-changed"
)

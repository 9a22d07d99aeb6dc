package core

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	pep440 "github.com/aquasecurity/go-pep440-version"
	"github.com/blang/semver"
	debversion "github.com/knqyf263/go-deb-version"

	"packagedb/internal/types"
)

// parsedVersion is a validated version with its canonical text and
// quality tier. Only the field matching the cache scheme is set.
type parsedVersion struct {
	canonical string
	quality   types.PackageQuality
	sem       semver.Version
	pep       pep440.Version
	deb       debversion.Version
}

// versionCache memoizes parsed versions for one artifact type. Published
// databases are read concurrently, so the cache is guarded.
type versionCache struct {
	scheme types.VersionScheme
	mu     sync.RWMutex
	parsed map[string]parsedVersion
}

func newVersionCache(scheme types.VersionScheme) *versionCache {
	return &versionCache{
		scheme: scheme,
		parsed: map[string]parsedVersion{},
	}
}

// parse returns the parsed form of value, caching successes.
func (c *versionCache) parse(value string) (parsedVersion, error) {
	c.mu.RLock()
	parsed, ok := c.parsed[value]
	c.mu.RUnlock()
	if ok {
		return parsed, nil
	}
	parsed, err := parseVersion(c.scheme, value)
	if err != nil {
		return parsedVersion{}, err
	}
	c.mu.Lock()
	c.parsed[value] = parsed
	if parsed.canonical != value {
		c.parsed[parsed.canonical] = parsed
	}
	c.mu.Unlock()
	return parsed, nil
}

// compare orders two versions by scheme semantics, then ordinally, so
// distinct strings never compare equal. Unparseable values sort first.
func (c *versionCache) compare(a string, b string) int {
	if a == b {
		return 0
	}
	v1, err1 := c.parse(a)
	v2, err2 := c.parse(b)
	switch {
	case err1 != nil && err2 != nil:
		return strings.Compare(a, b)
	case err1 != nil:
		return -1
	case err2 != nil:
		return 1
	}
	var cmp int
	switch c.scheme {
	case types.VersionSchemeSemVer:
		cmp = v1.sem.Compare(v2.sem)
	case types.VersionSchemePep440:
		cmp = v1.pep.Compare(v2.pep)
	case types.VersionSchemeDeb:
		cmp = v1.deb.Compare(v2.deb)
	}
	if cmp != 0 {
		return cmp
	}
	return strings.Compare(a, b)
}

func parseVersion(scheme types.VersionScheme, value string) (parsedVersion, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return parsedVersion{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("empty version")
	}
	switch scheme {
	case types.VersionSchemeSemVer:
		v, err := semver.ParseTolerant(value)
		if err != nil {
			return parsedVersion{}, invalidVersion(scheme, value, err)
		}
		return parsedVersion{canonical: v.String(), quality: semverQuality(v), sem: v}, nil
	case types.VersionSchemePep440:
		v, err := pep440.Parse(value)
		if err != nil {
			return parsedVersion{}, invalidVersion(scheme, value, err)
		}
		return parsedVersion{canonical: value, quality: pep440Quality(value), pep: v}, nil
	case types.VersionSchemeDeb:
		v, err := debversion.NewVersion(value)
		if err != nil {
			return parsedVersion{}, invalidVersion(scheme, value, err)
		}
		return parsedVersion{canonical: value, quality: debQuality(value), deb: v}, nil
	default:
		return parsedVersion{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported version scheme %q", scheme))
	}
}

func invalidVersion(scheme types.VersionScheme, value string, err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(fmt.Sprintf("invalid %s version %q", scheme, value)).
		WithCause(err)
}

// semverQuality classifies a semantic version by its first prerelease
// identifier. Post-release CI builds ("1.0.1--ci.3") start with "-".
func semverQuality(v semver.Version) types.PackageQuality {
	if len(v.Pre) == 0 {
		return types.PackageQualityStable
	}
	first := v.Pre[0]
	if first.IsNum {
		return types.PackageQualityCI
	}
	return prereleaseLabelQuality(first.VersionStr)
}

// prereleaseLabelQuality maps a prerelease label to its tier.
func prereleaseLabelQuality(label string) types.PackageQuality {
	label = strings.ToLower(label)
	switch {
	case label == "", strings.HasPrefix(label, "-"), strings.HasPrefix(label, "ci"), strings.HasPrefix(label, "dev"):
		return types.PackageQualityCI
	case strings.HasPrefix(label, "rc"):
		return types.PackageQualityReleaseCandidate
	case strings.HasPrefix(label, "pre"):
		return types.PackageQualityPreview
	}
	for _, prefix := range exploratoryLabels {
		if strings.HasPrefix(label, prefix) {
			return types.PackageQualityExploratory
		}
	}
	return types.PackageQualityCI
}

var exploratoryLabels = []string{"alpha", "beta", "delta", "epsilon", "gamma", "kappa"}

var (
	pep440Epoch   = regexp.MustCompile(`^\d+!`)
	pep440PreKind = regexp.MustCompile(`^\d+(?:\.\d+)*[-_.]?(alpha|a|beta|b|preview|pre|rc|c)(?:[-_.]?\d+)?`)
)

// pep440Quality classifies a PEP 440 version: dev releases are CI,
// alphas exploratory, betas preview, release candidates latest.
func pep440Quality(value string) types.PackageQuality {
	lower := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(value), "v"))
	if idx := strings.Index(lower, "+"); idx >= 0 {
		lower = lower[:idx]
	}
	lower = pep440Epoch.ReplaceAllString(lower, "")
	if strings.Contains(lower, "dev") {
		return types.PackageQualityCI
	}
	match := pep440PreKind.FindStringSubmatch(lower)
	if match == nil {
		return types.PackageQualityStable
	}
	switch match[1] {
	case "alpha", "a":
		return types.PackageQualityExploratory
	case "beta", "b":
		return types.PackageQualityPreview
	default:
		return types.PackageQualityReleaseCandidate
	}
}

// debQuality treats a tilde in the upstream version as a prerelease
// marker ("2.0~rc1-1") and classifies the label that follows it.
func debQuality(value string) types.PackageQuality {
	idx := strings.Index(value, "~")
	if idx < 0 {
		return types.PackageQualityStable
	}
	return prereleaseLabelQuality(value[idx+1:])
}

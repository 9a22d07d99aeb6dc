package core

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"packagedb/internal/types"
)

// PackageInstance is one admitted package of a database generation. It
// is never modified after publication; a change allocates a new value.
type PackageInstance struct {
	key          ArtifactInstance
	dependencies []ArtifactInstance
	state        types.PackageState
	feedNames    []string
}

func (p *PackageInstance) Key() ArtifactInstance     { return p.key }
func (p *PackageInstance) State() types.PackageState { return p.state }

// Dependencies returns a copy of the declared dependencies, in order.
func (p *PackageInstance) Dependencies() []ArtifactInstance {
	return slices.Clone(p.dependencies)
}

// FeedNames returns the sorted "<Type>:<Feed>" names carrying p.
func (p *PackageInstance) FeedNames() []string {
	return slices.Clone(p.feedNames)
}

func (p *PackageInstance) HasFeed(name string) bool {
	_, found := slices.BinarySearch(p.feedNames, name)
	return found
}

func (p *PackageInstance) String() string {
	return p.key.String()
}

// sameContent reports whether both instances declare the same
// dependencies in the same order.
func (p *PackageInstance) sameContent(o *PackageInstance) bool {
	return slices.EqualFunc(p.dependencies, o.dependencies, func(a, b ArtifactInstance) bool {
		return a.Compare(b) == 0
	})
}

// equal compares by value, not identity.
func (p *PackageInstance) equal(o *PackageInstance) bool {
	return p.key.Compare(o.key) == 0 &&
		p.state == o.state &&
		p.sameContent(o) &&
		slices.Equal(p.feedNames, o.feedNames)
}

func (p *PackageInstance) withFeeds(feedNames []string) *PackageInstance {
	return &PackageInstance{
		key:          p.key,
		dependencies: p.dependencies,
		state:        p.state,
		feedNames:    feedNames,
	}
}

// PackageInfo is the raw, unvalidated description of a package handed
// to Add by an ingestion plugin.
type PackageInfo struct {
	Key          ArtifactInstance
	Dependencies []ArtifactInstance
	State        types.PackageState
	// FeedNames may be qualified ("NuGet:Public") or local ("Public");
	// local names are qualified with the key's type.
	FeedNames []string
}

// normalize validates info and returns the instance it describes.
func (info PackageInfo) normalize() (*PackageInstance, error) {
	if !info.Key.IsValid() {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("package key is invalid")
	}
	for _, dep := range info.Dependencies {
		if !dep.IsValid() {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("package %s has an invalid dependency", info.Key))
		}
		if dep.Compare(info.Key) == 0 {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("package %s depends on itself", info.Key))
		}
	}
	feeds := make([]string, 0, len(info.FeedNames))
	for _, raw := range info.FeedNames {
		name, err := QualifyFeedName(info.Key.Artifact.Type, raw)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, name)
	}
	return &PackageInstance{
		key:          info.Key,
		dependencies: slices.Clone(info.Dependencies),
		state:        info.State,
		feedNames:    sortedUnique(feeds),
	}, nil
}

// QualifyFeedName returns "<Type>:<Feed>" for a local or qualified feed
// name, rejecting names qualified with another type.
func QualifyFeedName(t *ArtifactType, name string) (string, error) {
	name = strings.TrimSpace(name)
	typeName, local, qualified := strings.Cut(name, ":")
	if !qualified {
		local = name
		typeName = t.name
	}
	local = strings.TrimSpace(local)
	if local == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("empty feed name %q", name))
	}
	if strings.TrimSpace(typeName) != t.name {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("feed %s does not carry %s artifacts", name, t.name))
	}
	return t.name + ":" + local, nil
}

// splitFeedName splits "<Type>:<Feed>".
func splitFeedName(name string) (string, string, bool) {
	typeName, local, ok := strings.Cut(name, ":")
	if !ok || typeName == "" || local == "" {
		return "", "", false
	}
	return typeName, local, true
}

func sortedUnique(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := slices.Clone(values)
	sort.Strings(out)
	return slices.Compact(out)
}

// mergeFeedNames returns the sorted union of two sorted sets.
func mergeFeedNames(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	if len(a) == 0 {
		return b
	}
	return sortedUnique(append(slices.Clone(a), b...))
}

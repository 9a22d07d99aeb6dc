package core

import (
	"slices"
	"sort"
	"strings"
)

// PackageFeed is a named subset of one artifact type's instances. It
// shares its *PackageInstance values with the database generation that
// built it.
type PackageFeed struct {
	name         string
	feedName     string
	artifactType *ArtifactType
	instances    []*PackageInstance
}

func newPackageFeed(name string, instances []*PackageInstance) *PackageFeed {
	_, local, _ := splitFeedName(name)
	return &PackageFeed{
		name:         name,
		feedName:     local,
		artifactType: instances[0].key.Artifact.Type,
		instances:    instances,
	}
}

// Name returns the qualified "<Type>:<Feed>" name.
func (f *PackageFeed) Name() string        { return f.name }
func (f *PackageFeed) FeedName() string    { return f.feedName }
func (f *PackageFeed) Type() *ArtifactType { return f.artifactType }
func (f *PackageFeed) Len() int            { return len(f.instances) }
func (f *PackageFeed) String() string      { return f.name }

// GetInstances returns the feed's instances sorted by key.
func (f *PackageFeed) GetInstances() []*PackageInstance {
	return slices.Clone(f.instances)
}

// GetArtifactInstances returns the instances of the named artifact.
func (f *PackageFeed) GetArtifactInstances(name string) []*PackageInstance {
	lo, hi := artifactRange(f.instances, name)
	return slices.Clone(f.instances[lo:hi])
}

// GetAvailableInstances returns the quality picks for the named
// artifact within this feed.
func (f *PackageFeed) GetAvailableInstances(name string) PackageQualityVersions {
	lo, hi := artifactRange(f.instances, name)
	return qualityVersionsOf(f.artifactType, f.instances[lo:hi])
}

func (f *PackageFeed) Contains(key ArtifactInstance) bool {
	_, found := searchInstances(f.instances, key)
	return found
}

// artifactRange finds the contiguous run of instances named name in a
// slice holding a single artifact type.
func artifactRange(instances []*PackageInstance, name string) (int, int) {
	lo := sort.Search(len(instances), func(i int) bool {
		return strings.Compare(instances[i].key.Artifact.Name, name) >= 0
	})
	hi := sort.Search(len(instances), func(i int) bool {
		return strings.Compare(instances[i].key.Artifact.Name, name) > 0
	})
	return lo, hi
}

// buildFeeds recomputes the feeds named in touched from instances and
// keeps every other previous feed as is. Feeds left without instances
// are omitted.
func buildFeeds(previous []*PackageFeed, instances []*PackageInstance, touched map[string]struct{}) []*PackageFeed {
	feeds := make([]*PackageFeed, 0, len(previous)+len(touched))
	for _, feed := range previous {
		if _, ok := touched[feed.name]; !ok {
			feeds = append(feeds, feed)
		}
	}
	for name := range touched {
		typeName, _, ok := splitFeedName(name)
		if !ok {
			continue
		}
		lo, hi := typeRange(instances, typeName)
		var members []*PackageInstance
		for _, instance := range instances[lo:hi] {
			if instance.HasFeed(name) {
				members = append(members, instance)
			}
		}
		if len(members) > 0 {
			feeds = append(feeds, newPackageFeed(name, members))
		}
	}
	sort.Slice(feeds, func(i, j int) bool { return feeds[i].name < feeds[j].name })
	return feeds
}

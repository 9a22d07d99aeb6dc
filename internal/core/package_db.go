package core

import (
	"slices"
	"sort"
	"strings"
)

// PackageDB is one immutable generation of the package catalog.
// Instances are strictly sorted by key and every dependency resolves to
// an instance of the same generation. Any number of goroutines may
// query a generation; writers go through Add, Remove and
// SetFeedPackages, which return a new generation.
type PackageDB struct {
	instances []*PackageInstance
	feeds     []*PackageFeed
}

// NewPackageDB returns the empty generation.
func NewPackageDB() *PackageDB {
	return &PackageDB{}
}

func (db *PackageDB) Len() int {
	return len(db.instances)
}

// Instances returns every instance sorted by key.
func (db *PackageDB) Instances() []*PackageInstance {
	return slices.Clone(db.instances)
}

// Feeds returns every non-empty feed sorted by name.
func (db *PackageDB) Feeds() []*PackageFeed {
	return slices.Clone(db.feeds)
}

func (db *PackageDB) Find(key ArtifactInstance) *PackageInstance {
	idx, found := searchInstances(db.instances, key)
	if !found {
		return nil
	}
	return db.instances[idx]
}

func (db *PackageDB) FindFeed(name string) *PackageFeed {
	idx, found := slices.BinarySearchFunc(db.feeds, strings.TrimSpace(name), func(f *PackageFeed, target string) int {
		return strings.Compare(f.name, target)
	})
	if !found {
		return nil
	}
	return db.feeds[idx]
}

// GetInstancesByType returns the instances of t, in key order.
func (db *PackageDB) GetInstancesByType(t *ArtifactType) []*PackageInstance {
	if t == nil {
		return nil
	}
	lo, hi := typeRange(db.instances, t.name)
	return slices.Clone(db.instances[lo:hi])
}

// GetArtifactInstances returns the instances of artifact a, oldest
// version first.
func (db *PackageDB) GetArtifactInstances(a Artifact) []*PackageInstance {
	lo, hi := db.artifactBounds(a)
	return slices.Clone(db.instances[lo:hi])
}

// GetAvailableInstances returns the quality picks for a across every
// feed and every unfed instance of the database.
func (db *PackageDB) GetAvailableInstances(a Artifact) PackageQualityVersions {
	lo, hi := db.artifactBounds(a)
	return qualityVersionsOf(a.Type, db.instances[lo:hi])
}

// GetAvailableInstancesInFeeds merges the quality picks of a from the
// named feeds. Unknown feeds are ignored.
func (db *PackageDB) GetAvailableInstancesInFeeds(a Artifact, feedNames []string) PackageQualityVersions {
	result := PackageQualityVersions{artifactType: a.Type}
	for _, name := range feedNames {
		feed := db.FindFeed(name)
		if feed == nil || compareTypes(feed.artifactType, a.Type) != 0 {
			continue
		}
		result = result.With(feed.GetAvailableInstances(a.Name))
	}
	return result
}

// Equal compares two generations by value: same instances in the same
// order and the same feed membership.
func (db *PackageDB) Equal(o *PackageDB) bool {
	if db == o {
		return true
	}
	if db == nil || o == nil {
		return false
	}
	if !slices.EqualFunc(db.instances, o.instances, (*PackageInstance).equal) {
		return false
	}
	return slices.EqualFunc(db.feeds, o.feeds, func(a, b *PackageFeed) bool {
		return a.name == b.name && slices.EqualFunc(a.instances, b.instances, func(x, y *PackageInstance) bool {
			return x.key.Compare(y.key) == 0
		})
	})
}

func (db *PackageDB) artifactBounds(a Artifact) (int, int) {
	if !a.IsValid() {
		return 0, 0
	}
	lo := sort.Search(len(db.instances), func(i int) bool {
		return db.instances[i].key.Artifact.Compare(a) >= 0
	})
	hi := sort.Search(len(db.instances), func(i int) bool {
		return db.instances[i].key.Artifact.Compare(a) > 0
	})
	return lo, hi
}

func searchInstances(instances []*PackageInstance, key ArtifactInstance) (int, bool) {
	return slices.BinarySearchFunc(instances, key, func(p *PackageInstance, target ArtifactInstance) int {
		return p.key.Compare(target)
	})
}

// typeRange finds the contiguous run of instances whose type is named
// typeName.
func typeRange(instances []*PackageInstance, typeName string) (int, int) {
	lo := sort.Search(len(instances), func(i int) bool {
		return strings.Compare(instances[i].key.Artifact.Type.name, typeName) >= 0
	})
	hi := sort.Search(len(instances), func(i int) bool {
		return strings.Compare(instances[i].key.Artifact.Type.name, typeName) > 0
	})
	return lo, hi
}

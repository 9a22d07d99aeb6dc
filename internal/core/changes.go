package core

import (
	"strings"

	"packagedb/internal/types"
)

type PackageChangedInfo struct {
	ChangeType types.PackageEventType
	// Package is the new instance, or the old one when destroyed.
	Package *PackageInstance
}

// FeedChangedInfo describes a membership change of a feed present in
// both generations. RemovedPackages come from the previous generation
// since they may no longer exist.
type FeedChangedInfo struct {
	Feed            *PackageFeed
	AddedPackages   []*PackageInstance
	RemovedPackages []*PackageInstance
}

// ChangedInfo is the delta between two generations.
type ChangedInfo struct {
	DB             *PackageDB
	HasChanged     bool
	PackageChanges []PackageChangedInfo
	NewFeeds       []*PackageFeed
	DroppedFeeds   []*PackageFeed
	FeedChanges    []FeedChangedInfo
}

// Diff compares two generations. HasChanged is false only when they
// are the same generation. A nil previous is the empty database.
func Diff(previous, next *PackageDB) ChangedInfo {
	if previous == nil {
		previous = NewPackageDB()
	}
	if previous == next {
		return ChangedInfo{DB: next}
	}
	return ChangedInfo{
		DB:             next,
		HasChanged:     true,
		PackageChanges: diffPackages(previous.instances, next.instances),
		NewFeeds:       subtractFeeds(next.feeds, previous.feeds),
		DroppedFeeds:   subtractFeeds(previous.feeds, next.feeds),
		FeedChanges:    diffFeeds(previous.feeds, next.feeds),
	}
}

// diffPackages merge-walks two sorted instance sequences.
func diffPackages(before, after []*PackageInstance) []PackageChangedInfo {
	var changes []PackageChangedInfo
	walkInstances(before, after,
		func(removed *PackageInstance) {
			changes = append(changes, PackageChangedInfo{ChangeType: types.PackageEventDestroyed, Package: removed})
		},
		func(added *PackageInstance) {
			changes = append(changes, PackageChangedInfo{ChangeType: types.PackageEventAdded, Package: added})
		},
		func(old, current *PackageInstance) {
			if old == current {
				return
			}
			contentChanged := !old.sameContent(current)
			stateChanged := old.state != current.state
			switch {
			case contentChanged && stateChanged:
				changes = append(changes, PackageChangedInfo{ChangeType: types.PackageEventContentAndStateChanged, Package: current})
			case contentChanged:
				changes = append(changes, PackageChangedInfo{ChangeType: types.PackageEventContentOnlyChanged, Package: current})
			case stateChanged:
				changes = append(changes, PackageChangedInfo{ChangeType: types.PackageEventStateOnlyChanged, Package: current})
			}
		})
	return changes
}

func diffFeeds(before, after []*PackageFeed) []FeedChangedInfo {
	var changes []FeedChangedInfo
	i, j := 0, 0
	for i < len(before) && j < len(after) {
		switch c := strings.Compare(before[i].name, after[j].name); {
		case c < 0:
			i++
		case c > 0:
			j++
		default:
			if before[i] != after[j] {
				if change, ok := diffFeedMembers(before[i], after[j]); ok {
					changes = append(changes, change)
				}
			}
			i++
			j++
		}
	}
	return changes
}

func diffFeedMembers(before, after *PackageFeed) (FeedChangedInfo, bool) {
	change := FeedChangedInfo{Feed: after}
	walkInstances(before.instances, after.instances,
		func(removed *PackageInstance) {
			change.RemovedPackages = append(change.RemovedPackages, removed)
		},
		func(added *PackageInstance) {
			change.AddedPackages = append(change.AddedPackages, added)
		},
		func(_, _ *PackageInstance) {})
	return change, len(change.AddedPackages) > 0 || len(change.RemovedPackages) > 0
}

// subtractFeeds returns the feeds of a whose name is absent from b.
func subtractFeeds(a, b []*PackageFeed) []*PackageFeed {
	var out []*PackageFeed
	j := 0
	for _, feed := range a {
		for j < len(b) && b[j].name < feed.name {
			j++
		}
		if j < len(b) && b[j].name == feed.name {
			continue
		}
		out = append(out, feed)
	}
	return out
}

func walkInstances(before, after []*PackageInstance, onlyBefore, onlyAfter func(*PackageInstance), both func(old, current *PackageInstance)) {
	i, j := 0, 0
	for i < len(before) && j < len(after) {
		switch c := before[i].key.Compare(after[j].key); {
		case c < 0:
			onlyBefore(before[i])
			i++
		case c > 0:
			onlyAfter(after[j])
			j++
		default:
			both(before[i], after[j])
			i++
			j++
		}
	}
	for ; i < len(before); i++ {
		onlyBefore(before[i])
	}
	for ; j < len(after); j++ {
		onlyAfter(after[j])
	}
}

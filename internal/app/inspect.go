package app

import (
	"context"
	"slices"
	"sort"

	"packagedb/internal/core"
	"packagedb/internal/types"
)

// Inspect summarizes the snapshot and, when a mirror directory is
// given, reports listings that no longer match their feed.
func (s Service) Inspect(ctx context.Context, req InspectRequest) (InspectResult, error) {
	store, err := s.store(req.SnapshotPath)
	if err != nil {
		return InspectResult{}, err
	}
	db, err := store.Load(ctx, s.Registry)
	if err != nil {
		return InspectResult{}, err
	}
	result := InspectResult{
		Instances: db.Len(),
		Types:     summarizeTypes(s.Registry, db),
	}
	for _, feed := range db.Feeds() {
		result.Feeds = append(result.Feeds, InspectFeedSummary{Name: feed.Name(), Packages: feed.Len()})
	}

	mirror := s.mirror(req.MirrorDir)
	if mirror == nil {
		return result, nil
	}
	listings, err := mirror.ReadListings(ctx)
	if err != nil {
		return InspectResult{}, err
	}
	result.MissingListings, result.StaleListings, result.OrphanListings = compareListings(db, listings)
	return result, nil
}

func summarizeTypes(registry *core.ArtifactTypeRegistry, db *core.PackageDB) []InspectTypeSummary {
	var summaries []InspectTypeSummary
	for _, t := range registry.Types() {
		instances := db.GetInstancesByType(t)
		artifacts := 0
		for i, instance := range instances {
			if i == 0 || instances[i-1].Key().Artifact != instance.Key().Artifact {
				artifacts++
			}
		}
		summaries = append(summaries, InspectTypeSummary{
			Name:        t.Name(),
			Installable: t.IsInstallable(),
			Artifacts:   artifacts,
			Instances:   len(instances),
		})
	}
	return summaries
}

// compareListings matches mirror listings to feeds by name and content.
func compareListings(db *core.PackageDB, listings []types.FeedListingFile) (missing []string, stale []string, orphan []string) {
	byFeed := make(map[string]types.FeedListingFile, len(listings))
	for _, listing := range listings {
		byFeed[listing.Feed] = listing
	}
	for _, feed := range db.Feeds() {
		listing, ok := byFeed[feed.Name()]
		if !ok {
			missing = append(missing, feed.Name())
			continue
		}
		delete(byFeed, feed.Name())
		if !listingMatches(feed, listing) {
			stale = append(stale, feed.Name())
		}
	}
	for name := range byFeed {
		orphan = append(orphan, name)
	}
	sort.Strings(orphan)
	return missing, stale, orphan
}

func listingMatches(feed *core.PackageFeed, listing types.FeedListingFile) bool {
	want := make([]string, 0, feed.Len())
	for _, instance := range feed.GetInstances() {
		entry := instance.Key().Artifact.Name + "/" + instance.Key().Version
		if state := instance.State(); state != types.PackageStateNone {
			entry += "#" + state.String()
		}
		want = append(want, entry)
	}
	got := make([]string, 0, len(listing.Packages))
	for _, entry := range listing.Packages {
		text := entry.Name + "/" + entry.Version
		if entry.State != "" {
			text += "#" + entry.State
		}
		got = append(got, text)
	}
	sort.Strings(want)
	sort.Strings(got)
	return slices.Equal(want, got)
}

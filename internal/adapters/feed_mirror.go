package adapters

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"packagedb/internal/core"
	"packagedb/internal/ports"
	"packagedb/internal/shared"
	"packagedb/internal/types"
)

const listingExt = ".yaml"

// FeedMirrorAdapter keeps one YAML listing per feed under Dir, laid out
// as <Dir>/<Type>/<Feed>.yaml. Only feeds touched by a change are
// rewritten.
type FeedMirrorAdapter struct {
	Dir string
}

func NewFeedMirrorAdapter(dir string) FeedMirrorAdapter {
	return FeedMirrorAdapter{Dir: dir}
}

func (a FeedMirrorAdapter) Apply(ctx context.Context, changes core.ChangedInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(a.Dir) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("mirror directory is empty")
	}
	if !changes.HasChanged || changes.DB == nil {
		return nil
	}

	for _, feed := range changes.DroppedFeeds {
		path := a.listingPath(feed.Type().Name(), feed.FeedName())
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to remove feed listing").
				WithCause(err)
		}
		log.Ctx(ctx).Debug().Str("feed", feed.Name()).Msg("feed listing removed")
	}

	for _, name := range dirtyFeeds(changes) {
		feed := changes.DB.FindFeed(name)
		if feed == nil {
			continue
		}
		if err := a.writeListing(feed); err != nil {
			return err
		}
		log.Ctx(ctx).Debug().Str("feed", name).Int("packages", feed.Len()).Msg("feed listing written")
	}
	return nil
}

// ReadListings returns every listing under Dir sorted by feed name.
func (a FeedMirrorAdapter) ReadListings(ctx context.Context) ([]types.FeedListingFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.Dir) == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("mirror directory is empty")
	}
	paths, err := filepath.Glob(filepath.Join(a.Dir, "*", "*"+listingExt))
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to list feed listings").
			WithCause(err)
	}
	listings := make([]types.FeedListingFile, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to read feed listing").
				WithCause(err)
		}
		var listing types.FeedListingFile
		if err := yaml.Unmarshal(data, &listing); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("invalid feed listing format: " + path).
				WithCause(err)
		}
		listings = append(listings, listing)
	}
	sort.Slice(listings, func(i, j int) bool {
		return listings[i].Feed < listings[j].Feed
	})
	return listings, nil
}

func (a FeedMirrorAdapter) writeListing(feed *core.PackageFeed) error {
	listing := types.FeedListingFile{
		Feed: feed.Name(),
		Type: feed.Type().Name(),
	}
	for _, instance := range feed.GetInstances() {
		key := instance.Key()
		entry := types.FeedListingEntry{
			Name:    key.Artifact.Name,
			Version: key.Version,
			Quality: key.Quality().String(),
			PURL:    key.PackageURL(),
		}
		if state := instance.State(); state != types.PackageStateNone {
			entry.State = state.String()
		}
		for _, dep := range instance.Dependencies() {
			entry.Dependencies = append(entry.Dependencies, dep.String())
		}
		listing.Packages = append(listing.Packages, entry)
	}
	data, err := yaml.Marshal(listing)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode feed listing").
			WithCause(err)
	}
	if err := shared.WriteFileAtomic(a.listingPath(listing.Type, feed.FeedName()), data, 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write feed listing").
			WithCause(err)
	}
	return nil
}

// listingPath escapes both segments so feed names can never leave Dir.
func (a FeedMirrorAdapter) listingPath(typeName string, feedName string) string {
	return filepath.Join(a.Dir, url.PathEscape(typeName), url.PathEscape(feedName)+listingExt)
}

// dirtyFeeds lists the feeds whose listing differs after changes: new
// feeds, feeds whose membership moved, and feeds holding a package
// whose dependencies or state changed.
func dirtyFeeds(changes core.ChangedInfo) []string {
	dirty := map[string]struct{}{}
	for _, feed := range changes.NewFeeds {
		dirty[feed.Name()] = struct{}{}
	}
	for _, change := range changes.FeedChanges {
		dirty[change.Feed.Name()] = struct{}{}
	}
	for _, change := range changes.PackageChanges {
		switch change.ChangeType {
		case types.PackageEventContentOnlyChanged, types.PackageEventStateOnlyChanged, types.PackageEventContentAndStateChanged:
			for _, name := range change.Package.FeedNames() {
				dirty[name] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(dirty))
	for name := range dirty {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	_ ports.ChangeObserverPort   = FeedMirrorAdapter{}
	_ ports.FeedMirrorReaderPort = FeedMirrorAdapter{}
)

package core

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
)

// Remove destroys the instances named by keys. Unknown keys are
// ignored. Removing an instance that a remaining instance depends on
// fails and leaves db untouched.
func (db *PackageDB) Remove(ctx context.Context, keys []ArtifactInstance) (*PackageDB, ChangedInfo, error) {
	removed := map[int]struct{}{}
	for _, key := range keys {
		if idx, found := searchInstances(db.instances, key); found {
			removed[idx] = struct{}{}
		}
	}
	if len(removed) == 0 {
		log.Ctx(ctx).Debug().Int("requested", len(keys)).Msg("nothing to remove")
		return db, Diff(db, db), nil
	}
	for idx, instance := range db.instances {
		if _, ok := removed[idx]; ok {
			continue
		}
		for _, dep := range instance.dependencies {
			depIdx, found := searchInstances(db.instances, dep)
			if !found {
				continue
			}
			if _, ok := removed[depIdx]; ok {
				return nil, ChangedInfo{}, errbuilder.New().
					WithCode(errbuilder.CodeFailedPrecondition).
					WithMsg(fmt.Sprintf("missing dependency %s of package %s", dep, instance.key))
			}
		}
	}

	w := newWriter(db)
	for idx := len(db.instances) - 1; idx >= 0; idx-- {
		if _, ok := removed[idx]; ok {
			w.remove(idx)
		}
	}
	return w.publish(ctx)
}

// SetFeedPackages makes keys the exact membership of the qualified feed
// feedName. Every key must exist and be of the feed's type. An empty
// keys drops the feed.
func (db *PackageDB) SetFeedPackages(ctx context.Context, feedName string, keys []ArtifactInstance) (*PackageDB, ChangedInfo, error) {
	feedName = strings.TrimSpace(feedName)
	typeName, _, ok := splitFeedName(feedName)
	if !ok {
		return nil, ChangedInfo{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid feed name %q: expected <Type>:<Feed>", feedName))
	}
	wanted := map[int]struct{}{}
	for _, key := range keys {
		if key.Artifact.Type == nil || key.Artifact.Type.name != typeName {
			return nil, ChangedInfo{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("feed %s does not carry %s", feedName, key))
		}
		idx, found := searchInstances(db.instances, key)
		if !found {
			return nil, ChangedInfo{}, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("unknown package %s", key))
		}
		wanted[idx] = struct{}{}
	}

	w := newWriter(db)
	lo, hi := typeRange(db.instances, typeName)
	for idx := lo; idx < hi; idx++ {
		instance := db.instances[idx]
		_, want := wanted[idx]
		has := instance.HasFeed(feedName)
		switch {
		case want && !has:
			w.replace(idx, instance.withFeeds(mergeFeedNames(instance.feedNames, []string{feedName})))
		case !want && has:
			w.replace(idx, instance.withFeeds(slices.DeleteFunc(slices.Clone(instance.feedNames), func(name string) bool {
				return name == feedName
			})))
		}
	}
	if len(wanted) == 0 && w.copied {
		log.Ctx(ctx).Debug().Str("feed", feedName).Msg("feed emptied")
	}
	return w.publish(ctx)
}

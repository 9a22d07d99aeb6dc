package core

import (
	"context"
	"fmt"
	"slices"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
)

// Add admits batch in order and returns the next generation with the
// changes it introduced. The batch is atomic: on error db is untouched
// and no generation is returned.
//
// A key already present is updated when its dependencies, state or
// feeds differ (feeds accumulate). An identical key is skipped when
// skipExisting is set and is a duplicate error otherwise. Dependencies
// must resolve against db or an earlier item of the batch.
//
// When nothing changes the receiver itself is returned.
func (db *PackageDB) Add(ctx context.Context, batch []PackageInfo, skipExisting bool) (*PackageDB, ChangedInfo, error) {
	w := newWriter(db)
	for _, info := range batch {
		candidate, err := info.normalize()
		if err != nil {
			return nil, ChangedInfo{}, err
		}
		idx, found := searchInstances(w.instances, candidate.key)
		if !found {
			if err := w.checkDependencies(candidate); err != nil {
				return nil, ChangedInfo{}, err
			}
			w.insert(idx, candidate)
			continue
		}

		existing := w.instances[idx]
		candidate.feedNames = mergeFeedNames(existing.feedNames, candidate.feedNames)
		contentChanged := !existing.sameContent(candidate)
		if !contentChanged && existing.state == candidate.state && slices.Equal(existing.feedNames, candidate.feedNames) {
			if skipExisting {
				log.Ctx(ctx).Debug().Str("package", candidate.key.String()).Msg("skipping existing package")
				continue
			}
			return nil, ChangedInfo{}, errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg(fmt.Sprintf("duplicate package %s", candidate.key))
		}
		if contentChanged {
			if err := w.checkDependencies(candidate); err != nil {
				return nil, ChangedInfo{}, err
			}
		}
		w.replace(idx, candidate)
	}
	return w.publish(ctx)
}

// writer accumulates the changes of one write operation over a copy of
// the instance slice, allocated on the first change.
type writer struct {
	base      *PackageDB
	instances []*PackageInstance
	copied    bool
	touched   map[string]struct{}
}

func newWriter(base *PackageDB) *writer {
	return &writer{
		base:      base,
		instances: base.instances,
		touched:   map[string]struct{}{},
	}
}

func (w *writer) own() {
	if !w.copied {
		w.instances = slices.Clone(w.instances)
		w.copied = true
	}
}

func (w *writer) touch(feedNames []string) {
	for _, name := range feedNames {
		w.touched[name] = struct{}{}
	}
}

func (w *writer) insert(idx int, instance *PackageInstance) {
	w.own()
	w.instances = slices.Insert(w.instances, idx, instance)
	w.touch(instance.feedNames)
}

func (w *writer) replace(idx int, instance *PackageInstance) {
	w.own()
	w.touch(w.instances[idx].feedNames)
	w.touch(instance.feedNames)
	w.instances[idx] = instance
}

func (w *writer) remove(idx int) {
	w.own()
	w.touch(w.instances[idx].feedNames)
	w.instances = slices.Delete(w.instances, idx, idx+1)
}

// checkDependencies verifies that every dependency of candidate is
// present in the running set of instances.
func (w *writer) checkDependencies(candidate *PackageInstance) error {
	for _, dep := range candidate.dependencies {
		if _, found := searchInstances(w.instances, dep); !found {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("missing dependency %s of package %s", dep, candidate.key))
		}
	}
	return nil
}

// publish builds the next generation, or returns the base when nothing
// changed.
func (w *writer) publish(ctx context.Context) (*PackageDB, ChangedInfo, error) {
	if !w.copied {
		return w.base, Diff(w.base, w.base), nil
	}
	next := &PackageDB{
		instances: w.instances,
		feeds:     buildFeeds(w.base.feeds, w.instances, w.touched),
	}
	changes := Diff(w.base, next)
	log.Ctx(ctx).Debug().
		Int("instances", len(next.instances)).
		Int("feeds", len(next.feeds)).
		Int("package_changes", len(changes.PackageChanges)).
		Int("new_feeds", len(changes.NewFeeds)).
		Int("dropped_feeds", len(changes.DroppedFeeds)).
		Msg("package db generation published")
	return next, changes, nil
}

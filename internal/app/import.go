package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"packagedb/internal/core"
	"packagedb/internal/ports"
	"packagedb/internal/shared"
	"packagedb/internal/types"
)

// Import admits the packages of a feed manifest into the snapshot,
// applies the manifest's replace feeds and forwards the resulting delta
// to the mirror.
func (s Service) Import(ctx context.Context, req ImportRequest) (ImportResult, error) {
	manifestPath := strings.TrimSpace(req.ManifestPath)
	if manifestPath == "" {
		return ImportResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("manifest path is required")
	}
	store, err := s.store(req.SnapshotPath)
	if err != nil {
		return ImportResult{}, err
	}
	manifest, err := s.Manifests.ReadManifest(manifestPath)
	if err != nil {
		return ImportResult{}, err
	}

	unlock := s.lockWriter()
	defer unlock()

	original, err := store.Load(ctx, s.Registry)
	if err != nil {
		return ImportResult{}, err
	}
	batch, err := s.manifestBatch(ctx, manifest)
	if err != nil {
		return ImportResult{}, err
	}
	next, _, err := original.Add(ctx, dependencyOrder(batch), req.SkipExisting)
	if err != nil {
		return ImportResult{}, err
	}
	replaced, err := replaceTargets(s.Registry, manifest.Feeds, batch)
	if err != nil {
		return ImportResult{}, err
	}
	for _, name := range sortedFeedKeys(replaced) {
		next, _, err = next.SetFeedPackages(ctx, name, replaced[name])
		if err != nil {
			return ImportResult{}, err
		}
	}

	changes := core.Diff(original, next)
	result := importResult(changes)
	if !changes.HasChanged {
		log.Ctx(ctx).Info().Str("manifest", manifestPath).Msg("package db unchanged")
		return result, nil
	}
	result.Generation, err = s.publish(ctx, store, publishTarget{MirrorDir: req.MirrorDir, HistoryDir: req.HistoryDir}, changes)
	if err != nil {
		return ImportResult{}, err
	}
	log.Ctx(ctx).Info().
		Str("manifest", manifestPath).
		Str("generation", result.Generation).
		Int("added", len(result.Added)).
		Int("updated", len(result.Updated)).
		Int("destroyed", len(result.Destroyed)).
		Int("instances", result.Instances).
		Msg("manifest imported")
	return result, nil
}

type publishTarget struct {
	MirrorDir  string
	HistoryDir string
}

// publish saves the new generation, updates the mirror and records the
// generation in the history. The snapshot is the source of truth, so a
// later failure leaves a saved snapshot behind. The returned id is empty
// when no history is configured.
func (s Service) publish(ctx context.Context, store ports.SnapshotStorePort, target publishTarget, changes core.ChangedInfo) (string, error) {
	if err := store.Save(ctx, changes.DB); err != nil {
		return "", err
	}
	if mirror := s.mirror(target.MirrorDir); mirror != nil {
		if err := mirror.Apply(ctx, changes); err != nil {
			return "", err
		}
	}
	history := s.history(target.HistoryDir)
	if history == nil {
		return "", nil
	}
	id := timeNow(s.Clock).Format(types.GenerationIDLayout)
	if err := history.Record(ctx, id, changes.DB); err != nil {
		return "", err
	}
	return id, nil
}

func (s Service) manifestBatch(ctx context.Context, manifest types.FeedManifestFile) ([]core.PackageInfo, error) {
	batch := make([]core.PackageInfo, 0, len(manifest.Packages))
	for _, entry := range manifest.Packages {
		assert.NotEmpty(ctx, entry.Type, "package type must be set")
		assert.NotEmpty(ctx, entry.Name, "package name must be set")
		t := s.Registry.Find(strings.TrimSpace(entry.Type))
		if t == nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("unknown artifact type %q", entry.Type))
		}
		key, err := newInstance(t, entry.Name, entry.Version)
		if err != nil {
			return nil, err
		}
		state, err := types.ParsePackageState(entry.State)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("package %s: %v", key, err))
		}
		info := core.PackageInfo{Key: key, State: state, FeedNames: entry.Feeds}
		for _, text := range entry.Dependencies {
			dep, err := s.parseDependency(t, text)
			if err != nil {
				return nil, err
			}
			info.Dependencies = append(info.Dependencies, dep)
		}
		batch = append(batch, info)
	}
	return batch, nil
}

// normalizeArtifact applies the PEP 503 name normalization to Python
// packages so differently spelled names share one artifact.
func normalizeArtifact(t *core.ArtifactType, name string) (core.Artifact, error) {
	if t != nil && t.Scheme() == types.VersionSchemePep440 {
		name = shared.NormalizePipName(name)
	}
	return core.NewArtifact(t, name)
}

func newInstance(t *core.ArtifactType, name string, version string) (core.ArtifactInstance, error) {
	artifact, err := normalizeArtifact(t, name)
	if err != nil {
		return core.ArtifactInstance{}, err
	}
	return core.NewArtifactInstance(artifact, version)
}

// parseInstance parses "<Type>:<Name>/<Version>".
func (s Service) parseInstance(text string) (core.ArtifactInstance, error) {
	key, err := s.Registry.ParseArtifactInstance(text)
	if err != nil {
		return core.ArtifactInstance{}, err
	}
	return newInstance(key.Artifact.Type, key.Artifact.Name, key.Version)
}

// parseDependency accepts "<Type>:<Name>/<Version>" or, for a
// dependency of the same type t, "<Name>/<Version>". A colon after the
// first slash belongs to the version (Debian epochs).
func (s Service) parseDependency(t *core.ArtifactType, text string) (core.ArtifactInstance, error) {
	text = strings.TrimSpace(text)
	if prefix, _, ok := strings.Cut(text, ":"); ok && !strings.Contains(prefix, "/") {
		return s.parseInstance(text)
	}
	return s.parseInstance(t.Name() + ":" + text)
}

// dependencyOrder reorders batch so that each package follows the batch
// packages it depends on, keeping manifest order otherwise. Cycles are
// left for Add to reject.
func dependencyOrder(batch []core.PackageInfo) []core.PackageInfo {
	index := make(map[core.ArtifactInstance]int, len(batch))
	for i, info := range batch {
		if _, seen := index[info.Key]; !seen {
			index[info.Key] = i
		}
	}
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(batch))
	ordered := make([]core.PackageInfo, 0, len(batch))
	var visit func(i int)
	visit = func(i int) {
		if state[i] != unvisited {
			return
		}
		state[i] = visiting
		for _, dep := range batch[i].Dependencies {
			if j, ok := index[dep]; ok {
				visit(j)
			}
		}
		state[i] = done
		ordered = append(ordered, batch[i])
	}
	for i := range batch {
		visit(i)
	}
	return ordered
}

// replaceTargets maps every qualified feed a replace entry names to the
// manifest packages listing it. A local name applies to every type whose
// packages list it; a qualified name with no packages empties the feed.
func replaceTargets(registry *core.ArtifactTypeRegistry, feeds []types.FeedManifestEntry, batch []core.PackageInfo) (map[string][]core.ArtifactInstance, error) {
	listed := map[string][]core.ArtifactInstance{}
	for _, info := range batch {
		for _, raw := range info.FeedNames {
			name, err := core.QualifyFeedName(info.Key.Artifact.Type, raw)
			if err != nil {
				return nil, err
			}
			listed[name] = append(listed[name], info.Key)
		}
	}
	targets := map[string][]core.ArtifactInstance{}
	for _, feed := range feeds {
		if !feed.Replace {
			continue
		}
		name := strings.TrimSpace(feed.Name)
		if typeName, _, qualified := strings.Cut(name, ":"); qualified {
			t := registry.Find(strings.TrimSpace(typeName))
			if t == nil {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInvalidArgument).
					WithMsg(fmt.Sprintf("unknown artifact type %q in feed %s", typeName, name))
			}
			qualifiedName, err := core.QualifyFeedName(t, name)
			if err != nil {
				return nil, err
			}
			targets[qualifiedName] = listed[qualifiedName]
			continue
		}
		found := false
		for qualifiedName, keys := range listed {
			if _, local, _ := strings.Cut(qualifiedName, ":"); local == name {
				targets[qualifiedName] = keys
				found = true
			}
		}
		if !found {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("replace feed %q lists no package; qualify it as <Type>:<Feed>", name))
		}
	}
	return targets, nil
}

func sortedFeedKeys(m map[string][]core.ArtifactInstance) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func importResult(changes core.ChangedInfo) ImportResult {
	result := ImportResult{Changed: changes.HasChanged}
	if changes.DB != nil {
		result.Instances = changes.DB.Len()
	}
	for _, change := range changes.PackageChanges {
		key := change.Package.Key().String()
		switch change.ChangeType {
		case types.PackageEventAdded:
			result.Added = append(result.Added, key)
		case types.PackageEventDestroyed:
			result.Destroyed = append(result.Destroyed, key)
		default:
			result.Updated = append(result.Updated, key)
		}
	}
	result.NewFeeds = feedNames(changes.NewFeeds)
	result.DroppedFeeds = feedNames(changes.DroppedFeeds)
	for _, change := range changes.FeedChanges {
		result.ChangedFeeds = append(result.ChangedFeeds, change.Feed.Name())
	}
	return result
}

func feedNames(feeds []*core.PackageFeed) []string {
	var names []string
	for _, feed := range feeds {
		names = append(names, feed.Name())
	}
	return names
}

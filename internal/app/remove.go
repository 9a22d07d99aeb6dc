package app

import (
	"context"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"packagedb/internal/core"
)

func (s Service) Remove(ctx context.Context, req RemoveRequest) (RemoveResult, error) {
	if len(req.Packages) == 0 {
		return RemoveResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("at least one package is required")
	}
	store, err := s.store(req.SnapshotPath)
	if err != nil {
		return RemoveResult{}, err
	}

	unlock := s.lockWriter()
	defer unlock()

	db, err := store.Load(ctx, s.Registry)
	if err != nil {
		return RemoveResult{}, err
	}
	keys := make([]core.ArtifactInstance, 0, len(req.Packages))
	for _, text := range req.Packages {
		key, err := s.parseInstance(text)
		if err != nil {
			return RemoveResult{}, err
		}
		keys = append(keys, key)
	}
	next, changes, err := db.Remove(ctx, keys)
	if err != nil {
		return RemoveResult{}, err
	}
	result := RemoveResult{
		Changed:      changes.HasChanged,
		Instances:    next.Len(),
		DroppedFeeds: feedNames(changes.DroppedFeeds),
	}
	for _, change := range changes.PackageChanges {
		result.Removed = append(result.Removed, change.Package.Key().String())
	}
	if !changes.HasChanged {
		log.Ctx(ctx).Info().Int("requested", len(keys)).Msg("no package removed")
		return result, nil
	}
	result.Generation, err = s.publish(ctx, store, publishTarget{MirrorDir: req.MirrorDir, HistoryDir: req.HistoryDir}, changes)
	if err != nil {
		return RemoveResult{}, err
	}
	log.Ctx(ctx).Info().
		Str("generation", result.Generation).
		Int("removed", len(result.Removed)).
		Int("instances", result.Instances).
		Msg("packages removed")
	return result, nil
}

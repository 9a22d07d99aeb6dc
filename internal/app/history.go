package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"packagedb/internal/core"
	"packagedb/internal/ports"
)

const currentGeneration = "current"

func (s Service) ListGenerations(ctx context.Context, req HistoryRequest) (HistoryResult, error) {
	history, err := s.requireHistory(req.HistoryDir)
	if err != nil {
		return HistoryResult{}, err
	}
	generations, err := history.ListGenerations(ctx)
	if err != nil {
		return HistoryResult{}, err
	}
	return HistoryResult{Generations: generations}, nil
}

// TagGeneration points tag at a generation. Ref may itself be a tag, so
// a generation can be promoted from one tag to the next.
func (s Service) TagGeneration(ctx context.Context, req TagRequest) (TagResult, error) {
	history, err := s.requireHistory(req.HistoryDir)
	if err != nil {
		return TagResult{}, err
	}
	tag := strings.TrimSpace(req.Tag)
	if tag == "" {
		return TagResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("tag is required")
	}
	id, err := history.Resolve(ctx, req.Ref)
	if err != nil {
		return TagResult{}, err
	}
	if err := history.Tag(ctx, id, tag); err != nil {
		return TagResult{}, err
	}
	log.Ctx(ctx).Info().Str("generation", id).Str("tag", tag).Msg("generation tagged")
	return TagResult{ID: id, Tag: tag}, nil
}

// DiffGenerations reports what changed between two recorded
// generations, or between one and the current snapshot.
func (s Service) DiffGenerations(ctx context.Context, req DiffRequest) (DiffResult, error) {
	history, err := s.requireHistory(req.HistoryDir)
	if err != nil {
		return DiffResult{}, err
	}
	if s.Registry == nil {
		return DiffResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("service is not initialized")
	}
	fromID, from, err := s.loadGeneration(ctx, history, req.From)
	if err != nil {
		return DiffResult{}, err
	}

	toID := currentGeneration
	var to *core.PackageDB
	if strings.TrimSpace(req.To) == "" {
		store, err := s.store(req.SnapshotPath)
		if err != nil {
			return DiffResult{}, err
		}
		if to, err = store.Load(ctx, s.Registry); err != nil {
			return DiffResult{}, err
		}
	} else if toID, to, err = s.loadGeneration(ctx, history, req.To); err != nil {
		return DiffResult{}, err
	}

	summary := importResult(core.Diff(from, to))
	return DiffResult{
		From:         fromID,
		To:           toID,
		Changed:      !from.Equal(to),
		Added:        summary.Added,
		Updated:      summary.Updated,
		Destroyed:    summary.Destroyed,
		NewFeeds:     summary.NewFeeds,
		DroppedFeeds: summary.DroppedFeeds,
		ChangedFeeds: summary.ChangedFeeds,
	}, nil
}

func (s Service) loadGeneration(ctx context.Context, history ports.GenerationHistoryPort, ref string) (string, *core.PackageDB, error) {
	if strings.TrimSpace(ref) == "" {
		return "", nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("generation reference is required")
	}
	id, err := history.Resolve(ctx, ref)
	if err != nil {
		return "", nil, err
	}
	db, err := history.Load(ctx, id, s.Registry)
	if err != nil {
		return "", nil, err
	}
	return id, db, nil
}

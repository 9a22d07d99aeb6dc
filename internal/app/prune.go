package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"packagedb/internal/types"
)

// PruneGenerations applies a retention policy to the history. The
// current snapshot is never touched.
func (s Service) PruneGenerations(ctx context.Context, req PruneRequest) (PruneResult, error) {
	history, err := s.requireHistory(req.HistoryDir)
	if err != nil {
		return PruneResult{}, err
	}
	generations, err := history.ListGenerations(ctx)
	if err != nil {
		return PruneResult{}, err
	}
	policy := types.GenerationRetentionPolicy{
		KeepLast:    req.KeepLast,
		KeepDays:    req.KeepDays,
		ProtectTags: req.ProtectTags,
		DryRun:      req.DryRun,
	}
	plan := BuildPrunePlan(generations, policy, timeNow(s.Clock))
	if policy.DryRun {
		return PruneResult{
			KeepCount:   len(plan.Keep),
			DeleteCount: len(plan.Delete),
			DryRun:      true,
		}, nil
	}
	var deleted []string
	for _, generation := range plan.Delete {
		if err := history.DeleteGeneration(ctx, generation.ID); err != nil {
			return PruneResult{}, err
		}
		deleted = append(deleted, generation.ID)
	}
	log.Ctx(ctx).Info().Int("kept", len(plan.Keep)).Int("deleted", len(deleted)).Msg("history pruned")
	return PruneResult{
		KeepCount:   len(plan.Keep),
		DeleteCount: len(deleted),
		Deleted:     deleted,
		DryRun:      false,
	}, nil
}

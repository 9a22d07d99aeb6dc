package app

import (
	"sort"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"packagedb/internal/types"
)

func TestBuildPrunePlanKeepLast(t *testing.T) {
	now := time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)
	generations := []types.GenerationInfo{
		{ID: "g1", CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "g2", CreatedAt: now.Add(-2 * time.Hour)},
		{ID: "g3", CreatedAt: now.Add(-1 * time.Hour)},
		{ID: "g4", CreatedAt: now.Add(-30 * time.Minute)},
	}
	policy := types.GenerationRetentionPolicy{KeepLast: 2}

	plan := BuildPrunePlan(generations, policy, now)

	require.ElementsMatch(t, []string{"g3", "g4"}, generationIDs(plan.Keep))
	require.ElementsMatch(t, []string{"g1", "g2"}, generationIDs(plan.Delete))
}

func TestBuildPrunePlanKeepDays(t *testing.T) {
	now := time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)
	generations := []types.GenerationInfo{
		{ID: "recent", CreatedAt: now.AddDate(0, 0, -1)},
		{ID: "old", CreatedAt: now.AddDate(0, 0, -10)},
		{ID: "undated"},
	}
	policy := types.GenerationRetentionPolicy{KeepDays: 3}

	plan := BuildPrunePlan(generations, policy, now)
	if diff := cmp.Diff([]string{"recent"}, generationIDs(plan.Keep)); diff != "" {
		t.Fatalf("unexpected kept generations (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"old", "undated"}, generationIDs(plan.Delete)); diff != "" {
		t.Fatalf("unexpected deleted generations (-want +got):\n%s", diff)
	}
}

func TestBuildPrunePlanProtectTags(t *testing.T) {
	now := time.Date(2026, 2, 2, 12, 0, 0, 0, time.UTC)
	generations := []types.GenerationInfo{
		{ID: "g1", Tags: []string{"Release-1"}, CreatedAt: now.AddDate(0, 0, -40)},
		{ID: "g2", Tags: []string{"nightly"}, CreatedAt: now.AddDate(0, 0, -30)},
		{ID: "g3", CreatedAt: now.AddDate(0, 0, -20)},
		{ID: "g4", CreatedAt: now.AddDate(0, 0, -1)},
	}

	tests := []struct {
		name     string
		policy   types.GenerationRetentionPolicy
		wantKeep []string
	}{
		{
			name:     "named tag is case insensitive",
			policy:   types.GenerationRetentionPolicy{KeepLast: 1, ProtectTags: []string{"release-1"}},
			wantKeep: []string{"g1", "g4"},
		},
		{
			name:     "wildcard protects every tag",
			policy:   types.GenerationRetentionPolicy{KeepLast: 1, ProtectTags: []string{"*"}},
			wantKeep: []string{"g1", "g2", "g4"},
		},
		{
			name:     "empty policy keeps nothing",
			policy:   types.GenerationRetentionPolicy{},
			wantKeep: nil,
		},
		{
			name:     "negative values are ignored",
			policy:   types.GenerationRetentionPolicy{KeepLast: -1, KeepDays: -5, ProtectTags: []string{" ", "nightly"}},
			wantKeep: []string{"g2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := BuildPrunePlan(generations, tt.policy, now)
			kept := generationIDs(plan.Keep)
			sort.Strings(kept)
			if diff := cmp.Diff(tt.wantKeep, kept); diff != "" {
				t.Fatalf("unexpected kept generations (-want +got):\n%s", diff)
			}
			require.Len(t, plan.Delete, len(generations)-len(tt.wantKeep))
		})
	}
}

func generationIDs(items []types.GenerationInfo) []string {
	var ids []string
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

package app

import (
	"sort"
	"strings"
	"time"

	"packagedb/internal/types"
)

// BuildPrunePlan splits generations into the ones a retention policy
// keeps and the ones it deletes. A generation is kept when any rule
// keeps it. An empty policy keeps nothing.
func BuildPrunePlan(generations []types.GenerationInfo, policy types.GenerationRetentionPolicy, now time.Time) types.GenerationPrunePlan {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	normalized := normalizeRetentionPolicy(policy)
	protectedTags := normalizeSet(normalized.ProtectTags)

	keepIDs := map[string]struct{}{}
	for _, generation := range generations {
		if isProtected(generation, protectedTags) {
			keepIDs[generation.ID] = struct{}{}
		}
		if normalized.KeepDays > 0 && !generation.CreatedAt.IsZero() {
			cutoff := now.AddDate(0, 0, -normalized.KeepDays)
			if !generation.CreatedAt.Before(cutoff) {
				keepIDs[generation.ID] = struct{}{}
			}
		}
	}

	if normalized.KeepLast > 0 {
		sorted := append([]types.GenerationInfo(nil), generations...)
		sort.Slice(sorted, func(i, j int) bool {
			if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
				return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
			}
			return sorted[i].ID > sorted[j].ID
		})
		limit := min(normalized.KeepLast, len(sorted))
		for i := 0; i < limit; i++ {
			keepIDs[sorted[i].ID] = struct{}{}
		}
	}

	var keep []types.GenerationInfo
	var del []types.GenerationInfo
	for _, generation := range generations {
		if _, ok := keepIDs[generation.ID]; ok {
			keep = append(keep, generation)
		} else {
			del = append(del, generation)
		}
	}
	return types.GenerationPrunePlan{Keep: keep, Delete: del}
}

func normalizeRetentionPolicy(policy types.GenerationRetentionPolicy) types.GenerationRetentionPolicy {
	normalized := policy
	if normalized.KeepLast < 0 {
		normalized.KeepLast = 0
	}
	if normalized.KeepDays < 0 {
		normalized.KeepDays = 0
	}
	return normalized
}

func normalizeSet(values []string) map[string]struct{} {
	set := map[string]struct{}{}
	for _, value := range values {
		key := strings.ToLower(strings.TrimSpace(value))
		if key == "" {
			continue
		}
		set[key] = struct{}{}
	}
	return set
}

// isProtected reports whether the generation carries a protected tag.
// The "*" entry protects every tagged generation.
func isProtected(generation types.GenerationInfo, tags map[string]struct{}) bool {
	if len(generation.Tags) == 0 {
		return false
	}
	if _, ok := tags["*"]; ok {
		return true
	}
	for _, tag := range generation.Tags {
		if _, ok := tags[strings.ToLower(tag)]; ok {
			return true
		}
	}
	return false
}

package types

import "time"

// GenerationIDLayout formats the ids of recorded generations. Ids built
// from it sort in creation order.
const GenerationIDLayout = "20060102T150405.000000000Z"

type GenerationInfo struct {
	ID        string
	Tags      []string
	CreatedAt time.Time
}

type GenerationRetentionPolicy struct {
	KeepLast    int
	KeepDays    int
	ProtectTags []string
	DryRun      bool
}

type GenerationPrunePlan struct {
	Keep   []GenerationInfo
	Delete []GenerationInfo
}

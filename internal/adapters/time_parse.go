package adapters

import (
	"strings"
	"time"

	"packagedb/internal/types"
)

// parseGenerationTime reads the creation time encoded in a generation
// id. Ids recorded by hand may use RFC 3339 instead; anything else
// yields the zero time.
func parseGenerationTime(id string) time.Time {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return time.Time{}
	}
	layouts := []string{
		types.GenerationIDLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"20060102T150405Z",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"packagedb/internal/core"
	"packagedb/internal/types"
)

var queryLabels = []types.PackageLabel{
	types.PackageLabelCI,
	types.PackageLabelExploratory,
	types.PackageLabelPreview,
	types.PackageLabelLatest,
	types.PackageLabelStable,
}

// Query returns the best version of an artifact for each quality label,
// optionally restricted to some feeds.
func (s Service) Query(ctx context.Context, req QueryRequest) (QueryResult, error) {
	artifactText := strings.TrimSpace(req.Artifact)
	if artifactText == "" {
		return QueryResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("artifact is required")
	}
	var label types.PackageLabel
	if strings.TrimSpace(req.Label) != "" {
		parsed, ok := types.ParsePackageLabel(req.Label)
		if !ok {
			return QueryResult{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("unknown label %q", req.Label))
		}
		label = parsed
	}
	store, err := s.store(req.SnapshotPath)
	if err != nil {
		return QueryResult{}, err
	}
	db, err := store.Load(ctx, s.Registry)
	if err != nil {
		return QueryResult{}, err
	}
	artifact, err := s.Registry.ParseArtifact(artifactText)
	if err != nil {
		return QueryResult{}, err
	}
	artifact, err = normalizeArtifact(artifact.Type, artifact.Name)
	if err != nil {
		return QueryResult{}, err
	}

	var versions core.PackageQualityVersions
	if len(req.Feeds) == 0 {
		versions = db.GetAvailableInstances(artifact)
	} else {
		feeds := make([]string, 0, len(req.Feeds))
		for _, raw := range req.Feeds {
			name, err := core.QualifyFeedName(artifact.Type, raw)
			if err != nil {
				return QueryResult{}, err
			}
			feeds = append(feeds, name)
		}
		versions = db.GetAvailableInstancesInFeeds(artifact, feeds)
	}
	if !versions.IsValid() {
		return QueryResult{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("no version of %s found", artifact))
	}

	result := QueryResult{Artifact: artifact.String()}
	for _, l := range queryLabels {
		if v := versions.GetVersionByLabel(l); v != "" {
			result.Picks = append(result.Picks, QueryPick{Label: string(l), Version: v})
		}
	}
	if label != "" {
		result.Version = versions.GetVersionByLabel(label)
		if result.Version == "" {
			return result, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("no %s version of %s found", label, artifact))
		}
	}
	return result, nil
}

package app

import (
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"packagedb/internal/core"
)

// ExportSBOM writes an SPDX document for the current snapshot or a
// recorded generation, optionally restricted to some feeds.
func (s Service) ExportSBOM(ctx context.Context, req SBOMRequest) (SBOMResult, error) {
	output := strings.TrimSpace(req.OutputPath)
	if output == "" {
		return SBOMResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("sbom output path is required")
	}
	if s.SBOM == nil {
		return SBOMResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("service is not initialized")
	}

	name := currentGeneration
	var db *core.PackageDB
	if strings.TrimSpace(req.Generation) == "" {
		store, err := s.store(req.SnapshotPath)
		if err != nil {
			return SBOMResult{}, err
		}
		if db, err = store.Load(ctx, s.Registry); err != nil {
			return SBOMResult{}, err
		}
	} else {
		history, err := s.requireHistory(req.HistoryDir)
		if err != nil {
			return SBOMResult{}, err
		}
		if name, db, err = s.loadGeneration(ctx, history, req.Generation); err != nil {
			return SBOMResult{}, err
		}
	}

	packages, err := feedInstances(db, req.Feeds)
	if err != nil {
		return SBOMResult{}, err
	}
	if err := s.SBOM.WriteSBOM(ctx, output, name, timeNow(s.Clock), packages); err != nil {
		return SBOMResult{}, err
	}
	log.Ctx(ctx).Info().Str("generation", name).Str("path", output).Int("packages", len(packages)).Msg("sbom exported")
	return SBOMResult{Name: name, Path: output, Packages: len(packages)}, nil
}

// feedInstances returns the instances of db that belong to any of the
// named feeds, in key order. No feeds selects every instance.
func feedInstances(db *core.PackageDB, feeds []string) ([]*core.PackageInstance, error) {
	if len(feeds) == 0 {
		return db.Instances(), nil
	}
	selected := map[string]struct{}{}
	for _, name := range feeds {
		name = strings.TrimSpace(name)
		if !strings.Contains(name, ":") {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("feed must be qualified as <Type>:<Feed>: " + name)
		}
		if db.FindFeed(name) == nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg("unknown feed " + name)
		}
		selected[name] = struct{}{}
	}
	var packages []*core.PackageInstance
	for _, instance := range db.Instances() {
		for name := range selected {
			if instance.HasFeed(name) {
				packages = append(packages, instance)
				break
			}
		}
	}
	return packages, nil
}

package app

import (
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"packagedb/internal/adapters"
	"packagedb/internal/core"
	"packagedb/internal/ports"
)

// Service holds the artifact type registry and serializes writers of
// the snapshot. Readers never take the lock since generations are
// immutable.
type Service struct {
	Registry   *core.ArtifactTypeRegistry
	Manifests  ports.FeedManifestPort
	SBOM       ports.SBOMPort
	OpenStore  func(path string) ports.SnapshotStorePort
	OpenMirror func(dir string) ports.FeedMirrorPort
	// OpenHistory is optional; without it no generation is recorded.
	OpenHistory func(dir string) ports.GenerationHistoryPort
	Clock       func() time.Time

	writeMu *sync.Mutex
}

func NewService() (Service, error) {
	registry := core.NewArtifactTypeRegistry()
	if err := core.RegisterDefaultTypes(registry); err != nil {
		return Service{}, err
	}
	return Service{
		Registry:  registry,
		Manifests: adapters.NewFeedManifestFileAdapter(),
		SBOM:      adapters.NewSBOMWriterAdapter(),
		OpenStore: func(path string) ports.SnapshotStorePort {
			return adapters.NewSnapshotFileAdapter(path)
		},
		OpenMirror: func(dir string) ports.FeedMirrorPort {
			return adapters.NewFeedMirrorAdapter(dir)
		},
		OpenHistory: func(dir string) ports.GenerationHistoryPort {
			return adapters.NewGenerationHistoryFileAdapter(dir)
		},
		writeMu: &sync.Mutex{},
	}, nil
}

func (s Service) lockWriter() func() {
	if s.writeMu == nil {
		return func() {}
	}
	s.writeMu.Lock()
	return s.writeMu.Unlock
}

func (s Service) store(path string) (ports.SnapshotStorePort, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("snapshot path is required")
	}
	if s.OpenStore == nil || s.Registry == nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("service is not initialized")
	}
	return s.OpenStore(path), nil
}

// mirror returns nil when no mirror directory is configured.
func (s Service) mirror(dir string) ports.FeedMirrorPort {
	dir = strings.TrimSpace(dir)
	if dir == "" || s.OpenMirror == nil {
		return nil
	}
	return s.OpenMirror(dir)
}

// history returns nil when no history directory is configured.
func (s Service) history(dir string) ports.GenerationHistoryPort {
	dir = strings.TrimSpace(dir)
	if dir == "" || s.OpenHistory == nil {
		return nil
	}
	return s.OpenHistory(dir)
}

func (s Service) requireHistory(dir string) (ports.GenerationHistoryPort, error) {
	history := s.history(dir)
	if history == nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("history dir is required")
	}
	return history, nil
}

func timeNow(clock func() time.Time) time.Time {
	if clock == nil {
		return time.Now().UTC()
	}
	return clock().UTC()
}

package adapters

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"packagedb/internal/core"
	"packagedb/internal/ports"
	"packagedb/internal/shared"
)

// SnapshotFileAdapter stores one database generation in a single file.
type SnapshotFileAdapter struct {
	Path string
}

func NewSnapshotFileAdapter(path string) SnapshotFileAdapter {
	return SnapshotFileAdapter{Path: path}
}

func (a SnapshotFileAdapter) Load(ctx context.Context, registry *core.ArtifactTypeRegistry) (*core.PackageDB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.Path) == "" {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("snapshot path is empty")
	}
	file, err := os.Open(a.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Ctx(ctx).Debug().Str("path", a.Path).Msg("no snapshot yet, starting empty")
			return core.NewPackageDB(), nil
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open snapshot").
			WithCause(err)
	}
	defer file.Close()

	db, err := core.ReadSnapshot(bufio.NewReader(file), registry)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).Debug().Str("path", a.Path).Int("instances", db.Len()).Msg("snapshot loaded")
	return db, nil
}

func (a SnapshotFileAdapter) Save(ctx context.Context, db *core.PackageDB) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(a.Path) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("snapshot path is empty")
	}
	var buf bytes.Buffer
	if err := core.WriteSnapshot(&buf, db); err != nil {
		return err
	}
	if err := shared.WriteFileAtomic(a.Path, buf.Bytes(), 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write snapshot").
			WithCause(err)
	}
	log.Ctx(ctx).Debug().Str("path", a.Path).Int("bytes", buf.Len()).Msg("snapshot saved")
	return nil
}

var _ ports.SnapshotStorePort = SnapshotFileAdapter{}

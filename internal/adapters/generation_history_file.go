package adapters

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"packagedb/internal/core"
	"packagedb/internal/ports"
	"packagedb/internal/shared"
	"packagedb/internal/types"
)

const generationExt = ".pkdb"

// GenerationHistoryFileAdapter keeps every recorded generation as a
// snapshot file under generations/ and every tag as a one-line pointer
// file under tags/.
type GenerationHistoryFileAdapter struct {
	Dir string
}

func NewGenerationHistoryFileAdapter(dir string) GenerationHistoryFileAdapter {
	return GenerationHistoryFileAdapter{Dir: dir}
}

func (a GenerationHistoryFileAdapter) Record(ctx context.Context, id string, db *core.PackageDB) error {
	if err := a.check(ctx); err != nil {
		return err
	}
	if err := validateHistoryName("generation id", id); err != nil {
		return err
	}
	path := a.generationPath(id)
	if _, err := os.Stat(path); err == nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeAlreadyExists).
			WithMsg("generation already exists: " + id)
	}
	var buf bytes.Buffer
	if err := core.WriteSnapshot(&buf, db); err != nil {
		return err
	}
	if err := shared.WriteFileAtomic(path, buf.Bytes(), 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write generation").
			WithCause(err)
	}
	log.Ctx(ctx).Debug().Str("generation", id).Int("instances", db.Len()).Msg("generation recorded")
	return nil
}

func (a GenerationHistoryFileAdapter) Tag(ctx context.Context, id string, tag string) error {
	if err := a.check(ctx); err != nil {
		return err
	}
	if err := validateHistoryName("generation id", id); err != nil {
		return err
	}
	if err := validateHistoryName("tag", tag); err != nil {
		return err
	}
	if _, err := os.Stat(a.generationPath(id)); err != nil {
		return generationNotFound(id, err)
	}
	path := filepath.Join(a.Dir, "tags", tag)
	if err := shared.WriteFileAtomic(path, []byte(id+"\n"), 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write tag pointer").
			WithCause(err)
	}
	return nil
}

func (a GenerationHistoryFileAdapter) Resolve(ctx context.Context, ref string) (string, error) {
	if err := a.check(ctx); err != nil {
		return "", err
	}
	ref = strings.TrimSpace(ref)
	if err := validateHistoryName("generation reference", ref); err != nil {
		return "", err
	}
	if _, err := os.Stat(a.generationPath(ref)); err == nil {
		return ref, nil
	}
	tags, err := readTagPointers(a.Dir)
	if err != nil {
		return "", err
	}
	if id, ok := tags[ref]; ok {
		return id, nil
	}
	return "", errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg("unknown generation or tag: " + ref)
}

func (a GenerationHistoryFileAdapter) Load(ctx context.Context, id string, registry *core.ArtifactTypeRegistry) (*core.PackageDB, error) {
	if err := a.check(ctx); err != nil {
		return nil, err
	}
	if err := validateHistoryName("generation id", id); err != nil {
		return nil, err
	}
	file, err := os.Open(a.generationPath(id))
	if err != nil {
		return nil, generationNotFound(id, err)
	}
	defer file.Close()
	return core.ReadSnapshot(bufio.NewReader(file), registry)
}

// ListGenerations returns the recorded generations oldest first.
func (a GenerationHistoryFileAdapter) ListGenerations(ctx context.Context) ([]types.GenerationInfo, error) {
	if err := a.check(ctx); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(a.Dir, "generations"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []types.GenerationInfo{}, nil
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read generations directory").
			WithCause(err)
	}
	generations := []types.GenerationInfo{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, generationExt) {
			continue
		}
		id := strings.TrimSuffix(name, generationExt)
		createdAt := parseGenerationTime(id)
		if createdAt.IsZero() {
			info, err := entry.Info()
			if err != nil {
				return nil, errbuilder.New().
					WithCode(errbuilder.CodeInternal).
					WithMsg("failed to read generation info").
					WithCause(err)
			}
			createdAt = info.ModTime().UTC()
		}
		generations = append(generations, types.GenerationInfo{ID: id, CreatedAt: createdAt})
	}
	sort.Slice(generations, func(i, j int) bool {
		if !generations[i].CreatedAt.Equal(generations[j].CreatedAt) {
			return generations[i].CreatedAt.Before(generations[j].CreatedAt)
		}
		return generations[i].ID < generations[j].ID
	})
	if err := applyTagPointers(a.Dir, generations); err != nil {
		return nil, err
	}
	return generations, nil
}

// DeleteGeneration removes a generation together with the tags that
// point at it.
func (a GenerationHistoryFileAdapter) DeleteGeneration(ctx context.Context, id string) error {
	if err := a.check(ctx); err != nil {
		return err
	}
	if err := validateHistoryName("generation id", id); err != nil {
		return err
	}
	if err := os.Remove(a.generationPath(id)); err != nil {
		return generationNotFound(id, err)
	}
	tags, err := readTagPointers(a.Dir)
	if err != nil {
		return err
	}
	for tag, target := range tags {
		if target != id {
			continue
		}
		if err := os.Remove(filepath.Join(a.Dir, "tags", tag)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to delete tag pointer").
				WithCause(err)
		}
	}
	return nil
}

func (a GenerationHistoryFileAdapter) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(a.Dir) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("history directory is empty")
	}
	return nil
}

func (a GenerationHistoryFileAdapter) generationPath(id string) string {
	return filepath.Join(a.Dir, "generations", id+generationExt)
}

func validateHistoryName(what string, value string) error {
	if strings.TrimSpace(value) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(what + " is empty")
	}
	if strings.ContainsAny(value, `/\`) || value == "." || value == ".." {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(what + " contains path separator")
	}
	return nil
}

func generationNotFound(id string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("generation not found: " + id)
	}
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("failed to access generation").
		WithCause(err)
}

// readTagPointers maps every tag to the generation id it points at.
func readTagPointers(root string) (map[string]string, error) {
	tagsDir := filepath.Join(root, "tags")
	entries, err := os.ReadDir(tagsDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read tags directory").
			WithCause(err)
	}
	mapping := map[string]string{}
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(tagsDir, entry.Name()))
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to read tag pointer").
				WithCause(err)
		}
		id := strings.TrimSpace(string(content))
		if id == "" {
			continue
		}
		mapping[entry.Name()] = id
	}
	return mapping, nil
}

func applyTagPointers(root string, generations []types.GenerationInfo) error {
	tags, err := readTagPointers(root)
	if err != nil {
		return err
	}
	byID := map[string][]string{}
	for tag, id := range tags {
		byID[id] = append(byID[id], tag)
	}
	for i := range generations {
		if names, ok := byID[generations[i].ID]; ok {
			sort.Strings(names)
			generations[i].Tags = names
		}
	}
	return nil
}

var _ ports.GenerationHistoryPort = GenerationHistoryFileAdapter{}

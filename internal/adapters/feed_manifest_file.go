package adapters

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"packagedb/internal/ports"
	"packagedb/internal/types"
)

type FeedManifestFileAdapter struct{}

func NewFeedManifestFileAdapter() FeedManifestFileAdapter {
	return FeedManifestFileAdapter{}
}

func (a FeedManifestFileAdapter) ReadManifest(path string) (types.FeedManifestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.FeedManifestFile{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("feed manifest not found").
			WithCause(err)
	}
	var manifest types.FeedManifestFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&manifest); err != nil && !errors.Is(err, io.EOF) {
		return types.FeedManifestFile{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid feed manifest format").
			WithCause(err)
	}
	for i, entry := range manifest.Packages {
		if strings.TrimSpace(entry.Type) == "" || strings.TrimSpace(entry.Name) == "" || strings.TrimSpace(entry.Version) == "" {
			return types.FeedManifestFile{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("feed manifest package #%d is incomplete: type, name and version are required", i+1))
		}
	}
	for i, feed := range manifest.Feeds {
		if strings.TrimSpace(feed.Name) == "" {
			return types.FeedManifestFile{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("feed manifest feed #%d has no name", i+1))
		}
	}
	return manifest, nil
}

var _ ports.FeedManifestPort = FeedManifestFileAdapter{}

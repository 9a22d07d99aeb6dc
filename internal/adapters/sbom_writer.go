package adapters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"packagedb/internal/core"
	"packagedb/internal/ports"
	"packagedb/internal/shared"
	"packagedb/internal/types"
)

// DefaultSBOMNamespace prefixes the documentNamespace of written SBOMs.
const DefaultSBOMNamespace = "https://spdx.org/spdxdocs/packagedb"

// SBOMWriterAdapter writes SPDX 2.3 JSON documents. Every package
// carries its purl as an external reference and its in-set dependencies
// as DEPENDS_ON relationships.
type SBOMWriterAdapter struct {
	NamespaceBase string
}

func NewSBOMWriterAdapter() SBOMWriterAdapter {
	return SBOMWriterAdapter{NamespaceBase: DefaultSBOMNamespace}
}

type spdxCreationInfo struct {
	Created  string   `json:"created"`
	Creators []string `json:"creators"`
}

type spdxExternalRef struct {
	ReferenceCategory string `json:"referenceCategory"`
	ReferenceType     string `json:"referenceType"`
	ReferenceLocator  string `json:"referenceLocator"`
}

type spdxPackage struct {
	SPDXID           string            `json:"SPDXID"`
	Name             string            `json:"name"`
	VersionInfo      string            `json:"versionInfo"`
	DownloadLocation string            `json:"downloadLocation"`
	LicenseConcluded string            `json:"licenseConcluded"`
	LicenseDeclared  string            `json:"licenseDeclared"`
	Supplier         string            `json:"supplier"`
	ExternalRefs     []spdxExternalRef `json:"externalRefs,omitempty"`
	Comment          string            `json:"comment,omitempty"`
}

type spdxRelationship struct {
	SpdxElementID      string `json:"spdxElementId"`
	RelationshipType   string `json:"relationshipType"`
	RelatedSpdxElement string `json:"relatedSpdxElement"`
}

type spdxDocument struct {
	SPDXVersion       string             `json:"spdxVersion"`
	DataLicense       string             `json:"dataLicense"`
	SPDXID            string             `json:"SPDXID"`
	Name              string             `json:"name"`
	DocumentNamespace string             `json:"documentNamespace"`
	CreationInfo      spdxCreationInfo   `json:"creationInfo"`
	Packages          []spdxPackage      `json:"packages"`
	Relationships     []spdxRelationship `json:"relationships"`
	DocumentDescribes []string           `json:"documentDescribes"`
}

func (a SBOMWriterAdapter) WriteSBOM(ctx context.Context, path string, name string, createdAt time.Time, packages []*core.PackageInstance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(path) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("sbom output path is empty")
	}
	if strings.TrimSpace(name) == "" {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("sbom name is empty")
	}
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	doc := spdxDocument{
		SPDXVersion:       "SPDX-2.3",
		DataLicense:       "CC0-1.0",
		SPDXID:            "SPDXRef-DOCUMENT",
		Name:              fmt.Sprintf("packagedb %s", name),
		DocumentNamespace: a.namespaceBase() + "/" + url.PathEscape(name),
		CreationInfo: spdxCreationInfo{
			Created:  createdAt.UTC().Format(time.RFC3339),
			Creators: []string{"Tool: packagedb"},
		},
		Packages:          []spdxPackage{},
		Relationships:     []spdxRelationship{},
		DocumentDescribes: []string{},
	}
	included := make(map[string]struct{}, len(packages))
	for _, instance := range packages {
		included[instance.Key().String()] = struct{}{}
	}
	for _, instance := range packages {
		key := instance.Key()
		spdxID := spdxPackageID(key.String())
		pkg := spdxPackage{
			SPDXID:           spdxID,
			Name:             key.Artifact.Name,
			VersionInfo:      key.Version,
			DownloadLocation: "NOASSERTION",
			LicenseConcluded: "NOASSERTION",
			LicenseDeclared:  "NOASSERTION",
			Supplier:         "NOASSERTION",
		}
		if purl := key.PackageURL(); purl != "" {
			pkg.ExternalRefs = []spdxExternalRef{{
				ReferenceCategory: "PACKAGE-MANAGER",
				ReferenceType:     "purl",
				ReferenceLocator:  purl,
			}}
		}
		if state := instance.State(); state != types.PackageStateNone {
			pkg.Comment = "state: " + state.String()
		}
		doc.Packages = append(doc.Packages, pkg)
		doc.DocumentDescribes = append(doc.DocumentDescribes, spdxID)
		doc.Relationships = append(doc.Relationships, spdxRelationship{
			SpdxElementID:      "SPDXRef-DOCUMENT",
			RelationshipType:   "DESCRIBES",
			RelatedSpdxElement: spdxID,
		})
		for _, dep := range instance.Dependencies() {
			if _, ok := included[dep.String()]; !ok {
				continue
			}
			doc.Relationships = append(doc.Relationships, spdxRelationship{
				SpdxElementID:      spdxID,
				RelationshipType:   "DEPENDS_ON",
				RelatedSpdxElement: spdxPackageID(dep.String()),
			})
		}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to marshal sbom payload").
			WithCause(err)
	}
	if err := shared.WriteFileAtomic(path, append(data, '\n'), 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write sbom file").
			WithCause(err)
	}
	log.Ctx(ctx).Debug().Str("path", path).Int("packages", len(packages)).Msg("sbom written")
	return nil
}

func (a SBOMWriterAdapter) namespaceBase() string {
	base := strings.TrimRight(strings.TrimSpace(a.NamespaceBase), "/")
	if base == "" {
		return DefaultSBOMNamespace
	}
	return base
}

func spdxPackageID(key string) string {
	hash := sha256.Sum256([]byte(key))
	return "SPDXRef-Package-" + hex.EncodeToString(hash[:8])
}

var _ ports.SBOMPort = SBOMWriterAdapter{}

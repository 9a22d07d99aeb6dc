package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	packageurl "github.com/package-url/packageurl-go"

	"packagedb/internal/types"
)

// ArtifactType names a kind of artifact ("NuGet", "NPM"). Types are
// interned by an ArtifactTypeRegistry: two types with the same name in
// one registry are the same pointer.
type ArtifactType struct {
	name        string
	installable bool
	separator   rune
	scheme      types.VersionScheme
	purlType    string
	versions    *versionCache
}

// ArtifactTypeOptions describes a type at registration time.
type ArtifactTypeOptions struct {
	Installable bool
	// Separator splits "<Name><Separator><Version>" in textual input.
	// Zero means '/'.
	Separator rune
	Scheme    types.VersionScheme
	PURLType  string
}

func (t *ArtifactType) Name() string                { return t.name }
func (t *ArtifactType) IsInstallable() bool         { return t.installable }
func (t *ArtifactType) Scheme() types.VersionScheme { return t.scheme }
func (t *ArtifactType) PURLType() string            { return t.purlType }
func (t *ArtifactType) String() string              { return t.name }

func (t *ArtifactType) compareVersions(a, b string) int {
	return t.versions.compare(a, b)
}

func (t *ArtifactType) options() ArtifactTypeOptions {
	return ArtifactTypeOptions{
		Installable: t.installable,
		Separator:   t.separator,
		Scheme:      t.scheme,
		PURLType:    t.purlType,
	}
}

// Separator returns the name/version separator used by ParseInstance.
func (t *ArtifactType) Separator() rune {
	if t.separator == 0 {
		return '/'
	}
	return t.separator
}

// NormalizeVersion validates value under the type's version scheme and
// returns its canonical text.
func (t *ArtifactType) NormalizeVersion(value string) (string, error) {
	parsed, err := t.versions.parse(strings.TrimSpace(value))
	if err != nil {
		return "", err
	}
	return parsed.canonical, nil
}

// VersionQuality returns the quality tier of value. The boolean is
// false when value is not a valid version of this type.
func (t *ArtifactType) VersionQuality(value string) (types.PackageQuality, bool) {
	parsed, err := t.versions.parse(value)
	if err != nil {
		return types.PackageQualityCI, false
	}
	return parsed.quality, true
}

// ParseInstance parses "<Name><Separator><Version>". The last separator
// wins so scoped names such as "@scope/pkg/1.0.0" keep their slash.
func (t *ArtifactType) ParseInstance(text string) (ArtifactInstance, error) {
	text = strings.TrimSpace(text)
	idx := strings.LastIndex(text, string(t.Separator()))
	if idx <= 0 || idx == len(text)-1 {
		return ArtifactInstance{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid %s instance %q", t.name, text))
	}
	artifact, err := NewArtifact(t, text[:idx])
	if err != nil {
		return ArtifactInstance{}, err
	}
	return NewArtifactInstance(artifact, text[idx+1:])
}

func compareTypes(a, b *ArtifactType) int {
	switch {
	case a == b:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return strings.Compare(a.name, b.name)
}

func normalizeTypeOptions(opts ArtifactTypeOptions) ArtifactTypeOptions {
	if opts.Scheme == "" {
		opts.Scheme = types.VersionSchemeSemVer
	}
	if opts.PURLType == "" {
		opts.PURLType = packageurl.TypeGeneric
	}
	return opts
}

// ArtifactTypeRegistry interns artifact types by name. It is the only
// mutable object shared by database generations.
type ArtifactTypeRegistry struct {
	mu    sync.RWMutex
	types map[string]*ArtifactType
}

func NewArtifactTypeRegistry() *ArtifactTypeRegistry {
	return &ArtifactTypeRegistry{types: map[string]*ArtifactType{}}
}

// Register returns the type registered under name, creating it on first
// use. Registering an existing name with different options fails.
func (r *ArtifactTypeRegistry) Register(name string, opts ArtifactTypeOptions) (*ArtifactType, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, ": \t") {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid artifact type name %q", name))
	}
	opts = normalizeTypeOptions(opts)
	switch opts.Scheme {
	case types.VersionSchemeSemVer, types.VersionSchemePep440, types.VersionSchemeDeb:
	default:
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unsupported version scheme %q", opts.Scheme))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.types[name]; ok {
		if existing.options() != opts {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg(fmt.Sprintf("artifact type %s already registered with different options", name))
		}
		return existing, nil
	}
	t := &ArtifactType{
		name:        name,
		installable: opts.Installable,
		separator:   opts.Separator,
		scheme:      opts.Scheme,
		purlType:    opts.PURLType,
		versions:    newVersionCache(opts.Scheme),
	}
	r.types[name] = t
	return t, nil
}

// Find returns the type registered under name, or nil.
func (r *ArtifactTypeRegistry) Find(name string) *ArtifactType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.types[strings.TrimSpace(name)]
}

// Types returns the registered types sorted by name.
func (r *ArtifactTypeRegistry) Types() []*ArtifactType {
	r.mu.RLock()
	out := make([]*ArtifactType, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (r *ArtifactTypeRegistry) mustFind(name string) (*ArtifactType, error) {
	t := r.Find(name)
	if t == nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown artifact type %q", name))
	}
	return t, nil
}

// ParseArtifact parses "<Type>:<Name>".
func (r *ArtifactTypeRegistry) ParseArtifact(text string) (Artifact, error) {
	typeName, name, ok := strings.Cut(strings.TrimSpace(text), ":")
	if !ok {
		return Artifact{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid artifact %q: expected <Type>:<Name>", text))
	}
	t, err := r.mustFind(typeName)
	if err != nil {
		return Artifact{}, err
	}
	return NewArtifact(t, name)
}

// ParseArtifactInstance parses "<Type>:<Name>/<Version>".
func (r *ArtifactTypeRegistry) ParseArtifactInstance(text string) (ArtifactInstance, error) {
	typeName, rest, ok := strings.Cut(strings.TrimSpace(text), ":")
	if !ok {
		return ArtifactInstance{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid artifact instance %q: expected <Type>:<Name>/<Version>", text))
	}
	t, err := r.mustFind(typeName)
	if err != nil {
		return ArtifactInstance{}, err
	}
	idx := strings.LastIndex(rest, "/")
	if idx <= 0 || idx == len(rest)-1 {
		return ArtifactInstance{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid artifact instance %q: expected <Type>:<Name>/<Version>", text))
	}
	artifact, err := NewArtifact(t, rest[:idx])
	if err != nil {
		return ArtifactInstance{}, err
	}
	return NewArtifactInstance(artifact, rest[idx+1:])
}

// Artifact identifies a package family within a type.
type Artifact struct {
	Type *ArtifactType
	Name string
}

func NewArtifact(t *ArtifactType, name string) (Artifact, error) {
	name = strings.TrimSpace(name)
	if t == nil {
		return Artifact{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("artifact type is required")
	}
	if name == "" {
		return Artifact{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("empty %s artifact name", t.name))
	}
	return Artifact{Type: t, Name: name}, nil
}

func (a Artifact) IsValid() bool {
	return a.Type != nil && a.Name != ""
}

func (a Artifact) Compare(o Artifact) int {
	if c := compareTypes(a.Type, o.Type); c != 0 {
		return c
	}
	return strings.Compare(a.Name, o.Name)
}

func (a Artifact) String() string {
	if a.Type == nil {
		return a.Name
	}
	return a.Type.name + ":" + a.Name
}

// ArtifactInstance identifies one version of an artifact. Instances
// built with NewArtifactInstance carry a canonical version, so == and
// Compare agree.
type ArtifactInstance struct {
	Artifact Artifact
	Version  string
}

func NewArtifactInstance(a Artifact, version string) (ArtifactInstance, error) {
	if !a.IsValid() {
		return ArtifactInstance{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid artifact")
	}
	canonical, err := a.Type.NormalizeVersion(version)
	if err != nil {
		return ArtifactInstance{}, err
	}
	return ArtifactInstance{Artifact: a, Version: canonical}, nil
}

func (i ArtifactInstance) IsValid() bool {
	return i.Artifact.IsValid() && i.Version != ""
}

// Compare orders by artifact, then by version ascending.
func (i ArtifactInstance) Compare(o ArtifactInstance) int {
	if c := i.Artifact.Compare(o.Artifact); c != 0 {
		return c
	}
	if i.Artifact.Type == nil {
		return strings.Compare(i.Version, o.Version)
	}
	return i.Artifact.Type.compareVersions(i.Version, o.Version)
}

func (i ArtifactInstance) Quality() types.PackageQuality {
	if i.Artifact.Type == nil {
		return types.PackageQualityCI
	}
	q, _ := i.Artifact.Type.VersionQuality(i.Version)
	return q
}

func (i ArtifactInstance) String() string {
	return i.Artifact.String() + "/" + i.Version
}

// PackageURL renders the instance as a package URL. Scoped names
// ("@scope/pkg") become the purl namespace.
func (i ArtifactInstance) PackageURL() string {
	if i.Artifact.Type == nil {
		return ""
	}
	namespace, name := "", i.Artifact.Name
	if idx := strings.LastIndex(name, "/"); idx > 0 {
		namespace, name = name[:idx], name[idx+1:]
	}
	return packageurl.NewPackageURL(i.Artifact.Type.purlType, namespace, name, i.Version, nil, "").ToString()
}

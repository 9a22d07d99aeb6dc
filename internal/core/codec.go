package core

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"packagedb/internal/types"
)

// Snapshot layout: the 4-byte magic, one format byte, then a zstd
// stream holding a CBOR envelope. The envelope carries the CBOR body
// and its BLAKE3 digest.
const (
	snapshotMagic   = "PKDB"
	snapshotFormat  = byte(1)
	maxSnapshotSize = 1 << 30
)

var (
	snapshotEncMode cbor.EncMode
	snapshotDecMode cbor.DecMode
)

func init() {
	var err error
	snapshotEncMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("core: CBOR encoder initialization failed: " + err.Error())
	}
	snapshotDecMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}.DecMode()
	if err != nil {
		panic("core: CBOR decoder initialization failed: " + err.Error())
	}
}

type snapshotEnvelope struct {
	Digest []byte          `cbor:"1,keyasint"`
	Body   cbor.RawMessage `cbor:"2,keyasint"`
}

type snapshotBody struct {
	Types     []snapshotType     `cbor:"1,keyasint"`
	Instances []snapshotInstance `cbor:"2,keyasint"`
}

type snapshotType struct {
	Name        string `cbor:"1,keyasint"`
	Installable bool   `cbor:"2,keyasint,omitempty"`
	Separator   rune   `cbor:"3,keyasint,omitempty"`
	Scheme      string `cbor:"4,keyasint"`
	PURLType    string `cbor:"5,keyasint"`
}

type snapshotInstance struct {
	Key          snapshotKey   `cbor:"1,keyasint"`
	State        uint8         `cbor:"2,keyasint,omitempty"`
	Dependencies []snapshotKey `cbor:"3,keyasint,omitempty"`
	Feeds        []string      `cbor:"4,keyasint,omitempty"`
}

// snapshotKey references its type by index into snapshotBody.Types.
type snapshotKey struct {
	_       struct{} `cbor:",toarray"`
	Type    uint32
	Name    string
	Version string
}

// WriteSnapshot encodes db to w.
func WriteSnapshot(w io.Writer, db *PackageDB) error {
	body, err := snapshotEncMode.Marshal(newSnapshotBody(db))
	if err != nil {
		return encodeError(err)
	}
	digest := blake3.Sum256(body)
	envelope, err := snapshotEncMode.Marshal(snapshotEnvelope{Digest: digest[:], Body: body})
	if err != nil {
		return encodeError(err)
	}
	header := append([]byte(snapshotMagic), snapshotFormat)
	if _, err := w.Write(header); err != nil {
		return encodeError(err)
	}
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return encodeError(err)
	}
	if _, err := zw.Write(envelope); err != nil {
		zw.Close()
		return encodeError(err)
	}
	if err := zw.Close(); err != nil {
		return encodeError(err)
	}
	return nil
}

// ReadSnapshot decodes a database written by WriteSnapshot, interning
// its artifact types in registry. Any malformed, truncated or foreign
// input is rejected.
func ReadSnapshot(r io.Reader, registry *ArtifactTypeRegistry) (*PackageDB, error) {
	header := make([]byte, len(snapshotMagic)+1)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, decodeError("truncated header", err)
	}
	if !bytes.Equal(header[:len(snapshotMagic)], []byte(snapshotMagic)) {
		return nil, decodeError("unrecognized format", nil)
	}
	if header[len(snapshotMagic)] != snapshotFormat {
		return nil, decodeError(fmt.Sprintf("unsupported format %d", header[len(snapshotMagic)]), nil)
	}
	zr, err := zstd.NewReader(r, zstd.WithDecoderMaxMemory(maxSnapshotSize))
	if err != nil {
		return nil, decodeError("corrupt payload", err)
	}
	defer zr.Close()
	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, decodeError("corrupt payload", err)
	}

	var envelope snapshotEnvelope
	if err := snapshotDecMode.Unmarshal(data, &envelope); err != nil {
		return nil, decodeError("corrupt envelope", err)
	}
	digest := blake3.Sum256(envelope.Body)
	if !bytes.Equal(digest[:], envelope.Digest) {
		return nil, decodeError("checksum mismatch", nil)
	}
	var body snapshotBody
	if err := snapshotDecMode.Unmarshal(envelope.Body, &body); err != nil {
		return nil, decodeError("corrupt body", err)
	}
	return body.decode(registry)
}

func newSnapshotBody(db *PackageDB) snapshotBody {
	body := snapshotBody{}
	index := map[*ArtifactType]uint32{}
	typeIndex := func(t *ArtifactType) uint32 {
		if idx, ok := index[t]; ok {
			return idx
		}
		idx := uint32(len(body.Types)) //nolint:gosec // bounded by the number of registered types
		index[t] = idx
		body.Types = append(body.Types, snapshotType{
			Name:        t.name,
			Installable: t.installable,
			Separator:   t.separator,
			Scheme:      string(t.scheme),
			PURLType:    t.purlType,
		})
		return idx
	}
	encodeKey := func(key ArtifactInstance) snapshotKey {
		return snapshotKey{Type: typeIndex(key.Artifact.Type), Name: key.Artifact.Name, Version: key.Version}
	}
	body.Instances = make([]snapshotInstance, 0, len(db.instances))
	for _, instance := range db.instances {
		entry := snapshotInstance{
			Key:   encodeKey(instance.key),
			State: uint8(instance.state),
			Feeds: instance.feedNames,
		}
		for _, dep := range instance.dependencies {
			entry.Dependencies = append(entry.Dependencies, encodeKey(dep))
		}
		body.Instances = append(body.Instances, entry)
	}
	return body
}

func (b snapshotBody) decode(registry *ArtifactTypeRegistry) (*PackageDB, error) {
	artifactTypes := make([]*ArtifactType, 0, len(b.Types))
	for _, st := range b.Types {
		t, err := registry.Register(st.Name, ArtifactTypeOptions{
			Installable: st.Installable,
			Separator:   st.Separator,
			Scheme:      types.VersionScheme(st.Scheme),
			PURLType:    st.PURLType,
		})
		if err != nil {
			return nil, decodeError(fmt.Sprintf("artifact type %q", st.Name), err)
		}
		artifactTypes = append(artifactTypes, t)
	}

	instances := make([]*PackageInstance, 0, len(b.Instances))
	touched := map[string]struct{}{}
	for _, entry := range b.Instances {
		key, err := entry.Key.decode(artifactTypes)
		if err != nil {
			return nil, err
		}
		if n := len(instances); n > 0 && instances[n-1].key.Compare(key) >= 0 {
			return nil, decodeError(fmt.Sprintf("instance %s out of order", key), nil)
		}
		instance := &PackageInstance{key: key, state: types.PackageState(entry.State)}
		for _, raw := range entry.Dependencies {
			dep, err := raw.decode(artifactTypes)
			if err != nil {
				return nil, err
			}
			instance.dependencies = append(instance.dependencies, dep)
		}
		for _, name := range entry.Feeds {
			qualified, err := QualifyFeedName(key.Artifact.Type, name)
			if err != nil || qualified != name {
				return nil, decodeError(fmt.Sprintf("instance %s has invalid feed %q", key, name), err)
			}
			touched[name] = struct{}{}
		}
		if !slices.Equal(sortedUnique(entry.Feeds), entry.Feeds) {
			return nil, decodeError(fmt.Sprintf("instance %s feeds are not sorted", key), nil)
		}
		instance.feedNames = entry.Feeds
		instances = append(instances, instance)
	}
	for _, instance := range instances {
		for _, dep := range instance.dependencies {
			if _, found := searchInstances(instances, dep); !found || dep.Compare(instance.key) == 0 {
				return nil, decodeError(fmt.Sprintf("instance %s has unresolved dependency %s", instance.key, dep), nil)
			}
		}
	}
	return &PackageDB{
		instances: instances,
		feeds:     buildFeeds(nil, instances, touched),
	}, nil
}

func (k snapshotKey) decode(artifactTypes []*ArtifactType) (ArtifactInstance, error) {
	if int(k.Type) >= len(artifactTypes) {
		return ArtifactInstance{}, decodeError(fmt.Sprintf("unknown type index %d", k.Type), nil)
	}
	artifact, err := NewArtifact(artifactTypes[k.Type], k.Name)
	if err != nil {
		return ArtifactInstance{}, decodeError("invalid artifact", err)
	}
	instance, err := NewArtifactInstance(artifact, k.Version)
	if err != nil {
		return ArtifactInstance{}, decodeError("invalid version", err)
	}
	if instance.Version != k.Version || artifact.Name != k.Name {
		return ArtifactInstance{}, decodeError(fmt.Sprintf("non canonical key %s", instance), nil)
	}
	return instance, nil
}

func encodeError(err error) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg("failed to write package db snapshot").
		WithCause(err)
}

func decodeError(detail string, err error) error {
	builder := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg("invalid package db snapshot: " + detail)
	if err != nil {
		builder = builder.WithCause(err)
	}
	return builder
}

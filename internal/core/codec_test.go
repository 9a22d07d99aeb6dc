package core

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
	"pgregory.net/rapid"

	"packagedb/internal/types"
)

func sampleDB(t *testing.T, r *ArtifactTypeRegistry) *PackageDB {
	t.Helper()
	deprecated := info(t, r, "NuGet:CK.Core/1.0.0", []string{"Public", "Archive"})
	deprecated.State = types.PackageStateDeprecated | types.PackageStateUnlisted
	db, _ := mustAdd(t, NewPackageDB(),
		deprecated,
		info(t, r, "NuGet:CK.Core/2.0.0-rc.1", []string{"Public"}),
		info(t, r, "Pip:requests/2.31.0", []string{"PyPI"}),
		info(t, r, "NuGet:CK.App/1.0.0", nil, "NuGet:CK.Core/2.0.0-rc.1", "Pip:requests/2.31.0"),
		info(t, r, "Apt:libssl3/3.0.2-0ubuntu1", []string{"jammy"}),
		info(t, r, "NPM:@scope/pkg/1.0.0", []string{"npmjs"}),
	)
	return db
}

func writeSnapshot(t *testing.T, db *PackageDB) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteSnapshot(&buf, db))
	return buf.Bytes()
}

// frame wraps a raw body the way WriteSnapshot does.
func frame(t *testing.T, body []byte, digest []byte) []byte {
	t.Helper()
	envelope, err := snapshotEncMode.Marshal(snapshotEnvelope{Digest: digest, Body: body})
	require.NoError(t, err)
	var buf bytes.Buffer
	buf.WriteString(snapshotMagic)
	buf.WriteByte(snapshotFormat)
	zw, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = zw.Write(envelope)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func frameBody(t *testing.T, body snapshotBody) []byte {
	t.Helper()
	raw, err := snapshotEncMode.Marshal(body)
	require.NoError(t, err)
	digest := blake3.Sum256(raw)
	return frame(t, raw, digest[:])
}

func requireDecodeError(t *testing.T, data []byte, r *ArtifactTypeRegistry) {
	t.Helper()
	db, err := ReadSnapshot(bytes.NewReader(data), r)
	require.Error(t, err)
	assert.Nil(t, db)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "invalid package db snapshot")
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	db := sampleDB(t, r)
	data := writeSnapshot(t, db)

	// A fresh registry learns the types from the snapshot.
	fresh := NewArtifactTypeRegistry()
	got, err := ReadSnapshot(bytes.NewReader(data), fresh)
	require.NoError(t, err)
	assert.True(t, db.Equal(got))
	if diff := cmp.Diff(feedNames(db.Feeds()), feedNames(got.Feeds())); diff != "" {
		t.Fatalf("feeds mismatch (-want +got):\n%s", diff)
	}
	npm := fresh.Find("NPM")
	require.NotNil(t, npm)
	assert.Equal(t, '@', npm.Separator())
	assert.Equal(t, types.VersionSchemeDeb, fresh.Find("Apt").Scheme())

	// Reading into the writing registry reuses its types.
	again, err := ReadSnapshot(bytes.NewReader(data), r)
	require.NoError(t, err)
	assert.Same(t, r.Find("NuGet"), again.Find(mustKey(t, r, "NuGet:CK.App/1.0.0")).Key().Artifact.Type)

	app := got.Find(mustKey(t, fresh, "NuGet:CK.App/1.0.0"))
	require.NotNil(t, app)
	var deps []string
	for _, dep := range app.Dependencies() {
		deps = append(deps, dep.String())
	}
	if diff := cmp.Diff([]string{"NuGet:CK.Core/2.0.0-rc.1", "Pip:requests/2.31.0"}, deps); diff != "" {
		t.Fatalf("dependencies mismatch (-want +got):\n%s", diff)
	}
	core := got.Find(mustKey(t, fresh, "NuGet:CK.Core/1.0.0"))
	assert.Equal(t, types.PackageStateDeprecated|types.PackageStateUnlisted, core.State())
}

func TestSnapshotDeterministic(t *testing.T) {
	r := newTestRegistry(t)
	db := sampleDB(t, r)
	assert.Equal(t, writeSnapshot(t, db), writeSnapshot(t, db))
}

func TestSnapshotEmpty(t *testing.T) {
	data := writeSnapshot(t, NewPackageDB())
	got, err := ReadSnapshot(bytes.NewReader(data), NewArtifactTypeRegistry())
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Empty(t, got.Feeds())
}

func TestSnapshotRejectsMalformedInput(t *testing.T) {
	r := newTestRegistry(t)
	data := writeSnapshot(t, sampleDB(t, r))

	tampered := bytes.Clone(data)
	tampered[len(tampered)/2] ^= 0xff

	tests := map[string][]byte{
		"empty":            nil,
		"short header":     []byte("PKD"),
		"foreign magic":    append([]byte("ZZZZ"), data[4:]...),
		"future format":    append([]byte("PKDB\x02"), data[5:]...),
		"truncated":        data[:len(data)-7],
		"header only":      data[:5],
		"tampered payload": tampered,
		"not zstd":         []byte("PKDB\x01hello world"),
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			requireDecodeError(t, input, NewArtifactTypeRegistry())
		})
	}
}

func TestSnapshotRejectsChecksumMismatch(t *testing.T) {
	r := newTestRegistry(t)
	raw, err := snapshotEncMode.Marshal(newSnapshotBody(sampleDB(t, r)))
	require.NoError(t, err)
	digest := blake3.Sum256(raw)
	digest[0] ^= 1

	requireDecodeError(t, frame(t, raw, digest[:]), NewArtifactTypeRegistry())
}

func TestSnapshotRejectsInconsistentBody(t *testing.T) {
	r := newTestRegistry(t)
	db := sampleDB(t, r)

	tests := []struct {
		name   string
		mutate func(body *snapshotBody)
	}{
		{"out of order", func(body *snapshotBody) {
			body.Instances[0], body.Instances[1] = body.Instances[1], body.Instances[0]
		}},
		{"duplicate instance", func(body *snapshotBody) {
			body.Instances[1] = body.Instances[0]
		}},
		{"unknown type index", func(body *snapshotBody) {
			body.Instances[0].Key.Type = 42
		}},
		{"non canonical version", func(body *snapshotBody) {
			for i := range body.Instances {
				if body.Types[body.Instances[i].Key.Type].Name == "NuGet" {
					body.Instances[i].Key.Version = "v" + body.Instances[i].Key.Version
					return
				}
			}
		}},
		{"dangling dependency", func(body *snapshotBody) {
			for i := range body.Instances {
				if len(body.Instances[i].Dependencies) > 0 {
					body.Instances[i].Dependencies[0].Name = "Missing"
					return
				}
			}
		}},
		{"foreign feed", func(body *snapshotBody) {
			body.Instances[0].Feeds = []string{"Other:Feed"}
		}},
		{"unsorted feeds", func(body *snapshotBody) {
			for i := range body.Instances {
				if len(body.Instances[i].Feeds) > 1 {
					feeds := body.Instances[i].Feeds
					body.Instances[i].Feeds = []string{feeds[1], feeds[0]}
					return
				}
			}
		}},
		{"unsupported scheme", func(body *snapshotBody) {
			body.Types[0].Scheme = "calver"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := newSnapshotBody(db)
			tt.mutate(&body)
			requireDecodeError(t, frameBody(t, body), NewArtifactTypeRegistry())
		})
	}
}

func TestSnapshotRejectsConflictingType(t *testing.T) {
	r := newTestRegistry(t)
	data := writeSnapshot(t, sampleDB(t, r))

	conflicting := NewArtifactTypeRegistry()
	_, err := conflicting.Register("Pip", ArtifactTypeOptions{Scheme: types.VersionSchemeSemVer})
	require.NoError(t, err)
	requireDecodeError(t, data, conflicting)
}

func TestSnapshotRoundTripProperty(t *testing.T) {
	r := newTestRegistry(t)

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 20).Draw(rt, "n")
		var batch []PackageInfo
		var admitted []string
		for i := range n {
			typeName := rapid.SampledFrom([]string{"NuGet", "Pip", "Apt"}).Draw(rt, fmt.Sprintf("type%d", i))
			text := fmt.Sprintf("%s:p%d/1.%d", typeName, rapid.IntRange(0, 4).Draw(rt, fmt.Sprintf("name%d", i)), i)
			if typeName == "NuGet" {
				text += ".0"
			}
			feeds := rapid.SliceOfN(rapid.SampledFrom([]string{"A", "B", "C"}), 0, 2).Draw(rt, fmt.Sprintf("feeds%d", i))
			var deps []string
			if len(admitted) > 0 && rapid.Bool().Draw(rt, fmt.Sprintf("dep%d", i)) {
				deps = append(deps, rapid.SampledFrom(admitted).Draw(rt, fmt.Sprintf("target%d", i)))
			}
			item := info(rt, r, text, feeds, deps...)
			item.State = types.PackageState(rapid.IntRange(0, 3).Draw(rt, fmt.Sprintf("state%d", i)))
			batch = append(batch, item)
			admitted = append(admitted, item.Key.String())
		}
		db, _, err := NewPackageDB().Add(rt.Context(), batch, false)
		require.NoError(rt, err)

		var buf bytes.Buffer
		require.NoError(rt, WriteSnapshot(&buf, db))
		got, err := ReadSnapshot(&buf, NewArtifactTypeRegistry())
		require.NoError(rt, err)
		if !db.Equal(got) {
			rt.Fatalf("snapshot round trip changed the database")
		}
	})
}

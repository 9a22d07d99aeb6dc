package core

import (
	"fmt"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"packagedb/internal/types"
)

func TestPackageDBAddSortsInstances(t *testing.T) {
	r := newTestRegistry(t)
	db, changes := mustAdd(t, NewPackageDB(),
		info(t, r, "NuGet:B/1.0.0", nil),
		info(t, r, "NuGet:A/1.10.0", nil),
		info(t, r, "Apt:zlib1g/1.2.11", nil),
		info(t, r, "NuGet:A/1.9.0", nil),
	)

	want := []string{"Apt:zlib1g/1.2.11", "NuGet:A/1.9.0", "NuGet:A/1.10.0", "NuGet:B/1.0.0"}
	if diff := cmp.Diff(want, instanceKeys(db.Instances())); diff != "" {
		t.Fatalf("instances mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, changes.HasChanged)
	assert.Same(t, db, changes.DB)
	require.Len(t, changes.PackageChanges, 4)
	for _, change := range changes.PackageChanges {
		assert.Equal(t, types.PackageEventAdded, change.ChangeType)
	}
}

func TestPackageDBAddDuplicate(t *testing.T) {
	r := newTestRegistry(t)
	base, _ := mustAdd(t, NewPackageDB(), info(t, r, "NuGet:A/1.0.0", []string{"Public"}))

	_, _, err := base.Add(t.Context(), []PackageInfo{info(t, r, "NuGet:A/1.0.0", []string{"Public"})}, false)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeAlreadyExists, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "duplicate package NuGet:A/1.0.0")

	next, changes, err := base.Add(t.Context(), []PackageInfo{info(t, r, "NuGet:A/1.0.0", []string{"NuGet:Public"})}, true)
	require.NoError(t, err)
	assert.Same(t, base, next)
	assert.False(t, changes.HasChanged)
	assert.Empty(t, changes.PackageChanges)
}

func TestPackageDBAddDuplicateInBatch(t *testing.T) {
	r := newTestRegistry(t)
	_, _, err := NewPackageDB().Add(t.Context(), []PackageInfo{
		info(t, r, "NuGet:A/1.0.0", nil),
		info(t, r, "NuGet:A/v1.0", nil),
	}, false)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeAlreadyExists, errbuilder.CodeOf(err))
}

func TestPackageDBAddMissingDependency(t *testing.T) {
	r := newTestRegistry(t)
	base, _ := mustAdd(t, NewPackageDB(), info(t, r, "NuGet:A/1.0.0", nil))

	_, _, err := base.Add(t.Context(), []PackageInfo{
		info(t, r, "NuGet:B/1.0.0", nil, "NuGet:A/1.0.0"),
		info(t, r, "NuGet:C/1.0.0", nil, "NuGet:D/1.0.0"),
	}, false)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
	assert.Contains(t, err.Error(), "missing dependency NuGet:D/1.0.0")

	// The failed batch left the base untouched.
	if diff := cmp.Diff([]string{"NuGet:A/1.0.0"}, instanceKeys(base.Instances())); diff != "" {
		t.Fatalf("base mutated (-want +got):\n%s", diff)
	}
}

func TestPackageDBAddDependencyOrder(t *testing.T) {
	r := newTestRegistry(t)

	// A dependency may be admitted earlier in the same batch, across types.
	db, _ := mustAdd(t, NewPackageDB(),
		info(t, r, "NuGet:Lib/1.0.0", nil),
		info(t, r, "Pip:tool/2.0", nil),
		info(t, r, "NuGet:App/1.0.0", nil, "NuGet:Lib/1.0.0", "Pip:tool/2.0"),
	)
	app := db.Find(mustKey(t, r, "NuGet:App/1.0.0"))
	require.NotNil(t, app)
	assert.Len(t, app.Dependencies(), 2)

	_, _, err := NewPackageDB().Add(t.Context(), []PackageInfo{
		info(t, r, "NuGet:App/1.0.0", nil, "NuGet:Lib/1.0.0"),
		info(t, r, "NuGet:Lib/1.0.0", nil),
	}, false)
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
}

func TestPackageDBAddInvalidInput(t *testing.T) {
	r := newTestRegistry(t)
	tests := []struct {
		name string
		info PackageInfo
	}{
		{"zero key", PackageInfo{}},
		{"self dependency", info(t, r, "NuGet:A/1.0.0", nil, "NuGet:A/1.0.0")},
		{"foreign feed", info(t, r, "NuGet:A/1.0.0", []string{"NPM:Public"})},
		{"empty feed", info(t, r, "NuGet:A/1.0.0", []string{"NuGet: "})},
		{"invalid dependency", PackageInfo{Key: mustKey(t, r, "NuGet:A/1.0.0"), Dependencies: []ArtifactInstance{{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewPackageDB().Add(t.Context(), []PackageInfo{tt.info}, false)
			require.Error(t, err)
			assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
		})
	}
}

func TestPackageDBAddAtomic(t *testing.T) {
	r := newTestRegistry(t)
	base, _ := mustAdd(t, NewPackageDB(), info(t, r, "NuGet:A/1.0.0", []string{"Public"}))
	before := base.Feeds()

	next, changes, err := base.Add(t.Context(), []PackageInfo{
		info(t, r, "NuGet:B/1.0.0", []string{"Public"}),
		info(t, r, "NuGet:A/1.0.0", []string{"Public"}),
	}, false)
	require.Error(t, err)
	assert.Nil(t, next)
	assert.Equal(t, ChangedInfo{}, changes)

	assert.Equal(t, 1, base.Len())
	assert.Equal(t, before, base.Feeds())
	assert.Equal(t, 1, base.FindFeed("NuGet:Public").Len())
}

func TestPackageDBAddUpdatesExisting(t *testing.T) {
	r := newTestRegistry(t)
	base, _ := mustAdd(t, NewPackageDB(),
		info(t, r, "NuGet:Lib/1.0.0", nil),
		info(t, r, "NuGet:A/1.0.0", []string{"Public"}),
		info(t, r, "NuGet:B/1.0.0", nil),
		info(t, r, "NuGet:C/1.0.0", nil),
	)

	deprecated := info(t, r, "NuGet:A/1.0.0", nil)
	deprecated.State = types.PackageStateDeprecated
	rewired := info(t, r, "NuGet:B/1.0.0", nil, "NuGet:Lib/1.0.0")
	both := info(t, r, "NuGet:C/1.0.0", nil, "NuGet:Lib/1.0.0")
	both.State = types.PackageStateUnlisted

	next, changes := mustAdd(t, base, deprecated, rewired, both)

	got := map[string]types.PackageEventType{}
	for _, change := range changes.PackageChanges {
		got[change.Package.Key().String()] = change.ChangeType
	}
	want := map[string]types.PackageEventType{
		"NuGet:A/1.0.0": types.PackageEventStateOnlyChanged,
		"NuGet:B/1.0.0": types.PackageEventContentOnlyChanged,
		"NuGet:C/1.0.0": types.PackageEventContentAndStateChanged,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("changes mismatch (-want +got):\n%s", diff)
	}

	// Feeds accumulate: the update without feeds keeps A in Public.
	a := next.Find(mustKey(t, r, "NuGet:A/1.0.0"))
	require.NotNil(t, a)
	assert.Equal(t, []string{"NuGet:Public"}, a.FeedNames())
	assert.Equal(t, types.PackageStateDeprecated, a.State())
	assert.Equal(t, types.PackageStateNone, base.Find(mustKey(t, r, "NuGet:A/1.0.0")).State())
}

func TestPackageDBFeedAggregation(t *testing.T) {
	r := newTestRegistry(t)
	db, changes := mustAdd(t, NewPackageDB(),
		info(t, r, "NuGet:CK.Core/1.0.0", []string{"Public"}),
		info(t, r, "NuGet:CK.Core/2.0.0-rc.1", []string{"Public", "Preview"}),
		info(t, r, "NuGet:CK.Core/2.1.0-ci.4", []string{"NuGet:CI"}),
		info(t, r, "NuGet:Other/1.0.0", []string{"Public"}),
		info(t, r, "NPM:left-pad/1.3.0", []string{"Public"}),
		info(t, r, "NPM:left-pad/1.4.0", nil),
	)

	want := []string{"NPM:Public", "NuGet:CI", "NuGet:Preview", "NuGet:Public"}
	if diff := cmp.Diff(want, feedNames(db.Feeds())); diff != "" {
		t.Fatalf("feeds mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, feedNames(changes.NewFeeds)); diff != "" {
		t.Fatalf("new feeds mismatch (-want +got):\n%s", diff)
	}

	public := db.FindFeed("NuGet:Public")
	require.NotNil(t, public)
	assert.Equal(t, "Public", public.FeedName())
	assert.Same(t, r.Find("NuGet"), public.Type())
	if diff := cmp.Diff([]string{"NuGet:CK.Core/1.0.0", "NuGet:CK.Core/2.0.0-rc.1", "NuGet:Other/1.0.0"}, instanceKeys(public.GetInstances())); diff != "" {
		t.Fatalf("public mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, public.GetArtifactInstances("CK.Core"), 2)
	assert.True(t, public.Contains(mustKey(t, r, "NuGet:Other/1.0.0")))
	assert.False(t, public.Contains(mustKey(t, r, "NuGet:CK.Core/2.1.0-ci.4")))

	// Feeds share instance pointers with their generation.
	assert.Same(t, db.Find(mustKey(t, r, "NuGet:Other/1.0.0")), public.GetArtifactInstances("Other")[0])

	core, err := r.ParseArtifact("NuGet:CK.Core")
	require.NoError(t, err)
	inPublic := public.GetAvailableInstances("CK.Core")
	assert.Equal(t, "2.0.0-rc.1", inPublic.Latest())
	assert.Equal(t, "1.0.0", inPublic.Stable())

	everywhere := db.GetAvailableInstances(core)
	assert.Equal(t, "2.1.0-ci.4", everywhere.CI())
	assert.Equal(t, "2.0.0-rc.1", everywhere.Preview())

	merged := db.GetAvailableInstancesInFeeds(core, []string{"NuGet:Public", "NuGet:CI", "NuGet:Missing", "NPM:Public"})
	assert.Equal(t, everywhere, merged)

	assert.Len(t, db.GetInstancesByType(r.Find("NPM")), 2)
	assert.Empty(t, db.GetInstancesByType(r.Find("Pip")))
	assert.Len(t, db.GetArtifactInstances(core), 3)
	assert.Nil(t, db.FindFeed("NuGet:Nope"))
}

func TestPackageDBFeedOnlyChange(t *testing.T) {
	r := newTestRegistry(t)
	base, _ := mustAdd(t, NewPackageDB(), info(t, r, "NuGet:A/1.0.0", []string{"Public"}))

	next, changes := mustAdd(t, base, info(t, r, "NuGet:A/1.0.0", []string{"Mirror"}))

	assert.True(t, changes.HasChanged)
	assert.Empty(t, changes.PackageChanges)
	assert.Equal(t, []string{"NuGet:Mirror"}, feedNames(changes.NewFeeds))
	assert.Empty(t, changes.FeedChanges)
	assert.Equal(t, []string{"NuGet:Mirror", "NuGet:Public"}, next.Find(mustKey(t, r, "NuGet:A/1.0.0")).FeedNames())

	// The untouched feed keeps its identity.
	_, changes = mustAdd(t, next, info(t, r, "NuGet:B/1.0.0", []string{"Public"}))
	require.Len(t, changes.FeedChanges, 1)
	assert.Equal(t, "NuGet:Public", changes.FeedChanges[0].Feed.Name())
	assert.Same(t, next.FindFeed("NuGet:Mirror"), changes.DB.FindFeed("NuGet:Mirror"))
}

func TestPackageDBAddEmptyBatch(t *testing.T) {
	db := NewPackageDB()
	next, changes, err := db.Add(t.Context(), nil, false)
	require.NoError(t, err)
	assert.Same(t, db, next)
	assert.False(t, changes.HasChanged)
	assert.Same(t, db, changes.DB)
}

// orderIndependenceBatch builds sixty dependency-free packages spread
// over three types and ten feeds.
func orderIndependenceBatch(t require.TestingT, r *ArtifactTypeRegistry) []PackageInfo {
	typeNames := []string{"NuGet", "NPM", "Pip"}
	var batch []PackageInfo
	for i := range 60 {
		typeName := typeNames[i%3]
		version := fmt.Sprintf("1.%d.0", i/6)
		if typeName == "NuGet" && i%4 == 0 {
			version += "-rc.1"
		}
		feeds := []string{fmt.Sprintf("Feed%d", i%10)}
		if i%7 == 0 {
			feeds = append(feeds, fmt.Sprintf("Feed%d", (i+3)%10))
		}
		batch = append(batch, info(t, r, fmt.Sprintf("%s:pkg%d/%s", typeName, i%5, version), feeds))
	}
	return batch
}

func TestPackageDBOrderIndependence(t *testing.T) {
	r := newTestRegistry(t)
	batch := orderIndependenceBatch(t, r)

	oneShot, _ := mustAdd(t, NewPackageDB(), batch...)
	require.Equal(t, 60, oneShot.Len())

	reversed := make([]PackageInfo, 0, len(batch))
	for i := len(batch) - 1; i >= 0; i-- {
		reversed = append(reversed, batch[i])
	}
	fromReversed, _ := mustAdd(t, NewPackageDB(), reversed...)

	oneByOne := NewPackageDB()
	for _, item := range batch {
		oneByOne, _ = mustAdd(t, oneByOne, item)
	}

	interleaved := NewPackageDB()
	for start := range 3 {
		var chunk []PackageInfo
		for i := start; i < len(batch); i += 3 {
			chunk = append(chunk, batch[i])
		}
		interleaved, _ = mustAdd(t, interleaved, chunk...)
	}

	for name, db := range map[string]*PackageDB{"reversed": fromReversed, "one by one": oneByOne, "interleaved": interleaved} {
		assert.True(t, oneShot.Equal(db), name)
		if diff := cmp.Diff(feedNames(oneShot.Feeds()), feedNames(db.Feeds())); diff != "" {
			t.Errorf("%s feeds mismatch (-want +got):\n%s", name, diff)
		}
	}
}

func TestPackageDBOrderIndependenceProperty(t *testing.T) {
	r := newTestRegistry(t)
	batch := orderIndependenceBatch(t, r)
	want, _ := mustAdd(t, NewPackageDB(), batch...)

	rapid.Check(t, func(rt *rapid.T) {
		shuffled := rapid.Permutation(batch).Draw(rt, "batch")
		cuts := rapid.SliceOfN(rapid.IntRange(0, len(shuffled)), 0, 5).Draw(rt, "cuts")

		db := NewPackageDB()
		start := 0
		for _, cut := range append(cuts, len(shuffled)) {
			if cut <= start {
				continue
			}
			next, _, err := db.Add(rt.Context(), shuffled[start:cut], false)
			require.NoError(rt, err)
			db, start = next, cut
		}
		if !want.Equal(db) {
			rt.Fatalf("generation differs from one-shot insertion")
		}
	})
}

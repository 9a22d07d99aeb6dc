package app

import "packagedb/internal/types"

type ImportRequest struct {
	ManifestPath string
	SnapshotPath string
	MirrorDir    string
	HistoryDir   string
	SkipExisting bool
}

type ImportResult struct {
	Changed   bool
	Instances int
	// Generation is the id recorded in the history, if any.
	Generation   string
	Added        []string
	Updated      []string
	Destroyed    []string
	NewFeeds     []string
	DroppedFeeds []string
	ChangedFeeds []string
}

type RemoveRequest struct {
	SnapshotPath string
	MirrorDir    string
	HistoryDir   string
	Packages     []string
}

type RemoveResult struct {
	Changed      bool
	Instances    int
	Generation   string
	Removed      []string
	DroppedFeeds []string
}

type QueryRequest struct {
	SnapshotPath string
	Artifact     string
	Feeds        []string
	Label        string
}

type QueryPick struct {
	Label   string
	Version string
}

type QueryResult struct {
	Artifact string
	// Version is the pick for the requested label, if any.
	Version string
	Picks   []QueryPick
}

type InspectRequest struct {
	SnapshotPath string
	MirrorDir    string
}

type InspectTypeSummary struct {
	Name        string
	Installable bool
	Artifacts   int
	Instances   int
}

type InspectFeedSummary struct {
	Name     string
	Packages int
}

type InspectResult struct {
	Instances int
	Types     []InspectTypeSummary
	Feeds     []InspectFeedSummary
	// Mirror drift, only filled when a mirror directory is given.
	MissingListings []string
	StaleListings   []string
	OrphanListings  []string
}

type HistoryRequest struct {
	HistoryDir string
}

type HistoryResult struct {
	Generations []types.GenerationInfo
}

type TagRequest struct {
	HistoryDir string
	// Ref is a generation id or an existing tag.
	Ref string
	Tag string
}

type TagResult struct {
	ID  string
	Tag string
}

type DiffRequest struct {
	SnapshotPath string
	HistoryDir   string
	From         string
	// To defaults to the current snapshot.
	To string
}

type DiffResult struct {
	From         string
	To           string
	Changed      bool
	Added        []string
	Updated      []string
	Destroyed    []string
	NewFeeds     []string
	DroppedFeeds []string
	ChangedFeeds []string
}

type PruneRequest struct {
	HistoryDir  string
	KeepLast    int
	KeepDays    int
	ProtectTags []string
	DryRun      bool
}

type PruneResult struct {
	KeepCount   int
	DeleteCount int
	Deleted     []string
	DryRun      bool
}

type SBOMRequest struct {
	SnapshotPath string
	HistoryDir   string
	// Generation exports a recorded generation or tag instead of the
	// current snapshot.
	Generation string
	// Feeds restricts the export to these qualified feeds.
	Feeds      []string
	OutputPath string
}

type SBOMResult struct {
	Name     string
	Path     string
	Packages int
}

package types

// FeedManifestFile is the YAML document an ingestion plugin produces
// for one import batch.
type FeedManifestFile struct {
	// Feeds lists feeds whose membership is fully described by this
	// manifest. Packages of those feeds that are absent from Packages
	// leave the feed.
	Feeds    []FeedManifestEntry    `yaml:"feeds,omitempty"`
	Packages []PackageManifestEntry `yaml:"packages"`
}

type FeedManifestEntry struct {
	Name    string `yaml:"name"`
	Replace bool   `yaml:"replace,omitempty"`
}

// PackageManifestEntry describes one package. Dependencies use the
// "<Type>:<Name>/<Version>" form, or "<Name>/<Version>" for a
// dependency of the same type.
type PackageManifestEntry struct {
	Type         string   `yaml:"type"`
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	State        string   `yaml:"state,omitempty"`
	Feeds        []string `yaml:"feeds,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

// FeedListingFile is the on-disk mirror of one feed.
type FeedListingFile struct {
	Feed     string             `yaml:"feed"`
	Type     string             `yaml:"type"`
	Packages []FeedListingEntry `yaml:"packages"`
}

type FeedListingEntry struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Quality      string   `yaml:"quality"`
	PURL         string   `yaml:"purl,omitempty"`
	State        string   `yaml:"state,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty"`
}

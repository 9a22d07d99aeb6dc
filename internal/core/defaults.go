package core

import (
	packageurl "github.com/package-url/packageurl-go"

	"packagedb/internal/types"
)

// DefaultArtifactTypes are the types known without configuration.
var DefaultArtifactTypes = map[string]ArtifactTypeOptions{
	"NuGet":   {Installable: true, Scheme: types.VersionSchemeSemVer, PURLType: packageurl.TypeNuget},
	"NPM":     {Installable: true, Separator: '@', Scheme: types.VersionSchemeSemVer, PURLType: packageurl.TypeNPM},
	"CKSetup": {Scheme: types.VersionSchemeSemVer, PURLType: packageurl.TypeGeneric},
	"Pip":     {Installable: true, Separator: '=', Scheme: types.VersionSchemePep440, PURLType: packageurl.TypePyPi},
	"Apt":     {Installable: true, Separator: '=', Scheme: types.VersionSchemeDeb, PURLType: packageurl.TypeDebian},
}

// RegisterDefaultTypes registers DefaultArtifactTypes in r.
func RegisterDefaultTypes(r *ArtifactTypeRegistry) error {
	for name, opts := range DefaultArtifactTypes {
		if _, err := r.Register(name, opts); err != nil {
			return err
		}
	}
	return nil
}

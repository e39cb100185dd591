// Package api defines the data model shared by the catalog, resolver,
// deployment planner and executor: features, bundles, conditionals,
// repositories and the resolver's resource output.
package api

import (
	"fmt"
	"strings"

	"github.com/operator-framework/feature-engine/pkg/version"
)

// wildcardVersion is the sentinel used when a feature identifier omits a
// version: it normalizes to "0.0.0" and, for uninstall requests, matches
// every installed version of the named feature.
const wildcardVersion = "0.0.0"

// FeatureId is the canonical (name, version) identity of a feature,
// serialized as "name/version".
type FeatureId struct {
	Name    string
	Version version.Version
}

// String renders the canonical "name/version" form.
func (id FeatureId) String() string {
	return fmt.Sprintf("%s/%s", id.Name, id.Version.String())
}

// IsWildcard reports whether id's version is the "0.0.0" sentinel.
func (id FeatureId) IsWildcard() bool {
	return id.Version.String() == wildcardVersion
}

// ParseFeatureId parses the "<name>(\"/\"<version>)?" grammar of spec §6.
// A missing version normalizes to the wildcard sentinel "0.0.0".
func ParseFeatureId(s string) (FeatureId, error) {
	name, vs, found := strings.Cut(s, "/")
	if name == "" {
		return FeatureId{}, fmt.Errorf("empty feature name in %q", s)
	}
	if !found || vs == "" {
		vs = wildcardVersion
	}
	v, err := version.Parse(vs)
	if err != nil {
		return FeatureId{}, fmt.Errorf("parsing version in feature id %q: %w", s, err)
	}
	return FeatureId{Name: name, Version: v}, nil
}

// FeatureRef names a feature dependency or conditional trigger by name and
// an acceptable version range.
type FeatureRef struct {
	Name  string
	Range version.VersionRange
}

// BundleRef is a module a feature installs. Location is the identity used
// when merging the same bundle contributed by more than one feature.
type BundleRef struct {
	Location   string
	StartLevel uint32
	HasStart   bool
	Dependency bool
}

// ConfigRef is a configuration the feature's installer should apply;
// installation itself is delegated to the external ConfigInstaller.
type ConfigRef struct {
	PID  string
	Data map[string]string
}

// Conditional is a feature fragment contributed only when every trigger is
// satisfied by the resolved feature set. SyntheticId computes the
// "parent-name-condition-index/parent-version" id described in spec §3.
type Conditional struct {
	Triggers       []FeatureRef
	Bundles        []BundleRef
	Configurations []ConfigRef
}

func (c Conditional) SyntheticId(parent FeatureId, index int) FeatureId {
	return FeatureId{
		Name:    fmt.Sprintf("%s-condition-%d", parent.Name, index),
		Version: parent.Version,
	}
}

// Feature is a named, versioned bundle of installable modules with
// declared dependencies, configurations and conditional extensions.
type Feature struct {
	Name           string
	Version        version.Version
	Bundles        []BundleRef
	Dependencies   []FeatureRef
	Conditionals   []Conditional
	Configurations []ConfigRef
}

// Id returns the feature's (name, version) identity.
func (f Feature) Id() FeatureId {
	return FeatureId{Name: f.Name, Version: f.Version}
}

// Repository is a named collection of features that may reference other
// repositories; repositories form a directed graph via references.
type Repository struct {
	URI                    string
	Name                   string
	ReferencedRepositories []string
	Features               []Feature
}

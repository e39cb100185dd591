package engine

import "context"

// ConfigInstaller applies a feature's declared configurations once its
// modules are installed (spec §4.5 phase 6). It is an external
// collaborator; the engine invokes it once per newly installed feature,
// strictly after the corresponding state commit.
type ConfigInstaller interface {
	InstallFeatureConfigs(ctx context.Context, featureName, featureVersion string, configs []ConfigRef) error
}

// ConfigRef mirrors api.ConfigRef to keep the ConfigInstaller contract
// decoupled from the internal data model package.
type ConfigRef struct {
	PID  string
	Data map[string]string
}

// Config carries the tunables of spec.md §6, functional-options style.
type Config struct {
	UpdateSnapshots        bool
	NoRefreshUnmanaged     bool
	NoRefreshManaged       bool
	NoRefresh              bool
	FeatureResolutionRange string
	BundleUpdateRange      string
	StatePath              string
	BootFeatures           []string
	Verbose                bool
}

// Option mutates a Config under construction.
type Option func(*Config)

// DefaultConfig returns the tunables at their spec.md §6 defaults.
func DefaultConfig() Config {
	return Config{
		UpdateSnapshots:        true,
		NoRefreshUnmanaged:     true,
		NoRefreshManaged:       true,
		NoRefresh:              false,
		FeatureResolutionRange: "[====,====]",
		BundleUpdateRange:      "[==,=+)",
		StatePath:              "feature-engine-state.yaml",
	}
}

func WithUpdateSnapshots(v bool) Option { return func(c *Config) { c.UpdateSnapshots = v } }
func WithNoRefreshUnmanaged(v bool) Option { return func(c *Config) { c.NoRefreshUnmanaged = v } }
func WithNoRefreshManaged(v bool) Option { return func(c *Config) { c.NoRefreshManaged = v } }
func WithNoRefresh(v bool) Option { return func(c *Config) { c.NoRefresh = v } }
func WithFeatureResolutionRange(r string) Option {
	return func(c *Config) { c.FeatureResolutionRange = r }
}
func WithBundleUpdateRange(r string) Option { return func(c *Config) { c.BundleUpdateRange = r } }
func WithStatePath(p string) Option         { return func(c *Config) { c.StatePath = p } }
func WithBootFeatures(specs ...string) Option {
	return func(c *Config) { c.BootFeatures = specs }
}
func WithVerbose(v bool) Option { return func(c *Config) { c.Verbose = v } }

// NewConfig builds a Config from DefaultConfig with opts applied.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

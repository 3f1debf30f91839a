package bootstrap

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/morezero/native-bridge/pkg/protocol"
	"github.com/morezero/native-bridge/pkg/semver"
)

const logPrefix = "bootstrap:loader"

// LoadBootstrapConfig loads bootstrap config from file paths or environment.
// It tries paths in order: first any paths passed in, then BRIDGE_BOOTSTRAP_FILE env, then defaults.
// A file that exists but cannot be parsed is an error; no file at all yields the default config.
func LoadBootstrapConfig(paths ...string) (*BootstrapConfig, error) {
	all := make([]string, 0, len(paths)+3)
	for _, p := range paths {
		if p != "" {
			all = append(all, p)
		}
	}
	if envPath := os.Getenv("BRIDGE_BOOTSTRAP_FILE"); envPath != "" {
		all = append(all, envPath)
	}
	all = append(all, "config/bootstrap.json", "bootstrap.json")

	for _, p := range all {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}

		var cfg BootstrapConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%s - failed to parse bootstrap file %s: %w", logPrefix, p, err)
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%s - %s: %w", logPrefix, p, err)
		}

		slog.Info(fmt.Sprintf("%s - Loaded bootstrap config from %s (%d relays)", logPrefix, p, len(cfg.Relays)))
		return &cfg, nil
	}

	slog.Info(fmt.Sprintf("%s - Using default bootstrap config", logPrefix))
	return GetDefaultBootstrapConfig(), nil
}

// GetDefaultBootstrapConfig returns the fallback configuration: no relays, default subjects.
func GetDefaultBootstrapConfig() *BootstrapConfig {
	return &BootstrapConfig{
		Name:    "native-bridge",
		Version: "1.0.0",
		Relays:  map[string]Relay{},
	}
}

// Validate checks relay tags and the version.
func (c *BootstrapConfig) Validate() error {
	if c.Version != "" && !semver.Valid(c.Version) {
		return fmt.Errorf("invalid version %q", c.Version)
	}
	for tag := range c.Relays {
		if tag == "" {
			return fmt.Errorf("relay with empty tag")
		}
		if tag == protocol.SelfTag {
			return fmt.Errorf("relay tag %q is reserved", tag)
		}
	}
	return nil
}

// WithRelayTags returns a copy of cfg with every tag in tags added as a relay on its default
// subject. Tags already declared keep their settings.
func (c *BootstrapConfig) WithRelayTags(tags []string) *BootstrapConfig {
	merged := *c
	merged.Relays = make(map[string]Relay, len(c.Relays)+len(tags))
	for tag, r := range c.Relays {
		merged.Relays[tag] = r
	}
	for _, tag := range tags {
		if _, ok := merged.Relays[tag]; !ok && tag != "" {
			merged.Relays[tag] = Relay{}
		}
	}
	return &merged
}

// CreateResolvedBootstrap builds a ResolvedBootstrap for fast lookups.
func CreateResolvedBootstrap(cfg *BootstrapConfig) *ResolvedBootstrap {
	relays := make(map[string]*Relay, len(cfg.Relays))
	for tag, r := range cfg.Relays {
		relay := r
		relays[tag] = &relay
	}
	return &ResolvedBootstrap{
		name:     cfg.Name,
		version:  cfg.Version,
		subjects: cfg.Subjects,
		relays:   relays,
	}
}

// MergeBootstrapConfigs merges an override config into a base config.
func MergeBootstrapConfigs(base, override *BootstrapConfig) *BootstrapConfig {
	merged := *base
	merged.Relays = make(map[string]Relay, len(base.Relays)+len(override.Relays))
	for tag, r := range base.Relays {
		merged.Relays[tag] = r
	}
	for tag, r := range override.Relays {
		merged.Relays[tag] = r
	}

	if override.Name != "" {
		merged.Name = override.Name
	}
	if override.Version != "" {
		merged.Version = override.Version
	}
	if override.Subjects.Inbound != "" {
		merged.Subjects.Inbound = override.Subjects.Inbound
	}
	if override.Subjects.Outbound != "" {
		merged.Subjects.Outbound = override.Subjects.Outbound
	}
	if override.Subjects.Script != "" {
		merged.Subjects.Script = override.Subjects.Script
	}
	if override.Subjects.Journal != "" {
		merged.Subjects.Journal = override.Subjects.Journal
	}
	return &merged
}

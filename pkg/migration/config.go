package migration

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// configEntry is the on-disk shape of one migration_config list item,
// matching the validator's anchor_config.go convention of a yaml-tagged
// struct per settings group plus a free-form extras bag for
// migration-specific knobs the core doesn't need to understand.
type configEntry struct {
	Type        string                 `yaml:"type"`
	BlockHeight uint64                 `yaml:"block_height"`
	Issue       string                 `yaml:"issue"`
	Extra       map[string]interface{} `yaml:",inline"`
}

// Config is the parsed migration_config document: an ordered list of
// migration selections.
type Config struct {
	Entries []configEntry `yaml:"migrations"`
}

// LoadConfig parses a YAML migration_config document.
func LoadConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("migration: parse config: %w", err)
	}
	return &cfg, nil
}

// Load resolves cfg against registry, producing an Engine with exactly the
// named migrations Enabled and configured; every registered migration not
// named in cfg defaults to Disabled with BlockHeight 1. An entry naming a
// migration absent from the registry is a load-time error: config selection
// must never silently no-op.
func Load(registry *Registry, cfg *Config) (*Engine, error) {
	e := newEngine()

	configured := make(map[string]bool, len(cfg.Entries))
	for _, entry := range cfg.Entries {
		def, ok := registry.Lookup(entry.Type)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedMigration, entry.Type)
		}
		e.add(&Migration{
			def: def,
			Metadata: Metadata{
				BlockHeight: entry.BlockHeight,
				Issue:       entry.Issue,
				Extra:       entry.Extra,
			},
			Status: StatusEnabled,
		})
		configured[entry.Type] = true
	}

	for _, name := range registry.Names() {
		if configured[name] {
			continue
		}
		def, _ := registry.Lookup(name)
		e.add(&Migration{def: def, Metadata: Metadata{BlockHeight: 1}, Status: StatusDisabled})
	}

	return e, nil
}

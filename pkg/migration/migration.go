// Package migration implements the versioned, height-gated migration
// engine: a static registry of named migrations, a YAML config selecting and
// configuring a subset of them, and the initialize/update/hotfix lifecycle
// that runs against storage at commit time.
//
// Grounded on many-migration/src/lib.rs (original source) for the
// Regular/Hotfix split and the initialize-before-update ordering, and on the
// validator's pkg/config/anchor_config.go for the yaml.v3-decoded settings
// shape.
package migration

import "fmt"

// Status is whether a configured migration is allowed to run.
type Status int

const (
	StatusDisabled Status = iota
	StatusEnabled
)

func (s Status) String() string {
	if s == StatusEnabled {
		return "enabled"
	}
	return "disabled"
}

// Metadata carries the per-entry configuration loaded from migration_config:
// the activation height, an optional tracking issue reference, and any
// migration-specific extra settings the config document supplies.
type Metadata struct {
	BlockHeight uint64
	Issue       string
	Extra       map[string]interface{}
}

// InitializeFunc runs exactly once, the first commit where the storage
// height equals the migration's BlockHeight.
type InitializeFunc func(storage interface{}) error

// UpdateFunc runs on every commit where storage height is at or past
// BlockHeight. Must be idempotent.
type UpdateFunc func(storage interface{}) error

// HotfixFunc rewrites a raw byte payload before it is decoded. Returning nil
// leaves the payload untouched.
type HotfixFunc func(payload []byte) []byte

// Kind discriminates Regular (initialize/update) from Hotfix migrations.
type Kind int

const (
	KindRegular Kind = iota
	KindHotfix
)

// Definition is a registry entry: the static, code-defined half of a
// migration (name, description, behavior). Metadata and Status come from
// config and are layered on top by Load.
type Definition struct {
	Name        string
	Description string
	Kind        Kind
	Initialize  InitializeFunc
	Update      UpdateFunc
	Hotfix      HotfixFunc
}

// Migration pairs a registry Definition with its configured Metadata and
// Status.
type Migration struct {
	def      Definition
	Metadata Metadata
	Status   Status
}

func (m *Migration) Name() string        { return m.def.Name }
func (m *Migration) Description() string { return m.def.Description }
func (m *Migration) Kind() Kind          { return m.def.Kind }
func (m *Migration) Enabled() bool       { return m.Status == StatusEnabled }

func (m *Migration) Enable()  { m.Status = StatusEnabled }
func (m *Migration) Disable() { m.Status = StatusDisabled }

func (m *Migration) String() string {
	return fmt.Sprintf("%s (%s, height=%d, %s)", m.def.Name, m.Status, m.Metadata.BlockHeight, m.def.Description)
}

// RunInitialize runs the migration's initialize function if it is Enabled
// and h equals its configured activation height. No-op for Hotfix kinds.
func (m *Migration) RunInitialize(storage interface{}, h uint64) error {
	if !m.Enabled() || m.Metadata.BlockHeight != h {
		return nil
	}
	if m.def.Kind != KindRegular || m.def.Initialize == nil {
		return nil
	}
	return m.def.Initialize(storage)
}

// RunUpdate runs the migration's update function if it is Enabled and h is
// at or past its configured activation height. No-op for Hotfix kinds.
func (m *Migration) RunUpdate(storage interface{}, h uint64) error {
	if !m.Enabled() || h < m.Metadata.BlockHeight {
		return nil
	}
	if m.def.Kind != KindRegular || m.def.Update == nil {
		return nil
	}
	return m.def.Update(storage)
}

// RunHotfix applies the hotfix transform if this migration is Enabled,
// active at the given height, and its kind is Hotfix.
func (m *Migration) RunHotfix(payload []byte, h uint64) []byte {
	if !m.Enabled() || m.Metadata.BlockHeight != h {
		return nil
	}
	if m.def.Kind != KindHotfix || m.def.Hotfix == nil {
		return nil
	}
	return m.def.Hotfix(payload)
}

// IsActiveAt reports whether this migration is enabled and has reached its
// activation height by h. Monotone: once true at some height, true for every
// later height (the config is not mutated at runtime).
func (m *Migration) IsActiveAt(h uint64) bool {
	return m.Enabled() && h >= m.Metadata.BlockHeight
}

package migration

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeStorage struct {
	initialized int
	updated     int
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(
		Definition{
			Name:        "add_token_index",
			Description: "adds a secondary token index",
			Kind:        KindRegular,
			Initialize: func(s interface{}) error {
				s.(*fakeStorage).initialized++
				return nil
			},
			Update: func(s interface{}) error {
				s.(*fakeStorage).updated++
				return nil
			},
		},
		LegacyErrorCode,
	)
	require.NoError(t, err)
	return r
}

func TestInitializeRunsExactlyOnce(t *testing.T) {
	reg := testRegistry(t)
	cfg, err := LoadConfig([]byte(`
migrations:
  - type: add_token_index
    block_height: 10
`))
	require.NoError(t, err)
	engine, err := Load(reg, cfg)
	require.NoError(t, err)

	storage := &fakeStorage{}
	for h := uint64(9); h <= 12; h++ {
		require.NoError(t, engine.UpdateAtHeight(storage, h))
	}

	require.Equal(t, 1, storage.initialized)
	require.Equal(t, 3, storage.updated) // heights 10, 11, 12
}

func TestUnconfiguredMigrationDefaultsDisabled(t *testing.T) {
	reg := testRegistry(t)
	cfg, err := LoadConfig([]byte(`migrations: []`))
	require.NoError(t, err)
	engine, err := Load(reg, cfg)
	require.NoError(t, err)

	storage := &fakeStorage{}
	require.NoError(t, engine.UpdateAtHeight(storage, 100))
	require.Equal(t, 0, storage.initialized)
	require.Equal(t, 0, storage.updated)

	m, ok := engine.Get("add_token_index")
	require.True(t, ok)
	require.False(t, m.Enabled())
}

func TestUnsupportedMigrationNameFailsLoad(t *testing.T) {
	reg := testRegistry(t)
	cfg, err := LoadConfig([]byte(`
migrations:
  - type: does_not_exist
    block_height: 1
`))
	require.NoError(t, err)

	_, err = Load(reg, cfg)
	require.ErrorIs(t, err, ErrUnsupportedMigration)
}

func TestIsActiveMonotone(t *testing.T) {
	reg := testRegistry(t)
	cfg, err := LoadConfig([]byte(`
migrations:
  - type: legacy_error_code
    block_height: 10
`))
	require.NoError(t, err)
	engine, err := Load(reg, cfg)
	require.NoError(t, err)

	require.False(t, engine.IsActive(LegacyErrorCodeName, 9))
	require.True(t, engine.IsActive(LegacyErrorCodeName, 10))
	require.True(t, engine.IsActive(LegacyErrorCodeName, 11))
}

func TestEnableAllRegularSkipsHotfix(t *testing.T) {
	reg, err := NewRegistry(
		Definition{Name: "r1", Kind: KindRegular, Initialize: func(interface{}) error { return nil }, Update: func(interface{}) error { return nil }},
		Definition{Name: "h1", Kind: KindHotfix, Hotfix: func(b []byte) []byte { return b }},
	)
	require.NoError(t, err)

	engine := reg.EnableAllRegular()
	r1, ok := engine.Get("r1")
	require.True(t, ok)
	require.True(t, r1.Enabled())

	h1, ok := engine.Get("h1")
	require.True(t, ok)
	require.False(t, h1.Enabled())
}

package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) *DB {
	t.Helper()
	d, err := OpenAndMigrate(context.Background(), MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestMigrate_Idempotent(t *testing.T) {
	ctx := context.Background()
	d := openTest(t)

	v, err := d.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v)

	require.NoError(t, d.Migrate(ctx))
	v, err = d.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, v)
}

func TestBootstrap_DefaultProfile(t *testing.T) {
	ctx := context.Background()
	d := openTest(t)

	cfg, err := d.ActiveConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "default", cfg.Profile.Name)
	assert.True(t, cfg.Profile.IsActive)
	assert.Equal(t, "0.0.0.0:8080", cfg.APIAddress())
	assert.Equal(t, "zigbee", cfg.Settings["mesh.family"])
	assert.Len(t, cfg.Settings, len(DefaultSettings))

	require.NoError(t, d.Bootstrap(ctx), "second bootstrap is a no-op")
	profiles, err := d.Profiles().List(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func TestBootstrap_KeepsUserSettings(t *testing.T) {
	ctx := context.Background()
	d := openTest(t)

	p, err := d.Profiles().GetActive(ctx)
	require.NoError(t, err)
	require.NoError(t, d.Settings().Set(ctx, p.ID, "hue.bridge_ip", "192.168.1.2"))
	require.NoError(t, d.Bootstrap(ctx))

	v, err := d.Settings().Get(ctx, p.ID, "hue.bridge_ip")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.2", v)
}

func TestSettings(t *testing.T) {
	ctx := context.Background()
	d := openTest(t)
	p, err := d.Profiles().GetActive(ctx)
	require.NoError(t, err)
	s := d.Settings()

	require.NoError(t, s.Set(ctx, p.ID, "custom.key", "a"))
	require.NoError(t, s.Set(ctx, p.ID, "custom.key", "b"))
	v, err := s.Get(ctx, p.ID, "custom.key")
	require.NoError(t, err)
	assert.Equal(t, "b", v)

	require.NoError(t, s.Delete(ctx, p.ID, "custom.key"))
	_, err = s.Get(ctx, p.ID, "custom.key")
	assert.ErrorIs(t, err, ErrSettingNotFound)
	assert.ErrorIs(t, s.Delete(ctx, p.ID, "custom.key"), ErrSettingNotFound)
}

func TestProfiles_SetActive(t *testing.T) {
	ctx := context.Background()
	d := openTest(t)
	store := d.Profiles()

	lab := &Profile{Name: "lab"}
	require.NoError(t, store.Create(ctx, lab))
	assert.Equal(t, "UTC", lab.Timezone)
	require.NoError(t, d.Bootstrap(ctx))

	require.NoError(t, store.SetActive(ctx, lab.ID))
	active, err := store.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "lab", active.Name)

	cfg, err := d.ActiveConfig(ctx)
	require.NoError(t, err)
	assert.Nil(t, cfg.APIServer)
	assert.Equal(t, "0.0.0.0:8080", cfg.APIAddress())
	assert.Equal(t, "homai", cfg.Settings["mqtt.topic_prefix"], "bootstrap back-fills new profiles")

	byName, err := store.GetByName(ctx, "lab")
	require.NoError(t, err)
	assert.Equal(t, lab.ID, byName.ID)

	assert.ErrorIs(t, store.SetActive(ctx, 999), ErrProfileNotFound)
	_, err = store.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestAPIServers_Upsert(t *testing.T) {
	ctx := context.Background()
	d := openTest(t)
	p, err := d.Profiles().GetActive(ctx)
	require.NoError(t, err)

	require.NoError(t, d.APIServers().Upsert(ctx, &APIServer{ProfileID: p.ID, Host: "127.0.0.1", Port: 9090}))
	a, err := d.APIServers().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", a.Address())
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "hub.db")
	d, err := OpenAndMigrate(context.Background(), path)
	require.NoError(t, err)
	defer func() { _ = d.Close() }()
	assert.Equal(t, path, d.Path())
}

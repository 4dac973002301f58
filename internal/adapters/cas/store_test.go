package cas_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/kiln/internal/adapters/cas"
	"go.trai.ch/kiln/internal/core/domain"
)

func record(recipe, id string, phase domain.Phase) domain.BuildInfo {
	return domain.BuildInfo{
		Recipe:      recipe,
		Version:     "3.0.0",
		InstanceID:  id,
		Phase:       phase,
		Settings:    domain.Settings{OS: domain.OSLinux, Arch: "x86_64"},
		Options:     map[string]string{"shared": "false", "fPIC": "true"},
		Definitions: []domain.Definition{{Name: "CORE", Kind: domain.DefinitionBool, Value: "true"}},
		Fingerprint: "00000000deadbeef",
		Layout:      domain.NewInstanceLayout("/ws/.kiln/instances/" + recipe),
		Timestamp:   time.Now().Truncate(time.Second).UTC(),
	}
}

func TestStore_PutGet(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := cas.NewStore()

	info := record("libossia", "id-1", domain.PhaseBuild)
	require.NoError(t, store.Put(root, info))

	got, err := store.Get(root, "id-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, info, *got)
}

func TestStore_GetMissing(t *testing.T) {
	t.Parallel()

	store := cas.NewStore()
	got, err := store.Get(t.TempDir(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = store.Latest(t.TempDir(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_Latest(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := cas.NewStore()

	require.NoError(t, store.Put(root, record("libossia", "id-1", domain.PhasePackageInfo)))
	require.NoError(t, store.Put(root, record("libossia", "id-2", domain.PhaseBuild)))
	require.NoError(t, store.Put(root, record("runner", "id-3", domain.PhaseSource)))

	latest, err := store.Latest(root, "libossia")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "id-2", latest.InstanceID)
	assert.Equal(t, domain.PhaseBuild, latest.Phase)

	older, err := store.Get(root, "id-1")
	require.NoError(t, err)
	assert.Equal(t, domain.PhasePackageInfo, older.Phase)
}

func TestStore_GetCorrupt(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	store := cas.NewStore()
	require.NoError(t, store.Put(root, record("libossia", "id-1", domain.PhaseSource)))

	dir := filepath.Join(root, domain.DefaultStorePath())
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		require.NoError(t, os.WriteFile(filepath.Join(dir, e.Name()), []byte("{ invalid json"), domain.PrivateFilePerm))
	}

	_, err = store.Get(root, "id-1")
	require.Error(t, err)
	assert.ErrorContains(t, err, domain.ErrStoreUnmarshalFailed.Error())
}

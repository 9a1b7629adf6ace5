package cache

import (
	"archive/zip"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRoundtrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.False(t, store.Has(123))
	_, err = store.Read(123)
	assert.ErrorIs(t, err, ErrNotFound)

	doc := []byte(`{"subsession_id": 123}`)
	require.NoError(t, store.Write(123, doc))

	assert.True(t, store.Has(123))
	got, err := store.Read(123)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestStoreOverwrite(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Write(7, []byte(`{"v": 1}`)))
	require.NoError(t, store.Write(7, []byte(`{"v": 2}`)))

	got, err := store.Read(7)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v": 2}`, string(got))
}

func TestStoreArchiveLayout(t *testing.T) {
	// one zip per subsession containing a single session.json entry
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Write(42, []byte(`{}`)))

	zr, err := zip.OpenReader(store.Path(42))
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	assert.Equal(t, "session.json", zr.File[0].Name)
}

func TestStoreIDs(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	for _, id := range []int64{30, 10, 20} {
		require.NoError(t, store.Write(id, []byte(`{}`)))
	}
	// foreign files are ignored
	require.NoError(t,
		os.WriteFile(dir+"/sessions/notes.txt", []byte("x"), 0o644))

	ids, err := store.IDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, ids)
}

func TestStoreReference(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.ReadReference(RefTracks)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.WriteReference(RefTracks, []byte(`[]`)))
	got, err := store.ReadReference(RefTracks)
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), got)
}

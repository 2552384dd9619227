package profile

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locksmith-coverage/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "nested", "profiles.db"))
	require.NoError(t, err)
	store.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_PutGet(t *testing.T) {
	store := openTestStore(t)

	saved, err := store.Put(models.OwnedProfile{
		ID:   " Van-1 ",
		Name: "Mobile van",
		Tools: models.OwnedToolSet{
			ToolIDs: []string{"VVDI2", "autel_im608", "vvdi2", ""},
			Cables:  []string{"APB112", "apb112"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "van-1", saved.ID)
	assert.Equal(t, []string{"autel_im608", "vvdi2"}, saved.Tools.ToolIDs)
	assert.Equal(t, []string{"APB112"}, saved.Tools.Cables)

	got, err := store.Get("VAN-1")
	require.NoError(t, err)
	assert.Equal(t, saved, got)
}

func TestStore_ListAndDelete(t *testing.T) {
	store := openTestStore(t)
	for _, id := range []string{"shop", "van-2", "van-1"} {
		_, err := store.Put(models.OwnedProfile{ID: id, Tools: models.OwnedToolSet{ToolIDs: []string{"autel_im608"}}})
		require.NoError(t, err)
	}

	list, err := store.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "shop", list[0].ID)
	assert.Equal(t, "van-2", list[2].ID)

	require.NoError(t, store.Delete("van-2"))
	_, err = store.Get("van-2")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.ErrorIs(t, store.Delete("van-2"), ErrProfileNotFound)
}

func TestStore_Errors(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Put(models.OwnedProfile{})
	assert.ErrorIs(t, err, ErrMissingID)
	_, err = store.Get(" ")
	assert.ErrorIs(t, err, ErrMissingID)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
	_, err = store.Get("shop")
	assert.ErrorIs(t, err, ErrStoreClosed)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.db")
	store, err := Open(path)
	require.NoError(t, err)
	_, err = store.Put(models.OwnedProfile{ID: "shop", Tools: models.OwnedToolSet{ToolIDs: []string{"lonsdor_k518ise"}}})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"lonsdor_k518ise"}, got.Tools.ToolIDs)
}

package research

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStoreSaveMergesInOrder(t *testing.T) {
	store := NewStore(t.TempDir())

	_, path, err := store.Save("Machine Learning", []Paper{{ID: "b", Title: "B"}, {ID: "a", Title: "A"}})
	require.NoError(t, err)
	require.Equal(t, filepath.Join(store.Dir(), "machine_learning", papersFileName), path)

	merged, _, err := store.Save("machine learning", []Paper{{ID: "c", Title: "C"}, {ID: "a", Title: "A2"}})
	require.NoError(t, err)
	require.Equal(t, 3, merged.Len())

	var keys []string
	for pair := merged.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	require.Equal(t, []string{"b", "a", "c"}, keys)

	a, ok := merged.Get("a")
	require.True(t, ok)
	require.Equal(t, "A2", a.Title)

	paper, ok, err := store.Find("c")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "C", paper.Title)
	require.Equal(t, "c", paper.ID)
}

func TestStoreTopicMissingAndCorrupt(t *testing.T) {
	store := NewStore(t.TempDir())

	_, ok, err := store.Topic("nothing")
	require.NoError(t, err)
	require.False(t, ok)

	dir := filepath.Join(store.Dir(), "broken")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, papersFileName), []byte("{not json"), 0o644))

	_, ok, err = store.Topic("broken")
	require.True(t, ok)
	require.Error(t, err)

	merged, _, err := store.Save("broken", []Paper{{ID: "x"}})
	require.NoError(t, err)
	require.Equal(t, 1, merged.Len())
}

func TestStoreFolders(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "papers"))

	folders, err := store.Folders()
	require.NoError(t, err)
	require.Empty(t, folders)

	_, _, err = store.Save("zeta", []Paper{{ID: "1"}})
	require.NoError(t, err)
	_, _, err = store.Save("alpha", []Paper{{ID: "2"}})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(store.Dir(), "empty"), 0o755))

	folders, err = store.Folders()
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "zeta"}, folders)
}

func TestStoreRejectsEscapingTopics(t *testing.T) {
	root := t.TempDir()
	store := NewStore(filepath.Join(root, "papers"))

	for _, topic := range []string{"../escaped", "..", "a/b", `a\b`, "/etc", "   "} {
		_, _, err := store.Save(topic, []Paper{{ID: "x"}})
		require.ErrorIs(t, err, ErrInvalidTopic, topic)

		_, ok, err := store.Topic(topic)
		require.ErrorIs(t, err, ErrInvalidTopic, topic)
		require.False(t, ok)
	}

	_, err := os.Stat(filepath.Join(root, "escaped", papersFileName))
	require.True(t, os.IsNotExist(err))
}

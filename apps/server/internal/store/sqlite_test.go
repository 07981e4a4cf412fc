package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tracker.db")
	s, err := NewSQLiteStore(path, Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	empty, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Winners.Len())

	doc := docOf(t, "| 1 | 900 | zed |\n| 2 | 100 | amy |\n| 3 | 900 | zed |")
	saved, err := s.Save(context.Background(), doc)
	require.NoError(t, err)

	loaded, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, saved.Revision, loaded.Revision)
	assert.Equal(t, []string{"900", "100"}, loaded.Winners.IDs())
	p, _ := loaded.Winners.Get("900")
	assert.Equal(t, 2, p.Count)
}

func TestSQLiteStore_SeparateDocumentsDoNotCollide(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.db")
	a, err := NewSQLiteStore(path, Config{Document: "a"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer a.Close()
	b, err := NewSQLiteStore(path, Config{Document: "b"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer b.Close()

	_, err = a.Save(context.Background(), docOf(t, "| 1 | 1 | x |"))
	require.NoError(t, err)

	snap, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Winners.Len())
}

func TestSQLiteStore_PollPicksUpOtherWriters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.db")
	cfg := Config{PollInterval: 20 * time.Millisecond}
	reader, err := NewSQLiteStore(path, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer reader.Close()
	writer, err := NewSQLiteStore(path, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer writer.Close()

	var mu sync.Mutex
	var got []Snapshot
	sub, err := reader.Subscribe(context.Background(), func(s Snapshot) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Cancel()

	saved, err := writer.Save(context.Background(), docOf(t, "| 1 | 77 | remote |"))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0 && got[len(got)-1].Revision == saved.Revision
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSQLiteStore_ConcurrentSavesDeliverInWriteOrder(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "tracker.db"), Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()
	requireLastDeliveryMatchesStore(t, s)
}

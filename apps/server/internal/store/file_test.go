package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"pumpkin-tracker/tally"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestFileStore_SaveWritesIndentedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "winners.json")
	s, err := NewFileStore(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Save(context.Background(), docOf(t, "| 1 | 5 | eve |"))
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"winners\": {\n    \"5\": {\n      \"username\": \"eve\",\n      \"count\": 1\n    }\n  }\n}\n", string(raw))

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	p, ok := snap.Winners.Get("5")
	require.True(t, ok)
	assert.Equal(t, 1, p.Count)
}

func TestFileStore_ExternalEditIsPushed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "winners.json")
	s, err := NewFileStore(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	var mu sync.Mutex
	var latest tally.Roster
	sub, err := s.Subscribe(context.Background(), func(snap Snapshot) {
		mu.Lock()
		latest = snap.Winners
		mu.Unlock()
	})
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, os.WriteFile(path, []byte(`{"winners":{"31":{"username":"hand edited","count":3}}}`), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		p, ok := latest.Get("31")
		return ok && p.Count == 3
	}, 3*time.Second, 20*time.Millisecond)
}

func TestFileStore_MissingFileLoadsEmpty(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "absent.json"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	snap, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Winners.Len())
}

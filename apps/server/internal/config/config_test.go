package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"pumpkin-tracker/apps/server/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, store.ModeSQLite, cfg.Store.Mode)
	assert.Equal(t, store.DefaultDocument, cfg.Store.Document)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
page_size: 50
clear_ticket_ttl: 30s
store:
  mode: file
  file_path: /tmp/winners.json
  poll_interval: 5s
`), 0o644))

	t.Setenv("TRACKER_ADDR", ":9100")
	t.Setenv("TRACKER_STORE_DOCUMENT", "halloween-2026")
	t.Setenv("TRACKER_ALLOWED_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, 50, cfg.PageSize)
	assert.Equal(t, 30*time.Second, cfg.ClearTicketTTL)
	assert.Equal(t, "file", cfg.Store.Mode)
	assert.Equal(t, "/tmp/winners.json", cfg.Store.FilePath)
	assert.Equal(t, 5*time.Second, cfg.Store.PollInterval)
	assert.Equal(t, "halloween-2026", cfg.Store.Document)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_DatabaseURLFallback(t *testing.T) {
	t.Setenv("TRACKER_STORE_MODE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@db/tracker")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db/tracker", cfg.Store.PostgresDSN)
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("TRACKER_STORE_MODE", "floppy")
	t.Setenv("TRACKER_PAGE_SIZE", "0")

	_, err := Load("")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrInvalidMode)
	assert.Contains(t, err.Error(), "page_size")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

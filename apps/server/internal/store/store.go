// Package store keeps the shared winners document. Every backend stores the
// whole document under one (collection, document) key, writes it wholesale
// and pushes fresh snapshots to subscribers. Concurrent writers are not
// reconciled: the last Save wins.
package store

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pumpkin-tracker/tally"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

const (
	ModeMemory   = "memory"
	ModeSQLite   = "sqlite"
	ModePostgres = "postgres"
	ModeFile     = "file"

	DefaultCollection   = "giveaways"
	DefaultDocument     = "pumpkin-winners"
	DefaultPollInterval = 2 * time.Second

	defaultLocalDBName   = "tracker.db"
	defaultLocalFileName = "pumpkin-winners.json"
	notifyChannel        = "tracker_documents"
)

var (
	ErrClosed      = errors.New("store closed")
	ErrInvalidMode = errors.New("invalid store mode")
)

// Document is the persisted body: {"winners": {...}}.
type Document struct {
	Winners tally.Roster `json:"winners"`
}

type Snapshot struct {
	Document
	Revision  string    `json:"revision"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, doc Document) (Snapshot, error)
	// Subscribe registers fn for every new snapshot, delivered in write
	// order. fn runs while the store holds its write lock and must not call
	// Save. The subscription ends when Cancel is called, when ctx is done or
	// when the store closes.
	Subscribe(ctx context.Context, fn func(Snapshot)) (*Subscription, error)
	Close() error
}

type Config struct {
	Mode         string        `yaml:"mode" env:"MODE"`
	Collection   string        `yaml:"collection" env:"COLLECTION"`
	Document     string        `yaml:"document" env:"DOCUMENT"`
	SQLitePath   string        `yaml:"sqlite_path" env:"SQLITE_PATH"`
	PostgresDSN  string        `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	FilePath     string        `yaml:"file_path" env:"FILE_PATH"`
	PollInterval time.Duration `yaml:"poll_interval" env:"POLL_INTERVAL"`
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Collection) == "" {
		c.Collection = DefaultCollection
	}
	if strings.TrimSpace(c.Document) == "" {
		c.Document = DefaultDocument
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

func NormalizeMode(raw string) string {
	mode := strings.ToLower(strings.TrimSpace(raw))
	switch mode {
	case "", ModeMemory, "mem":
		return ModeMemory
	case ModeSQLite, "local":
		return ModeSQLite
	case ModePostgres, "postgresql", "db":
		return ModePostgres
	case ModeFile, "json":
		return ModeFile
	default:
		return mode
	}
}

// Open builds the backend named by cfg.Mode and reports the normalized mode.
func Open(cfg Config, logger *zap.Logger) (Store, string, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("store")
	mode := NormalizeMode(cfg.Mode)

	switch mode {
	case ModeMemory:
		return NewMemoryStore(), mode, nil
	case ModeSQLite:
		path := cfg.SQLitePath
		if strings.TrimSpace(path) == "" {
			p, err := defaultLocalPath(defaultLocalDBName)
			if err != nil {
				return nil, mode, err
			}
			path = p
		}
		s, err := NewSQLiteStore(path, cfg, logger)
		if err != nil {
			return nil, mode, err
		}
		return s, mode, nil
	case ModePostgres:
		s, err := NewPostgresStore(cfg.PostgresDSN, cfg, logger)
		if err != nil {
			return nil, mode, err
		}
		return s, mode, nil
	case ModeFile:
		path := cfg.FilePath
		if strings.TrimSpace(path) == "" {
			p, err := defaultLocalPath(defaultLocalFileName)
			if err != nil {
				return nil, mode, err
			}
			path = p
		}
		s, err := NewFileStore(path, logger)
		if err != nil {
			return nil, mode, err
		}
		return s, mode, nil
	default:
		return nil, mode, fmt.Errorf("%w %q (supported: %s, %s, %s, %s)",
			ErrInvalidMode, mode, ModeMemory, ModeSQLite, ModePostgres, ModeFile)
	}
}

func defaultLocalPath(name string) (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, "PumpkinTracker", name), nil
}

// encodeDocument returns the canonical body and its revision.
func encodeDocument(doc Document) ([]byte, string, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, "", err
	}
	return body, revisionOf(body), nil
}

// DocumentRevision is the revision doc would get if it were saved.
func DocumentRevision(doc Document) (string, error) {
	_, rev, err := encodeDocument(doc)
	return rev, err
}

func decodeDocument(body []byte) (Document, error) {
	var doc Document
	if len(strings.TrimSpace(string(body))) == 0 {
		doc.Winners = tally.NewRoster()
		return doc, nil
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return Document{}, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}

func revisionOf(body []byte) string {
	sum := blake2b.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func emptySnapshot() Snapshot {
	doc := Document{Winners: tally.NewRoster()}
	body, _ := json.Marshal(doc)
	return Snapshot{Document: doc, Revision: revisionOf(body)}
}

func ensureParentDir(path string) error {
	parent := filepath.Dir(path)
	if parent == "" || parent == "." {
		return nil
	}
	return os.MkdirAll(parent, 0o755)
}

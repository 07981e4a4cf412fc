package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteStore persists the document in a local database file. Writes made by
// other processes sharing the file are picked up by polling the revision.
type SQLiteStore struct {
	db         *sql.DB
	collection string
	document   string
	interval   time.Duration
	logger     *zap.Logger
	feed       *feed

	// writeMu keeps writes and their notifications in the same order.
	writeMu   sync.Mutex
	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewSQLiteStore(dbPath string, cfg Config, logger *zap.Logger) (*SQLiteStore, error) {
	cfg = cfg.withDefaults()
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if dbPath != ":memory:" {
		if err := ensureParentDir(dbPath); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteStore{
		db:         db,
		collection: cfg.Collection,
		document:   cfg.Document,
		interval:   cfg.PollInterval,
		logger:     logger.With(zap.String("backend", ModeSQLite), zap.String("path", dbPath)),
		feed:       newFeed(),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
	if rev, err := s.currentRevision(ctx); err == nil {
		s.feed.seen(rev)
	}
	go s.poll()
	return s, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (Snapshot, error) {
	var body string
	var rev string
	var updatedAtMs int64
	err := s.db.QueryRowContext(ctx, `
SELECT body, revision, updated_at_ms
FROM tracker_documents
WHERE collection = ?
  AND doc_id = ?
`, s.collection, s.document).Scan(&body, &rev, &updatedAtMs)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return emptySnapshot(), nil
		}
		return Snapshot{}, err
	}
	doc, err := decodeDocument([]byte(body))
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Document:  doc,
		Revision:  rev,
		UpdatedAt: time.UnixMilli(updatedAtMs).UTC(),
	}, nil
}

func (s *SQLiteStore) Save(ctx context.Context, doc Document) (Snapshot, error) {
	body, rev, err := encodeDocument(doc)
	if err != nil {
		return Snapshot{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
INSERT INTO tracker_documents (
    collection, doc_id, body, revision, updated_at_ms
)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (collection, doc_id) DO UPDATE
SET
    body = excluded.body,
    revision = excluded.revision,
    updated_at_ms = excluded.updated_at_ms
`, s.collection, s.document, string(body), rev, now.UnixMilli())
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Document: doc, Revision: rev, UpdatedAt: time.UnixMilli(now.UnixMilli()).UTC()}
	s.feed.publish(snap)
	return snap, nil
}

func (s *SQLiteStore) Subscribe(ctx context.Context, fn func(Snapshot)) (*Subscription, error) {
	return s.feed.subscribe(ctx, fn)
}

func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		s.feed.close()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteStore) currentRevision(ctx context.Context) (string, error) {
	var rev string
	err := s.db.QueryRowContext(ctx, `
SELECT revision
FROM tracker_documents
WHERE collection = ?
  AND doc_id = ?
`, s.collection, s.document).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return emptySnapshot().Revision, nil
	}
	return rev, err
}

func (s *SQLiteStore) poll() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

func (s *SQLiteStore) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	rev, err := s.currentRevision(ctx)
	if err != nil {
		s.logger.Warn("poll revision failed", zap.Error(err))
		return
	}
	if rev == s.feed.lastRevision() {
		return
	}
	snap, err := s.Load(ctx)
	if err != nil {
		s.logger.Warn("reload document failed", zap.Error(err))
		return
	}
	s.logger.Debug("document changed externally", zap.String("revision", snap.Revision))
	s.feed.publish(snap)
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`
CREATE TABLE IF NOT EXISTS tracker_documents (
    collection TEXT NOT NULL,
    doc_id TEXT NOT NULL,
    body TEXT NOT NULL,
    revision TEXT NOT NULL,
    updated_at_ms INTEGER NOT NULL,
    PRIMARY KEY (collection, doc_id)
)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

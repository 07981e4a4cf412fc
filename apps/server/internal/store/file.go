package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const fileDebounce = 150 * time.Millisecond

// FileStore keeps the document as an indented JSON file. Edits to the file,
// including ones made by another process, are pushed to subscribers.
type FileStore struct {
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
	feed    *feed

	writeMu   sync.Mutex
	closeOnce sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("empty document file path")
	}
	path = filepath.Clean(path)
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// The directory is watched because saves replace the file by rename.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	s := &FileStore{
		path:    path,
		logger:  logger.With(zap.String("backend", ModeFile), zap.String("path", path)),
		watcher: watcher,
		feed:    newFeed(),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	if snap, err := s.Load(context.Background()); err == nil {
		s.feed.seen(snap.Revision)
	}
	go s.watch()
	return s, nil
}

func (s *FileStore) Load(_ context.Context) (Snapshot, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return emptySnapshot(), nil
		}
		return Snapshot{}, err
	}
	doc, err := decodeDocument(raw)
	if err != nil {
		return Snapshot{}, err
	}
	_, rev, err := encodeDocument(doc)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Document: doc, Revision: rev}
	if info, err := os.Stat(s.path); err == nil {
		snap.UpdatedAt = info.ModTime().UTC()
	}
	return snap, nil
}

func (s *FileStore) Save(_ context.Context, doc Document) (Snapshot, error) {
	_, rev, err := encodeDocument(doc)
	if err != nil {
		return Snapshot{}, err
	}
	pretty, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return Snapshot{}, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return Snapshot{}, err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(pretty, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return Snapshot{}, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return Snapshot{}, err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return Snapshot{}, err
	}

	snap := Snapshot{Document: doc, Revision: rev, UpdatedAt: time.Now().UTC()}
	s.feed.publish(snap)
	return snap, nil
}

func (s *FileStore) Subscribe(ctx context.Context, fn func(Snapshot)) (*Subscription, error) {
	return s.feed.subscribe(ctx, fn)
}

func (s *FileStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopCh)
		<-s.doneCh
		s.feed.close()
		err = s.watcher.Close()
	})
	return err
}

func (s *FileStore) watch() {
	defer close(s.doneCh)

	var debounce *time.Timer
	var fire <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	name := filepath.Base(s.path)
	for {
		select {
		case <-s.stopCh:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(fileDebounce)
			} else {
				debounce.Reset(fileDebounce)
			}
			fire = debounce.C
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("watch error", zap.Error(err))
		case <-fire:
			fire = nil
			s.refresh()
		}
	}
}

func (s *FileStore) refresh() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	snap, err := s.Load(context.Background())
	if err != nil {
		s.logger.Warn("reload document failed", zap.Error(err))
		return
	}
	s.feed.publish(snap)
}

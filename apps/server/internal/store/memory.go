package store

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the document in process. Useful for tests and
// single-binary demos; nothing survives a restart.
type MemoryStore struct {
	writeMu sync.Mutex

	mu     sync.Mutex
	snap   Snapshot
	closed bool
	feed   *feed
}

func NewMemoryStore() *MemoryStore {
	snap := emptySnapshot()
	f := newFeed()
	f.seen(snap.Revision)
	return &MemoryStore{snap: snap, feed: f}
}

func (s *MemoryStore) Load(_ context.Context) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Snapshot{}, ErrClosed
	}
	return s.snap, nil
}

func (s *MemoryStore) Save(_ context.Context, doc Document) (Snapshot, error) {
	_, rev, err := encodeDocument(doc)
	if err != nil {
		return Snapshot{}, err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	s.snap = Snapshot{Document: doc, Revision: rev, UpdatedAt: time.Now().UTC()}
	snap := s.snap
	s.mu.Unlock()

	s.feed.publish(snap)
	return snap, nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, fn func(Snapshot)) (*Subscription, error) {
	return s.feed.subscribe(ctx, fn)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.feed.close()
	return nil
}

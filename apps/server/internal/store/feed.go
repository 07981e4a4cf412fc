package store

import (
	"context"
	"errors"
	"sync"
)

var errNilSubscriber = errors.New("nil subscriber")

// Subscription is the handle returned by Store.Subscribe.
type Subscription struct {
	fn     func(Snapshot)
	detach func()
	done   chan struct{}

	mu        sync.Mutex
	cancelled bool
	stopCtx   func() bool
}

// Cancel detaches the subscriber. Safe to call more than once and from
// inside the callback.
func (s *Subscription) Cancel() {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return
	}
	s.cancelled = true
	stop := s.stopCtx
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	s.detach()
	close(s.done)
}

// Done is closed once the subscription has been cancelled.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) bind(ctx context.Context) {
	if ctx == nil {
		return
	}
	stop := context.AfterFunc(ctx, s.Cancel)
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		stop()
		return
	}
	s.stopCtx = stop
	s.mu.Unlock()
}

func (s *Subscription) deliver(snap Snapshot) {
	select {
	case <-s.done:
		return
	default:
	}
	s.fn(snap)
}

// feed fans snapshots out to subscribers and drops repeats of the last
// published revision. Callbacks run synchronously on the publishing goroutine;
// backends publish while holding their write lock so subscribers observe
// snapshots in write order.
type feed struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscription
	last   string
	closed bool
}

func newFeed() *feed {
	return &feed{subs: make(map[uint64]*Subscription)}
}

func (f *feed) subscribe(ctx context.Context, fn func(Snapshot)) (*Subscription, error) {
	if fn == nil {
		return nil, errNilSubscriber
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	f.nextID++
	id := f.nextID
	sub := &Subscription{
		fn:   fn,
		done: make(chan struct{}),
	}
	sub.detach = func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
	f.subs[id] = sub
	f.mu.Unlock()

	sub.bind(ctx)
	return sub, nil
}

// seen records rev as current without notifying anyone.
func (f *feed) seen(rev string) {
	f.mu.Lock()
	f.last = rev
	f.mu.Unlock()
}

func (f *feed) lastRevision() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *feed) publish(snap Snapshot) {
	f.mu.Lock()
	if f.closed || snap.Revision == f.last {
		f.mu.Unlock()
		return
	}
	f.last = snap.Revision
	subs := make([]*Subscription, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		s.deliver(snap)
	}
}

func (f *feed) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *feed) close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	subs := make([]*Subscription, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, s := range subs {
		s.Cancel()
	}
}

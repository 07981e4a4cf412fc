// Package tracker owns the in-process copy of the winners roster, keeps it in
// sync with the shared document and exposes it over HTTP.
//
// Updates are optimistic: a failed write leaves the local roster ahead of the
// store until the next successful write or incoming snapshot. Replicas that
// merge against a stale base overwrite each other wholesale (last write wins).
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pumpkin-tracker/apps/server/internal/store"
	"pumpkin-tracker/tally"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	persistWarning = "Winners were updated here but could not be saved to the shared document."
	clearedMessage = "All data cleared!"
)

var (
	ErrConfirmationRequired = errors.New("clear confirmation token required")
	ErrConfirmationInvalid  = errors.New("clear confirmation token invalid or expired")
)

type Options struct {
	PageSize       int
	ClearTicketTTL time.Duration
	Now            func() time.Time
}

// Outcome is reported back to the user after a submission or a clear.
type Outcome struct {
	Added    int    `json:"added"`
	Skipped  int    `json:"skipped"`
	Message  string `json:"message"`
	Warning  string `json:"warning,omitempty"`
	Revision string `json:"revision,omitempty"`
}

// ClearTicket must be presented back to ConfirmClear before it expires.
type ClearTicket struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Tracker struct {
	store  store.Store
	logger *zap.Logger
	opts   Options

	writeMu sync.Mutex

	mu       sync.RWMutex
	roster   tally.Roster
	revision string
	loadErr  error
	tickets  map[string]time.Time

	sub *store.Subscription
}

// Open loads the current document and subscribes to later snapshots. A load
// or subscribe failure is logged and the tracker starts from an empty roster.
func Open(ctx context.Context, st store.Store, logger *zap.Logger, opts Options) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = tally.DefaultPageSize
	}
	if opts.ClearTicketTTL <= 0 {
		opts.ClearTicketTTL = 2 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	t := &Tracker{
		store:   st,
		logger:  logger.Named("tracker"),
		opts:    opts,
		roster:  tally.NewRoster(),
		tickets: make(map[string]time.Time),
	}

	loadCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	snap, err := st.Load(loadCtx)
	if err != nil {
		t.loadErr = err
		t.logger.Error("load winners failed, starting empty", zap.Error(err))
	} else {
		t.applySnapshot(snap)
		t.logger.Info("winners loaded",
			zap.Int("participants", snap.Winners.Len()),
			zap.String("revision", snap.Revision))
	}

	sub, err := st.Subscribe(context.Background(), t.applySnapshot)
	if err != nil {
		t.logger.Error("subscribe to winners failed, live updates disabled", zap.Error(err))
	} else {
		t.sub = sub
	}
	return t
}

// Close ends the live subscription. The store itself is left open.
func (t *Tracker) Close() {
	if t.sub != nil {
		t.sub.Cancel()
	}
}

func (t *Tracker) LoadErr() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loadErr
}

func (t *Tracker) applySnapshot(snap store.Snapshot) {
	t.mu.Lock()
	t.roster = snap.Winners
	t.revision = snap.Revision
	t.mu.Unlock()
	for _, bad := range snap.Winners.Repairs() {
		t.logger.Warn("stored participant out of range, repaired",
			zap.String("user_id", bad.ExternalID),
			zap.Int("count", bad.Count))
	}
	t.logger.Debug("snapshot applied", zap.String("revision", snap.Revision))
}

// Snapshot returns the local roster and the revision it was last synced to.
func (t *Tracker) Snapshot() (tally.Roster, string) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.roster, t.revision
}

// Submit parses pasted text, merges it into the local roster and writes the
// whole document back.
func (t *Tracker) Submit(ctx context.Context, text string) (Outcome, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	cur, _ := t.Snapshot()
	next, res, err := tally.Ingest(cur, text)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Added: res.Added, Skipped: res.Skipped, Message: res.Summary()}
	t.logger.Info("batch merged", zap.Int("added", res.Added), zap.Int("skipped", res.Skipped))
	return t.persist(ctx, next, out), nil
}

func (t *Tracker) RequestClear() ClearTicket {
	now := t.opts.Now()
	ticket := ClearTicket{
		Token:     uuid.NewString(),
		ExpiresAt: now.Add(t.opts.ClearTicketTTL).UTC(),
	}

	t.mu.Lock()
	for token, exp := range t.tickets {
		if !now.Before(exp) {
			delete(t.tickets, token)
		}
	}
	t.tickets[ticket.Token] = ticket.ExpiresAt
	t.mu.Unlock()
	return ticket
}

// ConfirmClear empties the roster once a valid ticket is presented. Tickets
// are single use.
func (t *Tracker) ConfirmClear(ctx context.Context, token string) (Outcome, error) {
	if token == "" {
		return Outcome{}, ErrConfirmationRequired
	}
	t.mu.Lock()
	exp, ok := t.tickets[token]
	delete(t.tickets, token)
	t.mu.Unlock()
	if !ok || !t.opts.Now().Before(exp) {
		return Outcome{}, ErrConfirmationInvalid
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.logger.Warn("clearing all winners")
	return t.persist(ctx, tally.NewRoster(), Outcome{Message: clearedMessage}), nil
}

// Restore replaces the whole roster, typically with a previous export.
func (t *Tracker) Restore(ctx context.Context, r tally.Roster) Outcome {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	t.logger.Info("restoring winners", zap.Int("participants", r.Len()))
	msg := fmt.Sprintf("Restored %d participant(s).", r.Len())
	return t.persist(ctx, r.Clone(), Outcome{Message: msg})
}

func (t *Tracker) persist(ctx context.Context, next tally.Roster, out Outcome) Outcome {
	t.mu.Lock()
	t.roster = next
	t.mu.Unlock()

	doc := store.Document{Winners: next}
	snap, err := t.store.Save(ctx, doc)
	if err != nil {
		t.logger.Error("save winners failed, keeping local state", zap.Error(err))
		// The revision must move with the local roster so cached views of
		// the previous state are not served as current.
		rev, revErr := store.DocumentRevision(doc)
		if revErr != nil {
			rev = ""
		}
		t.mu.Lock()
		t.revision = rev
		t.mu.Unlock()
		out.Warning = persistWarning
		return out
	}
	t.mu.Lock()
	t.revision = snap.Revision
	t.mu.Unlock()
	out.Revision = snap.Revision
	return out
}

func (t *Tracker) View(q tally.Query) tally.Page {
	if q.PageSize <= 0 {
		q.PageSize = t.opts.PageSize
	}
	r, _ := t.Snapshot()
	return tally.View(r, q)
}

func (t *Tracker) Stats() tally.Stats {
	r, _ := t.Snapshot()
	return tally.Summarize(r)
}

// Export renders the full roster as a dated download.
func (t *Tracker) Export() (string, []byte, error) {
	r, _ := t.Snapshot()
	body, err := tally.MarshalExport(r)
	if err != nil {
		return "", nil, err
	}
	return tally.ExportFileName(t.opts.Now()), body, nil
}

// Watch forwards store snapshots to fn until the returned subscription is
// cancelled or ctx ends.
func (t *Tracker) Watch(ctx context.Context, fn func(store.Snapshot)) (*store.Subscription, error) {
	return t.store.Subscribe(ctx, fn)
}

func (t *Tracker) PageSize() int { return t.opts.PageSize }

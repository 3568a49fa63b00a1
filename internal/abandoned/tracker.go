package abandoned

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/example/storefront/internal/cart"
	"github.com/google/uuid"
)

// ErrTableMissing is returned by Store implementations when the backing table
// has not been provisioned. The tracker treats it as "feature not enabled" and
// drops the task without logging an error.
var ErrTableMissing = errors.New("abandoned carts table missing")

// Record is the remote snapshot kept for marketing recovery.
type Record struct {
	ID              string      `json:"id"`
	SessionID       string      `json:"session_id"`
	UserID          string      `json:"user_id,omitempty"`
	Email           string      `json:"email,omitempty"`
	Items           []cart.Item `json:"items"`
	TotalValue      int         `json:"total_value"`
	ItemCount       int         `json:"item_count"`
	Converted       bool        `json:"converted"`
	CheckoutStarted bool        `json:"checkout_started"`
	UserAgent       string      `json:"user_agent,omitempty"`
	Referrer        string      `json:"referrer,omitempty"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// Store persists abandoned-cart records.
type Store interface {
	Upsert(ctx context.Context, rec *Record) error
	MarkConverted(ctx context.Context, id string) error
}

// Snapshot is what callers hand the tracker on each cart change.
type Snapshot struct {
	SessionID       string
	UserID          string
	Email           string
	Items           []cart.Item
	UserAgent       string
	Referrer        string
	CheckoutStarted bool
}

type taskKind int

const (
	taskUpsert taskKind = iota
	taskConvert
)

type task struct {
	kind taskKind
	snap Snapshot
	// sessionID is set for convert tasks
	sessionID string
}

// Tracker mirrors cart state to a Store on a background worker. It never
// blocks or fails the cart operation that triggered it: tasks are enqueued
// non-blocking (dropped with a log line when the queue is full), failures are
// retried a bounded number of times and then logged and discarded.
type Tracker struct {
	store       Store
	tasks       chan task
	maxAttempts int
	backoff     time.Duration

	mu  sync.Mutex
	ids map[string]string // sessionID -> remote record id

	wg sync.WaitGroup
}

func NewTracker(store Store, queueSize, maxAttempts int) *Tracker {
	if queueSize <= 0 {
		queueSize = 64
	}
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &Tracker{
		store:       store,
		tasks:       make(chan task, queueSize),
		maxAttempts: maxAttempts,
		backoff:     200 * time.Millisecond,
		ids:         make(map[string]string),
	}
}

// Start launches the worker. It runs until the context is cancelled or Close
// is called.
func (t *Tracker) Start(ctx context.Context) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case tk, ok := <-t.tasks:
				if !ok {
					return
				}
				t.process(ctx, tk)
			}
		}
	}()
}

// Close stops accepting tasks and waits for in-flight ones to finish.
func (t *Tracker) Close() {
	close(t.tasks)
	t.wg.Wait()
}

// Track enqueues an upsert of the current cart state. Empty carts are skipped;
// a full queue drops the task rather than blocking the caller.
func (t *Tracker) Track(snap Snapshot) {
	if len(snap.Items) == 0 {
		return
	}
	select {
	case t.tasks <- task{kind: taskUpsert, snap: snap}:
	default:
		log.Printf("[Tracker] Queue full, dropping snapshot for session %s", snap.SessionID)
	}
}

// MarkConverted flags the session's record as converted after a completed
// checkout. No-op when the session was never tracked.
func (t *Tracker) MarkConverted(sessionID string) {
	select {
	case t.tasks <- task{kind: taskConvert, sessionID: sessionID}:
	default:
		log.Printf("[Tracker] Queue full, dropping conversion for session %s", sessionID)
	}
}

func (t *Tracker) process(ctx context.Context, tk task) {
	switch tk.kind {
	case taskUpsert:
		t.upsert(ctx, tk.snap)
	case taskConvert:
		t.convert(ctx, tk.sessionID)
	}
}

func (t *Tracker) upsert(ctx context.Context, snap Snapshot) {
	rec := &Record{
		ID:              t.recordID(snap.SessionID),
		SessionID:       snap.SessionID,
		UserID:          snap.UserID,
		Email:           snap.Email,
		Items:           snap.Items,
		Converted:       false,
		CheckoutStarted: snap.CheckoutStarted,
		UserAgent:       snap.UserAgent,
		Referrer:        snap.Referrer,
		UpdatedAt:       time.Now(),
	}
	for _, it := range snap.Items {
		rec.TotalValue += it.UnitPrice * it.Quantity
		rec.ItemCount += it.Quantity
	}

	err := t.retry(ctx, func() error { return t.store.Upsert(ctx, rec) })
	if err != nil {
		if errors.Is(err, ErrTableMissing) {
			// Optional infrastructure, nothing to do.
			return
		}
		log.Printf("[Tracker] Giving up on snapshot for session %s: %v", snap.SessionID, err)
	}
}

func (t *Tracker) convert(ctx context.Context, sessionID string) {
	t.mu.Lock()
	id, ok := t.ids[sessionID]
	if ok {
		delete(t.ids, sessionID)
	}
	t.mu.Unlock()
	if !ok {
		return
	}

	err := t.retry(ctx, func() error { return t.store.MarkConverted(ctx, id) })
	if err != nil && !errors.Is(err, ErrTableMissing) {
		log.Printf("[Tracker] Failed to mark record %s converted: %v", id, err)
	}
}

// recordID returns the remembered remote id for a session, minting one on
// first use so subsequent changes update the same record.
func (t *Tracker) recordID(sessionID string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.ids[sessionID]; ok {
		return id
	}
	id := uuid.New().String()
	t.ids[sessionID] = id
	return id
}

func (t *Tracker) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		err = fn()
		if err == nil || errors.Is(err, ErrTableMissing) {
			return err
		}
		if attempt < t.maxAttempts {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(t.backoff * time.Duration(attempt)):
			}
		}
	}
	return err
}

// Package store holds the node's current sample. The acquisition loop is
// the only writer; HTTP handlers, the recorder and debug pages read it.
package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/airquality.report/internal/pms"
	"github.com/banshee-data/airquality.report/internal/timeutil"
)

// subscriberBuffer is how many snapshots a slow subscriber may lag by
// before it starts missing publishes.
const subscriberBuffer = 16

// Snapshot is one published sample and when it was published. Seq starts
// at 1 for the first publish.
type Snapshot struct {
	Sample      pms.Sample `json:"sample"`
	PublishedAt time.Time  `json:"published_at"`
	Seq         uint64     `json:"seq"`
}

// Store is a single-writer, many-reader slot for the latest sample.
// Publish swaps an immutable Snapshot in with one atomic store, so readers
// see either the previous sample or the new one and never a mix.
type Store struct {
	clock timeutil.Clock
	cur   atomic.Pointer[Snapshot]

	mu          sync.Mutex
	subscribers map[string]chan Snapshot
	closing     bool
}

// New returns an empty store. Current returns the zero Sample until the
// first Publish.
func New(clock timeutil.Clock) *Store {
	return &Store{
		clock:       clock,
		subscribers: make(map[string]chan Snapshot),
	}
}

// Publish makes s the current sample and offers it to every subscriber.
// Subscribers that are not keeping up miss the snapshot; Publish never
// blocks on them.
func (st *Store) Publish(s pms.Sample) Snapshot {
	var seq uint64 = 1
	if prev := st.cur.Load(); prev != nil {
		seq = prev.Seq + 1
	}
	snap := &Snapshot{Sample: s, PublishedAt: st.clock.Now(), Seq: seq}
	st.cur.Store(snap)

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closing {
		return *snap
	}
	for _, ch := range st.subscribers {
		select {
		case ch <- *snap:
		default:
		}
	}
	return *snap
}

// Current returns a copy of the latest sample.
func (st *Store) Current() pms.Sample {
	if snap := st.cur.Load(); snap != nil {
		return snap.Sample
	}
	return pms.Sample{}
}

// Snapshot returns the latest snapshot. ok is false before the first
// Publish.
func (st *Store) Snapshot() (snap Snapshot, ok bool) {
	if p := st.cur.Load(); p != nil {
		return *p, true
	}
	return Snapshot{}, false
}

// Age returns how long ago the current sample was published, or false if
// nothing has been published.
func (st *Store) Age() (time.Duration, bool) {
	p := st.cur.Load()
	if p == nil {
		return 0, false
	}
	return st.clock.Since(p.PublishedAt), true
}

// Subscribe registers a channel that receives every subsequent publish.
// The id is passed to Unsubscribe. After Close the returned channel is
// already closed.
func (st *Store) Subscribe() (string, <-chan Snapshot) {
	id := uuid.NewString()
	ch := make(chan Snapshot, subscriberBuffer)

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closing {
		close(ch)
		return id, ch
	}
	st.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber channel.
func (st *Store) Unsubscribe(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if ch, ok := st.subscribers[id]; ok {
		close(ch)
		delete(st.subscribers, id)
	}
}

// Close closes every subscriber channel. The current sample stays
// readable.
func (st *Store) Close() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closing {
		return
	}
	st.closing = true
	for id, ch := range st.subscribers {
		close(ch)
		delete(st.subscribers, id)
	}
}

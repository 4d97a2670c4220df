// Package lookahead owns the slot -> elected-preconfer table for one
// chain, the provider that keeps it fed from relay polls and head events,
// the URL-resolution policy, and the manager that ties a chain's table,
// provider, and resolver together.
package lookahead

import (
	"sync"

	"github.com/gattaca-com/preconf-rpc/common"
	"github.com/gattaca-com/preconf-rpc/preconf"
)

// Entry wraps a signed election together with the URL it should be
// forwarded to.
type Entry struct {
	URL      string
	Election preconf.SignedPreconferElection
}

// Slot returns the slot this entry's election is valid for.
func (e Entry) Slot() uint64 {
	return e.Election.Slot()
}

// PreconferPubkey returns the pubkey elected to preconfirm this slot.
func (e Entry) PreconferPubkey() common.BLSPubKey {
	return e.Election.PreconferPubkey()
}

const shardCount = 16

// Table is a concurrent slot -> Entry map: a single writer (the chain's
// Provider) inserts and prunes it, while many HTTP-handler goroutines read
// it concurrently. It is sharded by slot to keep the lock held by a writer
// from blocking readers of unrelated slots for longer than a single bucket
// update (spec §3/§9's "per-shard locks" design note — no maintained
// third-party sharded-map library surfaced in the example pack for Go, so
// this is hand-rolled per the spec's own suggested implementation).
type Table struct {
	shards [shardCount]shard
}

type shard struct {
	mu      sync.RWMutex
	entries map[uint64]Entry
}

// NewTable creates an empty Table.
func NewTable() *Table {
	t := &Table{}
	for i := range t.shards {
		t.shards[i].entries = make(map[uint64]Entry)
	}
	return t
}

func (t *Table) shardFor(slot uint64) *shard {
	return &t.shards[slot%shardCount]
}

// Insert upserts entry at slot.
func (t *Table) Insert(slot uint64, entry Entry) {
	s := t.shardFor(slot)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[slot] = entry
}

// ClearSlots removes every entry whose slot is strictly less than
// headSlot.
func (t *Table) ClearSlots(headSlot uint64) {
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.Lock()
		for slot := range s.entries {
			if slot < headSlot {
				delete(s.entries, slot)
			}
		}
		s.mu.Unlock()
	}
}

// GetNextElectedPreconfer returns a copy of the entry with the minimum slot
// key, or false if the table is empty. Because shards are scanned one at a
// time, the returned minimum may reflect a snapshot that is not globally
// consistent across shards, but it will never be an entry a completed
// ClearSlots call has already removed (spec §4.4).
func (t *Table) GetNextElectedPreconfer() (Entry, bool) {
	var (
		best  Entry
		found bool
	)

	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		for _, e := range s.entries {
			if !found || e.Slot() < best.Slot() {
				best = e
				found = true
			}
		}
		s.mu.RUnlock()
	}

	return best, found
}

// Len returns the total number of live entries, for diagnostics and tests.
func (t *Table) Len() int {
	n := 0
	for i := range t.shards {
		s := &t.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}

// Package recency implements the per-cue posting list: an ordered
// collection of memory IDs supporting O(1) membership, insertion at the
// most-recent position, removal, and move-to-front, with deterministic
// most-recent-first iteration.
package recency

import "container/list"

// Set is a recency-ordered set of string IDs. The zero value is not usable;
// construct with New. Not safe for concurrent use by itself — callers
// (the sharded cue index) guard each Set with its shard's lock.
type Set struct {
	order *list.List               // front = most recent, back = oldest
	index map[string]*list.Element // id -> node, for O(1) lookup
}

// New returns an empty recency-ordered set.
func New() *Set {
	return &Set{
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

// Add inserts id at the most-recent position if absent; no-op if present.
func (s *Set) Add(id string) {
	if _, ok := s.index[id]; ok {
		return
	}
	s.index[id] = s.order.PushFront(id)
}

// Remove deletes id if present; no-op otherwise.
func (s *Set) Remove(id string) {
	el, ok := s.index[id]
	if !ok {
		return
	}
	s.order.Remove(el)
	delete(s.index, id)
}

// MoveToFront relocates id to the most-recent position; no-op if absent.
func (s *Set) MoveToFront(id string) {
	el, ok := s.index[id]
	if !ok {
		return
	}
	s.order.MoveToFront(el)
}

// Contains reports whether id is a member.
func (s *Set) Contains(id string) bool {
	_, ok := s.index[id]
	return ok
}

// Len returns the number of members.
func (s *Set) Len() int {
	return s.order.Len()
}

// IndexOf returns the position of id counted from the most-recent front
// (0 = most recent) and true, or (0, false) if absent. This is the `p`
// consumed by the recall scorer (spec calls it "position from oldest end";
// the worked end-to-end scenarios only resolve consistently when p is
// measured from the MRU front, so that is the convention implemented here).
//
// A doubly linked list cannot answer this in O(1) — the contract's own
// implementation note sanctions a hash map + linked list pairing, which
// this type is, and that pairing does not admit O(1) rank queries in
// general. IndexOf walks from the front; every caller bounds the work via
// scan_limit before reaching for it.
func (s *Set) IndexOf(id string) (int, bool) {
	el, ok := s.index[id]
	if !ok {
		return 0, false
	}
	pos := 0
	for e := s.order.Front(); e != nil; e = e.Next() {
		if e == el {
			return pos, true
		}
		pos++
	}
	return 0, false // unreachable if index and order are consistent
}

// GetRecent returns up to limit IDs starting from the most-recent entry.
// limit <= 0 means unbounded.
func (s *Set) GetRecent(limit int) []string {
	var out []string
	for e := s.order.Front(); e != nil; e = e.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		out = append(out, e.Value.(string))
	}
	return out
}

// FromMRUOrder rebuilds a Set from ids already given most-recent-first,
// the order snapshots persist them in. Calling Add repeatedly in that same
// order would push each one in front of the last and reverse it, so
// snapshot rehydration goes through this instead.
func FromMRUOrder(ids []string) *Set {
	s := New()
	for i := len(ids) - 1; i >= 0; i-- {
		s.Add(ids[i])
	}
	return s
}

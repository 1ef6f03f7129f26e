// Package cueindex implements the dual (full-cue and value-suffix) cue
// index described in spec.md §4.3: a sharded map from cue string to the
// recency-ordered posting list of memory IDs carrying that cue.
package cueindex

import (
	"strings"
	"sync/atomic"

	"github.com/scrypster/cuemap/internal/recency"
	"github.com/scrypster/cuemap/internal/shardmap"
)

// Index is the cue -> posting-list map, with a maintained count of distinct
// cue keys. Safe for concurrent use.
type Index struct {
	shards   *shardmap.Map[*recency.Set]
	cueCount int64
}

// New constructs an empty Index with shardCount shards (0 uses the default).
func New(shardCount int) *Index {
	return &Index{shards: shardmap.New[*recency.Set](shardCount)}
}

// Normalize lowercases and trims a raw cue string.
func Normalize(cue string) string {
	return strings.ToLower(strings.TrimSpace(cue))
}

// suffixOf returns the value-suffix of a structured cue ("key:value" ->
// "value") and true, or ("", false) if the cue is not structured (does not
// contain exactly one ':', or the suffix would be empty).
func suffixOf(cue string) (string, bool) {
	idx := strings.IndexByte(cue, ':')
	if idx < 0 {
		return "", false
	}
	if strings.IndexByte(cue[idx+1:], ':') >= 0 {
		return "", false // more than one ':' — not a simple key:value cue
	}
	suffix := cue[idx+1:]
	if suffix == "" {
		return "", false
	}
	return suffix, true
}

// AddMemory inserts id into the posting list of every normalized,
// non-empty cue in cues, plus the value-suffix posting list for any
// structured cue.
func (ix *Index) AddMemory(id string, cues []string) {
	for _, raw := range cues {
		cue := Normalize(raw)
		if cue == "" {
			continue
		}
		ix.addOne(id, cue)
		if suffix, ok := suffixOf(cue); ok {
			ix.addOne(id, suffix)
		}
	}
}

func (ix *Index) addOne(id, cue string) {
	ix.shards.WithLock(cue, func(set *recency.Set, ok bool) (*recency.Set, bool) {
		if !ok {
			set = recency.New()
			atomic.AddInt64(&ix.cueCount, 1)
		}
		set.Add(id)
		return set, false
	})
}

// Reinforce moves id to the most-recent position in every posting list
// (primary and suffix) for cues. No-op for any cue/id combination not
// already present.
func (ix *Index) Reinforce(id string, cues []string) {
	for _, raw := range cues {
		cue := Normalize(raw)
		if cue == "" {
			continue
		}
		ix.touch(id, cue)
		if suffix, ok := suffixOf(cue); ok {
			ix.touch(id, suffix)
		}
	}
}

func (ix *Index) touch(id, cue string) {
	ix.shards.WithLock(cue, func(set *recency.Set, ok bool) (*recency.Set, bool) {
		if ok {
			set.MoveToFront(id)
		}
		return set, false
	})
}

// RemoveMemory removes id from the posting list (primary and suffix) of
// every cue in cues. If a posting list becomes empty, its map entry is
// erased and the cue counter decremented.
func (ix *Index) RemoveMemory(id string, cues []string) {
	for _, raw := range cues {
		cue := Normalize(raw)
		if cue == "" {
			continue
		}
		ix.removeOne(id, cue)
		if suffix, ok := suffixOf(cue); ok {
			ix.removeOne(id, suffix)
		}
	}
}

func (ix *Index) removeOne(id, cue string) {
	ix.shards.WithLock(cue, func(set *recency.Set, ok bool) (*recency.Set, bool) {
		if !ok {
			return set, false
		}
		set.Remove(id)
		if set.Len() == 0 {
			atomic.AddInt64(&ix.cueCount, -1)
			return set, true // erase map entry
		}
		return set, false
	})
}

// Lookup returns the posting list for cue (already normalized by the
// caller or not — Lookup normalizes internally) and whether it exists.
func (ix *Index) Lookup(cue string) (*recency.Set, bool) {
	return ix.shards.Get(Normalize(cue))
}

// CueCount returns the number of distinct cue keys currently indexed.
// Maintained via atomic increments/decrements alongside map mutation; may
// momentarily disagree with a concurrent Range count, which spec.md §5
// accepts.
func (ix *Index) CueCount() int {
	return int(atomic.LoadInt64(&ix.cueCount))
}

// Range iterates every (cue, posting list) pair currently indexed.
func (ix *Index) Range(fn func(cue string, set *recency.Set) bool) {
	ix.shards.Range(fn)
}

// LoadPostingList installs idsInMRUOrder (most-recent-first) as the
// complete posting list for cue, overwriting anything already there. Used
// only during snapshot rehydration, where the persisted order must be
// reproduced exactly rather than rebuilt by replaying AddMemory calls.
func (ix *Index) LoadPostingList(cue string, idsInMRUOrder []string) {
	cue = Normalize(cue)
	if cue == "" || len(idsInMRUOrder) == 0 {
		return
	}
	ix.shards.WithLock(cue, func(set *recency.Set, ok bool) (*recency.Set, bool) {
		if !ok {
			atomic.AddInt64(&ix.cueCount, 1)
		}
		return recency.FromMRUOrder(idsInMRUOrder), false
	})
}

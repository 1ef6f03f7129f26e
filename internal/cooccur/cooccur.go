// Package cooccur implements the symmetric co-occurrence matrix of spec.md
// §4.4: sparse counts of cue pairs observed together in a memory,
// maintained as an adjacency map with both directions kept in sync.
package cooccur

import (
	"sync"

	"github.com/scrypster/cuemap/internal/shardmap"
)

// Matrix is cue -> (cue -> count), sharded on the outer key. Inner maps are
// guarded by their own small mutex since multiple distinct cue pairs
// sharing the same outer key may be updated concurrently by different
// callers (spec.md §5: "inner map allows per-entry atomic increment").
type Matrix struct {
	shards *shardmap.Map[*inner]
}

type inner struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func newInner() *inner {
	return &inner{counts: make(map[string]uint64)}
}

// New constructs an empty Matrix with shardCount shards (0 uses the
// shardmap default).
func New(shardCount int) *Matrix {
	return &Matrix{shards: shardmap.New[*inner](shardCount)}
}

// Update increments matrix[a][b] and matrix[b][a] by 1 for every unordered
// pair of distinct, non-empty, already-lowercased cues in cues. Callers are
// expected to have normalized cues already (the engine always calls this
// with the same normalized list used for indexing).
func (m *Matrix) Update(cues []string) {
	n := len(cues)
	for i := 0; i < n; i++ {
		a := cues[i]
		if a == "" {
			continue
		}
		for j := i + 1; j < n; j++ {
			b := cues[j]
			if b == "" || b == a {
				continue
			}
			m.increment(a, b)
			m.increment(b, a)
		}
	}
}

func (m *Matrix) increment(from, to string) {
	row := m.shards.GetOrCreate(from, func() *inner { return newInner() })
	row.mu.Lock()
	row.counts[to]++
	row.mu.Unlock()
}

// Neighbors returns a snapshot copy of cue's inner map (cue -> count).
func (m *Matrix) Neighbors(cue string) map[string]uint64 {
	row, ok := m.shards.Get(cue)
	if !ok {
		return nil
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	out := make(map[string]uint64, len(row.counts))
	for k, v := range row.counts {
		out[k] = v
	}
	return out
}

// Range iterates every directed (a, b, count) triple. Pairs are stored in
// both directions, so an unordered-pair consumer (e.g. graph visualization)
// should dedupe, typically by skipping b < a.
func (m *Matrix) Range(fn func(a, b string, count uint64) bool) {
	m.shards.Range(func(a string, row *inner) bool {
		row.mu.Lock()
		snapshot := make(map[string]uint64, len(row.counts))
		for b, c := range row.counts {
			snapshot[b] = c
		}
		row.mu.Unlock()
		for b, c := range snapshot {
			if !fn(a, b, c) {
				return false
			}
		}
		return true
	})
}

// Count returns matrix[a][b], 0 if absent.
func (m *Matrix) Count(a, b string) uint64 {
	row, ok := m.shards.Get(a)
	if !ok {
		return 0
	}
	row.mu.Lock()
	defer row.mu.Unlock()
	return row.counts[b]
}

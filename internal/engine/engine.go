package engine

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/scrypster/cuemap/internal/cooccur"
	"github.com/scrypster/cuemap/internal/cueindex"
	"github.com/scrypster/cuemap/internal/payload"
	"github.com/scrypster/cuemap/internal/shardmap"
	"github.com/scrypster/cuemap/pkg/cuetypes"
)

// Errors surfaced by the mutating operations (spec.md §7).
var (
	ErrMemoryNotFound = fmt.Errorf("engine: memory not found")
)

const (
	// episodeWindowSeconds bounds how recently a project's last write must
	// have landed for temporal chunking to link the next one (spec.md §4.6
	// step 3).
	episodeWindowSeconds = 300
	// episodeOverlapThreshold is the minimum Jaccard overlap between the
	// incoming cue set and the previous memory's cue set for chunking to
	// fire.
	episodeOverlapThreshold = 0.5
)

// lastEvent is the per-project temporal-chunking cache entry.
type lastEvent struct {
	memoryID  string
	cues      map[string]struct{}
	unixTime  int64
}

// Engine owns one namespace's worth of memories (main, lexicon, or alias —
// internal/project decides which) and exposes the mutating operations and
// recall algorithm of spec.md §4.5/§4.6. An Engine has no notion of project
// identity beyond what callers pass it for temporal chunking; multi-tenancy
// is internal/project's concern, one Engine triple per tenant.
type Engine struct {
	memories    *shardmap.Map[*cuetypes.Memory]
	cueIndex    *cueindex.Index
	coOccur     *cooccur.Matrix
	memoryCount int64

	masterKey []byte // nil means payloads are stored compressed-only

	lastEventsMu sync.Mutex
	lastEvents   map[string]lastEvent // project_id -> most recent write

	reinforcer Reinforcer

	clock func() int64
}

// Option configures a new Engine.
type Option func(*Engine)

// WithMasterKey sets the 32-byte AEAD key used to encrypt new payloads and
// decrypt existing ones. Passing nil (the default) stores payloads
// compressed-only.
func WithMasterKey(key []byte) Option {
	return func(e *Engine) { e.masterKey = key }
}

// WithReinforcer wires the async hand-off used by Recall's auto_reinforce
// option. Without one, Recall reinforces directly in a detached goroutine.
func WithReinforcer(r Reinforcer) Option {
	return func(e *Engine) { e.reinforcer = r }
}

// withClock overrides the engine's notion of "now" (unix seconds), for
// deterministic tests of temporal chunking and salience decay.
func withClock(fn func() int64) Option {
	return func(e *Engine) { e.clock = fn }
}

// New constructs an empty Engine. shardCount is forwarded to the cue index,
// co-occurrence matrix, and memory map (0 uses each component's default).
func New(shardCount int, opts ...Option) *Engine {
	e := &Engine{
		memories:   shardmap.New[*cuetypes.Memory](shardCount),
		cueIndex:   cueindex.New(shardCount),
		coOccur:    cooccur.New(shardCount),
		lastEvents: make(map[string]lastEvent),
		clock:      func() int64 { return time.Now().Unix() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) now() int64 { return e.clock() }

// MemoryCount returns the total number of live memories.
func (e *Engine) MemoryCount() int {
	return int(atomic.LoadInt64(&e.memoryCount))
}

// CueCount returns the number of distinct indexed cue keys.
func (e *Engine) CueCount() int {
	return e.cueIndex.CueCount()
}

// AddMemoryInput groups add_memory's parameters (spec.md §4.6).
type AddMemoryInput struct {
	ID                      string // optional; generated if empty
	Content                 string
	Cues                    []string
	Metadata                map[string]cuetypes.JSONValue
	Stats                   cuetypes.Stats
	DisableTemporalChunking bool
}

// AddMemory builds the payload, assigns an ID, optionally links the memory
// to its predecessor via temporal chunking, inserts it, and dual-indexes
// its cues. Co-occurrence is deliberately NOT updated here — spec.md §4.6
// step 6 routes that through the async UpdateGraph job so the hot insert
// path stays O(cues), not O(cues²).
func (e *Engine) AddMemory(in AddMemoryInput) (string, error) {
	encoded, err := payload.Create(in.Content, e.masterKey)
	if err != nil {
		return "", fmt.Errorf("engine: building payload: %w", err)
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}

	cues := dedupeNormalized(in.Cues)
	contentCues := cues // the next write is compared against these, without the episode cue
	nowUnix := e.now()

	if !in.DisableTemporalChunking {
		if projectID, ok := projectIDOf(in.Metadata); ok {
			if episodeCue, ok := e.maybeChain(projectID, cues, id, nowUnix); ok {
				cues = append(cues, episodeCue)
			}
		}
	}

	mem := &cuetypes.Memory{
		ID:           id,
		Payload:      encoded,
		Cues:         cues,
		Metadata:     in.Metadata,
		Stats:        in.Stats,
		CreatedAt:    nowUnix,
		LastAccessed: nowUnix,
	}

	isNew := false
	e.memories.WithLock(id, func(existing *cuetypes.Memory, ok bool) (*cuetypes.Memory, bool) {
		isNew = !ok
		return mem, false
	})
	if isNew {
		atomic.AddInt64(&e.memoryCount, 1)
	}

	e.cueIndex.AddMemory(id, cues)

	if projectID, ok := projectIDOf(in.Metadata); ok {
		e.recordLastEvent(projectID, id, contentCues, nowUnix)
	}

	return id, nil
}

// maybeChain implements spec.md §4.6 step 3: if the project's last write
// landed within episodeWindowSeconds and its cue set overlaps the incoming
// one by more than episodeOverlapThreshold (Jaccard), the synthetic cue
// episode:{last_id} is returned for the caller to append.
func (e *Engine) maybeChain(projectID string, cues []string, newID string, nowUnix int64) (string, bool) {
	e.lastEventsMu.Lock()
	prev, ok := e.lastEvents[projectID]
	e.lastEventsMu.Unlock()
	if !ok || newID == prev.memoryID {
		return "", false
	}
	if nowUnix-prev.unixTime > episodeWindowSeconds {
		return "", false
	}
	if jaccard(prev.cues, cues) <= episodeOverlapThreshold {
		return "", false
	}
	return "episode:" + prev.memoryID, true
}

func (e *Engine) recordLastEvent(projectID, id string, cues []string, nowUnix int64) {
	set := make(map[string]struct{}, len(cues))
	for _, c := range cues {
		set[c] = struct{}{}
	}
	e.lastEventsMu.Lock()
	e.lastEvents[projectID] = lastEvent{memoryID: id, cues: set, unixTime: nowUnix}
	e.lastEventsMu.Unlock()
}

func jaccard(a map[string]struct{}, bList []string) float64 {
	if len(a) == 0 || len(bList) == 0 {
		return 0
	}
	b := make(map[string]struct{}, len(bList))
	for _, c := range bList {
		b[cueindex.Normalize(c)] = struct{}{}
	}
	inter := 0
	for c := range a {
		if _, ok := b[c]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func projectIDOf(metadata map[string]cuetypes.JSONValue) (string, bool) {
	if metadata == nil {
		return "", false
	}
	v, ok := metadata["project_id"]
	if !ok || v.Kind != cuetypes.JSONString {
		return "", false
	}
	return v.Str, true
}

func dedupeNormalized(cues []string) []string {
	seen := make(map[string]struct{}, len(cues))
	out := make([]string, 0, len(cues))
	for _, raw := range cues {
		c := cueindex.Normalize(raw)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// ReinforceMemory implements spec.md §4.6's reinforce_memory: touches
// last_accessed, bumps the stats reinforcement counter, moves the ID to the
// front of every cue's posting list, and updates co-occurrence.
func (e *Engine) ReinforceMemory(id string, cues []string) error {
	var found bool
	nowUnix := e.now()
	e.memories.WithLock(id, func(mem *cuetypes.Memory, ok bool) (*cuetypes.Memory, bool) {
		if !ok {
			return mem, false
		}
		found = true
		mem.LastAccessed = nowUnix
		if mem.Stats != nil {
			mem.Stats.ManualBoost()
		}
		return mem, false
	})
	if !found {
		return ErrMemoryNotFound
	}

	e.cueIndex.Reinforce(id, cues)
	e.coOccur.Update(dedupeNormalized(cues))
	return nil
}

// DeleteMemory implements spec.md §4.6's delete_memory: removes the record
// and unindexes it from every cue it declared. Co-occurrence entries are
// left intact — accepted drift, per spec.
func (e *Engine) DeleteMemory(id string) error {
	var mem *cuetypes.Memory
	var found bool
	e.memories.WithLock(id, func(existing *cuetypes.Memory, ok bool) (*cuetypes.Memory, bool) {
		if ok {
			mem = existing
			found = true
		}
		return existing, true // always remove
	})
	if !found {
		return ErrMemoryNotFound
	}
	atomic.AddInt64(&e.memoryCount, -1)
	e.cueIndex.RemoveMemory(id, mem.Cues)
	return nil
}

// AttachCues implements spec.md §4.6's attach_cues: merges new_cues into
// the memory's cue list (deduplicated), indexes the additions, and updates
// co-occurrence across the full post-merge cue list.
func (e *Engine) AttachCues(id string, newCues []string) error {
	var found bool
	var added []string
	var fullCues []string
	e.memories.WithLock(id, func(mem *cuetypes.Memory, ok bool) (*cuetypes.Memory, bool) {
		if !ok {
			return mem, false
		}
		found = true
		existing := make(map[string]struct{}, len(mem.Cues))
		for _, c := range mem.Cues {
			existing[c] = struct{}{}
		}
		for _, raw := range newCues {
			c := cueindex.Normalize(raw)
			if c == "" {
				continue
			}
			if _, ok := existing[c]; ok {
				continue
			}
			existing[c] = struct{}{}
			mem.Cues = append(mem.Cues, c)
			added = append(added, c)
		}
		fullCues = mem.Cues
		return mem, false
	})
	if !found {
		return ErrMemoryNotFound
	}
	if len(added) > 0 {
		e.cueIndex.AddMemory(id, added)
	}
	e.coOccur.Update(fullCues)
	return nil
}

// UpsertMemory implements the lexicon/alias insert-or-merge pattern the
// background jobs rely on (internal/jobs): if id already exists, its
// content is replaced and cues are merged in via AttachCues; otherwise a
// new memory is inserted with the given id, content, and cues. Unlike
// AddMemory, no ID is generated and temporal chunking never applies —
// callers of UpsertMemory always know the exact ID they want (e.g.
// "cue:golang" in a lexicon engine).
func (e *Engine) UpsertMemory(id, content string, cues []string) error {
	if _, ok := e.Get(id); ok {
		encoded, err := payload.Create(content, e.masterKey)
		if err != nil {
			return fmt.Errorf("engine: building payload: %w", err)
		}
		e.memories.WithLock(id, func(mem *cuetypes.Memory, ok bool) (*cuetypes.Memory, bool) {
			if ok {
				mem.Payload = encoded
			}
			return mem, false
		})
		return e.AttachCues(id, cues)
	}

	_, err := e.AddMemory(AddMemoryInput{
		ID:                      id,
		Content:                 content,
		Cues:                    cues,
		Stats:                   cuetypes.NewMainStats(len(cues), e.now()),
		DisableTemporalChunking: true,
	})
	return err
}

// Get returns the memory record with the given ID, if live.
func (e *Engine) Get(id string) (*cuetypes.Memory, bool) {
	return e.memories.Get(id)
}

// Content decrypts/decompresses a memory's payload. Recall uses this and
// substitutes a placeholder on failure rather than propagating the error
// (spec.md §4.5 failure semantics); other callers may want the error
// itself, hence it is exposed directly.
func (e *Engine) Content(mem *cuetypes.Memory) (string, error) {
	return payload.Access(mem.Payload, e.masterKey)
}

// LoadMemory installs mem as-is (used during snapshot rehydration, bypassing
// payload construction and temporal chunking — both already baked into the
// persisted record). Cue indexing is the caller's responsibility since
// rehydration needs to preserve persisted MRU order via LoadPostingList
// rather than replaying AddMemory.
func (e *Engine) LoadMemory(mem *cuetypes.Memory) {
	isNew := false
	e.memories.WithLock(mem.ID, func(existing *cuetypes.Memory, ok bool) (*cuetypes.Memory, bool) {
		isNew = !ok
		return mem, false
	})
	if isNew {
		atomic.AddInt64(&e.memoryCount, 1)
	}
}

// UpdateCoOccurrence applies cues to the co-occurrence matrix directly.
// This is the entry point the async UpdateGraph job (internal/jobs) calls
// once per ingested memory — AddMemory itself never touches co-occurrence
// (spec.md §4.6 step 6).
func (e *Engine) UpdateCoOccurrence(cues []string) {
	e.coOccur.Update(dedupeNormalized(cues))
}

// RehydrateCoOccurrence replays update(m.cues) for every live memory,
// rebuilding the co-occurrence matrix after a snapshot load (spec.md
// §4.10's read protocol, step "replay co_occurrence.update").
func (e *Engine) RehydrateCoOccurrence() {
	e.memories.Range(func(_ string, mem *cuetypes.Memory) bool {
		e.coOccur.Update(mem.Cues)
		return true
	})
}

// CueIndex exposes the underlying index for snapshot writers/readers and
// the recall path; the index type lives in the separate internal/cueindex
// package.
func (e *Engine) CueIndex() *cueindex.Index { return e.cueIndex }

// RangeMemories iterates every live memory. Used by snapshot serialization.
func (e *Engine) RangeMemories(fn func(id string, mem *cuetypes.Memory) bool) {
	e.memories.Range(fn)
}

// normalizeQueryCues lowercases/trims raw cue strings and drops empty ones,
// for ExpandCuesFromGraph's co-occurrence lookups.
func normalizeQueryCues(cues []string) []string {
	out := make([]string, 0, len(cues))
	for _, c := range cues {
		n := cueindex.Normalize(c)
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

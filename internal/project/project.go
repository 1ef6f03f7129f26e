// Package project implements the per-tenant namespace spec.md's recall
// pipeline sits on top of: three independent engine instances (main,
// lexicon, aliases) plus the normalization/taxonomy configuration and
// query cache that turn free text into cues before Engine.Recall ever
// runs. Grounded on original_source/src/projects.rs's ProjectContext and
// ProjectStore.
package project

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scrypster/cuemap/internal/collaborators"
	"github.com/scrypster/cuemap/internal/engine"
	"github.com/scrypster/cuemap/internal/normalization"
	"github.com/scrypster/cuemap/internal/shardmap"
	"github.com/scrypster/cuemap/internal/taxonomy"
)

const (
	lexiconFastRecallLimit = 64
	aliasRecallLimit       = 8
	defaultAliasDownweight = 0.85
)

// Context is a single tenant's namespace: its own memory store (Main),
// its own lexicon engine mapping raw tokens to canonical cues, its own
// alias engine holding rewrite rules, and the config that governs how
// text becomes cues.
type Context struct {
	Main    *engine.Engine
	Aliases *engine.Engine
	Lexicon *engine.Engine

	Normalization normalization.Config
	Taxonomy      taxonomy.Taxonomy
	Tokenizer     collaborators.Tokenizer

	// Proposer is the external collaborator ProposeCuesJob defers cue
	// expansion to. It may be nil, in which case ProposeCuesJob returns
	// without attaching any cues — a graceful degradation, not an error.
	Proposer collaborators.Proposer

	queryCache   *shardmap.Map[[]string]
	lastActivity int64 // unix seconds, atomic
}

// New constructs an empty project Context. tokenizer may be nil, in which
// case a collaborators.DefaultTokenizer is used.
func New(normCfg normalization.Config, tax taxonomy.Taxonomy, tokenizer collaborators.Tokenizer, nowUnix int64) *Context {
	if tokenizer == nil {
		tokenizer = collaborators.DefaultTokenizer{}
	}
	return &Context{
		Main:          engine.New(0),
		Aliases:       engine.New(0),
		Lexicon:       engine.New(0),
		Normalization: normCfg,
		Taxonomy:      tax,
		Tokenizer:     tokenizer,
		queryCache:    shardmap.New[[]string](0),
		lastActivity:  nowUnix,
	}
}

// Touch records activity on the project at the given unix time.
func (c *Context) Touch(nowUnix int64) {
	atomic.StoreInt64(&c.lastActivity, nowUnix)
}

// LastActivity returns the unix time of the most recent Touch.
func (c *Context) LastActivity() int64 {
	return atomic.LoadInt64(&c.lastActivity)
}

// CueFrequency returns the document frequency of cue in the main engine.
func (c *Context) CueFrequency(cue string) int {
	set, ok := c.Main.CueIndex().Lookup(cue)
	if !ok {
		return 0
	}
	return set.Len()
}

// TotalMemories returns the main engine's memory count.
func (c *Context) TotalMemories() int {
	return c.Main.MemoryCount()
}

// ResolveCuesFromText tokenizes, normalizes, and validates text into the
// cues it should be stored or queried under. When skipLexicon is true,
// the lexicon lookup step (and the query cache, which only covers the
// lexicon path) is bypassed and tokens are normalized directly. Returns
// the accepted cues plus, when the lexicon path was taken, the memory IDs
// of the lexicon entries that resolved them (for reinforcement).
func (c *Context) ResolveCuesFromText(ctx context.Context, text string, skipLexicon bool) ([]string, []string) {
	normalizedText := collaborators.NormalizeText(text)

	if !skipLexicon {
		if cached, ok := c.queryCache.Get(normalizedText); ok {
			return cached, nil
		}
	}

	tokens, err := c.Tokenizer.Tokenize(ctx, text)
	if err != nil || len(tokens) == 0 {
		return nil, nil
	}

	var canonicalCues []string
	var lexiconMemoryIDs []string

	if skipLexicon {
		canonicalCues = normalizeTokensDedup(tokens, c.Normalization)
	} else {
		results := c.Lexicon.Recall(engine.BuildQueryCues(tokens), engine.RecallOptions{
			Limit:                    lexiconFastRecallLimit,
			DisablePatternCompletion: true,
			DisableSalienceBias:      true,
		})
		for _, r := range results {
			normalized, _ := normalization.NormalizeCue(r.Content, c.Normalization)
			canonicalCues = append(canonicalCues, normalized)
			lexiconMemoryIDs = append(lexiconMemoryIDs, r.ID)
		}

		if len(canonicalCues) == 0 {
			canonicalCues = normalizeTokensDedup(tokens, c.Normalization)
		}
	}

	report := taxonomy.ValidateCues(canonicalCues, c.Taxonomy)

	if !skipLexicon {
		c.queryCache.Set(normalizedText, report.Accepted)
	}

	return report.Accepted, lexiconMemoryIDs
}

func normalizeTokensDedup(tokens []string, cfg normalization.Config) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		normalized, _ := normalization.NormalizeCue(tok, cfg)
		if !containsString(out, normalized) {
			out = append(out, normalized)
		}
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type aliasContent struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	Downweight *float64 `json:"downweight"`
}

// ExpandQueryCues takes resolved cues and, for any cue that came directly
// from originalTokens (not a lexicon synonym), looks up active aliases
// rewriting it to another cue. Each alias contributes the alias's target
// cue at its configured downweight (default 0.85). The result is
// deduplicated (first/highest-weight occurrence wins) and filtered to
// cues that actually exist in the main engine's index, descending by
// weight.
func (c *Context) ExpandQueryCues(cues []string, originalTokens []string) []engine.QueryCue {
	type weighted struct {
		cue    string
		weight float64
	}
	var expanded []weighted

	for _, cue := range cues {
		expanded = append(expanded, weighted{cue: cue, weight: 1.0})

		if !containsString(originalTokens, cue) {
			continue
		}

		aliasQuery := []string{"type:alias", "from:" + cue, "status:active"}
		aliases := c.Aliases.Recall(engine.BuildQueryCues(aliasQuery), engine.RecallOptions{Limit: aliasRecallLimit})

		for _, alias := range aliases {
			if mem, ok := c.Aliases.Get(alias.ID); !ok || !mem.HasCue("status:active") {
				continue
			}
			var data aliasContent
			if err := json.Unmarshal([]byte(alias.Content), &data); err != nil {
				continue
			}
			if data.From != "" && data.From != cue {
				continue
			}
			if data.To == "" {
				continue
			}
			downweight := defaultAliasDownweight
			if data.Downweight != nil {
				downweight = *data.Downweight
			}
			expanded = append(expanded, weighted{cue: data.To, weight: downweight})
		}
	}

	sort.SliceStable(expanded, func(i, j int) bool { return expanded[i].weight > expanded[j].weight })

	seen := make(map[string]struct{}, len(expanded))
	out := make([]engine.QueryCue, 0, len(expanded))
	for _, w := range expanded {
		if _, ok := c.Main.CueIndex().Lookup(w.cue); !ok {
			continue
		}
		if _, dup := seen[w.cue]; dup {
			continue
		}
		seen[w.cue] = struct{}{}
		out = append(out, engine.QueryCue{Cue: w.cue, Weight: w.weight})
	}
	return out
}

// Store is the registry of all known projects, keyed by project ID.
// Grounded on original_source/src/projects.rs's ProjectStore.
type Store struct {
	mu       sync.RWMutex
	projects map[string]*Context
	clock    func() int64
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		projects: make(map[string]*Context),
		clock:    func() int64 { return time.Now().Unix() },
	}
}

// GetOrCreate returns the existing Context for projectID, or creates one
// with default normalization/taxonomy config and a DefaultTokenizer.
func (s *Store) GetOrCreate(projectID string) *Context {
	s.mu.RLock()
	ctx, ok := s.projects[projectID]
	s.mu.RUnlock()
	if ok {
		return ctx
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if ctx, ok := s.projects[projectID]; ok {
		return ctx
	}
	ctx = New(normalization.Default(), taxonomy.Taxonomy{}, nil, s.clock())
	s.projects[projectID] = ctx
	return ctx
}

// Get returns the Context for projectID without creating it.
func (s *Store) Get(projectID string) (*Context, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ctx, ok := s.projects[projectID]
	return ctx, ok
}

// Put installs ctx under projectID, overwriting any existing entry. Used
// by snapshot rehydration.
func (s *Store) Put(projectID string, ctx *Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[projectID] = ctx
}

// Delete removes projectID from the store. Idempotent.
func (s *Store) Delete(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.projects, projectID)
}

// ProjectIDs returns every known project ID, unordered.
func (s *Store) ProjectIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.projects))
	for id := range s.projects {
		ids = append(ids, id)
	}
	return ids
}

// Stats summarizes one project's size and activity for listing endpoints.
type Stats struct {
	ProjectID     string
	TotalMemories int
	TotalCues     int
	LastActivity  int64
}

// ListProjects returns a Stats entry for every known project, sorted by
// ProjectID for stable output.
func (s *Store) ListProjects() []Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Stats, 0, len(s.projects))
	for id, ctx := range s.projects {
		out = append(out, Stats{
			ProjectID:     id,
			TotalMemories: ctx.Main.MemoryCount(),
			TotalCues:     ctx.Main.CueCount(),
			LastActivity:  ctx.LastActivity(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProjectID < out[j].ProjectID })
	return out
}

// GlobalStats aggregates Stats across every project.
type GlobalStats struct {
	ProjectCount  int
	TotalMemories int
	TotalCues     int
}

// GetGlobalStats aggregates memory and cue counts across every project.
func (s *Store) GetGlobalStats() GlobalStats {
	stats := s.ListProjects()
	out := GlobalStats{ProjectCount: len(stats)}
	for _, p := range stats {
		out.TotalMemories += p.TotalMemories
		out.TotalCues += p.TotalCues
	}
	return out
}

const (
	minProjectIDLength = 3
	maxProjectIDLength = 64
)

// ErrInvalidProjectID is wrapped with the specific reason in
// ValidateProjectID's error.
var ErrInvalidProjectID = fmt.Errorf("project: invalid project id")

// ValidateProjectID checks projectID is 3-64 characters drawn from
// [a-zA-Z0-9_-], the identifier rule every tenant-scoped operation
// enforces before touching the store.
func ValidateProjectID(projectID string) error {
	if len(projectID) < minProjectIDLength || len(projectID) > maxProjectIDLength {
		return fmt.Errorf("%w: must be %d-%d characters, got %d", ErrInvalidProjectID, minProjectIDLength, maxProjectIDLength, len(projectID))
	}
	for _, r := range projectID {
		isAllowed := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		if !isAllowed {
			return fmt.Errorf("%w: disallowed character %q", ErrInvalidProjectID, r)
		}
	}
	return nil
}

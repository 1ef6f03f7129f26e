// Package engine implements the CueMap engine: the component that owns a
// memory store, cue index, and co-occurrence matrix for a single tenant's
// single namespace (main, lexicon, or aliases — see internal/project),
// and exposes the mutating operations and the ranked recall algorithm
// described in spec.md §4.5 and §4.6.
package engine

import "github.com/scrypster/cuemap/pkg/cuetypes"

// QueryCue is one weighted term in a recall query.
type QueryCue struct {
	Cue    string
	Weight float64
}

// BuildQueryCues assigns the default weight of 1.0 to each cue — the thin
// wrapper spec.md's recall()/recall_with_min_intersection() reduce to.
func BuildQueryCues(cues []string) []QueryCue {
	out := make([]QueryCue, len(cues))
	for i, c := range cues {
		out[i] = QueryCue{Cue: c, Weight: 1.0}
	}
	return out
}

// RecallOptions configures Engine.Recall.
type RecallOptions struct {
	Limit                       int
	AutoReinforce               bool
	MinIntersection             *int
	Explain                     bool
	DisablePatternCompletion    bool
	DisableSalienceBias         bool
	DisableSystemsConsolidation bool
	Heatmap                     map[string]float64
}

// Reinforcer is the async hand-off point for auto-reinforcement: Recall
// calls ReinforceAsync instead of reinforcing in-line, so the actual
// reinforcement can be routed through the background job queue (spec.md
// §4.5 Stage 4: "asynchronously enqueue a reinforcement job"). When no
// Reinforcer is wired, Engine falls back to reinforcing in a detached
// goroutine directly.
type Reinforcer interface {
	ReinforceAsync(ids []string, cues []string)
}

// ExplainBlock is the optional per-result score breakdown (spec.md §4.5,
// only populated when RecallOptions.Explain is set).
type ExplainBlock struct {
	IntersectionWeighted float64
	IntersectionScore    float64
	RecencyComponent     float64
	FrequencyComponent   float64
	SalienceScore        float64
	EffectiveSalience    float64
	HeatmapLift          float64
	MatchIntegrity       float64
	Weights              map[string]float64
	MatchCount           int
	MatchedCues          []string
}

// RecallResult is one ranked memory returned from Recall.
type RecallResult struct {
	ID                 string
	Content             string
	Score               float64
	MatchIntegrity       float64
	IntersectionCount    int
	RecencyScore         float64
	ReinforcementScore   float64
	SalienceScore        float64
	CreatedAt            int64
	Metadata             map[string]cuetypes.JSONValue
	Explain              *ExplainBlock
	Undecryptable        bool // true when content access failed (spec.md §4.5 failure semantics)
}

type cuePosition struct {
	position int
	listLen  int
	weight   float64
}

type candidate struct {
	id        string
	positions map[string]cuePosition
	totalWeight float64
}

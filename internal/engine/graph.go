package engine

import (
	"sort"

	"github.com/scrypster/cuemap/pkg/cuetypes"
)

const maxTotalGraphLinks = 10000

// GraphNode is one node in a GetGraphData view: either a memory or a cue.
type GraphNode struct {
	ID    string
	Label string
	Group string // "memory" or "cue"
	Value float64
}

// GraphLink is one edge: a memory->cue membership link (Value 2.0, fixed)
// or a cue->cue co-occurrence link (Value = min(count, 5)).
type GraphLink struct {
	Source string
	Target string
	Value  float64
}

// GraphData is the full node/link view returned by GetGraphData.
type GraphData struct {
	Nodes []GraphNode
	Links []GraphLink
}

// GetGraphData builds a budgeted node/link view of the memory+cue graph:
// the `limit` most recently accessed memories, their declared cues, and
// the cue-cue co-occurrence edges between cues that appear in the view.
// Every memory->cue link is kept; cue->cue links, highest weight first,
// only fill whatever remains of the maxTotalGraphLinks budget.
func (e *Engine) GetGraphData(limit int) GraphData {
	type memRef struct {
		id           string
		lastAccessed int64
		label        string
		salience     float64
	}
	var mems []memRef
	e.memories.Range(func(id string, mem *cuetypes.Memory) bool {
		content, err := e.Content(mem)
		if err != nil {
			content = ""
		}
		mems = append(mems, memRef{
			id:           id,
			lastAccessed: mem.LastAccessed,
			label:        truncateLabel(content, 50),
			salience:     memSalience(mem, e.now()),
		})
		return true
	})

	sort.SliceStable(mems, func(i, j int) bool { return mems[i].lastAccessed > mems[j].lastAccessed })
	if limit > 0 && len(mems) > limit {
		mems = mems[:limit]
	}

	var data GraphData
	added := make(map[string]struct{})
	cueLabelByID := make(map[string]string)

	for _, m := range mems {
		if _, ok := added[m.id]; !ok {
			val := m.salience
			if val < 1.0 {
				val = 1.0
			}
			data.Nodes = append(data.Nodes, GraphNode{ID: m.id, Label: m.label, Group: "memory", Value: val})
			added[m.id] = struct{}{}
		}

		mem, ok := e.memories.Get(m.id)
		if !ok {
			continue
		}
		for _, cue := range mem.Cues {
			cueID := "cue:" + cue
			if _, ok := added[cueID]; !ok {
				data.Nodes = append(data.Nodes, GraphNode{ID: cueID, Label: cue, Group: "cue", Value: 1.0})
				added[cueID] = struct{}{}
				cueLabelByID[cueID] = cue
			}
			data.Links = append(data.Links, GraphLink{Source: m.id, Target: cueID, Value: 2.0})
		}
	}

	if len(data.Links) < maxTotalGraphLinks {
		type coLink struct {
			source, target string
			weight         float64
		}
		var coLinks []coLink
		for cueID, label := range cueLabelByID {
			for other, count := range e.coOccur.Neighbors(label) {
				otherID := "cue:" + other
				if _, ok := added[otherID]; !ok {
					continue
				}
				if !(label < other) {
					continue // dedupe: only emit a < b once
				}
				weight := float64(count)
				if weight > 5.0 {
					weight = 5.0
				}
				coLinks = append(coLinks, coLink{source: cueID, target: otherID, weight: weight})
			}
		}
		sort.Slice(coLinks, func(i, j int) bool { return coLinks[i].weight > coLinks[j].weight })

		remaining := maxTotalGraphLinks - len(data.Links)
		if remaining > len(coLinks) {
			remaining = len(coLinks)
		}
		for _, cl := range coLinks[:remaining] {
			data.Links = append(data.Links, GraphLink{Source: cl.source, Target: cl.target, Value: cl.weight})
		}
	}

	return data
}

// ExpandedCue is one candidate produced by ExpandCuesFromGraph.
type ExpandedCue struct {
	Cue         string
	Score       float64
	RawCount    uint64
	SourceCues  []string
}

// ExpandCuesFromGraph expands queryCues into related terms via the
// co-occurrence graph. With a single query cue it returns that cue's
// top co-occurring terms directly; with multiple, it aggregates counts
// across all of them, crediting a candidate for every distinct query cue
// it co-occurred with. Structural cues (":") and substring specializations
// of the query cue whose neighbors are being scanned are excluded,
// mirroring pattern completion's filters.
func (e *Engine) ExpandCuesFromGraph(queryCues []string, limit int) []ExpandedCue {
	normalized := normalizeQueryCues(queryCues)
	if len(normalized) == 0 {
		return nil
	}

	if len(normalized) == 1 {
		cue := normalized[0]
		neighbors := e.coOccur.Neighbors(cue)
		if len(neighbors) == 0 {
			return nil
		}
		out := make([]ExpandedCue, 0, len(neighbors))
		for term, count := range neighbors {
			if containsColon(term) || containsSubstring(term, cue) {
				continue
			}
			out = append(out, ExpandedCue{Cue: term, Score: float64(count), RawCount: count, SourceCues: []string{cue}})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
		if limit > 0 && len(out) > limit {
			out = out[:limit]
		}
		return out
	}

	queried := make(map[string]struct{}, len(normalized))
	for _, c := range normalized {
		queried[c] = struct{}{}
	}

	type agg struct {
		count   uint64
		sources []string
		seen    map[string]struct{}
	}
	candidates := make(map[string]*agg)

	for _, cue := range normalized {
		for term, count := range e.coOccur.Neighbors(cue) {
			if _, isQuery := queried[term]; isQuery {
				continue
			}
			if containsColon(term) || containsSubstring(term, cue) {
				continue
			}
			a, ok := candidates[term]
			if !ok {
				a = &agg{seen: make(map[string]struct{})}
				candidates[term] = a
			}
			a.count += count
			if _, already := a.seen[cue]; !already {
				a.seen[cue] = struct{}{}
				a.sources = append(a.sources, cue)
			}
		}
	}

	out := make([]ExpandedCue, 0, len(candidates))
	for term, a := range candidates {
		out = append(out, ExpandedCue{Cue: term, Score: float64(a.count), RawCount: a.count, SourceCues: a.sources})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// EngineStats is the aggregate shape returned by GetStats.
type EngineStats struct {
	TotalMemories int
	TotalCues     int
}

// GetStats returns the engine's aggregate counters.
func (e *Engine) GetStats() EngineStats {
	return EngineStats{TotalMemories: e.MemoryCount(), TotalCues: e.CueCount()}
}

func truncateLabel(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func memSalience(mem *cuetypes.Memory, nowUnix int64) float64 {
	if mem.Stats == nil {
		return 0
	}
	return mem.Stats.Salience(nowUnix)
}

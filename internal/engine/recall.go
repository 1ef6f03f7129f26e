package engine

import (
	"math"
	"sort"

	"github.com/scrypster/cuemap/internal/cueindex"
	"github.com/scrypster/cuemap/internal/recency"
)

const (
	patternCompletionWeight  = 0.1
	patternCompletionTopK    = 5
	maxScanLimit             = 2000
	scanLimitLimitMultiplier = 100
)

// Recall runs the spec.md §4.5 ranked recall algorithm over weighted query
// cues and returns up to opts.Limit results, most relevant first.
func (e *Engine) Recall(cues []QueryCue, opts RecallOptions) []RecallResult {
	active := e.prepareCues(cues, opts)
	if len(active) == 0 {
		return nil
	}

	candidates := e.gatherCandidates(active, opts)
	if len(candidates) == 0 {
		return nil
	}

	nTotal := e.MemoryCount()
	results := make([]RecallResult, 0, len(candidates))
	for _, cand := range candidates {
		mem, ok := e.memories.Get(cand.id)
		if !ok {
			continue // deleted between gather and score
		}
		if opts.DisableSystemsConsolidation && mem.HasCue("type:summary") {
			continue
		}
		if opts.MinIntersection != nil && len(cand.positions) < *opts.MinIntersection {
			continue
		}
		results = append(results, e.score(mem, cand, active, opts, nTotal))
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	limit := opts.Limit
	if limit < 0 {
		limit = 0
	}
	if len(results) > limit {
		results = results[:limit]
	}

	if opts.AutoReinforce && len(results) > 0 {
		e.autoReinforce(results, cues)
	}

	return results
}

// prepareCues implements Stage 1: normalize, drop unindexed cues, and
// optionally admit pattern-completed cues from co-occurrence.
func (e *Engine) prepareCues(cues []QueryCue, opts RecallOptions) []QueryCue {
	present := make(map[string]struct{}, len(cues))
	active := make([]QueryCue, 0, len(cues))
	for _, qc := range cues {
		c := cueindex.Normalize(qc.Cue)
		if c == "" {
			continue
		}
		if _, ok := e.cueIndex.Lookup(c); !ok {
			continue
		}
		if _, dup := present[c]; dup {
			continue
		}
		present[c] = struct{}{}
		active = append(active, QueryCue{Cue: c, Weight: qc.Weight})
	}

	if opts.DisablePatternCompletion || len(active) == 0 {
		return active
	}

	type scored struct {
		cue   string
		count uint64
	}
	counts := make(map[string]uint64)
	for _, qc := range active {
		for cp, count := range e.coOccur.Neighbors(qc.Cue) {
			if _, ok := present[cp]; ok {
				continue
			}
			if containsColon(cp) {
				continue
			}
			if containsSubstring(cp, qc.Cue) {
				continue
			}
			counts[cp] += count
		}
	}

	ranked := make([]scored, 0, len(counts))
	for cue, count := range counts {
		ranked = append(ranked, scored{cue: cue, count: count})
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].count > ranked[j].count })
	if len(ranked) > patternCompletionTopK {
		ranked = ranked[:patternCompletionTopK]
	}

	for _, r := range ranked {
		active = append(active, QueryCue{Cue: r.cue, Weight: patternCompletionWeight})
	}
	return active
}

func containsColon(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == ':' {
			return true
		}
	}
	return false
}

func containsSubstring(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	n, m := len(haystack), len(needle)
	if m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if haystack[i:i+m] == needle {
			return i
		}
	}
	return -1
}

// activeCueInfo is a Stage-2 working record: the cue's effective (IDF
// weighted) weight, its posting list, and the list's size, computed once
// up front.
type activeCueInfo struct {
	cue    string
	weight float64
	set    *recency.Set
	df     int
}

// gatherCandidates implements Stage 2 (smallest-first union with O(1)
// probing): compute IDF-weighted effective weights, sort active cues
// ascending by document frequency, then walk each cue's posting list (most
// recent first, bounded by scan_limit) in that order. Every unseen memory
// ID found this way is probed against every other active cue's posting
// list to assemble its full intersection record before being added to the
// result once. Walking every cue's own list (not just the rarest) is what
// lets a low-weight pattern-completion cue with a larger posting list than
// the literal query cue still surface its own matches.
func (e *Engine) gatherCandidates(active []QueryCue, opts RecallOptions) []*candidate {
	nTotal := float64(e.MemoryCount())

	infos := make([]activeCueInfo, 0, len(active))
	for _, qc := range active {
		set, ok := e.cueIndex.Lookup(qc.Cue)
		if !ok {
			continue
		}
		df := set.Len()
		if df == 0 {
			continue
		}
		idf := math.Log((nTotal-float64(df)+0.5)/(float64(df)+0.5))
		if idf < 0.1 {
			idf = 0.1
		}
		infos = append(infos, activeCueInfo{cue: qc.Cue, weight: qc.Weight * idf, set: set, df: df})
	}
	if len(infos) == 0 {
		return nil
	}

	sort.SliceStable(infos, func(i, j int) bool { return infos[i].df < infos[j].df })

	limit := opts.Limit
	adaptiveScanLimit := limit * scanLimitLimitMultiplier
	if adaptiveScanLimit < 1 {
		adaptiveScanLimit = 1
	}
	if adaptiveScanLimit > maxScanLimit {
		adaptiveScanLimit = maxScanLimit
	}

	candidates := make(map[string]*candidate)
	seen := make(map[string]struct{})

	for _, info := range infos {
		scanLimit := info.df
		if scanLimit > adaptiveScanLimit {
			scanLimit = adaptiveScanLimit
		}
		for _, id := range info.set.GetRecent(scanLimit) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}

			cand := &candidate{id: id, positions: make(map[string]cuePosition, len(infos))}
			for _, other := range infos {
				if pos, ok := other.set.IndexOf(id); ok {
					cand.positions[other.cue] = cuePosition{position: pos, listLen: other.df, weight: other.weight}
					cand.totalWeight += other.weight
				}
			}
			candidates[id] = cand
		}
	}

	out := make([]*candidate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c)
	}
	return out
}

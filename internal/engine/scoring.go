package engine

import (
	"math"

	"github.com/scrypster/cuemap/pkg/cuetypes"
)

// score implements Stage 3 (per-candidate scoring) and assembles the
// Stage-4-adjacent RecallResult; filtering against min_intersection and
// type:summary happens in the caller before score is invoked, since both
// decisions are cheaper than full scoring.
func (e *Engine) score(mem *cuetypes.Memory, cand *candidate, active []QueryCue, opts RecallOptions, nTotal int) RecallResult {
	matchCount := len(cand.positions)

	var sumR, sumWRec, sumWFreq float64
	matchedCues := make([]string, 0, matchCount)
	for cue, pos := range cand.positions {
		l := float64(pos.listLen)
		sigma := math.Sqrt(l)
		if sigma == 0 {
			sigma = 1
		}
		ratio := float64(pos.position) / sigma
		wRec := 20 / (ratio + 1)
		wFreq := 1 + 5*(1-1/(ratio+1))
		r := 1 / (float64(pos.position) + 1)

		sumR += r
		sumWRec += wRec
		sumWFreq += wFreq
		matchedCues = append(matchedCues, cue)
	}

	recencyScore := sumR / float64(matchCount)
	avgWRec := sumWRec / float64(matchCount)
	avgWFreq := sumWFreq / float64(matchCount)

	reinforcementCount := uint64(0)
	if mem.Stats != nil {
		reinforcementCount = mem.Stats.ReinforcementCount()
	}
	frequencyScore := 0.0
	if reinforcementCount > 0 {
		frequencyScore = math.Log10(float64(reinforcementCount))
	}

	salienceScore := 0.0
	effectiveSalience := 0.0
	heatmapLift := 0.0
	if !opts.DisableSalienceBias {
		if mem.Stats != nil {
			effectiveSalience = mem.Stats.Salience(e.now())
		}
		for _, c := range mem.Cues {
			if v, ok := opts.Heatmap[c]; ok {
				heatmapLift += v
			}
		}
		salienceScore = effectiveSalience + heatmapLift
	}

	intersectionScore := cand.totalWeight * 100

	finalScore := intersectionScore +
		recencyScore*avgWRec +
		frequencyScore*avgWFreq +
		salienceScore*10

	integrity := matchIntegrity(cand.totalWeight, matchCount, len(mem.Cues), frequencyScore)

	content, err := e.Content(mem)
	undecryptable := err != nil
	if undecryptable {
		content = "[content unavailable]"
	}

	result := RecallResult{
		ID:                 mem.ID,
		Content:             content,
		Score:               finalScore,
		MatchIntegrity:       integrity,
		IntersectionCount:    matchCount,
		RecencyScore:         recencyScore,
		ReinforcementScore:   frequencyScore,
		SalienceScore:        salienceScore,
		CreatedAt:            mem.CreatedAt,
		Metadata:             mem.Metadata,
		Undecryptable:        undecryptable,
	}

	if opts.Explain {
		weights := make(map[string]float64, matchCount)
		for cue, pos := range cand.positions {
			weights[cue] = pos.weight
		}
		result.Explain = &ExplainBlock{
			IntersectionWeighted: cand.totalWeight,
			IntersectionScore:    intersectionScore,
			RecencyComponent:     recencyScore * avgWRec,
			FrequencyComponent:   frequencyScore * avgWFreq,
			SalienceScore:        salienceScore,
			EffectiveSalience:    effectiveSalience,
			HeatmapLift:          heatmapLift,
			MatchIntegrity:       integrity,
			Weights:              weights,
			MatchCount:           matchCount,
			MatchedCues:          matchedCues,
		}
	}

	return result
}

// matchIntegrity implements the reported-not-ranked formula of spec.md
// §4.5 Stage 3, clamped to [0, 1].
func matchIntegrity(totalWeight float64, matchCount, cueCount int, frequencyScore float64) float64 {
	if matchCount == 0 || cueCount == 0 {
		return 0
	}
	freqTerm := frequencyScore / 2
	if freqTerm > 1 {
		freqTerm = 1
	}
	v := 0.5*(totalWeight/float64(matchCount)) +
		0.3*(float64(matchCount)/float64(cueCount)) +
		0.2*freqTerm
	if v > 1 {
		v = 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

// autoReinforce implements Stage 4's "asynchronously enqueue a
// reinforcement job for the returned IDs using the original (not inferred)
// query cues." Original cues are those passed into Recall, not any
// pattern-completed additions.
func (e *Engine) autoReinforce(results []RecallResult, originalCues []QueryCue) {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	cues := make([]string, len(originalCues))
	for i, qc := range originalCues {
		cues[i] = qc.Cue
	}

	if e.reinforcer != nil {
		e.reinforcer.ReinforceAsync(ids, cues)
		return
	}
	go func() {
		for _, id := range ids {
			_ = e.ReinforceMemory(id, cues)
		}
	}()
}

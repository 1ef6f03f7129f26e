package jobs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Alias-proposal tuning constants, carried over verbatim from
// original_source/src/config.rs.
const (
	aliasMinCueMemories        = 20
	aliasMaxCueMemories        = 50_000
	aliasMaxCandidates         = 1500
	aliasSizeSimilarityMaxRatio = 0.10
	aliasOverlapThreshold      = 0.90
	aliasSampleSize            = 512
)

type cueCandidate struct {
	cue    string
	length int
	sample map[string]struct{}
}

// cueTokens splits a cue into its significant (length >= 3) lowercased
// parts on ':', '-', '_' — the same split original_source/src/jobs.rs's
// cue_tokens uses to find a lexical family for two cues before comparing
// their posting lists.
func cueTokens(cue string) []string {
	parts := strings.FieldsFunc(cue, func(r rune) bool {
		return r == ':' || r == '-' || r == '_'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		lower := strings.ToLower(p)
		if len(lower) >= 3 {
			out = append(out, lower)
		}
	}
	return out
}

// lexicalGate reports whether a and b are plausibly the same concept:
// either one contains the other outright, or they share a significant
// token.
func lexicalGate(a, b string) bool {
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	tokensA := cueTokens(a)
	if len(tokensA) == 0 {
		return false
	}
	tokensB := cueTokens(b)
	if len(tokensB) == 0 {
		return false
	}
	for _, ta := range tokensA {
		for _, tb := range tokensB {
			if ta == tb {
				return true
			}
		}
	}
	return false
}

func isCanonicalFormat(cue string) bool {
	idx := strings.IndexByte(cue, ':')
	if idx <= 0 || idx == len(cue)-1 {
		return false
	}
	return true
}

// chooseCanonical deterministically picks which of a, b is the canonical
// cue and which is the alias: a structured (key:value) cue outranks a
// plain one; if both or neither are structured, the lexicographically
// smaller one wins, so the choice is reproducible across runs.
func chooseCanonical(a, b string) (canonical, alias string) {
	aCanon, bCanon := isCanonicalFormat(a), isCanonicalFormat(b)
	switch {
	case aCanon && !bCanon:
		return a, b
	case !aCanon && bCanon:
		return b, a
	case a < b:
		return a, b
	default:
		return b, a
	}
}

type aliasProposal struct {
	from    string
	to      string
	score   float64
	aliasID string
}

// proposeAliases implements ProposeAliasesJob: it selects mid-frequency
// cues (frequent enough to matter, not so frequent they're structural),
// compares every pair under a cheap lexical gate before doing the
// expensive posting-list overlap check, and registers a proposed alias
// for every pair whose exact overlap clears aliasOverlapThreshold.
//
// Grounded on original_source/src/jobs.rs's ProposeAliases handler,
// including its two-stage filter (sampled overlap as a cheap pre-filter,
// exact overlap as the final gate) and its skip-top-1%-by-frequency step
// (the most frequent cues tend to be structural/noisy, not alias pairs).
func proposeAliases(cueFrequencies map[string]int, sampleOf func(cue string, limit int) []string, fullPostingList func(cue string) []string) []aliasProposal {
	type stat struct {
		cue   string
		count int
	}
	stats := make([]stat, 0, len(cueFrequencies))
	for cue, count := range cueFrequencies {
		if len(cue) >= 3 && count >= aliasMinCueMemories && count <= aliasMaxCueMemories {
			stats = append(stats, stat{cue: cue, count: count})
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].count > stats[j].count })

	dropCount := int(float64(len(stats)) * 0.01)
	if dropCount > len(stats) {
		dropCount = len(stats)
	}
	stats = stats[dropCount:]
	if len(stats) > aliasMaxCandidates {
		stats = stats[:aliasMaxCandidates]
	}
	if len(stats) == 0 {
		return nil
	}

	candidates := make([]cueCandidate, 0, len(stats))
	for _, s := range stats {
		sampleIDs := sampleOf(s.cue, aliasSampleSize)
		sampleSet := make(map[string]struct{}, len(sampleIDs))
		for _, id := range sampleIDs {
			sampleSet[id] = struct{}{}
		}
		candidates = append(candidates, cueCandidate{cue: s.cue, length: s.count, sample: sampleSet})
	}

	var proposals []aliasProposal
	for i := 0; i < len(candidates); i++ {
		a := candidates[i]
		for j := i + 1; j < len(candidates); j++ {
			b := candidates[j]

			diff := a.length - b.length
			if diff < 0 {
				diff = -diff
			}
			maxLen := a.length
			if b.length > maxLen {
				maxLen = b.length
			}
			if float64(diff)/float64(maxLen) > aliasSizeSimilarityMaxRatio {
				continue
			}

			if !lexicalGate(a.cue, b.cue) {
				continue
			}

			intersection := 0
			minSampleLen := len(a.sample)
			if len(b.sample) < minSampleLen {
				minSampleLen = len(b.sample)
			}
			if minSampleLen == 0 {
				continue
			}
			for id := range a.sample {
				if _, ok := b.sample[id]; ok {
					intersection++
				}
			}
			sampleScore := float64(intersection) / float64(minSampleLen)
			if sampleScore < aliasOverlapThreshold-0.15 {
				continue
			}

			listA := fullPostingList(a.cue)
			listB := fullPostingList(b.cue)
			smaller, larger := listA, listB
			if len(listB) < len(listA) {
				smaller, larger = listB, listA
			}
			if len(smaller) == 0 {
				continue
			}
			largerSet := make(map[string]struct{}, len(larger))
			for _, id := range larger {
				largerSet[id] = struct{}{}
			}
			exactIntersection := 0
			for _, id := range smaller {
				if _, ok := largerSet[id]; ok {
					exactIntersection++
				}
			}
			exactScore := float64(exactIntersection) / float64(len(smaller))
			if exactScore < aliasOverlapThreshold {
				continue
			}

			canon, aliasCue := chooseCanonical(a.cue, b.cue)
			aliasIDSeed := fmt.Sprintf("%s->%s", aliasCue, canon)
			aliasID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(aliasIDSeed)).String()
			proposals = append(proposals, aliasProposal{from: aliasCue, to: canon, score: exactScore, aliasID: aliasID})
		}
	}
	return proposals
}

type aliasContentDoc struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Downweight float64 `json:"downweight"`
	Status     string  `json:"status"`
	Reason     string  `json:"reason"`
}

func encodeAliasContent(from, to string, score float64) string {
	doc := aliasContentDoc{From: from, To: to, Downweight: score, Status: "proposed", Reason: "overlap_analysis"}
	b, _ := json.Marshal(doc)
	return string(b)
}

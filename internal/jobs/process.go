package jobs

import (
	"context"
	"strings"

	"github.com/scrypster/cuemap/internal/normalization"
	"github.com/scrypster/cuemap/internal/recency"
	"github.com/scrypster/cuemap/internal/taxonomy"
)

// maxProposedCues caps how many candidate cues a single ProposeCuesJob
// will attach, regardless of how many the Proposer collaborator returns.
const maxProposedCues = 10

// bootstrapTokenLimit caps how many raw tokens seed cue proposal when the
// lexicon resolved too few known cues to expand from.
const bootstrapTokenLimit = 10

// minKnownCuesBeforeBootstrap is the known-cue count below which
// bootstrap seeding kicks in.
const minKnownCuesBeforeBootstrap = 3

// processJob dispatches a single Job to its handler. Every handler is a
// direct port of the matching arm in original_source/src/jobs.rs's
// process_job, minus the WordNet/GloVe/LLM-strategy branching that
// collapses here into a single call to the project's Proposer
// collaborator (spec.md's cue-proposal black box).
func processJob(ctx context.Context, job Job, provider Provider) {
	switch j := job.(type) {
	case ProposeCuesJob:
		processProposeCues(ctx, j, provider)
	case TrainLexiconJob:
		processTrainLexicon(j, provider)
	case ProposeAliasesJob:
		processProposeAliases(j, provider)
	case UpdateGraphJob:
		processUpdateGraph(j, provider)
	case ReinforceMemoriesJob:
		processReinforceMemories(j, provider)
	case ReinforceLexiconJob:
		processReinforceLexicon(j, provider)
	case ConsolidateMemoriesJob:
		processConsolidateMemories(ctx, j, provider)
	}
}

func processProposeCues(ctx context.Context, j ProposeCuesJob, provider Provider) {
	p, ok := provider.GetProject(ctx, j.ProjectID)
	if !ok {
		return
	}

	knownCues, _ := p.ResolveCuesFromText(ctx, j.Content, false)
	if len(knownCues) < minKnownCuesBeforeBootstrap {
		tokens, _ := p.Tokenizer.Tokenize(ctx, j.Content)
		for i, tok := range tokens {
			if i >= bootstrapTokenLimit {
				break
			}
			if !containsString(knownCues, tok) {
				knownCues = append(knownCues, tok)
			}
		}
	}

	if p.Proposer == nil {
		return
	}
	proposed, err := p.Proposer.ProposeCues(ctx, j.Content, knownCues)
	if err != nil || len(proposed) == 0 {
		return
	}

	seen := make(map[string]struct{}, len(proposed))
	var deduped []string
	for _, cue := range proposed {
		lower := strings.ToLower(cue)
		if len(lower) < 3 {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		deduped = append(deduped, cue)
		if len(deduped) >= maxProposedCues {
			break
		}
	}

	normalized := make([]string, 0, len(deduped))
	for _, cue := range deduped {
		n, _ := normalization.NormalizeCue(cue, p.Normalization)
		normalized = append(normalized, n)
	}

	report := taxonomy.ValidateCues(normalized, p.Taxonomy)
	if len(report.Accepted) == 0 {
		return
	}

	if err := p.Main.AttachCues(j.MemoryID, report.Accepted); err != nil {
		return
	}

	tokens, _ := p.Tokenizer.Tokenize(ctx, j.Content)
	if len(tokens) == 0 {
		return
	}
	for _, canonicalCue := range report.Accepted {
		if !IsLexiconTrainable(canonicalCue) {
			continue
		}
		filteredTokens := make([]string, 0, len(tokens))
		for _, tok := range tokens {
			if tok == canonicalCue || strings.Contains(canonicalCue, tok) {
				continue
			}
			filteredTokens = append(filteredTokens, tok)
		}
		if len(filteredTokens) == 0 {
			continue
		}
		_ = p.Lexicon.UpsertMemory("cue:"+canonicalCue, canonicalCue, filteredTokens)
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func processTrainLexicon(j TrainLexiconJob, provider Provider) {
	p, ok := provider.GetProject(context.Background(), j.ProjectID)
	if !ok {
		return
	}
	mem, ok := p.Main.Get(j.MemoryID)
	if !ok {
		return
	}
	content, err := p.Main.Content(mem)
	if err != nil {
		return
	}

	tokens, err := p.Tokenizer.Tokenize(context.Background(), content)
	if err != nil || len(tokens) == 0 {
		return
	}
	for _, token := range tokens {
		if !IsLexiconTrainable(token) {
			continue
		}
		_ = p.Lexicon.UpsertMemory("cue:"+token, token, []string{token})
	}
}

func processProposeAliases(j ProposeAliasesJob, provider Provider) {
	p, ok := provider.GetProject(context.Background(), j.ProjectID)
	if !ok {
		return
	}

	frequencies := make(map[string]int)
	sets := make(map[string]*recency.Set)
	p.Main.CueIndex().Range(func(cue string, set *recency.Set) bool {
		frequencies[cue] = set.Len()
		sets[cue] = set
		return true
	})

	sampleOf := func(cue string, limit int) []string {
		set, ok := sets[cue]
		if !ok {
			return nil
		}
		return set.GetRecent(limit)
	}
	fullPostingList := func(cue string) []string {
		set, ok := sets[cue]
		if !ok {
			return nil
		}
		return set.GetRecent(0)
	}

	proposals := proposeAliases(frequencies, sampleOf, fullPostingList)
	for _, prop := range proposals {
		idCue := "alias_id:" + prop.aliasID
		if _, exists := p.Aliases.CueIndex().Lookup(idCue); exists {
			continue
		}
		content := encodeAliasContent(prop.from, prop.to, prop.score)
		cues := []string{
			"type:alias",
			"from:" + prop.from,
			"to:" + prop.to,
			"status:proposed",
			"reason:overlap_analysis",
			idCue,
		}
		_ = p.Aliases.UpsertMemory(prop.aliasID, content, cues)
	}
}

func processUpdateGraph(j UpdateGraphJob, provider Provider) {
	p, ok := provider.GetProject(context.Background(), j.ProjectID)
	if !ok {
		return
	}
	mem, ok := p.Main.Get(j.MemoryID)
	if !ok {
		return
	}
	p.Main.UpdateCoOccurrence(mem.Cues)
}

func processReinforceMemories(j ReinforceMemoriesJob, provider Provider) {
	p, ok := provider.GetProject(context.Background(), j.ProjectID)
	if !ok {
		return
	}
	for _, id := range j.MemoryIDs {
		_ = p.Main.ReinforceMemory(id, j.Cues)
	}
}

func processReinforceLexicon(j ReinforceLexiconJob, provider Provider) {
	p, ok := provider.GetProject(context.Background(), j.ProjectID)
	if !ok {
		return
	}
	for _, id := range j.MemoryIDs {
		_ = p.Lexicon.ReinforceMemory(id, j.Cues)
	}
}

func processConsolidateMemories(ctx context.Context, j ConsolidateMemoriesJob, provider Provider) {
	p, ok := provider.GetProject(ctx, j.ProjectID)
	if !ok {
		return
	}
	summarized := p.Main.ConsolidateMemories()
	if len(summarized) == 0 {
		return
	}
	_ = provider.SaveProject(ctx, j.ProjectID)
}

package engine

import (
	"sort"
	"strings"

	"github.com/scrypster/cuemap/pkg/cuetypes"
)

// consolidationMinChainLength is the shortest episode: chain systems
// consolidation will summarize. Pairs are common and rarely worth a
// standalone summary; three or more linked writes is the bar.
const consolidationMinChainLength = 3

const episodeCuePrefix = "episode:"

// SummarizedChain records one episode: chain systems consolidation folded
// into a synthesized summary memory. SourceIDs are left untouched — this
// sweep never shadows or deletes.
type SummarizedChain struct {
	SummaryID string
	SourceIDs []string
}

// ConsolidateMemories implements the systems-consolidation sweep: it follows
// the episode:{prev_id} back-references maybeChain threads through cues to
// find chains of memories, and for every chain at least
// consolidationMinChainLength long, synthesizes one new memory tagged
// type:summary whose content concatenates the chain's contents (through the
// same Content/AddMemory encode path as any other memory) and whose cues
// are the union of the chain's cues. Chain members are never modified or
// deleted — recall's DisableSystemsConsolidation option is what lets a
// caller exclude the synthesized summaries instead.
//
// The background ConsolidateMemoriesJob (internal/jobs) is the only caller.
// original_source/src/jobs.rs calls ctx.main.consolidate_memories(0.9), but
// that function's own body lived in a source file outside the retrieval
// pack's filter cap; the episode:-chain/summary-synthesis behavior here
// follows the Open Question resolution recorded in SPEC_FULL.md §C.6
// instead of a Jaccard-overlap port.
func (e *Engine) ConsolidateMemories() []SummarizedChain {
	parent := make(map[string]string)
	var find func(string) string
	find = func(x string) string {
		if _, ok := parent[x]; !ok {
			parent[x] = x
			return x
		}
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	members := make(map[string]struct{})
	e.RangeMemories(func(id string, mem *cuetypes.Memory) bool {
		for _, c := range mem.Cues {
			if !strings.HasPrefix(c, episodeCuePrefix) {
				continue
			}
			prevID := strings.TrimPrefix(c, episodeCuePrefix)
			members[id] = struct{}{}
			members[prevID] = struct{}{}
			union(id, prevID)
		}
		return true
	})
	if len(members) == 0 {
		return nil
	}

	chains := make(map[string][]string)
	for id := range members {
		root := find(id)
		chains[root] = append(chains[root], id)
	}

	roots := make([]string, 0, len(chains))
	for root := range chains {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	var out []SummarizedChain
	for _, root := range roots {
		ids := chains[root]
		if len(ids) < consolidationMinChainLength {
			continue
		}
		sort.Strings(ids)

		cueSet := make(map[string]struct{})
		parts := make([]string, 0, len(ids))
		complete := true
		for _, id := range ids {
			mem, ok := e.memories.Get(id)
			if !ok {
				complete = false
				break
			}
			content, err := e.Content(mem)
			if err != nil {
				complete = false
				break
			}
			parts = append(parts, content)
			for _, c := range mem.Cues {
				cueSet[c] = struct{}{}
			}
		}
		if !complete {
			continue
		}
		cueSet["type:summary"] = struct{}{}

		cues := make([]string, 0, len(cueSet))
		for c := range cueSet {
			cues = append(cues, c)
		}

		summaryID, err := e.AddMemory(AddMemoryInput{
			Content:                 strings.Join(parts, "\n\n"),
			Cues:                    cues,
			DisableTemporalChunking: true,
		})
		if err != nil {
			continue
		}

		out = append(out, SummarizedChain{SummaryID: summaryID, SourceIDs: ids})
	}

	return out
}

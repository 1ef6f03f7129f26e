// Package jobs implements the background job system spec.md §4.9
// describes: a set of asynchronous operations the engine enqueues
// instead of doing inline (cue proposal, lexicon training, alias
// discovery, graph updates, reinforcement, consolidation), a
// single-consumer queue for the ones that fire once per event, and a
// per-project buffered "ingestion session" for the ones that pay off
// more when batched at the end of a bulk write. Grounded on
// original_source/src/jobs.rs end to end.
package jobs

import (
	"context"

	"github.com/scrypster/cuemap/internal/project"
)

// Job is one unit of background work. The concrete types below are the
// only implementations; isJob is unexported so the set is closed.
type Job interface{ isJob() }

// ProposeCuesJob asks the configured Proposer collaborator to suggest
// additional cues for a freshly ingested memory's content, then attaches
// whatever survives normalization and taxonomy validation.
type ProposeCuesJob struct {
	ProjectID string
	MemoryID  string
	Content   string
}

// TrainLexiconJob tokenizes a memory's content and trains the project's
// lexicon engine to map each trainable token back to itself (identity
// mapping), so future queries resolve raw tokens to canonical cues.
type TrainLexiconJob struct {
	ProjectID string
	MemoryID  string
}

// ProposeAliasesJob scans a project's cue index for pairs of cues whose
// posting lists overlap heavily enough to be the same concept under two
// names, and registers a proposed (not yet active) alias for each.
type ProposeAliasesJob struct {
	ProjectID string
}

// UpdateGraphJob folds a single memory's cues into the co-occurrence
// matrix — the deferred half of AddMemory spec.md §4.6 step 6 describes.
type UpdateGraphJob struct {
	ProjectID string
	MemoryID  string
}

// ReinforceMemoriesJob reinforces a batch of main-engine memories, the
// asynchronous hand-off point Recall's auto_reinforce option uses.
type ReinforceMemoriesJob struct {
	ProjectID string
	MemoryIDs []string
	Cues      []string
}

// ReinforceLexiconJob is ReinforceMemoriesJob's lexicon-engine twin, used
// when a lexicon recall resolved cues and those entries should be
// reinforced in turn.
type ReinforceLexiconJob struct {
	ProjectID string
	MemoryIDs []string
	Cues      []string
}

// ConsolidateMemoriesJob runs systems consolidation (synthesizing
// type:summary memories from episode: chains) for a project and, if
// anything was summarized, asks the Provider to persist a fresh snapshot.
type ConsolidateMemoriesJob struct {
	ProjectID string
}

func (ProposeCuesJob) isJob()         {}
func (TrainLexiconJob) isJob()        {}
func (ProposeAliasesJob) isJob()      {}
func (UpdateGraphJob) isJob()         {}
func (ReinforceMemoriesJob) isJob()   {}
func (ReinforceLexiconJob) isJob()    {}
func (ConsolidateMemoriesJob) isJob() {}

// Provider is the indirection layer jobs use to reach a project's
// Context and to ask for a snapshot save, so this package never reaches
// into the project Store or imports the persistence layer — grounded on
// original_source/src/jobs.rs's ProjectProvider trait.
type Provider interface {
	GetProject(ctx context.Context, projectID string) (*project.Context, bool)
	SaveProject(ctx context.Context, projectID string) error
}

// IsLexiconTrainable reports whether cue is a candidate for lexicon
// training: structured cues carrying high-cardinality, per-memory-unique
// values (file paths, IDs) would pollute the lexicon with one entry per
// memory, so they're excluded by key prefix.
func IsLexiconTrainable(cue string) bool {
	for _, prefix := range lexiconExcludedPrefixes {
		if hasPrefixFold(cue, prefix) {
			return false
		}
	}
	return true
}

var lexiconExcludedPrefixes = []string{
	"path:", "id:", "memory_id:", "file:", "alias_id:", "source:",
}

func hasPrefixFold(s, prefix string) bool {
	if len(s) < len(prefix) {
		return false
	}
	for i := 0; i < len(prefix); i++ {
		a, b := s[i], prefix[i]
		if a >= 'A' && a <= 'Z' {
			a += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}

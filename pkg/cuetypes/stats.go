package cuetypes

import (
	"encoding/gob"
	"math"
)

// Stats is the capability every engine's per-memory bookkeeping type must
// implement. One concrete shape is defined per engine role (main, lexicon,
// aliases); polymorphism is expressed through this interface rather than a
// shared base struct. Memories written through Engine.UpsertMemory, which
// the lexicon and alias jobs use, receive MainStats.
type Stats interface {
	ReinforcementCount() uint64
	Salience(nowUnix int64) float64
	ManualBoost()
}

func init() {
	gob.Register(&MainStats{})
	gob.Register(&LexiconStats{})
	gob.Register(&AliasStats{})
}

// MainStats backs ordinary user memories: reinforcement plus an age- and
// cue-density-decayed salience score.
type MainStats struct {
	Reinforcements uint64  `json:"reinforcements"`
	BaseSalience   float64 `json:"base_salience"`
	CreatedAtUnix  int64   `json:"created_at_unix"`
	Boosted        bool    `json:"boosted"`
}

// NewMainStats derives a base salience from cue density (more cues on
// ingestion imply a richer, more salient memory) and records the creation
// time used for the age-decay term.
func NewMainStats(cueCount int, nowUnix int64) *MainStats {
	density := math.Log1p(float64(cueCount)) / math.Log(2)
	return &MainStats{
		BaseSalience:  density,
		CreatedAtUnix: nowUnix,
	}
}

func (s *MainStats) ReinforcementCount() uint64 { return s.Reinforcements }

// Salience decays the base score with an exponential half-life of 30 days,
// then applies a fixed 1.5x lift if the memory has ever been manually
// boosted.
func (s *MainStats) Salience(nowUnix int64) float64 {
	const halfLifeSeconds = 30 * 24 * 3600.0
	age := float64(nowUnix - s.CreatedAtUnix)
	if age < 0 {
		age = 0
	}
	decay := math.Exp(-age * math.Ln2 / halfLifeSeconds)
	score := s.BaseSalience * decay
	if s.Boosted {
		score *= 1.5
	}
	return score
}

func (s *MainStats) ManualBoost() {
	s.Reinforcements++
	s.Boosted = true
}

// LexiconStats backs token→canonical training memories. Salience is flat —
// the lexicon ranks purely by recency and reinforcement count, never decay.
type LexiconStats struct {
	Reinforcements uint64 `json:"reinforcements"`
}

func NewLexiconStats() *LexiconStats { return &LexiconStats{} }

func (s *LexiconStats) ReinforcementCount() uint64   { return s.Reinforcements }
func (s *LexiconStats) Salience(nowUnix int64) float64 { return 0 }
func (s *LexiconStats) ManualBoost()                 { s.Reinforcements++ }

// AliasStats is the shape for proposed/active alias rewrite memories.
// Salience is the Confidence passed to NewAliasStats and never decays —
// an alias is either trusted or it isn't.
type AliasStats struct {
	Reinforcements uint64  `json:"reinforcements"`
	Confidence     float64 `json:"confidence"`
}

func NewAliasStats(confidence float64) *AliasStats {
	return &AliasStats{Confidence: confidence}
}

func (s *AliasStats) ReinforcementCount() uint64     { return s.Reinforcements }
func (s *AliasStats) Salience(nowUnix int64) float64 { return s.Confidence }
func (s *AliasStats) ManualBoost()                   { s.Reinforcements++ }

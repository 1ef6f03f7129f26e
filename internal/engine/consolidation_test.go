package engine_test

import (
	"strings"
	"testing"

	"github.com/scrypster/cuemap/internal/engine"
	"github.com/scrypster/cuemap/pkg/cuetypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsolidateMemories_SummarizesChainAtMinimumLength(t *testing.T) {
	e := engine.New(4)
	meta := map[string]cuetypes.JSONValue{"project_id": cuetypes.StringValue("p")}

	first, err := e.AddMemory(engine.AddMemoryInput{Content: "first", Cues: []string{"topic:coding"}, Metadata: meta, Stats: cuetypes.NewMainStats(1, 0)})
	require.NoError(t, err)
	second, err := e.AddMemory(engine.AddMemoryInput{Content: "second", Cues: []string{"topic:coding"}, Metadata: meta, Stats: cuetypes.NewMainStats(1, 0)})
	require.NoError(t, err)
	third, err := e.AddMemory(engine.AddMemoryInput{Content: "third", Cues: []string{"topic:coding"}, Metadata: meta, Stats: cuetypes.NewMainStats(1, 0)})
	require.NoError(t, err)

	chains := e.ConsolidateMemories()
	require.Len(t, chains, 1)
	assert.ElementsMatch(t, []string{first, second, third}, chains[0].SourceIDs)
	require.NotEmpty(t, chains[0].SummaryID)

	// Originals are untouched.
	for _, id := range []string{first, second, third} {
		_, ok := e.Get(id)
		assert.True(t, ok)
	}

	summary, ok := e.Get(chains[0].SummaryID)
	require.True(t, ok)
	assert.True(t, summary.HasCue("type:summary"))
	assert.True(t, summary.HasCue("topic:coding"))

	content, err := e.Content(summary)
	require.NoError(t, err)
	assert.True(t, strings.Contains(content, "first"))
	assert.True(t, strings.Contains(content, "second"))
	assert.True(t, strings.Contains(content, "third"))
}

func TestConsolidateMemories_ChainBelowMinimumLengthNotSummarized(t *testing.T) {
	e := engine.New(4)
	meta := map[string]cuetypes.JSONValue{"project_id": cuetypes.StringValue("p")}

	_, err := e.AddMemory(engine.AddMemoryInput{Content: "first", Cues: []string{"topic:coding"}, Metadata: meta, Stats: cuetypes.NewMainStats(1, 0)})
	require.NoError(t, err)
	_, err = e.AddMemory(engine.AddMemoryInput{Content: "second", Cues: []string{"topic:coding"}, Metadata: meta, Stats: cuetypes.NewMainStats(1, 0)})
	require.NoError(t, err)

	chains := e.ConsolidateMemories()
	assert.Empty(t, chains)
}

func TestConsolidateMemories_NoEpisodeCuesYieldsNoChains(t *testing.T) {
	e := engine.New(4)
	_, err := e.AddMemory(engine.AddMemoryInput{Content: "a", Cues: []string{"x", "y"}, Stats: cuetypes.NewMainStats(2, 0), DisableTemporalChunking: true})
	require.NoError(t, err)
	_, err = e.AddMemory(engine.AddMemoryInput{Content: "b", Cues: []string{"x", "z"}, Stats: cuetypes.NewMainStats(2, 0), DisableTemporalChunking: true})
	require.NoError(t, err)

	chains := e.ConsolidateMemories()
	assert.Empty(t, chains)
}

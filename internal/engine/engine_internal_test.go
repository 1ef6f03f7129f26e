package engine

import (
	"testing"

	"github.com/scrypster/cuemap/pkg/cuetypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMaybeChain_WindowExpired confirms temporal chunking does not fire
// once the episode window has elapsed, using a controllable clock instead
// of a real sleep.
func TestMaybeChain_WindowExpired(t *testing.T) {
	now := int64(1_000_000)
	e := New(4, withClock(func() int64 { return now }))
	meta := map[string]cuetypes.JSONValue{"project_id": cuetypes.StringValue("p")}

	m1, err := e.AddMemory(AddMemoryInput{Content: "first", Cues: []string{"topic:coding"}, Metadata: meta, Stats: cuetypes.NewMainStats(1, 0)})
	require.NoError(t, err)

	now += episodeWindowSeconds + 1
	m2, err := e.AddMemory(AddMemoryInput{Content: "second", Cues: []string{"topic:coding"}, Metadata: meta, Stats: cuetypes.NewMainStats(1, 0)})
	require.NoError(t, err)

	mem, ok := e.Get(m2)
	require.True(t, ok)
	assert.False(t, mem.HasCue("episode:"+m1))
}

func TestMaybeChain_OverlapBelowThreshold(t *testing.T) {
	now := int64(1_000_000)
	e := New(4, withClock(func() int64 { return now }))
	meta := map[string]cuetypes.JSONValue{"project_id": cuetypes.StringValue("p")}

	m1, err := e.AddMemory(AddMemoryInput{Content: "first", Cues: []string{"a", "b"}, Metadata: meta, Stats: cuetypes.NewMainStats(2, 0)})
	require.NoError(t, err)

	now += 10
	m2, err := e.AddMemory(AddMemoryInput{Content: "second", Cues: []string{"c", "d", "e"}, Metadata: meta, Stats: cuetypes.NewMainStats(3, 0)})
	require.NoError(t, err)

	mem, ok := e.Get(m2)
	require.True(t, ok)
	assert.False(t, mem.HasCue("episode:"+m1))
}

func TestJaccard(t *testing.T) {
	a := map[string]struct{}{"x": {}, "y": {}}
	assert.Equal(t, 1.0, jaccard(a, []string{"x", "y"}))
	assert.Equal(t, 0.0, jaccard(a, []string{"z"}))
	assert.InDelta(t, 1.0/3.0, jaccard(a, []string{"x", "z"}), 1e-9)
}

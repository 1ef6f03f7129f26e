package jobs_test

import (
	"context"
	"testing"
	"time"

	"github.com/scrypster/cuemap/internal/engine"
	"github.com/scrypster/cuemap/internal/jobs"
	"github.com/scrypster/cuemap/pkg/cuetypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueProcessesJobAsynchronously(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider()
	p := provider.newProject("proj1")
	meta := map[string]cuetypes.JSONValue{"project_id": cuetypes.StringValue("proj1")}
	chained := func(content string) engine.AddMemoryInput {
		in := addMemoryInputForSessionTest(content, []string{"dup", "shared"})
		in.Metadata = meta
		in.DisableTemporalChunking = false
		return in
	}
	_, err := p.Main.AddMemory(chained("a"))
	require.NoError(t, err)
	_, err = p.Main.AddMemory(chained("b"))
	require.NoError(t, err)
	_, err = p.Main.AddMemory(chained("c"))
	require.NoError(t, err)

	q := jobs.NewQueue(ctx, provider, false)
	q.Enqueue(ctx, jobs.ConsolidateMemoriesJob{ProjectID: "proj1"})

	deadline := time.After(200 * time.Millisecond)
	for {
		if len(provider.saveCalls) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for enqueued job to be processed")
		case <-time.After(2 * time.Millisecond):
		}
	}
	assert.Contains(t, provider.saveCalls, "proj1")
}

func TestQueue_BufferRoutesToProjectSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider()
	provider.newProject("proj1")

	q := jobs.NewQueue(ctx, provider, true)
	_, ok := q.Session("proj1")
	assert.False(t, ok)

	q.Buffer("proj1", jobs.UpdateGraphJob{ProjectID: "proj1", MemoryID: "m1"})

	s, ok := q.Session("proj1")
	require.True(t, ok)
	assert.Equal(t, jobs.PhaseWriting, s.GetPhase())
}

func TestQueue_DisableBgJobsSkipsProcessingButDrainsChannel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := newFakeProvider()
	p := provider.newProject("proj1")
	memID, err := p.Main.AddMemory(addMemoryInputForSessionTest("content", []string{"x"}))
	require.NoError(t, err)

	q := jobs.NewQueue(ctx, provider, true)
	q.Enqueue(ctx, jobs.ReinforceMemoriesJob{ProjectID: "proj1", MemoryIDs: []string{memID}, Cues: []string{"x"}})

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, provider.saveCalls)

	mem, ok := p.Main.Get(memID)
	require.True(t, ok)
	assert.EqualValues(t, 0, mem.Stats.ReinforcementCount())
}

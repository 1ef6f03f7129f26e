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

func TestIngestionSession_BufferAndFlushRunsJobsInOrderAndReachesDone(t *testing.T) {
	provider := newFakeProvider()
	p := provider.newProject("proj1")

	memID, err := p.Main.AddMemory(addMemoryInputForSessionTest("content", []string{"x"}))
	require.NoError(t, err)

	s := jobs.NewIngestionSession("proj1")
	s.ExpectWrite()
	s.BufferJob(jobs.UpdateGraphJob{ProjectID: "proj1", MemoryID: memID})
	s.WriteComplete()

	assert.Equal(t, jobs.PhaseWriting, s.GetPhase())

	s.Flush(context.Background(), provider)

	assert.Equal(t, jobs.PhaseDone, s.GetPhase())
	progress := s.GetProgress()
	assert.Equal(t, 1, progress.UpdateGraphCompleted)
	assert.Equal(t, 1, progress.WritesCompleted)
	assert.Equal(t, 1, progress.WritesTotal)
}

func TestIngestionSession_FlushIsNoOpWhenNotInWritingPhase(t *testing.T) {
	provider := newFakeProvider()
	provider.newProject("proj1")

	s := jobs.NewIngestionSession("proj1")
	s.ExpectWrite()
	s.Flush(context.Background(), provider)
	require.Equal(t, jobs.PhaseDone, s.GetPhase())

	// Second flush with no new ExpectWrite should be a no-op: phase stays Done.
	s.Flush(context.Background(), provider)
	assert.Equal(t, jobs.PhaseDone, s.GetPhase())
}

func TestIngestionSession_IsStaleOnlyAfterDoneWithAtLeastOneWrite(t *testing.T) {
	s := jobs.NewIngestionSession("proj1")
	assert.False(t, s.IsStale())

	s.ExpectWrite()
	assert.False(t, s.IsStale())

	provider := newFakeProvider()
	provider.newProject("proj1")
	s.Flush(context.Background(), provider)
	assert.True(t, s.IsStale())
}

func TestSessionManager_GetOrCreateIsIdempotentAndFlushSessionDelegates(t *testing.T) {
	provider := newFakeProvider()
	provider.newProject("proj1")

	mgr := jobs.NewSessionManager(provider)
	s1 := mgr.GetOrCreate("proj1")
	s2 := mgr.GetOrCreate("proj1")
	assert.Same(t, s1, s2)

	_, ok := mgr.Get("proj2")
	assert.False(t, ok)

	s1.ExpectWrite()
	s1.WriteComplete()
	mgr.FlushSession(context.Background(), "proj1")
	assert.Equal(t, jobs.PhaseDone, s1.GetPhase())
}

func TestIngestionSession_ShouldAutoFlushRequiresIdleWindowAfterWritesSettle(t *testing.T) {
	s := jobs.NewIngestionSession("proj1")
	s.ExpectWrite()
	s.WriteComplete()
	assert.False(t, s.ShouldAutoFlush(), "should not auto-flush immediately after the last write")

	time.Sleep(5 * time.Millisecond)
	assert.False(t, s.ShouldAutoFlush(), "5ms is well under the auto-flush idle window")
}

func addMemoryInputForSessionTest(content string, cues []string) engine.AddMemoryInput {
	return engine.AddMemoryInput{
		Content:                 content,
		Cues:                    cues,
		Stats:                   cuetypes.NewMainStats(len(cues), 0),
		DisableTemporalChunking: true,
	}
}
